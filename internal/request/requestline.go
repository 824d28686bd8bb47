package request

import (
	"bytes"
	"errors"
	"strings"
)

var ErrMalformedRequestLine = errors.New("malformed request line")

// startLine returns the first line of raw without its line terminator.
func startLine(raw []byte) string {
	line := raw
	if idx := bytes.IndexByte(raw, '\n'); idx != -1 {
		line = raw[:idx]
	}
	return string(bytes.TrimSuffix(line, []byte("\r")))
}

// requestLineTokens splits the start line on whitespace. Runs of spaces
// collapse, so "GET  /x" still yields two tokens.
func requestLineTokens(raw []byte) ([]string, error) {
	parts := strings.Fields(startLine(raw))
	if len(parts) < 2 {
		return nil, ErrMalformedRequestLine
	}
	return parts, nil
}

// Method returns the first token of the start line.
func Method(raw []byte) (string, error) {
	parts, err := requestLineTokens(raw)
	if err != nil {
		return "", err
	}
	return parts[0], nil
}

// Route returns the request target with any query string removed.
func Route(raw []byte) (string, error) {
	parts, err := requestLineTokens(raw)
	if err != nil {
		return "", err
	}
	route, _, _ := strings.Cut(parts[1], "?")
	return route, nil
}

// QueryParameters parses the text after the first '?' of the request target.
// Pieces are separated by '&' and split on their first '='; a piece without
// '=' maps to an empty value and a repeated key keeps its last value. Values
// are returned exactly as sent, without percent-decoding.
func QueryParameters(raw []byte) (map[string]string, error) {
	parts, err := requestLineTokens(raw)
	if err != nil {
		return nil, err
	}

	params := make(map[string]string)
	_, query, found := strings.Cut(parts[1], "?")
	if !found {
		return params, nil
	}

	for _, piece := range strings.Split(query, "&") {
		if piece == "" {
			continue
		}
		key, value, _ := strings.Cut(piece, "=")
		params[key] = value
	}
	return params, nil
}

// Protocol splits the third start-line token into protocol name and version,
// "HTTP/1.1" giving ("HTTP", "1.1"). ok is false when the token is missing.
func Protocol(raw []byte) (name, version string, ok bool) {
	parts := strings.Fields(startLine(raw))
	if len(parts) < 3 {
		return "", "", false
	}
	name, version, _ = strings.Cut(parts[2], "/")
	return name, version, true
}

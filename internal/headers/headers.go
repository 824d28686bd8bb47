package headers

import (
	"strings"

	"golang.org/x/net/http/httpguts"
)

// Headers maps header names, exactly as written on the wire, to their values.
// A repeated name keeps the last value seen.
type Headers map[string]string

func NewHeaders() Headers {
	return make(Headers)
}

// Get returns the value stored under exactly key.
func (h Headers) Get(key string) (string, bool) {
	v, ok := h[key]
	return v, ok
}

// Lookup is Get with a case-insensitive fallback, for framing headers such
// as Content-Length that clients spell in any case.
func (h Headers) Lookup(key string) (string, bool) {
	if v, ok := h[key]; ok {
		return v, true
	}
	for name, v := range h {
		if strings.EqualFold(name, key) {
			return v, true
		}
	}
	return "", false
}

// Set replaces the value for a header
func (h Headers) Set(key, value string) {
	h[key] = value
}

// Parse decodes a header block (everything before the blank line). Lines are
// split on LF and a trailing CR is dropped. Lines that are not of the form
// "<name>: <value>" with a valid token as name are skipped, which is how the
// request line itself falls out of the result.
func Parse(head string) Headers {
	h := NewHeaders()
	for _, line := range strings.Split(head, "\n") {
		name, value, ok := ParseLine(line)
		if !ok {
			continue
		}
		h[name] = value
	}
	return h
}

// ParseLine splits a single "<name>: <value>" line. The value is everything
// after the first ": " and is not trimmed further.
func ParseLine(line string) (string, string, bool) {
	line = strings.TrimSuffix(line, "\r")

	idx := strings.Index(line, ": ")
	if idx <= 0 {
		return "", "", false
	}

	name := line[:idx]
	if !httpguts.ValidHeaderFieldName(name) {
		return "", "", false
	}
	return name, line[idx+2:], true
}

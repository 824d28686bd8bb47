package request

import (
	"bytes"
	"net"
	"strings"

	"github.com/Brownie44l1/classroom-http/internal/headers"
)

var (
	crlfSeparator = []byte("\r\n\r\n")
	lfSeparator   = []byte("\n\n")
)

// Request is one decoded request. It is built once per connection by Decode
// and is read-only afterwards, except that the router merges captured path
// parameters into Parameters before calling a handler.
type Request struct {
	// Sender is the connection the request arrived on. The acceptor owns it
	// and closes it after the response is written; it is nil for requests
	// decoded from a plain buffer.
	Sender net.Conn

	Original     []byte
	Method       string
	Route        string
	Parameters   map[string]string
	Headers      headers.Headers
	Body         []byte
	Protocol     string
	ProtoVersion string
}

// Decode builds a Request from a fully framed raw request.
func Decode(raw []byte, sender net.Conn) (*Request, error) {
	method, err := Method(raw)
	if err != nil {
		return nil, err
	}
	route, err := Route(raw)
	if err != nil {
		return nil, err
	}
	params, err := QueryParameters(raw)
	if err != nil {
		return nil, err
	}
	proto, version, _ := Protocol(raw)

	return &Request{
		Sender:       sender,
		Original:     raw,
		Method:       method,
		Route:        route,
		Parameters:   params,
		Headers:      Headers(raw),
		Body:         Body(raw),
		Protocol:     proto,
		ProtoVersion: version,
	}, nil
}

// Header returns the value of the named header, or "" when absent.
func (r *Request) Header(name string) string {
	v, _ := r.Headers.Get(name)
	return v
}

// Param returns a query or captured path parameter.
func (r *Request) Param(name string) string {
	return r.Parameters[name]
}

// RemoteAddr is the sender's address, or "" when there is no sender.
func (r *Request) RemoteAddr() string {
	if r.Sender == nil {
		return ""
	}
	return r.Sender.RemoteAddr().String()
}

// splitHead locates the blank line ending the header block. CRLF CRLF is
// preferred; LF LF is only used when no CRLF CRLF occurs anywhere in raw.
// found is false when neither occurs, in which case head is all of raw.
func splitHead(raw []byte) (head, body []byte, found bool) {
	if idx := bytes.Index(raw, crlfSeparator); idx != -1 {
		return raw[:idx], raw[idx+len(crlfSeparator):], true
	}
	if idx := bytes.Index(raw, lfSeparator); idx != -1 {
		return raw[:idx], raw[idx+len(lfSeparator):], true
	}
	return raw, nil, false
}

// Headers decodes the header lines before the blank-line separator.
// Lines that do not look like "<name>: <value>" are skipped.
func Headers(raw []byte) headers.Headers {
	head, _, _ := splitHead(raw)
	return headers.Parse(string(head))
}

// Body returns the bytes after the blank-line separator, or an empty slice
// when there is no separator.
func Body(raw []byte) []byte {
	_, body, found := splitHead(raw)
	if !found {
		return []byte{}
	}
	return body
}

// Header scans the header block for the first line starting with
// "<name>: " and returns the rest of that line, or "" when none does.
// The match is anchored at the start of a line on purpose: a name that only
// appears inside another header's value, or in the body, is not found.
func Header(raw []byte, name string) string {
	head, _, _ := splitHead(raw)
	prefix := name + ": "
	for _, line := range strings.Split(string(head), "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.HasPrefix(line, prefix) {
			return line[len(prefix):]
		}
	}
	return ""
}

// Package form decodes multipart/form-data request bodies.
//
// The decoder works on a fully buffered body: it locates each "--boundary"
// delimiter, and every span between two consecutive delimiters is one part.
// The closing "--boundary--" ends the scan because no delimiter follows it.
package form

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/Brownie44l1/classroom-http/internal/request"
)

var (
	ErrMissingBoundary           = errors.New("missing multipart boundary")
	ErrUnterminatedMultipartPart = errors.New("unterminated multipart part")
	ErrMissingFieldName          = errors.New("missing multipart field name")
)

var partHeaderSeparator = []byte("\r\n\r\n")

const lineTerminatorLength = 2

// Field is one decoded part of a multipart body.
type Field struct {
	Name  string
	Value []byte

	// Filename is the part's filename attribute; HasFilename reports whether
	// the attribute was present at all.
	Filename    string
	HasFilename bool
}

// IsFile reports whether the part carries a usable filename. An empty or
// blank filename counts as a plain value.
func (f Field) IsFile() bool {
	return f.HasFilename && strings.TrimSpace(f.Filename) != ""
}

// Fields is the ordered result of Parse.
type Fields []Field

// Value returns the value of the first field named name.
func (fs Fields) Value(name string) ([]byte, bool) {
	for _, f := range fs {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Files returns the fields that are file uploads, in body order.
func (fs Fields) Files() Fields {
	var files Fields
	for _, f := range fs {
		if f.IsFile() {
			files = append(files, f)
		}
	}
	return files
}

type Decoder struct {
	boundary string
	body     []byte
}

// New builds a decoder for req from its Content-Type boundary attribute.
func New(req *request.Request) (*Decoder, error) {
	contentType, _ := req.Headers.Lookup("Content-Type")
	return NewDecoder(contentType, req.Body)
}

// NewDecoder builds a decoder from a raw Content-Type value and body.
func NewDecoder(contentType string, body []byte) (*Decoder, error) {
	boundary, err := parseBoundary(contentType)
	if err != nil {
		return nil, err
	}
	return &Decoder{boundary: boundary, body: body}, nil
}

func (d *Decoder) Boundary() string {
	return d.boundary
}

// Parse returns one Field per part in body order. Values are copies, so they
// stay valid independently of the request body.
func (d *Decoder) Parse() (Fields, error) {
	delimiter := []byte("--" + d.boundary)
	fields := Fields{}

	pos := bytes.Index(d.body, delimiter)
	if pos == -1 {
		return fields, nil
	}

	for {
		start := pos + len(delimiter)
		next := bytes.Index(d.body[start:], delimiter)
		if next == -1 {
			break
		}

		field, err := parsePart(d.body[start : start+next])
		if err != nil {
			return nil, fmt.Errorf("part %d: %w", len(fields), err)
		}
		fields = append(fields, field)

		pos = start + next
	}

	return fields, nil
}

// parsePart decodes the span between two delimiters. The value runs from the
// blank line after the part headers up to, but excluding, the line
// terminator that precedes the next delimiter.
func parsePart(part []byte) (Field, error) {
	sep := bytes.Index(part, partHeaderSeparator)
	if sep == -1 {
		return Field{}, ErrUnterminatedMultipartPart
	}

	valueStart := sep + len(partHeaderSeparator)
	valueEnd := len(part) - lineTerminatorLength
	if valueEnd < valueStart {
		return Field{}, ErrUnterminatedMultipartPart
	}

	partHeaders := string(part[:sep])
	name, ok := quotedParam(partHeaders, "name")
	if !ok {
		return Field{}, ErrMissingFieldName
	}
	filename, hasFilename := quotedParam(partHeaders, "filename")

	return Field{
		Name:        name,
		Value:       bytes.Clone(part[valueStart:valueEnd]),
		Filename:    filename,
		HasFilename: hasFilename,
	}, nil
}

// quotedParam finds key="value" in the part headers. The key must start a
// parameter, so looking up "name" does not match inside "filename".
func quotedParam(partHeaders, key string) (string, bool) {
	needle := key + `="`
	offset := 0
	for {
		idx := strings.Index(partHeaders[offset:], needle)
		if idx == -1 {
			return "", false
		}
		idx += offset

		if idx == 0 || isParamStart(partHeaders[idx-1]) {
			valueStart := idx + len(needle)
			end := strings.IndexByte(partHeaders[valueStart:], '"')
			if end == -1 {
				return "", false
			}
			return partHeaders[valueStart : valueStart+end], true
		}
		offset = idx + len(needle)
	}
}

func isParamStart(b byte) bool {
	return b == ';' || b == ' ' || b == '\t' || b == '\n'
}

// parseBoundary extracts the boundary attribute. Everything after
// "boundary=" up to the next ';' is used, with optional quotes removed.
func parseBoundary(contentType string) (string, error) {
	idx := strings.Index(contentType, "boundary=")
	if idx == -1 {
		return "", ErrMissingBoundary
	}

	boundary := contentType[idx+len("boundary="):]
	if end := strings.IndexByte(boundary, ';'); end != -1 {
		boundary = boundary[:end]
	}
	boundary = strings.Trim(strings.TrimSpace(boundary), `"`)
	if boundary == "" {
		return "", ErrMissingBoundary
	}
	return boundary, nil
}

package response

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// writerState tracks what's been written so far
type writerState int

const (
	stateStart writerState = iota
	stateStatusWritten
	stateHeadersWritten
	stateBodyWritten
)

// managedHeaders are computed by the writer; handler copies are dropped so
// they cannot break framing.
var managedHeaders = []string{"Content-Length", "Connection", "Transfer-Encoding"}

// Writer writes HTTP responses to an io.Writer
type Writer struct {
	w          io.Writer
	state      writerState
	statusCode StatusCode
	hadError   bool
}

// NewWriter creates a new response writer
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		w:     w,
		state: stateStart,
	}
}

// StatusCode returns the status written, or 0 before WriteStatusLine.
func (w *Writer) StatusCode() StatusCode {
	return w.statusCode
}

// HadError reports whether any write to the underlying writer failed.
func (w *Writer) HadError() bool {
	return w.hadError
}

// WriteStatusLine writes the HTTP status line
func (w *Writer) WriteStatusLine(code StatusCode) error {
	if w.state != stateStart {
		return fmt.Errorf("status line already written")
	}

	statusLine := fmt.Sprintf("HTTP/1.1 %d %s\r\n", code, StatusText(code))
	if err := w.write([]byte(statusLine)); err != nil {
		return err
	}

	w.statusCode = code
	w.state = stateStatusWritten
	return nil
}

// WriteHeaderLines writes "Name: value" lines followed by the blank line.
// Malformed lines are skipped.
func (w *Writer) WriteHeaderLines(lines []string) error {
	if w.state != stateStatusWritten {
		return fmt.Errorf("must write status line before headers")
	}

	var b strings.Builder
	for _, line := range lines {
		name, value, ok := ValidHeaderLine(line)
		if !ok {
			continue
		}
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(value)
		b.WriteString("\r\n")
	}
	b.WriteString("\r\n")

	if err := w.write([]byte(b.String())); err != nil {
		return err
	}

	w.state = stateHeadersWritten
	return nil
}

// WriteBody writes the complete response body
func (w *Writer) WriteBody(data []byte) error {
	if w.state != stateHeadersWritten {
		return fmt.Errorf("must write headers before body")
	}

	if len(data) > 0 {
		if err := w.write(data); err != nil {
			return err
		}
	}

	w.state = stateBodyWritten
	return nil
}

// WriteResult encodes a handler result as a complete response. The
// connection is always announced as closing.
func (w *Writer) WriteResult(res Result) error {
	code := res.Type.Status()
	if err := w.WriteStatusLine(code); err != nil {
		return err
	}

	lines := make([]string, 0, len(res.Headers)+3)
	hasContentType := false
	for _, line := range res.Headers {
		name, _, ok := ValidHeaderLine(line)
		if !ok || isManaged(name) {
			continue
		}
		if strings.EqualFold(name, "Content-Type") {
			hasContentType = true
		}
		lines = append(lines, line)
	}

	body := []byte(res.Body)
	if code == StatusNoContent {
		body = nil
	} else {
		if !hasContentType {
			lines = append(lines, "Content-Type: "+res.Type.ContentType())
		}
		lines = append(lines, "Content-Length: "+strconv.Itoa(len(body)))
	}
	lines = append(lines, "Connection: close")

	if err := w.WriteHeaderLines(lines); err != nil {
		return err
	}
	return w.WriteBody(body)
}

func (w *Writer) write(p []byte) error {
	if _, err := w.w.Write(p); err != nil {
		w.hadError = true
		return err
	}
	return nil
}

func isManaged(name string) bool {
	for _, h := range managedHeaders {
		if strings.EqualFold(h, name) {
			return true
		}
	}
	return false
}

// ValidHeaderLine splits a "Name: value" line and reports whether it is safe
// to put on the wire.
func ValidHeaderLine(line string) (name, value string, ok bool) {
	name, value, found := strings.Cut(line, ":")
	if !found {
		return "", "", false
	}
	value = strings.TrimSpace(value)
	if !httpguts.ValidHeaderFieldName(name) || !httpguts.ValidHeaderFieldValue(value) {
		return "", "", false
	}
	return name, value, true
}

// InvalidHeaderLines returns the lines WriteResult will drop as malformed.
func InvalidHeaderLines(lines []string) []string {
	var invalid []string
	for _, line := range lines {
		if _, _, ok := ValidHeaderLine(line); !ok {
			invalid = append(invalid, line)
		}
	}
	return invalid
}

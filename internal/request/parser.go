package request

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Brownie44l1/classroom-http/internal/headers"
)

// Size limits (DoS protection)
const (
	DefaultMaxHeaderBytes = 1 << 20  // 1MB request line + headers
	DefaultMaxBodyBytes   = 32 << 20 // 32MB body
)

var (
	ErrHeaderTooLarge              = errors.New("headers too large")
	ErrBodyTooLarge                = errors.New("body too large")
	ErrInvalidContentLength        = errors.New("invalid Content-Length")
	ErrUnsupportedTransferEncoding = errors.New("unsupported Transfer-Encoding")
	ErrUnexpectedEOF               = errors.New("unexpected EOF")
)

// Limits bounds how much ReadFrame will buffer for one request.
type Limits struct {
	MaxHeaderBytes int
	MaxBodyBytes   int64
}

func DefaultLimits() Limits {
	return Limits{
		MaxHeaderBytes: DefaultMaxHeaderBytes,
		MaxBodyBytes:   DefaultMaxBodyBytes,
	}
}

// parserState represents what the framer is waiting for
type parserState int

const (
	stateHead parserState = iota
	stateBody
	stateDone
)

// framer accumulates one request off a reader
type framer struct {
	state  parserState
	limits Limits
	buf    []byte
	// total is the full frame length once the header block is known
	total int
}

// ReadFrame reads exactly one request from r: the start line, the header
// block up to the blank line, and a body of Content-Length bytes. A request
// without Content-Length has an empty body. Bytes past the frame are
// discarded since connections carry a single request.
//
// io.EOF is returned unwrapped when r ends before any byte arrives.
func ReadFrame(r io.Reader, limits Limits) ([]byte, error) {
	if limits.MaxHeaderBytes <= 0 {
		limits.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	if limits.MaxBodyBytes <= 0 {
		limits.MaxBodyBytes = DefaultMaxBodyBytes
	}

	f := &framer{
		state:  stateHead,
		limits: limits,
		buf:    make([]byte, 0, 1024),
	}

	readBuf := getReadBuffer()
	defer putReadBuffer(readBuf)

	for f.state != stateDone {
		n, err := r.Read(readBuf)
		if n > 0 {
			f.buf = append(f.buf, readBuf[:n]...)
			if perr := f.advance(); perr != nil {
				return nil, perr
			}
		}

		if f.state == stateDone {
			break
		}

		if err != nil {
			if err == io.EOF {
				if len(f.buf) == 0 {
					return nil, io.EOF
				}
				return nil, ErrUnexpectedEOF
			}
			return nil, fmt.Errorf("read request: %w", err)
		}
	}

	return f.buf[:f.total], nil
}

// advance moves the state machine forward over what has been buffered.
func (f *framer) advance() error {
	switch f.state {
	case stateHead:
		headLen, sepLen, found := frameHead(f.buf)
		if !found {
			if len(f.buf) > f.limits.MaxHeaderBytes {
				return ErrHeaderTooLarge
			}
			return nil
		}
		if headLen > f.limits.MaxHeaderBytes {
			return ErrHeaderTooLarge
		}

		length, err := f.bodyLength(headers.Parse(string(f.buf[:headLen])))
		if err != nil {
			return err
		}

		f.total = headLen + sepLen + int(length)
		f.state = stateBody
		return f.advance()

	case stateBody:
		if len(f.buf) >= f.total {
			f.state = stateDone
		}
		return nil

	case stateDone:
		return nil

	default:
		return fmt.Errorf("invalid parser state: %d", f.state)
	}
}

// frameHead finds the end of the header block while framing. Unlike
// splitHead, the first blank line of either kind wins, so a body that
// contains CRLF CRLF cannot move the end of an LF-terminated head and the
// result does not depend on how the bytes were split across reads.
func frameHead(buf []byte) (headLen, sepLen int, found bool) {
	crlf := bytes.Index(buf, crlfSeparator)
	lf := bytes.Index(buf, lfSeparator)

	switch {
	case crlf == -1 && lf == -1:
		return 0, 0, false
	case lf == -1 || (crlf != -1 && crlf < lf):
		return crlf, len(crlfSeparator), true
	default:
		return lf, len(lfSeparator), true
	}
}

// bodyLength derives the body size from the framing headers.
func (f *framer) bodyLength(h headers.Headers) (int64, error) {
	if te, ok := h.Lookup("Transfer-Encoding"); ok && !strings.EqualFold(strings.TrimSpace(te), "identity") {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedTransferEncoding, te)
	}

	cl, ok := h.Lookup("Content-Length")
	if !ok {
		return 0, nil
	}
	cl = strings.TrimSpace(cl)

	length, err := strconv.ParseInt(cl, 10, 64)
	if err != nil || length < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidContentLength, cl)
	}
	if length > f.limits.MaxBodyBytes {
		return 0, ErrBodyTooLarge
	}
	return length, nil
}

package request

import (
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadFrameSimpleGET(t *testing.T) {
	data := "GET /index.html HTTP/1.1\r\nHost: example.com\r\n\r\n"
	raw, err := ReadFrame(strings.NewReader(data), DefaultLimits())

	require.NoError(t, err)
	assert.Equal(t, data, string(raw))
}

func TestReadFrameWithContentLength(t *testing.T) {
	data := "POST /api/data HTTP/1.1\r\n" +
		"Host: api.example.com\r\n" +
		"Content-Length: 13\r\n" +
		"\r\n" +
		"Hello, World!"

	raw, err := ReadFrame(strings.NewReader(data), DefaultLimits())

	require.NoError(t, err)
	assert.Equal(t, "Hello, World!", string(Body(raw)))
}

func TestReadFrameLowercaseContentLength(t *testing.T) {
	data := "POST / HTTP/1.1\r\ncontent-length: 3\r\n\r\nabc"
	raw, err := ReadFrame(strings.NewReader(data), DefaultLimits())

	require.NoError(t, err)
	assert.Equal(t, "abc", string(Body(raw)))
}

func TestReadFrameDiscardsTrailingBytes(t *testing.T) {
	data := "POST / HTTP/1.1\r\nContent-Length: 5\r\n\r\n12345GET /next HTTP/1.1\r\n\r\n"
	raw, err := ReadFrame(strings.NewReader(data), DefaultLimits())

	require.NoError(t, err)
	assert.Equal(t, "12345", string(Body(raw)))
}

func TestReadFrameIgnoresBodyWithoutContentLength(t *testing.T) {
	data := "GET / HTTP/1.1\r\nHost: a\r\n\r\nstray"
	raw, err := ReadFrame(strings.NewReader(data), DefaultLimits())

	require.NoError(t, err)
	assert.Empty(t, Body(raw))
}

func TestReadFrameIncremental(t *testing.T) {
	// Simulate slow reader that returns data a few bytes at a time
	data := []byte("POST /upload HTTP/1.1\r\nContent-Length: 10\r\n\r\n0123456789")
	reader := &slowReader{data: data, chunkSize: 5}

	raw, err := ReadFrame(reader, DefaultLimits())

	require.NoError(t, err)
	assert.Equal(t, string(data), string(raw))
}

func TestReadFramePartialBody(t *testing.T) {
	// Body arrives in multiple reads
	data := "POST / HTTP/1.1\r\n" +
		"Content-Length: 20\r\n" +
		"\r\n" +
		"12345"

	reader := &slowReader{
		data:      []byte(data + "67890" + "1234567890"),
		chunkSize: len(data),
	}

	raw, err := ReadFrame(reader, DefaultLimits())

	require.NoError(t, err)
	assert.Equal(t, "12345678901234567890", string(Body(raw)))
}

func TestReadFrameLineTerminators(t *testing.T) {
	tests := []struct {
		name  string
		input string
		frame string
	}{
		{
			name:  "LF only without body",
			input: "GET /x HTTP/1.1\nHost: a\n\n",
			frame: "GET /x HTTP/1.1\nHost: a\n\n",
		},
		{
			name:  "LF head with CRLF blank line in body",
			input: "POST /u HTTP/1.1\nContent-Length: 8\n\nab\r\n\r\ncd",
			frame: "POST /u HTTP/1.1\nContent-Length: 8\n\nab\r\n\r\ncd",
		},
		{
			name: "LF head with multipart body and trailing bytes",
			input: "POST /s HTTP/1.1\nContent-Type: multipart/form-data; boundary=XX\nContent-Length: 59\n\n" +
				"--XX\r\nContent-Disposition: form-data; name=\"a\"\r\n\r\n1\r\n--XX--" +
				"EXTRA",
			frame: "POST /s HTTP/1.1\nContent-Type: multipart/form-data; boundary=XX\nContent-Length: 59\n\n" +
				"--XX\r\nContent-Disposition: form-data; name=\"a\"\r\n\r\n1\r\n--XX--",
		},
		{
			name:  "CRLF head with LF blank line in body",
			input: "POST / HTTP/1.1\r\nContent-Length: 4\r\n\r\na\n\nb",
			frame: "POST / HTTP/1.1\r\nContent-Length: 4\r\n\r\na\n\nb",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			whole, err := ReadFrame(strings.NewReader(tt.input), DefaultLimits())
			require.NoError(t, err)
			assert.Equal(t, tt.frame, string(whole))

			for _, chunk := range []int{1, 3, 7, 16} {
				raw, err := ReadFrame(&slowReader{data: []byte(tt.input), chunkSize: chunk}, DefaultLimits())
				require.NoError(t, err, "chunk size %d", chunk)
				assert.Equal(t, string(whole), string(raw), "chunk size %d", chunk)
			}

			raw, err := ReadFrame(iotest.OneByteReader(strings.NewReader(tt.input)), DefaultLimits())
			require.NoError(t, err)
			assert.Equal(t, string(whole), string(raw))
		})
	}
}

func TestReadFrameUnexpectedEOF(t *testing.T) {
	// Content-Length says 100 bytes, but we only have 10
	data := "POST / HTTP/1.1\r\n" +
		"Content-Length: 100\r\n" +
		"\r\n" +
		"0123456789"

	_, err := ReadFrame(strings.NewReader(data), DefaultLimits())
	assert.ErrorIs(t, err, ErrUnexpectedEOF)

	// Header block never terminated
	_, err = ReadFrame(strings.NewReader("GET / HTTP/1.1\r\nHost: x\r\n"), DefaultLimits())
	assert.ErrorIs(t, err, ErrUnexpectedEOF)
}

func TestReadFrameEmptyConnection(t *testing.T) {
	_, err := ReadFrame(strings.NewReader(""), DefaultLimits())
	assert.Equal(t, io.EOF, err)
}

func TestReadFrameLimits(t *testing.T) {
	limits := Limits{MaxHeaderBytes: 64, MaxBodyBytes: 8}

	long := "GET / HTTP/1.1\r\nX-Long: " + strings.Repeat("a", 100) + "\r\n\r\n"
	_, err := ReadFrame(strings.NewReader(long), limits)
	assert.ErrorIs(t, err, ErrHeaderTooLarge)

	unterminated := "GET / HTTP/1.1\r\nX-Long: " + strings.Repeat("a", 100)
	_, err = ReadFrame(&slowReader{data: []byte(unterminated), chunkSize: 7}, limits)
	assert.ErrorIs(t, err, ErrHeaderTooLarge)

	big := "POST / HTTP/1.1\r\nContent-Length: 9\r\n\r\n123456789"
	_, err = ReadFrame(strings.NewReader(big), limits)
	assert.ErrorIs(t, err, ErrBodyTooLarge)
}

func TestReadFrameRejectsBadFraming(t *testing.T) {
	chunked := "POST / HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\n5\r\nHello\r\n0\r\n\r\n"
	_, err := ReadFrame(strings.NewReader(chunked), DefaultLimits())
	assert.ErrorIs(t, err, ErrUnsupportedTransferEncoding)

	identity := "POST / HTTP/1.1\r\nTransfer-Encoding: identity\r\nContent-Length: 2\r\n\r\nok"
	raw, err := ReadFrame(strings.NewReader(identity), DefaultLimits())
	require.NoError(t, err)
	assert.Equal(t, "ok", string(Body(raw)))

	for _, cl := range []string{"abc", "-1", "1.5"} {
		data := "POST / HTTP/1.1\r\nContent-Length: " + cl + "\r\n\r\n"
		_, err := ReadFrame(strings.NewReader(data), DefaultLimits())
		assert.ErrorIs(t, err, ErrInvalidContentLength, "Content-Length %q", cl)
	}
}

func TestReadFrameWrapsReadErrors(t *testing.T) {
	boom := errors.New("connection reset")
	_, err := ReadFrame(&failingReader{err: boom}, DefaultLimits())

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

// slowReader simulates a network connection that provides data slowly
type slowReader struct {
	data      []byte
	chunkSize int
	offset    int
}

func (r *slowReader) Read(p []byte) (int, error) {
	if r.offset >= len(r.data) {
		return 0, io.EOF
	}

	n := r.chunkSize
	if n > len(p) {
		n = len(p)
	}
	if n > len(r.data)-r.offset {
		n = len(r.data) - r.offset
	}

	copy(p, r.data[r.offset:r.offset+n])
	r.offset += n
	return n, nil
}

type failingReader struct {
	err error
}

func (r *failingReader) Read(p []byte) (int, error) {
	return 0, r.err
}

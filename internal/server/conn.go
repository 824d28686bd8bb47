package server

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"

	"github.com/Brownie44l1/classroom-http/internal/request"
	"github.com/Brownie44l1/classroom-http/internal/response"
)

// serveConn handles the single request carried by conn and closes it. The
// caller has already registered conn through track.
func (l *Listener) serveConn(conn net.Conn, worker int) {
	start := time.Now()

	l.metrics.ActiveConnections.Add(1)
	defer func() {
		conn.Close()
		l.conns.Delete(conn)
		l.metrics.ActiveConnections.Add(-1)
	}()

	log := l.log.With().
		Int("worker", worker).
		Str("remote_addr", conn.RemoteAddr().String()).
		Logger()

	if l.cfg.ReadTimeout > 0 {
		conn.SetReadDeadline(start.Add(l.cfg.ReadTimeout))
	}

	raw, err := request.ReadFrame(conn, request.Limits{
		MaxHeaderBytes: l.cfg.MaxHeaderBytes,
		MaxBodyBytes:   l.cfg.MaxBodyBytes,
	})
	if err != nil {
		l.rejectFrame(conn, log, err, start)
		return
	}

	req, err := request.Decode(raw, conn)
	if err != nil {
		log.Debug().Err(err).Msg("decode failed")
		status := l.respond(conn, log, response.New(response.BadRequest, err.Error()))
		l.metrics.RecordRequest(int(status), time.Since(start))
		return
	}

	res := l.receive(req, log)
	status := l.respond(conn, log, res)
	l.metrics.RecordRequest(int(status), time.Since(start))
}

// receive runs the callback, isolating the worker from handler panics
func (l *Listener) receive(req *request.Request, log zerolog.Logger) (res response.Result) {
	if l.onReceive == nil {
		return response.Error(response.NotImplemented)
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("error", r).
				Str("stack", string(debug.Stack())).
				Str("method", req.Method).
				Str("route", req.Route).
				Msg("handler panic")
			res = response.Error(response.InternalError)
		}
	}()

	return l.onReceive(req)
}

// rejectFrame answers a request that could not be framed. The receive
// callback is never invoked for these.
func (l *Listener) rejectFrame(conn net.Conn, log zerolog.Logger, err error, start time.Time) {
	if err == io.EOF {
		log.Debug().Msg("connection closed before sending a request")
		return
	}

	if isTimeout(err) {
		err = fmt.Errorf("%w: %v", ErrRequestTimeout, err)
		l.metrics.RecordTimeout()
		log.Debug().Err(err).Msg("request timed out")
		l.respond(conn, log, response.Error(response.RequestTimeout))
		return
	}

	log.Debug().Err(err).Msg("request framing failed")
	status := l.respond(conn, log, response.New(frameErrorType(err), err.Error()))
	l.metrics.RecordRequest(int(status), time.Since(start))
}

// respond writes res to conn on a best-effort basis and returns the status
// that was sent.
func (l *Listener) respond(conn net.Conn, log zerolog.Logger, res response.Result) response.StatusCode {
	if l.cfg.WriteTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(l.cfg.WriteTimeout))
	}

	if invalid := response.InvalidHeaderLines(res.Headers); len(invalid) > 0 {
		log.Warn().Strs("lines", invalid).Msg("dropping malformed response header lines")
	}

	bw := bufio.NewWriter(conn)
	w := response.NewWriter(bw)

	err := w.WriteResult(res)
	if err == nil {
		err = bw.Flush()
	}
	if err != nil {
		log.Debug().Err(err).Msg("write response failed")
	}

	return w.StatusCode()
}

func frameErrorType(err error) response.Type {
	switch {
	case errors.Is(err, request.ErrHeaderTooLarge), errors.Is(err, request.ErrBodyTooLarge):
		return response.PayloadTooLarge
	case errors.Is(err, request.ErrUnsupportedTransferEncoding):
		return response.NotImplemented
	default:
		return response.BadRequest
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

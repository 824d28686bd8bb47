package router

import (
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"

	"github.com/Brownie44l1/classroom-http/internal/request"
	"github.com/Brownie44l1/classroom-http/internal/response"
)

const maxLoggedValue = 100

// Logging logs one line per dispatched request.
func Logging(log zerolog.Logger) Middleware {
	return func(next Handler) Handler {
		return func(req *request.Request) response.Result {
			start := time.Now()

			res := next(req)

			// Authorization and Cookie values are never logged
			log.Info().
				Str("method", req.Method).
				Str("route", req.Route).
				Int("status", int(res.Type.Status())).
				Str("result", res.Type.String()).
				Dur("duration", time.Since(start)).
				Str("remote_addr", req.RemoteAddr()).
				Str("user_agent", sanitizeValue(req.Header("User-Agent"))).
				Msg("request handled")

			return res
		}
	}
}

// Recovery turns a handler panic into an InternalError result.
func Recovery(log zerolog.Logger) Middleware {
	return func(next Handler) Handler {
		return func(req *request.Request) (res response.Result) {
			defer func() {
				if err := recover(); err != nil {
					log.Error().
						Interface("error", err).
						Str("stack", string(debug.Stack())).
						Str("method", req.Method).
						Str("route", req.Route).
						Msg("panic recovered")

					res = response.Error(response.InternalError)
				}
			}()

			return next(req)
		}
	}
}

// sanitizeValue truncates long header values before they reach the logs.
func sanitizeValue(s string) string {
	if len(s) > maxLoggedValue {
		return s[:maxLoggedValue] + "...[truncated]"
	}
	return s
}

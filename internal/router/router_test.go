package router

import (
	"bytes"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/classroom-http/internal/request"
	"github.com/Brownie44l1/classroom-http/internal/response"
)

func decode(t *testing.T, raw string) *request.Request {
	t.Helper()
	req, err := request.Decode([]byte(raw), nil)
	require.NoError(t, err)
	return req
}

func named(name string) Handler {
	return func(req *request.Request) response.Result {
		return response.New(response.OK, name)
	}
}

func TestPatternCapture(t *testing.T) {
	r := New()
	r.GET("/a/{x}/b", named("axb"))

	rt, params, _, err := r.Lookup("GET", "/a/123/b")
	require.NoError(t, err)
	assert.Equal(t, "/a/{x}/b", rt.Pattern)
	assert.Equal(t, map[string]string{"x": "123"}, params)

	_, _, _, err = r.Lookup("GET", "/a/123/c")
	assert.ErrorIs(t, err, ErrRouteNotFound)

	_, _, _, err = r.Lookup("GET", "/a/b")
	assert.ErrorIs(t, err, ErrRouteNotFound)

	_, _, _, err = r.Lookup("GET", "/a/1/2/b")
	assert.ErrorIs(t, err, ErrRouteNotFound)

	// capture matches an empty segment as long as the count agrees
	_, params, _, err = r.Lookup("GET", "/a//b")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"x": ""}, params)
}

func TestLiteralRoutes(t *testing.T) {
	r := New()
	r.GET("/", named("root"))
	r.GET("/health", named("health"))

	rt, params, _, err := r.Lookup("GET", "/")
	require.NoError(t, err)
	assert.Equal(t, "/", rt.Pattern)
	assert.Empty(t, params)

	_, _, _, err = r.Lookup("GET", "/health/")
	assert.ErrorIs(t, err, ErrRouteNotFound)
}

func TestRegistrationOrderWins(t *testing.T) {
	r := New()
	r.GET("/assignment/{assignment_id}/get", named("capture"))
	r.GET("/assignment/latest/get", named("literal"))

	for i := 0; i < 10; i++ {
		res := r.Handle(decode(t, "GET /assignment/latest/get HTTP/1.1\r\n\r\n"))
		assert.Equal(t, "capture", res.Body)
	}
}

func TestMultipleCaptures(t *testing.T) {
	r := New()
	var got map[string]string
	r.GET("/classroom/{classroom_id}/assignment/{assignment_id}", func(req *request.Request) response.Result {
		got = req.Parameters
		return response.New(response.OK, "")
	})

	r.Handle(decode(t, "GET /classroom/7/assignment/42 HTTP/1.1\r\n\r\n"))
	assert.Equal(t, map[string]string{"classroom_id": "7", "assignment_id": "42"}, got)
	assert.Equal(t, []string{"classroom_id", "assignment_id"}, r.Routes()[0].Params)
}

func TestCapturedParametersOverrideQuery(t *testing.T) {
	r := New()
	var got map[string]string
	r.GET("/assignment/{assignment_id}/get", func(req *request.Request) response.Result {
		got = req.Parameters
		return response.New(response.JSON, "{}")
	})

	res := r.Handle(decode(t, "GET /assignment/42/get?assignment_id=99&verbose=1 HTTP/1.1\r\n\r\n"))

	assert.Equal(t, response.JSON, res.Type)
	assert.Equal(t, map[string]string{"assignment_id": "42", "verbose": "1"}, got)
}

func TestHandleNilParameters(t *testing.T) {
	r := New()
	r.GET("/x/{id}", func(req *request.Request) response.Result {
		return response.New(response.OK, req.Param("id"))
	})

	res := r.Handle(&request.Request{Method: "GET", Route: "/x/5"})
	assert.Equal(t, "5", res.Body)
}

func TestNotFoundAndMethodNotAllowed(t *testing.T) {
	r := New()
	r.GET("/assignment/{assignment_id}/get", named("get"))
	r.DELETE("/assignment/{assignment_id}/get", named("delete"))
	r.POST("/assignment/create", named("create"))

	res := r.Handle(decode(t, "GET /nope HTTP/1.1\r\n\r\n"))
	assert.Equal(t, response.NotFound, res.Type)
	assert.Equal(t, "Not Found", res.Body)

	res = r.Handle(decode(t, "PUT /assignment/3/get HTTP/1.1\r\n\r\n"))
	assert.Equal(t, response.MethodNotAllowed, res.Type)
	assert.Equal(t, []string{"Allow: GET, DELETE"}, res.Headers)

	_, _, allowed, err := r.Lookup("GET", "/assignment/create")
	assert.ErrorIs(t, err, ErrMethodNotAllowed)
	assert.Equal(t, []string{"POST"}, allowed)

	res = r.Handle(decode(t, "DELETE /assignment/3/get HTTP/1.1\r\n\r\n"))
	assert.Equal(t, "delete", res.Body)
}

func TestShortcuts(t *testing.T) {
	r := New()
	r.GET("/r", named("GET"))
	r.POST("/r", named("POST"))
	r.PUT("/r", named("PUT"))
	r.PATCH("/r", named("PATCH"))
	r.DELETE("/r", named("DELETE"))

	for _, method := range []string{"GET", "POST", "PUT", "PATCH", "DELETE"} {
		res := r.Handle(decode(t, method+" /r HTTP/1.1\r\n\r\n"))
		assert.Equal(t, method, res.Body)
	}
}

func TestInvalidPatternsPanic(t *testing.T) {
	r := New()
	assert.Panics(t, func() { r.GET("no-slash", named("x")) })
	assert.Panics(t, func() { r.GET("/a/{}", named("x")) })
	assert.Panics(t, func() { r.GET("/a/{id}/{id}", named("x")) })
	assert.Panics(t, func() { r.GET("/a", nil) })
	assert.Empty(t, r.Routes())
}

func TestMiddlewareOrder(t *testing.T) {
	r := New()
	var calls []string
	trace := func(name string) Middleware {
		return func(next Handler) Handler {
			return func(req *request.Request) response.Result {
				calls = append(calls, name)
				return next(req)
			}
		}
	}
	r.Use(trace("outer"), trace("inner"))
	r.GET("/", named("root"))

	r.Handle(decode(t, "GET / HTTP/1.1\r\n\r\n"))
	assert.Equal(t, []string{"outer", "inner"}, calls)

	// middleware also sees unmatched requests
	calls = nil
	res := r.Handle(decode(t, "GET /missing HTTP/1.1\r\n\r\n"))
	assert.Equal(t, response.NotFound, res.Type)
	assert.Equal(t, []string{"outer", "inner"}, calls)
}

func TestRecoveryMiddleware(t *testing.T) {
	var logs bytes.Buffer
	r := New()
	r.Use(Recovery(zerolog.New(&logs)))
	r.GET("/boom", func(req *request.Request) response.Result {
		panic("handler exploded")
	})

	res := r.Handle(decode(t, "GET /boom HTTP/1.1\r\n\r\n"))
	assert.Equal(t, response.InternalError, res.Type)
	assert.Contains(t, logs.String(), "handler exploded")
	assert.Contains(t, logs.String(), "panic recovered")
}

func TestLoggingMiddleware(t *testing.T) {
	var logs bytes.Buffer
	r := New()
	r.Use(Logging(zerolog.New(&logs)))
	r.GET("/assignment/{assignment_id}/get", named("ok"))

	longAgent := string(bytes.Repeat([]byte("a"), 150))
	r.Handle(decode(t, "GET /assignment/1/get HTTP/1.1\r\nUser-Agent: "+longAgent+"\r\nAuthorization: Bearer secret\r\n\r\n"))

	out := logs.String()
	assert.Contains(t, out, `"route":"/assignment/1/get"`)
	assert.Contains(t, out, `"status":200`)
	assert.Contains(t, out, "[truncated]")
	assert.NotContains(t, out, "secret")
}

func TestConcurrentHandle(t *testing.T) {
	r := New()
	r.GET("/item/{id}", func(req *request.Request) response.Result {
		return response.New(response.OK, req.Param("id"))
	})

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a' + i%26))
			req, err := request.Decode([]byte("GET /item/"+id+" HTTP/1.1\r\n\r\n"), nil)
			if !assert.NoError(t, err) {
				return
			}
			res := r.Handle(req)
			assert.Equal(t, id, res.Body)
		}(i)
	}
	wg.Wait()
}

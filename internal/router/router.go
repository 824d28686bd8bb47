package router

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Brownie44l1/classroom-http/internal/request"
	"github.com/Brownie44l1/classroom-http/internal/response"
)

var (
	ErrRouteNotFound    = errors.New("route not found")
	ErrMethodNotAllowed = errors.New("method not allowed")
)

// Handler handles one decoded request and returns the response tuple.
type Handler func(req *request.Request) response.Result

// Middleware wraps a Handler
type Middleware func(next Handler) Handler

// segment is one '/'-separated piece of a pattern
type segment struct {
	literal string
	capture string // non-empty for a {name} segment
}

// Route represents a single route
type Route struct {
	Method  string
	Pattern string
	Handler Handler
	Params  []string // Capture names in pattern order

	segments []segment
}

// Router dispatches requests over a table kept in registration order. The
// table is built at startup and only read while serving, so Handle may be
// called from many goroutines at once. AddRoute and Use must not run
// concurrently with Handle.
type Router struct {
	routes     []*Route
	middleware []Middleware
}

// New creates a new router
func New() *Router {
	return &Router{
		routes: make([]*Route, 0),
	}
}

// AddRoute appends a route. Pattern segments written as {name} capture one
// path segment; all other segments match literally. It panics on a pattern
// that does not start with '/', an empty capture name or a repeated one.
func (r *Router) AddRoute(method, pattern string, handler Handler) {
	if handler == nil {
		panic("router: nil handler for " + method + " " + pattern)
	}

	segments, params, err := compilePattern(pattern)
	if err != nil {
		panic(fmt.Sprintf("router: %s %s: %v", method, pattern, err))
	}

	r.routes = append(r.routes, &Route{
		Method:   method,
		Pattern:  pattern,
		Handler:  handler,
		Params:   params,
		segments: segments,
	})
}

// GET is a shortcut for AddRoute("GET", ...)
func (r *Router) GET(pattern string, handler Handler) {
	r.AddRoute("GET", pattern, handler)
}

// POST is a shortcut for AddRoute("POST", ...)
func (r *Router) POST(pattern string, handler Handler) {
	r.AddRoute("POST", pattern, handler)
}

// PUT is a shortcut for AddRoute("PUT", ...)
func (r *Router) PUT(pattern string, handler Handler) {
	r.AddRoute("PUT", pattern, handler)
}

// PATCH is a shortcut for AddRoute("PATCH", ...)
func (r *Router) PATCH(pattern string, handler Handler) {
	r.AddRoute("PATCH", pattern, handler)
}

// DELETE is a shortcut for AddRoute("DELETE", ...)
func (r *Router) DELETE(pattern string, handler Handler) {
	r.AddRoute("DELETE", pattern, handler)
}

// Use appends middleware. The first one added is the outermost.
func (r *Router) Use(mw ...Middleware) {
	r.middleware = append(r.middleware, mw...)
}

// Routes returns the registered routes in registration order.
func (r *Router) Routes() []*Route {
	return r.routes
}

// Lookup returns the first route registered for method whose pattern matches
// route, with its captured parameters. When no route matches it returns
// ErrMethodNotAllowed if the path is registered under other methods (listed
// in allowed) and ErrRouteNotFound otherwise.
func (r *Router) Lookup(method, route string) (match *Route, params map[string]string, allowed []string, err error) {
	parts := strings.Split(route, "/")

	for _, rt := range r.routes {
		captured, ok := rt.match(parts)
		if !ok {
			continue
		}
		if rt.Method == method {
			return rt, captured, nil, nil
		}
		if !contains(allowed, rt.Method) {
			allowed = append(allowed, rt.Method)
		}
	}

	if len(allowed) > 0 {
		return nil, nil, allowed, ErrMethodNotAllowed
	}
	return nil, nil, nil, ErrRouteNotFound
}

// Handle dispatches req through the middleware chain. Captured path
// parameters are merged into req.Parameters and win over query parameters
// of the same name. Lookup failures come back as NotFound or
// MethodNotAllowed results.
func (r *Router) Handle(req *request.Request) response.Result {
	h := Handler(r.dispatch)
	for i := len(r.middleware) - 1; i >= 0; i-- {
		h = r.middleware[i](h)
	}
	return h(req)
}

func (r *Router) dispatch(req *request.Request) response.Result {
	rt, params, allowed, err := r.Lookup(req.Method, req.Route)
	switch {
	case errors.Is(err, ErrMethodNotAllowed):
		res := response.Error(response.MethodNotAllowed)
		res.Headers = []string{"Allow: " + strings.Join(allowed, ", ")}
		return res
	case err != nil:
		return response.Error(response.NotFound)
	}

	if req.Parameters == nil {
		req.Parameters = make(map[string]string, len(params))
	}
	for name, value := range params {
		req.Parameters[name] = value
	}

	return rt.Handler(req)
}

// match compares the split request path against the pattern. Capture
// segments match any single segment, including an empty one.
func (rt *Route) match(parts []string) (map[string]string, bool) {
	if len(parts) != len(rt.segments) {
		return nil, false
	}

	var params map[string]string
	for i, seg := range rt.segments {
		if seg.capture != "" {
			if params == nil {
				params = make(map[string]string, len(rt.Params))
			}
			params[seg.capture] = parts[i]
			continue
		}
		if seg.literal != parts[i] {
			return nil, false
		}
	}

	if params == nil {
		params = map[string]string{}
	}
	return params, true
}

// compilePattern splits a pattern into segments
// Example: "/assignment/{id}/get" -> ["", "assignment", {id}, "get"]
func compilePattern(pattern string) ([]segment, []string, error) {
	if !strings.HasPrefix(pattern, "/") {
		return nil, nil, errors.New("pattern must start with '/'")
	}

	parts := strings.Split(pattern, "/")
	segments := make([]segment, 0, len(parts))
	params := make([]string, 0)

	for _, part := range parts {
		if strings.HasPrefix(part, "{") && strings.HasSuffix(part, "}") {
			name := part[1 : len(part)-1]
			if name == "" {
				return nil, nil, errors.New("empty capture name")
			}
			if contains(params, name) {
				return nil, nil, fmt.Errorf("duplicate capture name %q", name)
			}
			params = append(params, name)
			segments = append(segments, segment{capture: name})
			continue
		}
		segments = append(segments, segment{literal: part})
	}

	return segments, params, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

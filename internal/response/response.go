package response

import "fmt"

// Type classifies a handler's result. It decides the status line and the
// default Content-Type of the response.
type Type int

const (
	OK Type = iota
	JSON
	HTML
	Created
	NoContent
	BadRequest
	NotAuthorized
	Forbidden
	NotFound
	MethodNotAllowed
	Conflict
	PayloadTooLarge
	RequestTimeout
	InternalError
	NotImplemented
)

const (
	contentTypeText = "text/plain; charset=utf-8"
	contentTypeJSON = "application/json; charset=utf-8"
	contentTypeHTML = "text/html; charset=utf-8"
)

var typeStatus = map[Type]StatusCode{
	OK:               StatusOK,
	JSON:             StatusOK,
	HTML:             StatusOK,
	Created:          StatusCreated,
	NoContent:        StatusNoContent,
	BadRequest:       StatusBadRequest,
	NotAuthorized:    StatusUnauthorized,
	Forbidden:        StatusForbidden,
	NotFound:         StatusNotFound,
	MethodNotAllowed: StatusMethodNotAllowed,
	Conflict:         StatusConflict,
	PayloadTooLarge:  StatusRequestEntityTooLarge,
	RequestTimeout:   StatusRequestTimeout,
	InternalError:    StatusInternalServerError,
	NotImplemented:   StatusNotImplemented,
}

var typeNames = map[Type]string{
	OK:               "OK",
	JSON:             "JSON",
	HTML:             "HTML",
	Created:          "CREATED",
	NoContent:        "NO_CONTENT",
	BadRequest:       "BAD_REQUEST",
	NotAuthorized:    "NOT_AUTHORIZED",
	Forbidden:        "FORBIDDEN",
	NotFound:         "NOT_FOUND",
	MethodNotAllowed: "METHOD_NOT_ALLOWED",
	Conflict:         "CONFLICT",
	PayloadTooLarge:  "PAYLOAD_TOO_LARGE",
	RequestTimeout:   "REQUEST_TIMEOUT",
	InternalError:    "INTERNAL_ERROR",
	NotImplemented:   "NOT_IMPLEMENTED",
}

// Status returns the status code for t. Unknown types map to 500.
func (t Type) Status() StatusCode {
	if code, ok := typeStatus[t]; ok {
		return code
	}
	return StatusInternalServerError
}

// ContentType returns the Content-Type used when the handler sets none.
func (t Type) ContentType() string {
	switch t {
	case JSON:
		return contentTypeJSON
	case HTML:
		return contentTypeHTML
	default:
		return contentTypeText
	}
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// Result is what a handler returns: a classification, the body text and
// optional extra header lines written as "Name: value".
type Result struct {
	Type    Type
	Body    string
	Headers []string
}

// New builds a Result.
func New(t Type, body string, headers ...string) Result {
	return Result{Type: t, Body: body, Headers: headers}
}

// Error builds a Result whose body is the reason phrase of t's status.
func Error(t Type) Result {
	return Result{Type: t, Body: StatusText(t.Status())}
}

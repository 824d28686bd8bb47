package response

// StatusCode represents HTTP status codes
type StatusCode int

const (
	// 2xx Success
	StatusOK        StatusCode = 200
	StatusCreated   StatusCode = 201
	StatusNoContent StatusCode = 204

	// 4xx Client Error
	StatusBadRequest            StatusCode = 400
	StatusUnauthorized          StatusCode = 401
	StatusForbidden             StatusCode = 403
	StatusNotFound              StatusCode = 404
	StatusMethodNotAllowed      StatusCode = 405
	StatusRequestTimeout        StatusCode = 408
	StatusConflict              StatusCode = 409
	StatusRequestEntityTooLarge StatusCode = 413

	// 5xx Server Error
	StatusInternalServerError StatusCode = 500
	StatusNotImplemented      StatusCode = 501
)

// statusText maps status codes to reason phrases
var statusText = map[StatusCode]string{
	StatusOK:        "OK",
	StatusCreated:   "Created",
	StatusNoContent: "No Content",

	StatusBadRequest:            "Bad Request",
	StatusUnauthorized:          "Unauthorized",
	StatusForbidden:             "Forbidden",
	StatusNotFound:              "Not Found",
	StatusMethodNotAllowed:      "Method Not Allowed",
	StatusRequestTimeout:        "Request Timeout",
	StatusConflict:              "Conflict",
	StatusRequestEntityTooLarge: "Request Entity Too Large",

	StatusInternalServerError: "Internal Server Error",
	StatusNotImplemented:      "Not Implemented",
}

// StatusText returns the text description for a status code
func StatusText(code StatusCode) string {
	if text, ok := statusText[code]; ok {
		return text
	}
	return "Unknown Status"
}

// IsSuccess returns true for 2xx status codes
func (code StatusCode) IsSuccess() bool {
	return code >= 200 && code < 300
}

// IsClientError returns true for 4xx status codes
func (code StatusCode) IsClientError() bool {
	return code >= 400 && code < 500
}

// IsServerError returns true for 5xx status codes
func (code StatusCode) IsServerError() bool {
	return code >= 500 && code < 600
}

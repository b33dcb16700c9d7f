package utils

// HTTPError is an error that carries the status code an HTTP handler should
// answer with.
type HTTPError struct {
	Code    int    `json:"-"`
	Message string `json:"message"`
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError wraps a status code and message as an error. Handlers unwrap
// it with errors.As to pick the response status.
func NewHTTPError(code int, message string) error {
	return &HTTPError{Code: code, Message: message}
}

package httpjson

import "fmt"

// ErrorMessage is a JSON error response with a status code and the
// message of err.
func ErrorMessage(status int, err error) *Response {
	return &Response{
		Status: status,
		Body:   M{"error": err.Error()},
	}
}

// Errorf is ErrorMessage with a formatted message.
func Errorf(status int, format string, args ...any) *Response {
	return ErrorMessage(status, fmt.Errorf(format, args...))
}

// Package httpjson writes JSON responses for handlers that return them.
package httpjson

import (
	"encoding/json"
	"net/http"
)

type Response struct {
	Status int
	Body   any
}

// M is a helper type to create a map[string]any
type M map[string]any

// OK is a 200 response with body.
func OK(body any) *Response {
	return &Response{Status: http.StatusOK, Body: body}
}

// Handler adapts a function returning a Response. A nil Response is a
// 204 with no body.
type Handler func(w http.ResponseWriter, r *http.Request) *Response

func (h Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := (h)(w, r)
	if resp == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	Write(w, resp.Status, resp.Body)
}

func Write(w http.ResponseWriter, statusCode int, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = enc.Encode(v)
}

package httpjson

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(h Handler) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	return w
}

func TestHandler(t *testing.T) {
	t.Parallel()

	w := serve(func(http.ResponseWriter, *http.Request) *Response {
		return OK(M{"count": 3})
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"count": 3}`, w.Body.String())

	w = serve(func(http.ResponseWriter, *http.Request) *Response {
		return nil
	})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestErrors(t *testing.T) {
	t.Parallel()

	w := serve(func(http.ResponseWriter, *http.Request) *Response {
		return ErrorMessage(http.StatusBadGateway, errors.New("upstream down"))
	})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.JSONEq(t, `{"error": "upstream down"}`, w.Body.String())

	w = serve(func(http.ResponseWriter, *http.Request) *Response {
		return Errorf(http.StatusNotFound, "no export configured for %s", "org/repo")
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error": "no export configured for org/repo"}`, w.Body.String())
}

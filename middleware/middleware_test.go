package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewTransactionID(t *testing.T) {
	var captured interface{}
	handler := NewTransactionID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r.Context().Value(CtxTransactionKey)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/api/claims/1", nil))

	id, ok := captured.(string)
	assert.True(t, ok)
	assert.NotEmpty(t, id)
}

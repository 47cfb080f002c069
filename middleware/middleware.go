package middleware

import (
	"context"
	"net/http"

	"github.com/pborman/uuid"
)

// type to create context.Context key
type CtxTransactionKeyType string

// context.Context key to get the transaction ID from the request context
const CtxTransactionKey CtxTransactionKeyType = "ctxTransaction"

// NewTransactionID adds a transaction ID to the request context. Every request
// that mutates a claim carries one so the change-log write can be correlated
// with the request log.
func NewTransactionID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r = r.WithContext(context.WithValue(r.Context(), CtxTransactionKey, uuid.New()))
		next.ServeHTTP(w, r)
	})
}

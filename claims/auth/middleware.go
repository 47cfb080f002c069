package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/medtrack/claims-app/claims/responseutils"
	"github.com/medtrack/claims-app/log"
)

// AuthData is carried in the request context for authenticated requests.
type AuthData struct {
	UserID      int64
	Username    string
	DisplayName string
	Role        string
	TokenID     string
}

type authDataKeyType string

const AuthDataContextKey authDataKeyType = "ad"

// ParseToken decodes a bearer token, when present, and stores its AuthData in
// the request context. It never rejects a request; RequireTokenAuth does.
func ParseToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := DecodeToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			log.Auth.Warnf("failed to decode bearer token: %s", err.Error())
			next.ServeHTTP(w, r)
			return
		}

		ad := AuthData{
			UserID:      claims.UserID,
			Username:    claims.Username,
			DisplayName: claims.DisplayName,
			Role:        claims.Role,
			TokenID:     claims.Id,
		}
		ctx := context.WithValue(r.Context(), AuthDataContextKey, ad)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireTokenAuth rejects requests whose context holds no valid AuthData.
func RequireTokenAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.Context().Value(AuthDataContextKey).(AuthData); !ok {
			responseutils.WriteError(w, r, http.StatusUnauthorized, "a valid token is required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole rejects authenticated requests whose role does not match.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ad, ok := r.Context().Value(AuthDataContextKey).(AuthData)
			if !ok || ad.Role != role {
				responseutils.WriteError(w, r, http.StatusForbidden, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetAuthData retrieves AuthData from a context; ok is false for anonymous
// requests.
func GetAuthData(ctx context.Context) (AuthData, bool) {
	ad, ok := ctx.Value(AuthDataContextKey).(AuthData)
	return ad, ok
}

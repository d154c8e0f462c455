package api

import (
	"net/http"
	"strings"

	"example.com/campus-chat/ws"
)

// JWTMiddleware verifies the bearer token before letting a request through.
// The REST layer accepts the same tokens as the websocket authenticator.
func JWTMiddleware(options ws.TokenOptions) ApiMiddleware {
	return func(next http.Handler) ApiHandleFunc {
		return func(w http.ResponseWriter, r *http.Request) error {
			header := r.Header.Get("Authorization")
			token := strings.TrimPrefix(header, "Bearer ")
			if token == "" || token == header {
				return NewApiError("unauthorized", http.StatusUnauthorized)
			}

			if _, err := ws.VerifyIdentity(token, options); err != nil {
				return NewApiError("unauthorized", http.StatusUnauthorized)
			}

			next.ServeHTTP(w, r)
			return nil
		}
	}
}

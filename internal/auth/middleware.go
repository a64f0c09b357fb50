package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/auditgate-platform/auditgate/internal/api"
)

type contextKey string

const requesterKey contextKey = "requester"

// HeaderName carries the API key on every authenticated request.
const HeaderName = "X-API-Key"

// Middleware authenticates requests via the X-API-Key header and stores the
// resolved requester identity in the request context.
func Middleware(resolver Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(HeaderName)
			if key == "" {
				api.HandleError(w, api.ErrUnauthorized)
				return
			}

			requester, err := resolver.Resolve(r.Context(), key)
			if err != nil {
				if !errors.Is(err, ErrUnknownKey) {
					slog.Error("api key resolution failed", "error", err)
					api.HandleError(w, api.ErrInternalServer)
					return
				}
				api.HandleError(w, api.ErrInvalidAPIKey)
				return
			}

			ctx := context.WithValue(r.Context(), requesterKey, requester)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Requester returns the authenticated requester identity, or "" when the
// request did not pass through Middleware.
func Requester(ctx context.Context) string {
	requester, _ := ctx.Value(requesterKey).(string)
	return requester
}

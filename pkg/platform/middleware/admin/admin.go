package admin

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"

	"proctor/pkg/requestcontext"
)

type contextKeyAdminActor struct{}

// ActorID returns the X-Admin-Actor-ID of an admin request, or "".
func ActorID(ctx context.Context) string {
	v, _ := ctx.Value(contextKeyAdminActor{}).(string)
	return v
}

// RequireAdminToken guards admin routes with a static X-Admin-Token compared in constant time.
func RequireAdminToken(expectedToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token := r.Header.Get("X-Admin-Token")
			if expectedToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
				logger.WarnContext(ctx, "admin token mismatch", "request_id", requestcontext.RequestID(ctx))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"admin token required"}`))
				return
			}
			actor := r.Header.Get("X-Admin-Actor-ID")
			if actor == "" {
				actor = "admin"
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, contextKeyAdminActor{}, actor)))
		})
	}
}

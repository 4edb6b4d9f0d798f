package admin

import (
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"clubhouse/pkg/requestcontext"
)

// HeaderAdminToken carries the shared administrator token.
const HeaderAdminToken = "X-Admin-Token"

// HeaderAdminActor optionally names the operator for the audit trail.
const HeaderAdminActor = "X-Admin-Actor"

// RequireAdminToken accepts requests whose token matches the bcrypt hash.
// An empty hash disables administrator routes entirely.
func RequireAdminToken(tokenHash string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token := r.Header.Get(HeaderAdminToken)
			if tokenHash == "" || token == "" ||
				bcrypt.CompareHashAndPassword([]byte(tokenHash), []byte(token)) != nil {
				logger.WarnContext(ctx, "admin token mismatch",
					"request_id", requestcontext.RequestID(ctx),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"admin token required"}`))
				return
			}

			actor := "admin"
			if name := r.Header.Get(HeaderAdminActor); name != "" {
				actor = "admin:" + name
			}
			ctx = requestcontext.WithActorID(ctx, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

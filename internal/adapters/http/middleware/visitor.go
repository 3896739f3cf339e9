package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
)

// VisitorCookieName is the first-party cookie that identifies an anonymous visitor.
const VisitorCookieName = "sm_visitor"

// visitorMaxAge is one year in seconds.
const visitorMaxAge = 365 * 24 * 60 * 60

type contextKey string

const visitorContextKey contextKey = "visitor"

// Visitor returns middleware that ensures every request carries a visitor ID.
// A missing or malformed cookie is replaced by a fresh UUID, which is set on
// the response so the next request presents it.
// PRE: none
// POST: VisitorFromContext succeeds for every downstream handler
func Visitor(secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := ""
			if c, err := r.Cookie(VisitorCookieName); err == nil {
				if parsed, err := uuid.Parse(c.Value); err == nil {
					id = parsed.String()
				}
			}
			if id == "" {
				id = uuid.NewString()
				slog.Debug("visitor_assigned", "visitor_id", id)
				http.SetCookie(w, &http.Cookie{
					Name:     VisitorCookieName,
					Value:    id,
					Path:     "/",
					MaxAge:   visitorMaxAge,
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}
			next.ServeHTTP(w, r.WithContext(ContextWithVisitor(r.Context(), id)))
		})
	}
}

// VisitorFromContext returns the visitor ID set by Visitor.
func VisitorFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(visitorContextKey).(string)
	return id, ok && id != ""
}

// ContextWithVisitor returns a context carrying the visitor ID.
// Intended for use in tests.
func ContextWithVisitor(ctx context.Context, visitorID string) context.Context {
	return context.WithValue(ctx, visitorContextKey, visitorID)
}

package middleware

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/spa-concierge/pkg/logging"
)

// SessionHeader lets API clients that do not keep cookies name their session.
const SessionHeader = "X-Session-ID"

const sessionIDKey contextKey = "sessionID"

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{8,128}$`)

// SessionOptions configures the Session middleware.
type SessionOptions struct {
	CookieName string
	TTL        time.Duration
	Secure     bool
}

// Session resolves the caller's conversation key from the X-Session-ID header
// or the session cookie, issuing a new cookie when neither carries a usable id.
func Session(opts SessionOptions) func(http.Handler) http.Handler {
	if opts.CookieName == "" {
		opts.CookieName = "concierge_session"
	}
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(SessionHeader))
			if !sessionIDPattern.MatchString(id) {
				id = ""
				if c, err := r.Cookie(opts.CookieName); err == nil && sessionIDPattern.MatchString(c.Value) {
					id = c.Value
				}
			}
			if id == "" {
				id = uuid.NewString()
			}
			// Refresh on every request so the cookie outlives an active chat.
			http.SetCookie(w, &http.Cookie{
				Name:     opts.CookieName,
				Value:    id,
				Path:     "/",
				MaxAge:   int(opts.TTL.Seconds()),
				HttpOnly: true,
				Secure:   opts.Secure,
				SameSite: http.SameSiteLaxMode,
			})

			ctx := context.WithValue(r.Context(), sessionIDKey, id)
			ctx = logging.WithContext(ctx, logging.FromContext(ctx, nil).With("session_id", id))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionIDFromContext returns the session id stored by Session.
func SessionIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionIDKey).(string)
	return id, ok && id != ""
}

// WithSessionID stores id on ctx, as Session does.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}

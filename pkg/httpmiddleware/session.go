package httpmiddleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// SessionHeader carries the client session id in both directions.
const SessionHeader = "X-Session-ID"

type sessionIDKey struct{}

// SessionIDFromContext returns the session id stored by SessionID.
func SessionIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(sessionIDKey{}).(string); ok {
		return id
	}
	return ""
}

// SessionConfig configures SessionID.
type SessionConfig struct {
	// Valid reports whether a client-supplied id is acceptable. Defaults to
	// UUID syntax.
	Valid func(string) bool
	// New issues a fresh id. Defaults to a random UUID.
	New func() string
}

// SessionID resolves the session of every request. A valid X-Session-ID
// request header is reused; otherwise a new id is issued. The id is echoed
// in the response header and stored in the request context.
func SessionID(cfg SessionConfig) Middleware {
	if cfg.Valid == nil {
		cfg.Valid = func(id string) bool {
			_, err := uuid.Parse(id)
			return err == nil
		}
	}
	if cfg.New == nil {
		cfg.New = uuid.NewString
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(SessionHeader)
			if !cfg.Valid(id) {
				id = cfg.New()
			}
			w.Header().Set(SessionHeader, id)

			ctx := context.WithValue(r.Context(), sessionIDKey{}, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

package handlers

import (
	"context"
	"net/http"
	"strings"

	"cinesage/services/sessions"
)

type sessionContextKey struct{}

// WithSession stores the authenticated session on the request context.
func WithSession(ctx context.Context, session sessions.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, session)
}

// SessionFrom returns the session the auth middleware attached.
func SessionFrom(r *http.Request) (sessions.Session, bool) {
	session, ok := r.Context().Value(sessionContextKey{}).(sessions.Session)
	return session, ok
}

// Token extracts the session token from the Authorization bearer header or
// the X-Session-Token fallback used by clients that cannot set Authorization.
func Token(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return strings.TrimSpace(r.Header.Get("X-Session-Token"))
}

func requireSession(w http.ResponseWriter, r *http.Request) (sessions.Session, bool) {
	session, ok := SessionFrom(r)
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return sessions.Session{}, false
	}
	return session, true
}

// Package httpapi exposes the storefront session state over HTTP.
package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/nfauzi/storefront/internal/common"
	"github.com/nfauzi/storefront/internal/session"
)

// SessionHeader carries the visitor's session identifier. The middleware
// echoes it back so first-time callers learn the id they were allocated.
const SessionHeader = "X-Session-ID"

type sessionCtxKey struct{}

// SessionMiddleware resolves the request's session from the X-Session-ID
// header, allocating a fresh one when the header is absent.
type SessionMiddleware struct {
	Manager *session.Manager
}

// Handler attaches the resolved session to the request context.
func (m SessionMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Manager == nil {
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "session manager not configured", nil)
			return
		}
		id := strings.TrimSpace(r.Header.Get(SessionHeader))
		sess, err := m.Manager.Get(r.Context(), id)
		if err != nil {
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to resolve session", nil)
			return
		}
		w.Header().Set(SessionHeader, sess.ID)
		ctx := common.WithSessionID(r.Context(), sess.ID)
		ctx = context.WithValue(ctx, sessionCtxKey{}, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SessionFrom extracts the session the middleware attached to the context.
func SessionFrom(ctx context.Context) (*session.Session, bool) {
	sess, ok := ctx.Value(sessionCtxKey{}).(*session.Session)
	return sess, ok
}

// requireSession fetches the request session or writes the canonical error.
func requireSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, ok := SessionFrom(r.Context())
	if !ok {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "session not resolved", nil)
		return nil, false
	}
	return sess, true
}

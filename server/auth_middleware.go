package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/jrsteele09/go-login-portal/guard"
	"github.com/jrsteele09/go-login-portal/session"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

// ContextKeyStore stores the browser's session.Store
const ContextKeyStore ContextKey = "session_store"

// pendingRetryAfter is sent while a store is still being restored.
const pendingRetryAfter = 1

// SlotMiddleware resolves the slot cookie to a session.Store and puts it in
// the request context.
func (s *Server) SlotMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := s.slotID(w, r)
		store := s.sessions.For(r.Context(), id)
		ctx := context.WithValue(r.Context(), ContextKeyStore, store)
		next(w, r.WithContext(ctx))
	}
}

// GuardMiddleware applies guard.Decide to every request. It must follow SlotMiddleware.
func (s *Server) GuardMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store := storeFrom(r)
		if store == nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		d := guard.Decide(store.Status(), r.URL.Path)
		switch {
		case d.Pending:
			w.Header().Set("Retry-After", strconv.Itoa(pendingRetryAfter))
			http.Error(w, "Session is loading", http.StatusServiceUnavailable)
		case d.Redirect != "":
			redirectSuccess(w, r, d.Redirect)
		default:
			next(w, r)
		}
	}
}

func storeFrom(r *http.Request) *session.Store {
	store, _ := r.Context().Value(ContextKeyStore).(*session.Store)
	return store
}

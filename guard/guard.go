// Package guard decides where a request may go given the session status.
package guard

import (
	"sync"

	"github.com/jrsteele09/go-login-portal/session"
)

const (
	LoginPath = "/login"
	HomePath  = "/"
)

// Decision is the outcome of evaluating a route against the session status.
// An empty Redirect with Pending false means the route may render.
type Decision struct {
	Redirect string
	Pending  bool
}

func (d Decision) Allowed() bool {
	return d.Redirect == "" && !d.Pending
}

// Decide gates the login and home routes. Unknown status renders nothing until
// the store has been restored, so no redirect is issued from a guess.
func Decide(status session.Status, path string) Decision {
	if status == session.StatusUnknown && (path == LoginPath || path == HomePath) {
		return Decision{Pending: true}
	}
	switch {
	case path == LoginPath && status == session.StatusAuthenticated:
		return Decision{Redirect: HomePath}
	case path == HomePath && status != session.StatusAuthenticated:
		return Decision{Redirect: LoginPath}
	}
	return Decision{}
}

// Observable is a store whose mutations can be watched.
type Observable interface {
	session.AuthState
	Subscribe(fn func(session.Session)) (unsubscribe func())
}

// Guard watches stores and reports authentication flips.
type Guard struct {
	OnChange func(from, to session.Status)
}

// Watch calls g.OnChange each time store's status changes. Mutations that
// leave the status unchanged, such as a repeated logout, are not reported.
func (g *Guard) Watch(store Observable) (stop func()) {
	var mu sync.Mutex
	last := store.Status()

	return store.Subscribe(func(s session.Session) {
		next := session.StatusUnauthenticated
		if s.IsAuthenticated {
			next = session.StatusAuthenticated
		}

		mu.Lock()
		from := last
		last = next
		mu.Unlock()

		if from != next && g.OnChange != nil {
			g.OnChange(from, next)
		}
	})
}

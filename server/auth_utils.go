package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	// slotCookieName holds the id of the browser's session slot
	slotCookieName = "portal_slot"
	slotCookieTTL  = 365 * 24 * time.Hour
)

// slotID returns the browser's slot id, issuing a new one when the cookie is
// missing or not a uuid.
func (s *Server) slotID(w http.ResponseWriter, r *http.Request) string {
	if cookie, err := r.Cookie(slotCookieName); err == nil {
		if id, err := uuid.Parse(cookie.Value); err == nil {
			return id.String()
		}
	}
	id := uuid.NewString()
	s.SetSlotCookie(w, r, id)
	return id
}

func (s *Server) SetSlotCookie(w http.ResponseWriter, r *http.Request, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     slotCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(slotCookieTTL.Seconds()),
	})
}

// redirectSuccess sends the browser on after a form post.
func redirectSuccess(w http.ResponseWriter, r *http.Request, path string) {
	http.Redirect(w, r, path, http.StatusSeeOther)
}

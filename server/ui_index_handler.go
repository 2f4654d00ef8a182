package server

import (
	"net/http"

	"github.com/jrsteele09/go-login-portal/auth"
	"github.com/rs/zerolog/log"
)

type HomePageData struct {
	AppName   string
	UserName  string
	LogoutURL string
}

// HomeHandler renders the protected home page (GET /)
func (s *Server) HomeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := HomePageData{
			AppName:   s.config.GetAppName(),
			LogoutURL: RouteLogout,
		}
		// Opaque tokens carry no claims, the page then shows no name.
		if token, ok := storeFrom(r).AccessToken(); ok {
			if user, err := auth.UserFromToken(token); err == nil {
				data.UserName = user.DisplayName()
			}
		}

		w.Header().Set("Content-Type", contentTypeHTML)
		if err := s.homeTmpl.Execute(w, data); err != nil {
			log.Err(err).Msg("Failed to render home template")
		}
	}
}

package apiclient

import (
	"net/http"

	"github.com/jrsteele09/go-login-portal/internal/metrics"
	"github.com/jrsteele09/go-login-portal/session"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// bearerTransport is the request/response interceptor pair.
type bearerTransport struct {
	base   http.RoundTripper
	tokens session.TokenSource
	inv    session.Invalidator
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.tokens != nil {
		if token, ok := t.tokens.AccessToken(); ok {
			// RoundTrippers must not modify the caller's request.
			req = req.Clone(req.Context())
			(&oauth2.Token{AccessToken: token}).SetAuthHeader(req)
		}
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized && t.inv != nil {
		metrics.ForcedLogouts.Inc()
		log.Warn().Str("path", req.URL.Path).Msg("Unauthorized response, clearing session")
		t.inv.Logout(req.Context())
	}
	return resp, nil
}

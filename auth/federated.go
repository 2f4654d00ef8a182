package auth

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// FederatedConfig names an OIDC identity provider and this portal's client registration.
type FederatedConfig struct {
	Issuer       string
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// FederatedProvider is a discovered OIDC provider ready for the authorization-code flow.
type FederatedProvider struct {
	OAuth2Config *oauth2.Config
	Verifier     *oidc.IDTokenVerifier
}

// NewFederatedProvider runs OIDC discovery against cfg.Issuer.
func NewFederatedProvider(ctx context.Context, cfg FederatedConfig) (*FederatedProvider, error) {
	provider, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("[auth NewFederatedProvider] discover %s: %w", cfg.Issuer, err)
	}

	return &FederatedProvider{
		OAuth2Config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     provider.Endpoint(),
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
		},
		Verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
	}, nil
}

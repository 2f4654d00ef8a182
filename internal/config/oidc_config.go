package config

type OIDCConfig interface {
	GetGoogleClientID() string
	GetGoogleClientSecret() string
	GetGoogleIssuer() string
	GoogleEnabled() bool
}

type OIDC struct {
	vars envVars
}

var _ OIDCConfig = OIDC{}

func (o OIDC) GetGoogleClientID() string {
	return o.vars.GoogleClientID
}

func (o OIDC) GetGoogleClientSecret() string {
	return o.vars.GoogleSecret
}

func (o OIDC) GetGoogleIssuer() string {
	return o.vars.GoogleIssuer
}

// GoogleEnabled reports whether federated login can be offered.
func (o OIDC) GoogleEnabled() bool {
	return o.vars.GoogleClientID != ""
}

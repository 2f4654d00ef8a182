package config

import "strings"

type APIConfig interface {
	GetAPIBaseURL() string
}

type API struct {
	vars envVars
}

var _ APIConfig = API{}

// GetAPIBaseURL is the remote auth API address. Empty is allowed and only warned about.
func (a API) GetAPIBaseURL() string {
	return strings.TrimRight(a.vars.APIBaseURL, "/")
}

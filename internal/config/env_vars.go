package config

import (
	"fmt"
	"strings"
	"time"
)

// envVars is the raw environment, parsed once by caarlos0/env.
type envVars struct {
	Port           string   `env:"PORT" envDefault:"8080"`
	AppName        string   `env:"APP_NAME" envDefault:"Login Portal"`
	Env            string   `env:"ENV" envDefault:"DEV"`
	BaseURL        string   `env:"BASE_URL" envDefault:"http://localhost:8080"`
	APIBaseURL     string   `env:"API_BASE_URL"`
	StorageDriver  string   `env:"STORAGE_DRIVER" envDefault:"file"`
	DataFolder     string   `env:"DATA_FOLDER" envDefault:"./data"`
	SQLitePath     string   `env:"SQLITE_PATH"`
	RedisURL       string   `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	StorageSlot    string   `env:"AUTH_STORAGE_SLOT" envDefault:"auth-storage"`

	SessionIdleTimeout time.Duration `env:"SESSION_IDLE_TIMEOUT" envDefault:"30m"`
	SweepInterval      time.Duration `env:"SWEEP_INTERVAL" envDefault:"1m"`

	GoogleClientID string   `env:"GOOGLE_CLIENT_ID"`
	GoogleSecret   string   `env:"GOOGLE_CLIENT_SECRET"`
	GoogleIssuer   string   `env:"GOOGLE_ISSUER" envDefault:"https://accounts.google.com"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`
}

type EnvVars struct {
	vars envVars
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetPort() string {
	port := e.vars.Port
	if port != "" && port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (e EnvVars) GetAppName() string {
	return e.vars.AppName
}

// GetBaseURL returns the public URL of the portal (e.g., "https://login.example.com").
// The Google redirect URI is derived from it.
func (e EnvVars) GetBaseURL() string {
	return strings.TrimRight(e.vars.BaseURL, "/")
}

func (e EnvVars) GetEnv() string {
	if e.vars.Env == "" {
		return "DEV"
	}
	return e.vars.Env
}

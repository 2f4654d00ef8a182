package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config interface {
	EnvConfig
	APIConfig
	StorageConfig
	OIDCConfig
	CorsConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetBaseURL() string
	GetEnv() string
}

type mainConfig struct {
	EnvVars
	API
	Storage
	OIDC
	Cors
}

// Load reads .env (outside production) and parses the environment into a Config.
func Load() (Config, error) {
	if os.Getenv("ENV") != "PROD" {
		if err := godotenv.Load(); err != nil {
			log.Debug().Msg("No .env file found, using the process environment")
		}
	}
	return FromEnv()
}

// FromEnv parses the current process environment without touching .env files.
func FromEnv() (Config, error) {
	var vars envVars
	if err := env.Parse(&vars); err != nil {
		return nil, fmt.Errorf("[config FromEnv] parse env: %w", err)
	}

	c := mainConfig{
		EnvVars: EnvVars{vars: vars},
		API:     API{vars: vars},
		Storage: Storage{vars: vars},
		OIDC:    OIDC{vars: vars},
		Cors:    newCors(vars.AllowedOrigins),
	}
	if c.GetAPIBaseURL() == "" {
		log.Warn().Str("var", "API_BASE_URL").Msg("API base URL is not defined in the environment")
	}
	return c, nil
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
)

var ErrMissingRequiredValue = errors.New("missing required value")
var ErrInvalidValue = errors.New("invalid value")

const defaultCacheMaxSize = 512

type environment string

const (
	production  environment = "production"
	staging     environment = "staging"
	development environment = "development"
)

type Config struct {
	port         string
	gitHubToken  string
	sentryDSN    string
	dbUsername   string
	dbPassword   string
	dbHost       string
	cacheMaxSize int
	otlpEndpoint string
	env          environment
}

func (c *Config) Port() string {
	return c.port
}

func (c *Config) GitHubToken() string {
	return c.gitHubToken
}

func (c *Config) SentryDSN() string {
	return c.sentryDSN
}

func (c *Config) DBUsername() string {
	return c.dbUsername
}

func (c *Config) DBPassword() string {
	return c.dbPassword
}

func (c *Config) DBHost() string {
	return c.dbHost
}

func (c *Config) CacheMaxSize() int {
	return c.cacheMaxSize
}

func (c *Config) OTLPEndpoint() string {
	return c.otlpEndpoint
}

func (c *Config) IsProduction() bool {
	return c.env == production
}

func (c *Config) IsStaging() bool {
	return c.env == staging
}

func (c *Config) IsDevelopment() bool {
	return c.env == development
}

// Return a string representation suitable for logging etc
func (c *Config) NonSensitiveString() string {
	return fmt.Sprintf("Config{env: %s, port: %s, cacheMaxSize: %d, ...}", string(c.env), c.port, c.cacheMaxSize)
}

func ConfigFromEnv() (Config, error) {
	missingKey := func(key string) (Config, error) {
		return Config{}, fmt.Errorf("%w: %s", ErrMissingRequiredValue, key)
	}

	var env environment
	rawEnv, ok := os.LookupEnv("REPOLENS_ENVIRONMENT")
	if !ok {
		return missingKey("REPOLENS_ENVIRONMENT")
	}
	switch rawEnv {
	case "production":
		env = production
	case "staging":
		env = staging
	case "development":
		env = development
	default:
		return Config{}, fmt.Errorf("%w: REPOLENS_ENVIRONMENT (%s)", ErrInvalidValue, rawEnv)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	cacheMaxSize := defaultCacheMaxSize
	if rawMaxSize := os.Getenv("REPOLENS_CACHE_MAX_SIZE"); rawMaxSize != "" {
		parsed, err := strconv.Atoi(rawMaxSize)
		if err != nil || parsed < 1 {
			return Config{}, fmt.Errorf("%w: REPOLENS_CACHE_MAX_SIZE (%s)", ErrInvalidValue, rawMaxSize)
		}
		cacheMaxSize = parsed
	}

	gitHubToken := os.Getenv("GITHUB_API_TOKEN")
	sentryDSN := os.Getenv("SENTRY_DSN")
	dbUsername := os.Getenv("DB_USERNAME")
	dbPassword := os.Getenv("DB_PASSWORD")
	dbHost := os.Getenv("DB_HOST")
	otlpEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")

	if env == production || env == staging {
		if sentryDSN == "" {
			return missingKey("SENTRY_DSN")
		}
		if dbUsername == "" {
			return missingKey("DB_USERNAME")
		}
		if dbPassword == "" {
			return missingKey("DB_PASSWORD")
		}
		if dbHost == "" {
			return missingKey("DB_HOST")
		}
	}

	return Config{
		port:         port,
		gitHubToken:  gitHubToken,
		sentryDSN:    sentryDSN,
		dbUsername:   dbUsername,
		dbPassword:   dbPassword,
		dbHost:       dbHost,
		cacheMaxSize: cacheMaxSize,
		otlpEndpoint: otlpEndpoint,
		env:          env,
	}, nil
}

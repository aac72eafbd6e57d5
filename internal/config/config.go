// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package config loads the process configuration from environment
// variables, optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/subosito/gotenv"
)

// Config is the complete process configuration.
type Config struct {
	// Server settings
	Host string
	Port string
	Env  string // "development", "production", "testing"

	// PostgreSQL connection
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Valkey (Redis-compatible token store and cache)
	ValkeyHost     string
	ValkeyPort     string
	ValkeyPassword string

	// Facebook Graph API
	FacebookAppID       string
	FacebookAppSecret   string
	FacebookRedirectURI string
	FacebookGraphURL    string // override for tests and API version pinning
	FacebookPageID      string // legacy single-page posting
	FacebookPageToken   string // fallback page credential for every destination

	// Fan-out tuning
	PostTimeout         time.Duration // per-destination delivery timeout
	PublishBatchTimeout time.Duration // whole fan-out; the HTTP write timeout is derived from it
	PublishConcurrency  int

	// TokenTTL is the idle lifetime of dashboard bearer tokens.
	TokenTTL time.Duration

	// Optimizely SaaS CMS (process-wide defaults; users may override)
	OptimizelyClientID        string
	OptimizelyClientSecret    string
	OptimizelyAPIURL          string
	OptimizelyGraphQLEndpoint string
	OptimizelyAuthToken       string
	CMSAPISecretKey           string // shared key accepted by the CMS publish API

	// S3-compatible object storage for post images (optional)
	S3Endpoint     string
	S3Region       string
	S3AccessKey    string
	S3SecretKey    string
	S3BucketPublic string
	S3PublicURL    string

	// Requests per minute allowed for each API secret key.
	RateLimitPerMinute int
}

// Load reads configuration from the environment. A .env file in the
// working directory is applied first when present; variables already set
// in the environment win over it. Production refuses unsafe defaults.
func Load() (*Config, error) {
	if err := gotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("could not read .env file", "error", err)
	}

	cfg := &Config{
		Host: str("APP_HOST", "0.0.0.0"),
		Port: str("APP_PORT", "8080"),
		Env:  str("APP_ENV", "development"),

		DBHost:     str("POSTGRES_HOST", "localhost"),
		DBPort:     str("POSTGRES_PORT", "5432"),
		DBUser:     str("POSTGRES_USER", "broadcaster"),
		DBPassword: str("POSTGRES_PASSWORD", defaultDBPassword),
		DBName:     str("POSTGRES_DB", "broadcaster"),

		ValkeyHost:     str("VALKEY_HOST", "localhost"),
		ValkeyPort:     str("VALKEY_PORT", "6379"),
		ValkeyPassword: os.Getenv("VALKEY_PASSWORD"),

		FacebookAppID:       os.Getenv("FACEBOOK_APP_ID"),
		FacebookAppSecret:   os.Getenv("FACEBOOK_APP_SECRET"),
		FacebookRedirectURI: str("FACEBOOK_REDIRECT_URI", "http://localhost:8080/oauth/facebook/callback"),
		FacebookGraphURL:    str("FACEBOOK_GRAPH_URL", "https://graph.facebook.com/v19.0"),
		FacebookPageID:      os.Getenv("FACEBOOK_PAGE_ID"),
		FacebookPageToken:   os.Getenv("FACEBOOK_PAGE_ACCESS_TOKEN"),

		PostTimeout:         parsed("FACEBOOK_POST_TIMEOUT", 15*time.Second, positiveDuration),
		PublishBatchTimeout: parsed("PUBLISH_BATCH_TIMEOUT", 75*time.Second, positiveDuration),
		PublishConcurrency:  max(parsed("PUBLISH_CONCURRENCY", 4, strconv.Atoi), 1),
		TokenTTL:            parsed("SESSION_TTL", 7*24*time.Hour, positiveDuration),

		OptimizelyClientID:        os.Getenv("OPTIMIZELY_CLIENT_ID"),
		OptimizelyClientSecret:    os.Getenv("OPTIMIZELY_CLIENT_SECRET"),
		OptimizelyAPIURL:          os.Getenv("OPTIMIZELY_API_URL"),
		OptimizelyGraphQLEndpoint: os.Getenv("OPTIMIZELY_GRAPHQL_ENDPOINT"),
		OptimizelyAuthToken:       os.Getenv("OPTIMIZELY_AUTH_TOKEN"),
		CMSAPISecretKey:           os.Getenv("CMS_API_SECRET_KEY"),

		S3Endpoint:     os.Getenv("S3_ENDPOINT"),
		S3Region:       str("S3_REGION", "us-east-1"),
		S3AccessKey:    os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:    os.Getenv("S3_SECRET_KEY"),
		S3BucketPublic: str("S3_BUCKET_PUBLIC", "broadcaster-public"),
		S3PublicURL:    os.Getenv("S3_PUBLIC_URL"),

		RateLimitPerMinute: parsed("RATE_LIMIT_PER_MINUTE", 60, strconv.Atoi),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

const defaultDBPassword = "changeme"

// validate reports every production misconfiguration at once.
func (c *Config) validate() error {
	if c.Env != "production" {
		return nil
	}
	var errs []error
	if c.DBPassword == defaultDBPassword {
		errs = append(errs, errors.New("POSTGRES_PASSWORD must be set in production"))
	}
	if c.FacebookAppID != "" && c.FacebookAppSecret == "" {
		errs = append(errs, errors.New("FACEBOOK_APP_SECRET is required when FACEBOOK_APP_ID is set"))
	}
	if (c.S3AccessKey == "") != (c.S3SecretKey == "") {
		errs = append(errs, errors.New("S3_ACCESS_KEY and S3_SECRET_KEY must be set together"))
	}
	return errors.Join(errs...)
}

// DSN returns the PostgreSQL connection URL. Credentials are escaped.
func (c *Config) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     net.JoinHostPort(c.DBHost, c.DBPort),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// WriteTimeout is the HTTP write deadline. It outlasts a full fan-out so a
// batch cut at PublishBatchTimeout still gets its response written.
func (c *Config) WriteTimeout() time.Duration {
	return c.PublishBatchTimeout + 15*time.Second
}

// IsDev reports whether the application runs in development mode.
func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func str(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// parsed reads key through parse. Unset keys and values parse rejects
// yield fallback.
func parsed[T any](key string, fallback T, parse func(string) (T, error)) T {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	out, err := parse(v)
	if err != nil {
		slog.Warn("invalid value in environment, using default", "key", key, "value", v, "error", err)
		return fallback
	}
	return out
}

func positiveDuration(v string) (time.Duration, error) {
	d, err := time.ParseDuration(v)
	if err == nil && d <= 0 {
		err = fmt.Errorf("duration %s is not positive", d)
	}
	return d, err
}

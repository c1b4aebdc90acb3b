// Package config loads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"wvjwtsso.org/internal/issuer"
)

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig
	Issuer  issuer.Config
	Session SessionConfig
	Log     LogConfig

	// WorkvivoBaseURL is handed to the welcome page untouched.
	WorkvivoBaseURL string

	parseErrs []error
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port              string
	LoginRedirectPath string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	LoginRatePerSec   int
	LoginRateBurst    int
	// TrustProxyHeaders keys rate limiting on X-Forwarded-For. Enable only
	// behind a proxy that overwrites the header.
	TrustProxyHeaders bool
}

// SessionConfig selects and tunes the session backend.
type SessionConfig struct {
	Backend      string // memory | redis | postgres
	RedisURL     string
	PostgresDSN  string
	TTL          time.Duration
	CookieSecure bool
}

// LogConfig controls logging.
type LogConfig struct {
	Level         string
	AccessLogPath string
}

// Load reads the environment. An optional .env file under APP_ROOT (or the
// working directory when unset) supplies values the process environment
// leaves empty. Relative key paths resolve against the same root.
func Load() (*Config, error) {
	root := strings.TrimSpace(os.Getenv("APP_ROOT"))
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve working directory: %w", err)
		}
		root = wd
	}
	env, err := newEnv(filepath.Join(root, ".env"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:              env.str("PORT", "8790"),
			LoginRedirectPath: env.str("LOGIN_REDIRECT_PATH", "/wvjwtsso/"),
			ReadTimeout:       env.duration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:      env.duration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:       env.duration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout:   env.duration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			LoginRatePerSec:   env.int("LOGIN_RATE_PER_SEC", 5),
			LoginRateBurst:    env.int("LOGIN_RATE_BURST", 10),
			TrustProxyHeaders: env.bool("TRUST_PROXY_HEADERS", false),
		},
		Issuer: issuer.Config{
			Issuer:         env.str("JWT_ISS", ""),
			Audience:       env.str("JWT_AUD", ""),
			OrganisationID: env.str("JWT_ORGANISATION_ID", ""),
			PrivateKeyPath: resolvePath(root, env.str("JWT_PRIVATE_KEY_PATH", "")),
			JWKSPath:       resolvePath(root, env.str("JWKS_PATH", "")),
			KeyID:          env.str("JWT_KID", ""),
			ReadTimeout:    env.duration("KEY_READ_TIMEOUT", 5*time.Second),
		},
		Session: SessionConfig{
			Backend:      strings.ToLower(env.str("SESSION_BACKEND", "memory")),
			RedisURL:     env.str("SESSION_REDIS_URL", ""),
			PostgresDSN:  env.str("SESSION_PG_DSN", ""),
			TTL:          env.duration("SESSION_TTL", 24*time.Hour),
			CookieSecure: env.bool("SESSION_COOKIE_SECURE", false),
		},
		Log: LogConfig{
			Level:         env.str("LOG_LEVEL", "info"),
			AccessLogPath: resolvePath(root, env.str("ACCESS_LOG_PATH", "")),
		},
		WorkvivoBaseURL: env.str("WORKVIVO_BASE_URL", ""),
	}
	cfg.parseErrs = env.errs

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate reports every missing or malformed setting at once.
func (c *Config) Validate() error {
	errs := append([]error(nil), c.parseErrs...)
	required := map[string]string{
		"JWT_PRIVATE_KEY_PATH": c.Issuer.PrivateKeyPath,
		"JWKS_PATH":            c.Issuer.JWKSPath,
		"JWT_ISS":              c.Issuer.Issuer,
		"JWT_AUD":              c.Issuer.Audience,
		"JWT_ORGANISATION_ID":  c.Issuer.OrganisationID,
		"WORKVIVO_BASE_URL":    c.WorkvivoBaseURL,
	}
	for _, name := range []string{"JWT_PRIVATE_KEY_PATH", "JWKS_PATH", "JWT_ISS", "JWT_AUD", "JWT_ORGANISATION_ID", "WORKVIVO_BASE_URL"} {
		if strings.TrimSpace(required[name]) == "" {
			errs = append(errs, fmt.Errorf("%s is required", name))
		}
	}
	if c.Issuer.OrganisationID != "" {
		if _, err := c.Issuer.OrganisationIDInt(); err != nil {
			errs = append(errs, fmt.Errorf("JWT_ORGANISATION_ID: %w", err))
		}
	}
	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		errs = append(errs, fmt.Errorf("PORT %q is not a number", c.Server.Port))
	}
	if !strings.HasPrefix(c.Server.LoginRedirectPath, "/") {
		errs = append(errs, errors.New("LOGIN_REDIRECT_PATH must start with /"))
	}
	switch c.Session.Backend {
	case "memory":
	case "redis":
		if c.Session.RedisURL == "" {
			errs = append(errs, errors.New("SESSION_REDIS_URL is required for the redis backend"))
		}
	case "postgres":
		if c.Session.PostgresDSN == "" {
			errs = append(errs, errors.New("SESSION_PG_DSN is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown SESSION_BACKEND %q", c.Session.Backend))
	}
	if c.Server.LoginRatePerSec <= 0 || c.Server.LoginRateBurst <= 0 {
		errs = append(errs, errors.New("login rate limits must be positive"))
	}
	return errors.Join(errs...)
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return ":" + c.Server.Port
}

func resolvePath(root, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}

// env resolves settings from the process environment first, then the
// optional .env file, and collects malformed values for Validate.
type env struct {
	file map[string]string
	errs []error
}

func newEnv(dotenv string) (*env, error) {
	file, err := godotenv.Read(dotenv)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read %s: %w", dotenv, err)
		}
		file = map[string]string{}
	}
	return &env{file: file}, nil
}

func (e *env) str(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	if v := strings.TrimSpace(e.file[key]); v != "" {
		return v
	}
	return fallback
}

func (e *env) int(key string, fallback int) int {
	v := e.str(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s %q is not an integer", key, v))
		return fallback
	}
	return n
}

func (e *env) bool(key string, fallback bool) bool {
	v := e.str(key, "")
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s %q is not a boolean", key, v))
		return fallback
	}
	return b
}

func (e *env) duration(key string, fallback time.Duration) time.Duration {
	v := e.str(key, "")
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s %q is not a duration (e.g. 5s, 250ms)", key, v))
		return fallback
	}
	return d
}

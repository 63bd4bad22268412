// Package config provides configuration loading for the agent identity
// service. It handles environment variable parsing and provides defaults
// for all settings.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// init loads environment variables from .env files during package
// initialization. godotenv.Load does not override already-set variables,
// preserving OS env > .env precedence.
func init() {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to load .env file: %v\n", err)
		}
	}
	if _, err := os.Stat(".env.local"); err == nil {
		if err := godotenv.Load(".env.local"); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to load .env.local file: %v\n", err)
		}
	}
}

// Config captures environment-driven settings for the service.
type Config struct {
	Env                string        // Deployment environment (dev, staging, prod)
	Address            string        // Operational HTTP server address
	MetricsAddress     string        // Metrics server address
	DatabaseDSN        string        // PostgreSQL connection string
	StoreBackend       string        // Storage backend (memory, postgres)
	SignatureTolerance time.Duration // Symmetric timestamp tolerance for signatures
	ReplayTTL          time.Duration // Age after which replay entries are swept
	ReplaySweepEvery   time.Duration // Interval between replay sweeps
	ResolverTimeout    time.Duration // HTTP timeout for DID document fetches
	SessionTTL         time.Duration // Lifetime of issued session tokens
	JWTSigningKey      []byte        // Ed25519 private key for session tokens
	JWTIssuer          string        // Issuer claim for session tokens
	JWTAudience        string        // Audience claim for session tokens
	WellKnownDocPath   string        // Optional path to a DID document served at /.well-known/did.json
}

// Defaults used when environment variables are not set.
const (
	defaultAddress          = ":8080"
	defaultMetricsAddress   = ":9090"
	defaultTolerance        = 5 * time.Minute
	defaultReplayTTL        = time.Hour
	defaultReplaySweepEvery = 5 * time.Minute
	defaultResolverTimeout  = 10 * time.Second
	defaultSessionTTL       = 10 * time.Minute
	defaultIssuer           = "agentcommons-identity"
	defaultAudience         = "agentcommons-local"
)

// Load reads environment variables and produces a Config suitable for
// wiring the service.
func Load() (Config, error) {
	cfg := Config{
		Env:              getEnv("AC_ENV", "dev"),
		Address:          getEnv("AC_HTTP_ADDR", defaultAddress),
		MetricsAddress:   getEnv("AC_METRICS_ADDR", defaultMetricsAddress),
		DatabaseDSN:      os.Getenv("AC_DB_DSN"),
		StoreBackend:     strings.ToLower(getEnv("AC_STORE_BACKEND", "memory")),
		JWTIssuer:        getEnv("AC_JWT_ISSUER", defaultIssuer),
		JWTAudience:      getEnv("AC_JWT_AUD", defaultAudience),
		WellKnownDocPath: os.Getenv("AC_WELL_KNOWN_DOC"),
	}

	var err error
	if cfg.SignatureTolerance, err = durationEnv("AC_SIGNATURE_TOLERANCE_MS", time.Millisecond, defaultTolerance); err != nil {
		return Config{}, err
	}
	if cfg.ReplayTTL, err = durationEnv("AC_REPLAY_TTL_SECONDS", time.Second, defaultReplayTTL); err != nil {
		return Config{}, err
	}
	if cfg.ReplaySweepEvery, err = durationEnv("AC_REPLAY_SWEEP_SECONDS", time.Second, defaultReplaySweepEvery); err != nil {
		return Config{}, err
	}
	if cfg.ResolverTimeout, err = durationEnv("AC_RESOLVER_TIMEOUT_SECONDS", time.Second, defaultResolverTimeout); err != nil {
		return Config{}, err
	}
	if cfg.SessionTTL, err = durationEnv("AC_SESSION_TTL_SECONDS", time.Second, defaultSessionTTL); err != nil {
		return Config{}, err
	}

	// Session tokens are optional: the signing key is only required when
	// a key is supplied at all, so verification-only deployments run
	// without one.
	if signingKey, exists := os.LookupEnv("AC_JWT_SIGNING_KEY"); exists {
		keyBytes, err := base64.StdEncoding.DecodeString(signingKey)
		if err != nil {
			return Config{}, fmt.Errorf("invalid AC_JWT_SIGNING_KEY base64: %w", err)
		}
		cfg.JWTSigningKey = keyBytes
	}

	if cfg.StoreBackend == "postgres" && cfg.DatabaseDSN == "" {
		return Config{}, fmt.Errorf("AC_DB_DSN is required when AC_STORE_BACKEND=postgres")
	}

	return cfg, nil
}

// getEnv retrieves an environment variable value, returning a fallback
// when not set or empty.
func getEnv(key, fallback string) string {
	if v, exists := os.LookupEnv(key); exists && v != "" {
		return v
	}
	return fallback
}

// durationEnv parses a positive integer environment variable into a
// duration at the given unit, falling back when unset.
func durationEnv(key string, unit, fallback time.Duration) (time.Duration, error) {
	raw, exists := os.LookupEnv(key)
	if !exists {
		return fallback, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("invalid %s: value must be > 0", key)
	}
	return time.Duration(n) * unit, nil
}

// Package config builds runtime configuration from environment variables so
// main stays lean.
package config

import (
	"os"
	"strings"
	"time"
)

// Backend selects the durable medium for audits and reference data.
type Backend string

const (
	BackendMemory   Backend = "memory"
	BackendFile     Backend = "file"
	BackendWorkbook Backend = "workbook"
)

// Server captures the full service configuration.
type Server struct {
	Addr string

	// Backend picks one persistence medium per deployment, never a mix.
	Backend Backend
	DataDir string

	// Audit and reference workbooks are separate files: each store owns its
	// handle and rewrites the whole file on save.
	WorkbookPath          string
	ReferenceWorkbookPath string

	LoginUser     string
	LoginPassword string
	AdminPassword string

	JWTSigningKey string
	SessionTTL    time.Duration

	// ReferenceCacheTTL bounds staleness for read-mostly reference data.
	// Mutations invalidate synchronously regardless of this value.
	ReferenceCacheTTL time.Duration
}

// FromEnv reads configuration from ROUTEAUDIT_* variables, applying
// development defaults for everything except credentials.
func FromEnv() Server {
	cfg := Server{
		Addr:                  envOrDefault("ROUTEAUDIT_ADDR", ":8080"),
		Backend:               Backend(strings.ToLower(envOrDefault("ROUTEAUDIT_BACKEND", string(BackendFile)))),
		DataDir:               envOrDefault("ROUTEAUDIT_DATA_DIR", "data/audits"),
		WorkbookPath:          envOrDefault("ROUTEAUDIT_WORKBOOK", "data/routeaudit.xlsx"),
		ReferenceWorkbookPath: envOrDefault("ROUTEAUDIT_REFERENCE_WORKBOOK", "data/reference.xlsx"),
		LoginUser:             strings.TrimSpace(os.Getenv("ROUTEAUDIT_LOGIN_USER")),
		LoginPassword:         os.Getenv("ROUTEAUDIT_LOGIN_PASS"),
		AdminPassword:         os.Getenv("ROUTEAUDIT_ADMIN_PASS"),
		JWTSigningKey:         os.Getenv("ROUTEAUDIT_JWT_KEY"),
		SessionTTL:            12 * time.Hour,
		ReferenceCacheTTL:     5 * time.Minute,
	}
	if cfg.JWTSigningKey == "" {
		// Development default; override in any real deployment.
		cfg.JWTSigningKey = "dev-secret-key-change-in-production"
	}
	if ttl := os.Getenv("ROUTEAUDIT_SESSION_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil && d > 0 {
			cfg.SessionTTL = d
		}
	}
	if ttl := os.Getenv("ROUTEAUDIT_REFDATA_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil && d > 0 {
			cfg.ReferenceCacheTTL = d
		}
	}
	return cfg
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

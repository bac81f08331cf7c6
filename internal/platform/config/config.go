// Package config loads and validates process configuration from the
// environment. Configuration errors fail fast at startup; nothing here is
// re-validated on the request path.
package config

import (
	"fmt"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"

	"vigil/internal/routes"
	id "vigil/pkg/domain"
)

// Config is the root application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Hygiene  HygieneConfig
	Log      LogConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string `env:"VIGIL_ADDR" env-default:":8080"`
	ShutdownTimeout int    `env:"VIGIL_SHUTDOWN_TIMEOUT_SECONDS" env-default:"10"`
}

// DatabaseConfig holds PostgreSQL connection settings. An empty DSN selects
// the in-memory stores (demo and test mode).
type DatabaseConfig struct {
	DSN string `env:"VIGIL_DSN"`
}

// AuthConfig holds token verification settings. Vigil only verifies tokens
// issued by the surrounding identity system; the admin token is its own
// shared secret for the operator surface.
type AuthConfig struct {
	JWTSigningKey string `env:"VIGIL_JWT_SIGNING_KEY" env-default:"dev-secret-key-change-in-production"`
	AdminToken    string `env:"VIGIL_ADMIN_TOKEN" env-default:"dev-admin-token-change-in-production"`
}

// HygieneConfig holds the policy windows and enforcement routing.
type HygieneConfig struct {
	VerificationExpiryDays int    `env:"VERIFICATION_EXPIRY_DAYS" env-default:"30"`
	PasswordExpiryDays     int    `env:"PASSWORD_EXPIRY_DAYS" env-default:"30"`
	RedirectRoute          string `env:"VIGIL_REDIRECT_ROUTE" env-default:"verification.notice"`
	ExemptRoutes           string `env:"VIGIL_EXEMPT_ROUTES" env-default:"verification.notice,verification.verify,verification.send,password.request,password.reset,password.update,logout"`
	DefaultPrincipalKind   string `env:"VIGIL_DEFAULT_PRINCIPAL_KIND" env-default:"user"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `env:"LOG_LEVEL" env-default:"info"`
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}

// Validate enforces startup invariants: positive windows, resolvable route
// names, and an exemption set that covers every route required to recover
// from a failed check.
func (c *Config) Validate() error {
	if c.Hygiene.VerificationExpiryDays <= 0 {
		return fmt.Errorf("verification expiry days must be positive, got %d", c.Hygiene.VerificationExpiryDays)
	}
	if c.Hygiene.PasswordExpiryDays <= 0 {
		return fmt.Errorf("password expiry days must be positive, got %d", c.Hygiene.PasswordExpiryDays)
	}
	if c.Hygiene.DefaultPrincipalKind == "" {
		return fmt.Errorf("default principal kind is required")
	}
	if strings.TrimSpace(c.Auth.AdminToken) == "" {
		return fmt.Errorf("admin token is required")
	}
	if _, err := routes.PathOf(c.Hygiene.RedirectRoute); err != nil {
		return fmt.Errorf("redirect route: %w", err)
	}

	exempt := c.ExemptRouteSet()
	for _, name := range exempt {
		if _, err := routes.PathOf(name); err != nil {
			return fmt.Errorf("exempt route: %w", err)
		}
	}
	for _, required := range routes.RequiredExemptions {
		if !contains(exempt, required) {
			return fmt.Errorf("exempt routes must include %q", required)
		}
	}
	return nil
}

// ExemptRouteSet returns the configured exemption list, trimmed.
func (c *Config) ExemptRouteSet() []string {
	parts := strings.Split(c.Hygiene.ExemptRoutes, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if name := strings.TrimSpace(p); name != "" {
			out = append(out, name)
		}
	}
	return out
}

// DefaultKind returns the configured default principal kind.
func (c *Config) DefaultKind() id.PrincipalKind {
	return id.PrincipalKind(c.Hygiene.DefaultPrincipalKind)
}

func contains(set []string, want string) bool {
	for _, s := range set {
		if s == want {
			return true
		}
	}
	return false
}

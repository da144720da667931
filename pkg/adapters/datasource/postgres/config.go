package postgres

import (
	"fmt"
	"net/url"
)

// Config identifies a reachable PostgreSQL database. Instances are rebuilt
// from the encrypted store on every request and discarded after use; the
// password only ever lives in memory.
type Config struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	// SSLMode follows libpq semantics: "disable" forces plaintext,
	// "require"/"verify-ca"/"verify-full" force TLS, and "prefer"/"allow"
	// let the driver negotiate (attempt TLS, fall back to plaintext).
	SSLMode string
}

// DefaultPort returns the default PostgreSQL port.
func DefaultPort() int {
	return 5432
}

// Validate checks the fields a connection attempt cannot do without.
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.Database == "" {
		return fmt.Errorf("database is required")
	}
	if c.User == "" {
		return fmt.Errorf("user is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	switch c.SSLMode {
	case "", "disable", "allow", "prefer", "require", "verify-ca", "verify-full":
	default:
		return fmt.Errorf("invalid ssl_mode: %s", c.SSLMode)
	}
	return nil
}

// DSN builds a PostgreSQL URL with proper escaping. All user-provided fields
// are URL-escaped so passwords containing @, /, # or ? do not break parsing.
func (c *Config) DSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}

	return fmt.Sprintf(
		"postgresql://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		url.QueryEscape(c.Database),
		sslMode,
	)
}

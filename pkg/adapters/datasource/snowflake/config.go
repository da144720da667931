package snowflake

import (
	"fmt"

	"github.com/snowflakedb/gosnowflake"
)

// Config identifies a Snowflake account and the session context to run under.
// Warehouse, schema and role are optional; the account defaults apply when
// they are empty.
type Config struct {
	Account   string
	User      string
	Password  string
	Database  string
	Schema    string
	Warehouse string
	Role      string
}

// Validate checks the fields a connection attempt cannot do without.
func (c *Config) Validate() error {
	if c.Account == "" {
		return fmt.Errorf("account is required")
	}
	if c.User == "" {
		return fmt.Errorf("user is required")
	}
	if c.Database == "" {
		return fmt.Errorf("database is required")
	}
	return nil
}

// DSN builds a driver connection string. gosnowflake handles escaping and
// account-locator parsing, so fields pass through untouched.
func (c *Config) DSN() (string, error) {
	cfg := &gosnowflake.Config{
		Account:   c.Account,
		User:      c.User,
		Password:  c.Password,
		Database:  c.Database,
		Schema:    c.Schema,
		Warehouse: c.Warehouse,
		Role:      c.Role,
	}
	dsn, err := gosnowflake.DSN(cfg)
	if err != nil {
		return "", fmt.Errorf("build snowflake dsn: %w", err)
	}
	return dsn, nil
}

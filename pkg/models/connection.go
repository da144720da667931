package models

import (
	"time"

	"github.com/google/uuid"
)

// Connection type discriminators. The type selects which adapter serves the
// connection's queries.
const (
	ConnectionTypePostgres  = "postgres"
	ConnectionTypeSnowflake = "snowflake"
	ConnectionTypeBigQuery  = "bigquery"
)

// Connection is a stored external-database connection. The Config field holds
// type-specific connection details (host, account, user, ...) with the secret
// material replaced by an encrypted blob at rest; the service layer decrypts
// per request and never hands plaintext secrets back out.
type Connection struct {
	ID              uuid.UUID      `json:"id"`
	Name            string         `json:"name"`
	Type            string         `json:"type"`
	Config          map[string]any `json:"config"`
	EncryptedSecret string         `json:"-"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// ValidType reports whether t names a supported connection type.
func ValidType(t string) bool {
	switch t {
	case ConnectionTypePostgres, ConnectionTypeSnowflake, ConnectionTypeBigQuery:
		return true
	}
	return false
}

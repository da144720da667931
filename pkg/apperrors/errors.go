// Package apperrors defines the stable error categories the engine exposes to
// its callers. Driver errors are wrapped into one of these categories at the
// adapter boundary so handlers never pattern-match on vendor exception types.
package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")

	// ErrDecryptionFailed is returned when stored credential ciphertext cannot
	// be decrypted (wrong key, corrupted data, tampering). Fatal to the request.
	ErrDecryptionFailed = errors.New("decryption failed: invalid ciphertext or wrong key")

	// ErrInvalidIdentifier is returned by identifier quoting on empty or
	// oversized input. A programming/input error, never transient.
	ErrInvalidIdentifier = errors.New("invalid identifier")
)

// ConnectivityError indicates that establishing a connection, session, or pool
// failed (auth rejected, host unreachable, database or warehouse missing, TLS
// failure). The underlying driver error is preserved for classification.
type ConnectivityError struct {
	Err error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("connection failed: %v", e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// Connectivity wraps err as a ConnectivityError. Returns nil for nil err.
func Connectivity(err error) error {
	if err == nil {
		return nil
	}
	return &ConnectivityError{Err: err}
}

// IsConnectivity reports whether err is (or wraps) a ConnectivityError.
func IsConnectivity(err error) bool {
	var ce *ConnectivityError
	return errors.As(err, &ce)
}

// QueryError indicates that a syntactically accepted statement failed at the
// backend (bad SQL, permission denied, missing object). Surfaced verbatim and
// never retried.
type QueryError struct {
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query execution failed: %v", e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// Query wraps err as a QueryError. Returns nil for nil err.
func Query(err error) error {
	if err == nil {
		return nil
	}
	return &QueryError{Err: err}
}

// IsQuery reports whether err is (or wraps) a QueryError.
func IsQuery(err error) bool {
	var qe *QueryError
	return errors.As(err, &qe)
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/querybench/querybench-engine/pkg/apperrors"
)

// TranslateError classifies a driver error into a connectivity or query
// failure with a message safe to show to a caller. Structured SQLSTATE codes
// are consulted first; message substrings only cover errors that never reach
// the server (DNS, refused sockets) and so carry no SQLSTATE.
func TranslateError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "28P01" || pgErr.Code == "28000":
			return apperrors.Connectivity(fmt.Errorf("authentication failed for the supplied user"))
		case pgErr.Code == "3D000":
			return apperrors.Connectivity(fmt.Errorf("database does not exist"))
		case strings.HasPrefix(pgErr.Code, "08"):
			return apperrors.Connectivity(err)
		case pgErr.Code == "57014":
			return apperrors.Query(fmt.Errorf("statement timed out"))
		}
		return apperrors.Query(err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Connectivity(fmt.Errorf("connection timed out"))
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "password authentication failed"):
		return apperrors.Connectivity(fmt.Errorf("authentication failed for the supplied user"))
	case strings.Contains(msg, "no such host"),
		strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "i/o timeout"):
		return apperrors.Connectivity(err)
	case strings.Contains(msg, "does not exist"):
		return apperrors.Connectivity(err)
	}

	return apperrors.Query(err)
}

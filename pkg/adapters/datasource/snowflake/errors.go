package snowflake

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/snowflakedb/gosnowflake"

	"github.com/querybench/querybench-engine/pkg/apperrors"
)

// authFailedNumber is the server error for bad credentials
// ("Incorrect username or password was specified").
const authFailedNumber = 390100

// TranslateError classifies a driver error into a connectivity or query
// failure. The structured error number and SQLSTATE are consulted first;
// message substrings only cover failures the driver reports without either.
func TranslateError(err error) error {
	if err == nil {
		return nil
	}

	var sfErr *gosnowflake.SnowflakeError
	if errors.As(err, &sfErr) {
		switch {
		case sfErr.Number == authFailedNumber || sfErr.SQLState == "28000":
			return apperrors.Connectivity(fmt.Errorf("authentication failed for the supplied user"))
		case strings.HasPrefix(sfErr.SQLState, "08"):
			return apperrors.Connectivity(err)
		case sfErr.Number >= 390000 && sfErr.Number < 400000:
			// Session and login class: expired tokens, suspended users,
			// unauthorized roles.
			return apperrors.Connectivity(err)
		case sfErr.Number >= 260000 && sfErr.Number < 270000:
			// Client-side transport failures.
			return apperrors.Connectivity(err)
		}
		return apperrors.Query(err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Connectivity(fmt.Errorf("connection timed out"))
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "Incorrect username or password"):
		return apperrors.Connectivity(fmt.Errorf("authentication failed for the supplied user"))
	case strings.Contains(msg, "no such host"),
		strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "i/o timeout"),
		strings.Contains(msg, "failed to connect"):
		return apperrors.Connectivity(err)
	}

	return apperrors.Query(err)
}

// connectivityError classifies failures on the session construction and test
// paths. Nothing there runs user SQL, so an error TranslateError cannot place
// still means the session could not be reached and stays connectivity-classed.
func connectivityError(err error) error {
	if translated := TranslateError(err); apperrors.IsConnectivity(translated) {
		return translated
	}
	return apperrors.Connectivity(err)
}

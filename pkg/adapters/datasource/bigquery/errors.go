package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"

	"github.com/querybench/querybench-engine/pkg/apperrors"
)

// TranslateError classifies an SDK error into a connectivity or query
// failure. The structured HTTP status is consulted first.
func TranslateError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return apperrors.Connectivity(fmt.Errorf("authentication failed for the supplied credentials"))
		case http.StatusNotFound:
			return apperrors.Connectivity(fmt.Errorf("project or dataset does not exist"))
		case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
			return apperrors.Connectivity(err)
		}
		return apperrors.Query(err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Connectivity(fmt.Errorf("connection timed out"))
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "could not find default credentials"),
		strings.Contains(msg, "invalid_grant"):
		return apperrors.Connectivity(err)
	case strings.Contains(msg, "no such host"),
		strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "i/o timeout"):
		return apperrors.Connectivity(err)
	}

	return apperrors.Query(err)
}

package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/querybench/querybench-engine/pkg/apperrors"
)

func TestTranslateError_Nil(t *testing.T) {
	assert.NoError(t, TranslateError(nil))
}

func TestTranslateError_SQLStateCodes(t *testing.T) {
	tests := []struct {
		name         string
		code         string
		connectivity bool
		contains     string
	}{
		{"invalid password", "28P01", true, "authentication failed"},
		{"invalid authorization", "28000", true, "authentication failed"},
		{"missing database", "3D000", true, "does not exist"},
		{"connection exception", "08000", true, ""},
		{"connection failure", "08006", true, ""},
		{"query canceled", "57014", false, "timed out"},
		{"syntax error", "42601", false, ""},
		{"undefined table", "42P01", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := TranslateError(&pgconn.PgError{Code: tt.code, Message: "driver detail"})
			if tt.connectivity {
				assert.True(t, apperrors.IsConnectivity(err))
			} else {
				assert.True(t, apperrors.IsQuery(err))
			}
			if tt.contains != "" {
				assert.Contains(t, err.Error(), tt.contains)
			}
		})
	}
}

func TestTranslateError_SQLStateWinsOverMessageText(t *testing.T) {
	// A server error whose message happens to mention "does not exist" must be
	// classified by its code, not the text.
	err := TranslateError(&pgconn.PgError{Code: "42P01", Message: `relation "users" does not exist`})
	assert.True(t, apperrors.IsQuery(err))
}

func TestTranslateError_DeadlineExceeded(t *testing.T) {
	err := TranslateError(context.DeadlineExceeded)
	assert.True(t, apperrors.IsConnectivity(err))
	assert.Contains(t, err.Error(), "timed out")
}

func TestTranslateError_MessageFallback(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		connectivity bool
	}{
		{"dns failure", errors.New(`dial tcp: lookup nohost: no such host`), true},
		{"refused socket", errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"), true},
		{"io timeout", errors.New("dial tcp 10.0.0.9:5432: i/o timeout"), true},
		{"auth text without code", errors.New(`password authentication failed for user "app"`), true},
		{"anything else", errors.New("unexpected EOF"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := TranslateError(tt.err)
			if tt.connectivity {
				assert.True(t, apperrors.IsConnectivity(err))
			} else {
				assert.True(t, apperrors.IsQuery(err))
			}
		})
	}
}

package bigquery

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/api/googleapi"

	"github.com/querybench/querybench-engine/pkg/apperrors"
)

func TestTranslateError_Nil(t *testing.T) {
	assert.NoError(t, TranslateError(nil))
}

func TestTranslateError_HTTPStatus(t *testing.T) {
	tests := []struct {
		name         string
		code         int
		connectivity bool
	}{
		{"unauthorized", 401, true},
		{"forbidden", 403, true},
		{"not found", 404, true},
		{"service unavailable", 503, true},
		{"bad request", 400, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := TranslateError(&googleapi.Error{Code: tt.code, Message: "detail"})
			if tt.connectivity {
				assert.True(t, apperrors.IsConnectivity(err))
			} else {
				assert.True(t, apperrors.IsQuery(err))
			}
		})
	}
}

func TestTranslateError_Fallbacks(t *testing.T) {
	assert.True(t, apperrors.IsConnectivity(TranslateError(context.DeadlineExceeded)))
	assert.True(t, apperrors.IsConnectivity(TranslateError(errors.New("oauth2: cannot fetch token: invalid_grant"))))
	assert.True(t, apperrors.IsQuery(TranslateError(errors.New("unexpected EOF"))))
}

func TestConfigValidate(t *testing.T) {
	valid := &Config{ProjectID: "my-project", CredentialsJSON: []byte(`{"type":"service_account"}`)}
	assert.NoError(t, valid.Validate())

	assert.Error(t, (&Config{CredentialsJSON: []byte("{}")}).Validate())
	assert.Error(t, (&Config{ProjectID: "my-project"}).Validate())
}

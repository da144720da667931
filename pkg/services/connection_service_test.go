package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	bqds "github.com/querybench/querybench-engine/pkg/adapters/datasource/bigquery"
	pgds "github.com/querybench/querybench-engine/pkg/adapters/datasource/postgres"
	sfds "github.com/querybench/querybench-engine/pkg/adapters/datasource/snowflake"
	"github.com/querybench/querybench-engine/pkg/apperrors"
	"github.com/querybench/querybench-engine/pkg/crypto"
	"github.com/querybench/querybench-engine/pkg/models"
)

const testKey = "dGVzdC1rZXktZm9yLXVuaXQtdGVzdHMtMzItYnl0ZXM="

// fakeConnectionRepo is an in-memory ConnectionRepository.
type fakeConnectionRepo struct {
	byID    map[uuid.UUID]*models.Connection
	creates int
	deletes int
}

func newFakeRepo() *fakeConnectionRepo {
	return &fakeConnectionRepo{byID: map[uuid.UUID]*models.Connection{}}
}

func (r *fakeConnectionRepo) Create(ctx context.Context, conn *models.Connection) error {
	r.creates++
	if conn.ID == uuid.Nil {
		conn.ID = uuid.New()
	}
	for _, existing := range r.byID {
		if existing.Name == conn.Name {
			return fmt.Errorf("connection name %q: %w", conn.Name, apperrors.ErrConflict)
		}
	}
	r.byID[conn.ID] = conn
	return nil
}

func (r *fakeConnectionRepo) Get(ctx context.Context, id uuid.UUID) (*models.Connection, error) {
	conn, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("connection %s: %w", id, apperrors.ErrNotFound)
	}
	return conn, nil
}

func (r *fakeConnectionRepo) List(ctx context.Context) ([]*models.Connection, error) {
	out := make([]*models.Connection, 0, len(r.byID))
	for _, conn := range r.byID {
		out = append(out, conn)
	}
	return out, nil
}

func (r *fakeConnectionRepo) Update(ctx context.Context, conn *models.Connection) error {
	if _, ok := r.byID[conn.ID]; !ok {
		return fmt.Errorf("connection %s: %w", conn.ID, apperrors.ErrNotFound)
	}
	r.byID[conn.ID] = conn
	return nil
}

func (r *fakeConnectionRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := r.byID[id]; !ok {
		return fmt.Errorf("connection %s: %w", id, apperrors.ErrNotFound)
	}
	r.deletes++
	delete(r.byID, id)
	return nil
}

func testService(t *testing.T, repo *fakeConnectionRepo) *ConnectionService {
	t.Helper()
	cipher, err := crypto.NewSecretCipher(testKey)
	require.NoError(t, err)

	logger := zap.NewNop()
	return NewConnectionService(
		repo,
		cipher,
		pgds.NewPoolManager(pgds.ManagerConfig{}, logger),
		sfds.NewSessionManager(sfds.ManagerConfig{}, logger),
		bqds.NewClientManager(logger),
		9000,
		logger,
	)
}

func TestCreate_RejectsInvalidInputBeforeAnyWork(t *testing.T) {
	repo := newFakeRepo()
	svc := testService(t, repo)
	ctx := context.Background()

	cases := []ConnectionInput{
		{Type: "postgres", Config: map[string]any{}},               // no name
		{Name: "x", Type: "oracle", Config: map[string]any{}},      // unknown type
		{Name: "x", Type: "postgres"},                              // no config
	}
	for _, input := range cases {
		_, err := svc.Create(ctx, input)
		assert.Error(t, err)
	}
	assert.Equal(t, 0, repo.creates)
}

func TestDelete_RemovesStoredConnection(t *testing.T) {
	repo := newFakeRepo()
	svc := testService(t, repo)
	ctx := context.Background()

	cipher, err := crypto.NewSecretCipher(testKey)
	require.NoError(t, err)
	encrypted, err := cipher.Encrypt("pw")
	require.NoError(t, err)

	conn := &models.Connection{
		Name:            "prod",
		Type:            models.ConnectionTypePostgres,
		Config:          map[string]any{"host": "db", "database": "app", "user": "u"},
		EncryptedSecret: encrypted,
	}
	require.NoError(t, repo.Create(ctx, conn))

	require.NoError(t, svc.Delete(ctx, conn.ID))
	assert.Equal(t, 1, repo.deletes)

	err = svc.Delete(ctx, conn.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestUpdate_RejectsTypeChange(t *testing.T) {
	repo := newFakeRepo()
	svc := testService(t, repo)
	ctx := context.Background()

	cipher, err := crypto.NewSecretCipher(testKey)
	require.NoError(t, err)
	encrypted, err := cipher.Encrypt("pw")
	require.NoError(t, err)

	conn := &models.Connection{
		Name:            "prod",
		Type:            models.ConnectionTypePostgres,
		Config:          map[string]any{"host": "db"},
		EncryptedSecret: encrypted,
	}
	require.NoError(t, repo.Create(ctx, conn))

	_, err = svc.Update(ctx, conn.ID, ConnectionInput{
		Name:   "prod",
		Type:   models.ConnectionTypeSnowflake,
		Config: map[string]any{"account": "a"},
	})
	assert.ErrorContains(t, err, "type cannot change")
}

func TestQuery_UnknownConnection(t *testing.T) {
	svc := testService(t, newFakeRepo())
	_, err := svc.Query(context.Background(), uuid.New(), "SELECT 1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestQuery_CorruptSecretSurfacesDecryptionFailure(t *testing.T) {
	repo := newFakeRepo()
	svc := testService(t, repo)
	ctx := context.Background()

	conn := &models.Connection{
		Name:            "prod",
		Type:            models.ConnectionTypePostgres,
		Config:          map[string]any{"host": "db"},
		EncryptedSecret: "not-a-ciphertext",
	}
	require.NoError(t, repo.Create(ctx, conn))

	_, err := svc.Query(ctx, conn.ID, "SELECT 1")
	assert.ErrorIs(t, err, apperrors.ErrDecryptionFailed)
}

func TestPostgresConfig_FieldMapping(t *testing.T) {
	cfg := postgresConfig(map[string]any{
		"host":     "db.example.com",
		"port":     float64(5433), // JSON decode shape
		"database": "app",
		"user":     "reader",
		"ssl_mode": "require",
	}, "pw")

	assert.Equal(t, "db.example.com", cfg.Host)
	assert.Equal(t, 5433, cfg.Port)
	assert.Equal(t, "app", cfg.Database)
	assert.Equal(t, "reader", cfg.User)
	assert.Equal(t, "pw", cfg.Password)
	assert.Equal(t, "require", cfg.SSLMode)
}

func TestPostgresConfig_DefaultPort(t *testing.T) {
	cfg := postgresConfig(map[string]any{"host": "db"}, "pw")
	assert.Equal(t, 5432, cfg.Port)
}

func TestSnowflakeConfig_FieldMapping(t *testing.T) {
	cfg := snowflakeConfig(map[string]any{
		"account":   "org-acct",
		"user":      "reader",
		"database":  "ANALYTICS",
		"schema":    "PUBLIC",
		"warehouse": "COMPUTE_WH",
		"role":      "ANALYST",
	}, "pw")

	assert.Equal(t, "org-acct", cfg.Account)
	assert.Equal(t, "ANALYTICS", cfg.Database)
	assert.Equal(t, "COMPUTE_WH", cfg.Warehouse)
	assert.Equal(t, "pw", cfg.Password)
}

func TestBigqueryConfig_SecretIsCredentialsJSON(t *testing.T) {
	cfg := bigqueryConfig(map[string]any{"project_id": "my-project"}, `{"type":"service_account"}`)
	assert.Equal(t, "my-project", cfg.ProjectID)
	assert.Equal(t, []byte(`{"type":"service_account"}`), cfg.CredentialsJSON)
}

package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/querybench/querybench-engine/pkg/adapters/datasource"
	bqds "github.com/querybench/querybench-engine/pkg/adapters/datasource/bigquery"
	pgds "github.com/querybench/querybench-engine/pkg/adapters/datasource/postgres"
	sfds "github.com/querybench/querybench-engine/pkg/adapters/datasource/snowflake"
	"github.com/querybench/querybench-engine/pkg/crypto"
	"github.com/querybench/querybench-engine/pkg/models"
	"github.com/querybench/querybench-engine/pkg/repositories"
)

// ConnectionInput carries the fields needed to create or update a stored
// connection. Secret is the plaintext credential (a password, or the
// service-account key JSON for BigQuery); it is encrypted before persistence
// and never returned.
type ConnectionInput struct {
	Name   string         `json:"name"`
	Type   string         `json:"type"`
	Config map[string]any `json:"config"`
	Secret string         `json:"secret"`
}

// ConnectionService owns the lifecycle of stored connections and dispatches
// queries to the adapter matching each connection's type.
type ConnectionService struct {
	repo     repositories.ConnectionRepository
	cipher   *crypto.SecretCipher
	pools    *pgds.PoolManager
	sessions *sfds.SessionManager
	clients  *bqds.ClientManager

	defaultBatchSize int
	logger           *zap.Logger
}

// NewConnectionService wires the service. The managers are process-wide
// singletons shared with shutdown handling.
func NewConnectionService(
	repo repositories.ConnectionRepository,
	cipher *crypto.SecretCipher,
	pools *pgds.PoolManager,
	sessions *sfds.SessionManager,
	clients *bqds.ClientManager,
	defaultBatchSize int,
	logger *zap.Logger,
) *ConnectionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConnectionService{
		repo:             repo,
		cipher:           cipher,
		pools:            pools,
		sessions:         sessions,
		clients:          clients,
		defaultBatchSize: defaultBatchSize,
		logger:           logger,
	}
}

// Create validates the credentials against the live database, then persists
// the connection with its secret encrypted. A connection that never worked is
// never stored.
func (s *ConnectionService) Create(ctx context.Context, input ConnectionInput) (*models.Connection, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	if err := s.testInput(ctx, input); err != nil {
		return nil, err
	}

	encrypted, err := s.cipher.Encrypt(input.Secret)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt secret: %w", err)
	}

	conn := &models.Connection{
		Name:            input.Name,
		Type:            input.Type,
		Config:          input.Config,
		EncryptedSecret: encrypted,
	}
	if err := s.repo.Create(ctx, conn); err != nil {
		return nil, err
	}

	s.logger.Info("created connection",
		zap.String("connection_id", conn.ID.String()),
		zap.String("type", conn.Type),
	)
	return conn, nil
}

// Get returns one stored connection. The secret stays encrypted and is not
// serialized.
func (s *ConnectionService) Get(ctx context.Context, id uuid.UUID) (*models.Connection, error) {
	return s.repo.Get(ctx, id)
}

// List returns all stored connections.
func (s *ConnectionService) List(ctx context.Context) ([]*models.Connection, error) {
	return s.repo.List(ctx)
}

// Update rewrites a connection's name, config and (when provided) secret.
// The new credentials are verified first, and any live resource is closed so
// the next query dials fresh.
func (s *ConnectionService) Update(ctx context.Context, id uuid.UUID, input ConnectionInput) (*models.Connection, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if input.Type != "" && input.Type != existing.Type {
		return nil, fmt.Errorf("connection type cannot change")
	}

	secret := input.Secret
	if secret == "" {
		secret, err = s.cipher.Decrypt(existing.EncryptedSecret)
		if err != nil {
			return nil, err
		}
	}

	probe := ConnectionInput{
		Name:   input.Name,
		Type:   existing.Type,
		Config: input.Config,
		Secret: secret,
	}
	if err := validateInput(probe); err != nil {
		return nil, err
	}
	if err := s.testInput(ctx, probe); err != nil {
		return nil, err
	}

	encrypted, err := s.cipher.Encrypt(secret)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt secret: %w", err)
	}

	existing.Name = input.Name
	existing.Config = input.Config
	existing.EncryptedSecret = encrypted
	if err := s.repo.Update(ctx, existing); err != nil {
		return nil, err
	}

	s.closeResource(ctx, existing)
	return existing, nil
}

// Delete removes a stored connection and closes its live resource, if any.
func (s *ConnectionService) Delete(ctx context.Context, id uuid.UUID) error {
	conn, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.closeResource(ctx, conn)
	s.logger.Info("deleted connection", zap.String("connection_id", id.String()))
	return nil
}

// Test verifies arbitrary credentials without storing anything or touching the
// resource caches.
func (s *ConnectionService) Test(ctx context.Context, input ConnectionInput) error {
	if err := validateInput(input); err != nil {
		return err
	}
	return s.testInput(ctx, input)
}

// TestStored verifies a stored connection's credentials.
func (s *ConnectionService) TestStored(ctx context.Context, id uuid.UUID) error {
	conn, secret, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	return s.testInput(ctx, ConnectionInput{
		Type:   conn.Type,
		Config: conn.Config,
		Secret: secret,
	})
}

// Query runs a statement on the stored connection and returns the full
// result set.
func (s *ConnectionService) Query(ctx context.Context, id uuid.UUID, query string) (*datasource.QueryResult, error) {
	conn, secret, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	switch conn.Type {
	case models.ConnectionTypePostgres:
		exec, err := s.pgExecutor(ctx, conn, secret)
		if err != nil {
			return nil, err
		}
		return exec.Run(ctx, query)
	case models.ConnectionTypeSnowflake:
		exec, err := s.sfExecutor(ctx, conn, secret)
		if err != nil {
			return nil, err
		}
		return exec.Run(ctx, query)
	case models.ConnectionTypeBigQuery:
		client, err := s.bqClient(ctx, conn, secret)
		if err != nil {
			return nil, err
		}
		return client.Run(ctx, query)
	}
	return nil, fmt.Errorf("unsupported connection type: %s", conn.Type)
}

// QueryPaginated runs a statement through the count-then-page protocol.
// A non-positive batch size falls back to the configured default.
func (s *ConnectionService) QueryPaginated(ctx context.Context, id uuid.UUID, query string, page datasource.Page) (*datasource.PageResult, error) {
	if page.BatchSize <= 0 {
		page.BatchSize = s.defaultBatchSize
	}
	if page.Offset < 0 {
		page.Offset = 0
	}

	conn, secret, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	switch conn.Type {
	case models.ConnectionTypePostgres:
		exec, err := s.pgExecutor(ctx, conn, secret)
		if err != nil {
			return nil, err
		}
		return exec.RunPaginated(ctx, query, page)
	case models.ConnectionTypeSnowflake:
		exec, err := s.sfExecutor(ctx, conn, secret)
		if err != nil {
			return nil, err
		}
		return exec.RunPaginated(ctx, query, page)
	case models.ConnectionTypeBigQuery:
		client, err := s.bqClient(ctx, conn, secret)
		if err != nil {
			return nil, err
		}
		return client.RunPaginated(ctx, query, page)
	}
	return nil, fmt.Errorf("unsupported connection type: %s", conn.Type)
}

// load fetches a stored connection and decrypts its secret for the duration
// of one request.
func (s *ConnectionService) load(ctx context.Context, id uuid.UUID) (*models.Connection, string, error) {
	conn, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	secret, err := s.cipher.Decrypt(conn.EncryptedSecret)
	if err != nil {
		return nil, "", err
	}
	return conn, secret, nil
}

func (s *ConnectionService) testInput(ctx context.Context, input ConnectionInput) error {
	switch input.Type {
	case models.ConnectionTypePostgres:
		return s.pools.Test(ctx, postgresConfig(input.Config, input.Secret))
	case models.ConnectionTypeSnowflake:
		return s.sessions.Test(ctx, snowflakeConfig(input.Config, input.Secret))
	case models.ConnectionTypeBigQuery:
		return s.clients.Test(ctx, bigqueryConfig(input.Config, input.Secret))
	}
	return fmt.Errorf("unsupported connection type: %s", input.Type)
}

func (s *ConnectionService) closeResource(ctx context.Context, conn *models.Connection) {
	id := conn.ID.String()
	switch conn.Type {
	case models.ConnectionTypePostgres:
		s.pools.Close(id)
	case models.ConnectionTypeSnowflake:
		s.sessions.Close(ctx, id)
	case models.ConnectionTypeBigQuery:
		s.clients.Close(id)
	}
}

func (s *ConnectionService) pgExecutor(ctx context.Context, conn *models.Connection, secret string) (*pgds.QueryExecutor, error) {
	pool, err := s.pools.AcquireOrCreate(ctx, conn.ID.String(), postgresConfig(conn.Config, secret))
	if err != nil {
		return nil, err
	}
	return pgds.NewQueryExecutor(pool, s.pools.CommandTimeout()), nil
}

func (s *ConnectionService) sfExecutor(ctx context.Context, conn *models.Connection, secret string) (*sfds.QueryExecutor, error) {
	db, err := s.sessions.AcquireOrCreate(ctx, conn.ID.String(), snowflakeConfig(conn.Config, secret))
	if err != nil {
		return nil, err
	}
	return s.sessions.Executor(db), nil
}

func (s *ConnectionService) bqClient(ctx context.Context, conn *models.Connection, secret string) (*bqds.Client, error) {
	return s.clients.AcquireOrCreate(ctx, conn.ID.String(), bigqueryConfig(conn.Config, secret))
}

func validateInput(input ConnectionInput) error {
	if input.Name == "" {
		return fmt.Errorf("name is required")
	}
	if !models.ValidType(input.Type) {
		return fmt.Errorf("unsupported connection type: %s", input.Type)
	}
	if input.Config == nil {
		return fmt.Errorf("config is required")
	}
	return nil
}

// The stored config is a loosely typed JSON document; these helpers pull out
// the adapter fields, leaving validation of required ones to the adapter.

func postgresConfig(cfg map[string]any, secret string) *pgds.Config {
	port := intField(cfg, "port")
	if port == 0 {
		port = pgds.DefaultPort()
	}
	return &pgds.Config{
		Host:     stringField(cfg, "host"),
		Port:     port,
		Database: stringField(cfg, "database"),
		User:     stringField(cfg, "user"),
		Password: secret,
		SSLMode:  stringField(cfg, "ssl_mode"),
	}
}

func snowflakeConfig(cfg map[string]any, secret string) *sfds.Config {
	return &sfds.Config{
		Account:   stringField(cfg, "account"),
		User:      stringField(cfg, "user"),
		Password:  secret,
		Database:  stringField(cfg, "database"),
		Schema:    stringField(cfg, "schema"),
		Warehouse: stringField(cfg, "warehouse"),
		Role:      stringField(cfg, "role"),
	}
}

func bigqueryConfig(cfg map[string]any, secret string) *bqds.Config {
	return &bqds.Config{
		ProjectID:       stringField(cfg, "project_id"),
		CredentialsJSON: []byte(secret),
		Location:        stringField(cfg, "location"),
	}
}

func stringField(cfg map[string]any, key string) string {
	if v, ok := cfg[key].(string); ok {
		return v
	}
	return ""
}

func intField(cfg map[string]any, key string) int {
	switch v := cfg[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		// JSON numbers decode as float64.
		return int(v)
	}
	return 0
}

package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/querybench/querybench-engine/pkg/apperrors"
	"github.com/querybench/querybench-engine/pkg/database"
	"github.com/querybench/querybench-engine/pkg/models"
)

// ConnectionRepository defines the interface for stored-connection access.
type ConnectionRepository interface {
	Create(ctx context.Context, conn *models.Connection) error
	Get(ctx context.Context, id uuid.UUID) (*models.Connection, error)
	List(ctx context.Context) ([]*models.Connection, error)
	Update(ctx context.Context, conn *models.Connection) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// connectionRepository implements ConnectionRepository using PostgreSQL.
type connectionRepository struct {
	db *database.DB
}

// NewConnectionRepository creates a new connection repository.
func NewConnectionRepository(db *database.DB) ConnectionRepository {
	return &connectionRepository{db: db}
}

const uniqueViolation = "23505"

// Create inserts a new connection. Names are unique; a duplicate reports
// ErrConflict so the handler can answer 409.
func (r *connectionRepository) Create(ctx context.Context, conn *models.Connection) error {
	if conn.ID == uuid.Nil {
		conn.ID = uuid.New()
	}
	now := time.Now()
	conn.CreatedAt = now
	conn.UpdatedAt = now

	cfg, err := json.Marshal(conn.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	query := `
		INSERT INTO connections (id, name, type, config, encrypted_secret, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = r.db.Exec(ctx, query,
		conn.ID,
		conn.Name,
		conn.Type,
		cfg,
		conn.EncryptedSecret,
		conn.CreatedAt,
		conn.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("connection name %q: %w", conn.Name, apperrors.ErrConflict)
		}
		return fmt.Errorf("failed to create connection: %w", err)
	}
	return nil
}

// Get retrieves a connection by ID.
func (r *connectionRepository) Get(ctx context.Context, id uuid.UUID) (*models.Connection, error) {
	query := `
		SELECT id, name, type, config, encrypted_secret, created_at, updated_at
		FROM connections
		WHERE id = $1`

	conn, err := scanConnection(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("connection %s: %w", id, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}
	return conn, nil
}

// List retrieves all connections ordered by creation time.
func (r *connectionRepository) List(ctx context.Context) ([]*models.Connection, error) {
	query := `
		SELECT id, name, type, config, encrypted_secret, created_at, updated_at
		FROM connections
		ORDER BY created_at`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	defer rows.Close()

	connections := make([]*models.Connection, 0)
	for rows.Next() {
		conn, err := scanConnection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan connection: %w", err)
		}
		connections = append(connections, conn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	return connections, nil
}

// Update rewrites a connection's mutable fields.
func (r *connectionRepository) Update(ctx context.Context, conn *models.Connection) error {
	conn.UpdatedAt = time.Now()

	cfg, err := json.Marshal(conn.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	query := `
		UPDATE connections
		SET name = $2, config = $3, encrypted_secret = $4, updated_at = $5
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		conn.ID,
		conn.Name,
		cfg,
		conn.EncryptedSecret,
		conn.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("connection name %q: %w", conn.Name, apperrors.ErrConflict)
		}
		return fmt.Errorf("failed to update connection: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("connection %s: %w", conn.ID, apperrors.ErrNotFound)
	}
	return nil
}

// Delete removes a connection by ID.
func (r *connectionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM connections WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete connection: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("connection %s: %w", id, apperrors.ErrNotFound)
	}
	return nil
}

func scanConnection(row pgx.Row) (*models.Connection, error) {
	var (
		conn models.Connection
		cfg  []byte
	)
	err := row.Scan(
		&conn.ID,
		&conn.Name,
		&conn.Type,
		&cfg,
		&conn.EncryptedSecret,
		&conn.CreatedAt,
		&conn.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(cfg, &conn.Config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &conn, nil
}

package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/querybench/querybench-engine/pkg/adapters/datasource"
	"github.com/querybench/querybench-engine/pkg/models"
)

// ListDatabases enumerates the databases visible to a stored connection.
// PostgreSQL connections are scoped to a single database at dial time, so the
// listing is just that database.
func (s *ConnectionService) ListDatabases(ctx context.Context, id uuid.UUID) ([]string, error) {
	conn, secret, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	switch conn.Type {
	case models.ConnectionTypePostgres:
		return []string{stringField(conn.Config, "database")}, nil
	case models.ConnectionTypeSnowflake:
		exec, err := s.sfExecutor(ctx, conn, secret)
		if err != nil {
			return nil, err
		}
		return exec.ListDatabases(ctx)
	case models.ConnectionTypeBigQuery:
		client, err := s.bqClient(ctx, conn, secret)
		if err != nil {
			return nil, err
		}
		return client.ListDatasets(ctx)
	}
	return nil, fmt.Errorf("unsupported connection type: %s", conn.Type)
}

// ListSchemas enumerates the schemas of one database. The database argument
// is ignored for PostgreSQL and doubles as the dataset for BigQuery, whose
// two-level hierarchy has no schema layer.
func (s *ConnectionService) ListSchemas(ctx context.Context, id uuid.UUID, database string) ([]string, error) {
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
		return exec.ListSchemas(ctx)
	case models.ConnectionTypeSnowflake:
		exec, err := s.sfExecutor(ctx, conn, secret)
		if err != nil {
			return nil, err
		}
		return exec.ListSchemas(ctx, database)
	case models.ConnectionTypeBigQuery:
		client, err := s.bqClient(ctx, conn, secret)
		if err != nil {
			return nil, err
		}
		return client.ListDatasets(ctx)
	}
	return nil, fmt.Errorf("unsupported connection type: %s", conn.Type)
}

// ListTables enumerates the tables and views of one schema.
func (s *ConnectionService) ListTables(ctx context.Context, id uuid.UUID, database, schema string) ([]datasource.TableInfo, error) {
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
		return exec.ListTables(ctx, schema)
	case models.ConnectionTypeSnowflake:
		exec, err := s.sfExecutor(ctx, conn, secret)
		if err != nil {
			return nil, err
		}
		return exec.ListTables(ctx, database, schema)
	case models.ConnectionTypeBigQuery:
		client, err := s.bqClient(ctx, conn, secret)
		if err != nil {
			return nil, err
		}
		return client.ListTables(ctx, schema)
	}
	return nil, fmt.Errorf("unsupported connection type: %s", conn.Type)
}

// ListColumns returns one table's columns in catalog order.
func (s *ConnectionService) ListColumns(ctx context.Context, id uuid.UUID, database, schema, table string) ([]datasource.ColumnDetail, error) {
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
		return exec.ListColumns(ctx, schema, table)
	case models.ConnectionTypeSnowflake:
		exec, err := s.sfExecutor(ctx, conn, secret)
		if err != nil {
			return nil, err
		}
		return exec.ListColumns(ctx, database, schema, table)
	case models.ConnectionTypeBigQuery:
		client, err := s.bqClient(ctx, conn, secret)
		if err != nil {
			return nil, err
		}
		return client.ListColumns(ctx, schema, table)
	}
	return nil, fmt.Errorf("unsupported connection type: %s", conn.Type)
}

// ListAllColumns fetches every user table's columns in as few round trips as
// the backend allows, the shape used to seed a schema browser.
func (s *ConnectionService) ListAllColumns(ctx context.Context, id uuid.UUID) ([]datasource.TableColumns, error) {
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
		return exec.ListAllColumns(ctx)
	case models.ConnectionTypeSnowflake:
		exec, err := s.sfExecutor(ctx, conn, secret)
		if err != nil {
			return nil, err
		}
		return exec.ListAllColumns(ctx)
	case models.ConnectionTypeBigQuery:
		client, err := s.bqClient(ctx, conn, secret)
		if err != nil {
			return nil, err
		}
		return client.ListAllColumns(ctx)
	}
	return nil, fmt.Errorf("unsupported connection type: %s", conn.Type)
}

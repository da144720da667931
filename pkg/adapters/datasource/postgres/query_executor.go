package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/querybench/querybench-engine/pkg/adapters/datasource"
	"github.com/querybench/querybench-engine/pkg/apperrors"
)

// QueryExecutor runs statements against a pool acquired from the PoolManager.
// Each statement borrows one connection from the bounded pool for its
// duration and releases it on every exit path, so a handful of concurrent
// requests cannot starve each other.
type QueryExecutor struct {
	pool           *pgxpool.Pool
	commandTimeout time.Duration
}

// NewQueryExecutor wraps an acquired pool. commandTimeout bounds every
// statement; zero falls back to the package default.
func NewQueryExecutor(pool *pgxpool.Pool, commandTimeout time.Duration) *QueryExecutor {
	if commandTimeout <= 0 {
		commandTimeout = DefaultCommandTimeout
	}
	return &QueryExecutor{pool: pool, commandTimeout: commandTimeout}
}

// Run executes a read statement and normalizes the full result set.
func (e *QueryExecutor) Run(ctx context.Context, query string) (*datasource.QueryResult, error) {
	ctx, cancel := context.WithTimeout(ctx, e.commandTimeout)
	defer cancel()

	conn, err := e.pool.Acquire(ctx)
	if err != nil {
		return nil, apperrors.Connectivity(err)
	}
	defer conn.Release()

	start := time.Now()
	rows, columns, err := fetchAll(ctx, conn, query)
	if err != nil {
		return nil, TranslateError(err)
	}

	return &datasource.QueryResult{
		Columns: columns,
		Rows:    rows,
		Stats: datasource.QueryStats{
			ElapsedMs: float64(time.Since(start).Microseconds()) / 1000.0,
			RowCount:  len(rows),
		},
	}, nil
}

// RunPaginated executes the count-then-page protocol: an optional COUNT(*)
// over the wrapped query on the first page, then one LIMIT/OFFSET window.
// A failed fetch returns no rows for the page, never a truncated page.
func (e *QueryExecutor) RunPaginated(ctx context.Context, query string, page datasource.Page) (*datasource.PageResult, error) {
	ctx, cancel := context.WithTimeout(ctx, e.commandTimeout)
	defer cancel()

	conn, err := e.pool.Acquire(ctx)
	if err != nil {
		return nil, apperrors.Connectivity(err)
	}
	defer conn.Release()

	start := time.Now()

	var totalRows *int64
	if page.IncludeCount && page.Offset == 0 {
		var total int64
		if err := conn.QueryRow(ctx, datasource.CountQuery(query)).Scan(&total); err != nil {
			return nil, TranslateError(err)
		}
		totalRows = &total
	}

	rows, columns, err := fetchAll(ctx, conn, datasource.WindowQuery(query, page.BatchSize, page.Offset))
	if err != nil {
		return nil, TranslateError(err)
	}

	hasMore, nextOffset := datasource.ResolvePage(page.Offset, len(rows), page.BatchSize, totalRows)

	return &datasource.PageResult{
		Rows:       rows,
		Columns:    columns,
		TotalRows:  totalRows,
		HasMore:    hasMore,
		NextOffset: nextOffset,
		Stats: datasource.QueryStats{
			ElapsedMs: float64(time.Since(start).Microseconds()) / 1000.0,
			RowCount:  len(rows),
		},
	}, nil
}

// fetchAll materializes all rows of one statement into column-name keyed maps
// with ordered column metadata.
func fetchAll(ctx context.Context, conn *pgxpool.Conn, query string) ([]map[string]any, []datasource.ColumnInfo, error) {
	rows, err := conn.Query(ctx, query)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	columns := make([]datasource.ColumnInfo, len(fieldDescs))
	for i, fd := range fieldDescs {
		columns[i] = datasource.ColumnInfo{
			Name: string(fd.Name),
			Type: typeNameFromOID(fd.DataTypeOID),
		}
	}

	resultRows := make([]map[string]any, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, nil, err
		}
		rowMap := make(map[string]any, len(columns))
		for i, col := range columns {
			rowMap[col.Name] = values[i]
		}
		resultRows = append(resultRows, rowMap)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	// When the OID is not in the lookup table, fall back to inspecting the
	// first row's runtime values. First-value-null misclassifies as text;
	// documented heuristic.
	if len(resultRows) > 0 {
		first := resultRows[0]
		for i := range columns {
			if columns[i].Type == typeUnknown {
				columns[i].Type = datasource.InferColumnType(first[columns[i].Name])
			}
		}
	}

	return resultRows, columns, nil
}

const typeUnknown = "unknown"

// typeNameFromOID maps common PostgreSQL type OIDs to information_schema
// style type names. Unlisted OIDs fall through to runtime inference.
func typeNameFromOID(oid uint32) string {
	switch oid {
	case 16:
		return "boolean"
	case 17:
		return "bytea"
	case 20:
		return "bigint"
	case 21:
		return "smallint"
	case 23:
		return "integer"
	case 25:
		return "text"
	case 114:
		return "json"
	case 700:
		return "real"
	case 701:
		return "double precision"
	case 1042:
		return "character"
	case 1043:
		return "character varying"
	case 1082:
		return "date"
	case 1083:
		return "time without time zone"
	case 1114:
		return "timestamp without time zone"
	case 1184:
		return "timestamp with time zone"
	case 1186:
		return "interval"
	case 1266:
		return "time with time zone"
	case 1700:
		return "numeric"
	case 2950:
		return "uuid"
	case 3802:
		return "jsonb"
	default:
		return typeUnknown
	}
}

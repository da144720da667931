package snowflake

import (
	"context"
	"database/sql"
	"time"

	"github.com/querybench/querybench-engine/pkg/adapters/datasource"
)

// QueryExecutor runs statements against one cached session. Every driver call
// goes through the manager's concurrency gate and carries a statement
// deadline, so a hung warehouse cannot pin a goroutine forever.
type QueryExecutor struct {
	db             *sql.DB
	gate           func(ctx context.Context, fn func() error) error
	commandTimeout time.Duration
}

// Run executes a read statement and normalizes the full result set.
func (e *QueryExecutor) Run(ctx context.Context, query string) (*datasource.QueryResult, error) {
	ctx, cancel := context.WithTimeout(ctx, e.commandTimeout)
	defer cancel()

	start := time.Now()
	rows, columns, err := e.fetchAll(ctx, query)
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
func (e *QueryExecutor) RunPaginated(ctx context.Context, query string, page datasource.Page) (*datasource.PageResult, error) {
	ctx, cancel := context.WithTimeout(ctx, e.commandTimeout)
	defer cancel()

	start := time.Now()

	var totalRows *int64
	if page.IncludeCount && page.Offset == 0 {
		var total int64
		err := e.gate(ctx, func() error {
			return e.db.QueryRowContext(ctx, datasource.CountQuery(query)).Scan(&total)
		})
		if err != nil {
			return nil, TranslateError(err)
		}
		totalRows = &total
	}

	rows, columns, err := e.fetchAll(ctx, datasource.WindowQuery(query, page.BatchSize, page.Offset))
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
// with ordered column metadata. The whole fetch occupies one gate slot;
// releasing between rows would let a slow cursor interleave with and starve
// other callers.
func (e *QueryExecutor) fetchAll(ctx context.Context, query string) ([]map[string]any, []datasource.ColumnInfo, error) {
	var (
		resultRows []map[string]any
		columns    []datasource.ColumnInfo
	)
	err := e.gate(ctx, func() error {
		rows, err := e.db.QueryContext(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()

		resultRows, columns, err = scanRows(rows)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return resultRows, columns, nil
}

func scanRows(rows *sql.Rows) ([]map[string]any, []datasource.ColumnInfo, error) {
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, nil, err
	}

	columns := make([]datasource.ColumnInfo, len(types))
	for i, ct := range types {
		columns[i] = datasource.ColumnInfo{
			Name: ct.Name(),
			Type: typeNameFromDriver(ct.DatabaseTypeName()),
		}
	}

	resultRows := make([]map[string]any, 0)
	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}
		rowMap := make(map[string]any, len(columns))
		for i, col := range columns {
			rowMap[col.Name] = normalizeValue(values[i])
		}
		resultRows = append(resultRows, rowMap)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	return resultRows, columns, nil
}

// normalizeValue makes driver values JSON-friendly. database/sql hands back
// []byte for text-ish columns, which would otherwise encode as base64.
func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

const typeUnknown = "UNKNOWN"

// typeNameFromDriver maps the driver's internal type names to the vocabulary
// Snowflake itself uses in DESC TABLE output. The driver reports fixed-point
// numbers as FIXED; everything else passes through when recognized.
func typeNameFromDriver(name string) string {
	switch name {
	case "FIXED":
		return "NUMBER"
	case "REAL", "TEXT", "BOOLEAN", "DATE", "TIME",
		"TIMESTAMP_LTZ", "TIMESTAMP_NTZ", "TIMESTAMP_TZ",
		"VARIANT", "OBJECT", "ARRAY", "BINARY":
		return name
	case "":
		return typeUnknown
	default:
		return typeUnknown
	}
}

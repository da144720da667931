// Package bigquery adapts Google BigQuery to the shared datasource contracts.
// BigQuery has no long-lived server connection to pool; a client is a thin
// HTTP wrapper, so one is built per stored connection and cached like the
// other backends' resources.
package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/querybench/querybench-engine/pkg/adapters/datasource"
	"github.com/querybench/querybench-engine/pkg/apperrors"
)

const DefaultCommandTimeout = 60 * time.Second

// Config identifies a BigQuery project and the service-account key to reach
// it with. The key JSON is stored encrypted and only decrypted per request.
type Config struct {
	ProjectID       string
	CredentialsJSON []byte
	Location        string
}

// Validate checks the fields a connection attempt cannot do without.
func (c *Config) Validate() error {
	if c.ProjectID == "" {
		return fmt.Errorf("project_id is required")
	}
	if len(c.CredentialsJSON) == 0 {
		return fmt.Errorf("credentials_json is required")
	}
	return nil
}

// Client wraps one authenticated BigQuery client.
type Client struct {
	bq             *bigquery.Client
	location       string
	commandTimeout time.Duration
}

// Connect builds and verifies a client for cfg. The SDK does not talk to the
// service at construction time, so an explicit ping surfaces bad credentials
// here instead of on the first query.
func Connect(ctx context.Context, cfg *Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, apperrors.Connectivity(err)
	}

	bq, err := bigquery.NewClient(ctx, cfg.ProjectID, option.WithCredentialsJSON(cfg.CredentialsJSON))
	if err != nil {
		return nil, apperrors.Connectivity(err)
	}

	c := &Client{bq: bq, location: cfg.Location, commandTimeout: DefaultCommandTimeout}
	if err := c.Ping(ctx); err != nil {
		_ = bq.Close()
		return nil, err
	}
	return c, nil
}

// Close releases the underlying HTTP client.
func (c *Client) Close() error {
	return c.bq.Close()
}

// Ping performs the cheapest authenticated round trip: one page of the
// project's dataset listing. An empty project is alive, so iterator.Done is
// success.
func (c *Client) Ping(ctx context.Context) error {
	it := c.bq.Datasets(ctx)
	if _, err := it.Next(); err != nil && err != iterator.Done {
		return TranslateError(err)
	}
	return nil
}

// Run executes a query and normalizes the full result set.
func (c *Client) Run(ctx context.Context, query string) (*datasource.QueryResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.commandTimeout)
	defer cancel()

	start := time.Now()
	rows, columns, err := c.fetchAll(ctx, query)
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

// RunPaginated executes the count-then-page protocol. BigQuery accepts
// standard LIMIT/OFFSET, so the shared query rewriting applies unchanged.
func (c *Client) RunPaginated(ctx context.Context, query string, page datasource.Page) (*datasource.PageResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.commandTimeout)
	defer cancel()

	start := time.Now()

	var totalRows *int64
	if page.IncludeCount && page.Offset == 0 {
		countRows, _, err := c.fetchAll(ctx, datasource.CountQuery(query))
		if err != nil {
			return nil, TranslateError(err)
		}
		if len(countRows) == 1 {
			for _, v := range countRows[0] {
				if n, ok := v.(int64); ok {
					totalRows = &n
				}
			}
		}
	}

	rows, columns, err := c.fetchAll(ctx, datasource.WindowQuery(query, page.BatchSize, page.Offset))
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

func (c *Client) fetchAll(ctx context.Context, query string) ([]map[string]any, []datasource.ColumnInfo, error) {
	q := c.bq.Query(query)
	if c.location != "" {
		q.Location = c.location
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, nil, err
	}

	var columns []datasource.ColumnInfo
	resultRows := make([]map[string]any, 0)
	for {
		var row []bigquery.Value
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, nil, err
		}

		if columns == nil {
			columns = columnsFromSchema(it.Schema)
		}
		rowMap := make(map[string]any, len(columns))
		for i, col := range columns {
			if i < len(row) {
				rowMap[col.Name] = row[i]
			}
		}
		resultRows = append(resultRows, rowMap)
	}
	if columns == nil {
		columns = columnsFromSchema(it.Schema)
	}
	return resultRows, columns, nil
}

func columnsFromSchema(schema bigquery.Schema) []datasource.ColumnInfo {
	columns := make([]datasource.ColumnInfo, len(schema))
	for i, field := range schema {
		columns[i] = datasource.ColumnInfo{
			Name: field.Name,
			Type: string(field.Type),
		}
	}
	return columns
}

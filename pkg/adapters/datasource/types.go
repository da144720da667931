// Package datasource defines the backend-agnostic contracts shared by every
// external-database adapter: normalized result shapes, the count-then-page
// pagination protocol, and identifier quoting for metadata queries.
package datasource

// ColumnInfo describes a result column with a backend-agnostic type name.
type ColumnInfo struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// QueryStats carries execution statistics for one statement.
type QueryStats struct {
	ElapsedMs float64 `json:"executionTimeMs"`
	RowCount  int     `json:"rowCount"`
}

// QueryResult is a normalized result set: rows as column-name keyed maps in
// driver-reported order, plus ordered column metadata.
type QueryResult struct {
	Columns []ColumnInfo     `json:"columns"`
	Rows    []map[string]any `json:"rows"`
	Stats   QueryStats       `json:"stats"`
}

// Page describes one window of a paginated query.
// IncludeCount is only honored on the first page (offset 0) by convention;
// callers pass false on subsequent pages to avoid repeating the COUNT(*).
type Page struct {
	BatchSize    int  `json:"batch_size"`
	Offset       int  `json:"offset"`
	IncludeCount bool `json:"include_count"`
}

// TableInfo identifies one table or view inside a schema.
type TableInfo struct {
	Schema string `json:"schema"`
	Name   string `json:"name"`
	Type   string `json:"type"`
}

// ColumnDetail describes one column as reported by the backend's catalog.
type ColumnDetail struct {
	Name       string `json:"name"`
	DataType   string `json:"data_type"`
	IsNullable bool   `json:"is_nullable"`
	Default    string `json:"default,omitempty"`
}

// TableColumns groups catalog columns by owning table, the shape returned by
// the bulk metadata fetch used to seed a schema browser in one round trip.
type TableColumns struct {
	Schema  string         `json:"schema"`
	Table   string         `json:"table"`
	Columns []ColumnDetail `json:"columns"`
}

// PageResult is the outcome of one paginated fetch. TotalRows is nil unless a
// count was requested on the first page.
type PageResult struct {
	Rows       []map[string]any `json:"rows"`
	Columns    []ColumnInfo     `json:"columns"`
	TotalRows  *int64           `json:"total_rows"`
	HasMore    bool             `json:"has_more"`
	NextOffset int              `json:"next_offset"`
	Stats      QueryStats       `json:"stats"`
}

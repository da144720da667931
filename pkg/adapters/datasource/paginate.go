package datasource

import "fmt"

// CountQuery wraps an arbitrary read statement so its result-set size can be
// obtained without parsing the statement. Re-executes the query's planning
// cost, so callers run it once per paging session (first page only).
func CountQuery(query string) string {
	return fmt.Sprintf("SELECT COUNT(*) FROM (%s) AS subq", query)
}

// WindowQuery wraps an arbitrary read statement with LIMIT/OFFSET. Wrapping
// as a subquery avoids rewriting the caller's SQL, at the cost of re-planning
// the full query per page; acceptable for interactive exploration in
// modest-sized batches.
func WindowQuery(query string, batchSize, offset int) string {
	return fmt.Sprintf("SELECT * FROM (%s) AS subq LIMIT %d OFFSET %d", query, batchSize, offset)
}

// ResolvePage computes the paging cursor after a fetch.
//
// When totalRows is known, hasMore is exact. When it is not, a full batch is
// taken to mean more rows exist, which over-reports when the result-set size
// is an exact multiple of batchSize. Callers get one extra empty page in the
// worst case and must treat an empty page as the end of the result.
func ResolvePage(offset, rowsFetched, batchSize int, totalRows *int64) (hasMore bool, nextOffset int) {
	nextOffset = offset + rowsFetched
	if totalRows != nil {
		return int64(nextOffset) < *totalRows, nextOffset
	}
	return rowsFetched == batchSize, nextOffset
}

// InferColumnType maps a runtime row value to a coarse SQL type name. Used as
// a fallback when the driver reports no column types: only the first row is
// inspected, so a leading NULL or atypical value can misclassify the column.
func InferColumnType(v any) string {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return "integer"
	case float32, float64:
		return "double precision"
	case bool:
		return "boolean"
	default:
		return "text"
	}
}

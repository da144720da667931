package postgres

import (
	"context"

	"github.com/querybench/querybench-engine/pkg/adapters/datasource"
)

// System schemas are filtered out of catalog listings; a workbench browsing a
// customer database has no use for pg_catalog internals.
const schemaFilter = `schema_name NOT IN ('pg_catalog', 'information_schema', 'pg_toast')`

const listSchemasSQL = `
SELECT schema_name
FROM information_schema.schemata
WHERE ` + schemaFilter + `
ORDER BY schema_name`

const listTablesSQL = `
SELECT table_schema, table_name, table_type
FROM information_schema.tables
WHERE table_schema = $1
ORDER BY table_name`

const listColumnsSQL = `
SELECT column_name, data_type, is_nullable, column_default
FROM information_schema.columns
WHERE table_schema = $1 AND table_name = $2
ORDER BY ordinal_position`

const listAllColumnsSQL = `
SELECT table_schema, table_name, column_name, data_type, is_nullable, column_default
FROM information_schema.columns
WHERE table_schema NOT IN ('pg_catalog', 'information_schema', 'pg_toast')
ORDER BY table_schema, table_name, ordinal_position`

// ListSchemas returns user-visible schema names.
func (e *QueryExecutor) ListSchemas(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.commandTimeout)
	defer cancel()

	rows, err := e.pool.Query(ctx, listSchemasSQL)
	if err != nil {
		return nil, TranslateError(err)
	}
	defer rows.Close()

	schemas := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, TranslateError(err)
		}
		schemas = append(schemas, name)
	}
	if err := rows.Err(); err != nil {
		return nil, TranslateError(err)
	}
	return schemas, nil
}

// ListTables returns the tables and views of one schema.
func (e *QueryExecutor) ListTables(ctx context.Context, schema string) ([]datasource.TableInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, e.commandTimeout)
	defer cancel()

	rows, err := e.pool.Query(ctx, listTablesSQL, schema)
	if err != nil {
		return nil, TranslateError(err)
	}
	defer rows.Close()

	tables := make([]datasource.TableInfo, 0)
	for rows.Next() {
		var t datasource.TableInfo
		if err := rows.Scan(&t.Schema, &t.Name, &t.Type); err != nil {
			return nil, TranslateError(err)
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, TranslateError(err)
	}
	return tables, nil
}

// ListColumns returns the columns of one table in ordinal order.
func (e *QueryExecutor) ListColumns(ctx context.Context, schema, table string) ([]datasource.ColumnDetail, error) {
	ctx, cancel := context.WithTimeout(ctx, e.commandTimeout)
	defer cancel()

	rows, err := e.pool.Query(ctx, listColumnsSQL, schema, table)
	if err != nil {
		return nil, TranslateError(err)
	}
	defer rows.Close()

	columns := make([]datasource.ColumnDetail, 0)
	for rows.Next() {
		col, err := scanColumnDetail(rows.Scan)
		if err != nil {
			return nil, TranslateError(err)
		}
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, TranslateError(err)
	}
	return columns, nil
}

// ListAllColumns fetches every user table's columns in one statement, grouped
// by table in catalog order.
func (e *QueryExecutor) ListAllColumns(ctx context.Context) ([]datasource.TableColumns, error) {
	ctx, cancel := context.WithTimeout(ctx, e.commandTimeout)
	defer cancel()

	rows, err := e.pool.Query(ctx, listAllColumnsSQL)
	if err != nil {
		return nil, TranslateError(err)
	}
	defer rows.Close()

	grouped := make([]datasource.TableColumns, 0)
	for rows.Next() {
		var schema, table string
		col, err := scanColumnDetail(func(dest ...any) error {
			return rows.Scan(append([]any{&schema, &table}, dest...)...)
		})
		if err != nil {
			return nil, TranslateError(err)
		}

		n := len(grouped)
		if n == 0 || grouped[n-1].Schema != schema || grouped[n-1].Table != table {
			grouped = append(grouped, datasource.TableColumns{Schema: schema, Table: table})
			n++
		}
		grouped[n-1].Columns = append(grouped[n-1].Columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, TranslateError(err)
	}
	return grouped, nil
}

func scanColumnDetail(scan func(dest ...any) error) (datasource.ColumnDetail, error) {
	var (
		col        datasource.ColumnDetail
		isNullable string
		colDefault *string
	)
	if err := scan(&col.Name, &col.DataType, &isNullable, &colDefault); err != nil {
		return datasource.ColumnDetail{}, err
	}
	col.IsNullable = isNullable == "YES"
	if colDefault != nil {
		col.Default = *colDefault
	}
	return col, nil
}

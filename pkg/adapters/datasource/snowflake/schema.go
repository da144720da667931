package snowflake

import (
	"context"
	"fmt"

	"github.com/querybench/querybench-engine/pkg/adapters/datasource"
)

// Shared and sample databases every account carries; a workbench browsing a
// customer account has no use for them.
var builtinDatabases = map[string]bool{
	"SNOWFLAKE":             true,
	"SNOWFLAKE_SAMPLE_DATA": true,
}

// ListDatabases returns the account's databases, minus the built-in ones.
func (e *QueryExecutor) ListDatabases(ctx context.Context) ([]string, error) {
	result, err := e.Run(ctx, "SHOW DATABASES")
	if err != nil {
		return nil, err
	}

	databases := make([]string, 0, len(result.Rows))
	for _, row := range result.Rows {
		name, ok := row["name"].(string)
		if !ok || builtinDatabases[name] {
			continue
		}
		databases = append(databases, name)
	}
	return databases, nil
}

// ListSchemas returns the schemas of one database. INFORMATION_SCHEMA is
// filtered out; it exists in every database and is never user data.
func (e *QueryExecutor) ListSchemas(ctx context.Context, database string) ([]string, error) {
	quoted, err := datasource.QuoteIdentifier(database)
	if err != nil {
		return nil, err
	}

	result, err := e.Run(ctx, "SHOW SCHEMAS IN DATABASE "+quoted)
	if err != nil {
		return nil, err
	}

	schemas := make([]string, 0, len(result.Rows))
	for _, row := range result.Rows {
		name, ok := row["name"].(string)
		if !ok || name == "INFORMATION_SCHEMA" {
			continue
		}
		schemas = append(schemas, name)
	}
	return schemas, nil
}

// ListTables returns the tables and views of one schema.
func (e *QueryExecutor) ListTables(ctx context.Context, database, schema string) ([]datasource.TableInfo, error) {
	quoted, err := datasource.QuoteIdentifier(database)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
SELECT table_schema, table_name, table_type
FROM %s.INFORMATION_SCHEMA.TABLES
WHERE table_schema = ?
ORDER BY table_name`, quoted)

	var tables []datasource.TableInfo
	err = e.gate(ctx, func() error {
		rows, err := e.db.QueryContext(ctx, query, schema)
		if err != nil {
			return err
		}
		defer rows.Close()

		tables = make([]datasource.TableInfo, 0)
		for rows.Next() {
			var t datasource.TableInfo
			if err := rows.Scan(&t.Schema, &t.Name, &t.Type); err != nil {
				return err
			}
			tables = append(tables, t)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, TranslateError(err)
	}
	return tables, nil
}

// ListColumns returns the columns of one table in ordinal order.
func (e *QueryExecutor) ListColumns(ctx context.Context, database, schema, table string) ([]datasource.ColumnDetail, error) {
	quoted, err := datasource.QuoteIdentifier(database)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
SELECT column_name, data_type, is_nullable, column_default
FROM %s.INFORMATION_SCHEMA.COLUMNS
WHERE table_schema = ? AND table_name = ?
ORDER BY ordinal_position`, quoted)

	var columns []datasource.ColumnDetail
	err = e.gate(ctx, func() error {
		rows, err := e.db.QueryContext(ctx, query, schema, table)
		if err != nil {
			return err
		}
		defer rows.Close()

		columns = make([]datasource.ColumnDetail, 0)
		for rows.Next() {
			var (
				col        datasource.ColumnDetail
				isNullable string
				colDefault *string
			)
			if err := rows.Scan(&col.Name, &col.DataType, &isNullable, &colDefault); err != nil {
				return err
			}
			col.IsNullable = isNullable == "YES"
			if colDefault != nil {
				col.Default = *colDefault
			}
			columns = append(columns, col)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, TranslateError(err)
	}
	return columns, nil
}

// ListAllColumns walks every user database and collects its tables' columns.
// A database the session cannot read (revoked grants, mid-drop) is skipped
// rather than failing the whole walk.
func (e *QueryExecutor) ListAllColumns(ctx context.Context) ([]datasource.TableColumns, error) {
	databases, err := e.ListDatabases(ctx)
	if err != nil {
		return nil, err
	}

	grouped := make([]datasource.TableColumns, 0)
	for _, database := range databases {
		quoted, err := datasource.QuoteIdentifier(database)
		if err != nil {
			return nil, err
		}

		query := fmt.Sprintf(`
SELECT table_schema, table_name, column_name, data_type, is_nullable, column_default
FROM %s.INFORMATION_SCHEMA.COLUMNS
WHERE table_schema <> 'INFORMATION_SCHEMA'
ORDER BY table_schema, table_name, ordinal_position`, quoted)

		gateErr := e.gate(ctx, func() error {
			rows, err := e.db.QueryContext(ctx, query)
			if err != nil {
				return err
			}
			defer rows.Close()

			for rows.Next() {
				var (
					schema, table string
					col           datasource.ColumnDetail
					isNullable    string
					colDefault    *string
				)
				if err := rows.Scan(&schema, &table, &col.Name, &col.DataType, &isNullable, &colDefault); err != nil {
					return err
				}
				col.IsNullable = isNullable == "YES"
				if colDefault != nil {
					col.Default = *colDefault
				}

				// Schemas from different databases can share names, so the
				// grouping key carries the database qualifier.
				qualified := database + "." + schema
				n := len(grouped)
				if n == 0 || grouped[n-1].Schema != qualified || grouped[n-1].Table != table {
					grouped = append(grouped, datasource.TableColumns{Schema: qualified, Table: table})
					n++
				}
				grouped[n-1].Columns = append(grouped[n-1].Columns, col)
			}
			return rows.Err()
		})
		if gateErr != nil {
			continue
		}
	}
	return grouped, nil
}

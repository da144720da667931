package bigquery

import (
	"context"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/querybench/querybench-engine/pkg/adapters/datasource"
)

// ListDatasets returns the project's dataset IDs.
func (c *Client) ListDatasets(ctx context.Context) ([]string, error) {
	it := c.bq.Datasets(ctx)

	datasets := make([]string, 0)
	for {
		ds, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, TranslateError(err)
		}
		datasets = append(datasets, ds.DatasetID)
	}
	return datasets, nil
}

// ListTables returns the tables and views of one dataset.
func (c *Client) ListTables(ctx context.Context, dataset string) ([]datasource.TableInfo, error) {
	it := c.bq.Dataset(dataset).Tables(ctx)

	tables := make([]datasource.TableInfo, 0)
	for {
		table, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, TranslateError(err)
		}

		md, err := table.Metadata(ctx)
		if err != nil {
			return nil, TranslateError(err)
		}
		tables = append(tables, datasource.TableInfo{
			Schema: dataset,
			Name:   table.TableID,
			Type:   string(md.Type),
		})
	}
	return tables, nil
}

// ListColumns returns one table's columns from its schema metadata.
func (c *Client) ListColumns(ctx context.Context, dataset, table string) ([]datasource.ColumnDetail, error) {
	md, err := c.bq.Dataset(dataset).Table(table).Metadata(ctx)
	if err != nil {
		return nil, TranslateError(err)
	}
	return columnDetails(md.Schema), nil
}

// ListAllColumns walks every dataset and collects its tables' columns.
// A dataset the credentials cannot read is skipped rather than failing the
// whole walk.
func (c *Client) ListAllColumns(ctx context.Context) ([]datasource.TableColumns, error) {
	datasets, err := c.ListDatasets(ctx)
	if err != nil {
		return nil, err
	}

	grouped := make([]datasource.TableColumns, 0)
	for _, dataset := range datasets {
		it := c.bq.Dataset(dataset).Tables(ctx)
		for {
			table, err := it.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				break
			}

			md, err := table.Metadata(ctx)
			if err != nil {
				continue
			}
			grouped = append(grouped, datasource.TableColumns{
				Schema:  dataset,
				Table:   table.TableID,
				Columns: columnDetails(md.Schema),
			})
		}
	}
	return grouped, nil
}

func columnDetails(schema bigquery.Schema) []datasource.ColumnDetail {
	columns := make([]datasource.ColumnDetail, len(schema))
	for i, field := range schema {
		columns[i] = datasource.ColumnDetail{
			Name:       field.Name,
			DataType:   string(field.Type),
			IsNullable: !field.Required,
		}
	}
	return columns
}

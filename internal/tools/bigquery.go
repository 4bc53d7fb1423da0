package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/toolscout/toolscout/internal/service"
)

const bqQueryTimeout = 60 * time.Second

// NewBigQueryRegistry builds the BigQuery tool backend
func NewBigQueryRegistry(bq *service.BigQueryService) (*Registry, error) {
	r := NewRegistry("bigquery")
	for _, t := range []Tool{
		BQListDatasetsTool(bq),
		BQListTablesTool(bq),
		BQGetSchemaTool(bq),
		BQExecuteQueryTool(bq),
	} {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// BQListDatasetsTool lists all BigQuery datasets
func BQListDatasetsTool(bq *service.BigQueryService) Tool {
	return Tool{
		Name:        "list_bigquery_datasets",
		Description: "List all available BigQuery datasets in the project. Use this to discover what data is available.",
		InputSchema: map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{},
		},
		Execute: func(ctx context.Context, input map[string]interface{}) (string, error) {
			datasets, err := bq.ListDatasets(ctx)
			if err != nil {
				return "", fmt.Errorf("list datasets: %w", err)
			}
			b, err := json.Marshal(datasets)
			if err != nil {
				return "", err
			}
			return string(b), nil
		},
	}
}

// BQListTablesTool lists tables in a dataset
func BQListTablesTool(bq *service.BigQueryService) Tool {
	return Tool{
		Name:        "list_bigquery_tables",
		Description: "List all tables in a BigQuery dataset.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"dataset_id": map[string]interface{}{
					"type":        "string",
					"description": "The BigQuery dataset ID",
				},
			},
			"required": []string{"dataset_id"},
		},
		Execute: func(ctx context.Context, input map[string]interface{}) (string, error) {
			datasetID, _ := input["dataset_id"].(string)
			if datasetID == "" {
				return "", fmt.Errorf("dataset_id is required")
			}

			tables, err := bq.ListTables(ctx, datasetID)
			if err != nil {
				return "", fmt.Errorf("list tables: %w", err)
			}

			out := fmt.Sprintf("Tables in dataset %q:\n", datasetID)
			for _, t := range tables {
				out += fmt.Sprintf("  - %s (type: %s, rows: %d)\n", t.ID, t.Type, t.NumRows)
			}
			return out, nil
		},
	}
}

// BQGetSchemaTool returns the schema for a BigQuery table
func BQGetSchemaTool(bq *service.BigQueryService) Tool {
	return Tool{
		Name:        "get_bigquery_schema",
		Description: "Get the schema (column names and types) for a specific BigQuery table. Use this before writing SQL to understand the table structure.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"dataset_id": map[string]interface{}{
					"type":        "string",
					"description": "The BigQuery dataset ID",
				},
				"table_id": map[string]interface{}{
					"type":        "string",
					"description": "The BigQuery table ID",
				},
			},
			"required": []string{"dataset_id", "table_id"},
		},
		Execute: func(ctx context.Context, input map[string]interface{}) (string, error) {
			datasetID, _ := input["dataset_id"].(string)
			tableID, _ := input["table_id"].(string)
			if datasetID == "" || tableID == "" {
				return "", fmt.Errorf("dataset_id and table_id are required")
			}

			schema, meta, err := bq.GetTableSchema(ctx, datasetID, tableID)
			if err != nil {
				return "", fmt.Errorf("get schema: %w", err)
			}

			return fmt.Sprintf("Table: %s.%s\nRows: %d\nSchema:\n%s",
				datasetID, tableID, meta.NumRows, service.SchemaToString(schema)), nil
		},
	}
}

// BQExecuteQueryTool executes a SQL query and returns results
func BQExecuteQueryTool(bq *service.BigQueryService) Tool {
	return Tool{
		Name:        "execute_bigquery_sql",
		Description: "Execute a SQL SELECT query on BigQuery and return the results. Only SELECT queries are allowed.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"sql": map[string]interface{}{
					"type":        "string",
					"description": "The SQL SELECT query to execute",
				},
			},
			"required": []string{"sql"},
		},
		Execute: func(ctx context.Context, input map[string]interface{}) (string, error) {
			sql, _ := input["sql"].(string)
			if sql == "" {
				return "", fmt.Errorf("sql is required")
			}

			result, err := bq.ExecuteQuery(ctx, sql, bqQueryTimeout)
			if err != nil {
				return "", fmt.Errorf("execute query: %w", err)
			}

			out := map[string]interface{}{
				"row_count":       len(result.Data),
				"columns":         result.Columns,
				"data":            result.Data,
				"bytes_processed": result.TotalBytesProcessed,
			}
			b, _ := json.Marshal(out)
			return string(b), nil
		},
	}
}

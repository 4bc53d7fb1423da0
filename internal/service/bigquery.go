// Package service wraps the external data services the tool backends are
// built on.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// BigQueryService wraps the BigQuery SDK client
type BigQueryService struct {
	client    *bigquery.Client
	projectID string
	location  string
}

// NewBigQueryService creates a new BigQuery client
func NewBigQueryService(ctx context.Context, projectID, credentialsFile, location string) (*BigQueryService, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := bigquery.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("bigquery.NewClient: %w", err)
	}

	return &BigQueryService{
		client:    client,
		projectID: projectID,
		location:  location,
	}, nil
}

// Close releases the BigQuery client
func (s *BigQueryService) Close() error {
	return s.client.Close()
}

// TestConnection verifies BigQuery connectivity
func (s *BigQueryService) TestConnection(ctx context.Context) error {
	q := s.client.Query("SELECT 1")
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("query run: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("job wait: %w", err)
	}
	return status.Err()
}

// DatasetInfo describes one BigQuery dataset
type DatasetInfo struct {
	ID          string `json:"id"`
	ProjectID   string `json:"project_id"`
	Location    string `json:"location"`
	Description string `json:"description,omitempty"`
}

// TableInfo describes one BigQuery table
type TableInfo struct {
	ID        string `json:"id"`
	DatasetID string `json:"dataset_id"`
	Type      string `json:"type"`
	NumRows   uint64 `json:"num_rows"`
	NumBytes  int64  `json:"num_bytes"`
}

// ListDatasets returns all datasets in the project
func (s *BigQueryService) ListDatasets(ctx context.Context) ([]DatasetInfo, error) {
	var datasets []DatasetInfo
	it := s.client.Datasets(ctx)
	for {
		ds, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list datasets: %w", err)
		}
		meta, err := ds.Metadata(ctx)
		if err != nil {
			log.Warn().Err(err).Str("dataset", ds.DatasetID).Msg("failed to get dataset metadata")
			datasets = append(datasets, DatasetInfo{
				ID:        ds.DatasetID,
				ProjectID: ds.ProjectID,
			})
			continue
		}
		datasets = append(datasets, DatasetInfo{
			ID:          ds.DatasetID,
			ProjectID:   ds.ProjectID,
			Location:    meta.Location,
			Description: meta.Description,
		})
	}
	return datasets, nil
}

// ListTables returns tables in a dataset
func (s *BigQueryService) ListTables(ctx context.Context, datasetID string) ([]TableInfo, error) {
	var tables []TableInfo
	it := s.client.Dataset(datasetID).Tables(ctx)
	for {
		tbl, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list tables: %w", err)
		}
		meta, err := tbl.Metadata(ctx)
		if err != nil {
			log.Warn().Err(err).Str("table", tbl.TableID).Msg("failed to get table metadata")
			tables = append(tables, TableInfo{
				ID:        tbl.TableID,
				DatasetID: datasetID,
			})
			continue
		}
		tables = append(tables, TableInfo{
			ID:        tbl.TableID,
			DatasetID: datasetID,
			Type:      string(meta.Type),
			NumRows:   meta.NumRows,
			NumBytes:  meta.NumBytes,
		})
	}
	return tables, nil
}

// GetTableSchema returns the schema and metadata for a table
func (s *BigQueryService) GetTableSchema(ctx context.Context, datasetID, tableID string) (bigquery.Schema, *bigquery.TableMetadata, error) {
	meta, err := s.client.Dataset(datasetID).Table(tableID).Metadata(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("get table %q.%q: %w", datasetID, tableID, err)
	}
	return meta.Schema, meta, nil
}

// QueryResult holds the result of a BigQuery execution
type QueryResult struct {
	Data                []map[string]interface{}
	Columns             []string
	JobID               string
	TotalBytesProcessed int64
	ExecutionTimeMs     int64
}

// ExecuteQuery runs a SQL query and returns results
func (s *BigQueryService) ExecuteQuery(ctx context.Context, sql string, timeout time.Duration) (*QueryResult, error) {
	q := s.client.Query(sql)
	q.Location = s.location

	qCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	job, err := q.Run(qCtx)
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}

	status, err := job.Wait(qCtx)
	if err != nil {
		return nil, fmt.Errorf("job wait: %w", err)
	}
	if err := status.Err(); err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	var bytesProcessed int64
	if stats := job.LastStatus().Statistics; stats != nil {
		bytesProcessed = stats.TotalBytesProcessed
	}

	it, err := job.Read(qCtx)
	if err != nil {
		return nil, fmt.Errorf("job read: %w", err)
	}

	var rows []map[string]interface{}
	var columns []string
	first := true

	for {
		var row map[string]bigquery.Value
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}

		if first && it.Schema != nil {
			for _, f := range it.Schema {
				columns = append(columns, f.Name)
			}
			first = false
		}

		m := make(map[string]interface{}, len(row))
		for k, v := range row {
			m[k] = v
		}
		rows = append(rows, m)
	}

	return &QueryResult{
		Data:                rows,
		Columns:             columns,
		JobID:               job.ID(),
		TotalBytesProcessed: bytesProcessed,
		ExecutionTimeMs:     time.Since(start).Milliseconds(),
	}, nil
}

// SchemaToString formats a BigQuery schema as a human-readable string
func SchemaToString(schema bigquery.Schema) string {
	var sb strings.Builder
	for _, f := range schema {
		fmt.Fprintf(&sb, "  %s %s\n", f.Name, f.Type)
	}
	return sb.String()
}

// Package warehouse runs queries against BigQuery and materializes the results
// as in-memory tables.
package warehouse

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"visits-pipeline/internal/model"
)

// Job is a submitted query whose result can be read once it completes
type Job interface {
	// Read waits for the query to finish and returns its rows
	Read(ctx context.Context) (*model.Table, error)
}

// Warehouse submits SQL queries. Implementations must be safe for concurrent use.
type Warehouse interface {
	Query(ctx context.Context, sql string) (Job, error)
}

// BigQuery is a Warehouse backed by a BigQuery client
type BigQuery struct {
	client *bigquery.Client
}

// NewBigQuery opens a client authenticated with a service-account key file.
// An empty projectID is detected from the credentials; an empty
// credentialsFile leaves authentication to opts.
func NewBigQuery(ctx context.Context, projectID, credentialsFile string, opts ...option.ClientOption) (*BigQuery, error) {
	if projectID == "" {
		projectID = bigquery.DetectProjectID
	}
	if credentialsFile != "" {
		opts = append([]option.ClientOption{option.WithCredentialsFile(credentialsFile)}, opts...)
	}

	client, err := bigquery.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create BigQuery client: %w", err)
	}
	return &BigQuery{client: client}, nil
}

// Query submits sql and returns without waiting for it to complete
func (b *BigQuery) Query(ctx context.Context, sql string) (Job, error) {
	job, err := b.client.Query(sql).Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("error submitting query: %w", err)
	}
	return &bigQueryJob{job: job}, nil
}

// Close releases the underlying client
func (b *BigQuery) Close() error {
	return b.client.Close()
}

type bigQueryJob struct {
	job *bigquery.Job
}

func (j *bigQueryJob) Read(ctx context.Context) (*model.Table, error) {
	it, err := j.job.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("error executing query %s: %w", j.job.ID(), err)
	}

	var rows [][]bigquery.Value
	for {
		var values []bigquery.Value
		err := it.Next(&values)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading query %s: %w", j.job.ID(), err)
		}
		rows = append(rows, values)
	}

	return toTable(it.Schema, rows), nil
}

// toTable converts BigQuery rows into a model.Table. Columns take the leaf
// field names, so geoNetwork.country becomes country.
func toTable(schema bigquery.Schema, rows [][]bigquery.Value) *model.Table {
	columns := make([]string, len(schema))
	for i, field := range schema {
		columns[i] = field.Name
	}

	table := model.NewTable(columns...)
	table.Rows = make([]model.Row, 0, len(rows))
	for _, values := range rows {
		row := make(model.Row, len(values))
		for i, v := range values {
			row[i] = v
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}

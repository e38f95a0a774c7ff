package bigquery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/rs/zerolog"
	"google.golang.org/api/googleapi"

	bq "github.com/dvloznov/asset-tracker/internal/bigquery"
	"github.com/dvloznov/asset-tracker/internal/models"
)

// Re-export interface from shared package
type AnalyticsRepository = bq.AnalyticsRepository

const transactionsTable = "transactions"

// BigQueryAnalyticsRepository is the AnalyticsRepository backed by BigQuery.
// Rows are written with load jobs rather than streaming inserts, so the
// DML delete of the next export never hits the streaming buffer.
type BigQueryAnalyticsRepository struct {
	client  *bigquery.Client
	dataset string
	now     func() time.Time
	loc     *time.Location
	log     zerolog.Logger
}

// NewBigQueryAnalyticsRepository creates a repository with its own client.
func NewBigQueryAnalyticsRepository(ctx context.Context, projectID, dataset string, log zerolog.Logger) (*BigQueryAnalyticsRepository, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewBigQueryAnalyticsRepository: creating client: %w", err)
	}
	return NewBigQueryAnalyticsRepositoryWithClient(client, dataset, log), nil
}

// NewBigQueryAnalyticsRepositoryWithClient wraps an existing client.
func NewBigQueryAnalyticsRepositoryWithClient(client *bigquery.Client, dataset string, log zerolog.Logger) *BigQueryAnalyticsRepository {
	return &BigQueryAnalyticsRepository{
		client:  client,
		dataset: dataset,
		now:     time.Now,
		loc:     time.Local,
		log:     log.With().Str("component", "analytics").Logger(),
	}
}

// Close closes the BigQuery client connection.
func (r *BigQueryAnalyticsRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// TransactionSchema is the schema of the exported transactions table.
func TransactionSchema() (bigquery.Schema, error) {
	schema, err := bigquery.InferSchema(TransactionRow{})
	if err != nil {
		return nil, fmt.Errorf("TransactionSchema: %w", err)
	}
	for _, f := range schema {
		switch f.Name {
		case "profile_id", "account_id", "transaction_date", "amount", "exported_ts":
			f.Required = true
		}
	}
	return schema, nil
}

// EnsureTable creates the dataset and the transactions table when missing.
func (r *BigQueryAnalyticsRepository) EnsureTable(ctx context.Context) error {
	ds := r.client.Dataset(r.dataset)
	if _, err := ds.Metadata(ctx); err != nil {
		if !isNotFound(err) {
			return fmt.Errorf("EnsureTable: dataset metadata: %w", err)
		}
		if err := ds.Create(ctx, &bigquery.DatasetMetadata{}); err != nil {
			return fmt.Errorf("EnsureTable: creating dataset %s: %w", r.dataset, err)
		}
		r.log.Info().Str("dataset", r.dataset).Msg("dataset created")
	}

	table := ds.Table(transactionsTable)
	if _, err := table.Metadata(ctx); err == nil {
		return nil
	} else if !isNotFound(err) {
		return fmt.Errorf("EnsureTable: table metadata: %w", err)
	}

	schema, err := TransactionSchema()
	if err != nil {
		return fmt.Errorf("EnsureTable: %w", err)
	}
	meta := &bigquery.TableMetadata{
		Schema: schema,
		TimePartitioning: &bigquery.TimePartitioning{
			Field: "transaction_date",
			Type:  bigquery.MonthPartitioningType,
		},
		Clustering: &bigquery.Clustering{Fields: []string{"profile_id", "account_id"}},
	}
	if err := table.Create(ctx, meta); err != nil {
		return fmt.Errorf("EnsureTable: creating table: %w", err)
	}
	r.log.Info().Str("table", transactionsTable).Msg("table created")
	return nil
}

// ReplaceProfileTransactions deletes the profile's exported rows and loads
// its current transactions.
func (r *BigQueryAnalyticsRepository) ReplaceProfileTransactions(ctx context.Context, p *models.Profile) (int, error) {
	if p == nil || p.ID == "" {
		return 0, fmt.Errorf("ReplaceProfileTransactions: profile ID is required")
	}

	if err := r.deleteProfileRows(ctx, p.ID); err != nil {
		return 0, fmt.Errorf("ReplaceProfileTransactions: %w", err)
	}

	rows := NewTransactionRows(p, r.now(), r.loc)
	if len(rows) == 0 {
		return 0, nil
	}
	if err := r.loadRows(ctx, rows); err != nil {
		return 0, fmt.Errorf("ReplaceProfileTransactions: %w", err)
	}

	r.log.Info().Str("profile_id", p.ID).Int("rows", len(rows)).Msg("transactions exported")
	return len(rows), nil
}

func (r *BigQueryAnalyticsRepository) deleteProfileRows(ctx context.Context, profileID string) error {
	q := r.client.Query(fmt.Sprintf(
		"DELETE FROM `%s.%s.%s` WHERE profile_id = @profile_id",
		r.client.Project(), r.dataset, transactionsTable,
	))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "profile_id", Value: profileID},
	}
	return runJob(ctx, q.Run)
}

func (r *BigQueryAnalyticsRepository) loadRows(ctx context.Context, rows []*TransactionRow) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, row := range rows {
		if err := enc.Encode(row.record()); err != nil {
			return fmt.Errorf("encoding row: %w", err)
		}
	}

	schema, err := TransactionSchema()
	if err != nil {
		return err
	}
	src := bigquery.NewReaderSource(&buf)
	src.SourceFormat = bigquery.JSON
	src.Schema = schema

	loader := r.client.Dataset(r.dataset).Table(transactionsTable).LoaderFrom(src)
	loader.WriteDisposition = bigquery.WriteAppend
	return runJob(ctx, loader.Run)
}

func runJob(ctx context.Context, run func(context.Context) (*bigquery.Job, error)) error {
	job, err := run(ctx)
	if err != nil {
		return fmt.Errorf("run job: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("wait for job: %w", err)
	}

	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}

var _ AnalyticsRepository = (*BigQueryAnalyticsRepository)(nil)

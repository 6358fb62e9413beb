package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/angelmondragon/pricesync-backend/pkg/config"
	"github.com/angelmondragon/pricesync-backend/pkg/logger"
)

const metadataTimeout = 10 * time.Second

var (
	errProjectIDRequired    = errors.New("gcp project id is required")
	errDatasetRequired      = errors.New("bigquery dataset is required")
	errTableNameRequired    = errors.New("bigquery table name is required")
	errClientNotInitialized = errors.New("bigquery client not initialized")

	// ErrTableMissing is returned by EnsureTable when the table does not
	// exist and table creation is disabled.
	ErrTableMissing = errors.New("bigquery table does not exist")
)

// TableSpec describes a table EnsureTable may create: day-partitioned on
// PartitionField and clustered on ClusterFields.
type TableSpec struct {
	Schema         bigquery.Schema
	PartitionField string
	ClusterFields  []string
	Description    string
}

// Client is a dataset-scoped BigQuery handle.
type Client struct {
	bq             *bigquery.Client
	dataset        *bigquery.Dataset
	createTables   bool
	maxBytesBilled int64
	logg           *logger.Logger
}

// NewClient dials BigQuery and checks the configured dataset is readable.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.BigQueryConfig, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}
	datasetID := strings.TrimSpace(cfg.Dataset)
	if datasetID == "" {
		return nil, errDatasetRequired
	}

	bq, err := bigquery.NewClient(ctx, projectID, clientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("creating bigquery client: %w", err)
	}
	c := &Client{
		bq:             bq,
		dataset:        bq.Dataset(datasetID),
		createTables:   cfg.CreateTables,
		maxBytesBilled: cfg.MaxBytesBilled,
		logg:           logg,
	}
	if err := c.Ping(ctx); err != nil {
		_ = bq.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"project": projectID,
			"dataset": datasetID,
		}), "bigquery client initialized")
	}
	return c, nil
}

func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	switch {
	case strings.TrimSpace(gcp.CredentialsJSON) != "":
		return []option.ClientOption{option.WithCredentialsJSON([]byte(gcp.CredentialsJSON))}
	case strings.TrimSpace(gcp.ApplicationCredentials) != "":
		return []option.ClientOption{option.WithCredentialsFile(gcp.ApplicationCredentials)}
	}
	return nil
}

// TableRef returns `project.dataset.table` quoted for use in SQL.
func (c *Client) TableRef(table string) string {
	if c == nil || c.dataset == nil {
		return ""
	}
	return fmt.Sprintf("`%s.%s.%s`", c.dataset.ProjectID, c.dataset.DatasetID, strings.TrimSpace(table))
}

// EnsureTable verifies name exists, creating it from spec when table
// creation is enabled.
func (c *Client) EnsureTable(ctx context.Context, name string, spec TableSpec) error {
	if c == nil || c.dataset == nil {
		return errClientNotInitialized
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return errTableNameRequired
	}

	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()

	table := c.dataset.Table(name)
	_, err := table.Metadata(ctx)
	switch {
	case err == nil:
		return nil
	case !isNotFound(err):
		return fmt.Errorf("checking table %q: %w", name, err)
	case !c.createTables:
		return fmt.Errorf("%w: %s", ErrTableMissing, name)
	}

	if err := table.Create(ctx, tableMetadata(spec)); err != nil && !isAlreadyExists(err) {
		return fmt.Errorf("creating table %q: %w", name, err)
	}
	if c.logg != nil {
		c.logg.Info(c.logg.WithField(ctx, "table", name), "bigquery table created")
	}
	return nil
}

func tableMetadata(spec TableSpec) *bigquery.TableMetadata {
	md := &bigquery.TableMetadata{
		Schema:      spec.Schema,
		Description: spec.Description,
	}
	if spec.PartitionField != "" {
		md.TimePartitioning = &bigquery.TimePartitioning{
			Type:  bigquery.DayPartitioningType,
			Field: spec.PartitionField,
		}
	}
	if len(spec.ClusterFields) > 0 {
		md.Clustering = &bigquery.Clustering{Fields: spec.ClusterFields}
	}
	return md
}

// Ping checks the dataset is readable.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.dataset == nil {
		return errClientNotInitialized
	}
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()
	if _, err := c.dataset.Metadata(ctx); err != nil {
		if isNotFound(err) {
			return fmt.Errorf("dataset %q does not exist", c.dataset.DatasetID)
		}
		return fmt.Errorf("checking dataset %q: %w", c.dataset.DatasetID, err)
	}
	return nil
}

// InsertRows streams rows into table. rows must be ValueSavers or structs
// with bigquery tags.
func (c *Client) InsertRows(ctx context.Context, table string, rows []any) error {
	if c == nil || c.dataset == nil {
		return errClientNotInitialized
	}
	table = strings.TrimSpace(table)
	if table == "" {
		return errTableNameRequired
	}
	if len(rows) == 0 {
		return nil
	}
	return c.dataset.Table(table).Inserter().Put(ctx, rows)
}

// Query runs a parameterised query capped at the configured bytes billed.
func (c *Client) Query(ctx context.Context, sql string, params []bigquery.QueryParameter) (*bigquery.RowIterator, error) {
	if c == nil || c.bq == nil {
		return nil, errClientNotInitialized
	}
	if strings.TrimSpace(sql) == "" {
		return nil, errors.New("sql query is required")
	}
	q := c.bq.Query(sql)
	q.Parameters = params
	if c.maxBytesBilled > 0 {
		q.MaxBytesBilled = c.maxBytesBilled
	}
	return q.Read(ctx)
}

func (c *Client) Close() error {
	if c == nil || c.bq == nil {
		return nil
	}
	return c.bq.Close()
}

func isNotFound(err error) bool {
	return apiCode(err) == http.StatusNotFound
}

func isAlreadyExists(err error) bool {
	return apiCode(err) == http.StatusConflict
}

func apiCode(err error) int {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return 0
}

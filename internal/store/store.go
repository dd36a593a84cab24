// Package store optionally mirrors a run's summary (metrics snapshot plus
// root metadata) into partitioned object storage, using a Hive-style
// Source/Category/Day/RunID partition key and a Client interface over the
// S3 client so it can be faked in tests.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/aaweaver-actuary/repgrow/internal/domain"
	"github.com/aaweaver-actuary/repgrow/internal/metrics"
)

// DefaultDataset is the default dataset name, used when Config.Dataset is
// empty.
const DefaultDataset = "repgrow"

// Config holds the partition keys for a run-summary write. All fields
// except Dataset are required.
type Config struct {
	// Dataset is the storage dataset name (default DefaultDataset).
	Dataset string
	// Source is the partition key for the originating run (e.g. "cli").
	Source string
	// Category is the partition key for the logical record type
	// ("run_summary" in practice; kept configurable for future kinds).
	Category string
	// Day is the partition key, derived from the run's start time
	// (YYYY-MM-DD UTC); see DeriveDay.
	Day string
	// RunID is the partition key identifying this run.
	RunID string
}

// DeriveDay computes the partition day from a run's start time, UTC,
// YYYY-MM-DD.
func DeriveDay(startTime time.Time) string {
	return startTime.UTC().Format("2006-01-02")
}

// Summary is the record written per run: the metrics snapshot plus enough
// root metadata to identify the tree without re-reading the writer's output
// file.
type Summary struct {
	RunID       string           `json:"run_id"`
	Side        string           `json:"side"`
	MaxPlies    uint32           `json:"max_plies"`
	RootFEN     string           `json:"root_fen"`
	NodeCount   int              `json:"node_count"`
	CompletedAt time.Time        `json:"completed_at"`
	Metrics     metrics.Snapshot `json:"metrics"`
}

// NewSummary builds a Summary from a run's root node, final node count, and
// metrics snapshot.
func NewSummary(runID string, root domain.Node, nodeCount int, snap metrics.Snapshot, completedAt time.Time) Summary {
	return Summary{
		RunID:       runID,
		Side:        snap.Side,
		RootFEN:     root.Position.FEN,
		NodeCount:   nodeCount,
		CompletedAt: completedAt,
		Metrics:     snap,
	}
}

// Client abstracts the storage backend a Sink writes through.
type Client interface {
	// PutObject writes body to key within the client's configured bucket
	// and prefix.
	PutObject(ctx context.Context, key string, body []byte) error
	// Close releases client resources.
	Close() error
}

// Sink mirrors a run Summary into Client under a Hive-style partition path:
// dataset/source=.../category=.../day=.../run_id=.../summary.json.
type Sink struct {
	config Config
	client Client
}

// NewSink constructs a Sink. config.Dataset defaults to DefaultDataset when
// empty.
func NewSink(config Config, client Client) *Sink {
	if config.Dataset == "" {
		config.Dataset = DefaultDataset
	}
	return &Sink{config: config, client: client}
}

// Write encodes summary as indented JSON and writes it to the sink's
// partitioned key.
func (s *Sink) Write(ctx context.Context, summary Summary) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("store: encode summary: %w", err)
	}
	return s.client.PutObject(ctx, s.key(), buf.Bytes())
}

// key builds the Hive-style partition path for this sink's configuration.
func (s *Sink) key() string {
	return strings.Join([]string{
		s.config.Dataset,
		"source=" + s.config.Source,
		"category=" + s.config.Category,
		"day=" + s.config.Day,
		"run_id=" + s.config.RunID,
		"summary.json",
	}, "/")
}

// Close implements Client passthrough.
func (s *Sink) Close() error {
	return s.client.Close()
}

// S3Config configures the S3-backed Client.
type S3Config struct {
	// Bucket is the S3 bucket name (required).
	Bucket string
	// Prefix is an optional key prefix within the bucket.
	Prefix string
	// Region is the AWS region; empty uses the SDK's default chain.
	Region string
}

// Validate checks that required S3 configuration is present.
func (c S3Config) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("store: S3 bucket is required")
	}
	return nil
}

// S3Client is a Client backed by an AWS S3 bucket.
type S3Client struct {
	bucket string
	prefix string
	api    *s3.Client
}

// NewS3Client builds an S3Client using the AWS SDK's default credential
// chain (env vars, shared config, IAM role).
func NewS3Client(ctx context.Context, cfg S3Config) (*S3Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("store: load AWS config: %w", err)
	}
	return &S3Client{bucket: cfg.Bucket, prefix: cfg.Prefix, api: s3.NewFromConfig(awsCfg)}, nil
}

// PutObject implements Client.
func (c *S3Client) PutObject(ctx context.Context, key string, body []byte) error {
	fullKey := key
	if c.prefix != "" {
		fullKey = strings.TrimSuffix(c.prefix, "/") + "/" + key
	}
	_, err := c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &c.bucket,
		Key:    &fullKey,
		Body:   bytes.NewReader(body),
	})
	if err != nil {
		return fmt.Errorf("store: put object %q: %w", fullKey, err)
	}
	return nil
}

// Close implements Client. The S3 SDK client needs no explicit teardown.
func (c *S3Client) Close() error {
	return nil
}

var _ Client = (*S3Client)(nil)

// StubClient is an in-memory Client for tests: it records every write
// without persisting it.
type StubClient struct {
	Writes []StubWrite
	Closed bool
}

// StubWrite is one recorded PutObject call.
type StubWrite struct {
	Key  string
	Body []byte
}

// PutObject implements Client.
func (c *StubClient) PutObject(_ context.Context, key string, body []byte) error {
	c.Writes = append(c.Writes, StubWrite{Key: key, Body: append([]byte(nil), body...)})
	return nil
}

// Close implements Client.
func (c *StubClient) Close() error {
	c.Closed = true
	return nil
}

var _ Client = (*StubClient)(nil)

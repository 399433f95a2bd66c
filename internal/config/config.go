// Package config loads the groundtruth configuration file and derives the
// AWS, backend and store configurations from it.
package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"

	"github.com/jacentio/groundtruth/internal/dynamo"
	"github.com/jacentio/groundtruth/store"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "GROUNDTRUTH_"

// Config is the on-disk configuration.
type Config struct {
	AWS    AWS    `yaml:"aws"`
	Dynamo Dynamo `yaml:"dynamo"`
	Store  Store  `yaml:"store"`
	Log    Log    `yaml:"log"`
}

// AWS selects the account, region and endpoint of the DynamoDB tables.
type AWS struct {
	Region  string `yaml:"region"`
	Profile string `yaml:"profile"`

	// Endpoint overrides the DynamoDB endpoint, e.g. http://localhost:8000
	// for DynamoDB Local.
	Endpoint string `yaml:"endpoint"`

	// Static credentials, used instead of the default chain when both are set.
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// Dynamo names the tables and sets how many partitions each class's edges
// are spread over.
type Dynamo struct {
	DocumentsTable string `yaml:"documents_table"`
	TagsTable      string `yaml:"tags_table"`
	NumShards      int    `yaml:"num_shards"`
}

// Store tunes listing page size and import parallelism.
type Store struct {
	PageSize          int `yaml:"page_size"`
	ImportConcurrency int `yaml:"import_concurrency"`
}

// Log configures the process logger.
type Log struct {
	// Level is one of debug, info, warn or error.
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	d := dynamo.DefaultConfig()
	s := store.DefaultConfig()
	return &Config{
		Dynamo: Dynamo{
			DocumentsTable: d.DocumentsTable,
			TagsTable:      d.TagsTable,
			NumShards:      d.NumShards,
		},
		Store: Store{
			PageSize:          s.PageSize,
			ImportConcurrency: s.ImportConcurrency,
		},
		Log: Log{Level: "info"},
	}
}

// Load reads the file at path, if any, and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if cfg, err = Unmarshal(content); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Unmarshal parses a YAML document over the defaults.
func Unmarshal(content []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(content, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from GROUNDTRUTH_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"REGION":            &c.AWS.Region,
		"PROFILE":           &c.AWS.Profile,
		"ENDPOINT":          &c.AWS.Endpoint,
		"ACCESS_KEY_ID":     &c.AWS.AccessKeyID,
		"SECRET_ACCESS_KEY": &c.AWS.SecretAccessKey,
		"DOCUMENTS_TABLE":   &c.Dynamo.DocumentsTable,
		"TAGS_TABLE":        &c.Dynamo.TagsTable,
		"LOG_LEVEL":         &c.Log.Level,
	}
	for name, field := range strs {
		if v, ok := lookup(EnvPrefix + name); ok {
			*field = v
		}
	}

	ints := map[string]*int{
		"NUM_SHARDS":         &c.Dynamo.NumShards,
		"PAGE_SIZE":          &c.Store.PageSize,
		"IMPORT_CONCURRENCY": &c.Store.ImportConcurrency,
	}
	for name, field := range ints {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*field = n
	}
	return nil
}

// Level returns the configured log level, defaulting to info.
func (c *Config) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// AWSConfig builds the SDK configuration.
func (c *Config) AWSConfig(ctx context.Context) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if c.AWS.Region != "" {
		opts = append(opts, awsconfig.WithRegion(c.AWS.Region))
	}
	if c.AWS.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(c.AWS.Profile))
	}
	if c.AWS.AccessKeyID != "" && c.AWS.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AWS.AccessKeyID, c.AWS.SecretAccessKey, ""),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load AWS config: %w", err)
	}
	return cfg, nil
}

// DynamoClient builds a DynamoDB client honouring the endpoint override.
func (c *Config) DynamoClient(ctx context.Context) (*dynamodb.Client, error) {
	cfg, err := c.AWSConfig(ctx)
	if err != nil {
		return nil, err
	}
	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if c.AWS.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.AWS.Endpoint)
		}
	}), nil
}

// BackendConfig returns the DynamoDB backend configuration.
func (c *Config) BackendConfig() dynamo.Config {
	return dynamo.Config{
		DocumentsTable: c.Dynamo.DocumentsTable,
		TagsTable:      c.Dynamo.TagsTable,
		NumShards:      c.Dynamo.NumShards,
	}
}

// StoreConfig returns the store configuration.
func (c *Config) StoreConfig(logger *slog.Logger, reg prometheus.Registerer) store.Config {
	return store.Config{
		PageSize:          c.Store.PageSize,
		ImportConcurrency: c.Store.ImportConcurrency,
		Logger:            logger,
		Registerer:        reg,
	}
}

// Open builds a store over DynamoDB.
func (c *Config) Open(ctx context.Context, logger *slog.Logger, reg prometheus.Registerer) (*store.Store, error) {
	client, err := c.DynamoClient(ctx)
	if err != nil {
		return nil, err
	}
	backend := c.BackendConfig()
	backend.Logger = logger
	return store.New(dynamo.New(client, backend), c.StoreConfig(logger, reg)), nil
}

package dynamo

import "log/slog"

// Config holds configuration for the DynamoDB backend.
type Config struct {
	// DocumentsTable is the shared multi-tenant documents table.
	// Default: "groundtruth_documents"
	DocumentsTable string

	// TagsTable holds one edge per (text, class) pair for reverse lookups.
	// Default: "groundtruth_tags"
	TagsTable string

	// NumShards is the number of partitions the edges of one class are spread over.
	// Higher values increase write throughput for heavily used classes but
	// require more parallel queries when listing a class.
	// Default: 1 (no sharding, single query)
	// Max: 256
	NumShards int

	// Logger reports edges a write could not clean up after its document
	// committed. Default: slog.Default()
	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults for small datasets.
func DefaultConfig() Config {
	return Config{
		DocumentsTable: "groundtruth_documents",
		TagsTable:      "groundtruth_tags",
		NumShards:      1,
	}
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	if c.DocumentsTable == "" {
		c.DocumentsTable = "groundtruth_documents"
	}
	if c.TagsTable == "" {
		c.TagsTable = "groundtruth_tags"
	}
	if c.NumShards < 1 {
		c.NumShards = 1
	}
	if c.NumShards > 256 {
		c.NumShards = 256
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

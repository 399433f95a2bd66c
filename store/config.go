package store

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// Config holds configuration for the Store.
type Config struct {
	// PageSize bounds list queries without an explicit limit and every page of
	// a cascading delete.
	// Default: 100
	// Max: 1000
	PageSize int

	// ImportConcurrency is the number of class creations an import entry may
	// have in flight.
	// Default: 10
	// Max: 100
	ImportConcurrency int

	// Logger receives store diagnostics. Default: slog.Default()
	Logger *slog.Logger

	// Registerer, when set, receives the store's operation metrics.
	Registerer prometheus.Registerer

	// Registry lists the references cleaned up when a document is deleted.
	// Default: DefaultRegistry()
	Registry *Registry
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		PageSize:          100,
		ImportConcurrency: 10,
	}
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	if c.PageSize < 1 {
		c.PageSize = 100
	}
	if c.PageSize > 1000 {
		c.PageSize = 1000
	}
	if c.ImportConcurrency < 1 {
		c.ImportConcurrency = 10
	}
	if c.ImportConcurrency > 100 {
		c.ImportConcurrency = 100
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Registry == nil {
		c.Registry = DefaultRegistry()
	}
}

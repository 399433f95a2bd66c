package store

import (
	"context"
	"log/slog"
	"time"
)

// Store is the tenant-scoped document store. It layers uniqueness checks,
// revision control, reference cleanup and import reconciliation over a Backend.
type Store struct {
	backend  Backend
	config   Config
	logger   *slog.Logger
	registry *Registry
	metrics  *metrics
}

// New creates a new Store instance.
func New(backend Backend, config Config) *Store {
	config.validate()
	return &Store{
		backend:  backend,
		config:   config,
		logger:   config.Logger,
		registry: config.Registry,
		metrics:  newMetrics(config.Registerer),
	}
}

// Registry returns the reference registry used by cascading deletes.
func (s *Store) Registry() *Registry {
	return s.registry
}

// Config returns the validated configuration.
func (s *Store) Config() Config {
	return s.config
}

// Migrate creates or upgrades the backend's indexes.
func (s *Store) Migrate(ctx context.Context) (err error) {
	defer s.metrics.observe("migrate", time.Now(), &err)
	if err := s.backend.Migrate(ctx); err != nil {
		s.logger.Error("migration failed", "error", err)
		return wrapError(err, "migrate")
	}
	return nil
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

// get fetches a document by id and checks it belongs to tenant and schema.
func (s *Store) get(ctx context.Context, tenant string, schema Schema, id string) (*Document, error) {
	if id == "" {
		return nil, newError(KindMissingField, "field %q is required", "id")
	}
	doc, err := s.backend.Get(ctx, id)
	if err != nil {
		if KindOf(err) == KindNotFound {
			s.logger.Debug("document not found", "tenant", tenant, "schema", schema, "id", id)
		} else {
			s.logger.Error("get failed", "tenant", tenant, "id", id, "error", err)
		}
		return nil, wrapError(err, "get %s", id)
	}
	if err := checkDocument(doc, tenant, schema); err != nil {
		return nil, err
	}
	return doc, nil
}

// checkDocument verifies a fetched document has the requested schema and tenant.
func checkDocument(doc *Document, tenant string, schema Schema) error {
	if doc.Schema != schema {
		return newError(KindUnexpectedType, "document %s has schema %q, expected %q", doc.ID, doc.Schema, schema)
	}
	if doc.Tenant != tenant {
		return newError(KindForbidden, "document %s does not belong to tenant %q", doc.ID, tenant)
	}
	return nil
}

// ensureUnique fails with KindNonUnique if another document of schema in
// tenant already uses key. selfID is the document being written.
func (s *Store) ensureUnique(ctx context.Context, tenant string, schema Schema, key, selfID string) error {
	existing, err := s.findByNaturalKey(ctx, schema, tenant, key)
	switch {
	case err == nil:
		if existing.ID != selfID {
			return newError(KindNonUnique, "%s %q already exists", schema, key)
		}
		return nil
	case KindOf(err) == KindNotFound:
		return nil
	default:
		return err
	}
}

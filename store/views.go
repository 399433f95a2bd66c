package store

import (
	"context"
	"fmt"
)

// listByTenant lists documents of schema in tenant, ordered by natural key.
func (s *Store) listByTenant(ctx context.Context, schema Schema, tenant string, opts ListOptions) ([]*Document, error) {
	return s.query(ctx, ViewQuery{
		View:   ViewBySchema,
		Tenant: tenant,
		Schema: schema,
		Fields: opts.Fields,
		Skip:   opts.Skip,
		Limit:  opts.Limit,
	})
}

// countByTenant counts documents of schema in tenant.
func (s *Store) countByTenant(ctx context.Context, schema Schema, tenant string) (int, error) {
	return s.count(ctx, ViewQuery{View: ViewBySchema, Tenant: tenant, Schema: schema})
}

// findByNaturalKey returns the single document of schema in tenant whose
// natural key is key.
func (s *Store) findByNaturalKey(ctx context.Context, schema Schema, tenant, key string) (*Document, error) {
	docs, err := s.query(ctx, ViewQuery{
		View:   ViewByNaturalKey,
		Tenant: tenant,
		Schema: schema,
		Keys:   []string{key},
		Limit:  2,
	})
	if err != nil {
		return nil, err
	}
	switch len(docs) {
	case 0:
		s.logger.Debug("natural key not found", "tenant", tenant, "schema", schema, "key", key)
		return nil, newError(KindNotFound, "%s %q not found", schema, key)
	case 1:
		return docs[0], nil
	default:
		s.logger.Error("natural key is not unique", "tenant", tenant, "schema", schema, "key", key, "matches", len(docs))
		return nil, newError(KindTooManyResults, "%d documents share %s %q", len(docs), schema, key)
	}
}

// findByNaturalKeys resolves many natural keys at once. Keys without a match
// are absent from the result; a key with several matches fails the lookup.
func (s *Store) findByNaturalKeys(ctx context.Context, schema Schema, tenant string, keys []string) (map[string]*Document, error) {
	found := make(map[string]*Document, len(keys))
	if len(keys) == 0 {
		return found, nil
	}
	docs, err := s.query(ctx, ViewQuery{
		View:   ViewByNaturalKey,
		Tenant: tenant,
		Schema: schema,
		Keys:   keys,
		Limit:  2 * len(keys),
	})
	if err != nil {
		return nil, err
	}
	for _, doc := range docs {
		key := doc.NaturalKey()
		if _, dup := found[key]; dup {
			return nil, newError(KindTooManyResults, "several documents share %s %q", schema, key)
		}
		found[key] = doc
	}
	return found, nil
}

// lookupByIDs returns the documents among ids that exist as schema in tenant.
// Unknown ids and documents of other tenants or kinds are omitted.
func (s *Store) lookupByIDs(ctx context.Context, schema Schema, tenant string, ids []string) ([]*Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	docs, err := s.backend.GetMany(ctx, ids)
	if err != nil {
		s.logger.Error("batch lookup failed", "tenant", tenant, "schema", schema, "error", err)
		return nil, wrapError(err, "lookup %d ids", len(ids))
	}
	out := docs[:0:0]
	for _, doc := range docs {
		if doc.Tenant == tenant && doc.Schema == schema {
			out = append(out, doc)
		}
	}
	return out, nil
}

// allDocumentsInTenant lists every document of tenant, ordered by id.
func (s *Store) allDocumentsInTenant(ctx context.Context, tenant string, opts ListOptions) ([]*Document, error) {
	return s.query(ctx, ViewQuery{
		View:   ViewByTenant,
		Tenant: tenant,
		Skip:   opts.Skip,
		Limit:  opts.Limit,
	})
}

// countDocumentsInTenant counts every document of tenant.
func (s *Store) countDocumentsInTenant(ctx context.Context, tenant string) (int, error) {
	return s.count(ctx, ViewQuery{View: ViewByTenant, Tenant: tenant})
}

func (s *Store) query(ctx context.Context, q ViewQuery) ([]*Document, error) {
	docs, err := s.backend.Query(ctx, q)
	if err != nil {
		s.logger.Error("view query failed", "view", q.View, "tenant", q.Tenant, "schema", q.Schema, "error", err)
		return nil, wrapError(err, "query %s", q.View)
	}
	return docs, nil
}

func (s *Store) count(ctx context.Context, q ViewQuery) (int, error) {
	n, err := s.backend.Count(ctx, q)
	if err != nil {
		s.logger.Error("view count failed", "view", q.View, "tenant", q.Tenant, "schema", q.Schema, "error", err)
		return 0, wrapError(err, "count %s", q.View)
	}
	return n, nil
}

// CountClasses returns the number of classes in tenant.
func (s *Store) CountClasses(ctx context.Context, tenant string) (int, error) {
	if err := requireTenant(tenant); err != nil {
		return 0, err
	}
	return s.countByTenant(ctx, SchemaClass, tenant)
}

// CountTexts returns the number of texts in tenant.
func (s *Store) CountTexts(ctx context.Context, tenant string) (int, error) {
	if err := requireTenant(tenant); err != nil {
		return 0, err
	}
	return s.countByTenant(ctx, SchemaText, tenant)
}

// CountTenantDocuments returns the number of documents of any kind in tenant.
func (s *Store) CountTenantDocuments(ctx context.Context, tenant string) (int, error) {
	if err := requireTenant(tenant); err != nil {
		return 0, err
	}
	return s.countDocumentsInTenant(ctx, tenant)
}

// TenantStats summarizes a tenant's document counts.
type TenantStats struct {
	Classes   int
	Texts     int
	Documents int
}

func (t TenantStats) String() string {
	return fmt.Sprintf("classes=%d texts=%d documents=%d", t.Classes, t.Texts, t.Documents)
}

// Stats returns the document counts of tenant.
func (s *Store) Stats(ctx context.Context, tenant string) (TenantStats, error) {
	var st TenantStats
	var err error
	if st.Classes, err = s.CountClasses(ctx, tenant); err != nil {
		return st, err
	}
	if st.Texts, err = s.CountTexts(ctx, tenant); err != nil {
		return st, err
	}
	if st.Documents, err = s.CountTenantDocuments(ctx, tenant); err != nil {
		return st, err
	}
	return st, nil
}

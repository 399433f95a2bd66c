package store

import (
	"context"
	"time"
)

// CreateText creates a text in tenant. The value must be unique in the tenant
// and every class id must name an existing class of the tenant.
func (s *Store) CreateText(ctx context.Context, tenant string, attrs Attrs) (_ *Text, err error) {
	defer s.metrics.observe("create_text", time.Now(), &err)
	if err := requireTenant(tenant); err != nil {
		return nil, err
	}
	doc, err := buildText(tenant, attrs)
	if err != nil {
		return nil, err
	}
	if err := s.ensureUnique(ctx, tenant, SchemaText, doc.Value, ""); err != nil {
		return nil, err
	}
	if err := s.validateClassIDs(ctx, tenant, doc.Classes); err != nil {
		return nil, err
	}
	stored, err := s.backend.Insert(ctx, doc)
	if err != nil {
		s.logger.Error("create text failed", "tenant", tenant, "error", err)
		return nil, wrapError(err, "insert text")
	}
	return textFromDocument(stored), nil
}

// ReplaceText overwrites the text identified by attrs["id"]. rev must be the
// current revision or AnyRevision.
func (s *Store) ReplaceText(ctx context.Context, tenant string, attrs Attrs, rev string) (_ *Text, err error) {
	defer s.metrics.observe("replace_text", time.Now(), &err)
	if err := requireTenant(tenant); err != nil {
		return nil, err
	}
	id, err := attrs.str("id")
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, newError(KindMissingField, "field %q is required", "id")
	}
	doc, err := buildText(tenant, attrs)
	if err != nil {
		return nil, err
	}
	current, err := s.get(ctx, tenant, SchemaText, id)
	if err != nil {
		return nil, err
	}
	expected, err := checkRevision(current, rev)
	if err != nil {
		return nil, err
	}
	if err := s.ensureUnique(ctx, tenant, SchemaText, doc.Value, id); err != nil {
		return nil, err
	}
	if err := s.validateClassIDs(ctx, tenant, doc.Classes); err != nil {
		return nil, err
	}
	stored, err := s.backend.Replace(ctx, doc, expected)
	if err != nil {
		return nil, wrapError(err, "replace text %s", id)
	}
	return textFromDocument(stored), nil
}

// DeleteText deletes the text if rev matches its current revision.
func (s *Store) DeleteText(ctx context.Context, tenant, id, rev string) (err error) {
	defer s.metrics.observe("delete_text", time.Now(), &err)
	if err := requireTenant(tenant); err != nil {
		return err
	}
	current, err := s.get(ctx, tenant, SchemaText, id)
	if err != nil {
		return err
	}
	expected, err := checkRevision(current, rev)
	if err != nil {
		return err
	}
	if err := s.backend.Delete(ctx, id, expected); err != nil {
		return wrapError(err, "delete text %s", id)
	}
	return nil
}

package store

import (
	"context"
	"time"
)

// CreateClass creates a class in tenant. The name must be unique in the tenant.
func (s *Store) CreateClass(ctx context.Context, tenant string, attrs Attrs) (_ *Class, err error) {
	defer s.metrics.observe("create_class", time.Now(), &err)
	if err := requireTenant(tenant); err != nil {
		return nil, err
	}
	doc, err := buildClass(tenant, attrs)
	if err != nil {
		return nil, err
	}
	if err := s.ensureUnique(ctx, tenant, SchemaClass, doc.Name, ""); err != nil {
		return nil, err
	}
	stored, err := s.backend.Insert(ctx, doc)
	if err != nil {
		s.logger.Error("create class failed", "tenant", tenant, "name", doc.Name, "error", err)
		return nil, wrapError(err, "insert class")
	}
	s.logger.Debug("class created", "tenant", tenant, "id", stored.ID, "name", stored.Name)
	return classFromDocument(stored), nil
}

// ReplaceClass overwrites the class identified by attrs["id"]. rev must be
// the current revision or AnyRevision.
func (s *Store) ReplaceClass(ctx context.Context, tenant string, attrs Attrs, rev string) (_ *Class, err error) {
	defer s.metrics.observe("replace_class", time.Now(), &err)
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
	doc, err := buildClass(tenant, attrs)
	if err != nil {
		return nil, err
	}
	current, err := s.get(ctx, tenant, SchemaClass, id)
	if err != nil {
		return nil, err
	}
	expected, err := checkRevision(current, rev)
	if err != nil {
		return nil, err
	}
	if err := s.ensureUnique(ctx, tenant, SchemaClass, doc.Name, id); err != nil {
		return nil, err
	}
	stored, err := s.backend.Replace(ctx, doc, expected)
	if err != nil {
		return nil, wrapError(err, "replace class %s", id)
	}
	return classFromDocument(stored), nil
}

// DeleteClass deletes the class and strips its id from every text of the
// tenant. The returned report covers the reference cleanup; a cleanup failure
// on one text does not stop the others.
func (s *Store) DeleteClass(ctx context.Context, tenant, id, rev string) (_ *CascadeReport, err error) {
	defer s.metrics.observe("delete_class", time.Now(), &err)
	if err := requireTenant(tenant); err != nil {
		return nil, err
	}
	current, err := s.get(ctx, tenant, SchemaClass, id)
	if err != nil {
		return nil, err
	}
	expected, err := checkRevision(current, rev)
	if err != nil {
		return nil, err
	}
	if err := s.backend.Delete(ctx, id, expected); err != nil {
		return nil, wrapError(err, "delete class %s", id)
	}
	s.logger.Info("class deleted", "tenant", tenant, "id", id)
	return s.cleanupReferences(ctx, tenant, SchemaClass, id)
}

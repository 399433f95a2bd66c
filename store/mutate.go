package store

import (
	"context"
	"time"
)

// MetadataPatch is a merge-patch of a text. Only the supplied metadata keys are
// overwritten; Value, when set, renames the text.
type MetadataPatch struct {
	Value    *string        `json:"value,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (p *MetadataPatch) empty() bool {
	return p == nil || (p.Value == nil && len(p.Metadata) == 0)
}

// AddClassesToText tags the text with classIDs in one atomic step. Concurrent
// additions to the same text never lose each other's ids. It returns a nil
// Text without touching the backend when classIDs is empty.
func (s *Store) AddClassesToText(ctx context.Context, tenant, textID string, classIDs []string) (_ *Text, err error) {
	defer s.metrics.observe("add_classes", time.Now(), &err)
	return s.mutateClasses(ctx, ProcAddClasses, tenant, textID, classIDs)
}

// RemoveClassesFromText untags the text in one atomic step. Ids the text does
// not carry are ignored, but every id must name an existing class.
func (s *Store) RemoveClassesFromText(ctx context.Context, tenant, textID string, classIDs []string) (_ *Text, err error) {
	defer s.metrics.observe("remove_classes", time.Now(), &err)
	return s.mutateClasses(ctx, ProcRemoveClasses, tenant, textID, classIDs)
}

func (s *Store) mutateClasses(ctx context.Context, name ProcName, tenant, textID string, classIDs []string) (*Text, error) {
	if len(classIDs) == 0 {
		return nil, nil
	}
	if err := requireTenant(tenant); err != nil {
		return nil, err
	}
	if textID == "" {
		return nil, newError(KindMissingField, "text id is required")
	}
	ids := dedupe(classIDs)
	if err := s.validateClassIDs(ctx, tenant, ids); err != nil {
		return nil, err
	}
	proc := Procedure{
		Name:    name,
		Tenant:  tenant,
		Schema:  SchemaText,
		Classes: ids,
	}
	if name == ProcAddClasses {
		proc.Require = ids
	}
	doc, err := s.invoke(ctx, textID, proc)
	if err != nil {
		return nil, err
	}
	return textFromDocument(doc), nil
}

// UpdateTextMetadata merges patch into the text in one atomic step. A nil or
// empty patch returns a nil Text without touching the backend.
func (s *Store) UpdateTextMetadata(ctx context.Context, tenant, textID string, patch *MetadataPatch) (_ *Text, err error) {
	defer s.metrics.observe("update_metadata", time.Now(), &err)
	if patch.empty() {
		return nil, nil
	}
	if err := requireTenant(tenant); err != nil {
		return nil, err
	}
	if textID == "" {
		return nil, newError(KindMissingField, "text id is required")
	}
	if patch.Value != nil {
		if *patch.Value == "" {
			return nil, newError(KindInvalid, "value must not be empty")
		}
		if err := s.ensureUnique(ctx, tenant, SchemaText, *patch.Value, textID); err != nil {
			return nil, err
		}
	}
	doc, err := s.invoke(ctx, textID, Procedure{
		Name:     ProcPatchMetadata,
		Tenant:   tenant,
		Schema:   SchemaText,
		Value:    patch.Value,
		Metadata: patch.Metadata,
	})
	if err != nil {
		return nil, err
	}
	return textFromDocument(doc), nil
}

// validateClassIDs fails with KindInvalid unless every id names a class of tenant.
func (s *Store) validateClassIDs(ctx context.Context, tenant string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	found, err := s.lookupByIDs(ctx, SchemaClass, tenant, ids)
	if err != nil {
		return err
	}
	requested := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		requested[id] = struct{}{}
	}
	if len(found) != len(requested) {
		return newError(KindInvalid, "%d of %d class ids do not exist", len(requested)-len(found), len(requested))
	}
	for _, doc := range found {
		if _, ok := requested[doc.ID]; !ok {
			return newError(KindInvalid, "unexpected class %s in lookup", doc.ID)
		}
	}
	return nil
}

// invoke runs proc against id and converts an embedded procedure error into a
// typed error.
func (s *Store) invoke(ctx context.Context, id string, proc Procedure) (*Document, error) {
	res, err := s.backend.Apply(ctx, id, proc)
	if err != nil {
		s.logger.Error("procedure failed", "proc", proc.Name, "id", id, "error", err)
		return nil, wrapError(err, "%s on %s", proc.Name, id)
	}
	if res.Err != nil {
		err := res.Err.toError()
		if KindOf(err) == KindNotFound {
			s.logger.Debug("procedure target not found", "proc", proc.Name, "id", id)
		} else {
			s.logger.Warn("procedure refused", "proc", proc.Name, "id", id, "category", res.Err.Category, "reason", res.Err.Reason)
		}
		return nil, err
	}
	return res.Doc, nil
}

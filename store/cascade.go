package store

import (
	"context"
	"time"
)

// CascadeReport summarizes a cascading delete. Failed items are left in place
// and listed in Errors; re-running the cascade retries them.
type CascadeReport struct {
	Processed int
	Failed    int
	Errors    []error
}

func (r *CascadeReport) add(err error) {
	if err != nil {
		r.Failed++
		r.Errors = append(r.Errors, err)
		return
	}
	r.Processed++
}

// drain walks a view page by page, calling fn for every document. Documents fn
// succeeds on must drop out of the view; failed ones are skipped on the next
// query. It stops once a page is shorter than the page size.
func (s *Store) drain(ctx context.Context, q ViewQuery, fn func(*Document) error) (*CascadeReport, error) {
	report := &CascadeReport{}
	q.Limit = s.config.PageSize
	for {
		q.Skip = report.Failed
		page, err := s.query(ctx, q)
		if err != nil {
			return report, err
		}
		for _, doc := range page {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			report.add(fn(doc))
		}
		if len(page) < q.Limit {
			return report, nil
		}
	}
}

// cleanupReferences removes id from every document referencing it.
func (s *Store) cleanupReferences(ctx context.Context, tenant string, target Schema, id string) (*CascadeReport, error) {
	total := &CascadeReport{}
	for _, ref := range s.registry.ReferencesTo(target) {
		report, err := s.drain(ctx, ViewQuery{
			View:   ref.View,
			Tenant: tenant,
			Schema: ref.Source,
			Keys:   []string{id},
			Fields: []string{"_id", "_rev", "tenant", "schema"},
		}, func(doc *Document) error {
			_, err := s.invoke(ctx, doc.ID, Procedure{
				Name:    ref.Remove,
				Tenant:  tenant,
				Schema:  ref.Source,
				Classes: []string{id},
			})
			if err != nil && KindOf(err) == KindNotFound {
				// Deleted since the page was read.
				return nil
			}
			return err
		})
		total.Processed += report.Processed
		total.Failed += report.Failed
		total.Errors = append(total.Errors, report.Errors...)
		if err != nil {
			s.metrics.cascade("references", total)
			return total, wrapError(err, "cleanup %s references to %s", ref.Field, id)
		}
	}
	s.metrics.cascade("references", total)
	if total.Failed > 0 {
		s.logger.Error("reference cleanup incomplete", "tenant", tenant, "target", target, "id", id, "failed", total.Failed)
	} else {
		s.logger.Info("reference cleanup completed", "tenant", tenant, "target", target, "id", id, "processed", total.Processed)
	}
	return total, nil
}

// CleanupClassReferences strips classID from every text of tenant. It is
// idempotent and resumes an interrupted class deletion.
func (s *Store) CleanupClassReferences(ctx context.Context, tenant, classID string) (_ *CascadeReport, err error) {
	defer s.metrics.observe("cleanup_class", time.Now(), &err)
	if err := requireTenant(tenant); err != nil {
		return nil, err
	}
	if classID == "" {
		return nil, newError(KindMissingField, "class id is required")
	}
	return s.cleanupReferences(ctx, tenant, SchemaClass, classID)
}

// DeleteTenant deletes every document of tenant in pages. A document modified
// while the tenant drains is deleted at its new revision. Documents that still
// fail are reported and left for a later run.
func (s *Store) DeleteTenant(ctx context.Context, tenant string) (_ *CascadeReport, err error) {
	defer s.metrics.observe("delete_tenant", time.Now(), &err)
	if err := requireTenant(tenant); err != nil {
		return nil, err
	}
	report, err := s.drain(ctx, ViewQuery{View: ViewByTenant, Tenant: tenant}, func(doc *Document) error {
		if doc.Tenant != tenant {
			return newError(KindForbidden, "document %s does not belong to tenant %q", doc.ID, tenant)
		}
		err := s.backend.Delete(ctx, doc.ID, doc.Rev)
		if KindOf(err) == KindConflict {
			// Modified since the page was read; retry once at its current revision.
			current, getErr := s.backend.Get(ctx, doc.ID)
			switch {
			case KindOf(getErr) == KindNotFound:
				return nil
			case getErr != nil:
				return wrapError(getErr, "reload %s", doc.ID)
			case current.Tenant != tenant:
				return newError(KindForbidden, "document %s does not belong to tenant %q", doc.ID, tenant)
			}
			err = s.backend.Delete(ctx, doc.ID, current.Rev)
		}
		if err != nil && KindOf(err) == KindNotFound {
			return nil
		}
		if err != nil {
			return wrapError(err, "delete %s", doc.ID)
		}
		return nil
	})
	s.metrics.cascade("tenant", report)
	if err != nil {
		s.logger.Error("tenant drain interrupted", "tenant", tenant, "deleted", report.Processed, "error", err)
		return report, err
	}
	s.logger.Info("tenant drained", "tenant", tenant, "deleted", report.Processed, "failed", report.Failed)
	return report, nil
}

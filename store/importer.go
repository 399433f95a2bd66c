package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// ImportEntry is one record of a bulk import: a text and the names of its classes.
type ImportEntry struct {
	Text    string   `json:"text" yaml:"text"`
	Classes []string `json:"classes" yaml:"classes"`
}

// ClassImport reports what happened to one class name of an entry.
type ClassImport struct {
	Name    string
	ID      string
	Created bool
	Err     error
}

// ImportResult reports what happened to one entry.
type ImportResult struct {
	Text    string
	TextID  string
	Created bool
	Err     error
	Classes []ClassImport
}

// CreatedClasses returns the number of classes the entry created.
func (r *ImportResult) CreatedClasses() int {
	n := 0
	for _, c := range r.Classes {
		if c.Created {
			n++
		}
	}
	return n
}

// Failed reports whether the text or any class of the entry failed.
func (r *ImportResult) Failed() bool {
	return r.AllErrors() != nil
}

// AllErrors joins the text error and every class error, nil if the entry succeeded.
func (r *ImportResult) AllErrors() error {
	errs := []error{r.Err}
	for _, c := range r.Classes {
		errs = append(errs, c.Err)
	}
	return errors.Join(errs...)
}

// ImportReport is the tally of a bulk import.
type ImportReport struct {
	Results   []*ImportResult
	Succeeded int
	Failed    int
}

// Import processes every entry in order. A failing entry never stops the
// others; the report tallies successes and failures.
func (s *Store) Import(ctx context.Context, tenant string, entries []ImportEntry) (*ImportReport, error) {
	if err := requireTenant(tenant); err != nil {
		return nil, err
	}
	report := &ImportReport{Results: make([]*ImportResult, 0, len(entries))}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		res := s.ProcessImportEntry(ctx, tenant, entry)
		report.Results = append(report.Results, res)
		if res.Failed() {
			report.Failed++
		} else {
			report.Succeeded++
		}
	}
	s.logger.Info("import finished", "tenant", tenant, "entries", len(entries), "succeeded", report.Succeeded, "failed", report.Failed)
	return report, nil
}

// ProcessImportEntry reconciles one entry against the tenant: missing classes
// are created, a new text is created with all its classes, and an existing text
// gains only the classes it lacks. Errors are recorded in the result.
func (s *Store) ProcessImportEntry(ctx context.Context, tenant string, entry ImportEntry) (res *ImportResult) {
	start := time.Now()
	res = &ImportResult{Text: entry.Text}
	defer func() {
		err := res.AllErrors()
		s.metrics.observe("import_entry", start, &err)
	}()

	if err := requireTenant(tenant); err != nil {
		res.Err = err
		return res
	}
	if strings.TrimSpace(entry.Text) == "" {
		res.Err = newError(KindMissingField, "import entry has no text")
		return res
	}
	names := importClassNames(entry.Classes)

	var (
		existingText *Document
		textErr      error
		known        map[string]*Document
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		doc, err := s.findByNaturalKey(gctx, SchemaText, tenant, entry.Text)
		if err != nil && KindOf(err) != KindNotFound {
			textErr = err
			return nil
		}
		existingText = doc
		return nil
	})
	g.Go(func() error {
		var err error
		known, err = s.findByNaturalKeys(gctx, SchemaClass, tenant, names)
		return err
	})
	if err := g.Wait(); err != nil {
		res.Err = err
		return res
	}
	if textErr != nil {
		res.Err = textErr
		return res
	}

	res.Classes = s.resolveImportClasses(ctx, tenant, names, known)

	resolved := make([]string, 0, len(res.Classes))
	for _, c := range res.Classes {
		if c.Err == nil {
			resolved = append(resolved, c.ID)
		}
	}

	if existingText != nil {
		res.TextID = existingText.ID
		if err := checkDocument(existingText, tenant, SchemaText); err != nil {
			res.Err = err
			return res
		}
		has := make(map[string]struct{}, len(existingText.Classes))
		for _, id := range existingText.Classes {
			has[id] = struct{}{}
		}
		var delta []string
		for _, id := range resolved {
			if _, ok := has[id]; !ok {
				delta = append(delta, id)
			}
		}
		if _, err := s.AddClassesToText(ctx, tenant, existingText.ID, delta); err != nil {
			res.Err = err
		}
		return res
	}

	text, err := s.CreateText(ctx, tenant, Attrs{"value": entry.Text, "classes": resolved})
	if err != nil {
		res.Err = err
		return res
	}
	res.TextID = text.ID
	res.Created = true
	return res
}

// resolveImportClasses maps names to class ids, creating the missing ones
// with bounded concurrency. Results keep the order of names.
func (s *Store) resolveImportClasses(ctx context.Context, tenant string, names []string, known map[string]*Document) []ClassImport {
	out := make([]ClassImport, len(names))
	g := new(errgroup.Group)
	g.SetLimit(s.config.ImportConcurrency)
	for i, name := range names {
		if doc, ok := known[name]; ok {
			out[i] = ClassImport{Name: name, ID: doc.ID}
			continue
		}
		g.Go(func() error {
			ci := ClassImport{Name: name}
			class, err := s.CreateClass(ctx, tenant, Attrs{"name": name})
			switch {
			case err == nil:
				ci.ID, ci.Created = class.ID, true
			case KindOf(err) == KindNonUnique:
				// Created concurrently; adopt the winner.
				doc, lerr := s.findByNaturalKey(ctx, SchemaClass, tenant, name)
				if lerr != nil {
					ci.Err = lerr
				} else {
					ci.ID = doc.ID
				}
			default:
				ci.Err = err
			}
			out[i] = ci
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// importClassNames trims names and drops blanks and duplicates.
func importClassNames(names []string) []string {
	trimmed := make([]string, 0, len(names))
	for _, n := range names {
		trimmed = append(trimmed, strings.TrimSpace(n))
	}
	return dedupe(trimmed)
}

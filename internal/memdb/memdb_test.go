package memdb

import (
	"context"
	"errors"
	"testing"

	"github.com/jacentio/groundtruth/store"
)

func seed(b *Backend, docs ...*store.Document) {
	for _, d := range docs {
		b.Put(d)
	}
}

func TestInsert_Conflict(t *testing.T) {
	ctx := context.Background()
	b := New()

	doc := &store.Document{ID: "c1", Tenant: "acme", Schema: store.SchemaClass, Name: "spam"}
	stored, err := b.Insert(ctx, doc)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if store.RevisionGeneration(stored.Rev) != 1 {
		t.Errorf("expected generation 1, got %q", stored.Rev)
	}
	if _, err := b.Insert(ctx, doc); !errors.Is(err, store.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}

func TestGet_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	b := New()
	seed(b, &store.Document{ID: "t1", Tenant: "acme", Schema: store.SchemaText, Value: "v", Classes: []string{"a"}})

	doc, _ := b.Get(ctx, "t1")
	doc.Classes[0] = "mutated"

	again, _ := b.Get(ctx, "t1")
	if again.Classes[0] != "a" {
		t.Error("expected stored document to be isolated from callers")
	}
}

func TestReplaceAndDelete_Revisions(t *testing.T) {
	ctx := context.Background()
	b := New()
	stored, _ := b.Insert(ctx, &store.Document{ID: "c1", Tenant: "acme", Schema: store.SchemaClass, Name: "spam"})

	if _, err := b.Replace(ctx, stored, "0-stale"); !errors.Is(err, store.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
	next, err := b.Replace(ctx, stored, stored.Rev)
	if err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if err := b.Delete(ctx, "c1", stored.Rev); !errors.Is(err, store.ErrConflict) {
		t.Errorf("expected ErrConflict deleting with old revision, got %v", err)
	}
	if err := b.Delete(ctx, "c1", next.Rev); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := b.Delete(ctx, "c1", next.Rev); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestApply_RequiresClasses(t *testing.T) {
	ctx := context.Background()
	b := New()
	seed(b,
		&store.Document{ID: "t1", Tenant: "acme", Schema: store.SchemaText, Value: "v"},
		&store.Document{ID: "c1", Tenant: "acme", Schema: store.SchemaClass, Name: "a"},
		&store.Document{ID: "c2", Tenant: "globex", Schema: store.SchemaClass, Name: "b"},
	)

	proc := store.Procedure{
		Name:    store.ProcAddClasses,
		Tenant:  "acme",
		Schema:  store.SchemaText,
		Classes: []string{"c1", "c2"},
		Require: []string{"c1", "c2"},
	}
	res, err := b.Apply(ctx, "t1", proc)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.Err == nil || res.Err.Category != "invalid" {
		t.Fatalf("expected embedded invalid, got %+v", res.Err)
	}
	doc, _ := b.Get(ctx, "t1")
	if len(doc.Classes) != 0 {
		t.Errorf("expected no classes added, got %v", doc.Classes)
	}

	proc.Classes, proc.Require = []string{"c1"}, []string{"c1"}
	res, err = b.Apply(ctx, "t1", proc)
	if err != nil || res.Err != nil {
		t.Fatalf("Apply: %v %+v", err, res.Err)
	}
	if len(res.Doc.Classes) != 1 || store.RevisionGeneration(res.Doc.Rev) != 2 {
		t.Errorf("unexpected document %+v", res.Doc)
	}
}

func TestQuery_Views(t *testing.T) {
	ctx := context.Background()
	b := New()
	seed(b,
		&store.Document{ID: "3", Tenant: "acme", Schema: store.SchemaText, Value: "cherry", Classes: []string{"c1"}},
		&store.Document{ID: "1", Tenant: "acme", Schema: store.SchemaText, Value: "banana", Classes: []string{"c1"}},
		&store.Document{ID: "2", Tenant: "acme", Schema: store.SchemaText, Value: "apple"},
		&store.Document{ID: "c1", Tenant: "acme", Schema: store.SchemaClass, Name: "fruit"},
		&store.Document{ID: "9", Tenant: "globex", Schema: store.SchemaText, Value: "apple"},
	)

	tests := []struct {
		name string
		q    store.ViewQuery
		want []string
	}{
		{"by schema ordered by value", store.ViewQuery{View: store.ViewBySchema, Tenant: "acme", Schema: store.SchemaText}, []string{"2", "1", "3"}},
		{"by schema paged", store.ViewQuery{View: store.ViewBySchema, Tenant: "acme", Schema: store.SchemaText, Skip: 1, Limit: 1}, []string{"1"}},
		{"by schema contains", store.ViewQuery{View: store.ViewBySchema, Tenant: "acme", Schema: store.SchemaText, Contains: "an"}, []string{"1"}},
		{"by natural key", store.ViewQuery{View: store.ViewByNaturalKey, Tenant: "acme", Schema: store.SchemaText, Keys: []string{"apple", "cherry"}}, []string{"2", "3"}},
		{"by class ordered by id", store.ViewQuery{View: store.ViewByClass, Tenant: "acme", Keys: []string{"c1"}}, []string{"1", "3"}},
		{"by tenant", store.ViewQuery{View: store.ViewByTenant, Tenant: "acme"}, []string{"1", "2", "3", "c1"}},
		{"skip past end", store.ViewQuery{View: store.ViewByTenant, Tenant: "acme", Skip: 10}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, err := b.Query(ctx, tt.q)
			if err != nil {
				t.Fatalf("Query: %v", err)
			}
			if len(docs) != len(tt.want) {
				t.Fatalf("expected %d documents, got %d", len(tt.want), len(docs))
			}
			for i, id := range tt.want {
				if docs[i].ID != id {
					t.Errorf("position %d: expected %s, got %s", i, id, docs[i].ID)
				}
			}
		})
	}

	n, err := b.Count(ctx, store.ViewQuery{View: store.ViewByTenant, Tenant: "acme", Limit: 1})
	if err != nil || n != 4 {
		t.Errorf("Count = %d, %v; want 4 ignoring limit", n, err)
	}
}

func TestClosed(t *testing.T) {
	ctx := context.Background()
	b := New()
	_ = b.Close()

	if _, err := b.Get(ctx, "x"); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if err := b.Migrate(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

// Package memdb provides an in-memory store.Backend used for tests and
// ephemeral environments.
package memdb

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/jacentio/groundtruth/store"
)

// Compile-time contract assertion.
var _ store.Backend = (*Backend)(nil)

// ErrClosed is returned by every operation after Close.
var ErrClosed = errors.New("memdb: backend is closed")

// Backend keeps documents in a map. Procedures run under the write lock, which
// makes each of them atomic with respect to every other operation.
type Backend struct {
	mu     sync.RWMutex
	docs   map[string]*store.Document
	closed bool
}

// New creates an empty backend.
func New() *Backend {
	return &Backend{docs: make(map[string]*store.Document)}
}

// Get returns a copy of the document with id.
func (b *Backend) Get(_ context.Context, id string) (*store.Document, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ErrClosed
	}
	doc, ok := b.docs[id]
	if !ok {
		return nil, notFound(id)
	}
	return doc.Clone(), nil
}

// GetMany returns copies of the documents among ids that exist.
func (b *Backend) GetMany(_ context.Context, ids []string) ([]*store.Document, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ErrClosed
	}
	seen := make(map[string]bool, len(ids))
	var out []*store.Document
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if doc, ok := b.docs[id]; ok {
			out = append(out, doc.Clone())
		}
	}
	return out, nil
}

// Insert stores doc under a fresh revision.
func (b *Backend) Insert(_ context.Context, doc *store.Document) (*store.Document, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	if _, exists := b.docs[doc.ID]; exists {
		return nil, &store.Error{Kind: store.KindConflict, Message: "document " + doc.ID + " already exists"}
	}
	stored := doc.Clone()
	stored.Rev = store.NextRevision("")
	b.docs[stored.ID] = stored
	return stored.Clone(), nil
}

// Replace overwrites the document if its revision is rev.
func (b *Backend) Replace(_ context.Context, doc *store.Document, rev string) (*store.Document, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	current, ok := b.docs[doc.ID]
	if !ok {
		return nil, notFound(doc.ID)
	}
	if current.Rev != rev {
		return nil, conflict(doc.ID)
	}
	stored := doc.Clone()
	stored.Rev = store.NextRevision(current.Rev)
	b.docs[stored.ID] = stored
	return stored.Clone(), nil
}

// Delete removes the document if its revision is rev.
func (b *Backend) Delete(_ context.Context, id, rev string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	current, ok := b.docs[id]
	if !ok {
		return notFound(id)
	}
	if current.Rev != rev {
		return conflict(id)
	}
	delete(b.docs, id)
	return nil
}

// Apply runs proc against the document under the write lock.
func (b *Backend) Apply(_ context.Context, id string, proc store.Procedure) (*store.ProcResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	current := b.docs[id]
	if res := store.CheckProcedureTarget(current, proc); res != nil {
		return res, nil
	}
	for _, cid := range proc.Require {
		class, ok := b.docs[cid]
		if !ok || class.Tenant != proc.Tenant || class.Schema != store.SchemaClass {
			return store.Embedded(store.KindInvalid, "class "+cid+" does not exist"), nil
		}
	}
	next := current.Clone()
	store.ApplyProcedure(next, proc)
	next.Rev = store.NextRevision(current.Rev)
	b.docs[id] = next
	return &store.ProcResult{Doc: next.Clone()}, nil
}

// Query executes a view query by scanning the collection.
func (b *Backend) Query(_ context.Context, q store.ViewQuery) ([]*store.Document, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ErrClosed
	}
	matched := b.match(q)
	if q.Skip >= len(matched) {
		return []*store.Document{}, nil
	}
	matched = matched[q.Skip:]
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	out := make([]*store.Document, len(matched))
	for i, doc := range matched {
		out[i] = doc.Clone()
	}
	return out, nil
}

// Count returns the number of documents q matches.
func (b *Backend) Count(_ context.Context, q store.ViewQuery) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return 0, ErrClosed
	}
	return len(b.match(q)), nil
}

// Migrate is a no-op: views are computed on every query.
func (b *Backend) Migrate(context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	return nil
}

// Close marks the backend closed.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// Len returns the number of stored documents.
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.docs)
}

// Put stores doc as-is, bypassing revision checks. Tests use it to seed
// states the store itself would refuse to create.
func (b *Backend) Put(doc *store.Document) {
	b.mu.Lock()
	defer b.mu.Unlock()
	stored := doc.Clone()
	if stored.Rev == "" {
		stored.Rev = store.NextRevision("")
	}
	b.docs[stored.ID] = stored
}

// match returns the documents of q in view order. Callers hold the lock.
func (b *Backend) match(q store.ViewQuery) []*store.Document {
	var keys map[string]bool
	if len(q.Keys) > 0 {
		keys = make(map[string]bool, len(q.Keys))
		for _, k := range q.Keys {
			keys[k] = true
		}
	}

	var out []*store.Document
	for _, doc := range b.docs {
		if doc.Tenant != q.Tenant {
			continue
		}
		switch q.View {
		case store.ViewBySchema:
			if doc.Schema != q.Schema {
				continue
			}
		case store.ViewByNaturalKey:
			if doc.Schema != q.Schema || !keys[doc.NaturalKey()] {
				continue
			}
		case store.ViewByClass:
			if doc.Schema != store.SchemaText || !hasAny(doc.Classes, keys) {
				continue
			}
		case store.ViewByTenant:
		default:
			continue
		}
		if q.Contains != "" && !strings.Contains(doc.NaturalKey(), q.Contains) {
			continue
		}
		out = append(out, doc)
	}

	switch q.View {
	case store.ViewBySchema, store.ViewByNaturalKey:
		sort.Slice(out, func(i, j int) bool {
			ki, kj := out[i].NaturalKey(), out[j].NaturalKey()
			if ki != kj {
				return ki < kj
			}
			return out[i].ID < out[j].ID
		})
	default:
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	}
	return out
}

func hasAny(ids []string, keys map[string]bool) bool {
	for _, id := range ids {
		if keys[id] {
			return true
		}
	}
	return false
}

func notFound(id string) error {
	return &store.Error{Kind: store.KindNotFound, Message: "document " + id + " not found"}
}

func conflict(id string) error {
	return &store.Error{Kind: store.KindConflict, Message: "document " + id + " has a newer revision"}
}

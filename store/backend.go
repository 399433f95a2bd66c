package store

import "context"

// Backend is the document database the store runs against. Implementations
// must enforce revisions on Replace and Delete and must apply procedures
// atomically against a single document.
type Backend interface {
	// Get returns the document with id, or an error of KindNotFound.
	Get(ctx context.Context, id string) (*Document, error)

	// GetMany returns the documents among ids that exist, in no particular order.
	GetMany(ctx context.Context, ids []string) ([]*Document, error)

	// Insert stores a new document with a fresh revision. It fails with
	// KindConflict if a document with the same id exists.
	Insert(ctx context.Context, doc *Document) (*Document, error)

	// Replace overwrites doc if the stored revision equals rev.
	Replace(ctx context.Context, doc *Document, rev string) (*Document, error)

	// Delete removes the document if the stored revision equals rev.
	Delete(ctx context.Context, id, rev string) error

	// Apply runs a named procedure against one document as a single atomic step.
	Apply(ctx context.Context, id string, proc Procedure) (*ProcResult, error)

	// Query executes a view query.
	Query(ctx context.Context, q ViewQuery) ([]*Document, error)

	// Count returns the number of documents a view query matches, ignoring Skip and Limit.
	Count(ctx context.Context, q ViewQuery) (int, error)

	// Migrate creates or upgrades the indexes the views rely on. It is idempotent.
	Migrate(ctx context.Context) error

	// Close releases the backend.
	Close() error
}

// View names a secondary index.
type View int

const (
	// ViewBySchema lists documents of one schema in a tenant, ordered by natural key.
	ViewBySchema View = iota

	// ViewByNaturalKey matches documents of one schema in a tenant whose natural key is in Keys.
	ViewByNaturalKey

	// ViewByClass lists texts of a tenant whose classes contain Keys[0], ordered by id.
	ViewByClass

	// ViewByTenant lists every document of a tenant, ordered by id.
	ViewByTenant
)

func (v View) String() string {
	switch v {
	case ViewBySchema:
		return "by_schema"
	case ViewByNaturalKey:
		return "by_natural_key"
	case ViewByClass:
		return "by_class"
	case ViewByTenant:
		return "by_tenant"
	}
	return "unknown"
}

// ViewQuery is a secondary-index lookup scoped by tenant.
type ViewQuery struct {
	View   View
	Tenant string
	Schema Schema

	// Keys are natural keys for ViewByNaturalKey and the class id for ViewByClass.
	Keys []string

	// Contains filters on a substring of the natural key.
	Contains string

	// Fields is an optional projection using stored attribute names.
	Fields []string

	Skip  int
	Limit int
}

// ProcName names an atomic server-side procedure.
type ProcName string

const (
	ProcAddClasses    ProcName = "add_classes"
	ProcRemoveClasses ProcName = "remove_classes"
	ProcPatchMetadata ProcName = "patch_metadata"
)

// Procedure describes an atomic single-document mutation.
type Procedure struct {
	Name   ProcName
	Tenant string
	Schema Schema

	// Classes are the ids to add or remove.
	Classes []string

	// Require lists class ids that must exist in Tenant when the procedure runs.
	Require []string

	// Value renames the natural key when set (ProcPatchMetadata).
	Value *string

	// Metadata keys overwrite the stored ones (ProcPatchMetadata).
	Metadata map[string]any
}

// ProcResult is the response of a procedure. Err is set when the procedure
// itself refused to run; Doc is the document after the mutation otherwise.
type ProcResult struct {
	Doc *Document
	Err *EmbeddedError
}

// Embedded builds a ProcResult carrying an error of kind.
func Embedded(kind Kind, reason string) *ProcResult {
	return &ProcResult{Err: &EmbeddedError{
		Category: kind.String(),
		Code:     kind.StatusCode(),
		Reason:   reason,
	}}
}

// CheckProcedureTarget returns the embedded error a procedure must report when
// doc cannot be mutated by proc, or nil if it can.
func CheckProcedureTarget(doc *Document, proc Procedure) *ProcResult {
	if doc == nil {
		return Embedded(KindNotFound, "document not found")
	}
	if doc.Tenant != proc.Tenant {
		return Embedded(KindForbidden, "document belongs to another tenant")
	}
	if doc.Schema != proc.Schema {
		return Embedded(KindUnexpectedType, "expected schema "+string(proc.Schema)+", got "+string(doc.Schema))
	}
	return nil
}

// ApplyProcedure mutates doc in place the way proc describes. Backends that
// execute procedures in-process share this logic.
func ApplyProcedure(doc *Document, proc Procedure) {
	switch proc.Name {
	case ProcAddClasses:
		doc.Classes = dedupe(append(doc.Classes, proc.Classes...))
	case ProcRemoveClasses:
		drop := make(map[string]struct{}, len(proc.Classes))
		for _, id := range proc.Classes {
			drop[id] = struct{}{}
		}
		kept := doc.Classes[:0:0]
		for _, id := range doc.Classes {
			if _, ok := drop[id]; !ok {
				kept = append(kept, id)
			}
		}
		doc.Classes = kept
	case ProcPatchMetadata:
		if proc.Value != nil {
			doc.Value = *proc.Value
		}
		if doc.Metadata == nil {
			doc.Metadata = map[string]any{}
		}
		for k, v := range proc.Metadata {
			doc.Metadata[k] = v
		}
	}
}

// Package store provides the tenant-scoped document store of the groundtruth
// labeling service.
//
// Users curate (text, classes) pairs per tenant. The store keeps them in a
// single schema-less collection behind a [Backend], and layers on top of it the
// consistency rules the collection does not enforce by itself.
//
// # Key Features
//
//   - Natural-key uniqueness per tenant (class name, text value), checked by an
//     index lookup before every create and replace
//   - Optimistic concurrency with revision tokens and an [AnyRevision] wildcard
//   - Atomic add/remove of class ids on a text through backend procedures
//   - Cascading removal of class ids from texts when a class is deleted
//   - Tenant drain and idempotent bulk import reconciliation
//
// # Backends
//
// A [Backend] executes document reads and writes, view queries and atomic
// procedures. The repository ships an in-memory backend (internal/memdb) and a
// DynamoDB backend (internal/dynamo):
//
//	s := store.New(memdb.New(), store.DefaultConfig())
//	class, err := s.CreateClass(ctx, "acme", store.Attrs{"name": "billing"})
//
// # Errors
//
// Every operation returns a [*Error] whose [Kind] maps to a transport status
// code through [Kind.StatusCode]. Sentinels match by kind with errors.Is:
//
//   - [ErrConflict] - revision mismatch (409)
//   - [ErrNotFound] - document doesn't exist (404)
//   - [ErrForbidden] - document belongs to another tenant (403)
//   - [ErrMissingField] - required attribute absent (400)
//   - [ErrUnexpectedType] - fetched document has the wrong schema (400)
//   - [ErrNonUnique] - natural key already taken (400)
//   - [ErrInvalid] - malformed operand or patch (422)
//   - [ErrTooManyResults] - natural key matches several documents (500)
//   - [ErrUnknown] - unclassified backend failure (500)
package store

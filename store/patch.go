package store

import (
	"context"
	"encoding/json"
)

// PatchOp is one operation of a text patch request.
//
// Two forms are accepted:
//
//	{"op": "add"|"remove", "path": "/classes", "value": [{"id": "..."}, ...]}
//	{"op": "replace", "path": "/metadata", "value": {"value": "...", "metadata": {...}}}
type PatchOp struct {
	Op    string          `json:"op"`
	Path  string          `json:"path"`
	Value json.RawMessage `json:"value"`
}

type classRef struct {
	ID string `json:"id"`
}

// PatchText applies ops to the text in order and returns the text after the
// last operation that changed it. Every op is decoded before any is applied.
func (s *Store) PatchText(ctx context.Context, tenant, textID string, ops []PatchOp) (*Text, error) {
	type step func() (*Text, error)
	steps := make([]step, 0, len(ops))
	for i, op := range ops {
		switch {
		case (op.Op == "add" || op.Op == "remove") && op.Path == "/classes":
			var refs []classRef
			if err := json.Unmarshal(op.Value, &refs); err != nil {
				return nil, &Error{Kind: KindInvalid, Message: "patch value for /classes must be a list of {id}", Err: err}
			}
			ids := make([]string, 0, len(refs))
			for _, r := range refs {
				if r.ID == "" {
					return nil, newError(KindInvalid, "patch %d: class reference without id", i)
				}
				ids = append(ids, r.ID)
			}
			if op.Op == "add" {
				steps = append(steps, func() (*Text, error) { return s.AddClassesToText(ctx, tenant, textID, ids) })
			} else {
				steps = append(steps, func() (*Text, error) { return s.RemoveClassesFromText(ctx, tenant, textID, ids) })
			}
		case op.Op == "replace" && op.Path == "/metadata":
			var patch MetadataPatch
			if err := json.Unmarshal(op.Value, &patch); err != nil {
				return nil, &Error{Kind: KindInvalid, Message: "patch value for /metadata must be an object", Err: err}
			}
			steps = append(steps, func() (*Text, error) { return s.UpdateTextMetadata(ctx, tenant, textID, &patch) })
		default:
			return nil, newError(KindInvalid, "unsupported patch operation %q on %q", op.Op, op.Path)
		}
	}

	var last *Text
	for _, st := range steps {
		t, err := st()
		if err != nil {
			return nil, err
		}
		if t != nil {
			last = t
		}
	}
	return last, nil
}

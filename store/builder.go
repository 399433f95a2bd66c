package store

import (
	"strings"

	"github.com/google/uuid"
)

// Attrs holds caller-supplied entity attributes, typically a decoded request body.
type Attrs map[string]any

// systemFields are owned by the store and never taken from Attrs.
var systemFields = []string{"_id", "_rev", "rev", "tenant", "schema"}

func (a Attrs) stripped() Attrs {
	out := make(Attrs, len(a))
	for k, v := range a {
		out[k] = v
	}
	for _, f := range systemFields {
		delete(out, f)
	}
	return out
}

// str returns the string attribute key. A present non-string value is invalid.
func (a Attrs) str(key string) (string, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", newError(KindInvalid, "field %q must be a string, got %T", key, v)
	}
	return s, nil
}

func (a Attrs) required(key string) (string, error) {
	s, err := a.str(key)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(s) == "" {
		return "", newError(KindMissingField, "field %q is required", key)
	}
	return s, nil
}

func (a Attrs) stringList(key string) ([]string, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch list := v.(type) {
	case []string:
		return list, nil
	case []any:
		out := make([]string, 0, len(list))
		for i, item := range list {
			switch x := item.(type) {
			case string:
				out = append(out, x)
			case map[string]any:
				id, ok := x["id"].(string)
				if !ok {
					return nil, newError(KindInvalid, "field %q[%d] has no string id", key, i)
				}
				out = append(out, id)
			default:
				return nil, newError(KindInvalid, "field %q[%d] must be a string, got %T", key, i, item)
			}
		}
		return out, nil
	}
	return nil, newError(KindInvalid, "field %q must be a list, got %T", key, v)
}

func (a Attrs) object(key string) (map[string]any, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, newError(KindInvalid, "field %q must be an object, got %T", key, v)
	}
	return m, nil
}

// documentID returns the caller-supplied id or a new one.
func (a Attrs) documentID() (string, error) {
	id, err := a.str("id")
	if err != nil {
		return "", err
	}
	if id == "" {
		return uuid.NewString(), nil
	}
	if strings.Contains(id, keySeparator) {
		return "", newError(KindInvalid, "id %q must not contain %q", id, keySeparator)
	}
	return id, nil
}

// buildClass shapes a class document from attrs.
func buildClass(tenant string, attrs Attrs) (*Document, error) {
	a := attrs.stripped()
	name, err := a.required("name")
	if err != nil {
		return nil, err
	}
	desc, err := a.str("description")
	if err != nil {
		return nil, err
	}
	id, err := a.documentID()
	if err != nil {
		return nil, err
	}
	return &Document{
		ID:          id,
		Tenant:      tenant,
		Schema:      SchemaClass,
		Name:        name,
		Description: desc,
	}, nil
}

// buildText shapes a text document from attrs. Class ids are de-duplicated and
// metadata is always a non-nil map.
func buildText(tenant string, attrs Attrs) (*Document, error) {
	a := attrs.stripped()
	value, err := a.required("value")
	if err != nil {
		return nil, err
	}
	classes, err := a.stringList("classes")
	if err != nil {
		return nil, err
	}
	meta, err := a.object("metadata")
	if err != nil {
		return nil, err
	}
	id, err := a.documentID()
	if err != nil {
		return nil, err
	}
	if meta == nil {
		meta = map[string]any{}
	}
	return &Document{
		ID:       id,
		Tenant:   tenant,
		Schema:   SchemaText,
		Value:    value,
		Classes:  dedupe(classes),
		Metadata: meta,
	}, nil
}

func buildProfile(username string) (*Document, error) {
	if strings.TrimSpace(username) == "" {
		return nil, newError(KindMissingField, "field %q is required", "username")
	}
	return &Document{
		ID:       uuid.NewString(),
		Schema:   SchemaProfile,
		Username: username,
	}, nil
}

// dedupe returns ids in first-seen order without duplicates or empty strings.
func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// keySeparator joins tenant, class and schema into index keys, so it cannot
// appear inside a tenant or a document id.
const keySeparator = "#"

func requireTenant(tenant string) error {
	if tenant == "" {
		return newError(KindMissingField, "tenant is required")
	}
	if strings.Contains(tenant, keySeparator) {
		return newError(KindInvalid, "tenant %q must not contain %q", tenant, keySeparator)
	}
	return nil
}

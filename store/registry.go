package store

// Reference describes a field of one schema that holds ids of another.
type Reference struct {
	// Target is the referenced schema (e.g. "class").
	Target Schema

	// Source is the schema holding the reference (e.g. "text").
	Source Schema

	// Field is the attribute holding the ids (e.g. "classes").
	Field string

	// View is the reverse index listing sources by target id.
	View View

	// Remove is the procedure that strips a target id from a source.
	Remove ProcName
}

// Registry holds the references the cascading delete engine cleans up.
type Registry struct {
	references []Reference
	byTarget   map[Schema][]Reference
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		references: []Reference{},
		byTarget:   make(map[Schema][]Reference),
	}
}

// DefaultRegistry returns a registry with the text → class reference.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(Reference{
		Target: SchemaClass,
		Source: SchemaText,
		Field:  "classes",
		View:   ViewByClass,
		Remove: ProcRemoveClasses,
	})
	return r
}

// Register adds a reference to the registry.
func (r *Registry) Register(ref Reference) {
	r.references = append(r.references, ref)
	r.byTarget[ref.Target] = append(r.byTarget[ref.Target], ref)
}

// ReferencesTo returns all references pointing at documents of the target schema.
func (r *Registry) ReferencesTo(target Schema) []Reference {
	return r.byTarget[target]
}

// AllReferences returns all registered references.
func (r *Registry) AllReferences() []Reference {
	return r.references
}

// IsReferenced returns true if any reference points at the target schema.
func (r *Registry) IsReferenced(target Schema) bool {
	return len(r.byTarget[target]) > 0
}

package store

// Schema discriminates the entity kinds sharing the documents collection.
type Schema string

const (
	SchemaClass   Schema = "class"
	SchemaText    Schema = "text"
	SchemaProfile Schema = "profile"
)

// AnyRevision accepts whatever revision is currently stored.
const AnyRevision = "*"

// Document is the stored shape of every entity kind.
type Document struct {
	ID          string         `dynamodbav:"_id"`
	Rev         string         `dynamodbav:"_rev"`
	Tenant      string         `dynamodbav:"tenant,omitempty"`
	Schema      Schema         `dynamodbav:"schema"`
	Name        string         `dynamodbav:"name,omitempty"`
	Description string         `dynamodbav:"description,omitempty"`
	Value       string         `dynamodbav:"value,omitempty"`
	Classes     []string       `dynamodbav:"classes,stringset,omitempty"`
	Metadata    map[string]any `dynamodbav:"metadata"`
	Username    string         `dynamodbav:"username,omitempty"`
}

// NaturalKey returns the user-meaningful unique attribute of the document.
func (d *Document) NaturalKey() string {
	switch d.Schema {
	case SchemaClass:
		return d.Name
	case SchemaText:
		return d.Value
	case SchemaProfile:
		return d.Username
	}
	return ""
}

// Clone returns a deep copy of the set and map fields.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	c := *d
	if d.Classes != nil {
		c.Classes = append([]string(nil), d.Classes...)
	}
	if d.Metadata != nil {
		c.Metadata = make(map[string]any, len(d.Metadata))
		for k, v := range d.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

// Class is a label that texts can be tagged with.
type Class struct {
	ID          string `json:"id"`
	Rev         string `json:"rev"`
	Tenant      string `json:"tenant"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Text is a ground-truth sample with the ids of the classes it belongs to.
type Text struct {
	ID       string         `json:"id"`
	Rev      string         `json:"rev"`
	Tenant   string         `json:"tenant"`
	Value    string         `json:"value"`
	Classes  []string       `json:"classes"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Profile is a user record looked up by the authentication layer.
type Profile struct {
	ID       string `json:"id"`
	Rev      string `json:"rev"`
	Username string `json:"username"`
}

func classFromDocument(d *Document) *Class {
	return &Class{
		ID:          d.ID,
		Rev:         d.Rev,
		Tenant:      d.Tenant,
		Name:        d.Name,
		Description: d.Description,
	}
}

func textFromDocument(d *Document) *Text {
	classes := d.Classes
	if classes == nil {
		classes = []string{}
	}
	return &Text{
		ID:       d.ID,
		Rev:      d.Rev,
		Tenant:   d.Tenant,
		Value:    d.Value,
		Classes:  classes,
		Metadata: d.Metadata,
	}
}

func profileFromDocument(d *Document) *Profile {
	return &Profile{ID: d.ID, Rev: d.Rev, Username: d.Username}
}

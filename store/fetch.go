package store

import (
	"context"
	"time"
)

// GetClass returns the class id of tenant.
func (s *Store) GetClass(ctx context.Context, tenant, id string) (*Class, error) {
	if err := requireTenant(tenant); err != nil {
		return nil, err
	}
	doc, err := s.get(ctx, tenant, SchemaClass, id)
	if err != nil {
		return nil, err
	}
	return classFromDocument(doc), nil
}

// GetText returns the text id of tenant.
func (s *Store) GetText(ctx context.Context, tenant, id string) (*Text, error) {
	if err := requireTenant(tenant); err != nil {
		return nil, err
	}
	doc, err := s.get(ctx, tenant, SchemaText, id)
	if err != nil {
		return nil, err
	}
	return textFromDocument(doc), nil
}

// FindClassByName returns the class of tenant named name.
func (s *Store) FindClassByName(ctx context.Context, tenant, name string) (*Class, error) {
	if err := requireTenant(tenant); err != nil {
		return nil, err
	}
	doc, err := s.findByNaturalKey(ctx, SchemaClass, tenant, name)
	if err != nil {
		return nil, err
	}
	if err := checkDocument(doc, tenant, SchemaClass); err != nil {
		return nil, err
	}
	return classFromDocument(doc), nil
}

// FindTextByValue returns the text of tenant whose value is value.
func (s *Store) FindTextByValue(ctx context.Context, tenant, value string) (*Text, error) {
	if err := requireTenant(tenant); err != nil {
		return nil, err
	}
	doc, err := s.findByNaturalKey(ctx, SchemaText, tenant, value)
	if err != nil {
		return nil, err
	}
	if err := checkDocument(doc, tenant, SchemaText); err != nil {
		return nil, err
	}
	return textFromDocument(doc), nil
}

// ListClasses lists the classes of tenant ordered by name.
func (s *Store) ListClasses(ctx context.Context, tenant string, opts ListOptions) (_ []*Class, err error) {
	defer s.metrics.observe("list_classes", time.Now(), &err)
	if err := requireTenant(tenant); err != nil {
		return nil, err
	}
	opts, err = opts.normalize(SchemaClass, s.config.PageSize)
	if err != nil {
		return nil, err
	}
	docs, err := s.listByTenant(ctx, SchemaClass, tenant, opts)
	if err != nil {
		return nil, err
	}
	classes := make([]*Class, 0, len(docs))
	for _, doc := range docs {
		if err := checkDocument(doc, tenant, SchemaClass); err != nil {
			return nil, err
		}
		classes = append(classes, classFromDocument(project(doc, opts.Fields)))
	}
	return classes, nil
}

// ListTexts lists the texts of tenant. With ClassID set only texts tagged with
// that class are returned, ordered by id; otherwise texts are ordered by value.
func (s *Store) ListTexts(ctx context.Context, tenant string, q TextQuery) (_ []*Text, err error) {
	defer s.metrics.observe("list_texts", time.Now(), &err)
	if err := requireTenant(tenant); err != nil {
		return nil, err
	}
	opts, err := q.ListOptions.normalize(SchemaText, s.config.PageSize)
	if err != nil {
		return nil, err
	}
	vq := ViewQuery{
		View:     ViewBySchema,
		Tenant:   tenant,
		Schema:   SchemaText,
		Contains: q.Contains,
		Fields:   opts.Fields,
		Skip:     opts.Skip,
		Limit:    opts.Limit,
	}
	if q.ClassID != "" {
		vq.View = ViewByClass
		vq.Keys = []string{q.ClassID}
	}
	docs, err := s.query(ctx, vq)
	if err != nil {
		return nil, err
	}
	texts := make([]*Text, 0, len(docs))
	for _, doc := range docs {
		if err := checkDocument(doc, tenant, SchemaText); err != nil {
			return nil, err
		}
		texts = append(texts, textFromDocument(project(doc, opts.Fields)))
	}
	return texts, nil
}

// TextsInClass lists the texts of tenant tagged with classID.
func (s *Store) TextsInClass(ctx context.Context, tenant, classID string, opts ListOptions) ([]*Text, error) {
	if classID == "" {
		return nil, newError(KindMissingField, "class id is required")
	}
	return s.ListTexts(ctx, tenant, TextQuery{ListOptions: opts, ClassID: classID})
}

// CountTextsInClass returns the number of texts of tenant tagged with classID.
func (s *Store) CountTextsInClass(ctx context.Context, tenant, classID string) (int, error) {
	if err := requireTenant(tenant); err != nil {
		return 0, err
	}
	if classID == "" {
		return 0, newError(KindMissingField, "class id is required")
	}
	return s.count(ctx, ViewQuery{
		View:   ViewByClass,
		Tenant: tenant,
		Schema: SchemaText,
		Keys:   []string{classID},
	})
}

// CountTextsMatching returns the number of texts of tenant matching q, ignoring paging.
func (s *Store) CountTextsMatching(ctx context.Context, tenant string, q TextQuery) (int, error) {
	if err := requireTenant(tenant); err != nil {
		return 0, err
	}
	vq := ViewQuery{View: ViewBySchema, Tenant: tenant, Schema: SchemaText, Contains: q.Contains}
	if q.ClassID != "" {
		vq.View = ViewByClass
		vq.Keys = []string{q.ClassID}
	}
	return s.count(ctx, vq)
}

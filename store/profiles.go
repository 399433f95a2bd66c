package store

import "context"

// Profiles are global: they carry no tenant and their usernames are unique
// across the whole collection.

// CreateProfile creates a profile for username.
func (s *Store) CreateProfile(ctx context.Context, username string) (*Profile, error) {
	doc, err := buildProfile(username)
	if err != nil {
		return nil, err
	}
	if err := s.ensureUnique(ctx, "", SchemaProfile, username, ""); err != nil {
		return nil, err
	}
	stored, err := s.backend.Insert(ctx, doc)
	if err != nil {
		return nil, wrapError(err, "insert profile")
	}
	return profileFromDocument(stored), nil
}

// FindProfile returns the profile of username.
func (s *Store) FindProfile(ctx context.Context, username string) (*Profile, error) {
	doc, err := s.findByNaturalKey(ctx, SchemaProfile, "", username)
	if err != nil {
		return nil, err
	}
	return profileFromDocument(doc), nil
}

// GetProfile returns the profile with id.
func (s *Store) GetProfile(ctx context.Context, id string) (*Profile, error) {
	doc, err := s.get(ctx, "", SchemaProfile, id)
	if err != nil {
		return nil, err
	}
	return profileFromDocument(doc), nil
}

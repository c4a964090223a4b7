package tags

import (
	"context"
	"errors"
	"sync"
	"time"
)

// InMemoryStore is the tag store used when no database is configured.
type InMemoryStore struct {
	mu   sync.Mutex
	tags map[string][]Tag // event id -> tags in creation order
}

// NewInMemoryStore constructs an in-memory tag Store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{tags: make(map[string][]Tag)}
}

// List returns all tags of an event in creation order.
func (s *InMemoryStore) List(ctx context.Context, eventID string) ([]Tag, error) {
	if eventID == "" {
		return nil, errors.New("missing event_id")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Tag(nil), s.tags[eventID]...), nil
}

// Create adds a tag to an event.
func (s *InMemoryStore) Create(ctx context.Context, eventID, tagID, label string, now time.Time) (Tag, error) {
	if eventID == "" || tagID == "" || label == "" {
		return Tag{}, errors.New("invalid input")
	}
	if err := ctx.Err(); err != nil {
		return Tag{}, err
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	t := Tag{EventID: eventID, TagID: tagID, Label: label, CreatedAt: now}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tags[eventID] = append(s.tags[eventID], t)
	return t, nil
}

// Delete removes a tag from an event.
func (s *InMemoryStore) Delete(ctx context.Context, eventID, tagID string) error {
	if eventID == "" || tagID == "" {
		return errors.New("invalid input")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.tags[eventID]
	for i, t := range list {
		if t.TagID == tagID {
			s.tags[eventID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

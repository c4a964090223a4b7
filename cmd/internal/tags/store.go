// Package tags implements event-scoped label CRUD. It is a simple side
// feature sharing the chat service process; no concurrency coordination
// beyond store-level safety is needed here.
package tags

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound reports that the targeted tag does not exist.
var ErrNotFound = errors.New("tags: not found")

// Tag is an event-scoped label.
type Tag struct {
	EventID   string
	TagID     string
	Label     string
	CreatedAt time.Time
}

// Store persists event tags.
type Store interface {
	List(ctx context.Context, eventID string) ([]Tag, error)
	Create(ctx context.Context, eventID, tagID, label string, now time.Time) (Tag, error)
	Delete(ctx context.Context, eventID, tagID string) error
}

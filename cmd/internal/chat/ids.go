package chat

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// newULID returns a new ULID string (26 chars).
// ULIDs are lexicographically sortable and work well in distributed systems.
func newULID(now time.Time) string {
	if now.IsZero() {
		now = time.Now().UTC()
	}

	// crypto/rand.Read does not fail on supported platforms.
	return ulid.MustNew(ulid.Timestamp(now), rand.Reader).String()
}

// NewMessageID returns the system-assigned message id, assigned at
// persistence time and immutable thereafter.
func NewMessageID(now time.Time) string { return newULID(now) }

// NewSessionID returns a ULID used as websocket session id.
func NewSessionID(now time.Time) string { return newULID(now) }

// NewEnvelopeID returns a ULID used as envelope id.
// ULID is preferable to random hex for tracing and ordering in logs.
func NewEnvelopeID(now time.Time) string { return newULID(now) }

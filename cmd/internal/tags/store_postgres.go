package tags

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is a tag Store backed by PostgreSQL.
// Like the chat store, it does not own the pool.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures PostgresStore behavior.
type PostgresOption func(*PostgresStore) error

// WithSchema sets the DB schema used by this store (default: "gather").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return errors.New("tags: empty schema")
		}
		if !tagIdentRE.MatchString(schema) {
			return errors.New("tags: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a Postgres-backed tag Store.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{pool: pool, schema: "gather"}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, errors.New("tags: nil pool")
	}
	return st, nil
}

// List returns all tags of an event in creation order.
func (s *PostgresStore) List(ctx context.Context, eventID string) ([]Tag, error) {
	if eventID == "" {
		return nil, errors.New("missing event_id")
	}

	rows, err := s.pool.Query(ctx,
		`SELECT event_id, tag_id, label, created_at
		   FROM `+s.table()+`
		  WHERE event_id = $1
		  ORDER BY created_at ASC, tag_id ASC`,
		eventID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Tag, 0, 8)
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.EventID, &t.TagID, &t.Label, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Create adds a tag to an event.
func (s *PostgresStore) Create(ctx context.Context, eventID, tagID, label string, now time.Time) (Tag, error) {
	if eventID == "" || tagID == "" || label == "" {
		return Tag{}, errors.New("invalid input")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	if _, err := s.pool.Exec(ctx,
		`INSERT INTO `+s.table()+` (event_id, tag_id, label, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (event_id, tag_id) DO UPDATE SET label = EXCLUDED.label`,
		eventID, tagID, label, now,
	); err != nil {
		return Tag{}, err
	}

	return Tag{EventID: eventID, TagID: tagID, Label: label, CreatedAt: now}, nil
}

// Delete removes a tag from an event.
func (s *PostgresStore) Delete(ctx context.Context, eventID, tagID string) error {
	if eventID == "" || tagID == "" {
		return errors.New("invalid input")
	}

	ct, err := s.pool.Exec(ctx,
		`DELETE FROM `+s.table()+` WHERE event_id = $1 AND tag_id = $2`,
		eventID, tagID,
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) table() string {
	return pgx.Identifier{s.schema, "event_tags"}.Sanitize()
}

var tagIdentRE = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

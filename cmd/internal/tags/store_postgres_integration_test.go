package tags

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Integration tests are enabled when GATHER_DATABASE_URL is set.

func TestPostgresStore_CreateListDelete(t *testing.T) {
	t.Parallel()

	pool := mustOpenTagTestPool(t)
	defer pool.Close()

	schema := mustCreateTagTestSchema(t, pool)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_, _ = pool.Exec(ctx, `DROP SCHEMA IF EXISTS `+pgx.Identifier{schema}.Sanitize()+` CASCADE`)
	})

	store, err := NewPostgresStore(pool, WithSchema(schema))
	if err != nil {
		t.Fatalf("new postgres store: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	eventID := "it-tags-" + randHex(8)
	now := time.Now().UTC().Truncate(time.Millisecond)

	first, err := store.Create(ctx, eventID, "tag-1", "vip", now)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if first.Label != "vip" {
		t.Fatalf("unexpected tag: %+v", first)
	}

	if _, err := store.Create(ctx, eventID, "tag-2", "crew", now.Add(time.Second)); err != nil {
		t.Fatalf("create second: %v", err)
	}

	// Re-creating an existing tag id updates the label in place.
	if _, err := store.Create(ctx, eventID, "tag-1", "vip-updated", now.Add(2*time.Second)); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	list, err := store.List(ctx, eventID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 tags, got %d", len(list))
	}
	if list[0].TagID != "tag-1" || list[0].Label != "vip-updated" {
		t.Fatalf("upsert did not update label: %+v", list[0])
	}

	if err := store.Delete(ctx, eventID, "tag-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(ctx, eventID, "tag-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	list, err = store.List(ctx, eventID)
	if err != nil {
		t.Fatalf("list after delete: %v", err)
	}
	if len(list) != 1 || list[0].TagID != "tag-2" {
		t.Fatalf("unexpected remainder: %+v", list)
	}
}

// ---- test helpers ----

func mustOpenTagTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	raw := strings.TrimSpace(os.Getenv("GATHER_DATABASE_URL"))
	if raw == "" {
		t.Skip("integration test skipped: GATHER_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, raw)
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}
	return pool
}

func mustCreateTagTestSchema(t *testing.T, pool *pgxpool.Pool) string {
	t.Helper()

	schema := "gather_it_tags_" + strings.ToLower(randHex(8))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := pool.Exec(ctx, `CREATE SCHEMA `+pgx.Identifier{schema}.Sanitize()); err != nil {
		t.Fatalf("create schema: %v", err)
	}

	table := pgx.Identifier{schema, "event_tags"}.Sanitize()
	if _, err := pool.Exec(ctx, `
CREATE TABLE `+table+` (
  event_id   TEXT NOT NULL,
  tag_id     TEXT NOT NULL,
  label      TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),

  PRIMARY KEY (event_id, tag_id)
)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	return schema
}

func randHex(nBytes int) string {
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return ""
	}
	return hex.EncodeToString(b)
}

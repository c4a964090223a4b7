// Package chat contains Gather's per-event chat core: message persistence,
// room fan-out, delivery tracking and the two ingress surfaces.
package chat

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is a MessageStore backed by PostgreSQL.
//
// Ownership model:
// - PostgresStore does NOT own the pgx pool. The caller must close the pool.
// - Close() is therefore a no-op.
//
// Concurrency model:
// - Uses per-event transactional advisory locks to guarantee:
//   - No sequence gaps caused by duplicates
//   - Strict monotonic ordering under concurrency
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures PostgresStore behavior.
type PostgresOption func(*PostgresStore) error

// WithSchema sets the DB schema used by this store (default: "gather").
// The schema name is validated and safely quoted in queries.
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return errors.New("chat: empty schema")
		}
		if !isValidPGIdent(schema) {
			return errors.New("chat: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a Postgres-backed MessageStore.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:   pool,
		schema: "gather",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, errors.New("chat: nil pool")
	}
	return st, nil
}

// Close is a no-op because the pool is owned by the caller.
func (s *PostgresStore) Close() error { return nil }

const messageColumns = `event_id, message_id, client_msg_id, seq, sender_id, sender_name, sender_avatar, reply_to, text, status, deleted, deleted_at, server_ts`

// AppendMessage appends a message with idempotency and monotonic sequence
// allocation. The per-event log is created transparently on first append.
func (s *PostgresStore) AppendMessage(ctx context.Context, in AppendMessageInput) (AppendMessageResult, error) {
	if s == nil || s.pool == nil {
		return AppendMessageResult{}, errors.New("chat: nil store")
	}
	if in.EventID == "" || in.ClientMsgID == "" || in.SenderID == "" || in.Text == "" {
		return AppendMessageResult{}, errors.New("invalid input")
	}
	if err := ctx.Err(); err != nil {
		return AppendMessageResult{}, err
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return AppendMessageResult{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	events := pgIdent(s.schema, "events")
	cursors := pgIdent(s.schema, "event_cursors")
	messages := pgIdent(s.schema, "messages")

	// Serialize all writes per event to guarantee:
	// - No seq waste for duplicates
	// - Strict monotonic ordering without races
	//
	// hashtextextended reduces collision risk vs hashtext (still a hash, but better).
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, in.EventID); err != nil {
		return AppendMessageResult{}, fmt.Errorf("advisory lock: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO `+events+` (id) VALUES ($1)
		 ON CONFLICT (id) DO NOTHING`,
		in.EventID,
	); err != nil {
		return AppendMessageResult{}, err
	}

	existing, err := readMessageByClientMsgID(ctx, tx, messages, in.EventID, in.ClientMsgID)
	if err == nil {
		if err := tx.Commit(ctx); err != nil {
			return AppendMessageResult{}, err
		}
		return AppendMessageResult{Stored: existing, Duplicated: true}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return AppendMessageResult{}, err
	}

	// Cursor row ensures monotonic seq allocation.
	if _, err := tx.Exec(ctx,
		`INSERT INTO `+cursors+` (event_id, next_seq)
		 VALUES ($1, 1)
		 ON CONFLICT (event_id) DO NOTHING`,
		in.EventID,
	); err != nil {
		return AppendMessageResult{}, err
	}

	var seq int64
	if err := tx.QueryRow(ctx,
		`UPDATE `+cursors+`
		    SET next_seq = next_seq + 1,
		        updated_at = now()
		  WHERE event_id = $1
		RETURNING (next_seq - 1)`,
		in.EventID,
	).Scan(&seq); err != nil {
		return AppendMessageResult{}, err
	}

	messageID := NewMessageID(now)

	if _, err := tx.Exec(ctx,
		`INSERT INTO `+messages+` (
		     event_id, seq, message_id, client_msg_id, sender_id, sender_name, sender_avatar, reply_to, text, status, server_ts
		   ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		in.EventID, seq, messageID, in.ClientMsgID, in.SenderID, in.SenderName, in.SenderAvatar, in.ReplyTo, in.Text, string(StatusSent), now,
	); err != nil {
		return AppendMessageResult{}, fmt.Errorf("insert message: %w", err)
	}

	out := StoredMessage{
		EventID:      in.EventID,
		MessageID:    messageID,
		ClientMsgID:  in.ClientMsgID,
		Seq:          seq,
		SenderID:     in.SenderID,
		SenderName:   in.SenderName,
		SenderAvatar: in.SenderAvatar,
		ReplyTo:      in.ReplyTo,
		Text:         in.Text,
		Status:       StatusSent,
		ServerTS:     now,
	}

	if err := tx.Commit(ctx); err != nil {
		return AppendMessageResult{}, err
	}
	return AppendMessageResult{Stored: out, Duplicated: false}, nil
}

// FetchHistory returns messages ordered by seq ASC with skip/limit paging.
// Limit <= 0 returns everything after Skip.
func (s *PostgresStore) FetchHistory(ctx context.Context, in FetchHistoryInput) (FetchHistoryResult, error) {
	if s == nil || s.pool == nil {
		return FetchHistoryResult{}, errors.New("chat: nil store")
	}
	if in.EventID == "" {
		return FetchHistoryResult{}, errors.New("missing event_id")
	}
	if err := ctx.Err(); err != nil {
		return FetchHistoryResult{}, err
	}

	skip := in.Skip
	if skip < 0 {
		skip = 0
	}

	messages := pgIdent(s.schema, "messages")

	var (
		rows  pgx.Rows
		err   error
		fetch int
	)

	if in.Limit <= 0 {
		rows, err = s.pool.Query(ctx,
			`SELECT `+messageColumns+`
			   FROM `+messages+`
			  WHERE event_id = $1
			  ORDER BY seq ASC
			 OFFSET $2`,
			in.EventID, skip,
		)
	} else {
		fetch = in.Limit + 1
		rows, err = s.pool.Query(ctx,
			`SELECT `+messageColumns+`
			   FROM `+messages+`
			  WHERE event_id = $1
			  ORDER BY seq ASC
			 OFFSET $2
			  LIMIT $3`,
			in.EventID, skip, fetch,
		)
	}
	if err != nil {
		return FetchHistoryResult{}, err
	}
	defer rows.Close()

	msgs := make([]StoredMessage, 0, 64)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return FetchHistoryResult{}, err
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return FetchHistoryResult{}, err
	}

	if in.Limit <= 0 {
		return FetchHistoryResult{Messages: msgs, HasMore: false}, nil
	}

	hasMore := len(msgs) > in.Limit
	if hasMore {
		msgs = msgs[:in.Limit]
	}
	return FetchHistoryResult{Messages: msgs, HasMore: hasMore}, nil
}

// MarkDelivered advances a message from sent to delivered.
// First acknowledgement wins; the status never regresses.
func (s *PostgresStore) MarkDelivered(ctx context.Context, in MarkDeliveredInput) (MarkDeliveredResult, error) {
	if s == nil || s.pool == nil {
		return MarkDeliveredResult{}, errors.New("chat: nil store")
	}
	if in.EventID == "" || in.MessageID == "" {
		return MarkDeliveredResult{}, errors.New("invalid input")
	}
	if err := ctx.Err(); err != nil {
		return MarkDeliveredResult{}, err
	}

	messages := pgIdent(s.schema, "messages")

	row := s.pool.QueryRow(ctx,
		`UPDATE `+messages+`
		    SET status = $3
		  WHERE event_id = $1 AND message_id = $2 AND status = $4
		RETURNING `+messageColumns,
		in.EventID, in.MessageID, string(StatusDelivered), string(StatusSent),
	)
	m, err := scanMessage(row)
	if err == nil {
		return MarkDeliveredResult{Stored: m, Changed: true}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return MarkDeliveredResult{}, err
	}

	// Either already delivered (idempotent no-op) or genuinely absent.
	m, err = s.readMessage(ctx, in.EventID, in.MessageID)
	if errors.Is(err, pgx.ErrNoRows) {
		return MarkDeliveredResult{}, ErrNotFound
	}
	if err != nil {
		return MarkDeliveredResult{}, err
	}
	return MarkDeliveredResult{Stored: m, Changed: false}, nil
}

// MarkDeleted flags a message as deleted; the row is retained.
func (s *PostgresStore) MarkDeleted(ctx context.Context, in MarkDeletedInput) (MarkDeletedResult, error) {
	if s == nil || s.pool == nil {
		return MarkDeletedResult{}, errors.New("chat: nil store")
	}
	if in.EventID == "" || in.MessageID == "" {
		return MarkDeletedResult{}, errors.New("invalid input")
	}
	if err := ctx.Err(); err != nil {
		return MarkDeletedResult{}, err
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	messages := pgIdent(s.schema, "messages")

	row := s.pool.QueryRow(ctx,
		`UPDATE `+messages+`
		    SET deleted = TRUE,
		        deleted_at = $3
		  WHERE event_id = $1 AND message_id = $2 AND deleted = FALSE
		RETURNING `+messageColumns,
		in.EventID, in.MessageID, now,
	)
	m, err := scanMessage(row)
	if err == nil {
		return MarkDeletedResult{Stored: m, Changed: true}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return MarkDeletedResult{}, err
	}

	m, err = s.readMessage(ctx, in.EventID, in.MessageID)
	if errors.Is(err, pgx.ErrNoRows) {
		return MarkDeletedResult{}, ErrNotFound
	}
	if err != nil {
		return MarkDeletedResult{}, err
	}
	return MarkDeletedResult{Stored: m, Changed: false}, nil
}

// MarkRead records userID as having read all current messages of the event.
func (s *PostgresStore) MarkRead(ctx context.Context, eventID, userID string) error {
	if s == nil || s.pool == nil {
		return errors.New("chat: nil store")
	}
	if eventID == "" || userID == "" {
		return errors.New("invalid input")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	messages := pgIdent(s.schema, "messages")
	reads := pgIdent(s.schema, "message_reads")

	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+reads+` (event_id, seq, user_id)
		 SELECT event_id, seq, $2
		   FROM `+messages+`
		  WHERE event_id = $1
		 ON CONFLICT (event_id, seq, user_id) DO NOTHING`,
		eventID, userID,
	)
	return err
}

// Preview computes the per-viewer summary without fetching full history.
// Deleted messages never surface as the last message; an absent log yields
// the zero-value summary, not an error.
func (s *PostgresStore) Preview(ctx context.Context, eventID, viewerID string) (PreviewResult, error) {
	if s == nil || s.pool == nil {
		return PreviewResult{}, errors.New("chat: nil store")
	}
	if eventID == "" {
		return PreviewResult{}, errors.New("missing event_id")
	}
	if err := ctx.Err(); err != nil {
		return PreviewResult{}, err
	}

	messages := pgIdent(s.schema, "messages")
	reads := pgIdent(s.schema, "message_reads")

	var last *StoredMessage
	row := s.pool.QueryRow(ctx,
		`SELECT `+messageColumns+`
		   FROM `+messages+`
		  WHERE event_id = $1 AND deleted = FALSE
		  ORDER BY seq DESC
		  LIMIT 1`,
		eventID,
	)
	m, err := scanMessage(row)
	switch {
	case err == nil:
		last = &m
	case errors.Is(err, pgx.ErrNoRows):
		// Empty or fully deleted log.
	default:
		return PreviewResult{}, err
	}

	var unread int
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*)
		   FROM `+messages+` m
		  WHERE m.event_id = $1
		    AND m.deleted = FALSE
		    AND m.sender_id <> $2
		    AND NOT EXISTS (
		          SELECT 1 FROM `+reads+` r
		           WHERE r.event_id = m.event_id AND r.seq = m.seq AND r.user_id = $2
		        )`,
		eventID, viewerID,
	).Scan(&unread); err != nil {
		return PreviewResult{}, err
	}

	return newPreviewResult(last, unread, viewerID), nil
}

func (s *PostgresStore) readMessage(ctx context.Context, eventID, messageID string) (StoredMessage, error) {
	messages := pgIdent(s.schema, "messages")
	row := s.pool.QueryRow(ctx,
		`SELECT `+messageColumns+`
		   FROM `+messages+`
		  WHERE event_id = $1 AND message_id = $2`,
		eventID, messageID,
	)
	return scanMessage(row)
}

func readMessageByClientMsgID(ctx context.Context, tx pgx.Tx, messagesTable string, eventID, clientMsgID string) (StoredMessage, error) {
	row := tx.QueryRow(ctx,
		`SELECT `+messageColumns+`
		   FROM `+messagesTable+`
		  WHERE event_id = $1 AND client_msg_id = $2`,
		eventID, clientMsgID,
	)
	return scanMessage(row)
}

func scanMessage(row pgx.Row) (StoredMessage, error) {
	var (
		m      StoredMessage
		status string
	)
	err := row.Scan(
		&m.EventID,
		&m.MessageID,
		&m.ClientMsgID,
		&m.Seq,
		&m.SenderID,
		&m.SenderName,
		&m.SenderAvatar,
		&m.ReplyTo,
		&m.Text,
		&status,
		&m.Deleted,
		&m.DeletedAt,
		&m.ServerTS,
	)
	if err != nil {
		return StoredMessage{}, err
	}
	m.Status = Status(status)
	return m, nil
}

var pgIdentRE = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func isValidPGIdent(s string) bool {
	return pgIdentRE.MatchString(s)
}

func pgIdent(schema, table string) string {
	// pgx.Identifier safely quotes identifiers, preventing SQL injection.
	return pgx.Identifier{schema, table}.Sanitize()
}

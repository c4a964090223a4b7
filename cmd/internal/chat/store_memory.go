package chat

import (
	"context"
	"errors"
	"sync"
	"time"
)

// InMemoryStore is the store used when no database is configured.
// It keeps one log per event and supports the full MessageStore contract:
// idempotent appends with seq allocation, skip/limit history, delivery and
// deletion marks, read tracking and previews.
type InMemoryStore struct {
	mu   sync.Mutex
	logs map[string]*memLog
}

type memLog struct {
	seq    int64
	msgs   []StoredMessage
	dedupe map[string]int          // client_msg_id -> index into msgs
	byID   map[string]int          // message_id -> index into msgs
	readBy map[string]map[string]struct{} // message_id -> set of user ids
}

// NewInMemoryStore constructs an in-memory MessageStore implementation.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		logs: make(map[string]*memLog),
	}
}

// Close closes the store (noop for in-memory).
func (s *InMemoryStore) Close() error { return nil }

func (s *InMemoryStore) log(eventID string) *memLog {
	l := s.logs[eventID]
	if l == nil {
		l = &memLog{
			msgs:   make([]StoredMessage, 0, 64),
			dedupe: make(map[string]int),
			byID:   make(map[string]int),
			readBy: make(map[string]map[string]struct{}),
		}
		s.logs[eventID] = l
	}
	return l
}

// AppendMessage persists a message with idempotency and monotonic sequence
// allocation. The store mutex serializes appends per event, so concurrent
// submissions cannot lose updates.
func (s *InMemoryStore) AppendMessage(ctx context.Context, in AppendMessageInput) (AppendMessageResult, error) {
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

	s.mu.Lock()
	defer s.mu.Unlock()

	l := s.log(in.EventID)

	if i, ok := l.dedupe[in.ClientMsgID]; ok {
		return AppendMessageResult{Stored: l.msgs[i], Duplicated: true}, nil
	}

	l.seq++
	msg := StoredMessage{
		EventID:      in.EventID,
		MessageID:    NewMessageID(now),
		ClientMsgID:  in.ClientMsgID,
		Seq:          l.seq,
		SenderID:     in.SenderID,
		SenderName:   in.SenderName,
		SenderAvatar: in.SenderAvatar,
		Text:         in.Text,
		ReplyTo:      in.ReplyTo,
		Status:       StatusSent,
		ServerTS:     now,
	}

	idx := len(l.msgs)
	l.msgs = append(l.msgs, msg)
	l.dedupe[in.ClientMsgID] = idx
	l.byID[msg.MessageID] = idx

	return AppendMessageResult{Stored: msg, Duplicated: false}, nil
}

// FetchHistory returns messages ordered by seq ASC with skip/limit paging.
// A missing log yields an empty result, not an error.
func (s *InMemoryStore) FetchHistory(ctx context.Context, in FetchHistoryInput) (FetchHistoryResult, error) {
	if in.EventID == "" {
		return FetchHistoryResult{}, errors.New("missing event_id")
	}
	if err := ctx.Err(); err != nil {
		return FetchHistoryResult{}, err
	}

	s.mu.Lock()
	l := s.logs[in.EventID]
	var snap []StoredMessage
	if l != nil {
		snap = append([]StoredMessage(nil), l.msgs...)
	}
	s.mu.Unlock()

	skip := in.Skip
	if skip < 0 {
		skip = 0
	}
	if skip >= len(snap) {
		return FetchHistoryResult{}, nil
	}
	snap = snap[skip:]

	if in.Limit <= 0 {
		return FetchHistoryResult{Messages: snap, HasMore: false}, nil
	}

	hasMore := len(snap) > in.Limit
	if hasMore {
		snap = snap[:in.Limit]
	}
	return FetchHistoryResult{Messages: snap, HasMore: hasMore}, nil
}

// MarkDelivered advances a message from sent to delivered. The first
// acknowledgement wins; later acks report Changed=false without mutating.
func (s *InMemoryStore) MarkDelivered(ctx context.Context, in MarkDeliveredInput) (MarkDeliveredResult, error) {
	if in.EventID == "" || in.MessageID == "" {
		return MarkDeliveredResult{}, errors.New("invalid input")
	}
	if err := ctx.Err(); err != nil {
		return MarkDeliveredResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	l := s.logs[in.EventID]
	if l == nil {
		return MarkDeliveredResult{}, ErrNotFound
	}
	i, ok := l.byID[in.MessageID]
	if !ok {
		return MarkDeliveredResult{}, ErrNotFound
	}

	if l.msgs[i].Status == StatusDelivered {
		return MarkDeliveredResult{Stored: l.msgs[i], Changed: false}, nil
	}

	l.msgs[i].Status = StatusDelivered
	return MarkDeliveredResult{Stored: l.msgs[i], Changed: true}, nil
}

// MarkDeleted flags a message as deleted. The record stays in the log.
func (s *InMemoryStore) MarkDeleted(ctx context.Context, in MarkDeletedInput) (MarkDeletedResult, error) {
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

	s.mu.Lock()
	defer s.mu.Unlock()

	l := s.logs[in.EventID]
	if l == nil {
		return MarkDeletedResult{}, ErrNotFound
	}
	i, ok := l.byID[in.MessageID]
	if !ok {
		return MarkDeletedResult{}, ErrNotFound
	}

	if l.msgs[i].Deleted {
		return MarkDeletedResult{Stored: l.msgs[i], Changed: false}, nil
	}

	l.msgs[i].Deleted = true
	l.msgs[i].DeletedAt = &now
	return MarkDeletedResult{Stored: l.msgs[i], Changed: true}, nil
}

// MarkRead records userID as having read all current messages of the event.
// Idempotent; a missing log is a no-op.
func (s *InMemoryStore) MarkRead(ctx context.Context, eventID, userID string) error {
	if eventID == "" || userID == "" {
		return errors.New("invalid input")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	l := s.logs[eventID]
	if l == nil {
		return nil
	}
	for _, m := range l.msgs {
		set := l.readBy[m.MessageID]
		if set == nil {
			set = make(map[string]struct{}, 2)
			l.readBy[m.MessageID] = set
		}
		set[userID] = struct{}{}
	}
	return nil
}

// Preview returns the per-viewer summary: the newest non-deleted message and
// the count of non-deleted messages not sent by and not yet read by the
// viewer. An empty or absent log yields the zero-value summary.
func (s *InMemoryStore) Preview(ctx context.Context, eventID, viewerID string) (PreviewResult, error) {
	if eventID == "" {
		return PreviewResult{}, errors.New("missing event_id")
	}
	if err := ctx.Err(); err != nil {
		return PreviewResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	l := s.logs[eventID]
	if l == nil {
		return PreviewResult{}, nil
	}

	var last *StoredMessage
	unread := 0

	for i := range l.msgs {
		m := &l.msgs[i]
		if m.Deleted {
			continue
		}
		if last == nil || m.Seq > last.Seq {
			last = m
		}
		if m.SenderID == viewerID {
			continue
		}
		if _, ok := l.readBy[m.MessageID][viewerID]; !ok {
			unread++
		}
	}

	if last == nil {
		return PreviewResult{UnreadCount: unread}, nil
	}

	cp := *last
	return newPreviewResult(&cp, unread, viewerID), nil
}

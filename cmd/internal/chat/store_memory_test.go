package chat

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestInMemoryStore_Append_AssignsSeqAndID(t *testing.T) {
	t.Parallel()

	s := NewInMemoryStore()
	ctx := context.Background()

	res, err := s.AppendMessage(ctx, AppendMessageInput{
		EventID:     "e1",
		ClientMsgID: "c1",
		SenderID:    "alice",
		SenderName:  "Alice",
		Text:        "hi",
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if res.Duplicated {
		t.Fatalf("expected Duplicated=false")
	}
	if res.Stored.Seq != 1 {
		t.Fatalf("expected seq=1 got=%d", res.Stored.Seq)
	}
	if res.Stored.MessageID == "" {
		t.Fatalf("expected non-empty message id")
	}
	if res.Stored.Status != StatusSent {
		t.Fatalf("expected status=sent got=%s", res.Stored.Status)
	}

	out, err := s.FetchHistory(ctx, FetchHistoryInput{EventID: "e1"})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(out.Messages) != 1 {
		t.Fatalf("expected 1 message got %d", len(out.Messages))
	}
	if out.Messages[0].MessageID != res.Stored.MessageID {
		t.Fatalf("message id not stable across reads")
	}
}

func TestInMemoryStore_Append_DuplicateClientMsgID(t *testing.T) {
	t.Parallel()

	s := NewInMemoryStore()
	ctx := context.Background()

	first, err := s.AppendMessage(ctx, AppendMessageInput{
		EventID: "e1", ClientMsgID: "c1", SenderID: "alice", Text: "hi",
	})
	if err != nil {
		t.Fatalf("append first: %v", err)
	}

	// Same (eventId, clientMsgId) within a retry window.
	second, err := s.AppendMessage(ctx, AppendMessageInput{
		EventID: "e1", ClientMsgID: "c1", SenderID: "alice", Text: "hi",
	})
	if err != nil {
		t.Fatalf("append second: %v", err)
	}
	if !second.Duplicated {
		t.Fatalf("expected Duplicated=true")
	}
	if second.Stored.MessageID != first.Stored.MessageID {
		t.Fatalf("duplicate resolved to a different message")
	}
	if second.Stored.Seq != first.Stored.Seq {
		t.Fatalf("duplicate changed seq")
	}

	out, _ := s.FetchHistory(ctx, FetchHistoryInput{EventID: "e1"})
	if len(out.Messages) != 1 {
		t.Fatalf("expected exactly 1 persisted message, got %d", len(out.Messages))
	}

	// Same clientMsgId in another event's log is a distinct message.
	other, err := s.AppendMessage(ctx, AppendMessageInput{
		EventID: "e2", ClientMsgID: "c1", SenderID: "alice", Text: "hi",
	})
	if err != nil {
		t.Fatalf("append other event: %v", err)
	}
	if other.Duplicated {
		t.Fatalf("idempotency guard must be scoped per event")
	}
}

func TestInMemoryStore_History_SkipLimit(t *testing.T) {
	t.Parallel()

	s := NewInMemoryStore()
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		if _, err := s.AppendMessage(ctx, AppendMessageInput{
			EventID:     "e1",
			ClientMsgID: fmt.Sprintf("c%d", i),
			SenderID:    "alice",
			Text:        fmt.Sprintf("m%d", i),
		}); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	out, err := s.FetchHistory(ctx, FetchHistoryInput{EventID: "e1", Skip: 2, Limit: 2})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(out.Messages) != 2 {
		t.Fatalf("expected 2 messages got %d", len(out.Messages))
	}
	if out.Messages[0].Seq != 3 || out.Messages[1].Seq != 4 {
		t.Fatalf("expected seq [3,4] got [%d,%d]", out.Messages[0].Seq, out.Messages[1].Seq)
	}
	if !out.HasMore {
		t.Fatalf("expected HasMore=true")
	}

	// No pagination returns the full ascending order.
	all, err := s.FetchHistory(ctx, FetchHistoryInput{EventID: "e1"})
	if err != nil {
		t.Fatalf("history all: %v", err)
	}
	if len(all.Messages) != 5 {
		t.Fatalf("expected 5 messages got %d", len(all.Messages))
	}
	for i, m := range all.Messages {
		if m.Seq != int64(i+1) {
			t.Fatalf("order broken at %d: seq=%d", i, m.Seq)
		}
	}

	// Unknown log reads as empty, not as an error.
	none, err := s.FetchHistory(ctx, FetchHistoryInput{EventID: "nope"})
	if err != nil {
		t.Fatalf("history unknown: %v", err)
	}
	if len(none.Messages) != 0 {
		t.Fatalf("expected empty history")
	}
}

func TestInMemoryStore_MarkDelivered_NeverRegresses(t *testing.T) {
	t.Parallel()

	s := NewInMemoryStore()
	ctx := context.Background()

	res, err := s.AppendMessage(ctx, AppendMessageInput{
		EventID: "e1", ClientMsgID: "c1", SenderID: "alice", Text: "hi",
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	first, err := s.MarkDelivered(ctx, MarkDeliveredInput{
		EventID: "e1", MessageID: res.Stored.MessageID, UserID: "bob",
	})
	if err != nil {
		t.Fatalf("mark delivered: %v", err)
	}
	if !first.Changed {
		t.Fatalf("expected first ack to transition")
	}
	if first.Stored.Status != StatusDelivered {
		t.Fatalf("expected status=delivered got=%s", first.Stored.Status)
	}

	second, err := s.MarkDelivered(ctx, MarkDeliveredInput{
		EventID: "e1", MessageID: res.Stored.MessageID, UserID: "carol",
	})
	if err != nil {
		t.Fatalf("second ack: %v", err)
	}
	if second.Changed {
		t.Fatalf("second ack must be a no-op")
	}
	if second.Stored.Status != StatusDelivered {
		t.Fatalf("status regressed to %s", second.Stored.Status)
	}

	if _, err := s.MarkDelivered(ctx, MarkDeliveredInput{
		EventID: "e1", MessageID: "missing", UserID: "bob",
	}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestInMemoryStore_MarkDeleted_FlagsAndRetains(t *testing.T) {
	t.Parallel()

	s := NewInMemoryStore()
	ctx := context.Background()

	var ids []string
	for i := 1; i <= 3; i++ {
		res, err := s.AppendMessage(ctx, AppendMessageInput{
			EventID:     "e1",
			ClientMsgID: fmt.Sprintf("c%d", i),
			SenderID:    "alice",
			SenderName:  "Alice",
			Text:        fmt.Sprintf("m%d", i),
		})
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		ids = append(ids, res.Stored.MessageID)
	}

	del, err := s.MarkDeleted(ctx, MarkDeletedInput{EventID: "e1", MessageID: ids[1]})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !del.Changed || !del.Stored.Deleted || del.Stored.DeletedAt == nil {
		t.Fatalf("delete did not flag: %+v", del)
	}

	// Deleting again is a no-op.
	again, err := s.MarkDeleted(ctx, MarkDeletedInput{EventID: "e1", MessageID: ids[1]})
	if err != nil {
		t.Fatalf("delete again: %v", err)
	}
	if again.Changed {
		t.Fatalf("second delete must be a no-op")
	}

	// History keeps all 3 entries, with the 2nd flagged.
	out, _ := s.FetchHistory(ctx, FetchHistoryInput{EventID: "e1"})
	if len(out.Messages) != 3 {
		t.Fatalf("expected 3 history entries got %d", len(out.Messages))
	}
	if !out.Messages[1].Deleted {
		t.Fatalf("expected 2nd entry flagged deleted")
	}
	if out.Messages[0].Deleted || out.Messages[2].Deleted {
		t.Fatalf("unexpected delete flags")
	}

	if _, err := s.MarkDeleted(ctx, MarkDeletedInput{EventID: "e1", MessageID: "missing"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.MarkDeleted(ctx, MarkDeletedInput{EventID: "nope", MessageID: ids[0]}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown log, got %v", err)
	}
}

func TestInMemoryStore_Preview(t *testing.T) {
	t.Parallel()

	s := NewInMemoryStore()
	ctx := context.Background()

	// Empty or absent log yields the zero-value summary.
	empty, err := s.Preview(ctx, "nope", "bob")
	if err != nil {
		t.Fatalf("preview empty: %v", err)
	}
	if empty.LastMessage != nil || empty.UnreadCount != 0 {
		t.Fatalf("expected zero-value preview, got %+v", empty)
	}

	var ids []string
	for i := 1; i <= 3; i++ {
		res, err := s.AppendMessage(ctx, AppendMessageInput{
			EventID:     "e1",
			ClientMsgID: fmt.Sprintf("c%d", i),
			SenderID:    "alice",
			SenderName:  "Alice",
			Text:        fmt.Sprintf("m%d", i),
		})
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		ids = append(ids, res.Stored.MessageID)
	}

	got, err := s.Preview(ctx, "e1", "bob")
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if got.LastMessage == nil || got.LastMessage.Text != "m3" {
		t.Fatalf("expected last=m3, got %+v", got.LastMessage)
	}
	if got.UnreadCount != 3 {
		t.Fatalf("expected unread=3 got %d", got.UnreadCount)
	}
	if got.LastSenderName != "Alice" {
		t.Fatalf("expected last sender Alice got %q", got.LastSenderName)
	}
	if got.IsOwnMessage {
		t.Fatalf("bob did not send the last message")
	}

	// The sender's own view: nothing unread, last message is their own.
	own, _ := s.Preview(ctx, "e1", "alice")
	if own.UnreadCount != 0 {
		t.Fatalf("sender must not count own messages as unread, got %d", own.UnreadCount)
	}
	if !own.IsOwnMessage {
		t.Fatalf("expected IsOwnMessage for the sender")
	}

	// Deleting the newest message moves the preview head back.
	if _, err := s.MarkDeleted(ctx, MarkDeletedInput{EventID: "e1", MessageID: ids[2]}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, _ = s.Preview(ctx, "e1", "bob")
	if got.LastMessage == nil || got.LastMessage.Text != "m2" {
		t.Fatalf("deleted message surfaced as last, got %+v", got.LastMessage)
	}
	if got.UnreadCount != 2 {
		t.Fatalf("expected unread=2 after delete, got %d", got.UnreadCount)
	}
}

func TestInMemoryStore_MarkRead_ClearsUnread(t *testing.T) {
	t.Parallel()

	s := NewInMemoryStore()
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		if _, err := s.AppendMessage(ctx, AppendMessageInput{
			EventID:     "e1",
			ClientMsgID: fmt.Sprintf("c%d", i),
			SenderID:    "alice",
			Text:        fmt.Sprintf("m%d", i),
		}); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	if err := s.MarkRead(ctx, "e1", "bob"); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	got, _ := s.Preview(ctx, "e1", "bob")
	if got.UnreadCount != 0 {
		t.Fatalf("expected unread=0 after mark read, got %d", got.UnreadCount)
	}

	// New messages after the read mark count again.
	if _, err := s.AppendMessage(ctx, AppendMessageInput{
		EventID: "e1", ClientMsgID: "c3", SenderID: "alice", Text: "m3",
	}); err != nil {
		t.Fatalf("append: %v", err)
	}
	got, _ = s.Preview(ctx, "e1", "bob")
	if got.UnreadCount != 1 {
		t.Fatalf("expected unread=1, got %d", got.UnreadCount)
	}

	// Marking an unknown log read is a no-op.
	if err := s.MarkRead(ctx, "nope", "bob"); err != nil {
		t.Fatalf("mark read unknown log: %v", err)
	}
}

func TestInMemoryStore_ConcurrentAppends_NoLostUpdates(t *testing.T) {
	t.Parallel()

	s := NewInMemoryStore()
	ctx := context.Background()

	const n = 64
	done := make(chan error, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			_, err := s.AppendMessage(ctx, AppendMessageInput{
				EventID:     "e1",
				ClientMsgID: fmt.Sprintf("c%d", i),
				SenderID:    "alice",
				Text:        "x",
				Now:         time.Now().UTC(),
			})
			done <- err
		}(i)
	}
	for i := 0; i < n; i++ {
		if err := <-done; err != nil {
			t.Fatalf("concurrent append: %v", err)
		}
	}

	out, _ := s.FetchHistory(ctx, FetchHistoryInput{EventID: "e1"})
	if len(out.Messages) != n {
		t.Fatalf("lost updates: expected %d messages got %d", n, len(out.Messages))
	}

	seen := make(map[int64]struct{}, n)
	for _, m := range out.Messages {
		seen[m.Seq] = struct{}{}
	}
	for want := int64(1); want <= n; want++ {
		if _, ok := seen[want]; !ok {
			t.Fatalf("missing seq=%d (gap)", want)
		}
	}
}

package chat

import (
	"strings"
	"testing"
)

func TestTruncatePreview(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"short", "hello", "hello"},
		{"exactly thirty runes", strings.Repeat("a", 30), strings.Repeat("a", 30)},
		{"thirty one runes", strings.Repeat("a", 31), strings.Repeat("a", 27) + "..."},
		{"long", strings.Repeat("b", 200), strings.Repeat("b", 27) + "..."},
		{"multibyte counts runes not bytes", strings.Repeat("é", 30), strings.Repeat("é", 30)},
		{"multibyte truncated", strings.Repeat("é", 31), strings.Repeat("é", 27) + "..."},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := truncatePreview(tc.in); got != tc.want {
				t.Fatalf("truncatePreview(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestNewPreviewResult_NilLast(t *testing.T) {
	t.Parallel()

	got := newPreviewResult(nil, 4, "bob")
	if got.LastMessage != nil || got.PreviewText != "" || got.IsOwnMessage {
		t.Fatalf("unexpected fields on empty preview: %+v", got)
	}
	if got.UnreadCount != 4 {
		t.Fatalf("unread count must still carry through, got %d", got.UnreadCount)
	}
}

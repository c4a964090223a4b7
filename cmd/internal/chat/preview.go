package chat

const (
	// Preview text is truncated to previewHeadRunes + an ellipsis once the
	// message exceeds previewMaxRunes.
	previewMaxRunes  = 30
	previewHeadRunes = 27
)

// newPreviewResult assembles the per-viewer summary from the newest
// non-deleted message and the viewer's unread count.
func newPreviewResult(last *StoredMessage, unread int, viewerID string) PreviewResult {
	out := PreviewResult{UnreadCount: unread}
	if last == nil {
		return out
	}

	out.LastMessage = last
	out.LastMessageTime = last.ServerTS
	out.LastSenderName = last.SenderName
	out.PreviewText = truncatePreview(last.Text)
	out.IsOwnMessage = viewerID != "" && last.SenderID == viewerID
	return out
}

func truncatePreview(text string) string {
	r := []rune(text)
	if len(r) <= previewMaxRunes {
		return text
	}
	return string(r[:previewHeadRunes]) + "..."
}

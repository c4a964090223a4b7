package chat

import (
	v1 "gather/shared/contracts/chat/v1"
)

// wireMessage converts a stored message to its wire representation.
// IsDeleted and Deleted intentionally carry the same value; downstream
// consumers read one or the other.
func wireMessage(m StoredMessage) v1.MessagePayload {
	return v1.MessagePayload{
		EventID:      m.EventID,
		MessageID:    m.MessageID,
		ClientMsgID:  m.ClientMsgID,
		Seq:          m.Seq,
		SenderID:     m.SenderID,
		SenderName:   m.SenderName,
		SenderAvatar: m.SenderAvatar,
		Text:         m.Text,
		ReplyTo:      m.ReplyTo,
		Status:       string(m.Status),
		IsDeleted:    m.Deleted,
		Deleted:      m.Deleted,
		DeletedAt:    m.DeletedAt,
		ServerTS:     m.ServerTS,
	}
}

func wireMessages(in []StoredMessage) []v1.MessagePayload {
	out := make([]v1.MessagePayload, 0, len(in))
	for _, m := range in {
		out = append(out, wireMessage(m))
	}
	return out
}

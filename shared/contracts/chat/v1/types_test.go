package v1

import (
	"encoding/json"
	"testing"
)

func TestEnvelopeValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		env     Envelope
		wantErr bool
	}{
		{"valid hello", Envelope{V: Version, Type: TypeHello}, false},
		{"valid message_send", Envelope{V: Version, Type: TypeMessageSend}, false},
		{"valid error", Envelope{V: Version, Type: TypeError}, false},
		{"missing v", Envelope{Type: TypeHello}, true},
		{"blank v", Envelope{V: "  ", Type: TypeHello}, true},
		{"wrong version", Envelope{V: "v2", Type: TypeHello}, true},
		{"missing type", Envelope{V: Version}, true},
		{"unknown type", Envelope{V: Version, Type: "message_edit"}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.env.Validate()
			if tc.wantErr && err == nil {
				t.Fatalf("expected error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestEnvelopeRoundTripKeepsRawPayload(t *testing.T) {
	t.Parallel()

	in := Envelope{
		V:       Version,
		Type:    TypeMessageSend,
		ID:      "env-1",
		Payload: json.RawMessage(`{"event_id":"e1","client_msg_id":"c1","sender_id":"alice","text":"hi"}`),
	}
	raw, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var out Envelope
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := out.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	var p MessageSendPayload
	if err := json.Unmarshal(out.Payload, &p); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if p.EventID != "e1" || p.ClientMsgID != "c1" || p.Text != "hi" {
		t.Fatalf("payload fields lost: %+v", p)
	}
}

package chat

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	v1 "gather/shared/contracts/chat/v1"
)

const handlerMaxBodyBytes = 64 << 10

// Handler is the discrete request/response surface of the chat core.
//
// Both ingress paths share the same normalization and idempotency guard; this
// handler also broadcasts accepted writes to live room subscribers through
// the injected hub, so REST-created messages are not invisible to streaming
// clients.
type Handler struct {
	log   *slog.Logger
	store MessageStore
	hub   *Hub
}

// NewHandler constructs the REST chat handler. hub may be nil, in which case
// writes are accepted without live fan-out.
func NewHandler(log *slog.Logger, store MessageStore, hub *Hub) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	if store == nil {
		return nil, errors.New("chat: nil store")
	}
	return &Handler{log: log, store: store, hub: hub}, nil
}

// Register wires chat routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("GET /events/{eventID}/chat/history", h.handleHistory)
	mux.HandleFunc("GET /events/{eventID}/chat/preview", h.handlePreview)
	mux.HandleFunc("POST /events/{eventID}/chat/messages", h.handleCreate)
	mux.HandleFunc("DELETE /events/{eventID}/chat/messages/{messageID}", h.handleDelete)
	mux.HandleFunc("POST /events/{eventID}/chat/read", h.handleRead)
}

type historyResponse struct {
	Messages []v1.MessagePayload `json:"messages"`
	HasMore  bool                `json:"has_more"`
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	eventID := strings.TrimSpace(r.PathValue("eventID"))
	if eventID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "missing event id")
		return
	}

	skip, ok := queryInt(w, r, "skip")
	if !ok {
		return
	}
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}

	out, err := h.store.FetchHistory(r.Context(), FetchHistoryInput{
		EventID: eventID,
		Skip:    skip,
		Limit:   limit,
	})
	if err != nil {
		h.log.Error("chat.history.fail", "event_id", eventID, "err", err)
		writeError(w, http.StatusInternalServerError, "store_unavailable", "history fetch failed")
		return
	}

	writeJSON(w, http.StatusOK, historyResponse{
		Messages: wireMessages(out.Messages),
		HasMore:  out.HasMore,
	})
}

type previewResponse struct {
	LastMessage     *v1.MessagePayload `json:"last_message"`
	UnreadCount     int                `json:"unread_count"`
	LastMessageTime *time.Time         `json:"last_message_time,omitempty"`
	LastSenderName  string             `json:"last_sender_name,omitempty"`
	PreviewText     string             `json:"preview_text,omitempty"`
	IsOwnMessage    bool               `json:"is_own_message"`
}

func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	eventID := strings.TrimSpace(r.PathValue("eventID"))
	if eventID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "missing event id")
		return
	}
	viewerID := strings.TrimSpace(r.URL.Query().Get("viewer_id"))

	out, err := h.store.Preview(r.Context(), eventID, viewerID)
	if err != nil {
		h.log.Error("chat.preview.fail", "event_id", eventID, "err", err)
		writeError(w, http.StatusInternalServerError, "store_unavailable", "preview failed")
		return
	}

	resp := previewResponse{
		UnreadCount:  out.UnreadCount,
		IsOwnMessage: out.IsOwnMessage,
	}
	if out.LastMessage != nil {
		wm := wireMessage(*out.LastMessage)
		resp.LastMessage = &wm
		resp.LastMessageTime = &out.LastMessageTime
		resp.LastSenderName = out.LastSenderName
		resp.PreviewText = out.PreviewText
	}
	writeJSON(w, http.StatusOK, resp)
}

type createMessageRequest struct {
	ClientMsgID  string `json:"client_msg_id"`
	SenderID     string `json:"sender_id"`
	SenderName   string `json:"sender_name"`
	SenderAvatar string `json:"sender_avatar,omitempty"`
	Text         string `json:"text"`
	ReplyTo      string `json:"reply_to,omitempty"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	eventID := strings.TrimSpace(r.PathValue("eventID"))
	if eventID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "missing event id")
		return
	}

	var req createMessageRequest
	if err := decodeJSON(w, r, handlerMaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	text := strings.TrimSpace(req.Text)
	switch {
	case text == "":
		writeError(w, http.StatusBadRequest, "missing_text", "text is required")
		return
	case len([]rune(text)) > maxMessageChars:
		writeError(w, http.StatusBadRequest, "text_too_long", "text exceeds maximum length")
		return
	case strings.TrimSpace(req.ClientMsgID) == "":
		writeError(w, http.StatusBadRequest, "missing_client_msg_id", "client_msg_id is required")
		return
	case strings.TrimSpace(req.SenderID) == "":
		writeError(w, http.StatusBadRequest, "missing_sender_id", "sender_id is required")
		return
	}

	now := time.Now().UTC()
	res, err := h.store.AppendMessage(r.Context(), AppendMessageInput{
		EventID:      eventID,
		ClientMsgID:  req.ClientMsgID,
		SenderID:     req.SenderID,
		SenderName:   req.SenderName,
		SenderAvatar: req.SenderAvatar,
		Text:         text,
		ReplyTo:      req.ReplyTo,
		Now:          now,
	})
	if err != nil {
		h.log.Error("chat.create.fail", "event_id", eventID, "err", err)
		writeError(w, http.StatusInternalServerError, "store_unavailable", "message append failed")
		return
	}

	msg := wireMessage(res.Stored)

	// Duplicate submissions resolve silently to the original stored message.
	if res.Duplicated {
		writeJSON(w, http.StatusOK, msg)
		return
	}

	payload, _ := json.Marshal(msg)
	h.broadcast(eventID, v1.TypeMessageNew, payload, now)

	writeJSON(w, http.StatusCreated, msg)
}

type deleteMessageResponse struct {
	Success   bool   `json:"success"`
	MessageID string `json:"message_id"`
	IsDeleted bool   `json:"is_deleted"`
	Deleted   bool   `json:"deleted"`
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	eventID := strings.TrimSpace(r.PathValue("eventID"))
	messageID := strings.TrimSpace(r.PathValue("messageID"))
	if eventID == "" || messageID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "missing event or message id")
		return
	}

	now := time.Now().UTC()
	res, err := h.store.MarkDeleted(r.Context(), MarkDeletedInput{
		EventID:   eventID,
		MessageID: messageID,
		Now:       now,
	})
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "chat or message not found")
		return
	}
	if err != nil {
		h.log.Error("chat.delete.fail", "event_id", eventID, "message_id", messageID, "err", err)
		writeError(w, http.StatusInternalServerError, "store_unavailable", "delete failed")
		return
	}

	if res.Changed {
		payload, _ := json.Marshal(v1.MessageDeletedPayload{
			EventID:   eventID,
			MessageID: messageID,
			IsDeleted: true,
			Deleted:   true,
		})
		h.broadcast(eventID, v1.TypeMessageDeleted, payload, now)
	}

	writeJSON(w, http.StatusOK, deleteMessageResponse{
		Success:   true,
		MessageID: messageID,
		IsDeleted: true,
		Deleted:   true,
	})
}

type markReadRequest struct {
	UserID string `json:"user_id"`
}

func (h *Handler) handleRead(w http.ResponseWriter, r *http.Request) {
	eventID := strings.TrimSpace(r.PathValue("eventID"))
	if eventID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "missing event id")
		return
	}

	var req markReadRequest
	if err := decodeJSON(w, r, handlerMaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		writeError(w, http.StatusBadRequest, "missing_user_id", "user_id is required")
		return
	}

	if err := h.store.MarkRead(r.Context(), eventID, req.UserID); err != nil {
		h.log.Error("chat.read.fail", "event_id", eventID, "user_id", req.UserID, "err", err)
		writeError(w, http.StatusInternalServerError, "store_unavailable", "mark read failed")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) broadcast(eventID, typ string, payload json.RawMessage, ts time.Time) {
	if h.hub == nil {
		return
	}
	h.hub.Broadcast(eventID, newEnvelope(typ, payload, ts))
}

// queryInt parses an optional non-negative integer query parameter.
// A missing parameter yields zero; a malformed one writes a 400 response.
func queryInt(w http.ResponseWriter, r *http.Request, key string) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid "+key)
		return 0, false
	}
	return n, true
}

package tags

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const maxBodyBytes = 16 << 10

// Handler exposes tag CRUD over HTTP.
type Handler struct {
	log   *slog.Logger
	store Store
	newID func(time.Time) string
}

// NewHandler constructs the tag handler. newID generates tag ids.
func NewHandler(log *slog.Logger, store Store, newID func(time.Time) string) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	if store == nil {
		return nil, errors.New("tags: nil store")
	}
	if newID == nil {
		return nil, errors.New("tags: nil id generator")
	}
	return &Handler{log: log, store: store, newID: newID}, nil
}

// Register wires tag routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("GET /events/{eventID}/tags", h.handleList)
	mux.HandleFunc("POST /events/{eventID}/tags", h.handleCreate)
	mux.HandleFunc("DELETE /events/{eventID}/tags/{tagID}", h.handleDelete)
}

type tagResponse struct {
	EventID   string    `json:"event_id"`
	TagID     string    `json:"tag_id"`
	Label     string    `json:"label"`
	CreatedAt time.Time `json:"created_at"`
}

func toResponse(t Tag) tagResponse {
	return tagResponse{EventID: t.EventID, TagID: t.TagID, Label: t.Label, CreatedAt: t.CreatedAt}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	eventID := strings.TrimSpace(r.PathValue("eventID"))
	if eventID == "" {
		httpError(w, http.StatusBadRequest, "missing event id")
		return
	}

	list, err := h.store.List(r.Context(), eventID)
	if err != nil {
		h.log.Error("tags.list.fail", "event_id", eventID, "err", err)
		httpError(w, http.StatusInternalServerError, "tag list failed")
		return
	}

	out := make([]tagResponse, 0, len(list))
	for _, t := range list {
		out = append(out, toResponse(t))
	}
	httpJSON(w, http.StatusOK, out)
}

type createTagRequest struct {
	Label string `json:"label"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	eventID := strings.TrimSpace(r.PathValue("eventID"))
	if eventID == "" {
		httpError(w, http.StatusBadRequest, "missing event id")
		return
	}

	var req createTagRequest
	if err := decodeBody(r, &req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	label := strings.TrimSpace(req.Label)
	if label == "" {
		httpError(w, http.StatusBadRequest, "label is required")
		return
	}

	now := time.Now().UTC()
	t, err := h.store.Create(r.Context(), eventID, h.newID(now), label, now)
	if err != nil {
		h.log.Error("tags.create.fail", "event_id", eventID, "err", err)
		httpError(w, http.StatusInternalServerError, "tag create failed")
		return
	}
	httpJSON(w, http.StatusCreated, toResponse(t))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	eventID := strings.TrimSpace(r.PathValue("eventID"))
	tagID := strings.TrimSpace(r.PathValue("tagID"))
	if eventID == "" || tagID == "" {
		httpError(w, http.StatusBadRequest, "missing event or tag id")
		return
	}

	err := h.store.Delete(r.Context(), eventID, tagID)
	if errors.Is(err, ErrNotFound) {
		httpError(w, http.StatusNotFound, "tag not found")
		return
	}
	if err != nil {
		h.log.Error("tags.delete.fail", "event_id", eventID, "tag_id", tagID, "err", err)
		httpError(w, http.StatusInternalServerError, "tag delete failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func httpJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, status int, msg string) {
	httpJSON(w, status, map[string]string{"error": msg})
}

func decodeBody(r *http.Request, dst any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	defer func() { _ = r.Body.Close() }()

	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

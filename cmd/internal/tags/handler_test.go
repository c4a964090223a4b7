package tags

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestMux(t *testing.T) *http.ServeMux {
	t.Helper()

	var n int
	newID := func(time.Time) string {
		n++
		return fmt.Sprintf("tag-%d", n)
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	h, err := NewHandler(log, NewInMemoryStore(), newID)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	mux := http.NewServeMux()
	h.Register(mux)
	return mux
}

func do(t *testing.T, mux *http.ServeMux, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHandler_CreateListDelete(t *testing.T) {
	t.Parallel()

	mux := newTestMux(t)

	rec := do(t, mux, http.MethodPost, "/events/e1/tags", `{"label":"vip"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created tagResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.EventID != "e1" || created.Label != "vip" || created.TagID == "" {
		t.Fatalf("unexpected tag: %+v", created)
	}

	do(t, mux, http.MethodPost, "/events/e1/tags", `{"label":"backstage"}`)

	rec = do(t, mux, http.MethodGet, "/events/e1/tags", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var list []tagResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 2 || list[0].Label != "vip" || list[1].Label != "backstage" {
		t.Fatalf("unexpected list: %+v", list)
	}

	rec = do(t, mux, http.MethodDelete, "/events/e1/tags/"+created.TagID, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}

	rec = do(t, mux, http.MethodGet, "/events/e1/tags", "")
	list = nil
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 1 || list[0].Label != "backstage" {
		t.Fatalf("unexpected list after delete: %+v", list)
	}

	rec = do(t, mux, http.MethodDelete, "/events/e1/tags/"+created.TagID, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for a removed tag, got %d", rec.Code)
	}
}

func TestHandler_CreateValidation(t *testing.T) {
	t.Parallel()

	mux := newTestMux(t)

	rec := do(t, mux, http.MethodPost, "/events/e1/tags", `{"label":"  "}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank label, got %d", rec.Code)
	}

	rec = do(t, mux, http.MethodPost, "/events/e1/tags", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", rec.Code)
	}

	rec = do(t, mux, http.MethodPost, "/events/e1/tags", `{"label":"x","extra":1}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rec.Code)
	}
}

func TestHandler_ListIsScopedPerEvent(t *testing.T) {
	t.Parallel()

	mux := newTestMux(t)

	do(t, mux, http.MethodPost, "/events/e1/tags", `{"label":"vip"}`)
	do(t, mux, http.MethodPost, "/events/e2/tags", `{"label":"crew"}`)

	rec := do(t, mux, http.MethodGet, "/events/e2/tags", "")
	var list []tagResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 1 || list[0].Label != "crew" {
		t.Fatalf("tags leaked across events: %+v", list)
	}
}

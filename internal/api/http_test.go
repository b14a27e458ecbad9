package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/internetsb/maizone/internal/dedup"
	"github.com/internetsb/maizone/internal/engage"
	"github.com/internetsb/maizone/internal/persona"
	"github.com/internetsb/maizone/internal/storage"
)

const testToken = "test-token"

// --- mocks ---

type mockPoster struct {
	post storage.Post
	err  error
}

func (m *mockPoster) PublishOnce(_ context.Context, topic string) (storage.Post, error) {
	p := m.post
	p.Topic = topic
	return p, m.err
}

type mockBrowser struct {
	err   error
	calls int
}

func (m *mockBrowser) ReconcileOnce(context.Context) error {
	m.calls++
	return m.err
}

type mockDiary struct {
	entries map[string]storage.DiaryEntry
	err     error
}

func (m *mockDiary) GenerateAndPublish(_ context.Context, date string) error {
	if m.err != nil {
		return m.err
	}
	if m.entries == nil {
		m.entries = make(map[string]storage.DiaryEntry)
	}
	m.entries[date] = storage.DiaryEntry{ID: "d1", Date: date, Content: "日记"}
	return nil
}

func (m *mockDiary) Entry(date string) (storage.DiaryEntry, error) {
	e, ok := m.entries[date]
	if !ok {
		return storage.DiaryEntry{}, storage.ErrNotFound
	}
	return e, nil
}

// --- helpers ---

func newTestDeps(t *testing.T) AppDeps {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	dir := t.TempDir()
	handled, err := dedup.Open(filepath.Join(dir, "handled.json"), 10)
	if err != nil {
		t.Fatalf("opening handled store: %v", err)
	}
	replied, err := dedup.Open(filepath.Join(dir, "replied.json"), 10)
	if err != nil {
		t.Fatalf("opening replied store: %v", err)
	}

	return AppDeps{
		Store:     store,
		Persona:   persona.NewManager(store),
		Poster:    &mockPoster{post: storage.Post{ID: "f1", Content: "内容"}},
		Browser:   &mockBrowser{},
		Diary:     &mockDiary{},
		Handled:   handled,
		Replied:   replied,
		Cooldowns: engage.NewCooldownTracker(0, 0),
		Token:     testToken,
	}
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("Authorization", "Bearer "+testToken)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// --- tests ---

func TestHealth_NoAuth(t *testing.T) {
	h := NewAppHandler(newTestDeps(t))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 without a token", rec.Code)
	}
}

func TestAuth_Required(t *testing.T) {
	h := NewAppHandler(newTestDeps(t))

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestStatus(t *testing.T) {
	deps := newTestDeps(t)
	deps.Handled.MarkHandled("f1")
	h := NewAppHandler(deps)

	rec := doRequest(t, h, http.MethodGet, "/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	var got statusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if !got.Running || got.HandledFeeds != 1 {
		t.Errorf("response = %+v", got)
	}
}

func TestTriggerPost(t *testing.T) {
	deps := newTestDeps(t)
	h := NewAppHandler(deps)

	rec := doRequest(t, h, http.MethodPost, "/actions/post", `{"topic":"下雨"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	var post storage.Post
	if err := json.Unmarshal(rec.Body.Bytes(), &post); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if post.Topic != "下雨" {
		t.Errorf("Topic = %q", post.Topic)
	}
	if deps.Cooldowns.Ready(engage.ActionPost) {
		t.Error("manual post must start the cooldown")
	}
}

func TestTriggerPost_Failure(t *testing.T) {
	deps := newTestDeps(t)
	deps.Poster = &mockPoster{err: errors.New("gateway down")}
	h := NewAppHandler(deps)

	rec := doRequest(t, h, http.MethodPost, "/actions/post", "")
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
	if !deps.Cooldowns.Ready(engage.ActionPost) {
		t.Error("failed post must not start the cooldown")
	}
}

func TestTriggerBrowse(t *testing.T) {
	deps := newTestDeps(t)
	browser := deps.Browser.(*mockBrowser)
	h := NewAppHandler(deps)

	rec := doRequest(t, h, http.MethodPost, "/actions/browse", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if browser.calls != 1 {
		t.Errorf("browse calls = %d, want 1", browser.calls)
	}
}

func TestTriggerDiary_InvalidDate(t *testing.T) {
	h := NewAppHandler(newTestDeps(t))

	rec := doRequest(t, h, http.MethodPost, "/actions/diary", `{"date":"01-06-2025"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestGetDiary_NotFound(t *testing.T) {
	h := NewAppHandler(newTestDeps(t))

	rec := doRequest(t, h, http.MethodGet, "/diary/2025-06-01", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestDiary_GenerateThenGet(t *testing.T) {
	h := NewAppHandler(newTestDeps(t))

	rec := doRequest(t, h, http.MethodPost, "/actions/diary", `{"date":"2025-06-01"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	rec = doRequest(t, h, http.MethodGet, "/diary/2025-06-01", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var entry storage.DiaryEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &entry); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if entry.Date != "2025-06-01" {
		t.Errorf("entry = %+v", entry)
	}
}

func TestDedupSnapshot(t *testing.T) {
	deps := newTestDeps(t)
	deps.Handled.MarkHandled("f1")
	deps.Replied.AppendSub("own1", "c1")
	h := NewAppHandler(deps)

	rec := doRequest(t, h, http.MethodGet, "/dedup", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var snap dedupSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(snap.Handled) != 1 || len(snap.Replied) != 1 {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestPersona_PatchThenGet(t *testing.T) {
	h := NewAppHandler(newTestDeps(t))

	rec := doRequest(t, h, http.MethodPatch, "/persona", `{"personality":"开朗","interests":["猫"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	rec = doRequest(t, h, http.MethodGet, "/persona", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var p persona.Persona
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if p.Personality != "开朗" || len(p.Interests) != 1 {
		t.Errorf("persona = %+v", p)
	}
}

func TestListPosts_Empty(t *testing.T) {
	h := NewAppHandler(newTestDeps(t))

	rec := doRequest(t, h, http.MethodGet, "/posts", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("body = %q, want empty JSON array", rec.Body.String())
	}
}

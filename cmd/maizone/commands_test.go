package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/internetsb/maizone/internal/config"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
	Auth   string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Body:   body.String(),
			Auth:   r.Header.Get("Authorization"),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"error":{"message":"not found","type":"not_found_error"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		token:      "test-token",
		httpClient: ts.server.Client(),
	}
}

var ctx = context.Background()

func TestTriggerPostRequest(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /actions/post": `{"id":"feed-123","topic":"下雨","content":"下雨天真舒服"}`,
	})

	client := ts.client()
	resp, err := client.post(ctx, "/actions/post", map[string]string{"topic": "下雨"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var post struct {
		ID      string `json:"id"`
		Content string `json:"content"`
	}
	if err := decodeJSON(resp, &post); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if post.ID != "feed-123" {
		t.Errorf("id = %q, want feed-123", post.ID)
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	r := ts.requests[0]
	if r.Auth != "Bearer test-token" {
		t.Errorf("auth = %q, want Bearer test-token", r.Auth)
	}

	var body map[string]string
	if err := json.Unmarshal([]byte(r.Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body["topic"] != "下雨" {
		t.Errorf("body.topic = %q, want 下雨", body["topic"])
	}
}

func TestDiaryWriteRequest(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /actions/diary": `{"id":"d1","date":"2025-06-01","content":"今天很充实。","word_count":6}`,
	})

	client := ts.client()
	resp, err := client.post(ctx, "/actions/diary", map[string]string{"date": "2025-06-01"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var entry struct {
		Date    string `json:"date"`
		Content string `json:"content"`
	}
	if err := decodeJSON(resp, &entry); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if entry.Date != "2025-06-01" {
		t.Errorf("date = %q", entry.Date)
	}
	if entry.Content == "" {
		t.Error("content should not be empty")
	}
}

func TestPersonaSetRequest(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"PATCH /persona": `{"personality":"开朗","interests":["猫"]}`,
	})

	client := ts.client()
	resp, err := client.patch(ctx, "/persona", map[string]any{"personality": "开朗"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result map[string]any
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if result["personality"] != "开朗" {
		t.Errorf("personality = %v", result["personality"])
	}

	var sentBody map[string]any
	if err := json.Unmarshal([]byte(ts.requests[0].Body), &sentBody); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if sentBody["personality"] != "开朗" {
		t.Errorf("sent body = %v", sentBody)
	}
}

func TestDedupSnapshotRequest(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /dedup": `{"handled":[{"item_id":"f1","sub_ids":[]}],"replied":[{"item_id":"own1","sub_ids":["c1","c2"]}]}`,
	})

	client := ts.client()
	resp, err := client.get(ctx, "/dedup")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var snap struct {
		Handled []struct {
			ItemID string `json:"item_id"`
		} `json:"handled"`
		Replied []struct {
			ItemID string   `json:"item_id"`
			SubIDs []string `json:"sub_ids"`
		} `json:"replied"`
	}
	if err := decodeJSON(resp, &snap); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if len(snap.Handled) != 1 || len(snap.Replied) != 1 {
		t.Fatalf("snapshot = %+v", snap)
	}
	if len(snap.Replied[0].SubIDs) != 2 {
		t.Errorf("sub ids = %v, want 2", snap.Replied[0].SubIDs)
	}
}

func TestStatusCommand_Stopped(t *testing.T) {
	ts := newTestServer(t, map[string]string{})
	ts.server.Close()

	client := ts.client()
	_, err := client.get(ctx, "/health")
	if err == nil {
		t.Fatal("expected error for stopped server")
	}
	if !strings.Contains(err.Error(), "not reachable") {
		t.Errorf("error = %q, want it to mention 'not reachable'", err.Error())
	}
}

func TestDecodeJSON_ErrorResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(401)
		w.Write([]byte(`{"error":{"message":"unauthorized","type":"authentication_error"}}`))
	}))
	defer ts.Close()

	client := &apiClient{
		baseURL:    ts.URL,
		token:      "bad-token",
		httpClient: ts.Client(),
	}

	resp, err := client.get(ctx, "/persona")
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}

	var result any
	err = decodeJSON(resp, &result)
	if err == nil {
		t.Fatal("expected error for 401 response")
	}
	if !strings.Contains(err.Error(), "401") {
		t.Errorf("error = %q, want it to contain '401'", err.Error())
	}
}

func TestNoColorFlag(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	result := colorize(colorGreen, "test message")
	if strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=true should not contain ANSI codes, got %q", result)
	}
	if result != "test message" {
		t.Errorf("result = %q, want %q", result, "test message")
	}

	noColor = false
	result = colorize(colorGreen, "test message")
	if !strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", result)
	}
}

func TestConfigShowAll(t *testing.T) {
	cfg := config.Config{}
	cfg.Server.Port = 4200
	cfg.LLM.Model = "qwen2.5"

	keys := config.ShowAll(cfg)
	if len(keys) == 0 {
		t.Fatal("expected non-empty keys from ShowAll")
	}

	found := false
	for _, k := range keys {
		if k.Key == "server.port" && k.Value == "4200" {
			found = true
		}
	}
	if !found {
		t.Error("expected to find server.port=4200 in ShowAll output")
	}
}

func TestPIDFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := pidFilePath(dir)

	if err := writePIDFile(path); err != nil {
		t.Fatalf("write error: %v", err)
	}
	pid, err := readPIDFile(path)
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	if pid <= 0 {
		t.Errorf("pid = %d, want positive", pid)
	}

	removePIDFile(path)
	if _, err := readPIDFile(path); err == nil {
		t.Error("expected error after removing PID file")
	}
}

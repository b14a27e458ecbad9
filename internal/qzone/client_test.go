package qzone

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestListRecent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/feeds/recent" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("count"); got != "5" {
			t.Errorf("count = %s", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"feeds": []Feed{
				{ID: "f1", OwnerID: "10001", Content: "hello", Comments: []Comment{
					{ID: "c1", AuthorID: "10002", Content: "hi"},
				}},
			},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "tok")
	feeds, err := c.ListRecent(context.Background(), 5)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(feeds) != 1 || feeds[0].ID != "f1" || len(feeds[0].Comments) != 1 {
		t.Errorf("unexpected feeds: %+v", feeds)
	}
}

func TestPublish(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/feeds" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["content"] != "today was good" {
			t.Errorf("content = %q", body["content"])
		}
		json.NewEncoder(w).Encode(map[string]string{"feed_id": "f-new"})
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	id, err := c.Publish(context.Background(), "today was good")
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if id != "f-new" {
		t.Errorf("feed id = %q", id)
	}
}

func TestErrorStatusSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "session expired", http.StatusForbidden)
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	if err := c.Like(context.Background(), "f1", "10001"); err == nil {
		t.Fatal("expected error on non-200 status")
	}
}

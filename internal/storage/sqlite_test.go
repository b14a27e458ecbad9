package storage

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestMigrationsIdempotent runs Open twice on the same database and verifies
// migrations are not re-applied.
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	var v1 int
	if err := s1.DB().QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&v1); err != nil {
		t.Fatalf("counting migrations: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()
	var v2 int
	if err := s2.DB().QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&v2); err != nil {
		t.Fatalf("counting migrations: %v", err)
	}

	if v1 == 0 || v1 != v2 {
		t.Errorf("applied migrations = %d then %d, want equal and non-zero", v1, v2)
	}
}

func TestPosts_SaveAndRecent(t *testing.T) {
	s := openTestStore(t)

	base := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		p := Post{
			ID:        fmt.Sprintf("post-%d", i),
			Topic:     "daily",
			Content:   fmt.Sprintf("content %d", i),
			Model:     "test-model",
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}
		if err := s.SavePost(p); err != nil {
			t.Fatalf("SavePost: %v", err)
		}
	}

	posts, err := s.RecentPosts(2)
	if err != nil {
		t.Fatalf("RecentPosts: %v", err)
	}
	if len(posts) != 2 {
		t.Fatalf("got %d posts, want 2", len(posts))
	}
	if posts[0].ID != "post-2" || posts[1].ID != "post-1" {
		t.Errorf("posts not ordered newest first: %s, %s", posts[0].ID, posts[1].ID)
	}
}

func TestDiaryEntry_UpsertAndPublish(t *testing.T) {
	s := openTestStore(t)

	first := time.Date(2025, 5, 1, 23, 30, 0, 0, time.UTC)
	e := DiaryEntry{
		ID:        "d1",
		Date:      "2025-05-01",
		Content:   "first draft",
		WordCount: 2,
		CreatedAt: first,
	}
	if err := s.SaveDiaryEntry(e); err != nil {
		t.Fatalf("SaveDiaryEntry: %v", err)
	}

	// Same date replaces the whole entry, identity and timestamp included.
	e.ID = "d2"
	e.Content = "revised"
	e.WordCount = 1
	e.CreatedAt = first.Add(time.Hour)
	if err := s.SaveDiaryEntry(e); err != nil {
		t.Fatalf("SaveDiaryEntry upsert: %v", err)
	}

	got, err := s.GetDiaryEntry("2025-05-01")
	if err != nil {
		t.Fatalf("GetDiaryEntry: %v", err)
	}
	if got.Content != "revised" || got.Published {
		t.Errorf("entry = %+v, want revised and unpublished", got)
	}
	if got.ID != "d2" {
		t.Errorf("ID = %q, want the regeneration's id d2", got.ID)
	}
	if !got.CreatedAt.Equal(first.Add(time.Hour)) {
		t.Errorf("CreatedAt = %v, want the regeneration's timestamp", got.CreatedAt)
	}

	if err := s.MarkDiaryPublished("2025-05-01"); err != nil {
		t.Fatalf("MarkDiaryPublished: %v", err)
	}
	got, err = s.GetDiaryEntry("2025-05-01")
	if err != nil {
		t.Fatalf("GetDiaryEntry: %v", err)
	}
	if !got.Published {
		t.Error("entry not marked published")
	}
}

func TestDiaryEntry_NotFound(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.GetDiaryEntry("1999-01-01"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetDiaryEntry err = %v, want ErrNotFound", err)
	}
	if err := s.MarkDiaryPublished("1999-01-01"); !errors.Is(err, ErrNotFound) {
		t.Errorf("MarkDiaryPublished err = %v, want ErrNotFound", err)
	}
}

func TestListDiaryEntries(t *testing.T) {
	s := openTestStore(t)

	for _, date := range []string{"2025-05-01", "2025-05-03", "2025-05-02"} {
		e := DiaryEntry{ID: "d-" + date, Date: date, Content: "日记", CreatedAt: time.Now()}
		if err := s.SaveDiaryEntry(e); err != nil {
			t.Fatalf("SaveDiaryEntry: %v", err)
		}
	}

	entries, err := s.ListDiaryEntries(2)
	if err != nil {
		t.Fatalf("ListDiaryEntries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Date != "2025-05-03" || entries[1].Date != "2025-05-02" {
		t.Errorf("entries not ordered by date desc: %s, %s", entries[0].Date, entries[1].Date)
	}
}

func TestPersonaKeys(t *testing.T) {
	s := openTestStore(t)

	if err := s.SetPersonaKey("personality", "开朗"); err != nil {
		t.Fatalf("SetPersonaKey: %v", err)
	}
	if err := s.SetPersonaKey("personality", "温和"); err != nil {
		t.Fatalf("SetPersonaKey update: %v", err)
	}
	if err := s.SetPersonaKey("reply_style", "平淡简短"); err != nil {
		t.Fatalf("SetPersonaKey: %v", err)
	}

	v, err := s.GetPersonaKey("personality")
	if err != nil {
		t.Fatalf("GetPersonaKey: %v", err)
	}
	if v != "温和" {
		t.Errorf("personality = %q, want updated value", v)
	}

	all, err := s.GetAllPersonaKeys()
	if err != nil {
		t.Fatalf("GetAllPersonaKeys: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("got %d keys, want 2", len(all))
	}

	if _, err := s.GetPersonaKey("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetPersonaKey err = %v, want ErrNotFound", err)
	}
}

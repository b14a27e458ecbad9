package engage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/internetsb/maizone/internal/llm"
	"github.com/internetsb/maizone/internal/prompt"
	"github.com/internetsb/maizone/internal/storage"
)

type mockPublisher struct {
	publishFunc func(ctx context.Context, content string) (string, error)
	published   []string
}

func (m *mockPublisher) Publish(ctx context.Context, content string) (string, error) {
	m.published = append(m.published, content)
	if m.publishFunc != nil {
		return m.publishFunc(ctx, content)
	}
	return "feed-1", nil
}

type mockPostLog struct {
	saved  []storage.Post
	recent []storage.Post
}

func (m *mockPostLog) SavePost(p storage.Post) error { m.saved = append(m.saved, p); return nil }
func (m *mockPostLog) RecentPosts(int) ([]storage.Post, error) {
	return m.recent, nil
}

type mockPersona struct {
	summary string
	err     error
}

func (m *mockPersona) Summary() (string, error) { return m.summary, m.err }

func newTestPoster(oracle Oracle, pub *mockPublisher, log *mockPostLog) *Poster {
	return NewPoster(oracle, prompt.NewBuilder(nil, 0), pub, log, &mockPersona{summary: "你是一只猫。"}, []string{"日常"})
}

func TestPoster_PublishesAndLogs(t *testing.T) {
	oracle := answering("今天心情不错！")
	pub := &mockPublisher{}
	log := &mockPostLog{}
	p := newTestPoster(oracle, pub, log)

	post, err := p.PublishOnce(context.Background(), "心情")
	if err != nil {
		t.Fatalf("PublishOnce: %v", err)
	}
	if post.ID != "feed-1" || post.Topic != "心情" || post.Content != "今天心情不错！" {
		t.Errorf("post = %+v", post)
	}
	if len(pub.published) != 1 || pub.published[0] != "今天心情不错！" {
		t.Errorf("published = %v", pub.published)
	}
	if len(log.saved) != 1 {
		t.Fatalf("saved %d posts, want 1", len(log.saved))
	}
}

func TestPoster_EmptyTopicPicksFromPool(t *testing.T) {
	oracle := answering("内容")
	p := newTestPoster(oracle, &mockPublisher{}, &mockPostLog{})

	post, err := p.PublishOnce(context.Background(), "")
	if err != nil {
		t.Fatalf("PublishOnce: %v", err)
	}
	if post.Topic != "日常" {
		t.Errorf("Topic = %q, want pool topic", post.Topic)
	}
}

func TestPoster_EmptyGenerationFails(t *testing.T) {
	pub := &mockPublisher{}
	p := newTestPoster(answering(""), pub, &mockPostLog{})

	if _, err := p.PublishOnce(context.Background(), "话题"); err == nil {
		t.Fatal("empty generation must fail")
	}
	if len(pub.published) != 0 {
		t.Error("nothing should be published on empty generation")
	}
}

func TestPoster_PublishFailureNotLogged(t *testing.T) {
	pub := &mockPublisher{
		publishFunc: func(context.Context, string) (string, error) {
			return "", errors.New("gateway down")
		},
	}
	log := &mockPostLog{}
	p := newTestPoster(answering("内容"), pub, log)

	if _, err := p.PublishOnce(context.Background(), "话题"); err == nil {
		t.Fatal("publish failure must surface")
	}
	if len(log.saved) != 0 {
		t.Error("failed publish must not be recorded")
	}
}

func TestPoster_HistoryInjectedIntoPrompt(t *testing.T) {
	var gotPrompt string
	oracle := &mockOracle{
		generateFunc: func(_ context.Context, p string, _ llm.Options) (llm.Result, error) {
			gotPrompt = p
			return llm.Result{Success: true, Text: "新内容"}, nil
		},
	}
	log := &mockPostLog{recent: []storage.Post{{ID: "old", Content: "旧的说说"}}}
	p := newTestPoster(oracle, &mockPublisher{}, log)

	if _, err := p.PublishOnce(context.Background(), "话题"); err != nil {
		t.Fatalf("PublishOnce: %v", err)
	}
	if gotPrompt == "" || !containsAll(gotPrompt, "旧的说说", "你是一只猫。") {
		t.Errorf("prompt missing history or persona:\n%s", gotPrompt)
	}
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}

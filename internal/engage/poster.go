package engage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/internetsb/maizone/internal/llm"
	"github.com/internetsb/maizone/internal/storage"
)

// FeedPublisher publishes a feed and returns its id.
// Implemented by qzone.Client.
type FeedPublisher interface {
	Publish(ctx context.Context, content string) (string, error)
}

// PostLog records published posts and serves recent history for prompts.
// Implemented by storage.Store.
type PostLog interface {
	SavePost(p storage.Post) error
	RecentPosts(limit int) ([]storage.Post, error)
}

// PersonaSource provides the persona summary for prompt injection.
// Implemented by persona.Manager.
type PersonaSource interface {
	Summary() (string, error)
}

// PromptBuilder builds the post-writing prompt.
type PromptBuilder interface {
	Post(personaSummary, topic string, history []storage.Post) string
}

const historyLimit = 10

// Poster generates a feed with the model and publishes it.
type Poster struct {
	oracle    Oracle
	prompts   PromptBuilder
	publisher FeedPublisher
	log       PostLog
	persona   PersonaSource
	topics    []string
	clock     func() time.Time
	logger    *slog.Logger
}

// NewPoster creates a Poster. topics is the pool a random topic is drawn
// from when the caller passes none.
func NewPoster(oracle Oracle, prompts PromptBuilder, publisher FeedPublisher, log PostLog, persona PersonaSource, topics []string) *Poster {
	return &Poster{
		oracle:    oracle,
		prompts:   prompts,
		publisher: publisher,
		log:       log,
		persona:   persona,
		topics:    topics,
		clock:     time.Now,
		logger:    slog.Default(),
	}
}

// PublishOnce generates and publishes one feed. An empty topic picks a
// random one from the configured pool.
func (p *Poster) PublishOnce(ctx context.Context, topic string) (storage.Post, error) {
	if topic == "" {
		topic = p.pickTopic()
	}

	summary, err := p.persona.Summary()
	if err != nil {
		p.logger.Warn("loading persona failed, posting without it", "error", err)
		summary = ""
	}

	history, err := p.log.RecentPosts(historyLimit)
	if err != nil {
		p.logger.Warn("loading post history failed, posting without it", "error", err)
		history = nil
	}

	res, err := p.oracle.Generate(ctx, p.prompts.Post(summary, topic, history), llm.Options{
		Temperature: 0.9,
		MaxTokens:   512,
	})
	if err != nil {
		return storage.Post{}, fmt.Errorf("generating post: %w", err)
	}
	if res.Text == "" {
		return storage.Post{}, errors.New("model returned empty post content")
	}

	feedID, err := p.publisher.Publish(ctx, res.Text)
	if err != nil {
		return storage.Post{}, fmt.Errorf("publishing feed: %w", err)
	}

	post := storage.Post{
		ID:        feedID,
		Topic:     topic,
		Content:   res.Text,
		Model:     res.ModelID,
		CreatedAt: p.clock(),
	}
	if post.ID == "" {
		post.ID = uuid.New().String()
	}
	if err := p.log.SavePost(post); err != nil {
		// The feed is already live; losing the log entry only costs
		// history context.
		p.logger.Warn("recording published post failed", "feed_id", post.ID, "error", err)
	}

	p.logger.Info("published feed", "feed_id", post.ID, "topic", topic, "model", res.ModelID)
	return post, nil
}

func (p *Poster) pickTopic() string {
	if len(p.topics) == 0 {
		return "日常"
	}
	return p.topics[rand.Intn(len(p.topics))]
}

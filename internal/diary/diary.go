// Package diary generates the daily diary entry from the day's planned
// activities and recent posts, stores it, and optionally publishes it as a
// feed.
package diary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/internetsb/maizone/internal/llm"
	"github.com/internetsb/maizone/internal/storage"
)

// Generator produces the diary text. Implemented by llm.Client.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts llm.Options) (llm.Result, error)
}

// ActivitySource lists what the bot did on a date. Implemented by
// schedule.PlanningDB.
type ActivitySource interface {
	ActivitiesOn(ctx context.Context, date string) ([]string, error)
}

// EntryStore persists diary entries. Implemented by storage.Store.
type EntryStore interface {
	SaveDiaryEntry(e storage.DiaryEntry) error
	GetDiaryEntry(date string) (storage.DiaryEntry, error)
	MarkDiaryPublished(date string) error
	RecentPosts(limit int) ([]storage.Post, error)
}

// Publisher posts the diary as a feed. Implemented by qzone.Client.
type Publisher interface {
	Publish(ctx context.Context, content string) (string, error)
}

// PersonaSource provides the persona summary for prompt injection.
type PersonaSource interface {
	Summary() (string, error)
}

// PromptBuilder builds the diary prompt.
type PromptBuilder interface {
	Diary(personaSummary, date string, activities []string, history []storage.Post, words int) string
}

// Config holds the diary knobs.
type Config struct {
	Words      int  // target length, runes
	MinSources int  // minimum activities+posts before writing, non-positive disables
	Publish    bool // also post the diary as a feed
}

// Service generates and records diary entries.
type Service struct {
	generator  Generator
	activities ActivitySource
	store      EntryStore
	publisher  Publisher
	persona    PersonaSource
	prompts    PromptBuilder
	cfg        Config

	clock  func() time.Time
	logger *slog.Logger
}

// New creates a Service.
func New(generator Generator, activities ActivitySource, store EntryStore, publisher Publisher, persona PersonaSource, prompts PromptBuilder, cfg Config) *Service {
	return &Service{
		generator:  generator,
		activities: activities,
		store:      store,
		publisher:  publisher,
		persona:    persona,
		prompts:    prompts,
		cfg:        cfg,
		clock:      time.Now,
		logger:     slog.Default(),
	}
}

// GenerateAndPublish writes the diary for date ("2006-01-02"), replacing any
// existing entry for that date. Publishing is best-effort: a saved entry
// with a failed publish keeps Published=false and the error surfaces.
func (s *Service) GenerateAndPublish(ctx context.Context, date string) error {
	activities, err := s.activities.ActivitiesOn(ctx, date)
	if err != nil {
		s.logger.Warn("loading day activities failed, writing diary without them", "date", date, "error", err)
		activities = nil
	}

	history, err := s.store.RecentPosts(5)
	if err != nil {
		s.logger.Warn("loading post history failed", "error", err)
		history = nil
	}

	if s.cfg.MinSources > 0 && len(activities)+len(history) < s.cfg.MinSources {
		return fmt.Errorf("not enough material for %s: %d sources, need %d",
			date, len(activities)+len(history), s.cfg.MinSources)
	}

	summary, err := s.persona.Summary()
	if err != nil {
		s.logger.Warn("loading persona failed", "error", err)
		summary = ""
	}

	res, err := s.generator.Generate(ctx, s.prompts.Diary(summary, date, activities, history, s.cfg.Words), llm.Options{
		Temperature: 0.8,
		MaxTokens:   1024,
	})
	if err != nil {
		return fmt.Errorf("generating diary for %s: %w", date, err)
	}
	if res.Text == "" {
		return errors.New("model returned empty diary content")
	}

	entry := storage.DiaryEntry{
		ID:        uuid.New().String(),
		Date:      date,
		Content:   res.Text,
		WordCount: utf8.RuneCountInString(res.Text),
		CreatedAt: s.clock(),
	}
	if err := s.store.SaveDiaryEntry(entry); err != nil {
		return fmt.Errorf("saving diary for %s: %w", date, err)
	}

	if !s.cfg.Publish {
		return nil
	}
	if _, err := s.publisher.Publish(ctx, res.Text); err != nil {
		return fmt.Errorf("publishing diary for %s: %w", date, err)
	}
	if err := s.store.MarkDiaryPublished(date); err != nil {
		s.logger.Error("marking diary published failed", "date", date, "error", err)
	}
	return nil
}

// Entry returns the stored diary for a date.
func (s *Service) Entry(date string) (storage.DiaryEntry, error) {
	return s.store.GetDiaryEntry(date)
}

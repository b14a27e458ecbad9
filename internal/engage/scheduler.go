package engage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/internetsb/maizone/internal/schedule"
	"github.com/internetsb/maizone/internal/storage"
)

// PostAction publishes one generated feed. Implemented by Poster.
type PostAction interface {
	PublishOnce(ctx context.Context, topic string) (storage.Post, error)
}

// BrowseAction runs one reconciliation pass over recent feeds.
// Implemented by reconcile.Reconciler.
type BrowseAction interface {
	ReconcileOnce(ctx context.Context) error
}

// DiaryAction generates (and optionally publishes) the diary for a date.
// Implemented by diary.Service.
type DiaryAction interface {
	GenerateAndPublish(ctx context.Context, date string) error
}

const (
	defaultCheckInterval = 5 * time.Minute
	maxBackoffFactor     = 5
)

// Scheduler is the main loop: every check interval it consults the planning
// data and the gate, then runs whichever actions are admitted. Posting is
// always attempted before browsing, and a failure in one action never stops
// the other.
type Scheduler struct {
	gate       *Gate
	cooldowns  *CooldownTracker
	activities schedule.Provider
	poster     PostAction
	browser    BrowseAction
	diary      DiaryAction

	interval time.Duration
	diaryAt  string // "HH:MM", empty disables the diary trigger
	clock    func() time.Time
	logger   *slog.Logger

	lastDiaryDate string
	failures      int
}

// NewScheduler creates a Scheduler. A non-positive interval defaults to 5m.
func NewScheduler(gate *Gate, cooldowns *CooldownTracker, activities schedule.Provider, poster PostAction, browser BrowseAction, diary DiaryAction, interval time.Duration, diaryAt string) *Scheduler {
	if interval <= 0 {
		interval = defaultCheckInterval
	}
	return &Scheduler{
		gate:       gate,
		cooldowns:  cooldowns,
		activities: activities,
		poster:     poster,
		browser:    browser,
		diary:      diary,
		interval:   interval,
		diaryAt:    diaryAt,
		clock:      time.Now,
		logger:     slog.Default(),
	}
}

// Run executes cycles until ctx is cancelled. Each cycle begins with the
// interval sleep (the only cancellation point); after a failed cycle the wait
// grows by the consecutive-failure count, capped at 5x the interval.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		factor := s.failures + 1
		if factor > maxBackoffFactor {
			factor = maxBackoffFactor
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.interval * time.Duration(factor)):
		}

		if err := s.RunOnce(ctx); err != nil {
			s.failures++
			s.logger.Error("cycle failed", "consecutive", s.failures, "error", err)
		} else {
			s.failures = 0
		}
	}
}

// RunOnce executes a single cycle: activity lookup, the gated post and
// browse actions, then the once-per-day diary trigger. A cycle with no
// planning data is a no-op, not an error.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	activity, err := s.activities.CurrentActivity(ctx)
	if err != nil {
		s.logger.Warn("reading planning data failed, skipping cycle", "error", err)
		return nil
	}
	if activity == nil {
		s.logger.Debug("no planning data, skipping cycle")
		return nil
	}

	var firstErr error

	if ok, reason := s.gate.Allow(ctx, ActionPost, activity); ok {
		err := dispatch("post", func() error {
			_, err := s.poster.PublishOnce(ctx, "")
			return err
		})
		if err != nil {
			s.logger.Error("post action failed", "error", err)
			firstErr = fmt.Errorf("post: %w", err)
		} else {
			s.cooldowns.RecordSuccess(ActionPost)
		}
	} else {
		s.logger.Debug("post not admitted", "reason", reason)
	}

	if ok, reason := s.gate.Allow(ctx, ActionBrowse, activity); ok {
		err := dispatch("browse", func() error {
			return s.browser.ReconcileOnce(ctx)
		})
		if err != nil {
			s.logger.Error("browse action failed", "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("browse: %w", err)
			}
		} else {
			s.cooldowns.RecordSuccess(ActionBrowse)
		}
	} else {
		s.logger.Debug("browse not admitted", "reason", reason)
	}

	s.maybeDiary(ctx, s.clock())

	return firstErr
}

// dispatch runs one action handler, converting a panic into an error so a
// handler bug becomes a failed cycle instead of taking down the loop.
func dispatch(name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s action panicked: %v", name, r)
		}
	}()
	return fn()
}

// maybeDiary fires the diary action when the clock reads exactly the
// configured minute. The per-date latch is set on trigger, not on success:
// a failed generation is not retried until the next day.
func (s *Scheduler) maybeDiary(ctx context.Context, now time.Time) {
	if s.diary == nil || s.diaryAt == "" {
		return
	}
	if now.Format("15:04") != s.diaryAt {
		return
	}
	today := now.Format("2006-01-02")
	if s.lastDiaryDate == today {
		return
	}
	s.lastDiaryDate = today

	err := dispatch("diary", func() error {
		return s.diary.GenerateAndPublish(ctx, today)
	})
	if err != nil {
		s.logger.Error("diary generation failed", "date", today, "error", err)
		return
	}
	s.logger.Info("diary generated", "date", today)
}

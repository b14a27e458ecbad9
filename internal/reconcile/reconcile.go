// Package reconcile implements the browse pass: it pulls recent feeds from
// the gateway, filters them by owner policy, replies to unseen comments on
// the bot's own feeds, and comments/likes other people's feeds exactly once,
// tracking both through bounded persisted dedup stores.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/internetsb/maizone/internal/dedup"
	"github.com/internetsb/maizone/internal/llm"
	"github.com/internetsb/maizone/internal/qzone"
	"github.com/internetsb/maizone/internal/silence"
)

// FeedAPI is the remote feed surface the reconciler drives.
// Implemented by qzone.Client.
type FeedAPI interface {
	ListRecent(ctx context.Context, count int) ([]qzone.Feed, error)
	Like(ctx context.Context, feedID, ownerID string) error
	CommentFeed(ctx context.Context, feedID, ownerID, content string) error
	Reply(ctx context.Context, feedID, ownerID, ownerName, content, commentID string) error
}

// Generator produces comment and reply text. Implemented by llm.Client.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts llm.Options) (llm.Result, error)
}

// PersonaSource provides the persona summary for prompt injection.
type PersonaSource interface {
	Summary() (string, error)
}

// PromptBuilder builds comment and reply prompts.
type PromptBuilder interface {
	Comment(personaSummary string, feed qzone.Feed) string
	Reply(personaSummary string, feed qzone.Feed, c qzone.Comment) string
}

// ListMode selects how the owner list is interpreted.
type ListMode string

const (
	Whitelist ListMode = "whitelist"
	Blacklist ListMode = "blacklist"
)

// Policy filters feeds by owner. An empty whitelist admits nothing; an empty
// blacklist admits everything.
type Policy struct {
	Mode   ListMode
	Owners map[string]struct{}
}

// NewPolicy builds a Policy from a flat owner list.
func NewPolicy(mode ListMode, owners []string) Policy {
	set := make(map[string]struct{}, len(owners))
	for _, o := range owners {
		set[o] = struct{}{}
	}
	return Policy{Mode: mode, Owners: set}
}

// Admits reports whether a feed owned by ownerID should be processed.
func (p Policy) Admits(ownerID string) bool {
	_, listed := p.Owners[ownerID]
	if p.Mode == Whitelist {
		return listed
	}
	return !listed
}

// Config holds the knobs for one reconciliation pass.
type Config struct {
	SelfID             string
	FetchCount         int
	AutoReply          bool
	CommentProbability float64
	LikeProbability    float64
	CommentDuringSilent bool
	LikeDuringSilent    bool
	PacingMin          time.Duration
	PacingMax          time.Duration
}

// Reconciler runs browse passes. It owns both dedup stores: handled tracks
// other-owned feeds already seen, replied tracks which comments on the bot's
// own feeds were answered.
type Reconciler struct {
	feeds     FeedAPI
	generator Generator
	prompts   PromptBuilder
	persona   PersonaSource
	handled   *dedup.Store
	replied   *dedup.Store
	windows   silence.Windows
	policy    Policy
	cfg       Config

	clock  func() time.Time
	draw   func() float64
	sleep  func(ctx context.Context, d time.Duration)
	logger *slog.Logger
}

// New creates a Reconciler. FetchCount defaults to 20 when non-positive.
func New(feeds FeedAPI, generator Generator, prompts PromptBuilder, persona PersonaSource, handled, replied *dedup.Store, windows silence.Windows, policy Policy, cfg Config) *Reconciler {
	if cfg.FetchCount <= 0 {
		cfg.FetchCount = 20
	}
	return &Reconciler{
		feeds:     feeds,
		generator: generator,
		prompts:   prompts,
		persona:   persona,
		handled:   handled,
		replied:   replied,
		windows:   windows,
		policy:    policy,
		cfg:       cfg,
		clock:     time.Now,
		draw:      rand.Float64,
		sleep:     sleepCtx,
		logger:    slog.Default(),
	}
}

// ReconcileOnce fetches recent feeds and reconciles them.
func (r *Reconciler) ReconcileOnce(ctx context.Context) error {
	feeds, err := r.feeds.ListRecent(ctx, r.cfg.FetchCount)
	if err != nil {
		return fmt.Errorf("listing recent feeds: %w", err)
	}
	return r.Reconcile(ctx, feeds)
}

// Reconcile processes feeds strictly in the given order. A failure on an
// other-owned feed aborts the pass; progress already persisted is kept.
func (r *Reconciler) Reconcile(ctx context.Context, feeds []qzone.Feed) error {
	summary, err := r.persona.Summary()
	if err != nil {
		r.logger.Warn("loading persona failed, proceeding without it", "error", err)
		summary = ""
	}

	for _, feed := range feeds {
		r.pace(ctx)

		if !r.policy.Admits(feed.OwnerID) {
			r.logger.Debug("owner filtered by policy", "feed_id", feed.ID, "owner", feed.OwnerID)
			continue
		}

		if feed.OwnerID == r.cfg.SelfID {
			r.reconcileOwn(ctx, summary, feed)
			continue
		}

		if err := r.reconcileOther(ctx, summary, feed); err != nil {
			return fmt.Errorf("feed %s: %w", feed.ID, err)
		}
	}
	return nil
}

// reconcileOwn replies to comments on the bot's own feed that were not
// written by the bot and not answered yet. Each reply fails independently:
// a failed one is retried on the next pass, later ones still run.
func (r *Reconciler) reconcileOwn(ctx context.Context, summary string, feed qzone.Feed) {
	if !r.cfg.AutoReply {
		return
	}

	for _, c := range feed.Comments {
		if c.AuthorID == r.cfg.SelfID || r.replied.HasSub(feed.ID, c.ID) {
			continue
		}

		res, err := r.generator.Generate(ctx, r.prompts.Reply(summary, feed, c), llm.Options{
			Temperature: 0.8,
			MaxTokens:   256,
		})
		if err != nil || res.Text == "" {
			r.logger.Warn("reply generation failed", "feed_id", feed.ID, "comment_id", c.ID, "error", err)
			continue
		}

		if err := r.feeds.Reply(ctx, feed.ID, feed.OwnerID, feed.OwnerName, res.Text, c.ID); err != nil {
			r.logger.Warn("sending reply failed", "feed_id", feed.ID, "comment_id", c.ID, "error", err)
			continue
		}

		// Persist after every reply so a crash mid-feed never redoes
		// earlier replies.
		if err := r.replied.AppendSub(feed.ID, c.ID); err != nil {
			r.logger.Error("persisting reply record failed", "feed_id", feed.ID, "error", err)
		}
		r.logger.Info("replied to comment", "feed_id", feed.ID, "comment_id", c.ID, "author", c.AuthorName)
	}
}

// reconcileOther comments and likes an unseen feed, then marks it handled.
// The mark happens even when probability or silent hours suppressed both
// actions: one look at a feed is final. Remote failures abort the caller's
// pass since they usually mean the session is broken for every later feed
// too; the failed feed stays unmarked and is retried next pass.
func (r *Reconciler) reconcileOther(ctx context.Context, summary string, feed qzone.Feed) error {
	if r.handled.Contains(feed.ID) {
		return nil
	}

	_, allowLike, allowComment := r.windows.Permissions(r.clock(), r.cfg.LikeDuringSilent, r.cfg.CommentDuringSilent)

	if allowComment && r.draw() <= r.cfg.CommentProbability {
		res, err := r.generator.Generate(ctx, r.prompts.Comment(summary, feed), llm.Options{
			Temperature: 0.8,
			MaxTokens:   256,
		})
		if err != nil {
			return fmt.Errorf("generating comment: %w", err)
		}
		if res.Text != "" {
			if err := r.feeds.CommentFeed(ctx, feed.ID, feed.OwnerID, res.Text); err != nil {
				return fmt.Errorf("commenting: %w", err)
			}
			r.logger.Info("commented on feed", "feed_id", feed.ID, "owner", feed.OwnerName)
		}
	}

	if allowLike && r.draw() <= r.cfg.LikeProbability {
		if err := r.feeds.Like(ctx, feed.ID, feed.OwnerID); err != nil {
			return fmt.Errorf("liking: %w", err)
		}
		r.logger.Info("liked feed", "feed_id", feed.ID, "owner", feed.OwnerName)
	}

	if err := r.handled.MarkHandled(feed.ID); err != nil {
		r.logger.Error("persisting handled record failed", "feed_id", feed.ID, "error", err)
	}
	return nil
}

// pace sleeps a random duration in [PacingMin, PacingMax] between feeds to
// avoid hammering the gateway. Zero PacingMax disables pacing.
func (r *Reconciler) pace(ctx context.Context) {
	if r.cfg.PacingMax <= 0 {
		return
	}
	d := r.cfg.PacingMin
	if spread := r.cfg.PacingMax - r.cfg.PacingMin; spread > 0 {
		d += time.Duration(r.draw() * float64(spread))
	}
	r.sleep(ctx, d)
}

func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

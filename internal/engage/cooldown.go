// Package engage decides when the bot acts on its feed: a cooldown tracker
// spacing out actions, a gate that asks the model whether now is a good
// moment, and a scheduler loop driving both.
package engage

import (
	"sync"
	"time"
)

// Action is a gated activity kind.
type Action string

const (
	ActionPost   Action = "post"
	ActionBrowse Action = "browse"
)

const (
	defaultPostCooldown   = 120 * time.Minute
	defaultBrowseCooldown = 40 * time.Minute
)

// CooldownTracker enforces a minimum interval between successful actions of
// each kind. State is in-memory only: a restart clears all cooldowns.
type CooldownTracker struct {
	mu        sync.Mutex
	clock     func() time.Time
	intervals map[Action]time.Duration
	last      map[Action]time.Time
}

// NewCooldownTracker creates a tracker. Non-positive intervals fall back to
// the defaults (post 120m, browse 40m).
func NewCooldownTracker(post, browse time.Duration) *CooldownTracker {
	if post <= 0 {
		post = defaultPostCooldown
	}
	if browse <= 0 {
		browse = defaultBrowseCooldown
	}
	return &CooldownTracker{
		clock: time.Now,
		intervals: map[Action]time.Duration{
			ActionPost:   post,
			ActionBrowse: browse,
		},
		last: make(map[Action]time.Time),
	}
}

// Ready reports whether the action's cooldown has elapsed. Actions that have
// never succeeded are always ready.
func (t *CooldownTracker) Ready(a Action) bool {
	return t.Remaining(a) == 0
}

// Remaining returns how long until the action is ready again, zero if ready.
func (t *CooldownTracker) Remaining(a Action) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	last, ok := t.last[a]
	if !ok {
		return 0
	}
	elapsed := t.clock().Sub(last)
	if remaining := t.intervals[a] - elapsed; remaining > 0 {
		return remaining
	}
	return 0
}

// RecordSuccess restarts the action's cooldown. Callers must only invoke it
// after the action actually succeeded; failures leave the action ready for
// the next cycle.
func (t *CooldownTracker) RecordSuccess(a Action) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last[a] = t.clock()
}

package engage

import (
	"context"
	"log/slog"
	"strings"

	"github.com/internetsb/maizone/internal/llm"
	"github.com/internetsb/maizone/internal/prompt"
	"github.com/internetsb/maizone/internal/schedule"
)

// Oracle answers the "is now a good moment" question.
// Implemented by llm.Client.
type Oracle interface {
	Generate(ctx context.Context, prompt string, opts llm.Options) (llm.Result, error)
}

var actionLabels = map[Action]string{
	ActionPost:   "发一条说说",
	ActionBrowse: "浏览空间动态并互动",
}

// Gate decides whether an action may run right now. Checks are ordered from
// cheapest to most expensive: sleeping, cooldown, then the model. Any doubt
// resolves to "no"; a missed action just waits for the next cycle.
type Gate struct {
	oracle    Oracle
	prompts   *prompt.Builder
	cooldowns *CooldownTracker
	logger    *slog.Logger

	affirmative string
	negatives   []string
}

// NewGate creates a Gate. Empty verdict tokens default to "是" and
// ["否", "不"].
func NewGate(oracle Oracle, prompts *prompt.Builder, cooldowns *CooldownTracker, affirmative string, negatives []string) *Gate {
	if affirmative == "" {
		affirmative = "是"
	}
	if len(negatives) == 0 {
		negatives = []string{"否", "不"}
	}
	return &Gate{
		oracle:      oracle,
		prompts:     prompts,
		cooldowns:   cooldowns,
		logger:      slog.Default(),
		affirmative: affirmative,
		negatives:   negatives,
	}
}

// Allow reports whether the action may run now, with a reason for the denial
// when it may not. A nil activity means the planning data is unavailable;
// the sleep check is skipped and the model is asked with a generic activity.
func (g *Gate) Allow(ctx context.Context, action Action, activity *schedule.Activity) (bool, string) {
	if activity != nil && activity.Category == schedule.Sleeping {
		return false, "sleeping"
	}

	if remaining := g.cooldowns.Remaining(action); remaining > 0 {
		return false, "cooldown (" + remaining.Round(1e9).String() + " left)"
	}

	description := "日常活动"
	if activity != nil && activity.Description != "" {
		description = activity.Description
	}

	res, err := g.oracle.Generate(ctx, g.prompts.Decide(description, actionLabels[action]), llm.Options{
		Temperature: 0.2,
		MaxTokens:   64,
	})
	if err != nil {
		g.logger.Warn("decision query failed, skipping action", "action", action, "error", err)
		return false, "oracle unavailable"
	}

	if !parseVerdict(res.Text, g.affirmative, g.negatives) {
		return false, "declined: " + res.Text
	}
	return true, ""
}

// parseVerdict admits only an unambiguous yes: the answer must contain the
// affirmative token and none of the negative tokens anywhere. An answer
// carrying both ("是的，但是不想") resolves to no.
func parseVerdict(answer, affirmative string, negatives []string) bool {
	if !strings.Contains(answer, affirmative) {
		return false
	}
	for _, n := range negatives {
		if strings.Contains(answer, n) {
			return false
		}
	}
	return true
}

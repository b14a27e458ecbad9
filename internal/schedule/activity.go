// Package schedule supplies the bot's current activity, read from the
// autonomous-planning database. The engagement core consumes only the
// enumerated category plus the free-text description; all classification
// happens here, at the provider boundary.
package schedule

import (
	"context"
	"strings"
	"time"
)

// Category is an enumerated activity kind.
type Category string

const (
	Sleeping    Category = "sleeping"
	WakingUp    Category = "waking_up"
	Eating      Category = "eating"
	Working     Category = "working"
	Studying    Category = "studying"
	Exercising  Category = "exercising"
	Relaxing    Category = "relaxing"
	Socializing Category = "socializing"
	Commuting   Category = "commuting"
	Hobby       Category = "hobby"
	SelfCare    Category = "self_care"
	Other       Category = "other"
)

// Activity describes what the bot is currently doing according to its plan.
type Activity struct {
	Category    Category
	Description string
	ObservedAt  time.Time
}

// Provider yields the current activity. A nil Activity with nil error means
// no activity data is available, which is not a failure.
type Provider interface {
	CurrentActivity(ctx context.Context) (*Activity, error)
}

// keyword → category, checked against goal type and description combined.
// Order matters only in that the first match wins.
var categoryKeywords = []struct {
	keyword  string
	category Category
}{
	{"work", Working},
	{"study", Studying},
	{"exercise", Exercising},
	{"eat", Eating},
	{"meal", Eating},
	{"rest", Relaxing},
	{"relax", Relaxing},
	{"social", Socializing},
	{"hobby", Hobby},
	{"sleep", Sleeping},
	{"self_care", SelfCare},
	{"commut", Commuting},
	{"工作", Working},
	{"办公", Working},
	{"会议", Working},
	{"学习", Studying},
	{"阅读", Studying},
	{"读书", Studying},
	{"看书", Studying},
	{"研究", Studying},
	{"运动", Exercising},
	{"锻炼", Exercising},
	{"健身", Exercising},
	{"散步", Exercising},
	{"吃", Eating},
	{"餐", Eating},
	{"料理", Eating},
	{"烹饪", Eating},
	{"休息", Relaxing},
	{"放松", Relaxing},
	{"聊天", Socializing},
	{"交流", Socializing},
	{"社交", Socializing},
	{"睡", Sleeping},
	{"入眠", Sleeping},
	{"午休", Sleeping},
	{"小憩", Sleeping},
	{"梳妆", SelfCare},
	{"打扮", SelfCare},
	{"化妆", SelfCare},
	{"护肤", SelfCare},
	{"通勤", Commuting},
	{"赶路", Commuting},
	{"出行", Commuting},
	{"起床", WakingUp},
	{"醒", WakingUp},
}

// Classify maps a goal type and description to a Category.
func Classify(goalType, description string) Category {
	combined := strings.ToLower(goalType + " " + description)
	for _, kw := range categoryKeywords {
		if strings.Contains(combined, kw.keyword) {
			return kw.category
		}
	}
	return Other
}

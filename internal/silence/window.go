// Package silence evaluates "silent hours" — configured time-of-day windows
// during which the bot keeps a low profile in the zone.
package silence

import (
	"strconv"
	"strings"
	"time"
)

// Window is a single clock-time interval in minutes of the day.
// End < Start denotes a window that wraps past midnight (23:00-07:00).
type Window struct {
	Start int
	End   int
}

// Windows is an ordered set of silent windows.
type Windows []Window

// Parse builds a Windows set from a spec like "23:00-07:00,12:00-14:00".
// Malformed entries are skipped individually; a typo in one range must not
// disable the whole feature. An empty spec matches nothing.
func Parse(spec string) Windows {
	var ws Windows
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		startStr, endStr, ok := strings.Cut(part, "-")
		if !ok {
			continue
		}
		start, okS := parseMinutes(startStr)
		end, okE := parseMinutes(endStr)
		if !okS || !okE {
			continue
		}
		ws = append(ws, Window{Start: start, End: end})
	}
	return ws
}

// parseMinutes converts "HH:MM" to minutes of the day. Hours outside 0-23 or
// minutes outside 0-59 are rejected.
func parseMinutes(s string) (int, bool) {
	hourStr, minStr, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, false
	}
	hour, err := strconv.Atoi(strings.TrimSpace(hourStr))
	if err != nil {
		return 0, false
	}
	minute, err := strconv.Atoi(strings.TrimSpace(minStr))
	if err != nil {
		return 0, false
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, false
	}
	return hour*60 + minute, true
}

// Contains reports whether the given minute of the day falls inside any
// window. Bounds are inclusive on both ends.
func (ws Windows) Contains(nowMinutes int) bool {
	for _, w := range ws {
		if w.End >= w.Start {
			if nowMinutes >= w.Start && nowMinutes <= w.End {
				return true
			}
		} else {
			// Overnight wrap.
			if nowMinutes >= w.Start || nowMinutes <= w.End {
				return true
			}
		}
	}
	return false
}

// ContainsTime is Contains for a wall-clock time.
func (ws Windows) ContainsTime(t time.Time) bool {
	return ws.Contains(t.Hour()*60 + t.Minute())
}

// Permissions resolves the like/comment permissions for the given time.
// Outside silent hours both are allowed regardless of the configured flags;
// inside, the flags apply verbatim.
func (ws Windows) Permissions(t time.Time, likeDuringSilent, commentDuringSilent bool) (silent, allowLike, allowComment bool) {
	if !ws.ContainsTime(t) {
		return false, true, true
	}
	return true, likeDuringSilent, commentDuringSilent
}

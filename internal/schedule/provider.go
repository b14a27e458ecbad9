package schedule

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// PlanningDB reads the current activity from the autonomous-planning SQLite
// database. The database belongs to another process and may not exist yet;
// that case yields no activity rather than an error.
type PlanningDB struct {
	path   string
	clock  func() time.Time
	logger *slog.Logger

	mu sync.Mutex
	db *sql.DB
}

// NewPlanningDB creates a provider for the planning database at path.
func NewPlanningDB(path string) *PlanningDB {
	return &PlanningDB{
		path:   path,
		clock:  time.Now,
		logger: slog.Default(),
	}
}

// Close closes the underlying connection if one was opened.
func (p *PlanningDB) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	return err
}

func (p *PlanningDB) openLocked() (*sql.DB, error) {
	if p.db != nil {
		return p.db, nil
	}
	if _, err := os.Stat(p.path); os.IsNotExist(err) {
		return nil, nil
	}
	db, err := sql.Open("sqlite", p.path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("opening planning database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging planning database: %w", err)
	}
	db.SetMaxOpenConns(1)
	p.db = db
	return db, nil
}

type goalRow struct {
	name        sql.NullString
	description sql.NullString
	goalType    sql.NullString
	parameters  sql.NullString
}

// CurrentActivity returns the activity matching the current time among
// today's active goals. Goals carry an optional time window in their
// parameters JSON; the first window that contains the current minute wins,
// and with no window match the newest goal is returned.
func (p *PlanningDB) CurrentActivity(ctx context.Context) (*Activity, error) {
	p.mu.Lock()
	db, err := p.openLocked()
	p.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if db == nil {
		return nil, nil
	}

	now := p.clock()
	today := now.Format("2006-01-02")
	currentMinutes := now.Hour()*60 + now.Minute()

	rows, err := db.QueryContext(ctx, `
		SELECT name, description, goal_type, parameters FROM goals
		WHERE status = 'active' AND substr(created_at, 1, 10) = ?
		ORDER BY created_at DESC
		LIMIT 20`, today)
	if err != nil {
		return nil, fmt.Errorf("querying goals: %w", err)
	}
	defer rows.Close()

	var goals []goalRow
	for rows.Next() {
		var g goalRow
		if err := rows.Scan(&g.name, &g.description, &g.goalType, &g.parameters); err != nil {
			return nil, fmt.Errorf("scanning goal: %w", err)
		}
		goals = append(goals, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading goals: %w", err)
	}
	if len(goals) == 0 {
		return nil, nil
	}

	for _, g := range goals {
		start, end, ok := extractTimeWindow(g.parameters.String)
		if !ok {
			continue
		}
		if minutesInRange(currentMinutes, start, end) {
			return p.toActivity(g, now), nil
		}
	}
	return p.toActivity(goals[0], now), nil
}

// ActivitiesOn returns the descriptions of all goals recorded for a date
// ("2006-01-02"), oldest first. Used as diary source material. A missing
// database yields an empty list.
func (p *PlanningDB) ActivitiesOn(ctx context.Context, date string) ([]string, error) {
	p.mu.Lock()
	db, err := p.openLocked()
	p.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if db == nil {
		return nil, nil
	}

	rows, err := db.QueryContext(ctx, `
		SELECT name, description FROM goals
		WHERE substr(created_at, 1, 10) = ?
		ORDER BY created_at ASC`, date)
	if err != nil {
		return nil, fmt.Errorf("querying goals for %s: %w", date, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name, description sql.NullString
		if err := rows.Scan(&name, &description); err != nil {
			return nil, fmt.Errorf("scanning goal: %w", err)
		}
		text := description.String
		if text == "" {
			text = name.String
		}
		if text != "" {
			out = append(out, text)
		}
	}
	return out, rows.Err()
}

func (p *PlanningDB) toActivity(g goalRow, now time.Time) *Activity {
	description := g.description.String
	if description == "" {
		description = g.name.String
	}
	if description == "" {
		description = "日常活动"
	}
	return &Activity{
		Category:    Classify(g.goalType.String, description),
		Description: description,
		ObservedAt:  now,
	}
}

// extractTimeWindow pulls a [startMinute, endMinute] pair out of the goal's
// parameters JSON. Malformed parameters are ignored.
func extractTimeWindow(parameters string) (start, end int, ok bool) {
	if parameters == "" {
		return 0, 0, false
	}
	var params struct {
		TimeWindow []int `json:"time_window"`
	}
	if err := json.Unmarshal([]byte(parameters), &params); err != nil {
		return 0, 0, false
	}
	if len(params.TimeWindow) != 2 {
		return 0, 0, false
	}
	return params.TimeWindow[0], params.TimeWindow[1], true
}

// minutesInRange handles windows that wrap past midnight (end < start).
func minutesInRange(current, start, end int) bool {
	if end < start {
		return current >= start || current <= end
	}
	return current >= start && current <= end
}

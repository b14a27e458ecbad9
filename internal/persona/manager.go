package persona

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// PersonaStore defines the storage operations the Manager needs.
// Implemented by storage.Store.
type PersonaStore interface {
	SetPersonaKey(key, value string) error
	GetPersonaKey(key string) (string, error)
	GetAllPersonaKeys() (map[string]string, error)
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Manager caches the assembled persona so the scheduler can read it on every
// cycle without hitting the database each time.
type Manager struct {
	store PersonaStore
	clock Clock
	ttl   time.Duration

	mu       sync.RWMutex
	cached   *Persona
	cachedAt time.Time
}

// NewManager creates a Manager with a 60-second cache TTL.
func NewManager(store PersonaStore) *Manager {
	return &Manager{
		store: store,
		clock: realClock{},
		ttl:   60 * time.Second,
	}
}

// NewManagerWithClock creates a Manager with a custom clock (for testing).
func NewManagerWithClock(store PersonaStore, clock Clock, ttl time.Duration) *Manager {
	return &Manager{
		store: store,
		clock: clock,
		ttl:   ttl,
	}
}

// Get reads all persona keys from storage (or cache) and assembles a
// structured Persona. Returns a zero-value Persona on an empty store.
func (m *Manager) Get() (Persona, error) {
	m.mu.RLock()
	if m.cached != nil && m.clock.Now().Before(m.cachedAt.Add(m.ttl)) {
		p := deepCopy(m.cached)
		m.mu.RUnlock()
		return p, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock.
	if m.cached != nil && m.clock.Now().Before(m.cachedAt.Add(m.ttl)) {
		return deepCopy(m.cached), nil
	}

	keys, err := m.store.GetAllPersonaKeys()
	if err != nil {
		return Persona{}, fmt.Errorf("loading persona keys: %w", err)
	}

	p := build(keys)
	m.cached = &p
	m.cachedAt = m.clock.Now()
	return deepCopy(&p), nil
}

// SetField persists a persona key and invalidates the cache. Non-string
// values are stored as JSON.
func (m *Manager) SetField(key string, value interface{}) error {
	var str string
	switch v := value.(type) {
	case string:
		str = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshalling value for key %q: %w", key, err)
		}
		str = string(b)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.SetPersonaKey(key, str); err != nil {
		return fmt.Errorf("setting persona key %q: %w", key, err)
	}

	m.cached = nil
	return nil
}

// Summary returns a compact description of the persona for prompt injection.
func (m *Manager) Summary() (string, error) {
	p, err := m.Get()
	if err != nil {
		return "", fmt.Errorf("getting persona for summary: %w", err)
	}
	return summarize(p), nil
}

func summarize(p Persona) string {
	var parts []string

	if p.Personality != "" {
		parts = append(parts, "你"+p.Personality+"。")
	}
	if p.ReplyStyle != "" {
		parts = append(parts, "回复风格："+p.ReplyStyle+"。")
	}
	if p.PostStyle != "" {
		parts = append(parts, "说说风格："+p.PostStyle+"。")
	}
	if len(p.Interests) > 0 {
		parts = append(parts, "兴趣："+strings.Join(p.Interests, "、")+"。")
	}
	if len(p.Taboos) > 0 {
		parts = append(parts, "绝不谈论："+strings.Join(p.Taboos, "、")+"。")
	}

	if len(parts) == 0 {
		return "你是一个普通的QQ空间用户。"
	}
	return strings.Join(parts, "")
}

func deepCopy(p *Persona) Persona {
	if p == nil {
		return Persona{}
	}
	cp := *p
	if p.Interests != nil {
		cp.Interests = make([]string, len(p.Interests))
		copy(cp.Interests, p.Interests)
	}
	if p.Taboos != nil {
		cp.Taboos = make([]string, len(p.Taboos))
		copy(cp.Taboos, p.Taboos)
	}
	return cp
}

// build assembles a Persona from flat key-value pairs. List values are
// stored as JSON arrays.
func build(keys map[string]string) Persona {
	var p Persona

	if v, ok := keys["personality"]; ok {
		p.Personality = v
	}
	if v, ok := keys["reply_style"]; ok {
		p.ReplyStyle = v
	}
	if v, ok := keys["post_style"]; ok {
		p.PostStyle = v
	}
	unmarshalKey(keys, "interests", &p.Interests)
	unmarshalKey(keys, "taboos", &p.Taboos)

	return p
}

// unmarshalKey unmarshals a JSON value from keys into target, logging a
// warning if the value is present but malformed.
func unmarshalKey(keys map[string]string, key string, target interface{}) {
	v, ok := keys[key]
	if !ok {
		return
	}
	if err := json.Unmarshal([]byte(v), target); err != nil {
		slog.Warn("malformed persona key, skipping", "key", key, "error", err)
	}
}

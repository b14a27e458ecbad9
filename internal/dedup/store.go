// Package dedup persists which feed items and comments the bot has already
// acted on, so remote side effects are never repeated across restarts.
//
// A Store is a size-bounded associative container mapping an item ID to the
// ordered list of sub-item IDs already processed. Insertion order of item keys
// is preserved both in memory and in the JSON document on disk, and eviction
// is strictly FIFO: when the capacity is exceeded the oldest inserted item is
// dropped wholesale.
package dedup

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

const defaultCapacity = 100

// Store is a bounded, persisted dedup record set. All mutating operations
// run the full mutate→evict→save sequence under one lock so overlapping
// reconciliation passes cannot interleave read-modify-write cycles.
type Store struct {
	mu       sync.Mutex
	path     string
	capacity int
	order    []string
	records  map[string][]string
}

// Open loads the store from path, creating an empty one if the file does not
// exist. A corrupt document is reported but does not prevent opening: the
// store starts empty and the file is rewritten on the next mutation.
func Open(path string, capacity int) (*Store, error) {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	s := &Store{
		path:     path,
		capacity: capacity,
		records:  make(map[string][]string),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading dedup store %s: %w", path, err)
	}

	order, records, err := decodeOrdered(data)
	if err != nil {
		return s, fmt.Errorf("parsing dedup store %s: %w", path, err)
	}
	s.order = order
	s.records = records
	s.evictLocked()
	return s, nil
}

// Capacity returns the maximum number of item records retained.
func (s *Store) Capacity() int { return s.capacity }

// Len returns the number of item records currently held.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// Contains reports whether the item has a record (i.e. has been handled).
func (s *Store) Contains(itemID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.records[itemID]
	return ok
}

// HasSub reports whether the given sub-item of an item has been processed.
func (s *Store) HasSub(itemID, subID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Contains(s.records[itemID], subID)
}

// SubIDs returns a copy of the processed sub-item IDs for an item, in the
// order they were appended.
func (s *Store) SubIDs(itemID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.records[itemID])
}

// MarkHandled records the item with an empty sub-item list (if not already
// present), enforces the capacity bound, and persists.
func (s *Store) MarkHandled(itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertLocked(itemID)
	s.evictLocked()
	return s.saveLocked()
}

// AppendSub appends a processed sub-item ID to the item's record, creating
// the record if needed. Duplicate sub-IDs are ignored. The capacity bound is
// enforced and the document persisted before returning.
func (s *Store) AppendSub(itemID, subID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertLocked(itemID)
	if !slices.Contains(s.records[itemID], subID) {
		s.records[itemID] = append(s.records[itemID], subID)
	}
	s.evictLocked()
	return s.saveLocked()
}

// Record pairs an item ID with its processed sub-item IDs.
type Record struct {
	ItemID string   `json:"item_id"`
	SubIDs []string `json:"sub_ids"`
}

// Snapshot returns all records in insertion order.
func (s *Store) Snapshot() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, Record{ItemID: id, SubIDs: slices.Clone(s.records[id])})
	}
	return out
}

func (s *Store) insertLocked(itemID string) {
	if _, ok := s.records[itemID]; ok {
		return
	}
	s.records[itemID] = nil
	s.order = append(s.order, itemID)
}

func (s *Store) evictLocked() {
	for len(s.order) > s.capacity {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.records, oldest)
	}
}

// saveLocked rewrites the whole document atomically (temp file + rename).
// The in-memory state is already mutated when this runs; a write failure is
// surfaced to the caller but does not roll anything back.
func (s *Store) saveLocked() error {
	data, err := s.encodeLocked()
	if err != nil {
		return fmt.Errorf("encoding dedup store: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating dedup store directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".dedup-*.json")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing dedup store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing dedup store: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing dedup store: %w", err)
	}
	return nil
}

// encodeLocked writes the records as a single JSON object whose keys appear
// in insertion order. encoding/json randomizes map key order, so the object
// is assembled by hand.
func (s *Store) encodeLocked() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("{\n")
	for i, id := range s.order {
		key, err := json.Marshal(id)
		if err != nil {
			return nil, err
		}
		subs := s.records[id]
		if subs == nil {
			subs = []string{}
		}
		val, err := json.Marshal(subs)
		if err != nil {
			return nil, err
		}
		buf.WriteString("  ")
		buf.Write(key)
		buf.WriteString(": ")
		buf.Write(val)
		if i < len(s.order)-1 {
			buf.WriteByte(',')
		}
		buf.WriteByte('\n')
	}
	buf.WriteString("}\n")
	return buf.Bytes(), nil
}

// decodeOrdered parses the JSON object with a token stream so the key order
// written by encodeLocked is recovered — json.Unmarshal into a map would lose
// it and break FIFO eviction across restarts.
func decodeOrdered(data []byte) ([]string, map[string][]string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, fmt.Errorf("expected JSON object, got %v", tok)
	}

	var order []string
	records := make(map[string][]string)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("expected string key, got %v", keyTok)
		}
		var subs []string
		if err := dec.Decode(&subs); err != nil {
			return nil, nil, fmt.Errorf("decoding sub-IDs for %q: %w", key, err)
		}
		if _, dup := records[key]; !dup {
			order = append(order, key)
		}
		records[key] = subs
	}
	return order, records, nil
}

package feed

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/couchcryptid/disaster-alert-service/internal/domain"
)

// Snapshot holds the last-known-good payload per feed. It is seeded from the
// fallback snapshot document and refreshed with successful live payloads.
// It is safe for concurrent use.
type Snapshot struct {
	mu       sync.RWMutex
	payloads map[domain.FeedType]json.RawMessage
}

// NewSnapshot returns an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{payloads: make(map[domain.FeedType]json.RawMessage)}
}

// ParseSnapshot decodes a fallback snapshot document: a JSON object with one
// optional key per feed type. Unknown keys and null values are ignored.
func ParseSnapshot(data []byte) (*Snapshot, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}

	s := NewSnapshot()
	for key, payload := range doc {
		feed := domain.FeedType(key)
		if !feed.Valid() {
			continue
		}
		s.Put(feed, payload)
	}
	return s, nil
}

// LoadSnapshotFile reads and parses a snapshot document from disk.
func LoadSnapshotFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return ParseSnapshot(data)
}

// Get returns the stored payload for feed, if any.
func (s *Snapshot) Get(feed domain.FeedType) (json.RawMessage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	payload, ok := s.payloads[feed]
	return payload, ok
}

// Put stores payload for feed. Empty and null payloads are ignored so a live
// feed that momentarily returns nothing never erases a good snapshot.
func (s *Snapshot) Put(feed domain.FeedType, payload json.RawMessage) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return
	}

	stored := make(json.RawMessage, len(trimmed))
	copy(stored, trimmed)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads[feed] = stored
}

// MarshalJSON encodes the snapshot in the same document shape ParseSnapshot
// reads.
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc := make(map[string]json.RawMessage, len(s.payloads))
	for feed, payload := range s.payloads {
		doc[string(feed)] = payload
	}
	return json.Marshal(doc)
}

package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/couchcryptid/disaster-alert-service/internal/domain"
)

// DefaultHistorySize is the number of keys retained per feed.
const DefaultHistorySize = 10

// SeenState maps each feed to its previously notified keys, newest first.
type SeenState map[domain.FeedType][]string

// SeenStore is a bounded, per-feed history of notified dedup keys. Every
// mutation is written through to the backing KeyValueStore.
type SeenStore struct {
	mu      sync.RWMutex
	state   SeenState
	backend KeyValueStore
	key     string
	limit   int
}

// NewSeenStore creates an empty store persisting under key. A limit below 1
// uses DefaultHistorySize.
func NewSeenStore(backend KeyValueStore, key string, limit int) *SeenStore {
	if limit < 1 {
		limit = DefaultHistorySize
	}
	return &SeenStore{
		state:   make(SeenState),
		backend: backend,
		key:     key,
		limit:   limit,
	}
}

// Has reports whether key was recorded for feed. The empty key is never seen.
func (s *SeenStore) Has(feed domain.FeedType, key string) bool {
	if key == "" {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Contains(s.state[feed], key)
}

// Record prepends key to the feed history, evicting the oldest keys past the
// limit, then persists. Empty and already-present keys are a no-op.
func (s *SeenStore) Record(ctx context.Context, feed domain.FeedType, key string) error {
	if key == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	keys := s.state[feed]
	if slices.Contains(keys, key) {
		return nil
	}
	next := make([]string, 0, min(len(keys)+1, s.limit))
	next = append(next, key)
	next = append(next, keys[:min(len(keys), s.limit-1)]...)
	s.state[feed] = next

	return s.persistLocked(ctx)
}

// Load replaces the in-memory state with the persisted one. A missing key
// yields an empty state and no error. On any other failure the state is left
// empty and the error is returned for logging.
func (s *SeenStore) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = make(SeenState)
	if s.backend == nil {
		return nil
	}

	data, err := s.backend.Load(ctx, s.key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load seen state: %w", err)
	}

	state, err := decodeSeenState(data, s.limit)
	if err != nil {
		return err
	}
	s.state = state
	return nil
}

// Persist writes the current state to the backend.
func (s *SeenStore) Persist(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.persistLocked(ctx)
}

// Snapshot returns a deep copy of the current state.
func (s *SeenStore) Snapshot() SeenState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(SeenState, len(s.state))
	for feed, keys := range s.state {
		out[feed] = slices.Clone(keys)
	}
	return out
}

func (s *SeenStore) persistLocked(ctx context.Context) error {
	if s.backend == nil {
		return nil
	}

	doc := make(map[string]any, len(s.state))
	for feed, keys := range s.state {
		if singletonFeed(feed) {
			doc[string(feed)] = newestOrNil(keys)
			continue
		}
		doc[string(feed)] = keys
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode seen state: %w", err)
	}

	if err := s.backend.Save(ctx, s.key, data); err != nil {
		return fmt.Errorf("persist seen state: %w", err)
	}
	return nil
}

// singletonFeed reports whether the feed carries one current bulletin at a
// time. Its history is persisted as the newest key only.
func singletonFeed(feed domain.FeedType) bool {
	return feed == domain.FeedEEW
}

func newestOrNil(keys []string) any {
	if len(keys) == 0 {
		return nil
	}
	return keys[0]
}

// decodeSeenState accepts, per feed, an array of keys, a single string key
// or null.
func decodeSeenState(data []byte, limit int) (SeenState, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode seen state: %w", err)
	}

	state := make(SeenState, len(doc))
	for name, raw := range doc {
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
			continue
		}

		var keys []string
		if raw[0] == '"' {
			var single string
			if err := json.Unmarshal(raw, &single); err != nil {
				return nil, fmt.Errorf("decode seen state %q: %w", name, err)
			}
			keys = []string{single}
		} else if err := json.Unmarshal(raw, &keys); err != nil {
			return nil, fmt.Errorf("decode seen state %q: %w", name, err)
		}

		keys = slices.DeleteFunc(keys, func(k string) bool { return k == "" })
		keys = dedupe(keys)
		if len(keys) > limit {
			keys = keys[:limit]
		}
		if len(keys) > 0 {
			state[domain.FeedType(name)] = keys
		}
	}
	return state, nil
}

func dedupe(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := keys[:0]
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

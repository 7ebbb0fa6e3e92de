// Package feed fetches raw alert payloads, falling back to a cached snapshot
// when a live endpoint is unreachable.
package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/couchcryptid/disaster-alert-service/internal/domain"
)

// Kind tells callers where a payload came from.
type Kind int

const (
	// Empty means neither the live endpoint nor the snapshot had a payload.
	Empty Kind = iota
	// Live means the payload came from the live endpoint.
	Live
	// Fallback means the live attempt failed and the snapshot was used.
	Fallback
)

func (k Kind) String() string {
	switch k {
	case Live:
		return "live"
	case Fallback:
		return "fallback"
	default:
		return "empty"
	}
}

// Result is the outcome of a fetch. Payload is nil for Empty.
type Result struct {
	Kind    Kind
	Payload json.RawMessage
	// Err is the live failure that caused a Fallback or Empty result, kept for
	// logging only. It is nil for Live results and for fallback-only feeds.
	Err error
}

// Fetcher performs a single GET against a live endpoint.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// SnapshotReader supplies the fallback payload for a feed.
type SnapshotReader interface {
	Get(feed domain.FeedType) (json.RawMessage, bool)
}

// errEmptyBody and errInvalidJSON classify live payloads that arrived but
// cannot be used.
var (
	errEmptyBody   = errors.New("empty response body")
	errInvalidJSON = errors.New("response is not valid JSON")
)

// Source fetches each feed from its live endpoint, degrading to the snapshot.
// Feeds without an endpoint are fallback-only.
type Source struct {
	fetcher   Fetcher
	endpoints map[domain.FeedType]string
	snapshot  SnapshotReader
	timeout   time.Duration
	logger    *slog.Logger
}

// NewSource creates a Source. A zero timeout disables the per-fetch deadline.
func NewSource(fetcher Fetcher, endpoints map[domain.FeedType]string, snapshot SnapshotReader, timeout time.Duration, logger *slog.Logger) *Source {
	return &Source{
		fetcher:   fetcher,
		endpoints: endpoints,
		snapshot:  snapshot,
		timeout:   timeout,
		logger:    logger,
	}
}

// Fetch never returns a transport error: every failure is folded into a
// Fallback or Empty result.
func (s *Source) Fetch(ctx context.Context, feed domain.FeedType) Result {
	url := s.endpoints[feed]
	if url == "" || s.fetcher == nil {
		return s.fallback(feed, nil)
	}

	fetchCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	body, err := s.fetcher.Fetch(fetchCtx, url)
	if err == nil {
		err = validatePayload(body)
	}
	if err != nil {
		s.logger.Warn("live feed unavailable, using fallback",
			"feed", feed,
			"url", url,
			"error", err,
		)
		return s.fallback(feed, err)
	}

	return Result{Kind: Live, Payload: json.RawMessage(body)}
}

func (s *Source) fallback(feed domain.FeedType, cause error) Result {
	if s.snapshot != nil {
		if payload, ok := s.snapshot.Get(feed); ok {
			return Result{Kind: Fallback, Payload: payload, Err: cause}
		}
	}
	return Result{Kind: Empty, Err: cause}
}

func validatePayload(body []byte) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return errEmptyBody
	}
	if !json.Valid(trimmed) {
		return errInvalidJSON
	}
	return nil
}

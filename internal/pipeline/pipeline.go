package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/disaster-alert-service/internal/domain"
	"github.com/couchcryptid/disaster-alert-service/internal/feed"
	"github.com/couchcryptid/disaster-alert-service/internal/observability"
)

// FeedSource returns the payload for one feed, never a transport error.
type FeedSource interface {
	Fetch(ctx context.Context, f domain.FeedType) feed.Result
}

// SnapshotWriter receives live payloads that normalized cleanly so they can
// serve as the next fallback.
type SnapshotWriter interface {
	Put(f domain.FeedType, payload json.RawMessage)
}

// RecordPublisher forwards normalized records to a downstream consumer.
type RecordPublisher interface {
	Publish(ctx context.Context, f domain.FeedType, records []domain.AlertRecord) error
}

// CycleReport summarizes one refresh cycle.
type CycleReport struct {
	ID       string
	Records  int
	Notified int
	Duration time.Duration
}

// Latest is the most recent set of normalized records per feed.
type Latest struct {
	CycleID   string                                   `json:"cycle_id"`
	UpdatedAt time.Time                                `json:"updated_at"`
	Feeds     map[domain.FeedType][]domain.AlertRecord `json:"feeds"`
}

// Pipeline runs fetch, normalize, dispatch and publish for every feed.
type Pipeline struct {
	source     FeedSource
	dispatcher *Dispatcher
	publisher  RecordPublisher
	snapshot   SnapshotWriter
	clock      clockwork.Clock
	feeds      []domain.FeedType
	logger     *slog.Logger
	metrics    *observability.Metrics
	ready      atomic.Bool

	mu     sync.RWMutex
	latest Latest
}

// New creates a Pipeline over the feeds in domain.FeedPriority order. Pass a
// nil publisher to disable record publishing and a nil snapshot to keep the
// fallback fixed. A nil clock uses the real clock.
func New(source FeedSource, dispatcher *Dispatcher, publisher RecordPublisher, snapshot SnapshotWriter, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Pipeline{
		source:     source,
		dispatcher: dispatcher,
		publisher:  publisher,
		snapshot:   snapshot,
		clock:      clock,
		feeds:      domain.FeedPriority,
		logger:     logger,
		metrics:    metrics,
		latest:     Latest{Feeds: map[domain.FeedType][]domain.AlertRecord{}},
	}
}

// CheckReadiness returns nil once the first cycle has completed.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no refresh cycle has completed yet")
	}
	return nil
}

// Latest returns a copy of the records from the most recent cycle.
func (p *Pipeline) Latest() Latest {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := Latest{
		CycleID:   p.latest.CycleID,
		UpdatedAt: p.latest.UpdatedAt,
		Feeds:     make(map[domain.FeedType][]domain.AlertRecord, len(p.latest.Feeds)),
	}
	for f, records := range p.latest.Feeds {
		out.Feeds[f] = slices.Clone(records)
	}
	return out
}

// RunCycle processes every feed once, in priority order. A failing feed
// never stops the others.
func (p *Pipeline) RunCycle(ctx context.Context) CycleReport {
	start := p.clock.Now()
	report := CycleReport{ID: uuid.NewString()}
	logger := p.logger.With("cycle_id", report.ID)
	logger.Debug("cycle started")

	results := make(map[domain.FeedType][]domain.AlertRecord, len(p.feeds))
	for _, f := range p.feeds {
		if ctx.Err() != nil {
			logger.Info("cycle interrupted", "reason", ctx.Err())
			break
		}
		records, notified := p.processFeed(ctx, logger, f)
		results[f] = records
		report.Records += len(records)
		report.Notified += notified
	}

	report.Duration = p.clock.Since(start)
	p.storeLatest(report.ID, results)
	p.metrics.CyclesRun.Inc()
	p.metrics.CycleDuration.Observe(report.Duration.Seconds())
	p.ready.Store(true)

	logger.Info("cycle complete",
		"records", report.Records,
		"notified", report.Notified,
		"duration", report.Duration,
	)
	return report
}

func (p *Pipeline) processFeed(ctx context.Context, logger *slog.Logger, f domain.FeedType) ([]domain.AlertRecord, int) {
	logger = logger.With("feed", f)

	fetchStart := p.clock.Now()
	res := p.source.Fetch(ctx, f)
	p.metrics.FetchDuration.WithLabelValues(string(f)).Observe(p.clock.Since(fetchStart).Seconds())
	p.metrics.FetchResults.WithLabelValues(string(f), res.Kind.String()).Inc()

	switch res.Kind {
	case feed.Fallback:
		logger.Debug("using fallback snapshot")
	case feed.Empty:
		logger.Debug("no payload available")
	}

	records, err := domain.Normalize(f, res.Payload)
	if err != nil {
		logger.Warn("malformed payload, treating feed as empty",
			"source", res.Kind.String(),
			"error", err,
		)
		p.metrics.NormalizeErrors.WithLabelValues(string(f)).Inc()
		return nil, 0
	}
	p.metrics.RecordsNormalized.WithLabelValues(string(f)).Add(float64(len(records)))

	if res.Kind == feed.Live && p.snapshot != nil {
		p.snapshot.Put(f, res.Payload)
	}

	notified := p.dispatcher.Dispatch(ctx, records)
	p.publish(ctx, logger, f, records)

	return records, notified
}

func (p *Pipeline) publish(ctx context.Context, logger *slog.Logger, f domain.FeedType, records []domain.AlertRecord) {
	if p.publisher == nil || len(records) == 0 {
		return
	}
	if err := p.publisher.Publish(ctx, f, records); err != nil {
		logger.Error("publish records failed", "error", err, "records", len(records))
		p.metrics.PublishErrors.Inc()
		return
	}
	p.metrics.RecordsPublished.Add(float64(len(records)))
}

func (p *Pipeline) storeLatest(cycleID string, results map[domain.FeedType][]domain.AlertRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.latest.CycleID = cycleID
	p.latest.UpdatedAt = p.clock.Now()
	for f, records := range results {
		p.latest.Feeds[f] = records
	}
}

package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/disaster-alert-service/internal/domain"
	"github.com/couchcryptid/disaster-alert-service/internal/feed"
	"github.com/couchcryptid/disaster-alert-service/internal/observability"
	"github.com/couchcryptid/disaster-alert-service/internal/pipeline"
	"github.com/couchcryptid/disaster-alert-service/internal/store"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	quakePayload = `[{
		"id": "q1",
		"code": 551,
		"time": "2024/01/01 16:13:05.123",
		"issue": {"source": "気象庁", "time": "2024/01/01 16:13:00", "type": "DetailScale"},
		"earthquake": {
			"time": "2024/01/01 16:10:00",
			"hypocenter": {"name": "石川県能登地方", "depth": 10, "magnitude": 7.6},
			"maxScale": 70,
			"domesticTsunami": "Warning"
		},
		"points": [{"pref": "石川県", "addr": "志賀町", "scale": 70}]
	}]`
	trainingEEWPayload = `{"EventID": "20240101161010", "Serial": 1, "isTraining": true, "Hypocenter": "石川県能登地方"}`
	volcanoPayload     = `[{"title": "Eruption warning", "body": "Level 3", "time": "2024-01-02 09:00:00"}]`
)

// --- mocks ---

type stubSource struct {
	mu      sync.Mutex
	results map[domain.FeedType]feed.Result
	order   []domain.FeedType
}

func (s *stubSource) Fetch(_ context.Context, f domain.FeedType) feed.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = append(s.order, f)
	return s.results[f]
}

type recordingNotifier struct {
	mu    sync.Mutex
	sent  []domain.Notification
	err   error
	calls int
}

func (r *recordingNotifier) Notify(_ context.Context, n domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, n)
	return nil
}

type recordingPublisher struct {
	published map[domain.FeedType]int
	err       error
}

func (r *recordingPublisher) Publish(_ context.Context, f domain.FeedType, records []domain.AlertRecord) error {
	if r.err != nil {
		return r.err
	}
	if r.published == nil {
		r.published = map[domain.FeedType]int{}
	}
	r.published[f] += len(records)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestMetrics() *observability.Metrics {
	return observability.NewMetricsForTesting()
}

func live(payload string) feed.Result {
	return feed.Result{Kind: feed.Live, Payload: json.RawMessage(payload)}
}

type fixture struct {
	source    *stubSource
	notifier  *recordingNotifier
	seen      *store.SeenStore
	publisher *recordingPublisher
	snapshot  *feed.Snapshot
	clock     *clockwork.FakeClock
	metrics   *observability.Metrics
	pipeline  *pipeline.Pipeline
}

var cycleStart = time.Date(2024, 1, 1, 7, 15, 0, 0, time.UTC)

func newFixture(results map[domain.FeedType]feed.Result) *fixture {
	f := &fixture{
		source:    &stubSource{results: results},
		notifier:  &recordingNotifier{},
		seen:      store.NewSeenStore(store.NewMemoryStore(), "seen-alerts", 10),
		publisher: &recordingPublisher{},
		snapshot:  feed.NewSnapshot(),
		clock:     clockwork.NewFakeClockAt(cycleStart),
		metrics:   newTestMetrics(),
	}
	d := pipeline.NewDispatcher(f.notifier, f.seen, discardLogger(), f.metrics)
	f.pipeline = pipeline.New(f.source, d, f.publisher, f.snapshot, f.clock, discardLogger(), f.metrics)
	return f
}

// --- cycle tests ---

func TestPipeline_RunCycle_NotifiesNewQuakeOnce(t *testing.T) {
	f := newFixture(map[domain.FeedType]feed.Result{
		domain.FeedEarthquake: live(quakePayload),
	})
	ctx := context.Background()

	first := f.pipeline.RunCycle(ctx)
	second := f.pipeline.RunCycle(ctx)

	assert.Equal(t, 1, first.Notified)
	assert.Equal(t, 0, second.Notified, "identical data must not re-notify")
	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, "q1:DetailScale", f.notifier.sent[0].DedupKey)
	assert.True(t, f.seen.Has(domain.FeedEarthquake, "q1:DetailScale"))
	assert.NotEqual(t, first.ID, second.ID)
}

func TestPipeline_RunCycle_PriorityOrder(t *testing.T) {
	f := newFixture(map[domain.FeedType]feed.Result{})

	f.pipeline.RunCycle(context.Background())

	assert.Equal(t, domain.FeedPriority, f.source.order)
}

func TestPipeline_RunCycle_TrainingEEWNeverNotifies(t *testing.T) {
	f := newFixture(map[domain.FeedType]feed.Result{
		domain.FeedEEW: live(trainingEEWPayload),
	})

	report := f.pipeline.RunCycle(context.Background())

	assert.Equal(t, 1, report.Records)
	assert.Zero(t, report.Notified)
	assert.Empty(t, f.notifier.sent)
	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.NotificationsSuppressed.WithLabelValues("eew", "non_actionable")), 0)
}

func TestPipeline_RunCycle_MalformedFeedIsolated(t *testing.T) {
	f := newFixture(map[domain.FeedType]feed.Result{
		domain.FeedEEW:        live(`[1,2,3]`),
		domain.FeedEarthquake: live(quakePayload),
	})

	report := f.pipeline.RunCycle(context.Background())

	assert.Equal(t, 1, report.Notified)
	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.NormalizeErrors.WithLabelValues("eew")), 0)
	_, cached := f.snapshot.Get(domain.FeedEEW)
	assert.False(t, cached, "malformed live payload must not replace the fallback")
}

func TestPipeline_RunCycle_EmptyFeedYieldsNoRecords(t *testing.T) {
	f := newFixture(map[domain.FeedType]feed.Result{
		domain.FeedEarthquake: {Kind: feed.Empty, Err: errors.New("timeout")},
	})

	report := f.pipeline.RunCycle(context.Background())

	assert.Zero(t, report.Records)
	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.FetchResults.WithLabelValues("earthquakes", "empty")), 0)
	assert.NoError(t, f.pipeline.CheckReadiness(context.Background()))
}

func TestPipeline_RunCycle_LivePayloadRefreshesSnapshot(t *testing.T) {
	f := newFixture(map[domain.FeedType]feed.Result{
		domain.FeedEarthquake: live(quakePayload),
		domain.FeedVolcano:    {Kind: feed.Fallback, Payload: json.RawMessage(volcanoPayload)},
	})

	f.pipeline.RunCycle(context.Background())

	got, ok := f.snapshot.Get(domain.FeedEarthquake)
	require.True(t, ok)
	assert.JSONEq(t, quakePayload, string(got))
	_, ok = f.snapshot.Get(domain.FeedVolcano)
	assert.False(t, ok, "fallback payloads are not written back")
}

func TestPipeline_RunCycle_NotifyFailureRetriesNextCycle(t *testing.T) {
	f := newFixture(map[domain.FeedType]feed.Result{
		domain.FeedEarthquake: live(quakePayload),
	})
	f.notifier.err = errors.New("sink unavailable")
	ctx := context.Background()

	report := f.pipeline.RunCycle(ctx)
	assert.Zero(t, report.Notified)
	assert.False(t, f.seen.Has(domain.FeedEarthquake, "q1:DetailScale"))

	f.notifier.err = nil
	report = f.pipeline.RunCycle(ctx)
	assert.Equal(t, 1, report.Notified)
	assert.True(t, f.seen.Has(domain.FeedEarthquake, "q1:DetailScale"))
}

func TestPipeline_RunCycle_PublishesRecords(t *testing.T) {
	f := newFixture(map[domain.FeedType]feed.Result{
		domain.FeedEarthquake: live(quakePayload),
		domain.FeedVolcano:    {Kind: feed.Fallback, Payload: json.RawMessage(volcanoPayload)},
	})

	f.pipeline.RunCycle(context.Background())

	assert.Equal(t, map[domain.FeedType]int{domain.FeedEarthquake: 1, domain.FeedVolcano: 1}, f.publisher.published)
	assert.InDelta(t, 2, testutil.ToFloat64(f.metrics.RecordsPublished), 0)
}

func TestPipeline_RunCycle_PublishFailureDoesNotStopCycle(t *testing.T) {
	f := newFixture(map[domain.FeedType]feed.Result{
		domain.FeedEarthquake: live(quakePayload),
	})
	f.publisher.err = errors.New("broker down")

	report := f.pipeline.RunCycle(context.Background())

	assert.Equal(t, 1, report.Notified)
	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.PublishErrors), 0)
}

func TestPipeline_Latest(t *testing.T) {
	f := newFixture(map[domain.FeedType]feed.Result{
		domain.FeedEarthquake: live(quakePayload),
	})
	assert.Error(t, f.pipeline.CheckReadiness(context.Background()))

	report := f.pipeline.RunCycle(context.Background())
	latest := f.pipeline.Latest()

	assert.Equal(t, report.ID, latest.CycleID)
	assert.Equal(t, cycleStart, latest.UpdatedAt)
	require.Len(t, latest.Feeds[domain.FeedEarthquake], 1)
	assert.Equal(t, "q1:DetailScale", latest.Feeds[domain.FeedEarthquake][0].DedupKey)
	assert.Empty(t, latest.Feeds[domain.FeedEEW])
}

func TestPipeline_LatestUpdatedAtFollowsClock(t *testing.T) {
	f := newFixture(map[domain.FeedType]feed.Result{
		domain.FeedEarthquake: live(quakePayload),
	})

	f.pipeline.RunCycle(context.Background())
	f.clock.Advance(30 * time.Second)
	second := f.pipeline.RunCycle(context.Background())

	latest := f.pipeline.Latest()
	assert.Equal(t, second.ID, latest.CycleID)
	assert.Equal(t, cycleStart.Add(30*time.Second), latest.UpdatedAt)
	assert.Zero(t, second.Duration, "a stopped clock measures no elapsed time")
}

// --- dispatcher tests ---

func TestDispatcher_Dispatch(t *testing.T) {
	seen := store.NewSeenStore(nil, "seen-alerts", 10)
	require.NoError(t, seen.Record(context.Background(), domain.FeedVolcano, "oldT1"))
	notifier := &recordingNotifier{}
	metrics := newTestMetrics()
	d := pipeline.NewDispatcher(notifier, seen, discardLogger(), metrics)

	records := []domain.AlertRecord{
		{FeedType: domain.FeedEEW, DedupKey: "", Title: "no id"},
		{FeedType: domain.FeedEEW, DedupKey: "e1:1", NonActionable: true, Status: "cancelled"},
		{FeedType: domain.FeedVolcano, DedupKey: "oldT1", Title: "old"},
		{FeedType: domain.FeedVolcano, DedupKey: "newT2", Title: "new a"},
		{FeedType: domain.FeedVolcano, DedupKey: "newT3", Title: "new b"},
		{FeedType: domain.FeedVolcano, DedupKey: "newT2", Title: "duplicate in batch"},
	}

	sent := d.Dispatch(context.Background(), records)

	assert.Equal(t, 2, sent, "each new key notifies independently")
	require.Len(t, notifier.sent, 2)
	assert.Equal(t, "new a", notifier.sent[0].Title)
	assert.Equal(t, "new b", notifier.sent[1].Title)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.NotificationsSuppressed.WithLabelValues("eew", "no_key")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.NotificationsSuppressed.WithLabelValues("volcano", "seen")), 0)
	assert.False(t, seen.Has(domain.FeedEEW, ""))
}

type failingKV struct{}

func (failingKV) Load(context.Context, string) ([]byte, error) { return nil, store.ErrNotFound }
func (failingKV) Save(context.Context, string, []byte) error   { return errors.New("read-only") }

func TestDispatcher_PersistFailureStillCountsAsSent(t *testing.T) {
	seen := store.NewSeenStore(failingKV{}, "seen-alerts", 10)
	notifier := &recordingNotifier{}
	metrics := newTestMetrics()
	d := pipeline.NewDispatcher(notifier, seen, discardLogger(), metrics)

	recs := []domain.AlertRecord{{FeedType: domain.FeedLandslide, DedupKey: "k", Title: "t"}}
	assert.Equal(t, 1, d.Dispatch(context.Background(), recs))
	assert.Equal(t, 0, d.Dispatch(context.Background(), recs), "in-memory history still suppresses")
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.PersistErrors), 0)
}

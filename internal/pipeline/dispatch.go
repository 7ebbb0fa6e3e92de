package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/disaster-alert-service/internal/domain"
	"github.com/couchcryptid/disaster-alert-service/internal/observability"
)

// Notifier delivers a notification for a new alert.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification) error
}

// SeenKeys is the dedup history consulted and updated by the dispatcher.
type SeenKeys interface {
	Has(feed domain.FeedType, key string) bool
	Record(ctx context.Context, feed domain.FeedType, key string) error
}

// Suppression reasons reported in metrics.
const (
	reasonNoKey         = "no_key"
	reasonNonActionable = "non_actionable"
	reasonSeen          = "seen"
)

// Dispatcher notifies once per new dedup key. The key is recorded only after
// the notifier accepts the notification, so a failure is retried next cycle.
type Dispatcher struct {
	notifier Notifier
	seen     SeenKeys
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(notifier Notifier, seen SeenKeys, logger *slog.Logger, metrics *observability.Metrics) *Dispatcher {
	return &Dispatcher{
		notifier: notifier,
		seen:     seen,
		logger:   logger,
		metrics:  metrics,
	}
}

// Dispatch notifies every new actionable record in order and returns how many
// notifications were sent.
func (d *Dispatcher) Dispatch(ctx context.Context, records []domain.AlertRecord) int {
	sent := 0
	for i := range records {
		rec := &records[i]
		feed := string(rec.FeedType)

		switch {
		case rec.DedupKey == "":
			d.metrics.NotificationsSuppressed.WithLabelValues(feed, reasonNoKey).Inc()
			continue
		case rec.NonActionable:
			d.metrics.NotificationsSuppressed.WithLabelValues(feed, reasonNonActionable).Inc()
			continue
		case d.seen.Has(rec.FeedType, rec.DedupKey):
			d.metrics.NotificationsSuppressed.WithLabelValues(feed, reasonSeen).Inc()
			continue
		}

		if err := d.notifier.Notify(ctx, domain.NotificationFor(*rec)); err != nil {
			d.logger.Warn("notify failed, will retry next cycle",
				"feed", rec.FeedType,
				"dedup_key", rec.DedupKey,
				"error", err,
			)
			d.metrics.NotifyErrors.WithLabelValues(feed).Inc()
			continue
		}
		sent++
		d.metrics.NotificationsSent.WithLabelValues(feed).Inc()

		if err := d.seen.Record(ctx, rec.FeedType, rec.DedupKey); err != nil {
			d.logger.Error("persist seen key failed",
				"feed", rec.FeedType,
				"dedup_key", rec.DedupKey,
				"error", err,
			)
			d.metrics.PersistErrors.Inc()
		}
	}
	return sent
}

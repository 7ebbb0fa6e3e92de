package kafka

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/disaster-alert-service/internal/config"
	"github.com/couchcryptid/disaster-alert-service/internal/domain"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeToMessage(t *testing.T) {
	now := time.Date(2024, 1, 1, 7, 13, 0, 0, time.UTC)
	rec := domain.AlertRecord{
		FeedType:  domain.FeedEarthquake,
		DedupKey:  "q1:DetailScale",
		Timestamp: now,
		Title:     "Earthquake information: 石川県能登地方",
		Summary:   map[string]string{domain.FieldMagnitude: "7.6"},
		AreaGroups: []domain.AreaGroup{
			{Severity: domain.Level7, Region: "石川県", Localities: []string{"志賀町"}},
		},
	}

	msg, err := serializeToMessage(rec, now)
	require.NoError(t, err)

	assert.Equal(t, []byte("q1:DetailScale"), msg.Key)
	assert.Contains(t, string(msg.Value), `"feed_type":"earthquakes"`)
	assert.Contains(t, string(msg.Value), `"severity":"7"`)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "feed_type", msg.Headers[0].Key)
	assert.Equal(t, []byte("earthquakes"), msg.Headers[0].Value)
	assert.Equal(t, "published_at", msg.Headers[1].Key)
	assert.Equal(t, []byte("2024-01-01T07:13:00Z"), msg.Headers[1].Value)

	var roundtrip domain.AlertRecord
	require.NoError(t, json.Unmarshal(msg.Value, &roundtrip))
	assert.Equal(t, domain.Level7, roundtrip.AreaGroups[0].Severity)
}

func TestSerializeToMessage_EmptyKeyUsesFeedType(t *testing.T) {
	rec := domain.AlertRecord{FeedType: domain.FeedEEW, NonActionable: true, Status: "training"}

	msg, err := serializeToMessage(rec, time.Now())
	require.NoError(t, err)

	assert.Equal(t, []byte("eew"), msg.Key)
}

func TestWriter_PublishEmptyIsNoop(t *testing.T) {
	cfg := &config.Config{KafkaBrokers: []string{"localhost:1"}, KafkaTopic: "unused"}
	w := NewWriter(cfg, clockwork.NewFakeClock(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { _ = w.Close() })

	assert.NoError(t, w.Publish(context.Background(), domain.FeedVolcano, nil))
}

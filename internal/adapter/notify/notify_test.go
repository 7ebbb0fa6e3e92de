package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/couchcryptid/disaster-alert-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testNotification() domain.Notification {
	return domain.Notification{
		FeedType: domain.FeedEarthquake,
		DedupKey: "q1:DetailScale",
		Title:    "Earthquake information: 石川県能登地方",
		Body:     "M7.6, depth 10km, max intensity 7",
	}
}

type recordingNotifier struct {
	calls []domain.Notification
	err   error
}

func (r *recordingNotifier) Notify(_ context.Context, n domain.Notification) error {
	r.calls = append(r.calls, n)
	return r.err
}

func TestLogSink_Notify(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(slog.New(slog.NewJSONHandler(&buf, nil)))

	require.NoError(t, sink.Notify(context.Background(), testNotification()))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "would send notification", line["msg"])
	assert.Equal(t, "q1:DetailScale", line["dedup_key"])
	assert.Equal(t, "earthquakes", line["feed"])
}

func TestWebhookSink_Notify(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := NewWebhookSink(srv.URL, 5*time.Second, discardLogger())
	sink.now = func() time.Time { return time.Date(2024, 1, 1, 7, 10, 0, 0, time.UTC) }

	require.NoError(t, sink.Notify(context.Background(), testNotification()))

	assert.Equal(t, "earthquakes", got.FeedType)
	assert.Equal(t, "q1:DetailScale", got.DedupKey)
	assert.Equal(t, "M7.6, depth 10km, max intensity 7", got.Body)
	assert.True(t, got.SentAt.Equal(time.Date(2024, 1, 1, 7, 10, 0, 0, time.UTC)))
}

func TestWebhookSink_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhookSink(srv.URL, 5*time.Second, discardLogger()).Notify(context.Background(), testNotification())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}

func TestWebhookSink_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	err := NewWebhookSink(url, time.Second, discardLogger()).Notify(context.Background(), testNotification())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "webhook request")
}

func TestGate(t *testing.T) {
	tests := []struct {
		name      string
		allowed   bool
		innerErr  error
		wantCalls int
		wantErr   bool
	}{
		{"allowed delivers", true, nil, 1, false},
		{"allowed propagates failure", true, errors.New("boom"), 1, true},
		{"denied is silent success", false, errors.New("never reached"), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inner := &recordingNotifier{err: tt.innerErr}
			allowed := tt.allowed
			gate := NewGate(inner, PermissionFunc(func(context.Context) bool { return allowed }), discardLogger())

			err := gate.Notify(context.Background(), testNotification())

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Len(t, inner.calls, tt.wantCalls)
		})
	}
}

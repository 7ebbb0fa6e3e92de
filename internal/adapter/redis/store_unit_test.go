package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/couchcryptid/disaster-alert-service/internal/domain"
	"github.com/couchcryptid/disaster-alert-service/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := NewStore(context.Background(), Options{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestStore_MissingKeyIsNotFound(t *testing.T) {
	s, _ := newMiniStore(t)

	_, err := s.Load(context.Background(), "seen-alerts")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_SaveUsesPrefixWithoutExpiry(t *testing.T) {
	s, mr := newMiniStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "seen-alerts", []byte(`{"eew":"e1:1"}`)))

	raw, err := mr.Get("disaster-alert:seen-alerts")
	require.NoError(t, err)
	assert.JSONEq(t, `{"eew":"e1:1"}`, raw)
	assert.Zero(t, mr.TTL("disaster-alert:seen-alerts"))

	got, err := s.Load(ctx, "seen-alerts")
	require.NoError(t, err)
	assert.JSONEq(t, `{"eew":"e1:1"}`, string(got))
}

func TestStore_ServerErrorIsNotNotFound(t *testing.T) {
	s, mr := newMiniStore(t)
	mr.SetError("LOADING dataset in memory")

	_, err := s.Load(context.Background(), "seen-alerts")
	require.Error(t, err)
	assert.NotErrorIs(t, err, store.ErrNotFound)
	assert.Contains(t, err.Error(), "failed to get state")

	require.Error(t, s.Save(context.Background(), "seen-alerts", []byte(`{}`)))
	require.Error(t, s.CheckReadiness(context.Background()))
}

func TestStore_ReadinessFollowsServer(t *testing.T) {
	s, mr := newMiniStore(t)
	require.NoError(t, s.CheckReadiness(context.Background()))

	mr.Close()

	assert.Error(t, s.CheckReadiness(context.Background()))
}

func TestNewStore_UnreachableServer(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewStore(context.Background(), Options{Addr: addr})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to redis")
}

func TestStore_SeenStoreSurvivesReload(t *testing.T) {
	s, _ := newMiniStore(t)
	ctx := context.Background()

	seen := store.NewSeenStore(s, "seen-alerts", 10)
	require.NoError(t, seen.Load(ctx))
	require.NoError(t, seen.Record(ctx, domain.FeedEarthquake, "q1:DetailScale"))

	reloaded := store.NewSeenStore(NewStoreFromClient(s.client), "seen-alerts", 10)
	require.NoError(t, reloaded.Load(ctx))
	assert.True(t, reloaded.Has(domain.FeedEarthquake, "q1:DetailScale"))
}

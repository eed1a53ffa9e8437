package service

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/cohort-assistant/internal/clock"
	"github.com/noah-isme/cohort-assistant/internal/models"
	"github.com/noah-isme/cohort-assistant/internal/platform"
	"github.com/noah-isme/cohort-assistant/internal/probe"
)

func sentinelServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(probe.SentinelBody))
	}))
	t.Cleanup(server.Close)
	return server
}

func intPtr(v int) *int { return &v }

func uptimeFixture(repo *memUptimeRepo, store *memTargetStore, fake *platform.Fake, cache *redis.Client, gateURL string, now time.Time) UptimeService {
	return NewUptimeService(
		repo, store,
		probe.NewHTTPProber(), probe.NewPresenceProber(fake),
		nil, cache, time.Minute, gateURL,
		clock.Fixed(now), testLogger(),
	)
}

func TestTickPersistsHTTPObservation(t *testing.T) {
	server := sentinelServer(t)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	repo := &memUptimeRepo{}
	store := &memTargetStore{targets: []probe.Target{
		{Name: "API", ID: "API", URI: server.URL},
	}}
	svc := uptimeFixture(repo, store, platform.NewFake("bot"), nil, server.URL, now)

	require.NoError(t, svc.Tick(context.Background(), now))

	require.Len(t, repo.items, 1)
	entry := repo.items[0]
	assert.Equal(t, "API", entry.TargetID)
	assert.Equal(t, server.URL, entry.Target)
	assert.True(t, entry.IsUp)
	require.NotNil(t, entry.ResponseTimeMS)
	assert.Equal(t, "nothing notable.", entry.Notes)
	assert.Equal(t, now, entry.Timestamp)

	last := svc.LastResults()
	require.Len(t, last, 1)
	assert.Equal(t, "API", last[0].TargetID)
}

func TestTickRecordsDownOnBodyMismatch(t *testing.T) {
	gate := sentinelServer(t)
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>maintenance</html>"))
	}))
	t.Cleanup(bad.Close)

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := &memUptimeRepo{}
	store := &memTargetStore{targets: []probe.Target{
		{Name: "API", ID: "API", URI: bad.URL, HTTPMaxRetries: intPtr(1)},
	}}
	svc := uptimeFixture(repo, store, platform.NewFake("bot"), nil, gate.URL, now)

	require.NoError(t, svc.Tick(context.Background(), now))

	require.Len(t, repo.items, 1)
	assert.False(t, repo.items[0].IsUp)
	assert.Contains(t, repo.items[0].Notes, "content was invalid:")
	assert.Nil(t, repo.items[0].ResponseTimeMS)
}

func TestTickAbortsWhenGateUnreachable(t *testing.T) {
	server := sentinelServer(t)
	gate := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	gate.Close() // dead gate

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := &memUptimeRepo{}
	store := &memTargetStore{targets: []probe.Target{
		{Name: "API", ID: "API", URI: server.URL},
	}}
	svc := uptimeFixture(repo, store, platform.NewFake("bot"), nil, gate.URL, now)

	require.NoError(t, svc.Tick(context.Background(), now))
	assert.Empty(t, repo.items, "a dead local connection must not record observations")
}

func TestTickPresenceTarget(t *testing.T) {
	gate := sentinelServer(t)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	fake := platform.NewFake("bot")
	fake.SetStatus("guild-1", "42", "online")

	repo := &memUptimeRepo{}
	store := &memTargetStore{targets: []probe.Target{
		{Name: "Noah", ID: "NOAH", URI: "user://guild-1/42?online=1&idle=1"},
	}}
	svc := uptimeFixture(repo, store, fake, nil, gate.URL, now)

	require.NoError(t, svc.Tick(context.Background(), now))

	require.Len(t, repo.items, 1)
	entry := repo.items[0]
	assert.Equal(t, "Noah", entry.Target, "presence observations are labelled by name")
	assert.True(t, entry.IsUp)
	assert.Nil(t, entry.ResponseTimeMS)
	assert.Equal(t, probe.PresenceNotes, entry.Notes)
}

func TestTickSkipsPresenceWithoutCapability(t *testing.T) {
	gate := sentinelServer(t)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	repo := &memUptimeRepo{}
	store := &memTargetStore{targets: []probe.Target{
		{Name: "Noah", ID: "NOAH", URI: "user://guild-1/42?online=1"},
	}}
	svc := NewUptimeService(
		repo, store,
		probe.NewHTTPProber(), probe.NewPresenceProber(nil),
		nil, nil, time.Minute, gate.URL,
		clock.Fixed(now), testLogger(),
	)

	require.NoError(t, svc.Tick(context.Background(), now))
	assert.Empty(t, repo.items)
}

func TestSubscriberReceivesObservations(t *testing.T) {
	server := sentinelServer(t)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	repo := &memUptimeRepo{}
	store := &memTargetStore{targets: []probe.Target{
		{Name: "API", ID: "API", URI: server.URL},
	}}
	svc := uptimeFixture(repo, store, platform.NewFake("bot"), nil, server.URL, now)

	feed, cancel := svc.Subscribe()
	defer cancel()

	require.NoError(t, svc.Tick(context.Background(), now))

	select {
	case entry := <-feed:
		assert.Equal(t, "API", entry.TargetID)
	case <-time.After(time.Second):
		t.Fatal("expected an observation on the feed")
	}
}

func TestSubscriberCancelDuringBroadcast(t *testing.T) {
	server := sentinelServer(t)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	targets := make([]probe.Target, 0, 20)
	for i := 0; i < 20; i++ {
		targets = append(targets, probe.Target{
			Name: fmt.Sprintf("API%d", i),
			ID:   fmt.Sprintf("API%d", i),
			URI:  server.URL,
		})
	}
	repo := &memUptimeRepo{}
	store := &memTargetStore{targets: targets}
	svc := uptimeFixture(repo, store, platform.NewFake("bot"), nil, server.URL, now)

	// Each subscriber drops as soon as it sees one observation, racing the
	// broadcast that is still walking the tick's subscriber snapshot.
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		feed, cancel := svc.Subscribe()
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-feed
			cancel()
		}()
	}

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Tick(context.Background(), now))
	}
	wg.Wait()
}

func seedObservations(repo *memUptimeRepo, now time.Time) {
	ms := func(v int64) *int64 { return &v }
	repo.items = []models.UptimeEntry{
		{EntryID: 1, TargetID: "API", IsUp: true, ResponseTimeMS: ms(40), Timestamp: now.Add(-3 * time.Hour)},
		{EntryID: 2, TargetID: "API", IsUp: false, Timestamp: now.Add(-2 * time.Hour)},
		{EntryID: 3, TargetID: "API", IsUp: true, ResponseTimeMS: ms(60), Timestamp: now.Add(-time.Hour)},
		{EntryID: 4, TargetID: "OTHER", IsUp: true, ResponseTimeMS: ms(10), Timestamp: now.Add(-time.Hour)},
	}
}

func TestStatsAggregation(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := &memUptimeRepo{}
	seedObservations(repo, now)
	store := &memTargetStore{targets: []probe.Target{
		{Name: "Main API", ID: "API", URI: "http://example/ping"},
		{Name: "VLE", ID: "VLE", URI: "http://vle.example/ping"},
	}}
	repo.items = append(repo.items, models.UptimeEntry{EntryID: 4, TargetID: "VLE", IsUp: false, Timestamp: now.Add(-time.Hour)})
	svc := uptimeFixture(repo, store, platform.NewFake("bot"), nil, "http://unused", now)

	stats, err := svc.Stats(context.Background(), "API", 7)
	require.NoError(t, err)

	assert.Equal(t, "API", stats.TargetID)
	assert.Equal(t, "Main API", stats.TargetName)
	assert.Equal(t, 3, stats.TotalCount)
	assert.Equal(t, 2, stats.OnlineCount)
	assert.Equal(t, 1, stats.OfflineCount)
	assert.InDelta(t, 66.66, stats.UptimePercent, 0.1)
	assert.InDelta(t, 50.0, stats.AverageResponseMS, 0.001)
	require.NotNil(t, stats.FirstCheck)
	assert.Equal(t, now.Add(-3*time.Hour), *stats.FirstCheck)
	require.NotNil(t, stats.LastOnline)
	assert.Equal(t, now.Add(-time.Hour), *stats.LastOnline)
	require.NotNil(t, stats.LastOffline)
	assert.Equal(t, now.Add(-2*time.Hour), *stats.LastOffline)
	assert.Equal(t, 2, stats.Overall.Targets)
	assert.Equal(t, 4, stats.Overall.TotalCount)
	assert.Equal(t, 2, stats.Overall.OnlineCount)
	assert.Equal(t, 2, stats.Overall.OfflineCount)
	assert.InDelta(t, 50.0, stats.Overall.UptimePercent, 0.001)
	assert.False(t, stats.CacheHit)
}

func TestStatsUnknownTarget(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := uptimeFixture(&memUptimeRepo{}, &memTargetStore{}, platform.NewFake("bot"), nil, "http://unused", now)

	_, err := svc.Stats(context.Background(), "MISSING", 7)
	require.ErrorIs(t, err, ErrUnknownTarget)
}

func TestStatsServedFromCache(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := &memUptimeRepo{}
	seedObservations(repo, now)
	store := &memTargetStore{targets: []probe.Target{
		{Name: "Main API", ID: "API", URI: "http://example/ping"},
	}}
	svc := uptimeFixture(repo, store, platform.NewFake("bot"), cache, "http://unused", now)

	ctx := context.Background()
	first, err := svc.Stats(ctx, "API", 7)
	require.NoError(t, err)
	assert.False(t, first.CacheHit)

	// New rows after caching are invisible until the TTL expires.
	repo.items = append(repo.items, models.UptimeEntry{EntryID: 5, TargetID: "API", IsUp: false, Timestamp: now})

	second, err := svc.Stats(ctx, "API", 7)
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.TotalCount, second.TotalCount)

	mr.FastForward(2 * time.Minute)

	third, err := svc.Stats(ctx, "API", 7)
	require.NoError(t, err)
	assert.False(t, third.CacheHit)
	assert.Equal(t, 4, third.TotalCount)
}

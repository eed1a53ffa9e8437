package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/cohort-assistant/internal/clock"
	"github.com/noah-isme/cohort-assistant/internal/dto"
	"github.com/noah-isme/cohort-assistant/internal/models"
	"github.com/noah-isme/cohort-assistant/internal/observability"
	"github.com/noah-isme/cohort-assistant/internal/probe"
	"github.com/noah-isme/cohort-assistant/internal/repository"
)

const uptimeSubject = "cohort.uptime.observations"

var ErrUnknownTarget = errors.New("unknown uptime target")

// UptimeService probes every configured target once per tick, persists the
// observations and answers aggregate queries over the recorded history.
type UptimeService interface {
	Tick(ctx context.Context, now time.Time) error
	LastResults() []models.UptimeEntry
	Stats(ctx context.Context, targetID string, lookBackDays int) (dto.UptimeStats, error)
	Targets() ([]probe.Target, error)
	AddTarget(target probe.Target) error
	RemoveTarget(id string) error
	Subscribe() (<-chan models.UptimeEntry, func())
}

type uptimeService struct {
	repo            repository.UptimeRepository
	targets         repository.TargetStore
	httpProber      *probe.HTTPProber
	presenceProber  *probe.PresenceProber
	natsConn        *nats.Conn
	cache           *redis.Client
	cacheTTL        time.Duration
	connectivityURL string
	clk             clock.Clock
	logger          zerolog.Logger

	presenceWarn sync.Once

	mu          sync.Mutex
	lastResults []models.UptimeEntry
	subscribers map[int]chan models.UptimeEntry
	nextSubID   int
}

// NewUptimeService builds the probe loop body. The cache client may be nil;
// stats queries then always hit the database.
func NewUptimeService(
	repo repository.UptimeRepository,
	targets repository.TargetStore,
	httpProber *probe.HTTPProber,
	presenceProber *probe.PresenceProber,
	natsConn *nats.Conn,
	cache *redis.Client,
	cacheTTL time.Duration,
	connectivityURL string,
	clk clock.Clock,
	logger zerolog.Logger,
) UptimeService {
	return &uptimeService{
		repo:            repo,
		targets:         targets,
		httpProber:      httpProber,
		presenceProber:  presenceProber,
		natsConn:        natsConn,
		cache:           cache,
		cacheTTL:        cacheTTL,
		connectivityURL: connectivityURL,
		clk:             clk,
		logger:          logger.With().Str("component", "uptime_service").Logger(),
		subscribers:     map[int]chan models.UptimeEntry{},
	}
}

// Tick probes all targets in catalog order and persists the observations
// concurrently. A dead local connection aborts the tick without recording
// anything: offline rows would say nothing about the targets.
func (s *uptimeService) Tick(ctx context.Context, now time.Time) error {
	if !s.httpProber.Reachable(ctx, s.connectivityURL) {
		s.logger.Debug().Msg("connectivity gate failed, skipping tick")
		return nil
	}

	targets, err := s.targets.Read()
	if err != nil {
		return fmt.Errorf("failed to read targets: %w", err)
	}

	entries := make([]models.UptimeEntry, 0, len(targets))
	for _, target := range targets {
		entry, ok := s.probeTarget(ctx, target, now)
		if ok {
			entries = append(entries, entry)
		}
	}

	var (
		wg       sync.WaitGroup
		errMu    sync.Mutex
		failures []error
	)
	for i := range entries {
		wg.Add(1)
		go func(entry *models.UptimeEntry) {
			defer wg.Done()
			if err := s.repo.Create(ctx, entry); err != nil {
				errMu.Lock()
				failures = append(failures, fmt.Errorf("target %s: %w", entry.TargetID, err))
				errMu.Unlock()
			}
		}(&entries[i])
	}
	wg.Wait()

	for _, err := range failures {
		s.logger.Error().Err(err).Msg("failed to persist observation")
	}

	s.mu.Lock()
	s.lastResults = entries
	subs := make([]chan models.UptimeEntry, 0, len(s.subscribers))
	for _, ch := range s.subscribers {
		subs = append(subs, ch)
	}
	s.mu.Unlock()

	for _, entry := range entries {
		s.publish(entry)
		for _, ch := range subs {
			select {
			case ch <- entry:
				observability.FeedMessages().Inc()
			default:
			}
		}
	}
	return nil
}

func (s *uptimeService) probeTarget(ctx context.Context, target probe.Target, now time.Time) (models.UptimeEntry, bool) {
	var result probe.Result
	label := target.URI

	switch {
	case target.IsHTTP():
		result = s.httpProber.Check(ctx, target)

	case target.IsPresence():
		if !s.presenceProber.Available() {
			s.presenceWarn.Do(func() {
				s.logger.Warn().Str("target", target.ID).Msg("presence capability unavailable, presence targets skipped")
			})
			return models.UptimeEntry{}, false
		}
		presence, err := probe.ParsePresenceTarget(target.URI)
		if err != nil {
			s.logger.Warn().Err(err).Str("target", target.ID).Msg("malformed presence target")
			return models.UptimeEntry{}, false
		}
		var checkErr error
		result, checkErr = s.presenceProber.Check(ctx, presence)
		if checkErr != nil {
			s.logger.Warn().Err(checkErr).Str("target", target.ID).Msg("presence check failed")
			return models.UptimeEntry{}, false
		}
		label = target.Name

	default:
		s.logger.Warn().Str("target", target.ID).Msg("target has no probe scheme")
		return models.UptimeEntry{}, false
	}

	verdict := "down"
	if result.IsUp {
		verdict = "up"
	}
	observability.ProbeResults().WithLabelValues(target.ID, verdict).Inc()

	return models.UptimeEntry{
		TargetID:       target.ID,
		Target:         label,
		IsUp:           result.IsUp,
		ResponseTimeMS: result.ResponseTimeMS,
		Notes:          result.Notes,
		Timestamp:      now.UTC(),
	}, true
}

func (s *uptimeService) publish(entry models.UptimeEntry) {
	if s.natsConn == nil {
		return
	}
	payload, err := json.Marshal(dto.NewObservationResponse(entry))
	if err != nil {
		return
	}
	if err := s.natsConn.Publish(uptimeSubject, payload); err != nil {
		s.logger.Warn().Err(err).Msg("failed to publish observation")
	}
}

// LastResults returns the observations recorded by the most recent tick.
func (s *uptimeService) LastResults() []models.UptimeEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.UptimeEntry, len(s.lastResults))
	copy(out, s.lastResults)
	return out
}

// Subscribe registers a live observation feed. The returned cancel func must
// be called when the consumer goes away. The channel is never closed: a tick
// snapshots subscribers before broadcasting, so a send may race a cancel, and
// an open channel just buffers the stray entry until it is collected.
func (s *uptimeService) Subscribe() (<-chan models.UptimeEntry, func()) {
	ch := make(chan models.UptimeEntry, 64)

	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = ch
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
	return ch, cancel
}

func statsCacheKey(targetID string, lookBackDays int) string {
	return fmt.Sprintf("uptime:stats:%s:%d", targetID, lookBackDays)
}

// Stats aggregates the target's observations over the look-back window. The
// aggregate is cached briefly; a cache outage degrades to a database query.
func (s *uptimeService) Stats(ctx context.Context, targetID string, lookBackDays int) (dto.UptimeStats, error) {
	key := statsCacheKey(targetID, lookBackDays)
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, key).Result(); err == nil {
			var stats dto.UptimeStats
			if err := json.Unmarshal([]byte(raw), &stats); err == nil {
				stats.CacheHit = true
				return stats, nil
			}
		}
	}

	targets, err := s.targets.Read()
	if err != nil {
		return dto.UptimeStats{}, err
	}
	var target *probe.Target
	for i := range targets {
		if targets[i].ID == targetID {
			target = &targets[i]
			break
		}
	}
	if target == nil {
		return dto.UptimeStats{}, ErrUnknownTarget
	}

	cutoff := s.clk.Now().UTC().AddDate(0, 0, -lookBackDays)
	entries, err := s.repo.ListSince(ctx, targetID, cutoff)
	if err != nil {
		return dto.UptimeStats{}, err
	}

	stats := aggregate(target.ID, target.Name, lookBackDays, entries)

	overall, err := s.overall(ctx, targets, cutoff)
	if err != nil {
		return dto.UptimeStats{}, err
	}
	stats.Overall = overall

	if s.cache != nil {
		if payload, err := json.Marshal(stats); err == nil {
			if err := s.cache.Set(ctx, key, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Debug().Err(err).Msg("failed to cache stats")
			}
		}
	}
	return stats, nil
}

// overall folds the same window across every monitored target.
func (s *uptimeService) overall(ctx context.Context, targets []probe.Target, cutoff time.Time) (dto.UptimeOverall, error) {
	overall := dto.UptimeOverall{Targets: len(targets)}
	for _, target := range targets {
		entries, err := s.repo.ListSince(ctx, target.ID, cutoff)
		if err != nil {
			return dto.UptimeOverall{}, err
		}
		overall.TotalCount += len(entries)
		for _, entry := range entries {
			if entry.IsUp {
				overall.OnlineCount++
			} else {
				overall.OfflineCount++
			}
		}
	}
	if overall.TotalCount > 0 {
		overall.UptimePercent = float64(overall.OnlineCount) / float64(overall.TotalCount) * 100
	}
	return overall, nil
}

// aggregate folds newest-first observations into a stats summary.
func aggregate(targetID, targetName string, lookBackDays int, entries []models.UptimeEntry) dto.UptimeStats {
	stats := dto.UptimeStats{
		TargetID:     targetID,
		TargetName:   targetName,
		LookBackDays: lookBackDays,
		TotalCount:   len(entries),
	}
	if len(entries) == 0 {
		return stats
	}

	first := entries[len(entries)-1].Timestamp
	stats.FirstCheck = &first

	var responseSum int64
	var responseCount int
	for _, entry := range entries {
		if entry.IsUp {
			stats.OnlineCount++
			if stats.LastOnline == nil {
				ts := entry.Timestamp
				stats.LastOnline = &ts
			}
		} else {
			stats.OfflineCount++
			if stats.LastOffline == nil {
				ts := entry.Timestamp
				stats.LastOffline = &ts
			}
		}
		if entry.ResponseTimeMS != nil {
			responseSum += *entry.ResponseTimeMS
			responseCount++
		}
	}

	stats.UptimePercent = float64(stats.OnlineCount) / float64(stats.TotalCount) * 100
	if responseCount > 0 {
		stats.AverageResponseMS = float64(responseSum) / float64(responseCount)
	}
	return stats
}

// Targets lists the monitored targets in catalog order.
func (s *uptimeService) Targets() ([]probe.Target, error) {
	return s.targets.Read()
}

func (s *uptimeService) AddTarget(target probe.Target) error {
	return s.targets.Add(target)
}

func (s *uptimeService) RemoveTarget(id string) error {
	return s.targets.Remove(id)
}

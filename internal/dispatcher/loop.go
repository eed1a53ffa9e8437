package dispatcher

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/cohort-assistant/internal/clock"
	"github.com/noah-isme/cohort-assistant/internal/observability"
)

// TickFunc is one loop body evaluation at the given wall-clock instant.
// Errors are logged and swallowed; the next tick retries naturally.
type TickFunc func(ctx context.Context, now time.Time) error

// Loop drives a TickFunc on a fixed period. A mutex spans each tick so ticks
// never self-overlap; the completion event is cleared at tick entry and set at
// tick exit.
type Loop struct {
	name   string
	period time.Duration
	tick   TickFunc
	clk    clock.Clock
	ready  <-chan struct{}
	logger zerolog.Logger

	mu   sync.Mutex
	done *Event
}

// NewLoop builds a loop. ready gates the first productive tick; pass nil when
// no readiness gate applies.
func NewLoop(name string, period time.Duration, tick TickFunc, clk clock.Clock, ready <-chan struct{}, logger zerolog.Logger) *Loop {
	return &Loop{
		name:   name,
		period: period,
		tick:   tick,
		clk:    clk,
		ready:  ready,
		logger: logger.With().Str("component", "dispatcher").Str("loop", name).Logger(),
		done:   NewEvent(),
	}
}

// Done returns the loop's completion event.
func (l *Loop) Done() *Event {
	return l.done
}

// Run blocks, ticking until the context is cancelled. The first tick runs as
// soon as the readiness gate opens.
func (l *Loop) Run(ctx context.Context) {
	if l.ready != nil {
		select {
		case <-l.ready:
		case <-ctx.Done():
			return
		}
	}

	l.RunTick(ctx)

	ticker := time.NewTicker(l.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.logger.Debug().Msg("loop stopped")
			return
		case <-ticker.C:
			l.RunTick(ctx)
		}
	}
}

// RunTick executes exactly one tick under the loop mutex with the completion
// event lifecycle. Exposed so command handlers and tests can drive a loop
// directly.
func (l *Loop) RunTick(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.done.Clear()
	defer l.done.Set()

	observability.LoopTicks().WithLabelValues(l.name).Inc()
	if err := l.tick(ctx, l.clk.Now()); err != nil {
		observability.LoopTickFailures().WithLabelValues(l.name).Inc()
		l.logger.Error().Err(err).Msg("tick failed")
	}
}

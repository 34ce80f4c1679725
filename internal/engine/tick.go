// Package engine provides the tick-based simulation loop and the simulation
// state it drives.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultInterval is the real time between ticks at speed 1.
const DefaultInterval = 50 * time.Millisecond

// Engine drives the simulation forward.
type Engine struct {
	Tick     uint64        // Current tick counter (monotonic, never resets)
	Interval time.Duration // Simulated time per tick; also the real pacing at speed 1

	// SaveEvery fires OnSave every that many ticks; zero disables it.
	SaveEvery uint64

	OnTick func(tick uint64, dt float64) // Every tick
	OnSave func(tick uint64)             // Every SaveEvery ticks

	mu      sync.Mutex
	speed   float64
	limiter *rate.Limiter
	cancel  context.CancelFunc
}

// NewEngine creates an engine ticking every interval (DefaultInterval when
// not positive) at speed 1.
func NewEngine(interval time.Duration) *Engine {
	if interval <= 0 {
		interval = DefaultInterval
	}
	e := &Engine{
		Interval: interval,
		speed:    1,
	}
	e.limiter = rate.NewLimiter(e.limit(), 1)
	return e
}

func (e *Engine) limit() rate.Limit {
	if e.speed <= 0 {
		return 0
	}
	return rate.Every(time.Duration(float64(e.Interval) / e.speed))
}

// Speed returns the pacing multiplier; 0 means paused.
func (e *Engine) Speed() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speed
}

// SetSpeed changes the pacing multiplier. Simulated time per tick does not
// change, only how often ticks happen.
func (e *Engine) SetSpeed(speed float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if speed < 0 {
		speed = 0
	}
	e.speed = speed
	e.limiter.SetLimit(e.limit())
}

// Run starts the simulation loop. Blocks until ctx is done or Stop is called.
func (e *Engine) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.cancel = cancel
	e.mu.Unlock()
	defer cancel()

	slog.Info("simulation engine started", "tick", e.Tick, "speed", e.Speed(), "interval", e.Interval)

	for ctx.Err() == nil {
		if e.Speed() <= 0 {
			// Paused; check again shortly.
			select {
			case <-ctx.Done():
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}
		if err := e.limiter.Wait(ctx); err != nil {
			// Paused between the check and the wait.
			continue
		}
		e.step()
	}

	slog.Info("simulation engine stopped", "tick", e.Tick)
}

// Stop halts the simulation loop.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
	}
}

// step advances the simulation by one tick.
func (e *Engine) step() {
	e.Tick++
	if e.OnTick != nil {
		e.OnTick(e.Tick, e.Interval.Seconds())
	}
	if e.SaveEvery > 0 && e.Tick%e.SaveEvery == 0 && e.OnSave != nil {
		e.OnSave(e.Tick)
	}
}

package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Engine drives a Model forward in real time for live serving.
// All access to the model goes through the engine's lock.
type Engine struct {
	Interval time.Duration // Base tick interval at speed 1

	// OnTick is called under the lock after every completed tick.
	OnTick func(m *Model, rec ModelRecord)

	mu      sync.Mutex
	model   *Model
	speed   float64 // 1.0 = one tick per Interval, 0 = paused
	running bool
	stop    chan struct{}
}

// NewEngine creates an engine around m with default pacing.
func NewEngine(m *Model) *Engine {
	return &Engine{
		Interval: 200 * time.Millisecond,
		model:    m,
		speed:    1.0,
	}
}

// Run steps the model until it finishes, Stop is called or ctx is done.
// It returns the first step error, if any.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return fmt.Errorf("engine already running")
	}
	e.running = true
	e.stop = make(chan struct{})
	stop := e.stop
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	slog.Info("simulation engine started", "tick", e.Tick(), "speed", e.Speed())

	for {
		speed := e.Speed()
		wait := 100 * time.Millisecond
		if speed > 0 {
			start := time.Now()
			done, err := e.step()
			if err != nil {
				return err
			}
			if done {
				slog.Info("simulation engine finished", "tick", e.Tick())
				return nil
			}
			wait = time.Duration(float64(e.Interval)/speed) - time.Since(start)
		}

		if wait <= 0 {
			wait = time.Millisecond
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			slog.Info("simulation engine stopped", "tick", e.Tick(), "reason", ctx.Err())
			return nil
		case <-stop:
			timer.Stop()
			slog.Info("simulation engine stopped", "tick", e.Tick())
			return nil
		case <-timer.C:
		}
	}
}

// step advances the model one tick and reports whether the run is over.
func (e *Engine) step() (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.model.Running() {
		return true, nil
	}
	if err := e.model.Step(); err != nil {
		return false, err
	}
	if e.OnTick != nil {
		e.OnTick(e.model, e.model.Record())
	}
	return !e.model.Running(), nil
}

// Stop halts a running loop. It is safe to call when not running.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running && e.stop != nil {
		close(e.stop)
		e.stop = nil
	}
}

// Running reports whether the loop is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Speed returns the current speed multiplier.
func (e *Engine) Speed() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speed
}

// SetSpeed changes the speed multiplier; 0 pauses. Negative values pause.
func (e *Engine) SetSpeed(speed float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.speed = max(speed, 0)
}

// Tick returns the model's completed tick count.
func (e *Engine) Tick() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.model.Iteration()
}

// Do runs fn with exclusive access to the model.
func (e *Engine) Do(fn func(m *Model) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.model)
}

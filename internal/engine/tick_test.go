package engine

import (
	"context"
	"testing"
	"time"
)

func TestEngineRunsToCompletion(t *testing.T) {
	p := testParams(2)
	p.MaxIter = 5
	e := NewEngine(newTestModel(t, p))
	e.Interval = time.Millisecond

	ticks := 0
	e.OnTick = func(m *Model, rec ModelRecord) {
		ticks++
		if rec.Step != m.Iteration() {
			t.Errorf("record step %d, model iteration %d", rec.Step, m.Iteration())
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if e.Tick() != 6 || ticks != 6 {
		t.Errorf("Tick = %d, callbacks = %d, want 6 and 6", e.Tick(), ticks)
	}
	if e.Running() {
		t.Error("engine still reports running")
	}
}

func TestEngineStopWhilePaused(t *testing.T) {
	e := NewEngine(newTestModel(t, testParams(2)))
	e.SetSpeed(0)

	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background()) }()

	deadline := time.Now().Add(2 * time.Second)
	for !e.Running() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	e.Stop()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
	if e.Tick() != 0 {
		t.Errorf("paused engine advanced to tick %d", e.Tick())
	}
}

func TestEngineContextCancel(t *testing.T) {
	e := NewEngine(newTestModel(t, testParams(2)))
	e.Interval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestEngineSetSpeedClampsNegative(t *testing.T) {
	e := NewEngine(newTestModel(t, testParams(2)))
	e.SetSpeed(-3)
	if e.Speed() != 0 {
		t.Errorf("Speed = %v, want 0", e.Speed())
	}
}

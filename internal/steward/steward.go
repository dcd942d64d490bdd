package steward

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Steward runs observe, triage, decide and act cycles against one server.
type Steward struct {
	Observer *Observer
	Actor    *Actor
	Memory   *CycleMemory
	Policy   Policy
}

// New creates a steward for the API at baseURL.
func New(baseURL, adminKey string, policy Policy, mem *CycleMemory) (*Steward, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if mem == nil {
		mem = &CycleMemory{}
	}
	return &Steward{
		Observer: NewObserver(baseURL),
		Actor:    NewActor(baseURL, adminKey),
		Memory:   mem,
		Policy:   policy,
	}, nil
}

// Cycle executes one observe, decide, act pass and records it.
func (s *Steward) Cycle(ctx context.Context) (CycleRecord, error) {
	snap, err := s.Observer.Observe(ctx)
	if err != nil {
		return CycleRecord{}, fmt.Errorf("observe: %w", err)
	}
	health := Triage(snap, s.Policy.Threshold)
	decision := Decide(s.Policy, snap, health, s.Memory)

	rec := CycleRecord{
		Tick:        snap.Status.Tick,
		Action:      decision.Action,
		Level:       health.Level,
		Active:      health.Active,
		Legitimacy:  snap.Status.Legitimacy,
		Influencers: snap.Status.Influencers,
		Rationale:   decision.Rationale,
	}

	if decision.Intervention != nil {
		result, err := s.Actor.Act(ctx, *decision.Intervention)
		switch {
		case errors.Is(err, ErrNoCandidate):
			rec.Action = "none"
			rec.Rationale = "server reported no eligible influencer"
		case err != nil:
			return rec, fmt.Errorf("act: %w", err)
		default:
			rec.Citizen = result.Citizen
			slog.Info("intervention executed",
				"tick", rec.Tick,
				"type", result.Type,
				"citizen", result.Citizen,
				"active", rec.Active,
			)
		}
	}

	s.Memory.Record(rec)
	if err := s.Memory.Save(); err != nil {
		slog.Warn("failed to save steward memory", "error", err)
	}
	slog.Info("steward cycle complete",
		"tick", rec.Tick,
		"level", rec.Level,
		"action", rec.Action,
		"rationale", rec.Rationale,
	)
	return rec, nil
}

// Run executes a cycle immediately and then every interval until ctx is
// done. Failed cycles are logged and retried on the next interval.
func (s *Steward) Run(ctx context.Context, interval time.Duration) {
	if _, err := s.Cycle(ctx); err != nil {
		slog.Error("steward cycle failed", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if _, err := s.Cycle(ctx); err != nil {
				slog.Error("steward cycle failed", "error", err)
			}
		case <-ctx.Done():
			slog.Info("steward stopped", "reason", ctx.Err())
			return
		}
	}
}

// WaitReady polls the status endpoint with exponential backoff until it
// responds or timeout elapses.
func (s *Steward) WaitReady(ctx context.Context, timeout time.Duration) error {
	backoff := 500 * time.Millisecond
	maxBackoff := 30 * time.Second
	deadline := time.Now().Add(timeout)

	for {
		if s.Observer.Ready(ctx) {
			slog.Info("civilsim API is ready", "url", s.Observer.BaseURL)
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("API at %s not ready within %s", s.Observer.BaseURL, timeout)
		}
		slog.Info("civilsim API not ready, retrying", "backoff", backoff)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff = min(2*backoff, maxBackoff)
	}
}

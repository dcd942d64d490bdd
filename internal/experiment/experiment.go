// Package experiment runs replicate batches and one-factor parameter sweeps
// through the model's public step and query interface.
package experiment

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/civil-violence/internal/analysis"
	"github.com/talgya/civil-violence/internal/engine"
	"github.com/talgya/civil-violence/internal/entropy"
)

// Run is the outcome of one model run.
type Run struct {
	ID           uuid.UUID            `json:"id"`
	Seed         int64                `json:"seed"`
	Params       engine.Params        `json:"params"`
	Records      []engine.ModelRecord `json:"records"`
	AgentReports []engine.AgentReport `json:"agent_reports"` // final tick only
	Outbreaks    []analysis.Outbreak  `json:"outbreaks"`
	Events       []engine.Event       `json:"events"`
	Started      time.Time            `json:"started"`
	Finished     time.Time            `json:"finished"`
}

// Actives returns the ACTIVE count series of the run.
func (r *Run) Actives() []int {
	out := make([]int, len(r.Records))
	for i, rec := range r.Records {
		out[i] = rec.Active
	}
	return out
}

// Execute builds a model from params and steps it until it stops running.
// maxSteps > 0 overrides params.MaxIter. Cancellation is checked between ticks.
func Execute(ctx context.Context, params engine.Params, maxSteps int) (*Run, error) {
	if maxSteps > 0 {
		params.MaxIter = maxSteps
	}
	started := time.Now()

	m, err := engine.NewModel(params)
	if err != nil {
		return nil, fmt.Errorf("build model: %w", err)
	}
	for m.Running() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := m.Step(); err != nil {
			return nil, fmt.Errorf("run seed %d: %w", m.Seed(), err)
		}
	}

	return Capture(m, started), nil
}

// Capture snapshots the current state of m as a Run. It is used for runs
// driven elsewhere, such as a live engine.
func Capture(m *engine.Model, started time.Time) *Run {
	params := m.Params()
	seed := m.Seed()
	params.Seed = &seed
	run := &Run{
		ID:           uuid.New(),
		Seed:         seed,
		Params:       params,
		Records:      m.Collector().Records(),
		AgentReports: m.AgentReports(),
		Events:       append([]engine.Event(nil), m.Events...),
		Started:      started,
		Finished:     time.Now(),
	}
	run.Outbreaks = analysis.Detect(run.Actives(), params.OutbreakThreshold)
	return run
}

// Replicates runs n independent models one after another. With a seed set,
// replicate i uses seed+i; otherwise a fresh base seed is drawn.
func Replicates(ctx context.Context, params engine.Params, n, maxSteps int) ([]*Run, error) {
	base := entropy.CryptoSeed()
	if params.Seed != nil {
		base = *params.Seed
	}

	runs := make([]*Run, 0, n)
	for i := 0; i < n; i++ {
		p := params
		seed := base + int64(i)
		p.Seed = &seed

		run, err := Execute(ctx, p, maxSteps)
		if err != nil {
			return runs, fmt.Errorf("replicate %d: %w", i, err)
		}
		slog.Debug("replicate finished", "replicate", i, "seed", seed, "outbreaks", len(run.Outbreaks))
		runs = append(runs, run)
	}
	return runs, nil
}

// Point is one parameter value of a sweep.
type Point struct {
	Param   string           `json:"param"`
	Value   float64          `json:"value"`
	Runs    []*Run           `json:"-"`
	Summary analysis.Summary `json:"summary"`
}

// Sweep varies one parameter over values and runs n replicates at each.
func Sweep(ctx context.Context, base engine.Params, param string, values []float64, n, maxSteps int) ([]Point, error) {
	points := make([]Point, 0, len(values))
	for _, v := range values {
		p := base
		if err := ApplyParam(&p, param, v); err != nil {
			return points, err
		}
		runs, err := Replicates(ctx, p, n, maxSteps)
		if err != nil {
			return points, fmt.Errorf("sweep %s=%v: %w", param, v, err)
		}

		series := make([][]int, len(runs))
		for i, r := range runs {
			series[i] = r.Actives()
		}
		pt := Point{
			Param:   param,
			Value:   v,
			Runs:    runs,
			Summary: analysis.Summarize(series, p.OutbreakThreshold),
		}
		slog.Info("sweep point",
			"param", param,
			"value", fmt.Sprintf("%.3f", v),
			"mean_outbreaks", fmt.Sprintf("%.3f", pt.Summary.MeanCount),
			"max_peak", pt.Summary.MaxPeak,
		)
		points = append(points, pt)
	}
	return points, nil
}

// Linspace returns n evenly spaced values from lo to hi inclusive.
func Linspace(lo, hi float64, n int) []float64 {
	switch {
	case n <= 0:
		return nil
	case n == 1:
		return []float64{lo}
	}
	out := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + step*float64(i)
	}
	out[n-1] = hi
	return out
}

var setters = map[string]func(p *engine.Params, v float64){
	"agent_density":          func(p *engine.Params, v float64) { p.AgentDensity = v },
	"active_agent_density":   func(p *engine.Params, v float64) { p.ActiveAgentDensity = v },
	"cop_density":            func(p *engine.Params, v float64) { p.CopDensity = v },
	"agent_vision":           func(p *engine.Params, v float64) { p.AgentVision = int(v) },
	"cop_vision":             func(p *engine.Params, v float64) { p.CopVision = int(v) },
	"initial_legitimacy":     func(p *engine.Params, v float64) { p.Legitimacy = v },
	"k":                      func(p *engine.Params, v float64) { p.K = v },
	"max_jail_term":          func(p *engine.Params, v float64) { p.MaxJailTerm = int(v) },
	"active_threshold":       func(p *engine.Params, v float64) { p.ActiveThreshold = v },
	"p":                      func(p *engine.Params, v float64) { p.P = v },
	"p_ws":                   func(p *engine.Params, v float64) { p.PWS = v },
	"inf_threshold":          func(p *engine.Params, v float64) { p.InfThreshold = int(v) },
	"outbreak_threshold":     func(p *engine.Params, v float64) { p.OutbreakThreshold = int(v) },
	"intervention_threshold": func(p *engine.Params, v float64) { p.InterventionThreshold = int(v) },
	"hardship_noise_scale":   func(p *engine.Params, v float64) { p.HardshipNoiseScale = v },
}

// ApplyParam sets the named parameter to v. Integer parameters are truncated.
func ApplyParam(p *engine.Params, name string, v float64) error {
	set, ok := setters[name]
	if !ok {
		return fmt.Errorf("unknown sweep parameter %q (valid: %v)", name, SweepParams())
	}
	set(p, v)
	return nil
}

// SweepParams lists the parameters ApplyParam accepts.
func SweepParams() []string {
	names := make([]string, 0, len(setters))
	for name := range setters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Package engine runs the civil-violence model: population construction, the
// random-activation tick, legitimacy, outbreak detection and influencer
// interventions.
package engine

import (
	"fmt"
	"log/slog"

	"github.com/talgya/civil-violence/internal/agents"
	"github.com/talgya/civil-violence/internal/entropy"
	"github.com/talgya/civil-violence/internal/social"
	"github.com/talgya/civil-violence/internal/world"
)

// maxEvents bounds the event log.
const maxEvents = 1000

// Event is a notable occurrence in a run.
type Event struct {
	Tick        int    `json:"tick"`
	Description string `json:"description"`
	Category    string `json:"category"` // "outbreak", "intervention", "arrest", etc.
}

// Model owns the population, the grid, the network and the scheduler.
// It is mutated only through Step and the influencer operations.
type Model struct {
	params  Params
	rules   agents.Rules
	rng     *entropy.Stream
	grid    *world.Grid[agents.AgentID]
	network *social.Network[agents.AgentID]
	sched   *Scheduler

	citizens     []*agents.Citizen // population order
	citizenIndex map[agents.AgentID]*agents.Citizen
	cops         []*agents.Cop

	legitimacy     float64
	tracker        legitimacyTracker
	jailedThisTick int
	iteration      int
	running        bool

	outbreak     hysteresis
	outbreaks    int
	intervention hysteresis
	influencers  []*agents.Citizen

	collector *DataCollector
	Events    []Event
}

var _ agents.Env = (*Model)(nil)

// NewModel validates params and builds a ready-to-step model.
func NewModel(params Params) (*Model, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	grid, err := world.NewGrid[agents.AgentID](params.Width, params.Height)
	if err != nil {
		return nil, fmt.Errorf("build grid: %w", err)
	}

	m := &Model{
		params:       params,
		rules:        params.Rules(),
		rng:          entropy.NewStreamFrom(params.Seed),
		grid:         grid,
		sched:        NewScheduler(),
		citizenIndex: make(map[agents.AgentID]*agents.Citizen),
		legitimacy:   params.Legitimacy,
		tracker:      legitimacyTracker{initial: params.Legitimacy},
		running:      true,
		outbreak:     hysteresis{threshold: params.OutbreakThreshold},
		intervention: hysteresis{threshold: params.InterventionThreshold},
		collector:    NewDataCollector(params.CollectAgentReports),
	}

	m.populate()

	ids := make([]agents.AgentID, len(m.citizens))
	for i, c := range m.citizens {
		ids[i] = c.ID
	}
	m.network = social.Generate(ids, params.NetworkConfig(), m.rng)
	for _, c := range m.citizens {
		if node, ok := m.network.NodeOf(c.ID); ok {
			c.Node = node
		}
	}
	m.SetInfluencers(params.InfThreshold)

	m.collector.Collect(m)

	slog.Info("model built",
		"seed", m.rng.Seed(),
		"grid", fmt.Sprintf("%dx%d", params.Width, params.Height),
		"citizens", len(m.citizens),
		"cops", len(m.cops),
		"active", m.CountState(agents.StateActive),
		"topology", params.GraphType,
		"edges", m.network.EdgeCount(),
		"influencers", len(m.influencers),
	)
	return m, nil
}

// populate walks the grid row by row and fills each cell from one draw.
func (m *Model) populate() {
	var field *world.HardshipField
	if m.params.HardshipNoiseScale > 0 {
		field = world.NewHardshipField(m.rng.Int63(), m.params.HardshipNoiseScale)
	}
	spawner := agents.NewSpawner(m.rng, field)
	tmpl := agents.CitizenTemplate{
		Vision:              m.params.AgentVision,
		ActivationThreshold: m.params.ActiveThreshold,
	}

	copCut := m.params.CopDensity
	activeCut := copCut + m.params.ActiveAgentDensity
	citizenCut := activeCut + m.params.AgentDensity

	for y := 0; y < m.params.Height; y++ {
		for x := 0; x < m.params.Width; x++ {
			pos := world.Coord{X: x, Y: y}
			r := m.rng.Float()
			switch {
			case r < copCut:
				cop := spawner.SpawnCop(pos, m.params.CopVision)
				m.cops = append(m.cops, cop)
				m.grid.Place(cop.ID, pos)
				m.sched.Add(cop)
			case r < citizenCut:
				c := spawner.SpawnCitizen(pos, tmpl, r < activeCut)
				m.citizens = append(m.citizens, c)
				m.citizenIndex[c.ID] = c
				m.grid.Place(c.ID, pos)
				m.sched.Add(c)
			}
		}
	}
}

// Step advances the model by one tick. An agent error aborts the tick and
// leaves the model in its partially updated state.
func (m *Model) Step() error {
	m.jailedThisTick = 0
	if err := m.sched.Step(m); err != nil {
		return fmt.Errorf("tick %d: %w", m.iteration+1, err)
	}
	m.iteration++

	m.updateLegitimacy()
	m.monitor()
	m.collector.Collect(m)

	if m.iteration > m.params.MaxIter {
		m.running = false
		slog.Info("run complete", "iterations", m.iteration, "outbreaks", m.outbreaks)
	}
	return nil
}

func (m *Model) updateLegitimacy() {
	free := m.CountState(agents.StateActive) + m.CountState(agents.StateQuiescent)
	rate := float64(m.jailedThisTick) / float64(max(free, 1))
	m.legitimacy = m.tracker.update(rate)

	slog.Debug("legitimacy updated",
		"tick", m.iteration,
		"jailed", m.jailedThisTick,
		"rate", fmt.Sprintf("%.3f", rate),
		"legitimacy", fmt.Sprintf("%.3f", m.legitimacy),
	)
}

// monitor runs the outbreak counter and the influencer intervention latch.
func (m *Model) monitor() {
	active := m.CountState(agents.StateActive)

	if started, ended := m.outbreak.observe(active); started {
		m.outbreaks++
		m.emit("outbreak", fmt.Sprintf("Outbreak %d began with %d active citizens", m.outbreaks, active))
		slog.Info("outbreak started", "tick", m.iteration, "active", active, "count", m.outbreaks)
	} else if ended {
		m.emit("outbreak", fmt.Sprintf("Outbreak %d subsided to %d active citizens", m.outbreaks, active))
		slog.Info("outbreak ended", "tick", m.iteration, "active", active)
	}

	if !m.params.TackleInf {
		return
	}
	started, ended := m.intervention.observe(active)
	switch {
	case started:
		if _, err := m.JailInfluencer(); err != nil {
			slog.Warn("intervention failed", "tick", m.iteration, "active", active, "error", err)
		}
	case ended:
		slog.Info("intervention lifted", "tick", m.iteration, "active", active)
	}
}

func (m *Model) emit(category, description string) {
	m.Events = append(m.Events, Event{
		Tick:        m.iteration,
		Description: description,
		Category:    category,
	})
	if len(m.Events) > maxEvents {
		m.Events = m.Events[len(m.Events)-maxEvents:]
	}
}

// Grid implements agents.Env.
func (m *Model) Grid() *world.Grid[agents.AgentID] { return m.grid }

// Network implements agents.Env.
func (m *Model) Network() *social.Network[agents.AgentID] { return m.network }

// Rand implements agents.Env.
func (m *Model) Rand() *entropy.Stream { return m.rng }

// Legitimacy returns the current legitimacy.
func (m *Model) Legitimacy() float64 { return m.legitimacy }

// Rules implements agents.Env.
func (m *Model) Rules() agents.Rules { return m.rules }

// Citizen returns the citizen with id; ok is false for cops and unknown ids.
func (m *Model) Citizen(id agents.AgentID) (*agents.Citizen, bool) {
	c, ok := m.citizenIndex[id]
	return c, ok
}

// RecordArrest implements agents.Env.
func (m *Model) RecordArrest(cop *agents.Cop, c *agents.Citizen) {
	m.jailedThisTick++
	slog.Debug("arrest", "tick", m.iteration+1, "cop", cop.ID, "citizen", c.ID, "sentence", c.JailSentence)
}

// RecordRelease implements agents.Env.
func (m *Model) RecordRelease(c *agents.Citizen) {
	slog.Debug("release", "tick", m.iteration+1, "citizen", c.ID, "pos", c.Position)
}

// Params returns the parameters the model was built with.
func (m *Model) Params() Params { return m.params }

// Seed returns the seed of the model's random stream.
func (m *Model) Seed() int64 { return m.rng.Seed() }

// Running reports whether the caller should keep stepping.
func (m *Model) Running() bool { return m.running }

// Iteration returns the number of completed ticks.
func (m *Model) Iteration() int { return m.iteration }

// OutbreakCount returns the number of outbreaks so far.
func (m *Model) OutbreakCount() int { return m.outbreaks }

// InOutbreak reports whether an outbreak is in progress.
func (m *Model) InOutbreak() bool { return m.outbreak.on }

// InterventionActive reports whether the influencer intervention is in effect.
func (m *Model) InterventionActive() bool { return m.intervention.on }

// JailingHistory returns the jailing-rate window, most recent first.
func (m *Model) JailingHistory() []float64 { return m.tracker.history() }

// Collector returns the run's data collector.
func (m *Model) Collector() *DataCollector { return m.collector }

// Citizens returns the citizen population in construction order.
func (m *Model) Citizens() []*agents.Citizen {
	out := make([]*agents.Citizen, len(m.citizens))
	copy(out, m.citizens)
	return out
}

// Cops returns all cops.
func (m *Model) Cops() []*agents.Cop {
	out := make([]*agents.Cop, len(m.cops))
	copy(out, m.cops)
	return out
}

// CountState returns the number of citizens in state s.
func (m *Model) CountState(s agents.State) int {
	n := 0
	for _, c := range m.citizens {
		if c.State == s {
			n++
		}
	}
	return n
}

// Record returns the model-level reporters for the current tick.
func (m *Model) Record() ModelRecord {
	rec := ModelRecord{
		Step:        m.iteration,
		Legitimacy:  m.legitimacy,
		Outbreaks:   m.outbreaks,
		Influencers: len(m.influencers),
	}
	for _, c := range m.citizens {
		switch c.State {
		case agents.StateQuiescent:
			rec.Quiescent++
		case agents.StateActive:
			rec.Active++
		case agents.StateJailed:
			rec.Jailed++
		}
	}
	return rec
}

// AgentReports returns the per-citizen reporters for the current tick.
func (m *Model) AgentReports() []AgentReport {
	out := make([]AgentReport, len(m.citizens))
	for i, c := range m.citizens {
		degree := 0
		if c.Node >= 0 {
			degree = m.network.Degree(c.Node)
		}
		out[i] = AgentReport{
			Step:               m.iteration,
			AgentID:            c.ID,
			State:              c.State,
			Hardship:           c.Hardship,
			HardshipContagious: c.HardshipContagious,
			Grievance:          c.Grievance,
			IsInfluencer:       c.IsInfluencer,
			NetworkDegree:      degree,
			Position:           c.Position,
			OnGrid:             m.grid.Contains(c.ID),
		}
	}
	return out
}

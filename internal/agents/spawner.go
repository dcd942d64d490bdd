// Agent spawning: draws citizen traits and issues ids.
package agents

import (
	"github.com/talgya/civil-violence/internal/entropy"
	"github.com/talgya/civil-violence/internal/world"
)

// CitizenTemplate holds the population-wide citizen parameters.
type CitizenTemplate struct {
	Vision              int
	ActivationThreshold float64
}

// Spawner creates agents for the simulation. All trait draws come from the
// model's stream so a seed fixes the whole population.
type Spawner struct {
	rng    *entropy.Stream
	field  *world.HardshipField // nil: endogenous hardship is uniform
	nextID AgentID
}

// NewSpawner creates a spawner drawing from rng. field may be nil.
func NewSpawner(rng *entropy.Stream, field *world.HardshipField) *Spawner {
	return &Spawner{
		rng:    rng,
		field:  field,
		nextID: 1,
	}
}

func (s *Spawner) issue() AgentID {
	id := s.nextID
	s.nextID++
	return id
}

// SpawnCitizen creates a citizen at pos. Traits are drawn in a fixed order:
// endogenous hardship, risk aversion, susceptibility, influence, expression
// intensity. A zero activation threshold forces the citizen to start active.
func (s *Spawner) SpawnCitizen(pos world.Coord, tmpl CitizenTemplate, active bool) *Citizen {
	c := &Citizen{
		ID:                  s.issue(),
		Position:            pos,
		Node:                -1,
		ActivationThreshold: tmpl.ActivationThreshold,
		Vision:              tmpl.Vision,
		Jailable:            true,
	}

	c.HardshipEndogenous = s.rng.Float()
	if s.field != nil {
		c.HardshipEndogenous = s.field.At(pos)
	}
	c.RiskAversion = s.rng.Float()
	c.Susceptibility = s.rng.Float()
	c.Influence = s.rng.Float()
	c.ExpressionIntensity = s.rng.Float()
	c.UpdateHardship()

	if active || tmpl.ActivationThreshold == 0 {
		c.State = StateActive
	}
	return c
}

// SpawnCop creates a cop at pos.
func (s *Spawner) SpawnCop(pos world.Coord, vision int) *Cop {
	return &Cop{
		ID:       s.issue(),
		Position: pos,
		Vision:   vision,
	}
}

// Per-tick agent rules. Citizens weigh grievance against the risk of arrest;
// cops arrest an active citizen in sight or keep patrolling.
package agents

import (
	"fmt"
	"math"

	"github.com/talgya/civil-violence/internal/entropy"
	"github.com/talgya/civil-violence/internal/world"
)

// Step runs one tick for the citizen.
func (c *Citizen) Step(env Env) error {
	if c.Jailed() {
		return c.serveSentence(env)
	}

	// Contagion stops once hardship saturates.
	if c.Hardship < 1 {
		c.HardshipContagious += c.ReceivedHardship(env)
	}
	c.UpdateHardship()

	c.Grievance = c.Hardship * (1 - env.Legitimacy())

	grid := env.Grid()
	hood := grid.Neighborhood(c.Position, c.Vision)
	cops, actives := countVisible(env, grid.Occupants(hood))
	c.ArrestProbability = ArrestProbability(env.Rules().K, cops, actives)
	c.NetRisk = c.RiskAversion * c.ArrestProbability

	if c.Grievance-c.NetRisk > c.ActivationThreshold {
		if c.State != StateActive {
			c.State = StateActive
		}
	} else if c.State != StateQuiescent {
		c.State = StateQuiescent
	}

	if !env.Rules().Movement {
		return nil
	}
	if dest, ok := entropy.Pick(env.Rand(), grid.EmptyIn(hood)); ok {
		if err := grid.Move(c.ID, dest); err != nil {
			return fmt.Errorf("citizen %d: %w", c.ID, err)
		}
		c.Position = dest
	}
	return nil
}

// ReceivedHardship returns the hardship transmitted this tick by the
// citizen's active network neighbors.
func (c *Citizen) ReceivedHardship(env Env) float64 {
	received := HardshipBase
	net := env.Network()
	if net == nil || c.Node < 0 {
		return received
	}
	for _, node := range net.Neighbors(c.Node) {
		id, ok := net.Member(node)
		if !ok {
			continue
		}
		n, ok := env.Citizen(id)
		if !ok || n.State != StateActive {
			continue
		}
		received += DistanceConst * TimeStepConst * TransmissionRate *
			n.Influence * n.ExpressionIntensity * c.Susceptibility
	}
	return received
}

// UpdateHardship recomputes hardship from its two sources, capped at 1.
func (c *Citizen) UpdateHardship() {
	c.Hardship = math.Min(1, c.HardshipEndogenous+c.HardshipContagious)
}

// ArrestProbability is 1 - exp(-k * floor(cops / (actives + 1))). The +1
// counts the citizen itself among the actives.
func ArrestProbability(k float64, cops, actives int) float64 {
	ratio := math.Floor(float64(cops) / float64(actives+1))
	return 1 - math.Exp(-k*ratio)
}

func countVisible(env Env, occupants []AgentID) (cops, actives int) {
	for _, id := range occupants {
		n, ok := env.Citizen(id)
		if !ok {
			cops++
			continue
		}
		if n.State == StateActive {
			actives++
		}
	}
	return cops, actives
}

// serveSentence counts down the sentence and puts the citizen back on a
// random empty cell when it runs out.
func (c *Citizen) serveSentence(env Env) error {
	c.JailSentence--
	if c.JailSentence > 0 {
		return nil
	}

	grid := env.Grid()
	dest, ok := entropy.Pick(env.Rand(), grid.EmptyCells())
	if !ok {
		// Leave the citizen jailed so the population invariants still hold.
		c.JailSentence = 1
		return fmt.Errorf("release citizen %d: %w", c.ID, world.ErrNoEmptyCell)
	}

	c.JailSentence = 0
	c.State = StateQuiescent
	c.HardshipContagious = 0
	c.UpdateHardship()
	grid.Place(c.ID, dest)
	c.Position = dest
	env.RecordRelease(c)
	return nil
}

// Step runs one tick for the cop.
func (p *Cop) Step(env Env) error {
	grid := env.Grid()
	hood := grid.Neighborhood(p.Position, p.Vision)

	var suspects []*Citizen
	for _, id := range grid.Occupants(hood) {
		if c, ok := env.Citizen(id); ok && c.Arrestable() {
			suspects = append(suspects, c)
		}
	}

	rng := env.Rand()
	if target, ok := entropy.Pick(rng, suspects); ok {
		return p.arrest(env, target)
	}

	if !env.Rules().Movement {
		return nil
	}
	if dest, ok := entropy.Pick(rng, grid.EmptyIn(hood)); ok {
		if err := grid.Move(p.ID, dest); err != nil {
			return fmt.Errorf("cop %d: %w", p.ID, err)
		}
		p.Position = dest
	}
	return nil
}

func (p *Cop) arrest(env Env, c *Citizen) error {
	rules := env.Rules()
	sentence := env.Rand().IntRange(1, rules.MaxJailTerm)
	vacated := c.Position

	if err := env.Grid().Remove(c.ID); err != nil {
		return fmt.Errorf("cop %d arrest: %w", p.ID, err)
	}
	c.Jail(sentence)

	if rules.Movement {
		if err := env.Grid().Move(p.ID, vacated); err != nil {
			return fmt.Errorf("cop %d: %w", p.ID, err)
		}
		p.Position = vacated
	}

	env.RecordArrest(p, c)
	return nil
}

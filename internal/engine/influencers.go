package engine

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/talgya/civil-violence/internal/agents"
	"github.com/talgya/civil-violence/internal/entropy"
)

// ErrNoInfluencer is returned when no influencer is eligible for an intervention.
var ErrNoInfluencer = errors.New("no eligible influencer")

// SetInfluencers flags every citizen whose network degree exceeds threshold
// and rebuilds the influencer registry. Previous flags are cleared.
func (m *Model) SetInfluencers(threshold int) {
	m.influencers = m.influencers[:0]
	for _, c := range m.citizens {
		c.IsInfluencer = c.Node >= 0 && m.network.Degree(c.Node) > threshold
		if c.IsInfluencer {
			m.influencers = append(m.influencers, c)
		}
	}
}

// InfluencerCount returns the size of the influencer registry.
func (m *Model) InfluencerCount() int { return len(m.influencers) }

// JailInfluencer arrests one random influencer that is not already jailed.
// The arrest does not count toward the tick's jailing rate.
func (m *Model) JailInfluencer() (*agents.Citizen, error) {
	var free []*agents.Citizen
	for _, c := range m.influencers {
		if !c.Jailed() {
			free = append(free, c)
		}
	}
	c, ok := entropy.Pick(m.rng, free)
	if !ok {
		return nil, ErrNoInfluencer
	}

	sentence := m.rng.IntRange(1, m.params.MaxJailTerm)
	if err := m.grid.Remove(c.ID); err != nil {
		return nil, fmt.Errorf("jail influencer %d: %w", c.ID, err)
	}
	c.Jail(sentence)

	m.emit("intervention", fmt.Sprintf("Influencer %d jailed for %d ticks", c.ID, sentence))
	slog.Info("influencer jailed", "tick", m.iteration, "citizen", c.ID, "sentence", sentence)
	return c, nil
}

// RemoveInfluencer permanently deletes one random influencer from the
// population, the grid, the scheduler and the network.
func (m *Model) RemoveInfluencer() (*agents.Citizen, error) {
	idx := len(m.influencers)
	if idx == 0 {
		return nil, ErrNoInfluencer
	}
	idx = m.rng.Intn(idx)
	c := m.influencers[idx]

	if m.grid.Contains(c.ID) {
		if err := m.grid.Remove(c.ID); err != nil {
			return nil, fmt.Errorf("remove influencer %d: %w", c.ID, err)
		}
	}
	if c.Node >= 0 && m.network.Has(c.Node) {
		if err := m.network.RemoveNode(c.Node); err != nil {
			return nil, fmt.Errorf("remove influencer %d: %w", c.ID, err)
		}
	}
	m.sched.Remove(c.ID)

	m.influencers = append(m.influencers[:idx], m.influencers[idx+1:]...)
	for i, other := range m.citizens {
		if other == c {
			m.citizens = append(m.citizens[:i], m.citizens[i+1:]...)
			break
		}
	}
	delete(m.citizenIndex, c.ID)
	c.Node = -1
	c.IsInfluencer = false

	m.emit("intervention", fmt.Sprintf("Influencer %d removed", c.ID))
	slog.Info("influencer removed", "tick", m.iteration, "citizen", c.ID, "population", len(m.citizens))
	return c, nil
}

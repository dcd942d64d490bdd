package engine

import (
	"fmt"

	"github.com/talgya/civil-violence/internal/agents"
)

// Scheduler activates every agent once per tick in a fresh random order.
// Agents act one at a time and see the changes made earlier in the tick.
type Scheduler struct {
	agents []agents.Agent
	index  map[agents.AgentID]int
}

// NewScheduler creates an empty scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{index: make(map[agents.AgentID]int)}
}

// Add schedules a. Adding an already scheduled agent is a no-op.
func (s *Scheduler) Add(a agents.Agent) {
	if _, ok := s.index[a.AgentID()]; ok {
		return
	}
	s.index[a.AgentID()] = len(s.agents)
	s.agents = append(s.agents, a)
}

// Remove unschedules the agent with id. It reports whether it was scheduled.
func (s *Scheduler) Remove(id agents.AgentID) bool {
	i, ok := s.index[id]
	if !ok {
		return false
	}
	copy(s.agents[i:], s.agents[i+1:])
	s.agents[len(s.agents)-1] = nil
	s.agents = s.agents[:len(s.agents)-1]
	delete(s.index, id)
	for j := i; j < len(s.agents); j++ {
		s.index[s.agents[j].AgentID()] = j
	}
	return true
}

// Has reports whether id is scheduled.
func (s *Scheduler) Has(id agents.AgentID) bool {
	_, ok := s.index[id]
	return ok
}

// Len returns the number of scheduled agents.
func (s *Scheduler) Len() int {
	return len(s.agents)
}

// Agents returns the scheduled agents in insertion order.
func (s *Scheduler) Agents() []agents.Agent {
	out := make([]agents.Agent, len(s.agents))
	copy(out, s.agents)
	return out
}

// Step activates each agent once. The first agent error aborts the tick.
func (s *Scheduler) Step(env agents.Env) error {
	batch := s.Agents()
	for _, i := range env.Rand().Perm(len(batch)) {
		a := batch[i]
		if !s.Has(a.AgentID()) {
			continue
		}
		if err := a.Step(env); err != nil {
			return fmt.Errorf("%s %d: %w", a.Kind(), a.AgentID(), err)
		}
	}
	return nil
}

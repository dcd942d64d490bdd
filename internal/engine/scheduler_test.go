package engine

import (
	"errors"
	"testing"

	"github.com/talgya/civil-violence/internal/agents"
	"github.com/talgya/civil-violence/internal/entropy"
)

// stubEnv satisfies agents.Env with only a random stream.
type stubEnv struct {
	agents.Env
	rng *entropy.Stream
}

func (e stubEnv) Rand() *entropy.Stream { return e.rng }

type countingAgent struct {
	id    agents.AgentID
	steps *[]agents.AgentID
	err   error
	onRun func()
}

func (a *countingAgent) AgentID() agents.AgentID { return a.id }
func (a *countingAgent) Kind() agents.Kind       { return agents.KindCop }

func (a *countingAgent) Step(agents.Env) error {
	*a.steps = append(*a.steps, a.id)
	if a.onRun != nil {
		a.onRun()
	}
	return a.err
}

func TestSchedulerActivatesEachOnce(t *testing.T) {
	var steps []agents.AgentID
	s := NewScheduler()
	for id := agents.AgentID(1); id <= 20; id++ {
		s.Add(&countingAgent{id: id, steps: &steps})
	}
	s.Add(&countingAgent{id: 5, steps: &steps}) // duplicate id ignored

	if s.Len() != 20 {
		t.Fatalf("Len = %d, want 20", s.Len())
	}
	if err := s.Step(stubEnv{rng: entropy.NewStream(1)}); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if len(steps) != 20 {
		t.Fatalf("%d activations, want 20", len(steps))
	}
	seen := map[agents.AgentID]bool{}
	inOrder := true
	for i, id := range steps {
		if seen[id] {
			t.Errorf("agent %d activated twice", id)
		}
		seen[id] = true
		if id != agents.AgentID(i+1) {
			inOrder = false
		}
	}
	if inOrder {
		t.Error("activation order matches insertion order; expected a shuffle")
	}
}

func TestSchedulerOrderDependsOnSeed(t *testing.T) {
	run := func(seed int64) []agents.AgentID {
		var steps []agents.AgentID
		s := NewScheduler()
		for id := agents.AgentID(1); id <= 10; id++ {
			s.Add(&countingAgent{id: id, steps: &steps})
		}
		if err := s.Step(stubEnv{rng: entropy.NewStream(seed)}); err != nil {
			t.Fatalf("Step: %v", err)
		}
		return steps
	}
	a, b := run(4), run(4)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same seed gave different orders: %v vs %v", a, b)
		}
	}
}

func TestSchedulerRemove(t *testing.T) {
	var steps []agents.AgentID
	s := NewScheduler()
	for id := agents.AgentID(1); id <= 5; id++ {
		s.Add(&countingAgent{id: id, steps: &steps})
	}
	if !s.Remove(3) {
		t.Fatal("Remove(3) = false")
	}
	if s.Remove(3) {
		t.Error("second Remove(3) = true")
	}
	if s.Has(3) || s.Len() != 4 {
		t.Errorf("Has(3)=%v Len=%d", s.Has(3), s.Len())
	}
	for i, a := range s.Agents() {
		if want := []agents.AgentID{1, 2, 4, 5}[i]; a.AgentID() != want {
			t.Errorf("Agents()[%d] = %d, want %d", i, a.AgentID(), want)
		}
	}
}

func TestSchedulerSkipsAgentsRemovedMidTick(t *testing.T) {
	var steps []agents.AgentID
	s := NewScheduler()
	for id := agents.AgentID(1); id <= 2; id++ {
		s.Add(&countingAgent{id: id, steps: &steps})
	}
	// Whichever agent goes first removes the other.
	for _, a := range s.Agents() {
		ca := a.(*countingAgent)
		other := 3 - ca.id
		ca.onRun = func() { s.Remove(other) }
	}
	if err := s.Step(stubEnv{rng: entropy.NewStream(2)}); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if len(steps) != 1 {
		t.Errorf("activations = %v, want exactly one", steps)
	}
}

func TestSchedulerStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	var steps []agents.AgentID
	s := NewScheduler()
	s.Add(&countingAgent{id: 1, steps: &steps, err: boom})
	err := s.Step(stubEnv{rng: entropy.NewStream(1)})
	if !errors.Is(err, boom) {
		t.Errorf("Step err = %v, want wrapped boom", err)
	}
}

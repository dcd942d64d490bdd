package engine

import (
	"errors"
	"reflect"
	"testing"

	"github.com/talgya/civil-violence/internal/agents"
	"github.com/talgya/civil-violence/internal/social"
)

func seed(v int64) *int64 { return &v }

func testParams(s int64) Params {
	p := DefaultParams()
	p.Width, p.Height = 20, 20
	p.AgentDensity = 0.7
	p.CopDensity = 0.06
	p.AgentVision, p.CopVision = 3, 3
	p.Legitimacy = 0.7
	p.MaxJailTerm = 10
	p.GraphType = social.TopologyRandom
	p.P = 0.05
	p.InfThreshold = 3
	p.MaxIter = 40
	p.Seed = seed(s)
	return p
}

// saturatedParams fills a 10x10 grid with citizens that all start active.
func saturatedParams(s int64) Params {
	p := testParams(s)
	p.Width, p.Height = 10, 10
	p.AgentDensity = 1
	p.CopDensity = 0
	p.ActiveThreshold = 0
	p.GraphType = social.TopologyNone
	return p
}

func newTestModel(t *testing.T, p Params) *Model {
	t.Helper()
	m, err := NewModel(p)
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}
	return m
}

func stepN(t *testing.T, m *Model, n int, check func(tick int)) {
	t.Helper()
	for i := 1; i <= n && m.Running(); i++ {
		if err := m.Step(); err != nil {
			t.Fatalf("Step %d: %v", i, err)
		}
		if check != nil {
			check(i)
		}
	}
}

func TestNewModelRejectsBadParams(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *Params)
	}{
		{"densities over one", func(p *Params) { p.AgentDensity, p.CopDensity = 0.8, 0.3 }},
		{"zero width", func(p *Params) { p.Width = 0 }},
		{"zero jail term", func(p *Params) { p.MaxJailTerm = 0 }},
		{"negative vision", func(p *Params) { p.CopVision = -1 }},
		{"legitimacy out of range", func(p *Params) { p.Legitimacy = 1.5 }},
		{"unknown topology", func(p *Params) { p.GraphType = social.Topology(9) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testParams(1)
			tt.mutate(&p)
			if _, err := NewModel(p); !errors.Is(err, ErrInvalidParams) {
				t.Errorf("NewModel err = %v, want ErrInvalidParams", err)
			}
		})
	}
}

func TestNewModelPopulation(t *testing.T) {
	m := newTestModel(t, testParams(3))
	if len(m.Citizens()) == 0 || len(m.Cops()) == 0 {
		t.Fatalf("citizens=%d cops=%d, want both non-empty", len(m.Citizens()), len(m.Cops()))
	}
	if got, want := m.Grid().Count(), len(m.Citizens())+len(m.Cops()); got != want {
		t.Errorf("grid holds %d agents, want %d", got, want)
	}
	if m.Network().NodeCount() != len(m.Citizens()) {
		t.Errorf("network has %d nodes, want %d", m.Network().NodeCount(), len(m.Citizens()))
	}
	for i, c := range m.Citizens() {
		if c.Node != int64(i) {
			t.Fatalf("citizen %d has node %d, want %d", c.ID, c.Node, i)
		}
	}
	if m.Legitimacy() != 0.7 {
		t.Errorf("initial legitimacy = %v, want 0.7", m.Legitimacy())
	}
	if recs := m.Collector().Records(); len(recs) != 1 || recs[0].Step != 0 {
		t.Errorf("construction records = %+v, want one step-0 record", recs)
	}
}

func TestPopulationConserved(t *testing.T) {
	m := newTestModel(t, testParams(5))
	total := len(m.Citizens())
	cops := len(m.Cops())

	stepN(t, m, 40, func(tick int) {
		rec := m.Record()
		if sum := rec.Quiescent + rec.Active + rec.Jailed; sum != total {
			t.Fatalf("tick %d: state counts sum to %d, want %d", tick, sum, total)
		}
		if got, want := m.Grid().Count(), cops+total-rec.Jailed; got != want {
			t.Fatalf("tick %d: grid holds %d agents, want %d", tick, got, want)
		}
	})
}

func TestJailInvariant(t *testing.T) {
	p := testParams(8)
	p.CopDensity = 0.15
	p.Legitimacy = 0.3
	m := newTestModel(t, p)

	sawJailed := false
	stepN(t, m, 40, func(tick int) {
		for _, c := range m.Citizens() {
			jailed := c.State == agents.StateJailed
			if jailed != (c.JailSentence > 0) {
				t.Fatalf("tick %d: citizen %d state %v with sentence %d", tick, c.ID, c.State, c.JailSentence)
			}
			if jailed == m.Grid().Contains(c.ID) {
				t.Fatalf("tick %d: citizen %d jailed=%v but on grid=%v", tick, c.ID, jailed, !jailed)
			}
			if jailed {
				sawJailed = true
			}
		}
	})
	if !sawJailed {
		t.Error("no arrests happened; scenario does not exercise jailing")
	}
}

func TestLegitimacyBounds(t *testing.T) {
	p := testParams(13)
	p.CopDensity = 0.2
	p.AgentDensity = 0.6
	p.Legitimacy = 0.5
	m := newTestModel(t, p)

	stepN(t, m, 40, func(tick int) {
		if l := m.Legitimacy(); l < 0 || l > p.Legitimacy {
			t.Fatalf("tick %d: legitimacy %v outside [0, %v]", tick, l, p.Legitimacy)
		}
	})
}

func TestDeterministic(t *testing.T) {
	p := testParams(21)
	p.CollectAgentReports = true

	a := newTestModel(t, p)
	b := newTestModel(t, p)
	stepN(t, a, 25, nil)
	stepN(t, b, 25, nil)

	if !reflect.DeepEqual(a.Collector().Records(), b.Collector().Records()) {
		t.Error("same seed produced different model trajectories")
	}
	if !reflect.DeepEqual(a.Collector().AgentRecords(), b.Collector().AgentRecords()) {
		t.Error("same seed produced different agent trajectories")
	}
}

func TestHardshipNeverExceedsOne(t *testing.T) {
	p := saturatedParams(4)
	p.GraphType = social.TopologyRandom
	p.P = 1
	m := newTestModel(t, p)

	stepN(t, m, 10, func(tick int) {
		for _, c := range m.Citizens() {
			if c.Hardship > 1 {
				t.Fatalf("tick %d: citizen %d hardship %v", tick, c.ID, c.Hardship)
			}
		}
	})
}

func TestSaturatedGridOutbreak(t *testing.T) {
	m := newTestModel(t, saturatedParams(2))
	if got := m.CountState(agents.StateActive); got != 100 {
		t.Fatalf("initial active = %d, want 100", got)
	}
	if m.OutbreakCount() != 0 {
		t.Fatalf("outbreaks before first tick = %d", m.OutbreakCount())
	}

	stepN(t, m, 1, nil)
	if m.OutbreakCount() != 1 || !m.InOutbreak() {
		t.Fatalf("after one tick: outbreaks=%d in=%v, want 1 true", m.OutbreakCount(), m.InOutbreak())
	}

	// Sustained activity does not count again.
	stepN(t, m, 5, nil)
	if m.OutbreakCount() != 1 {
		t.Errorf("outbreaks after sustained activity = %d, want 1", m.OutbreakCount())
	}
}

func TestRunningStopsAfterMaxIter(t *testing.T) {
	p := testParams(1)
	p.MaxIter = 3
	m := newTestModel(t, p)

	for m.Running() {
		if err := m.Step(); err != nil {
			t.Fatalf("Step: %v", err)
		}
	}
	if m.Iteration() != 4 {
		t.Errorf("Iteration = %d, want 4", m.Iteration())
	}
	if got := len(m.Collector().Records()); got != 5 {
		t.Errorf("records = %d, want 5", got)
	}
}

func TestAgentReportsCollected(t *testing.T) {
	p := testParams(6)
	p.CollectAgentReports = true
	m := newTestModel(t, p)
	n := len(m.Citizens())

	stepN(t, m, 3, nil)
	if got := len(m.Collector().AgentRecords()); got != 4*n {
		t.Errorf("agent records = %d, want %d", got, 4*n)
	}
	for _, r := range m.AgentReports() {
		if r.Step != 3 {
			t.Fatalf("report step = %d, want 3", r.Step)
		}
		if r.OnGrid == (r.State == agents.StateJailed) {
			t.Fatalf("report for %d: on grid %v in state %v", r.AgentID, r.OnGrid, r.State)
		}
	}
}

func TestInfluencers(t *testing.T) {
	p := saturatedParams(9)
	p.GraphType = social.TopologyRandom
	p.P = 1
	p.InfThreshold = 50
	m := newTestModel(t, p)

	// Complete graph: every citizen has degree 99.
	if m.InfluencerCount() != 100 {
		t.Fatalf("InfluencerCount = %d, want 100", m.InfluencerCount())
	}
	m.SetInfluencers(99)
	if m.InfluencerCount() != 0 {
		t.Fatalf("threshold 99: InfluencerCount = %d, want 0", m.InfluencerCount())
	}
	if _, err := m.JailInfluencer(); !errors.Is(err, ErrNoInfluencer) {
		t.Errorf("JailInfluencer err = %v, want ErrNoInfluencer", err)
	}
	m.SetInfluencers(50)

	c, err := m.JailInfluencer()
	if err != nil {
		t.Fatalf("JailInfluencer: %v", err)
	}
	if c.State != agents.StateJailed || c.JailSentence < 1 || c.JailSentence > p.MaxJailTerm {
		t.Errorf("jailed influencer state %v sentence %d", c.State, c.JailSentence)
	}
	if m.Grid().Contains(c.ID) {
		t.Error("jailed influencer still on grid")
	}

	before := len(m.Citizens())
	edges := m.Network().EdgeCount()
	r, err := m.RemoveInfluencer()
	if err != nil {
		t.Fatalf("RemoveInfluencer: %v", err)
	}
	if len(m.Citizens()) != before-1 {
		t.Errorf("population = %d, want %d", len(m.Citizens()), before-1)
	}
	if _, ok := m.Citizen(r.ID); ok {
		t.Error("removed influencer still resolvable")
	}
	if m.Grid().Contains(r.ID) {
		t.Error("removed influencer still on grid")
	}
	if m.Network().NodeCount() != before-1 || m.Network().EdgeCount() != edges-99 {
		t.Errorf("network nodes=%d edges=%d after removal", m.Network().NodeCount(), m.Network().EdgeCount())
	}
	if m.sched.Has(r.ID) {
		t.Error("removed influencer still scheduled")
	}
	if m.InfluencerCount() != 99 {
		t.Errorf("InfluencerCount = %d, want 99", m.InfluencerCount())
	}

	// The model keeps stepping with a smaller population.
	stepN(t, m, 3, func(tick int) {
		rec := m.Record()
		if sum := rec.Quiescent + rec.Active + rec.Jailed; sum != before-1 {
			t.Fatalf("tick %d: population %d, want %d", tick, sum, before-1)
		}
	})
}

func TestInfluencerIntervention(t *testing.T) {
	p := saturatedParams(12)
	p.GraphType = social.TopologyRandom
	p.P = 1
	p.InfThreshold = 0
	p.TackleInf = true
	p.InterventionThreshold = 30
	m := newTestModel(t, p)

	stepN(t, m, 1, nil)
	if !m.InterventionActive() {
		t.Fatal("intervention not in effect with 100 active citizens")
	}
	if got := m.CountState(agents.StateJailed); got != 1 {
		t.Errorf("jailed = %d, want exactly one influencer", got)
	}
	if rec, _ := m.Collector().Latest(); rec.Jailed != 1 {
		t.Errorf("recorded jailed = %d, want 1", rec.Jailed)
	}
	// The intervention arrest is not part of the jailing rate.
	if h := m.JailingHistory(); h[0] != 0 {
		t.Errorf("jailing rate = %v, want 0", h[0])
	}
}

func TestNoneNetworkHasNoInfluencers(t *testing.T) {
	m := newTestModel(t, saturatedParams(1))
	if m.Network().EdgeCount() != 0 {
		t.Errorf("EdgeCount = %d, want 0", m.Network().EdgeCount())
	}
	if m.InfluencerCount() != 0 {
		t.Errorf("InfluencerCount = %d, want 0", m.InfluencerCount())
	}
	if _, err := m.RemoveInfluencer(); !errors.Is(err, ErrNoInfluencer) {
		t.Errorf("RemoveInfluencer err = %v, want ErrNoInfluencer", err)
	}
}

// Package agents provides the citizen and cop agents and their per-tick rules.
// Agents share one interface and are told apart by Kind, never by type name.
package agents

import (
	"fmt"

	"github.com/talgya/civil-violence/internal/entropy"
	"github.com/talgya/civil-violence/internal/social"
	"github.com/talgya/civil-violence/internal/world"
)

// AgentID is a unique identifier for an agent.
type AgentID uint64

// Kind discriminates the agent variants.
type Kind uint8

const (
	KindCitizen Kind = iota
	KindCop
)

// String returns the upper-case name of the kind.
func (k Kind) String() string {
	switch k {
	case KindCitizen:
		return "CITIZEN"
	case KindCop:
		return "COP"
	}
	return "UNKNOWN"
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

var kindsByName = map[string]Kind{
	"CITIZEN": KindCitizen,
	"COP":     KindCop,
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	parsed, ok := kindsByName[string(b)]
	if !ok {
		return fmt.Errorf("unknown agent kind %q", b)
	}
	*k = parsed
	return nil
}

// State is a citizen's condition.
type State uint8

const (
	StateQuiescent State = iota
	StateActive
	StateJailed
)

// String returns the upper-case name of the state.
func (s State) String() string {
	switch s {
	case StateQuiescent:
		return "QUIESCENT"
	case StateActive:
		return "ACTIVE"
	case StateJailed:
		return "JAILED"
	}
	return "UNKNOWN"
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

var statesByName = map[string]State{
	"QUIESCENT": StateQuiescent,
	"ACTIVE":    StateActive,
	"JAILED":    StateJailed,
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(b []byte) error {
	parsed, ok := statesByName[string(b)]
	if !ok {
		return fmt.Errorf("unknown citizen state %q", b)
	}
	*s = parsed
	return nil
}

// Agent is anything the scheduler activates once per tick.
type Agent interface {
	AgentID() AgentID
	Kind() Kind
	Step(env Env) error
}

// Rules are the model-level constants agents consult.
type Rules struct {
	K           float64 // Arrest-probability sensitivity
	MaxJailTerm int     // Sentences are drawn from [1, MaxJailTerm]
	Movement    bool    // Whether agents relocate each tick
}

// Env is the slice of model state an agent reads and mutates during its step.
type Env interface {
	Grid() *world.Grid[AgentID]
	Network() *social.Network[AgentID]
	Rand() *entropy.Stream
	Legitimacy() float64
	Rules() Rules

	// Citizen resolves an occupant id to a citizen; ok is false for cops.
	Citizen(id AgentID) (*Citizen, bool)

	// RecordArrest is called after a cop jails a citizen.
	RecordArrest(cop *Cop, c *Citizen)

	// RecordRelease is called after a citizen leaves jail.
	RecordRelease(c *Citizen)
}

// Contagion constants for hardship transmitted through the network.
const (
	HardshipBase     = 0.0 // Received hardship with no active neighbors
	DistanceConst    = 0.5
	TimeStepConst    = 0.1
	TransmissionRate = 0.5
)

// Citizen is a member of the population.
type Citizen struct {
	ID       AgentID     `json:"id"`
	Position world.Coord `json:"position"`
	Node     int64       `json:"network_node"` // -1 when not in the network

	// Hardship
	HardshipEndogenous float64 `json:"hardship_endogenous"` // Innate, fixed at creation
	HardshipContagious float64 `json:"hardship_contagious"` // Accumulated from active neighbors
	Hardship           float64 `json:"hardship"`            // min(1, endogenous + contagious)

	// Fixed traits, all in [0, 1]
	Susceptibility      float64 `json:"susceptibility"`
	Influence           float64 `json:"influence"`
	ExpressionIntensity float64 `json:"expression_intensity"`
	RiskAversion        float64 `json:"risk_aversion"`
	ActivationThreshold float64 `json:"activation_threshold"`
	Vision              int     `json:"vision"`

	// Last computed decision inputs
	Grievance         float64 `json:"grievance"`
	ArrestProbability float64 `json:"arrest_probability"`
	NetRisk           float64 `json:"net_risk"`

	State        State `json:"state"`
	JailSentence int   `json:"jail_sentence"`
	Jailable     bool  `json:"jailable"`
	IsInfluencer bool  `json:"is_influencer"`
}

// AgentID implements Agent.
func (c *Citizen) AgentID() AgentID { return c.ID }

// Kind implements Agent.
func (c *Citizen) Kind() Kind { return KindCitizen }

// Jailed reports whether the citizen is serving a sentence.
func (c *Citizen) Jailed() bool {
	return c.State == StateJailed
}

// Arrestable reports whether a cop may take the citizen in.
func (c *Citizen) Arrestable() bool {
	return c.State == StateActive && c.Jailable && c.JailSentence == 0
}

// Jail sentences the citizen. The caller removes it from the grid.
func (c *Citizen) Jail(sentence int) {
	if sentence < 1 {
		sentence = 1
	}
	c.State = StateJailed
	c.JailSentence = sentence
}

// Cop patrols the grid and arrests active citizens.
type Cop struct {
	ID       AgentID     `json:"id"`
	Position world.Coord `json:"position"`
	Vision   int         `json:"vision"`
}

// AgentID implements Agent.
func (p *Cop) AgentID() AgentID { return p.ID }

// Kind implements Agent.
func (p *Cop) Kind() Kind { return KindCop }

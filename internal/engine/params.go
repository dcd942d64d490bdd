package engine

import (
	"errors"
	"fmt"

	"github.com/talgya/civil-violence/internal/agents"
	"github.com/talgya/civil-violence/internal/social"
)

// ErrInvalidParams is wrapped by every parameter validation failure.
var ErrInvalidParams = errors.New("invalid model parameters")

// Params are the structural inputs of a run. They are fixed at construction.
type Params struct {
	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`

	// Per-cell assignment probabilities; their sum must not exceed 1.
	AgentDensity       float64 `yaml:"agent_density" json:"agent_density"`
	ActiveAgentDensity float64 `yaml:"active_agent_density" json:"active_agent_density"`
	CopDensity         float64 `yaml:"cop_density" json:"cop_density"`

	AgentVision int `yaml:"agent_vision" json:"agent_vision"`
	CopVision   int `yaml:"cop_vision" json:"cop_vision"`

	Legitimacy      float64 `yaml:"initial_legitimacy" json:"initial_legitimacy"`
	K               float64 `yaml:"k" json:"k"`
	MaxJailTerm     int     `yaml:"max_jail_term" json:"max_jail_term"`
	ActiveThreshold float64 `yaml:"active_threshold" json:"active_threshold"`
	Movement        bool    `yaml:"movement" json:"movement"`

	GraphType social.Topology `yaml:"graph_type" json:"graph_type"`
	P         float64         `yaml:"p" json:"p"`
	PWS       float64         `yaml:"p_ws" json:"p_ws"`
	Directed  bool            `yaml:"directed" json:"directed"`

	InfThreshold int  `yaml:"inf_threshold" json:"inf_threshold"`
	TackleInf    bool `yaml:"tackle_inf" json:"tackle_inf"`

	OutbreakThreshold     int `yaml:"outbreak_threshold" json:"outbreak_threshold"`
	InterventionThreshold int `yaml:"intervention_threshold" json:"intervention_threshold"`

	HardshipNoiseScale  float64 `yaml:"hardship_noise_scale" json:"hardship_noise_scale"` // 0 = uniform hardship
	CollectAgentReports bool    `yaml:"collect_agent_reports" json:"collect_agent_reports"`

	MaxIter int    `yaml:"max_iter" json:"max_iter"`
	Seed    *int64 `yaml:"seed,omitempty" json:"seed,omitempty"` // nil draws a fresh seed
}

// DefaultParams returns the classic parameter set on a 40x40 grid.
func DefaultParams() Params {
	return Params{
		Width:                 40,
		Height:                40,
		AgentDensity:          0.7,
		ActiveAgentDensity:    0,
		CopDensity:            0.04,
		AgentVision:           7,
		CopVision:             7,
		Legitimacy:            0.82,
		K:                     2.3,
		MaxJailTerm:           30,
		ActiveThreshold:       0.1,
		Movement:              true,
		GraphType:             social.TopologyRandom,
		P:                     0.1,
		PWS:                   0.1,
		InfThreshold:          10,
		OutbreakThreshold:     50,
		InterventionThreshold: 30,
		MaxIter:               1000,
	}
}

// Validate checks ranges and the density budget.
func (p Params) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if p.Width <= 0 || p.Height <= 0 {
		bad("grid must be at least 1x1, got %dx%d", p.Width, p.Height)
	}
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"agent_density", p.AgentDensity},
		{"active_agent_density", p.ActiveAgentDensity},
		{"cop_density", p.CopDensity},
		{"initial_legitimacy", p.Legitimacy},
		{"active_threshold", p.ActiveThreshold},
		{"p", p.P},
		{"p_ws", p.PWS},
	} {
		if f.v < 0 || f.v > 1 {
			bad("%s must be in [0, 1], got %v", f.name, f.v)
		}
	}
	if sum := p.AgentDensity + p.ActiveAgentDensity + p.CopDensity; sum > 1 {
		bad("densities sum to %v, must not exceed 1", sum)
	}
	if p.AgentVision <= 0 || p.CopVision <= 0 {
		bad("visions must be positive, got agent=%d cop=%d", p.AgentVision, p.CopVision)
	}
	if p.K <= 0 {
		bad("k must be positive, got %v", p.K)
	}
	if p.MaxJailTerm <= 0 {
		bad("max_jail_term must be positive, got %d", p.MaxJailTerm)
	}
	if p.MaxIter <= 0 {
		bad("max_iter must be positive, got %d", p.MaxIter)
	}
	if p.InfThreshold < 0 {
		bad("inf_threshold must be non-negative, got %d", p.InfThreshold)
	}
	if p.OutbreakThreshold < 0 || p.InterventionThreshold < 0 {
		bad("thresholds must be non-negative, got outbreak=%d intervention=%d",
			p.OutbreakThreshold, p.InterventionThreshold)
	}
	if p.HardshipNoiseScale < 0 {
		bad("hardship_noise_scale must be non-negative, got %v", p.HardshipNoiseScale)
	}
	if p.GraphType > social.TopologySmallWorld {
		bad("unsupported graph_type %v", p.GraphType)
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidParams, errors.Join(errs...))
}

// Rules returns the agent-facing subset of the parameters.
func (p Params) Rules() agents.Rules {
	return agents.Rules{
		K:           p.K,
		MaxJailTerm: p.MaxJailTerm,
		Movement:    p.Movement,
	}
}

// NetworkConfig returns the network generation subset of the parameters.
func (p Params) NetworkConfig() social.Config {
	return social.Config{
		Topology: p.GraphType,
		P:        p.P,
		PWS:      p.PWS,
		Directed: p.Directed,
	}
}

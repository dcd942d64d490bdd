package engine

import (
	"github.com/talgya/civil-violence/internal/agents"
	"github.com/talgya/civil-violence/internal/world"
)

// ModelRecord is the model-level reporter snapshot for one tick.
type ModelRecord struct {
	Step        int     `json:"step" db:"step"`
	Quiescent   int     `json:"quiescent" db:"quiescent"`
	Active      int     `json:"active" db:"active"`
	Jailed      int     `json:"jailed" db:"jailed"`
	Legitimacy  float64 `json:"legitimacy" db:"legitimacy"`
	Outbreaks   int     `json:"outbreaks" db:"outbreaks"`
	Influencers int     `json:"influencers" db:"influencers"`
}

// AgentReport is the per-citizen reporter snapshot for one tick.
type AgentReport struct {
	Step               int            `json:"step"`
	AgentID            agents.AgentID `json:"agent_id"`
	State              agents.State   `json:"state"`
	Hardship           float64        `json:"hardship"`
	HardshipContagious float64        `json:"hardship_contagious"`
	Grievance          float64        `json:"grievance"`
	IsInfluencer       bool           `json:"is_influencer"`
	NetworkDegree      int            `json:"network_degree"`
	Position           world.Coord    `json:"position"`
	OnGrid             bool           `json:"on_grid"`
}

// DataCollector accumulates reporter snapshots over a run.
type DataCollector struct {
	collectAgents bool
	records       []ModelRecord
	agentReports  []AgentReport
}

// NewDataCollector creates a collector. Per-agent reports are only kept
// when collectAgents is set.
func NewDataCollector(collectAgents bool) *DataCollector {
	return &DataCollector{collectAgents: collectAgents}
}

// Collect appends the current snapshot of m.
func (d *DataCollector) Collect(m *Model) {
	d.records = append(d.records, m.Record())
	if d.collectAgents {
		d.agentReports = append(d.agentReports, m.AgentReports()...)
	}
}

// Records returns every model record collected so far.
func (d *DataCollector) Records() []ModelRecord {
	out := make([]ModelRecord, len(d.records))
	copy(out, d.records)
	return out
}

// AgentRecords returns every per-agent report collected so far.
func (d *DataCollector) AgentRecords() []AgentReport {
	out := make([]AgentReport, len(d.agentReports))
	copy(out, d.agentReports)
	return out
}

// Latest returns the most recent model record.
func (d *DataCollector) Latest() (ModelRecord, bool) {
	if len(d.records) == 0 {
		return ModelRecord{}, false
	}
	return d.records[len(d.records)-1], true
}

// Actives returns the ACTIVE count series.
func (d *DataCollector) Actives() []int {
	out := make([]int, len(d.records))
	for i, r := range d.records {
		out[i] = r.Active
	}
	return out
}

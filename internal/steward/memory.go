package steward

import (
	"encoding/json"
	"log/slog"
	"os"
)

const maxRecords = 50

// CycleRecord captures what happened in a single steward cycle.
type CycleRecord struct {
	Tick        int     `json:"tick"`
	Action      string  `json:"action"`
	Level       string  `json:"level"`
	Active      int     `json:"active"`
	Legitimacy  float64 `json:"legitimacy"`
	Influencers int     `json:"influencers"`
	Citizen     uint64  `json:"citizen,omitempty"`
	Rationale   string  `json:"rationale,omitempty"`
}

// CycleMemory manages a ring of recent steward cycle records, optionally
// persisted to a JSON file so cooldowns survive restarts.
type CycleMemory struct {
	Records []CycleRecord `json:"records"`

	path string
}

// LoadMemory reads the memory file at path. Returns empty memory if path is
// empty, missing or corrupted.
func LoadMemory(path string) *CycleMemory {
	mem := &CycleMemory{path: path}
	if path == "" {
		return mem
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return mem
	}
	if err := json.Unmarshal(data, mem); err != nil {
		slog.Warn("steward memory corrupted, starting fresh", "path", path, "error", err)
		return &CycleMemory{path: path}
	}
	return mem
}

// Save writes the memory to disk. It is a no-op for in-memory state.
func (m *CycleMemory) Save() error {
	if m.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(m.path, data, 0o644)
}

// Record adds a cycle record, trimming to maxRecords.
func (m *CycleMemory) Record(r CycleRecord) {
	m.Records = append(m.Records, r)
	if len(m.Records) > maxRecords {
		m.Records = m.Records[len(m.Records)-maxRecords:]
	}
}

// LastIntervention returns the tick of the most recent cycle that acted.
func (m *CycleMemory) LastIntervention() (int, bool) {
	for i := len(m.Records) - 1; i >= 0; i-- {
		if isIntervention(m.Records[i].Action) {
			return m.Records[i].Tick, true
		}
	}
	return 0, false
}

func isIntervention(action string) bool {
	return action == "jail_influencer" || action == "remove_influencer"
}

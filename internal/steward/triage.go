package steward

import "fmt"

// Alert levels, most severe first.
const (
	LevelCritical = "CRITICAL"
	LevelWarning  = "WARNING"
	LevelWatch    = "WATCH"
	LevelCalm     = "CALM"
)

// Health holds derived unrest signals computed from a Snapshot.
type Health struct {
	Active      int
	ActiveShare float64 // active / population
	ActiveTrend []int   // active counts over the observed window, oldest first
	Delta       int     // change in active count across the window
	Level       string
}

// Triage computes unrest signals from the snapshot. Levels are relative to
// threshold, the active count the policy considers an outbreak.
//
//	CRITICAL  active above threshold and not falling
//	WARNING   active above threshold but falling
//	WATCH     active above half the threshold
//	CALM      otherwise
func Triage(snap *Snapshot, threshold int) *Health {
	h := &Health{Active: snap.Status.Active}
	if pop := snap.Status.Population(); pop > 0 {
		h.ActiveShare = float64(h.Active) / float64(pop)
	}

	for _, rec := range snap.History {
		h.ActiveTrend = append(h.ActiveTrend, rec.Active)
	}
	if n := len(h.ActiveTrend); n >= 2 {
		h.Delta = h.ActiveTrend[n-1] - h.ActiveTrend[0]
	}

	switch {
	case h.Active > threshold && h.Delta >= 0:
		h.Level = LevelCritical
	case h.Active > threshold:
		h.Level = LevelWarning
	case 2*h.Active > threshold:
		h.Level = LevelWatch
	default:
		h.Level = LevelCalm
	}
	return h
}

// Policy configures when and how the steward intervenes.
type Policy struct {
	Threshold int    // active count treated as an outbreak; negative treats any count as one
	Cooldown  int    // minimum ticks between interventions
	Action    string // intervention type sent to the server
}

// Validate checks the policy.
func (p Policy) Validate() error {
	if p.Cooldown < 0 {
		return fmt.Errorf("cooldown must be >= 0, got %d", p.Cooldown)
	}
	switch p.Action {
	case "jail_influencer", "remove_influencer":
		return nil
	}
	return fmt.Errorf("invalid action %q (valid: jail_influencer, remove_influencer)", p.Action)
}

// Decision is the outcome of a decide step.
type Decision struct {
	Action       string // "none" or an intervention type
	Rationale    string
	Intervention *Intervention
}

// Decide applies the policy to the triaged state. It intervenes only at
// CRITICAL level, when influencers remain and the cooldown has elapsed
// since the last intervention recorded in mem.
func Decide(p Policy, snap *Snapshot, h *Health, mem *CycleMemory) Decision {
	switch {
	case h.Level != LevelCritical:
		return Decision{Action: "none", Rationale: fmt.Sprintf("unrest level %s", h.Level)}
	case snap.Status.Influencers == 0:
		return Decision{Action: "none", Rationale: "no influencers left"}
	}

	if last, ok := mem.LastIntervention(); ok && snap.Status.Tick-last < p.Cooldown {
		return Decision{
			Action:    "none",
			Rationale: fmt.Sprintf("cooling down, last intervention at tick %d", last),
		}
	}

	return Decision{
		Action:       p.Action,
		Rationale:    fmt.Sprintf("%d active (%+d over window) above %d", h.Active, h.Delta, p.Threshold),
		Intervention: &Intervention{Type: p.Action},
	}
}

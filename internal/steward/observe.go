// Package steward implements an external intervention policy for a live run.
// It observes state via the API, triages the unrest trend, decides whether
// to target an influencer, and acts via the admin intervention endpoint.
package steward

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/talgya/civil-violence/internal/engine"
)

// Snapshot holds all data collected during an observation cycle.
type Snapshot struct {
	Status  Status               `json:"status"`
	History []engine.ModelRecord `json:"history"` // oldest first
}

// Status mirrors GET /api/v1/status.
type Status struct {
	Tick               int       `json:"tick"`
	Seed               int64     `json:"seed"`
	Topology           string    `json:"topology"`
	Running            bool      `json:"running"`
	EngineRunning      bool      `json:"engine_running"`
	Speed              float64   `json:"speed"`
	Quiescent          int       `json:"quiescent"`
	Active             int       `json:"active"`
	Jailed             int       `json:"jailed"`
	Legitimacy         float64   `json:"legitimacy"`
	JailingHistory     []float64 `json:"jailing_history"`
	Outbreaks          int       `json:"outbreaks"`
	InOutbreak         bool      `json:"in_outbreak"`
	Influencers        int       `json:"influencers"`
	InterventionActive bool      `json:"intervention_active"`
}

// Population is the number of citizens, jailed or not.
func (s Status) Population() int {
	return s.Quiescent + s.Active + s.Jailed
}

// Observer fetches run state from the API.
type Observer struct {
	BaseURL    string
	HTTPClient *http.Client

	// Window is how many past ticks of history to fetch.
	Window int
}

// NewObserver creates an Observer targeting the given API base URL.
func NewObserver(baseURL string) *Observer {
	return &Observer{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		Window: 10,
	}
}

// Observe fetches the status and the recent history.
func (o *Observer) Observe(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{}

	if err := o.fetchJSON(ctx, "/api/v1/status", &snap.Status); err != nil {
		return nil, fmt.Errorf("fetch status: %w", err)
	}
	since := snap.Status.Tick - o.Window
	if err := o.fetchJSON(ctx, fmt.Sprintf("/api/v1/history?since=%d", since), &snap.History); err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}

	return snap, nil
}

// Ready reports whether the status endpoint answers.
func (o *Observer) Ready(ctx context.Context) bool {
	var st Status
	return o.fetchJSON(ctx, "/api/v1/status", &st) == nil
}

// fetchJSON GETs a path and decodes the JSON response into target.
func (o *Observer) fetchJSON(ctx context.Context, path string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := o.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GET %s returned %d: %s", path, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// Package api serves a live run over HTTP.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (admin control plane).
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/talgya/civil-violence/internal/agents"
	"github.com/talgya/civil-violence/internal/engine"
	"github.com/talgya/civil-violence/internal/persistence"
	"github.com/talgya/civil-violence/internal/social"
)

// Server serves the state of one engine over HTTP.
type Server struct {
	Eng      *engine.Engine
	DB       *persistence.DB // Optional; enables /api/v1/runs
	Port     int
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.

	// Interventions allowed per client per minute. Zero uses the default.
	InterventionRate int
}

// Handler builds the routed, CORS-wrapped handler.
func (s *Server) Handler() http.Handler {
	rate := s.InterventionRate
	if rate <= 0 {
		rate = 10
	}
	interventionLimiter := NewRateLimiter(rate, time.Minute)

	mux := http.NewServeMux()

	// Public endpoints (GET, read-only).
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/history", s.handleHistory)
	mux.HandleFunc("/api/v1/agents", s.handleAgents)
	mux.HandleFunc("/api/v1/network", s.handleNetwork)
	mux.HandleFunc("/api/v1/events", s.handleEvents)
	mux.HandleFunc("/api/v1/runs", s.handleRuns)
	mux.HandleFunc("/api/v1/runs/{id}", s.handleRun)

	// Admin endpoints (POST, require bearer token).
	mux.HandleFunc("/api/v1/speed", s.adminOnly(s.handleSpeed))
	mux.HandleFunc("/api/v1/intervention",
		RateLimitMiddleware(interventionLimiter, s.adminOnly(s.handleIntervention)))

	return corsMiddleware(mux)
}

// Start begins serving the HTTP API in a goroutine. The returned server can
// be shut down by the caller.
func (s *Server) Start() *http.Server {
	addr := fmt.Sprintf(":%d", s.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
	return srv
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// CORS_ORIGINS adds a comma-separated list of origins to the localhost defaults.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
// GET requests pass through (for endpoints that support both GET and POST).
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no CIVILSIM_ADMIN_KEY set)", http.StatusForbidden)
				return
			}
			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var status map[string]any
	s.Eng.Do(func(m *engine.Model) error {
		rec := m.Record()
		p := m.Params()
		status = map[string]any{
			"tick":                rec.Step,
			"seed":                m.Seed(),
			"grid":                map[string]int{"width": p.Width, "height": p.Height},
			"topology":            p.GraphType,
			"running":             m.Running(),
			"quiescent":           rec.Quiescent,
			"active":              rec.Active,
			"jailed":              rec.Jailed,
			"legitimacy":          rec.Legitimacy,
			"jailing_history":     m.JailingHistory(),
			"outbreaks":           rec.Outbreaks,
			"in_outbreak":         m.InOutbreak(),
			"influencers":         rec.Influencers,
			"intervention_active": m.InterventionActive(),
		}
		return nil
	})
	status["speed"] = s.Eng.Speed()
	status["engine_running"] = s.Eng.Running()
	writeJSON(w, status)
}

// handleHistory returns model records, optionally only those after ?since=N.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	since := -1
	if v := r.URL.Query().Get("since"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			http.Error(w, "since must be an integer", http.StatusBadRequest)
			return
		}
		since = n
	}

	var records []engine.ModelRecord
	s.Eng.Do(func(m *engine.Model) error {
		for _, rec := range m.Collector().Records() {
			if rec.Step > since {
				records = append(records, rec)
			}
		}
		return nil
	})
	if records == nil {
		records = []engine.ModelRecord{}
	}
	writeJSON(w, records)
}

type gridAgent struct {
	ID    agents.AgentID `json:"id"`
	Kind  agents.Kind    `json:"kind"`
	X     int            `json:"x"`
	Y     int            `json:"y"`
	State string         `json:"state"`

	IsInfluencer bool    `json:"is_influencer,omitempty"`
	Hardship     float64 `json:"hardship,omitempty"`
	Grievance    float64 `json:"grievance,omitempty"`
}

// handleAgents lists every agent on the grid. Jailed citizens are off the grid.
func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	var out []gridAgent
	s.Eng.Do(func(m *engine.Model) error {
		placements := m.Grid().Placements()
		out = make([]gridAgent, 0, len(placements))
		for _, p := range placements {
			ga := gridAgent{ID: p.ID, Kind: agents.KindCop, X: p.Pos.X, Y: p.Pos.Y, State: "COP"}
			if c, ok := m.Citizen(p.ID); ok {
				ga.Kind = agents.KindCitizen
				ga.State = c.State.String()
				ga.IsInfluencer = c.IsInfluencer
				ga.Hardship = c.Hardship
				ga.Grievance = c.Grievance
			}
			out = append(out, ga)
		}
		return nil
	})
	writeJSON(w, out)
}

type networkNode struct {
	Node    int64          `json:"node"`
	AgentID agents.AgentID `json:"agent_id"`
	State   string         `json:"state"`
	Degree  int            `json:"degree"`
}

func (s *Server) handleNetwork(w http.ResponseWriter, r *http.Request) {
	var (
		nodes    []networkNode
		edges    []social.Edge
		topology social.Topology
		directed bool
	)
	s.Eng.Do(func(m *engine.Model) error {
		net := m.Network()
		topology, directed = net.Topology(), net.Directed()
		for _, node := range net.Nodes() {
			id, _ := net.Member(node)
			n := networkNode{Node: node, AgentID: id, Degree: net.Degree(node)}
			if c, ok := m.Citizen(id); ok {
				n.State = c.State.String()
			}
			nodes = append(nodes, n)
		}
		edges = net.Edges()
		return nil
	})
	if nodes == nil {
		nodes = []networkNode{}
	}
	writeJSON(w, map[string]any{
		"topology": topology,
		"directed": directed,
		"nodes":    nodes,
		"edges":    edges,
	})
}

// eventLimit reads ?limit=N, defaulting to 50 and capped at 500.
func eventLimit(r *http.Request) int {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	return limit
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := eventLimit(r)

	var events []engine.Event
	s.Eng.Do(func(m *engine.Model) error {
		start := max(len(m.Events)-limit, 0)
		// Newest first.
		for i := len(m.Events) - 1; i >= start; i-- {
			events = append(events, m.Events[i])
		}
		return nil
	})
	if events == nil {
		events = []engine.Event{}
	}
	writeJSON(w, events)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "no run store configured", http.StatusNotFound)
		return
	}
	runs, err := s.DB.Runs()
	if err != nil {
		slog.Error("list runs", "error", err)
		http.Error(w, "failed to list runs", http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []persistence.RunSummary{}
	}
	writeJSON(w, runs)
}

// handleRun serves one stored run by id; "latest" resolves to the last save.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "no run store configured", http.StatusNotFound)
		return
	}
	run, err := s.DB.LoadRun(r.PathValue("id"), eventLimit(r))
	if errors.Is(err, persistence.ErrRunNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("load run", "run", r.PathValue("id"), "error", err)
		http.Error(w, "failed to load run", http.StatusInternalServerError)
		return
	}
	writeJSON(w, run)
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		var req struct {
			Speed float64 `json:"speed"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.Speed < 0 || req.Speed > 1000 {
			http.Error(w, "speed must be 0-1000", http.StatusBadRequest)
			return
		}
		s.Eng.SetSpeed(req.Speed)
		slog.Info("speed changed", "speed", req.Speed)
	}

	writeJSON(w, map[string]float64{"speed": s.Eng.Speed()})
}

func (s *Server) handleIntervention(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Type string `json:"type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	var (
		c   *agents.Citizen
		err error
	)
	switch req.Type {
	case "jail_influencer":
		err = s.Eng.Do(func(m *engine.Model) error {
			c, err = m.JailInfluencer()
			return err
		})
	case "remove_influencer":
		err = s.Eng.Do(func(m *engine.Model) error {
			c, err = m.RemoveInfluencer()
			return err
		})
	default:
		http.Error(w, fmt.Sprintf("unknown intervention type %q (valid: jail_influencer, remove_influencer)", req.Type),
			http.StatusBadRequest)
		return
	}

	if errors.Is(err, engine.ErrNoInfluencer) {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	if err != nil {
		slog.Error("intervention failed", "type", req.Type, "error", err)
		http.Error(w, "intervention failed", http.StatusInternalServerError)
		return
	}

	slog.Info("admin intervention", "type", req.Type, "citizen", c.ID)
	writeJSON(w, map[string]any{
		"success":       true,
		"type":          req.Type,
		"citizen":       c.ID,
		"jail_sentence": c.JailSentence,
	})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}

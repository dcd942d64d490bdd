// Package persistence provides SQLite storage for finished runs.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/civil-violence/internal/analysis"
	"github.com/talgya/civil-violence/internal/engine"
	"github.com/talgya/civil-violence/internal/experiment"
)

// ErrRunNotFound is returned when a run id, or the latest run, is not stored.
var ErrRunNotFound = errors.New("run not found")

const (
	schemaVersion = "1"
	metaLastRun   = "last_run"
)

// DB wraps a SQLite connection for run storage.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if err := db.SaveMeta("schema_version", schemaVersion); err != nil {
		conn.Close()
		return nil, fmt.Errorf("save schema version: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		seed INTEGER NOT NULL,
		topology TEXT NOT NULL,
		params_json TEXT NOT NULL,
		steps INTEGER NOT NULL,
		outbreaks INTEGER NOT NULL,
		started_ms INTEGER NOT NULL,
		finished_ms INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS steps (
		run_id TEXT NOT NULL,
		step INTEGER NOT NULL,
		quiescent INTEGER NOT NULL,
		active INTEGER NOT NULL,
		jailed INTEGER NOT NULL,
		legitimacy REAL NOT NULL,
		outbreaks INTEGER NOT NULL,
		influencers INTEGER NOT NULL,
		PRIMARY KEY (run_id, step)
	);

	CREATE TABLE IF NOT EXISTS agent_reports (
		run_id TEXT NOT NULL,
		agent_id INTEGER NOT NULL,
		step INTEGER NOT NULL,
		state TEXT NOT NULL,
		hardship REAL NOT NULL,
		hardship_contagious REAL NOT NULL,
		grievance REAL NOT NULL,
		is_influencer INTEGER NOT NULL,
		network_degree INTEGER NOT NULL,
		pos_x INTEGER NOT NULL,
		pos_y INTEGER NOT NULL,
		on_grid INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS outbreaks (
		run_id TEXT NOT NULL,
		start_tick INTEGER NOT NULL,
		peak INTEGER NOT NULL,
		duration INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_agent_reports_run ON agent_reports(run_id);
	CREATE INDEX IF NOT EXISTS idx_outbreaks_run ON outbreaks(run_id);
	CREATE INDEX IF NOT EXISTS idx_events_run ON events(run_id, tick);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveRun writes a run with its trajectory, final agent reports, outbreaks
// and events in one transaction.
func (db *DB) SaveRun(run *experiment.Run) error {
	paramsJSON, err := json.Marshal(run.Params)
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}
	id := run.ID.String()

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO runs
		(id, seed, topology, params_json, steps, outbreaks, started_ms, finished_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, run.Seed, run.Params.GraphType.String(), string(paramsJSON),
		len(run.Records), len(run.Outbreaks),
		run.Started.UnixMilli(), run.Finished.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", id, err)
	}

	stepStmt, err := tx.Preparex(`INSERT INTO steps
		(run_id, step, quiescent, active, jailed, legitimacy, outbreaks, influencers)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stepStmt.Close()

	for _, r := range run.Records {
		_, err := stepStmt.Exec(id, r.Step, r.Quiescent, r.Active, r.Jailed,
			r.Legitimacy, r.Outbreaks, r.Influencers)
		if err != nil {
			return fmt.Errorf("insert step %d: %w", r.Step, err)
		}
	}

	agentStmt, err := tx.Preparex(`INSERT INTO agent_reports
		(run_id, agent_id, step, state, hardship, hardship_contagious, grievance,
		 is_influencer, network_degree, pos_x, pos_y, on_grid)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer agentStmt.Close()

	for _, a := range run.AgentReports {
		_, err := agentStmt.Exec(id, uint64(a.AgentID), a.Step, a.State.String(),
			a.Hardship, a.HardshipContagious, a.Grievance,
			a.IsInfluencer, a.NetworkDegree, a.Position.X, a.Position.Y, a.OnGrid)
		if err != nil {
			return fmt.Errorf("insert agent report %d: %w", a.AgentID, err)
		}
	}

	for _, o := range run.Outbreaks {
		_, err := tx.Exec("INSERT INTO outbreaks (run_id, start_tick, peak, duration) VALUES (?, ?, ?, ?)",
			id, o.Start, o.Peak, o.Duration)
		if err != nil {
			return fmt.Errorf("insert outbreak: %w", err)
		}
	}

	for _, e := range run.Events {
		_, err := tx.Exec("INSERT INTO events (run_id, tick, description, category) VALUES (?, ?, ?, ?)",
			id, e.Tick, e.Description, e.Category)
		if err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
	}

	if _, err := tx.Exec("INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)", metaLastRun, id); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Debug("run saved", "run", id, "steps", len(run.Records), "agents", len(run.AgentReports))
	return nil
}

// SaveMeta stores a key-value pair.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value. A missing key returns sql.ErrNoRows.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM meta WHERE key = ?", key)
	return value, err
}

// LastRunID returns the id of the most recently saved run.
func (db *DB) LastRunID() (string, error) {
	id, err := db.GetMeta(metaLastRun)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrRunNotFound
	}
	return id, err
}

// RunSummary is one row of the runs table.
type RunSummary struct {
	ID         string `db:"id" json:"id"`
	Seed       int64  `db:"seed" json:"seed"`
	Topology   string `db:"topology" json:"topology"`
	ParamsJSON string `db:"params_json" json:"-"`
	Steps      int    `db:"steps" json:"steps"`
	Outbreaks  int    `db:"outbreaks" json:"outbreaks"`
	StartedMs  int64  `db:"started_ms" json:"started_ms"`
	FinishedMs int64  `db:"finished_ms" json:"finished_ms"`
}

// Params decodes the stored run parameters.
func (r RunSummary) Params() (engine.Params, error) {
	var p engine.Params
	if err := json.Unmarshal([]byte(r.ParamsJSON), &p); err != nil {
		return p, fmt.Errorf("decode params of run %s: %w", r.ID, err)
	}
	return p, nil
}

// Runs returns every stored run, oldest first.
func (db *DB) Runs() ([]RunSummary, error) {
	var runs []RunSummary
	err := db.conn.Select(&runs, "SELECT * FROM runs ORDER BY started_ms, id")
	return runs, err
}

// Run returns the stored summary of one run.
func (db *DB) Run(id string) (RunSummary, error) {
	var run RunSummary
	err := db.conn.Get(&run, "SELECT * FROM runs WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return run, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, err
}

// StoredRun is a run read back from the store.
type StoredRun struct {
	Summary   RunSummary           `json:"run"`
	Params    engine.Params        `json:"params"`
	Steps     []engine.ModelRecord `json:"steps"`
	Outbreaks []analysis.Outbreak  `json:"outbreaks"`
	Events    []engine.Event       `json:"events"` // newest first
}

// LoadRun reads a run with its trajectory, outbreaks and up to eventLimit
// recent events. An empty id or "latest" loads the last saved run.
func (db *DB) LoadRun(id string, eventLimit int) (*StoredRun, error) {
	if id == "" || id == "latest" {
		last, err := db.LastRunID()
		if err != nil {
			return nil, err
		}
		id = last
	}

	summary, err := db.Run(id)
	if err != nil {
		return nil, err
	}
	out := &StoredRun{Summary: summary}
	if out.Params, err = summary.Params(); err != nil {
		return nil, err
	}
	if out.Steps, err = db.RunSteps(id); err != nil {
		return nil, fmt.Errorf("read steps of run %s: %w", id, err)
	}
	if out.Outbreaks, err = db.RunOutbreaks(id); err != nil {
		return nil, fmt.Errorf("read outbreaks of run %s: %w", id, err)
	}
	if out.Events, err = db.RecentEvents(id, eventLimit); err != nil {
		return nil, fmt.Errorf("read events of run %s: %w", id, err)
	}

	if out.Outbreaks == nil {
		out.Outbreaks = []analysis.Outbreak{}
	}
	if out.Events == nil {
		out.Events = []engine.Event{}
	}
	return out, nil
}

// RunSteps returns the per-tick reporters of a run in step order.
func (db *DB) RunSteps(runID string) ([]engine.ModelRecord, error) {
	var records []engine.ModelRecord
	err := db.conn.Select(&records,
		`SELECT step, quiescent, active, jailed, legitimacy, outbreaks, influencers
		 FROM steps WHERE run_id = ? ORDER BY step`,
		runID,
	)
	return records, err
}

// RunOutbreaks returns the outbreaks recorded for a run.
func (db *DB) RunOutbreaks(runID string) ([]analysis.Outbreak, error) {
	var outbreaks []analysis.Outbreak
	err := db.conn.Select(&outbreaks,
		"SELECT start_tick AS start, peak, duration FROM outbreaks WHERE run_id = ? ORDER BY start_tick",
		runID,
	)
	return outbreaks, err
}

// RecentEvents returns the most recent events of a run, newest first.
func (db *DB) RecentEvents(runID string, limit int) ([]engine.Event, error) {
	var events []engine.Event
	err := db.conn.Select(&events,
		"SELECT tick, description, category FROM events WHERE run_id = ? ORDER BY id DESC LIMIT ?",
		runID, limit,
	)
	return events, err
}

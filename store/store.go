// Package store is the embedded SQL persistence layer: a modernc.org/sqlite
// backed database/sql handle, a prepared-statement Writer, and a bounded
// Reader. Grounded on the teacher's go.mod, which already carried
// modernc.org/sqlite as an indirect, code-unused dependency — this package
// finally gives it a home as the "embedded SQL store" the spec calls for.
package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/dmaynor/agent-watch/apperr"
)

// Store wraps a database/sql handle opened against a single sqlite file,
// with WAL journaling and tuned pragmas applied at open time.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the sqlite database at path, applies the
// pragmas and idempotent schema DDL, and returns the ready Store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, apperr.New(apperr.StoreOpen, fmt.Errorf("open %s: %w", path, err))
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite is not safe for concurrent writers

	s := &Store{db: db}
	if err := s.applyPragmas(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.applySchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) applyPragmas() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return apperr.New(apperr.StoreOpen, fmt.Errorf("pragma %q: %w", p, err))
		}
	}
	return nil
}

// schemaDDL is the idempotent DDL for all 9 tables named by spec.md §4.3
// plus their ts/pid/(ts,pid) indexes. metric_rollup has no writer in this
// spec's scope (reserved for a future rollup job) but is created here so
// the schema is complete and re-applying it is always a no-op.
var schemaDDL = []string{
	`CREATE TABLE IF NOT EXISTS agent (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		pid INTEGER NOT NULL,
		comm TEXT NOT NULL,
		args TEXT NOT NULL DEFAULT '',
		first_seen INTEGER NOT NULL,
		last_seen INTEGER NOT NULL,
		alive INTEGER NOT NULL DEFAULT 1
	)`,
	`CREATE INDEX IF NOT EXISTS idx_agent_pid_comm_alive ON agent(pid, comm, alive)`,

	`CREATE TABLE IF NOT EXISTS process_sample (
		ts INTEGER NOT NULL,
		pid INTEGER NOT NULL,
		user TEXT NOT NULL DEFAULT '',
		cpu REAL NOT NULL DEFAULT 0,
		mem REAL NOT NULL DEFAULT 0,
		rss_kb INTEGER NOT NULL DEFAULT 0,
		stat TEXT NOT NULL DEFAULT '?',
		etimes INTEGER NOT NULL DEFAULT 0,
		comm TEXT NOT NULL DEFAULT '',
		args TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_process_sample_ts ON process_sample(ts)`,
	`CREATE INDEX IF NOT EXISTS idx_process_sample_pid ON process_sample(pid)`,
	`CREATE INDEX IF NOT EXISTS idx_process_sample_ts_pid ON process_sample(ts, pid)`,

	`CREATE TABLE IF NOT EXISTS status_sample (
		ts INTEGER NOT NULL,
		pid INTEGER NOT NULL,
		state TEXT NOT NULL DEFAULT '',
		threads INTEGER NOT NULL DEFAULT 0,
		vm_rss_kb INTEGER NOT NULL DEFAULT 0,
		vm_swap_kb INTEGER NOT NULL DEFAULT 0,
		voluntary_ctxt_switches INTEGER NOT NULL DEFAULT 0,
		nonvoluntary_ctxt_switches INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_status_sample_ts ON status_sample(ts)`,
	`CREATE INDEX IF NOT EXISTS idx_status_sample_pid ON status_sample(pid)`,
	`CREATE INDEX IF NOT EXISTS idx_status_sample_ts_pid ON status_sample(ts, pid)`,

	`CREATE TABLE IF NOT EXISTS fd_record (
		ts INTEGER NOT NULL,
		pid INTEGER NOT NULL,
		fd_num INTEGER NOT NULL,
		fd_type TEXT NOT NULL,
		path TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_fd_record_ts ON fd_record(ts)`,
	`CREATE INDEX IF NOT EXISTS idx_fd_record_pid ON fd_record(pid)`,

	`CREATE TABLE IF NOT EXISTS net_connection (
		ts INTEGER NOT NULL,
		pid INTEGER NOT NULL,
		protocol TEXT NOT NULL,
		local_addr TEXT NOT NULL DEFAULT '',
		local_port INTEGER NOT NULL DEFAULT 0,
		remote_addr TEXT NOT NULL DEFAULT '',
		remote_port INTEGER NOT NULL DEFAULT 0,
		state TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_net_connection_ts ON net_connection(ts)`,
	`CREATE INDEX IF NOT EXISTS idx_net_connection_pid ON net_connection(pid)`,

	`CREATE TABLE IF NOT EXISTS metric_rollup (
		ts INTEGER NOT NULL,
		pid INTEGER NOT NULL,
		window TEXT NOT NULL,
		metric TEXT NOT NULL,
		value REAL NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_metric_rollup_ts ON metric_rollup(ts)`,

	`CREATE TABLE IF NOT EXISTS alert (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts INTEGER NOT NULL,
		pid INTEGER NOT NULL,
		severity TEXT NOT NULL,
		category TEXT NOT NULL,
		message TEXT NOT NULL,
		value REAL NOT NULL DEFAULT 0,
		threshold REAL NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_alert_ts ON alert(ts)`,
	`CREATE INDEX IF NOT EXISTS idx_alert_pid ON alert(pid)`,

	`CREATE TABLE IF NOT EXISTS fingerprint (
		pid INTEGER NOT NULL,
		comm TEXT NOT NULL,
		avg_cpu REAL NOT NULL DEFAULT 0,
		avg_rss_kb REAL NOT NULL DEFAULT 0,
		avg_threads REAL NOT NULL DEFAULT 0,
		avg_fd_count REAL NOT NULL DEFAULT 0,
		avg_net_conns REAL NOT NULL DEFAULT 0,
		dominant_phase TEXT NOT NULL DEFAULT 'idle',
		sample_count INTEGER NOT NULL DEFAULT 0,
		updated_at INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (pid, comm)
	)`,

	`CREATE TABLE IF NOT EXISTS fingerprint_baseline (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		comm TEXT NOT NULL,
		avg_cpu REAL NOT NULL DEFAULT 0,
		avg_rss_kb REAL NOT NULL DEFAULT 0,
		avg_threads REAL NOT NULL DEFAULT 0,
		avg_fd_count REAL NOT NULL DEFAULT 0,
		avg_net_conns REAL NOT NULL DEFAULT 0,
		dominant_phase TEXT NOT NULL DEFAULT 'idle',
		created_at INTEGER NOT NULL,
		version TEXT NOT NULL DEFAULT '',
		label TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_fingerprint_baseline_comm_label ON fingerprint_baseline(comm, label)`,
}

func (s *Store) applySchema() error {
	for _, stmt := range schemaDDL {
		if _, err := s.db.Exec(stmt); err != nil {
			return apperr.New(apperr.StoreOpen, fmt.Errorf("apply schema: %w", err))
		}
	}
	return nil
}

// DB returns the underlying handle. NewWriter and NewReader read the
// handle directly rather than through this accessor.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

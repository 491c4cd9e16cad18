package store

import (
	"database/sql"
	"fmt"

	"github.com/dmaynor/agent-watch/apperr"
	"github.com/dmaynor/agent-watch/model"
)

// Hard row caps from spec.md §4.3. get_recent_alerts is caller-bounded;
// time-filtered queries are bounded by their window, not listed here.
const (
	capAliveAgents           = 500
	capLatestSamplesPerAgent = 200
	capDistinctPIDs          = 10000
)

// Reader runs read-only queries over the store. Every method returns a
// fresh, unshared slice so callers never alias engine- or writer-owned
// memory across a tick boundary.
type Reader struct {
	db *sql.DB
}

// NewReader wraps s for querying.
func NewReader(s *Store) *Reader { return &Reader{db: s.db} }

// GetAliveAgents returns up to 500 agents with alive=1, most recently seen first.
func (r *Reader) GetAliveAgents() ([]model.Agent, error) {
	rows, err := r.db.Query(`SELECT id, pid, comm, args, first_seen, last_seen, alive FROM agent WHERE alive = 1 ORDER BY last_seen DESC LIMIT ?`, capAliveAgents)
	if err != nil {
		return nil, apperr.New(apperr.StoreExec, fmt.Errorf("get_alive_agents: %w", err))
	}
	defer rows.Close()

	var out []model.Agent
	for rows.Next() {
		var a model.Agent
		var alive int
		if err := rows.Scan(&a.ID, &a.PID, &a.Comm, &a.Args, &a.FirstSeen, &a.LastSeen, &alive); err != nil {
			return nil, apperr.New(apperr.StoreExec, err)
		}
		a.Alive = alive != 0
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetLatestSamplesPerAgent returns the most recent process_sample row per
// distinct PID, capped at 200 PIDs.
func (r *Reader) GetLatestSamplesPerAgent() ([]model.ProcessSample, error) {
	rows, err := r.db.Query(`
		SELECT ps.ts, ps.pid, ps.user, ps.cpu, ps.mem, ps.rss_kb, ps.stat, ps.etimes, ps.comm, ps.args
		FROM process_sample ps
		JOIN (SELECT pid, MAX(ts) AS max_ts FROM process_sample GROUP BY pid LIMIT ?) latest
		ON ps.pid = latest.pid AND ps.ts = latest.max_ts
		ORDER BY ps.ts DESC`, capLatestSamplesPerAgent)
	if err != nil {
		return nil, apperr.New(apperr.StoreExec, fmt.Errorf("get_latest_samples_per_agent: %w", err))
	}
	defer rows.Close()

	var out []model.ProcessSample
	for rows.Next() {
		var p model.ProcessSample
		if err := rows.Scan(&p.TS, &p.PID, &p.User, &p.CPU, &p.Mem, &p.RSSKB, &p.Stat, &p.ETimes, &p.Comm, &p.Args); err != nil {
			return nil, apperr.New(apperr.StoreExec, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetDistinctPIDs returns up to 10,000 distinct PIDs ever sampled.
func (r *Reader) GetDistinctPIDs() ([]int32, error) {
	rows, err := r.db.Query(`SELECT DISTINCT pid FROM process_sample ORDER BY pid LIMIT ?`, capDistinctPIDs)
	if err != nil {
		return nil, apperr.New(apperr.StoreExec, fmt.Errorf("get_distinct_pids: %w", err))
	}
	defer rows.Close()

	var out []int32
	for rows.Next() {
		var pid int32
		if err := rows.Scan(&pid); err != nil {
			return nil, apperr.New(apperr.StoreExec, err)
		}
		out = append(out, pid)
	}
	return out, rows.Err()
}

// GetRecentAlerts returns the most recent alerts, newest first, capped at
// the caller-supplied limit.
func (r *Reader) GetRecentAlerts(limit int32) ([]model.Alert, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := r.db.Query(`SELECT id, ts, pid, severity, category, message, value, threshold FROM alert ORDER BY ts DESC LIMIT ?`, limit)
	if err != nil {
		return nil, apperr.New(apperr.StoreExec, fmt.Errorf("get_recent_alerts: %w", err))
	}
	defer rows.Close()

	var out []model.Alert
	for rows.Next() {
		var a model.Alert
		var sev string
		if err := rows.Scan(&a.ID, &a.TS, &a.PID, &sev, &a.Category, &a.Message, &a.Value, &a.Threshold); err != nil {
			return nil, apperr.New(apperr.StoreExec, err)
		}
		a.Severity = model.Severity(sev)
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetSamplesInRange returns process_sample rows for pid between [since, until],
// unbounded beyond the time window per spec.md §4.3's "other time-filtered
// queries" row.
func (r *Reader) GetSamplesInRange(pid int32, since, until int64) ([]model.ProcessSample, error) {
	rows, err := r.db.Query(`SELECT ts, pid, user, cpu, mem, rss_kb, stat, etimes, comm, args FROM process_sample WHERE pid = ? AND ts BETWEEN ? AND ? ORDER BY ts ASC`, pid, since, until)
	if err != nil {
		return nil, apperr.New(apperr.StoreExec, fmt.Errorf("get_samples_in_range: %w", err))
	}
	defer rows.Close()

	var out []model.ProcessSample
	for rows.Next() {
		var p model.ProcessSample
		if err := rows.Scan(&p.TS, &p.PID, &p.User, &p.CPU, &p.Mem, &p.RSSKB, &p.Stat, &p.ETimes, &p.Comm, &p.Args); err != nil {
			return nil, apperr.New(apperr.StoreExec, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetFingerprint returns the current fingerprint for (pid, comm), or ok=false
// if none has been recorded yet.
func (r *Reader) GetFingerprint(pid int32, comm string) (model.Fingerprint, bool, error) {
	var f model.Fingerprint
	var phase string
	row := r.db.QueryRow(`SELECT pid, comm, avg_cpu, avg_rss_kb, avg_threads, avg_fd_count, avg_net_conns, dominant_phase, sample_count, updated_at FROM fingerprint WHERE pid = ? AND comm = ?`, pid, comm)
	err := row.Scan(&f.PID, &f.Comm, &f.AvgCPU, &f.AvgRSSKB, &f.AvgThreads, &f.AvgFDCount, &f.AvgNetConns, &phase, &f.SampleCount, &f.UpdatedAt)
	if err == sql.ErrNoRows {
		return model.Fingerprint{}, false, nil
	}
	if err != nil {
		return model.Fingerprint{}, false, apperr.New(apperr.StoreExec, err)
	}
	f.DominantPhase = model.Phase(phase)
	return f, true, nil
}

// GetFingerprintsByComm returns every fingerprint currently recorded for
// comm (there may be several live PIDs sharing one comm).
func (r *Reader) GetFingerprintsByComm(comm string) ([]model.Fingerprint, error) {
	rows, err := r.db.Query(`SELECT pid, comm, avg_cpu, avg_rss_kb, avg_threads, avg_fd_count, avg_net_conns, dominant_phase, sample_count, updated_at FROM fingerprint WHERE comm = ?`, comm)
	if err != nil {
		return nil, apperr.New(apperr.StoreExec, fmt.Errorf("get_fingerprints_by_comm: %w", err))
	}
	defer rows.Close()

	var out []model.Fingerprint
	for rows.Next() {
		var f model.Fingerprint
		var phase string
		if err := rows.Scan(&f.PID, &f.Comm, &f.AvgCPU, &f.AvgRSSKB, &f.AvgThreads, &f.AvgFDCount, &f.AvgNetConns, &phase, &f.SampleCount, &f.UpdatedAt); err != nil {
			return nil, apperr.New(apperr.StoreExec, err)
		}
		f.DominantPhase = model.Phase(phase)
		out = append(out, f)
	}
	return out, rows.Err()
}

// GetLatestBaseline returns the most recently created baseline for
// (comm, label), or ok=false if none exists.
func (r *Reader) GetLatestBaseline(comm, label string) (model.Baseline, bool, error) {
	var b model.Baseline
	var phase string
	row := r.db.QueryRow(`SELECT id, comm, avg_cpu, avg_rss_kb, avg_threads, avg_fd_count, avg_net_conns, dominant_phase, created_at, version, label FROM fingerprint_baseline WHERE comm = ? AND label = ? ORDER BY created_at DESC LIMIT 1`, comm, label)
	err := row.Scan(&b.ID, &b.Comm, &b.AvgCPU, &b.AvgRSSKB, &b.AvgThreads, &b.AvgFDCount, &b.AvgNetConns, &phase, &b.CreatedAt, &b.Version, &b.Label)
	if err == sql.ErrNoRows {
		return model.Baseline{}, false, nil
	}
	if err != nil {
		return model.Baseline{}, false, apperr.New(apperr.StoreExec, err)
	}
	b.DominantPhase = model.Phase(phase)
	return b, true, nil
}

package store

import (
	"database/sql"
	"fmt"

	"github.com/dmaynor/agent-watch/apperr"
	"github.com/dmaynor/agent-watch/model"
)

// Writer holds one prepared statement per write used during a tick, plus
// the current transaction (if any). Prepared statements live for the
// process lifetime; only the *sql.Tx churns per tick.
type Writer struct {
	db *sql.DB
	tx *sql.Tx

	stmtUpdateAgent          *sql.Stmt
	stmtInsertAgent          *sql.Stmt
	stmtInsertProcessSample  *sql.Stmt
	stmtInsertStatusSample   *sql.Stmt
	stmtInsertFdRecord       *sql.Stmt
	stmtInsertNetConnection  *sql.Stmt
	stmtInsertAlert          *sql.Stmt
	stmtUpsertFingerprint    *sql.Stmt
	stmtInsertBaseline       *sql.Stmt
}

// NewWriter prepares every statement the writer needs against db.
func NewWriter(s *Store) (*Writer, error) {
	w := &Writer{db: s.db}
	type prep struct {
		dst  **sql.Stmt
		text string
	}
	stmts := []prep{
		{&w.stmtUpdateAgent, `UPDATE agent SET last_seen = ? WHERE pid = ? AND comm = ? AND alive = 1`},
		{&w.stmtInsertAgent, `INSERT INTO agent (pid, comm, args, first_seen, last_seen, alive) VALUES (?, ?, ?, ?, ?, 1)`},
		{&w.stmtInsertProcessSample, `INSERT INTO process_sample (ts, pid, user, cpu, mem, rss_kb, stat, etimes, comm, args) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`},
		{&w.stmtInsertStatusSample, `INSERT INTO status_sample (ts, pid, state, threads, vm_rss_kb, vm_swap_kb, voluntary_ctxt_switches, nonvoluntary_ctxt_switches) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`},
		{&w.stmtInsertFdRecord, `INSERT INTO fd_record (ts, pid, fd_num, fd_type, path) VALUES (?, ?, ?, ?, ?)`},
		{&w.stmtInsertNetConnection, `INSERT INTO net_connection (ts, pid, protocol, local_addr, local_port, remote_addr, remote_port, state) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`},
		{&w.stmtInsertAlert, `INSERT INTO alert (ts, pid, severity, category, message, value, threshold) VALUES (?, ?, ?, ?, ?, ?, ?)`},
		{&w.stmtUpsertFingerprint, `INSERT INTO fingerprint (pid, comm, avg_cpu, avg_rss_kb, avg_threads, avg_fd_count, avg_net_conns, dominant_phase, sample_count, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(pid, comm) DO UPDATE SET
				avg_cpu=excluded.avg_cpu, avg_rss_kb=excluded.avg_rss_kb, avg_threads=excluded.avg_threads,
				avg_fd_count=excluded.avg_fd_count, avg_net_conns=excluded.avg_net_conns,
				dominant_phase=excluded.dominant_phase, sample_count=excluded.sample_count, updated_at=excluded.updated_at`},
		{&w.stmtInsertBaseline, `INSERT INTO fingerprint_baseline (comm, avg_cpu, avg_rss_kb, avg_threads, avg_fd_count, avg_net_conns, dominant_phase, created_at, version, label) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`},
	}
	for _, p := range stmts {
		stmt, err := s.db.Prepare(p.text)
		if err != nil {
			return nil, apperr.New(apperr.StoreExec, fmt.Errorf("prepare %q: %w", p.text, err))
		}
		*p.dst = stmt
	}
	return w, nil
}

// Begin starts the per-tick transaction. All prepared statements route
// through it via Tx.Stmt until Commit or Rollback.
func (w *Writer) Begin() error {
	tx, err := w.db.Begin()
	if err != nil {
		return apperr.New(apperr.TxnBegin, err)
	}
	w.tx = tx
	return nil
}

// Commit commits the current transaction. On failure it rolls back and
// reports TxnCommit; previously executed statements for this tick become
// invisible, matching spec.md §4.3.
func (w *Writer) Commit() error {
	if w.tx == nil {
		return apperr.New(apperr.TxnCommit, fmt.Errorf("commit without begin"))
	}
	err := w.tx.Commit()
	w.tx = nil
	if err != nil {
		// database/sql closes the Tx after a Commit attempt, so end any
		// transaction sqlite left open on the (single) connection directly.
		_, _ = w.db.Exec("ROLLBACK")
		return apperr.New(apperr.TxnCommit, err)
	}
	return nil
}

// Rollback discards the current transaction, if any.
func (w *Writer) Rollback() error {
	if w.tx == nil {
		return nil
	}
	err := w.tx.Rollback()
	w.tx = nil
	return err
}

func (w *Writer) inTx(stmt *sql.Stmt) *sql.Stmt {
	if w.tx == nil {
		return stmt
	}
	return w.tx.Stmt(stmt)
}

// UpsertAgent does UPDATE-first, checking RowsAffected, and INSERTs only
// when the UPDATE touched zero rows — exactly spec.md §4.3.
func (w *Writer) UpsertAgent(a model.Agent) error {
	res, err := w.inTx(w.stmtUpdateAgent).Exec(a.LastSeen, a.PID, a.Comm)
	if err != nil {
		return apperr.New(apperr.StoreExec, fmt.Errorf("update agent: %w", err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.New(apperr.StoreExec, fmt.Errorf("update agent rows affected: %w", err))
	}
	if n > 0 {
		return nil
	}
	if _, err := w.inTx(w.stmtInsertAgent).Exec(a.PID, a.Comm, a.Args, a.FirstSeen, a.LastSeen); err != nil {
		return apperr.New(apperr.StoreExec, fmt.Errorf("insert agent: %w", err))
	}
	return nil
}

// InsertProcessSample writes one ProcessSample row.
func (w *Writer) InsertProcessSample(p model.ProcessSample) error {
	_, err := w.inTx(w.stmtInsertProcessSample).Exec(p.TS, p.PID, p.User, p.CPU, p.Mem, p.RSSKB, p.Stat, p.ETimes, p.Comm, p.Args)
	if err != nil {
		return apperr.New(apperr.StoreExec, fmt.Errorf("insert process_sample: %w", err))
	}
	return nil
}

// InsertStatusSample writes one StatusRecord row.
func (w *Writer) InsertStatusSample(s model.StatusRecord) error {
	_, err := w.inTx(w.stmtInsertStatusSample).Exec(s.TS, s.PID, s.State, s.Threads, s.VMRSSKB, s.VMSwapKB, s.VoluntaryCtxtSwitches, s.NonvoluntaryCtxtSwitches)
	if err != nil {
		return apperr.New(apperr.StoreExec, fmt.Errorf("insert status_sample: %w", err))
	}
	return nil
}

// InsertFdRecord writes one FdRecord row.
func (w *Writer) InsertFdRecord(f model.FdRecord) error {
	_, err := w.inTx(w.stmtInsertFdRecord).Exec(f.TS, f.PID, f.FdNum, string(f.FdType), f.Path)
	if err != nil {
		return apperr.New(apperr.StoreExec, fmt.Errorf("insert fd_record: %w", err))
	}
	return nil
}

// InsertNetConnection writes one NetConnection row.
func (w *Writer) InsertNetConnection(n model.NetConnection) error {
	_, err := w.inTx(w.stmtInsertNetConnection).Exec(n.TS, n.PID, n.Protocol, n.LocalAddr, n.LocalPort, n.RemoteAddr, n.RemotePort, n.State)
	if err != nil {
		return apperr.New(apperr.StoreExec, fmt.Errorf("insert net_connection: %w", err))
	}
	return nil
}

// InsertAlert writes one fired Alert row.
func (w *Writer) InsertAlert(a model.Alert) error {
	_, err := w.inTx(w.stmtInsertAlert).Exec(a.TS, a.PID, string(a.Severity), a.Category, a.Message, a.Value, a.Threshold)
	if err != nil {
		return apperr.New(apperr.StoreExec, fmt.Errorf("insert alert: %w", err))
	}
	return nil
}

// UpsertFingerprint writes the periodic fingerprint snapshot for (pid, comm).
// Unlike the tick's per-sample writes this is not required to run inside a
// transaction, but it honors one if Begin has been called.
func (w *Writer) UpsertFingerprint(f model.Fingerprint) error {
	_, err := w.inTx(w.stmtUpsertFingerprint).Exec(f.PID, f.Comm, f.AvgCPU, f.AvgRSSKB, f.AvgThreads, f.AvgFDCount, f.AvgNetConns, string(f.DominantPhase), f.SampleCount, f.UpdatedAt)
	if err != nil {
		return apperr.New(apperr.StoreExec, fmt.Errorf("upsert fingerprint: %w", err))
	}
	return nil
}

// InsertBaseline writes one write-once baseline snapshot row.
func (w *Writer) InsertBaseline(b model.Baseline) error {
	_, err := w.inTx(w.stmtInsertBaseline).Exec(b.Comm, b.AvgCPU, b.AvgRSSKB, b.AvgThreads, b.AvgFDCount, b.AvgNetConns, string(b.DominantPhase), b.CreatedAt, b.Version, b.Label)
	if err != nil {
		return apperr.New(apperr.StoreExec, fmt.Errorf("insert fingerprint_baseline: %w", err))
	}
	return nil
}

// Close closes all prepared statements.
func (w *Writer) Close() error {
	stmts := []*sql.Stmt{
		w.stmtUpdateAgent, w.stmtInsertAgent, w.stmtInsertProcessSample,
		w.stmtInsertStatusSample, w.stmtInsertFdRecord, w.stmtInsertNetConnection,
		w.stmtInsertAlert, w.stmtUpsertFingerprint, w.stmtInsertBaseline,
	}
	var firstErr error
	for _, s := range stmts {
		if s == nil {
			continue
		}
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

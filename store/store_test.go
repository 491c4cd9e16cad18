package store

import (
	"path/filepath"
	"testing"

	"github.com/dmaynor/agent-watch/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agent-watch.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenAppliesSchemaIdempotently(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent-watch.db")
	s1, err := Open(path)
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("second Open (idempotent DDL) should not fail: %v", err)
	}
	s2.Close()
}

func TestUpsertAgentUpdateThenInsert(t *testing.T) {
	s := openTestStore(t)
	w, err := NewWriter(s)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	defer w.Close()

	if err := w.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	a := model.Agent{PID: 100, Comm: "claude", Args: "--daemon", FirstSeen: 1000, LastSeen: 1000}
	if err := w.UpsertAgent(a); err != nil {
		t.Fatalf("UpsertAgent (insert path): %v", err)
	}
	a.LastSeen = 1005
	if err := w.UpsertAgent(a); err != nil {
		t.Fatalf("UpsertAgent (update path): %v", err)
	}
	if err := w.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	r := NewReader(s)
	agents, err := r.GetAliveAgents()
	if err != nil {
		t.Fatalf("GetAliveAgents: %v", err)
	}
	if len(agents) != 1 {
		t.Fatalf("expected exactly one agent row after update-then-insert, got %d", len(agents))
	}
	if agents[0].LastSeen != 1005 {
		t.Fatalf("LastSeen = %d, want 1005", agents[0].LastSeen)
	}
}

func TestTickWritesVisibleAfterCommit(t *testing.T) {
	s := openTestStore(t)
	w, err := NewWriter(s)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	defer w.Close()

	if err := w.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	sample := model.ProcessSample{TS: 1000, PID: 42, CPU: 1.5, RSSKB: 2048, Stat: "S", Comm: "codex"}
	if err := w.InsertProcessSample(sample); err != nil {
		t.Fatalf("InsertProcessSample: %v", err)
	}
	if err := w.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	r := NewReader(s)
	samples, err := r.GetLatestSamplesPerAgent()
	if err != nil {
		t.Fatalf("GetLatestSamplesPerAgent: %v", err)
	}
	if len(samples) != 1 || samples[0].PID != 42 {
		t.Fatalf("expected one sample for pid 42, got %+v", samples)
	}
}

func TestRollbackDiscardsWrites(t *testing.T) {
	s := openTestStore(t)
	w, err := NewWriter(s)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	defer w.Close()

	if err := w.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	sample := model.ProcessSample{TS: 1000, PID: 7, Stat: "R"}
	if err := w.InsertProcessSample(sample); err != nil {
		t.Fatalf("InsertProcessSample: %v", err)
	}
	if err := w.Rollback(); err != nil {
		t.Fatalf("Rollback: %v", err)
	}

	r := NewReader(s)
	pids, err := r.GetDistinctPIDs()
	if err != nil {
		t.Fatalf("GetDistinctPIDs: %v", err)
	}
	if len(pids) != 0 {
		t.Fatalf("expected rollback to discard writes, got pids %+v", pids)
	}
}

func TestGetRecentAlertsRespectsLimit(t *testing.T) {
	s := openTestStore(t)
	w, err := NewWriter(s)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	defer w.Close()

	if err := w.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	for i := 0; i < 5; i++ {
		a := model.Alert{TS: int64(1000 + i), PID: 1, Severity: model.SeverityWarning, Category: "cpu", Message: "high cpu"}
		if err := w.InsertAlert(a); err != nil {
			t.Fatalf("InsertAlert: %v", err)
		}
	}
	if err := w.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	r := NewReader(s)
	alerts, err := r.GetRecentAlerts(2)
	if err != nil {
		t.Fatalf("GetRecentAlerts: %v", err)
	}
	if len(alerts) != 2 {
		t.Fatalf("expected limit=2 alerts, got %d", len(alerts))
	}
}

func TestGetFingerprintMissingReturnsNotOK(t *testing.T) {
	s := openTestStore(t)
	r := NewReader(s)
	_, ok, err := r.GetFingerprint(999, "nosuch")
	if err != nil {
		t.Fatalf("GetFingerprint: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for missing fingerprint")
	}
}

func TestBaselineWriteOnceThenReadLatest(t *testing.T) {
	s := openTestStore(t)
	w, err := NewWriter(s)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	defer w.Close()

	if err := w.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	b := model.Baseline{Comm: "claude", AvgCPU: 5, CreatedAt: 1000, Label: "release-1", DominantPhase: model.PhaseIdle}
	if err := w.InsertBaseline(b); err != nil {
		t.Fatalf("InsertBaseline: %v", err)
	}
	if err := w.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	r := NewReader(s)
	got, ok, err := r.GetLatestBaseline("claude", "release-1")
	if err != nil {
		t.Fatalf("GetLatestBaseline: %v", err)
	}
	if !ok {
		t.Fatal("expected baseline to be found")
	}
	if got.AvgCPU != 5 {
		t.Fatalf("AvgCPU = %v, want 5", got.AvgCPU)
	}
}

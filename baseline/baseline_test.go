package baseline

import (
	"testing"

	"github.com/dmaynor/agent-watch/model"
)

type fakeStore struct {
	agents       []model.Agent
	fingerprints map[string][]model.Fingerprint
	baselines    map[string]model.Baseline
	inserted     []model.Baseline
}

func (f *fakeStore) GetAliveAgents() ([]model.Agent, error) { return f.agents, nil }
func (f *fakeStore) GetFingerprintsByComm(comm string) ([]model.Fingerprint, error) {
	return f.fingerprints[comm], nil
}
func (f *fakeStore) GetLatestBaseline(comm, label string) (model.Baseline, bool, error) {
	b, ok := f.baselines[comm+"/"+label]
	return b, ok, nil
}
func (f *fakeStore) InsertBaseline(b model.Baseline) error {
	f.inserted = append(f.inserted, b)
	return nil
}

func TestSaveInsertsOneBaselinePerFingerprint(t *testing.T) {
	fs := &fakeStore{
		agents: []model.Agent{{PID: 1, Comm: "claude", Alive: true}},
		fingerprints: map[string][]model.Fingerprint{
			"claude": {{PID: 1, Comm: "claude", AvgCPU: 10, DominantPhase: model.PhaseActive}},
		},
	}
	if err := Save(fs, fs, "release-1", 5000); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if len(fs.inserted) != 1 {
		t.Fatalf("expected 1 inserted baseline, got %d", len(fs.inserted))
	}
	if fs.inserted[0].Label != "release-1" || fs.inserted[0].Version != "1.0" {
		t.Fatalf("unexpected baseline row: %+v", fs.inserted[0])
	}
}

func TestCompareEmitsNumericRegressionAboveThreshold(t *testing.T) {
	fs := &fakeStore{
		agents: []model.Agent{{PID: 1, Comm: "claude", Alive: true}},
		baselines: map[string]model.Baseline{
			"claude/release-1": {Comm: "claude", AvgCPU: 10, DominantPhase: model.PhaseIdle},
		},
		fingerprints: map[string][]model.Fingerprint{
			"claude": {{PID: 1, Comm: "claude", AvgCPU: 20, DominantPhase: model.PhaseIdle}},
		},
	}
	findings, err := Compare(fs, "release-1", 0)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if len(findings) != 1 || findings[0].Metric != "avg_cpu" {
		t.Fatalf("expected one avg_cpu finding, got %+v", findings)
	}
	if findings[0].ChangePct != 100 {
		t.Fatalf("ChangePct = %v, want 100", findings[0].ChangePct)
	}
}

func TestCompareSkipsBelowThreshold(t *testing.T) {
	fs := &fakeStore{
		agents: []model.Agent{{PID: 1, Comm: "claude", Alive: true}},
		baselines: map[string]model.Baseline{
			"claude/release-1": {Comm: "claude", AvgCPU: 10},
		},
		fingerprints: map[string][]model.Fingerprint{
			"claude": {{PID: 1, Comm: "claude", AvgCPU: 10.5}},
		},
	}
	findings, err := Compare(fs, "release-1", 0)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if len(findings) != 0 {
		t.Fatalf("expected no findings below threshold, got %+v", findings)
	}
}

func TestCompareEmitsDominantPhaseChange(t *testing.T) {
	fs := &fakeStore{
		agents: []model.Agent{{PID: 1, Comm: "claude", Alive: true}},
		baselines: map[string]model.Baseline{
			"claude/release-1": {Comm: "claude", DominantPhase: model.PhaseIdle},
		},
		fingerprints: map[string][]model.Fingerprint{
			"claude": {{PID: 1, Comm: "claude", DominantPhase: model.PhaseBurst}},
		},
	}
	findings, err := Compare(fs, "release-1", 0)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	found := false
	for _, f := range findings {
		if f.Metric == "dominant_phase" {
			found = true
			if f.ChangePct != 100 {
				t.Fatalf("dominant_phase ChangePct = %v, want 100", f.ChangePct)
			}
		}
	}
	if !found {
		t.Fatal("expected a dominant_phase finding")
	}
}

func TestCompareCapsAtSixFindings(t *testing.T) {
	fs := &fakeStore{
		agents: []model.Agent{{PID: 1, Comm: "claude", Alive: true}},
		baselines: map[string]model.Baseline{
			"claude/release-1": {Comm: "claude", AvgCPU: 1, AvgRSSKB: 1, AvgThreads: 1, AvgFDCount: 1, AvgNetConns: 1, DominantPhase: model.PhaseIdle},
		},
		fingerprints: map[string][]model.Fingerprint{
			"claude": {{PID: 1, Comm: "claude", AvgCPU: 100, AvgRSSKB: 100, AvgThreads: 100, AvgFDCount: 100, AvgNetConns: 100, DominantPhase: model.PhaseBurst}},
		},
	}
	findings, err := Compare(fs, "release-1", 0)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if len(findings) != 6 {
		t.Fatalf("expected exactly 6 findings (5 numeric + 1 categorical), got %d", len(findings))
	}
}

func TestAlertForFindingSeverityThreshold(t *testing.T) {
	low := AlertForFinding(model.RegressionFinding{Metric: "avg_cpu", ChangePct: 25}, 1000, 1)
	if low.Severity != model.SeverityInfo {
		t.Fatalf("expected info severity for 25%% change, got %q", low.Severity)
	}
	high := AlertForFinding(model.RegressionFinding{Metric: "avg_cpu", ChangePct: -60}, 1000, 1)
	if high.Severity != model.SeverityWarning {
		t.Fatalf("expected warning severity for -60%% change, got %q", high.Severity)
	}
	if high.Category != "regression" || high.Message != "avg_cpu" {
		t.Fatalf("unexpected alert shape: %+v", high)
	}
}

// Package baseline implements the two baseline operations: saving current
// fingerprints as a labeled snapshot, and comparing the current fingerprints
// against a saved baseline to emit regression findings. Grounded on the
// teacher's saveIncidentSnapshot/compactSummary JSON-diffing idiom in
// engine/daemon.go, generalized here from ad hoc JSON diffing to a typed
// percent-change comparison across stored SQL rows.
package baseline

import (
	"fmt"
	"math"

	"github.com/dmaynor/agent-watch/model"
)

// reader is the subset of store.Reader this package needs, kept as an
// interface so Save/Compare are testable without a real database.
type reader interface {
	GetAliveAgents() ([]model.Agent, error)
	GetFingerprintsByComm(comm string) ([]model.Fingerprint, error)
	GetLatestBaseline(comm, label string) (model.Baseline, bool, error)
}

// writer is the subset of store.Writer this package needs.
type writer interface {
	InsertBaseline(b model.Baseline) error
}

// changeThresholdPct is the default threshold_pct spec.md §4.7 names.
const changeThresholdPct = 20.0

// Save reads every currently-known agent's comm set, pulls their current
// fingerprints, and inserts one write-once fingerprint_baseline row per
// fingerprint with the given label. Duplicate (comm, label) pairs are
// allowed; nothing is ever overwritten.
func Save(r reader, w writer, label string, now int64) error {
	agents, err := r.GetAliveAgents()
	if err != nil {
		return fmt.Errorf("baseline save: list agents: %w", err)
	}

	seenComm := make(map[string]bool)
	for _, a := range agents {
		if seenComm[a.Comm] {
			continue
		}
		seenComm[a.Comm] = true

		fps, err := r.GetFingerprintsByComm(a.Comm)
		if err != nil {
			return fmt.Errorf("baseline save: fingerprints for %q: %w", a.Comm, err)
		}
		for _, fp := range fps {
			b := model.Baseline{
				Comm:          fp.Comm,
				AvgCPU:        fp.AvgCPU,
				AvgRSSKB:      fp.AvgRSSKB,
				AvgThreads:    fp.AvgThreads,
				AvgFDCount:    fp.AvgFDCount,
				AvgNetConns:   fp.AvgNetConns,
				DominantPhase: fp.DominantPhase,
				CreatedAt:     now,
				Version:       "1.0",
				Label:         label,
			}
			if err := w.InsertBaseline(b); err != nil {
				return fmt.Errorf("baseline save: insert %q/%q: %w", fp.Comm, label, err)
			}
		}
	}
	return nil
}

// Compare reads the latest baseline and current fingerprints for every
// comm currently tracked by an alive agent, and emits up to six
// RegressionFindings per comm: five numeric metrics plus the categorical
// dominant_phase comparison. thresholdPct<=0 uses the spec default of 20.
func Compare(r reader, label string, thresholdPct float64) ([]model.RegressionFinding, error) {
	if thresholdPct <= 0 {
		thresholdPct = changeThresholdPct
	}

	agents, err := r.GetAliveAgents()
	if err != nil {
		return nil, fmt.Errorf("baseline compare: list agents: %w", err)
	}

	var findings []model.RegressionFinding
	seenComm := make(map[string]bool)
	for _, a := range agents {
		if seenComm[a.Comm] {
			continue
		}
		seenComm[a.Comm] = true

		base, ok, err := r.GetLatestBaseline(a.Comm, label)
		if err != nil {
			return nil, fmt.Errorf("baseline compare: baseline for %q: %w", a.Comm, err)
		}
		if !ok {
			continue
		}

		fps, err := r.GetFingerprintsByComm(a.Comm)
		if err != nil {
			return nil, fmt.Errorf("baseline compare: fingerprints for %q: %w", a.Comm, err)
		}
		for _, fp := range fps {
			findings = append(findings, CompareFingerprint(base, fp, thresholdPct)...)
		}
	}
	return findings, nil
}

// CompareFingerprint compares one fingerprint against one baseline,
// emitting up to six findings (five numeric metrics plus the categorical
// dominant_phase comparison). Exported so the engine's per-tick live
// regression check (spec.md §4.7 "Live regression") can reuse the exact
// same rule without a store round trip for a fingerprint already in hand.
func CompareFingerprint(base model.Baseline, fp model.Fingerprint, thresholdPct float64) []model.RegressionFinding {
	if thresholdPct <= 0 {
		thresholdPct = changeThresholdPct
	}
	return compareOne(base, fp, thresholdPct)
}

func compareOne(base model.Baseline, fp model.Fingerprint, thresholdPct float64) []model.RegressionFinding {
	var out []model.RegressionFinding

	numeric := []struct {
		metric   string
		baseline float64
		current  float64
	}{
		{"avg_cpu", base.AvgCPU, fp.AvgCPU},
		{"avg_rss_kb", base.AvgRSSKB, fp.AvgRSSKB},
		{"avg_threads", base.AvgThreads, fp.AvgThreads},
		{"avg_fd_count", base.AvgFDCount, fp.AvgFDCount},
		{"avg_net_conns", base.AvgNetConns, fp.AvgNetConns},
	}
	for _, n := range numeric {
		if n.baseline == 0 && n.current == 0 {
			continue
		}
		changePct := 100.0
		if n.baseline != 0 {
			changePct = (n.current - n.baseline) / math.Abs(n.baseline) * 100
		}
		if math.Abs(changePct) >= thresholdPct {
			out = append(out, model.RegressionFinding{
				Comm:      fp.Comm,
				Metric:    n.metric,
				Baseline:  n.baseline,
				Current:   n.current,
				ChangePct: changePct,
			})
		}
	}

	if base.DominantPhase != fp.DominantPhase {
		out = append(out, model.RegressionFinding{
			Comm:      fp.Comm,
			Metric:    "dominant_phase",
			Baseline:  phaseOrdinal(base.DominantPhase),
			Current:   phaseOrdinal(fp.DominantPhase),
			ChangePct: 100,
		})
	}

	if len(out) > 6 {
		out = out[:6]
	}
	return out
}

// phaseOrdinal gives dominant_phase a numeric stand-in so RegressionFinding
// (whose Baseline/Current fields are float64) can still carry it; callers
// comparing categorical findings should use Metric=="dominant_phase" and
// read the human labels from the Fingerprint/Baseline rows directly.
func phaseOrdinal(p model.Phase) float64 {
	switch p {
	case model.PhaseIdle:
		return 0
	case model.PhaseActive:
		return 1
	case model.PhaseBurst:
		return 2
	default:
		return -1
	}
}

// AlertForFinding maps one regression finding to the live-regression alert
// spec.md §4.7 describes: category "regression", message is the metric
// name, severity warning if |change_pct| >= 50 else info.
func AlertForFinding(f model.RegressionFinding, ts int64, pid int32) model.Alert {
	sev := model.SeverityInfo
	if math.Abs(f.ChangePct) >= 50 {
		sev = model.SeverityWarning
	}
	return model.Alert{
		TS:        ts,
		PID:       pid,
		Severity:  sev,
		Category:  "regression",
		Message:   f.Metric,
		Value:     f.Current,
		Threshold: f.Baseline,
	}
}

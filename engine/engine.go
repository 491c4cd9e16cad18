// Package engine is the per-PID AnalysisEngine: threshold checks, rolling
// statistics, z-score and leak anomaly detection, phase classification,
// context-switch rate, and fingerprint accumulation with periodic baseline
// regression. Grounded on the teacher's engine.Engine/engine.History
// pattern (a per-entity state map backed by ring buffers).
package engine

import (
	"fmt"
	"math"

	"github.com/dmaynor/agent-watch/baseline"
	"github.com/dmaynor/agent-watch/model"
	"github.com/dmaynor/agent-watch/ringstats"
	"github.com/dmaynor/agent-watch/statmath"
)

const (
	ringWindow          = 120
	zScoreThreshold     = 3.0
	zScoreMinSamples    = 10
	leakMinHistory      = 30
	leakSlopeThreshold  = 10.0 // kB/sample
	leakRSquaredFloor   = 0.7
	ctxPressureFloor    = 0.5
	fingerprintInterval = 10
	baselineLabel       = "auto"
)

// fingerprintWriter is the subset of store.Writer the engine needs to
// persist periodic fingerprints.
type fingerprintWriter interface {
	UpsertFingerprint(f model.Fingerprint) error
}

// baselineReader is the subset of store.Reader needed to run the live
// regression check against a saved baseline.
type baselineReader interface {
	GetLatestBaseline(comm, label string) (model.Baseline, bool, error)
}

// PidState is the per-PID rolling state the engine accumulates across
// ticks. It is created on the first sample seen for a PID and lives until
// engine shutdown; PID reuse is tolerated, not detected (see the engine's
// package-level design note below).
type PidState struct {
	Comm string

	cpuStats *ringstats.RingStats
	rssStats *ringstats.RingStats

	rssHistory []float64

	prevVolCtx  int64
	prevNvolCtx int64
	prevTS      int64

	cpuSum    float64
	rssSum    float64
	threadSum float64
	fdSum     float64
	netSum    float64
	sampleCount int64

	phaseIdle   int64
	phaseActive int64
	phaseBurst  int64
}

func newPidState(comm string) *PidState {
	return &PidState{
		Comm:     comm,
		cpuStats: ringstats.New(ringWindow),
		rssStats: ringstats.New(ringWindow),
	}
}

// Engine holds per-PID state and immutable thresholds. Per-PID state
// persists for the life of the engine (no eviction), matching spec's
// accepted PID-reuse limitation: stale series simply accumulate until
// restart.
type Engine struct {
	thresholds model.Thresholds
	perPID     map[int32]*PidState

	writer fingerprintWriter
	reader baselineReader
}

// New constructs an Engine. writer/reader may be nil, in which case
// periodic fingerprint persistence and live baseline regression are
// skipped — useful for tests that only exercise the in-memory analysis.
func New(thresholds model.Thresholds, writer fingerprintWriter, reader baselineReader) *Engine {
	return &Engine{
		thresholds: thresholds,
		perPID:     make(map[int32]*PidState),
		writer:     writer,
		reader:     reader,
	}
}

// TickInput is everything process_tick needs for one tick, gathered by the
// collector.
type TickInput struct {
	TS         int64
	Samples    []model.ProcessSample
	Statuses   map[int32]model.StatusRecord
	FDCounts   map[int32]int
	ConnCounts map[int32]int
}

// ProcessTick runs the full per-sample pipeline (1)-(7) from spec.md §4.5
// and returns every alert fired this tick, across all PIDs.
func (e *Engine) ProcessTick(in TickInput) []model.Alert {
	var alerts []model.Alert
	for _, sample := range in.Samples {
		status, hasStatus := in.Statuses[sample.PID]
		fdCount := in.FDCounts[sample.PID]
		connCount := in.ConnCounts[sample.PID]

		state, ok := e.perPID[sample.PID]
		if !ok {
			state = newPidState(sample.Comm)
			e.perPID[sample.PID] = state
		}

		alerts = append(alerts, e.thresholdAlerts(sample, status, hasStatus, fdCount, in.TS)...)

		state.cpuStats.Push(sample.CPU)
		state.rssStats.Push(float64(sample.RSSKB))

		if a, fired := e.zScoreAlert(state, sample, in.TS); fired {
			alerts = append(alerts, a)
		}

		if a, fired := e.leakAlert(state, sample, in.TS); fired {
			alerts = append(alerts, a)
		}

		e.classifyPhase(state, sample)

		if hasStatus {
			if a, fired := e.contextSwitchAlert(state, sample, status, in.TS); fired {
				alerts = append(alerts, a)
			}
		}

		state.cpuSum += sample.CPU
		state.rssSum += float64(sample.RSSKB)
		state.threadSum += float64(status.Threads)
		state.fdSum += float64(fdCount)
		state.netSum += float64(connCount)
		state.sampleCount++

		if state.sampleCount%fingerprintInterval == 0 {
			alerts = append(alerts, e.persistFingerprintAndRegress(sample.PID, state, in.TS)...)
		}
	}
	return alerts
}

// thresholdAlerts implements step (1): two-tier CPU/RSS/FD/threads checks,
// one alert per category, critical suppresses warning at the same tier.
func (e *Engine) thresholdAlerts(sample model.ProcessSample, status model.StatusRecord, hasStatus bool, fdCount int, ts int64) []model.Alert {
	var out []model.Alert

	if a, ok := tieredAlert(ts, sample.PID, "cpu", sample.CPU, e.thresholds.CPUWarning, e.thresholds.CPUCritical); ok {
		out = append(out, a)
	}

	rssMB := float64(sample.RSSKB) / 1024
	if a, ok := tieredAlert(ts, sample.PID, "memory", rssMB, e.thresholds.RSSWarningMB, e.thresholds.RSSCriticalMB); ok {
		out = append(out, a)
	}

	fdValue := saturateInt32(fdCount)
	if a, ok := tieredAlert(ts, sample.PID, "fd", float64(fdValue), float64(e.thresholds.FDWarning), float64(e.thresholds.FDCritical)); ok {
		out = append(out, a)
	}

	if hasStatus {
		if a, ok := tieredAlert(ts, sample.PID, "threads", float64(status.Threads), float64(e.thresholds.ThreadsWarning), float64(e.thresholds.ThreadsCritical)); ok {
			out = append(out, a)
		}
	}

	return out
}

func tieredAlert(ts int64, pid int32, category string, value, warn, crit float64) (model.Alert, bool) {
	switch {
	case value >= crit:
		return model.Alert{TS: ts, PID: pid, Severity: model.SeverityCritical, Category: category, Message: fmt.Sprintf("%s at critical tier", category), Value: value, Threshold: crit}, true
	case value >= warn:
		return model.Alert{TS: ts, PID: pid, Severity: model.SeverityWarning, Category: category, Message: fmt.Sprintf("%s at warning tier", category), Value: value, Threshold: warn}, true
	default:
		return model.Alert{}, false
	}
}

func saturateInt32(v int) int32 {
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	return int32(v)
}

// zScoreAlert implements step (3).
func (e *Engine) zScoreAlert(state *PidState, sample model.ProcessSample, ts int64) (model.Alert, bool) {
	if state.cpuStats.Count() < zScoreMinSamples {
		return model.Alert{}, false
	}
	mean := state.cpuStats.Mean()
	stddev := state.cpuStats.StdDev()
	if stddev < 1e-9 {
		return model.Alert{}, false
	}
	z := math.Abs(sample.CPU-mean) / stddev
	if z <= zScoreThreshold {
		return model.Alert{}, false
	}
	return model.Alert{
		TS: ts, PID: sample.PID, Severity: model.SeverityWarning,
		Category: "anomaly:cpu", Message: "cpu z-score anomaly",
		Value: sample.CPU, Threshold: mean + zScoreThreshold*stddev,
	}, true
}

// leakAlert implements step (4).
func (e *Engine) leakAlert(state *PidState, sample model.ProcessSample, ts int64) (model.Alert, bool) {
	state.rssHistory = append(state.rssHistory, float64(sample.RSSKB))
	if len(state.rssHistory) < leakMinHistory {
		return model.Alert{}, false
	}
	reg, ok := statmath.LinReg(state.rssHistory)
	if !ok {
		return model.Alert{}, false
	}
	if reg.Slope > leakSlopeThreshold && reg.RSquared > leakRSquaredFloor {
		return model.Alert{
			TS: ts, PID: sample.PID, Severity: model.SeverityWarning,
			Category: "memory_leak", Message: "sustained rss growth",
			Value: reg.Slope, Threshold: leakSlopeThreshold,
		}, true
	}
	return model.Alert{}, false
}

// classifyPhase implements step (5).
func (e *Engine) classifyPhase(state *PidState, sample model.ProcessSample) {
	running := len(sample.Stat) > 0 && sample.Stat[0] == 'R'
	var phase model.Phase
	switch {
	case sample.CPU > 80:
		phase = model.PhaseBurst
	case running && sample.CPU > 20:
		phase = model.PhaseBurst
	case running:
		phase = model.PhaseActive
	case sample.CPU < 1:
		phase = model.PhaseIdle
	default:
		phase = model.PhaseActive
	}

	switch phase {
	case model.PhaseIdle:
		state.phaseIdle++
	case model.PhaseBurst:
		state.phaseBurst++
	default:
		state.phaseActive++
	}
}

// contextSwitchAlert implements step (6).
func (e *Engine) contextSwitchAlert(state *PidState, sample model.ProcessSample, status model.StatusRecord, ts int64) (model.Alert, bool) {
	defer func() {
		state.prevVolCtx = status.VoluntaryCtxtSwitches
		state.prevNvolCtx = status.NonvoluntaryCtxtSwitches
		state.prevTS = ts
	}()

	if state.prevTS <= 0 {
		return model.Alert{}, false
	}
	dt := ts - state.prevTS
	if dt <= 0 {
		return model.Alert{}, false
	}
	dVol := status.VoluntaryCtxtSwitches - state.prevVolCtx
	dNvol := status.NonvoluntaryCtxtSwitches - state.prevNvolCtx
	if dVol < 0 || dNvol < 0 {
		// counters reset (PID reuse or kernel wrap); treat as no pressure this tick.
		return model.Alert{}, false
	}
	total := dVol + dNvol
	var pressure float64
	if total > 0 {
		pressure = float64(dNvol) / float64(total)
	}
	if pressure <= ctxPressureFloor {
		return model.Alert{}, false
	}
	return model.Alert{
		TS: ts, PID: sample.PID, Severity: model.SeverityInfo,
		Category: "scheduling", Message: "high involuntary context-switch pressure",
		Value: pressure, Threshold: ctxPressureFloor,
	}, true
}

// dominantPhase picks the argmax of the three phase counters, ties broken
// burst > active > idle per spec.md §4.5 step 7.
func dominantPhase(state *PidState) model.Phase {
	if state.phaseBurst >= state.phaseActive && state.phaseBurst >= state.phaseIdle {
		return model.PhaseBurst
	}
	if state.phaseActive >= state.phaseIdle {
		return model.PhaseActive
	}
	return model.PhaseIdle
}

// persistFingerprintAndRegress implements step (7)'s periodic write plus
// the live baseline regression check: when a saved baseline exists for
// this comm, each finding from comparing it to the just-written
// fingerprint is returned as a "regression" alert. The engine does not
// write alerts to the store itself.
func (e *Engine) persistFingerprintAndRegress(pid int32, state *PidState, ts int64) []model.Alert {
	n := float64(state.sampleCount)
	fp := model.Fingerprint{
		PID:           pid,
		Comm:          state.Comm,
		AvgCPU:        state.cpuSum / n,
		AvgRSSKB:      state.rssSum / n,
		AvgThreads:    state.threadSum / n,
		AvgFDCount:    state.fdSum / n,
		AvgNetConns:   state.netSum / n,
		DominantPhase: dominantPhase(state),
		SampleCount:   state.sampleCount,
		UpdatedAt:     ts,
	}

	if e.writer != nil {
		_ = e.writer.UpsertFingerprint(fp)
	}

	if e.reader == nil {
		return nil
	}
	base, ok, err := e.reader.GetLatestBaseline(fp.Comm, baselineLabel)
	if err != nil || !ok {
		return nil
	}

	findings := baseline.CompareFingerprint(base, fp, 0)
	out := make([]model.Alert, 0, len(findings))
	for _, f := range findings {
		out = append(out, baseline.AlertForFinding(f, ts, pid))
	}
	return out
}

// Package collector is the per-tick orchestrator: scan for agent
// processes, sample each one, persist everything in one transaction, and
// hand back an owned in-memory result for the analysis engine. Grounded on
// the teacher's collector.Registry.CollectAll fan-out and
// ProcessCollector.Collect per-PID read pipeline, restructured around a
// single SQL transaction instead of an in-memory snapshot struct.
package collector

import (
	"fmt"

	"github.com/dmaynor/agent-watch/model"
	"github.com/dmaynor/agent-watch/procfs"
	"github.com/dmaynor/agent-watch/scanner"
	"github.com/dmaynor/agent-watch/security"
)

// writer is the subset of store.Writer the collector drives.
type writer interface {
	Begin() error
	Commit() error
	Rollback() error
	UpsertAgent(a model.Agent) error
	InsertProcessSample(p model.ProcessSample) error
	InsertStatusSample(s model.StatusRecord) error
	InsertFdRecord(f model.FdRecord) error
	InsertNetConnection(n model.NetConnection) error
	InsertAlert(a model.Alert) error
}

// Collector is the atomic per-tick unit of observation.
type Collector struct {
	src       procfs.Source
	scan      *scanner.Scanner
	w         writer
	tickCount int64
	bootTime  int64
	bootOnce  bool
}

// New builds a Collector over a ProcSource, a configured Scanner, and a
// store.Writer-shaped sink.
func New(src procfs.Source, scan *scanner.Scanner, w writer) *Collector {
	return &Collector{src: src, scan: scan, w: w}
}

// Tick runs one atomic observation cycle and returns the owned in-memory
// result, per spec.md §4.4.
func (c *Collector) Tick(now int64) (*model.TickResult, error) {
	c.tickCount++

	matches, err := c.scan.Scan()
	if err != nil {
		return &model.TickResult{TS: now}, fmt.Errorf("scan: %w", err)
	}
	result := &model.TickResult{
		TS:         now,
		FDCounts:   make(map[int32]int),
		ConnCounts: make(map[int32]int),
	}
	if len(matches) == 0 {
		return result, nil
	}
	result.AgentsFound = len(matches)

	if err := c.w.Begin(); err != nil {
		return &model.TickResult{TS: now}, fmt.Errorf("begin: %w", err)
	}

	for _, m := range matches {
		c.collectOne(m, now, result)
	}

	if err := c.w.Commit(); err != nil {
		_ = c.w.Rollback()
		result.Committed = false
		return result, fmt.Errorf("commit: %w", err)
	}
	result.Committed = true
	return result, nil
}

// collectOne runs the per-PID read/write pipeline. Write failures are
// swallowed with a WriteErrors increment; read failures fall back to a zero
// sample (stat) or skip that record kind (status, fds, connections) without
// counting. A bad PID never poisons the rest of the tick.
func (c *Collector) collectOne(m scanner.Match, now int64, result *model.TickResult) {
	agent := model.Agent{PID: m.PID, Comm: m.Comm, Args: m.Cmdline, FirstSeen: now, LastSeen: now}
	if err := c.w.UpsertAgent(agent); err != nil {
		result.WriteErrors++
		return
	}

	sample := c.collectSample(m, now)
	if err := c.w.InsertProcessSample(sample); err != nil {
		result.WriteErrors++
	}
	result.Samples = append(result.Samples, sample)

	if status, ok := c.collectStatus(m.PID, now); ok {
		if err := c.w.InsertStatusSample(status); err != nil {
			result.WriteErrors++
		} else {
			result.Statuses = append(result.Statuses, status)
		}
	}

	if fds, err := c.src.ListFDs(m.PID); err == nil {
		result.FDCounts[m.PID] = len(fds)
		records := make([]model.FdRecord, 0, len(fds))
		for _, fd := range fds {
			rec := model.FdRecord{TS: now, PID: m.PID, FdNum: fd.FdNum, FdType: model.FdType(fd.FdType), Path: fd.Path}
			if err := c.w.InsertFdRecord(rec); err != nil {
				result.WriteErrors++
				continue
			}
			records = append(records, rec)
		}
		for _, finding := range security.AuditFDs(records) {
			c.writeFinding(finding, now, result)
		}
	}

	if conns, err := c.src.ReadNetConnections(m.PID); err == nil {
		result.ConnCounts[m.PID] = len(conns)
		records := make([]model.NetConnection, 0, len(conns))
		for _, nc := range conns {
			rec := model.NetConnection{TS: now, PID: m.PID, Protocol: nc.Protocol, LocalAddr: nc.LocalAddr, LocalPort: nc.LocalPort, RemoteAddr: nc.RemoteAddr, RemotePort: nc.RemotePort, State: nc.State}
			if err := c.w.InsertNetConnection(rec); err != nil {
				result.WriteErrors++
				continue
			}
			records = append(records, rec)
		}
		for _, finding := range security.AuditConnections(records) {
			c.writeFinding(finding, now, result)
		}
	}
}

func (c *Collector) writeFinding(f security.Finding, now int64, result *model.TickResult) {
	alert := model.Alert{TS: now, PID: f.PID, Severity: f.Severity, Category: f.Category, Message: f.Message}
	if err := c.w.InsertAlert(alert); err != nil {
		result.WriteErrors++
	}
}

// collectSample reads /proc/[pid]/stat and computes the ProcessSample. On
// any read/parse failure it synthesizes a zero sample with stat="?" rather
// than dropping the PID, since the PID was proven to exist during scan.
func (c *Collector) collectSample(m scanner.Match, now int64) model.ProcessSample {
	st, err := c.src.ReadStat(m.PID)
	if err != nil {
		return model.ProcessSample{TS: now, PID: m.PID, User: c.src.ReadUser(m.PID), Stat: "?", Comm: m.Comm, Args: m.Cmdline}
	}

	ticksPerSec := c.src.ClockTicksPerSec()
	if ticksPerSec <= 0 {
		ticksPerSec = 100
	}

	bootTime := c.resolveBootTime()
	startedAt := bootTime + int64(st.StartTime)/ticksPerSec
	etimes := now - startedAt
	if etimes < 0 {
		etimes = 0
	}

	cpuSeconds := float64(st.UTime+st.STime) / float64(ticksPerSec)
	var cpuPct float64
	if etimes > 0 {
		cpuPct = cpuSeconds / float64(etimes) * 100
	}

	return model.ProcessSample{
		TS:     now,
		PID:    m.PID,
		User:   c.src.ReadUser(m.PID),
		CPU:    cpuPct,
		RSSKB:  st.RSSPages * pageSizeKB,
		Stat:   normalizeStat(st.State),
		ETimes: etimes,
		Comm:   m.Comm,
		Args:   m.Cmdline,
	}
}

// pageSizeKB assumes the common 4 KiB Linux page size; rss_pages * 4 gives
// rss_kb, matching the teacher's hard-coded page-size constant in
// collector/process.go.
const pageSizeKB = 4

// normalizeStat resolves spec.md §9's open question: read_stat always
// returns a single-letter state; this just guards against an empty string.
func normalizeStat(state string) string {
	if state == "" {
		return "?"
	}
	return state[:1]
}

func (c *Collector) resolveBootTime() int64 {
	if c.bootOnce {
		return c.bootTime
	}
	bt, err := c.src.BootTime()
	if err == nil {
		c.bootTime = bt
	}
	c.bootOnce = true
	return c.bootTime
}

func (c *Collector) collectStatus(pid int32, now int64) (model.StatusRecord, bool) {
	sf, err := c.src.ReadStatus(pid)
	if err != nil {
		return model.StatusRecord{}, false
	}
	return model.StatusRecord{
		TS:                       now,
		PID:                      pid,
		State:                    sf.State,
		Threads:                  sf.Threads,
		VMRSSKB:                  sf.VMRSSKB,
		VMSwapKB:                 sf.VMSwapKB,
		VoluntaryCtxtSwitches:    sf.VoluntaryCtxtSwitches,
		NonvoluntaryCtxtSwitches: sf.NonvoluntaryCtxtSwitches,
	}, true
}

// TickCount returns the number of ticks run so far (for diagnostics/logging).
func (c *Collector) TickCount() int64 { return c.tickCount }

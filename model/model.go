// Package model holds the plain data structures shared by the collector,
// analysis engine, store, and UI. Field names and semantics follow the
// agent-watch data model exactly: one struct per concept, JSON tags only on
// the types crossed over the wire (import/export, baseline snapshots).
package model

// ProcessSample is one tick's metrics for one PID.
type ProcessSample struct {
	TS      int64   `json:"ts"`
	PID     int32   `json:"pid"`
	User    string  `json:"user"`
	CPU     float64 `json:"cpu"`
	Mem     float64 `json:"mem"`
	RSSKB   int64   `json:"rss_kb"`
	Stat    string  `json:"stat"`
	ETimes  int64   `json:"etimes"`
	Comm    string  `json:"comm"`
	Args    string  `json:"args"`
}

// StatusRecord is kernel-exposed per-PID status for one tick.
type StatusRecord struct {
	TS                       int64  `json:"ts"`
	PID                      int32  `json:"pid"`
	State                    string `json:"state"`
	Threads                  int32  `json:"threads"`
	VMRSSKB                  int64  `json:"vm_rss_kb"`
	VMSwapKB                 int64  `json:"vm_swap_kb"`
	VoluntaryCtxtSwitches    int64  `json:"voluntary_ctxt_switches"`
	NonvoluntaryCtxtSwitches int64  `json:"nonvoluntary_ctxt_switches"`
}

// FdType enumerates the kinds of open file descriptor ProcSource can
// classify from a symlink target.
type FdType string

const (
	FdRegular   FdType = "regular"
	FdDirectory FdType = "directory"
	FdSocket    FdType = "socket"
	FdPipe      FdType = "pipe"
	FdDevice    FdType = "device"
	FdAnonInode FdType = "anon_inode"
	FdOther     FdType = "other"
)

// FdRecord is one open file descriptor for one PID at one tick.
type FdRecord struct {
	TS     int64  `json:"ts"`
	PID    int32  `json:"pid"`
	FdNum  int32  `json:"fd_num"`
	FdType FdType `json:"fd_type"`
	Path   string `json:"path"`
}

// NetConnection is one socket attributable to a PID.
type NetConnection struct {
	TS         int64  `json:"ts"`
	PID        int32  `json:"pid"`
	Protocol   string `json:"protocol"` // tcp, tcp6, udp, udp6
	LocalAddr  string `json:"local_addr"`
	LocalPort  int32  `json:"local_port"`
	RemoteAddr string `json:"remote_addr"`
	RemotePort int32  `json:"remote_port"`
	State      string `json:"state"`
}

// Agent is a deduplicated process identity across the lifetime of one
// pid+comm.
type Agent struct {
	ID        int64  `json:"id"`
	PID       int32  `json:"pid"`
	Comm      string `json:"comm"`
	Args      string `json:"args"`
	FirstSeen int64  `json:"first_seen"`
	LastSeen  int64  `json:"last_seen"`
	Alive     bool   `json:"alive"`
}

// Severity is the fired-check severity tier.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert is one fired check.
type Alert struct {
	ID        int64    `json:"id"`
	TS        int64    `json:"ts"`
	PID       int32    `json:"pid"`
	Severity  Severity `json:"severity"`
	Category  string   `json:"category"`
	Message   string   `json:"message"`
	Value     float64  `json:"value"`
	Threshold float64  `json:"threshold"`
}

// Phase is the coarse behavioral classification of a per-tick sample.
type Phase string

const (
	PhaseIdle   Phase = "idle"
	PhaseActive Phase = "active"
	PhaseBurst  Phase = "burst"
)

// Fingerprint is a running behavioral summary keyed by (pid, comm).
type Fingerprint struct {
	PID            int32   `json:"pid"`
	Comm           string  `json:"comm"`
	AvgCPU         float64 `json:"avg_cpu"`
	AvgRSSKB       float64 `json:"avg_rss_kb"`
	AvgThreads     float64 `json:"avg_threads"`
	AvgFDCount     float64 `json:"avg_fd_count"`
	AvgNetConns    float64 `json:"avg_net_conns"`
	DominantPhase  Phase   `json:"dominant_phase"`
	SampleCount    int64   `json:"sample_count"`
	UpdatedAt      int64   `json:"updated_at"`
}

// Baseline is a labeled, write-once snapshot of one or more fingerprints.
type Baseline struct {
	ID            int64   `json:"id"`
	Comm          string  `json:"comm"`
	AvgCPU        float64 `json:"avg_cpu"`
	AvgRSSKB      float64 `json:"avg_rss_kb"`
	AvgThreads    float64 `json:"avg_threads"`
	AvgFDCount    float64 `json:"avg_fd_count"`
	AvgNetConns   float64 `json:"avg_net_conns"`
	DominantPhase Phase   `json:"dominant_phase"`
	CreatedAt     int64   `json:"created_at"`
	Version       string  `json:"version"`
	Label         string  `json:"label"`
}

// Thresholds configures the two-tier alert checks in the analysis engine.
type Thresholds struct {
	CPUWarning     float64 // percent
	CPUCritical    float64
	RSSWarningMB   float64
	RSSCriticalMB  float64
	FDWarning      int32
	FDCritical     int32
	ThreadsWarning int32
	ThreadsCritical int32
}

// DefaultThresholds returns the defaults named in the spec.
func DefaultThresholds() Thresholds {
	return Thresholds{
		CPUWarning:      80,
		CPUCritical:     95,
		RSSWarningMB:    2048,
		RSSCriticalMB:   4096,
		FDWarning:       1000,
		FDCritical:      5000,
		ThreadsWarning:  100,
		ThreadsCritical: 500,
	}
}

// RegressionFinding is one metric's baseline-vs-current comparison.
type RegressionFinding struct {
	Comm      string  `json:"comm"`
	Metric    string  `json:"metric"`
	Baseline  float64 `json:"baseline"`
	Current   float64 `json:"current"`
	ChangePct float64 `json:"change_pct"`
}

// TickResult is the in-memory, owned result of one Collector.Tick call.
type TickResult struct {
	TS           int64
	AgentsFound  int
	Samples      []ProcessSample
	Statuses     []StatusRecord
	FDCounts     map[int32]int
	ConnCounts   map[int32]int
	Committed    bool
	WriteErrors  int
}

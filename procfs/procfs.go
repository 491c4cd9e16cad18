// Package procfs is the ProcSource capability: it enumerates PIDs and reads
// per-PID metadata from the kernel's /proc filesystem. Only Linux is
// specified in full; other platforms return ErrUnsupportedPlatform so a
// build can still link a ProcSource.New() on any GOOS.
//
// All read errors are reported as *apperr.Error with Kind ProcRead (or
// Parse for the stat-line splitter), so the collector can apply its
// zero-sample substitution policy uniformly.
package procfs

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dmaynor/agent-watch/apperr"
	"github.com/dmaynor/agent-watch/util"
)

// ErrUnsupportedPlatform is returned by Source implementations on
// platforms this spec does not implement in full.
var ErrUnsupportedPlatform = errors.New("procfs: unsupported platform")

// Stat is the subset of /proc/[pid]/stat fields the analysis pipeline
// needs.
type Stat struct {
	UTime      uint64 // user-mode ticks
	STime      uint64 // kernel-mode ticks
	State      string // single-letter process state, e.g. "R", "S"
	NumThreads int32
	StartTime  uint64 // ticks since boot
	RSSPages   int64
	VSizeBytes uint64
}

// Source is the ProcSource capability set.
type Source interface {
	ListPIDs() ([]int32, error)
	ReadComm(pid int32) string
	ReadCmdline(pid int32) string
	ReadStat(pid int32) (Stat, error)
	ReadStatus(pid int32) (StatusFields, error)
	ListFDs(pid int32) ([]FdInfo, error)
	ReadNetConnections(pid int32) ([]NetConnInfo, error)
	ReadExePath(pid int32) string
	ReadCwd(pid int32) string
	ReadEnviron(pid int32) string
	ReadUser(pid int32) string
	BootTime() (int64, error)
	ClockTicksPerSec() int64
}

// StatusFields is the subset of /proc/[pid]/status fields the engine needs,
// keyed exactly as in spec's StatusRecord (minus ts/pid, which the caller
// attaches).
type StatusFields struct {
	State                    string
	Threads                  int32
	VMRSSKB                  int64
	VMSwapKB                 int64
	VoluntaryCtxtSwitches    int64
	NonvoluntaryCtxtSwitches int64
}

// FdInfo is one open file descriptor entry before attribution to a
// model.FdRecord (the caller fills in TS/PID).
type FdInfo struct {
	FdNum  int32
	FdType string // matches model.FdType values
	Path   string
}

// NetConnInfo is one socket entry before attribution to a model.NetConnection.
type NetConnInfo struct {
	Protocol   string
	LocalAddr  string
	LocalPort  int32
	RemoteAddr string
	RemotePort int32
	State      string
}

// ClockTicksPerSecondLinux is the fixed Linux USER_HZ value this spec
// assumes, matching the teacher's hard-coded hz constant in
// engine/anomaly.go.
const ClockTicksPerSecondLinux = 100

// parseStatLine parses the content of /proc/[pid]/stat. It finds the
// *last* ')' to split the (comm) field, since comm can itself contain
// parentheses or spaces, exactly as the teacher's readProcStat does. It is
// a free function (not tied to a build tag) so it can be unit tested on
// any platform.
func parseStatLine(pid int32, content string) (Stat, error) {
	var st Stat

	closeIdx := strings.LastIndex(content, ")")
	if closeIdx < 0 {
		return st, apperr.New(apperr.Parse, fmt.Errorf("bad stat format for pid %d", pid))
	}
	openIdx := strings.Index(content, "(")
	if openIdx < 0 || openIdx > closeIdx {
		return st, apperr.New(apperr.Parse, fmt.Errorf("bad stat format for pid %d", pid))
	}

	rest := strings.Fields(content[closeIdx+2:])
	if len(rest) < 20 {
		return st, apperr.New(apperr.Parse, fmt.Errorf("stat too short for pid %d", pid))
	}

	st.State = rest[0]
	st.UTime = util.ParseUint64(rest[11])
	st.STime = util.ParseUint64(rest[12])
	st.NumThreads = int32(util.ParseInt(rest[17]))
	st.StartTime = util.ParseUint64(rest[19])
	if len(rest) > 21 {
		st.VSizeBytes = util.ParseUint64(rest[20])
		st.RSSPages = int64(util.ParseUint64(rest[21]))
	}
	return st, nil
}

// classifyFdTarget infers fd_type from the symlink target prefix, exactly
// as spec.md §4.2 directs: socket:, pipe:, anon_inode:, /dev/, trailing /,
// else regular; an empty target is "other". It is a free function (not tied to a build tag) so it can
// be unit tested on any platform.
func classifyFdTarget(target string) string {
	switch {
	case strings.HasPrefix(target, "socket:"):
		return "socket"
	case strings.HasPrefix(target, "pipe:"):
		return "pipe"
	case strings.HasPrefix(target, "anon_inode:"):
		return "anon_inode"
	case strings.HasPrefix(target, "/dev/"):
		return "device"
	case strings.HasSuffix(target, "/"):
		return "directory"
	case target == "":
		return "other"
	default:
		return "regular"
	}
}

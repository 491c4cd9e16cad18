//go:build linux

package procfs

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dmaynor/agent-watch/apperr"
	"github.com/dmaynor/agent-watch/util"
)

// linuxSource implements Source by reading /proc directly, grounded on the
// teacher's collector/process.go, collector/network.go, and
// collector/socket.go readers.
type linuxSource struct{}

// New returns the Linux ProcSource.
func New() Source { return &linuxSource{} }

func (s *linuxSource) ListPIDs() ([]int32, error) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil, apperr.New(apperr.ProcRead, fmt.Errorf("read /proc: %w", err))
	}
	pids := make([]int32, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		pid := util.ParseInt(e.Name())
		if pid <= 0 {
			continue
		}
		pids = append(pids, int32(pid))
	}
	return pids, nil
}

func (s *linuxSource) ReadComm(pid int32) string {
	content, err := util.ReadFileString(fmt.Sprintf("/proc/%d/comm", pid))
	if err != nil {
		return "unknown"
	}
	return strings.TrimRight(content, "\n")
}

func (s *linuxSource) ReadCmdline(pid int32) string {
	content, err := util.ReadFileString(fmt.Sprintf("/proc/%d/cmdline", pid))
	if err != nil {
		return ""
	}
	parts := strings.Split(content, "\x00")
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.TrimRight(strings.Join(kept, " "), " ")
}

// ReadStat parses /proc/[pid]/stat. It finds the *last* ')' to split the
// (comm) field, since comm can itself contain parentheses, exactly as the
// teacher's readProcStat does.
func (s *linuxSource) ReadStat(pid int32) (Stat, error) {
	content, err := util.ReadFileString(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return Stat{}, apperr.New(apperr.ProcRead, err)
	}
	return parseStatLine(pid, content)
}

func (s *linuxSource) ReadStatus(pid int32) (StatusFields, error) {
	var sf StatusFields
	kv, err := util.ParseKeyValueFile(fmt.Sprintf("/proc/%d/status", pid))
	if err != nil {
		return sf, apperr.New(apperr.ProcRead, err)
	}
	sf.State = firstField(kv["State"])
	sf.Threads = int32(util.ParseInt(kv["Threads"]))
	sf.VMRSSKB = int64(parseKBField(kv["VmRSS"]))
	sf.VMSwapKB = int64(parseKBField(kv["VmSwap"]))
	sf.VoluntaryCtxtSwitches = int64(util.ParseUint64(kv["voluntary_ctxt_switches"]))
	sf.NonvoluntaryCtxtSwitches = int64(util.ParseUint64(kv["nonvoluntary_ctxt_switches"]))
	return sf, nil
}

// firstField returns the first whitespace-delimited token, used for status
// lines like "State: S (sleeping)" which ParseKeyValueFile already split on
// ':', leaving the value "S (sleeping)".
func firstField(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// parseKBField parses a /proc/[pid]/status value like "1234 kB", returning
// 0 for absent fields (e.g. kernel threads have no VmRSS).
func parseKBField(s string) uint64 {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0
	}
	return util.ParseUint64(fields[0])
}

func (s *linuxSource) ListFDs(pid int32) ([]FdInfo, error) {
	dir := fmt.Sprintf("/proc/%d/fd", pid)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, apperr.New(apperr.ProcRead, err)
	}
	out := make([]FdInfo, 0, len(entries))
	for _, e := range entries {
		num := util.ParseInt(e.Name())
		target, err := os.Readlink(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		out = append(out, FdInfo{
			FdNum:  int32(num),
			FdType: classifyFdTarget(target),
			Path:   target,
		})
	}
	return out, nil
}

func (s *linuxSource) ReadExePath(pid int32) string {
	target, err := os.Readlink(fmt.Sprintf("/proc/%d/exe", pid))
	if err != nil {
		return ""
	}
	return target
}

func (s *linuxSource) ReadCwd(pid int32) string {
	target, err := os.Readlink(fmt.Sprintf("/proc/%d/cwd", pid))
	if err != nil {
		return ""
	}
	return target
}

// uidUsernameCache memoizes os/user.LookupId results: the uid->name
// mapping is immutable for the lifetime of the process, and LookupId
// does a /etc/passwd (or NSS) lookup the collector would otherwise repeat
// for the same agent every tick.
var uidUsernameCache sync.Map // map[string]string

// ReadUser resolves the owning username from the "Uid:" line of
// /proc/[pid]/status, falling back to the raw uid string if no passwd
// entry exists (e.g. a container with no matching NSS record).
func (s *linuxSource) ReadUser(pid int32) string {
	kv, err := util.ParseKeyValueFile(fmt.Sprintf("/proc/%d/status", pid))
	if err != nil {
		return ""
	}
	uid := firstField(kv["Uid"])
	if uid == "" {
		return ""
	}
	if cached, ok := uidUsernameCache.Load(uid); ok {
		return cached.(string)
	}
	name := uid
	if u, err := user.LookupId(uid); err == nil {
		name = u.Username
	}
	uidUsernameCache.Store(uid, name)
	return name
}

func (s *linuxSource) ReadEnviron(pid int32) string {
	content, err := util.ReadFileString(fmt.Sprintf("/proc/%d/environ", pid))
	if err != nil {
		return ""
	}
	return strings.ReplaceAll(strings.Trim(content, "\x00"), "\x00", " ")
}

func (s *linuxSource) BootTime() (int64, error) {
	kv, err := util.ParseKeyValueFile("/proc/stat")
	if err != nil {
		return 0, apperr.New(apperr.ProcRead, err)
	}
	return int64(util.ParseUint64(kv["btime"])), nil
}

func (s *linuxSource) ClockTicksPerSec() int64 {
	return ClockTicksPerSecondLinux
}

// Package scanner filters a ProcSource's PID set down to the "agents" this
// tool cares about: processes whose comm or cmdline matches a configurable
// pipe-separated, case-insensitive substring pattern. It excludes the
// watcher's own PID, grounded on the teacher's collector/fileless.go
// selfPID-exclusion idiom.
package scanner

import (
	"os"
	"strings"

	"github.com/dmaynor/agent-watch/procfs"
)

// DefaultPattern matches the spec's default agent set when the operator
// supplies no --match flag.
const DefaultPattern = "codex|claude|gemini|copilot"

// Match is one discovered agent process before sampling.
type Match struct {
	PID     int32
	Comm    string
	Cmdline string
}

// Scanner filters ProcSource.ListPIDs() against a pattern.
type Scanner struct {
	src     procfs.Source
	needles []string
	selfPID int32
}

// New builds a Scanner over src with the given pipe-separated pattern. An
// empty pattern falls back to DefaultPattern.
func New(src procfs.Source, pattern string) *Scanner {
	if strings.TrimSpace(pattern) == "" {
		pattern = DefaultPattern
	}
	parts := strings.Split(pattern, "|")
	needles := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			needles = append(needles, p)
		}
	}
	return &Scanner{
		src:     src,
		needles: needles,
		selfPID: int32(os.Getpid()),
	}
}

// Scan lists PIDs from the ProcSource and returns those whose comm or
// cmdline contains any configured needle, excluding this process's own
// PID. Per-PID read failures (process exited mid-scan) are skipped, not
// fatal to the scan.
func (s *Scanner) Scan() ([]Match, error) {
	pids, err := s.src.ListPIDs()
	if err != nil {
		return nil, err
	}

	var out []Match
	for _, pid := range pids {
		if pid == s.selfPID {
			continue
		}
		comm := s.src.ReadComm(pid)
		cmdline := s.src.ReadCmdline(pid)
		if !s.matches(comm, cmdline) {
			continue
		}
		out = append(out, Match{PID: pid, Comm: comm, Cmdline: cmdline})
	}
	return out, nil
}

func (s *Scanner) matches(comm, cmdline string) bool {
	commLower := strings.ToLower(comm)
	cmdlineLower := strings.ToLower(cmdline)
	for _, needle := range s.needles {
		if strings.Contains(commLower, needle) || strings.Contains(cmdlineLower, needle) {
			return true
		}
	}
	return false
}

package collector

import (
	"testing"

	"github.com/dmaynor/agent-watch/model"
	"github.com/dmaynor/agent-watch/procfs"
	"github.com/dmaynor/agent-watch/scanner"
)

type fakeSource struct {
	pids    []int32
	comm    map[int32]string
	cmdline map[int32]string
	stats   map[int32]procfs.Stat
	statErr map[int32]error
	status  map[int32]procfs.StatusFields
	fds     map[int32][]procfs.FdInfo
	conns   map[int32][]procfs.NetConnInfo
	users   map[int32]string
	boot    int64
}

func (f *fakeSource) ListPIDs() ([]int32, error)    { return f.pids, nil }
func (f *fakeSource) ReadComm(pid int32) string     { return f.comm[pid] }
func (f *fakeSource) ReadCmdline(pid int32) string  { return f.cmdline[pid] }
func (f *fakeSource) ReadStat(pid int32) (procfs.Stat, error) {
	if err, ok := f.statErr[pid]; ok {
		return procfs.Stat{}, err
	}
	return f.stats[pid], nil
}
func (f *fakeSource) ReadStatus(pid int32) (procfs.StatusFields, error) {
	sf, ok := f.status[pid]
	if !ok {
		return procfs.StatusFields{}, errNotFound
	}
	return sf, nil
}
func (f *fakeSource) ListFDs(pid int32) ([]procfs.FdInfo, error) { return f.fds[pid], nil }
func (f *fakeSource) ReadNetConnections(pid int32) ([]procfs.NetConnInfo, error) {
	return f.conns[pid], nil
}
func (f *fakeSource) ReadExePath(pid int32) string { return "" }
func (f *fakeSource) ReadCwd(pid int32) string     { return "" }
func (f *fakeSource) ReadEnviron(pid int32) string { return "" }
func (f *fakeSource) ReadUser(pid int32) string    { return f.users[pid] }
func (f *fakeSource) BootTime() (int64, error)     { return f.boot, nil }
func (f *fakeSource) ClockTicksPerSec() int64      { return 100 }

type sentinelError struct{ msg string }

func (e *sentinelError) Error() string { return e.msg }

var errNotFound = &sentinelError{"not found"}

type fakeWriter struct {
	began       bool
	committed   bool
	rolledBack  bool
	failCommit  bool
	agents      []model.Agent
	samples     []model.ProcessSample
	statuses    []model.StatusRecord
	fdRecords   []model.FdRecord
	netRecords  []model.NetConnection
	alerts      []model.Alert
	failPID     int32
}

func (w *fakeWriter) Begin() error    { w.began = true; return nil }
func (w *fakeWriter) Commit() error {
	if w.failCommit {
		return &sentinelError{"commit failed"}
	}
	w.committed = true
	return nil
}
func (w *fakeWriter) Rollback() error { w.rolledBack = true; return nil }
func (w *fakeWriter) UpsertAgent(a model.Agent) error {
	if a.PID == w.failPID {
		return &sentinelError{"upsert failed"}
	}
	w.agents = append(w.agents, a)
	return nil
}
func (w *fakeWriter) InsertProcessSample(p model.ProcessSample) error {
	w.samples = append(w.samples, p)
	return nil
}
func (w *fakeWriter) InsertStatusSample(s model.StatusRecord) error {
	w.statuses = append(w.statuses, s)
	return nil
}
func (w *fakeWriter) InsertFdRecord(f model.FdRecord) error {
	w.fdRecords = append(w.fdRecords, f)
	return nil
}
func (w *fakeWriter) InsertNetConnection(n model.NetConnection) error {
	w.netRecords = append(w.netRecords, n)
	return nil
}
func (w *fakeWriter) InsertAlert(a model.Alert) error {
	w.alerts = append(w.alerts, a)
	return nil
}

func TestTickEarlyReturnsOnNoAgents(t *testing.T) {
	src := &fakeSource{}
	sc := scanner.New(src, "claude")
	w := &fakeWriter{}
	c := New(src, sc, w)

	result, err := c.Tick(1000)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if result.AgentsFound != 0 {
		t.Fatalf("AgentsFound = %d, want 0", result.AgentsFound)
	}
	if w.began {
		t.Fatal("did not expect writer.Begin() to be called with zero agents")
	}
}

func TestTickHappyPathCommits(t *testing.T) {
	src := &fakeSource{
		pids:    []int32{100},
		comm:    map[int32]string{100: "claude"},
		cmdline: map[int32]string{100: "claude --daemon"},
		stats: map[int32]procfs.Stat{
			100: {State: "S", UTime: 100, STime: 50, StartTime: 0, RSSPages: 256},
		},
		status: map[int32]procfs.StatusFields{100: {State: "S", Threads: 4}},
		fds: map[int32][]procfs.FdInfo{
			100: {{FdNum: 3, FdType: "socket", Path: "socket:[1234]"}},
		},
		users: map[int32]string{100: "alice"},
		boot:  0,
	}
	sc := scanner.New(src, "claude")
	w := &fakeWriter{}
	c := New(src, sc, w)

	result, err := c.Tick(1000)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if !result.Committed {
		t.Fatal("expected tick to commit")
	}
	if len(result.Samples) != 1 || result.Samples[0].PID != 100 {
		t.Fatalf("unexpected samples: %+v", result.Samples)
	}
	if result.Samples[0].User != "alice" {
		t.Fatalf("Samples[0].User = %q, want %q", result.Samples[0].User, "alice")
	}
	if len(w.agents) != 1 {
		t.Fatalf("expected one agent upserted, got %d", len(w.agents))
	}
	if result.FDCounts[100] != 1 {
		t.Fatalf("FDCounts[100] = %d, want 1", result.FDCounts[100])
	}
}

func TestTickSynthesizesZeroSampleOnStatFailure(t *testing.T) {
	src := &fakeSource{
		pids:    []int32{200},
		comm:    map[int32]string{200: "codex"},
		statErr: map[int32]error{200: &sentinelError{"read failed"}},
		users:   map[int32]string{200: "bob"},
	}
	sc := scanner.New(src, "codex")
	w := &fakeWriter{}
	c := New(src, sc, w)

	result, err := c.Tick(1000)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if len(result.Samples) != 1 {
		t.Fatalf("expected synthesized sample, got %+v", result.Samples)
	}
	if result.Samples[0].Stat != "?" {
		t.Fatalf("Stat = %q, want \"?\"", result.Samples[0].Stat)
	}
	if result.Samples[0].User != "bob" {
		t.Fatalf("User = %q, want %q (user resolution must still run on the zero-sample branch)", result.Samples[0].User, "bob")
	}
}

func TestTickContinuesPastOneBadAgent(t *testing.T) {
	src := &fakeSource{
		pids: []int32{1, 2},
		comm: map[int32]string{1: "claude", 2: "claude"},
		stats: map[int32]procfs.Stat{
			1: {State: "S"},
			2: {State: "S"},
		},
	}
	sc := scanner.New(src, "claude")
	w := &fakeWriter{failPID: 1}
	c := New(src, sc, w)

	result, err := c.Tick(1000)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if result.WriteErrors != 1 {
		t.Fatalf("WriteErrors = %d, want 1", result.WriteErrors)
	}
	if len(result.Samples) != 1 {
		t.Fatalf("expected the surviving PID's sample still recorded, got %+v", result.Samples)
	}
}

func TestTickRollsBackOnCommitFailure(t *testing.T) {
	src := &fakeSource{
		pids:  []int32{1},
		comm:  map[int32]string{1: "claude"},
		stats: map[int32]procfs.Stat{1: {State: "S"}},
	}
	sc := scanner.New(src, "claude")
	w := &fakeWriter{failCommit: true}
	c := New(src, sc, w)

	result, err := c.Tick(1000)
	if err == nil {
		t.Fatal("expected commit failure to surface as an error")
	}
	if result.Committed {
		t.Fatal("expected Committed=false on commit failure")
	}
	if !w.rolledBack {
		t.Fatal("expected writer.Rollback() to be called")
	}
}

package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmaynor/agent-watch/store"
)

func TestNormalizeImportedStat(t *testing.T) {
	cases := map[string]string{
		"S":   "S",
		"Sl+": "S",
		"R":   "R",
		"":    "?",
	}
	for in, want := range cases {
		if got := normalizeImportedStat(in); got != want {
			t.Errorf("normalizeImportedStat(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIntervalFromSeconds(t *testing.T) {
	if got := intervalFromSeconds(0); got != time.Second {
		t.Errorf("intervalFromSeconds(0) = %v, want 1s floor", got)
	}
	if got := intervalFromSeconds(5); got != 5*time.Second {
		t.Errorf("intervalFromSeconds(5) = %v, want 5s", got)
	}
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	st, err := store.Open(path)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestImportFileSkipsMalformedLinesButKeepsGood(t *testing.T) {
	st := openTestStore(t)
	writer, err := store.NewWriter(st)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	defer writer.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "snap.ndjson")
	content := `{"ts":1,"pid":100,"comm":"claude","stat":"Sl+"}
not json
{"ts":2,"pid":101,"comm":"codex","stat":"R"}
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if err := writer.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	imported, skipped, err := importFile(writer, path)
	if err != nil {
		t.Fatalf("importFile: %v", err)
	}
	if err := writer.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if imported != 2 {
		t.Errorf("imported = %d, want 2", imported)
	}
	if skipped != 1 {
		t.Errorf("skipped = %d, want 1", skipped)
	}
}

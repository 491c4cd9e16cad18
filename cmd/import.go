package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmaynor/agent-watch/model"
	"github.com/dmaynor/agent-watch/store"
)

// runImport reads every regular file in dir as NDJSON (one model.
// ProcessSample per line) and writes the batch through the same Writer
// path a live tick uses. Grounded on the teacher's recorder.go NDJSON
// replay idiom, generalized to read a directory of snapshot files instead
// of a single recorded run.
func runImport(st *store.Store, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read import dir: %w", err)
	}

	writer, err := store.NewWriter(st)
	if err != nil {
		return fmt.Errorf("new writer: %w", err)
	}
	defer writer.Close()

	if err := writer.Begin(); err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	var imported, skipped int
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		n, s, err := importFile(writer, path)
		if err != nil {
			writer.Rollback()
			return fmt.Errorf("import %s: %w", path, err)
		}
		imported += n
		skipped += s
	}

	if err := writer.Commit(); err != nil {
		writer.Rollback()
		return fmt.Errorf("commit: %w", err)
	}

	fmt.Printf("agent-watch: imported %d samples (%d skipped) from %s\n", imported, skipped, dir)
	return nil
}

// importFile parses one NDJSON file line by line. Lines that fail to
// parse as a model.ProcessSample are counted as skipped rather than
// aborting the whole import, matching spec.md's tolerant-ingest stance for
// legacy data.
func importFile(w *store.Writer, path string) (imported, skipped int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var sample model.ProcessSample
		if err := json.Unmarshal([]byte(line), &sample); err != nil {
			skipped++
			continue
		}
		sample.Stat = normalizeImportedStat(sample.Stat)
		if err := w.InsertProcessSample(sample); err != nil {
			return imported, skipped, err
		}
		imported++
	}
	if err := scanner.Err(); err != nil {
		return imported, skipped, err
	}
	return imported, skipped, nil
}

// normalizeImportedStat collapses a ps(1)-style multi-character state
// field (e.g. "Sl+") down to its single-letter /proc/[pid]/stat form, so
// the stored column stays uniform regardless of import source.
func normalizeImportedStat(stat string) string {
	if stat == "" {
		return "?"
	}
	return stat[:1]
}

// Package cmd is the CLI surface: flag parsing, subcommand dispatch, and
// the wiring between procfs, scanner, collector, engine, store, eventloop,
// and ui. Grounded on the teacher's cmd.Run/printUsage idiom (flag package,
// a single Run() error entrypoint, ExitCodeError for non-zero exits without
// calling os.Exit directly).
package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/dmaynor/agent-watch/baseline"
	"github.com/dmaynor/agent-watch/collector"
	"github.com/dmaynor/agent-watch/config"
	"github.com/dmaynor/agent-watch/engine"
	"github.com/dmaynor/agent-watch/eventloop"
	"github.com/dmaynor/agent-watch/model"
	"github.com/dmaynor/agent-watch/procfs"
	"github.com/dmaynor/agent-watch/scanner"
	"github.com/dmaynor/agent-watch/store"
	"github.com/dmaynor/agent-watch/ui"
)

// Version is set at build time via ldflags.
var Version = "0.1.0"

// ExitCodeError signals a non-zero exit code without calling os.Exit
// directly, so main can flush/log before exiting.
type ExitCodeError struct{ Code int }

func (e ExitCodeError) Error() string { return fmt.Sprintf("exit %d", e.Code) }

func printUsage() {
	fmt.Fprintf(os.Stderr, `agent-watch v%s — AI coding-agent process monitor for Linux

Usage:
  agent-watch [OPTIONS]
  agent-watch [OPTIONS] import DIR
  agent-watch [OPTIONS] analyze
  agent-watch [OPTIONS] baseline-save
  agent-watch [OPTIONS] baseline-compare

Options go before the command; anything after the command is not parsed
as an option.

Modes:
  (default)           Run the collector + analysis engine loop with the TUI
  -headless           Run the same loop with one-line stdout summaries, no TUI
  -gui                Force the bubbletea TUI renderer (overrides -headless;
                      the terminal is not checked for a TTY)
  import DIR          Ingest NDJSON snapshots (one sample per line) from DIR
                      into the store; other lines are counted as skipped
  analyze             Print a read-only report from the store and exit
  baseline-save       Snapshot current fingerprints as a named baseline
  baseline-compare    Compare current fingerprints against a saved baseline

Options:
  -interval N         Collection interval in seconds (default: 5, min: 1)
  -match PATTERN      Pipe-separated, case-insensitive substrings matched
                      against process comm/cmdline (default: %s)
  -db PATH            SQLite database path (default: agent-watch.db)
  -label NAME         Baseline label for baseline-save/baseline-compare
                      (default: "default")
  -version            Print version and exit

`, Version, config.DefaultMatchPattern)
}

// Run parses flags, wires the collector/engine/store pipeline, and
// dispatches to the selected mode. Errors that should set a non-zero exit
// code without "Error:" noise are returned as ExitCodeError.
func Run() error {
	userCfg := config.Load()

	var (
		interval    int
		match       string
		dbPath      string
		headless    bool
		forceGUI    bool
		label       string
		showVersion bool
	)

	flag.IntVar(&interval, "interval", userCfg.IntervalSec, "Collection interval in seconds")
	flag.StringVar(&match, "match", userCfg.Match, "Pipe-separated, case-insensitive substrings matched against process comm/cmdline")
	flag.StringVar(&dbPath, "db", userCfg.DBPath, "SQLite database path")
	flag.BoolVar(&headless, "headless", userCfg.Headless, "Run without the TUI, one-line tick summaries")
	flag.BoolVar(&forceGUI, "gui", false, "Force the TUI renderer")
	flag.StringVar(&label, "label", "default", "Baseline label")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Usage = printUsage
	flag.Parse()

	if showVersion {
		fmt.Printf("agent-watch v%s\n", Version)
		return nil
	}

	if interval < 1 {
		interval = 1
	}
	if match == "" {
		match = config.DefaultMatchPattern
	}
	if dbPath == "" {
		dbPath = "agent-watch.db"
	}

	args := flag.Args()
	mode := ""
	if len(args) > 0 {
		mode = args[0]
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	switch mode {
	case "import":
		if len(args) < 2 {
			return ExitCodeError{Code: 2}
		}
		return runImport(st, args[1])
	case "analyze":
		return runAnalyze(st)
	case "baseline-save":
		return runBaselineSave(st, label)
	case "baseline-compare":
		return runBaselineCompare(st, label)
	case "":
		return runCollectorLoop(st, match, interval, headless, forceGUI)
	default:
		fmt.Fprintf(os.Stderr, "agent-watch: unknown command %q\n", mode)
		return ExitCodeError{Code: 2}
	}
}

// runCollectorLoop wires procfs/scanner/collector/engine/eventloop/ui and
// drives the main event loop until SIGINT/SIGTERM or context cancellation.
func runCollectorLoop(st *store.Store, match string, intervalSec int, headless, forceGUI bool) error {
	writer, err := store.NewWriter(st)
	if err != nil {
		return fmt.Errorf("new writer: %w", err)
	}
	defer writer.Close()
	reader := store.NewReader(st)

	src := procfs.New()
	scan := scanner.New(src, match)
	coll := collector.New(src, scan, writer)
	eng := engine.New(model.DefaultThresholds(), writer, reader)

	if forceGUI {
		headless = false
	}
	var renderer eventloop.Renderer
	if !headless {
		renderer = ui.New(reader)
	}

	tick := func(ctx context.Context, now int64) (*model.TickResult, []model.Alert, error) {
		// The engine runs on the in-memory result even when the tick failed
		// to commit; a failed scan or Begin yields no samples to analyze.
		result, err := coll.Tick(now)
		alerts := eng.ProcessTick(toTickInput(result))
		return result, alerts, err
	}

	onTick := func(result *model.TickResult, alerts []model.Alert, err error) {
		if err != nil {
			fmt.Fprintf(os.Stderr, "agent-watch: tick error: %v\n", err)
			return
		}
		if headless {
			fmt.Printf("agent-watch: ts=%d agents=%d samples=%d alerts=%d committed=%v\n",
				result.TS, result.AgentsFound, len(result.Samples), len(alerts), result.Committed)
		}
	}

	loop := eventloop.New(tick, eventloop.Options{
		Interval: intervalFromSeconds(intervalSec),
		Headless: headless,
		Renderer: renderer,
		OnTick:   onTick,
	})

	return loop.Run(context.Background())
}

// toTickInput adapts model.TickResult's slice-of-statuses into the
// by-PID map shape engine.TickInput needs.
func toTickInput(result *model.TickResult) engine.TickInput {
	statuses := make(map[int32]model.StatusRecord, len(result.Statuses))
	for _, s := range result.Statuses {
		statuses[s.PID] = s
	}
	return engine.TickInput{
		TS:         result.TS,
		Samples:    result.Samples,
		Statuses:   statuses,
		FDCounts:   result.FDCounts,
		ConnCounts: result.ConnCounts,
	}
}

func runBaselineSave(st *store.Store, label string) error {
	reader := store.NewReader(st)
	writer, err := store.NewWriter(st)
	if err != nil {
		return fmt.Errorf("new writer: %w", err)
	}
	defer writer.Close()

	if err := baseline.Save(reader, writer, label, nowUnix()); err != nil {
		return fmt.Errorf("baseline save: %w", err)
	}
	fmt.Printf("agent-watch: saved baseline %q\n", label)
	return nil
}

func runBaselineCompare(st *store.Store, label string) error {
	reader := store.NewReader(st)
	findings, err := baseline.Compare(reader, label, 0)
	if err != nil {
		return fmt.Errorf("baseline compare: %w", err)
	}
	if len(findings) == 0 {
		fmt.Println("agent-watch: no regressions found")
		return nil
	}
	for _, f := range findings {
		fmt.Printf("%-20s %-14s baseline=%.2f current=%.2f change=%.1f%%\n",
			f.Comm, f.Metric, f.Baseline, f.Current, f.ChangePct)
	}
	return ExitCodeError{Code: 1}
}

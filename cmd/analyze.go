package cmd

import (
	"fmt"

	"github.com/dmaynor/agent-watch/store"
)

// runAnalyze prints a read-only report over the store's bounded queries.
// Grounded on the teacher's cmd/root.go printUsage style: plain
// fmt.Fprintf-to-stdout, no templating engine.
func runAnalyze(st *store.Store) error {
	reader := store.NewReader(st)

	agents, err := reader.GetAliveAgents()
	if err != nil {
		return fmt.Errorf("get alive agents: %w", err)
	}
	fmt.Printf("agents alive: %d\n", len(agents))
	for _, a := range agents {
		fmt.Printf("  pid=%-8d comm=%-16s first_seen=%d last_seen=%d\n", a.PID, a.Comm, a.FirstSeen, a.LastSeen)
	}

	samples, err := reader.GetLatestSamplesPerAgent()
	if err != nil {
		return fmt.Errorf("get latest samples: %w", err)
	}
	fmt.Printf("\nlatest samples: %d\n", len(samples))
	for _, s := range samples {
		fmt.Printf("  pid=%-8d cpu=%6.2f%% rss=%8dkB stat=%s comm=%s\n", s.PID, s.CPU, s.RSSKB, s.Stat, s.Comm)
	}

	alerts, err := reader.GetRecentAlerts(20)
	if err != nil {
		return fmt.Errorf("get recent alerts: %w", err)
	}
	fmt.Printf("\nrecent alerts: %d\n", len(alerts))
	for _, al := range alerts {
		fmt.Printf("  ts=%d pid=%-8d [%s] %s: %s (value=%.2f threshold=%.2f)\n",
			al.TS, al.PID, al.Severity, al.Category, al.Message, al.Value, al.Threshold)
	}

	return nil
}

// Package ui is the single-page bubbletea overview renderer: one panel of
// live agent processes, one panel of recent alerts. Grounded on the
// teacher's ui.Model (app.go)/styles.go Update/View split, trimmed to one
// page since agent-watch has no multi-page navigation surface (spec.md §1:
// "no design depth" for the UI layer — it is a thin read-only window onto
// the store).
package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dmaynor/agent-watch/model"
	"github.com/dmaynor/agent-watch/store"
)

// tickMsg carries the latest collector tick result into the bubbletea
// event loop.
type tickMsg struct {
	result *model.TickResult
}

type agentsMsg struct {
	agents []model.Agent
}

type alertsMsg struct {
	alerts []model.Alert
}

// page is the bubbletea tea.Model backing the overview screen.
type page struct {
	reader *store.Reader

	width, height int
	lastResult    *model.TickResult
	agents        []model.Agent
	alerts        []model.Alert
	quitting      bool
}

func newPage(reader *store.Reader) *page {
	return &page{reader: reader}
}

func (p *page) Init() tea.Cmd {
	return nil
}

func (p *page) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m := msg.(type) {
	case tea.WindowSizeMsg:
		p.width, p.height = m.Width, m.Height
	case tea.KeyMsg:
		switch m.String() {
		case "q", "ctrl+c", "esc":
			p.quitting = true
			return p, tea.Quit
		}
	case tickMsg:
		p.lastResult = m.result
		return p, p.refreshCmd()
	case agentsMsg:
		p.agents = m.agents
	case alertsMsg:
		p.alerts = m.alerts
	}
	return p, nil
}

// refreshCmd re-reads the bounded agent/alert views from the store after
// each tick, matching the teacher's poll-on-tick pattern rather than a
// separate background refresh goroutine.
func (p *page) refreshCmd() tea.Cmd {
	reader := p.reader
	fetchAgents := func() tea.Msg {
		agents, err := reader.GetAliveAgents()
		if err != nil {
			return agentsMsg{}
		}
		return agentsMsg{agents: agents}
	}
	fetchAlerts := func() tea.Msg {
		alerts, err := reader.GetRecentAlerts(20)
		if err != nil {
			return alertsMsg{}
		}
		return alertsMsg{alerts: alerts}
	}
	return tea.Batch(fetchAgents, fetchAlerts)
}

func (p *page) View() string {
	if p.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("agent-watch"))
	b.WriteString("\n\n")

	b.WriteString(panelStyle.Render(p.renderAgents()))
	b.WriteString("\n")
	b.WriteString(panelStyle.Render(p.renderAlerts()))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("q: quit"))

	return b.String()
}

func (p *page) renderAgents() string {
	var b strings.Builder
	b.WriteString(labelStyle.Render(fmt.Sprintf("agents: %d", len(p.agents))))
	b.WriteString("\n")
	for i, a := range p.agents {
		if i >= 10 {
			b.WriteString(helpStyle.Render(fmt.Sprintf("… %d more", len(p.agents)-10)))
			break
		}
		b.WriteString(fmt.Sprintf("%s %s\n",
			valueStyle.Render(fmt.Sprintf("%8d", a.PID)),
			valueStyle.Render(a.Comm)))
	}
	return b.String()
}

func (p *page) renderAlerts() string {
	var b strings.Builder
	b.WriteString(labelStyle.Render(fmt.Sprintf("alerts: %d", len(p.alerts))))
	b.WriteString("\n")
	for i, a := range p.alerts {
		if i >= 10 {
			break
		}
		style := severityStyle(string(a.Severity))
		b.WriteString(style.Render(fmt.Sprintf("[%s] pid=%d %s: %s\n", a.Severity, a.PID, a.Category, a.Message)))
	}
	return b.String()
}

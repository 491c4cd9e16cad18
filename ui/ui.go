package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/dmaynor/agent-watch/model"
	"github.com/dmaynor/agent-watch/store"
)

// Renderer runs a bubbletea program on its own goroutine and satisfies
// eventloop.Renderer. Grounded on SPEC_FULL.md §4.8's resolution: the TUI
// owns its own input/draw loop internally, so Poll/Render only need to
// hand the latest tick result across — there is no separate render-thread
// polling loop to manage here.
type Renderer struct {
	prog *tea.Program
	done chan struct{}
}

// New builds a Renderer reading alive agents and recent alerts from
// reader. The bubbletea program starts immediately in the background;
// Close stops it.
func New(reader *store.Reader) *Renderer {
	p := newPage(reader)
	prog := tea.NewProgram(p, tea.WithAltScreen())
	r := &Renderer{prog: prog, done: make(chan struct{})}

	go func() {
		defer close(r.done)
		_, _ = prog.Run()
	}()

	return r
}

// Poll reports whether the TUI is still running; false once the user has
// quit (q/ctrl+c/esc). The event loop calls it after each tick but does not
// act on the result, so collection continues without on-screen output.
func (r *Renderer) Poll() bool {
	select {
	case <-r.done:
		return false
	default:
		return true
	}
}

// Render hands the latest tick result to the running program.
func (r *Renderer) Render(result *model.TickResult) {
	select {
	case <-r.done:
		return
	default:
		r.prog.Send(tickMsg{result: result})
	}
}

// Close stops the bubbletea program and waits for its goroutine to exit.
func (r *Renderer) Close() {
	r.prog.Quit()
	<-r.done
}

// Package eventloop is the single-threaded timer that drives the collector
// and analysis engine at a fixed cadence until a shutdown signal arrives.
// Grounded on the teacher's engine.RunDaemon: a time.Ticker plus a SIGINT/
// SIGTERM select loop, generalized to drive a collector.Collector /
// engine.Engine pair instead of the teacher's single Engine.Tick.
//
// Resolves spec.md §9's "sleeping in the event loop" open question: rather
// than a fixed-interval sleep with a separate renderer poll, the loop
// blocks on a monotonic time.Ticker for the next tick deadline and a
// non-blocking renderer poll runs between ticks, so there is no extra
// busy-sleep layered on top.
package eventloop

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmaynor/agent-watch/model"
)

// Renderer is the optional non-blocking UI poll/draw pair; nil in headless
// mode. Poll returns true if a redraw/continue is needed; it must not
// block longer than a small internal timeout.
type Renderer interface {
	Poll() bool
	Render(result *model.TickResult)
	Close()
}

// TickFunc runs one collector+engine tick. The caller (cmd) owns the glue
// between model.TickResult and engine.TickInput so this package does not
// need to import the engine package's concrete types.
type TickFunc func(ctx context.Context, now int64) (*model.TickResult, []model.Alert, error)

// Options configures one Loop.
type Options struct {
	Interval time.Duration
	Headless bool
	Renderer Renderer
	// OnTick is called once per tick with the result; used for headless
	// one-line summaries and for logging write errors/commit failures.
	OnTick func(result *model.TickResult, alerts []model.Alert, err error)
}

// Loop is the single-threaded cooperative scheduler.
type Loop struct {
	opts Options
	tick TickFunc
}

// New builds a Loop that calls tick once per interval.
func New(tick TickFunc, opts Options) *Loop {
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Second
	}
	return &Loop{opts: opts, tick: tick}
}

// Run drives the loop until ctx is cancelled or a SIGINT/SIGTERM arrives.
// Shutdown is checked between ticks, in the same select that waits for the
// ticker — the current tick
// always finishes before the loop exits, matching spec.md §5's
// "not interruptible" cancellation policy.
func (l *Loop) Run(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	ticker := time.NewTicker(l.opts.Interval)
	defer ticker.Stop()

	if l.opts.Renderer != nil {
		defer l.opts.Renderer.Close()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sigCh:
			log.Printf("agent-watch: shutdown signal received")
			return nil
		case now := <-ticker.C:
			result, alerts, err := l.tick(ctx, now.Unix())
			if l.opts.OnTick != nil {
				l.opts.OnTick(result, alerts, err)
			}
			if err != nil {
				log.Printf("agent-watch: tick error: %v", err)
			}
			if l.opts.Headless {
				continue
			}
			if l.opts.Renderer != nil {
				l.opts.Renderer.Poll()
				l.opts.Renderer.Render(result)
			}
		}
	}
}

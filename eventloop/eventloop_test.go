package eventloop

import (
	"context"
	"testing"
	"time"

	"github.com/dmaynor/agent-watch/model"
)

func TestLoopStopsOnContextCancel(t *testing.T) {
	calls := 0
	tick := func(ctx context.Context, now int64) (*model.TickResult, []model.Alert, error) {
		calls++
		return &model.TickResult{TS: now}, nil, nil
	}
	loop := New(tick, Options{Interval: 10 * time.Millisecond, Headless: true})

	ctx, cancel := context.WithTimeout(context.Background(), 35*time.Millisecond)
	defer cancel()

	if err := loop.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if calls == 0 {
		t.Fatal("expected at least one tick before context cancel")
	}
}

func TestLoopCallsOnTickWithResult(t *testing.T) {
	var gotResult *model.TickResult
	tick := func(ctx context.Context, now int64) (*model.TickResult, []model.Alert, error) {
		return &model.TickResult{TS: now, AgentsFound: 1}, nil, nil
	}
	loop := New(tick, Options{
		Interval: 10 * time.Millisecond,
		Headless: true,
		OnTick: func(result *model.TickResult, alerts []model.Alert, err error) {
			gotResult = result
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Millisecond)
	defer cancel()
	loop.Run(ctx)

	if gotResult == nil || gotResult.AgentsFound != 1 {
		t.Fatalf("expected OnTick to receive tick result, got %+v", gotResult)
	}
}

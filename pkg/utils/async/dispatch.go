package async

import (
	"context"
	"sync"

	"github.com/secmon-lab/storyweaver/pkg/utils/logging"
)

// Group runs fire-and-forget work detached from the request context.
// Wait blocks until every dispatched handler returned, which lets servers drain on shutdown.
type Group struct {
	wg sync.WaitGroup
}

// Dispatch runs handler in a new goroutine with a background context that keeps the caller's logger.
// Errors and panics are logged; they never reach the caller.
func (g *Group) Dispatch(ctx context.Context, name string, handler func(ctx context.Context) error) {
	bgCtx := logging.With(context.Background(), logging.From(ctx).With("task", name))

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				logging.From(bgCtx).Error("panic in async task", "panic", r)
			}
		}()

		if err := handler(bgCtx); err != nil {
			logging.From(bgCtx).Error("async task failed", "error", err)
		}
	}()
}

// Wait blocks until all dispatched handlers have finished
func (g *Group) Wait() {
	g.wg.Wait()
}

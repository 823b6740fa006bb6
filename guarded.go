package meowstatus

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	guardedInitialBackoff = time.Second
	guardedMaxBackoff     = 30 * time.Second
)

// guardedGroup runs long-lived producer/consumer loops with panic recovery.
// A panicking worker is restarted with exponential backoff instead of taking
// its siblings down; a returned error still cancels the group as usual.
type guardedGroup struct {
	group *errgroup.Group
	ctx   context.Context
}

func newGuardedGroup(ctx context.Context) *guardedGroup {
	if ctx == nil {
		ctx = context.Background()
	}
	group, groupCtx := errgroup.WithContext(ctx)
	return &guardedGroup{group: group, ctx: groupCtx}
}

// Go runs fn until it returns or the group context is cancelled, restarting it
// after a recovered panic. Panics are printed to stderr: the logger itself may
// be what panicked.
func (g *guardedGroup) Go(name string, fn func(context.Context) error) {
	if g == nil || fn == nil {
		return
	}
	g.group.Go(func() error {
		backoff := guardedInitialBackoff
		for {
			panicked := false
			err := func() (err error) {
				defer func() {
					if r := recover(); r != nil {
						panicked = true
						fmt.Fprintf(os.Stderr, "worker %s panic: %v\n%s\n", name, r, debug.Stack())
					}
				}()
				return fn(g.ctx)
			}()
			if !panicked {
				return err
			}
			select {
			case <-g.ctx.Done():
				return g.ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > guardedMaxBackoff {
				backoff = guardedMaxBackoff
			}
		}
	})
}

// Wait blocks until every worker has returned.
func (g *guardedGroup) Wait() error {
	return g.group.Wait()
}

package parallel

import (
	"context"
	"fmt"
	"sync"

	apperrors "github.com/geocatalog/pkg/errors"
)

// Group tracks a set of tasks submitted to a Pool. Instead of blocking a
// worker on a join, completion is observed through Then callbacks, which run
// once every task of the group (and of its sub-groups) has finished and the
// group has been closed.
//
// A group starts with one hold that Close releases, so tasks may be added
// while earlier ones are already finishing.
type Group struct {
	pool   *Pool
	parent *Group

	mu       sync.Mutex
	pending  int
	closed   bool
	finished bool
	err      error
	then     []func(error)
	done     chan struct{}
}

// NewGroup returns an open group running its tasks on p.
func (p *Pool) NewGroup() *Group {
	return &Group{pool: p, pending: 1, done: make(chan struct{})}
}

// Sub returns an open child group. The parent does not complete before the
// child has completed and its Then callbacks have returned, so callbacks may
// add more tasks to the parent.
func (g *Group) Sub() *Group {
	g.mu.Lock()
	g.pending++
	g.mu.Unlock()
	return &Group{pool: g.pool, parent: g, pending: 1, done: make(chan struct{})}
}

// Go submits fn. The first error (or recovered panic) of any task is kept
// as the group error; tasks submitted after a failure are skipped.
func (g *Group) Go(fn func(ctx context.Context) error) {
	g.mu.Lock()
	g.pending++
	g.mu.Unlock()

	err := g.pool.submit(queued{
		run: func(ctx context.Context) {
			defer g.release()
			if g.Err() != nil {
				return
			}
			if err := g.call(ctx, fn); err != nil {
				g.fail(err)
			}
		},
		drop: func() {
			g.fail(apperrors.Interrupted("task dropped by pool shutdown", nil))
			g.release()
		},
	})
	if err != nil {
		g.fail(err)
		g.release()
	}
}

func (g *Group) call(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = apperrors.Newf(apperrors.CodePhaseFailure, "task panicked in %s: %v", WorkerName(ctx), r)
		}
	}()
	return fn(ctx)
}

// Then registers a callback invoked with the group error on completion.
// Callbacks registered after completion run immediately.
func (g *Group) Then(fn func(err error)) {
	g.mu.Lock()
	if g.finished {
		err := g.err
		g.mu.Unlock()
		fn(err)
		return
	}
	g.then = append(g.then, fn)
	g.mu.Unlock()
}

// Close releases the initial hold. It is idempotent.
func (g *Group) Close() {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.closed = true
	g.mu.Unlock()
	g.release()
}

// Done is closed once the group has completed.
func (g *Group) Done() <-chan struct{} { return g.done }

// Err returns the first recorded error.
func (g *Group) Err() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.err
}

// Wait blocks until the group completes or ctx is cancelled.
func (g *Group) Wait(ctx context.Context) error {
	select {
	case <-g.done:
		return g.Err()
	case <-ctx.Done():
		return apperrors.Interrupted("interrupted while waiting for tasks", ctx.Err())
	}
}

func (g *Group) fail(err error) {
	g.mu.Lock()
	if g.err == nil {
		g.err = err
	}
	g.mu.Unlock()
}

func (g *Group) release() {
	g.mu.Lock()
	g.pending--
	if g.pending > 0 {
		g.mu.Unlock()
		return
	}
	if g.pending < 0 {
		g.mu.Unlock()
		panic(fmt.Sprintf("parallel: group released %d times too often", -g.pending))
	}
	g.finished = true
	err := g.err
	callbacks := g.then
	g.then = nil
	g.mu.Unlock()

	for _, fn := range callbacks {
		fn(err)
	}
	close(g.done)

	if g.parent != nil {
		if err != nil {
			g.parent.fail(err)
		}
		g.parent.release()
	}
}

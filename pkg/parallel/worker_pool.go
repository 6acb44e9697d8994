// Package parallel provides the fixed-size worker pool used by the catalog loader.
package parallel

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"

	apperrors "github.com/geocatalog/pkg/errors"
	"github.com/geocatalog/pkg/utils"
)

// MaxDefaultWorkers caps the default parallelism.
const MaxDefaultWorkers = 16

// ============================================================================
// Worker Pool Configuration
// ============================================================================

// PoolConfig configures the worker pool behavior.
type PoolConfig struct {
	// Workers is the nominal number of workers.
	// Default: min(runtime.NumCPU(), 16)
	Workers int

	// MaxSpares bounds the compensating workers started while core workers
	// sit in ManagedBlock. Default: Workers.
	MaxSpares int

	// Name prefixes worker names in log messages.
	Name string

	Logger utils.Logger
}

// DefaultParallelism returns min(runtime.NumCPU(), 16).
func DefaultParallelism() int {
	return max(1, min(runtime.NumCPU(), MaxDefaultWorkers))
}

// DefaultPoolConfig returns a default pool configuration.
func DefaultPoolConfig() PoolConfig {
	workers := DefaultParallelism()
	return PoolConfig{
		Workers:   workers,
		MaxSpares: workers,
		Name:      "worker",
	}
}

// WithWorkers returns a new config with the specified number of workers.
func (c PoolConfig) WithWorkers(n int) PoolConfig {
	c.Workers = n
	c.MaxSpares = n
	return c
}

// WithName returns a new config with the specified worker name prefix.
func (c PoolConfig) WithName(name string) PoolConfig {
	c.Name = name
	return c
}

// WithLogger returns a new config with the specified logger.
func (c PoolConfig) WithLogger(logger utils.Logger) PoolConfig {
	c.Logger = logger
	return c
}

// ============================================================================
// Execution Metrics
// ============================================================================

// PoolMetrics holds execution statistics.
type PoolMetrics struct {
	SubmittedTasks int64
	CompletedTasks int64
	DroppedTasks   int64
	Panics         int64
	SparesStarted  int64
}

// ============================================================================
// Worker identity
// ============================================================================

type workerKey struct{}

type worker struct {
	pool  *Pool
	slot  int
	spare bool
}

// WorkerID returns the slot id of the pool worker running ctx's task.
// Slot ids are stable and in [0, Pool.Slots()); at most one goroutine owns
// a slot at any time.
func WorkerID(ctx context.Context) (int, bool) {
	w, ok := ctx.Value(workerKey{}).(*worker)
	if !ok {
		return 0, false
	}
	return w.slot, true
}

// WorkerName returns "<pool name>-<slot>" for logging, or "" outside a pool.
func WorkerName(ctx context.Context) string {
	w, ok := ctx.Value(workerKey{}).(*worker)
	if !ok {
		return ""
	}
	return w.pool.workerName(w.slot)
}

// ============================================================================
// Worker Pool
// ============================================================================

// Task is a unit of work run by the pool. ctx is cancelled by ShutdownNow.
type Task func(ctx context.Context)

type queued struct {
	run  Task
	drop func()
}

// Pool is a fixed-size worker pool with an unbounded task queue. Workers
// that block through ManagedBlock are compensated with spare workers so the
// number of runnable workers stays at the nominal size.
type Pool struct {
	config PoolConfig
	logger utils.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	cond       *sync.Cond
	queue      []queued
	idle       int
	blocked    int
	spares     int
	freeSpares []int
	closed     bool

	wg sync.WaitGroup

	submitted atomic.Int64
	completed atomic.Int64
	dropped   atomic.Int64
	panics    atomic.Int64
	started   atomic.Int64
}

// NewPool creates a pool and starts its core workers.
func NewPool(config PoolConfig) *Pool {
	if config.Workers <= 0 {
		config.Workers = DefaultParallelism()
	}
	if config.MaxSpares < 0 {
		config.MaxSpares = 0
	}
	if config.Name == "" {
		config.Name = "worker"
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		config: config,
		logger: utils.OrNull(config.Logger),
		ctx:    ctx,
		cancel: cancel,
	}
	p.cond = sync.NewCond(&p.mu)
	for i := config.Workers + config.MaxSpares - 1; i >= config.Workers; i-- {
		p.freeSpares = append(p.freeSpares, i)
	}
	for i := 0; i < config.Workers; i++ {
		p.wg.Add(1)
		go p.runWorker(&worker{pool: p, slot: i})
	}
	return p
}

// Parallelism returns the nominal number of workers.
func (p *Pool) Parallelism() int { return p.config.Workers }

// Slots returns the number of distinct worker slot ids, core and spare.
func (p *Pool) Slots() int { return p.config.Workers + p.config.MaxSpares }

func (p *Pool) workerName(slot int) string {
	return fmt.Sprintf("%s-%d", p.config.Name, slot)
}

// Submit queues task. It fails once the pool is shut down.
func (p *Pool) Submit(task Task) error {
	return p.submit(queued{run: task})
}

func (p *Pool) submit(q queued) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return apperrors.New(apperrors.CodePhaseFailure, "worker pool is shut down")
	}
	p.queue = append(p.queue, q)
	p.submitted.Add(1)
	p.cond.Signal()
	return nil
}

// take blocks until a task is available. Spare workers never wait: they
// return false as soon as the queue is empty or they are no longer needed.
func (p *Pool) take(w *worker) (queued, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for {
		if w.spare && (p.spares > p.blocked || len(p.queue) == 0) {
			p.spares--
			p.freeSpares = append(p.freeSpares, w.slot)
			return queued{}, false
		}
		if len(p.queue) > 0 {
			q := p.queue[0]
			p.queue[0] = queued{}
			p.queue = p.queue[1:]
			return q, true
		}
		if p.closed {
			return queued{}, false
		}
		p.idle++
		p.cond.Wait()
		p.idle--
	}
}

func (p *Pool) runWorker(w *worker) {
	defer p.wg.Done()
	ctx := context.WithValue(p.ctx, workerKey{}, w)
	for {
		q, ok := p.take(w)
		if !ok {
			return
		}
		p.runTask(ctx, w, q.run)
	}
}

func (p *Pool) runTask(ctx context.Context, w *worker, task Task) {
	defer func() {
		if r := recover(); r != nil {
			p.panics.Add(1)
			p.logger.Error("Uncaught panic in %s: %v\n%s", p.workerName(w.slot), r, debug.Stack())
		}
		p.completed.Add(1)
	}()
	task(ctx)
}

// ============================================================================
// Managed blocking
// ============================================================================

// Blocker is a blocking operation that cooperates with the pool.
type Blocker interface {
	// Block performs the blocking wait. It returns true when no further
	// blocking is necessary.
	Block() (bool, error)
	// IsReleasable reports whether blocking is unnecessary. It must be
	// idempotent.
	IsReleasable() bool
}

// ManagedBlock runs b on behalf of the pool worker owning ctx. While it
// blocks, a spare worker may be started to drain queued tasks. Outside a
// worker of this pool it simply blocks.
func (p *Pool) ManagedBlock(ctx context.Context, b Blocker) error {
	if b.IsReleasable() {
		return nil
	}
	if w, ok := ctx.Value(workerKey{}).(*worker); ok && w.pool == p {
		p.beginBlock()
		defer p.endBlock()
	}
	for !b.IsReleasable() {
		done, err := b.Block()
		if err != nil {
			return err
		}
		if done {
			break
		}
	}
	return nil
}

func (p *Pool) beginBlock() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.blocked++
	if p.closed || len(p.queue) == 0 || p.idle > 0 || p.spares >= p.blocked || len(p.freeSpares) == 0 {
		return
	}
	slot := p.freeSpares[len(p.freeSpares)-1]
	p.freeSpares = p.freeSpares[:len(p.freeSpares)-1]
	p.spares++
	p.started.Add(1)
	p.wg.Add(1)
	go p.runWorker(&worker{pool: p, slot: slot, spare: true})
}

func (p *Pool) endBlock() {
	p.mu.Lock()
	p.blocked--
	p.mu.Unlock()
}

// ============================================================================
// Shutdown
// ============================================================================

// Shutdown stops accepting tasks; queued tasks still run.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()
}

// ShutdownNow stops accepting tasks, drops queued ones and cancels the
// context of running ones. It returns the number of dropped tasks.
func (p *Pool) ShutdownNow() int {
	p.mu.Lock()
	p.closed = true
	pending := p.queue
	p.queue = nil
	p.cond.Broadcast()
	p.mu.Unlock()

	p.cancel()
	for _, q := range pending {
		if q.drop != nil {
			q.drop()
		}
	}
	p.dropped.Add(int64(len(pending)))
	return len(pending)
}

// Wait blocks until every worker has exited. Call it after Shutdown or ShutdownNow.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Metrics returns the current execution metrics.
func (p *Pool) Metrics() PoolMetrics {
	return PoolMetrics{
		SubmittedTasks: p.submitted.Load(),
		CompletedTasks: p.completed.Load(),
		DroppedTasks:   p.dropped.Load(),
		Panics:         p.panics.Load(),
		SparesStarted:  p.started.Load(),
	}
}

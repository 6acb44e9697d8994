package parallel

import (
	"bytes"
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/geocatalog/pkg/errors"
	"github.com/geocatalog/pkg/utils"
)

type chanBlocker struct{ ch chan struct{} }

func (b chanBlocker) Block() (bool, error) {
	<-b.ch
	return true, nil
}

func (b chanBlocker) IsReleasable() bool {
	select {
	case <-b.ch:
		return true
	default:
		return false
	}
}

func TestDefaultPoolConfig(t *testing.T) {
	cfg := DefaultPoolConfig()
	assert.GreaterOrEqual(t, cfg.Workers, 1)
	assert.LessOrEqual(t, cfg.Workers, MaxDefaultWorkers)
	assert.Equal(t, cfg.Workers, cfg.MaxSpares)

	cfg = cfg.WithWorkers(3).WithName("loader")
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, "loader", cfg.Name)
}

func TestPool_SubmitRunsEveryTask(t *testing.T) {
	pool := NewPool(DefaultPoolConfig().WithWorkers(4))
	defer pool.ShutdownNow()

	var wg sync.WaitGroup
	var count atomic.Int32
	var badSlot atomic.Bool
	for i := 0; i < 100; i++ {
		wg.Add(1)
		require.NoError(t, pool.Submit(func(ctx context.Context) {
			defer wg.Done()
			slot, ok := WorkerID(ctx)
			if !ok || slot < 0 || slot >= pool.Slots() {
				badSlot.Store(true)
			}
			count.Add(1)
		}))
	}
	wg.Wait()

	assert.Equal(t, int32(100), count.Load())
	assert.False(t, badSlot.Load())
	assert.Equal(t, 4, pool.Parallelism())
	assert.Equal(t, 8, pool.Slots())
}

func TestPool_PanicIsLoggedWithWorkerName(t *testing.T) {
	var buf bytes.Buffer
	logger := utils.NewDefaultLogger(utils.LevelDebug, &buf)
	pool := NewPool(DefaultPoolConfig().WithWorkers(1).WithName("loader").WithLogger(logger))

	done := make(chan struct{})
	require.NoError(t, pool.Submit(func(ctx context.Context) { panic("boom") }))
	require.NoError(t, pool.Submit(func(ctx context.Context) { close(done) }))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("pool stopped after a panic")
	}
	pool.Shutdown()
	pool.Wait()

	assert.Contains(t, buf.String(), "loader-0")
	assert.Contains(t, buf.String(), "boom")
	assert.Equal(t, int64(1), pool.Metrics().Panics)
}

func TestPool_ManagedBlockStartsSpare(t *testing.T) {
	pool := NewPool(DefaultPoolConfig().WithWorkers(1))
	defer pool.ShutdownNow()

	queued := make(chan struct{})
	release := make(chan struct{})
	finished := make(chan int, 1)

	require.NoError(t, pool.Submit(func(ctx context.Context) {
		<-queued
		err := pool.ManagedBlock(ctx, chanBlocker{ch: release})
		if err == nil {
			slot, _ := WorkerID(ctx)
			finished <- slot
		}
	}))
	require.NoError(t, pool.Submit(func(ctx context.Context) {
		slot, _ := WorkerID(ctx)
		assert.Equal(t, 1, slot, "runs on the spare slot")
		close(release)
	}))
	close(queued)

	select {
	case slot := <-finished:
		assert.Equal(t, 0, slot)
	case <-time.After(5 * time.Second):
		t.Fatal("blocked worker was not compensated")
	}
	assert.Equal(t, int64(1), pool.Metrics().SparesStarted)
}

func TestPool_ManagedBlockReleasable(t *testing.T) {
	pool := NewPool(DefaultPoolConfig().WithWorkers(1))
	defer pool.ShutdownNow()

	ch := make(chan struct{})
	close(ch)
	assert.NoError(t, pool.ManagedBlock(context.Background(), chanBlocker{ch: ch}))
	assert.Equal(t, int64(0), pool.Metrics().SparesStarted)
}

func TestPool_ShutdownNow(t *testing.T) {
	pool := NewPool(DefaultPoolConfig().WithWorkers(1))

	started := make(chan struct{})
	cancelled := make(chan struct{})
	require.NoError(t, pool.Submit(func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		close(cancelled)
	}))
	<-started
	require.NoError(t, pool.Submit(func(ctx context.Context) { t.Error("queued task ran") }))

	assert.Equal(t, 1, pool.ShutdownNow())
	<-cancelled
	pool.Wait()

	err := pool.Submit(func(ctx context.Context) {})
	assert.True(t, apperrors.IsPhaseFailure(err))
	assert.Equal(t, int64(1), pool.Metrics().DroppedTasks)
}

package utils

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestTimerPhases(t *testing.T) {
	clock := NewMockClock(epoch)
	timer := NewTimer("load", WithClock(clock))

	pt := timer.Start("styles")
	clock.Advance(100 * time.Millisecond)
	assert.Equal(t, 100*time.Millisecond, pt.Stop())

	pt = timer.Start("workspaces")
	clock.Advance(50 * time.Millisecond)
	pt.Stop()

	phases := timer.Phases()
	require.Len(t, phases, 2)
	assert.Equal(t, "styles", phases[0].Name)
	assert.Equal(t, 100*time.Millisecond, phases[0].Duration)
	assert.Equal(t, "workspaces", phases[1].Name)
	assert.Equal(t, 50*time.Millisecond, phases[1].Duration)
	assert.Equal(t, 150*time.Millisecond, timer.TotalDuration())
}

func TestTimerRepeatedPhaseName(t *testing.T) {
	clock := NewSteppingClock(epoch, time.Millisecond)
	timer := NewTimer("load", WithClock(clock))

	timer.Start("resolve").Stop()
	timer.Start("resolve").Stop()

	phases := timer.Phases()
	require.Len(t, phases, 2)
	assert.Equal(t, time.Millisecond, phases[0].Duration)
	assert.Equal(t, time.Millisecond, phases[1].Duration)
}

func TestTimerStopIdempotent(t *testing.T) {
	clock := NewMockClock(epoch)
	timer := NewTimer("load", WithClock(clock))

	pt := timer.Start("phase")
	clock.Advance(time.Second)
	first := pt.Stop()
	clock.Advance(time.Second)
	assert.Equal(t, first, pt.Stop())
	assert.Equal(t, time.Second, timer.Phases()[0].Duration)
}

func TestTimerTimeFuncWithError(t *testing.T) {
	timer := NewTimer("load", WithClock(NewSteppingClock(epoch, time.Millisecond)))

	d, err := timer.TimeFuncWithError("ok", func() error { return nil })
	assert.NoError(t, err)
	assert.Equal(t, time.Millisecond, d)

	boom := errors.New("boom")
	_, err = timer.TimeFuncWithError("failing", func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Len(t, timer.Phases(), 2)
}

func TestTimerSummary(t *testing.T) {
	clock := NewMockClock(epoch)
	timer := NewTimer("catalog load", WithClock(clock))

	pt := timer.Start("styles")
	clock.Advance(2 * time.Second)
	pt.Stop()
	timer.Start("workspaces")

	summary := timer.Summary()
	assert.Contains(t, summary, "=== catalog load Timing Summary ===")
	assert.Contains(t, summary, "Phase 1 - styles: 2s")
	assert.Contains(t, summary, "Phase 2 - workspaces: running")
	assert.Contains(t, summary, "Total: 2s")
}

func TestTimerLogSummary(t *testing.T) {
	buf := &bytes.Buffer{}
	clock := NewMockClock(epoch)
	timer := NewTimer("catalog load", WithClock(clock), WithTimerLogger(NewDefaultLogger(LevelDebug, buf)))

	pt := timer.Start("styles")
	clock.Advance(time.Second)
	pt.Stop()
	timer.LogSummary()

	out := buf.String()
	assert.Contains(t, out, "catalog load: styles took 1s")
	assert.Contains(t, out, "[DEBUG] Phase 1 - styles: 1s")
	assert.Contains(t, out, "[DEBUG] Total: 1s")
}

func TestTimerNilOptions(t *testing.T) {
	timer := NewTimer("load", WithClock(nil), WithTimerLogger(nil))
	assert.NotNil(t, timer.clock)
	assert.NotNil(t, timer.logger)
	assert.GreaterOrEqual(t, timer.Start("phase").Stop(), time.Duration(0))
}

func TestTimerConcurrency(t *testing.T) {
	timer := NewTimer("load")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			timer.Start("phase").Stop()
		}()
	}
	wg.Wait()
	assert.Len(t, timer.Phases(), 10)
}

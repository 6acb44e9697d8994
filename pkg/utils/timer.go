package utils

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Phase is one timed section of a Timer.
type Phase struct {
	Name      string
	StartTime time.Time
	Duration  time.Duration
	completed bool
}

// PhaseTimer stops a running phase; use it with defer.
type PhaseTimer struct {
	timer *Timer
	index int
}

// Stop records the phase duration and returns it. Only the first call has
// an effect; later calls return the recorded duration.
func (pt *PhaseTimer) Stop() time.Duration {
	return pt.timer.stop(pt.index)
}

// Timer measures consecutive named phases. Phases keep their start order
// and the same name may be timed more than once.
type Timer struct {
	mu        sync.Mutex
	name      string
	startTime time.Time
	phases    []*Phase
	logger    Logger
	clock     Clock
}

// TimerOption configures a Timer instance.
type TimerOption func(*Timer)

// WithTimerLogger makes the timer log each finished phase and the summary
// at debug level.
func WithTimerLogger(logger Logger) TimerOption {
	return func(t *Timer) {
		t.logger = OrNull(logger)
	}
}

// WithClock sets the time source.
func WithClock(clock Clock) TimerOption {
	return func(t *Timer) {
		if clock != nil {
			t.clock = clock
		}
	}
}

// NewTimer creates a Timer and starts its total clock.
func NewTimer(name string, opts ...TimerOption) *Timer {
	t := &Timer{
		name:   name,
		logger: &NullLogger{},
		clock:  NewRealClock(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.startTime = t.clock.Now()
	return t
}

// Start starts timing a new phase.
func (t *Timer) Start(phaseName string) *PhaseTimer {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.phases = append(t.phases, &Phase{Name: phaseName, StartTime: t.clock.Now()})
	return &PhaseTimer{timer: t, index: len(t.phases) - 1}
}

func (t *Timer) stop(index int) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	p := t.phases[index]
	if p.completed {
		return p.Duration
	}
	p.Duration = t.clock.Since(p.StartTime)
	p.completed = true
	t.logger.Debug("%s: %s took %v", t.name, p.Name, p.Duration)
	return p.Duration
}

// TimeFuncWithError times fn as a phase and returns its duration and error.
func (t *Timer) TimeFuncWithError(phaseName string, fn func() error) (time.Duration, error) {
	pt := t.Start(phaseName)
	err := fn()
	return pt.Stop(), err
}

// TotalDuration returns the time elapsed since the timer was created.
func (t *Timer) TotalDuration() time.Duration {
	return t.clock.Since(t.startTime)
}

// Phases returns copies of the phases in start order.
func (t *Timer) Phases() []Phase {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Phase, len(t.phases))
	for i, p := range t.phases {
		out[i] = *p
	}
	return out
}

// Summary formats the phases, one per line, followed by the total.
// Phases still running are marked as such.
func (t *Timer) Summary() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "=== %s Timing Summary ===\n", t.name)
	for i, p := range t.Phases() {
		if p.completed {
			fmt.Fprintf(&sb, "Phase %d - %s: %v\n", i+1, p.Name, p.Duration)
		} else {
			fmt.Fprintf(&sb, "Phase %d - %s: running\n", i+1, p.Name)
		}
	}
	fmt.Fprintf(&sb, "Total: %v\n", t.TotalDuration())
	return sb.String()
}

// LogSummary writes Summary to the timer's logger, line by line.
func (t *Timer) LogSummary() {
	for _, line := range strings.Split(strings.TrimSuffix(t.Summary(), "\n"), "\n") {
		t.logger.Debug("%s", line)
	}
}

package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRealClock(t *testing.T) {
	clock := NewRealClock()

	before := time.Now()
	now := clock.Now()
	assert.False(t, now.Before(before))
	assert.GreaterOrEqual(t, clock.Since(before), time.Duration(0))
}

func TestMockClock(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)

	assert.Equal(t, start, clock.Now())
	assert.Equal(t, start, clock.Now())

	clock.Advance(time.Hour)
	assert.Equal(t, start.Add(time.Hour), clock.Now())
	assert.Equal(t, time.Hour, clock.Since(start))

	clock.Set(start)
	assert.Equal(t, time.Duration(0), clock.Since(start))
}

func TestSteppingClock(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewSteppingClock(start, time.Second)

	assert.Equal(t, start, clock.Now())
	assert.Equal(t, start.Add(time.Second), clock.Now())
	// Since reads once more.
	assert.Equal(t, 2*time.Second, clock.Since(start))
}

func TestClockInterface(t *testing.T) {
	var _ Clock = &RealClock{}
	var _ Clock = &MockClock{}
}

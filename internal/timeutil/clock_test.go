package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRealClock(t *testing.T) {
	t.Parallel()

	clock := RealClock{}
	before := time.Now()
	now := clock.Now()
	assert.False(t, now.Before(before))

	start := clock.Now()
	assert.GreaterOrEqual(t, clock.Since(start), time.Duration(0))
}

func TestMockClockAdvance(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := NewMockClock(base)

	assert.Equal(t, base, clock.Now())

	clock.Advance(90 * time.Second)
	assert.Equal(t, base.Add(90*time.Second), clock.Now())
	assert.Equal(t, 90*time.Second, clock.Since(base))
}

func TestMockClockSet(t *testing.T) {
	t.Parallel()

	clock := NewMockClock(time.Unix(0, 0))
	target := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	clock.Set(target)
	assert.Equal(t, target, clock.Now())
}

func TestMockTickerTrigger(t *testing.T) {
	t.Parallel()

	clock := NewMockClock(time.Unix(0, 0))
	ticker := clock.NewTicker(20 * time.Millisecond)

	mock, ok := ticker.(*MockTicker)
	assert.True(t, ok)

	now := clock.Now()
	mock.Trigger(now)

	select {
	case got := <-ticker.C():
		assert.Equal(t, now, got)
	default:
		t.Fatal("expected a tick after Trigger")
	}
}

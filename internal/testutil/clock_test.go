package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClock_Frozen(t *testing.T) {
	start := time.Date(2026, 10, 18, 7, 30, 0, 0, time.UTC)
	clock := NewClock(start)

	assert.Equal(t, start, clock.Now())
	assert.Equal(t, start, clock.Now())
}

func TestNewClockOn_Noon(t *testing.T) {
	clock := NewClockOn("2026-10-18")
	assert.Equal(t, time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC), clock.Now())

	assert.Panics(t, func() { NewClockOn("18/10/2026") })
}

func TestClock_AdvanceDays(t *testing.T) {
	clock := NewClockOn("2026-10-31")

	clock.AdvanceDays(1)
	assert.Equal(t, time.Date(2026, 11, 1, 12, 0, 0, 0, time.UTC), clock.Now())

	clock.AdvanceDays(-2)
	assert.Equal(t, time.Date(2026, 10, 30, 12, 0, 0, 0, time.UTC), clock.Now())
}

func TestClock_SetAndAdvance(t *testing.T) {
	clock := NewClockOn("2026-10-18")

	clock.Advance(90 * time.Minute)
	assert.Equal(t, 13, clock.Now().Hour())
	assert.Equal(t, 30, clock.Now().Minute())

	clock.SetTimeOfDay(22, 15)
	assert.Equal(t, time.Date(2026, 10, 18, 22, 15, 0, 0, time.UTC), clock.Now())

	later := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	clock.Set(later)
	assert.Equal(t, later, clock.Now())
}

func TestClock_ThreadSafe(t *testing.T) {
	clock := NewClockOn("2026-10-18")
	const numGoroutines = 50

	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			clock.Advance(time.Minute)
			_ = clock.Now()
		}()
	}
	wg.Wait()

	assert.Equal(t, time.Date(2026, 10, 18, 12, 50, 0, 0, time.UTC), clock.Now())
}

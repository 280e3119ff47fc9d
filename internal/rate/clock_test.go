package rate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPaceSleepsForNominalDuration(t *testing.T) {
	var now time.Time
	var slept time.Duration

	c := &Clock{rate: 1000, sleepFunc: func(d time.Duration) { slept = d }, nowFunc: func() time.Time { return now }}
	c.Reanchor()

	c.Pace(500) // half a second at 1000 Hz
	assert.Equal(t, 500*time.Millisecond, slept)
}

func TestPaceDoesNotSleepIfBehind(t *testing.T) {
	now := time.Now()
	var slept time.Duration
	sleepCalled := false

	c := &Clock{rate: 1000, sleepFunc: func(d time.Duration) { slept = d; sleepCalled = true }, nowFunc: func() time.Time { return now }}
	c.Reanchor()
	now = now.Add(time.Second) // pretend real time already ran ahead

	c.Pace(10)
	assert.False(t, sleepCalled, "should not sleep when already behind schedule, got %s", slept)
}

func TestReanchorResetsAccounting(t *testing.T) {
	now := time.Now()
	c := &Clock{rate: 1000, sleepFunc: func(time.Duration) {}, nowFunc: func() time.Time { return now }}
	c.Reanchor()
	c.Pace(1000)
	c.Reanchor()
	assert.Equal(t, int64(0), c.produced)
}

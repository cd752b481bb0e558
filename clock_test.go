package throttlego

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestManualClockNeverRunsBackwards(t *testing.T) {
	clock := NewManualClock(epoch)

	clock.Advance(2 * time.Second)
	require.Equal(t, epoch.Add(2*time.Second), clock.Now())

	clock.Advance(-time.Second)
	clock.Set(epoch)
	require.Equal(t, epoch.Add(2*time.Second), clock.Now())

	clock.Set(epoch.Add(time.Minute))
	require.Equal(t, epoch.Add(time.Minute), clock.Now())
}

func TestSystemClockIsMonotonic(t *testing.T) {
	var clock Clock = SystemClock{}
	first := clock.Now()
	second := clock.Now()
	require.False(t, second.Before(first))
}

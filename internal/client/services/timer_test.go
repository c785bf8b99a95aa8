package services

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerCtl_FiresAfterDeadline(t *testing.T) {
	var fired atomic.Int32
	tc := newTimerCtl(20*time.Millisecond, func() { fired.Add(1) })

	tc.Start()
	require.Eventually(t, func() bool {
		return fired.Load() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestTimerCtl_StartReplacesDeadline(t *testing.T) {
	var fired atomic.Int32
	tc := newTimerCtl(40*time.Millisecond, func() { fired.Add(1) })

	tc.Start()
	time.Sleep(20 * time.Millisecond)
	tc.Start()
	time.Sleep(30 * time.Millisecond)
	assert.Zero(t, fired.Load(), "re-arming must push the deadline out")

	require.Eventually(t, func() bool {
		return fired.Load() == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), fired.Load(), "one deadline, one fire")
}

func TestTimerCtl_StopPreventsFire(t *testing.T) {
	var fired atomic.Int32
	tc := newTimerCtl(30*time.Millisecond, func() { fired.Add(1) })

	tc.Start()
	tc.Stop()
	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, fired.Load())
}

func TestTimerCtl_StopBeforeStartIsSafe(t *testing.T) {
	tc := newTimerCtl(time.Millisecond, func() {})
	tc.Stop()
	tc.Stop()
}

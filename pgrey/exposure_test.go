package pgrey

import (
	"testing"
	"time"

	"github.com/labcam/chameleon/dc1394"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextPoll(t *testing.T) {
	tests := []struct {
		remaining float64
		want      time.Duration
	}{
		{30, PollingPeriod},
		{1.0, PollingPeriod},
		{0.999, PollingPeriod},
		{0.25, PollingPeriod},
		{0.2499, 50 * time.Millisecond},
		{0.07, 50 * time.Millisecond},
		{0.0699, 0},
		{0, 0},
		{-1, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, nextPoll(tt.remaining, PollingPeriod), "remaining %g", tt.remaining)
	}
}

func TestNextPollNonIncreasing(t *testing.T) {
	prev := nextPoll(10, PollingPeriod)
	for r := 10.; r > -0.5; r -= 0.001 {
		p := nextPoll(r, PollingPeriod)
		require.LessOrEqual(t, int64(p), int64(prev), "remaining %g", r)
		prev = p
	}
}

func TestTimeLeftDecreases(t *testing.T) {
	r := newRig()
	r.connect(t)
	require.NoError(t, r.drv.StartExposure(2))
	prev := r.drv.timeLeft()
	assert.InDelta(t, 2, prev, 1e-12)
	for i := 0; i < 20; i++ {
		r.clk.Advance(150 * time.Millisecond)
		left := r.drv.timeLeft()
		assert.Less(t, left, prev)
		prev = left
	}
}

func TestExposureSingleTransfer(t *testing.T) {
	for _, d := range []float64{0.001, 0.05, 0.1, 0.25, 0.6, 1, 1.3, 2.75} {
		r := newRig()
		r.connect(t)
		r.fw.timers = nil
		r.cam.Stale = 2

		require.NoError(t, r.drv.StartExposure(d))
		assert.True(t, r.drv.InExposure())
		assert.True(t, r.cam.Transmitting())
		assert.Zero(t, r.cam.Stale, "stale frames flushed")
		start := r.clk.Elapsed()

		r.fw.timers = []time.Duration{0}
		r.run(t)

		assert.Equal(t, 1, r.fw.completed, "duration %g", d)
		assert.Equal(t, 1, r.cam.Delivered, "duration %g", d)
		assert.Zero(t, r.cam.Outstanding)
		assert.False(t, r.cam.Transmitting())
		assert.False(t, r.drv.InExposure())
		assert.Zero(t, r.fw.chip.ExposureLeft())
		assert.InDelta(t, d, (r.clk.Elapsed() - start).Seconds(), 1e-6, "duration %g", d)

		// later ticks do nothing more
		for i := 0; i < 10; i++ {
			r.clk.Advance(r.fw.lastTimer())
			r.drv.TimerHit()
		}
		assert.Equal(t, 1, r.fw.completed)
		assert.Equal(t, 1, r.cam.Delivered)
	}
}

func TestExposureReportsTimeLeft(t *testing.T) {
	r := newRig()
	r.connect(t)
	require.NoError(t, r.drv.StartExposure(3))
	r.clk.Advance(time.Second)
	r.drv.TimerHit()
	assert.InDelta(t, 2, r.fw.chip.ExposureLeft(), 1e-9)
	assert.Equal(t, PollingPeriod, r.fw.lastTimer())
}

func TestExposureTiers(t *testing.T) {
	r := newRig()
	r.connect(t)
	require.NoError(t, r.drv.StartExposure(1))

	r.clk.Advance(400 * time.Millisecond) // 0.6 left
	r.drv.TimerHit()
	assert.Equal(t, PollingPeriod, r.fw.lastTimer())

	r.clk.Advance(500 * time.Millisecond) // 0.1 left
	r.drv.TimerHit()
	assert.Equal(t, 50*time.Millisecond, r.fw.lastTimer())
	assert.Zero(t, r.fw.completed)

	r.clk.Advance(50 * time.Millisecond) // 0.05 left, sleep it out
	r.drv.TimerHit()
	require.Len(t, r.clk.slept, 1)
	assert.InDelta(t, 0.05, r.clk.slept[0].Seconds(), 1e-6)
	assert.Equal(t, 1, r.fw.completed)
	assert.Equal(t, PollingPeriod, r.fw.lastTimer())
}

func TestOverdueExposureDoesNotSleep(t *testing.T) {
	r := newRig()
	r.connect(t)
	require.NoError(t, r.drv.StartExposure(0.5))
	r.clk.Advance(2 * time.Second)
	r.drv.TimerHit()
	assert.Empty(t, r.clk.slept)
	assert.Equal(t, 1, r.fw.completed)
}

func TestFrameCopied(t *testing.T) {
	r := newRig()
	r.connect(t)
	require.NoError(t, r.drv.StartExposure(0.01))
	r.run(t)
	require.Equal(t, 1, r.fw.completed)

	buf := r.fw.chip.FrameBuffer()
	n := Width * Height
	assert.NotZero(t, buf[0])
	assert.Equal(t, buf[0]+1, buf[1])
	assert.Equal(t, make([]byte, BufferMargin), buf[n:], "margin untouched")
}

func TestAbortNoTransfer(t *testing.T) {
	for _, after := range []time.Duration{0, 10 * time.Millisecond, 300 * time.Millisecond, 900 * time.Millisecond} {
		r := newRig()
		r.connect(t)
		require.NoError(t, r.drv.StartExposure(1))
		r.clk.Advance(after)
		r.drv.TimerHit()
		require.NoError(t, r.drv.AbortExposure())
		assert.False(t, r.drv.InExposure())

		for i := 0; i < 20; i++ {
			r.clk.Advance(r.fw.lastTimer())
			r.drv.TimerHit()
		}
		assert.Zero(t, r.fw.completed, "aborted after %v", after)
		assert.Zero(t, r.cam.Delivered, "aborted after %v", after)
		assert.Empty(t, r.fw.failed)
	}
}

func TestCorruptFrame(t *testing.T) {
	r := newRig()
	r.connect(t)
	buf := r.fw.chip.FrameBuffer()
	for i := range buf {
		buf[i] = 0xa5
	}
	r.cam.CorruptNext = true

	require.NoError(t, r.drv.StartExposure(0.01))
	r.run(t)

	assert.Zero(t, r.fw.completed)
	require.Len(t, r.fw.failed, 1)
	assert.Equal(t, ErrCorruptFrame, r.fw.failed[0])
	assert.Equal(t, 1, r.fw.said("Corrupt frame!"))
	for i, b := range r.fw.chip.FrameBuffer() {
		if b != 0xa5 {
			t.Fatalf("frame buffer modified at %d", i)
		}
	}
	assert.Zero(t, r.cam.Outstanding, "frame returned to the ring")
	assert.False(t, r.cam.Transmitting())

	// the next exposure recovers
	require.NoError(t, r.drv.StartExposure(0.01))
	r.run(t)
	assert.Equal(t, 1, r.fw.completed)
}

func TestCaptureFailure(t *testing.T) {
	r := newRig()
	r.connect(t)
	require.NoError(t, r.drv.StartExposure(0.01))
	r.cam.Fail["Dequeue"] = errors.New("bus reset")
	r.run(t)
	assert.Zero(t, r.fw.completed)
	require.Len(t, r.fw.failed, 1)
	assert.Equal(t, 1, r.fw.said("Could not capture frame"))
}

func TestStartExposureTransmissionFailure(t *testing.T) {
	r := newRig()
	r.connect(t)
	r.cam.Fail["SetTransmission"] = errors.New("iso channel unavailable")
	err := r.drv.StartExposure(1)
	require.Error(t, err)
	assert.False(t, r.drv.InExposure())
	assert.Equal(t, 1, r.fw.said("unable to start transmission"))
}

func TestStartExposureShutterFailureNotFatal(t *testing.T) {
	r := newRig()
	r.connect(t)
	r.cam.Fail["SetAbsoluteValue"] = errors.New("out of range")
	require.NoError(t, r.drv.StartExposure(100))
	assert.True(t, r.drv.InExposure())
	assert.Equal(t, 1, r.fw.said("unable to set shutter value"))
}

func TestStartExposureProgramsShutter(t *testing.T) {
	r := newRig()
	r.connect(t)
	require.NoError(t, r.drv.StartExposure(0.5))
	assert.Equal(t, 0.5, r.cam.Feature(dc1394.FeatureShutter).Value)
	assert.Equal(t, 0.5, r.fw.chip.ExposureDuration())
	assert.Equal(t, 8, r.fw.chip.BPP())
	assert.Equal(t, 1, r.fw.said("Set shutter value to 0.500000"))
}

func TestStartExposureDisconnected(t *testing.T) {
	r := newRig()
	assert.Equal(t, ErrNotConnected, r.drv.StartExposure(1))
}

func TestTimerStopsWhenDisconnected(t *testing.T) {
	r := newRig()
	r.connect(t)
	r.disconnect(t)
	n := len(r.fw.timers)
	r.drv.TimerHit()
	assert.Len(t, r.fw.timers, n)
}

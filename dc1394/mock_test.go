package dc1394

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMock(t *testing.T) (*Mock, *MockCamera, Camera) {
	t.Helper()
	mc := NewMockCamera(0x00b09d0100a1b2c3)
	bus := NewMock(mc)
	ctx, err := bus.Opener()()
	require.NoError(t, err)
	ids, err := ctx.Enumerate()
	require.NoError(t, err)
	require.Len(t, ids, 1)
	cam, err := ctx.Open(ids[0].GUID)
	require.NoError(t, err)
	return bus, mc, cam
}

func TestMockOpenUnknownGUID(t *testing.T) {
	bus := NewMock(NewMockCamera(1))
	_, err := bus.Open(2)
	assert.Error(t, err)
}

func TestMockFormat7Region(t *testing.T) {
	_, mc, cam := openMock(t)
	require.NoError(t, cam.SetImagePosition(VideoModeFormat7_1, 0, 0))
	require.NoError(t, cam.SetImageSize(VideoModeFormat7_1, 640, 480))
	require.NoError(t, cam.SetColorCoding(VideoModeFormat7_1, ColorCodingMono8))
	require.NoError(t, cam.SetVideoMode(VideoModeFormat7_1))
	w, h, err := cam.ImageSize(VideoModeFormat7_1)
	require.NoError(t, err)
	assert.Equal(t, 640, w)
	assert.Equal(t, 480, h)
	mode, _, _, coding := mc.Mode()
	assert.Equal(t, VideoModeFormat7_1, mode)
	assert.Equal(t, ColorCodingMono8, coding)

	assert.Error(t, cam.SetImageSize(VideoModeFormat7_1, 641, 480))
}

func TestMockPollDrainsStaleFrames(t *testing.T) {
	_, mc, cam := openMock(t)
	require.NoError(t, cam.SetupCapture(DefaultCaptureBuffers))
	mc.Stale = 3
	n := 0
	for {
		f, err := cam.Dequeue(PolicyPoll)
		require.NoError(t, err)
		if f == nil {
			break
		}
		n++
		require.NoError(t, cam.Enqueue(f))
	}
	assert.Equal(t, 3, n)
	assert.Equal(t, 0, mc.Outstanding)
}

func TestMockWaitRequiresTransmission(t *testing.T) {
	_, mc, cam := openMock(t)
	require.NoError(t, cam.SetupCapture(DefaultCaptureBuffers))
	_, err := cam.Dequeue(PolicyWait)
	assert.Error(t, err)

	require.NoError(t, cam.SetTransmission(true))
	mc.CorruptNext = true
	f, err := cam.Dequeue(PolicyWait)
	require.NoError(t, err)
	assert.True(t, f.Corrupt)
	require.NoError(t, cam.Enqueue(f))

	f, err = cam.Dequeue(PolicyWait)
	require.NoError(t, err)
	assert.False(t, f.Corrupt)
	assert.Len(t, f.Image, f.Width*f.Height)
	assert.Equal(t, 2, mc.Delivered)
}

func TestMockSaturatedFrameStaysBright(t *testing.T) {
	_, _, cam := openMock(t)
	require.NoError(t, cam.SetupCapture(DefaultCaptureBuffers))
	require.NoError(t, cam.SetAbsoluteValue(FeatureShutter, 32))
	require.NoError(t, cam.SetAbsoluteValue(FeatureGain, 24))
	require.NoError(t, cam.SetTransmission(true))
	f, err := cam.Dequeue(PolicyWait)
	require.NoError(t, err)
	require.NotEmpty(t, f.Image)
	for i, p := range f.Image {
		if p != 255 {
			t.Fatalf("pixel %d = %d, expected a saturated frame to read 255", i, p)
		}
	}
}

func TestMockFeatureRange(t *testing.T) {
	_, mc, cam := openMock(t)
	min, max, err := cam.AbsoluteBoundaries(FeatureGain)
	require.NoError(t, err)
	assert.NoError(t, cam.SetAbsoluteValue(FeatureGain, min))
	assert.NoError(t, cam.SetAbsoluteValue(FeatureGain, max))
	assert.Error(t, cam.SetAbsoluteValue(FeatureGain, max+1))
	assert.Equal(t, max, mc.Feature(FeatureGain).Value)
}

func TestMockInjectedFailureAndClose(t *testing.T) {
	_, mc, cam := openMock(t)
	mc.Fail["Reset"] = Error(-9)
	assert.Equal(t, Error(-9), cam.Reset())

	require.NoError(t, cam.Close())
	require.NoError(t, cam.Close())
	assert.Equal(t, 1, mc.Closes)
	assert.False(t, mc.IsOpen())
	assert.ErrorIs(t, cam.SetTransmission(true), ErrClosed)
}

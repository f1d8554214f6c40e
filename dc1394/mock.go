package dc1394

import (
	"math"
	"sync"

	"github.com/pkg/errors"
)

// MockFeature is the state of one feature on a MockCamera
type MockFeature struct {
	Power    bool
	Mode     FeatureMode
	Absolute bool
	Value    float64
	Min      float64
	Max      float64
}

// Mock is a library context holding simulated cameras
type Mock struct {
	sync.Mutex

	// Cameras are the simulated cameras on the bus
	Cameras []*MockCamera

	// Fail holds errors to return from the named calls (New, Enumerate, Open)
	Fail map[string]error

	// Contexts counts the contexts handed out by Opener, Closes counts releases
	Contexts, Closes int
}

// NewMock returns a bus with the given cameras attached
func NewMock(cams ...*MockCamera) *Mock {
	return &Mock{Cameras: cams, Fail: map[string]error{}}
}

// Opener returns an Opener yielding this mock
func (m *Mock) Opener() Opener {
	return func() (Context, error) {
		m.Lock()
		defer m.Unlock()
		if err := m.Fail["New"]; err != nil {
			return nil, err
		}
		m.Contexts++
		return m, nil
	}
}

// Enumerate lists the simulated cameras
func (m *Mock) Enumerate() ([]CameraID, error) {
	m.Lock()
	defer m.Unlock()
	if err := m.Fail["Enumerate"]; err != nil {
		return nil, err
	}
	ids := make([]CameraID, len(m.Cameras))
	for i, c := range m.Cameras {
		ids[i] = CameraID{GUID: c.ID}
	}
	return ids, nil
}

// Open opens a simulated camera by GUID
func (m *Mock) Open(guid uint64) (Camera, error) {
	m.Lock()
	defer m.Unlock()
	if err := m.Fail["Open"]; err != nil {
		return nil, err
	}
	for _, c := range m.Cameras {
		if c.ID == guid {
			c.Lock()
			c.open = true
			c.Opens++
			c.Unlock()
			return c, nil
		}
	}
	return nil, errors.Wrapf(Error(-2), "dc1394_camera_new guid=%016x", guid)
}

// Close releases the context
func (m *Mock) Close() error {
	m.Lock()
	defer m.Unlock()
	m.Closes++
	return nil
}

// MockCamera simulates a Point Grey Chameleon (CMLN-13S2M) on the bus.
type MockCamera struct {
	sync.Mutex

	// ID is the camera GUID
	ID uint64

	// Fail holds errors to return from the named methods, e.g. "Reset"
	Fail map[string]error

	// TemperatureRaw is the value of the TEMPERATURE register
	TemperatureRaw uint32

	// CorruptNext flags the next frame produced by a blocking dequeue as corrupt
	CorruptNext bool

	// Stale is the number of old frames sitting in the DMA ring
	Stale int

	// Features is the feature table
	Features map[Feature]*MockFeature

	// Opens, Closes and Resets count calls to those operations
	Opens, Closes, Resets int

	// Outstanding is the number of dequeued frames not yet enqueued
	Outstanding int

	// Delivered counts the fresh frames produced by blocking dequeues
	Delivered int

	open         bool
	mode         VideoMode
	left, top    int
	width        int
	height       int
	coding       ColorCoding
	capturing    bool
	transmitting bool
	buffers      int
}

// NewMockCamera returns a simulated camera with power-on defaults
func NewMockCamera(guid uint64) *MockCamera {
	return &MockCamera{
		ID:             guid,
		Fail:           map[string]error{},
		TemperatureRaw: presenceBit | 3000, // 300.0 K
		Features: map[Feature]*MockFeature{
			FeatureBrightness:   {Power: true, Mode: FeatureModeAuto, Min: 0, Max: 6.24, Value: 0},
			FeatureExposure:     {Power: true, Mode: FeatureModeAuto, Min: -7.58, Max: 2.41, Value: 0},
			FeatureWhiteBalance: {Power: true, Mode: FeatureModeAuto, Min: 0, Max: 1023, Value: 512},
			FeatureGamma:        {Power: true, Mode: FeatureModeManual, Min: 0.5, Max: 3.99, Value: 1},
			FeatureShutter:      {Power: true, Mode: FeatureModeAuto, Min: 0.00002, Max: 32, Value: 0.01},
			FeatureGain:         {Power: true, Mode: FeatureModeAuto, Min: 0, Max: 24, Value: 0},
			FeatureFrameRate:    {Power: true, Mode: FeatureModeAuto, Min: 1, Max: 18, Value: 18},
		},
		mode:   VideoModeFormat7_0,
		width:  1296,
		height: 964,
		coding: ColorCodingMono8,
	}
}

// Transmitting reports if the simulated camera is streaming
func (c *MockCamera) Transmitting() bool {
	c.Lock()
	defer c.Unlock()
	return c.transmitting
}

// Capturing reports if a DMA ring is set up
func (c *MockCamera) Capturing() bool {
	c.Lock()
	defer c.Unlock()
	return c.capturing
}

// IsOpen reports if the camera is held open by a context
func (c *MockCamera) IsOpen() bool {
	c.Lock()
	defer c.Unlock()
	return c.open
}

// Mode returns the active video mode and region
func (c *MockCamera) Mode() (VideoMode, int, int, ColorCoding) {
	c.Lock()
	defer c.Unlock()
	return c.mode, c.width, c.height, c.coding
}

// Feature returns a copy of the feature state
func (c *MockCamera) Feature(f Feature) MockFeature {
	c.Lock()
	defer c.Unlock()
	if ft, ok := c.Features[f]; ok {
		return *ft
	}
	return MockFeature{}
}

// check must be called with the lock held
func (c *MockCamera) check(call string) error {
	if !c.open {
		return errors.Wrap(ErrClosed, call)
	}
	if err := c.Fail[call]; err != nil {
		return err
	}
	return nil
}

func (c *MockCamera) feature(f Feature, call string) (*MockFeature, error) {
	if err := c.check(call); err != nil {
		return nil, err
	}
	ft, ok := c.Features[f]
	if !ok {
		return nil, errors.Wrapf(Error(-17), "%s %s", call, f)
	}
	return ft, nil
}

// GUID returns the camera GUID
func (c *MockCamera) GUID() uint64 {
	return c.ID
}

// Reset resets the camera
func (c *MockCamera) Reset() error {
	c.Lock()
	defer c.Unlock()
	if err := c.check("Reset"); err != nil {
		return err
	}
	c.Resets++
	c.transmitting = false
	return nil
}

// SupportedModes returns the Format7 modes of the Chameleon
func (c *MockCamera) SupportedModes() ([]VideoMode, error) {
	c.Lock()
	defer c.Unlock()
	if err := c.check("SupportedModes"); err != nil {
		return nil, err
	}
	return []VideoMode{VideoModeFormat7_0, VideoModeFormat7_1}, nil
}

func (c *MockCamera) maxSize(mode VideoMode) (int, int, error) {
	switch mode {
	case VideoModeFormat7_0:
		return 1296, 964, nil
	case VideoModeFormat7_1:
		return 640, 480, nil
	}
	return 0, 0, Error(-19)
}

// SetImagePosition sets the region origin
func (c *MockCamera) SetImagePosition(mode VideoMode, left, top int) error {
	c.Lock()
	defer c.Unlock()
	if err := c.check("SetImagePosition"); err != nil {
		return err
	}
	if _, _, err := c.maxSize(mode); err != nil {
		return err
	}
	c.left, c.top = left, top
	return nil
}

// SetImageSize sets the region size
func (c *MockCamera) SetImageSize(mode VideoMode, width, height int) error {
	c.Lock()
	defer c.Unlock()
	if err := c.check("SetImageSize"); err != nil {
		return err
	}
	mw, mh, err := c.maxSize(mode)
	if err != nil {
		return err
	}
	if width <= 0 || height <= 0 || c.left+width > mw || c.top+height > mh {
		return Error(-16)
	}
	c.width, c.height = width, height
	return nil
}

// SetColorCoding sets the pixel encoding
func (c *MockCamera) SetColorCoding(mode VideoMode, coding ColorCoding) error {
	c.Lock()
	defer c.Unlock()
	if err := c.check("SetColorCoding"); err != nil {
		return err
	}
	if coding != ColorCodingMono8 && coding != ColorCodingMono16 {
		return Error(-25)
	}
	c.coding = coding
	return nil
}

// SetVideoMode activates a mode
func (c *MockCamera) SetVideoMode(mode VideoMode) error {
	c.Lock()
	defer c.Unlock()
	if err := c.check("SetVideoMode"); err != nil {
		return err
	}
	if _, _, err := c.maxSize(mode); err != nil {
		return err
	}
	c.mode = mode
	return nil
}

// ImageSize returns the size of the region of the active mode
func (c *MockCamera) ImageSize(mode VideoMode) (int, int, error) {
	c.Lock()
	defer c.Unlock()
	if err := c.check("ImageSize"); err != nil {
		return 0, 0, err
	}
	if mode != c.mode {
		return c.maxSize(mode)
	}
	return c.width, c.height, nil
}

// SetPower turns a feature on or off
func (c *MockCamera) SetPower(f Feature, on bool) error {
	c.Lock()
	defer c.Unlock()
	ft, err := c.feature(f, "SetPower")
	if err != nil {
		return err
	}
	ft.Power = on
	return nil
}

// SetMode sets the control mode of a feature
func (c *MockCamera) SetMode(f Feature, m FeatureMode) error {
	c.Lock()
	defer c.Unlock()
	ft, err := c.feature(f, "SetMode")
	if err != nil {
		return err
	}
	ft.Mode = m
	return nil
}

// SetAbsoluteControl enables physical units for a feature
func (c *MockCamera) SetAbsoluteControl(f Feature, on bool) error {
	c.Lock()
	defer c.Unlock()
	ft, err := c.feature(f, "SetAbsoluteControl")
	if err != nil {
		return err
	}
	ft.Absolute = on
	return nil
}

// AbsoluteBoundaries returns the range of a feature
func (c *MockCamera) AbsoluteBoundaries(f Feature) (float64, float64, error) {
	c.Lock()
	defer c.Unlock()
	ft, err := c.feature(f, "AbsoluteBoundaries")
	if err != nil {
		return 0, 0, err
	}
	return ft.Min, ft.Max, nil
}

// AbsoluteValue returns the value of a feature
func (c *MockCamera) AbsoluteValue(f Feature) (float64, error) {
	c.Lock()
	defer c.Unlock()
	ft, err := c.feature(f, "AbsoluteValue")
	if err != nil {
		return 0, err
	}
	return ft.Value, nil
}

// SetAbsoluteValue sets the value of a feature
func (c *MockCamera) SetAbsoluteValue(f Feature, v float64) error {
	c.Lock()
	defer c.Unlock()
	ft, err := c.feature(f, "SetAbsoluteValue")
	if err != nil {
		return err
	}
	if v < ft.Min || v > ft.Max {
		return errors.Wrapf(Error(-16), "%s=%f", f, v)
	}
	ft.Value = v
	return nil
}

// SetupCapture sets up the DMA ring
func (c *MockCamera) SetupCapture(buffers int) error {
	c.Lock()
	defer c.Unlock()
	if err := c.check("SetupCapture"); err != nil {
		return err
	}
	if c.capturing {
		return Error(-11)
	}
	c.capturing = true
	c.buffers = buffers
	return nil
}

// StopCapture tears down the DMA ring
func (c *MockCamera) StopCapture() error {
	c.Lock()
	defer c.Unlock()
	if err := c.check("StopCapture"); err != nil {
		return err
	}
	if !c.capturing {
		return Error(-10)
	}
	c.capturing = false
	c.transmitting = false
	return nil
}

// SetTransmission starts or stops streaming
func (c *MockCamera) SetTransmission(on bool) error {
	c.Lock()
	defer c.Unlock()
	if err := c.check("SetTransmission"); err != nil {
		return err
	}
	c.transmitting = on
	return nil
}

// Dequeue returns the next frame.  Stale frames drain first.  A blocking
// dequeue while not streaming fails instead of hanging forever.
func (c *MockCamera) Dequeue(p Policy) (*Frame, error) {
	c.Lock()
	defer c.Unlock()
	if err := c.check("Dequeue"); err != nil {
		return nil, err
	}
	if !c.capturing {
		return nil, Error(-10)
	}
	if c.Stale > 0 {
		c.Stale--
		c.Outstanding++
		return c.synthesize(0), nil
	}
	switch p {
	case PolicyPoll:
		return nil, nil
	case PolicyWait:
		if !c.transmitting {
			return nil, errors.Wrap(Failure, "dequeue with transmission off would block forever")
		}
		f := c.synthesize(c.level())
		f.Corrupt = c.CorruptNext
		c.CorruptNext = false
		c.Outstanding++
		c.Delivered++
		return f, nil
	}
	return nil, Error(-27)
}

// level is the mean signal implied by the shutter and gain
func (c *MockCamera) level() float64 {
	shutter := c.Features[FeatureShutter].Value
	gain := c.Features[FeatureGain].Value
	return math.Min(255, 8+shutter*100*math.Pow(10, gain/20))
}

func (c *MockCamera) synthesize(level float64) *Frame {
	bpp := c.coding.BytesPerPixel()
	pix := make([]byte, c.width*c.height*bpp)
	for y := 0; y < c.height; y++ {
		row := y * c.width * bpp
		for x := 0; x < c.width*bpp; x++ {
			pix[row+x] = byte(math.Min(255, level+float64((x+y)%8)))
		}
	}
	return &Frame{Image: pix, Width: c.width, Height: c.height, Coding: c.coding}
}

// Enqueue returns a frame to the ring
func (c *MockCamera) Enqueue(f *Frame) error {
	c.Lock()
	defer c.Unlock()
	if err := c.check("Enqueue"); err != nil {
		return err
	}
	if f == nil {
		return Error(-15)
	}
	c.Outstanding--
	return nil
}

// ControlRegister reads a register.  Only the temperature register exists.
func (c *MockCamera) ControlRegister(offset uint64) (uint32, error) {
	c.Lock()
	defer c.Unlock()
	if err := c.check("ControlRegister"); err != nil {
		return 0, err
	}
	if offset != TemperatureRegister {
		return 0, Error(-6)
	}
	return c.TemperatureRaw, nil
}

// Close frees the camera
func (c *MockCamera) Close() error {
	c.Lock()
	defer c.Unlock()
	if !c.open {
		return nil
	}
	c.open = false
	c.capturing = false
	c.transmitting = false
	c.Closes++
	return nil
}

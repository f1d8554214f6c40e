/*Package dc1394 exposes IIDC (DCAM) cameras such as the Point Grey Chameleon
through a small capability interface modeled on libdc1394 v2.

The interface is implemented by a cgo binding to libdc1394 (compiled with the
dc1394 build tag) and by Mock, a pure Go simulation of a Chameleon used in
tests and for bench work without hardware.

A typical session:

	ctx, err := dc1394.New()
	ids, err := ctx.Enumerate()
	cam, err := ctx.Open(ids[0].GUID)
	defer cam.Close()
	cam.Reset()
	cam.SetImageSize(dc1394.VideoModeFormat7_1, 640, 480)
	...

*/
package dc1394

import "fmt"

const (
	// PointGreyVID is the USB vendor ID of Point Grey Research
	PointGreyVID = 0x1e10

	// DefaultCaptureBuffers is the number of DMA buffers to ring
	DefaultCaptureBuffers = 10
)

// Feature is a camera feature (IIDC register block)
type Feature int

const (
	// FeatureBrightness is the black level offset
	FeatureBrightness Feature = iota + 416
	// FeatureExposure is the auto exposure (AE) target
	FeatureExposure
	// FeatureSharpness is the sharpness filter
	FeatureSharpness
	// FeatureWhiteBalance is the white balance
	FeatureWhiteBalance
	// FeatureHue is the hue
	FeatureHue
	// FeatureSaturation is the saturation
	FeatureSaturation
	// FeatureGamma is the gamma curve
	FeatureGamma
	// FeatureShutter is the integration time
	FeatureShutter
	// FeatureGain is the analog gain
	FeatureGain
	// FeatureIris is the iris
	FeatureIris
	// FeatureFocus is the focus
	FeatureFocus
	// FeatureTemperature is the temperature feature (setpoint, not the sensor register)
	FeatureTemperature
	// FeatureTrigger is the trigger
	FeatureTrigger
	// FeatureTriggerDelay is the trigger delay
	FeatureTriggerDelay
	// FeatureWhiteShading is the white shading
	FeatureWhiteShading
	// FeatureFrameRate is the frame rate control
	FeatureFrameRate
)

var featureNames = map[Feature]string{
	FeatureBrightness:   "Brightness",
	FeatureExposure:     "Exposure",
	FeatureSharpness:    "Sharpness",
	FeatureWhiteBalance: "White Balance",
	FeatureHue:          "Hue",
	FeatureSaturation:   "Saturation",
	FeatureGamma:        "Gamma",
	FeatureShutter:      "Shutter",
	FeatureGain:         "Gain",
	FeatureIris:         "Iris",
	FeatureFocus:        "Focus",
	FeatureTemperature:  "Temperature",
	FeatureTrigger:      "Trigger",
	FeatureTriggerDelay: "Trigger Delay",
	FeatureWhiteShading: "White Shading",
	FeatureFrameRate:    "Frame Rate",
}

func (f Feature) String() string {
	if s, ok := featureNames[f]; ok {
		return s
	}
	return fmt.Sprintf("Feature(%d)", int(f))
}

// FeatureMode is the control mode of a feature
type FeatureMode int

const (
	// FeatureModeManual is direct control of the feature value
	FeatureModeManual FeatureMode = iota + 736
	// FeatureModeAuto lets the camera regulate the feature
	FeatureModeAuto
	// FeatureModeOnePushAuto regulates once then holds
	FeatureModeOnePushAuto
)

// VideoMode is an IIDC video mode.  Only the Format7 (scalable) modes are
// enumerated here since the driver never negotiates the fixed formats.
type VideoMode int

const (
	// VideoModeFormat7_0 is scalable mode 0
	VideoModeFormat7_0 VideoMode = iota + 88
	// VideoModeFormat7_1 is scalable mode 1, which on the Chameleon is a
	// region of interest of up to 640x480
	VideoModeFormat7_1
	// VideoModeFormat7_2 is scalable mode 2
	VideoModeFormat7_2
	// VideoModeFormat7_3 is scalable mode 3
	VideoModeFormat7_3
	// VideoModeFormat7_4 is scalable mode 4
	VideoModeFormat7_4
	// VideoModeFormat7_5 is scalable mode 5
	VideoModeFormat7_5
	// VideoModeFormat7_6 is scalable mode 6
	VideoModeFormat7_6
	// VideoModeFormat7_7 is scalable mode 7
	VideoModeFormat7_7
)

// ColorCoding is a pixel encoding
type ColorCoding int

const (
	// ColorCodingMono8 is 8-bit monochrome
	ColorCodingMono8 ColorCoding = 352
	// ColorCodingMono16 is 16-bit monochrome
	ColorCodingMono16 ColorCoding = 357
)

// BytesPerPixel returns the number of bytes used by one pixel
func (c ColorCoding) BytesPerPixel() int {
	if c == ColorCodingMono16 {
		return 2
	}
	return 1
}

// Policy is the dequeue policy
type Policy int

const (
	// PolicyWait blocks until a frame is available
	PolicyWait Policy = iota + 672
	// PolicyPoll returns immediately, with a nil frame if none is ready
	PolicyPoll
)

// CameraID identifies a camera on the bus
type CameraID struct {
	// GUID is the 64-bit globally unique identifier of the camera
	GUID uint64 `json:"guid"`

	// Unit is the unit number on multi-unit devices
	Unit int `json:"unit"`
}

// Frame is a completed frame held by the capture ring.  It must be returned
// with Enqueue once the pixels have been consumed.
type Frame struct {
	// Image is the pixel data.  For the cgo binding this aliases DMA memory
	// and is invalid after Enqueue.
	Image []byte

	// Width and Height are the frame dimensions in pixels
	Width, Height int

	// Coding is the pixel encoding of Image
	Coding ColorCoding

	// Corrupt is set when the hardware flagged the frame as damaged
	Corrupt bool

	// ref is the binding's handle to the underlying buffer
	ref interface{}
}

// Context is a library context, able to enumerate and open cameras
type Context interface {
	// Enumerate lists the cameras on the bus
	Enumerate() ([]CameraID, error)

	// Open opens the camera with the given GUID
	Open(guid uint64) (Camera, error)

	// Close releases the library context
	Close() error
}

// Opener creates a library context
type Opener func() (Context, error)

// Camera is an opened IIDC camera
type Camera interface {
	// GUID returns the camera's GUID
	GUID() uint64

	// Reset issues a bus reset of the camera
	Reset() error

	// SupportedModes lists the video modes the camera reports
	SupportedModes() ([]VideoMode, error)

	// SetImagePosition sets the upper left corner of a Format7 region
	SetImagePosition(mode VideoMode, left, top int) error

	// SetImageSize sets the size of a Format7 region
	SetImageSize(mode VideoMode, width, height int) error

	// SetColorCoding sets the pixel encoding of a Format7 mode
	SetColorCoding(mode VideoMode, coding ColorCoding) error

	// SetVideoMode activates a video mode
	SetVideoMode(mode VideoMode) error

	// ImageSize returns the frame size of a video mode
	ImageSize(mode VideoMode) (width, height int, err error)

	// SetPower turns a feature on or off
	SetPower(f Feature, on bool) error

	// SetMode sets the control mode of a feature
	SetMode(f Feature, m FeatureMode) error

	// SetAbsoluteControl switches a feature between raw register values
	// and physical units
	SetAbsoluteControl(f Feature, on bool) error

	// AbsoluteBoundaries returns the range of a feature in physical units
	AbsoluteBoundaries(f Feature) (min, max float64, err error)

	// AbsoluteValue returns the value of a feature in physical units
	AbsoluteValue(f Feature) (float64, error)

	// SetAbsoluteValue sets the value of a feature in physical units
	SetAbsoluteValue(f Feature, v float64) error

	// SetupCapture allocates the DMA ring
	SetupCapture(buffers int) error

	// StopCapture releases the DMA ring
	StopCapture() error

	// SetTransmission starts or stops isochronous streaming
	SetTransmission(on bool) error

	// Dequeue takes the next completed frame from the ring
	Dequeue(p Policy) (*Frame, error)

	// Enqueue returns a frame to the ring
	Enqueue(f *Frame) error

	// ControlRegister reads a raw control register at an offset from the
	// command register base
	ControlRegister(offset uint64) (uint32, error)

	// Close frees the camera
	Close() error
}

/*Package pgrey drives a Point Grey Chameleon through libdc1394.

The driver runs on a ccd.Host.  It fixes the camera to a 640x480 8-bit
monochrome Format7 region, leaves frame rate control off so the shutter alone
sets the exposure time, and times exposures with the host's timers:

	remaining >= 1s          report remaining time, poll again at 250ms
	0.25s <= remaining < 1s  poll again at 250ms
	0.07s <= remaining < .25 poll again at 50ms
	remaining < 0.07s        sleep out the rest, then read out the frame

The camera's temperature sensor is polled on every timer tick when readable.

*/
package pgrey

import (
	"time"

	"github.com/labcam/chameleon/camera"
	"github.com/labcam/chameleon/ccd"
	"github.com/labcam/chameleon/dc1394"
	"golang.org/x/time/rate"
)

const (
	// DefaultName is the device name of the driver
	DefaultName = "Point Grey Chameleon"

	// PollingPeriod is the base timer period
	PollingPeriod = 250 * time.Millisecond

	// GainDefault is the default of the GAIN_VALUE member
	GainDefault = 1.

	// PixelSize is the pitch of the Sony ICX445, microns
	PixelSize = 7.5

	// Mode is the Format7 mode used by the driver
	Mode = dc1394.VideoModeFormat7_1

	// Width and Height are the size of the readout region
	Width  = 640
	Height = 480

	// BufferMargin is the slack allocated past the end of the frame buffer
	BufferMargin = 512

	// GainProperty and TemperatureProperty are the names of the driver's
	// number vectors
	GainProperty        = "GAIN"
	TemperatureProperty = "Temperature"
)

// Clock is the driver's time source
type Clock interface {
	Now() time.Time
	Sleep(time.Duration)
}

type systemClock struct{}

func (systemClock) Now() time.Time        { return time.Now() }
func (systemClock) Sleep(d time.Duration) { time.Sleep(d) }

// SystemClock is the wall clock
var SystemClock Clock = systemClock{}

// Options configure a Driver
type Options struct {
	// CaptureBuffers is the number of DMA buffers, dc1394.DefaultCaptureBuffers if zero
	CaptureBuffers int

	// Clock is the time source, SystemClock if nil
	Clock Clock

	// TemperatureWarnings limits how often temperature read failures are
	// reported.  One per minute if nil.
	TemperatureWarnings *rate.Limiter
}

// Driver is a Chameleon camera driver
type Driver struct {
	fw    ccd.Framework
	open  dc1394.Opener
	opts  Options
	clock Clock

	lib dc1394.Context
	cam dc1394.Camera

	width, height          int
	gainMin, gainMax       float64
	shutterMin, shutterMax float64
	canReadTemp            bool
	temp                   float64

	inExposure bool
	expStart   time.Time
	expRequest float64

	gain        ccd.NumberVector
	temperature ccd.NumberVector
	tempWarn    *rate.Limiter
}

var _ camera.CCD = (*Driver)(nil)
var _ camera.Guider = (*Driver)(nil)
var _ camera.MetadataMaker = (*Driver)(nil)

// New returns a driver hosted by fw which opens cameras with open
func New(fw ccd.Framework, open dc1394.Opener, opts Options) *Driver {
	if opts.CaptureBuffers <= 0 {
		opts.CaptureBuffers = dc1394.DefaultCaptureBuffers
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock
	}
	if opts.TemperatureWarnings == nil {
		opts.TemperatureWarnings = rate.NewLimiter(rate.Every(time.Minute), 1)
	}
	return &Driver{
		fw:       fw,
		open:     open,
		opts:     opts,
		clock:    opts.Clock,
		temp:     dc1394.TemperatureUnavailable,
		tempWarn: opts.TemperatureWarnings,
	}
}

// Factory returns a ccd.Factory building drivers with open and opts
func Factory(open dc1394.Opener, opts Options) ccd.Factory {
	return func(fw ccd.Framework) camera.CCD {
		return New(fw, open, opts)
	}
}

// DefaultName is the device name used when none is configured
func (d *Driver) DefaultName() string {
	return DefaultName
}

// InitProperties builds the gain and temperature vectors
func (d *Driver) InitProperties() error {
	d.gain = ccd.NumberVector{
		Device: d.fw.DeviceName(),
		Name:   GainProperty,
		Label:  "Gain settings",
		Group:  ccd.MainControlTab,
		Perm:   ccd.ReadWrite,
		State:  ccd.Idle,
		Numbers: []ccd.Number{{
			Name: "GAIN_VALUE", Label: "Camera Gain (dB)", Format: "%.2f", Value: GainDefault,
		}},
	}
	d.temperature = ccd.NumberVector{
		Device: d.fw.DeviceName(),
		Name:   TemperatureProperty,
		Label:  "Temp.",
		Group:  ccd.MainControlTab,
		Perm:   ccd.ReadOnly,
		State:  ccd.Idle,
		Numbers: []ccd.Number{{
			Name: "TEMPERATURE", Label: "Camera Temp. (C)", Format: "%.2f", Min: -50, Max: 70, Step: 0.1,
		}},
	}
	return nil
}

// UpdateProperties defines the driver's properties and starts the timer
// when connected, and deletes them otherwise
func (d *Driver) UpdateProperties() error {
	if !d.fw.IsConnected() {
		d.fw.DeleteProperty(d.gain.Name)
		d.fw.DeleteProperty(d.temperature.Name)
		return nil
	}
	d.setupParams()
	d.fw.SetTimer(d.fw.PollingPeriod())

	g := &d.gain.Numbers[0]
	g.Min, g.Max = d.gainMin, d.gainMax
	g.Step = (d.gainMax - d.gainMin) / 99
	g.Value = GainDefault
	d.temperature.State = ccd.Idle
	if d.canReadTemp {
		d.temperature.Numbers[0].Value = d.temp
		d.temperature.State = ccd.OK
	}
	d.fw.DefineNumber(&d.gain)
	d.fw.DefineNumber(&d.temperature)
	return nil
}

// setupParams sizes the chip and its frame buffer for the active mode
func (d *Driver) setupParams() {
	chip := d.fw.PrimaryCCD()
	chip.SetParams(d.width, d.height, 8, PixelSize, PixelSize)
	n := chip.XRes()*chip.YRes()*chip.BPP()/8 + BufferMargin
	chip.SetFrameBufferSize(n)
}

// UpdateCCDBin accepts only unit binning
func (d *Driver) UpdateCCDBin(h, v int) error {
	if h != 1 || v != 1 {
		return ErrBinning
	}
	return nil
}

// GuideNorth does nothing
func (d *Driver) GuideNorth(time.Duration) camera.GuideState { return camera.GuideOK }

// GuideSouth does nothing
func (d *Driver) GuideSouth(time.Duration) camera.GuideState { return camera.GuideOK }

// GuideEast does nothing
func (d *Driver) GuideEast(time.Duration) camera.GuideState { return camera.GuideOK }

// GuideWest does nothing
func (d *Driver) GuideWest(time.Duration) camera.GuideState { return camera.GuideOK }

// Connected reports if the driver holds a camera
func (d *Driver) Connected() bool {
	return d.cam != nil
}

// InExposure reports if an exposure is being timed
func (d *Driver) InExposure() bool {
	return d.inExposure
}

// Temperature returns the last valid temperature reading and whether the
// sensor is readable
func (d *Driver) Temperature() (float64, bool) {
	return d.temp, d.canReadTemp
}

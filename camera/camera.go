/*Package camera describes the capability interfaces a CCD driver implements
to be hosted by package ccd.

A driver is composed from the small interfaces here rather than extending a
base camera type, so each capability (connection, exposure, property handling)
can be exercised on its own in tests.  CCD aggregates the set the host needs.

*/
package camera

import (
	"time"

	"github.com/astrogo/fitsio"
)

// Connector opens and closes the hardware
type Connector interface {
	// Connect opens the hardware and configures it.  On error the driver
	// is left disconnected and holds no hardware handles.
	Connect() error

	// Disconnect releases the hardware.  Calling it when already
	// disconnected is a no-op.
	Disconnect() error
}

// Exposer can run timed exposures
type Exposer interface {
	// StartExposure begins an exposure of the given length in seconds
	StartExposure(seconds float64) error

	// AbortExposure ends the current exposure without a readout
	AbortExposure() error
}

// Ticker receives the host's timer callbacks
type Ticker interface {
	// TimerHit is called when a timer armed by the driver expires
	TimerHit()
}

// PropertyHandler bridges the host's property table and the driver
type PropertyHandler interface {
	// InitProperties is called once after construction
	InitProperties() error

	// UpdateProperties is called after every change of connection state,
	// to define or delete the driver's properties
	UpdateProperties() error

	// NewNumber handles a client write to a number vector.  handled is false
	// when the vector does not belong to the driver.
	NewNumber(name string, values map[string]float64) (handled bool, err error)
}

// Binner can change the pixel binning
type Binner interface {
	// UpdateCCDBin sets the horizontal and vertical binning factors
	UpdateCCDBin(h, v int) error
}

// GuideState is the result of a guide pulse
type GuideState int

const (
	// GuideIdle means no pulse is active
	GuideIdle GuideState = iota
	// GuideOK means the pulse completed
	GuideOK
	// GuideBusy means the pulse is in progress
	GuideBusy
	// GuideAlert means the pulse failed
	GuideAlert
)

// Guider issues guide pulses through the camera's ST-4 port
type Guider interface {
	GuideNorth(time.Duration) GuideState
	GuideSouth(time.Duration) GuideState
	GuideEast(time.Duration) GuideState
	GuideWest(time.Duration) GuideState
}

// MetadataMaker can produce an array of FITS cards
type MetadataMaker interface {
	// CollectHeaderMetadata produces an array of FITS cards
	CollectHeaderMetadata() []fitsio.Card
}

// CCD is the full set of capabilities a hosted driver provides
type CCD interface {
	Connector
	Exposer
	Ticker
	PropertyHandler
	Binner

	// DefaultName is the device name used when none is configured
	DefaultName() string
}

package pgrey

import (
	"github.com/labcam/chameleon/dc1394"
	"github.com/pkg/errors"
)

var (
	// ErrNoCameras is returned by Connect when the bus is empty
	ErrNoCameras = errors.New("no cameras found")

	// ErrBinning is returned for any binning other than 1x1
	ErrBinning = errors.New("camera does not support binning")

	// ErrNotConnected is returned for hardware operations while disconnected
	ErrNotConnected = errors.New("camera is not connected")
)

// fatal reports err to clients and returns it wrapped with msg
func (d *Driver) fatal(err error, msg string) error {
	d.fw.Message("%s: %v", msg, err)
	return errors.Wrap(err, msg)
}

// warn reports a failure that does not stop the operation
func (d *Driver) warn(err error, msg string) {
	if err != nil {
		d.fw.Message("%s: %v", msg, err)
	}
}

// Connect opens the first camera on the bus and configures it.  Failure to
// open or to configure the region of interest is fatal; failures of feature
// control are reported and configuration continues.
func (d *Driver) Connect() error {
	if d.cam != nil {
		return nil
	}
	lib, err := d.open()
	if err != nil {
		return d.fatal(err, "failed to initialize libdc1394")
	}
	ids, err := lib.Enumerate()
	if err != nil {
		lib.Close()
		return d.fatal(err, "failed to enumerate cameras")
	}
	if len(ids) == 0 {
		lib.Close()
		d.fw.Message("No cameras found")
		return ErrNoCameras
	}
	cam, err := lib.Open(ids[0].GUID)
	if err != nil {
		lib.Close()
		return d.fatal(err, "failed to initialize camera")
	}
	d.lib, d.cam = lib, cam
	if err = d.configure(); err != nil {
		d.release()
		return err
	}
	d.fw.Message("Point Grey Chameleon connected, guid %016x", cam.GUID())
	return nil
}

// configure puts the camera into the driver's fixed mode
func (d *Driver) configure() error {
	cam := d.cam
	if err := cam.Reset(); err != nil {
		return d.fatal(err, "unable to reset camera")
	}

	modes, err := cam.SupportedModes()
	if err != nil {
		d.warn(err, "unable to list supported video modes")
	} else {
		d.fw.Debugf("camera reports %d video modes: %v", len(modes), modes)
	}

	if err = cam.SetImagePosition(Mode, 0, 0); err != nil {
		return d.fatal(err, "unable to set region position")
	}
	if err = cam.SetImageSize(Mode, Width, Height); err != nil {
		return d.fatal(err, "unable to set region size")
	}
	if err = cam.SetColorCoding(Mode, dc1394.ColorCodingMono8); err != nil {
		return d.fatal(err, "unable to set color coding")
	}
	if err = cam.SetVideoMode(Mode); err != nil {
		return d.fatal(err, "unable to connect to the video mode")
	}
	d.width, d.height, err = cam.ImageSize(Mode)
	if err != nil {
		return d.fatal(err, "unable to get the image size")
	}

	// the shutter alone sets the integration time
	d.warn(cam.SetPower(dc1394.FeatureExposure, false), "unable to disable auto exposure control")
	d.warn(cam.SetPower(dc1394.FeatureFrameRate, false), "unable to disable frame rate control")

	d.warn(cam.SetPower(dc1394.FeatureShutter, true), "unable to power shutter")
	d.warn(cam.SetMode(dc1394.FeatureShutter, dc1394.FeatureModeManual), "failed to enable manual shutter control")
	d.warn(cam.SetAbsoluteControl(dc1394.FeatureShutter, true), "failed to enable absolute shutter control")
	if d.shutterMin, d.shutterMax, err = cam.AbsoluteBoundaries(dc1394.FeatureShutter); err != nil {
		d.warn(err, "could not get shutter boundaries")
	} else {
		d.fw.Message("Shutter limits: %g to %g s", d.shutterMin, d.shutterMax)
	}

	d.warn(cam.SetPower(dc1394.FeatureGain, true), "unable to power gain")
	d.warn(cam.SetMode(dc1394.FeatureGain, dc1394.FeatureModeManual), "failed to enable manual gain")
	d.warn(cam.SetAbsoluteControl(dc1394.FeatureGain, true), "failed to enable absolute gain control")
	if d.gainMin, d.gainMax, err = cam.AbsoluteBoundaries(dc1394.FeatureGain); err != nil {
		d.warn(err, "could not get gain boundaries")
	} else {
		d.fw.Message("Gain limits: %g to %g dB", d.gainMin, d.gainMax)
	}

	d.warn(cam.SetPower(dc1394.FeatureBrightness, true), "unable to power brightness")
	d.warn(cam.SetMode(dc1394.FeatureBrightness, dc1394.FeatureModeManual), "failed to enable manual brightness")
	d.warn(cam.SetAbsoluteControl(dc1394.FeatureBrightness, true), "failed to enable absolute brightness control")
	d.warn(cam.SetAbsoluteValue(dc1394.FeatureBrightness, 1), "could not set brightness value")

	d.warn(cam.SetAbsoluteValue(dc1394.FeatureGamma, 1), "could not set gamma value")
	d.warn(cam.SetPower(dc1394.FeatureGamma, false), "unable to disable gamma")
	d.warn(cam.SetPower(dc1394.FeatureWhiteBalance, false), "unable to disable white balance")

	t, err := dc1394.ReadTemperature(cam)
	switch {
	case err != nil:
		d.fw.Debugf("temperature sensor not readable: %v", err)
		d.canReadTemp = false
	case t < 0:
		d.fw.Debugf("temperature sensor reports %.2f (C), treating it as unavailable", t)
		d.canReadTemp = false
	default:
		d.fw.Message("Device Temperature : %.2f (C)", t)
		d.canReadTemp = true
		d.temp = t
	}

	d.warn(cam.SetupCapture(d.opts.CaptureBuffers), "unable to set up capture")
	return nil
}

// release frees the camera and library context
func (d *Driver) release() {
	if d.cam != nil {
		if err := d.cam.Close(); err != nil {
			d.fw.Debugf("closing camera: %v", err)
		}
		d.cam = nil
	}
	if d.lib != nil {
		if err := d.lib.Close(); err != nil {
			d.fw.Debugf("closing libdc1394: %v", err)
		}
		d.lib = nil
	}
	d.canReadTemp = false
	d.inExposure = false
}

// Disconnect stops capture and releases the camera.  It is a no-op when
// already disconnected.
func (d *Driver) Disconnect() error {
	if d.cam == nil {
		return nil
	}
	d.warn(d.cam.SetTransmission(false), "unable to stop transmission")
	if err := d.cam.StopCapture(); err != nil {
		d.fw.Debugf("stopping capture: %v", err)
	}
	d.release()
	d.fw.Message("Point Grey Chameleon disconnected successfully!")
	return nil
}

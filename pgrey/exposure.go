package pgrey

import (
	"time"

	"github.com/labcam/chameleon/dc1394"
	"github.com/labcam/chameleon/util"
	"github.com/pkg/errors"
)

// exposure timing tiers, seconds of exposure remaining
const (
	reportThreshold = 1.0
	fineThreshold   = 0.25
	spinThreshold   = 0.07

	finePoll = 50 * time.Millisecond
)

// nextPoll returns how long to wait before the next check of an exposure
// with remaining seconds left.  Zero means the exposure is close enough to
// done to sleep out the rest and read out.
func nextPoll(remaining float64, base time.Duration) time.Duration {
	switch {
	case remaining >= fineThreshold:
		return base
	case remaining >= spinThreshold:
		return finePoll
	}
	return 0
}

// timeLeft is the number of seconds remaining in the exposure
func (d *Driver) timeLeft() float64 {
	elapsed := d.clock.Now().Sub(d.expStart).Seconds()
	return d.expRequest - elapsed
}

// StartExposure programs the shutter, drains stale frames from the DMA ring
// and starts streaming.  Only a failure to start streaming fails the call.
func (d *Driver) StartExposure(seconds float64) error {
	if d.cam == nil {
		return ErrNotConnected
	}
	chip := d.fw.PrimaryCCD()
	d.expRequest = seconds
	chip.SetBPP(8)
	chip.SetExposureDuration(seconds)
	d.expStart = d.clock.Now()
	d.inExposure = true
	d.fw.Message("Triggering a %f second exposure", seconds)

	if err := d.cam.SetAbsoluteValue(dc1394.FeatureShutter, seconds); err != nil {
		d.warn(err, "unable to set shutter value")
	}
	if v, err := d.cam.AbsoluteValue(dc1394.FeatureShutter); err != nil {
		d.warn(err, "unable to get shutter value")
	} else {
		d.fw.Message("Set shutter value to %f", v)
	}

	d.flush()

	if err := d.cam.SetTransmission(true); err != nil {
		d.inExposure = false
		return d.fatal(err, "unable to start transmission")
	}
	return nil
}

// flush returns every frame already sitting in the DMA ring
func (d *Driver) flush() {
	for n := 0; ; n++ {
		f, err := d.cam.Dequeue(dc1394.PolicyPoll)
		if err != nil {
			d.warn(err, "flushing DMA buffer failed")
			return
		}
		if f == nil {
			if n > 0 {
				d.fw.Debugf("flushed %d stale frames", n)
			}
			return
		}
		if err = d.cam.Enqueue(f); err != nil {
			d.warn(err, "flushing DMA buffer failed")
			return
		}
	}
}

// AbortExposure stops timing the exposure.  Nothing is read out.
func (d *Driver) AbortExposure() error {
	d.inExposure = false
	return nil
}

// TimerHit advances the exposure and refreshes the temperature.  It re-arms
// itself while connected.
func (d *Driver) TimerHit() {
	if !d.fw.IsConnected() || d.cam == nil {
		return
	}
	next := d.fw.PollingPeriod()
	if d.inExposure {
		left := d.timeLeft()
		if left >= reportThreshold {
			d.fw.Debugf("with time left %.3f, image not yet ready", left)
			d.fw.PrimaryCCD().SetExposureLeft(left)
		} else if poll := nextPoll(left, next); poll > 0 {
			next = poll
		} else {
			if left > 0 {
				d.clock.Sleep(util.SecsToDuration(left))
			}
			d.fw.Debugf("exposure done, downloading image")
			d.fw.PrimaryCCD().SetExposureLeft(0)
			d.inExposure = false
			d.grabImage()
		}
	}
	d.refreshTemperature()
	d.fw.SetTimer(next)
}

// ErrCorruptFrame ends an exposure whose frame the hardware flagged as damaged
var ErrCorruptFrame = errors.New("corrupt frame")

// grabImage reads out one frame into the primary chip's frame buffer.  A
// corrupt frame is dropped without touching the buffer and the exposure
// fails without completing.
func (d *Driver) grabImage() {
	chip := d.fw.PrimaryCCD()
	start := d.clock.Now()
	f, err := d.cam.Dequeue(dc1394.PolicyWait)
	if err != nil {
		d.fw.Message("Could not capture frame: %v", err)
		d.stopStreaming()
		d.fw.ExposureFailed(chip, errors.Wrap(err, "capturing frame"))
		return
	}
	if f == nil {
		d.fw.Message("Could not capture frame")
		d.stopStreaming()
		d.fw.ExposureFailed(chip, errors.New("capture returned no frame"))
		return
	}
	if f.Corrupt {
		d.fw.Message("Corrupt frame!")
		d.warn(d.cam.Enqueue(f), "unable to release frame")
		d.stopStreaming()
		d.fw.ExposureFailed(chip, ErrCorruptFrame)
		return
	}

	w := chip.SubW() / chip.BinX()
	h := chip.SubH() / chip.BinY()
	n := w * h
	buf := chip.FrameBuffer()
	if n > len(buf) {
		n = len(buf)
	}
	if n > len(f.Image) {
		n = len(f.Image)
	}
	copy(buf[:n], f.Image[:n])
	d.fw.Debugf("frame %dx%d, %d bytes", f.Width, f.Height, n)

	d.warn(d.cam.Enqueue(f), "unable to release frame")
	d.stopStreaming()

	d.fw.Message("Download complete.")
	d.fw.Message("Download took %.2f s", d.clock.Now().Sub(start).Seconds())
	d.fw.ExposureComplete(chip)
}

func (d *Driver) stopStreaming() {
	d.warn(d.cam.SetTransmission(false), "unable to stop transmission")
}

package pgrey

import (
	"github.com/astrogo/fitsio"
	"github.com/labcam/chameleon/ccd"
	"github.com/labcam/chameleon/dc1394"
)

// NewNumber handles writes to the gain and temperature vectors
func (d *Driver) NewNumber(name string, values map[string]float64) (bool, error) {
	switch name {
	case d.gain.Name:
		return true, d.setGain(values)
	case d.temperature.Name:
		if d.cam == nil {
			return true, ErrNotConnected
		}
		if t, ok := d.readTemperature(); ok {
			d.publishTemperature(t)
			d.fw.Message("New temp set")
		}
		return true, nil
	}
	return false, nil
}

// setGain validates values against the hardware's gain range and writes the
// result to the camera.  A hardware write failure is reported but the
// property update stands.
func (d *Driver) setGain(values map[string]float64) error {
	if d.cam == nil {
		return ErrNotConnected
	}
	if g, err := d.cam.AbsoluteValue(dc1394.FeatureGain); err != nil {
		d.warn(err, "could not get gain")
	} else {
		d.gain.Numbers[0].Value = g
	}
	if err := d.gain.Update(values); err != nil {
		d.gain.State = ccd.Alert
		d.fw.SetNumber(&d.gain)
		d.fw.Message("Cannot update Gain settings: %v", err)
		return err
	}
	d.gain.State = ccd.OK
	v := d.gain.Numbers[0].Value
	if err := d.cam.SetAbsoluteValue(dc1394.FeatureGain, v); err != nil {
		d.warn(err, "could not set gain")
	} else {
		d.fw.Message("Gain updated, value = %f", v)
	}
	d.fw.SetNumber(&d.gain)
	return nil
}

// Gain is the published gain in dB
func (d *Driver) Gain() float64 {
	return d.gain.Numbers[0].Value
}

// readTemperature reads the sensor.  Failures are reported at a limited rate.
// Negative readings mean the sensor is unavailable and are never published.
func (d *Driver) readTemperature() (float64, bool) {
	t, err := dc1394.ReadTemperature(d.cam)
	if err != nil {
		if d.tempWarn.Allow() {
			d.fw.Message("Could not read Temperature: %v", err)
		}
		return dc1394.TemperatureUnavailable, false
	}
	if t < 0 {
		d.fw.Debugf("discarding negative temperature %.2f", t)
		return dc1394.TemperatureUnavailable, false
	}
	return t, true
}

func (d *Driver) publishTemperature(t float64) {
	d.temp = t
	d.temperature.Numbers[0].Value = t
	d.temperature.State = ccd.OK
	d.fw.SetNumber(&d.temperature)
}

// refreshTemperature republishes the sensor reading when it is readable
func (d *Driver) refreshTemperature() {
	if !d.canReadTemp {
		return
	}
	if t, ok := d.readTemperature(); ok {
		d.publishTemperature(t)
	}
}

// CollectHeaderMetadata returns the driver's FITS cards
func (d *Driver) CollectHeaderMetadata() []fitsio.Card {
	cards := []fitsio.Card{
		{Name: "INSTRUME", Value: DefaultName, Comment: "instrument used to acquire the data"},
		{Name: "GAIN", Value: d.Gain(), Comment: "gain, dB"},
		{Name: "PIXSIZE1", Value: PixelSize, Comment: "pixel width, um"},
		{Name: "PIXSIZE2", Value: PixelSize, Comment: "pixel height, um"},
	}
	if d.canReadTemp {
		cards = append(cards, fitsio.Card{Name: "CCD-TEMP", Value: d.temp, Comment: "sensor temperature, C"})
	}
	return cards
}

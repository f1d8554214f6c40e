package dc1394

import (
	"github.com/labcam/chameleon/temperature"
	"github.com/pkg/errors"
)

const (
	// TemperatureRegister is the offset of the Point Grey TEMPERATURE
	// register from the command register base
	TemperatureRegister = 0x82c

	// TemperatureUnavailable is returned in place of a reading when the
	// register does not hold a valid value
	TemperatureUnavailable = -1.

	presenceBit  = 0x80000000
	payloadShift = 20
)

// ErrTemperatureInvalid is returned by ReadTemperature when the presence bit
// of the register is clear
var ErrTemperatureInvalid = errors.New("dc1394: temperature register does not hold a valid reading")

// DecodeTemperature decodes the TEMPERATURE register.  Bit 31 flags a valid
// reading; the value lives in the low bits in tenths of Kelvin.
// When the flag is clear, TemperatureUnavailable and false are returned.
func DecodeTemperature(raw uint32) (float64, bool) {
	if raw&presenceBit == 0 {
		return TemperatureUnavailable, false
	}
	payload := raw << payloadShift >> payloadShift
	c := temperature.K2C(temperature.DeciKelvin(payload).Kelvin())
	return float64(c), true
}

// ReadTemperature reads and decodes the sensor temperature in Celsius
func ReadTemperature(cam Camera) (float64, error) {
	raw, err := cam.ControlRegister(TemperatureRegister)
	if err != nil {
		return TemperatureUnavailable, err
	}
	c, ok := DecodeTemperature(raw)
	if !ok {
		return TemperatureUnavailable, errors.Wrapf(ErrTemperatureInvalid, "register value = %x", raw)
	}
	return c, nil
}

package dc1394

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeTemperatureZeroPayloadIsAbsoluteZero(t *testing.T) {
	c, ok := DecodeTemperature(0x80000000)
	require.True(t, ok)
	assert.InDelta(t, -273.15, c, 1e-9)
}

func TestDecodeTemperatureTable(t *testing.T) {
	cases := []struct {
		raw  uint32
		want float64
		ok   bool
	}{
		{0x80000000 | 3000, 26.85, true},
		{0x80000000 | 2731, -0.05, true},
		{0x80000000 | 0xfff, 409.5 - 273.15, true},
		// bits above the 12-bit payload are discarded by the shift pair
		{0x80000000 | 0x000ff000 | 3000, 26.85, true},
		{0x00000000, TemperatureUnavailable, false},
		{0x00000bb8, TemperatureUnavailable, false},
		{0x7fffffff, TemperatureUnavailable, false},
	}
	for _, tc := range cases {
		c, ok := DecodeTemperature(tc.raw)
		assert.Equal(t, tc.ok, ok, "raw=%x", tc.raw)
		assert.InDelta(t, tc.want, c, 1e-9, "raw=%x", tc.raw)
	}
}

func TestReadTemperatureFromMock(t *testing.T) {
	cam := NewMockCamera(1)
	cam.open = true

	c, err := ReadTemperature(cam)
	require.NoError(t, err)
	assert.InDelta(t, 26.85, c, 1e-9)

	cam.TemperatureRaw = 0x00000bb8
	c, err = ReadTemperature(cam)
	assert.ErrorIs(t, err, ErrTemperatureInvalid)
	assert.Equal(t, TemperatureUnavailable, c)

	cam.Fail["ControlRegister"] = Error(-9)
	c, err = ReadTemperature(cam)
	assert.Error(t, err)
	assert.Equal(t, TemperatureUnavailable, c)
}

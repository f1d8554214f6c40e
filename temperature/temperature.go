// Package temperature holds temperature units and conversions between them
package temperature

type (
	// Celsius is a temperature in C
	Celsius float64

	// Kelvin is a temperature in K
	Kelvin float64

	// DeciKelvin is a temperature in tenths of a Kelvin, the unit camera
	// temperature registers report in
	DeciKelvin uint32
)

// Kelvin converts tenths of a Kelvin to Kelvin
func (d DeciKelvin) Kelvin() Kelvin {
	return Kelvin(float64(d) / 10)
}

// C2K converts a temp in Celsius to Kelvin
func C2K(c Celsius) Kelvin {
	return Kelvin(c + 273.15)
}

// K2C converts a temp in Kelvin to Celsius
func K2C(k Kelvin) Celsius {
	return Celsius(k - 273.15)
}

package temperature

import (
	"math"
	"testing"
)

func TestDeciKelvin(t *testing.T) {
	var d DeciKelvin = 3000
	if k := d.Kelvin(); k != 300 {
		t.Errorf("expected 300 K, got %v", k)
	}
	c := K2C(d.Kelvin())
	if math.Abs(float64(c)-26.85) > 1e-9 {
		t.Errorf("expected 26.85 C, got %v", c)
	}
}

func TestC2KRoundTrip(t *testing.T) {
	for _, c := range []Celsius{-273.15, -40, 0, 21.5} {
		out := K2C(C2K(c))
		if math.Abs(float64(out-c)) > 1e-9 {
			t.Errorf("C2K/K2C round trip of %v gave %v", c, out)
		}
	}
}

package util_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/labcam/chameleon/util"
)

func ExampleSecsToDuration() {
	fmt.Println(util.SecsToDuration(0.25))
	// Output: 250ms
}

func TestAllElementsNumbers(t *testing.T) {
	cases := map[string]bool{
		"10":    true,
		"0.025": true,
		"25ms":  false,
		"1e-3":  false,
		"":      false,
		"-1":    false,
	}
	for in, expected := range cases {
		if out := util.AllElementsNumbers(in); out != expected {
			t.Errorf("AllElementsNumbers(%q) = %v, expected %v", in, out, expected)
		}
	}
}

func TestSecsToDuration(t *testing.T) {
	var dur time.Duration = 123456789
	secs := dur.Seconds()
	out := util.SecsToDuration(secs)
	if out != dur {
		t.Errorf("expected SecsToDuration to round trip, output %v != expected %v", out, dur)
	}
}

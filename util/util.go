// Package util contains misc internal utilities.
package util

import (
	"time"
)

// AllElementsNumbers returns true if every character of s is a digit or a
// decimal point, i.e. s is a bare number with no unit
func AllElementsNumbers(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && c != '.' {
			return false
		}
	}
	return true
}

// SecsToDuration converts a floating point number of seconds to a duration,
// rounded to the nearest nanosecond
func SecsToDuration(secs float64) time.Duration {
	return time.Duration(secs*1e9 + 0.5)
}

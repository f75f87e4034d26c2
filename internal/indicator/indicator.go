// Package indicator provides technical indicator calculations over candle
// series. All functions are pure and stateless: call again with a longer
// series to get updated values. Short input never errors; every family
// degrades to an empty series and documented neutral defaults.
package indicator

import "math"

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func max3(a, b, c float64) float64 {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	return m
}

// tail returns the rightmost n entries of s.
func tail(s []float64, n int) []float64 {
	if n >= len(s) {
		return s
	}
	return s[len(s)-n:]
}

package indicator

import "math"

// ATR returns the simple moving average of the true range over period. The
// true range of a bar is the largest of high-low, |high-prevClose| and
// |low-prevClose|; the first bar has no previous close and uses high-low.
func ATR(highs, lows, closes []float64, period int) []float64 {
	n := len(closes)
	if n == 0 || len(highs) < n || len(lows) < n {
		return nil
	}
	tr := make([]float64, n)
	tr[0] = highs[0] - lows[0]
	for i := 1; i < n; i++ {
		tr[i] = max3(
			highs[i]-lows[i],
			math.Abs(highs[i]-closes[i-1]),
			math.Abs(lows[i]-closes[i-1]),
		)
	}
	return SMA(tr, period)
}

package indicator

// Stochastic returns %K over each trailing kPeriod window and %D, the SMA
// of %K over dPeriod. %K is 50 when the window's high equals its low.
func Stochastic(highs, lows, closes []float64, kPeriod, dPeriod int) (k, d []float64) {
	n := len(closes)
	if kPeriod <= 0 || n < kPeriod || len(highs) < n || len(lows) < n {
		return nil, nil
	}
	k = make([]float64, 0, n-kPeriod+1)
	for i := 0; i+kPeriod <= n; i++ {
		hh := highs[i]
		ll := lows[i]
		for j := i + 1; j < i+kPeriod; j++ {
			if highs[j] > hh {
				hh = highs[j]
			}
			if lows[j] < ll {
				ll = lows[j]
			}
		}
		c := closes[i+kPeriod-1]
		if hh == ll {
			k = append(k, 50)
			continue
		}
		k = append(k, (c-ll)/(hh-ll)*100)
	}
	d = SMA(k, dPeriod)
	return k, d
}

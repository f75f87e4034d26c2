package indicator

// EMA returns the exponential moving average with multiplier k=2/(period+1).
// The seed is the first finite value; output carries one entry per input,
// including the seed.
func EMA(values []float64, period int) []float64 {
	if period <= 0 || len(values) == 0 {
		return nil
	}
	k := 2.0 / float64(period+1)
	out := make([]float64, 0, len(values))
	ema := 0.0
	seeded := false
	for _, v := range values {
		if !seeded {
			if finite(v) {
				ema = v
				seeded = true
			}
			out = append(out, ema)
			continue
		}
		ema = v*k + ema*(1-k)
		out = append(out, ema)
	}
	return out
}

package indicator

// RSI returns one value per window of period+1 consecutive closes: positive
// deltas within the window sum into gains, absolute negative deltas into
// losses, and RSI is 100 when the average loss is zero, otherwise
// 100 - 100/(1 + avgGain/avgLoss). Values are always within [0, 100].
func RSI(closes []float64, period int) []float64 {
	if period <= 0 || len(closes) < period+1 {
		return nil
	}
	out := make([]float64, 0, len(closes)-period)
	for i := 0; i+period < len(closes); i++ {
		gains, losses := 0.0, 0.0
		for j := i + 1; j <= i+period; j++ {
			delta := closes[j] - closes[j-1]
			if delta > 0 {
				gains += delta
			} else {
				losses -= delta
			}
		}
		avgGain := gains / float64(period)
		avgLoss := losses / float64(period)
		if avgLoss == 0 {
			out = append(out, 100)
			continue
		}
		rs := avgGain / avgLoss
		out = append(out, 100-100/(1+rs))
	}
	return out
}

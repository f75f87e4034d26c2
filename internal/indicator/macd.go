package indicator

// MACD returns the MACD line (fast EMA minus slow EMA over their overlapping
// length), the signal line (EMA of the MACD line) and the histogram (MACD
// minus signal, aligned by taking the rightmost len(signal) entries of the
// MACD line).
func MACD(closes []float64, fast, slow, signal int) (macdLine, signalLine, histogram []float64) {
	fastEMA := EMA(closes, fast)
	slowEMA := EMA(closes, slow)
	overlap := len(fastEMA)
	if len(slowEMA) < overlap {
		overlap = len(slowEMA)
	}
	if overlap == 0 {
		return nil, nil, nil
	}

	f := tail(fastEMA, overlap)
	s := tail(slowEMA, overlap)
	macdLine = make([]float64, overlap)
	for i := range macdLine {
		macdLine[i] = f[i] - s[i]
	}

	signalLine = EMA(macdLine, signal)
	aligned := tail(macdLine, len(signalLine))
	histogram = make([]float64, len(signalLine))
	for i := range histogram {
		histogram[i] = aligned[i] - signalLine[i]
	}
	return macdLine, signalLine, histogram
}

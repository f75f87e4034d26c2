package indicator

// IchimokuLines holds the five Ichimoku series. All values are rounded to
// two decimal places.
type IchimokuLines struct {
	Tenkan  []float64
	Kijun   []float64
	SenkouA []float64
	SenkouB []float64
	Chikou  []float64
}

// Ichimoku computes the cloud over forward-anchored Donchian windows: the
// midline at index i covers bars [i, i+period). Senkou A averages Tenkan
// and Kijun over their common prefix, Senkou B is the midline over
// senkouB bars, and Chikou is the low series shifted back by the Kijun
// period. A series shorter than senkouB yields empty lines.
func Ichimoku(highs, lows []float64, tenkan, kijun, senkouB int) IchimokuLines {
	var out IchimokuLines
	n := len(highs)
	if senkouB <= 0 || n < senkouB || len(lows) < n {
		return out
	}

	out.Tenkan = donchianMid(highs, lows, tenkan)
	out.Kijun = donchianMid(highs, lows, kijun)
	out.SenkouB = donchianMid(highs, lows, senkouB)

	m := len(out.Tenkan)
	if len(out.Kijun) < m {
		m = len(out.Kijun)
	}
	out.SenkouA = make([]float64, m)
	for i := 0; i < m; i++ {
		out.SenkouA[i] = round2((out.Tenkan[i] + out.Kijun[i]) / 2)
	}

	if kijun < n {
		out.Chikou = make([]float64, n-kijun)
		for i, v := range lows[kijun:] {
			out.Chikou[i] = round2(v)
		}
	}
	return out
}

// donchianMid returns (highestHigh+lowestLow)/2 for each window of size
// period starting at index i.
func donchianMid(highs, lows []float64, period int) []float64 {
	if period <= 0 || len(highs) < period {
		return nil
	}
	out := make([]float64, 0, len(highs)-period+1)
	for i := 0; i+period <= len(highs); i++ {
		hh := highs[i]
		ll := lows[i]
		for j := i + 1; j < i+period; j++ {
			if highs[j] > hh {
				hh = highs[j]
			}
			if lows[j] < ll {
				ll = lows[j]
			}
		}
		out = append(out, round2((hh+ll)/2))
	}
	return out
}

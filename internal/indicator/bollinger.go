package indicator

import "math"

// Bollinger returns the middle band (SMA), and upper/lower bands offset by
// mult population standard deviations, per trailing window of size period.
func Bollinger(closes []float64, period int, mult float64) (middle, upper, lower []float64) {
	if period <= 0 || len(closes) < period {
		return nil, nil, nil
	}
	count := len(closes) - period + 1
	middle = make([]float64, 0, count)
	upper = make([]float64, 0, count)
	lower = make([]float64, 0, count)

	for i := 0; i < count; i++ {
		window := closes[i : i+period]
		sum := 0.0
		for _, v := range window {
			sum += v
		}
		mean := sum / float64(period)

		variance := 0.0
		for _, v := range window {
			d := v - mean
			variance += d * d
		}
		std := math.Sqrt(variance / float64(period))

		middle = append(middle, mean)
		upper = append(upper, mean+mult*std)
		lower = append(lower, mean-mult*std)
	}
	return middle, upper, lower
}

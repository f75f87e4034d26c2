package indicator

import "math"

// ADX returns the average directional index plus the +DI and -DI series.
// Directional movement for a bar counts only the side that is both larger
// than the other and positive. Smoothing is Wilder's: a simple average over
// the first period seeds the series, then each step folds the new value in
// as (prev*(period-1)+new)/period. Published values are rounded to two
// decimal places and are always non-negative.
func ADX(highs, lows, closes []float64, period int) (adx, plusDI, minusDI []float64) {
	n := len(closes)
	if period <= 0 || n < 2 || len(highs) < n || len(lows) < n {
		return nil, nil, nil
	}

	m := n - 1
	tr := make([]float64, m)
	pdm := make([]float64, m)
	mdm := make([]float64, m)
	for i := 1; i < n; i++ {
		up := highs[i] - highs[i-1]
		down := lows[i-1] - lows[i]
		if up > down && up > 0 {
			pdm[i-1] = up
		}
		if down > up && down > 0 {
			mdm[i-1] = down
		}
		tr[i-1] = max3(
			highs[i]-lows[i],
			math.Abs(highs[i]-closes[i-1]),
			math.Abs(lows[i]-closes[i-1]),
		)
	}
	if m < period {
		return nil, nil, nil
	}

	smTR, smP, smM := 0.0, 0.0, 0.0
	for i := 0; i < period; i++ {
		smTR += tr[i]
		smP += pdm[i]
		smM += mdm[i]
	}
	smTR /= float64(period)
	smP /= float64(period)
	smM /= float64(period)

	p := float64(period)
	dx := make([]float64, 0, m-period+1)
	for i := period - 1; i < m; i++ {
		if i >= period {
			smTR = (smTR*(p-1) + tr[i]) / p
			smP = (smP*(p-1) + pdm[i]) / p
			smM = (smM*(p-1) + mdm[i]) / p
		}
		pdi, mdi := 0.0, 0.0
		if smTR != 0 {
			pdi = 100 * smP / smTR
			mdi = 100 * smM / smTR
		}
		plusDI = append(plusDI, round2(pdi))
		minusDI = append(minusDI, round2(mdi))
		if sum := pdi + mdi; sum != 0 {
			dx = append(dx, 100*math.Abs(pdi-mdi)/sum)
		} else {
			dx = append(dx, 0)
		}
	}

	if len(dx) < period {
		return nil, plusDI, minusDI
	}
	seed := 0.0
	for i := 0; i < period; i++ {
		seed += dx[i]
	}
	seed /= p
	adx = append(adx, round2(seed))
	for i := period; i < len(dx); i++ {
		seed = (seed*(p-1) + dx[i]) / p
		adx = append(adx, round2(seed))
	}
	return adx, plusDI, minusDI
}

package indicator

import (
	"strings"

	"github.com/pkg/errors"

	"quotexstream/internal/model"
)

// Kind names an indicator family.
type Kind string

const (
	KindSMA        Kind = "sma"
	KindEMA        Kind = "ema"
	KindRSI        Kind = "rsi"
	KindMACD       Kind = "macd"
	KindBollinger  Kind = "bollinger"
	KindStochastic Kind = "stochastic"
	KindATR        Kind = "atr"
	KindADX        Kind = "adx"
	KindIchimoku   Kind = "ichimoku"
)

// ErrUnknownKind is returned by Compute and ParseKind for an unrecognized
// indicator name.
var ErrUnknownKind = errors.New("indicator: unknown kind")

// ParseKind maps a case-insensitive indicator name to its Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case KindSMA, KindEMA, KindRSI, KindMACD, KindBollinger,
		KindStochastic, KindATR, KindADX, KindIchimoku:
		return k, nil
	}
	return "", errors.Wrap(ErrUnknownKind, s)
}

// Params carries the tunables for every family. Zero fields fall back to
// the conventional defaults, so the zero value is usable as-is.
type Params struct {
	Period int

	FastPeriod   int
	SlowPeriod   int
	SignalPeriod int

	KPeriod int
	DPeriod int

	StdDev float64

	TenkanPeriod  int
	KijunPeriod   int
	SenkouBPeriod int
}

func (p Params) withDefaults() Params {
	if p.Period <= 0 {
		p.Period = 14
	}
	if p.FastPeriod <= 0 {
		p.FastPeriod = 12
	}
	if p.SlowPeriod <= 0 {
		p.SlowPeriod = 26
	}
	if p.SignalPeriod <= 0 {
		p.SignalPeriod = 9
	}
	if p.KPeriod <= 0 {
		p.KPeriod = 14
	}
	if p.DPeriod <= 0 {
		p.DPeriod = 3
	}
	if p.StdDev <= 0 {
		p.StdDev = 2
	}
	if p.TenkanPeriod <= 0 {
		p.TenkanPeriod = 9
	}
	if p.KijunPeriod <= 0 {
		p.KijunPeriod = 26
	}
	if p.SenkouBPeriod <= 0 {
		p.SenkouBPeriod = 52
	}
	return p
}

// Result is one indicator computation over a candle series. Series holds
// every line the family produces, Current the latest value of each line
// (or the family's neutral default when the series is empty), and Times
// the candle times aligned with the primary line's tail.
type Result struct {
	Kind        Kind
	Current     map[string]float64
	Series      map[string][]float64
	Times       []int64
	HistorySize int
}

// Compute runs one indicator family over candles. Short input yields empty
// series and default current values rather than an error.
func Compute(kind Kind, candles []model.Candle, params Params) (*Result, error) {
	p := params.withDefaults()

	n := len(candles)
	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	times := make([]int64, n)
	for i, c := range candles {
		closes[i] = c.Close
		highs[i] = c.High
		lows[i] = c.Low
		times[i] = c.Time
	}

	switch kind {
	case KindSMA:
		return build(kind, times, "value",
			map[string][]float64{"value": SMA(closes, p.Period)}, nil), nil

	case KindEMA:
		return build(kind, times, "value",
			map[string][]float64{"value": EMA(closes, p.Period)}, nil), nil

	case KindRSI:
		return build(kind, times, "value",
			map[string][]float64{"value": RSI(closes, p.Period)},
			map[string]float64{"value": 50}), nil

	case KindMACD:
		macd, signal, hist := MACD(closes, p.FastPeriod, p.SlowPeriod, p.SignalPeriod)
		return build(kind, times, "macd", map[string][]float64{
			"macd":      macd,
			"signal":    signal,
			"histogram": hist,
		}, nil), nil

	case KindBollinger:
		middle, upper, lower := Bollinger(closes, p.Period, p.StdDev)
		return build(kind, times, "middle", map[string][]float64{
			"middle": middle,
			"upper":  upper,
			"lower":  lower,
		}, nil), nil

	case KindStochastic:
		k, d := Stochastic(highs, lows, closes, p.KPeriod, p.DPeriod)
		return build(kind, times, "k", map[string][]float64{
			"k": k,
			"d": d,
		}, map[string]float64{"k": 50, "d": 50}), nil

	case KindATR:
		return build(kind, times, "value",
			map[string][]float64{"value": ATR(highs, lows, closes, p.Period)}, nil), nil

	case KindADX:
		adx, plus, minus := ADX(highs, lows, closes, p.Period)
		return build(kind, times, "adx", map[string][]float64{
			"adx":      adx,
			"plus_di":  plus,
			"minus_di": minus,
		}, nil), nil

	case KindIchimoku:
		lines := Ichimoku(highs, lows, p.TenkanPeriod, p.KijunPeriod, p.SenkouBPeriod)
		return build(kind, times, "tenkan", map[string][]float64{
			"tenkan":   lines.Tenkan,
			"kijun":    lines.Kijun,
			"senkou_a": lines.SenkouA,
			"senkou_b": lines.SenkouB,
			"chikou":   lines.Chikou,
		}, nil), nil
	}
	return nil, errors.Wrap(ErrUnknownKind, string(kind))
}

func build(kind Kind, times []int64, primary string, series map[string][]float64, defaults map[string]float64) *Result {
	res := &Result{
		Kind:    kind,
		Current: make(map[string]float64, len(series)),
		Series:  make(map[string][]float64, len(series)),
	}
	for name, s := range series {
		if s == nil {
			s = []float64{}
		}
		res.Series[name] = s
		if len(s) > 0 {
			res.Current[name] = s[len(s)-1]
		} else {
			res.Current[name] = defaults[name]
		}
	}

	size := len(res.Series[primary])
	res.HistorySize = size
	if size > len(times) {
		size = len(times)
	}
	res.Times = times[len(times)-size:]
	return res
}

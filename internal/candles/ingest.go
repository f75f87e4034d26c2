package candles

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"quotexstream/internal/model"
)

// HandleTick consumes a payload from the tick channel. Each tick
// {asset, time, price} becomes a synthetic single-price candle appended to
// the asset's buffer; when a candle stream is followed for that asset the
// append is deduplicated by exact time, folding the tick into the existing
// candle instead. Numeric payloads (the server clock) carry no asset and are
// ignored here.
func (a *Assembler) HandleTick(payload interface{}) {
	tick, ok := parseTick(payload)
	if !ok {
		return
	}
	if a.met != nil {
		a.met.TicksTotal.Inc()
	}

	t := int64(math.Floor(tick.Time))
	a.mu.Lock()
	followed := a.hasFollow(tick.Asset)
	a.mu.Unlock()

	if followed {
		// Live continuation: a tick landing on an already-present second
		// updates that candle in place rather than duplicating the time.
		a.mu.Lock()
		buf := a.buffers[tick.Asset]
		for i := len(buf) - 1; i >= 0; i-- {
			if buf[i].Time == t {
				if tick.Price > buf[i].High {
					buf[i].High = tick.Price
				}
				if tick.Price < buf[i].Low {
					buf[i].Low = tick.Price
				}
				buf[i].Close = tick.Price
				merged := buf[i]
				targets := a.matchingSubsLocked(tick.Asset)
				a.mu.Unlock()
				a.notify(tick.Asset, merged, targets)
				return
			}
			if buf[i].Time < t {
				break // buffer is time-ascending; no earlier entry can match
			}
		}
		a.mu.Unlock()
	}

	c := model.Candle{Time: t, Open: tick.Price, High: tick.Price, Low: tick.Price, Close: tick.Price}
	a.ingest(tick.Asset, []model.Candle{c}, followed)
}

// HandleCandles consumes a payload from the candles channel. Three upstream
// shapes are reconciled:
//
//   - "candles": an array of [time, open, close, high, low, volume?] tuples
//     or of objects with open/close fields, parsed directly
//   - "history": an array of [timestamp, price] raw ticks, bucketed into
//     OHLC candles using the period known for the asset
//   - a bare candle object with open/close/asset fields
func (a *Assembler) HandleCandles(payload interface{}) {
	m, ok := payload.(map[string]interface{})
	if !ok {
		return
	}
	asset, _ := m["asset"].(string)
	if asset == "" {
		a.log.Debug("candle payload without asset, dropped")
		return
	}

	period := int64(0)
	if p, ok := toFloat(m["period"]); ok && p > 0 {
		period = int64(p)
	} else {
		a.mu.Lock()
		period = a.periods[asset]
		a.mu.Unlock()
	}

	switch {
	case isArray(m["candles"]):
		a.ingest(asset, parseCandleList(m["candles"].([]interface{})), true)
	case isArray(m["history"]):
		if period <= 0 {
			a.log.Debug("history payload with unknown period, dropped", zap.String("asset", asset))
			return
		}
		a.ingest(asset, bucketTicks(m["history"].([]interface{}), period), true)
	default:
		if c, ok := parseCandleObject(m); ok {
			a.ingest(asset, []model.Candle{c}, true)
		}
	}
}

func (a *Assembler) matchingSubsLocked(asset string) []subscriber {
	targets := make([]subscriber, 0, 4)
	for _, s := range a.subs {
		if s.asset == asset {
			targets = append(targets, s)
		}
	}
	return targets
}

func (a *Assembler) notify(asset string, c model.Candle, targets []subscriber) {
	if a.met != nil {
		a.met.CandlesTotal.Inc()
	}
	if a.onCandle != nil {
		a.onCandle(asset, c)
	}
	for _, s := range targets {
		s.fn(c)
	}
}

// normalize sorts the buffer ascending by time, optionally drops duplicate
// times keeping the newest occurrence, and trims to the most recent
// maxBufferLen entries.
func normalize(buf []model.Candle, dedupe bool) []model.Candle {
	sort.SliceStable(buf, func(i, j int) bool { return buf[i].Time < buf[j].Time })

	if dedupe {
		out := buf[:0]
		for i := 0; i < len(buf); i++ {
			if i+1 < len(buf) && buf[i+1].Time == buf[i].Time {
				continue // a newer entry for the same time follows
			}
			out = append(out, buf[i])
		}
		buf = out
	}

	if len(buf) > maxBufferLen {
		buf = append([]model.Candle(nil), buf[len(buf)-maxBufferLen:]...)
	}
	return buf
}

// parseTick accepts [[asset, time, price]] and the unwrapped
// [asset, time, price] form.
func parseTick(payload interface{}) (model.Tick, bool) {
	arr, ok := payload.([]interface{})
	if !ok {
		return model.Tick{}, false
	}
	if len(arr) == 1 {
		if inner, ok := arr[0].([]interface{}); ok {
			arr = inner
		}
	}
	if len(arr) < 3 {
		return model.Tick{}, false
	}
	asset, ok := arr[0].(string)
	if !ok || asset == "" {
		return model.Tick{}, false
	}
	ts, okT := toFloat(arr[1])
	price, okP := toFloat(arr[2])
	if !okT || !okP || !isFinite(ts) || !isFinite(price) {
		return model.Tick{}, false
	}
	return model.Tick{Asset: asset, Time: ts, Price: price}, true
}

// parseCandleList parses shape-A history entries. Entries with a non-finite
// time or non-finite open/close are skipped; a single bad entry never rejects
// the batch.
func parseCandleList(arr []interface{}) []model.Candle {
	out := make([]model.Candle, 0, len(arr))
	for _, e := range arr {
		switch v := e.(type) {
		case []interface{}:
			if len(v) < 5 {
				continue
			}
			t, okT := toFloat(v[0])
			o, okO := toFloat(v[1])
			c, okC := toFloat(v[2])
			h, okH := toFloat(v[3])
			l, okL := toFloat(v[4])
			if !okT || !okO || !okC || !isFinite(t) || !isFinite(o) || !isFinite(c) {
				continue
			}
			candle := model.Candle{Time: int64(math.Floor(t)), Open: o, Close: c, High: h, Low: l}
			if !okH || !isFinite(h) {
				candle.High = math.Max(o, c)
			}
			if !okL || !isFinite(l) {
				candle.Low = math.Min(o, c)
			}
			if len(v) > 5 {
				if vol, ok := toFloat(v[5]); ok && isFinite(vol) {
					candle.Volume = int(vol)
				}
			}
			out = append(out, candle)
		case map[string]interface{}:
			if c, ok := parseCandleObject(v); ok {
				out = append(out, c)
			}
		}
	}
	return out
}

// parseCandleObject parses an object with open/close fields into a candle.
func parseCandleObject(m map[string]interface{}) (model.Candle, bool) {
	o, okO := toFloat(m["open"])
	c, okC := toFloat(m["close"])
	if !okO || !okC || !isFinite(o) || !isFinite(c) {
		return model.Candle{}, false
	}
	t, okT := toFloat(m["time"])
	if !okT || !isFinite(t) {
		return model.Candle{}, false
	}
	candle := model.Candle{Time: int64(math.Floor(t)), Open: o, Close: c}
	if h, ok := toFloat(m["high"]); ok && isFinite(h) {
		candle.High = h
	} else {
		candle.High = math.Max(o, c)
	}
	if l, ok := toFloat(m["low"]); ok && isFinite(l) {
		candle.Low = l
	} else {
		candle.Low = math.Min(o, c)
	}
	if v, ok := toFloat(m["volume"]); ok && isFinite(v) {
		candle.Volume = int(v)
	}
	return candle, true
}

// bucketTicks folds shape-B raw ticks ([timestamp, price] tuples) into OHLC
// candles of the given period: open is the first tick in time order within
// the bucket, close the last, high/low the running extremes, volume the tick
// count.
func bucketTicks(arr []interface{}, period int64) []model.Candle {
	type pricedTick struct {
		ts    float64
		price float64
	}
	ticks := make([]pricedTick, 0, len(arr))
	for _, e := range arr {
		pair, ok := e.([]interface{})
		if !ok || len(pair) < 2 {
			continue
		}
		ts, okT := toFloat(pair[0])
		price, okP := toFloat(pair[1])
		if !okT || !okP || !isFinite(ts) || !isFinite(price) {
			continue
		}
		ticks = append(ticks, pricedTick{ts: ts, price: price})
	}
	sort.SliceStable(ticks, func(i, j int) bool { return ticks[i].ts < ticks[j].ts })

	byBucket := make(map[int64]int)
	out := make([]model.Candle, 0, 16)
	for _, tk := range ticks {
		bucket := int64(math.Floor(tk.ts/float64(period))) * period
		idx, exists := byBucket[bucket]
		if !exists {
			byBucket[bucket] = len(out)
			out = append(out, model.Candle{
				Time: bucket, Open: tk.price, High: tk.price,
				Low: tk.price, Close: tk.price, Volume: 1,
			})
			continue
		}
		c := &out[idx]
		if tk.price > c.High {
			c.High = tk.price
		}
		if tk.price < c.Low {
			c.Low = tk.price
		}
		c.Close = tk.price
		c.Volume++
	}
	return out
}

func isArray(v interface{}) bool {
	_, ok := v.([]interface{})
	return ok
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Package subscription ties the candle assembler to the indicator engine:
// one-shot calculations over freshly loaded history, and live streams that
// recompute an indicator on every closed candle.
package subscription

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"quotexstream/internal/indicator"
	"quotexstream/internal/metrics"
	"quotexstream/internal/model"
)

// maxWindow caps how many candles feed a live recomputation.
const maxWindow = 100

// ErrNoCandles is returned when history loading yields nothing before the
// deadline.
var ErrNoCandles = errors.New("subscription: no candles available")

// CandleSource is the slice of the assembler the manager depends on.
type CandleSource interface {
	GetCandles(ctx context.Context, asset string, period, offset, endTime int64) []model.Candle
	SubscribeStream(asset string, period int64, fn func(model.Candle)) func()
}

// Manager runs indicator calculations on top of a candle source.
type Manager struct {
	source CandleSource
	log    *zap.Logger
	met    *metrics.Metrics
	now    func() time.Time
}

func New(source CandleSource, log *zap.Logger, met *metrics.Metrics) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		source: source,
		log:    log,
		met:    met,
		now:    time.Now,
	}
}

// CalculateOnce loads enough history for one indicator computation and runs
// it. The lookback is 100 buckets of the requested timeframe ending now.
func (m *Manager) CalculateOnce(ctx context.Context, asset string, timeframe int64, kind indicator.Kind, params indicator.Params) (*indicator.Result, error) {
	if timeframe <= 0 {
		return nil, errors.Errorf("subscription: invalid timeframe %d", timeframe)
	}
	offset := maxWindow * timeframe
	endTime := m.now().Unix()

	cs := m.source.GetCandles(ctx, asset, timeframe, offset, endTime)
	if len(cs) == 0 {
		return nil, errors.Wrap(ErrNoCandles, asset)
	}

	start := m.now()
	res, err := indicator.Compute(kind, cs, params)
	if err != nil {
		return nil, err
	}
	m.met.ObserveIndicator(m.now().Sub(start))
	m.log.Debug("indicator computed",
		zap.String("asset", asset),
		zap.String("kind", string(kind)),
		zap.Int("candles", len(cs)),
		zap.Int("history", res.HistorySize))
	return res, nil
}

// SubscribeIndicator seeds a rolling window from history on a best-effort
// basis, then recomputes the indicator for every candle the stream
// delivers. The handler runs on the assembler's notification path. The
// returned cancel is idempotent.
func (m *Manager) SubscribeIndicator(ctx context.Context, asset string, timeframe int64, kind indicator.Kind, params indicator.Params, handler func(*indicator.Result)) (func(), error) {
	if timeframe <= 0 {
		return nil, errors.Errorf("subscription: invalid timeframe %d", timeframe)
	}
	if handler == nil {
		return nil, errors.New("subscription: nil handler")
	}
	if _, err := indicator.Compute(kind, nil, params); err != nil {
		return nil, err
	}

	window := m.source.GetCandles(ctx, asset, timeframe, maxWindow*timeframe, m.now().Unix())
	if len(window) == 0 {
		m.log.Debug("indicator stream starting without history seed",
			zap.String("asset", asset), zap.Int64("timeframe", timeframe))
	}

	var mu sync.Mutex
	cancelStream := m.source.SubscribeStream(asset, timeframe, func(c model.Candle) {
		mu.Lock()
		window = appendCandle(window, c)
		snapshot := make([]model.Candle, len(window))
		copy(snapshot, window)
		mu.Unlock()

		start := m.now()
		res, err := indicator.Compute(kind, snapshot, params)
		if err != nil {
			m.log.Warn("indicator recompute failed",
				zap.String("asset", asset), zap.String("kind", string(kind)), zap.Error(err))
			return
		}
		m.met.ObserveIndicator(m.now().Sub(start))
		handler(res)
	})

	var once sync.Once
	return func() { once.Do(cancelStream) }, nil
}

// appendCandle merges c into the window, updating in place when the bucket
// time matches the tail, and trims to maxWindow entries.
func appendCandle(window []model.Candle, c model.Candle) []model.Candle {
	if n := len(window); n > 0 && window[n-1].Time == c.Time {
		window[n-1] = c
	} else {
		window = append(window, c)
	}
	if len(window) > maxWindow {
		window = window[len(window)-maxWindow:]
	}
	return window
}

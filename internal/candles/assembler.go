// Package candles assembles raw ticks and historical payloads into rolling,
// time-ordered OHLC candle buffers, one per asset. It reconciles the two
// incompatible history payload shapes the platform sends and fans freshly
// assembled candles out to registered subscribers.
package candles

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"quotexstream/internal/metrics"
	"quotexstream/internal/model"
	"quotexstream/internal/poll"
)

// maxBufferLen caps each per-asset buffer at the most recent entries; the
// oldest are evicted first.
const maxBufferLen = 1000

// StreamKey identifies one followed candle stream.
type StreamKey struct {
	Asset  string
	Period int64
}

// CommandSender issues the outbound commands the assembler needs. The client
// facade implements it; tests substitute fakes. Responses arrive back through
// the dispatch path and are correlated by asset, not by request ID.
type CommandSender interface {
	LoadHistory(asset string, period, offset, endTime int64) error
	FollowCandles(asset string, period int64) error
	UnfollowCandles(asset string, period int64) error
}

type subscriber struct {
	id     uuid.UUID
	asset  string
	period int64 // 0 matches any period
	fn     func(model.Candle)
}

// CandleWindow describes the currently forming candle of an asset.
type CandleWindow struct {
	Candle    model.Candle
	Opening   int64 // bucket start (unix seconds)
	Closing   int64 // bucket end
	Remaining int64 // seconds until the bucket closes; negative when stale
}

// Assembler owns the per-asset candle buffers. Buffers are created lazily on
// first data and live for the process lifetime; callers always receive
// defensive copies, never the live slice.
type Assembler struct {
	mu      sync.Mutex
	buffers map[string][]model.Candle
	subs    []subscriber
	follows map[StreamKey]int
	periods map[string]int64 // last requested period per asset

	sender CommandSender
	log    *zap.Logger
	met    *metrics.Metrics

	// onCandle mirrors every assembled candle to an optional sink
	// (metrics/redis), outside the subscriber registry.
	onCandle func(asset string, c model.Candle)

	now          func() int64
	pollInterval time.Duration
	loadTimeout  time.Duration
}

// New creates an Assembler issuing commands through sender. met may be nil.
func New(sender CommandSender, log *zap.Logger, met *metrics.Metrics) *Assembler {
	return &Assembler{
		buffers:      make(map[string][]model.Candle),
		follows:      make(map[StreamKey]int),
		periods:      make(map[string]int64),
		sender:       sender,
		log:          log,
		met:          met,
		now:          func() int64 { return time.Now().Unix() },
		pollInterval: 100 * time.Millisecond,
		loadTimeout:  6 * time.Second,
	}
}

// SetCandleHook installs fn to observe every assembled candle. Must be called
// before data flows.
func (a *Assembler) SetCandleHook(fn func(asset string, c model.Candle)) {
	a.onCandle = fn
}

// Candles returns a copy of the asset's buffer, oldest first.
func (a *Assembler) Candles(asset string) []model.Candle {
	a.mu.Lock()
	defer a.mu.Unlock()
	buf := a.buffers[asset]
	out := make([]model.Candle, len(buf))
	copy(out, buf)
	return out
}

// GetCandles issues a history-load command for the asset and polls the buffer
// until at least one candle is present or the timeout elapses, returning
// whatever is present (possibly empty). offset and endTime are passed through
// to the history command; endTime defaults to now.
func (a *Assembler) GetCandles(ctx context.Context, asset string, period, offset, endTime int64) []model.Candle {
	a.mu.Lock()
	a.periods[asset] = period
	a.mu.Unlock()

	if endTime == 0 {
		endTime = a.now()
	}
	if err := a.sender.LoadHistory(asset, period, offset, endTime); err != nil {
		// Buffer may already hold data from an earlier load; keep polling.
		a.log.Warn("history load command failed", zap.String("asset", asset), zap.Error(err))
	}

	poll.Until(ctx, a.pollInterval, a.loadTimeout, func() bool {
		a.mu.Lock()
		defer a.mu.Unlock()
		return len(a.buffers[asset]) > 0
	})
	return a.Candles(asset)
}

// OnCandle registers a period-agnostic subscriber for the asset without
// issuing any follow commands. The returned cancel is idempotent.
func (a *Assembler) OnCandle(asset string, fn func(model.Candle)) func() {
	return a.register(subscriber{id: uuid.New(), asset: asset, fn: fn}, StreamKey{}, false)
}

// SubscribeStream registers a live candle stream subscriber for asset+period.
// The follow command is issued when the first subscriber for that pair
// arrives and the unfollow command when the last one cancels; registrations
// are reference-counted at asset+period granularity.
func (a *Assembler) SubscribeStream(asset string, period int64, fn func(model.Candle)) func() {
	key := StreamKey{Asset: asset, Period: period}
	return a.register(subscriber{id: uuid.New(), asset: asset, period: period, fn: fn}, key, true)
}

func (a *Assembler) register(sub subscriber, key StreamKey, follow bool) func() {
	a.mu.Lock()
	a.subs = append(a.subs, sub)
	first := false
	if follow {
		first = a.follows[key] == 0
		a.follows[key]++
		a.periods[key.Asset] = key.Period
	}
	a.mu.Unlock()

	if first {
		if err := a.sender.FollowCandles(key.Asset, key.Period); err != nil {
			// Subscription stays registered: the on-open priming re-issues
			// follow commands once the connection is back.
			a.log.Warn("follow command failed", zap.String("asset", key.Asset), zap.Error(err))
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() { a.unregister(sub.id, key, follow) })
	}
}

func (a *Assembler) unregister(id uuid.UUID, key StreamKey, follow bool) {
	a.mu.Lock()
	for i, s := range a.subs {
		if s.id == id {
			a.subs = append(a.subs[:i:i], a.subs[i+1:]...)
			break
		}
	}
	last := false
	if follow {
		if n := a.follows[key]; n > 0 {
			if n == 1 {
				delete(a.follows, key)
				last = true
			} else {
				a.follows[key] = n - 1
			}
		}
	}
	a.mu.Unlock()

	if last {
		if err := a.sender.UnfollowCandles(key.Asset, key.Period); err != nil {
			a.log.Warn("unfollow command failed", zap.String("asset", key.Asset), zap.Error(err))
		}
	}
}

// ActiveStreams returns the asset+period pairs with live subscribers, used to
// re-issue follow commands after a reconnect.
func (a *Assembler) ActiveStreams() []StreamKey {
	a.mu.Lock()
	defer a.mu.Unlock()
	keys := make([]StreamKey, 0, len(a.follows))
	for k := range a.follows {
		keys = append(keys, k)
	}
	return keys
}

// OpeningClosingCurrent reports the forming bucket of the most recent candle:
// its opening time, closing time and the seconds remaining until it closes.
// Returns nil when the asset's buffer is empty.
func (a *Assembler) OpeningClosingCurrent(asset string, period int64) *CandleWindow {
	a.mu.Lock()
	buf := a.buffers[asset]
	if len(buf) == 0 {
		a.mu.Unlock()
		return nil
	}
	last := buf[len(buf)-1]
	a.mu.Unlock()

	opening := last.Time
	closing := opening + period
	return &CandleWindow{
		Candle:    last,
		Opening:   opening,
		Closing:   closing,
		Remaining: closing - a.now(),
	}
}

// ingest merges candles into the asset's buffer, re-sorts ascending by time,
// optionally deduplicates by exact time (keeping the newest entry), trims to
// the most recent maxBufferLen, and pushes the latest candle to every
// subscriber registered for the asset, each exactly once.
func (a *Assembler) ingest(asset string, cs []model.Candle, dedupe bool) {
	if len(cs) == 0 {
		return
	}

	a.mu.Lock()
	buf := append(a.buffers[asset], cs...)
	buf = normalize(buf, dedupe)
	a.buffers[asset] = buf
	latest := buf[len(buf)-1]

	targets := a.matchingSubsLocked(asset)
	a.mu.Unlock()

	a.notify(asset, latest, targets)
}

func (a *Assembler) hasFollow(asset string) bool {
	for k := range a.follows {
		if k.Asset == asset {
			return true
		}
	}
	return false
}

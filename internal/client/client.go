// Package client is the user-facing facade over the pipeline: it owns the
// connection supervisor, dispatcher, candle assembler and subscription
// manager, speaks the platform's outbound command catalogue, and re-primes
// streams after every reconnect.
package client

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"quotexstream/internal/candles"
	"quotexstream/internal/dispatch"
	"quotexstream/internal/indicator"
	"quotexstream/internal/metrics"
	"quotexstream/internal/model"
	"quotexstream/internal/protocol"
	"quotexstream/internal/subscription"
	"quotexstream/internal/transport"
)

// Config is the construction-time configuration of the client.
type Config struct {
	URL               string
	Reconnect         bool
	ReconnectAttempts int
	ReconnectDelay    time.Duration

	// Session credentials for the authorization event. Empty Session skips
	// authorization on open.
	Session      string
	IsDemo       int
	TournamentID int
}

// CandlePublisher mirrors assembled candles to an external sink.
type CandlePublisher interface {
	PublishCandle(ctx context.Context, asset string, c model.Candle)
}

// sender abstracts the supervisor's outbound path for tests.
type sender interface {
	Connect(ctx context.Context) error
	Disconnect()
	Send(data []byte) error
	State() transport.State
}

// Client wires the pipeline together behind one API.
type Client struct {
	cfg Config
	log *zap.Logger

	sup  sender
	disp *dispatch.Dispatcher
	asm  *candles.Assembler
	subs *subscription.Manager

	mu         sync.Mutex
	serverTime float64
	publisher  CandlePublisher

	now func() time.Time
}

func New(cfg Config, log *zap.Logger, met *metrics.Metrics) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Client{
		cfg: cfg,
		log: log,
		now: time.Now,
	}

	sup := transport.New(transport.Config{
		URL:               cfg.URL,
		Reconnect:         cfg.Reconnect,
		ReconnectAttempts: cfg.ReconnectAttempts,
		ReconnectDelay:    cfg.ReconnectDelay,
	}, log, met)
	c.sup = sup
	c.disp = dispatch.New(log, met)
	c.asm = candles.New(c, log, met)
	c.subs = subscription.New(c.asm, log, met)

	sup.OnFrame = c.disp.HandleFrame
	sup.OnStateChange = func(st transport.State) {
		log.Info("connection state changed", zap.Stringer("state", st))
	}
	sup.OnOpen = c.prime

	c.disp.Subscribe(dispatch.ChannelTick, c.handleTick)
	c.disp.Subscribe(dispatch.ChannelCandles, c.asm.HandleCandles)
	c.asm.SetCandleHook(c.mirrorCandle)

	return c
}

// SetPublisher enables mirroring of every assembled candle. Pass nil to
// disable. Must be called before Connect.
func (c *Client) SetPublisher(p CandlePublisher) {
	c.mu.Lock()
	c.publisher = p
	c.mu.Unlock()
}

// Connect opens the transport. A first-attempt failure is returned to the
// caller and does not start the retry machinery.
func (c *Client) Connect(ctx context.Context) error {
	return c.sup.Connect(ctx)
}

// Disconnect closes the transport and cancels any pending reconnect.
func (c *Client) Disconnect() {
	c.sup.Disconnect()
}

// State reports the supervisor's connection state.
func (c *Client) State() transport.State {
	return c.sup.State()
}

// OnChannel registers a raw payload handler on a dispatch channel. The
// returned cancel is idempotent.
func (c *Client) OnChannel(channel string, fn dispatch.Handler) func() {
	return c.disp.Subscribe(channel, fn)
}

// Candles returns a copy of the current buffer for asset.
func (c *Client) Candles(asset string) []model.Candle {
	return c.asm.Candles(asset)
}

// GetCandles loads history for asset and waits for data to arrive.
func (c *Client) GetCandles(ctx context.Context, asset string, period, offset, endTime int64) []model.Candle {
	return c.asm.GetCandles(ctx, asset, period, offset, endTime)
}

// SubscribeCandles streams closed or updated candles for asset at period.
func (c *Client) SubscribeCandles(asset string, period int64, fn func(model.Candle)) func() {
	return c.asm.SubscribeStream(asset, period, fn)
}

// OpeningClosingCurrent describes the most recent candle's bucket window.
func (c *Client) OpeningClosingCurrent(asset string, period int64) *candles.CandleWindow {
	return c.asm.OpeningClosingCurrent(asset, period)
}

// CalculateOnce computes one indicator over freshly loaded history.
func (c *Client) CalculateOnce(ctx context.Context, asset string, timeframe int64, kind indicator.Kind, params indicator.Params) (*indicator.Result, error) {
	return c.subs.CalculateOnce(ctx, asset, timeframe, kind, params)
}

// SubscribeIndicator recomputes an indicator on every new candle.
func (c *Client) SubscribeIndicator(ctx context.Context, asset string, timeframe int64, kind indicator.Kind, params indicator.Params, fn func(*indicator.Result)) (func(), error) {
	return c.subs.SubscribeIndicator(ctx, asset, timeframe, kind, params, fn)
}

// ServerTime returns the platform's last reported clock value in unix
// seconds, or zero before the first numeric tick arrives.
func (c *Client) ServerTime() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.serverTime
}

// LoadHistory implements candles.CommandSender.
func (c *Client) LoadHistory(asset string, period, offset, endTime int64) error {
	return c.emit("history/load", map[string]interface{}{
		"asset":  asset,
		"index":  c.now().UnixMilli(),
		"time":   endTime,
		"offset": offset,
		"period": period,
	})
}

// FollowCandles implements candles.CommandSender.
func (c *Client) FollowCandles(asset string, period int64) error {
	if err := c.emit("instruments/update", map[string]interface{}{
		"asset":  asset,
		"period": period,
	}); err != nil {
		return err
	}
	return c.emit("depth/follow", asset)
}

// UnfollowCandles implements candles.CommandSender.
func (c *Client) UnfollowCandles(asset string, period int64) error {
	return c.emit("depth/unfollow", asset)
}

// LoadHistoryLine requests line-chart history for an instrument id.
func (c *Client) LoadHistoryLine(id int64, index, time, offset int64) error {
	return c.emit("history/load/line", map[string]interface{}{
		"id":     id,
		"index":  index,
		"time":   time,
		"offset": offset,
	})
}

// StoreSettings pushes chart settings to the platform.
func (c *Client) StoreSettings(chartID int64, settings map[string]interface{}) error {
	return c.emit("settings/store", map[string]interface{}{
		"chartId":  chartID,
		"settings": settings,
	})
}

// SubscribeSignals asks the platform to stream trading signals.
func (c *Client) SubscribeSignals() error {
	return c.emit("signal/subscribe", nil)
}

// RequestInstruments asks for the instrument list.
func (c *Client) RequestInstruments() error {
	return c.emit("instruments/get", nil)
}

// Authorize sends the authorization event with the configured session.
func (c *Client) Authorize() error {
	if c.cfg.Session == "" {
		return errors.New("client: no session configured")
	}
	return c.emit("authorization", map[string]interface{}{
		"session":      c.cfg.Session,
		"isDemo":       c.cfg.IsDemo,
		"tournamentId": c.cfg.TournamentID,
	})
}

// emit encodes one named event and sends it. A nil payload sends the bare
// event name.
func (c *Client) emit(name string, payload interface{}) error {
	var (
		data []byte
		err  error
	)
	if payload == nil {
		data, err = protocol.EncodeEvent(name)
	} else {
		data, err = protocol.EncodeEvent(name, payload)
	}
	if err != nil {
		return errors.Wrapf(err, "encode %s", name)
	}
	if err := c.sup.Send(data); err != nil {
		return errors.Wrapf(err, "send %s", name)
	}
	return nil
}

// prime runs after every successful connect: request the live tick stream
// and instrument list, authorize when a session is configured, and re-issue
// follow commands for every active candle stream.
func (c *Client) prime() {
	if err := c.emit("tick", nil); err != nil {
		c.log.Warn("tick priming failed", zap.Error(err))
	}
	if err := c.RequestInstruments(); err != nil {
		c.log.Warn("instruments priming failed", zap.Error(err))
	}
	if c.cfg.Session != "" {
		if err := c.Authorize(); err != nil {
			c.log.Warn("authorization failed", zap.Error(err))
		}
	}
	for _, key := range c.asm.ActiveStreams() {
		if err := c.FollowCandles(key.Asset, key.Period); err != nil {
			c.log.Warn("stream re-follow failed",
				zap.String("asset", key.Asset), zap.Int64("period", key.Period), zap.Error(err))
		}
	}
}

// handleTick routes tick-channel payloads: bare numbers carry the server
// clock, everything else is candle material.
func (c *Client) handleTick(payload interface{}) {
	switch v := payload.(type) {
	case float64:
		c.mu.Lock()
		c.serverTime = v
		c.mu.Unlock()
	default:
		c.asm.HandleTick(payload)
	}
}

func (c *Client) mirrorCandle(asset string, candle model.Candle) {
	c.mu.Lock()
	p := c.publisher
	c.mu.Unlock()
	if p == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	p.PublishCandle(ctx, asset, candle)
}

package client

import (
	"context"
	"strings"
	"sync"
	"testing"

	"quotexstream/internal/model"
	"quotexstream/internal/transport"
)

type fakeSender struct {
	mu         sync.Mutex
	sent       []string
	connectErr error
}

func (f *fakeSender) Connect(context.Context) error { return f.connectErr }
func (f *fakeSender) Disconnect()                   {}
func (f *fakeSender) State() transport.State        { return transport.StateOpen }

func (f *fakeSender) Send(data []byte) error {
	f.mu.Lock()
	f.sent = append(f.sent, string(data))
	f.mu.Unlock()
	return nil
}

func (f *fakeSender) frames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	copy(out, f.sent)
	return out
}

func (f *fakeSender) reset() {
	f.mu.Lock()
	f.sent = nil
	f.mu.Unlock()
}

func newTestClient(t *testing.T, cfg Config) (*Client, *fakeSender) {
	t.Helper()
	c := New(cfg, nil, nil)
	fake := &fakeSender{}
	c.sup = fake
	return c, fake
}

func hasFramePrefix(frames []string, prefix string) bool {
	for _, f := range frames {
		if strings.HasPrefix(f, prefix) {
			return true
		}
	}
	return false
}

func TestCommandCatalogue(t *testing.T) {
	c, fake := newTestClient(t, Config{Session: "abc", IsDemo: 1})

	if err := c.LoadHistory("EURUSD", 60, 6000, 1700000000); err != nil {
		t.Fatal(err)
	}
	if err := c.FollowCandles("EURUSD", 60); err != nil {
		t.Fatal(err)
	}
	if err := c.UnfollowCandles("EURUSD", 60); err != nil {
		t.Fatal(err)
	}
	if err := c.LoadHistoryLine(7, 1, 1700000000, 3600); err != nil {
		t.Fatal(err)
	}
	if err := c.StoreSettings(1, map[string]interface{}{"candlesType": 60}); err != nil {
		t.Fatal(err)
	}
	if err := c.SubscribeSignals(); err != nil {
		t.Fatal(err)
	}
	if err := c.Authorize(); err != nil {
		t.Fatal(err)
	}

	frames := fake.frames()
	for _, prefix := range []string{
		`42["history/load",`,
		`42["instruments/update",`,
		`42["depth/follow","EURUSD"]`,
		`42["depth/unfollow","EURUSD"]`,
		`42["history/load/line",`,
		`42["settings/store",`,
		`42["signal/subscribe"]`,
		`42["authorization",`,
	} {
		if !hasFramePrefix(frames, prefix) {
			t.Fatalf("missing frame %q in %v", prefix, frames)
		}
	}
}

func TestAuthorize_NoSession(t *testing.T) {
	c, _ := newTestClient(t, Config{})
	if err := c.Authorize(); err == nil {
		t.Fatal("expected error without session")
	}
}

func TestPrime_ReissuesActiveStreams(t *testing.T) {
	c, fake := newTestClient(t, Config{Session: "tok"})

	cancel := c.SubscribeCandles("EURUSD", 60, func(model.Candle) {})
	defer cancel()
	fake.reset()

	c.prime()

	frames := fake.frames()
	for _, prefix := range []string{
		`42["tick"]`,
		`42["instruments/get"]`,
		`42["authorization",`,
		`42["instruments/update",`,
		`42["depth/follow","EURUSD"]`,
	} {
		if !hasFramePrefix(frames, prefix) {
			t.Fatalf("missing priming frame %q in %v", prefix, frames)
		}
	}
}

func TestPrime_WithoutSessionSkipsAuthorization(t *testing.T) {
	c, fake := newTestClient(t, Config{})
	c.prime()
	if hasFramePrefix(fake.frames(), `42["authorization"`) {
		t.Fatal("authorization sent without a session")
	}
}

func TestHandleTick_NumericUpdatesServerTime(t *testing.T) {
	c, _ := newTestClient(t, Config{})

	c.handleTick(float64(1700000123.5))
	if got := c.ServerTime(); got != 1700000123.5 {
		t.Fatalf("server time %v", got)
	}
	if len(c.Candles("EURUSD")) != 0 {
		t.Fatal("numeric payload must not create candles")
	}
}

func TestHandleTick_ArrayFeedsAssembler(t *testing.T) {
	c, _ := newTestClient(t, Config{})

	c.handleTick([]interface{}{
		[]interface{}{"EURUSD", float64(1700000100), 1.1},
	})
	cs := c.Candles("EURUSD")
	if len(cs) != 1 {
		t.Fatalf("expected 1 candle, got %d", len(cs))
	}
	if cs[0].Close != 1.1 {
		t.Fatalf("close %v", cs[0].Close)
	}
}

type fakePublisher struct {
	mu     sync.Mutex
	assets []string
}

func (p *fakePublisher) PublishCandle(_ context.Context, asset string, _ model.Candle) {
	p.mu.Lock()
	p.assets = append(p.assets, asset)
	p.mu.Unlock()
}

func TestMirrorCandle(t *testing.T) {
	c, _ := newTestClient(t, Config{})
	pub := &fakePublisher{}
	c.SetPublisher(pub)

	c.asm.HandleCandles(map[string]interface{}{
		"asset":  "EURUSD",
		"time":   float64(1700000100),
		"open":   1.0,
		"close":  1.2,
		"high":   1.3,
		"low":    0.9,
		"period": float64(60),
	})

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.assets) != 1 || pub.assets[0] != "EURUSD" {
		t.Fatalf("published assets %v", pub.assets)
	}
}

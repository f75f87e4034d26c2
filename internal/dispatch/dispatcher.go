// Package dispatch routes decoded payloads onto named logical channels and
// fans each payload out to registered subscribers. Channels are not declared
// in advance: they are discovered from explicit event names or from the shape
// of anonymous payloads.
package dispatch

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"quotexstream/internal/metrics"
	"quotexstream/internal/protocol"
)

// Well-known channel names produced by shape classification.
const (
	ChannelTick        = "tick"
	ChannelInstruments = "instruments"
	ChannelCandles     = "candles"
	ChannelMessage     = "message"
)

// Handler receives one payload delivered on a channel.
type Handler func(payload interface{})

type subscriber struct {
	id uuid.UUID
	fn Handler
}

// Dispatcher is the owned subscriber registry. Dispatch is synchronous and in
// registration order; subscriber mutation during a dispatch never corrupts
// the in-flight iteration because dispatch iterates over a snapshot.
type Dispatcher struct {
	mu   sync.Mutex
	subs map[string][]subscriber

	log *zap.Logger
	met *metrics.Metrics
}

// New creates an empty dispatcher. met may be nil.
func New(log *zap.Logger, met *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		subs: make(map[string][]subscriber),
		log:  log,
		met:  met,
	}
}

// Subscribe registers fn under channel and returns an idempotent cancel
// function. Cancelling one subscription never affects others on the same
// channel.
func (d *Dispatcher) Subscribe(channel string, fn Handler) func() {
	id := uuid.New()

	d.mu.Lock()
	d.subs[channel] = append(d.subs[channel], subscriber{id: id, fn: fn})
	d.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			defer d.mu.Unlock()
			list := d.subs[channel]
			for i, s := range list {
				if s.id == id {
					d.subs[channel] = append(list[:i:i], list[i+1:]...)
					break
				}
			}
		})
	}
}

// HandleFrame classifies a decoded event or raw-payload frame and delivers
// its payload to every subscriber of the resulting channels. Other frame
// types are ignored here (keepalive is the transport's concern).
func (d *Dispatcher) HandleFrame(f protocol.Frame) {
	var primary string
	switch f.Type {
	case protocol.FrameEvent:
		primary = f.Name
	case protocol.FrameRawPayload:
		primary = Classify(f.Payload, f.ControlFramed)
	default:
		return
	}

	d.deliver(primary, f.Payload)

	// Generic object payloads also reach the message catch-all, in addition
	// to their specific channel. Consumers subscribing to both must dedupe.
	if _, isObject := f.Payload.(map[string]interface{}); isObject && primary != ChannelMessage {
		d.deliver(ChannelMessage, f.Payload)
	}
}

// deliver invokes all subscribers of channel with payload, in registration
// order, over a snapshot of the registry. A panicking subscriber is isolated:
// it never prevents the remaining subscribers or subsequent frames.
func (d *Dispatcher) deliver(channel string, payload interface{}) {
	d.mu.Lock()
	snapshot := make([]subscriber, len(d.subs[channel]))
	copy(snapshot, d.subs[channel])
	d.mu.Unlock()

	if d.met != nil {
		d.met.DispatchTotal.WithLabelValues(channel).Inc()
	}

	for _, s := range snapshot {
		d.invoke(channel, s, payload)
	}
}

func (d *Dispatcher) invoke(channel string, s subscriber, payload interface{}) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("subscriber panicked",
				zap.String("channel", channel),
				zap.String("subscriber", s.id.String()),
				zap.Any("panic", r))
		}
	}()
	s.fn(payload)
}

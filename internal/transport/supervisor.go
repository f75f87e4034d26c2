// Package transport owns the persistent socket to the platform. It runs the
// keepalive and reconnect state machine and surfaces decoded frames and
// connection-state changes to the layer above.
package transport

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"quotexstream/internal/metrics"
	"quotexstream/internal/protocol"
)

// Conn is the minimal socket surface the supervisor needs. Satisfied by
// *websocket.Conn; tests substitute scripted fakes.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dialer opens a Conn to url within ctx's deadline.
type Dialer func(ctx context.Context, url string) (Conn, error)

// Config is the plain construction-time configuration of the supervisor.
type Config struct {
	URL               string
	Reconnect         bool
	ReconnectAttempts int           // max retry dials after a drop; default 5
	ReconnectDelay    time.Duration // fixed delay between retries; default 5s
	ConnectTimeout    time.Duration // bound on a single dial; default 10s
	PingInterval      time.Duration // keepalive period; default 25s
}

func (c Config) withDefaults() Config {
	if c.ReconnectAttempts <= 0 {
		c.ReconnectAttempts = 5
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = 5 * time.Second
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 25 * time.Second
	}
	return c
}

// Supervisor owns the socket and its lifecycle. All inbound messages are
// decoded and handed to OnFrame in wire arrival order, on the read loop.
type Supervisor struct {
	cfg  Config
	dial Dialer
	log  *zap.Logger
	met  *metrics.Metrics

	// limiter paces outbound commands; keepalive pings bypass it.
	limiter *rate.Limiter

	// OnFrame receives every decoded frame, including keepalive frames the
	// supervisor already acted on. Invoked synchronously from the read loop.
	OnFrame func(protocol.Frame)

	// OnStateChange is invoked after every state transition.
	OnStateChange func(State)

	// OnOpen is invoked after each successful connect or reconnect, before
	// any inbound frame is read. Used for the subscription-priming burst.
	OnOpen func()

	mu             sync.Mutex
	state          State
	conn           Conn
	gen            int // connection generation; loops of stale gens exit
	done           chan struct{}
	awaitingPong   bool
	reconnectTimer *time.Timer

	writeMu sync.Mutex
}

// New creates a Supervisor dialing real websocket connections.
func New(cfg Config, log *zap.Logger, met *metrics.Metrics) *Supervisor {
	return &Supervisor{
		cfg:     cfg.withDefaults(),
		dial:    dialWebsocket,
		log:     log,
		met:     met,
		limiter: rate.NewLimiter(rate.Limit(20), 40),
		state:   StateDisconnected,
	}
}

func dialWebsocket(ctx context.Context, url string) (Conn, error) {
	c, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// State returns the current connection state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connect dials the endpoint once. A first attempt that neither opens nor
// errors within the connect timeout fails without entering the reconnect
// machine; only post-connection drops auto-retry. Callers treat an error as
// "proceed in degraded mode", not as fatal.
func (s *Supervisor) Connect(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateClosed:
		s.mu.Unlock()
		return errors.New("transport: supervisor closed")
	case StateConnecting, StateOpen, StateReconnecting:
		s.mu.Unlock()
		return errors.Errorf("transport: connect while %s", s.state)
	}
	s.mu.Unlock()
	s.setState(StateConnecting)

	dctx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
	defer cancel()
	conn, err := s.dial(dctx, s.cfg.URL)
	if err != nil {
		s.setState(StateDisconnected)
		return errors.Wrapf(err, "transport: connect %s", s.cfg.URL)
	}

	s.adopt(conn)
	return nil
}

// Disconnect moves to Closed: cancels keepalive and any pending reconnect,
// closes the socket. No further transitions happen without a fresh supervisor.
func (s *Supervisor) Disconnect() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
		s.reconnectTimer = nil
	}
	s.teardownLocked()
	cb := s.OnStateChange
	s.mu.Unlock()

	if cb != nil {
		cb(StateClosed)
	}
}

// Send writes one outbound frame, paced by the command rate limiter.
func (s *Supervisor) Send(data []byte) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return errors.New("transport: not connected")
	}
	if err := s.limiter.Wait(context.Background()); err != nil {
		return errors.Wrap(err, "transport: rate limit")
	}
	return s.write(conn, data)
}

func (s *Supervisor) write(conn Conn, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}

// adopt installs a freshly dialed connection, transitions to Open, fires the
// priming hook and starts the read and keepalive loops.
func (s *Supervisor) adopt(conn Conn) {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.conn = conn
	s.gen++
	gen := s.gen
	s.done = make(chan struct{})
	done := s.done
	s.awaitingPong = false
	s.mu.Unlock()

	s.setState(StateOpen)
	if s.OnOpen != nil {
		s.OnOpen()
	}

	go s.readLoop(conn, gen)
	go s.keepaliveLoop(conn, gen, done)
}

func (s *Supervisor) readLoop(conn Conn, gen int) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if s.stale(gen) {
				return
			}
			s.log.Warn("transport read error", zap.Error(err))
			s.handleDrop(gen)
			return
		}
		s.handleMessage(string(msg))
	}
}

// handleMessage decodes one wire message and routes it. Decode failures are
// logged and absorbed; processing continues with the next message.
func (s *Supervisor) handleMessage(raw string) {
	f, err := protocol.Decode(raw)
	if err != nil {
		if s.met != nil {
			s.met.DecodeErrors.Inc()
		}
		s.log.Debug("dropping undecodable message", zap.Error(err), zap.Int("len", len(raw)))
		return
	}
	if s.met != nil {
		s.met.FramesTotal.Inc()
	}

	switch f.Type {
	case protocol.FramePing:
		// Keepalive is bidirectional and symmetric: answer immediately.
		s.mu.Lock()
		conn := s.conn
		s.mu.Unlock()
		if conn != nil {
			if err := s.write(conn, protocol.EncodePong()); err != nil {
				s.log.Warn("pong write failed", zap.Error(err))
			}
		}
	case protocol.FramePong:
		s.mu.Lock()
		s.awaitingPong = false
		s.mu.Unlock()
	}

	if s.OnFrame != nil {
		s.OnFrame(f)
	}
}

// keepaliveLoop sends a ping every interval and treats a missing pong within
// one interval as a dropped connection.
func (s *Supervisor) keepaliveLoop(conn Conn, gen int, done chan struct{}) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if s.stale(gen) {
				return
			}
			s.mu.Lock()
			missed := s.awaitingPong
			s.awaitingPong = true
			s.mu.Unlock()

			if missed {
				s.log.Warn("keepalive timeout, closing connection")
				conn.Close() // read loop surfaces the error and reconnects
				return
			}
			if err := s.write(conn, protocol.EncodePing()); err != nil {
				s.log.Warn("ping write failed", zap.Error(err))
				conn.Close()
				return
			}
		}
	}
}

func (s *Supervisor) stale(gen int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen != gen || s.state == StateClosed
}

// handleDrop reacts to a post-connection transport failure: reconnect with a
// fixed delay when enabled, otherwise settle in Disconnected.
func (s *Supervisor) handleDrop(gen int) {
	s.mu.Lock()
	if s.gen != gen || s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.teardownLocked()
	reconnect := s.cfg.Reconnect
	s.mu.Unlock()

	if !reconnect {
		s.setState(StateDisconnected)
		return
	}
	s.setState(StateReconnecting)
	s.scheduleRetry(1)
}

func (s *Supervisor) scheduleRetry(attempt int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReconnecting {
		return
	}
	s.reconnectTimer = time.AfterFunc(s.cfg.ReconnectDelay, func() {
		s.retry(attempt)
	})
}

func (s *Supervisor) retry(attempt int) {
	if s.State() != StateReconnecting {
		return
	}
	if s.met != nil {
		s.met.Reconnects.Inc()
	}
	s.log.Info("reconnecting",
		zap.Int("attempt", attempt),
		zap.Int("max_attempts", s.cfg.ReconnectAttempts))

	dctx, cancel := context.WithTimeout(context.Background(), s.cfg.ConnectTimeout)
	conn, err := s.dial(dctx, s.cfg.URL)
	cancel()
	if err == nil {
		s.adopt(conn)
		return
	}

	s.log.Warn("reconnect attempt failed", zap.Int("attempt", attempt), zap.Error(err))
	if attempt >= s.cfg.ReconnectAttempts {
		s.log.Error("reconnect attempts exhausted")
		s.setState(StateDisconnected)
		return
	}
	s.scheduleRetry(attempt + 1)
}

// teardownLocked closes the current connection and stops its keepalive.
// Caller holds s.mu.
func (s *Supervisor) teardownLocked() {
	if s.done != nil {
		close(s.done)
		s.done = nil
	}
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}

func (s *Supervisor) setState(st State) {
	s.mu.Lock()
	if s.state == st || s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = st
	cb := s.OnStateChange
	s.mu.Unlock()

	if cb != nil {
		cb(st)
	}
}

package transport

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"quotexstream/internal/poll"
	"quotexstream/internal/protocol"
)

// fakeConn is a scripted in-memory connection.
type fakeConn struct {
	in     chan []byte
	closed chan struct{}
	once   sync.Once

	mu     sync.Mutex
	writes []string
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case m, ok := <-c.in:
		if !ok {
			return 0, nil, io.EOF
		}
		return 1, m, nil
	case <-c.closed:
		return 0, nil, errors.New("use of closed connection")
	}
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	select {
	case <-c.closed:
		return errors.New("write on closed connection")
	default:
	}
	c.mu.Lock()
	c.writes = append(c.writes, string(data))
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) wrote(frame string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, w := range c.writes {
		if w == frame {
			return true
		}
	}
	return false
}

// stateRecorder collects state transitions.
type stateRecorder struct {
	mu     sync.Mutex
	states []State
}

func (r *stateRecorder) record(s State) {
	r.mu.Lock()
	r.states = append(r.states, s)
	r.mu.Unlock()
}

func (r *stateRecorder) last() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.states) == 0 {
		return StateDisconnected
	}
	return r.states[len(r.states)-1]
}

func waitFor(t *testing.T, what string, pred func() bool) {
	t.Helper()
	if !poll.Until(context.Background(), 2*time.Millisecond, 2*time.Second, pred) {
		t.Fatalf("timed out waiting for %s", what)
	}
}

func testSupervisor(cfg Config, dial Dialer) (*Supervisor, *stateRecorder) {
	cfg.URL = "ws://test"
	s := New(cfg, zap.NewNop(), nil)
	s.dial = dial
	rec := &stateRecorder{}
	s.OnStateChange = rec.record
	return s, rec
}

func TestConnect_Success(t *testing.T) {
	conn := newFakeConn()
	s, rec := testSupervisor(Config{}, func(context.Context, string) (Conn, error) {
		return conn, nil
	})
	opened := 0
	s.OnOpen = func() { opened++ }

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer s.Disconnect()

	if got := s.State(); got != StateOpen {
		t.Errorf("state = %v, want open", got)
	}
	if opened != 1 {
		t.Errorf("OnOpen called %d times, want 1", opened)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.states) < 2 || rec.states[0] != StateConnecting || rec.states[1] != StateOpen {
		t.Errorf("transitions = %v, want [connecting open ...]", rec.states)
	}
}

func TestConnect_FirstAttemptFailureDoesNotRetry(t *testing.T) {
	dials := 0
	s, _ := testSupervisor(Config{Reconnect: true, ReconnectDelay: 5 * time.Millisecond},
		func(context.Context, string) (Conn, error) {
			dials++
			return nil, errors.New("refused")
		})

	if err := s.Connect(context.Background()); err == nil {
		t.Fatal("expected connect error")
	}
	if got := s.State(); got != StateDisconnected {
		t.Errorf("state = %v, want disconnected", got)
	}

	time.Sleep(30 * time.Millisecond)
	if dials != 1 {
		t.Errorf("dials = %d, want 1 (first-attempt failures must not auto-retry)", dials)
	}
}

func TestInboundPingAnsweredWithPong(t *testing.T) {
	conn := newFakeConn()
	s, _ := testSupervisor(Config{}, func(context.Context, string) (Conn, error) {
		return conn, nil
	})
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer s.Disconnect()

	conn.in <- []byte("2")
	waitFor(t, "pong reply", func() bool { return conn.wrote("3") })
}

func TestFramesDeliveredInOrder(t *testing.T) {
	conn := newFakeConn()
	s, _ := testSupervisor(Config{}, func(context.Context, string) (Conn, error) {
		return conn, nil
	})

	var mu sync.Mutex
	var names []string
	s.OnFrame = func(f protocol.Frame) {
		if f.Type != protocol.FrameEvent {
			return
		}
		mu.Lock()
		names = append(names, f.Name)
		mu.Unlock()
	}

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer s.Disconnect()

	conn.in <- []byte(`42["a"]`)
	conn.in <- []byte("this is not decodable") // dropped, non-fatal
	conn.in <- []byte(`42["b"]`)

	waitFor(t, "two frames", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(names) == 2
	})
	mu.Lock()
	defer mu.Unlock()
	if names[0] != "a" || names[1] != "b" {
		t.Errorf("names = %v, want [a b]", names)
	}
}

func TestDropTriggersReconnect(t *testing.T) {
	first := newFakeConn()
	second := newFakeConn()
	dials := 0
	s, _ := testSupervisor(Config{Reconnect: true, ReconnectDelay: 5 * time.Millisecond},
		func(context.Context, string) (Conn, error) {
			dials++
			if dials == 1 {
				return first, nil
			}
			return second, nil
		})
	opened := 0
	var mu sync.Mutex
	s.OnOpen = func() { mu.Lock(); opened++; mu.Unlock() }

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer s.Disconnect()

	close(first.in) // transport error

	waitFor(t, "reopen after drop", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return opened == 2 && s.State() == StateOpen
	})
}

func TestReconnectAttemptsExhausted(t *testing.T) {
	first := newFakeConn()
	dials := 0
	s, rec := testSupervisor(Config{Reconnect: true, ReconnectAttempts: 2, ReconnectDelay: 5 * time.Millisecond},
		func(context.Context, string) (Conn, error) {
			dials++
			if dials == 1 {
				return first, nil
			}
			return nil, errors.New("still down")
		})

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	close(first.in)

	waitFor(t, "settled disconnected", func() bool { return rec.last() == StateDisconnected })
	time.Sleep(30 * time.Millisecond)
	if dials != 3 { // initial success + exactly two failed retries
		t.Errorf("dials = %d, want 3", dials)
	}
	if got := s.State(); got != StateDisconnected {
		t.Errorf("state = %v, want disconnected", got)
	}
}

func TestDisconnect_CancelsPendingReconnect(t *testing.T) {
	first := newFakeConn()
	dials := 0
	var mu sync.Mutex
	s, _ := testSupervisor(Config{Reconnect: true, ReconnectAttempts: 5, ReconnectDelay: 50 * time.Millisecond},
		func(context.Context, string) (Conn, error) {
			mu.Lock()
			dials++
			n := dials
			mu.Unlock()
			if n == 1 {
				return first, nil
			}
			return nil, errors.New("down")
		})

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	close(first.in)
	waitFor(t, "reconnecting", func() bool { return s.State() == StateReconnecting })

	s.Disconnect()
	if got := s.State(); got != StateClosed {
		t.Fatalf("state = %v, want closed", got)
	}

	time.Sleep(120 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if dials != 1 {
		t.Errorf("dials = %d, want 1 (pending retry must be cancelled)", dials)
	}
}

func TestKeepalive_MissedPongDropsConnection(t *testing.T) {
	conn := newFakeConn()
	s, rec := testSupervisor(Config{PingInterval: 10 * time.Millisecond},
		func(context.Context, string) (Conn, error) {
			return conn, nil
		})

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	// Never answer pings: the second keepalive tick must drop the link, and
	// with reconnect disabled the supervisor settles in Disconnected.
	waitFor(t, "keepalive drop", func() bool { return rec.last() == StateDisconnected })
	if !conn.wrote("2") {
		t.Error("expected at least one keepalive ping to be sent")
	}
}

func TestSend_NotConnected(t *testing.T) {
	s, _ := testSupervisor(Config{}, func(context.Context, string) (Conn, error) {
		return nil, errors.New("unused")
	})
	if err := s.Send([]byte("2")); err == nil {
		t.Fatal("expected error sending while disconnected")
	}
}

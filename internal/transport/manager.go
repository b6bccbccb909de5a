package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/gigboard/gigchat/internal/bus"
	"github.com/gigboard/gigchat/internal/chat"
	"github.com/gigboard/gigchat/internal/status"
)

// DefaultConnectTimeout bounds the initial dial and every redial.
const DefaultConnectTimeout = 10 * time.Second

var (
	ErrNotConnected = errors.New("not connected")
	ErrClosed       = errors.New("connection closed")
)

// Handler receives the raw data of one event. Handlers run on the reader
// goroutine in arrival order and must not block.
type Handler func(data json.RawMessage)

// Unsubscribe detaches a handler. It is safe to call more than once.
type Unsubscribe func()

// Options configure a Manager.
type Options struct {
	URL            string
	Peer           string // conversation the connection serves; used in events and logs
	ConnectTimeout time.Duration
	Reconnect      ReconnectPolicy
	Dial           DialFunc
	Bus            *bus.Bus
	Logger         *zap.Logger
}

func (o *Options) defaults() {
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = DefaultConnectTimeout
	}
	if o.Reconnect.BaseDelay <= 0 {
		o.Reconnect.BaseDelay = DefaultReconnectPolicy.BaseDelay
	}
	if o.Reconnect.MaxDelay <= 0 {
		o.Reconnect.MaxDelay = DefaultReconnectPolicy.MaxDelay
	}
	if o.Dial == nil {
		o.Dial = Dial
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}

type subscription struct {
	id      int
	handler Handler
}

// Manager owns one authenticated connection and its event handlers.
// Handlers are held by the manager, not the socket, so they survive redials.
type Manager struct {
	opts  Options
	token string
	log   *zap.Logger
	state *status.Machine

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	conn     Conn
	closed   bool
	subs     map[string][]subscription
	nextID   int
	closeErr error
	once     sync.Once
}

// Open dials the server and starts the reader. It fails if the handshake
// does not complete within the connect timeout.
func Open(ctx context.Context, opts Options, token string) (*Manager, error) {
	if opts.URL == "" {
		return nil, errors.New("transport: empty url")
	}
	opts.defaults()

	m := &Manager{
		opts:  opts,
		token: token,
		log:   opts.Logger.With(zap.String("peer", opts.Peer)),
		state: status.NewMachine(opts.Bus, opts.Peer),
		done:  make(chan struct{}),
		subs:  make(map[string][]subscription),
	}
	_ = m.state.Transition(status.Connecting)

	conn, err := m.dial(ctx)
	if err != nil {
		_ = m.state.Transition(status.Closed)
		return nil, fmt.Errorf("connect %s: %w", opts.URL, err)
	}
	_ = m.state.Transition(status.Connected)
	m.log.Info("connected", zap.String("url", opts.URL))

	m.ctx, m.cancel = context.WithCancel(context.WithoutCancel(ctx))
	m.conn = conn
	go m.run(conn)
	return m, nil
}

// State returns the current connection state.
func (m *Manager) State() status.State {
	return m.state.Current()
}

// Subscribe registers h for event. A closed manager ignores the call.
func (m *Manager) Subscribe(event string, h Handler) Unsubscribe {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return func() {}
	}
	id := m.nextID
	m.nextID++
	m.subs[event] = append(m.subs[event], subscription{id: id, handler: h})

	var once sync.Once
	return func() {
		once.Do(func() { m.unsubscribe(event, id) })
	}
}

func (m *Manager) unsubscribe(event string, id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	subs := m.subs[event]
	for i, s := range subs {
		if s.id == id {
			m.subs[event] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(m.subs[event]) == 0 {
		delete(m.subs, event)
	}
}

// Emit writes one event frame. It fails fast while the connection is down.
func (m *Manager) Emit(ctx context.Context, event string, payload any) error {
	m.mu.Lock()
	closed, conn := m.closed, m.conn
	m.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if conn == nil {
		return ErrNotConnected
	}
	b, err := encodeFrame(event, payload)
	if err != nil {
		return err
	}
	if err := conn.Write(ctx, websocket.MessageText, b); err != nil {
		return fmt.Errorf("emit %s: %w", event, err)
	}
	m.log.Debug("emitted", zap.String("event", event))
	return nil
}

// Close detaches every handler, closes the socket with a normal closure
// and waits for the reader to exit. Subsequent calls return the first result.
func (m *Manager) Close() error {
	m.once.Do(func() {
		m.mu.Lock()
		m.closed = true
		conn := m.conn
		m.conn = nil
		m.subs = make(map[string][]subscription)
		m.mu.Unlock()

		if conn != nil {
			if err := conn.Close(websocket.StatusNormalClosure, "client closed"); err != nil {
				m.closeErr = err
				m.log.Debug("close", zap.Error(err))
			}
		}
		m.cancel()
		<-m.done
		if m.state.Current() != status.Closed {
			_ = m.state.Transition(status.Closed)
		}
		m.log.Info("connection closed")
	})
	return m.closeErr
}

// dispatch calls the handlers registered for event at the time of the call.
func (m *Manager) dispatch(event string, data json.RawMessage) {
	m.mu.Lock()
	subs := append([]subscription(nil), m.subs[event]...)
	m.mu.Unlock()
	for _, s := range subs {
		s.handler(data)
	}
}

func (m *Manager) dispatchLocal(event, reason string) {
	b, _ := json.Marshal(chat.LifecyclePayload{Reason: reason})
	m.dispatch(event, b)
}

func (m *Manager) dial(ctx context.Context) (Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, m.opts.ConnectTimeout)
	defer cancel()
	return m.opts.Dial(ctx, m.opts.URL, m.token)
}

func (m *Manager) run(conn Conn) {
	defer close(m.done)
	bo := &backoff{policy: m.opts.Reconnect}
	bo.markConnected()

	for {
		err := m.readLoop(conn)
		if m.isClosed() {
			return
		}
		m.log.Warn("connection lost", zap.Error(err))
		m.setConn(nil)
		_ = m.state.Transition(status.Reconnecting)
		m.dispatchLocal(chat.EventDisconnect, err.Error())

		conn = m.redial(bo)
		if conn == nil {
			return
		}
	}
}

func (m *Manager) readLoop(conn Conn) error {
	for {
		typ, data, err := conn.Read(m.ctx)
		if err != nil {
			return err
		}
		if typ != websocket.MessageText {
			continue
		}
		event, payload, err := decodeFrame(data)
		if err != nil {
			m.log.Debug("dropping frame", zap.Error(err))
			continue
		}
		m.dispatch(event, payload)
	}
}

// redial retries until a dial succeeds, the manager closes, or the policy
// gives up. It returns nil in the latter two cases.
func (m *Manager) redial(bo *backoff) Conn {
	for bo.shouldRetry() {
		delay := bo.next()
		m.log.Info("reconnecting", zap.Int("attempt", bo.attempt), zap.Duration("delay", delay))

		timer := time.NewTimer(delay)
		select {
		case <-m.ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		conn, err := m.dial(m.ctx)
		if err != nil {
			if m.ctx.Err() != nil {
				return nil
			}
			m.log.Warn("reconnect failed", zap.Error(err))
			m.dispatchLocal(chat.EventConnectError, err.Error())
			continue
		}
		if !m.setConn(conn) {
			_ = conn.Close(websocket.StatusNormalClosure, "client closed")
			return nil
		}
		bo.attempt = 0
		bo.markConnected()
		_ = m.state.Transition(status.Connected)
		m.log.Info("reconnected")
		m.dispatchLocal(chat.EventConnect, "")
		return conn
	}

	m.log.Error("giving up on reconnect", zap.Int("attempts", bo.attempt))
	m.dispatchLocal(chat.EventConnectError, "reconnect attempts exhausted")
	return nil
}

func (m *Manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// setConn swaps the live connection. It reports false once the manager is closed.
func (m *Manager) setConn(conn Conn) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	m.conn = conn
	return true
}

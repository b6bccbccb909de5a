package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/gigboard/gigchat/internal/chat"
	"github.com/gigboard/gigchat/internal/status"
)

type fakeConn struct {
	in     chan []byte
	closed chan struct{}
	once   sync.Once

	mu  sync.Mutex
	out [][]byte
}

func newFakeConn() *fakeConn {
	return &fakeConn{in: make(chan []byte, 16), closed: make(chan struct{})}
}

func (c *fakeConn) Read(ctx context.Context) (websocket.MessageType, []byte, error) {
	select {
	case b, ok := <-c.in:
		if !ok {
			return 0, nil, errors.New("connection reset")
		}
		return websocket.MessageText, b, nil
	case <-c.closed:
		return 0, nil, errors.New("use of closed connection")
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	}
}

func (c *fakeConn) Write(_ context.Context, _ websocket.MessageType, p []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.out = append(c.out, append([]byte(nil), p...))
	return nil
}

func (c *fakeConn) Close(websocket.StatusCode, string) error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) push(t *testing.T, event string, data any) {
	t.Helper()
	b, err := json.Marshal(map[string]any{"event": event, "data": data})
	if err != nil {
		t.Fatal(err)
	}
	c.in <- b
}

func (c *fakeConn) written() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.out...)
}

// dialSeq returns a dialer that yields the given conns or errors in order,
// then fails forever.
func dialSeq(results ...any) DialFunc {
	var mu sync.Mutex
	return func(ctx context.Context, url, token string) (Conn, error) {
		mu.Lock()
		defer mu.Unlock()
		if len(results) == 0 {
			return nil, errors.New("server unreachable")
		}
		r := results[0]
		results = results[1:]
		switch v := r.(type) {
		case *fakeConn:
			return v, nil
		case error:
			return nil, v
		}
		panic("unexpected dial result")
	}
}

func testOptions(dial DialFunc) Options {
	return Options{
		URL:       "ws://chat.test/socket",
		Peer:      "u2",
		Dial:      dial,
		Reconnect: ReconnectPolicy{BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond},
		Logger:    zap.NewNop(),
	}
}

func recv(t *testing.T, ch <-chan string, want string) {
	t.Helper()
	select {
	case got := <-ch:
		if got != want {
			t.Fatalf("got %q, want %q", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timeout waiting for %q", want)
	}
}

func TestOpenFailsWhenDialFails(t *testing.T) {
	_, err := Open(context.Background(), testOptions(dialSeq(errors.New("refused"))), "tok")
	if err == nil {
		t.Fatal("Open should fail")
	}
}

func TestDispatchInArrivalOrder(t *testing.T) {
	conn := newFakeConn()
	m, err := Open(context.Background(), testOptions(dialSeq(conn)), "tok")
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	got := make(chan string, 8)
	m.Subscribe(chat.EventDeleteMessage, func(data json.RawMessage) {
		var p chat.DeleteMessagePayload
		_ = json.Unmarshal(data, &p)
		got <- p.MessageID
	})

	for _, id := range []string{"m1", "m2", "m3"} {
		conn.push(t, chat.EventDeleteMessage, chat.DeleteMessagePayload{MessageID: id})
	}
	recv(t, got, "m1")
	recv(t, got, "m2")
	recv(t, got, "m3")
}

func TestNoDeliveryAfterUnsubscribe(t *testing.T) {
	conn := newFakeConn()
	m, err := Open(context.Background(), testOptions(dialSeq(conn)), "tok")
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	var mu sync.Mutex
	calls := 0
	unsub := m.Subscribe(chat.EventReceiveMessage, func(json.RawMessage) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	sentinel := make(chan string, 4)
	m.Subscribe(chat.EventTyping, func(json.RawMessage) { sentinel <- "typing" })

	unsub()
	unsub()

	conn.push(t, chat.EventReceiveMessage, map[string]string{"senderId": "u2"})
	conn.push(t, chat.EventTyping, map[string]string{"senderId": "u2"})
	recv(t, sentinel, "typing")

	mu.Lock()
	defer mu.Unlock()
	if calls != 0 {
		t.Errorf("handler fired %d times after unsubscribe", calls)
	}
}

func TestCloseDetachesAndIsIdempotent(t *testing.T) {
	conn := newFakeConn()
	m, err := Open(context.Background(), testOptions(dialSeq(conn)), "tok")
	if err != nil {
		t.Fatal(err)
	}
	fired := make(chan struct{}, 1)
	m.Subscribe(chat.EventReceiveMessage, func(json.RawMessage) { fired <- struct{}{} })

	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	if m.State() != status.Closed {
		t.Errorf("state = %s, want CLOSED", m.State())
	}
	if err := m.Emit(context.Background(), chat.EventTyping, nil); !errors.Is(err, ErrClosed) {
		t.Errorf("Emit after close = %v, want ErrClosed", err)
	}

	select {
	case conn.in <- []byte(`{"event":"receive-message","data":{}}`):
	default:
	}
	select {
	case <-fired:
		t.Fatal("handler fired after close")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEmitWritesFrame(t *testing.T) {
	conn := newFakeConn()
	m, err := Open(context.Background(), testOptions(dialSeq(conn)), "tok")
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	err = m.Emit(context.Background(), chat.EventSendMessage, chat.SendMessagePayload{ReceiverID: "u2", Message: "hi"})
	if err != nil {
		t.Fatal(err)
	}
	out := conn.written()
	if len(out) != 1 {
		t.Fatalf("written = %d frames, want 1", len(out))
	}
	want := `{"event":"send-message","data":{"receiverId":"u2","message":"hi"}}`
	if string(out[0]) != want {
		t.Errorf("frame = %s, want %s", out[0], want)
	}
}

func TestReconnectDispatchesLifecycle(t *testing.T) {
	first, second := newFakeConn(), newFakeConn()
	m, err := Open(context.Background(), testOptions(dialSeq(first, errors.New("refused"), second)), "tok")
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	events := make(chan string, 8)
	for _, ev := range []string{chat.EventDisconnect, chat.EventConnectError, chat.EventConnect, chat.EventTyping} {
		m.Subscribe(ev, func(json.RawMessage) { events <- ev })
	}

	close(first.in)
	recv(t, events, chat.EventDisconnect)
	recv(t, events, chat.EventConnectError)
	recv(t, events, chat.EventConnect)

	if m.State() != status.Connected {
		t.Errorf("state = %s, want CONNECTED", m.State())
	}

	// Handlers registered before the drop still receive on the new socket.
	second.push(t, chat.EventTyping, map[string]string{"senderId": "u2"})
	recv(t, events, chat.EventTyping)
}

func TestEmitWhileDisconnected(t *testing.T) {
	first := newFakeConn()
	opts := testOptions(dialSeq(first))
	opts.Reconnect.MaxAttempts = 1
	m, err := Open(context.Background(), opts, "tok")
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	events := make(chan string, 4)
	m.Subscribe(chat.EventDisconnect, func(json.RawMessage) { events <- chat.EventDisconnect })

	close(first.in)
	recv(t, events, chat.EventDisconnect)

	if err := m.Emit(context.Background(), chat.EventTyping, nil); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Emit = %v, want ErrNotConnected", err)
	}
}

func TestDialPresentsBearerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.CloseNow()

		ctx := r.Context()
		for {
			_, b, err := c.Read(ctx)
			if err != nil {
				return
			}
			var f struct {
				Event string                  `json:"event"`
				Data  chat.SendMessagePayload `json:"data"`
			}
			if json.Unmarshal(b, &f) != nil || f.Event != chat.EventSendMessage {
				continue
			}
			echo, _ := json.Marshal(map[string]any{
				"event": chat.EventReceiveMessage,
				"data": chat.ReceiveMessagePayload{
					MessageID: "srv-1", SenderID: "u1", ReceiverID: f.Data.ReceiverID,
					Message: f.Data.Message, CreatedAt: time.Now(), MessageType: chat.TypeText,
				},
			})
			if err := c.Write(ctx, websocket.MessageText, echo); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	opts := Options{URL: srv.URL, Peer: "u2", Logger: zap.NewNop()}

	if _, err := Open(context.Background(), opts, "wrong"); err == nil {
		t.Fatal("Open with a bad token should fail")
	}

	m, err := Open(context.Background(), opts, "secret")
	if err != nil {
		t.Fatal(err)
	}
	got := make(chan chat.Message, 1)
	m.Subscribe(chat.EventReceiveMessage, func(data json.RawMessage) {
		msg, err := chat.DecodeReceive(data)
		if err == nil {
			got <- msg
		}
	})

	if err := m.Emit(context.Background(), chat.EventSendMessage, chat.SendMessagePayload{ReceiverID: "u2", Message: "hello"}); err != nil {
		t.Fatal(err)
	}
	select {
	case msg := <-got:
		if msg.ID != "srv-1" || msg.Content != "hello" {
			t.Errorf("echo = %+v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for echo")
	}
	_ = m.Close()
	if m.State() != status.Closed {
		t.Errorf("state = %s, want CLOSED", m.State())
	}
}

func TestDecodeFrame(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		event   string
		data    string
		wantErr bool
	}{
		{"payload", `{"event":"typing","data":{"senderId":"u2"}}`, "typing", `{"senderId":"u2"}`, false},
		{"no data", `{"event":"connect"}`, "connect", "", false},
		{"no event", `{"data":{}}`, "", "", true},
		{"numeric event", `{"event":3}`, "", "", true},
		{"garbage", `not json`, "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, data, err := decodeFrame([]byte(tt.in))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if event != tt.event || string(data) != tt.data {
				t.Errorf("got (%q, %s), want (%q, %s)", event, data, tt.event, tt.data)
			}
		})
	}
}

func TestBackoffGrowsAndCaps(t *testing.T) {
	b := &backoff{policy: ReconnectPolicy{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second, MaxAttempts: 5}}
	var last time.Duration
	for i := 0; i < 5; i++ {
		if !b.shouldRetry() {
			t.Fatalf("attempt %d: shouldRetry = false", i)
		}
		d := b.next()
		if d > time.Second {
			t.Errorf("delay %v exceeds max", d)
		}
		if i < 3 && d < last {
			t.Errorf("delay %v shrank from %v", d, last)
		}
		last = d
	}
	if b.shouldRetry() {
		t.Error("shouldRetry after MaxAttempts")
	}
}

package transport

import (
	"context"
	"fmt"
	"net/http"

	"github.com/coder/websocket"
)

// maxFrameSize bounds a single inbound frame.
const maxFrameSize = 64 << 10

// Conn is the subset of *websocket.Conn the manager uses. Tests substitute
// an in-memory implementation.
type Conn interface {
	Read(ctx context.Context) (websocket.MessageType, []byte, error)
	Write(ctx context.Context, typ websocket.MessageType, p []byte) error
	Close(code websocket.StatusCode, reason string) error
}

// DialFunc opens an authenticated connection to url.
type DialFunc func(ctx context.Context, url, token string) (Conn, error)

// Dial opens a websocket to url presenting token as a bearer credential
// during the upgrade handshake.
func Dial(ctx context.Context, url, token string) (Conn, error) {
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{ //nolint:bodyclose // websocket.Dial closes the response body internally
		HTTPHeader: http.Header{
			"Authorization": []string{"Bearer " + token},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("dialing websocket: %w", err)
	}
	conn.SetReadLimit(maxFrameSize)
	return conn, nil
}

// Package history fetches the stored messages of a conversation from the
// marketplace REST API.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gigboard/gigchat/internal/chat"
)

// DefaultTimeout bounds a history request when the caller sets none.
const DefaultTimeout = 15 * time.Second

// maxBody caps the response size read from the server.
const maxBody = 8 << 20

// ErrRejected is returned when the server answers with success=false.
var ErrRejected = errors.New("history request rejected")

// StatusError reports a non-200 response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("history: unexpected status %d", e.Code)
	}
	return fmt.Sprintf("history: unexpected status %d: %s", e.Code, e.Body)
}

// Client loads conversation history.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
}

// NewClient creates a client for the API rooted at baseURL.
func NewClient(baseURL string, timeout time.Duration, log *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

type wireMessage struct {
	MongoID     string    `json:"_id"`
	ID          string    `json:"id"`
	SenderID    string    `json:"senderId"`
	ReceiverID  string    `json:"receiverId"`
	Message     string    `json:"message"`
	CreatedAt   time.Time `json:"createdAt"`
	IsRead      bool      `json:"isRead"`
	MessageType string    `json:"messageType"`
}

type response struct {
	Success  bool          `json:"success"`
	Messages []wireMessage `json:"messages"`
	Message  string        `json:"message"`
}

// Load returns the conversation between selfID and otherID, newest first.
// Entries are confirmed; entries without an id get one derived from sender
// and timestamp.
func (c *Client) Load(ctx context.Context, selfID, otherID, token string) ([]chat.Message, error) {
	u := c.baseURL + "/chats/" + url.PathEscape(otherID) + "/" + url.PathEscape(selfID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var r response
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if !r.Success {
		if r.Message != "" {
			return nil, fmt.Errorf("%w: %s", ErrRejected, r.Message)
		}
		return nil, ErrRejected
	}

	msgs := make([]chat.Message, 0, len(r.Messages))
	for _, w := range r.Messages {
		m, ok := w.toMessage()
		if !ok {
			c.log.Debug("skipping malformed history entry", zap.String("id", w.ID+w.MongoID))
			continue
		}
		msgs = append(msgs, m)
	}
	slices.SortStableFunc(msgs, func(a, b chat.Message) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	c.log.Info("history loaded",
		zap.String("peer", otherID),
		zap.Int("messages", len(msgs)),
		zap.Duration("took", time.Since(start)),
	)
	return msgs, nil
}

func (w wireMessage) toMessage() (chat.Message, bool) {
	if w.SenderID == "" || w.CreatedAt.IsZero() {
		return chat.Message{}, false
	}
	id := w.MongoID
	if id == "" {
		id = w.ID
	}
	if id == "" {
		id = chat.DerivedID(w.SenderID, w.CreatedAt)
	}
	typ := w.MessageType
	if typ == "" {
		typ = chat.TypeText
	}
	return chat.Message{
		ID:          id,
		SenderID:    w.SenderID,
		ReceiverID:  w.ReceiverID,
		Content:     w.Message,
		MessageType: typ,
		CreatedAt:   w.CreatedAt,
		Status:      chat.Confirmed,
		IsRead:      w.IsRead,
	}, true
}

package chat

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxContentLength is the longest message body accepted, in characters.
const MaxContentLength = 2000

// TypeText is the only message type this client sends.
const TypeText = "text"

var (
	ErrEmptyMessage   = errors.New("message is empty")
	ErrMessageTooLong = fmt.Errorf("message exceeds %d characters", MaxContentLength)
)

// Message is a single entry of a 1:1 conversation timeline.
type Message struct {
	ID          string
	SenderID    string
	ReceiverID  string
	Content     string
	MessageType string
	CreatedAt   time.Time
	Status      Status
	IsRead      bool
}

// Conversation returns the unordered participant pair of the message.
func (m Message) Conversation() ConversationKey {
	return Key(m.SenderID, m.ReceiverID)
}

// IsOwn reports whether selfID authored the message.
func (m Message) IsOwn(selfID string) bool {
	return m.SenderID == selfID
}

// ConversationKey identifies a conversation independently of direction.
type ConversationKey struct {
	A, B string
}

// Key builds a normalized key so Key(a, b) == Key(b, a).
func Key(a, b string) ConversationKey {
	if b < a {
		a, b = b, a
	}
	return ConversationKey{A: a, B: b}
}

func (k ConversationKey) String() string {
	return k.A + ":" + k.B
}

// Has reports whether id participates in the conversation.
func (k ConversationKey) Has(id string) bool {
	return k.A == id || k.B == id
}

// ValidateContent checks an outgoing body before anything touches the
// network. The length limit applies to the normalized text that is sent.
func ValidateContent(content string) error {
	content = NormalizeContent(content)
	if content == "" {
		return ErrEmptyMessage
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return ErrMessageTooLong
	}
	return nil
}

// NormalizeContent is the form that is sent and compared with the echo.
func NormalizeContent(content string) string {
	return strings.TrimSpace(content)
}

package chat

import (
	"encoding/json"
	"fmt"
	"time"
)

// Real-time event names.
const (
	EventSendMessage    = "send-message"
	EventDeleteMessage  = "delete-message"
	EventTyping         = "typing"
	EventReceiveMessage = "receive-message"
	EventDisconnect     = "disconnect"
	EventConnectError   = "connect_error"
	EventConnect        = "connect"
)

// SendMessagePayload is emitted for every outgoing message.
type SendMessagePayload struct {
	ReceiverID string `json:"receiverId"`
	Message    string `json:"message"`
}

// DeleteMessagePayload is used in both directions.
type DeleteMessagePayload struct {
	MessageID string `json:"messageId"`
}

// TypingPayload carries receiverId outbound and senderId inbound.
type TypingPayload struct {
	ReceiverID string `json:"receiverId,omitempty"`
	SenderID   string `json:"senderId,omitempty"`
}

// ReceiveMessagePayload is a server-delivered message. MessageID is optional;
// when the server omits it an id is derived from sender and timestamp.
type ReceiveMessagePayload struct {
	MessageID   string    `json:"messageId,omitempty"`
	SenderID    string    `json:"senderId"`
	ReceiverID  string    `json:"receiverId"`
	Message     string    `json:"message"`
	CreatedAt   time.Time `json:"createdAt"`
	MessageType string    `json:"messageType"`
}

// LifecyclePayload accompanies the locally dispatched connection events.
type LifecyclePayload struct {
	Reason string `json:"reason"`
}

// DecodeReceive parses a receive-message payload into a confirmed Message.
func DecodeReceive(raw json.RawMessage) (Message, error) {
	var p ReceiveMessagePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Message{}, fmt.Errorf("decode %s: %w", EventReceiveMessage, err)
	}
	if p.SenderID == "" {
		return Message{}, fmt.Errorf("decode %s: missing senderId", EventReceiveMessage)
	}
	if p.CreatedAt.IsZero() {
		return Message{}, fmt.Errorf("decode %s: missing createdAt", EventReceiveMessage)
	}
	id := p.MessageID
	if id == "" {
		id = DerivedID(p.SenderID, p.CreatedAt)
	}
	msgType := p.MessageType
	if msgType == "" {
		msgType = TypeText
	}
	return Message{
		ID:          id,
		SenderID:    p.SenderID,
		ReceiverID:  p.ReceiverID,
		Content:     p.Message,
		MessageType: msgType,
		CreatedAt:   p.CreatedAt,
		Status:      Confirmed,
	}, nil
}

// DerivedID is the stable id of a server message delivered without one.
func DerivedID(senderID string, createdAt time.Time) string {
	return fmt.Sprintf("%s-%d", senderID, createdAt.UnixMilli())
}

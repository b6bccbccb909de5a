package api

import (
	"time"

	"github.com/gigboard/gigchat/internal/chat"
)

type StatusRequest struct{}

type StatusResponse struct {
	Profile    string       `json:"profile"`
	UserID     string       `json:"userId"`
	Peer       string       `json:"peer,omitempty"`
	Conn       string       `json:"conn"`
	History    string       `json:"history,omitempty"`
	PeerTyping bool         `json:"peerTyping,omitempty"`
	Messages   int          `json:"messages"`
	UptimeMs   int64        `json:"uptimeMs"`
	Outbox     OutboxCounts `json:"outbox"`
}

type OutboxCounts struct {
	Pending   int `json:"pending"`
	Confirmed int `json:"confirmed"`
	Failed    int `json:"failed"`
	Discarded int `json:"discarded"`
}

type OpenRequest struct {
	Peer string `json:"peer"`
}

type OpenResponse struct {
	Peer string `json:"peer"`
}

type TimelineRequest struct {
	Peer  string `json:"peer,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

type TimelineResponse struct {
	Peer    string   `json:"peer"`
	History string   `json:"history"`
	Buckets []Bucket `json:"buckets"`
}

// Bucket is one day of the timeline, newest message first.
type Bucket struct {
	Label    string    `json:"label"`
	Messages []Message `json:"messages"`
}

type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
	Status     string    `json:"status"`
	Own        bool      `json:"own"`
}

type SendRequest struct {
	Peer string `json:"peer,omitempty"`
	Text string `json:"text"`
}

// SendResponse reports the timeline entry created by a send. A failed
// emission still creates an entry, with Status "failed" and Error set.
type SendResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type MessageRequest struct {
	Peer      string `json:"peer,omitempty"`
	MessageID string `json:"messageId"`
}

type MessageResponse struct {
	MessageID string `json:"messageId"`
}

type ConversationsRequest struct {
	Limit int `json:"limit,omitempty"`
}

type ConversationsResponse struct {
	Conversations []Conversation `json:"conversations"`
}

type Conversation struct {
	PeerID        string    `json:"peerId"`
	LastOpenedAt  time.Time `json:"lastOpenedAt,omitzero"`
	LastMessageAt time.Time `json:"lastMessageAt,omitzero"`
	Preview       string    `json:"preview,omitempty"`
}

type WatchRequest struct {
	// Prefix filters event kinds, e.g. "notice." or "conn.". Empty matches all.
	Prefix string `json:"prefix,omitempty"`
}

// Event is one bus event as seen by a watcher.
type Event struct {
	ID       string    `json:"id"`
	Kind     string    `json:"kind"`
	Time     time.Time `json:"time"`
	Peer     string    `json:"peer,omitempty"`
	Text     string    `json:"text,omitempty"`
	Conn     string    `json:"conn,omitempty"`
	Typing   *bool     `json:"typing,omitempty"`
	Messages *int      `json:"messages,omitempty"`
}

func toWire(m chat.Message, self string) Message {
	return Message{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Content:    m.Content,
		CreatedAt:  m.CreatedAt,
		Status:     string(m.Status),
		Own:        m.IsOwn(self),
	}
}

package store

// OutboxStatus is the journal state of an outgoing message.
type OutboxStatus string

const (
	OutboxPending   OutboxStatus = "pending"
	OutboxConfirmed OutboxStatus = "confirmed"
	OutboxFailed    OutboxStatus = "failed"
	OutboxDiscarded OutboxStatus = "discarded"
)

// OutboxEntry is one journaled send.
type OutboxEntry struct {
	ID           int64
	ClientMsgID  string
	PeerID       string
	Body         string
	Status       OutboxStatus
	Attempts     int
	ServerMsgID  string
	ErrorMessage string
	CreatedAt    int64
	UpdatedAt    int64
}

// OutboxCounts tallies journal entries by status.
type OutboxCounts struct {
	Pending   int
	Confirmed int
	Failed    int
	Discarded int
}

// Conversation is a peer the user has talked to from this profile.
type Conversation struct {
	PeerID             string
	LastOpenedAt       int64
	LastMessageAt      int64
	LastMessagePreview string
}

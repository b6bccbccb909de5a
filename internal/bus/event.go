package bus

import "time"

// Event kinds. Subscribers filter by prefix, e.g. "notice." or "conn.".
const (
	KindConnStatus      = "conn.status_changed"
	KindConnLifecycle   = "conn.lifecycle"
	KindTimelineChanged = "timeline.changed"
	KindPeerTyping      = "timeline.peer_typing"
	KindNoticeInfo      = "notice.info"
	KindNoticeWarn      = "notice.warn"
	KindNoticeError     = "notice.error"
	KindViewMounted     = "view.mounted"
	KindViewUnmounted   = "view.unmounted"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Notice is the payload of notice.* events. Peer is empty for notices that
// do not belong to a conversation.
type Notice struct {
	Peer string
	Text string
}

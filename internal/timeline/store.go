package timeline

import (
	"errors"
	"slices"
	"time"

	"github.com/gigboard/gigchat/internal/chat"
)

// DefaultReconcileWindow bounds the clock distance between an optimistic
// message and the server echo that confirms it.
const DefaultReconcileWindow = 5 * time.Second

var (
	ErrDuplicateID = errors.New("message id already in timeline")
	ErrNotFound    = errors.New("message not in timeline")
)

// OutcomeKind says what Receive did with a server message.
type OutcomeKind int

const (
	// Inserted means the message was new and now sits at index 0.
	Inserted OutcomeKind = iota
	// Reconciled means a local pending entry was confirmed in place.
	Reconciled
	// Duplicate means the id was already present; nothing changed.
	Duplicate
	// Suppressed means the message was deleted locally before it arrived.
	Suppressed
)

func (k OutcomeKind) String() string {
	switch k {
	case Inserted:
		return "inserted"
	case Reconciled:
		return "reconciled"
	case Duplicate:
		return "duplicate"
	case Suppressed:
		return "suppressed"
	default:
		return "unknown"
	}
}

// Outcome describes the effect of Receive.
type Outcome struct {
	Kind OutcomeKind
	ID   string
	// PrevID is the provisional id replaced by a reconciliation.
	PrevID string
	// OrphanEcho is set when a suppressed echo belongs to a message the user
	// deleted before it was confirmed; its server copy must be deleted too.
	OrphanEcho bool
}

type pendingKey struct {
	sender  string
	content string
}

// Store is the ordered, deduplicated timeline of one conversation.
// It is not safe for concurrent use; the owning view serializes access.
type Store struct {
	window  time.Duration
	byID    map[string]*chat.Message
	order   []string // newest first
	pending map[pendingKey][]string

	// Ids removed by a delete. A late event for them is dropped.
	tombstones map[string]struct{}
	// Unconfirmed local messages deleted before their echo arrived.
	orphans map[pendingKey][]time.Time
}

// New creates an empty timeline. A non-positive window uses DefaultReconcileWindow.
func New(window time.Duration) *Store {
	if window <= 0 {
		window = DefaultReconcileWindow
	}
	return &Store{
		window:     window,
		byID:       make(map[string]*chat.Message),
		pending:    make(map[pendingKey][]string),
		tombstones: make(map[string]struct{}),
		orphans:    make(map[pendingKey][]time.Time),
	}
}

// Len returns the number of entries.
func (s *Store) Len() int {
	return len(s.order)
}

// Get returns a copy of the entry with the given id.
func (s *Store) Get(id string) (chat.Message, bool) {
	m, ok := s.byID[id]
	if !ok {
		return chat.Message{}, false
	}
	return *m, true
}

// Messages returns a newest-first copy of the timeline.
func (s *Store) Messages() []chat.Message {
	out := make([]chat.Message, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.byID[id])
	}
	return out
}

// LoadHistory appends already ordered (newest-first) history behind any live
// entries as confirmed messages. Known or tombstoned ids are skipped.
func (s *Store) LoadHistory(msgs []chat.Message) int {
	inserted := 0
	for _, m := range msgs {
		if m.ID == "" {
			continue
		}
		if _, ok := s.byID[m.ID]; ok {
			continue
		}
		if _, dead := s.tombstones[m.ID]; dead {
			continue
		}
		m.Status = chat.Confirmed
		s.byID[m.ID] = &m
		s.order = append(s.order, m.ID)
		inserted++
	}
	return inserted
}

// InsertPending puts an optimistic message at index 0.
func (s *Store) InsertPending(m chat.Message) error {
	if _, ok := s.byID[m.ID]; ok {
		return ErrDuplicateID
	}
	m.Status = chat.Pending
	s.byID[m.ID] = &m
	s.order = slices.Insert(s.order, 0, m.ID)
	s.indexPending(&m)
	return nil
}

// Receive applies a server message. Messages from selfID are first matched
// against local pending or failed entries and confirmed in place.
func (s *Store) Receive(m chat.Message, selfID string) Outcome {
	if _, dead := s.tombstones[m.ID]; dead {
		return Outcome{Kind: Suppressed, ID: m.ID}
	}
	if _, ok := s.byID[m.ID]; ok {
		return Outcome{Kind: Duplicate, ID: m.ID}
	}
	if m.SenderID == selfID {
		if prev, ok := s.matchPending(m); ok {
			s.confirm(prev, m)
			return Outcome{Kind: Reconciled, ID: m.ID, PrevID: prev}
		}
		if s.consumeOrphan(m) {
			s.tombstones[m.ID] = struct{}{}
			return Outcome{Kind: Suppressed, ID: m.ID, OrphanEcho: true}
		}
	}
	m.Status = chat.Confirmed
	s.byID[m.ID] = &m
	s.order = slices.Insert(s.order, 0, m.ID)
	return Outcome{Kind: Inserted, ID: m.ID}
}

// SetStatus moves an entry to a new status, enforcing the message state machine.
// Use Remove for deletions.
func (s *Store) SetStatus(id string, to chat.Status, at time.Time) error {
	m, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	if !chat.CanTransition(m.Status, to) || to == chat.Deleted {
		return &chat.TransitionError{ID: id, From: m.Status, To: to}
	}
	s.unindexPending(m)
	m.Status = to
	if to == chat.Pending && !at.IsZero() {
		m.CreatedAt = at
	}
	s.indexPending(m)
	return nil
}

// Remove deletes an entry and tombstones its id. It returns the removed
// message (status Deleted) and its former index so a failed delete can be
// rolled back with Restore. Removing an absent id reports false.
func (s *Store) Remove(id string) (chat.Message, int, bool) {
	m, ok := s.byID[id]
	if !ok {
		return chat.Message{}, -1, false
	}
	idx := slices.Index(s.order, id)
	s.order = slices.Delete(s.order, idx, idx+1)
	delete(s.byID, id)
	s.unindexPending(m)
	s.tombstones[id] = struct{}{}

	if m.Status == chat.Pending || m.Status == chat.Failed {
		key := keyOf(m)
		s.orphans[key] = append(s.orphans[key], m.CreatedAt)
	}

	removed := *m
	removed.Status = chat.Deleted
	return removed, idx, true
}

// Restore undoes a Remove. The entry keeps the status it had before removal.
func (s *Store) Restore(m chat.Message, idx int, prev chat.Status) error {
	if _, ok := s.byID[m.ID]; ok {
		return ErrDuplicateID
	}
	delete(s.tombstones, m.ID)
	m.Status = prev
	if idx < 0 || idx > len(s.order) {
		idx = 0
	}
	s.byID[m.ID] = &m
	s.order = slices.Insert(s.order, idx, m.ID)
	if prev == chat.Pending || prev == chat.Failed {
		key := keyOf(&m)
		s.orphans[key] = slices.DeleteFunc(s.orphans[key], func(t time.Time) bool { return t.Equal(m.CreatedAt) })
	}
	s.indexPending(&m)
	return nil
}

// Forget tombstones an id the store does not hold, so a later history load or
// echo carrying it is dropped. Held entries go through Remove.
func (s *Store) Forget(id string) {
	if _, ok := s.byID[id]; ok || id == "" {
		return
	}
	s.tombstones[id] = struct{}{}
}

// Tombstoned reports whether id was deleted during the life of the store.
func (s *Store) Tombstoned(id string) bool {
	_, ok := s.tombstones[id]
	return ok
}

func (s *Store) confirm(prevID string, echo chat.Message) {
	m := s.byID[prevID]
	s.unindexPending(m)
	delete(s.byID, prevID)

	m.ID = echo.ID
	m.CreatedAt = echo.CreatedAt
	m.Status = chat.Confirmed
	if echo.MessageType != "" {
		m.MessageType = echo.MessageType
	}
	s.byID[m.ID] = m

	if idx := slices.Index(s.order, prevID); idx >= 0 {
		s.order[idx] = m.ID
	}
}

// matchPending picks the earliest unconfirmed local entry with the same
// sender and content whose timestamp is within the window of the echo.
func (s *Store) matchPending(echo chat.Message) (string, bool) {
	var (
		best   string
		bestAt time.Time
	)
	for _, id := range s.pending[keyOf(&echo)] {
		m := s.byID[id]
		if !within(m.CreatedAt, echo.CreatedAt, s.window) {
			continue
		}
		if best == "" || m.CreatedAt.Before(bestAt) {
			best, bestAt = id, m.CreatedAt
		}
	}
	return best, best != ""
}

func (s *Store) consumeOrphan(echo chat.Message) bool {
	key := keyOf(&echo)
	for i, at := range s.orphans[key] {
		if within(at, echo.CreatedAt, s.window) {
			s.orphans[key] = slices.Delete(s.orphans[key], i, i+1)
			if len(s.orphans[key]) == 0 {
				delete(s.orphans, key)
			}
			return true
		}
	}
	return false
}

func (s *Store) indexPending(m *chat.Message) {
	if m.Status != chat.Pending && m.Status != chat.Failed {
		return
	}
	key := keyOf(m)
	if !slices.Contains(s.pending[key], m.ID) {
		s.pending[key] = append(s.pending[key], m.ID)
	}
}

func (s *Store) unindexPending(m *chat.Message) {
	key := keyOf(m)
	ids := slices.DeleteFunc(s.pending[key], func(id string) bool { return id == m.ID })
	if len(ids) == 0 {
		delete(s.pending, key)
		return
	}
	s.pending[key] = ids
}

func keyOf(m *chat.Message) pendingKey {
	return pendingKey{sender: m.SenderID, content: chat.NormalizeContent(m.Content)}
}

func within(a, b time.Time, window time.Duration) bool {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return d <= window
}

package chat

import (
	"fmt"
	"slices"
)

// Status is the lifecycle state of a timeline entry.
type Status string

const (
	Pending   Status = "pending"
	Confirmed Status = "confirmed"
	Failed    Status = "failed"
	Deleted   Status = "deleted"
)

var validTransitions = map[Status][]Status{
	Pending:   {Confirmed, Failed, Deleted},
	Failed:    {Pending, Confirmed, Deleted},
	Confirmed: {Deleted},
	Deleted:   {},
}

// CanTransition reports whether a message may move from one status to another.
func CanTransition(from, to Status) bool {
	return slices.Contains(validTransitions[from], to)
}

// TransitionError is returned when a status change is not allowed.
type TransitionError struct {
	ID       string
	From, To Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("message %s: invalid transition from %s to %s", e.ID, e.From, e.To)
}

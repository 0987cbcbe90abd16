package models

type Status string

const (
	StatusActive    Status = "active"
	StatusExecuted  Status = "executed"
	StatusDiscarded Status = "discarded"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusExecuted, StatusDiscarded:
		return true
	}
	return false
}

// Terminal statuses accept no further changes.
func (s Status) Terminal() bool {
	return s == StatusExecuted || s == StatusDiscarded
}

// CanTransitionTo reports whether moving from s to next is a legal edge.
// Staying in the same status is always allowed.
func (s Status) CanTransitionTo(next Status) bool {
	if s == next {
		return true
	}
	return s == StatusActive && next.Terminal()
}

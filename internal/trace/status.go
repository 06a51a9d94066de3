package trace

// Status is the lifecycle state of an Execution.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusTimeout   Status = "timeout"
)

// Terminal reports whether no further status transition is permitted.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusTimeout:
		return true
	default:
		return false
	}
}

// allowedTransitions encodes pending -> running -> {completed, failed,
// timeout}. A fresh run may also fail or time out before its
// execution_start arrives (e.g. the stream never opens).
var allowedTransitions = map[Status][]Status{
	StatusPending: {StatusRunning, StatusFailed, StatusTimeout},
	StatusRunning: {StatusCompleted, StatusFailed, StatusTimeout},
}

// CanTransition reports whether from -> to is a legal status change.
func CanTransition(from, to Status) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IterationStatus is derived from an iteration's fields, never stored.
type IterationStatus string

const (
	IterationPending IterationStatus = "pending"
	IterationRunning IterationStatus = "running"
	IterationError   IterationStatus = "error"
	IterationFinal   IterationStatus = "final"
)

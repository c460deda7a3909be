package model

// Status is an order lifecycle state.
type Status string

const (
	StatusCreated    Status = "created"
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusPartial    Status = "partial"
	StatusExecuted   Status = "executed"
	StatusRejected   Status = "rejected"
	StatusCancelled  Status = "cancelled"
)

// Event is a lifecycle trigger applied to an order.
type Event string

const (
	EventAdmit           Event = "admit"
	EventReject          Event = "reject"
	EventStartProcessing Event = "start_processing"
	EventExecute         Event = "execute"
	EventPartialFill     Event = "partial_fill"
	EventCancel          Event = "cancel"
)

// transitions is the complete state machine table. Every (state, event) pair
// not present here is a conflict, including every event against a terminal
// state. Partial orders re-enter processing when the next fill arrives.
var transitions = map[Status]map[Event]Status{
	StatusCreated: {
		EventAdmit:  StatusQueued,
		EventReject: StatusRejected,
		EventCancel: StatusCancelled,
	},
	StatusQueued: {
		EventStartProcessing: StatusProcessing,
		EventCancel:          StatusCancelled,
	},
	StatusProcessing: {
		EventExecute:     StatusExecuted,
		EventPartialFill: StatusPartial,
	},
	StatusPartial: {
		EventStartProcessing: StatusProcessing,
	},
}

// Next resolves the successor state for an event. ok is false when the pair
// is undefined; the caller surfaces that as a ConflictError.
func Next(current Status, event Event) (next Status, ok bool) {
	byEvent, found := transitions[current]
	if !found {
		return current, false
	}
	next, ok = byEvent[event]
	if !ok {
		return current, false
	}
	return next, true
}

// Terminal reports whether no further transition is permitted from s.
func (s Status) Terminal() bool {
	switch s {
	case StatusExecuted, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

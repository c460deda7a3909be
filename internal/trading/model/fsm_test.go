package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var allStatuses = []Status{
	StatusCreated, StatusQueued, StatusProcessing, StatusPartial,
	StatusExecuted, StatusRejected, StatusCancelled,
}

var allEvents = []Event{
	EventAdmit, EventReject, EventStartProcessing,
	EventExecute, EventPartialFill, EventCancel,
}

// TestTransitionTableIsExhaustive pins the behavior of every (state, event)
// pair: the defined transitions resolve, everything else is a conflict.
func TestTransitionTableIsExhaustive(t *testing.T) {
	defined := map[Status]map[Event]Status{
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

	for _, status := range allStatuses {
		for _, event := range allEvents {
			next, ok := Next(status, event)
			want, expected := defined[status][event]
			if expected {
				assert.True(t, ok, "%s + %s should transition", status, event)
				assert.Equal(t, want, next, "%s + %s", status, event)
			} else {
				assert.False(t, ok, "%s + %s should conflict", status, event)
				assert.Equal(t, status, next, "a conflict must not change state")
			}
		}
	}
}

func TestTerminalStatesAcceptNoEvents(t *testing.T) {
	for _, status := range []Status{StatusExecuted, StatusRejected, StatusCancelled} {
		assert.True(t, status.Terminal())
		for _, event := range allEvents {
			_, ok := Next(status, event)
			assert.False(t, ok, "terminal state %s accepted event %s", status, event)
		}
	}
	for _, status := range []Status{StatusCreated, StatusQueued, StatusProcessing, StatusPartial} {
		assert.False(t, status.Terminal())
	}
}

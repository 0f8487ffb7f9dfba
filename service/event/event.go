package event

import (
	"time"

	"github.com/stackjob/stackjob/job"
)

// Transition describes one applied job state change.
type Transition struct {
	JobID   string    `json:"jobId"`
	Event   job.Event `json:"event"`
	From    job.State `json:"from"`
	To      job.State `json:"to"`
	Message string    `json:"message,omitempty"`
}

// Event wraps a transition with its emission time.
type Event struct {
	CreatedAt time.Time  `json:"createdAt"`
	Data      Transition `json:"data"`
}

// NewEvent creates an event for a transition.
func NewEvent(data Transition) *Event {
	return &Event{CreatedAt: time.Now(), Data: data}
}

package job

import "time"

// Signal is one queued state transition request: the discrete unit of work
// dispatched through the durable queue. A future DeliverOn suspends the
// transition without blocking a worker.
type Signal struct {
	JobID   string `json:"jobId"`
	Event   Event  `json:"event"`
	Message string `json:"message,omitempty"`
	Status  Status `json:"status,omitempty"`

	DeliverOn *time.Time `json:"deliverOn,omitempty"`

	Role     string `json:"role,omitempty"`
	Priority int    `json:"priority,omitempty"`
}

// DeliverAfter implements the messaging delayed-delivery contract.
func (s Signal) DeliverAfter() time.Time {
	if s.DeliverOn == nil {
		return time.Time{}
	}
	return *s.DeliverOn
}

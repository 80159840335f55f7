package processing

import (
	"time"

	"github.com/open-teleop/vrteleop/pkg/rosmsg"
)

// Event kinds produced by the teleop service
const (
	EventActionRequested = "action.requested"
	EventActionResult    = "action.result"
	EventVelocity        = "velocity"
)

// Event is a unit of work for the pool: something the teleop loop wants
// reported outside the control path.
type Event struct {
	Kind      string      `json:"kind"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// ActionEvent describes a remote action call, either when it is sent
// (Requested) or when its response arrives (Result).
type ActionEvent struct {
	CallID      string    `json:"call_id"`
	Action      string    `json:"action"`
	Service     string    `json:"service"`
	Success     bool      `json:"success"`
	Message     string    `json:"message,omitempty"`
	Error       string    `json:"error,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
	RespondedAt time.Time `json:"responded_at,omitempty"`
}

// VelocityEvent is an emitted velocity command together with the cycle
// phase that produced it.
type VelocityEvent struct {
	Phase   string       `json:"phase"`
	Command rosmsg.Twist `json:"command"`
}

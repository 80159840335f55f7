package teleop

import (
	"github.com/open-teleop/vrteleop/pkg/rosmsg"
)

// ServiceCallback receives the outcome of a remote call. It runs on the
// bridge's goroutine.
type ServiceCallback = func(resp rosmsg.TriggerResponse, err error)

// ActionInvoker issues fire-and-forget remote calls. CallService must not
// block waiting for the response.
type ActionInvoker interface {
	CallService(callID, service string, done ServiceCallback) error
}

// VelocityPublisher sends velocity commands on the robot's velocity channel.
type VelocityPublisher interface {
	PublishVelocity(cmd rosmsg.Twist) error
}

// Bridge is the middleware connection used by the service.
type Bridge interface {
	ActionInvoker
	VelocityPublisher
}

// Package rosmsg holds the ROS message shapes exchanged with the bridge.
package rosmsg

import (
	"github.com/golang/geo/r3"
)

// Vector3 mirrors geometry_msgs/Vector3.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// FromR3 converts an r3.Vector into a Vector3.
func FromR3(v r3.Vector) Vector3 {
	return Vector3{X: v.X, Y: v.Y, Z: v.Z}
}

// R3 converts the message vector into an r3.Vector.
func (v Vector3) R3() r3.Vector {
	return r3.Vector{X: v.X, Y: v.Y, Z: v.Z}
}

// Twist mirrors geometry_msgs/Twist, the velocity command sent to the robot.
type Twist struct {
	Linear  Vector3 `json:"linear"`
	Angular Vector3 `json:"angular"`
}

// TriggerResponse mirrors the response half of std_srvs/Trigger.
type TriggerResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

package api

import (
	"github.com/golang/geo/r3"

	"github.com/open-teleop/vrteleop/pkg/input"
)

// --- Data Structures for WebSocket Messages ---

// Vector3 defines a standard 3D vector.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// ControllerMsg is one handheld device as reported by the headset.
type ControllerMsg struct {
	Connected bool `json:"connected"`
	Primary   bool `json:"primary"`
	Secondary bool `json:"secondary"`
	Trigger   bool `json:"trigger"`
}

// InputMsg is one input report from the headset. Omitted parts keep their
// previous value.
type InputMsg struct {
	Left     *ControllerMsg `json:"left,omitempty"`
	Right    *ControllerMsg `json:"right,omitempty"`
	Position *Vector3       `json:"position,omitempty"`
}

// Frame converts the message into an input frame.
func (m InputMsg) Frame() input.Frame {
	var f input.Frame
	if m.Left != nil {
		f.Left = m.Left.device()
	}
	if m.Right != nil {
		f.Right = m.Right.device()
	}
	if m.Position != nil {
		f.Position = &r3.Vector{X: m.Position.X, Y: m.Position.Y, Z: m.Position.Z}
	}
	return f
}

func (c ControllerMsg) device() *input.Device {
	return &input.Device{
		Connected: c.Connected,
		Buttons: input.Buttons{
			Primary:   c.Primary,
			Secondary: c.Secondary,
			Trigger:   c.Trigger,
		},
	}
}

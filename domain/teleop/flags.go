package teleop

// MotionFlags is written by the CommandTrigger once per frame and read by the
// MotionShaper once per tick. Both run on the service goroutine.
type MotionFlags struct {
	Standing      bool `json:"standing"`
	TurnLeft      bool `json:"turn_left"`
	TurnRight     bool `json:"turn_right"`
	PauseMovement bool `json:"pause_movement"`
}

// MovementEnabled reports whether velocity commands may be emitted.
func (f MotionFlags) MovementEnabled() bool {
	return f.Standing && !f.PauseMovement
}

// ToggleState holds the local view of the robot's discrete modes. Each field
// flips only on a press-edge of its button and never follows remote
// responses.
type ToggleState struct {
	Sitting     bool `json:"sitting"`
	ArmOut      bool `json:"arm_out"`
	GripperOpen bool `json:"gripper_open"`
}

// EdgeMemory is last frame's reading of the edge-triggered buttons.
type EdgeMemory struct {
	PrevA            bool
	PrevB            bool
	PrevRightTrigger bool
}

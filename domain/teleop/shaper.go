package teleop

import (
	"math"
	"time"

	"github.com/golang/geo/r3"

	"github.com/open-teleop/vrteleop/pkg/config"
	customlog "github.com/open-teleop/vrteleop/pkg/log"
	"github.com/open-teleop/vrteleop/pkg/rosmsg"
)

// Cycle layout of the shaper, in ticks.
const (
	CycleLength    = 10
	AngularOnlyAt  = 5
	defaultDivisor = 5
)

// Phase is the step of the shaping cycle a tick landed on.
type Phase int

const (
	// PhaseAccumulate ticks only integrate velocity.
	PhaseAccumulate Phase = iota
	// PhaseAngularOnly emits the latched angular command with zero linear.
	PhaseAngularOnly
	// PhaseFullEmit emits smoothed linear and angular, then restarts the cycle.
	PhaseFullEmit
)

func (p Phase) String() string {
	switch p {
	case PhaseAccumulate:
		return "accumulate"
	case PhaseAngularOnly:
		return "angular_only"
	case PhaseFullEmit:
		return "full_emit"
	default:
		return "unknown"
	}
}

// FrameConverter maps a vector from the tracking frame into the robot frame.
type FrameConverter func(v r3.Vector) r3.Vector

// UnityToROS converts a left-handed Y-up vector (Z forward) to the robot's
// right-handed Z-up frame (X forward).
func UnityToROS(v r3.Vector) r3.Vector {
	return r3.Vector{X: v.Z, Y: -v.X, Z: v.Y}
}

// Identity leaves vectors unchanged, for poses already in the robot frame.
func Identity(v r3.Vector) r3.Vector {
	return v
}

// ConverterFor returns the converter for a configured tracking frame.
func ConverterFor(frame string) FrameConverter {
	if frame == config.FrameROS {
		return Identity
	}
	return UnityToROS
}

// ShaperConfig tunes the MotionShaper.
type ShaperConfig struct {
	TickDuration     time.Duration
	TurnRate         float64
	SmoothingDivisor float64
	MaxLinear        float64
	Convert          FrameConverter
}

// TickResult describes what one Tick did.
type TickResult struct {
	Phase   Phase
	Counter int
	// Emitted is true when the command was handed to the publisher.
	Emitted bool
	Command rosmsg.Twist
	Err     error
}

// MotionShaper derives velocity commands from a tracked position sampled on
// a fixed timestep.
type MotionShaper struct {
	cfg       ShaperConfig
	flags     *MotionFlags
	publisher VelocityPublisher
	logger    customlog.Logger

	previous r3.Vector
	velocity r3.Vector
	angularZ float64
	counter  int
}

// NewMotionShaper creates a shaper reading flags and publishing through
// publisher. The previous position starts at the origin.
func NewMotionShaper(cfg ShaperConfig, flags *MotionFlags, publisher VelocityPublisher, logger customlog.Logger) *MotionShaper {
	if cfg.SmoothingDivisor == 0 {
		cfg.SmoothingDivisor = defaultDivisor
	}
	if cfg.MaxLinear == 0 {
		cfg.MaxLinear = 1
	}
	if cfg.Convert == nil {
		cfg.Convert = Identity
	}
	return &MotionShaper{
		cfg:       cfg,
		flags:     flags,
		publisher: publisher,
		logger:    logger,
	}
}

// Counter returns the position in the current cycle, in [0, CycleLength).
func (m *MotionShaper) Counter() int {
	return m.counter
}

// Tick advances the shaper by one fixed timestep using the current position.
func (m *MotionShaper) Tick(pos r3.Vector) TickResult {
	if m.counter == 0 {
		m.velocity = r3.Vector{}
		m.angularZ = 0
	}

	// Unguarded: a zero tick duration yields Inf/NaN.
	dt := m.cfg.TickDuration.Seconds()
	delta := pos.Sub(m.previous)
	m.velocity = m.velocity.Add(r3.Vector{X: delta.X / dt, Y: delta.Y / dt, Z: delta.Z / dt})
	m.previous = pos

	// left wins when both turn buttons are held
	if m.flags.TurnRight {
		m.angularZ = -m.cfg.TurnRate
	}
	if m.flags.TurnLeft {
		m.angularZ = m.cfg.TurnRate
	}

	m.counter++

	res := TickResult{Phase: PhaseAccumulate, Counter: m.counter}
	switch m.counter {
	case CycleLength:
		res.Phase = PhaseFullEmit
		d := m.cfg.SmoothingDivisor
		smoothed := r3.Vector{X: m.velocity.X / d, Y: m.velocity.Y / d, Z: m.velocity.Z / d}
		robot := m.cfg.Convert(smoothed)
		res.Command = rosmsg.Twist{
			Linear: rosmsg.Vector3{
				X: m.limit(round1(robot.X)),
				Y: m.limit(round1(robot.Y)),
			},
			Angular: rosmsg.Vector3{Z: m.angularZ},
		}
		m.emit(&res)
		m.counter = 0
	case AngularOnlyAt:
		res.Phase = PhaseAngularOnly
		res.Command = rosmsg.Twist{Angular: rosmsg.Vector3{Z: m.angularZ}}
		m.emit(&res)
	}
	return res
}

func (m *MotionShaper) emit(res *TickResult) {
	if !m.flags.MovementEnabled() {
		return
	}
	res.Emitted = true
	if err := m.publisher.PublishVelocity(res.Command); err != nil {
		m.logger.Warnf("Failed to publish %s velocity: %v", res.Phase, err)
		res.Err = err
	}
}

func (m *MotionShaper) limit(v float64) float64 {
	return math.Max(-m.cfg.MaxLinear, math.Min(m.cfg.MaxLinear, v))
}

// round1 rounds to one decimal, ties to even.
func round1(v float64) float64 {
	return math.RoundToEven(v*10) / 10
}

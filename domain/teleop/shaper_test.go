package teleop

import (
	"testing"
	"time"

	"github.com/golang/geo/r3"

	"github.com/open-teleop/vrteleop/pkg/rosmsg"
)

func newTestShaper(convert FrameConverter, flags *MotionFlags, bridge *fakeBridge) *MotionShaper {
	return NewMotionShaper(ShaperConfig{
		TickDuration:     20 * time.Millisecond,
		TurnRate:         1.5,
		SmoothingDivisor: 5,
		MaxLinear:        1,
		Convert:          convert,
	}, flags, bridge, quietLogger())
}

func TestEmissionScheduleOverTwoCycles(t *testing.T) {
	bridge := &fakeBridge{}
	flags := MotionFlags{Standing: true}
	shaper := newTestShaper(Identity, &flags, bridge)

	for tick := 1; tick <= 20; tick++ {
		res := shaper.Tick(r3.Vector{})
		switch tick {
		case 5, 15:
			if res.Phase != PhaseAngularOnly || !res.Emitted {
				t.Errorf("Tick %d: expected angular-only emission, got %+v", tick, res)
			}
		case 10, 20:
			if res.Phase != PhaseFullEmit || !res.Emitted {
				t.Errorf("Tick %d: expected full emission, got %+v", tick, res)
			}
		default:
			if res.Phase != PhaseAccumulate || res.Emitted {
				t.Errorf("Tick %d: expected no emission, got %+v", tick, res)
			}
		}
	}

	if n := len(bridge.published); n != 4 {
		t.Errorf("Expected 4 commands over two cycles, got %d", n)
	}
	if shaper.Counter() != 0 {
		t.Errorf("Counter should be back at 0, got %d", shaper.Counter())
	}
}

func TestNoEmissionWhenSittingOrPaused(t *testing.T) {
	for _, flags := range []MotionFlags{
		{Standing: false},
		{Standing: true, PauseMovement: true},
		{Standing: false, PauseMovement: true, TurnLeft: true},
	} {
		bridge := &fakeBridge{}
		f := flags
		shaper := newTestShaper(Identity, &f, bridge)

		for tick := 0; tick < 30; tick++ {
			if res := shaper.Tick(r3.Vector{X: float64(tick)}); res.Emitted {
				t.Errorf("flags %+v: unexpected emission at tick %d", flags, tick)
			}
		}
		if len(bridge.published) != 0 {
			t.Errorf("flags %+v: expected no commands, got %d", flags, len(bridge.published))
		}
	}
}

func TestConstantPoseYieldsZeroLinear(t *testing.T) {
	bridge := &fakeBridge{}
	flags := MotionFlags{Standing: true}
	shaper := newTestShaper(UnityToROS, &flags, bridge)

	pos := r3.Vector{X: 0.3, Y: 1.2, Z: -0.4}
	// the first cycle sees the jump from the origin
	for i := 0; i < CycleLength; i++ {
		shaper.Tick(pos)
	}

	var last TickResult
	for i := 0; i < CycleLength; i++ {
		last = shaper.Tick(pos)
	}
	if last.Phase != PhaseFullEmit {
		t.Fatalf("Expected full emission, got %v", last.Phase)
	}
	if last.Command.Linear != (rosmsg.Vector3{}) {
		t.Errorf("Expected zero linear, got %+v", last.Command.Linear)
	}
}

func TestLinearClampScenario(t *testing.T) {
	cases := []struct {
		name    string
		convert FrameConverter
		step    r3.Vector
		want    rosmsg.Vector3
	}{
		{"robot frame forward", Identity, r3.Vector{X: 2.5}, rosmsg.Vector3{X: 1}},
		{"tracking frame forward", UnityToROS, r3.Vector{Z: 2.5}, rosmsg.Vector3{X: 1}},
		{"tracking frame right", UnityToROS, r3.Vector{X: 2.5}, rosmsg.Vector3{Y: -1}},
		{"tracking frame up is dropped", UnityToROS, r3.Vector{Y: 2.5}, rosmsg.Vector3{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			bridge := &fakeBridge{}
			flags := MotionFlags{Standing: true}
			shaper := newTestShaper(tc.convert, &flags, bridge)

			var res TickResult
			for i := 1; i <= CycleLength; i++ {
				res = shaper.Tick(tc.step.Mul(float64(i)))
			}
			if res.Phase != PhaseFullEmit || !res.Emitted {
				t.Fatalf("Expected full emission, got %+v", res)
			}
			if res.Command.Linear != tc.want {
				t.Errorf("Expected linear %+v, got %+v", tc.want, res.Command.Linear)
			}
		})
	}
}

func TestRoundingTiesToEven(t *testing.T) {
	cases := []struct {
		displacement float64
		want         float64
	}{
		{1.25, 0.2},
		{-1.25, -0.2},
		{3.75, 0.8},
		{0.2, 0},
	}

	for _, tc := range cases {
		bridge := &fakeBridge{}
		flags := MotionFlags{Standing: true}
		shaper := NewMotionShaper(ShaperConfig{
			TickDuration:     time.Second,
			SmoothingDivisor: 5,
			MaxLinear:        1,
		}, &flags, bridge, quietLogger())

		pos := r3.Vector{X: tc.displacement}
		var res TickResult
		for i := 0; i < CycleLength; i++ {
			res = shaper.Tick(pos)
		}
		if res.Command.Linear.X != tc.want {
			t.Errorf("displacement %v: expected %v, got %v", tc.displacement, tc.want, res.Command.Linear.X)
		}
	}
}

func TestTurnPrecedenceAndLatch(t *testing.T) {
	bridge := &fakeBridge{}
	flags := MotionFlags{Standing: true}
	shaper := newTestShaper(Identity, &flags, bridge)

	// both held: left wins
	flags.TurnLeft, flags.TurnRight = true, true
	shaper.Tick(r3.Vector{})
	flags.TurnLeft, flags.TurnRight = false, false

	var res TickResult
	for i := 0; i < 4; i++ {
		res = shaper.Tick(r3.Vector{})
	}
	if res.Phase != PhaseAngularOnly || res.Command.Angular.Z != 1.5 {
		t.Fatalf("Expected latched +1.5 at tick 5, got %+v", res)
	}
	if res.Command.Linear != (rosmsg.Vector3{}) {
		t.Errorf("Angular-only phase must zero linear, got %+v", res.Command.Linear)
	}

	// right only, still inside the cycle
	flags.TurnRight = true
	for i := 0; i < 5; i++ {
		res = shaper.Tick(r3.Vector{})
	}
	if res.Phase != PhaseFullEmit || res.Command.Angular.Z != -1.5 {
		t.Fatalf("Expected -1.5 at tick 10, got %+v", res)
	}

	// released: reset at cycle start
	flags.TurnRight = false
	for i := 0; i < 5; i++ {
		res = shaper.Tick(r3.Vector{})
	}
	if res.Command.Angular.Z != 0 {
		t.Errorf("Angular should reset with the new cycle, got %v", res.Command.Angular.Z)
	}
}

func TestPublishErrorIsReported(t *testing.T) {
	bridge := &fakeBridge{publishErr: ErrTestPublish}
	flags := MotionFlags{Standing: true}
	shaper := newTestShaper(Identity, &flags, bridge)

	var res TickResult
	for i := 0; i < AngularOnlyAt; i++ {
		res = shaper.Tick(r3.Vector{})
	}
	if !res.Emitted || res.Err != ErrTestPublish {
		t.Errorf("Expected emission with publish error, got %+v", res)
	}
	if shaper.Counter() != AngularOnlyAt {
		t.Errorf("Publish errors must not disturb the cycle")
	}
}

func TestZeroTickDurationDoesNotPanic(t *testing.T) {
	flags := MotionFlags{Standing: true}
	shaper := NewMotionShaper(ShaperConfig{}, &flags, &fakeBridge{}, quietLogger())

	var res TickResult
	for i := 0; i < CycleLength; i++ {
		res = shaper.Tick(r3.Vector{X: float64(i)})
	}
	if !res.Emitted {
		t.Errorf("Degenerate input is still emitted")
	}
}

func TestConverterFor(t *testing.T) {
	v := r3.Vector{X: 1, Y: 2, Z: 3}
	if got := ConverterFor("ros")(v); got != v {
		t.Errorf("ros frame should be identity, got %v", got)
	}
	if got := ConverterFor("unity")(v); got != (r3.Vector{X: 3, Y: -1, Z: 2}) {
		t.Errorf("Unexpected unity conversion: %v", got)
	}
}

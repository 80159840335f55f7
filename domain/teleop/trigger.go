package teleop

import (
	"time"

	"github.com/google/uuid"

	"github.com/open-teleop/vrteleop/pkg/config"
	"github.com/open-teleop/vrteleop/pkg/input"
	customlog "github.com/open-teleop/vrteleop/pkg/log"
	"github.com/open-teleop/vrteleop/pkg/rosmsg"
)

// ActionCall is a remote action issued on a press-edge.
type ActionCall struct {
	CallID      string
	Action      string
	Service     string
	RequestedAt time.Time
	// SendErr is set when the call could not be handed to the bridge.
	SendErr error
}

// ActionResult is the outcome of an ActionCall, delivered asynchronously.
type ActionResult struct {
	Call        ActionCall
	Response    rosmsg.TriggerResponse
	Err         error
	RespondedAt time.Time
}

// CommandTrigger turns controller buttons into remote actions and motion
// flags. Call Update once per frame from a single goroutine.
type CommandTrigger struct {
	invoker  ActionInvoker
	services map[string]string
	flags    *MotionFlags
	toggles  ToggleState
	edges    EdgeMemory
	onResult func(ActionResult)
	logger   customlog.Logger
}

// NewCommandTrigger creates a trigger writing into flags. services maps
// action keys to service names; unmapped actions use the key itself.
func NewCommandTrigger(invoker ActionInvoker, services map[string]string, flags *MotionFlags, logger customlog.Logger) *CommandTrigger {
	t := &CommandTrigger{
		invoker:  invoker,
		services: services,
		flags:    flags,
		logger:   logger,
	}
	flags.Standing = !t.toggles.Sitting
	return t
}

// OnResult sets where call results go. Without it results are only logged.
// Must be set before the first Update.
func (t *CommandTrigger) OnResult(fn func(ActionResult)) {
	t.onResult = fn
}

// Toggles returns the current toggle state.
func (t *CommandTrigger) Toggles() ToggleState {
	return t.toggles
}

// Edges returns the button readings remembered from the last frame.
func (t *CommandTrigger) Edges() EdgeMemory {
	return t.edges
}

// Update processes one frame of controller input and returns the remote
// calls it issued.
func (t *CommandTrigger) Update(snap input.ControllerSnapshot) []ActionCall {
	a := snap.Right.Primary
	b := snap.Right.Secondary
	rightTrigger := snap.Right.Trigger

	var calls []ActionCall

	if a && !t.edges.PrevA {
		t.toggles.Sitting = !t.toggles.Sitting
		if t.toggles.Sitting {
			calls = append(calls, t.invoke(config.ActionSit))
		} else {
			calls = append(calls, t.invoke(config.ActionStand))
		}
	}

	if b && !t.edges.PrevB {
		t.toggles.ArmOut = !t.toggles.ArmOut
		if t.toggles.ArmOut {
			calls = append(calls, t.invoke(config.ActionArmUnstow))
		} else {
			calls = append(calls, t.invoke(config.ActionArmStow))
		}
	}

	if rightTrigger && !t.edges.PrevRightTrigger {
		t.toggles.GripperOpen = !t.toggles.GripperOpen
		if t.toggles.GripperOpen {
			calls = append(calls, t.invoke(config.ActionOpenGripper))
		} else {
			calls = append(calls, t.invoke(config.ActionCloseGripper))
		}
	}

	t.flags.TurnLeft = snap.Left.Primary
	t.flags.TurnRight = snap.Left.Secondary
	t.flags.PauseMovement = snap.Left.Trigger
	t.flags.Standing = !t.toggles.Sitting

	t.edges = EdgeMemory{PrevA: a, PrevB: b, PrevRightTrigger: rightTrigger}
	return calls
}

func (t *CommandTrigger) invoke(action string) ActionCall {
	service := t.services[action]
	if service == "" {
		service = action
	}

	call := ActionCall{
		CallID:      uuid.NewString(),
		Action:      action,
		Service:     service,
		RequestedAt: time.Now(),
	}

	t.logger.Infof("Calling %s", service)
	err := t.invoker.CallService(call.CallID, service, func(resp rosmsg.TriggerResponse, err error) {
		t.deliver(ActionResult{
			Call:        call,
			Response:    resp,
			Err:         err,
			RespondedAt: time.Now(),
		})
	})
	if err != nil {
		// no retry; the toggle keeps its new value
		t.logger.Warnf("Failed to call %s: %v", service, err)
		call.SendErr = err
	}
	return call
}

func (t *CommandTrigger) deliver(r ActionResult) {
	if t.onResult != nil {
		t.onResult(r)
		return
	}
	LogResult(t.logger, r)
}

// LogResult writes the outcome of a remote call to the log.
func LogResult(logger customlog.Logger, r ActionResult) {
	if r.Err != nil {
		logger.Warnf("%s call failed: %v", r.Call.Service, r.Err)
		return
	}
	logger.Infof("%s Response: %t", r.Call.Service, r.Response.Success)
	if r.Response.Message != "" {
		logger.Debugf("%s message: %s", r.Call.Service, r.Response.Message)
	}
}

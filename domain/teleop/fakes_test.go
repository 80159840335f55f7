package teleop

import (
	"errors"
	"io"
	"sync"

	"github.com/golang/geo/r3"

	"github.com/open-teleop/vrteleop/pkg/input"
	customlog "github.com/open-teleop/vrteleop/pkg/log"
	"github.com/open-teleop/vrteleop/pkg/processing"
	"github.com/open-teleop/vrteleop/pkg/rosmsg"
)

func quietLogger() customlog.Logger {
	return customlog.NewLogrusLoggerWithOutput("error", io.Discard)
}

type fakeBridge struct {
	mu         sync.Mutex
	services   []string
	ids        []string
	callbacks  []ServiceCallback
	published  []rosmsg.Twist
	callErr    error
	publishErr error
}

func (b *fakeBridge) CallService(callID, service string, done ServiceCallback) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.services = append(b.services, service)
	b.ids = append(b.ids, callID)
	if b.callErr != nil {
		return b.callErr
	}
	b.callbacks = append(b.callbacks, done)
	return nil
}

func (b *fakeBridge) PublishVelocity(cmd rosmsg.Twist) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, cmd)
	return b.publishErr
}

func (b *fakeBridge) calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.services...)
}

type fakeInputs struct {
	snap input.ControllerSnapshot
	pos  r3.Vector
}

func (f *fakeInputs) Snapshot() input.ControllerSnapshot { return f.snap }
func (f *fakeInputs) Position() r3.Vector                { return f.pos }

type fakeSink struct {
	mu     sync.Mutex
	events []processing.Event
}

func (s *fakeSink) Submit(ev processing.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return true
}

func (s *fakeSink) kinds() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var kinds []string
	for _, ev := range s.events {
		kinds = append(kinds, ev.Kind)
	}
	return kinds
}

var testServices = map[string]string{
	"sit":           "/spot1/sit",
	"stand":         "/spot1/stand",
	"arm_stow":      "/spot1/arm_stow",
	"arm_unstow":    "/spot1/arm_unstow",
	"open_gripper":  "/spot1/open_gripper",
	"close_gripper": "/spot1/close_gripper",
}

func right(primary, secondary, trigger bool) input.ControllerSnapshot {
	return input.ControllerSnapshot{Right: input.Buttons{Primary: primary, Secondary: secondary, Trigger: trigger}}
}

var ErrTestPublish = errors.New("publish failed")

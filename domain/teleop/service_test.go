package teleop

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang/geo/r3"

	"github.com/open-teleop/vrteleop/pkg/config"
	"github.com/open-teleop/vrteleop/pkg/processing"
	"github.com/open-teleop/vrteleop/pkg/rosmsg"
)

func newTestService(inputs *fakeInputs, bridge *fakeBridge, sink EventSink) *TeleopService {
	cfg := ServiceConfig{
		FramePeriod: 5 * time.Millisecond,
		Shaper: ShaperConfig{
			TickDuration:     2 * time.Millisecond,
			TurnRate:         1.5,
			SmoothingDivisor: 5,
			MaxLinear:        1,
			Convert:          Identity,
		},
		Services:     testServices,
		ResultBuffer: 1,
	}
	return NewTeleopService(cfg, inputs, bridge, sink, quietLogger())
}

func TestServiceConfigFrom(t *testing.T) {
	cfg := &config.BootstrapConfig{}
	cfg.ApplyDefaults()

	sc := ServiceConfigFrom(cfg)
	if sc.Services["sit"] != "/spot1/sit" || sc.Services["close_gripper"] != "/spot1/close_gripper" {
		t.Errorf("Unexpected service names: %v", sc.Services)
	}
	if sc.Shaper.TickDuration != 20*time.Millisecond {
		t.Errorf("Expected 20ms tick, got %v", sc.Shaper.TickDuration)
	}
	if got := sc.Shaper.Convert(r3.Vector{Z: 1}); got != (r3.Vector{X: 1}) {
		t.Errorf("Default tracking frame should map forward to +X, got %v", got)
	}
}

func TestServiceFrameSubmitsActionEvents(t *testing.T) {
	inputs := &fakeInputs{snap: right(true, false, false)}
	bridge := &fakeBridge{}
	sink := &fakeSink{}
	svc := newTestService(inputs, bridge, sink)

	svc.frame()
	svc.frame()

	if got := sink.kinds(); !reflect.DeepEqual(got, []string{processing.EventActionRequested}) {
		t.Fatalf("Expected one request event, got %v", got)
	}
	ev := sink.events[0].Data.(processing.ActionEvent)
	if ev.Service != "/spot1/sit" || ev.CallID == "" {
		t.Errorf("Unexpected action event: %+v", ev)
	}

	st := svc.Status()
	if st.Frames != 2 || st.Calls != 1 || !st.Toggles.Sitting || st.Flags.Standing {
		t.Errorf("Unexpected status: %+v", st)
	}
}

func TestServiceResultsAreForwarded(t *testing.T) {
	inputs := &fakeInputs{snap: right(true, true, false)}
	bridge := &fakeBridge{}
	sink := &fakeSink{}
	svc := newTestService(inputs, bridge, sink)

	svc.frame()
	bridge.callbacks[0](rosmsg.TriggerResponse{Success: true, Message: "ok"}, nil)
	// buffer holds one result, the second is dropped
	bridge.callbacks[1](rosmsg.TriggerResponse{Success: true}, nil)

	svc.handleResult(<-svc.results)

	st := svc.Status()
	if st.Responses != 1 || st.DroppedResults != 1 {
		t.Errorf("Expected 1 response and 1 dropped, got %+v", st)
	}

	last := sink.events[len(sink.events)-1]
	if last.Kind != processing.EventActionResult {
		t.Fatalf("Expected result event, got %s", last.Kind)
	}
	if ev := last.Data.(processing.ActionEvent); !ev.Success || ev.Service != "/spot1/sit" {
		t.Errorf("Unexpected result event: %+v", ev)
	}
	if !st.Toggles.Sitting || !st.Toggles.ArmOut {
		t.Errorf("Responses must not change toggles: %+v", st.Toggles)
	}
}

func TestServiceTickEmitsVelocityEvents(t *testing.T) {
	inputs := &fakeInputs{}
	bridge := &fakeBridge{}
	sink := &fakeSink{}
	svc := newTestService(inputs, bridge, sink)
	svc.frame()

	for i := 0; i < CycleLength; i++ {
		svc.tick()
	}

	if got := sink.kinds(); !reflect.DeepEqual(got, []string{processing.EventVelocity, processing.EventVelocity}) {
		t.Fatalf("Expected two velocity events, got %v", got)
	}
	st := svc.Status()
	if st.Ticks != CycleLength || st.Emitted != 2 || st.Counter != 0 {
		t.Errorf("Unexpected status: %+v", st)
	}
	if st.LastPhase != "full_emit" || st.LastCommand == nil {
		t.Errorf("Expected last full emission recorded, got %+v", st)
	}
}

func TestServiceRunStopsOnCancel(t *testing.T) {
	inputs := &fakeInputs{}
	bridge := &fakeBridge{}
	svc := newTestService(inputs, bridge, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Run did not stop after cancel")
	}

	st := svc.Status()
	if st.Running {
		t.Errorf("Service should report stopped")
	}
	if st.Frames == 0 || st.Ticks == 0 {
		t.Errorf("Expected frames and ticks to run, got %+v", st)
	}
}

func TestStatusHandler(t *testing.T) {
	pool := processing.NewPool("events", 1, 4, quietLogger())
	svc := newTestService(&fakeInputs{}, &fakeBridge{}, pool)

	app := fiber.New()
	app.Get("/api/teleop/status", svc.StatusHandler)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/teleop/status", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("Invalid JSON %q: %v", body, err)
	}
	flags, ok := payload["flags"].(map[string]interface{})
	if !ok || flags["standing"] != true {
		t.Errorf("Expected standing flag in %v", payload)
	}
	if _, ok := payload["events"]; !ok {
		t.Errorf("Expected pool metrics in %v", payload)
	}
}

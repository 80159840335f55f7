package zeromq

import (
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	zmq "github.com/pebbe/zmq4"

	message "github.com/open-teleop/vrteleop/pkg/flatbuffers/open_teleop/message"
	customlog "github.com/open-teleop/vrteleop/pkg/log"
	"github.com/open-teleop/vrteleop/pkg/rosmsg"
)

func quietLogger() customlog.Logger {
	return customlog.NewLogrusLoggerWithOutput("error", io.Discard)
}

type callResult struct {
	resp rosmsg.TriggerResponse
	err  error
}

func responseFrame(t *testing.T, resp ServiceResponse) []byte {
	t.Helper()
	payload, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	return EncodeEnvelope(resp.Service, message.ContentTypeJSON_SERVICE_RESPONSE, payload, time.Now())
}

// bridgeWithoutSockets exercises response matching only
func bridgeWithoutSockets() *Bridge {
	return &Bridge{
		logger:  quietLogger(),
		running: true,
		pending: make(map[string]pendingCall),
	}
}

func TestHandleFrameMatchesPendingCall(t *testing.T) {
	b := bridgeWithoutSockets()

	var got []callResult
	b.pending["id-1"] = pendingCall{service: "/spot1/sit", done: func(resp rosmsg.TriggerResponse, err error) {
		got = append(got, callResult{resp, err})
	}}

	b.handleFrame(TopicServiceResponse, responseFrame(t, ServiceResponse{ID: "id-1", Service: "/spot1/sit", Success: true, Message: "done"}))
	// a duplicate is ignored
	b.handleFrame(TopicServiceResponse, responseFrame(t, ServiceResponse{ID: "id-1", Service: "/spot1/sit"}))

	if len(got) != 1 {
		t.Fatalf("Expected one callback, got %d", len(got))
	}
	if got[0].err != nil || !got[0].resp.Success || got[0].resp.Message != "done" {
		t.Errorf("Unexpected result: %+v", got[0])
	}
	if b.Pending() != 0 {
		t.Errorf("Pending table should be empty")
	}
}

func TestHandleFrameGatewayError(t *testing.T) {
	b := bridgeWithoutSockets()

	var got error
	b.pending["id-2"] = pendingCall{service: "/spot1/stand", done: func(_ rosmsg.TriggerResponse, err error) {
		got = err
	}}

	b.handleFrame(TopicServiceResponse, responseFrame(t, ServiceResponse{ID: "id-2", Service: "/spot1/stand", Error: "timeout"}))

	if got == nil || got.Error() != "service /spot1/stand failed: timeout" {
		t.Errorf("Unexpected error: %v", got)
	}
}

func TestHandleFrameIgnoresWrongContent(t *testing.T) {
	b := bridgeWithoutSockets()
	b.pending["id-3"] = pendingCall{service: "/spot1/sit", done: func(rosmsg.TriggerResponse, error) {
		t.Errorf("callback must not run")
	}}

	payload, _ := json.Marshal(ServiceResponse{ID: "id-3"})
	b.handleFrame(TopicServiceResponse, EncodeEnvelope("/spot1/sit", message.ContentTypeJSON_COMMAND, payload, time.Now()))
	b.handleFrame(TopicVelocity, responseFrame(t, ServiceResponse{ID: "id-3"}))
	b.handleFrame(TopicServiceResponse, []byte("junk"))

	if b.Pending() != 1 {
		t.Errorf("Call should still be pending")
	}
}

func TestStoppedBridgeRejectsCalls(t *testing.T) {
	b := bridgeWithoutSockets()
	b.running = false

	err := b.CallService("x", "/spot1/sit", func(rosmsg.TriggerResponse, error) {})
	if !errors.Is(err, ErrServiceClosed) {
		t.Errorf("Expected ErrServiceClosed, got %v", err)
	}
	if err := b.PublishVelocity(rosmsg.Twist{}); !errors.Is(err, ErrServiceClosed) {
		t.Errorf("Expected ErrServiceClosed, got %v", err)
	}
}

// TestGatewayLoopback plays the gateway side over tcp on loopback.
func TestGatewayLoopback(t *testing.T) {
	const (
		pubAddr  = "tcp://127.0.0.1:15591"
		respAddr = "tcp://127.0.0.1:15592"
	)

	b, err := NewBridge(Options{
		PublishAddress:  pubAddr,
		ResponseAddress: respAddr,
		VelocityTopic:   "/spot1/cmd_vel",
		ServiceType:     "std_srvs/Trigger",
	}, quietLogger())
	if err != nil {
		t.Skipf("ZeroMQ sockets unavailable: %v", err)
	}
	b.Start()
	defer b.Stop()

	gwCtx, err := zmq.NewContext()
	if err != nil {
		t.Fatalf("Failed to create context: %v", err)
	}
	defer gwCtx.Term()

	requests, _ := gwCtx.NewSocket(zmq.SUB)
	defer requests.Close()
	requests.SetLinger(0)
	requests.SetRcvtimeo(2 * time.Second)
	requests.SetSubscribe(TopicServiceRequest)
	if err := requests.Connect(pubAddr); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	responses, _ := gwCtx.NewSocket(zmq.PUB)
	defer responses.Close()
	responses.SetLinger(0)
	if err := responses.Connect(respAddr); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	// let subscriptions propagate
	time.Sleep(300 * time.Millisecond)

	results := make(chan callResult, 1)
	if err := b.CallService("loop-1", "/spot1/sit", func(resp rosmsg.TriggerResponse, err error) {
		results <- callResult{resp, err}
	}); err != nil {
		t.Fatalf("CallService failed: %v", err)
	}

	frames, err := requests.RecvMessageBytes(0)
	if err != nil {
		t.Fatalf("Gateway did not receive request: %v", err)
	}
	env, err := DecodeEnvelope(frames[1])
	if err != nil {
		t.Fatalf("Bad request envelope: %v", err)
	}
	var req ServiceRequest
	if err := json.Unmarshal(env.Payload, &req); err != nil || req.ID != "loop-1" {
		t.Fatalf("Unexpected request %s: %v", env.Payload, err)
	}

	reply := responseFrame(t, ServiceResponse{ID: req.ID, Service: req.Service, Success: true})
	if _, err := responses.SendMessage(TopicServiceResponse, reply); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	select {
	case r := <-results:
		if r.err != nil || !r.resp.Success {
			t.Errorf("Unexpected result: %+v", r)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("No response delivered")
	}
}

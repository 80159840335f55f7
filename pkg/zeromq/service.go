package zeromq

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	zmq "github.com/pebbe/zmq4"

	message "github.com/open-teleop/vrteleop/pkg/flatbuffers/open_teleop/message"
	customlog "github.com/open-teleop/vrteleop/pkg/log"
	"github.com/open-teleop/vrteleop/pkg/rosmsg"
)

// Common errors
var (
	ErrServiceClosed  = errors.New("zeromq service is closed")
	ErrInvalidMessage = errors.New("invalid message format")
)

// Options configures the gateway bridge
type Options struct {
	PublishAddress  string
	ResponseAddress string
	VelocityTopic   string
	ServiceType     string
}

// MessageSender publishes [topic, body] messages on a PUB socket
type MessageSender struct {
	socket  *zmq.Socket
	logger  customlog.Logger
	running bool
	mu      sync.Mutex
}

func newMessageSender(ctx *zmq.Context, address string, logger customlog.Logger) (*MessageSender, error) {
	socket, err := ctx.NewSocket(zmq.PUB)
	if err != nil {
		return nil, fmt.Errorf("failed to create PUB socket: %w", err)
	}

	if err := socket.SetLinger(0); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to set linger option: %w", err)
	}

	if err := socket.Bind(address); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to bind to %s: %w", address, err)
	}

	logger.Infof("MessageSender bound on %s", address)

	return &MessageSender{
		socket:  socket,
		logger:  logger,
		running: true,
	}, nil
}

// PublishMessage sends the topic frame followed by the body frame
func (s *MessageSender) PublishMessage(topic string, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return ErrServiceClosed
	}

	if _, err := s.socket.Send(topic, zmq.SNDMORE); err != nil {
		return fmt.Errorf("failed to send topic: %w", err)
	}
	if _, err := s.socket.SendBytes(body, 0); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// Close closes the socket
func (s *MessageSender) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.running = false
	if s.socket != nil {
		s.socket.Close()
		s.socket = nil
	}
}

type pendingCall struct {
	service string
	done    func(rosmsg.TriggerResponse, error)
}

// Bridge talks to the robot through an open-teleop gateway: velocity
// commands and service requests go out on the PUB socket, service responses
// come back on the SUB socket.
type Bridge struct {
	opts     Options
	ctx      *zmq.Context
	sender   *MessageSender
	listener *ResponseListener
	logger   customlog.Logger

	mu      sync.Mutex
	running bool
	pending map[string]pendingCall
}

// NewBridge creates the sockets. Call Start to begin receiving responses.
func NewBridge(opts Options, logger customlog.Logger) (*Bridge, error) {
	ctx, err := zmq.NewContext()
	if err != nil {
		return nil, fmt.Errorf("failed to create ZMQ context: %w", err)
	}

	b := &Bridge{
		opts:    opts,
		ctx:     ctx,
		logger:  logger,
		pending: make(map[string]pendingCall),
	}

	sender, err := newMessageSender(ctx, opts.PublishAddress, logger)
	if err != nil {
		ctx.Term()
		return nil, err
	}

	listener, err := newResponseListener(ctx, opts.ResponseAddress, []string{TopicServiceResponse}, b.handleFrame, logger)
	if err != nil {
		sender.Close()
		ctx.Term()
		return nil, err
	}

	b.sender = sender
	b.listener = listener
	return b, nil
}

// Start begins the response loop
func (b *Bridge) Start() {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return
	}
	b.running = true
	b.mu.Unlock()

	b.logger.Infof("Starting ZeroMQ bridge")
	b.listener.Start()
}

// Stop closes the sockets and fails outstanding calls with ErrServiceClosed
func (b *Bridge) Stop() {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	b.running = false
	pending := b.pending
	b.pending = make(map[string]pendingCall)
	b.mu.Unlock()

	b.logger.Infof("Stopping ZeroMQ bridge")
	b.listener.Stop()
	b.sender.Close()

	for _, call := range pending {
		call.done(rosmsg.TriggerResponse{}, ErrServiceClosed)
	}

	if b.ctx != nil {
		b.ctx.Term()
		b.ctx = nil
	}
	b.logger.Infof("ZeroMQ bridge stopped")
}

// PublishVelocity sends a Twist as a JSON command
func (b *Bridge) PublishVelocity(cmd rosmsg.Twist) error {
	if !b.isRunning() {
		return ErrServiceClosed
	}

	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("failed to marshal velocity: %w", err)
	}
	env := EncodeEnvelope(b.opts.VelocityTopic, message.ContentTypeJSON_COMMAND, payload, time.Now())
	return b.sender.PublishMessage(TopicVelocity, env)
}

// CallService publishes a service request and returns without waiting.
func (b *Bridge) CallService(callID, service string, done func(rosmsg.TriggerResponse, error)) error {
	payload, err := json.Marshal(ServiceRequest{ID: callID, Service: service, Type: b.opts.ServiceType})
	if err != nil {
		return fmt.Errorf("failed to marshal service request: %w", err)
	}

	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return ErrServiceClosed
	}
	b.pending[callID] = pendingCall{service: service, done: done}
	b.mu.Unlock()

	env := EncodeEnvelope(service, message.ContentTypeJSON_SERVICE_REQUEST, payload, time.Now())
	if err := b.sender.PublishMessage(TopicServiceRequest, env); err != nil {
		b.mu.Lock()
		delete(b.pending, callID)
		b.mu.Unlock()
		return err
	}
	return nil
}

// Pending returns the number of calls awaiting a response
func (b *Bridge) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

func (b *Bridge) isRunning() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

// handleFrame runs on the listener goroutine
func (b *Bridge) handleFrame(topic string, body []byte) {
	if topic != TopicServiceResponse {
		b.logger.Debugf("Ignoring message on %s", topic)
		return
	}

	env, err := DecodeEnvelope(body)
	if err != nil {
		b.logger.Warnf("Dropping response: %v", err)
		return
	}
	if env.ContentType != message.ContentTypeJSON_SERVICE_RESPONSE {
		b.logger.Warnf("Unexpected content type %s on %s", env.ContentType, topic)
		return
	}

	var resp ServiceResponse
	if err := json.Unmarshal(env.Payload, &resp); err != nil {
		b.logger.Warnf("Invalid service response for %s: %v", env.Ott, err)
		return
	}

	b.mu.Lock()
	call, ok := b.pending[resp.ID]
	delete(b.pending, resp.ID)
	b.mu.Unlock()

	if !ok {
		b.logger.Debugf("Response for unknown call %s", resp.ID)
		return
	}

	if resp.Error != "" {
		call.done(rosmsg.TriggerResponse{}, fmt.Errorf("service %s failed: %s", call.service, resp.Error))
		return
	}
	call.done(rosmsg.TriggerResponse{Success: resp.Success, Message: resp.Message}, nil)
}

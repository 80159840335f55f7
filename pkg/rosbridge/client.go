package rosbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	customlog "github.com/open-teleop/vrteleop/pkg/log"
	"github.com/open-teleop/vrteleop/pkg/rosmsg"
)

// ErrNotConnected is returned when sending without a live connection.
var ErrNotConnected = errors.New("rosbridge: not connected")

// Options configures a Client
type Options struct {
	URL              string
	VelocityTopic    string
	VelocityType     string
	ServiceType      string
	HandshakeTimeout time.Duration
	PingInterval     time.Duration
	ReconnectDelay   time.Duration
}

// Client is a rosbridge connection. Service responses are delivered on the
// read goroutine.
type Client struct {
	opts   Options
	logger customlog.Logger

	ws   *websocket.Conn
	wsMu sync.Mutex

	mu        sync.Mutex
	connected bool
	done      chan struct{}
	pending   map[string]pendingCall
}

type pendingCall struct {
	service string
	done    func(rosmsg.TriggerResponse, error)
}

// NewClient creates a client. Call Connect or Run to open the connection.
func NewClient(opts Options, logger customlog.Logger) *Client {
	if opts.HandshakeTimeout == 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}
	if opts.PingInterval == 0 {
		opts.PingInterval = 30 * time.Second
	}
	if opts.ReconnectDelay == 0 {
		opts.ReconnectDelay = 2 * time.Second
	}
	return &Client{
		opts:    opts,
		logger:  logger,
		pending: make(map[string]pendingCall),
	}
}

// Connect dials the rosbridge server and advertises the velocity topic.
func (c *Client) Connect(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: c.opts.HandshakeTimeout,
	}

	ws, _, err := dialer.DialContext(ctx, c.opts.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to rosbridge at %s: %w", c.opts.URL, err)
	}

	done := make(chan struct{})
	c.wsMu.Lock()
	c.ws = ws
	c.wsMu.Unlock()

	c.mu.Lock()
	c.connected = true
	c.done = done
	c.mu.Unlock()

	go c.readLoop(ws, done)
	go c.keepAlive(ws, done)

	c.logger.Infof("Connected to rosbridge at %s", c.opts.URL)

	if c.opts.VelocityTopic != "" {
		if err := c.Advertise(c.opts.VelocityTopic, c.opts.VelocityType); err != nil {
			return fmt.Errorf("failed to advertise %s: %w", c.opts.VelocityTopic, err)
		}
	}
	return nil
}

// Run keeps the client connected until ctx is cancelled, reconnecting after
// ReconnectDelay whenever the connection drops.
func (c *Client) Run(ctx context.Context) {
	for {
		if !c.Connected() {
			if err := c.Connect(ctx); err != nil {
				c.logger.Warnf("Bridge connect failed: %v", err)
			}
		}

		c.mu.Lock()
		done := c.done
		c.mu.Unlock()

		var dropped <-chan struct{}
		if c.Connected() {
			dropped = done
		}

		select {
		case <-ctx.Done():
			c.Close()
			return
		case <-dropped:
			c.logger.Warnf("bridge reconnecting")
		case <-time.After(c.opts.ReconnectDelay):
		}
	}
}

// Connected reports whether the connection is live
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Advertise announces a topic this client will publish on
func (c *Client) Advertise(topic, msgType string) error {
	return c.send(advertiseMsg{
		Op:    OpAdvertise,
		ID:    "advertise:" + topic,
		Topic: topic,
		Type:  msgType,
	})
}

// Publish sends msg on topic
func (c *Client) Publish(topic string, msg interface{}) error {
	return c.send(publishMsg{Op: OpPublish, Topic: topic, Msg: msg})
}

// PublishVelocity publishes a Twist on the configured velocity topic
func (c *Client) PublishVelocity(cmd rosmsg.Twist) error {
	return c.Publish(c.opts.VelocityTopic, cmd)
}

// CallService sends an empty-request service call and returns immediately.
// done is called once with the response, or with an error if the server
// reports failure or the connection drops first. An empty callID gets a
// generated one.
func (c *Client) CallService(callID, service string, done func(rosmsg.TriggerResponse, error)) error {
	if callID == "" {
		callID = uuid.NewString()
	}

	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return ErrNotConnected
	}
	c.pending[callID] = pendingCall{service: service, done: done}
	c.mu.Unlock()

	err := c.send(callServiceMsg{
		Op:      OpCallService,
		ID:      callID,
		Service: service,
		Type:    c.opts.ServiceType,
		Args:    struct{}{},
	})
	if err != nil {
		c.mu.Lock()
		delete(c.pending, callID)
		c.mu.Unlock()
		return err
	}
	return nil
}

// Pending returns the number of calls awaiting a response
func (c *Client) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Close unadvertises the velocity topic and closes the connection.
func (c *Client) Close() error {
	if !c.Connected() {
		return nil
	}
	if c.opts.VelocityTopic != "" {
		_ = c.send(advertiseMsg{Op: OpUnadvertise, Topic: c.opts.VelocityTopic})
	}

	c.wsMu.Lock()
	ws := c.ws
	var err error
	if ws != nil {
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = ws.Close()
	}
	c.wsMu.Unlock()

	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	c.disconnected(done)
	return err
}

func (c *Client) send(v interface{}) error {
	if !c.Connected() {
		return ErrNotConnected
	}

	c.wsMu.Lock()
	defer c.wsMu.Unlock()
	if c.ws == nil {
		return ErrNotConnected
	}
	c.ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := c.ws.WriteJSON(v); err != nil {
		return fmt.Errorf("rosbridge write failed: %w", err)
	}
	return nil
}

func (c *Client) readLoop(ws *websocket.Conn, done chan struct{}) {
	defer func() {
		c.disconnected(done)
		close(done)
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				c.logger.Debugf("rosbridge read ended: %v", err)
			}
			return
		}
		c.handleMessage(data)
	}
}

func (c *Client) keepAlive(ws *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			c.wsMu.Lock()
			err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second))
			c.wsMu.Unlock()
			if err != nil {
				c.logger.Debugf("rosbridge ping failed: %v", err)
				return
			}
		}
	}
}

func (c *Client) handleMessage(data []byte) {
	var msg incoming
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logger.Warnf("Invalid rosbridge message: %v", err)
		return
	}

	switch msg.Op {
	case OpServiceResponse:
		c.handleServiceResponse(msg)
	case OpStatus:
		switch msg.Level {
		case "error":
			c.logger.Errorf("rosbridge: %s", msg.Msg)
		case "warning":
			c.logger.Warnf("rosbridge: %s", msg.Msg)
		default:
			c.logger.Infof("rosbridge: %s", msg.Msg)
		}
	default:
		c.logger.Debugf("Ignoring rosbridge op %q", msg.Op)
	}
}

func (c *Client) handleServiceResponse(msg incoming) {
	c.mu.Lock()
	call, ok := c.pending[msg.ID]
	delete(c.pending, msg.ID)
	c.mu.Unlock()

	if !ok {
		c.logger.Debugf("Response for unknown call %s", msg.ID)
		return
	}

	if msg.Result != nil && !*msg.Result {
		// on failure rosbridge puts the error text in values
		var reason string
		if err := json.Unmarshal(msg.Values, &reason); err != nil {
			reason = string(msg.Values)
		}
		call.done(rosmsg.TriggerResponse{}, fmt.Errorf("service %s failed: %s", call.service, reason))
		return
	}

	var resp rosmsg.TriggerResponse
	if len(msg.Values) > 0 {
		if err := json.Unmarshal(msg.Values, &resp); err != nil {
			call.done(rosmsg.TriggerResponse{}, fmt.Errorf("invalid response from %s: %w", call.service, err))
			return
		}
	}
	call.done(resp, nil)
}

// disconnected fails every pending call of the connection owning done
func (c *Client) disconnected(done chan struct{}) {
	c.mu.Lock()
	if !c.connected || c.done != done {
		c.mu.Unlock()
		return
	}
	c.connected = false
	pending := c.pending
	c.pending = make(map[string]pendingCall)
	c.mu.Unlock()

	for _, call := range pending {
		call.done(rosmsg.TriggerResponse{}, ErrNotConnected)
	}
}

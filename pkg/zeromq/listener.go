package zeromq

import (
	"fmt"
	"sync"
	"time"

	zmq "github.com/pebbe/zmq4"

	customlog "github.com/open-teleop/vrteleop/pkg/log"
)

// FrameHandler receives one [topic, body] message from the listener
type FrameHandler func(topic string, body []byte)

// ResponseListener receives gateway messages on a SUB socket
type ResponseListener struct {
	socket  *zmq.Socket
	poller  *zmq.Poller
	handler FrameHandler
	logger  customlog.Logger
	mu      sync.Mutex
	running bool
	wg      sync.WaitGroup
}

// newResponseListener binds a SUB socket subscribed to the given topics
func newResponseListener(ctx *zmq.Context, address string, topics []string, handler FrameHandler, logger customlog.Logger) (*ResponseListener, error) {
	socket, err := ctx.NewSocket(zmq.SUB)
	if err != nil {
		return nil, fmt.Errorf("failed to create SUB socket: %w", err)
	}

	for _, topic := range topics {
		if err := socket.SetSubscribe(topic); err != nil {
			socket.Close()
			return nil, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
		}
	}

	if err := socket.SetLinger(0); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to set linger option: %w", err)
	}

	if err := socket.Bind(address); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to bind to %s: %w", address, err)
	}

	poller := zmq.NewPoller()
	poller.Add(socket, zmq.POLLIN)

	logger.Infof("Response listener bound on %s", address)

	return &ResponseListener{
		socket:  socket,
		poller:  poller,
		handler: handler,
		logger:  logger,
	}, nil
}

// Start begins the receive loop
func (l *ResponseListener) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return
	}
	l.running = true
	l.wg.Add(1)
	go l.receiveLoop()
}

// Stop ends the receive loop and closes the socket
func (l *ResponseListener) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.running = false
	l.mu.Unlock()

	l.wg.Wait()
	l.socket.Close()
}

func (l *ResponseListener) isRunning() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// receiveLoop polls with a timeout so Stop is noticed
func (l *ResponseListener) receiveLoop() {
	defer l.wg.Done()

	for l.isRunning() {
		sockets, err := l.poller.Poll(200 * time.Millisecond)
		if err != nil {
			l.logger.Warnf("Error polling socket: %v", err)
			time.Sleep(100 * time.Millisecond)
			continue
		}
		if len(sockets) == 0 {
			continue
		}

		frames, err := l.socket.RecvMessageBytes(0)
		if err != nil {
			l.logger.Warnf("Error receiving message: %v", err)
			continue
		}
		if len(frames) != 2 {
			l.logger.Warnf("Expected 2 frames, got %d", len(frames))
			continue
		}

		l.handler(string(frames[0]), frames[1])
	}
}

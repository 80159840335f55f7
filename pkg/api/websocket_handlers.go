package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"syscall"

	"github.com/gofiber/contrib/websocket"

	"github.com/open-teleop/vrteleop/pkg/input"
	customlog "github.com/open-teleop/vrteleop/pkg/log"
)

// InputSink receives decoded headset input
type InputSink interface {
	Apply(f input.Frame)
	MarkDisconnected()
}

// ErrEmptyInput is returned for messages that carry no input at all
var ErrEmptyInput = errors.New("input message has no controllers or position")

// DecodeInput parses a JSON input message
func DecodeInput(msg []byte) (input.Frame, error) {
	var in InputMsg
	if err := json.Unmarshal(msg, &in); err != nil {
		return input.Frame{}, fmt.Errorf("invalid input message: %w", err)
	}
	if in.Left == nil && in.Right == nil && in.Position == nil {
		return input.Frame{}, ErrEmptyInput
	}
	return in.Frame(), nil
}

// handleInputMessage applies one websocket message to the sink
func handleInputMessage(mt int, msg []byte, sink InputSink, logger customlog.Logger) {
	if mt != websocket.TextMessage {
		logger.Debugf("Ignoring non-text input WS message type: %d", mt)
		return
	}

	frame, err := DecodeInput(msg)
	if err != nil {
		logger.Warnf("Dropping input message: %v", err)
		return
	}
	sink.Apply(frame)
}

// InputWebSocketHandler reads headset input until the connection closes.
// On close both controllers are marked absent.
func InputWebSocketHandler(conn *websocket.Conn, logger customlog.Logger, sink InputSink) {
	logger.Infof("Input WebSocket connected: %s", conn.RemoteAddr())
	defer func() {
		sink.MarkDisconnected()
		logger.Infof("Input WebSocket disconnected: %s", conn.RemoteAddr())
	}()

	for {
		mt, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Errorf("Input WS read error: %v", err)
			} else if err != websocket.ErrCloseSent && !errors.Is(err, syscall.EPIPE) && !errors.Is(err, syscall.ECONNRESET) {
				logger.Infof("Input WS connection closed: %v", err)
			}
			return
		}
		handleInputMessage(mt, msg, sink, logger)
	}
}

// Package rosbridge is a minimal rosbridge v2 websocket client: topic
// advertise/publish and asynchronous service calls.
package rosbridge

import "encoding/json"

// Operations used by the client
const (
	OpAdvertise       = "advertise"
	OpUnadvertise     = "unadvertise"
	OpPublish         = "publish"
	OpCallService     = "call_service"
	OpServiceResponse = "service_response"
	OpStatus          = "status"
)

type advertiseMsg struct {
	Op    string `json:"op"`
	ID    string `json:"id,omitempty"`
	Topic string `json:"topic"`
	Type  string `json:"type,omitempty"`
}

type publishMsg struct {
	Op    string      `json:"op"`
	Topic string      `json:"topic"`
	Msg   interface{} `json:"msg"`
}

type callServiceMsg struct {
	Op      string      `json:"op"`
	ID      string      `json:"id"`
	Service string      `json:"service"`
	Type    string      `json:"type,omitempty"`
	Args    interface{} `json:"args"`
}

// incoming covers every operation the server sends us
type incoming struct {
	Op      string          `json:"op"`
	ID      string          `json:"id"`
	Service string          `json:"service"`
	Values  json.RawMessage `json:"values"`
	Result  *bool           `json:"result"`
	Level   string          `json:"level"`
	Msg     string          `json:"msg"`
}

package zeromq

import (
	"fmt"
	"time"

	flatbuffers "github.com/google/flatbuffers/go"

	message "github.com/open-teleop/vrteleop/pkg/flatbuffers/open_teleop/message"
)

// Gateway topics. Each ZeroMQ message is two frames: topic, then an
// OttMessage flatbuffer.
const (
	TopicVelocity        = "teleop.control.velocity"
	TopicServiceRequest  = "teleop.service.request"
	TopicServiceResponse = "teleop.service.response"
)

// EnvelopeVersion is written into every outgoing OttMessage
const EnvelopeVersion = 1

// Envelope is the decoded content of an OttMessage
type Envelope struct {
	Version     uint32
	Ott         string
	TimestampNs int64
	ContentType message.ContentType
	Payload     []byte
}

// ServiceRequest is the JSON payload of a service call
type ServiceRequest struct {
	ID      string `json:"id"`
	Service string `json:"service"`
	Type    string `json:"type,omitempty"`
}

// ServiceResponse is the JSON payload the gateway sends back
type ServiceResponse struct {
	ID      string `json:"id"`
	Service string `json:"service"`
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// EncodeEnvelope builds an OttMessage flatbuffer
func EncodeEnvelope(ott string, contentType message.ContentType, payload []byte, ts time.Time) []byte {
	builder := flatbuffers.NewBuilder(64 + len(ott) + len(payload))

	ottOffset := builder.CreateString(ott)
	payloadOffset := builder.CreateByteVector(payload)

	message.OttMessageStart(builder)
	message.OttMessageAddVersion(builder, EnvelopeVersion)
	message.OttMessageAddOtt(builder, ottOffset)
	message.OttMessageAddTimestampNs(builder, ts.UnixNano())
	message.OttMessageAddContentType(builder, contentType)
	message.OttMessageAddPayload(builder, payloadOffset)
	end := message.OttMessageEnd(builder)
	message.FinishOttMessageBuffer(builder, end)

	return builder.FinishedBytes()
}

// DecodeEnvelope parses an OttMessage flatbuffer. Truncated buffers make the
// flatbuffers runtime panic; that is turned into ErrInvalidMessage.
func DecodeEnvelope(data []byte) (env Envelope, err error) {
	if len(data) < 8 {
		return Envelope{}, fmt.Errorf("%w: %d bytes", ErrInvalidMessage, len(data))
	}

	defer func() {
		if r := recover(); r != nil {
			env = Envelope{}
			err = fmt.Errorf("%w: %v", ErrInvalidMessage, r)
		}
	}()

	msg := message.GetRootAsOttMessage(data, 0)
	env = Envelope{
		Version:     msg.Version(),
		Ott:         string(msg.Ott()),
		TimestampNs: msg.TimestampNs(),
		ContentType: msg.ContentType(),
		Payload:     append([]byte(nil), msg.PayloadBytes()...),
	}
	return env, nil
}

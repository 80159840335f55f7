package processing

import (
	"errors"
	"fmt"

	customlog "github.com/open-teleop/vrteleop/pkg/log"
)

// Sink consumes events handed out by the pool, e.g. the MQTT publisher or
// the action log.
type Sink interface {
	Consume(ev Event) error
}

// SinkFunc adapts a function to Sink
type SinkFunc func(ev Event) error

// Consume calls f(ev)
func (f SinkFunc) Consume(ev Event) error {
	return f(ev)
}

type namedSink struct {
	name string
	sink Sink
}

// FanoutHandler passes every event to each registered sink. A failing sink
// does not stop the others.
type FanoutHandler struct {
	logger customlog.Logger
	sinks  []namedSink
}

// NewFanoutHandler creates a handler with no sinks
func NewFanoutHandler(logger customlog.Logger) *FanoutHandler {
	return &FanoutHandler{logger: logger}
}

// Add registers a sink. Not safe to call once the pool is running.
func (h *FanoutHandler) Add(name string, sink Sink) {
	h.sinks = append(h.sinks, namedSink{name: name, sink: sink})
}

// Len returns the number of registered sinks
func (h *FanoutHandler) Len() int {
	return len(h.sinks)
}

// Handle delivers ev to every sink and joins their errors
func (h *FanoutHandler) Handle(ev Event) error {
	var errs []error
	for _, s := range h.sinks {
		if err := s.sink.Consume(ev); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
			continue
		}
		h.logger.Debugf("Delivered %s event to %s", ev.Kind, s.name)
	}
	return errors.Join(errs...)
}

// CreateHandlerFunc creates an EventHandler for the Pool
func (h *FanoutHandler) CreateHandlerFunc() EventHandler {
	return h.Handle
}

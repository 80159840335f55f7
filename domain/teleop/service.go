package teleop

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang/geo/r3"

	"github.com/open-teleop/vrteleop/pkg/config"
	"github.com/open-teleop/vrteleop/pkg/input"
	customlog "github.com/open-teleop/vrteleop/pkg/log"
	"github.com/open-teleop/vrteleop/pkg/processing"
	"github.com/open-teleop/vrteleop/pkg/rosmsg"
)

// Inputs supplies per-frame controller readings and per-tick positions.
type Inputs interface {
	Snapshot() input.ControllerSnapshot
	Position() r3.Vector
}

// EventSink receives events for telemetry and the action log.
// Submit must not block.
type EventSink interface {
	Submit(ev processing.Event) bool
}

// ServiceConfig holds the service timing and component settings.
type ServiceConfig struct {
	FramePeriod  time.Duration
	Shaper       ShaperConfig
	Services     map[string]string
	ResultBuffer int
}

// ServiceConfigFrom builds a ServiceConfig from the bootstrap config.
func ServiceConfigFrom(cfg *config.BootstrapConfig) ServiceConfig {
	services := make(map[string]string, len(config.AllActions))
	for _, action := range config.AllActions {
		services[action] = cfg.ServiceName(action)
	}
	return ServiceConfig{
		FramePeriod: cfg.FramePeriod(),
		Shaper: ShaperConfig{
			TickDuration:     cfg.TickDuration(),
			TurnRate:         cfg.Teleop.TurnRate,
			SmoothingDivisor: cfg.Teleop.SmoothingDivisor,
			MaxLinear:        cfg.Teleop.MaxLinear,
			Convert:          ConverterFor(cfg.Teleop.TrackingFrame),
		},
		Services:     services,
		ResultBuffer: 32,
	}
}

// Status is a snapshot of the teleop loop for the HTTP API.
type Status struct {
	Running        bool                    `json:"running"`
	Toggles        ToggleState             `json:"toggles"`
	Flags          MotionFlags             `json:"flags"`
	Counter        int                     `json:"counter"`
	Frames         uint64                  `json:"frames"`
	Ticks          uint64                  `json:"ticks"`
	Emitted        uint64                  `json:"emitted"`
	PublishErrors  uint64                  `json:"publish_errors"`
	Calls          uint64                  `json:"calls"`
	FailedCalls    uint64                  `json:"failed_calls"`
	Responses      uint64                  `json:"responses"`
	DroppedResults uint64                  `json:"dropped_results"`
	LastPhase      string                  `json:"last_phase,omitempty"`
	LastCommand    *rosmsg.Twist           `json:"last_command,omitempty"`
	LastEmittedAt  time.Time               `json:"last_emitted_at,omitempty"`
	Events         *processing.PoolMetrics `json:"events,omitempty"`
}

// TeleopService runs the trigger and shaper on one goroutine and collects
// remote call results.
type TeleopService struct {
	cfg     ServiceConfig
	inputs  Inputs
	events  EventSink
	logger  customlog.Logger
	flags   MotionFlags
	trigger *CommandTrigger
	shaper  *MotionShaper
	results chan ActionResult

	mu     sync.RWMutex
	status Status
}

// NewTeleopService creates a new teleop service instance. events may be nil.
func NewTeleopService(cfg ServiceConfig, inputs Inputs, bridge Bridge, events EventSink, logger customlog.Logger) *TeleopService {
	if cfg.ResultBuffer < 1 {
		cfg.ResultBuffer = 1
	}
	s := &TeleopService{
		cfg:     cfg,
		inputs:  inputs,
		events:  events,
		logger:  logger,
		results: make(chan ActionResult, cfg.ResultBuffer),
	}
	s.trigger = NewCommandTrigger(bridge, cfg.Services, &s.flags, logger.WithField(customlog.ComponentKey, "trigger"))
	s.trigger.OnResult(s.forwardResult)
	s.shaper = NewMotionShaper(cfg.Shaper, &s.flags, bridge, logger.WithField(customlog.ComponentKey, "shaper"))
	s.status.Toggles = s.trigger.Toggles()
	s.status.Flags = s.flags
	return s
}

// Run drives the frame and fixed-step tickers until ctx is cancelled.
func (s *TeleopService) Run(ctx context.Context) error {
	frames := time.NewTicker(s.cfg.FramePeriod)
	defer frames.Stop()
	ticks := time.NewTicker(s.cfg.Shaper.TickDuration)
	defer ticks.Stop()

	s.setRunning(true)
	defer s.setRunning(false)

	s.logger.Infof("Teleop loop started (frame=%v, tick=%v)", s.cfg.FramePeriod, s.cfg.Shaper.TickDuration)

	s.frame()
	for {
		select {
		case <-ctx.Done():
			s.logger.Infof("Teleop loop stopped")
			return nil
		case <-frames.C:
			s.frame()
		case <-ticks.C:
			s.tick()
		case r := <-s.results:
			s.handleResult(r)
		}
	}
}

func (s *TeleopService) frame() {
	calls := s.trigger.Update(s.inputs.Snapshot())

	s.mu.Lock()
	s.status.Frames++
	s.status.Toggles = s.trigger.Toggles()
	s.status.Flags = s.flags
	for _, c := range calls {
		s.status.Calls++
		if c.SendErr != nil {
			s.status.FailedCalls++
		}
	}
	s.mu.Unlock()

	for _, c := range calls {
		ev := processing.ActionEvent{
			CallID:      c.CallID,
			Action:      c.Action,
			Service:     c.Service,
			RequestedAt: c.RequestedAt,
		}
		if c.SendErr != nil {
			ev.Error = c.SendErr.Error()
		}
		s.submit(processing.EventActionRequested, c.RequestedAt, ev)
	}
}

func (s *TeleopService) tick() {
	res := s.shaper.Tick(s.inputs.Position())

	s.mu.Lock()
	s.status.Ticks++
	s.status.Counter = res.Counter % CycleLength
	if res.Emitted {
		cmd := res.Command
		s.status.Emitted++
		s.status.LastPhase = res.Phase.String()
		s.status.LastCommand = &cmd
		s.status.LastEmittedAt = time.Now()
		if res.Err != nil {
			s.status.PublishErrors++
		}
	}
	s.mu.Unlock()

	if res.Emitted && res.Err == nil {
		s.submit(processing.EventVelocity, time.Now(), processing.VelocityEvent{
			Phase:   res.Phase.String(),
			Command: res.Command,
		})
	}
}

// forwardResult runs on the bridge goroutine.
func (s *TeleopService) forwardResult(r ActionResult) {
	select {
	case s.results <- r:
	default:
		s.logger.Warnf("Result queue full, dropping response for %s", r.Call.Service)
		s.mu.Lock()
		s.status.DroppedResults++
		s.mu.Unlock()
	}
}

func (s *TeleopService) handleResult(r ActionResult) {
	LogResult(s.logger, r)

	s.mu.Lock()
	s.status.Responses++
	s.mu.Unlock()

	ev := processing.ActionEvent{
		CallID:      r.Call.CallID,
		Action:      r.Call.Action,
		Service:     r.Call.Service,
		Success:     r.Err == nil && r.Response.Success,
		Message:     r.Response.Message,
		RequestedAt: r.Call.RequestedAt,
		RespondedAt: r.RespondedAt,
	}
	if r.Err != nil {
		ev.Error = r.Err.Error()
	}
	s.submit(processing.EventActionResult, r.RespondedAt, ev)
}

func (s *TeleopService) submit(kind string, at time.Time, data interface{}) {
	if s.events == nil {
		return
	}
	s.events.Submit(processing.Event{Kind: kind, Timestamp: at, Data: data})
}

func (s *TeleopService) setRunning(running bool) {
	s.mu.Lock()
	s.status.Running = running
	s.mu.Unlock()
}

// Status returns a copy of the current loop status.
func (s *TeleopService) Status() Status {
	s.mu.RLock()
	st := s.status
	s.mu.RUnlock()

	if st.LastCommand != nil {
		cmd := *st.LastCommand
		st.LastCommand = &cmd
	}
	if m, ok := s.events.(interface{ GetMetrics() processing.PoolMetrics }); ok {
		metrics := m.GetMetrics()
		st.Events = &metrics
	}
	return st
}

// StatusHandler serves the loop status
func (s *TeleopService) StatusHandler(c *fiber.Ctx) error {
	return c.JSON(s.Status())
}

package diagnostic

import (
	"sort"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Check reports whether a component is healthy, with a short detail
type Check func() (healthy bool, detail string)

// ComponentStatus is the result of one check
type ComponentStatus struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Detail  string `json:"detail,omitempty"`
}

// SystemMetrics represents the health of the running front-end
type SystemMetrics struct {
	Timestamp  time.Time         `json:"timestamp"`
	Uptime     string            `json:"uptime"`
	Healthy    bool              `json:"healthy"`
	Components []ComponentStatus `json:"components"`
}

// DiagnosticService aggregates component checks
type DiagnosticService struct {
	mu      sync.RWMutex
	started time.Time
	checks  map[string]Check
	now     func() time.Time
}

// NewDiagnosticService creates a new diagnostic service instance
func NewDiagnosticService() *DiagnosticService {
	return &DiagnosticService{
		started: time.Now(),
		checks:  make(map[string]Check),
		now:     time.Now,
	}
}

// Register adds or replaces a named check
func (s *DiagnosticService) Register(name string, check Check) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[name] = check
}

// GetMetrics runs every check
func (s *DiagnosticService) GetMetrics() SystemMetrics {
	s.mu.RLock()
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	checks := make(map[string]Check, len(s.checks))
	for name, c := range s.checks {
		checks[name] = c
	}
	s.mu.RUnlock()

	sort.Strings(names)

	now := s.now()
	m := SystemMetrics{
		Timestamp:  now,
		Uptime:     now.Sub(s.started).Round(time.Second).String(),
		Healthy:    true,
		Components: make([]ComponentStatus, 0, len(names)),
	}
	for _, name := range names {
		healthy, detail := checks[name]()
		m.Components = append(m.Components, ComponentStatus{Name: name, Healthy: healthy, Detail: detail})
		if !healthy {
			m.Healthy = false
		}
	}
	return m
}

// GetMetricsHandler handles API requests for diagnostics
func (s *DiagnosticService) GetMetricsHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "success",
		"metrics": s.GetMetrics(),
	})
}

// HealthHandler answers 200 when every check passes, 503 otherwise
func (s *DiagnosticService) HealthHandler(c *fiber.Ctx) error {
	m := s.GetMetrics()
	if !m.Healthy {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status":     "degraded",
			"components": m.Components,
		})
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

// InputFreshness builds a check that fails when no input frame arrived
// within maxAge.
func InputFreshness(stats func() (uint64, time.Time), maxAge time.Duration, now func() time.Time) Check {
	return func() (bool, string) {
		frames, last := stats()
		if frames == 0 {
			return false, "no input received"
		}
		if age := now().Sub(last); age > maxAge {
			return false, "input stale for " + age.Round(time.Millisecond).String()
		}
		return true, ""
	}
}

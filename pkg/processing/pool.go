package processing

import (
	"sync"
	"time"

	customlog "github.com/open-teleop/vrteleop/pkg/log"
)

// EventHandler handles one event inside a pool worker
type EventHandler func(ev Event) error

// Pool is a bounded worker pool for teleop events. Submitting never
// blocks: when the queue is full the event is discarded.
type Pool struct {
	name        string
	workerCount int
	logger      customlog.Logger
	queue       chan Event
	running     bool
	stopped     bool
	wg          sync.WaitGroup
	mu          sync.Mutex
	handler     EventHandler
	queueSize   int
	metrics     *PoolMetrics
}

// PoolMetrics tracks metrics for a pool
type PoolMetrics struct {
	ProcessedCount    int64 `json:"processed"`
	ErrorCount        int64 `json:"errors"`
	QueuedCount       int64 `json:"queued"`
	DroppedCount      int64 `json:"dropped"`
	LastProcessedTime int64 `json:"last_processed_ns"`
	ProcessingTimeAvg int64 `json:"avg_time_us"`
	ProcessingTimeMax int64 `json:"max_time_us"`
	mu                sync.Mutex
}

// NewPool creates a new event pool
func NewPool(name string, workerCount int, queueSize int, logger customlog.Logger) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &Pool{
		name:        name,
		workerCount: workerCount,
		queueSize:   queueSize,
		logger:      logger,
		queue:       make(chan Event, queueSize),
		metrics:     &PoolMetrics{},
	}
}

// SetHandler sets the event handler function
func (p *Pool) SetHandler(handler EventHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handler = handler
}

// Submit adds an event to the queue. It returns false when the pool is not
// running or the queue is full.
func (p *Pool) Submit(ev Event) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		p.logger.Debugf("%s pool not running, discarding %s event", p.name, ev.Kind)
		return false
	}

	select {
	case p.queue <- ev:
		p.metrics.mu.Lock()
		p.metrics.QueuedCount++
		p.metrics.mu.Unlock()
		return true
	default:
		p.metrics.mu.Lock()
		p.metrics.DroppedCount++
		p.metrics.mu.Unlock()
		p.logger.Warnf("%s pool queue is full, discarding %s event", p.name, ev.Kind)
		return false
	}
}

// Start starts the pool workers. A stopped pool cannot be restarted.
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running || p.stopped {
		return
	}

	p.running = true
	p.logger.Infof("Starting %s pool with %d workers", p.name, p.workerCount)

	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop drains the queue and waits for the workers to exit
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.stopped = true
	close(p.queue)
	p.mu.Unlock()

	p.logger.Infof("Stopping %s pool", p.name)
	p.wg.Wait()
	p.logger.Infof("%s pool stopped", p.name)

	p.logMetrics()
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	p.logger.Debugf("%s pool worker %d started", p.name, id)

	for ev := range p.queue {
		p.mu.Lock()
		handler := p.handler
		p.mu.Unlock()

		if handler == nil {
			p.logger.Errorf("No event handler set for %s pool", p.name)
			continue
		}

		startTime := time.Now()
		err := handler(ev)
		processingTime := time.Since(startTime).Microseconds()

		p.metrics.mu.Lock()
		p.metrics.ProcessedCount++
		p.metrics.LastProcessedTime = time.Now().UnixNano()
		if p.metrics.ProcessingTimeAvg == 0 {
			p.metrics.ProcessingTimeAvg = processingTime
		} else {
			p.metrics.ProcessingTimeAvg = (p.metrics.ProcessingTimeAvg + processingTime) / 2
		}
		if processingTime > p.metrics.ProcessingTimeMax {
			p.metrics.ProcessingTimeMax = processingTime
		}
		if err != nil {
			p.metrics.ErrorCount++
		}
		p.metrics.mu.Unlock()

		if err != nil {
			p.logger.Errorf("Error handling %s event in %s pool: %v", ev.Kind, p.name, err)
		}
	}

	p.logger.Debugf("%s pool worker %d stopped", p.name, id)
}

// GetMetrics returns a copy of the current metrics
func (p *Pool) GetMetrics() PoolMetrics {
	p.metrics.mu.Lock()
	defer p.metrics.mu.Unlock()

	return PoolMetrics{
		ProcessedCount:    p.metrics.ProcessedCount,
		ErrorCount:        p.metrics.ErrorCount,
		QueuedCount:       p.metrics.QueuedCount,
		DroppedCount:      p.metrics.DroppedCount,
		LastProcessedTime: p.metrics.LastProcessedTime,
		ProcessingTimeAvg: p.metrics.ProcessingTimeAvg,
		ProcessingTimeMax: p.metrics.ProcessingTimeMax,
	}
}

func (p *Pool) logMetrics() {
	m := p.GetMetrics()
	p.logger.Infof("%s pool metrics: processed=%d, errors=%d, dropped=%d, avg_time=%dµs, max_time=%dµs",
		p.name, m.ProcessedCount, m.ErrorCount, m.DroppedCount,
		m.ProcessingTimeAvg, m.ProcessingTimeMax)
}

// Name returns the pool name
func (p *Pool) Name() string {
	return p.name
}

// QueueLength returns the current length of the event queue
func (p *Pool) QueueLength() int {
	return len(p.queue)
}

// QueueCapacity returns the capacity of the event queue
func (p *Pool) QueueCapacity() int {
	return p.queueSize
}

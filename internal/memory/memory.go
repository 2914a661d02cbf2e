// Package memory configures GOMEMLIMIT from container limits and provides a
// backpressure monitor for batch ingestion. Hashing and re-encoding a large
// library allocates heavily; the monitor pauses batch work near the limit
// instead of letting the runtime thrash.
package memory

import (
	"math"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"photo-librarian/internal/logging"
	"photo-librarian/internal/metrics"
)

// Watermarks as fractions of the memory limit. Batch work pauses at the
// critical mark and resumes once usage drops back under the high mark.
const (
	highWaterMark     = 0.7
	criticalWaterMark = 0.85
	checkInterval     = 5 * time.Second
)

// Monitor tracks heap usage against the configured limit and provides a
// blocking backpressure signal for batch workers.
type Monitor struct {
	limit    int64
	stopChan chan struct{}

	mu        sync.RWMutex
	current   uint64
	isPaused  bool
	pauseChan chan struct{}
}

// NewMonitor creates a monitor bound to GOMEMLIMIT. With no limit configured
// the monitor is inert and WaitIfPaused never blocks.
func NewMonitor() *Monitor {
	var limit int64
	if goMemLimit := debug.SetMemoryLimit(-1); goMemLimit > 0 && goMemLimit < math.MaxInt64 {
		limit = goMemLimit
	}
	if limit == 0 {
		logging.Warn("Memory monitor: no memory limit configured, backpressure disabled")
	} else {
		logging.Info("Memory monitor watching limit of %s", formatBytes(limit))
	}

	return &Monitor{
		limit:     limit,
		stopChan:  make(chan struct{}),
		pauseChan: make(chan struct{}),
	}
}

// Start begins the periodic usage check.
func (m *Monitor) Start() {
	if m.limit == 0 {
		return
	}
	go m.loop()
}

// Stop stops the monitor and releases any blocked waiters.
func (m *Monitor) Stop() {
	close(m.stopChan)
}

func (m *Monitor) loop() {
	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.check()
		case <-m.stopChan:
			return
		}
	}
}

func (m *Monitor) check() {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.current = stats.Alloc
	usage := float64(stats.Alloc) / float64(m.limit)
	metrics.MemoryUsageRatio.Set(usage)

	switch {
	case usage >= criticalWaterMark && !m.isPaused:
		logging.Warn("Memory critical (%.1f%% of limit), pausing batch work", usage*100)
		m.isPaused = true
		metrics.MemoryPaused.Set(1)
		go runtime.GC()
	case usage < highWaterMark && m.isPaused:
		logging.Info("Memory recovered (%.1f%% of limit), resuming batch work", usage*100)
		m.isPaused = false
		metrics.MemoryPaused.Set(0)
		close(m.pauseChan)
		m.pauseChan = make(chan struct{})
	}
}

// WaitIfPaused blocks while usage is critical. It returns false only when the
// monitor is stopped while waiting.
func (m *Monitor) WaitIfPaused() bool {
	m.mu.RLock()
	if !m.isPaused {
		m.mu.RUnlock()
		return true
	}
	pauseChan := m.pauseChan
	m.mu.RUnlock()

	select {
	case <-pauseChan:
		return true
	case <-m.stopChan:
		return false
	}
}

// IsPaused reports whether batch work should be paused.
func (m *Monitor) IsPaused() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isPaused
}

// Usage returns current heap usage as a fraction of the limit, or 0 when no
// limit is configured.
func (m *Monitor) Usage() float64 {
	if m.limit == 0 {
		return 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return float64(m.current) / float64(m.limit)
}

package memory

import (
	"runtime/debug"
	"testing"
	"time"
)

func TestFormatBytes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   int64
		want string
	}{
		{512, "512 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{1 << 20, "1.0 MiB"},
		{1 << 30, "1.0 GiB"},
	}

	for _, tt := range tests {
		if got := formatBytes(tt.in); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMonitorWithoutLimit(t *testing.T) {
	prev := debug.SetMemoryLimit(-1)
	defer debug.SetMemoryLimit(prev)

	m := NewMonitor()
	if m.limit != 0 && m.limit != prev {
		t.Fatalf("limit = %d", m.limit)
	}

	if m.IsPaused() {
		t.Error("fresh monitor should not be paused")
	}
	if !m.WaitIfPaused() {
		t.Error("WaitIfPaused should not block an unpaused monitor")
	}
}

func TestMonitorCheckNeverPausesUnderGenerousLimit(t *testing.T) {
	m := &Monitor{
		limit:     1 << 50,
		stopChan:  make(chan struct{}),
		pauseChan: make(chan struct{}),
	}

	m.check()
	if m.IsPaused() {
		t.Error("monitor paused under a generous limit")
	}
	if u := m.Usage(); u <= 0 || u >= highWaterMark {
		t.Errorf("usage = %v, want small but positive", u)
	}
}

func TestMonitorPauseResume(t *testing.T) {
	m := &Monitor{
		limit:     1, // everything is over the critical mark
		stopChan:  make(chan struct{}),
		pauseChan: make(chan struct{}),
	}

	m.check()
	if !m.IsPaused() {
		t.Fatal("monitor should pause with a 1-byte limit")
	}

	// A waiter blocks until the limit recovers.
	released := make(chan bool, 1)
	go func() { released <- m.WaitIfPaused() }()

	select {
	case <-released:
		t.Fatal("WaitIfPaused returned while paused")
	case <-time.After(20 * time.Millisecond):
	}

	m.mu.Lock()
	m.limit = 1 << 50
	m.mu.Unlock()
	m.check()

	select {
	case ok := <-released:
		if !ok {
			t.Error("waiter released by stop, want resume")
		}
	case <-time.After(time.Second):
		t.Fatal("waiter not released after recovery")
	}
}

func TestStopReleasesWaiters(t *testing.T) {
	m := &Monitor{
		limit:     1,
		stopChan:  make(chan struct{}),
		pauseChan: make(chan struct{}),
	}
	m.check()

	released := make(chan bool, 1)
	go func() { released <- m.WaitIfPaused() }()

	m.Stop()

	select {
	case ok := <-released:
		if ok {
			t.Error("stopped waiter returned true")
		}
	case <-time.After(time.Second):
		t.Fatal("waiter not released by Stop")
	}
}

func TestConfigureFromEnv(t *testing.T) {
	prev := debug.SetMemoryLimit(-1)
	defer debug.SetMemoryLimit(prev)

	t.Setenv("GOMEMLIMIT", "")
	t.Setenv("MEMORY_LIMIT", "1073741824")
	t.Setenv("MEMORY_RATIO", "0.5")

	ConfigureFromEnv()

	if got := debug.SetMemoryLimit(-1); got != 1073741824/2 {
		t.Errorf("GOMEMLIMIT = %d, want %d", got, 1073741824/2)
	}
}

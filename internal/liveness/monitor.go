// Package liveness judges whether the game client is still running from the
// heartbeats it sends.
package liveness

import (
	"sync"
	"time"
)

const DefaultTimeout = 10 * time.Second

// Status is the answer to a connection query. Times are Unix seconds.
type Status struct {
	Connected     bool    `json:"connected"`
	LastHeartbeat float64 `json:"last_heartbeat"`
	Now           float64 `json:"now"`
	Diff          float64 `json:"diff"`
}

// Monitor tracks the last heartbeat. It never probes; a silent peer is
// only judged disconnected when someone asks.
type Monitor struct {
	mu       sync.RWMutex
	lastSeen time.Time
	timeout  time.Duration
	now      func() time.Time
}

// NewMonitor starts with lastSeen at construction time, so the peer counts
// as connected until the first timeout elapses.
func NewMonitor(timeout time.Duration) *Monitor {
	return NewMonitorWithClock(timeout, time.Now)
}

func NewMonitorWithClock(timeout time.Duration, now func() time.Time) *Monitor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Monitor{lastSeen: now(), timeout: timeout, now: now}
}

// RecordHeartbeat marks the peer as seen now and returns the recorded time.
func (m *Monitor) RecordHeartbeat() time.Time {
	t := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.After(m.lastSeen) {
		m.lastSeen = t
	}
	return m.lastSeen
}

// LastSeen returns the time of the last heartbeat.
func (m *Monitor) LastSeen() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastSeen
}

func (m *Monitor) Timeout() time.Duration { return m.timeout }

// Status reports whether the last heartbeat is within the timeout.
func (m *Monitor) Status() Status {
	now := m.now()
	last := m.LastSeen()
	diff := now.Sub(last)
	return Status{
		Connected:     diff < m.timeout,
		LastHeartbeat: UnixSeconds(last),
		Now:           UnixSeconds(now),
		Diff:          diff.Seconds(),
	}
}

// UnixSeconds renders t as fractional Unix seconds.
func UnixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

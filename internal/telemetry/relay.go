// Package telemetry relays vehicle telemetry from the game client to
// observers through a small lossy queue.
package telemetry

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/soar/joybridge/internal/metrics"
)

const (
	DefaultCapacity = 5
	DefaultWait     = 200 * time.Millisecond
	DefaultDelay    = 10 * time.Millisecond

	dropLogEvery = 100
)

// Event is an opaque telemetry record such as {"CurrentSpeed": 42}.
type Event map[string]any

// Sink receives relayed events. It must not block for long.
type Sink interface {
	BroadcastTelemetry(Event)
}

// Sinks fans an event out to several sinks in order.
type Sinks []Sink

func (s Sinks) BroadcastTelemetry(ev Event) {
	for _, sink := range s {
		sink.BroadcastTelemetry(ev)
	}
}

type Config struct {
	Capacity int
	Wait     time.Duration
	Delay    time.Duration
}

// Relay is a bounded FIFO between telemetry producers and one consumer
// loop. When full, new events are dropped.
type Relay struct {
	queue   chan Event
	sink    Sink
	wait    time.Duration
	delay   time.Duration
	metrics *metrics.Metrics

	relayed atomic.Uint64
	dropped atomic.Uint64
}

func NewRelay(cfg Config, sink Sink, m *metrics.Metrics) *Relay {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.Wait <= 0 {
		cfg.Wait = DefaultWait
	}
	if cfg.Delay < 0 {
		cfg.Delay = 0
	}
	return &Relay{
		queue:   make(chan Event, cfg.Capacity),
		sink:    sink,
		wait:    cfg.Wait,
		delay:   cfg.Delay,
		metrics: m,
	}
}

// Publish enqueues ev without blocking. It reports false if ev was dropped.
func (r *Relay) Publish(ev Event) bool {
	select {
	case r.queue <- ev:
		r.metrics.SetQueueLength(len(r.queue))
		return true
	default:
		n := r.dropped.Add(1)
		r.metrics.TelemetryDropped()
		if n == 1 || n%dropLogEvery == 0 {
			log.Printf("Telemetry queue full, dropped %d events so far", n)
		}
		return false
	}
}

// Run delivers queued events until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) {
	wait := time.NewTimer(r.wait)
	defer wait.Stop()
	pause := time.NewTimer(r.delay)
	defer pause.Stop()

	for {
		wait.Reset(r.wait)
		select {
		case <-ctx.Done():
			return
		case ev := <-r.queue:
			r.deliver(ev)
		case <-wait.C:
			// idle
		}

		pause.Reset(r.delay)
		select {
		case <-ctx.Done():
			return
		case <-pause.C:
		}
	}
}

func (r *Relay) deliver(ev Event) {
	r.metrics.SetQueueLength(len(r.queue))
	if r.sink != nil {
		r.sink.BroadcastTelemetry(ev)
	}
	r.relayed.Add(1)
	r.metrics.TelemetryRelayed()
}

// Len returns the number of queued events.
func (r *Relay) Len() int { return len(r.queue) }

// Cap returns the queue capacity.
func (r *Relay) Cap() int { return cap(r.queue) }

// Stats returns how many events were relayed and dropped.
func (r *Relay) Stats() (relayed, dropped uint64) {
	return r.relayed.Load(), r.dropped.Load()
}

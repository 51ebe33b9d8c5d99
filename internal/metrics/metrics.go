// Package metrics exposes Prometheus collectors for the bridge.
// A nil *Metrics is valid and records nothing.
package metrics

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	telemetryRelayed prometheus.Counter
	telemetryDropped prometheus.Counter
	queueLength      prometheus.Gauge
	controlUpdates   prometheus.Counter
	deviceErrors     prometheus.Counter
	deviceRecoveries prometheus.Counter
	heartbeats       prometheus.Counter
	controlQueries   prometheus.Counter
	inboundUpdates   *prometheus.CounterVec
	peerConnected    prometheus.Gauge
	observers        prometheus.Gauge
	eventsDropped    prometheus.Counter
	mappingPruned    prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		telemetryRelayed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "joybridge_telemetry_relayed_total",
			Help: "Telemetry events delivered to subscribers.",
		}),
		telemetryDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "joybridge_telemetry_dropped_total",
			Help: "Telemetry events dropped because the relay queue was full.",
		}),
		queueLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "joybridge_telemetry_queue_length",
			Help: "Telemetry events waiting in the relay queue.",
		}),
		controlUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "joybridge_control_updates_total",
			Help: "Control snapshots published by the sampler.",
		}),
		deviceErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "joybridge_device_errors_total",
			Help: "Joystick read failures seen by the sampler.",
		}),
		deviceRecoveries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "joybridge_device_recoveries_total",
			Help: "Successful joystick subsystem recoveries.",
		}),
		heartbeats: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "joybridge_heartbeats_total",
			Help: "Heartbeats received from the game client.",
		}),
		controlQueries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "joybridge_control_queries_total",
			Help: "Control snapshot pull requests served.",
		}),
		inboundUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "joybridge_inbound_updates_total",
			Help: "Inbound updates by routing kind.",
		}, []string{"kind"}),
		peerConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "joybridge_peer_connected",
			Help: "1 if the game client was alive at the last status query.",
		}),
		observers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "joybridge_observers",
			Help: "Connected observer WebSocket clients.",
		}),
		eventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "joybridge_sampler_events_dropped_total",
			Help: "Sampler notifications dropped because subscribers fell behind.",
		}),
		mappingPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "joybridge_mapping_pruned_total",
			Help: "Mapped controls unset because the joystick no longer has that axis or button.",
		}),
	}
	reg.MustRegister(
		m.telemetryRelayed, m.telemetryDropped, m.queueLength,
		m.controlUpdates, m.deviceErrors, m.deviceRecoveries,
		m.heartbeats, m.controlQueries, m.inboundUpdates,
		m.peerConnected, m.observers, m.eventsDropped, m.mappingPruned,
	)
	return m
}

func (m *Metrics) TelemetryRelayed() {
	if m != nil {
		m.telemetryRelayed.Inc()
	}
}

func (m *Metrics) TelemetryDropped() {
	if m != nil {
		m.telemetryDropped.Inc()
	}
}

func (m *Metrics) SetQueueLength(n int) {
	if m != nil {
		m.queueLength.Set(float64(n))
	}
}

func (m *Metrics) ControlUpdate() {
	if m != nil {
		m.controlUpdates.Inc()
	}
}

func (m *Metrics) DeviceError() {
	if m != nil {
		m.deviceErrors.Inc()
	}
}

func (m *Metrics) DeviceRecovered() {
	if m != nil {
		m.deviceRecoveries.Inc()
	}
}

func (m *Metrics) Heartbeat() {
	if m != nil {
		m.heartbeats.Inc()
	}
}

func (m *Metrics) ControlQuery() {
	if m != nil {
		m.controlQueries.Inc()
	}
}

func (m *Metrics) InboundUpdate(kind string) {
	if m != nil {
		m.inboundUpdates.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) SetPeerConnected(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.peerConnected.Set(1)
	} else {
		m.peerConnected.Set(0)
	}
}

func (m *Metrics) SetObservers(n int) {
	if m != nil {
		m.observers.Set(float64(n))
	}
}

func (m *Metrics) SamplerEventDropped() {
	if m != nil {
		m.eventsDropped.Inc()
	}
}

func (m *Metrics) MappingPruned(n int) {
	if m != nil {
		m.mappingPruned.Add(float64(n))
	}
}

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRecord(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.TelemetryDropped()
	m.TelemetryDropped()
	if got := testutil.ToFloat64(m.telemetryDropped); got != 2 {
		t.Fatalf("expected dropped counter 2, got %f", got)
	}

	m.SetQueueLength(4)
	if got := testutil.ToFloat64(m.queueLength); got != 4 {
		t.Fatalf("expected queue gauge 4, got %f", got)
	}

	m.InboundUpdate("telemetry")
	m.InboundUpdate("controls")
	m.InboundUpdate("telemetry")
	if got := testutil.ToFloat64(m.inboundUpdates.WithLabelValues("telemetry")); got != 2 {
		t.Fatalf("expected 2 telemetry updates, got %f", got)
	}

	m.SetPeerConnected(true)
	if got := testutil.ToFloat64(m.peerConnected); got != 1 {
		t.Fatalf("expected peer gauge 1, got %f", got)
	}
	m.SetPeerConnected(false)
	if got := testutil.ToFloat64(m.peerConnected); got != 0 {
		t.Fatalf("expected peer gauge 0, got %f", got)
	}

	m.SamplerEventDropped()
	if got := testutil.ToFloat64(m.eventsDropped); got != 1 {
		t.Fatalf("expected 1 dropped sampler event, got %f", got)
	}
	m.MappingPruned(2)
	if got := testutil.ToFloat64(m.mappingPruned); got != 2 {
		t.Fatalf("expected 2 pruned fields, got %f", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.TelemetryRelayed()
	m.TelemetryDropped()
	m.SetQueueLength(1)
	m.ControlUpdate()
	m.DeviceError()
	m.DeviceRecovered()
	m.Heartbeat()
	m.ControlQuery()
	m.InboundUpdate("controls")
	m.SetPeerConnected(true)
	m.SetObservers(3)
	m.SamplerEventDropped()
	m.MappingPruned(1)
}

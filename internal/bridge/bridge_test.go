package bridge

import (
	"errors"
	"testing"
	"time"

	"github.com/soar/joybridge/internal/device"
	"github.com/soar/joybridge/internal/device/devicetest"
	"github.com/soar/joybridge/internal/gamepad"
	"github.com/soar/joybridge/internal/liveness"
	"github.com/soar/joybridge/internal/telemetry"
)

func newTestBridge(t *testing.T) (*Bridge, *telemetry.Relay) {
	t.Helper()
	mgr := device.NewManager(devicetest.New(devicetest.NewDevice("Wheel", 6, 2)))
	if err := mgr.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	store := gamepad.NewStore()
	relay := telemetry.NewRelay(telemetry.Config{}, nil, nil)
	b := New(Deps{
		Sampler:  gamepad.NewSampler(mgr, gamepad.NewMappingStore(), store, nil, gamepad.Options{}),
		Store:    store,
		Devices:  mgr,
		Relay:    relay,
		Liveness: liveness.NewMonitor(10 * time.Second),
	})
	return b, relay
}

func TestUpdateRoutesTelemetryToRelay(t *testing.T) {
	b, relay := newTestBridge(t)

	res, err := b.Update(map[string]any{"CurrentSpeed": 42.0, "Throttle": 0.9})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if res.Kind != telemetry.KindTelemetry || !res.Queued {
		t.Fatalf("expected queued telemetry, got %+v", res)
	}
	if relay.Len() != 1 {
		t.Fatalf("expected 1 queued event, got %d", relay.Len())
	}
	if got := b.Controls().Throttle; got != 0 {
		t.Fatalf("telemetry must not merge into controls, throttle=%v", got)
	}
}

func TestUpdateMergesControls(t *testing.T) {
	b, relay := newTestBridge(t)

	res, err := b.Update(map[string]any{"Handbrake": true, "Gear": "R"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if res.Kind != telemetry.KindControls {
		t.Fatalf("expected controls, got %s", res.Kind)
	}
	snap := b.Controls()
	if !snap.Handbrake || snap.Extra["Gear"] != "R" {
		t.Fatalf("expected merged controls, got %s %v", snap, snap.Extra)
	}
	if relay.Len() != 0 {
		t.Fatalf("controls must not reach the relay")
	}
}

func TestSixTelemetryUpdatesDropOne(t *testing.T) {
	b, relay := newTestBridge(t)

	queued := 0
	for i := 0; i < 6; i++ {
		res, err := b.Update(map[string]any{"Occupied": true})
		if err != nil {
			t.Fatalf("dropped telemetry must not be an error: %v", err)
		}
		if res.Queued {
			queued++
		}
	}
	if queued != 5 || relay.Len() != 5 {
		t.Fatalf("expected 5 retained, got queued=%d len=%d", queued, relay.Len())
	}
}

func TestUpdatePartialReject(t *testing.T) {
	b, _ := newTestBridge(t)

	res, err := b.Update(map[string]any{"Steering": "left", "Brake": 0.3})
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
	if len(res.Rejected) != 1 {
		t.Fatalf("expected one rejected field, got %v", res.Rejected)
	}
	if got := b.Controls().Brake; got != 0.3 {
		t.Fatalf("valid field should still apply, brake=%v", got)
	}
}

func TestHeartbeatAndConnection(t *testing.T) {
	b, _ := newTestBridge(t)

	ts := b.Heartbeat()
	st := b.Connection()
	if !st.Connected {
		t.Fatalf("expected connected right after a heartbeat")
	}
	if st.LastHeartbeat != liveness.UnixSeconds(ts) {
		t.Fatalf("status should report the recorded heartbeat, got %v want %v", st.LastHeartbeat, liveness.UnixSeconds(ts))
	}
}

func TestUpdateMappingThroughBridge(t *testing.T) {
	b, _ := newTestBridge(t)

	if _, err := b.SelectDevice(0); err != nil {
		t.Fatalf("select: %v", err)
	}
	m, errs := b.UpdateMapping(map[string]any{"steering": 0.0, "throttle": 9.0, "brake": "1"})
	if len(errs) != 1 {
		t.Fatalf("expected throttle rejected, got %v", errs)
	}
	if m.Steering == nil || *m.Steering != 0 || m.Throttle != nil || m.Brake == nil || *m.Brake != 1 {
		t.Fatalf("unexpected mapping: %s", m)
	}
	if got := b.Mapping(); got.String() != m.String() {
		t.Fatalf("mapping not persisted: %s", got)
	}

	devs, err := b.Devices()
	if err != nil || len(devs) != 1 || devs[0].Name != "Wheel" {
		t.Fatalf("unexpected device list: %v %v", devs, err)
	}
}

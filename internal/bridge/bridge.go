// Package bridge is the request-facing side of the controller bridge. Every
// transport (HTTP, observer socket, game link, MQTT) goes through it.
package bridge

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/soar/joybridge/internal/device"
	"github.com/soar/joybridge/internal/gamepad"
	"github.com/soar/joybridge/internal/liveness"
	"github.com/soar/joybridge/internal/metrics"
	"github.com/soar/joybridge/internal/telemetry"
)

const (
	controlsLogEvery = 50
	updateLogWindow  = 10 * time.Second
)

// UpdateResult describes how an inbound update was routed.
type UpdateResult struct {
	Kind telemetry.Kind
	// Queued is false when a telemetry event was dropped by a full relay.
	Queued bool
	// Rejected lists control fields that failed validation.
	Rejected []error
}

// ErrRejected wraps the field errors of a partially applied update.
var ErrRejected = errors.New("update rejected")

type Bridge struct {
	sampler    *gamepad.Sampler
	store      *gamepad.Store
	devices    *device.Manager
	relay      *telemetry.Relay
	classifier *telemetry.Classifier
	liveness   *liveness.Monitor
	metrics    *metrics.Metrics
	now        func() time.Time

	mu             sync.Mutex
	controlQueries uint64
	updates        int
	updatesSince   time.Time
}

type Deps struct {
	Sampler    *gamepad.Sampler
	Store      *gamepad.Store
	Devices    *device.Manager
	Relay      *telemetry.Relay
	Classifier *telemetry.Classifier
	Liveness   *liveness.Monitor
	Metrics    *metrics.Metrics
}

func New(d Deps) *Bridge {
	if d.Classifier == nil {
		d.Classifier = telemetry.NewClassifier(nil)
	}
	return &Bridge{
		sampler:      d.Sampler,
		store:        d.Store,
		devices:      d.Devices,
		relay:        d.Relay,
		classifier:   d.Classifier,
		liveness:     d.Liveness,
		metrics:      d.Metrics,
		now:          time.Now,
		updatesSince: time.Now(),
	}
}

// Controls returns the current snapshot.
func (b *Bridge) Controls() gamepad.ControlSnapshot {
	b.mu.Lock()
	b.controlQueries++
	n := b.controlQueries
	b.mu.Unlock()

	b.metrics.ControlQuery()
	if n%controlsLogEvery == 0 {
		log.Printf("Served %d control requests", n)
	}
	return b.store.Snapshot()
}

// Update routes a partial update: telemetry goes to the relay, anything
// else is merged into the control state. A returned error wraps
// ErrRejected; valid fields have still been applied.
func (b *Bridge) Update(update map[string]any) (UpdateResult, error) {
	b.countUpdate()

	kind := b.classifier.Classify(update)
	b.metrics.InboundUpdate(string(kind))
	res := UpdateResult{Kind: kind}

	if kind == telemetry.KindTelemetry {
		res.Queued = b.relay.Publish(telemetry.Event(update))
		return res, nil
	}

	res.Rejected = b.store.Merge(update)
	if len(res.Rejected) > 0 {
		return res, errors.Join(append([]error{ErrRejected}, res.Rejected...)...)
	}
	return res, nil
}

func (b *Bridge) countUpdate() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.updates++
	if now := b.now(); now.Sub(b.updatesSince) > updateLogWindow {
		log.Printf("Received %d vehicle updates in the last %s", b.updates, updateLogWindow)
		b.updates = 0
		b.updatesSince = now
	}
}

// Heartbeat records a liveness ping from the game client.
func (b *Bridge) Heartbeat() time.Time {
	t := b.liveness.RecordHeartbeat()
	b.metrics.Heartbeat()
	return t
}

// Connection reports whether the game client is alive.
func (b *Bridge) Connection() liveness.Status {
	st := b.liveness.Status()
	b.metrics.SetPeerConnected(st.Connected)
	state := "Disconnected"
	if st.Connected {
		state = "Connected"
	}
	log.Printf("Game client connection status check: %s (Last heartbeat: %.2fs ago)", state, st.Diff)
	return st
}

// Devices lists the attached joysticks.
func (b *Bridge) Devices() ([]device.Descriptor, error) {
	return b.devices.List()
}

// SelectedDevice returns the selected joystick, if any.
func (b *Bridge) SelectedDevice() (device.Info, bool) {
	return b.devices.Selected()
}

// SelectDevice selects a joystick and resets the mapping.
func (b *Bridge) SelectDevice(index int) (device.Info, error) {
	return b.sampler.SelectDevice(index)
}

// UpdateMapping applies a loosely typed mapping update and returns the
// resulting mapping with every rejected field.
func (b *Bridge) UpdateMapping(raw map[string]any) (gamepad.Mapping, []error) {
	req, errs := gamepad.DecodeMappingRequest(raw)
	m, applyErrs := b.sampler.UpdateMapping(req)
	return m, append(errs, applyErrs...)
}

// Mapping returns the active mapping.
func (b *Bridge) Mapping() gamepad.Mapping {
	return b.sampler.Mapping()
}

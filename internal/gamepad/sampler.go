package gamepad

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/soar/joybridge/internal/device"
	"github.com/soar/joybridge/internal/metrics"
)

const (
	DefaultPollInterval = 10 * time.Millisecond

	debugEvery    = 100 // log the current controls every N published changes
	errorLogEvery = 500 // log every Nth repeated failure
)

// EventKind names a sampler notification.
type EventKind string

const (
	EventControls EventKind = "control_update"
	EventMapping  EventKind = "mapping_updated"
	EventDevice   EventKind = "joystick_info"
)

// Event is a notification for subscribers. Only the field matching Kind
// is meaningful.
type Event struct {
	Kind     EventKind
	Controls ControlSnapshot
	Mapping  Mapping
	Device   device.Info
}

type Options struct {
	PollInterval time.Duration
	Debounce     float64
}

// lastValues are the values most recently published by the sampler.
type lastValues struct {
	steering  float64
	throttle  float64
	brake     float64
	handbrake bool
}

// Sampler polls the selected joystick, applies the mapping and publishes
// debounced changes to the Store.
type Sampler struct {
	devices   *device.Manager
	mapping   *MappingStore
	store     *Store
	metrics   *metrics.Metrics
	interval  time.Duration
	threshold float64
	events    chan Event
	dropped   atomic.Uint64

	// mu serializes sampling, selection, mapping changes and recovery, so
	// the mapping is only ever checked against the joystick being read.
	// The fields below it are guarded by it.
	mu              sync.Mutex
	last            lastValues
	published       uint64
	failures        int
	recoverFailures int
}

func NewSampler(devices *device.Manager, mapping *MappingStore, store *Store, m *metrics.Metrics, opts Options) *Sampler {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	return &Sampler{
		devices:   devices,
		mapping:   mapping,
		store:     store,
		metrics:   m,
		interval:  opts.PollInterval,
		threshold: opts.Debounce,
		events:    make(chan Event, 64),
	}
}

// Events returns the channel on which notifications are sent.
func (s *Sampler) Events() <-chan Event {
	return s.events
}

// Mapping returns the active mapping.
func (s *Sampler) Mapping() Mapping {
	return s.mapping.Get()
}

// Run polls until ctx is cancelled. A failed read never ends the loop.
func (s *Sampler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Sampler) tick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.devices.Selected(); !ok {
		return
	}
	if s.devices.State() == device.Faulted {
		if err := s.recover(); err != nil {
			return
		}
	}

	if err := s.devices.Pump(); err != nil {
		s.fail(err)
		return
	}
	batch, err := s.read(s.mapping.Get())
	if err != nil {
		s.fail(err)
		return
	}
	s.failures = 0
	if batch.IsEmpty() {
		return
	}

	snap := s.store.ApplySample(batch)
	s.metrics.ControlUpdate()
	s.published++
	if s.published%debugEvery == 0 {
		log.Printf("Current controls: %s, Mapping: %s", snap, s.mapping.Get())
	}
	s.emit(Event{Kind: EventControls, Controls: snap})
}

// read samples every mapped control. Last values only advance when the
// whole tick read cleanly.
func (s *Sampler) read(m Mapping) (Sample, error) {
	var b Sample
	next := s.last

	if m.Steering != nil {
		raw, err := s.devices.Axis(*m.Steering)
		if err != nil {
			return Sample{}, err
		}
		v := SteeringValue(raw)
		if !floatEqual(next.steering, v, s.threshold) {
			next.steering = v
			b.Steering = &v
		}
	}

	if m.Throttle != nil {
		raw, err := s.devices.Axis(*m.Throttle)
		if err != nil {
			return Sample{}, err
		}
		throttle, brake := ThrottleValue(raw), BrakeValue(raw)
		if !floatEqual(next.throttle, throttle, s.threshold) {
			next.throttle = throttle
			b.Throttle = &throttle
		}
		if !floatEqual(next.brake, brake, s.threshold) {
			next.brake = brake
			b.Brake = &brake
		}
	}

	if m.Brake != nil {
		pressed, err := s.devices.Button(*m.Brake)
		if err != nil {
			return Sample{}, err
		}
		if pressed != next.handbrake {
			next.handbrake = pressed
			b.Handbrake = &pressed
		}
	}

	s.last = next
	return b, nil
}

// fail handles a read error. Called with s.mu held.
func (s *Sampler) fail(err error) {
	if errors.Is(err, device.ErrNoDevice) {
		// deselected between checks
		return
	}
	if errors.Is(err, device.ErrOutOfRange) && s.prune() > 0 {
		// the mapping pointed past the device; the device itself is fine
		return
	}
	s.metrics.DeviceError()
	s.failures++
	if s.failures == 1 || s.failures%errorLogEvery == 0 {
		log.Printf("Joystick error (%d in a row): %v, resetting...", s.failures, err)
	}
	s.devices.Fault(err)
	s.recover()
}

// recover reopens a faulted joystick. A different controller may come back
// at the same index, so the mapping is pruned to its counts. Called with
// s.mu held.
func (s *Sampler) recover() error {
	if s.devices.State() != device.Faulted {
		return nil
	}
	before, _ := s.devices.Selected()
	if err := s.devices.Recover(); err != nil {
		s.recoverFailures++
		if s.recoverFailures == 1 || s.recoverFailures%errorLogEvery == 0 {
			log.Printf("Joystick recovery failed (attempt %d): %v", s.recoverFailures, err)
		}
		return err
	}
	s.recoverFailures = 0
	s.metrics.DeviceRecovered()

	after, ok := s.devices.Selected()
	if ok && after != before {
		log.Printf("Joystick %d came back as %s with %d axes and %d buttons", after.Index, after.Name, after.Axes, after.Buttons)
		s.emit(Event{Kind: EventDevice, Device: after})
		s.prune()
	}
	return nil
}

// prune unsets mapped controls the selected joystick does not have and
// returns how many were dropped. Called with s.mu held.
func (s *Sampler) prune() int {
	info, ok := s.devices.Selected()
	if !ok {
		return 0
	}
	m, dropped := s.mapping.Prune(info.Axes, info.Buttons)
	if len(dropped) == 0 {
		return 0
	}
	s.metrics.MappingPruned(len(dropped))
	log.Printf("Joystick %d has %d axes and %d buttons, unmapped %s", info.Index, info.Axes, info.Buttons, strings.Join(dropped, ", "))
	s.emit(Event{Kind: EventMapping, Mapping: m})
	return len(dropped)
}

// SelectDevice resets the mapping and opens the joystick at index. The new
// device's counts are pushed to subscribers straight away.
func (s *Sampler) SelectDevice(index int) (device.Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mapping.Reset()
	info, err := s.devices.Select(index)
	if err != nil {
		log.Printf("Error initializing joystick %d: %v", index, err)
		return device.Info{}, err
	}
	log.Printf("Joystick %d selected: %s has %d axes and %d buttons", index, info.Name, info.Axes, info.Buttons)
	s.emit(Event{Kind: EventDevice, Device: info})
	return info, nil
}

// UpdateMapping validates req against the selected joystick and applies
// the fields that fit. Rejected fields are returned and logged.
func (s *Sampler) UpdateMapping(req MappingRequest) (Mapping, []error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, ok := s.devices.Selected()
	if !ok {
		var errs []error
		for field, v := range map[string]*int{
			ControlSteering: req.Steering,
			ControlThrottle: req.Throttle,
			ControlBrake:    req.Brake,
		} {
			if v != nil {
				errs = append(errs, &ValidationError{Field: field, Value: *v, Reason: device.ErrNoDevice.Error()})
			}
		}
		for _, err := range errs {
			log.Printf("Error validating mapping: %v", err)
		}
		m := s.mapping.Get()
		s.emit(Event{Kind: EventMapping, Mapping: m})
		return m, errs
	}

	m, errs := s.mapping.Apply(req, info.Axes, info.Buttons)
	for _, err := range errs {
		log.Printf("Error validating mapping: %v", err)
	}
	log.Printf("Updated control mapping: %s", m)
	s.emit(Event{Kind: EventMapping, Mapping: m})
	return m, errs
}

func (s *Sampler) emit(e Event) {
	select {
	case s.events <- e:
	default:
		// the poll loop never blocks on slow subscribers
		n := s.dropped.Add(1)
		s.metrics.SamplerEventDropped()
		if n == 1 || n%errorLogEvery == 0 {
			log.Printf("Dropped %d sampler events, subscribers are falling behind", n)
		}
	}
}

// Dropped reports how many notifications were dropped on a full channel.
func (s *Sampler) Dropped() uint64 {
	return s.dropped.Load()
}

// Package devicetest provides an in-memory joystick backend for tests.
package devicetest

import (
	"errors"
	"sync"

	"github.com/soar/joybridge/internal/device"
)

// ErrUnplugged is returned by reads after Unplug.
var ErrUnplugged = errors.New("joystick unplugged")

// Device is a scripted joystick.
type Device struct {
	Name    string
	Axes    []float64
	Buttons []bool
}

// NewDevice returns a device with the given number of axes and buttons.
func NewDevice(name string, axes, buttons int) *Device {
	return &Device{Name: name, Axes: make([]float64, axes), Buttons: make([]bool, buttons)}
}

// Subsystem implements device.Subsystem over scripted devices.
type Subsystem struct {
	mu        sync.Mutex
	devices   []*Device
	inited    bool
	unplugged bool
	InitErr   error

	Inits int
	Quits int
	Pumps int
}

func New(devices ...*Device) *Subsystem {
	return &Subsystem{devices: devices}
}

var _ device.Subsystem = (*Subsystem)(nil)

func (s *Subsystem) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Inits++
	if s.InitErr != nil {
		return s.InitErr
	}
	s.inited = true
	return nil
}

func (s *Subsystem) Quit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Quits++
	s.inited = false
}

func (s *Subsystem) List() ([]device.Descriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]device.Descriptor, len(s.devices))
	for i, d := range s.devices {
		out[i] = device.Descriptor{Index: i, Name: d.Name}
	}
	return out, nil
}

func (s *Subsystem) Open(index int) (device.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.inited {
		return nil, device.ErrNotInitialized
	}
	if index < 0 || index >= len(s.devices) || s.unplugged {
		return nil, &device.DeviceError{Op: "open", Index: index, Err: device.ErrOutOfRange}
	}
	return &handle{sub: s, dev: s.devices[index]}, nil
}

func (s *Subsystem) PumpEvents() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Pumps++
	return nil
}

// SetAxis sets a raw axis value on device d.
func (s *Subsystem) SetAxis(d, axis int, v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices[d].Axes[axis] = v
}

// SetButton sets a button state on device d.
func (s *Subsystem) SetButton(d, button int, pressed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices[d].Buttons[button] = pressed
}

// Unplug makes every read and open fail until Replug.
func (s *Subsystem) Unplug() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unplugged = true
}

func (s *Subsystem) Replug() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unplugged = false
}

// Swap replaces the device at index, as when a different controller is
// plugged into the same slot. Open handles keep reading the old device.
func (s *Subsystem) Swap(index int, d *Device) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices[index] = d
}

// Counts returns the init, quit and pump counters.
func (s *Subsystem) Counts() (inits, quits, pumps int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Inits, s.Quits, s.Pumps
}

type handle struct {
	sub *Subsystem
	dev *Device
}

func (h *handle) Name() string     { return h.dev.Name }
func (h *handle) AxisCount() int   { return len(h.dev.Axes) }
func (h *handle) ButtonCount() int { return len(h.dev.Buttons) }

func (h *handle) Axis(i int) (float64, error) {
	h.sub.mu.Lock()
	defer h.sub.mu.Unlock()
	if h.sub.unplugged {
		return 0, &device.DeviceError{Op: "axis", Index: i, Err: ErrUnplugged}
	}
	if i < 0 || i >= len(h.dev.Axes) {
		return 0, &device.DeviceError{Op: "axis", Index: i, Err: device.ErrOutOfRange}
	}
	return h.dev.Axes[i], nil
}

func (h *handle) Button(i int) (bool, error) {
	h.sub.mu.Lock()
	defer h.sub.mu.Unlock()
	if h.sub.unplugged {
		return false, &device.DeviceError{Op: "button", Index: i, Err: ErrUnplugged}
	}
	if i < 0 || i >= len(h.dev.Buttons) {
		return false, &device.DeviceError{Op: "button", Index: i, Err: device.ErrOutOfRange}
	}
	return h.dev.Buttons[i], nil
}

func (h *handle) Close() {}

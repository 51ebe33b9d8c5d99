package device

import (
	"fmt"
	"log"
	"sync"
)

// State is the lifecycle state of the selected device.
type State int

const (
	Uninitialized State = iota
	Ready
	Faulted
)

func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case Faulted:
		return "faulted"
	default:
		return "uninitialized"
	}
}

// Info describes the selected joystick.
type Info struct {
	Index   int    `json:"index"`
	Name    string `json:"name"`
	Axes    int    `json:"axes"`
	Buttons int    `json:"buttons"`
}

// Manager owns the backend and the selected joystick handle.
//
// Uninitialized: nothing selected. Ready: a handle is open. Faulted: the
// selection is remembered but the handle was dropped after a read failure;
// Recover reinitializes the backend and reopens it.
type Manager struct {
	sub Subsystem

	mu       sync.RWMutex
	inited   bool
	state    State
	selected Info
	handle   Handle
	lastErr  error
}

func NewManager(sub Subsystem) *Manager {
	return &Manager{sub: sub}
}

// Init initializes the backend. Failure here is a startup error.
func (m *Manager) Init() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inited {
		return nil
	}
	if err := m.sub.Init(); err != nil {
		return fmt.Errorf("init joystick subsystem: %w", err)
	}
	m.inited = true
	return nil
}

// List returns the attached joysticks.
func (m *Manager) List() ([]Descriptor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.inited {
		return nil, ErrNotInitialized
	}
	return m.sub.List()
}

// Select opens the joystick at index, replacing any previous selection.
// On failure nothing stays selected.
func (m *Manager) Select(index int) (Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closeHandle()
	m.state = Uninitialized
	m.selected = Info{}

	if !m.inited {
		return Info{}, ErrNotInitialized
	}
	h, err := m.sub.Open(index)
	if err != nil {
		return Info{}, err
	}
	m.handle = h
	m.selected = Info{
		Index:   index,
		Name:    h.Name(),
		Axes:    h.AxisCount(),
		Buttons: h.ButtonCount(),
	}
	m.state = Ready
	m.lastErr = nil
	return m.selected, nil
}

// Selected returns the selected joystick, including one that is faulted.
func (m *Manager) Selected() (Info, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.selected, m.state != Uninitialized
}

func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Pump refreshes the backend event state.
func (m *Manager) Pump() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.readyLocked(); err != nil {
		return err
	}
	return m.sub.PumpEvents()
}

func (m *Manager) Axis(i int) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.readyLocked(); err != nil {
		return 0, err
	}
	return m.handle.Axis(i)
}

func (m *Manager) Button(i int) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.readyLocked(); err != nil {
		return false, err
	}
	return m.handle.Button(i)
}

// Fault drops the open handle after a read failure, keeping the selection.
func (m *Manager) Fault(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Ready {
		return
	}
	m.closeHandle()
	m.state = Faulted
	m.lastErr = err
}

// Recover restarts the backend and reopens the selected joystick. It is a
// no-op unless the manager is faulted.
func (m *Manager) Recover() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Faulted {
		return nil
	}

	if m.inited {
		m.sub.Quit()
		m.inited = false
	}
	if err := m.sub.Init(); err != nil {
		return fmt.Errorf("reinit joystick subsystem: %w", err)
	}
	m.inited = true

	h, err := m.sub.Open(m.selected.Index)
	if err != nil {
		return err
	}
	m.handle = h
	m.selected.Name = h.Name()
	m.selected.Axes = h.AxisCount()
	m.selected.Buttons = h.ButtonCount()
	m.state = Ready
	log.Printf("Joystick %d recovered: %s", m.selected.Index, m.selected.Name)
	return nil
}

// LastError returns the error that caused the last fault.
func (m *Manager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

// Close releases the handle and shuts the backend down.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeHandle()
	m.state = Uninitialized
	if m.inited {
		m.sub.Quit()
		m.inited = false
	}
}

func (m *Manager) readyLocked() error {
	switch m.state {
	case Ready:
		return nil
	case Faulted:
		return &DeviceError{Op: "read", Index: m.selected.Index, Err: ErrFaulted}
	default:
		return ErrNoDevice
	}
}

func (m *Manager) closeHandle() {
	if m.handle != nil {
		m.handle.Close()
		m.handle = nil
	}
}

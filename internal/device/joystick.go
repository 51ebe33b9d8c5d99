package device

import (
	"sync"

	"github.com/0xcafed00d/joystick"
)

const (
	// maxProbe bounds how many joystick ids are probed when listing.
	maxProbe = 16
	// maxButtons is the width of the button bitmask in joystick.State.
	maxButtons = 32
)

// JoystickSubsystem reads joysticks through the OS joystick API
// (/dev/input/js* on Linux, winmm on Windows). It needs no native library.
type JoystickSubsystem struct {
	mu     sync.Mutex
	ids    []int
	opened map[*jsHandle]struct{}
}

func NewJoystickSubsystem() *JoystickSubsystem {
	return &JoystickSubsystem{}
}

func (s *JoystickSubsystem) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opened = make(map[*jsHandle]struct{})
	return nil
}

func (s *JoystickSubsystem) Quit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for h := range s.opened {
		h.js.Close()
	}
	s.opened = nil
}

func (s *JoystickSubsystem) List() ([]Descriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.probe()
	out := make([]Descriptor, 0, len(s.ids))
	for i, id := range s.ids {
		js, err := joystick.Open(id)
		if err != nil {
			continue
		}
		out = append(out, Descriptor{Index: i, Name: js.Name()})
		js.Close()
	}
	return out, nil
}

// probe records which OS joystick ids are present, in order.
func (s *JoystickSubsystem) probe() {
	s.ids = s.ids[:0]
	for id := 0; id < maxProbe; id++ {
		js, err := joystick.Open(id)
		if err != nil {
			continue
		}
		js.Close()
		s.ids = append(s.ids, id)
	}
}

func (s *JoystickSubsystem) Open(index int) (Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.opened == nil {
		return nil, ErrNotInitialized
	}
	s.probe()
	if index < 0 || index >= len(s.ids) {
		return nil, &DeviceError{Op: "open", Index: index, Err: ErrOutOfRange}
	}
	js, err := joystick.Open(s.ids[index])
	if err != nil {
		return nil, &DeviceError{Op: "open", Index: index, Err: err}
	}
	h := &jsHandle{sub: s, js: js}
	s.opened[h] = struct{}{}
	return h, nil
}

// PumpEvents reads the current state of every open joystick.
func (s *JoystickSubsystem) PumpEvents() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for h := range s.opened {
		h.refresh()
	}
	return nil
}

type jsHandle struct {
	sub *JoystickSubsystem
	js  joystick.Joystick

	mu    sync.RWMutex
	state joystick.State
	err   error
}

func (h *jsHandle) refresh() {
	st, err := h.js.Read()
	h.mu.Lock()
	h.state, h.err = st, err
	h.mu.Unlock()
}

func (h *jsHandle) Name() string     { return h.js.Name() }
func (h *jsHandle) AxisCount() int   { return h.js.AxisCount() }
func (h *jsHandle) ButtonCount() int { return buttonCount(h.js.ButtonCount()) }

// buttonCount caps the reported buttons at what the state bitmask holds, so
// higher buttons are rejected at mapping time instead of reading as released.
func buttonCount(n int) int {
	return min(n, maxButtons)
}

func (h *jsHandle) Axis(i int) (float64, error) {
	if err := checkIndex("axis", i, h.js.AxisCount()); err != nil {
		return 0, err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.err != nil {
		return 0, &DeviceError{Op: "axis", Index: i, Err: h.err}
	}
	return axisValue(h.state, i)
}

func (h *jsHandle) Button(i int) (bool, error) {
	if err := checkIndex("button", i, h.ButtonCount()); err != nil {
		return false, err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.err != nil {
		return false, &DeviceError{Op: "button", Index: i, Err: h.err}
	}
	return buttonValue(h.state, i)
}

func axisValue(st joystick.State, i int) (float64, error) {
	if i >= len(st.AxisData) {
		return 0, &DeviceError{Op: "axis", Index: i, Err: ErrShortState}
	}
	return NormalizeAxis(st.AxisData[i]), nil
}

func buttonValue(st joystick.State, i int) (bool, error) {
	if i >= maxButtons {
		return false, &DeviceError{Op: "button", Index: i, Err: ErrOutOfRange}
	}
	return st.Buttons&(1<<uint(i)) != 0, nil
}

func (h *jsHandle) Close() {
	h.sub.mu.Lock()
	if h.sub.opened != nil {
		if _, ok := h.sub.opened[h]; ok {
			delete(h.sub.opened, h)
			h.js.Close()
		}
	}
	h.sub.mu.Unlock()
}

// Package device wraps joystick backends behind a small polling interface and
// tracks the one selected device through its lifecycle.
package device

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrNoDevice       = errors.New("no joystick selected")
	ErrFaulted        = errors.New("device subsystem faulted")
	ErrNotInitialized = errors.New("device subsystem not initialized")
	ErrDisconnected   = errors.New("joystick disconnected")
	ErrOutOfRange     = errors.New("index out of range")
	ErrShortState     = errors.New("joystick state has fewer axes than reported")
)

// DeviceError reports a failure talking to a joystick. Index is the device
// index for open errors and the axis/button index for reads.
type DeviceError struct {
	Op    string
	Index int
	Err   error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("device %s %d: %v", e.Op, e.Index, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// Descriptor names one attached joystick.
type Descriptor struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
}

// Handle is an opened joystick. Reads return the state captured by the last
// Subsystem.PumpEvents call.
type Handle interface {
	Name() string
	AxisCount() int
	ButtonCount() int
	Axis(i int) (float64, error)
	Button(i int) (bool, error)
	Close()
}

// Subsystem is a joystick backend.
type Subsystem interface {
	Init() error
	Quit()
	List() ([]Descriptor, error)
	Open(index int) (Handle, error)
	// PumpEvents refreshes OS event state; call once per poll before reads.
	PumpEvents() error
}

// NormalizeAxis converts a raw axis value (-32768..32767) to -1.0..1.0.
func NormalizeAxis(raw int) float64 {
	v := float64(raw) / math.MaxInt16
	if v < -1.0 {
		v = -1.0
	}
	if v > 1.0 {
		v = 1.0
	}
	return v
}

func checkIndex(op string, i, count int) error {
	if i < 0 || i >= count {
		return &DeviceError{Op: op, Index: i, Err: ErrOutOfRange}
	}
	return nil
}

package device

import (
	"errors"
	"log"
	"runtime"
	"sync"

	"github.com/jupiterrider/purego-sdl3/sdl"
)

// SDLSubsystem reads joysticks through the SDL3 Joystick API.
//
// SDL must be driven from a single OS thread, so every call is handed to one
// locked goroutine that lives for the life of the process.
type SDLSubsystem struct {
	calls chan func()
	start sync.Once
}

func NewSDLSubsystem() *SDLSubsystem {
	return &SDLSubsystem{calls: make(chan func())}
}

func (s *SDLSubsystem) loop() {
	runtime.LockOSThread()
	for fn := range s.calls {
		fn()
	}
}

func (s *SDLSubsystem) do(fn func()) {
	s.start.Do(func() { go s.loop() })
	done := make(chan struct{})
	s.calls <- func() {
		defer close(done)
		fn()
	}
	<-done
}

func (s *SDLSubsystem) Init() error {
	var err error
	s.do(func() {
		if !sdl.Init(sdl.InitJoystick) {
			err = errors.New(sdl.GetError())
			return
		}
		log.Println("SDL3 Joystick subsystem initialized")
	})
	return err
}

func (s *SDLSubsystem) Quit() {
	s.do(func() {
		sdl.Quit()
		log.Println("SDL3 Joystick subsystem shut down")
	})
}

func (s *SDLSubsystem) List() ([]Descriptor, error) {
	var out []Descriptor
	s.do(func() {
		for i, id := range sdl.GetJoysticks() {
			name := ""
			if js := sdl.OpenJoystick(id); js != nil {
				name = sdl.GetJoystickName(js)
				sdl.CloseJoystick(js)
			}
			out = append(out, Descriptor{Index: i, Name: name})
		}
	})
	return out, nil
}

func (s *SDLSubsystem) Open(index int) (Handle, error) {
	var (
		h   *sdlHandle
		err error
	)
	s.do(func() {
		ids := sdl.GetJoysticks()
		if index < 0 || index >= len(ids) {
			err = &DeviceError{Op: "open", Index: index, Err: ErrOutOfRange}
			return
		}
		js := sdl.OpenJoystick(ids[index])
		if js == nil {
			err = &DeviceError{Op: "open", Index: index, Err: errors.New(sdl.GetError())}
			return
		}
		h = &sdlHandle{
			sub:     s,
			js:      js,
			name:    sdl.GetJoystickName(js),
			axes:    int(sdl.GetNumJoystickAxes(js)),
			buttons: int(sdl.GetNumJoystickButtons(js)),
		}
		log.Printf("Joystick opened: %s (VID=%04X PID=%04X) axes=%d buttons=%d",
			h.name, sdl.GetJoystickVendor(js), sdl.GetJoystickProduct(js), h.axes, h.buttons)
	})
	if err != nil {
		return nil, err
	}
	return h, nil
}

// PumpEvents drains the SDL event queue, which also refreshes joystick state.
func (s *SDLSubsystem) PumpEvents() error {
	s.do(func() {
		var event sdl.Event
		for sdl.PollEvent(&event) {
			switch event.Type() {
			case sdl.EventJoystickAdded:
				log.Printf("Joystick added: id=%d", event.JDevice().Which)
			case sdl.EventJoystickRemoved:
				log.Printf("Joystick removed: id=%d", event.JDevice().Which)
			}
		}
	})
	return nil
}

type sdlHandle struct {
	sub     *SDLSubsystem
	js      *sdl.Joystick
	name    string
	axes    int
	buttons int
}

func (h *sdlHandle) Name() string     { return h.name }
func (h *sdlHandle) AxisCount() int   { return h.axes }
func (h *sdlHandle) ButtonCount() int { return h.buttons }

func (h *sdlHandle) Axis(i int) (float64, error) {
	if err := checkIndex("axis", i, h.axes); err != nil {
		return 0, err
	}
	var (
		v   float64
		err error
	)
	h.sub.do(func() {
		if !sdl.JoystickConnected(h.js) {
			err = &DeviceError{Op: "axis", Index: i, Err: ErrDisconnected}
			return
		}
		v = NormalizeAxis(int(sdl.GetJoystickAxis(h.js, int32(i))))
	})
	return v, err
}

func (h *sdlHandle) Button(i int) (bool, error) {
	if err := checkIndex("button", i, h.buttons); err != nil {
		return false, err
	}
	var (
		pressed bool
		err     error
	)
	h.sub.do(func() {
		if !sdl.JoystickConnected(h.js) {
			err = &DeviceError{Op: "button", Index: i, Err: ErrDisconnected}
			return
		}
		pressed = sdl.GetJoystickButton(h.js, int32(i))
	})
	return pressed, err
}

func (h *sdlHandle) Close() {
	h.sub.do(func() {
		sdl.CloseJoystick(h.js)
	})
}

package gamepad

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Logical controls that can be mapped.
const (
	ControlSteering = "steering"
	ControlThrottle = "throttle"
	ControlBrake    = "brake"
)

// Mapping assigns logical controls to physical indices. Steering and
// Throttle are axes; Brake is a button read as the handbrake. Throttle and
// the analog brake share one axis: push is throttle, pull is brake.
type Mapping struct {
	Steering *int `json:"steering"`
	Throttle *int `json:"throttle"`
	Brake    *int `json:"brake"`
}

func (m Mapping) String() string {
	return fmt.Sprintf("steering=%s throttle=%s brake=%s",
		indexString(m.Steering), indexString(m.Throttle), indexString(m.Brake))
}

func indexString(i *int) string {
	if i == nil {
		return "unset"
	}
	return strconv.Itoa(*i)
}

func (m Mapping) clone() Mapping {
	return Mapping{Steering: copyIndex(m.Steering), Throttle: copyIndex(m.Throttle), Brake: copyIndex(m.Brake)}
}

func copyIndex(i *int) *int {
	if i == nil {
		return nil
	}
	v := *i
	return &v
}

// MappingRequest is a partial mapping update. Nil fields are left alone.
type MappingRequest struct {
	Steering *int
	Throttle *int
	Brake    *int
}

// ValidationError rejects one field of a request.
type ValidationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

// DecodeMappingRequest reads a loosely typed mapping update such as the
// JSON {"steering": 0, "throttle": "1"}. Bad fields are reported and
// skipped; the rest are returned.
func DecodeMappingRequest(raw map[string]any) (MappingRequest, []error) {
	var (
		req  MappingRequest
		errs []error
	)
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := raw[k]
		var dst **int
		switch strings.ToLower(k) {
		case ControlSteering:
			dst = &req.Steering
		case ControlThrottle:
			dst = &req.Throttle
		case ControlBrake:
			dst = &req.Brake
		default:
			errs = append(errs, &ValidationError{Field: k, Value: v, Reason: "unknown control"})
			continue
		}
		i, err := toIndex(v)
		if err != nil {
			errs = append(errs, &ValidationError{Field: k, Value: v, Reason: err.Error()})
			continue
		}
		*dst = &i
	}
	return req, errs
}

func toIndex(v any) (int, error) {
	switch x := v.(type) {
	case int:
		return x, nil
	case float64:
		if x != math.Trunc(x) {
			return 0, fmt.Errorf("not an integer")
		}
		return int(x), nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(x))
		if err != nil {
			return 0, fmt.Errorf("not an integer")
		}
		return i, nil
	default:
		return 0, fmt.Errorf("not an integer")
	}
}

// MappingStore holds the active mapping.
type MappingStore struct {
	mu      sync.RWMutex
	mapping Mapping
}

func NewMappingStore() *MappingStore {
	return &MappingStore{}
}

// Get returns a copy of the current mapping.
func (s *MappingStore) Get() Mapping {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mapping.clone()
}

// Reset unsets every control.
func (s *MappingStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mapping = Mapping{}
}

// Prune unsets every field that no longer fits the device's axis and
// button counts and returns the resulting mapping with the dropped fields.
func (s *MappingStore) Prune(axes, buttons int) (Mapping, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var dropped []string
	drop := func(field string, dst **int, limit int) {
		if *dst != nil && (**dst < 0 || **dst >= limit) {
			*dst = nil
			dropped = append(dropped, field)
		}
	}
	drop(ControlSteering, &s.mapping.Steering, axes)
	drop(ControlThrottle, &s.mapping.Throttle, axes)
	drop(ControlBrake, &s.mapping.Brake, buttons)
	return s.mapping.clone(), dropped
}

// Apply validates req against the device's axis and button counts. Each
// field is accepted or rejected on its own; rejected fields keep their
// previous value. Indices are never clamped.
func (s *MappingStore) Apply(req MappingRequest, axes, buttons int) (Mapping, []error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	set := func(field string, dst **int, v *int, limit int, kind string) {
		if v == nil {
			return
		}
		if *v < 0 || *v >= limit {
			errs = append(errs, &ValidationError{
				Field:  field,
				Value:  *v,
				Reason: fmt.Sprintf("%s index out of range (device has %d)", kind, limit),
			})
			return
		}
		*dst = copyIndex(v)
	}
	set(ControlSteering, &s.mapping.Steering, req.Steering, axes, "axis")
	set(ControlThrottle, &s.mapping.Throttle, req.Throttle, axes, "axis")
	set(ControlBrake, &s.mapping.Brake, req.Brake, buttons, "button")

	return s.mapping.clone(), errs
}

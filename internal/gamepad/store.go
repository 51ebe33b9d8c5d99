package gamepad

import (
	"sort"
	"sync"
)

// Store is the process-wide last known control snapshot.
type Store struct {
	mu    sync.RWMutex
	state ControlSnapshot
}

func NewStore() *Store {
	return &Store{}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() ControlSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// ApplySample writes a sampler batch atomically and returns the result.
func (s *Store) ApplySample(b Sample) ControlSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.Steering != nil {
		s.state.Steering = *b.Steering
	}
	if b.Throttle != nil {
		s.state.Throttle = *b.Throttle
	}
	if b.Brake != nil {
		s.state.Brake = *b.Brake
	}
	if b.Handbrake != nil {
		s.state.Handbrake = *b.Handbrake
	}
	return s.state.Clone()
}

// Merge applies a partial external update. Control fields are type and
// range checked; a bad field is reported and skipped while the rest still
// apply. Unknown keys are kept as auxiliary fields.
func (s *Store) Merge(update map[string]any) []error {
	keys := make([]string, 0, len(update))
	for k := range update {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, k := range keys {
		v := update[k]
		switch k {
		case KeySteering:
			if f, err := numberIn(k, v, -1, 1); err != nil {
				errs = append(errs, err)
			} else {
				s.state.Steering = f
			}
		case KeyThrottle:
			if f, err := numberIn(k, v, 0, 1); err != nil {
				errs = append(errs, err)
			} else {
				s.state.Throttle = f
			}
		case KeyBrake:
			if f, err := numberIn(k, v, 0, 1); err != nil {
				errs = append(errs, err)
			} else {
				s.state.Brake = f
			}
		case KeyHandbrake:
			b, ok := v.(bool)
			if !ok {
				errs = append(errs, &ValidationError{Field: k, Value: v, Reason: "not a boolean"})
				continue
			}
			s.state.Handbrake = b
		default:
			if s.state.Extra == nil {
				s.state.Extra = make(map[string]any)
			}
			s.state.Extra[k] = v
		}
	}
	return errs
}

func numberIn(field string, v any, lo, hi float64) (float64, error) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case int:
		f = float64(x)
	default:
		return 0, &ValidationError{Field: field, Value: v, Reason: "not a number"}
	}
	if f < lo || f > hi {
		return 0, &ValidationError{Field: field, Value: v, Reason: "out of range"}
	}
	return f, nil
}

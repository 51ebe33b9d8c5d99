package gamepad

import (
	"encoding/json"
	"fmt"
	"math"
)

// Snapshot keys as they appear on the wire.
const (
	KeySteering  = "Steering"
	KeyThrottle  = "Throttle"
	KeyBrake     = "Brake"
	KeyHandbrake = "Handbrake"
)

// ControlSnapshot is the normalized control state sent to the game client.
// Extra holds auxiliary fields merged in by "set controls" requests.
type ControlSnapshot struct {
	Steering  float64
	Throttle  float64
	Brake     float64
	Handbrake bool
	Extra     map[string]any
}

// Clone returns a copy that shares nothing with s.
func (s ControlSnapshot) Clone() ControlSnapshot {
	c := s
	if s.Extra != nil {
		c.Extra = make(map[string]any, len(s.Extra))
		for k, v := range s.Extra {
			c.Extra[k] = v
		}
	}
	return c
}

// MarshalJSON flattens Extra next to the control fields.
func (s ControlSnapshot) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(s.Extra)+4)
	for k, v := range s.Extra {
		m[k] = v
	}
	m[KeySteering] = s.Steering
	m[KeyThrottle] = s.Throttle
	m[KeyBrake] = s.Brake
	m[KeyHandbrake] = s.Handbrake
	return json.Marshal(m)
}

func (s ControlSnapshot) String() string {
	return fmt.Sprintf("Steering=%.2f Throttle=%.2f Brake=%.2f Handbrake=%t extra=%d",
		s.Steering, s.Throttle, s.Brake, s.Handbrake, len(s.Extra))
}

// Sample is one batched sampler write. Nil fields did not change.
type Sample struct {
	Steering  *float64
	Throttle  *float64
	Brake     *float64
	Handbrake *bool
}

func (s Sample) IsEmpty() bool {
	return s.Steering == nil && s.Throttle == nil && s.Brake == nil && s.Handbrake == nil
}

// DefaultDebounce is the minimum change of a normalized value that is
// republished.
const DefaultDebounce = 0.01

// debounceEpsilon absorbs float error in differences of 2-decimal values.
const debounceEpsilon = 1e-9

func floatEqual(a, b, threshold float64) bool {
	return math.Abs(a-b) < threshold-debounceEpsilon
}

func round2(v float64) float64 {
	r := math.Round(v*100) / 100
	if r == 0 {
		return 0 // no negative zero on the wire
	}
	return r
}

// SteeringValue maps a raw axis reading to steering.
func SteeringValue(raw float64) float64 {
	return round2(raw)
}

// ThrottleValue is the push half of the shared throttle/brake axis.
func ThrottleValue(raw float64) float64 {
	return math.Max(0, round2(raw))
}

// BrakeValue is the pull half of the shared throttle/brake axis.
func BrakeValue(raw float64) float64 {
	return math.Max(0, round2(-raw))
}

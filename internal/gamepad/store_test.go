package gamepad

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestStoreMergeKeepsOtherFields(t *testing.T) {
	s := NewStore()
	f := 0.4
	s.ApplySample(Sample{Steering: &f})

	errs := s.Merge(map[string]any{"Throttle": 0.7, "Gear": "D"})
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	snap := s.Snapshot()
	if snap.Steering != 0.4 || snap.Throttle != 0.7 || snap.Extra["Gear"] != "D" {
		t.Fatalf("merge should not replace untouched fields, got %s %v", snap, snap.Extra)
	}
}

func TestStoreMergePartialFailure(t *testing.T) {
	s := NewStore()
	errs := s.Merge(map[string]any{
		"Steering":  3.0,
		"Handbrake": "yes",
		"Brake":     0.2,
	})
	if len(errs) != 2 {
		t.Fatalf("expected two rejected fields, got %v", errs)
	}
	var verr *ValidationError
	if !errors.As(errs[0], &verr) {
		t.Fatalf("expected ValidationError, got %T", errs[0])
	}
	snap := s.Snapshot()
	if snap.Brake != 0.2 || snap.Steering != 0 || snap.Handbrake {
		t.Fatalf("only valid fields should apply, got %s", snap)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	s := NewStore()
	s.Merge(map[string]any{"Gear": "N"})
	snap := s.Snapshot()
	snap.Extra["Gear"] = "R"
	if got := s.Snapshot().Extra["Gear"]; got != "N" {
		t.Fatalf("snapshot must not alias store state, got %v", got)
	}
}

func TestSnapshotJSONIsFlat(t *testing.T) {
	snap := ControlSnapshot{Steering: -0.25, Throttle: 1, Handbrake: true, Extra: map[string]any{"Horn": true}}
	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := map[string]any{"Steering": -0.25, "Throttle": 1.0, "Brake": 0.0, "Handbrake": true, "Horn": true}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("key %s: got %v, want %v", k, got[k], v)
		}
	}
}

func TestDecodeMappingRequest(t *testing.T) {
	req, errs := DecodeMappingRequest(map[string]any{
		"steering": 0.0,
		"throttle": "1",
		"brake":    1.5,
		"clutch":   2.0,
	})
	if len(errs) != 2 {
		t.Fatalf("expected brake and clutch rejected, got %v", errs)
	}
	if req.Steering == nil || *req.Steering != 0 || req.Throttle == nil || *req.Throttle != 1 || req.Brake != nil {
		t.Fatalf("unexpected request: %+v", req)
	}
}

func TestRound2NoNegativeZero(t *testing.T) {
	data, err := json.Marshal(SteeringValue(-0.001))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != "0" {
		t.Fatalf("expected 0, got %s", data)
	}
}

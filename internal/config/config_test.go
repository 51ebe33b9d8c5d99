package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":5000" {
		t.Fatalf("expected default addr :5000, got %s", cfg.Addr)
	}
	if cfg.PollInterval != 10*time.Millisecond {
		t.Fatalf("expected 10ms poll interval, got %s", cfg.PollInterval)
	}
	if cfg.Telemetry.Capacity != 5 || cfg.Telemetry.Wait != 200*time.Millisecond {
		t.Fatalf("unexpected telemetry defaults: %+v", cfg.Telemetry)
	}
	if cfg.Heartbeat.Timeout != 10*time.Second {
		t.Fatalf("expected 10s heartbeat timeout, got %s", cfg.Heartbeat.Timeout)
	}
	if cfg.Debounce != 0.01 {
		t.Fatalf("expected debounce 0.01, got %v", cfg.Debounce)
	}
	if len(cfg.Telemetry.Keys) != 2 || cfg.Telemetry.Keys[0] != "CurrentSpeed" {
		t.Fatalf("unexpected telemetry keys: %v", cfg.Telemetry.Keys)
	}
	if cfg.MQTT.Broker != "" {
		t.Fatalf("mqtt should be disabled by default")
	}
}

func TestLoadFileAndFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "joybridge.yaml")

	data := `
addr: ":7000"
backend: joystick
telemetry:
  capacity: 8
  keys: [CurrentSpeed, Rpm]
heartbeat:
  timeout: 3s
mqtt:
  broker: tcp://localhost:1883
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load([]string{"--config", path, "--addr", ":7100"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":7100" {
		t.Fatalf("flag should override file, got %s", cfg.Addr)
	}
	if cfg.Backend != BackendJoystick {
		t.Fatalf("expected joystick backend, got %s", cfg.Backend)
	}
	if cfg.Telemetry.Capacity != 8 {
		t.Fatalf("expected capacity 8, got %d", cfg.Telemetry.Capacity)
	}
	if len(cfg.Telemetry.Keys) != 2 || cfg.Telemetry.Keys[1] != "Rpm" {
		t.Fatalf("unexpected keys: %v", cfg.Telemetry.Keys)
	}
	if cfg.Heartbeat.Timeout != 3*time.Second {
		t.Fatalf("expected 3s timeout, got %s", cfg.Heartbeat.Timeout)
	}
	if cfg.MQTT.Broker != "tcp://localhost:1883" || cfg.MQTT.TopicPrefix != "joybridge" {
		t.Fatalf("unexpected mqtt config: %+v", cfg.MQTT)
	}
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("JOYBRIDGE_HEARTBEAT_TIMEOUT", "20s")
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Heartbeat.Timeout != 20*time.Second {
		t.Fatalf("expected env override 20s, got %s", cfg.Heartbeat.Timeout)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := [][]string{
		{"--backend", "xinput"},
		{"--debounce", "0"},
		{"--addr", ""},
	}
	for _, args := range tests {
		if _, err := Load(args); err == nil {
			t.Fatalf("expected %v to be rejected", args)
		}
	}
}

func TestLoadHelp(t *testing.T) {
	if _, err := Load([]string{"--help"}); !errors.Is(err, ErrHelp) {
		t.Fatalf("expected ErrHelp, got %v", err)
	}
}

func TestURL(t *testing.T) {
	cfg := &Config{Addr: ":5000"}
	if got := cfg.URL(); got != "http://localhost:5000" {
		t.Fatalf("unexpected url %s", got)
	}
}

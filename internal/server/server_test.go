package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/soar/joybridge/internal/bridge"
	"github.com/soar/joybridge/internal/device"
	"github.com/soar/joybridge/internal/device/devicetest"
	"github.com/soar/joybridge/internal/gamepad"
	"github.com/soar/joybridge/internal/hub"
	"github.com/soar/joybridge/internal/liveness"
	"github.com/soar/joybridge/internal/metrics"
	"github.com/soar/joybridge/internal/telemetry"
)

type testEnv struct {
	srv    *httptest.Server
	bridge *bridge.Bridge
	relay  *telemetry.Relay
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	mgr := device.NewManager(devicetest.New(devicetest.NewDevice("Wheel", 6, 2)))
	if err := mgr.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	store := gamepad.NewStore()
	sampler := gamepad.NewSampler(mgr, gamepad.NewMappingStore(), store, m, gamepad.Options{})

	h := hub.NewHub(m)
	go h.Run(ctx)
	b := hub.NewBroadcaster(h, sampler.Events(), store)
	go b.Run(ctx)

	relay := telemetry.NewRelay(telemetry.Config{}, b, m)
	br := bridge.New(bridge.Deps{
		Sampler:  sampler,
		Store:    store,
		Devices:  mgr,
		Relay:    relay,
		Liveness: liveness.NewMonitor(10 * time.Second),
		Metrics:  m,
	})

	frontend := fstest.MapFS{
		"index.html": {Data: []byte("<!DOCTYPE html>\n<html>\n  <body>\n    <p>  hello  </p>\n  </body>\n</html>\n")},
		"app.js":     {Data: []byte("function  add ( a, b ) {\n  return a + b;\n}\n")},
	}
	s := New(h, b, br, frontend, reg, ":0")
	handler, err := s.Handler()
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, bridge: br, relay: relay}
}

func (e *testEnv) do(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, e.srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return resp.StatusCode, out
}

func TestControlsAndUpdate(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodPost, "/update_controls", `{"Handbrake": true, "Gear": "D"}`)
	if code != http.StatusOK || body["status"] != "updated" {
		t.Fatalf("unexpected update response %d %v", code, body)
	}

	code, body = env.do(t, http.MethodGet, "/controls", "")
	if code != http.StatusOK {
		t.Fatalf("unexpected status %d", code)
	}
	if body["Handbrake"] != true || body["Gear"] != "D" || body["Steering"] != 0.0 {
		t.Fatalf("unexpected controls %v", body)
	}
}

func TestUpdateErrors(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodPost, "/update_controls", `{not json`)
	if code != http.StatusBadRequest || body["error"] == nil {
		t.Fatalf("malformed body should be a 400 with an error, got %d %v", code, body)
	}

	code, body = env.do(t, http.MethodPost, "/update_controls", `{"Throttle": "fast", "Brake": 0.5}`)
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a rejected field, got %d", code)
	}
	if rejected, _ := body["rejected"].([]any); len(rejected) != 1 {
		t.Fatalf("expected one rejected field, got %v", body)
	}
	if got := env.bridge.Controls().Brake; got != 0.5 {
		t.Fatalf("valid field should still apply, brake=%v", got)
	}
}

func TestTelemetryUpdateIsQueued(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 6; i++ {
		code, _ := env.do(t, http.MethodPost, "/update_controls", `{"CurrentSpeed": 10}`)
		if code != http.StatusOK {
			t.Fatalf("telemetry update %d failed with %d", i, code)
		}
	}
	if env.relay.Len() != 5 {
		t.Fatalf("expected 5 queued events, got %d", env.relay.Len())
	}
}

func TestHeartbeatAndConnection(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/heartbeat", "/roblox_heartbeat"} {
		code, body := env.do(t, http.MethodPost, path, "")
		if code != http.StatusOK || body["status"] != "ok" {
			t.Fatalf("%s: unexpected response %d %v", path, code, body)
		}
		if ts, _ := body["timestamp"].(float64); ts <= 0 {
			t.Fatalf("%s: missing timestamp: %v", path, body)
		}
	}

	code, body := env.do(t, http.MethodGet, "/connection", "")
	if code != http.StatusOK || body["connected"] != true {
		t.Fatalf("expected connected, got %d %v", code, body)
	}
	for _, key := range []string{"last_heartbeat", "now", "diff"} {
		if _, ok := body[key]; !ok {
			t.Fatalf("connection status missing %s: %v", key, body)
		}
	}
}

func TestSelectAndMapping(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodGet, "/joysticks", "")
	if list, _ := body["joysticks"].([]any); code != http.StatusOK || len(list) != 1 {
		t.Fatalf("unexpected joystick list %d %v", code, body)
	}

	code, body = env.do(t, http.MethodPost, "/joysticks/select", `{"index": 9}`)
	if code != http.StatusBadRequest || body["error"] == nil {
		t.Fatalf("invalid index should be rejected, got %d %v", code, body)
	}

	code, body = env.do(t, http.MethodPost, "/joysticks/select", `{"index": 0}`)
	if code != http.StatusOK || body["name"] != "Wheel" || body["axes"] != 6.0 || body["buttons"] != 2.0 {
		t.Fatalf("unexpected select response %d %v", code, body)
	}

	code, body = env.do(t, http.MethodPost, "/mapping", `{"steering": 0, "throttle": 9, "brake": 0}`)
	if code != http.StatusOK {
		t.Fatalf("unexpected status %d", code)
	}
	mapping, _ := body["mapping"].(map[string]any)
	if mapping["steering"] != 0.0 || mapping["throttle"] != nil || mapping["brake"] != 0.0 {
		t.Fatalf("unexpected mapping %v", body)
	}
	if rejected, _ := body["rejected"].([]any); len(rejected) != 1 {
		t.Fatalf("expected throttle rejection, got %v", body)
	}

	_, body = env.do(t, http.MethodGet, "/mapping", "")
	if body["steering"] != 0.0 {
		t.Fatalf("mapping not kept: %v", body)
	}
}

func TestStaticIsMinified(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.srv.URL + "/")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html") {
		t.Fatalf("unexpected content type %s", resp.Header.Get("Content-Type"))
	}
	if !strings.Contains(string(body), "hello") || strings.Contains(string(body), "\n    ") {
		t.Fatalf("expected minified html, got %q", body)
	}

	resp, err = http.Get(env.srv.URL + "/missing.css")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/controls", "")

	resp, err := http.Get(env.srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "joybridge_control_queries_total 1") {
		t.Fatalf("expected control query metric, got:\n%s", body)
	}
}

func TestObserverWebSocket(t *testing.T) {
	env := newTestEnv(t)

	url := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	read := func() hub.WSMessage {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var msg hub.WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		return msg
	}

	if msg := read(); msg.Type != hub.TypeControlUpdate {
		t.Fatalf("expected initial control_update, got %s", msg.Type)
	}

	if err := conn.WriteJSON(hub.ClientMessage{Type: hub.CmdCheckConnection}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if msg := read(); msg.Type != hub.TypeConnectionStatus {
		t.Fatalf("expected connection_status, got %s", msg.Type)
	}

	idx := 0
	if err := conn.WriteJSON(hub.ClientMessage{Type: hub.CmdSelectJoystick, Index: &idx}); err != nil {
		t.Fatalf("write: %v", err)
	}
	msg := read()
	if msg.Type != hub.TypeJoystickInfo {
		t.Fatalf("expected joystick_info, got %s", msg.Type)
	}
	if data, _ := msg.Data.(map[string]any); data["axes"] != 6.0 {
		t.Fatalf("unexpected joystick info %v", msg.Data)
	}
}

func TestGameLinkMessages(t *testing.T) {
	env := newTestEnv(t)
	g := &gameLink{bridge: env.bridge}

	if r := g.handle([]byte(`{"type":"heartbeat"}`)); r.Status != "ok" || r.Timestamp <= 0 {
		t.Fatalf("unexpected heartbeat reply %+v", r)
	}
	if r := g.handle([]byte(`{"type":"update","data":{"Throttle":0.4}}`)); r.Status != "updated" {
		t.Fatalf("unexpected update reply %+v", r)
	}
	if r := g.handle([]byte(`{"type":"update","data":{"Throttle":4}}`)); r.Type != "error" || len(r.Rejected) != 1 {
		t.Fatalf("expected rejected update, got %+v", r)
	}
	r := g.handle([]byte(`{"type":"controls"}`))
	if snap, ok := r.Data.(gamepad.ControlSnapshot); !ok || snap.Throttle != 0.4 {
		t.Fatalf("unexpected controls reply %+v", r)
	}
	if r := g.handle([]byte(`{"type":"dance"}`)); r.Type != "error" {
		t.Fatalf("unknown types should be errors, got %+v", r)
	}
	if r := g.handle([]byte(`nope`)); r.Type != "error" {
		t.Fatalf("malformed messages should be errors, got %+v", r)
	}
}

package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/soar/joybridge/internal/bridge"
	"github.com/soar/joybridge/internal/config"
	"github.com/soar/joybridge/internal/device"
	"github.com/soar/joybridge/internal/gamepad"
	"github.com/soar/joybridge/internal/hub"
	"github.com/soar/joybridge/internal/liveness"
	"github.com/soar/joybridge/internal/metrics"
	"github.com/soar/joybridge/internal/mqttbridge"
	"github.com/soar/joybridge/internal/server"
	"github.com/soar/joybridge/internal/telemetry"
	"github.com/soar/joybridge/internal/tray"
)

// Cross-platform signal handling: use os.Interrupt on all platforms
// On Windows: os.Interrupt is sent when Ctrl+C is pressed
// On Unix: os.Interrupt is equivalent to syscall.SIGINT
var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

func newSubsystem(backend string) device.Subsystem {
	if backend == config.BackendJoystick {
		return device.NewJoystickSubsystem()
	}
	return device.NewSDLSubsystem()
}

func main() {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, config.ErrHelp) {
		return
	}
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, shutdownSignals...)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// A backend that cannot start is fatal; nothing else works without it.
	devices := device.NewManager(newSubsystem(cfg.Backend))
	if err := devices.Init(); err != nil {
		log.Fatalf("Failed to initialize %s joystick backend: %v", cfg.Backend, err)
	}
	defer devices.Close()

	if devs, err := devices.List(); err != nil {
		log.Printf("Error listing joysticks: %v", err)
	} else {
		log.Printf("Found %d joystick(s)", len(devs))
		for _, d := range devs {
			log.Printf("  [%d] %s", d.Index, d.Name)
		}
	}

	store := gamepad.NewStore()
	sampler := gamepad.NewSampler(devices, gamepad.NewMappingStore(), store, m, gamepad.Options{
		PollInterval: cfg.PollInterval,
		Debounce:     cfg.Debounce,
	})

	h := hub.NewHub(m)
	go h.Run(ctx)

	// The MQTT mirror feeds updates into the bridge, which is built last.
	var br *bridge.Bridge
	var mirrors []hub.ControlMirror
	sinks := telemetry.Sinks{}
	var mq *mqttbridge.Client
	if cfg.MQTT.Broker != "" {
		mq = mqttbridge.New(mqttbridge.Options{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
		}, mqttbridge.UpdateFunc(func(u map[string]any) (bridge.UpdateResult, error) {
			return br.Update(u)
		}))
		mirrors = append(mirrors, mq)
	}

	broadcaster := hub.NewBroadcaster(h, sampler.Events(), store, mirrors...)
	go broadcaster.Run(ctx)

	sinks = append(sinks, broadcaster)
	if mq != nil {
		sinks = append(sinks, mq)
	}
	relay := telemetry.NewRelay(telemetry.Config{
		Capacity: cfg.Telemetry.Capacity,
		Wait:     cfg.Telemetry.Wait,
		Delay:    cfg.Telemetry.Delay,
	}, sinks, m)

	monitor := liveness.NewMonitor(cfg.Heartbeat.Timeout)
	br = bridge.New(bridge.Deps{
		Sampler:    sampler,
		Store:      store,
		Devices:    devices,
		Relay:      relay,
		Classifier: telemetry.NewClassifier(cfg.Telemetry.Keys),
		Liveness:   monitor,
		Metrics:    m,
	})

	if mq != nil {
		go mq.Run(ctx)
	}

	relayDone := make(chan struct{})
	go func() {
		relay.Run(ctx)
		close(relayDone)
	}()

	samplerDone := make(chan struct{})
	go func() {
		sampler.Run(ctx)
		close(samplerDone)
	}()

	page, err := statusPage()
	if err != nil {
		log.Fatalf("Failed to load status page: %v", err)
	}
	srv := server.New(h, broadcaster, br, page, reg, cfg.Addr)
	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
	}()

	log.Printf("JoyBridge started: %s", cfg.URL())

	// Channel for tray-triggered shutdown
	shutdownRequested := make(chan struct{})

	var t *tray.Tray
	if cfg.Tray && runtime.GOOS == "windows" {
		t = tray.New(tray.Options{
			URL:       cfg.URL(),
			Connected: func() bool { return monitor.Status().Connected },
			OnExit:    func() { close(shutdownRequested) },
		})
		go t.Run()
	} else {
		log.Println("Press Ctrl+C to exit")
	}

	select {
	case <-sigCh:
		log.Println("Shutting down...")
	case <-shutdownRequested:
		log.Println("Shutdown requested from tray")
	case err := <-serverErrCh:
		log.Printf("HTTP server error: %v", err)
	}
	cancel()
	if t != nil {
		t.Quit()
	}

	<-samplerDone
	<-relayDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	log.Println("JoyBridge stopped")
}

// Package mqttbridge mirrors relayed telemetry and control updates to an MQTT
// broker and accepts inbound updates from it.
package mqttbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/soar/joybridge/internal/bridge"
	"github.com/soar/joybridge/internal/gamepad"
	"github.com/soar/joybridge/internal/telemetry"
)

const (
	defaultRetryInterval = 5 * time.Second
	publishTimeout       = 2 * time.Second
	quiesceMillis        = 250
)

// Updater accepts inbound updates.
type Updater interface {
	Update(map[string]any) (bridge.UpdateResult, error)
}

// UpdateFunc adapts a function to Updater.
type UpdateFunc func(map[string]any) (bridge.UpdateResult, error)

func (f UpdateFunc) Update(u map[string]any) (bridge.UpdateResult, error) {
	return f(u)
}

type Options struct {
	Broker        string
	ClientID      string
	TopicPrefix   string
	Username      string
	Password      string
	// RetryInterval is the pause between connection attempts (default 5s).
	RetryInterval time.Duration
}

// Client publishes to <prefix>/telemetry and <prefix>/controls and
// subscribes to <prefix>/update.
type Client struct {
	client  mqtt.Client
	prefix  string
	updater Updater
}

func New(opts Options, updater Updater) *Client {
	c := &Client{prefix: opts.TopicPrefix, updater: updater}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = defaultRetryInterval
	}

	o := mqtt.NewClientOptions()
	o.AddBroker(opts.Broker)
	o.SetClientID(opts.ClientID)
	if opts.Username != "" {
		o.SetUsername(opts.Username)
		o.SetPassword(opts.Password)
	}
	o.SetAutoReconnect(true)
	o.SetConnectRetry(true)
	o.SetConnectRetryInterval(opts.RetryInterval)
	o.OnConnect = c.onConnect
	o.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Printf("MQTT connection lost: %v", err)
	}
	c.client = mqtt.NewClient(o)
	return c
}

func (c *Client) topic(name string) string {
	return c.prefix + "/" + name
}

// Run connects and stays connected until ctx ends. Paho retries the first
// connection and reconnects after drops on its own; Disconnect also stops
// a connection attempt that is still retrying.
func (c *Client) Run(ctx context.Context) {
	token := c.client.Connect()
	select {
	case <-ctx.Done():
	case <-token.Done():
		if err := token.Error(); err != nil {
			log.Printf("Failed to connect to MQTT broker: %v", err)
		}
		<-ctx.Done()
	}
	c.client.Disconnect(quiesceMillis)
	log.Println("MQTT client disconnected")
}

// onConnect subscribes on every (re)connect.
func (c *Client) onConnect(client mqtt.Client) {
	log.Println("Connected to MQTT broker")
	topic := c.topic("update")
	token := client.Subscribe(topic, 0, c.handleUpdate)
	if token.WaitTimeout(publishTimeout) && token.Error() != nil {
		log.Printf("MQTT subscribe %s failed: %v", topic, token.Error())
		return
	}
	log.Printf("Subscribed to topic: %s", topic)
}

func (c *Client) handleUpdate(_ mqtt.Client, msg mqtt.Message) {
	var update map[string]any
	if err := json.Unmarshal(msg.Payload(), &update); err != nil {
		log.Printf("Error unmarshalling MQTT update: %v", err)
		return
	}
	if _, err := c.updater.Update(update); err != nil {
		log.Printf("MQTT update partially rejected: %v", err)
	}
}

// BroadcastTelemetry implements telemetry.Sink.
func (c *Client) BroadcastTelemetry(ev telemetry.Event) {
	c.publish(c.topic("telemetry"), ev)
}

// PublishControls implements hub.ControlMirror.
func (c *Client) PublishControls(s gamepad.ControlSnapshot) {
	c.publish(c.topic("controls"), s)
}

// publish is fire and forget; it never waits on the broker.
func (c *Client) publish(topic string, v any) {
	if !c.client.IsConnectionOpen() {
		return
	}
	payload, err := encode(v)
	if err != nil {
		log.Printf("Error encoding MQTT payload for %s: %v", topic, err)
		return
	}
	c.client.Publish(topic, 0, false, payload)
}

func encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	return data, nil
}

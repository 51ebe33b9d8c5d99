package hub

import (
	"context"
	"encoding/json"
	"log"
	"sync/atomic"
	"time"

	"github.com/soar/joybridge/internal/gamepad"
	"github.com/soar/joybridge/internal/telemetry"
)

// fullSyncInterval resends the current controls so that merges made by
// external updates also reach observers.
const fullSyncInterval = 5 * time.Second

// ControlSource provides the current control snapshot.
type ControlSource interface {
	Snapshot() gamepad.ControlSnapshot
}

// ControlMirror receives every published control snapshot.
type ControlMirror interface {
	PublishControls(gamepad.ControlSnapshot)
}

// Broadcaster turns sampler events and relayed telemetry into hub messages.
type Broadcaster struct {
	hub     *Hub
	events  <-chan gamepad.Event
	source  ControlSource
	mirrors []ControlMirror
	seq     atomic.Int64
}

func NewBroadcaster(h *Hub, events <-chan gamepad.Event, source ControlSource, mirrors ...ControlMirror) *Broadcaster {
	return &Broadcaster{
		hub:     h,
		events:  events,
		source:  source,
		mirrors: mirrors,
	}
}

// Next returns the next message sequence number.
func (b *Broadcaster) Next() int64 {
	return b.seq.Add(1)
}

// Run forwards sampler events until ctx is cancelled or the events channel
// closes.
func (b *Broadcaster) Run(ctx context.Context) {
	ticker := time.NewTicker(fullSyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-b.events:
			if !ok {
				return
			}
			b.handleEvent(ev)

		case <-ticker.C:
			if b.hub.Len() > 0 {
				b.send(TypeControlUpdate, b.source.Snapshot())
			}
		}
	}
}

func (b *Broadcaster) handleEvent(ev gamepad.Event) {
	switch ev.Kind {
	case gamepad.EventControls:
		b.send(TypeControlUpdate, ev.Controls)
		for _, m := range b.mirrors {
			m.PublishControls(ev.Controls)
		}
	case gamepad.EventMapping:
		b.send(TypeMappingUpdated, ev.Mapping)
	case gamepad.EventDevice:
		b.send(TypeJoystickInfo, ev.Device)
	}
}

// BroadcastTelemetry implements telemetry.Sink.
func (b *Broadcaster) BroadcastTelemetry(ev telemetry.Event) {
	b.send(TypeVehicleState, ev)
}

// SendInitialState sends the current controls to a newly connected client.
func (b *Broadcaster) SendInitialState(c *Client) {
	c.sendMessage(NewMessage(b.Next(), TypeControlUpdate, b.source.Snapshot()))
}

func (b *Broadcaster) send(typ string, data any) {
	msg := NewMessage(b.Next(), typ, data)
	raw, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Error marshaling %s message: %v", typ, err)
		return
	}
	b.hub.Broadcast(raw)
}

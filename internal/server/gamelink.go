package server

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/lxzan/gws"

	"github.com/soar/joybridge/internal/bridge"
	"github.com/soar/joybridge/internal/liveness"
)

// gameMessage is sent by the game client over /game.
type gameMessage struct {
	Type string         `json:"type"` // "heartbeat", "update" or "controls"
	Data map[string]any `json:"data,omitempty"`
}

type gameReply struct {
	Type      string   `json:"type"`
	Status    string   `json:"status,omitempty"`
	Timestamp float64  `json:"timestamp,omitempty"`
	Data      any      `json:"data,omitempty"`
	Error     string   `json:"error,omitempty"`
	Rejected  []string `json:"rejected,omitempty"`
}

// gameLink carries the game client's heartbeats and updates over one
// socket instead of separate HTTP requests.
type gameLink struct {
	gws.BuiltinEventHandler
	bridge *bridge.Bridge
}

func handleGameLink(b *bridge.Bridge) http.HandlerFunc {
	upgrader := gws.NewUpgrader(&gameLink{bridge: b}, &gws.ServerOption{})
	return func(w http.ResponseWriter, r *http.Request) {
		socket, err := upgrader.Upgrade(w, r)
		if err != nil {
			log.Printf("Game link upgrade failed: %v", err)
			return
		}
		go socket.ReadLoop()
	}
}

func (g *gameLink) OnOpen(socket *gws.Conn) {
	log.Printf("Game client connected from %s", socket.RemoteAddr())
}

func (g *gameLink) OnClose(socket *gws.Conn, err error) {
	log.Printf("Game client %s disconnected: %v", socket.RemoteAddr(), err)
}

func (g *gameLink) OnMessage(socket *gws.Conn, message *gws.Message) {
	defer message.Close()
	reply := g.handle(message.Bytes())
	data, err := json.Marshal(reply)
	if err != nil {
		log.Printf("Error marshaling game reply: %v", err)
		return
	}
	if err := socket.WriteMessage(gws.OpcodeText, data); err != nil {
		log.Printf("Error writing game reply: %v", err)
	}
}

func (g *gameLink) handle(raw []byte) gameReply {
	var msg gameMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return gameReply{Type: "error", Error: "malformed message: " + err.Error()}
	}

	switch msg.Type {
	case "heartbeat":
		ts := g.bridge.Heartbeat()
		return gameReply{Type: msg.Type, Status: "ok", Timestamp: liveness.UnixSeconds(ts)}

	case "update":
		if msg.Data == nil {
			return gameReply{Type: "error", Error: "update needs a data object"}
		}
		res, err := g.bridge.Update(msg.Data)
		if err != nil {
			reply := gameReply{Type: "error", Error: bridge.ErrRejected.Error()}
			for _, r := range res.Rejected {
				reply.Rejected = append(reply.Rejected, r.Error())
			}
			return reply
		}
		return gameReply{Type: msg.Type, Status: "updated"}

	case "controls":
		return gameReply{Type: msg.Type, Data: g.bridge.Controls()}

	default:
		return gameReply{Type: "error", Error: "unknown message type " + msg.Type}
	}
}

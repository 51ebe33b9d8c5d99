package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/soar/joybridge/internal/bridge"
	"github.com/soar/joybridge/internal/device"
	"github.com/soar/joybridge/internal/liveness"
)

const maxBodyBytes = 64 << 10

type errorResponse struct {
	Error    string   `json:"error"`
	Rejected []string `json:"rejected,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error writing response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error, rejected []error) {
	resp := errorResponse{Error: err.Error()}
	for _, r := range rejected {
		resp.Rejected = append(resp.Rejected, r.Error())
	}
	writeJSON(w, status, resp)
}

// readObject decodes a JSON object body.
func readObject(w http.ResponseWriter, r *http.Request) (map[string]any, error) {
	var obj map[string]any
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&obj); err != nil {
		return nil, fmt.Errorf("malformed JSON body: %w", err)
	}
	if obj == nil {
		return nil, errors.New("body must be a JSON object")
	}
	return obj, nil
}

func handleControls(b *bridge.Bridge) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, b.Controls())
	}
}

func handleUpdate(b *bridge.Bridge) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		update, err := readObject(w, r)
		if err != nil {
			log.Printf("Error processing update: %v", err)
			writeError(w, http.StatusBadRequest, err, nil)
			return
		}
		res, err := b.Update(update)
		if err != nil {
			log.Printf("Error processing update: %v", err)
			writeError(w, http.StatusBadRequest, bridge.ErrRejected, res.Rejected)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
	}
}

func handleHeartbeat(b *bridge.Bridge) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ts := b.Heartbeat()
		log.Printf("Received heartbeat from game client at %s", ts.Format("15:04:05"))
		writeJSON(w, http.StatusOK, map[string]any{
			"status":    "ok",
			"timestamp": liveness.UnixSeconds(ts),
		})
	}
}

func handleConnection(b *bridge.Bridge) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, b.Connection())
	}
}

func handleJoysticks(b *bridge.Bridge) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		devs, err := b.Devices()
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, err, nil)
			return
		}
		if devs == nil {
			devs = []device.Descriptor{}
		}
		resp := map[string]any{"joysticks": devs}
		if info, ok := b.SelectedDevice(); ok {
			resp["selected"] = info
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleSelect(b *bridge.Bridge) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Index *int `json:"index"`
		}
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("malformed JSON body: %w", err), nil)
			return
		}
		if req.Index == nil {
			writeError(w, http.StatusBadRequest, errors.New("index is required"), nil)
			return
		}
		info, err := b.SelectDevice(*req.Index)
		if err != nil {
			writeError(w, http.StatusBadRequest, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, info)
	}
}

func handleGetMapping(b *bridge.Bridge) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, b.Mapping())
	}
}

// handleMapping always answers with the resulting mapping; rejected fields
// are listed next to it.
func handleMapping(b *bridge.Bridge) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := readObject(w, r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err, nil)
			return
		}
		m, rejected := b.UpdateMapping(raw)
		resp := map[string]any{"mapping": m}
		if len(rejected) > 0 {
			msgs := make([]string, len(rejected))
			for i, e := range rejected {
				msgs[i] = e.Error()
			}
			resp["rejected"] = msgs
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

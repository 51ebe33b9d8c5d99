package server

import (
	"context"
	"io/fs"
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/soar/joybridge/internal/bridge"
	"github.com/soar/joybridge/internal/hub"
)

type Server struct {
	hub         *hub.Hub
	broadcaster *hub.Broadcaster
	bridge      *bridge.Bridge
	frontendFS  fs.FS
	gatherer    prometheus.Gatherer
	addr        string
	httpServer  *http.Server
}

func New(h *hub.Hub, b *hub.Broadcaster, br *bridge.Bridge, frontendFS fs.FS, gatherer prometheus.Gatherer, addr string) *Server {
	return &Server{
		hub:         h,
		broadcaster: b,
		bridge:      br,
		frontendFS:  frontendFS,
		gatherer:    gatherer,
		addr:        addr,
	}
}

// Handler builds the HTTP routes.
func (s *Server) Handler() (http.Handler, error) {
	mux := http.NewServeMux()

	// Game client API
	mux.HandleFunc("GET /controls", handleControls(s.bridge))
	mux.HandleFunc("POST /update_controls", handleUpdate(s.bridge))
	mux.HandleFunc("POST /heartbeat", handleHeartbeat(s.bridge))
	mux.HandleFunc("POST /roblox_heartbeat", handleHeartbeat(s.bridge))
	mux.HandleFunc("GET /game", handleGameLink(s.bridge))

	// Observer API
	mux.HandleFunc("GET /connection", handleConnection(s.bridge))
	mux.HandleFunc("GET /joysticks", handleJoysticks(s.bridge))
	mux.HandleFunc("POST /joysticks/select", handleSelect(s.bridge))
	mux.HandleFunc("GET /mapping", handleGetMapping(s.bridge))
	mux.HandleFunc("POST /mapping", handleMapping(s.bridge))
	mux.HandleFunc("GET /ws", handleWebSocket(s.hub, s.broadcaster, s.bridge))

	if s.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	// Static files (frontend)
	if s.frontendFS != nil {
		static, err := newStaticHandler(s.frontendFS)
		if err != nil {
			return nil, err
		}
		mux.Handle("GET /", static)
	}
	return mux, nil
}

func (s *Server) ListenAndServe() error {
	handler, err := s.Handler()
	if err != nil {
		return err
	}
	s.httpServer = &http.Server{
		Addr:    s.addr,
		Handler: handler,
	}

	log.Printf("HTTP server listening on %s", s.addr)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		log.Println("Shutting down HTTP server...")
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// Package statusserver exposes a metrics.Collector over HTTP: a polling
// GET /status endpoint and a GET /ws endpoint that pushes the same
// snapshot every time the Collector broadcasts (every 500ms). Neither is in the acquisition read/dispatch
// path; a stall here never blocks a cycle.
package statusserver

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/plantdata/finsbridge/internal/metrics"
)

// Server serves the live status endpoints for one Collector.
type Server struct {
	collector *metrics.Collector
	logger    zerolog.Logger
	hub       *hub
	srv       *http.Server
}

// New builds a Server for collector. It does not start listening until
// Start or StartBackground is called.
func New(collector *metrics.Collector, logger zerolog.Logger) *Server {
	return &Server{
		collector: collector,
		logger:    logger.With().Str("component", "statusserver").Logger(),
		hub:       newHub(collector, logger),
	}
}

// Start begins serving on addr and blocks until ctx is cancelled or the
// listener fails.
func (s *Server) Start(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /ws", s.hub.handleWS)

	s.srv = &http.Server{
		Addr:    addr,
		Handler: mux,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	go s.hub.start(ctx)

	s.logger.Info().Str("addr", addr).Msg("starting status server")

	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		return s.srv.Close()
	case err := <-errCh:
		return err
	}
}

// StartBackground starts the server in a goroutine, logging any error
// instead of propagating it, since a failed status server must never take
// down the acquisition tree.
func (s *Server) StartBackground(ctx context.Context, addr string) {
	go func() {
		if err := s.Start(ctx, addr); err != nil {
			s.logger.Err(err).Msg("status server error")
		}
	}()
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.collector.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(snap)
}

type hub struct {
	collector *metrics.Collector
	logger    zerolog.Logger

	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

type wsClient struct {
	conn *websocket.Conn
}

func newHub(collector *metrics.Collector, logger zerolog.Logger) *hub {
	return &hub{
		collector: collector,
		logger:    logger.With().Str("component", "ws-hub").Logger(),
		clients:   make(map[*wsClient]struct{}),
	}
}

func (h *hub) start(ctx context.Context) {
	ch := h.collector.Subscribe()
	defer h.collector.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-ch:
			if !ok {
				return
			}
			h.broadcast(snap)
		}
	}
}

func (h *hub) broadcast(snap metrics.Snapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		h.logger.Err(err).Msg("marshal snapshot for ws")
		return
	}

	h.mu.Lock()
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := c.conn.Write(ctx, websocket.MessageText, data)
		cancel()
		if err != nil {
			h.remove(c)
		}
	}
}

func (h *hub) add(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug().Int("clients", len(h.clients)).Msg("ws client connected")
}

func (h *hub) remove(c *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}
	h.mu.Unlock()
}

func (h *hub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.logger.Err(err).Msg("ws accept")
		return
	}

	client := &wsClient{conn: conn}
	h.add(client)

	snap := h.collector.Snapshot()
	if data, err := json.Marshal(snap); err == nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		_ = conn.Write(ctx, websocket.MessageText, data)
		cancel()
	}

	for {
		_, _, err := conn.Read(r.Context())
		if err != nil {
			h.remove(client)
			return
		}
	}
}

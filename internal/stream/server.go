// Package stream serves engine frames to browser renderers over WebSocket
// and accepts state commands back.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/normanking/cortexlipsync/internal/bus"
	"github.com/normanking/cortexlipsync/internal/lipsync"
	"github.com/normanking/cortexlipsync/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const (
	// FramesEndpoint is the path for WebSocket connections.
	FramesEndpoint = "/frames"

	// HealthEndpoint is the path for health checks.
	HealthEndpoint = "/health"

	// MetricsEndpoint exposes Prometheus metrics.
	MetricsEndpoint = "/metrics"

	// WriteWait is the timeout for writing to a WebSocket.
	WriteWait = 10 * time.Second

	// PongWait is the timeout for pong responses.
	PongWait = 60 * time.Second

	// PingPeriod is how often to send ping frames.
	PingPeriod = (PongWait * 9) / 10

	// MaxMessageSize is the maximum inbound message size.
	MaxMessageSize = 512

	sendBuffer = 64
)

// Engine is the part of lipsync.Engine the server drives.
type Engine interface {
	Snapshot() lipsync.Snapshot
	SetState(lipsync.State) error
	StartCapture(ctx context.Context) error
	StopCapture()
}

// Config configures the stream server
type Config struct {
	Addr string `mapstructure:"addr"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{Addr: "127.0.0.1:8766"}
}

// Message is the envelope for everything sent to clients.
type Message struct {
	Type    string            `json:"type"`
	Frame   *lipsync.Snapshot `json:"frame,omitempty"`
	Event   string            `json:"event,omitempty"`
	Data    map[string]any    `json:"data,omitempty"`
	Command string            `json:"command,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// Command is an inbound client request
type Command struct {
	Type  string `json:"type"`
	State string `json:"state,omitempty"`
}

// Server is a WebSocket server broadcasting engine frames.
type Server struct {
	config   Config
	eventBus *bus.EventBus
	logger   zerolog.Logger
	upgrader websocket.Upgrader
	server   *http.Server
	mux      *http.ServeMux

	engineMu sync.RWMutex
	engine   Engine

	clients   map[*Client]bool
	clientsMu sync.RWMutex

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	running   bool
	runningMu sync.Mutex
	addr      string
}

// Client represents a single WebSocket connection.
type Client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// NewServer creates a stream server. Bus events are forwarded to clients.
func NewServer(config Config, eventBus *bus.EventBus, logger zerolog.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		config:   config,
		eventBus: eventBus,
		logger:   logger.With().Str("component", "stream").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Renderers are served from arbitrary local origins
				return true
			},
		},
		clients: make(map[*Client]bool),
		ctx:     ctx,
		cancel:  cancel,
	}

	s.mux = http.NewServeMux()
	s.mux.HandleFunc(FramesEndpoint, s.handleWebSocket)
	s.mux.HandleFunc(HealthEndpoint, s.handleHealth)
	s.mux.Handle(MetricsEndpoint, promhttp.Handler())

	if eventBus != nil {
		eventBus.SubscribeAll(s.handleBusEvent)
	}
	return s
}

// SetEngine swaps the engine commands are routed to.
func (s *Server) SetEngine(e Engine) {
	s.engineMu.Lock()
	defer s.engineMu.Unlock()
	s.engine = e
}

func (s *Server) currentEngine() Engine {
	s.engineMu.RLock()
	defer s.engineMu.RUnlock()
	return s.engine
}

// Handler returns the HTTP routes, for embedding or tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	s.runningMu.Lock()
	defer s.runningMu.Unlock()
	if s.running {
		return fmt.Errorf("stream server already running")
	}

	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}
	s.addr = ln.Addr().String()
	s.server = &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.running = true

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Info().Str("addr", s.addr).Msg("Stream server listening")
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("Stream server error")
		}
	}()
	return nil
}

// Addr returns the bound address once started
func (s *Server) Addr() string {
	s.runningMu.Lock()
	defer s.runningMu.Unlock()
	return s.addr
}

// Stop disconnects every client and shuts the HTTP server down.
func (s *Server) Stop() error {
	s.runningMu.Lock()
	wasRunning := s.running
	s.running = false
	s.runningMu.Unlock()

	s.cancel()

	s.clientsMu.Lock()
	for client := range s.clients {
		delete(s.clients, client)
		close(client.send)
		_ = client.conn.Close()
	}
	metrics.StreamClients.Set(0)
	s.clientsMu.Unlock()

	if wasRunning {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
	}

	s.wg.Wait()
	s.logger.Info().Msg("Stream server stopped")
	return nil
}

// ClientCount returns the number of connected WebSocket clients.
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// Broadcast sends a frame to every client. Slow clients drop frames rather
// than stall the render loop.
func (s *Server) Broadcast(snap lipsync.Snapshot) {
	data, err := json.Marshal(Message{Type: "frame", Frame: &snap})
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to marshal frame")
		return
	}
	s.fanOut(data)
}

func (s *Server) fanOut(data []byte) {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	for client := range s.clients {
		select {
		case client.send <- data:
		default:
		}
	}
}

func (s *Server) handleBusEvent(event bus.Event) {
	switch event.Type {
	case bus.EventTypeClientJoined, bus.EventTypeClientLeft:
		return
	}
	data, err := json.Marshal(Message{Type: "event", Event: string(event.Type), Data: event.Data})
	if err != nil {
		s.logger.Warn().Err(err).Str("event", string(event.Type)).Msg("Failed to marshal event")
		return
	}
	s.fanOut(data)
}

func (s *Server) addClient(client *Client) bool {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	if s.ctx.Err() != nil {
		return false
	}
	s.clients[client] = true
	metrics.StreamClients.Set(float64(len(s.clients)))
	return true
}

func (s *Server) removeClient(client *Client) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	if _, ok := s.clients[client]; !ok {
		return
	}
	delete(s.clients, client)
	close(client.send)
	_ = client.conn.Close()
	metrics.StreamClients.Set(float64(len(s.clients)))
}

// handleWebSocket upgrades HTTP connections to WebSocket.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := &Client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
	if !s.addClient(client) {
		_ = conn.Close()
		return
	}

	s.logger.Info().Str("client_id", client.id).Int("clients", s.ClientCount()).Msg("Client connected")
	s.eventBus.Publish(bus.Event{
		Type: bus.EventTypeClientJoined,
		Data: map[string]any{"client_id": client.id},
	})

	if e := s.currentEngine(); e != nil {
		snap := e.Snapshot()
		s.reply(client, Message{Type: "frame", Frame: &snap})
	}

	s.wg.Add(2)
	go s.writePump(client)
	go s.readPump(client)
}

// writePump handles sending messages to the WebSocket client.
func (s *Server) writePump(client *Client) {
	defer s.wg.Done()

	ticker := time.NewTicker(PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-client.send:
			_ = client.conn.SetWriteDeadline(time.Now().Add(WriteWait))
			if !ok {
				_ = client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				s.removeClient(client)
				return
			}

		case <-ticker.C:
			_ = client.conn.SetWriteDeadline(time.Now().Add(WriteWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.removeClient(client)
				return
			}
		}
	}
}

// readPump handles commands from the WebSocket client.
func (s *Server) readPump(client *Client) {
	defer s.wg.Done()
	defer func() {
		s.removeClient(client)
		s.logger.Info().Str("client_id", client.id).Msg("Client disconnected")
		s.eventBus.Publish(bus.Event{
			Type: bus.EventTypeClientLeft,
			Data: map[string]any{"client_id": client.id},
		})
	}()

	client.conn.SetReadLimit(MaxMessageSize)
	_ = client.conn.SetReadDeadline(time.Now().Add(PongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(PongWait))
	})

	for {
		_, data, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug().Err(err).Str("client_id", client.id).Msg("WebSocket read error")
			}
			return
		}

		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			s.reply(client, Message{Type: "error", Error: "malformed command"})
			continue
		}
		s.handleCommand(client, cmd)
	}
}

func (s *Server) handleCommand(client *Client, cmd Command) {
	e := s.currentEngine()
	if e == nil {
		s.reply(client, Message{Type: "error", Command: cmd.Type, Error: "no engine"})
		return
	}

	var err error
	switch cmd.Type {
	case "set_state":
		var state lipsync.State
		state, err = lipsync.ParseState(cmd.State)
		if err == nil {
			err = e.SetState(state)
		}
	case "start_capture":
		// Permission prompts can block; acknowledge once the device answers.
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := e.StartCapture(s.ctx); err != nil {
				s.logger.Warn().Err(err).Str("client_id", client.id).Msg("Capture start failed")
				s.reply(client, Message{Type: "error", Command: cmd.Type, Error: err.Error()})
				return
			}
			s.reply(client, Message{Type: "ack", Command: cmd.Type})
		}()
		return
	case "stop_capture":
		e.StopCapture()
	default:
		err = fmt.Errorf("unknown command %q", cmd.Type)
	}

	if err != nil {
		s.reply(client, Message{Type: "error", Command: cmd.Type, Error: err.Error()})
		return
	}
	s.reply(client, Message{Type: "ack", Command: cmd.Type})
}

func (s *Server) reply(client *Client, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	if !s.clients[client] {
		return
	}
	select {
	case client.send <- data:
	default:
	}
}

// handleHealth responds to health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := struct {
		Status  string `json:"status"`
		Service string `json:"service"`
		Clients int    `json:"clients"`
		Engine  string `json:"engine_id,omitempty"`
		State   string `json:"state,omitempty"`
		Tier    string `json:"tier,omitempty"`
	}{
		Status:  "healthy",
		Service: "cortex-lipsync",
		Clients: s.ClientCount(),
	}
	if e := s.currentEngine(); e != nil {
		snap := e.Snapshot()
		health.Engine = snap.EngineID
		health.State = string(snap.State)
		health.Tier = snap.Tier
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(health)
}

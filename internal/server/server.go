package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/adcondev/brother-daemon/internal/auth"
	"github.com/adcondev/brother-daemon/internal/brother"
	servererrors "github.com/adcondev/brother-daemon/internal/server/errors"
)

const replyTimeout = 10 * time.Second

// BridgeState reports the native host link for status replies.
type BridgeState interface {
	Connected() bool
	Pending() int
}

// Config holds server configuration
type Config struct {
	// AllowedOrigins are WebSocket origin patterns; empty enforces same origin.
	AllowedOrigins  []string
	PrintsPerMinute int
}

// Message represents incoming WebSocket message
type Message struct {
	Tipo  string          `json:"tipo"`
	ID    string          `json:"id,omitempty"`
	Token string          `json:"token,omitempty"`
	Datos json.RawMessage `json:"datos,omitempty"`
}

// ErrorDetail is the normalized error as sent to clients.
type ErrorDetail struct {
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	Code      any    `json:"code,omitempty"`
	Namespace any    `json:"namespace,omitempty"`
}

// BridgeInfo summarizes the native host link.
type BridgeInfo struct {
	Connected bool `json:"connected"`
	Pending   int  `json:"pending"`
}

// Response represents outgoing WebSocket message
type Response struct {
	Tipo    string       `json:"tipo"`
	ID      string       `json:"id,omitempty"`
	Status  string       `json:"status,omitempty"`
	Mensaje string       `json:"mensaje,omitempty"`
	Datos   any          `json:"datos,omitempty"`
	Error   *ErrorDetail `json:"error,omitempty"`
	Bridge  *BridgeInfo  `json:"bridge,omitempty"`
	Clients int          `json:"clients,omitempty"`
}

// Server manages WebSocket connections and relays calls to the facade
type Server struct {
	clients        *ClientRegistry
	printer        *brother.Client
	bridge         BridgeState
	authMgr        *auth.Manager
	limiter        *PrintRateLimiter
	allowedOrigins []string
	shutdownOnce   sync.Once
	shutdownChan   chan struct{}

	replyMu  sync.Mutex
	draining bool
	replies  sync.WaitGroup
}

// NewServer creates a new WebSocket server. bridge and authMgr may be nil.
func NewServer(cfg Config, printer *brother.Client, bridge BridgeState, authMgr *auth.Manager) *Server {
	return &Server{
		clients:        NewClientRegistry(),
		printer:        printer,
		bridge:         bridge,
		authMgr:        authMgr,
		limiter:        NewPrintRateLimiter(cfg.PrintsPerMinute),
		allowedOrigins: cfg.AllowedOrigins,
		shutdownChan:   make(chan struct{}),
	}
}

// ClientCount returns the number of connected clients
func (s *Server) ClientCount() int {
	return s.clients.Count()
}

// HandleWebSocket handles WebSocket connections
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.allowedOrigins,
	})
	if err != nil {
		log.Printf("[WS] ❌ Error accepting client: %v", err)
		return
	}

	addr := clientHost(r.RemoteAddr)
	s.clients.Add(conn, addr)
	log.Printf("[WS] ➕ Client connected (total: %d) from %s", s.clients.Count(), r.RemoteAddr)

	ctx := r.Context()
	welcome := Response{
		Tipo:    "info",
		Status:  "connected",
		Mensaje: "✅ Brother print daemon ready",
	}
	_ = wsjson.Write(ctx, conn, welcome)

	s.handleMessages(ctx, conn, addr)

	s.clients.Remove(conn)
	_ = conn.Close(websocket.StatusNormalClosure, "disconnected")
	log.Printf("[WS] ➖ Client disconnected (remaining: %d)", s.clients.Count())
}

// handleMessages processes incoming messages from a client
func (s *Server) handleMessages(ctx context.Context, conn *websocket.Conn, addr string) {
	for {
		select {
		case <-s.shutdownChan:
			return
		default:
		}

		var msg Message
		err := wsjson.Read(ctx, conn, &msg)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure ||
				websocket.CloseStatus(err) == websocket.StatusGoingAway ||
				ctx.Err() != nil {
				return
			}
			log.Printf("[WS] ⚠️ Error reading message: %v", err)
			return
		}

		s.routeMessage(ctx, conn, addr, &msg)
	}
}

// routeMessage routes message to appropriate handler
func (s *Server) routeMessage(ctx context.Context, conn *websocket.Conn, addr string, msg *Message) {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}

	if msg.Tipo == "ping" {
		s.handlePing(ctx, conn, msg)
		return
	}

	if err := s.authorize(conn, addr, msg.Token); err != nil {
		log.Printf("[AUDIT] WS_REJECTED | IP=%s | tipo=%s | reason=%v", addr, msg.Tipo, err)
		s.sendError(ctx, conn, msg.ID, err)
		return
	}

	switch {
	case msg.Tipo == "status":
		s.handleStatus(ctx, conn, msg)
	case slices.Contains(brother.Actions(), msg.Tipo):
		s.handleAction(ctx, conn, addr, msg)
	default:
		log.Printf("[WS] ⚠️ Unknown message type: %s", msg.Tipo)
		s.sendError(ctx, conn, msg.ID, fmt.Errorf("%w: %s", servererrors.ErrUnknownTipo, msg.Tipo))
	}
}

// authorize validates the token once per connection.
func (s *Server) authorize(conn *websocket.Conn, addr, token string) error {
	if s.authMgr == nil || !s.authMgr.Enabled() || s.clients.IsAuthenticated(conn) {
		return nil
	}
	if s.authMgr.IsLockedOut(addr) {
		return servererrors.ErrLockedOut
	}
	if !s.authMgr.ValidateToken(token) {
		s.authMgr.RecordFailure(addr)
		return servererrors.ErrUnauthorized
	}
	s.authMgr.ClearFailures(addr)
	s.clients.MarkAuthenticated(conn)
	log.Printf("[AUDIT] WS_AUTH_SUCCESS | IP=%s", addr)
	return nil
}

// handleAction relays one capability call to the facade.
// The client gets an ack now and a result or error frame when the native side answers.
func (s *Server) handleAction(ctx context.Context, conn *websocket.Conn, addr string, msg *Message) {
	arg, err := decodeDatos(msg.Datos)
	if err != nil {
		s.sendError(ctx, conn, msg.ID, fmt.Errorf("%w: %v", servererrors.ErrBadDatos, err))
		return
	}

	// Rejected payloads never reach the facade, so they get no ack.
	if perr := brother.CheckPayload(msg.Tipo, arg); perr != nil {
		log.Printf("[WS] ⚠️ %s (%s) rejected: %s", msg.Tipo, msg.ID, perr.Message)
		s.sendError(ctx, conn, msg.ID, perr)
		return
	}

	isPrint := msg.Tipo == brother.ActionPrintViaSDK || msg.Tipo == brother.ActionSendUSBConfig
	if isPrint && !s.limiter.Allow(addr) {
		log.Printf("[WS] 🚫 Print rate limit hit by %s", addr)
		s.sendError(ctx, conn, msg.ID, servererrors.ErrRateLimited)
		return
	}

	_ = wsjson.Write(ctx, conn, Response{
		Tipo:   "ack",
		ID:     msg.ID,
		Status: "dispatched",
	})
	log.Printf("[WS] 📨 %s dispatched (%s)", msg.Tipo, msg.ID)

	id, tipo := msg.ID, msg.Tipo
	onSuccess := func(result any) {
		s.reply(conn, Response{
			Tipo:   "result",
			ID:     id,
			Status: "success",
			Datos:  result,
		})
	}
	onError := func(err error) {
		log.Printf("[WS] ❌ %s (%s) failed: %v", tipo, id, err)
		s.reply(conn, errorResponse(id, err))
	}

	switch msg.Tipo {
	case brother.ActionFindNetworkPrinters:
		s.printer.FindNetworkPrinters(onSuccess, onError)
	case brother.ActionPairBluetoothPrinters:
		s.printer.PairBluetoothPrinters(onSuccess, onError)
	case brother.ActionFindBluetoothPrinters:
		s.printer.FindBluetoothPrinters(onSuccess, onError)
	case brother.ActionFindPrinters:
		s.printer.FindPrinters(onSuccess, onError)
	case brother.ActionSetPrinter:
		s.printer.SetPrinter(arg, onSuccess, onError)
	case brother.ActionPrintViaSDK:
		s.printer.PrintViaSDK(arg, onSuccess, onError)
	case brother.ActionSendUSBConfig:
		s.printer.SendUSBConfig(arg, onSuccess, onError)
	}
}

// reply writes asynchronously so native callbacks never block on a slow client.
// Replies arriving after Shutdown began are dropped.
func (s *Server) reply(conn *websocket.Conn, response Response) {
	s.replyMu.Lock()
	defer s.replyMu.Unlock()

	if s.draining {
		log.Printf("[WS] ⚠️ Shutting down, dropping %s for %s", response.Tipo, response.ID)
		return
	}
	if !s.clients.Contains(conn) {
		log.Printf("[WS] ⚠️ Client for %s is gone, dropping %s", response.ID, response.Tipo)
		return
	}

	s.replies.Add(1)
	go func() {
		defer s.replies.Done()
		ctx, cancel := context.WithTimeout(context.Background(), replyTimeout)
		defer cancel()
		if err := wsjson.Write(ctx, conn, response); err != nil {
			log.Printf("[WS] ⚠️ Failed to deliver %s for %s: %v", response.Tipo, response.ID, err)
		}
	}()
}

// handleStatus sends the native link status
func (s *Server) handleStatus(ctx context.Context, conn *websocket.Conn, msg *Message) {
	response := Response{
		Tipo:    "status",
		ID:      msg.ID,
		Status:  "ok",
		Clients: s.clients.Count(),
	}
	if s.bridge != nil {
		response.Bridge = &BridgeInfo{
			Connected: s.bridge.Connected(),
			Pending:   s.bridge.Pending(),
		}
	}
	_ = wsjson.Write(ctx, conn, response)
}

// handlePing responds to ping
func (s *Server) handlePing(ctx context.Context, conn *websocket.Conn, msg *Message) {
	response := Response{
		Tipo:   "pong",
		ID:     msg.ID,
		Status: "ok",
	}
	_ = wsjson.Write(ctx, conn, response)
}

// sendError sends error response to client
func (s *Server) sendError(ctx context.Context, conn *websocket.Conn, id string, err error) {
	_ = wsjson.Write(ctx, conn, errorResponse(id, err))
}

func errorResponse(id string, err error) Response {
	response := Response{
		Tipo:    "error",
		ID:      id,
		Status:  "error",
		Mensaje: servererrors.UserMessage(err),
	}

	var be *brother.Error
	if errors.As(err, &be) {
		response.Error = &ErrorDetail{
			Kind:      be.Kind.String(),
			Message:   be.Message,
			Code:      be.Code,
			Namespace: be.Namespace,
		}
	} else {
		response.Error = &ErrorDetail{Kind: "gateway", Message: err.Error()}
	}
	return response
}

// decodeDatos turns the datos field into the opaque argument for the facade.
func decodeDatos(raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown() {
	s.shutdownOnce.Do(func() {
		close(s.shutdownChan)

		clientCount := s.clients.Count()
		log.Printf("[WS] 🛑 Shutting down, disconnecting %d clients", clientCount)

		s.replyMu.Lock()
		s.draining = true
		s.replyMu.Unlock()

		s.clients.ForEach(func(conn *websocket.Conn) {
			_ = conn.Close(websocket.StatusGoingAway, "Server shutting down")
		})
		s.replies.Wait()
	})
}

func clientHost(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gridswitch/internal/auth"
	"github.com/nerrad567/gridswitch/internal/command"
	"github.com/nerrad567/gridswitch/internal/infrastructure/config"
	"github.com/nerrad567/gridswitch/internal/infrastructure/logging"
)

// Outcome feed message types.
//
// A client sends "watch" (optionally narrowed to plug addresses),
// "unwatch" or "ping". The server answers with "ack", "pong" or "error",
// and pushes a command.EventCompleted message for every finished command
// that touches a watched plug.
const (
	WSTypeWatch   = "watch"
	WSTypeUnwatch = "unwatch"
	WSTypePing    = "ping"
	WSTypePong    = "pong"
	WSTypeAck     = "ack"
	WSTypeError   = "error"

	// feedBufferSize is the per-watcher outbound queue length.
	feedBufferSize = 256
)

// WSRequest is a message from a feed client.
type WSRequest struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// WatchRequest narrows a watch to the listed plug addresses. An empty
// list watches every plug.
type WatchRequest struct {
	Addresses []string `json:"addresses"`
}

// WSReply answers one WSRequest.
type WSReply struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

// OutcomeEvent is pushed to watchers when a command completes.
type OutcomeEvent struct {
	Type      string                 `json:"type"`
	Timestamp string                 `json:"timestamp"`
	Payload   command.CompletedEvent `json:"payload"`
}

// Hub pushes command outcomes to websocket watchers.
// It satisfies command.Broadcaster.
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger

	// mu guards watchers and every send on a watcher's queue, so a queue
	// is never written after it is closed.
	mu       sync.RWMutex
	watchers map[*watcher]struct{}
}

// watcher is one connected feed client.
type watcher struct {
	conn    *websocket.Conn
	queue   chan []byte
	subject string
	role    auth.Role

	mu        sync.RWMutex
	watching  bool
	addresses map[string]struct{}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Token auth makes cross-origin connections harmless
		return true
	},
}

// NewHub creates an empty hub.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:      cfg,
		logger:   logger,
		watchers: make(map[*watcher]struct{}),
	}
}

// Run blocks until ctx is cancelled, then disconnects every watcher.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	defer h.mu.Unlock()
	for w := range h.watchers {
		close(w.queue)
		w.conn.Close()
		delete(h.watchers, w)
	}
}

// ClientCount returns the number of connected watchers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.watchers)
}

// BroadcastCompleted pushes ev to every watcher interested in one of its
// plugs. Slow watchers whose queue is full miss the event.
func (h *Hub) BroadcastCompleted(ev command.CompletedEvent) {
	data, err := json.Marshal(OutcomeEvent{
		Type:      command.EventCompleted,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   ev,
	})
	if err != nil {
		h.logger.Error("failed to marshal outcome event", "command_id", ev.CommandID, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for w := range h.watchers {
		if w.wants(ev) && w.offer(data) {
			sent++
		}
	}
	if sent > 0 {
		h.logger.Debug("outcome event sent", "command_id", ev.CommandID, "watchers", sent)
	}
}

func (h *Hub) add(w *watcher) {
	h.mu.Lock()
	h.watchers[w] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("outcome watcher connected", "subject", w.subject, "role", w.role)
}

// remove drops w and closes its queue. Only the first call has an effect.
func (h *Hub) remove(w *watcher) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.watchers[w]; !ok {
		return
	}
	delete(h.watchers, w)
	close(w.queue)
	h.logger.Debug("outcome watcher disconnected", "subject", w.subject)
}

// reply queues a direct answer to w if it is still connected.
func (h *Hub) reply(w *watcher, r WSReply) {
	data, err := json.Marshal(r)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.watchers[w]; ok {
		w.offer(data)
	}
}

// offer queues data without blocking. The caller holds the hub lock.
func (w *watcher) offer(data []byte) bool {
	select {
	case w.queue <- data:
		return true
	default:
		return false
	}
}

// wants reports whether ev touches a plug w is watching.
func (w *watcher) wants(ev command.CompletedEvent) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if !w.watching {
		return false
	}
	if len(w.addresses) == 0 {
		return true
	}
	if slices.ContainsFunc(ev.Successful, w.has) {
		return true
	}
	for addr := range ev.Failed {
		if w.has(addr) {
			return true
		}
	}
	return false
}

// has is called with w.mu held.
func (w *watcher) has(addr string) bool {
	_, ok := w.addresses[addr]
	return ok
}

func (w *watcher) setWatch(on bool, addresses []string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.watching = on
	w.addresses = make(map[string]struct{}, len(addresses))
	for _, a := range addresses {
		w.addresses[a] = struct{}{}
	}
}

// handleWebSocket authenticates ?token= and upgrades the connection.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeUnauthorized(w, "token query parameter is required")
		return
	}
	claims, err := auth.ParseToken(token, s.secCfg.JWT.Secret)
	if err != nil {
		writeUnauthorized(w, "invalid or expired token")
		return
	}
	if !auth.HasPermission(claims.Role, auth.PermOutcomeWatch) {
		writeForbidden(w, "missing permission "+string(auth.PermOutcomeWatch))
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	hub := s.Hub()
	feed := &watcher{
		conn:    conn,
		queue:   make(chan []byte, feedBufferSize),
		subject: claims.Subject,
		role:    claims.Role,
	}
	hub.add(feed)

	go hub.writeLoop(feed)
	go hub.readLoop(feed)
}

// readLoop handles requests from w until the connection fails.
func (h *Hub) readLoop(w *watcher) {
	defer func() {
		h.remove(w)
		w.conn.Close()
	}()

	pongWait := time.Duration(h.cfg.PingInterval+h.cfg.PongTimeout) * time.Second
	w.conn.SetReadLimit(int64(h.cfg.MaxMessageSize))
	w.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck // read error surfaces below
	w.conn.SetPongHandler(func(string) error {
		return w.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := w.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read error", "subject", w.subject, "error", err)
			}
			return
		}
		w.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck // read error surfaces above
		h.reply(w, h.handleRequest(w, data))
	}
}

// handleRequest applies one client request and returns its answer.
func (h *Hub) handleRequest(w *watcher, data []byte) WSReply {
	var req WSRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return WSReply{Type: WSTypeError, Payload: map[string]string{"message": "invalid JSON message"}}
	}

	switch req.Type {
	case WSTypeWatch:
		var watch WatchRequest
		if len(req.Payload) > 0 {
			if err := json.Unmarshal(req.Payload, &watch); err != nil {
				return WSReply{Type: WSTypeError, ID: req.ID, Payload: map[string]string{"message": "invalid watch payload"}}
			}
		}
		w.setWatch(true, watch.Addresses)
		h.logger.Info("outcome watch started", "subject", w.subject, "addresses", watch.Addresses)
		return WSReply{Type: WSTypeAck, ID: req.ID, Payload: watch}
	case WSTypeUnwatch:
		w.setWatch(false, nil)
		return WSReply{Type: WSTypeAck, ID: req.ID}
	case WSTypePing:
		return WSReply{Type: WSTypePong, ID: req.ID}
	default:
		return WSReply{Type: WSTypeError, ID: req.ID, Payload: map[string]string{"message": "unknown message type: " + req.Type}}
	}
}

// writeLoop drains w's queue and keeps the connection alive with pings.
func (h *Hub) writeLoop(w *watcher) {
	ticker := time.NewTicker(time.Duration(h.cfg.PingInterval) * time.Second)
	defer func() {
		ticker.Stop()
		w.conn.Close()
	}()

	writeWait := time.Duration(h.cfg.PongTimeout) * time.Second
	for {
		var (
			kind int
			data []byte
		)
		select {
		case msg, ok := <-w.queue:
			if !ok {
				w.conn.WriteMessage(websocket.CloseMessage, nil) //nolint:errcheck // closing anyway
				return
			}
			kind, data = websocket.TextMessage, msg
		case <-ticker.C:
			kind = websocket.PingMessage
		}

		w.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck // write error surfaces below
		if err := w.conn.WriteMessage(kind, data); err != nil {
			return
		}
	}
}

// Package live pushes refresh hints to open dashboards over WebSocket.
package live

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/curasync/portal/internal/session"
	"github.com/curasync/portal/pkg/logging"
)

// EventAppointmentsChanged tells a dashboard to re-fetch its appointments.
const EventAppointmentsChanged = "appointments.changed"

const (
	sendBuffer = 8
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Event is the message pushed to the browser.
type Event struct {
	Type string `json:"type"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub tracks open sockets per signed-in user.
type Hub struct {
	logger   *logging.Logger
	upgrader websocket.Upgrader

	mu    sync.RWMutex
	users map[string]map[*client]struct{}
}

// NewHub creates a hub. allowedOrigins mirrors the CORS list; "*" accepts any
// origin and an empty list accepts only same-origin upgrades.
func NewHub(allowedOrigins []string, logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Default()
	}
	h := &Hub{
		logger: logger.Component("live"),
		users:  make(map[string]map[*client]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(*http.Request) bool {
	allowAll := false
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "" {
			continue
		}
		if o == "*" {
			allowAll = true
		}
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		if allowAll {
			return true
		}
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if _, ok := set[strings.TrimRight(origin, "/")]; ok {
			return true
		}
		return sameOrigin(origin, r.Host)
	}
}

func sameOrigin(origin, host string) bool {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	return strings.EqualFold(u.Host, host)
}

// Publish queues evt for every socket of userID and returns how many sockets
// accepted it. Slow sockets drop the event.
func (h *Hub) Publish(userID string, evt Event) int {
	if h == nil || userID == "" {
		return 0
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		h.logger.Error("live: marshal event", "error", err)
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := 0
	for c := range h.users[userID] {
		select {
		case c.send <- payload:
			delivered++
		default:
			h.logger.Warn("live: dropping event for slow socket", "user_id", userID, "type", evt.Type)
		}
	}
	return delivered
}

// Connections reports how many sockets userID has open.
func (h *Hub) Connections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}

// ServeHTTP upgrades a signed-in request to a WebSocket.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user, ok := session.UserFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"not signed in"}`, http.StatusUnauthorized)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("live: upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.register(user.ID, c)
	h.logger.Info("live: connection opened", "user_id", user.ID)

	go h.writeLoop(c)
	h.readLoop(user.ID, c)
}

func (h *Hub) register(userID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.users[userID] == nil {
		h.users[userID] = make(map[*client]struct{})
	}
	h.users[userID][c] = struct{}{}
}

func (h *Hub) unregister(userID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns := h.users[userID]
	if _, ok := conns[c]; !ok {
		return
	}
	delete(conns, c)
	if len(conns) == 0 {
		delete(h.users, userID)
	}
	close(c.send)
}

// readLoop keeps the socket alive and answers pings until the browser leaves.
func (h *Hub) readLoop(userID string, c *client) {
	defer func() {
		h.unregister(userID, c)
		_ = c.conn.Close()
		h.logger.Debug("live: connection closed", "user_id", userID)
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Event
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}
		if msg.Type == "ping" {
			payload, _ := json.Marshal(Event{Type: "pong"})
			h.mu.RLock()
			select {
			case c.send <- payload:
			default:
			}
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

package control

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/google/uuid"

	"thermod/pkg/eventbus"
	"thermod/pkg/logger"
)

// wsClients is the gorilla/websocket broadcaster for the supplemental
// /monitor/ws endpoint, grounded directly on the teacher's
// thermostat.web.service.go ClientSync: a set of live connections with
// one prepared-message broadcast and drop-on-write-error semantics.
type wsClients struct {
	clients map[*websocket.Conn]bool
	mu      sync.Mutex
}

func newWsClients() *wsClients {
	return &wsClients{clients: make(map[*websocket.Conn]bool)}
}

func (c *wsClients) add(ws *websocket.Conn) {
	c.mu.Lock()
	c.clients[ws] = true
	c.mu.Unlock()
}

func (c *wsClients) remove(ws *websocket.Conn) {
	c.mu.Lock()
	delete(c.clients, ws)
	c.mu.Unlock()
}

func (c *wsClients) broadcast(pm *websocket.PreparedMessage, log *logger.Logger) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for ws := range c.clients {
		if err := ws.WritePreparedMessage(pm); err != nil {
			log.Error("monitor ws write failed: %v", err)
			ws.Close()
			delete(c.clients, ws)
		}
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return false
		}
		return strings.Contains(origin, "localhost") || strings.Contains(origin, r.Host)
	},
}

// serveMonitorWS upgrades the connection and registers it with the
// broadcaster; a background subscriber goroutine (started once by the
// Socket) pushes every published status to all connected clients.
func (s *Socket) serveMonitorWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("monitor ws upgrade failed: %v", err)
		return
	}
	s.ws.add(ws)
	defer func() {
		s.ws.remove(ws)
		ws.Close()
	}()

	if last, ok := s.bus.GetLast(statusTopic); ok {
		if data, err := json.Marshal(last); err == nil {
			ws.WriteMessage(websocket.TextMessage, data)
		}
	}

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}
}

// runMonitorBroadcaster relays every published status onto all
// connected websocket clients until the events channel is closed.
func (s *Socket) runMonitorBroadcaster(events <-chan eventbus.Event) {
	for ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			s.log.Error("marshal status for monitor ws: %v", err)
			continue
		}
		pm, err := websocket.NewPreparedMessage(websocket.TextMessage, data)
		if err != nil {
			s.log.Error("prepare monitor ws message: %v", err)
			continue
		}
		s.ws.broadcast(pm, s.log)
	}
}

func newCorrelationID() string {
	return uuid.NewString()
}

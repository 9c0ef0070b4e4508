package httpapi

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"replay-proxy/internal/adapters/pubsub"
	"replay-proxy/internal/domain"
	"replay-proxy/internal/usecase"
)

const (
	MessageStatsDump    = "stats_dump"
	MessageStatsUpdated = "stats_updated"
	MessageStatsCleared = "stats_cleared"
)

// MonitorMessage is one frame of the live stats feed.
type MonitorMessage struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// DumpFunc returns the full aggregate sent to a client when it connects.
type DumpFunc func(ctx context.Context) (domain.Stats, error)

type monitorClient struct {
	conn *websocket.Conn
	// deltas whose story id is below minID are already part of the dump the client got
	minID int
}

// MonitorHub fans stats deltas out to websocket dashboards. A client first receives
// the full aggregate, then every later delta exactly once.
type MonitorHub struct {
	// mu guards clients and serializes writes
	mu       sync.Mutex
	clients  map[*websocket.Conn]*monitorClient
	upgrader websocket.Upgrader
	dump     DumpFunc
	logger   zerolog.Logger
	unsub    []func()
}

func NewMonitorHub(bus *pubsub.Bus, dump DumpFunc, logger *zerolog.Logger) *MonitorHub {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "monitor").Logger()
	}
	h := &MonitorHub{
		clients:  make(map[*websocket.Conn]*monitorClient),
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		dump:     dump,
		logger:   l,
	}
	if bus != nil {
		h.unsub = append(h.unsub,
			bus.Subscribe(usecase.TopicStatsUpdated, func(payload any) {
				if delta, ok := payload.(domain.Stats); ok {
					h.BroadcastDelta(delta)
				}
			}),
			bus.Subscribe(usecase.TopicStatsCleared, func(any) { h.broadcastCleared() }),
		)
	}
	return h
}

func (h *MonitorHub) HandleWS(w http.ResponseWriter, r *http.Request) {
	c, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	// The dump is taken under mu so that no delta can slip between it and registration.
	h.mu.Lock()
	stats, err := h.dump(r.Context())
	if err != nil {
		h.mu.Unlock()
		h.logger.Error().Err(err).Msg("stats dump failed")
		_ = c.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "dump failed"), time.Now().Add(time.Second))
		_ = c.Close()
		return
	}
	if err := writeMessage(c, MonitorMessage{Type: MessageStatsDump, Data: stats}); err != nil {
		h.mu.Unlock()
		_ = c.Close()
		return
	}
	h.clients[c] = &monitorClient{conn: c, minID: len(stats.StoryLog)}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug().Int("clients", n).Msg("dashboard connected")

	for {
		// keepalive reads to detect client close
		if _, _, err := c.ReadMessage(); err != nil {
			break
		}
	}
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	_ = c.Close()
}

// BroadcastDelta sends one stats_updated frame to each client that has not seen it yet.
func (h *MonitorHub) BroadcastDelta(delta domain.Stats) {
	id := math.MaxInt
	if len(delta.StoryLog) > 0 {
		id = delta.StoryLog[0].ID
	}
	data, err := json.Marshal(MonitorMessage{Type: MessageStatsUpdated, Data: delta})
	if err != nil {
		h.logger.Error().Err(err).Msg("encode delta")
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c, cl := range h.clients {
		if id < cl.minID {
			continue
		}
		h.write(c, data)
	}
}

func (h *MonitorHub) broadcastCleared() {
	data, _ := json.Marshal(MonitorMessage{Type: MessageStatsCleared})
	h.mu.Lock()
	defer h.mu.Unlock()
	for c, cl := range h.clients {
		// story ids restart at zero
		cl.minID = 0
		h.write(c, data)
	}
}

func (h *MonitorHub) write(c *websocket.Conn, data []byte) {
	_ = c.SetWriteDeadline(time.Now().Add(2 * time.Second))
	if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
		h.logger.Debug().Err(err).Msg("dashboard write failed")
	}
}

// Clients reports the number of connected dashboards.
func (h *MonitorHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close detaches the hub from the bus and disconnects all clients.
func (h *MonitorHub) Close() {
	for _, u := range h.unsub {
		u()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		_ = c.Close()
		delete(h.clients, c)
	}
}

func writeMessage(c *websocket.Conn, m MonitorMessage) error {
	_ = c.SetWriteDeadline(time.Now().Add(2 * time.Second))
	return c.WriteJSON(m)
}

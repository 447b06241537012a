package server

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"time"

	"gamecenter/internal/events"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeTimeout   = 10 * time.Second
	readTimeout    = 60 * time.Second
	pingInterval   = 30 * time.Second
	maxMessageSize = 1024
	sendBuffer     = 256
	broadcastQueue = 1000
)

type liveMessage struct {
	tick bool
	data []byte
}

// LiveHub streams every bus event to the connected websocket clients. A
// client connecting with ?ticks=false is spared the per-second ticks.
type LiveHub struct {
	mu       sync.RWMutex
	conns    map[*liveConn]struct{}
	upgrader websocket.Upgrader

	broadcastCh chan liveMessage
	done        chan struct{}
	closeOnce   sync.Once
}

type liveConn struct {
	id        string
	ws        *websocket.Conn
	send      chan []byte
	skipTicks bool
	hub       *LiveHub
}

func NewLiveHub(allowedOrigins []string) *LiveHub {
	h := &LiveHub{
		conns: make(map[*liveConn]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		broadcastCh: make(chan liveMessage, broadcastQueue),
		done:        make(chan struct{}),
	}
	go h.run()
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, "*") || slices.Contains(allowed, origin)
	}
}

// Publish is a bus handler. It never blocks the publisher: when the queue is
// full the event is dropped for the live feed only.
func (h *LiveHub) Publish(_ context.Context, ev events.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("event_type", ev.Type).Msg("failed to marshal live event")
		return
	}
	select {
	case <-h.done:
	case h.broadcastCh <- liveMessage{tick: ev.Type == events.StationTicked, data: data}:
	default:
		log.Warn().Str("event_type", ev.Type).Msg("live broadcast queue full, dropping event")
	}
}

func (h *LiveHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("failed to upgrade websocket connection")
		return
	}
	skip := false
	if v := r.URL.Query().Get("ticks"); v != "" {
		ticks, err := strconv.ParseBool(v)
		skip = err == nil && !ticks
	}
	c := &liveConn{
		id:        uuid.NewString(),
		ws:        ws,
		send:      make(chan []byte, sendBuffer),
		skipTicks: skip,
		hub:       h,
	}
	if !h.register(c) {
		ws.Close()
		return
	}
	go c.writePump()
	go c.readPump()
	log.Info().Str("connection_id", c.id).Msg("live connection established")
}

// Connections is the number of open live connections.
func (h *LiveHub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *LiveHub) register(c *liveConn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	select {
	case <-h.done:
		return false
	default:
	}
	h.conns[c] = struct{}{}
	return true
}

func (h *LiveHub) unregister(c *liveConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[c]; ok {
		delete(h.conns, c)
		close(c.send)
		log.Debug().Str("connection_id", c.id).Msg("live connection closed")
	}
}

func (h *LiveHub) run() {
	for {
		select {
		case <-h.done:
			return
		case msg := <-h.broadcastCh:
			h.broadcast(msg)
		}
	}
}

// broadcast sends under the read lock so no send channel is closed mid-send.
func (h *LiveHub) broadcast(msg liveMessage) {
	var slow []*liveConn
	h.mu.RLock()
	for c := range h.conns {
		if msg.tick && c.skipTicks {
			continue
		}
		select {
		case c.send <- msg.data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		log.Warn().Str("connection_id", c.id).Msg("live send buffer full, closing connection")
		h.unregister(c)
		c.ws.Close()
	}
}

// Close stops the broadcaster and drops every connection.
func (h *LiveHub) Close() {
	h.closeOnce.Do(func() {
		h.mu.Lock()
		close(h.done)
		conns := make([]*liveConn, 0, len(h.conns))
		for c := range h.conns {
			conns = append(conns, c)
		}
		h.mu.Unlock()
		for _, c := range conns {
			h.unregister(c)
		}
	})
}

func (c *liveConn) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.ws.Close()
		c.hub.unregister(c)
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Debug().Err(err).Str("connection_id", c.id).Msg("live write failed")
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only serves pongs and close frames; clients do not send commands.
func (c *liveConn) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.ws.Close()
	}()
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(readTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(readTimeout))
	})
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("connection_id", c.id).Msg("live connection read error")
			}
			return
		}
	}
}

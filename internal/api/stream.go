package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/quantumlife/focuscoach/internal/core"
	"github.com/quantumlife/focuscoach/internal/logging"
)

// Event types pushed to stream subscribers
const (
	EventIntervention = "intervention"
	EventFeedback     = "feedback"
)

// Event is one message on a user's stream.
type Event struct {
	Type      string      `json:"type"`
	UserID    core.UserID `json:"user_id"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

type subscriber struct {
	conn *websocket.Conn
	send chan Event
}

// StreamHub fans issued interventions out to the user's open WebSocket
// connections. Slow subscribers lose events rather than block publishers.
type StreamHub struct {
	upgrader   websocket.Upgrader
	subs       map[core.UserID]map[*subscriber]struct{}
	bufferSize int
	pingEvery  time.Duration
	pongWait   time.Duration
	log        *logging.Logger
	closed     bool

	wg sync.WaitGroup
	mu sync.RWMutex
}

// NewStreamHub creates a new stream hub
func NewStreamHub() *StreamHub {
	return &StreamHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // CORS is enforced on the REST routes
			},
		},
		subs:       make(map[core.UserID]map[*subscriber]struct{}),
		bufferSize: 16,
		pingEvery:  54 * time.Second,
		pongWait:   60 * time.Second,
		log:        logging.WithField("component", "stream"),
	}
}

// Publish queues an event for every open connection of userID.
func (h *StreamHub) Publish(userID core.UserID, eventType string, data interface{}) {
	ev := Event{Type: eventType, UserID: userID, Data: data, Timestamp: time.Now().UTC()}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs[userID] {
		select {
		case sub.send <- ev:
		default:
			h.log.WithField("user_id", userID).Warn("dropped %s event for slow subscriber", eventType)
		}
	}
}

// Subscribers reports how many connections userID has open.
func (h *StreamHub) Subscribers(userID core.UserID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}

// ServeUser upgrades the request and streams userID's events until the
// client disconnects or the hub closes.
func (h *StreamHub) ServeUser(w http.ResponseWriter, r *http.Request, userID core.UserID) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response
		return
	}

	sub := &subscriber{conn: conn, send: make(chan Event, h.bufferSize)}
	if !h.register(userID, sub) {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		conn.Close()
		return
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.writeLoop(sub)
	}()

	// Reads only detect the close and pongs; clients have nothing to say.
	conn.SetReadDeadline(time.Now().Add(h.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.unregister(userID, sub)
}

func (h *StreamHub) register(userID core.UserID, sub *subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[*subscriber]struct{})
	}
	h.subs[userID][sub] = struct{}{}
	return true
}

func (h *StreamHub) unregister(userID core.UserID, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[userID][sub]; !ok {
		return
	}
	delete(h.subs[userID], sub)
	if len(h.subs[userID]) == 0 {
		delete(h.subs, userID)
	}
	close(sub.send)
}

func (h *StreamHub) writeLoop(sub *subscriber) {
	ticker := time.NewTicker(h.pingEvery)
	defer func() {
		ticker.Stop()
		sub.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-sub.send:
			sub.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				sub.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := sub.conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			sub.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close disconnects every subscriber and waits for their writers to exit.
func (h *StreamHub) Close() {
	h.mu.Lock()
	h.closed = true
	for userID, subs := range h.subs {
		for sub := range subs {
			close(sub.send)
		}
		delete(h.subs, userID)
	}
	h.mu.Unlock()

	h.wg.Wait()
}

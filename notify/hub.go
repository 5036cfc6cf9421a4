// Package notify pushes an asset-change event to any process subscribed to
// that asset's readings, over a WebSocket connection, after a successful
// append.
package notify

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// Config configures the notification hub.
type Config struct {
	// ReadBufferSize/WriteBufferSize size the WebSocket upgrader's buffers.
	ReadBufferSize  int
	WriteBufferSize int
	// SubscriptionBuffer is the per-subscription channel buffer size; a
	// slow subscriber drops events past this depth rather than blocking
	// the append path.
	SubscriptionBuffer int
}

// DefaultConfig returns the hub's default configuration.
func DefaultConfig() Config {
	return Config{
		ReadBufferSize:     1024,
		WriteBufferSize:    1024,
		SubscriptionBuffer: 100,
	}
}

// Event is the JSON message pushed to a subscriber when its asset changes.
type Event struct {
	AssetCode string `json:"asset_code"`
}

type subscription struct {
	id        string
	assetCode string
	ch        chan Event
	closeOnce sync.Once
	done      chan struct{}
}

func (s *subscription) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		close(s.ch)
	})
}

// Hub tracks WebSocket subscribers by asset code and fans out one Event per
// asset per append. It implements readings.Notifier via NotifyAppended.
type Hub struct {
	cfg      Config
	upgrader websocket.Upgrader

	mu     sync.RWMutex
	subs   map[string]*subscription
	nextID uint64
}

// NewHub creates a notification hub.
func NewHub(cfg Config) *Hub {
	if cfg.SubscriptionBuffer <= 0 {
		cfg.SubscriptionBuffer = 100
	}
	return &Hub{
		cfg:  cfg,
		subs: make(map[string]*subscription),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// NotifyAppended publishes an Event to every subscriber of assetCode. It
// never blocks: a subscriber whose channel is full simply misses this
// notification, since the next append for the same asset will publish
// again.
func (h *Hub) NotifyAppended(assetCode string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		if sub.assetCode != assetCode {
			continue
		}
		select {
		case sub.ch <- Event{AssetCode: assetCode}:
		default:
		}
	}
}

// Count returns the number of active subscriptions, for the admin surface.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) subscribe(assetCode string) *subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	sub := &subscription{
		id:        fmt.Sprintf("sub-%d", h.nextID),
		assetCode: assetCode,
		ch:        make(chan Event, h.cfg.SubscriptionBuffer),
		done:      make(chan struct{}),
	}
	h.subs[sub.id] = sub
	return sub
}

func (h *Hub) unsubscribe(id string) {
	h.mu.Lock()
	sub, ok := h.subs[id]
	if ok {
		delete(h.subs, id)
	}
	h.mu.Unlock()
	if ok {
		sub.close()
	}
}

// ServeWebSocket upgrades the request and streams Events for the asset code
// given in the "asset_code" query parameter until the connection closes.
func (h *Hub) ServeWebSocket(w http.ResponseWriter, r *http.Request) {
	assetCode := r.URL.Query().Get("asset_code")
	if assetCode == "" {
		http.Error(w, "asset_code query parameter is required", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer conn.Close()

	sub := h.subscribe(assetCode)
	defer h.unsubscribe(sub.id)

	for {
		select {
		case <-sub.done:
			return
		case evt, ok := <-sub.ch:
			if !ok {
				return
			}
			msg, _ := json.Marshal(evt)
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}

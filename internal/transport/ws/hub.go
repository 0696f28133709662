package ws

import (
	"encoding/json"
	"sync"

	"voicefeedback/internal/platform/logger"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Message is the WebSocket envelope format
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Hub fans activation events out to the feed subscribers of each business
type Hub struct {
	// businessID -> connections
	subscribers map[string]map[*Connection]struct{}

	mu sync.RWMutex

	register   chan *Connection
	unregister chan *Connection
	broadcast  chan *BroadcastMessage
	done       chan struct{}
	closeOnce  sync.Once

	log *logger.Logger
}

// Connection represents a WebSocket subscriber
type Connection struct {
	BusinessID string
	ClientID   string
	Send       chan []byte
	Hub        *Hub
}

// BroadcastMessage is a message for every subscriber of a business
type BroadcastMessage struct {
	BusinessID string
	Message    *Message
}

// NewHub creates a new WebSocket hub and starts its loop
func NewHub(log *logger.Logger) *Hub {
	h := &Hub{
		subscribers: make(map[string]map[*Connection]struct{}),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		broadcast:   make(chan *BroadcastMessage, 256),
		done:        make(chan struct{}),
		log:         log,
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for _, conns := range h.subscribers {
				for conn := range conns {
					close(conn.Send)
				}
			}
			h.subscribers = make(map[string]map[*Connection]struct{})
			h.mu.Unlock()
			return

		case conn := <-h.register:
			h.mu.Lock()
			if h.subscribers[conn.BusinessID] == nil {
				h.subscribers[conn.BusinessID] = make(map[*Connection]struct{})
			}
			h.subscribers[conn.BusinessID][conn] = struct{}{}
			h.mu.Unlock()
			h.log.Info("feed subscriber connected", "businessId", conn.BusinessID, "clientId", conn.ClientID)

		case conn := <-h.unregister:
			h.mu.Lock()
			if conns, ok := h.subscribers[conn.BusinessID]; ok {
				if _, ok := conns[conn]; ok {
					delete(conns, conn)
					close(conn.Send)
					if len(conns) == 0 {
						delete(h.subscribers, conn.BusinessID)
					}
					h.log.Info("feed subscriber disconnected", "businessId", conn.BusinessID, "clientId", conn.ClientID)
				}
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			data, err := json.Marshal(msg.Message)
			if err != nil {
				h.log.Warn("feed message encode failed", "type", msg.Message.Type, "error", err)
				continue
			}
			h.mu.RLock()
			for conn := range h.subscribers[msg.BusinessID] {
				select {
				case conn.Send <- data:
				default:
					// Drop message if buffer full
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Register adds a connection
func (h *Hub) Register(conn *Connection) {
	select {
	case h.register <- conn:
	case <-h.done:
		close(conn.Send)
	}
}

// Unregister removes a connection
func (h *Hub) Unregister(conn *Connection) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

// Close stops the hub and closes every subscriber
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// SubscriberCount returns the live subscribers of a business
func (h *Hub) SubscriberCount(businessID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[businessID])
}

// BroadcastToBusiness sends a message to every subscriber of a business (implements service.Broadcaster)
func (h *Hub) BroadcastToBusiness(businessID string, msgType string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.log.Warn("feed payload encode failed", "type", msgType, "error", err)
		return
	}
	msg := &BroadcastMessage{
		BusinessID: businessID,
		Message: &Message{
			Type:    MessageType(msgType),
			Payload: data,
		},
	}
	select {
	case h.broadcast <- msg:
	case <-h.done:
	default:
		h.log.Warn("feed broadcast queue full, dropping", "businessId", businessID, "type", msgType)
	}
}

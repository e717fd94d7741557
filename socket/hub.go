package socket

import (
	"context"
	"encoding/json"
	"sync"

	"aeriegateway/internal/view/model"
	"aeriegateway/pkg/logger"
)

const (
	ViewCreatedType = "VIEW_CREATED"
	ViewUpdatedType = "VIEW_UPDATED"
	ViewDeletedType = "VIEW_DELETED"
)

// ViewEvent is pushed to every connected client after a successful mutation.
type ViewEvent struct {
	Type   string      `json:"type"`
	ViewID string      `json:"viewId"`
	Owner  string      `json:"owner"`
	View   *model.View `json:"view,omitempty"`
}

type Hub struct {
	Broadcast  chan ViewEvent
	Register   chan *Client
	Unregister chan *Client

	mu      sync.Mutex
	clients map[*Client]bool
	done    chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		Broadcast:  make(chan ViewEvent, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		done:       make(chan struct{}),
	}
}

// Publish queues an event without blocking the caller. Events are dropped
// when the queue is full.
func (h *Hub) Publish(ev ViewEvent) {
	select {
	case h.Broadcast <- ev:
	default:
		logger.Sugar.Warnf("Hub broadcast queue full, dropping %s for view %s", ev.Type, ev.ViewID)
	}
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Run processes registrations and broadcasts until ctx is cancelled, then
// closes every client's send channel.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.Send)
			}
			h.mu.Unlock()
			return

		case client := <-h.Register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			logger.Sugar.Infof("View feed client connected: %s", client.Username)

		case client := <-h.Unregister:
			h.remove(client)

		case ev := <-h.Broadcast:
			payload, err := json.Marshal(ev)
			if err != nil {
				logger.Sugar.Errorf("Error marshalling view event: %v", err)
				continue
			}

			// Copy recipients so no I/O happens under the lock.
			h.mu.Lock()
			recipients := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				recipients = append(recipients, client)
			}
			h.mu.Unlock()

			for _, client := range recipients {
				select {
				case client.Send <- payload:
				default:
					logger.Sugar.Warnf("Client %s's send buffer is full. Unregistering.", client.Username)
					h.remove(client)
				}
			}
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.Send)
		logger.Sugar.Infof("View feed client disconnected: %s", client.Username)
	}
}

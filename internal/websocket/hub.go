package websocket

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"occupancy/internal/logger"
	"occupancy/internal/metrics"
	"occupancy/internal/models"
)

// Hub keeps the set of live clients and broadcasts lifecycle events to them.
type Hub struct {
	clients    map[*Client]struct{}
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	connected atomic.Int64
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run owns the client set until ctx is cancelled, then disconnects everyone.
func (h *Hub) Run(ctx context.Context) {
	log := logger.WithComponent("ws_hub")

	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.drop(c)
			}
			close(h.done)
			return

		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.setConnected()
			log.Debug().Str("remote_addr", c.remoteAddr()).Msg("client registered")

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				h.drop(c)
				log.Debug().Str("remote_addr", c.remoteAddr()).Msg("client unregistered")
			}

		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// Slow consumer; it can reconnect.
					h.drop(c)
					metrics.EventsDropped.WithLabelValues("websocket").Inc()
					log.Warn().Str("remote_addr", c.remoteAddr()).Msg("client send buffer full, disconnecting")
				}
			}
		}
	}
}

func (h *Hub) drop(c *Client) {
	delete(h.clients, c)
	close(c.send)
	h.setConnected()
}

func (h *Hub) setConnected() {
	h.connected.Store(int64(len(h.clients)))
	metrics.WebsocketClients.Set(float64(len(h.clients)))
}

// Emit broadcasts event to all connected clients without blocking.
func (h *Hub) Emit(event models.Event) {
	msg, err := json.Marshal(event)
	if err != nil {
		log := logger.WithComponent("ws_hub")
		log.Error().Err(err).Msg("failed to marshal event")
		return
	}

	select {
	case h.broadcast <- msg:
	default:
		metrics.EventsDropped.WithLabelValues("websocket").Inc()
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	return int(h.connected.Load())
}

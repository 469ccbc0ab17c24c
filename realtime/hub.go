package realtime

import (
	"encoding/json"
	"log"
)

// Event is the wire envelope for server→client pushes:
// {"event": "feedback:new", "data": {...}}.
type Event struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type joinRequest struct {
	client *Client
	room   string
}

// Hub tracks connected dashboard clients and fans lifecycle events out to all
// of them. Delivery is at-most-once: no acknowledgement, no persistence, no
// replay for clients that connect after an event fired. Clients may join a
// per-user room via join-dashboard; current events are still broadcast
// globally, rooms are reserved for future user-scoped pushes.
type Hub struct {
	clients map[*Client]bool
	rooms   map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	join       chan joinRequest
	broadcast  chan []byte
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		join:       make(chan joinRequest),
		broadcast:  make(chan []byte, 64),
	}
}

// Run owns all hub state; it must run in its own goroutine before the first
// connection is accepted.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			log.Printf("ws: client connected (%d online)", len(h.clients))
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.remove(client)
				log.Printf("ws: client disconnected (%d online)", len(h.clients))
			}
		case req := <-h.join:
			if _, ok := h.clients[req.client]; !ok {
				continue
			}
			if h.rooms[req.room] == nil {
				h.rooms[req.room] = make(map[*Client]bool)
			}
			h.rooms[req.room][req.client] = true
			log.Printf("ws: client joined room %s", req.room)
		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow consumer; drop it rather than block the hub.
					h.remove(client)
				}
			}
		}
	}
}

// remove detaches a client from the hub and from every room it joined, then
// closes its send channel. Only the Run goroutine may call it.
func (h *Hub) remove(client *Client) {
	delete(h.clients, client)
	for room, members := range h.rooms {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	close(client.send)
}

// Emit broadcasts one named event to every connected client. It never blocks
// the caller and silently drops the event when the hub is saturated.
func (h *Hub) Emit(event string, payload interface{}) {
	message, err := json.Marshal(Event{Event: event, Data: payload})
	if err != nil {
		log.Printf("ws: could not marshal %s event: %v", event, err)
		return
	}
	select {
	case h.broadcast <- message:
	default:
		log.Printf("ws: broadcast buffer full, dropping %s event", event)
	}
}

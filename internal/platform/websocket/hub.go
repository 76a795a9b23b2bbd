// Package websocket pushes slot status changes to clients watching a
// doctor's schedule, so an open booking form greys out a slot the moment
// someone else takes it.
package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	EventSlotAdded   = "slot.added"
	EventSlotBooked  = "slot.booked"
	EventSlotRemoved = "slot.removed"
)

// maxTopics caps how many doctors one connection may follow.
const maxTopics = 16

// Event is one slot change as sent to clients.
type Event struct {
	Type      string    `json:"type"`
	DoctorID  string    `json:"doctorId"`
	SlotID    int64     `json:"slotId"`
	Status    string    `json:"status,omitempty"`
	Date      string    `json:"date,omitempty"`
	Time      string    `json:"time,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ClientMessage lets a connected client follow or drop more doctors.
type ClientMessage struct {
	Action    string   `json:"action"`
	DoctorIDs []string `json:"doctorIds"`
}

func Topic(doctorID string) string { return "doctor:" + doctorID }

// Client is one connection. send is closed by Unregister.
type Client struct {
	ID     string
	topics []string
	send   chan []byte
}

func NewClient(id string, buffer int, doctorIDs ...string) *Client {
	c := &Client{ID: id, send: make(chan []byte, buffer)}
	for _, d := range doctorIDs {
		c.topics = append(c.topics, Topic(d))
	}
	return c
}

func (c *Client) Send() <-chan []byte { return c.send }

// Hub tracks clients by topic. Slow clients miss events rather than block
// the publisher.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	all     map[*Client]struct{}
	logger  zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		all:     make(map[*Client]struct{}),
		logger:  logger.With().Str("component", "slot_feed").Logger(),
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.all[client] = struct{}{}
	for _, topic := range client.topics {
		h.addLocked(topic, client)
	}
}

func (h *Hub) addLocked(topic string, client *Client) {
	if h.clients[topic] == nil {
		h.clients[topic] = make(map[*Client]struct{})
	}
	h.clients[topic][client] = struct{}{}
}

func (h *Hub) removeLocked(topic string, client *Client) {
	if subscribers, ok := h.clients[topic]; ok {
		delete(subscribers, client)
		if len(subscribers) == 0 {
			delete(h.clients, topic)
		}
	}
}

// Unregister drops the client from every topic and closes its send channel.
// Calling it twice is safe.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.all[client]; !ok {
		return
	}
	for _, topic := range client.topics {
		h.removeLocked(topic, client)
	}
	delete(h.all, client)
	close(client.send)
}

// Follow subscribes the client to more doctors, up to maxTopics in total.
func (h *Hub) Follow(client *Client, doctorIDs []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.all[client]; !ok {
		return
	}
	for _, d := range doctorIDs {
		topic := Topic(d)
		if d == "" || contains(client.topics, topic) {
			continue
		}
		if len(client.topics) >= maxTopics {
			h.logger.Debug().Str("client_id", client.ID).Msg("follow limit reached")
			return
		}
		h.addLocked(topic, client)
		client.topics = append(client.topics, topic)
	}
}

func (h *Hub) Unfollow(client *Client, doctorIDs []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	drop := make(map[string]struct{}, len(doctorIDs))
	for _, d := range doctorIDs {
		topic := Topic(d)
		drop[topic] = struct{}{}
		h.removeLocked(topic, client)
	}
	remaining := client.topics[:0]
	for _, t := range client.topics {
		if _, ok := drop[t]; !ok {
			remaining = append(remaining, t)
		}
	}
	client.topics = remaining
}

func (h *Hub) ProcessMessage(client *Client, msg ClientMessage) {
	switch msg.Action {
	case "follow":
		h.Follow(client, msg.DoctorIDs)
	case "unfollow":
		h.Unfollow(client, msg.DoctorIDs)
	}
}

// Publish sends ev to everyone following ev.DoctorID. It never blocks.
func (h *Hub) Publish(_ context.Context, ev Event) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[Topic(ev.DoctorID)] {
		select {
		case client.send <- data:
		default:
			h.logger.Debug().Str("client_id", client.ID).Int64("slot_id", ev.SlotID).Msg("client buffer full, event skipped")
		}
	}
	return nil
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.all)
}

func (h *Hub) FollowerCount(doctorID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[Topic(doctorID)])
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

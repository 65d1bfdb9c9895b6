package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/sunshinevendetta/frame/internal/domain"
)

// Message types
const (
	MessageTypeStandings   = "standings_update"
	MessageTypeWindowReset = "window_reset"
	MessageTypeAward       = "bounty_awarded"
	MessageTypeSubscribe   = "subscribe"
	MessageTypeUnsubscribe = "unsubscribe"
	MessageTypePing        = "ping"
	MessageTypePong        = "pong"
	MessageTypeError       = "error"
)

// TopicStandings is the only subscription topic today; the topic field stays
// on the wire so clients do not churn if per-board topics return.
const TopicStandings = "standings"

// Message is the wire envelope for hub broadcasts
type Message struct {
	Type      string      `json:"type"`
	Topic     string      `json:"topic,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// StandingsUpdate carries the current window's top entries
type StandingsUpdate struct {
	Entries      []domain.StandingsEntry `json:"entries"`
	TotalPlayers int64                   `json:"total_players"`
}

// WindowReset announces a completed cycle and the next deadline
type WindowReset struct {
	NextResetAt time.Time `json:"next_reset_at"`
}

// Hub maintains the set of active spectator clients and fans out window
// activity to them.
type Hub struct {
	subscribers map[string]map[*Client]bool
	allClients  map[*Client]bool

	register    chan *Client
	unregister  chan *Client
	broadcast   chan *Message
	subscribe   chan *subscriptionRequest
	unsubscribe chan *subscriptionRequest

	mu     sync.RWMutex
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

type subscriptionRequest struct {
	client *Client
	topic  string
}

// NewHub creates a new Hub
func NewHub(logger *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		subscribers: make(map[string]map[*Client]bool),
		allClients:  make(map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan *Message, 256),
		subscribe:   make(chan *subscriptionRequest, 64),
		unsubscribe: make(chan *subscriptionRequest, 64),
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	h.logger.Info("WebSocket hub started")
	for {
		select {
		case <-h.ctx.Done():
			h.logger.Info("WebSocket hub stopping")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.allClients[client] = true
			h.mu.Unlock()
			h.logger.Debug("client registered", "client_id", client.id)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.allClients[client]; ok {
				delete(h.allClients, client)
				for topic, clients := range h.subscribers {
					if _, ok := clients[client]; ok {
						delete(clients, client)
						if len(clients) == 0 {
							delete(h.subscribers, topic)
						}
					}
				}
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Debug("client unregistered", "client_id", client.id)

		case req := <-h.subscribe:
			h.mu.Lock()
			if _, ok := h.subscribers[req.topic]; !ok {
				h.subscribers[req.topic] = make(map[*Client]bool)
			}
			h.subscribers[req.topic][req.client] = true
			h.mu.Unlock()
			h.logger.Debug("client subscribed", "client_id", req.client.id, "topic", req.topic)

		case req := <-h.unsubscribe:
			h.mu.Lock()
			if clients, ok := h.subscribers[req.topic]; ok {
				delete(clients, req.client)
				if len(clients) == 0 {
					delete(h.subscribers, req.topic)
				}
			}
			h.mu.Unlock()
			h.logger.Debug("client unsubscribed", "client_id", req.client.id, "topic", req.topic)

		case message := <-h.broadcast:
			h.broadcastMessage(message)
		}
	}
}

// Stop stops the hub
func (h *Hub) Stop() {
	h.cancel()
}

// broadcastMessage sends a message to subscribed clients, or to everyone
// when the message carries no topic.
func (h *Hub) broadcastMessage(message *Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal message", "error", err)
		return
	}

	if message.Topic != "" {
		if clients, ok := h.subscribers[message.Topic]; ok {
			for client := range clients {
				select {
				case client.send <- data:
				default:
					h.logger.Warn("client buffer full, skipping", "client_id", client.id)
				}
			}
		}
	} else {
		for client := range h.allClients {
			select {
			case client.send <- data:
			default:
				h.logger.Warn("client buffer full, skipping", "client_id", client.id)
			}
		}
	}
}

func (h *Hub) enqueue(message *Message) {
	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("broadcast channel full, dropping message")
	}
}

// BroadcastStandings pushes the current top entries to standings subscribers
func (h *Hub) BroadcastStandings(entries []domain.StandingsEntry, totalPlayers int64) {
	h.enqueue(&Message{
		Type:  MessageTypeStandings,
		Topic: TopicStandings,
		Data: StandingsUpdate{
			Entries:      entries,
			TotalPlayers: totalPlayers,
		},
		Timestamp: time.Now(),
	})
}

// BroadcastWindowReset announces the cycle boundary to everyone
func (h *Hub) BroadcastWindowReset(nextResetAt time.Time) {
	h.enqueue(&Message{
		Type:      MessageTypeWindowReset,
		Data:      WindowReset{NextResetAt: nextResetAt},
		Timestamp: time.Now(),
	})
}

// BroadcastAward announces the window winner to everyone
func (h *Hub) BroadcastAward(award domain.AwardRecord) {
	h.enqueue(&Message{
		Type:      MessageTypeAward,
		Data:      award,
		Timestamp: time.Now(),
	})
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Subscribe adds a client to a topic
func (h *Hub) Subscribe(client *Client, topic string) {
	h.subscribe <- &subscriptionRequest{client: client, topic: topic}
}

// Unsubscribe removes a client from a topic
func (h *Hub) Unsubscribe(client *Client, topic string) {
	h.unsubscribe <- &subscriptionRequest{client: client, topic: topic}
}

// GetTotalConnections returns the total number of connected clients
func (h *Hub) GetTotalConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.allClients)
}

// Package live pushes record changes to connected admin dashboards over
// websockets. Clients subscribe to collections ("appointments",
// "consultations", ...) and receive one JSON Change per mutation.
package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

const (
	TopicAppointments  = "appointments"
	TopicConsultations = "consultations"
	TopicClients       = "clients"
	TopicAvailability  = "availability"
	TopicFollowUps     = "followUps"
)

var DefaultTopics = []string{TopicAppointments, TopicConsultations, TopicClients, TopicAvailability, TopicFollowUps}

// Change describes one mutation, e.g. Type "appointment.created".
type Change struct {
	Type       string          `json:"type"`
	Topic      string          `json:"topic"`
	ResourceID string          `json:"resourceId,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// Publisher is what services call after a committed write.
type Publisher interface {
	Publish(ctx context.Context, topic, changeType, resourceID string, data any)
}

// Nop drops every change.
type Nop struct{}

func (Nop) Publish(context.Context, string, string, string, any) {}

type subscriber struct {
	id     string
	topics map[string]struct{}
	send   chan []byte
}

type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[*subscriber]struct{}
	all    map[*subscriber]struct{}
	logger *slog.Logger
	now    func() time.Time
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		topics: make(map[string]map[*subscriber]struct{}),
		all:    make(map[*subscriber]struct{}),
		logger: logger,
		now:    time.Now,
	}
}

func (h *Hub) register(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.all[s] = struct{}{}
	for topic := range s.topics {
		if h.topics[topic] == nil {
			h.topics[topic] = make(map[*subscriber]struct{})
		}
		h.topics[topic][s] = struct{}{}
	}
}

func (h *Hub) unregister(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.all[s]; !ok {
		return
	}
	for topic := range s.topics {
		if subs, ok := h.topics[topic]; ok {
			delete(subs, s)
			if len(subs) == 0 {
				delete(h.topics, topic)
			}
		}
	}
	delete(h.all, s)
	close(s.send)
}

func (h *Hub) subscribe(s *subscriber, topics []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.all[s]; !ok {
		return
	}
	for _, topic := range topics {
		if h.topics[topic] == nil {
			h.topics[topic] = make(map[*subscriber]struct{})
		}
		h.topics[topic][s] = struct{}{}
		s.topics[topic] = struct{}{}
	}
}

func (h *Hub) unsubscribe(s *subscriber, topics []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, topic := range topics {
		if subs, ok := h.topics[topic]; ok {
			delete(subs, s)
			if len(subs) == 0 {
				delete(h.topics, topic)
			}
		}
		delete(s.topics, topic)
	}
}

// Publish fans a change out to the topic's subscribers. Slow subscribers whose
// buffer is full miss the change rather than block the writer.
func (h *Hub) Publish(ctx context.Context, topic, changeType, resourceID string, data any) {
	change := Change{Type: changeType, Topic: topic, ResourceID: resourceID, Timestamp: h.now().UTC()}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			h.logger.ErrorContext(ctx, "live change marshal failed", "type", changeType, "err", err)
			return
		}
		change.Data = raw
	}
	msg, err := json.Marshal(change)
	if err != nil {
		h.logger.ErrorContext(ctx, "live change marshal failed", "type", changeType, "err", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.topics[topic] {
		select {
		case s.send <- msg:
		default:
			h.logger.WarnContext(ctx, "live subscriber buffer full, change dropped", "subscriber", s.id, "type", changeType)
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.all)
}

func (h *Hub) TopicCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

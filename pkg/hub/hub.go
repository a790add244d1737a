/*
 * Copyright 2025 Aerocoord Systems.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package hub fans fleet events out to subscribed observer connections.
package hub

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aerocoord/fleetcoord/pkg/logger"
	"github.com/aerocoord/fleetcoord/pkg/models"
)

// Sender is the write side of a subscriber connection. *websocket.Conn
// satisfies it.
type Sender interface {
	WriteJSON(v interface{}) error
	Close() error
}

type subscriber struct {
	send   Sender
	topics map[string]struct{}

	// writeMu serializes writes: the websocket layer allows only one
	// writer per connection at a time.
	writeMu sync.Mutex
}

func (s *subscriber) writeJSON(v interface{}) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return s.send.WriteJSON(v)
}

// Hub tracks subscriber connections and their topic interests. Connection
// lifecycle is independent of the registry and telemetry stores.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]*subscriber
	logger logger.Logger
}

// New builds an empty hub.
func New(log logger.Logger) *Hub {
	return &Hub{
		subs:   make(map[string]*subscriber),
		logger: log.WithComponent("hub"),
	}
}

// AddConnection registers a connection and returns its id.
func (h *Hub) AddConnection(send Sender) string {
	id := uuid.New().String()

	h.mu.Lock()
	h.subs[id] = &subscriber{send: send, topics: make(map[string]struct{})}
	h.mu.Unlock()

	h.logger.Debug().Str("conn_id", id).Msg("Connection added")

	return id
}

// RemoveConnection drops a connection and all its subscriptions.
func (h *Hub) RemoveConnection(id string) {
	h.mu.Lock()
	sub, ok := h.subs[id]
	delete(h.subs, id)
	h.mu.Unlock()

	if ok {
		_ = sub.send.Close()
		h.logger.Debug().Str("conn_id", id).Msg("Connection removed")
	}
}

// Subscribe adds a topic interest for a connection. Unknown connection
// ids are ignored.
func (h *Hub) Subscribe(id, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sub, ok := h.subs[id]; ok {
		sub.topics[topic] = struct{}{}
	}
}

// Unsubscribe removes a topic interest.
func (h *Hub) Unsubscribe(id, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sub, ok := h.subs[id]; ok {
		delete(sub.topics, topic)
	}
}

// SubscriberCount reports how many connections hold the topic.
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	count := 0

	for _, sub := range h.subs {
		if _, ok := sub.topics[topic]; ok {
			count++
		}
	}

	return count
}

// BroadcastToTopic pushes a message to every connection subscribed to the
// topic. A zero-subscriber topic is a no-op. A failed send removes that
// connection lazily; it never blocks or fails delivery to the others.
func (h *Hub) BroadcastToTopic(topic string, payload interface{}) {
	msg := models.StreamMessage{
		Type:      topic,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	h.mu.Lock()

	targets := make(map[string]*subscriber)

	for id, sub := range h.subs {
		if _, ok := sub.topics[topic]; ok {
			targets[id] = sub
		}
	}

	h.mu.Unlock()

	var failed []string

	for id, sub := range targets {
		if err := sub.writeJSON(msg); err != nil {
			h.logger.Debug().Err(err).Str("conn_id", id).Str("topic", topic).Msg("Send failed, dropping subscriber")
			failed = append(failed, id)
		}
	}

	for _, id := range failed {
		h.RemoveConnection(id)
	}
}

// PublishEvent satisfies the EventSink interfaces of the registry,
// dispatch engine, and monitor: the event type doubles as the topic.
func (h *Hub) PublishEvent(eventType string, payload interface{}) {
	h.BroadcastToTopic(eventType, payload)
}

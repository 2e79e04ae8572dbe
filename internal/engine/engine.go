package engine

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"netsight/internal/metrics"
	"netsight/internal/models"
)

// Client represents a connected WebSocket client that receives events.
type Client interface {
	SendMessage(msg models.WSMessage) error
}

// Mirror receives a copy of every broadcast event, e.g. a message bus publisher.
type Mirror interface {
	Publish(event string, data []byte) error
}

// Engine fans events out to every registered client. It holds no per-client
// queue of its own: clients decide what to do when they cannot keep up.
type Engine struct {
	mu      sync.Mutex
	clients map[Client]bool
	mirror  Mirror
	metrics *metrics.Registry
}

// New creates a new Engine. reg may be nil.
func New(reg *metrics.Registry) *Engine {
	return &Engine{
		clients: make(map[Client]bool),
		metrics: reg,
	}
}

// SetMirror installs a mirror that receives every broadcast payload.
func (e *Engine) SetMirror(m Mirror) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mirror = m
}

// RegisterClient adds a client to receive broadcasts.
func (e *Engine) RegisterClient(c Client) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clients[c] = true
	if e.metrics != nil {
		e.metrics.WSClients.Set(float64(len(e.clients)))
	}
}

// UnregisterClient removes a client.
func (e *Engine) UnregisterClient(c Client) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.clients, c)
	if e.metrics != nil {
		e.metrics.WSClients.Set(float64(len(e.clients)))
	}
}

// ClientCount returns the number of registered clients.
func (e *Engine) ClientCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.clients)
}

// Broadcast encodes v once and sends it under the given event name to every
// client registered at the time of the call.
func (e *Engine) Broadcast(event string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event, err)
	}

	e.mu.Lock()
	clients := make([]Client, 0, len(e.clients))
	for c := range e.clients {
		clients = append(clients, c)
	}
	mirror := e.mirror
	e.mu.Unlock()

	msg := models.WSMessage{Type: event, Payload: payload}
	for _, c := range clients {
		c.SendMessage(msg)
	}

	if mirror != nil {
		if err := mirror.Publish(event, payload); err != nil {
			log.Printf("Mirror publish error for %s: %v", event, err)
		}
	}
	return nil
}

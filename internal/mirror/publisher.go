package mirror

import (
	"fmt"
	"log"

	"github.com/nats-io/nats.go"

	"netsight/internal/config"
)

// Conn is the subset of *nats.Conn the publisher needs.
type Conn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// Publisher mirrors broadcast events onto NATS subjects.
type Publisher struct {
	nc     Conn
	prefix string
}

// NewPublisher connects to the configured NATS server.
func NewPublisher(cfg config.NATSConfig) (*Publisher, error) {
	nc, err := nats.Connect(cfg.URL, nats.Name("netsight"))
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", cfg.URL, err)
	}
	log.Printf("Connected to NATS server at %s", cfg.URL)
	return NewPublisherWithConn(nc, cfg.SubjectPrefix), nil
}

// NewPublisherWithConn wraps an existing connection.
func NewPublisherWithConn(nc Conn, prefix string) *Publisher {
	return &Publisher{nc: nc, prefix: prefix}
}

// Subject returns the subject an event is published on.
func (p *Publisher) Subject(event string) string {
	if p.prefix == "" {
		return event
	}
	return p.prefix + "." + event
}

// Publish sends the encoded event to its subject.
func (p *Publisher) Publish(event string, data []byte) error {
	return p.nc.Publish(p.Subject(event), data)
}

// Close drains and closes the NATS connection.
func (p *Publisher) Close() {
	if p.nc == nil {
		return
	}
	if err := p.nc.Drain(); err != nil {
		log.Printf("NATS drain error: %v", err)
		return
	}
	log.Println("NATS connection drained and closed.")
}

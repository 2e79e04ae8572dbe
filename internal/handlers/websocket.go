package handlers

import (
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"netsight/internal/engine"
	"netsight/internal/metrics"
	"netsight/internal/models"
)

const (
	writeWait  = 5 * time.Second
	sendBuffer = 512 // per-client buffer; drops when full
)

var errClientClosed = errors.New("websocket client closed")

// WSClient wraps a WebSocket connection and implements engine.Client.
type WSClient struct {
	conn      *websocket.Conn
	eng       *engine.Engine
	metrics   *metrics.Registry
	sendCh    chan models.WSMessage
	done      chan struct{}
	closeOnce sync.Once
}

// NewWSClient creates a WSClient and registers it with the engine.
func NewWSClient(conn *websocket.Conn, eng *engine.Engine, reg *metrics.Registry) *WSClient {
	c := &WSClient{
		conn:    conn,
		eng:     eng,
		metrics: reg,
		sendCh:  make(chan models.WSMessage, sendBuffer),
		done:    make(chan struct{}),
	}
	eng.RegisterClient(c)
	go c.writeLoop()
	return c
}

// SendMessage queues a message for async delivery. Non-blocking: when the
// buffer is full packets are dropped, while alerts and stats evict the oldest
// queued message.
func (c *WSClient) SendMessage(msg models.WSMessage) error {
	select {
	case <-c.done:
		return errClientClosed
	default:
	}

	select {
	case c.sendCh <- msg:
		return nil
	default:
	}

	c.dropped()
	if msg.Type == models.EventPacket {
		return nil
	}
	select {
	case <-c.sendCh:
	default:
	}
	select {
	case c.sendCh <- msg:
	default:
		c.dropped()
	}
	return nil
}

func (c *WSClient) dropped() {
	if c.metrics != nil {
		c.metrics.WSDropped.Inc()
	}
}

// writeLoop drains the send channel and writes to the WebSocket.
func (c *WSClient) writeLoop() {
	defer c.conn.Close()
	for {
		select {
		case msg := <-c.sendCh:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				c.close()
				return
			}
		case <-c.done:
			return
		}
	}
}

// ReadLoop consumes client frames until the connection drops. Clients have
// nothing to say on this channel, so frames are discarded.
func (c *WSClient) ReadLoop() {
	defer c.close()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *WSClient) close() {
	c.closeOnce.Do(func() {
		c.eng.UnregisterClient(c)
		close(c.done)
	})
}

// HandleWebSocket is the HTTP handler for WebSocket upgrades.
func HandleWebSocket(eng *engine.Engine, reg *metrics.Registry, origins []string) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || originAllowed(origins, origin)
		},
	}
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("WebSocket upgrade error: %v", err)
			return
		}
		log.Printf("WebSocket client connected from %s", r.RemoteAddr)
		client := NewWSClient(conn, eng, reg)
		client.ReadLoop()
		log.Printf("WebSocket client %s disconnected", r.RemoteAddr)
	}
}

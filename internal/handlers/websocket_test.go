package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"netsight/internal/engine"
	"netsight/internal/metrics"
	"netsight/internal/models"
)

func waitForClients(t *testing.T, eng *engine.Engine, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for eng.ClientCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, have %d", want, eng.ClientCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWebSocket_ReceivesBroadcasts(t *testing.T) {
	eng := engine.New(metrics.NewRegistry())
	srv := httptest.NewServer(NewRouter(Deps{
		Engine:      eng,
		Insight:     &stubGenerator{},
		CORSOrigins: []string{"*"},
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()
	waitForClients(t, eng, 1)

	packet := models.Packet{ID: "1234", SourceIP: "192.168.1.2", DestinationIP: "192.168.1.3", Protocol: "DNS", Size: 80, Port: 5353}
	if err := eng.Broadcast(models.EventPacket, packet); err != nil {
		t.Fatalf("Broadcast failed: %v", err)
	}
	if err := eng.Broadcast(models.EventStats, models.Stats{TotalPackets: 1}); err != nil {
		t.Fatalf("Broadcast failed: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var first, second models.WSMessage
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	if err := conn.ReadJSON(&second); err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}

	if first.Type != models.EventPacket || second.Type != models.EventStats {
		t.Fatalf("unexpected order %q, %q", first.Type, second.Type)
	}
	var got models.Packet
	if err := json.Unmarshal(first.Payload, &got); err != nil {
		t.Fatalf("decode packet: %v", err)
	}
	if got != packet {
		t.Errorf("expected %+v, got %+v", packet, got)
	}

	conn.Close()
	waitForClients(t, eng, 0)
}

func TestWebSocket_RejectsUnknownOrigin(t *testing.T) {
	eng := engine.New(nil)
	srv := httptest.NewServer(NewRouter(Deps{
		Engine:      eng,
		Insight:     &stubGenerator{},
		CORSOrigins: []string{"http://dashboard.local"},
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	header := http.Header{"Origin": []string{"http://evil.local"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err == nil {
		t.Fatal("expected handshake to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403 handshake response, got %v", resp)
	}
	if eng.ClientCount() != 0 {
		t.Errorf("rejected client must not be registered")
	}
}

func TestSendMessage_DropsPacketsWhenFull(t *testing.T) {
	reg := metrics.NewRegistry()
	c := &WSClient{
		eng:     engine.New(nil),
		metrics: reg,
		sendCh:  make(chan models.WSMessage, 2),
		done:    make(chan struct{}),
	}

	c.SendMessage(models.WSMessage{Type: models.EventPacket})
	c.SendMessage(models.WSMessage{Type: models.EventPacket})
	c.SendMessage(models.WSMessage{Type: models.EventPacket})
	if len(c.sendCh) != 2 {
		t.Fatalf("expected full buffer of 2, got %d", len(c.sendCh))
	}

	c.SendMessage(models.WSMessage{Type: models.EventStats})
	first := <-c.sendCh
	second := <-c.sendCh
	if first.Type != models.EventPacket || second.Type != models.EventStats {
		t.Errorf("expected stats to evict the oldest packet, got %q then %q", first.Type, second.Type)
	}

	close(c.done)
	if err := c.SendMessage(models.WSMessage{Type: models.EventStats}); err == nil {
		t.Error("expected error after close")
	}
}

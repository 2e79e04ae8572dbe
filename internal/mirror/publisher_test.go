package mirror

import (
	"errors"
	"testing"
)

type fakeConn struct {
	subjects []string
	payloads []string
	drained  bool
	err      error
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	f.subjects = append(f.subjects, subject)
	f.payloads = append(f.payloads, string(data))
	return f.err
}

func (f *fakeConn) Drain() error {
	f.drained = true
	return nil
}

func TestPublisher_SubjectPerEvent(t *testing.T) {
	conn := &fakeConn{}
	p := NewPublisherWithConn(conn, "netsight.events")

	if err := p.Publish("packet", []byte(`{"id":"1000"}`)); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if err := p.Publish("stats", []byte(`{}`)); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	want := []string{"netsight.events.packet", "netsight.events.stats"}
	if len(conn.subjects) != len(want) {
		t.Fatalf("expected %d publishes, got %d", len(want), len(conn.subjects))
	}
	for i := range want {
		if conn.subjects[i] != want[i] {
			t.Errorf("publish %d: expected subject %q, got %q", i, want[i], conn.subjects[i])
		}
	}
	if conn.payloads[0] != `{"id":"1000"}` {
		t.Errorf("payload not forwarded unchanged: %q", conn.payloads[0])
	}

	p.Close()
	if !conn.drained {
		t.Error("expected Close to drain the connection")
	}
}

func TestPublisher_EmptyPrefix(t *testing.T) {
	p := NewPublisherWithConn(&fakeConn{}, "")
	if got := p.Subject("alert"); got != "alert" {
		t.Errorf("expected bare subject, got %q", got)
	}
}

func TestPublisher_PropagatesError(t *testing.T) {
	p := NewPublisherWithConn(&fakeConn{err: errors.New("nats: connection closed")}, "x")
	if err := p.Publish("packet", nil); err == nil {
		t.Fatal("expected publish error")
	}
}

package insight

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"netsight/internal/metrics"
)

// fakeGemini answers per API key and remembers which keys were used.
type fakeGemini struct {
	mu       sync.Mutex
	status   map[string]int
	reply    map[string]string
	seen     []string
	lastBody []byte
}

func (f *fakeGemini) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("X-Goog-Api-Key")
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	f.seen = append(f.seen, key)
	f.lastBody = body
	status, ok := f.status[key]
	reply := f.reply[key]
	f.mu.Unlock()

	if !ok {
		status = http.StatusForbidden
	}
	w.WriteHeader(status)
	if reply != "" {
		io.WriteString(w, reply)
	}
}

func (f *fakeGemini) keysSeen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.seen...)
}

func okReply(text string) string {
	b, _ := json.Marshal(map[string]any{
		"candidates": []any{
			map[string]any{"content": map[string]any{"parts": []any{map[string]any{"text": text}}}},
		},
	})
	return string(b)
}

func TestGenerate_FirstKeySucceeds(t *testing.T) {
	fake := &fakeGemini{
		status: map[string]int{"key-one-123": 200, "key-two-456": 200},
		reply:  map[string]string{"key-one-123": okReply("all quiet"), "key-two-456": okReply("unused")},
	}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	c := NewClient(srv.URL, []string{"key-one-123", "key-two-456"})
	text, err := c.Generate(context.Background(), "summarize traffic")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if text != "all quiet" {
		t.Errorf("expected reply %q, got %q", "all quiet", text)
	}
	if seen := fake.keysSeen(); len(seen) != 1 || seen[0] != "key-one-123" {
		t.Errorf("expected only the first key to be used, got %v", seen)
	}

	var req generateRequest
	if err := json.Unmarshal(fake.lastBody, &req); err != nil {
		t.Fatalf("upstream body is not JSON: %v", err)
	}
	if len(req.Contents) != 1 || len(req.Contents[0].Parts) != 1 || req.Contents[0].Parts[0].Text != "summarize traffic" {
		t.Errorf("unexpected upstream body %s", fake.lastBody)
	}
}

func TestGenerate_FallsBackOnRateLimit(t *testing.T) {
	fake := &fakeGemini{
		status: map[string]int{"key-one-123": 429, "key-two-456": 200},
		reply:  map[string]string{"key-two-456": okReply("second key reply")},
	}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	reg := metrics.NewRegistry()
	c := NewClient(srv.URL, []string{"key-one-123", "key-two-456"}, WithMetrics(reg))
	text, err := c.Generate(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if text != "second key reply" {
		t.Errorf("unexpected reply %q", text)
	}
	if seen := fake.keysSeen(); len(seen) != 2 {
		t.Errorf("expected both keys to be tried, got %v", seen)
	}
	if got := testutil.ToFloat64(reg.InsightAttempts.WithLabelValues("rate_limited")); got != 1 {
		t.Errorf("expected 1 rate-limited attempt, got %v", got)
	}
	if got := testutil.ToFloat64(reg.InsightAttempts.WithLabelValues("ok")); got != 1 {
		t.Errorf("expected 1 ok attempt, got %v", got)
	}
}

func TestGenerate_AllKeysRateLimited(t *testing.T) {
	fake := &fakeGemini{status: map[string]int{"a-key-0001": 429, "b-key-0002": 429}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	c := NewClient(srv.URL, []string{"a-key-0001", "b-key-0002"})
	_, err := c.Generate(context.Background(), "hi")
	if !errors.Is(err, ErrAllKeysRateLimited) {
		t.Fatalf("expected ErrAllKeysRateLimited, got %v", err)
	}
	if seen := fake.keysSeen(); len(seen) != 2 {
		t.Errorf("expected both keys to be tried, got %v", seen)
	}
}

func TestGenerate_NoKeys(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", nil)
	if _, err := c.Generate(context.Background(), "hi"); !errors.Is(err, ErrAllKeysRateLimited) {
		t.Fatalf("expected ErrAllKeysRateLimited, got %v", err)
	}
}

func TestGenerate_StopsOnOtherHTTPError(t *testing.T) {
	fake := &fakeGemini{
		status: map[string]int{"key-one-123": 500, "key-two-456": 200},
		reply:  map[string]string{"key-two-456": okReply("should not be used")},
	}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	c := NewClient(srv.URL, []string{"key-one-123", "key-two-456"})
	_, err := c.Generate(context.Background(), "hi")

	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != 500 {
		t.Fatalf("expected StatusError 500, got %v", err)
	}
	if seen := fake.keysSeen(); len(seen) != 1 {
		t.Errorf("expected no fallback after a 500, got %v", seen)
	}
}

func TestGenerate_EmptyKeyFailsUpstream(t *testing.T) {
	fake := &fakeGemini{status: map[string]int{}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	c := NewClient(srv.URL, []string{"", ""})
	_, err := c.Generate(context.Background(), "hi")
	if Classify(err) != "upstream_error" {
		t.Fatalf("expected upstream_error, got %v", err)
	}
}

func TestGenerate_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, []string{"slow-key-1", "slow-key-2"}, WithTimeout(50*time.Millisecond))
	_, err := c.Generate(context.Background(), "hi")
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestGenerate_MalformedReply(t *testing.T) {
	cases := map[string]string{
		"not json":       "<html>oops</html>",
		"no candidates":  `{"candidates":[]}`,
		"non-text value": `{"candidates":[{"content":{"parts":[{"text":42}]}}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			fake := &fakeGemini{
				status: map[string]int{"key-one-123": 200},
				reply:  map[string]string{"key-one-123": body},
			}
			srv := httptest.NewServer(fake)
			defer srv.Close()

			c := NewClient(srv.URL, []string{"key-one-123"})
			_, err := c.Generate(context.Background(), "hi")
			if !errors.Is(err, ErrMalformedResponse) {
				t.Fatalf("expected ErrMalformedResponse, got %v", err)
			}
			if Classify(err) != "unknown" {
				t.Errorf("expected malformed reply to classify as unknown, got %s", Classify(err))
			}
		})
	}
}

func TestGenerate_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(url, []string{"key-one-123", "key-two-456"})
	_, err := c.Generate(context.Background(), "hi")
	if err == nil || Classify(err) != "unknown" {
		t.Fatalf("expected unknown failure, got %v", err)
	}
}

func TestRedact(t *testing.T) {
	cases := map[string]string{
		"AIzaSyExampleKey": "AIzaSy***",
		"short":            "***",
		"":                 "***",
	}
	for in, want := range cases {
		if got := Redact(in); got != want {
			t.Errorf("Redact(%q) = %q, want %q", in, got, want)
		}
	}
}

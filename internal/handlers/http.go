package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"netsight/internal/engine"
	"netsight/internal/insight"
	"netsight/internal/metrics"
	"netsight/internal/models"
)

const maxInsightBody = 1 << 20 // 1 MB

// Messages returned by the insight endpoint.
const (
	msgPromptRequired = "Prompt is required"
	msgAPIError       = "⚠️ API Error: Unable to process your request."
	msgTimeout        = "⚠️ Request timed out. Please try again later."
	msgUnknown        = "⚠️ Something went wrong. Please try again later."
	msgRateLimited    = "⚠️ All API keys are currently rate-limited. Please try again later."
)

// LivenessMessage is the body served at the root path.
const LivenessMessage = "WebSocket server is running"

// Generator produces a reply for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// PcapSource writes recent traffic as a pcap file.
type PcapSource interface {
	WritePcap(w io.Writer) error
}

// Deps holds everything the routes need.
type Deps struct {
	Engine      *engine.Engine
	Insight     Generator
	Capture     PcapSource
	Metrics     *metrics.Registry
	CORSOrigins []string
}

// NewRouter sets up all HTTP routes and middleware.
func NewRouter(d Deps) http.Handler {
	r := mux.NewRouter()
	r.Use(RequestID, Logging(d.Metrics), PanicRecovery)

	r.HandleFunc("/", handleLiveness).Methods(http.MethodGet)
	r.HandleFunc("/api/ai-insight", handleInsight(d.Insight, d.Metrics)).Methods(http.MethodPost)
	r.HandleFunc("/ws", HandleWebSocket(d.Engine, d.Metrics, d.CORSOrigins)).Methods(http.MethodGet)

	if d.Capture != nil {
		r.HandleFunc("/api/capture.pcap", handleCapture(d.Capture)).Methods(http.MethodGet)
	}
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics.Handler()).Methods(http.MethodGet)
	}

	return CORS(d.CORSOrigins)(r)
}

func handleLiveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, LivenessMessage)
}

func handleInsight(gen Generator, reg *metrics.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.InsightRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, maxInsightBody)).Decode(&req); err != nil {
			countInsight(reg, "invalid")
			writeError(w, http.StatusBadRequest, msgPromptRequired)
			return
		}
		prompt := strings.TrimSpace(req.Prompt)
		if prompt == "" {
			countInsight(reg, "invalid")
			writeError(w, http.StatusBadRequest, msgPromptRequired)
			return
		}

		text, err := gen.Generate(r.Context(), prompt)
		countInsight(reg, insight.Classify(err))
		if err != nil {
			status, msg := insightFailure(err)
			if status == http.StatusInternalServerError {
				log.Printf("[%s] AI insight failed: %v", GetRequestID(r), err)
			}
			writeError(w, status, msg)
			return
		}

		writeJSON(w, http.StatusOK, models.InsightResponse{Message: text})
	}
}

// insightFailure maps a Generate error to the status and message returned to
// the caller. Error details never leave the server.
func insightFailure(err error) (int, string) {
	var statusErr *insight.StatusError
	switch {
	case errors.Is(err, insight.ErrAllKeysRateLimited):
		return http.StatusTooManyRequests, msgRateLimited
	case errors.Is(err, insight.ErrTimeout):
		return http.StatusInternalServerError, msgTimeout
	case errors.As(err, &statusErr):
		return http.StatusInternalServerError, msgAPIError
	default:
		return http.StatusInternalServerError, msgUnknown
	}
}

func handleCapture(src PcapSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.tcpdump.pcap")
		w.Header().Set("Content-Disposition", `attachment; filename="netsight.pcap"`)
		if err := src.WritePcap(w); err != nil {
			log.Printf("[%s] pcap export failed: %v", GetRequestID(r), err)
		}
	}
}

func countInsight(reg *metrics.Registry, outcome string) {
	if reg != nil {
		reg.InsightRequests.WithLabelValues(outcome).Inc()
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, models.ErrorPayload{Error: msg})
}

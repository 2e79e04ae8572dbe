package models

import "encoding/json"

// Event names pushed to WebSocket clients.
const (
	EventPacket = "packet"
	EventAlert  = "alert"
	EventStats  = "stats"
)

// WSMessage is the envelope for all WebSocket communication.
type WSMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// InsightRequest is the body accepted by the AI insight endpoint.
type InsightRequest struct {
	Prompt string `json:"prompt"`
}

// InsightResponse carries the generated text back to the caller.
type InsightResponse struct {
	Message string `json:"message"`
}

// ErrorPayload describes an error sent to the client.
type ErrorPayload struct {
	Error string `json:"error"`
}

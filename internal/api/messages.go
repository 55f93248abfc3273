// Package api defines the JSON message envelopes exchanged over the
// WebSocket stream.
package api

import (
	"github.com/pxseu/flipper-pc-monitor-backend/internal/snapshot"
)

// HelloMessage is the initial payload sent on WebSocket connection.
type HelloMessage struct {
	Type       string   `json:"type"`
	IntervalMS int      `json:"interval_ms"`
	Probes     []string `json:"probes"`
	Format     string   `json:"format"`
}

// NewHelloMessage constructs a hello payload.
func NewHelloMessage(intervalMS int, probes []string, format string) HelloMessage {
	return HelloMessage{
		Type:       "hello",
		IntervalMS: intervalMS,
		Probes:     probes,
		Format:     format,
	}
}

// StatsMessage wraps a telemetry snapshot for transport. The snapshot
// must stay a named field: embedding it would promote its MarshalJSON
// over the envelope.
type StatsMessage struct {
	Type     string            `json:"type"`
	Snapshot snapshot.Snapshot `json:"snapshot"`
}

// NewStatsMessage constructs a stats payload.
func NewStatsMessage(snap snapshot.Snapshot) StatsMessage {
	return StatsMessage{
		Type:     "stats",
		Snapshot: snap,
	}
}

// ErrorMessage communicates an error condition to the client.
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// NewErrorMessage constructs an error payload.
func NewErrorMessage(message string) ErrorMessage {
	return ErrorMessage{Type: "error", Message: message}
}

// ClientMessage is a generic envelope used for decoding inbound client
// messages.
type ClientMessage struct {
	Type string `json:"type"`
}

// PongMessage is the response to a ping.
type PongMessage struct {
	Type string `json:"type"`
}

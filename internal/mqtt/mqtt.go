// Package mqtt publishes MPX bus events and receives key commands over MQTT,
// with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/sweeney/mpx-bridge/internal/logic"
)

// Topic is the MQTT topic for panel events.
const Topic = "alarm/mpx/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "alarm/mpx/system"

// TopicKeys is the MQTT topic key commands are read from.
const TopicKeys = "alarm/mpx/keys"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a panel event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(msg Message) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// Message is a decoded panel event with the word that carried it.
type Message struct {
	Timestamp time.Time
	Event     logic.Event
	Word      logic.Word
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Format selects the event payload encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCBOR Format = "cbor"
)

// ParseFormat parses a --payload flag value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatCBOR:
		return f, nil
	case "":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown payload format %q (want json or cbor)", s)
	}
}

// Encode formats msg in f.
func (f Format) Encode(msg Message) ([]byte, error) {
	if f == FormatCBOR {
		return FormatPayloadCBOR(msg)
	}
	return FormatPayload(msg)
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	MPX EventPayload `json:"mpx" cbor:"mpx"`
}

// EventPayload contains the event details.
type EventPayload struct {
	Timestamp string `json:"timestamp" cbor:"timestamp"`
	Event     string `json:"event" cbor:"event"`
	Word      string `json:"word" cbor:"word"`
}

func newPayload(msg Message) Payload {
	return Payload{
		MPX: EventPayload{
			Timestamp: msg.Timestamp.UTC().Format(time.RFC3339),
			Event:     string(msg.Event),
			Word:      msg.Word.String(),
		},
	}
}

// FormatPayload creates the JSON payload for a panel event.
func FormatPayload(msg Message) ([]byte, error) {
	return json.Marshal(newPayload(msg))
}

// FormatPayloadCBOR creates the CBOR payload for a panel event. It carries
// the same keys as the JSON form.
func FormatPayloadCBOR(msg Message) ([]byte, error) {
	return cbor.Marshal(newPayload(msg))
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

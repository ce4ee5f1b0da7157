// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sweeney/barscanner/internal/events"
)

// Default topics, matching the settings file defaults.
const (
	DefaultBarcodeTopic = "/barcode"
	DefaultButtonTopic  = "/button"
)

// Topics selects where messages are published.
type Topics struct {
	Barcode  string
	Button   string
	System   string
	Retained bool // retain barcode and button messages
}

// SystemTopic returns the lifecycle topic for a client id.
func SystemTopic(clientID string) string {
	return "barscanner/" + clientID + "/system"
}

// ButtonTopic returns the topic for button index. Button 0 uses the base
// topic unchanged so single-button deployments keep the plain topic.
func ButtonTopic(base string, index uint8) string {
	if index == 0 {
		return base
	}
	return fmt.Sprintf("%s/%d", base, index)
}

// ButtonPayload returns the message body for a gesture:
// "1" click, "2" long click, "3" double click.
func ButtonPayload(k events.Kind) (string, error) {
	switch k {
	case events.Click:
		return "1", nil
	case events.LongClick:
		return "2", nil
	case events.DoubleClick:
		return "3", nil
	}
	return "", fmt.Errorf("mqtt: %s is not a gesture", k)
}

// Publisher publishes scanner and button messages.
type Publisher interface {
	// PublishBarcode sends a scanned barcode.
	// Returns error if publishing fails (should not crash the process).
	PublishBarcode(code string) error

	// PublishButton sends a button gesture. Press and release events are
	// rejected.
	PublishButton(e events.Event) error

	// PublishSystem sends a system lifecycle event.
	PublishSystem(event SystemEvent) error

	// SetTopics replaces the publish topics.
	SetTopics(t Topics)

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
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

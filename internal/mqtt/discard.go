package mqtt

import "github.com/sweeney/barscanner/internal/events"

// Discard is a Publisher used when no broker is configured. It accepts and
// drops every message.
type Discard struct{}

// PublishBarcode drops the barcode.
func (Discard) PublishBarcode(string) error { return nil }

// PublishButton validates and drops the event.
func (Discard) PublishButton(e events.Event) error {
	_, err := ButtonPayload(e.Kind)
	return err
}

// PublishSystem drops the event.
func (Discard) PublishSystem(SystemEvent) error { return nil }

// SetTopics does nothing.
func (Discard) SetTopics(Topics) {}

// Close does nothing.
func (Discard) Close() error { return nil }

// IsConnected always reports false.
func (Discard) IsConnected() bool { return false }

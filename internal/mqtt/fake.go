package mqtt

import (
	"github.com/sweeney/barscanner/internal/events"
)

// Message is a message recorded by FakePublisher.
type Message struct {
	Topic    string
	Payload  string
	Retained bool
}

// FakePublisher records published messages for test assertions.
type FakePublisher struct {
	// Topics controls the topics recorded in Messages.
	Topics Topics

	// Barcodes contains all barcodes that were published.
	Barcodes []string

	// Buttons contains all button events that were published.
	Buttons []events.Event

	// Messages contains barcode and button messages in publish order.
	Messages []Message

	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// SystemPayloads contains the JSON payloads for system events.
	SystemPayloads [][]byte

	// PublishError, if set, will be returned by PublishBarcode and PublishButton.
	PublishError error

	// PublishSystemError, if set, will be returned by PublishSystem.
	PublishSystemError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool
}

// NewFakePublisher creates a FakePublisher using the default topics.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{
		Topics: Topics{
			Barcode: DefaultBarcodeTopic,
			Button:  DefaultButtonTopic,
			System:  SystemTopic("test"),
		},
	}
}

// PublishBarcode records the barcode.
func (f *FakePublisher) PublishBarcode(code string) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Barcodes = append(f.Barcodes, code)
	f.Messages = append(f.Messages, Message{Topic: f.Topics.Barcode, Payload: code, Retained: f.Topics.Retained})
	return nil
}

// PublishButton records the button event.
func (f *FakePublisher) PublishButton(e events.Event) error {
	payload, err := ButtonPayload(e.Kind)
	if err != nil {
		return err
	}
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Buttons = append(f.Buttons, e)
	f.Messages = append(f.Messages, Message{
		Topic:    ButtonTopic(f.Topics.Button, e.Data),
		Payload:  payload,
		Retained: f.Topics.Retained,
	})
	return nil
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}

	f.SystemEvents = append(f.SystemEvents, event)

	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemPayloads = append(f.SystemPayloads, payload)

	return nil
}

// SetTopics replaces the recorded topics.
func (f *FakePublisher) SetTopics(t Topics) {
	f.Topics = t
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	return f.Connected
}

// Reset clears recorded messages.
func (f *FakePublisher) Reset() {
	f.Barcodes = nil
	f.Buttons = nil
	f.Messages = nil
	f.SystemEvents = nil
	f.SystemPayloads = nil
	f.Closed = false
	f.PublishError = nil
	f.PublishSystemError = nil
	f.Connected = false
}

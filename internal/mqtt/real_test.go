package mqtt

import (
	"errors"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/sweeney/barscanner/internal/events"
)

// fakeToken is a completed paho token.
type fakeToken struct {
	err     error
	timeout bool
}

func (t fakeToken) Wait() bool                     { return !t.timeout }
func (t fakeToken) WaitTimeout(time.Duration) bool { return !t.timeout }
func (t fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t fakeToken) Error() error { return t.err }

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  string
}

// fakeClient implements the parts of paho.Client the publisher uses.
type fakeClient struct {
	paho.Client
	open  bool
	token fakeToken
	sent  []published
}

func (c *fakeClient) IsConnectionOpen() bool { return c.open }

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	c.sent = append(c.sent, published{topic, qos, retained, string(payload.([]byte))})
	return c.token
}

func (c *fakeClient) Disconnect(uint) { c.open = false }

func newTestPublisher(open bool) (*RealPublisher, *fakeClient) {
	c := &fakeClient{open: open}
	p := newPublisher(Options{
		Topics: Topics{
			Barcode:  "/barcode",
			Button:   "/button",
			System:   SystemTopic("test"),
			Retained: true,
		},
		BufferSize: 3,
	}, zap.NewNop().Sugar())
	p.client = c
	return p, c
}

func TestRealPublisherPublishesWhenConnected(t *testing.T) {
	p, c := newTestPublisher(true)

	if err := p.PublishBarcode("4006381333931"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.PublishButton(events.Event{Kind: events.LongClick, Data: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []published{
		{"/barcode", qosData, true, "4006381333931"},
		{"/button/1", qosData, true, "2"},
	}
	if len(c.sent) != len(want) {
		t.Fatalf("expected %d publishes, got %d", len(want), len(c.sent))
	}
	for i := range want {
		if c.sent[i] != want[i] {
			t.Errorf("publish %d: got %+v, want %+v", i, c.sent[i], want[i])
		}
	}
}

func TestRealPublisherSystemUsesQoS1(t *testing.T) {
	p, c := newTestPublisher(true)

	if err := p.PublishSystem(SystemEvent{Event: "HEARTBEAT", Timestamp: time.Now()}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.sent[0].topic != "barscanner/test/system" || c.sent[0].qos != qosSystem {
		t.Errorf("unexpected publish: %+v", c.sent[0])
	}
}

func TestRealPublisherRejectsPress(t *testing.T) {
	p, c := newTestPublisher(true)
	if err := p.PublishButton(events.Event{Kind: events.Released}); err == nil {
		t.Error("expected error for released event")
	}
	if len(c.sent) != 0 {
		t.Errorf("expected nothing sent, got %d", len(c.sent))
	}
}

func TestRealPublisherEmptyTopicSkips(t *testing.T) {
	p, c := newTestPublisher(true)
	p.SetTopics(Topics{System: "sys"})

	if err := p.PublishBarcode("1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.PublishButton(events.Event{Kind: events.Click}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(c.sent) != 0 {
		t.Errorf("expected nothing sent with empty topics, got %d", len(c.sent))
	}
}

func TestRealPublisherErrors(t *testing.T) {
	p, c := newTestPublisher(true)

	c.token = fakeToken{timeout: true}
	if err := p.PublishBarcode("1"); err == nil {
		t.Error("expected timeout error")
	}

	c.token = fakeToken{err: errors.New("not authorized")}
	if err := p.PublishBarcode("1"); err == nil {
		t.Error("expected publish error")
	}
}

func TestRealPublisherBuffersWhileDisconnected(t *testing.T) {
	p, c := newTestPublisher(false)

	for _, code := range []string{"a", "b", "c", "d"} {
		if err := p.PublishBarcode(code); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if len(c.sent) != 0 {
		t.Fatalf("expected nothing sent while disconnected, got %d", len(c.sent))
	}

	c.open = true
	p.onConnect()

	// Buffer holds 3; "a" was dropped. First connect sends no RECONNECTED.
	want := []string{"b", "c", "d"}
	if len(c.sent) != len(want) {
		t.Fatalf("expected %d replayed, got %d", len(want), len(c.sent))
	}
	for i, w := range want {
		if c.sent[i].payload != w {
			t.Errorf("replay %d: got %q, want %q", i, c.sent[i].payload, w)
		}
	}
}

func TestRealPublisherReconnectAnnounces(t *testing.T) {
	p, c := newTestPublisher(true)
	p.onConnect()
	if len(c.sent) != 0 {
		t.Fatalf("first connect should not publish, got %d", len(c.sent))
	}

	p.onConnect()
	if len(c.sent) != 1 {
		t.Fatalf("expected RECONNECTED publish, got %d", len(c.sent))
	}
	if c.sent[0].topic != "barscanner/test/system" {
		t.Errorf("unexpected topic: %s", c.sent[0].topic)
	}
}

func TestRealPublisherIsConnected(t *testing.T) {
	p, c := newTestPublisher(false)
	if p.IsConnected() {
		t.Error("expected disconnected")
	}
	c.open = true
	if !p.IsConnected() {
		t.Error("expected connected")
	}
	p.Close()
	if p.IsConnected() {
		t.Error("expected disconnected after Close")
	}
}

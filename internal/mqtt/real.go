package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/sweeney/barscanner/internal/events"
)

const (
	publishTimeout    = 5 * time.Second
	defaultBufferSize = 100
	qosData           = 0 // barcode and button messages: at-most-once
	qosSystem         = 1 // lifecycle events: at-least-once
)

// Options configures a RealPublisher.
type Options struct {
	Broker     string // e.g. "tcp://192.168.1.200:1883"
	ClientID   string
	Username   string
	Password   string
	Topics     Topics
	BufferSize int // messages held while disconnected; 0 uses the default
}

// RealPublisher publishes to an actual MQTT broker. Messages published while
// the connection is down are buffered and replayed on reconnect.
type RealPublisher struct {
	client paho.Client
	logger *zap.SugaredLogger

	mu        sync.Mutex
	topics    Topics
	buf       *ringBuffer
	connected bool // at least one successful connect
}

// NewRealPublisher creates a publisher and starts connecting in the
// background; it does not wait for the broker.
func NewRealPublisher(o Options, logger *zap.SugaredLogger) *RealPublisher {
	p := newPublisher(o, logger)

	will, _ := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "SHUTDOWN",
		Reason:    "MQTT_DISCONNECT",
	})

	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetWill(o.Topics.System, string(will), qosSystem, true).
		SetOnConnectHandler(func(paho.Client) { p.onConnect() }).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			p.logger.Warnw("Connection lost", "error", err)
		})
	if o.Username != "" {
		opts.SetUsername(o.Username).SetPassword(o.Password)
	}

	p.client = paho.NewClient(opts)
	p.client.Connect()
	p.logger.Infow("Connecting to broker", "broker", o.Broker, "client", o.ClientID)
	return p
}

func newPublisher(o Options, logger *zap.SugaredLogger) *RealPublisher {
	size := o.BufferSize
	if size <= 0 {
		size = defaultBufferSize
	}
	return &RealPublisher{
		logger: logger.Named("mqtt"),
		topics: o.Topics,
		buf:    newRingBuffer(size),
	}
}

// onConnect replays anything buffered while the connection was down.
// paho runs it on its own goroutine, so it does not wait on tokens.
func (p *RealPublisher) onConnect() {
	p.mu.Lock()
	msgs, dropped := p.buf.drainAll()
	reconnect := p.connected
	p.connected = true
	system := p.topics.System
	p.mu.Unlock()

	p.logger.Infow("Connected to broker", "buffered", len(msgs), "dropped", dropped)

	if reconnect {
		payload, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"})
		p.client.Publish(system, qosSystem, false, payload)
	}
	for _, m := range msgs {
		p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	}
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// SetTopics replaces the publish topics.
func (p *RealPublisher) SetTopics(t Topics) {
	p.mu.Lock()
	p.topics = t
	p.mu.Unlock()
}

// PublishBarcode sends a barcode to the barcode topic.
func (p *RealPublisher) PublishBarcode(code string) error {
	p.mu.Lock()
	t := p.topics
	p.mu.Unlock()
	if t.Barcode == "" {
		return nil
	}
	return p.publish(t.Barcode, qosData, t.Retained, []byte(code))
}

// PublishButton sends a gesture to the button topic.
func (p *RealPublisher) PublishButton(e events.Event) error {
	payload, err := ButtonPayload(e.Kind)
	if err != nil {
		return err
	}
	p.mu.Lock()
	t := p.topics
	p.mu.Unlock()
	if t.Button == "" {
		return nil
	}
	return p.publish(ButtonTopic(t.Button, e.Data), qosData, t.Retained, []byte(payload))
}

// PublishSystem sends a system lifecycle event.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	p.mu.Lock()
	topic := p.topics.System
	p.mu.Unlock()
	return p.publish(topic, qosSystem, event.Retained, payload)
}

func (p *RealPublisher) publish(topic string, qos byte, retained bool, payload []byte) error {
	if !p.client.IsConnectionOpen() {
		p.mu.Lock()
		firstDrop := p.buf.push(bufferedMsg{topic: topic, payload: payload, qos: qos, retained: retained})
		n := p.buf.len()
		p.mu.Unlock()
		if firstDrop {
			p.logger.Warnw("Offline buffer full, dropping oldest", "capacity", n)
		}
		p.logger.Debugw("Buffered message while disconnected", "topic", topic, "buffered", n)
		return nil
	}

	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	p.logger.Debugw("Published", "topic", topic, "payload", string(payload))
	return nil
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second to flush
	return nil
}

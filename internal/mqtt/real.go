package mqtt

import (
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/lm393-sensor/internal/logic"
)

// BufferSize is the number of messages held while the broker is unreachable.
const BufferSize = 256

const (
	publishTimeout = 5 * time.Second
	retryInterval  = 5 * time.Second
)

// RealPublisher publishes to an actual MQTT broker. Messages published while
// disconnected are buffered and replayed, oldest first, on reconnect.
type RealPublisher struct {
	client paho.Client
	now    func() time.Time

	sendMu sync.Mutex // serializes send and onConnect so messages keep their order

	mu        sync.Mutex
	buf       *ringBuffer
	connected bool // at least one successful connection so far
}

// NewRealPublisher creates a publisher for the given broker. It does not
// block: the client keeps retrying in the background and buffers until the
// first connection succeeds.
func NewRealPublisher(broker, clientID string) *RealPublisher {
	p := &RealPublisher{
		now: time.Now,
		buf: newRingBuffer(BufferSize),
	}

	will, _ := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "SHUTDOWN",
		Reason:    "MQTT_DISCONNECT",
	})

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(retryInterval).
		SetBinaryWill(TopicSystem, will, 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("mqtt: connection lost: %v", err)
		})

	p.client = paho.NewClient(opts)
	p.client.Connect()
	return p
}

// newPublisher wraps an existing client. Used by tests.
func newPublisher(client paho.Client, now func() time.Time) *RealPublisher {
	return &RealPublisher{
		client: client,
		now:    now,
		buf:    newRingBuffer(BufferSize),
	}
}

// Publish sends a state change to the MQTT broker.
func (p *RealPublisher) Publish(event logic.ChangeEvent, at time.Time) error {
	payload, err := FormatPayload(event, at)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	// QoS 0 (at-most-once), not retained
	return p.send(bufferedMsg{topic: Topic, payload: payload})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once) for lifecycle events
	return p.send(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

func (p *RealPublisher) send(msg bufferedMsg) error {
	p.sendMu.Lock()
	defer p.sendMu.Unlock()

	if !p.client.IsConnectionOpen() {
		p.enqueue(msg)
		return nil
	}
	// Earlier failures go out first.
	if err := p.flush(); err != nil {
		p.enqueue(msg)
		return err
	}
	if err := p.publish(msg); err != nil {
		p.enqueue(msg)
		return err
	}
	return nil
}

func (p *RealPublisher) publish(msg bufferedMsg) error {
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: timeout", msg.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", msg.topic, err)
	}
	return nil
}

func (p *RealPublisher) enqueue(msg bufferedMsg) {
	p.mu.Lock()
	p.buf.push(msg)
	p.mu.Unlock()
}

// flush publishes buffered messages oldest first. On failure the unsent
// remainder is put back. Caller holds sendMu.
func (p *RealPublisher) flush() error {
	p.mu.Lock()
	pending := p.buf.drainAll()
	p.mu.Unlock()

	for i, msg := range pending {
		if err := p.publish(msg); err != nil {
			p.mu.Lock()
			for _, m := range pending[i:] {
				p.buf.push(m)
			}
			p.mu.Unlock()
			return fmt.Errorf("flush %d buffered messages: %w", len(pending)-i, err)
		}
	}
	return nil
}

// onConnect announces reconnections and replays buffered messages.
// Runs on a paho client goroutine.
func (p *RealPublisher) onConnect(_ paho.Client) {
	p.sendMu.Lock()
	defer p.sendMu.Unlock()

	p.mu.Lock()
	reconnect := p.connected
	p.connected = true
	pending := p.buf.len()
	p.mu.Unlock()

	if reconnect {
		log.Printf("mqtt: reconnected")
		payload, _ := FormatSystemPayload(SystemEvent{Timestamp: p.now(), Event: "RECONNECTED"})
		if err := p.publish(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1}); err != nil {
			log.Printf("mqtt: publish reconnected event: %v", err)
		}
	} else {
		log.Printf("mqtt: connected")
	}

	if pending > 0 {
		log.Printf("mqtt: replaying %d buffered messages", pending)
	}
	if err := p.flush(); err != nil {
		log.Printf("mqtt: replay failed: %v", err)
	}
}

// Buffered returns the number of messages waiting for a connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.len()
}

// IsConnected reports whether the broker connection is currently open.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}

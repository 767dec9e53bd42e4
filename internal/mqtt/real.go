package mqtt

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// DefaultClientID is used when Options.ClientID is empty.
const DefaultClientID = "mpx-bridge"

const defaultBufferSize = 100

// Options configures a RealPublisher.
type Options struct {
	Broker   string
	ClientID string
	Format   Format

	// BufferSize is how many publishes are held while disconnected.
	BufferSize int

	// OnCommand, if set, subscribes to TopicKeys and is called for each
	// valid command. It runs on the MQTT client's goroutine.
	OnCommand func(Command)
}

// RealPublisher publishes to an actual MQTT broker.
type RealPublisher struct {
	client    paho.Client
	format    Format
	onCommand func(Command)

	mu       sync.Mutex
	buffer   *ringBuffer
	connects int
}

func newPublisher(client paho.Client, opts Options) *RealPublisher {
	size := opts.BufferSize
	if size <= 0 {
		size = defaultBufferSize
	}
	format := opts.Format
	if format == "" {
		format = FormatJSON
	}
	return &RealPublisher{
		client:    client,
		format:    format,
		onCommand: opts.OnCommand,
		buffer:    newRingBuffer(size),
	}
}

// NewRealPublisher creates a publisher connected to the given broker.
// The broker keeps a retained SHUTDOWN/MQTT_DISCONNECT will for us.
// If the broker is unreachable the publisher is still returned and
// buffers until the background retry connects.
func NewRealPublisher(opts Options) (*RealPublisher, error) {
	if opts.Broker == "" {
		return nil, errors.New("broker is required")
	}
	clientID := opts.ClientID
	if clientID == "" {
		clientID = DefaultClientID
	}

	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "SHUTDOWN",
		Reason:    "MQTT_DISCONNECT",
	})
	if err != nil {
		return nil, fmt.Errorf("format will payload: %w", err)
	}

	p := newPublisher(nil, opts)
	clientOpts := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetBinaryWill(TopicSystem, will, 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(p.onConnectionLost)

	p.client = paho.NewClient(clientOpts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		log.Printf("mqtt: broker %s not reachable yet, buffering until connected", opts.Broker)
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return p, nil
}

// Publish sends a panel event to the MQTT broker.
func (p *RealPublisher) Publish(msg Message) error {
	payload, err := p.format.Encode(msg)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	// QoS 1 so key events survive a flaky link
	return p.send(bufferedMsg{topic: Topic, payload: payload, qos: 1})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.send(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

func (p *RealPublisher) send(msg bufferedMsg) error {
	// The check and the push share the lock with onConnect's drain, so a
	// connect landing in between still replays the message.
	p.mu.Lock()
	if !p.client.IsConnectionOpen() {
		p.buffer.push(msg)
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish %s: timeout", msg.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", msg.topic, err)
	}
	return nil
}

// onConnect runs on every (re)connect: it resubscribes, flushes the offline
// buffer and announces reconnections.
func (p *RealPublisher) onConnect(c paho.Client) {
	p.mu.Lock()
	p.connects++
	reconnect := p.connects > 1
	pending := p.buffer.drainAll()
	p.mu.Unlock()

	if p.onCommand != nil {
		token := c.Subscribe(TopicKeys, 1, p.handleCommand)
		if token.WaitTimeout(5*time.Second) && token.Error() != nil {
			log.Printf("mqtt: subscribe %s: %v", TopicKeys, token.Error())
		}
	}

	if reconnect {
		log.Printf("mqtt: reconnected, replaying %d buffered messages", len(pending))
	}
	for _, m := range pending {
		token := c.Publish(m.topic, m.qos, m.retained, m.payload)
		if token.WaitTimeout(5*time.Second) && token.Error() != nil {
			log.Printf("mqtt: replay %s: %v", m.topic, token.Error())
		}
	}

	if reconnect {
		payload, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"})
		c.Publish(TopicSystem, 1, false, payload)
	}
}

func (p *RealPublisher) onConnectionLost(_ paho.Client, err error) {
	log.Printf("mqtt: connection lost: %v", err)
}

func (p *RealPublisher) handleCommand(_ paho.Client, m paho.Message) {
	cmd, err := ParseCommand(m.Payload())
	if err != nil {
		log.Printf("mqtt: ignoring command on %s: %v", m.Topic(), err)
		return
	}
	p.onCommand(cmd)
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Buffered returns the number of publishes waiting for a connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buffer.len()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}

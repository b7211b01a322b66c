// Package publish delivers notification events to the MQTT broker.
package publish

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/creativeprojects/mailwatch/lib"
	"github.com/creativeprojects/mailwatch/mailbox"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/time/rate"
)

// ErrPublish marks a failed delivery to the broker.
var ErrPublish = errors.New("publish failure")

const (
	DefaultQueueSize = 64
	DefaultTimeout   = 10 * time.Second

	// outgoing rate cap, mostly relevant when a reconnect flushes a batch
	publishRate  = 5
	publishBurst = 10

	retryPause        = 500 * time.Millisecond
	disconnectQuiesce = 250
)

type Config struct {
	// ServerURL uses the paho broker format: tcp://host:1883 or ssl://host:8883
	ServerURL string
	ClientID  string
	Username  string
	Password  string
	Topic     string
	QoS       byte
	// QueueSize bounds the number of events waiting for the broker.
	QueueSize int
	// Timeout bounds the connect and per-event publish time.
	Timeout             time.Duration
	SkipTLSVerification bool
	DebugLogger         lib.Logger
}

// Client wraps the connection to the broker. The connection lives
// independently of the mailbox session: a mailbox reconnect never forces a
// broker reconnect, and a stalled broker never delays the mailbox wait.
type Client struct {
	mqtt      mqtt.Client
	topic     string
	qos       byte
	queue     chan mailbox.Event
	limiter   *rate.Limiter
	timeout   time.Duration
	log       lib.Logger
	wg        sync.WaitGroup
	cancel    context.CancelFunc
	published uint64
	dropped   uint64
}

func NewClient(cfg Config) (*Client, error) {
	log := cfg.DebugLogger
	if log == nil {
		log = &lib.NoLog{}
	}
	if cfg.ServerURL == "" || cfg.Topic == "" {
		return nil, errors.New("missing information from Config object")
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "mailwatch"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	options := mqtt.NewClientOptions().
		AddBroker(cfg.ServerURL).
		SetClientID(clientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetConnectTimeout(timeout).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(time.Minute).
		SetOrderMatters(false)
	if cfg.SkipTLSVerification {
		options.SetTLSConfig(&tls.Config{InsecureSkipVerify: true})
	}
	options.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Printf("Connection to broker lost: %s", err)
	})
	options.SetOnConnectHandler(func(_ mqtt.Client) {
		log.Print("Connected to broker")
	})

	return newClient(cfg, mqtt.NewClient(options)), nil
}

func newClient(cfg Config, pahoClient mqtt.Client) *Client {
	log := cfg.DebugLogger
	if log == nil {
		log = &lib.NoLog{}
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		mqtt:    pahoClient,
		topic:   cfg.Topic,
		qos:     cfg.QoS,
		queue:   make(chan mailbox.Event, queueSize),
		limiter: rate.NewLimiter(rate.Limit(publishRate), publishBurst),
		timeout: timeout,
		log:     log,
	}
}

// Connect dials the broker. Further reconnections are handled in the
// background by the paho client.
func (c *Client) Connect() error {
	token := c.mqtt.Connect()
	if !token.WaitTimeout(c.timeout) {
		return fmt.Errorf("%w: timeout connecting to broker", ErrPublish)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %v", ErrPublish, err)
	}
	return nil
}

// Start launches the worker draining the queue until ctx is cancelled or
// Close is called.
func (c *Client) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case event := <-c.queue:
				if err := c.limiter.Wait(ctx); err != nil {
					return
				}
				c.publish(event)
			}
		}
	}()
}

// Publish hands an event to the publish worker without ever blocking the
// caller. When the queue is full, the oldest unpublished event is dropped
// with a warning.
func (c *Client) Publish(event mailbox.Event) error {
	for {
		select {
		case c.queue <- event:
			return nil
		default:
		}
		select {
		case dropped := <-c.queue:
			atomic.AddUint64(&c.dropped, 1)
			c.log.Printf("Publish queue full: dropped event uid=%d subject=%q", dropped.Uid, dropped.Subject)
		default:
		}
	}
}

// publish sends one event, retrying transient failures until the deadline.
// An event that cannot be delivered in time is logged and dropped: stalling
// the pipeline is worse than losing a notification.
func (c *Client) publish(event mailbox.Event) {
	payload, err := event.Payload()
	if err != nil {
		atomic.AddUint64(&c.dropped, 1)
		c.log.Printf("Cannot serialize event uid=%d: %s", event.Uid, err)
		return
	}

	deadline := time.Now().Add(c.timeout)
	attempt := 0
	lastErr := error(nil)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		attempt++
		token := c.mqtt.Publish(c.topic, c.qos, false, payload)
		if token.WaitTimeout(remaining) {
			if token.Error() == nil {
				atomic.AddUint64(&c.published, 1)
				c.log.Printf("Published event uid=%d subject=%q (attempt %d)", event.Uid, event.Subject, attempt)
				return
			}
			lastErr = token.Error()
		} else {
			lastErr = errors.New("timeout waiting for broker")
		}
		time.Sleep(retryPause)
	}
	atomic.AddUint64(&c.dropped, 1)
	c.log.Printf("Dropped event uid=%d subject=%q after %d attempt(s): %s", event.Uid, event.Subject, attempt, lastErr)
}

// Published returns the number of events delivered to the broker.
func (c *Client) Published() uint64 {
	return atomic.LoadUint64(&c.published)
}

// Dropped returns the number of events lost to a full queue, a serialization
// error or an expired publish deadline.
func (c *Client) Dropped() uint64 {
	return atomic.LoadUint64(&c.dropped)
}

// Close stops the worker and disconnects from the broker. Events still in
// the queue are dropped.
func (c *Client) Close() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	if pending := len(c.queue); pending > 0 {
		atomic.AddUint64(&c.dropped, uint64(pending))
		c.log.Printf("Dropping %d unpublished event(s)", pending)
	}
	if c.mqtt.IsConnected() {
		c.mqtt.Disconnect(disconnectQuiesce)
	}
}

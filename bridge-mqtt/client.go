// Package bridgemqtt wraps the paho MQTT client for the bridge: a
// long-lived subscription to the device data topic and a publisher for
// the command topic. Reconnects are the client's own concern; while the
// broker is unreachable ingestion simply pauses, with no buffering of
// missed messages.
package bridgemqtt

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// PublishTimeout bounds how long a command publish may block before the
// failure is surfaced to the caller. Publishes are not retried.
const PublishTimeout = 5 * time.Second

// MessageHandler receives the raw payload of a message on a subscribed
// topic. Parsing and discard policy belong to the caller.
type MessageHandler func(payload []byte)

// Config holds the broker connection parameters.
type Config struct {
	// URL is the broker address, e.g. "tcp://broker.hivemq.com:1883".
	URL      string
	ClientID string
	Logger   zerolog.Logger
}

// Client is a connected MQTT session. Subscriptions registered through
// Subscribe are replayed after every reconnect.
type Client struct {
	mqtt   mqtt.Client
	logger zerolog.Logger

	subMu sync.Mutex
	subs  map[string]MessageHandler
}

// Connect dials the broker. The initial connect retries in the
// background, so a broker that is down at startup does not fail the
// process; ingestion starts when the connection comes up.
func Connect(cfg Config) *Client {
	client := &Client{
		logger: cfg.Logger,
		subs:   make(map[string]MessageHandler),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.URL)
	opts.SetClientID(cfg.ClientID)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		cfg.Logger.Warn().Err(err).Msg("mqtt connection lost")
	})
	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		cfg.Logger.Info().Str("broker", cfg.URL).Msg("mqtt connected")
		client.resubscribe()
	})

	client.mqtt = mqtt.NewClient(opts)
	token := client.mqtt.Connect()
	go func() {
		if token.Wait() && token.Error() != nil {
			cfg.Logger.Error().Err(token.Error()).Str("broker", cfg.URL).Msg("mqtt connect failed")
		}
	}()
	return client
}

// Subscribe registers a handler for a topic at QoS 0 and keeps it
// registered across reconnects.
func (c *Client) Subscribe(topic string, handler MessageHandler) {
	c.subMu.Lock()
	c.subs[topic] = handler
	c.subMu.Unlock()

	c.subscribe(topic, handler)
}

func (c *Client) subscribe(topic string, handler MessageHandler) {
	token := c.mqtt.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		handler(msg.Payload())
	})
	go func() {
		if token.Wait() && token.Error() != nil {
			c.logger.Warn().Err(token.Error()).Str("topic", topic).Msg("mqtt subscribe failed")
			return
		}
		c.logger.Info().Str("topic", topic).Msg("mqtt subscribed")
	}()
}

func (c *Client) resubscribe() {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for topic, handler := range c.subs {
		c.subscribe(topic, handler)
	}
}

// Publish JSON-encodes payload and publishes it at QoS 0 with a bounded
// wait. A timeout or broker error is returned to the caller; there is no
// retry.
func (c *Client) Publish(topic string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshalling payload for %v: %w", topic, err)
	}

	token := c.mqtt.Publish(topic, 0, false, data)
	if !token.WaitTimeout(PublishTimeout) {
		return fmt.Errorf("publishing to %v: timed out after %v", topic, PublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publishing to %v: %w", topic, err)
	}
	return nil
}

// Close disconnects from the broker, allowing in-flight messages a short
// grace period.
func (c *Client) Close() {
	c.mqtt.Disconnect(250)
}

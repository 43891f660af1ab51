package mqtt

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/paulianttila/ipmi2mqtt/internal/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

const (
	statusTopic   = "status"
	statusOnline  = "online"
	statusOffline = "offline"

	connectTimeout = 10 * time.Second
)

// MessageHandler handles one received message; topic has the prefix stripped.
type MessageHandler func(topic string, payload []byte) error

// Client wraps a paho client and scopes every topic under the configured prefix.
// Subscriptions are remembered and re-issued on every reconnect, since a
// clean session drops them on the broker side.
type Client struct {
	client mqtt.Client
	config *config.MQTTConfig
	logger *zap.Logger

	mu       sync.Mutex
	handlers map[string]MessageHandler // by topic suffix
}

// NewClient connects to the broker. The client registers a retained
// "offline" will on <prefix>/status and publishes "online" on every (re)connect.
func NewClient(cfg *config.MQTTConfig, logger *zap.Logger) (*Client, error) {
	c := &Client{
		config:   cfg,
		logger:   logger,
		handlers: make(map[string]MessageHandler),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetWill(c.Topic(statusTopic), statusOffline, cfg.QoS, true)
	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("MQTT connection lost", zap.Error(err))
	})

	c.client = mqtt.NewClient(opts)

	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return c, nil
}

// Topic returns suffix qualified with the configured prefix.
func (c *Client) Topic(suffix string) string {
	if c.config.TopicPrefix == "" {
		return suffix
	}
	return c.config.TopicPrefix + "/" + suffix
}

// Subscribe subscribes to the prefixed topic suffix and keeps the handler
// for resubscription after a reconnect.
func (c *Client) Subscribe(suffix string, handler MessageHandler) error {
	c.mu.Lock()
	c.handlers[suffix] = handler
	c.mu.Unlock()

	return c.subscribe(c.client, suffix, handler)
}

func (c *Client) subscribe(client mqtt.Client, suffix string, handler MessageHandler) error {
	topic := c.Topic(suffix)
	prefix := c.Topic("")
	if token := client.Subscribe(topic, c.config.QoS, func(_ mqtt.Client, msg mqtt.Message) {
		if err := handler(strings.TrimPrefix(msg.Topic(), prefix), msg.Payload()); err != nil {
			c.logger.Error("Error handling MQTT message",
				zap.String("topic", msg.Topic()),
				zap.Error(err),
			)
		}
	}); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", topic, token.Error())
	}

	return nil
}

// onConnect runs on the first connect and after every automatic reconnect.
func (c *Client) onConnect(client mqtt.Client) {
	c.logger.Info("Connected to MQTT broker", zap.String("broker", c.config.Broker))
	client.Publish(c.Topic(statusTopic), c.config.QoS, true, statusOnline)

	c.mu.Lock()
	handlers := make(map[string]MessageHandler, len(c.handlers))
	for suffix, h := range c.handlers {
		handlers[suffix] = h
	}
	c.mu.Unlock()

	for suffix, h := range handlers {
		if err := c.subscribe(client, suffix, h); err != nil {
			c.logger.Error("Failed to restore MQTT subscription",
				zap.String("topic", c.Topic(suffix)),
				zap.Error(err),
			)
			continue
		}
		c.logger.Debug("Restored MQTT subscription", zap.String("topic", c.Topic(suffix)))
	}
}

// Publish publishes value on the prefixed topic suffix.
func (c *Client) Publish(suffix string, value string, retained bool) error {
	topic := c.Topic(suffix)
	token := c.client.Publish(topic, c.config.QoS, retained, value)
	token.Wait()

	if token.Error() != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, token.Error())
	}

	return nil
}

// Unsubscribe removes subscriptions for the given topic suffixes.
func (c *Client) Unsubscribe(suffixes ...string) error {
	topics := make([]string, 0, len(suffixes))
	c.mu.Lock()
	for _, s := range suffixes {
		delete(c.handlers, s)
		topics = append(topics, c.Topic(s))
	}
	c.mu.Unlock()
	token := c.client.Unsubscribe(topics...)
	token.Wait()

	if token.Error() != nil {
		return fmt.Errorf("failed to unsubscribe: %w", token.Error())
	}

	return nil
}

// Disconnect marks the service offline and closes the connection.
func (c *Client) Disconnect() {
	if c.client.IsConnected() {
		c.client.Publish(c.Topic(statusTopic), c.config.QoS, true, statusOffline).WaitTimeout(time.Second)
	}
	c.client.Disconnect(250)
}

// IsConnected reports the connection state.
func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}

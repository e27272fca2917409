package mqtt

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/boilerio/boilerio/internal/config"
)

const (
	qos            = 0
	connectTimeout = 10 * time.Second
)

// StatusMessage announces controller presence on the status topic. The
// broker delivers the offline form as a will message if the connection
// drops without a clean disconnect.
type StatusMessage struct {
	ThermostatID int    `json:"thermostat_id"`
	Status       string `json:"status"`
}

// Conn wraps a broker connection. Subscriptions are replayed after a
// reconnect, so handlers registered once stay registered.
type Conn struct {
	client      mqtt.Client
	id          int
	statusTopic string

	mu   sync.Mutex
	subs map[string]func(topic string, payload []byte)
}

// Connect establishes an anonymous connection with no presence
// announcements, for tools that only publish or listen.
func Connect(cfg config.MQTTConfig) (*Conn, error) {
	return connect(cfg, 0, "")
}

// ConnectDevice establishes a connection that announces the device online
// on the status topic and leaves a will marking it offline.
func ConnectDevice(cfg config.MQTTConfig, deviceID int, statusTopic string) (*Conn, error) {
	return connect(cfg, deviceID, statusTopic)
}

func connect(cfg config.MQTTConfig, deviceID int, statusTopic string) (*Conn, error) {
	c := &Conn{
		id:          deviceID,
		statusTopic: statusTopic,
		subs:        make(map[string]func(topic string, payload []byte)),
	}

	// A random suffix keeps restarted instances from kicking each other
	// off the broker.
	clientID := fmt.Sprintf("%s-%s", cfg.ClientID, uuid.NewString()[:8])
	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port)).
		SetClientID(clientID).
		SetAutoReconnect(true)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	if statusTopic != "" {
		opts.SetBinaryWill(statusTopic, c.statusPayload("offline"), qos, false)
	}
	opts.SetOnConnectHandler(func(client mqtt.Client) {
		log.Info().Str("client_id", clientID).Msg("Connected to MQTT broker")
		c.onConnect(client)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Msg("Lost connection to MQTT broker")
	})

	c.client = mqtt.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("connect to %s:%d: timed out", cfg.Host, cfg.Port)
	}
	if token.Error() != nil {
		return nil, fmt.Errorf("connect to %s:%d: %w", cfg.Host, cfg.Port, token.Error())
	}
	return c, nil
}

func (c *Conn) onConnect(client mqtt.Client) {
	if c.statusTopic != "" {
		client.Publish(c.statusTopic, qos, false, c.statusPayload("online"))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for topic, handler := range c.subs {
		c.subscribe(client, topic, handler)
	}
}

// Subscribe registers a handler for a topic. The registration survives
// reconnects.
func (c *Conn) Subscribe(topic string, handler func(topic string, payload []byte)) error {
	c.mu.Lock()
	c.subs[topic] = handler
	c.mu.Unlock()
	return c.subscribe(c.client, topic, handler)
}

func (c *Conn) subscribe(client mqtt.Client, topic string, handler func(topic string, payload []byte)) error {
	token := client.Subscribe(topic, qos, func(_ mqtt.Client, m mqtt.Message) {
		handler(m.Topic(), m.Payload())
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe to %s: %w", topic, token.Error())
	}
	return nil
}

// Publish sends a payload to a topic.
func (c *Conn) Publish(topic string, payload []byte) error {
	token := c.client.Publish(topic, qos, false, payload)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("publish to %s: %w", topic, token.Error())
	}
	return nil
}

// Disconnect announces the device offline and closes the connection.
func (c *Conn) Disconnect() {
	if c.statusTopic != "" {
		token := c.client.Publish(c.statusTopic, qos, false, c.statusPayload("offline"))
		token.WaitTimeout(time.Second)
	}
	c.client.Disconnect(250)
}

func (c *Conn) statusPayload(status string) []byte {
	msg, _ := json.Marshal(StatusMessage{ThermostatID: c.id, Status: status})
	return msg
}

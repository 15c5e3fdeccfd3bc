package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/spec-kit/announce-service/internal/config"
)

const publishTimeout = 3 * time.Second

type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTBridge forwards dispatcher events to an MQTT broker as JSON, one topic
// per event type.
type MQTTBridge struct {
	client publisher
	prefix string
	qos    byte
	logger *zap.Logger
	close  func()
}

// NewMQTTBridge connects to the configured broker. The client keeps retrying
// in the background when the broker is not reachable yet.
func NewMQTTBridge(cfg config.MQTTConfig, logger *zap.Logger) (*MQTTBridge, error) {
	if strings.TrimSpace(cfg.Broker) == "" {
		return nil, errors.New("mqtt broker is empty")
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "announce-service"
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetConnectTimeout(5 * time.Second).
		SetKeepAlive(30 * time.Second).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(2 * time.Second)
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", zap.Error(err))
	}
	opts.OnConnect = func(_ mqtt.Client) {
		logger.Info("mqtt connected", zap.String("broker", cfg.Broker), zap.String("client_id", clientID))
	}

	client := mqtt.NewClient(opts)
	tok := client.Connect()
	if !tok.WaitTimeout(10 * time.Second) {
		logger.Warn("mqtt broker not reachable yet, retrying in background", zap.String("broker", cfg.Broker))
	} else if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}

	bridge := newBridge(client, cfg, logger)
	bridge.close = func() { client.Disconnect(250) }
	return bridge, nil
}

func newBridge(client publisher, cfg config.MQTTConfig, logger *zap.Logger) *MQTTBridge {
	prefix := strings.TrimRight(cfg.TopicPrefix, "/")
	if prefix == "" {
		prefix = "announce/events"
	}
	return &MQTTBridge{client: client, prefix: prefix, qos: byte(cfg.QoS), logger: logger}
}

// Attach subscribes the bridge to every published event type.
func (b *MQTTBridge) Attach(dispatcher Dispatcher) {
	for _, eventType := range AllEventTypes {
		dispatcher.Subscribe(eventType, b.forward)
	}
}

// Topic returns the topic events of the given type are published to.
func (b *MQTTBridge) Topic(eventType EventType) string {
	return b.prefix + "/" + string(eventType)
}

func (b *MQTTBridge) forward(_ context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	topic := b.Topic(event.Type)
	tok := b.client.Publish(topic, b.qos, false, body)
	if !tok.WaitTimeout(publishTimeout) {
		b.logger.Warn("mqtt publish timed out", zap.String("topic", topic), zap.String("event_id", event.ID))
		return nil
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Close disconnects from the broker.
func (b *MQTTBridge) Close() {
	if b.close != nil {
		b.close()
	}
}

// Package telemetry publishes teleop events to an MQTT broker.
package telemetry

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/open-teleop/vrteleop/pkg/config"
	customlog "github.com/open-teleop/vrteleop/pkg/log"
	"github.com/open-teleop/vrteleop/pkg/processing"
)

const publishTimeout = 2 * time.Second

// Client is the part of mqtt.Client the publisher needs
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Publisher sends every event as JSON to <prefix>/<kind>, where dots in
// the kind become topic levels.
type Publisher struct {
	client Client
	conn   mqtt.Client
	prefix string
	qos    byte
	logger customlog.Logger
}

// NewPublisher wraps an already connected client
func NewPublisher(client Client, prefix string, qos byte, logger customlog.Logger) *Publisher {
	return &Publisher{
		client: client,
		prefix: strings.TrimSuffix(prefix, "/"),
		qos:    qos,
		logger: logger,
	}
}

// Connect dials the configured broker and returns a publisher on it
func Connect(cfg config.TelemetryConfig, logger customlog.Logger) (*Publisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(5 * time.Second)

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warnf("MQTT connection lost: %v", err)
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("MQTT connect to %s failed: %w", cfg.Broker, token.Error())
	}
	logger.Infof("Connected to MQTT broker %s", cfg.Broker)

	p := NewPublisher(client, cfg.TopicPrefix, cfg.QoS, logger)
	p.conn = client
	return p, nil
}

// Topic returns the MQTT topic for an event kind
func (p *Publisher) Topic(kind string) string {
	return p.prefix + "/" + strings.ReplaceAll(kind, ".", "/")
}

// Publish sends one event and waits for the broker to accept it
func (p *Publisher) Publish(ev processing.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("json marshal error (%s): %w", ev.Kind, err)
	}

	topic := p.Topic(ev.Kind)
	token := p.client.Publish(topic, p.qos, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("MQTT publish to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("MQTT publish error (%s): %w", topic, err)
	}
	return nil
}

// Consume makes the publisher a processing.Sink
func (p *Publisher) Consume(ev processing.Event) error {
	return p.Publish(ev)
}

// Close disconnects a client opened by Connect
func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Disconnect(250)
		p.logger.Infof("Disconnected from MQTT broker")
	}
}

package alertfeed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/apiarylabs/hivewatch/internal/conf"
	"github.com/apiarylabs/hivewatch/internal/datastore/entities"
	"github.com/apiarylabs/hivewatch/internal/logger"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

const (
	mqttConnectTimeout = 10 * time.Second
	mqttDisconnectWait = 250 // milliseconds
)

// MQTTPublisher publishes alerts to {prefix}/{hive_id}/{alert_type}.
type MQTTPublisher struct {
	client mqtt.Client
	prefix string
	qos    byte
}

// NewMQTTPublisher connects to cfg.Broker.
func NewMQTTPublisher(cfg conf.MQTTFeedSettings, log logger.Logger) (*MQTTPublisher, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqtt broker is required")
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "hivewatch-" + uuid.NewString()[:8]
	}
	log = log.Module("alertfeed")

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(clientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetConnectTimeout(mqttConnectTimeout)
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn("mqtt connection lost", logger.String("broker", cfg.Broker), logger.Error(err))
	})
	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.Info("mqtt connected", logger.String("broker", cfg.Broker), logger.String("client_id", clientID))
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		return nil, fmt.Errorf("timed out connecting to mqtt broker %s", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to mqtt broker %s: %w", cfg.Broker, err)
	}

	return &MQTTPublisher{
		client: client,
		prefix: strings.TrimSuffix(cfg.TopicPrefix, "/"),
		qos:    byte(cfg.QoS),
	}, nil
}

func (p *MQTTPublisher) Name() string { return "mqtt" }

// Topic returns the topic alert is published on.
func Topic(prefix string, alert *entities.Alert) string {
	return prefix + "/" + alert.HiveID + "/" + string(alert.AlertType)
}

func (p *MQTTPublisher) Publish(ctx context.Context, alert *entities.Alert) error {
	payload, err := encode(alert)
	if err != nil {
		return err
	}
	topic := Topic(p.prefix, alert)
	token := p.client.Publish(topic, p.qos, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("publish to %s: %w", topic, ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

func (p *MQTTPublisher) Close() error {
	p.client.Disconnect(mqttDisconnectWait)
	return nil
}

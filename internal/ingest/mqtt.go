package ingest

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"waterwatch/internal/config"
	"waterwatch/internal/metrics"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const mqttSubscribeTimeout = 5 * time.Second

// MQTTSubscriber consumes readings from an MQTT topic and forwards to sink.
// Params: paho client, topic settings and reading sink.
// Returns: MQTT ingest lifecycle handle.
type MQTTSubscriber struct {
	client  mqtt.Client
	cfg     config.MQTTIngestConfig
	sink    ReadingSink
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewMQTTSubscriber builds subscriber without connecting.
// Params: MQTT ingest config, sink, optional logger and metrics.
// Returns: subscriber ready for Start.
func NewMQTTSubscriber(cfg config.MQTTIngestConfig, sink ReadingSink, logger *slog.Logger, m *metrics.Metrics) *MQTTSubscriber {
	if logger == nil {
		logger = slog.Default()
	}
	s := &MQTTSubscriber{cfg: cfg, sink: sink, logger: logger, metrics: m}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetConnectTimeout(s.connectTimeout())
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetOnConnectHandler(s.onConnect)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		s.logger.Warn("mqtt connection lost", "broker", cfg.Broker, "error", err.Error())
	})
	s.client = mqtt.NewClient(opts)
	return s
}

// Start connects to the broker; subscription happens in the connect handler.
// Params: none.
// Returns: connect error or timeout.
func (s *MQTTSubscriber) Start() error {
	token := s.client.Connect()
	if !token.WaitTimeout(s.connectTimeout()) {
		return fmt.Errorf("mqtt connect timeout after %s", s.connectTimeout())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect %s: %w", s.cfg.Broker, err)
	}
	return nil
}

// onConnect (re)subscribes after every successful connection.
func (s *MQTTSubscriber) onConnect(client mqtt.Client) {
	token := client.Subscribe(s.cfg.Topic, byte(s.cfg.QoS), func(_ mqtt.Client, message mqtt.Message) {
		s.handle(message.Topic(), message.Payload())
	})
	if !token.WaitTimeout(mqttSubscribeTimeout) {
		s.logger.Error("mqtt subscribe timeout", "topic", s.cfg.Topic)
		return
	}
	if err := token.Error(); err != nil {
		s.logger.Error("mqtt subscribe failed", "topic", s.cfg.Topic, "error", err.Error())
		return
	}
	s.logger.Info("mqtt subscribed", "broker", s.cfg.Broker, "topic", s.cfg.Topic, "qos", s.cfg.QoS)
}

// handle decodes one message and pushes it to sink.
func (s *MQTTSubscriber) handle(topic string, payload []byte) {
	frames, err := decodePayload(payload)
	if err != nil {
		s.metrics.ObserveReading(metrics.ResultInvalid)
		s.logger.Warn("mqtt ingest decode failed", "topic", topic, "error", err.Error())
		return
	}
	if err := pushFrames(s.sink, frames); err != nil {
		s.logger.Error("mqtt ingest push failed", "topic", topic, "error", err.Error())
	}
}

// Close unsubscribes and disconnects.
// Params: none.
// Returns: unsubscribe error when connected.
func (s *MQTTSubscriber) Close() error {
	var err error
	if s.client.IsConnected() {
		token := s.client.Unsubscribe(s.cfg.Topic)
		if token.WaitTimeout(mqttSubscribeTimeout) {
			err = token.Error()
		} else {
			err = errors.New("mqtt unsubscribe timeout")
		}
	}
	s.client.Disconnect(250)
	return err
}

func (s *MQTTSubscriber) connectTimeout() time.Duration {
	if s.cfg.ConnectTimeoutSec <= 0 {
		return 10 * time.Second
	}
	return time.Duration(s.cfg.ConnectTimeoutSec) * time.Second
}

package publisher

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"retrolock/internal/config"
	"retrolock/internal/logger"
	"retrolock/internal/models"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	defaultConnectTimeout    = 10 * time.Second
	defaultPublishTimeout    = 5 * time.Second
	defaultDisconnectQuiesce = 1000 // milliseconds
	defaultKeepAlive         = 60 * time.Second
)

// Topics builds the topic names below a prefix.
type Topics struct {
	Prefix string
}

// State carries the retained actuator snapshot.
func (t Topics) State() string { return t.join("state") }

// Events carries one message per applied command.
func (t Topics) Events() string { return t.join("events") }

// Availability carries the retained online/offline marker and the LWT.
func (t Topics) Availability() string { return t.join("availability") }

func (t Topics) join(leaf string) string {
	return strings.TrimRight(t.Prefix, "/") + "/" + leaf
}

// tokenPublisher is the part of the paho client the publisher uses.
type tokenPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
}

// MQTTPublisher mirrors actuator events to an MQTT broker.
type MQTTPublisher struct {
	client     tokenPublisher
	disconnect func(quiesce uint)
	topics     Topics
	qos        byte
	clientID   string
	connected  atomic.Bool
	log        *logger.Logger
}

// statePayload is published retained on the state topic.
type statePayload struct {
	State          string    `json:"state"`
	Engaged        bool      `json:"engaged"`
	LastTransition string    `json:"last_transition"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type availabilityPayload struct {
	Status    string `json:"status"`
	ClientID  string `json:"client_id"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

// ConnectMQTT connects to the broker from cfg and announces availability.
func ConnectMQTT(cfg config.MQTTConfig, log *logger.Logger) (*MQTTPublisher, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	if log == nil {
		log = logger.Nop()
	}

	p := &MQTTPublisher{
		topics:   Topics{Prefix: cfg.TopicPrefix},
		qos:      byte(cfg.QoS),
		clientID: cfg.ClientID,
		log:      log,
	}

	opts := buildClientOptions(cfg)
	opts.SetWill(p.topics.Availability(), string(availability("offline", cfg.ClientID, "unexpected_disconnect")), p.qos, true)
	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		p.connected.Store(true)
		p.announce("online", "")
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		p.connected.Store(false)
		log.Warnw("mqtt_connection_lost", "err", err)
	})

	client := pahomqtt.NewClient(opts)
	p.client = client
	p.disconnect = client.Disconnect

	token := client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		client.Disconnect(0)
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		client.Disconnect(0)
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	p.connected.Store(true)
	return p, nil
}

func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)
	if strings.HasPrefix(cfg.Broker, "ssl://") || strings.HasPrefix(cfg.Broker, "tls://") {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	return opts
}

// Append publishes the event and the resulting retained state.
func (p *MQTTPublisher) Append(_ context.Context, e models.ActuatorEvent) error {
	if !p.connected.Load() {
		return ErrNotConnected
	}

	evt, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := p.publish(p.topics.Events(), false, evt); err != nil {
		return err
	}
	return p.publish(p.topics.State(), true, buildStatePayload(e))
}

// Close publishes a graceful offline marker and disconnects.
func (p *MQTTPublisher) Close() error {
	if p.client == nil {
		return nil
	}
	if p.connected.Load() {
		p.announce("offline", "graceful_shutdown")
	}
	if p.disconnect != nil {
		p.disconnect(defaultDisconnectQuiesce)
	}
	p.connected.Store(false)
	return nil
}

func (p *MQTTPublisher) announce(status, reason string) {
	if err := p.publish(p.topics.Availability(), true, availability(status, p.clientID, reason)); err != nil {
		p.log.Warnw("mqtt_availability_failed", "status", status, "err", err)
	}
}

func (p *MQTTPublisher) publish(topic string, retained bool, payload []byte) error {
	token := p.client.Publish(topic, p.qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: %s: timeout after %v", ErrPublishFailed, topic, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPublishFailed, topic, err)
	}
	return nil
}

func buildStatePayload(e models.ActuatorEvent) []byte {
	st := models.ActuatorState{Engaged: e.Engaged}
	b, _ := json.Marshal(statePayload{
		State:          st.StateLabel(),
		Engaged:        e.Engaged,
		LastTransition: e.Type,
		UpdatedAt:      e.OccurredAt.UTC(),
	})
	return b
}

func availability(status, clientID, reason string) []byte {
	b, _ := json.Marshal(availabilityPayload{
		Status:    status,
		ClientID:  clientID,
		Reason:    reason,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	return b
}

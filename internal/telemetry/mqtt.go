// Package telemetry surfaces live engine state to external observers:
// an MQTT publisher for fleet-style subscribers and a WebSocket hub for
// local dashboards. Neither owns engine state; both read snapshots and
// forward events.
package telemetry

import (
	"encoding/json"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/RudolfRTC/CCS-Charger/internal/engine"
)

// MQTTConfig configures the periodic publisher.
type MQTTConfig struct {
	Broker         string
	ClientID       string
	Topic          string
	UpdateInterval time.Duration
}

// DefaultMQTTConfig mirrors this codebase's established defaults for a
// local broker and a slow telemetry cadence.
func DefaultMQTTConfig() MQTTConfig {
	return MQTTConfig{
		Broker:         "tcp://localhost:1883",
		ClientID:       "vcu-charger",
		Topic:          "vcu/charger/snapshot",
		UpdateInterval: 2 * time.Second,
	}
}

// snapshotPayload is the JSON shape published to the MQTT topic.
type snapshotPayload struct {
	Timestamp  time.Time                  `json:"timestamp"`
	Supervisor engine.SupervisorSnapshot  `json:"supervisor"`
	Vcu        engine.VcuParameters       `json:"vcu"`
}

// MQTTPublisher periodically publishes the engine's snapshot to a broker.
type MQTTPublisher struct {
	config MQTTConfig
	eng    *engine.Engine
	client mqtt.Client
	stopCh chan struct{}
}

// NewMQTTPublisher builds an unconnected publisher bound to eng.
func NewMQTTPublisher(config MQTTConfig, eng *engine.Engine) *MQTTPublisher {
	return &MQTTPublisher{config: config, eng: eng, stopCh: make(chan struct{})}
}

// Connect dials the broker.
func (p *MQTTPublisher) Connect() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(p.config.Broker)
	opts.SetClientID(p.config.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.WithField("broker", p.config.Broker).Info("telemetry: connected to MQTT broker")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.WithError(err).Warn("telemetry: MQTT connection lost")
	})
	p.client = mqtt.NewClient(opts)
	token := p.client.Connect()
	token.Wait()
	return token.Error()
}

// StartPublishing begins the periodic publish loop in the background.
func (p *MQTTPublisher) StartPublishing() {
	go func() {
		ticker := time.NewTicker(p.config.UpdateInterval)
		defer ticker.Stop()
		for {
			select {
			case <-p.stopCh:
				return
			case <-ticker.C:
				p.publishOnce()
			}
		}
	}()
}

// StopPublishing stops the publish loop; Connect/Disconnect are separate.
func (p *MQTTPublisher) StopPublishing() {
	close(p.stopCh)
}

// Disconnect closes the broker connection.
func (p *MQTTPublisher) Disconnect() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}

func (p *MQTTPublisher) publishOnce() {
	payload := snapshotPayload{
		Timestamp:  time.Now(),
		Supervisor: p.eng.Snapshot(),
		Vcu:        p.eng.VcuSnapshot(),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		log.WithError(err).Error("telemetry: failed to marshal snapshot")
		return
	}
	token := p.client.Publish(p.config.Topic, 0, false, data)
	if token.Wait() && token.Error() != nil {
		log.WithError(token.Error()).Warn("telemetry: failed to publish snapshot")
	}
}

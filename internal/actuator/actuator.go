// Package actuator sends setpoint and boiler commands to the physical devices
// over MQTT. Commands are fire and forget: delivery and retry are the broker
// integration's concern, the controller never assumes a command was applied.
package actuator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// Setter writes a valve's target temperature.
type Setter interface {
	SetValveTemperature(ctx context.Context, valveID string, temperature float64) error
}

// Switch turns the boiler on or off.
type Switch interface {
	SetBoiler(ctx context.Context, on bool) error
}

const publishTimeout = 5 * time.Second

// publisher is the part of paho.Client that MQTT uses. It lets tests swap in
// a fake client.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload any) paho.Token
}

// MQTT implements Setter and Switch against an MQTT broker, publishing to
// "<topic>/<valve id>/set" and "<topic>/boiler/set".
type MQTT struct {
	client paho.Client
	pub    publisher
	topic  string
	logger *slog.Logger
}

var _ Setter = &MQTT{}
var _ Switch = &MQTT{}

func NewMQTT(brokerURL string, topic string, logger *slog.Logger) *MQTT {
	opts := paho.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID("wiser-home-actuator").
		SetAutoReconnect(true).
		SetConnectRetry(true)
	client := paho.NewClient(opts)
	return &MQTT{client: client, pub: client, topic: topic, logger: logger}
}

// Run connects to the broker and holds the connection until ctx expires.
func (m *MQTT) Run(ctx context.Context) error {
	if token := m.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt connect: %w", token.Error())
	}
	m.logger.Debug("started")
	defer m.logger.Debug("stopped")

	<-ctx.Done()
	m.client.Disconnect(1000)
	return nil
}

func (m *MQTT) SetValveTemperature(ctx context.Context, valveID string, temperature float64) error {
	m.logger.Debug("setting valve temperature",
		slog.String("valve", valveID),
		slog.Float64("temperature", temperature),
	)
	return m.publish(ctx,
		m.topic+"/"+valveID+"/set",
		map[string]any{"occupied_heating_setpoint": temperature},
	)
}

func (m *MQTT) SetBoiler(ctx context.Context, on bool) error {
	state := "OFF"
	if on {
		state = "ON"
	}
	m.logger.Debug("setting boiler", slog.String("state", state))
	return m.publish(ctx, m.topic+"/boiler/set", map[string]any{"state": state})
}

func (m *MQTT) publish(ctx context.Context, topic string, body map[string]any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("payload: %w", err)
	}
	// QoS 1: a lost setpoint command leaves the valve on a stale target
	token := m.pub.Publish(topic, 1, false, payload)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-token.Done():
	case <-time.After(publishTimeout):
		return fmt.Errorf("publish %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

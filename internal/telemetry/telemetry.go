// Package telemetry receives valve state reports over MQTT and fans them out
// to subscribers.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"

	"github.com/clambin/wiser-home/pkg/pubsub"
	paho "github.com/eclipse/paho.mqtt.golang"
)

// An Update is a single valve's state report. A report only carries the
// attributes the valve chose to send: missing attributes are nil, not zero.
type Update struct {
	ValveID    string
	Attributes Attributes
}

type Attributes struct {
	LocalTemperature        *float64 `json:"local_temperature,omitempty"`
	OccupiedHeatingSetpoint *float64 `json:"occupied_heating_setpoint,omitempty"`
	Boost                   *string  `json:"boost,omitempty"`
}

// Publisher is the interface consumed by tasks that want to receive Updates.
type Publisher interface {
	Subscribe() chan Update
	Unsubscribe(ch chan Update)
}

// Source subscribes to the valves' MQTT topics and publishes an Update per
// received state report.
type Source struct {
	*pubsub.Broker[Update]
	client paho.Client
	topic  string
	logger *slog.Logger
}

var _ Publisher = &Source{}

// NewSource creates a Source for the given broker URL. topic is the shared
// prefix of the valves' state topics, e.g. "wiser-home/valves" for reports on
// "wiser-home/valves/<valve id>".
func NewSource(brokerURL string, topic string, logger *slog.Logger) *Source {
	s := Source{
		Broker: pubsub.New[Update](logger.With(slog.String("component", "pubsub"))),
		topic:  topic,
		logger: logger,
	}
	opts := paho.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID("wiser-home-telemetry").
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetOnConnectHandler(s.subscribe)
	s.client = paho.NewClient(opts)
	return &s
}

// Run connects to the broker and processes incoming state reports until ctx
// expires.
func (s *Source) Run(ctx context.Context) error {
	if token := s.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt connect: %w", token.Error())
	}
	s.logger.Debug("started")
	defer s.logger.Debug("stopped")

	<-ctx.Done()
	s.client.Disconnect(disconnectTimeout)
	return nil
}

const disconnectTimeout = 1000 // milliseconds

// subscribe runs on every (re)connect, so a dropped broker connection does not
// silently stop telemetry.
func (s *Source) subscribe(client paho.Client) {
	token := client.Subscribe(s.topic+"/+", 0, func(_ paho.Client, msg paho.Message) {
		s.process(msg.Topic(), msg.Payload())
	})
	token.Wait()
	if err := token.Error(); err != nil {
		s.logger.Error("mqtt subscribe failed", slog.String("topic", s.topic), slog.Any("err", err))
	}
}

func (s *Source) process(topic string, payload []byte) {
	valveID := path.Base(topic)
	var attributes Attributes
	if err := json.Unmarshal(payload, &attributes); err != nil {
		s.logger.Warn("dropping malformed state report",
			slog.String("valve", valveID),
			slog.Any("err", err),
		)
		return
	}
	s.logger.Debug("state report received", slog.String("valve", valveID))
	s.Publish(Update{ValveID: valveID, Attributes: attributes})
}

// Package commands receives external commands over MQTT and submits them to
// the home controller.
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/clambin/go-common/set"
	"github.com/clambin/wiser-home/internal/controller"
	paho "github.com/eclipse/paho.mqtt.golang"
)

// Executor accepts commands for the home.
type Executor interface {
	Submit(command controller.Command)
}

// Listener subscribes to the command topic and submits each valid command to
// the Executor. Malformed payloads are logged and dropped.
type Listener struct {
	executor Executor
	client   paho.Client
	topic    string
	logger   *slog.Logger
}

func NewListener(brokerURL string, topic string, executor Executor, logger *slog.Logger) *Listener {
	l := Listener{
		executor: executor,
		topic:    topic,
		logger:   logger,
	}
	opts := paho.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID("wiser-home-commands").
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetOnConnectHandler(l.subscribe)
	l.client = paho.NewClient(opts)
	return &l
}

func (l *Listener) Run(ctx context.Context) error {
	if token := l.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt connect: %w", token.Error())
	}
	l.logger.Debug("started")
	defer l.logger.Debug("stopped")

	<-ctx.Done()
	l.client.Disconnect(disconnectTimeout)
	return nil
}

const disconnectTimeout = 1000 // milliseconds

func (l *Listener) subscribe(client paho.Client) {
	token := client.Subscribe(l.topic, 0, func(_ paho.Client, msg paho.Message) {
		l.process(msg.Payload())
	})
	token.Wait()
	if err := token.Error(); err != nil {
		l.logger.Error("mqtt subscribe failed", slog.String("topic", l.topic), slog.Any("err", err))
	}
}

func (l *Listener) process(body []byte) {
	command, err := parse(body)
	if err != nil {
		l.logger.Warn("dropping invalid command", slog.Any("err", err))
		return
	}
	l.logger.Debug("command received", slog.Any("command", command))
	l.executor.Submit(command)
}

type envelope struct {
	Cmd         string  `json:"cmd"`
	Room        string  `json:"room,omitempty"`
	Temperature float64 `json:"temp,omitempty"`
	Duration    string  `json:"duration,omitempty"`
}

var boostDurations = set.New[time.Duration](0, 30*time.Minute, time.Hour, 2*time.Hour, 3*time.Hour)

func parse(body []byte) (controller.Command, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return controller.Command{}, fmt.Errorf("invalid payload: %w", err)
	}

	command := controller.Command{Room: env.Room, Temperature: env.Temperature}
	switch env.Cmd {
	case "away_on":
		command.Type = controller.AwayOn
	case "away_off":
		command.Type = controller.AwayOff
	case "boost_all":
		command.Type = controller.BoostAll
	case "cancel_all":
		command.Type = controller.CancelAll
	case "room_boost":
		command.Type = controller.RoomBoost
	case "manual":
		command.Type = controller.Manual
	case "auto":
		command.Type = controller.Auto
	default:
		return controller.Command{}, fmt.Errorf("unknown command %q", env.Cmd)
	}

	switch command.Type {
	case controller.RoomBoost, controller.Manual, controller.Auto:
		if command.Room == "" {
			return controller.Command{}, fmt.Errorf("%s: missing room", env.Cmd)
		}
	}

	if command.Type == controller.RoomBoost && env.Duration != "" {
		duration, err := time.ParseDuration(env.Duration)
		if err != nil {
			return controller.Command{}, fmt.Errorf("invalid duration %q: %w", env.Duration, err)
		}
		if !boostDurations.Contains(duration) {
			return controller.Command{}, fmt.Errorf("unsupported boost duration %q", env.Duration)
		}
		command.Duration = duration
	}

	return command, nil
}

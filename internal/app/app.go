// Package app assembles the wiser-home tasks from the configuration.
package app

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/clambin/go-common/taskmanager"
	"github.com/clambin/go-common/taskmanager/httpserver"
	promserver "github.com/clambin/go-common/taskmanager/prometheus"
	"github.com/clambin/wiser-home/internal/actuator"
	"github.com/clambin/wiser-home/internal/collector"
	"github.com/clambin/wiser-home/internal/commands"
	"github.com/clambin/wiser-home/internal/configuration"
	"github.com/clambin/wiser-home/internal/controller"
	"github.com/clambin/wiser-home/internal/controller/notifier"
	"github.com/clambin/wiser-home/internal/controller/room"
	"github.com/clambin/wiser-home/internal/health"
	"github.com/clambin/wiser-home/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/slack-go/slack"
	"github.com/spf13/viper"
)

func New(cfg *viper.Viper, registry prometheus.Registerer, logger *slog.Logger) (*taskmanager.Manager, error) {
	home, err := loadRooms(filepath.Join(filepath.Dir(cfg.ConfigFileUsed()), "rooms.yaml"))
	if err != nil {
		return nil, err
	}
	tasks, err := makeTasks(cfg, home, registry, logger)
	if err != nil {
		return nil, err
	}
	return taskmanager.New(tasks...), nil
}

func loadRooms(path string) (configuration.Configuration, error) {
	f, err := os.Open(path)
	if err != nil {
		return configuration.Configuration{}, fmt.Errorf("rooms: %w", err)
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	return configuration.Load(f)
}

func makeTasks(cfg *viper.Viper, home configuration.Configuration, registry prometheus.Registerer, l *slog.Logger) ([]taskmanager.Task, error) {
	var tasks []taskmanager.Task

	// Telemetry
	source := telemetry.NewSource(cfg.GetString("mqtt.url"), cfg.GetString("mqtt.topic"), l.With("component", "telemetry"))
	tasks = append(tasks, source)

	// Actuator
	act := actuator.NewMQTT(cfg.GetString("mqtt.url"), cfg.GetString("mqtt.topic"), l.With("component", "actuator"))
	tasks = append(tasks, act)

	// Notifiers
	notifiers := notifier.Notifiers{notifier.SLogNotifier{Logger: l.With("component", "notifier")}}
	if token := cfg.GetString("slack.token"); token != "" {
		notifiers = append(notifiers, &notifier.SlackNotifier{
			Logger:      l.With("component", "notifier"),
			SlackSender: slack.New(token),
		})
	}

	// Controller
	c, err := controller.New(home, room.DefaultConfig(), act, act, source, cfg.GetDuration("interval"), notifiers, l.With("component", "controller"))
	if err != nil {
		return nil, fmt.Errorf("controller: %w", err)
	}
	tasks = append(tasks, c)

	// Command listener
	tasks = append(tasks, commands.NewListener(
		cfg.GetString("mqtt.url"),
		cfg.GetString("mqtt.commandTopic"),
		c,
		l.With("component", "commands"),
	))

	// Collector
	coll := &collector.Collector{Publisher: c, Logger: l.With("component", "collector")}
	if registry != nil {
		registry.MustRegister(coll)
	}
	tasks = append(tasks, coll)

	// Prometheus Server
	tasks = append(tasks, promserver.New(promserver.WithAddr(cfg.GetString("exporter.addr"))))

	// Health Endpoint
	h := health.New(c, l.With("component", "health"))
	tasks = append(tasks, h)
	r := http.NewServeMux()
	r.Handle("/health", h)
	tasks = append(tasks, httpserver.New(cfg.GetString("health.addr"), r))

	return tasks, nil
}

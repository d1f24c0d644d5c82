package collector

import (
	"context"
	"log/slog"
	"sync"

	"github.com/clambin/wiser-home/internal/controller"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	wiserRoomTemperature = prometheus.NewDesc(
		prometheus.BuildFQName("wiser", "room", "temperature_celsius"),
		"Current temperature of this room in degrees celsius",
		[]string{"room"},
		nil,
	)
	wiserRoomTargetTemperature = prometheus.NewDesc(
		prometheus.BuildFQName("wiser", "room", "target_temp_celsius"),
		"Target temperature of this room in degrees celsius",
		[]string{"room"},
		nil,
	)
	wiserRoomHeating = prometheus.NewDesc(
		prometheus.BuildFQName("wiser", "room", "heating"),
		"1 if this room is calling for heat",
		[]string{"room"},
		nil,
	)
	wiserRoomMode = prometheus.NewDesc(
		prometheus.BuildFQName("wiser", "room", "mode"),
		"Mode of the room. Always 1. See label 'mode'",
		[]string{"room", "mode"},
		nil,
	)
	wiserHomeBoiler = prometheus.NewDesc(
		prometheus.BuildFQName("wiser", "home", "boiler"),
		"1 if the boiler is firing",
		nil,
		nil,
	)
	wiserHomeAway = prometheus.NewDesc(
		prometheus.BuildFQName("wiser", "home", "away"),
		"1 if the home is in away mode",
		nil,
		nil,
	)
)

// Publisher provides home state snapshots.
type Publisher interface {
	Subscribe() chan controller.HomeSnapshot
	Unsubscribe(ch chan controller.HomeSnapshot)
}

// Collector exports the home's state as Prometheus metrics.
type Collector struct {
	Publisher  Publisher
	Logger     *slog.Logger
	lock       sync.RWMutex
	lastUpdate *controller.HomeSnapshot
}

func (c *Collector) Run(ctx context.Context) error {
	c.Logger.Debug("started")
	defer c.Logger.Debug("stopped")

	ch := c.Publisher.Subscribe()
	defer c.Publisher.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case update := <-ch:
			c.lock.Lock()
			c.lastUpdate = &update
			c.lock.Unlock()
		}
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- wiserRoomTemperature
	ch <- wiserRoomTargetTemperature
	ch <- wiserRoomHeating
	ch <- wiserRoomMode
	ch <- wiserHomeBoiler
	ch <- wiserHomeAway
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	if c.lastUpdate == nil {
		return
	}
	ch <- prometheus.MustNewConstMetric(wiserHomeBoiler, prometheus.GaugeValue, boolToFloat(c.lastUpdate.Boiler))
	ch <- prometheus.MustNewConstMetric(wiserHomeAway, prometheus.GaugeValue, boolToFloat(c.lastUpdate.Away))
	for _, r := range c.lastUpdate.Rooms {
		ch <- prometheus.MustNewConstMetric(wiserRoomTemperature, prometheus.GaugeValue, r.Temperature, r.Name)
		if r.Setpoint != nil {
			ch <- prometheus.MustNewConstMetric(wiserRoomTargetTemperature, prometheus.GaugeValue, *r.Setpoint, r.Name)
		}
		ch <- prometheus.MustNewConstMetric(wiserRoomHeating, prometheus.GaugeValue, boolToFloat(r.Heating), r.Name)
		ch <- prometheus.MustNewConstMetric(wiserRoomMode, prometheus.GaugeValue, 1, r.Name, r.Mode)
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Package controller implements the home controller: it owns the rooms,
// feeds them telemetry and schedule ticks, executes external commands, and
// aggregates the rooms' heat demand into a single boiler decision.
package controller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/clambin/wiser-home/internal/actuator"
	"github.com/clambin/wiser-home/internal/configuration"
	"github.com/clambin/wiser-home/internal/controller/notifier"
	"github.com/clambin/wiser-home/internal/controller/room"
	"github.com/clambin/wiser-home/internal/telemetry"
	"github.com/clambin/wiser-home/pkg/pubsub"
)

// HomeSnapshot is the home's reported state, published after every tick.
type HomeSnapshot struct {
	Boiler   bool            `json:"boiler"`
	Away     bool            `json:"away"`
	AwayTemp float64         `json:"awayTemp,omitempty"`
	Rooms    []room.Snapshot `json:"rooms"`
}

// Controller runs the home: a single event loop serializes telemetry
// updates, schedule ticks, boost expirations and external commands across
// all rooms.
type Controller struct {
	*pubsub.Broker[HomeSnapshot]
	rooms        []*room.Room
	roomForValve map[string]*room.Room
	roomByName   map[string]*room.Room
	publisher    telemetry.Publisher
	boiler       actuator.Switch
	notifier     notifier.Notifier
	interval     time.Duration
	logger       *slog.Logger

	expired  chan room.Expiry
	commands chan Command

	away      bool
	awayTemp  float64
	boilerOn  bool
	boilerSet bool
}

// New creates a Controller and its rooms from the configuration.
func New(cfg configuration.Configuration, roomCfg room.Config, setter actuator.Setter, boiler actuator.Switch, publisher telemetry.Publisher, interval time.Duration, n notifier.Notifier, logger *slog.Logger) (*Controller, error) {
	c := Controller{
		Broker:       pubsub.New[HomeSnapshot](logger.With(slog.String("component", "pubsub"))),
		roomForValve: make(map[string]*room.Room),
		roomByName:   make(map[string]*room.Room),
		publisher:    publisher,
		boiler:       boiler,
		notifier:     n,
		interval:     interval,
		logger:       logger,
		expired:      make(chan room.Expiry),
		commands:     make(chan Command),
		awayTemp:     cfg.Home.AwayTemp,
	}
	for _, roomCfgEntry := range cfg.Rooms {
		r, err := room.New(roomCfgEntry, roomCfg, setter, c.expired, logger.With(slog.String("room", roomCfgEntry.Name)))
		if err != nil {
			return nil, err
		}
		c.rooms = append(c.rooms, r)
		c.roomByName[roomCfgEntry.Name] = r
		for _, valve := range roomCfgEntry.Valves {
			c.roomForValve[valve.ID] = r
		}
	}
	return &c, nil
}

// Run processes events until ctx expires.
func (c *Controller) Run(ctx context.Context) error {
	updates := c.publisher.Subscribe()
	defer c.publisher.Unsubscribe(updates)

	c.logger.Debug("started", slog.Duration("interval", c.interval))
	defer c.logger.Debug("stopped")

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.tick(ctx, time.Now())
	for {
		select {
		case <-ctx.Done():
			return nil
		case update := <-updates:
			c.processUpdate(ctx, update)
		case <-ticker.C:
			c.tick(ctx, time.Now())
		case expiry := <-c.expired:
			c.processExpiry(ctx, expiry)
		case command := <-c.commands:
			if err := c.execute(ctx, command); err != nil {
				c.logger.Warn("dropping command", slog.Any("command", command), slog.Any("err", err))
			}
		}
	}
}

// Submit queues a command for the event loop. It blocks until the loop
// accepts it.
func (c *Controller) Submit(command Command) {
	c.commands <- command
}

func (c *Controller) processUpdate(ctx context.Context, update telemetry.Update) {
	r, ok := c.roomForValve[update.ValveID]
	if !ok {
		c.logger.Warn("ignoring state report from unknown valve", slog.String("valve", update.ValveID))
		return
	}
	r.HandleUpdate(ctx, update)
}

func (c *Controller) processExpiry(ctx context.Context, expiry room.Expiry) {
	r, ok := c.roomByName[expiry.Room]
	if !ok {
		return
	}
	var reverted bool
	switch expiry.Kind {
	case room.ValveBoost:
		reverted = r.ExpireValveBoost()
	case room.RoomBoost:
		reverted = r.ExpireRoomBoost()
	}
	if reverted {
		c.notifier.Notify(fmt.Sprintf("%s: boost expired", expiry.Room))
		c.tick(ctx, time.Now())
	}
}

// tick runs every room's schedule evaluation, switches the boiler on the
// aggregated heat demand and publishes the home's state.
func (c *Controller) tick(ctx context.Context, now time.Time) {
	snapshot := HomeSnapshot{Away: c.away, AwayTemp: c.awayTemp, Rooms: make([]room.Snapshot, 0, len(c.rooms))}
	var demand bool
	for _, r := range c.rooms {
		s := r.Tick(ctx, now)
		demand = demand || s.Heating
		snapshot.Rooms = append(snapshot.Rooms, s)
	}
	c.setBoiler(ctx, demand)
	snapshot.Boiler = c.boilerOn
	c.Publish(snapshot)
}

func (c *Controller) setBoiler(ctx context.Context, on bool) {
	if c.boilerSet && on == c.boilerOn {
		return
	}
	if err := c.boiler.SetBoiler(ctx, on); err != nil {
		// leave boilerOn unchanged: we'll try again next tick
		c.logger.Error("failed to switch boiler", slog.Any("err", err))
		return
	}
	c.boilerOn = on
	c.boilerSet = true
	label := "off"
	if on {
		label = "on"
	}
	c.logger.Info("boiler switched", slog.String("state", label))
	c.notifier.Notify("boiler switched " + label)
}

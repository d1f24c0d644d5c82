package controller

import (
	"context"
	"fmt"
	"time"
)

// CommandType enumerates the external commands a home accepts.
type CommandType int

const (
	AwayOn CommandType = iota
	AwayOff
	BoostAll
	CancelAll
	RoomBoost
	Manual
	Auto
)

func (t CommandType) String() string {
	switch t {
	case AwayOn:
		return "away-on"
	case AwayOff:
		return "away-off"
	case BoostAll:
		return "boost-all"
	case CancelAll:
		return "cancel-all"
	case RoomBoost:
		return "room-boost"
	case Manual:
		return "manual"
	case Auto:
		return "auto"
	default:
		return "unknown"
	}
}

// A Command is an external request to the home controller. Room is only set
// for room-scoped commands.
type Command struct {
	Type        CommandType
	Room        string
	Temperature float64
	Duration    time.Duration
}

func (c Command) String() string {
	return fmt.Sprintf("%s room=%s temp=%.1f duration=%s", c.Type, c.Room, c.Temperature, c.Duration)
}

func (c *Controller) execute(ctx context.Context, command Command) error {
	switch command.Type {
	case AwayOn:
		c.away = true
		if command.Temperature != 0 {
			c.awayTemp = command.Temperature
		}
		for _, r := range c.rooms {
			r.AwayOn(c.awayTemp)
		}
		c.notifier.Notify(fmt.Sprintf("away mode on (%.1fºC)", c.awayTemp))
	case AwayOff:
		c.away = false
		for _, r := range c.rooms {
			r.AwayOff()
		}
		c.notifier.Notify("away mode off")
	case BoostAll:
		for _, r := range c.rooms {
			r.BoostAll()
		}
		c.notifier.Notify("all rooms boosted")
	case CancelAll:
		for _, r := range c.rooms {
			r.CancelAll()
		}
		c.notifier.Notify("boost cancelled")
	case RoomBoost:
		r, ok := c.roomByName[command.Room]
		if !ok {
			return fmt.Errorf("unknown room %q", command.Room)
		}
		if !r.Boost(ctx, command.Temperature, command.Duration) {
			return fmt.Errorf("room %q does not accept a boost in its current mode", command.Room)
		}
		c.notifier.Notify(fmt.Sprintf("%s: boosted to %.1fºC for %s", command.Room, command.Temperature, command.Duration))
	case Manual:
		r, ok := c.roomByName[command.Room]
		if !ok {
			return fmt.Errorf("unknown room %q", command.Room)
		}
		if !r.SetManual(command.Temperature) {
			return fmt.Errorf("room %q does not accept a manual setpoint in its current mode", command.Room)
		}
		c.notifier.Notify(fmt.Sprintf("%s: manual setpoint %.1fºC", command.Room, command.Temperature))
	case Auto:
		r, ok := c.roomByName[command.Room]
		if !ok {
			return fmt.Errorf("unknown room %q", command.Room)
		}
		r.SetAuto()
	default:
		return fmt.Errorf("unknown command %d", command.Type)
	}
	c.tick(ctx, time.Now())
	return nil
}

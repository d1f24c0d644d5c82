// Package configuration describes the heating model: the rooms of the home,
// the valves that heat them, and their schedules.
package configuration

import (
	"fmt"
	"io"

	"github.com/clambin/wiser-home/internal/schedule"
	"gopkg.in/yaml.v3"
)

const defaultAwayTemp = 10.0

type Configuration struct {
	Home  HomeConfiguration   `yaml:"home"`
	Rooms []RoomConfiguration `yaml:"rooms"`
}

type HomeConfiguration struct {
	// AwayTemp caps all rooms' setpoints while away mode is on
	AwayTemp float64 `yaml:"awayTemp"`
}

type RoomConfiguration struct {
	Name   string               `yaml:"name"`
	Valves []ValveConfiguration `yaml:"valves"`
	// Schedule drives the room in auto mode. A room without rules gets the
	// default weekly schedule.
	Schedule schedule.Schedule `yaml:"schedule,omitempty"`
}

type ValveConfiguration struct {
	ID string `yaml:"id"`
	// Weight is the valve's share in the room temperature average. Defaults to 1.
	Weight float64 `yaml:"weight"`
}

// Load reads and validates a configuration. Misconfigurations are fatal here,
// not at runtime.
func Load(r io.Reader) (Configuration, error) {
	c := Configuration{
		Home: HomeConfiguration{AwayTemp: defaultAwayTemp},
	}
	if err := yaml.NewDecoder(r).Decode(&c); err != nil {
		return Configuration{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return c, c.validate()
}

func (c Configuration) validate() error {
	if len(c.Rooms) == 0 {
		return fmt.Errorf("no rooms configured")
	}
	rooms := make(map[string]struct{}, len(c.Rooms))
	valves := make(map[string]struct{})
	for i := range c.Rooms {
		room := &c.Rooms[i]
		if room.Name == "" {
			return fmt.Errorf("room %d: no name", i)
		}
		if _, ok := rooms[room.Name]; ok {
			return fmt.Errorf("duplicate room %q", room.Name)
		}
		rooms[room.Name] = struct{}{}
		if len(room.Valves) == 0 {
			return fmt.Errorf("room %q: no valves", room.Name)
		}
		for j := range room.Valves {
			valve := &room.Valves[j]
			if valve.ID == "" {
				return fmt.Errorf("room %q: valve %d: no id", room.Name, j)
			}
			if _, ok := valves[valve.ID]; ok {
				return fmt.Errorf("valve %q assigned to more than one room", valve.ID)
			}
			valves[valve.ID] = struct{}{}
			if valve.Weight == 0 {
				valve.Weight = 1
			}
			if valve.Weight < 0 {
				return fmt.Errorf("room %q: valve %q: weight must be positive", room.Name, valve.ID)
			}
		}
		if err := room.Schedule.Validate(); err != nil {
			return fmt.Errorf("room %q: %w", room.Name, err)
		}
	}
	return nil
}

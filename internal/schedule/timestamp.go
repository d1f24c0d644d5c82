package schedule

import (
	"fmt"
	"gopkg.in/yaml.v3"
	"time"
)

// Timestamp is a time of day, without a date. The zero value means "not set".
type Timestamp struct {
	Hour    int
	Minutes int
	Seconds int
	Active  bool
}

// At returns a Timestamp for the given time of day.
func At(hour, minutes int) Timestamp {
	return Timestamp{Hour: hour, Minutes: minutes, Active: true}
}

// daySeconds returns the timestamp as seconds since midnight.
func (t Timestamp) daySeconds() int {
	return t.Hour*3600 + t.Minutes*60 + t.Seconds
}

func (t Timestamp) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minutes, t.Seconds)
}

func (t *Timestamp) UnmarshalYAML(value *yaml.Node) error {
	timestamp, err := time.Parse("15:04:05", value.Value)
	if err != nil {
		timestamp, err = time.Parse("15:04", value.Value)
	}
	if err != nil {
		return fmt.Errorf("invalid timestamp %q: %w", value.Value, err)
	}
	*t = Timestamp{
		Hour:    timestamp.Hour(),
		Minutes: timestamp.Minute(),
		Seconds: timestamp.Second(),
		Active:  true,
	}
	return nil
}

func (t Timestamp) MarshalYAML() (any, error) {
	return t.String(), nil
}

package schedule

import (
	"fmt"
	"github.com/clambin/go-common/set"
	"gopkg.in/yaml.v3"
	"strings"
	"time"
)

// A Setting is a schedule rule's resolved value: either a target temperature,
// or "off", meaning only frost protection is active.
type Setting struct {
	Off         bool
	Temperature float64
}

func (s Setting) String() string {
	if s.Off {
		return "off"
	}
	return fmt.Sprintf("%.1fºC", s.Temperature)
}

func (s *Setting) UnmarshalYAML(value *yaml.Node) error {
	// yaml reads a bare "off" as boolean false
	switch strings.ToLower(value.Value) {
	case "off", "false":
		*s = Setting{Off: true}
		return nil
	}
	var temperature float64
	if err := value.Decode(&temperature); err != nil {
		return fmt.Errorf("invalid setting %q: %w", value.Value, err)
	}
	*s = Setting{Temperature: temperature}
	return nil
}

func (s Setting) MarshalYAML() (any, error) {
	if s.Off {
		return "off", nil
	}
	return s.Temperature, nil
}

// Days is a set of weekdays a rule is constrained to. An empty set matches
// every day.
type Days set.Set[time.Weekday]

var dayNames = map[string][]time.Weekday{
	"monday":    {time.Monday},
	"tuesday":   {time.Tuesday},
	"wednesday": {time.Wednesday},
	"thursday":  {time.Thursday},
	"friday":    {time.Friday},
	"saturday":  {time.Saturday},
	"sunday":    {time.Sunday},
	"weekdays":  {time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
	"weekend":   {time.Saturday, time.Sunday},
}

// Weekdays returns the Monday through Friday day set.
func Weekdays() Days {
	return Days(set.New(dayNames["weekdays"]...))
}

// Weekend returns the Saturday & Sunday day set.
func Weekend() Days {
	return Days(set.New(dayNames["weekend"]...))
}

func (d Days) contains(day time.Weekday) bool {
	return set.Set[time.Weekday](d).Contains(day)
}

func (d *Days) UnmarshalYAML(value *yaml.Node) error {
	var names []string
	if err := value.Decode(&names); err != nil {
		return err
	}
	days := set.New[time.Weekday]()
	for _, name := range names {
		weekdays, ok := dayNames[strings.ToLower(name)]
		if !ok {
			return fmt.Errorf("invalid day %q", name)
		}
		for _, weekday := range weekdays {
			days.Add(weekday)
		}
	}
	*d = Days(days)
	return nil
}

// A Rule maps a time window, optionally constrained to a set of weekdays, to
// a Setting. A rule without a time window is a catch-all: it matches any time
// not covered by an earlier rule.
type Rule struct {
	Value Setting   `yaml:"value"`
	Name  string    `yaml:"name,omitempty"`
	From  Timestamp `yaml:"from,omitempty"`
	To    Timestamp `yaml:"to,omitempty"`
	Days  Days      `yaml:"days,omitempty"`
}

func (r Rule) matches(ts time.Time) bool {
	if len(r.Days) > 0 && !r.Days.contains(ts.Weekday()) {
		return false
	}
	if !r.From.Active || !r.To.Active {
		// catch-all rule
		return true
	}
	daySeconds := ts.Hour()*3600 + ts.Minute()*60 + ts.Second()
	return daySeconds >= r.From.daySeconds() && daySeconds < r.To.daySeconds()
}

func (r Rule) validate() error {
	if r.From.Active != r.To.Active {
		return fmt.Errorf("rule %q: from & to must either both be set, or neither", r.Name)
	}
	return nil
}

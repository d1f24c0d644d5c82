// Package schedule resolves an ordered list of time-of-day rules to a target
// setting for a given timestamp.
package schedule

import (
	"time"
)

// A Schedule is an ordered list of rules: Evaluate walks them in declaration
// order and the first matching rule wins.
type Schedule []Rule

// Evaluate returns the first rule matching ts. The second return value is
// false if no rule matches.
func (s Schedule) Evaluate(ts time.Time) (Rule, bool) {
	for _, rule := range s {
		if rule.matches(ts) {
			return rule, true
		}
	}
	return Rule{}, false
}

// Validate checks every rule's time window.
func (s Schedule) Validate() error {
	for _, rule := range s {
		if err := rule.validate(); err != nil {
			return err
		}
	}
	return nil
}

// Default returns the schedule used by rooms configured without one:
//
//	Monday – Friday            Saturday – Sunday
//	  Time       Temp            Time        Temp
//	6:30 am     20.0ºC          7:00 am     20.0ºC
//	8:30 am     16.0ºC          9:00 am     18.0ºC
//	4:30 pm     21.0ºC          4:00 pm     21.0ºC
//	10:30 pm    off             11:00 pm    off
func Default() Schedule {
	return Schedule{
		{Value: Setting{Temperature: 20}, Name: "wd morning", From: At(6, 30), To: At(8, 30), Days: Weekdays()},
		{Value: Setting{Temperature: 16}, Name: "wd day", From: At(8, 30), To: At(16, 30), Days: Weekdays()},
		{Value: Setting{Temperature: 21}, Name: "wd evening", From: At(16, 30), To: At(22, 30), Days: Weekdays()},
		{Value: Setting{Temperature: 20}, Name: "we morning", From: At(7, 0), To: At(9, 0), Days: Weekend()},
		{Value: Setting{Temperature: 18}, Name: "we day", From: At(9, 0), To: At(16, 0), Days: Weekend()},
		{Value: Setting{Temperature: 21}, Name: "evening", From: At(16, 0), To: At(23, 0), Days: Weekend()},
		{Value: Setting{Off: true}, Name: "sleep"},
	}
}

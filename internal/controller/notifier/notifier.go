// Package notifier informs the user of heating decisions: mode changes,
// boosts and boiler switches.
package notifier

type Notifier interface {
	Notify(msg string)
}

type Notifiers []Notifier

func (n Notifiers) Notify(msg string) {
	for _, l := range n {
		l.Notify(msg)
	}
}

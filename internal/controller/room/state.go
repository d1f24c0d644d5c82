package room

// State is a room's heating mode.
type State int

const (
	StateAuto State = iota
	StateAway
	StateManual
	StateValveBoost
	StateRoomBoost
	StateHouseBoost
)

func (s State) String() string {
	switch s {
	case StateAuto:
		return "auto"
	case StateAway:
		return "away"
	case StateManual:
		return "manual"
	case StateValveBoost:
		return "valve-boost"
	case StateRoomBoost:
		return "room-boost"
	case StateHouseBoost:
		return "house-boost"
	default:
		return "unknown"
	}
}

// Event drives a room from one State to another.
type Event int

const (
	EventAwayOn Event = iota
	EventAwayOff
	EventBoostAll
	EventCancelAll
	EventValveBoost
	EventRoomBoost
	EventManual
	EventAuto
)

func (e Event) String() string {
	switch e {
	case EventAwayOn:
		return "away-on"
	case EventAwayOff:
		return "away-off"
	case EventBoostAll:
		return "boost-all"
	case EventCancelAll:
		return "cancel-all"
	case EventValveBoost:
		return "valve-boost"
	case EventRoomBoost:
		return "room-boost"
	case EventManual:
		return "manual"
	case EventAuto:
		return "auto"
	default:
		return "unknown"
	}
}

// transitions lists the state changes per (state, event). Pairs not listed are
// self-loops, which makes the machine total by construction.
var transitions = map[State]map[Event]State{
	StateAuto: {
		EventAwayOn:     StateAway,
		EventBoostAll:   StateHouseBoost,
		EventValveBoost: StateValveBoost,
		EventRoomBoost:  StateRoomBoost,
	},
	StateAway: {
		EventAwayOff: StateAuto,
	},
	StateHouseBoost: {
		EventCancelAll:  StateAuto,
		EventValveBoost: StateValveBoost,
		EventRoomBoost:  StateRoomBoost,
		EventManual:     StateManual,
	},
	StateValveBoost: {
		EventManual: StateManual,
		EventAuto:   StateAuto,
	},
	StateManual: {
		EventAwayOn:     StateAway,
		EventValveBoost: StateValveBoost,
		EventManual:     StateManual,
		EventAuto:       StateAuto,
	},
	StateRoomBoost: {
		EventValveBoost: StateValveBoost,
		EventAuto:       StateAuto,
	},
}

// transition returns the state reached by applying event in state.
func transition(state State, event Event) State {
	if next, ok := transitions[state][event]; ok {
		return next
	}
	return state
}

package room

// Boost flag values reported by a valve.
const (
	boostUp   = "Up"
	boostDown = "Down"
)

// boostThreshold is the setpoint jump that identifies a boost initiated at
// the valve itself: pressing a valve's boost button raises (or lowers) its
// occupied setpoint well past this in one report.
const boostThreshold = 1.5

// boostDetector infers a valve-initiated boost from per-valve setpoint deltas
// and the reported boost flag. Once a boost is active, it is latched: entry
// conditions are not re-evaluated until the boost is cancelled or expires.
type boostDetector struct {
	delta  float64
	prev   map[string]float64
	active bool
	target float64
}

func newBoostDetector(valves []string, delta float64) *boostDetector {
	prev := make(map[string]float64, len(valves))
	for _, id := range valves {
		prev[id] = initialRoomTemp
	}
	return &boostDetector{delta: delta, prev: prev}
}

// observe processes a valve's reported setpoint and boost flag. A nil
// setpoint means the report did not carry one; the previous value is kept.
// It returns true when a new boost was started.
func (d *boostDetector) observe(valveID string, setpoint *float64, flag string, roomTemp float64) bool {
	delta := 0.0
	if setpoint != nil {
		delta = *setpoint - d.prev[valveID]
		d.prev[valveID] = *setpoint
	}
	if d.active {
		return false
	}
	switch {
	case delta > boostThreshold && flag == boostUp:
		d.active = true
		d.target = roomTemp + d.delta
	case delta < boostThreshold && flag == boostDown:
		d.active = true
		d.target = roomTemp - d.delta
	default:
		d.target = roomTemp
		return false
	}
	return true
}

// reset cancels an active boost.
func (d *boostDetector) reset() {
	d.active = false
}

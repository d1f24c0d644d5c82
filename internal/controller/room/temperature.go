package room

// Direction is the room temperature's trend since the last reading.
type Direction int

const (
	DirectionNone Direction = iota
	DirectionHeating
	DirectionCooling
)

func (d Direction) String() string {
	switch d {
	case DirectionHeating:
		return "heating"
	case DirectionCooling:
		return "cooling"
	default:
		return "none"
	}
}

const initialRoomTemp = 20.0

// aggregator combines the valves' temperature readings into a single room
// temperature: the weighted average over the valves that have reported so
// far, re-normalized on every update. With a single valve the aggregate is
// the raw reading.
type aggregator struct {
	weights      map[string]float64
	readings     map[string]float64
	weightedSum  float64
	activeWeight float64
	current      float64
	direction    Direction
}

func newAggregator(weights map[string]float64) *aggregator {
	return &aggregator{
		weights:  weights,
		readings: make(map[string]float64, len(weights)),
		current:  initialRoomTemp,
	}
}

// update records a valve's reading: it removes the valve's previous weighted
// contribution and adds the new one, so the aggregate stays the weighted
// average of the last-known readings.
func (a *aggregator) update(valveID string, temperature float64) {
	weight := a.weights[valveID]
	if prev, ok := a.readings[valveID]; ok {
		a.weightedSum -= prev * weight
	} else {
		a.activeWeight += weight
	}
	a.readings[valveID] = temperature
	a.weightedSum += temperature * weight

	prev := a.current
	a.current = a.weightedSum / a.activeWeight
	// an unchanged reading counts as heating, matching the reference
	// behavior: "not cooling" is taken as "heating continues".
	if prev > a.current {
		a.direction = DirectionCooling
	} else {
		a.direction = DirectionHeating
	}
}

func (a *aggregator) temperature() float64 {
	return a.current
}

func (a *aggregator) trend() Direction {
	return a.direction
}

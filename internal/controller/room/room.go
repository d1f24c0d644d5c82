// Package room implements the heating controller for a single room: it turns
// valve telemetry into a room temperature and a boost decision, resolves the
// target setpoint from the room's mode and schedule, and drives the valves.
package room

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/clambin/wiser-home/internal/actuator"
	"github.com/clambin/wiser-home/internal/configuration"
	"github.com/clambin/wiser-home/internal/schedule"
	"github.com/clambin/wiser-home/internal/telemetry"
	"github.com/clambin/wiser-home/pkg/scheduler"
	"golang.org/x/sync/errgroup"
)

// Config holds the room controller's constants.
type Config struct {
	// BoostDelta is the temperature offset applied by a valve boost
	BoostDelta float64
	// Hysteresis prevents rapid on/off cycling while the temperature is falling
	Hysteresis float64
	// FrostTemp is the setpoint while the schedule says "off"
	FrostTemp float64
	// ValveBoostDuration is how long a valve-initiated boost lasts
	ValveBoostDuration time.Duration
}

func DefaultConfig() Config {
	return Config{
		BoostDelta:         2.0,
		Hysteresis:         0.5,
		FrostTemp:          5.0,
		ValveBoostDuration: time.Hour,
	}
}

// BoostKind identifies which boost timer expired.
type BoostKind int

const (
	ValveBoost BoostKind = iota
	RoomBoost
)

// Expiry is sent on the expiration channel when a boost timer fires.
type Expiry struct {
	Room string
	Kind BoostKind
}

// A Room is driven by telemetry updates, external commands and schedule
// ticks. All methods must be called from a single goroutine (the home
// controller's event loop); only the valve write sequence is additionally
// guarded, so a telemetry-triggered write and a tick-triggered write can
// never interleave.
type Room struct {
	name      string
	schedule  schedule.Schedule
	weights   map[string]float64
	cfg       Config
	setter    actuator.Setter
	expired   chan<- Expiry
	logger    *slog.Logger
	temps     *aggregator
	detector  *boostDetector
	state     State
	setpoint  float64
	hasTarget bool
	heating   bool

	awayTemp      float64
	manualTemp    float64
	boostAllTemp  float64
	roomBoostTemp float64

	// last setpoint reported by each valve. Only telemetry updates these:
	// a sent command does not count as applied until the valve reports it.
	valveSetpoints map[string]float64

	valveBoostJob *scheduler.Job
	roomBoostJob  *scheduler.Job

	sendLock sync.Mutex
}

// New creates a Room from its configuration. A room configured without
// schedule rules gets the default weekly schedule.
func New(cfg configuration.RoomConfiguration, opts Config, setter actuator.Setter, expired chan<- Expiry, logger *slog.Logger) (*Room, error) {
	weights := make(map[string]float64, len(cfg.Valves))
	valveSetpoints := make(map[string]float64, len(cfg.Valves))
	valves := make([]string, 0, len(cfg.Valves))
	var weightSum float64
	for _, valve := range cfg.Valves {
		weights[valve.ID] = valve.Weight
		weightSum += valve.Weight
		valveSetpoints[valve.ID] = initialRoomTemp
		valves = append(valves, valve.ID)
	}
	if weightSum <= 0 {
		return nil, fmt.Errorf("room %q: valve weights must add up to a positive sum", cfg.Name)
	}
	s := cfg.Schedule
	if len(s) == 0 {
		s = schedule.Default()
	}
	return &Room{
		name:           cfg.Name,
		schedule:       s,
		weights:        weights,
		cfg:            opts,
		setter:         setter,
		expired:        expired,
		logger:         logger,
		temps:          newAggregator(weights),
		detector:       newBoostDetector(valves, opts.BoostDelta),
		valveSetpoints: valveSetpoints,
	}, nil
}

func (r *Room) Name() string {
	return r.name
}

// Snapshot is a room's reported state.
type Snapshot struct {
	Name        string   `json:"name"`
	Temperature float64  `json:"temperature"`
	Setpoint    *float64 `json:"setpoint,omitempty"`
	Heating     bool     `json:"heating"`
	Mode        string   `json:"mode"`
	Boost       bool     `json:"boost"`
}

func (r *Room) snapshot() Snapshot {
	s := Snapshot{
		Name:        r.name,
		Temperature: r.temps.temperature(),
		Heating:     r.heating,
		Mode:        r.state.String(),
		Boost:       r.detector.active,
	}
	if r.hasTarget {
		setpoint := r.setpoint
		s.Setpoint = &setpoint
	}
	return s
}

// HandleUpdate processes one valve state report: it updates the room
// temperature, feeds the boost detector and re-syncs the valves.
func (r *Room) HandleUpdate(ctx context.Context, update telemetry.Update) {
	if _, ok := r.weights[update.ValveID]; !ok {
		r.logger.Warn("valve is not linked to this room", slog.String("valve", update.ValveID))
		return
	}
	if t := update.Attributes.LocalTemperature; t != nil {
		r.temps.update(update.ValveID, *t)
		r.logger.Debug("room temperature updated",
			slog.Float64("temperature", r.temps.temperature()),
			slog.String("direction", r.temps.trend().String()),
		)
	}
	flag := "None"
	if update.Attributes.Boost != nil {
		flag = *update.Attributes.Boost
	}
	if sp := update.Attributes.OccupiedHeatingSetpoint; sp != nil {
		r.valveSetpoints[update.ValveID] = *sp
	}
	if started := r.detector.observe(update.ValveID, update.Attributes.OccupiedHeatingSetpoint, flag, r.temps.temperature()); started {
		if allowed(r.state, EventValveBoost) {
			r.apply(EventValveBoost)
			r.setpoint = r.detector.target
			r.hasTarget = true
			r.valveBoostJob = r.scheduleExpiry(ctx, ValveBoost, r.cfg.ValveBoostDuration)
		} else {
			// the current mode does not honor valve boosts
			r.detector.reset()
		}
	}
	r.determineHeating()
	r.syncValves(ctx)
}

// Tick resolves the room's target setpoint for the given time, recomputes the
// heat demand and syncs the valves.
func (r *Room) Tick(ctx context.Context, now time.Time) Snapshot {
	if target, ok := r.resolveTarget(now); ok {
		r.setpoint = target
		r.hasTarget = true
	}
	r.determineHeating()
	r.syncValves(ctx)
	return r.snapshot()
}

// resolveTarget returns the target setpoint for the room's current mode. The
// second return value is false when no target could be resolved (yet): the
// previous setpoint stays untouched.
func (r *Room) resolveTarget(now time.Time) (float64, bool) {
	switch r.state {
	case StateAuto, StateAway:
		rule, ok := r.schedule.Evaluate(now)
		if !ok {
			r.logger.Warn("no suitable value found in schedule, not changing set-points")
			return 0, false
		}
		target := rule.Value.Temperature
		if rule.Value.Off {
			target = r.cfg.FrostTemp
		}
		// away acts as a ceiling, not a floor
		if r.state == StateAway && target > r.awayTemp {
			target = r.awayTemp
		}
		return target, true
	case StateHouseBoost:
		return r.boostAllTemp, true
	case StateValveBoost:
		if !r.detector.active {
			return 0, false
		}
		return r.detector.target, true
	case StateManual:
		return r.manualTemp, true
	case StateRoomBoost:
		return r.roomBoostTemp, true
	default:
		return 0, false
	}
}

// determineHeating recomputes the room's heat demand from the current
// setpoint, temperature and trend.
func (r *Room) determineHeating() {
	if !r.hasTarget {
		r.heating = false
		return
	}
	switch r.temps.trend() {
	case DirectionHeating:
		r.heating = r.setpoint > r.temps.temperature()
	case DirectionCooling:
		r.heating = r.setpoint > r.temps.temperature()+r.cfg.Hysteresis
	default:
		r.heating = false
	}
}

// syncValves sends the current target to every valve whose last reported
// setpoint differs. During a valve boost the valve set its own target; we
// don't fight it.
func (r *Room) syncValves(ctx context.Context) {
	r.sendLock.Lock()
	defer r.sendLock.Unlock()

	if !r.hasTarget || r.state == StateValveBoost {
		return
	}
	target := r.setpoint
	g, gCtx := errgroup.WithContext(ctx)
	for id, reported := range r.valveSetpoints {
		if reported == target {
			continue
		}
		g.Go(func() error {
			if err := r.setter.SetValveTemperature(gCtx, id, target); err != nil {
				return fmt.Errorf("%s: %w", id, err)
			}
			return nil
		})
	}
	// no internal retry. the valve's reported setpoint stays stale, so the
	// next sync sends the target again.
	if err := g.Wait(); err != nil {
		r.logger.Error("failed to set valve temperature", slog.Any("err", err))
	}
}

// AwayOn puts the room in away mode, capping its setpoint at awayTemp.
func (r *Room) AwayOn(awayTemp float64) bool {
	r.awayTemp = awayTemp
	return r.apply(EventAwayOn)
}

// AwayOff returns the room to auto mode.
func (r *Room) AwayOff() bool {
	return r.apply(EventAwayOff)
}

// BoostAll handles a house-wide boost: the room holds the temperature it had
// when the boost was requested.
func (r *Room) BoostAll() bool {
	if !r.apply(EventBoostAll) {
		return false
	}
	r.boostAllTemp = r.temps.temperature()
	return true
}

// CancelAll cancels a house-wide boost.
func (r *Room) CancelAll() bool {
	return r.apply(EventCancelAll)
}

// SetManual sets a manual target temperature. Returns false when the current
// mode does not accept a manual setpoint.
func (r *Room) SetManual(temperature float64) bool {
	if !allowed(r.state, EventManual) {
		return false
	}
	r.manualTemp = temperature
	r.apply(EventManual)
	return true
}

// SetAuto returns the room to schedule control.
func (r *Room) SetAuto() bool {
	return r.apply(EventAuto)
}

// Boost raises the room to the requested temperature for the requested
// duration. A zero duration reverts to auto immediately, without scheduling
// a timer.
func (r *Room) Boost(ctx context.Context, temperature float64, duration time.Duration) bool {
	if !allowed(r.state, EventRoomBoost) {
		return false
	}
	if duration == 0 {
		r.apply(EventRoomBoost)
		r.apply(EventAuto)
		return true
	}
	r.roomBoostTemp = temperature
	r.apply(EventRoomBoost)
	r.roomBoostJob = r.scheduleExpiry(ctx, RoomBoost, duration)
	return true
}

// ExpireValveBoost ends a valve boost: the room's expiry timer fired.
func (r *Room) ExpireValveBoost() bool {
	if r.state != StateValveBoost {
		return false
	}
	r.logger.Info("valve boost expired")
	return r.apply(EventAuto)
}

// ExpireRoomBoost ends a room boost: the room's expiry timer fired.
func (r *Room) ExpireRoomBoost() bool {
	if r.state != StateRoomBoost {
		return false
	}
	r.logger.Info("boost expired")
	return r.apply(EventAuto)
}

// apply transitions the state machine. On leaving a boost state, the
// matching expiry timer is cancelled so a stale timer can never fire into
// the next mode.
func (r *Room) apply(event Event) bool {
	next := transition(r.state, event)
	if next == r.state {
		return false
	}
	if r.state == StateValveBoost {
		cancelJob(&r.valveBoostJob)
		r.detector.reset()
	}
	if r.state == StateRoomBoost {
		cancelJob(&r.roomBoostJob)
	}
	r.logger.Info("mode changed",
		slog.String("from", r.state.String()),
		slog.String("to", next.String()),
		slog.String("event", event.String()),
	)
	r.state = next
	return true
}

// allowed reports whether the state machine has an explicit transition for
// (state, event). Unlisted pairs are ignored events.
func allowed(state State, event Event) bool {
	_, ok := transitions[state][event]
	return ok
}

func (r *Room) scheduleExpiry(ctx context.Context, kind BoostKind, duration time.Duration) *scheduler.Job {
	return scheduler.Schedule(ctx, scheduler.RunFunc(func(taskCtx context.Context) error {
		// don't block forever if the event loop is already gone
		select {
		case r.expired <- Expiry{Room: r.name, Kind: kind}:
			return nil
		case <-taskCtx.Done():
			return taskCtx.Err()
		}
	}), duration, nil)
}

func cancelJob(job **scheduler.Job) {
	if *job != nil {
		(*job).Cancel()
		*job = nil
	}
}

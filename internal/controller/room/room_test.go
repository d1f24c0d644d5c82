package room

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/clambin/wiser-home/internal/configuration"
	"github.com/clambin/wiser-home/internal/schedule"
	"github.com/clambin/wiser-home/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	mondayMorning = time.Date(2024, time.March, 4, 7, 0, 0, 0, time.Local)
	mondayEvening = time.Date(2024, time.March, 4, 17, 0, 0, 0, time.Local)
	mondayNight   = time.Date(2024, time.March, 4, 23, 30, 0, 0, time.Local)
)

func makeRoom(t *testing.T, cfg configuration.RoomConfiguration) (*Room, *fakeSetter, chan Expiry) {
	t.Helper()
	f := fakeSetter{}
	expired := make(chan Expiry, 1)
	r, err := New(cfg, DefaultConfig(), &f, expired, slog.Default())
	require.NoError(t, err)
	return r, &f, expired
}

func loungeConfig() configuration.RoomConfiguration {
	return configuration.RoomConfiguration{
		Name: "lounge",
		Valves: []configuration.ValveConfiguration{
			{ID: "a", Weight: 1},
			{ID: "b", Weight: 1},
		},
	}
}

func temperatureUpdate(valveID string, temperature float64) telemetry.Update {
	return telemetry.Update{
		ValveID:    valveID,
		Attributes: telemetry.Attributes{LocalTemperature: varP(temperature)},
	}
}

func TestNew(t *testing.T) {
	_, _, _ = makeRoom(t, loungeConfig())

	// zero total valve weight is fatal at construction
	_, err := New(configuration.RoomConfiguration{
		Name:   "bad",
		Valves: []configuration.ValveConfiguration{{ID: "a", Weight: 0}},
	}, DefaultConfig(), &fakeSetter{}, nil, slog.Default())
	assert.Error(t, err)
}

// two equal-weighted valves report; the room follows the default schedule
func TestRoom_Tick(t *testing.T) {
	ctx := context.Background()
	r, f, _ := makeRoom(t, loungeConfig())

	r.HandleUpdate(ctx, temperatureUpdate("a", 18.0))
	assert.Equal(t, 18.0, r.temps.temperature())

	r.HandleUpdate(ctx, temperatureUpdate("b", 20.0))
	assert.Equal(t, 19.0, r.temps.temperature())
	assert.Equal(t, DirectionHeating, r.temps.trend())

	s := r.Tick(ctx, mondayMorning)
	assert.Equal(t, "lounge", s.Name)
	assert.Equal(t, 19.0, s.Temperature)
	require.NotNil(t, s.Setpoint)
	assert.Equal(t, 20.0, *s.Setpoint)
	assert.True(t, s.Heating)
	assert.Equal(t, "auto", s.Mode)

	// both valves still report the initial setpoint of 20: nothing to send
	assert.Empty(t, f.setpoints())

	// overnight the schedule is off: frost protection, no heat demand
	s = r.Tick(ctx, mondayNight)
	require.NotNil(t, s.Setpoint)
	assert.Equal(t, 5.0, *s.Setpoint)
	assert.False(t, s.Heating)
	assert.Equal(t, []setpoint{{"a", 5.0}, {"b", 5.0}}, f.setpoints())
}

func TestRoom_Tick_NoMatch(t *testing.T) {
	ctx := context.Background()
	cfg := loungeConfig()
	cfg.Schedule = schedule.Schedule{
		{Value: schedule.Setting{Temperature: 20}, From: schedule.At(6, 30), To: schedule.At(8, 30), Days: schedule.Weekdays()},
	}
	r, _, _ := makeRoom(t, cfg)

	// no rule matches and there is no previous setpoint
	s := r.Tick(ctx, mondayNight)
	assert.Nil(t, s.Setpoint)
	assert.False(t, s.Heating)

	// previous setpoint is retained once there is one
	s = r.Tick(ctx, mondayMorning)
	require.NotNil(t, s.Setpoint)
	assert.Equal(t, 20.0, *s.Setpoint)
	s = r.Tick(ctx, mondayNight)
	require.NotNil(t, s.Setpoint)
	assert.Equal(t, 20.0, *s.Setpoint)
}

func TestRoom_Away(t *testing.T) {
	ctx := context.Background()
	r, _, _ := makeRoom(t, loungeConfig())

	s := r.Tick(ctx, mondayEvening)
	require.NotNil(t, s.Setpoint)
	assert.Equal(t, 21.0, *s.Setpoint)

	// away temp caps the scheduled value
	assert.True(t, r.AwayOn(16.0))
	s = r.Tick(ctx, mondayEvening)
	assert.Equal(t, "away", s.Mode)
	require.NotNil(t, s.Setpoint)
	assert.Equal(t, 16.0, *s.Setpoint)

	// ... but is a ceiling, not a floor
	r.awayTemp = 30.0
	s = r.Tick(ctx, mondayEvening)
	require.NotNil(t, s.Setpoint)
	assert.Equal(t, 21.0, *s.Setpoint)

	// away off restores the schedule-derived target
	assert.True(t, r.AwayOff())
	s = r.Tick(ctx, mondayEvening)
	assert.Equal(t, "auto", s.Mode)
	require.NotNil(t, s.Setpoint)
	assert.Equal(t, 21.0, *s.Setpoint)
}

func TestRoom_Manual(t *testing.T) {
	ctx := context.Background()
	r, _, _ := makeRoom(t, loungeConfig())

	// auto does not accept a manual setpoint
	assert.False(t, r.SetManual(19.0))

	// house boost does
	assert.True(t, r.BoostAll())
	assert.True(t, r.SetManual(19.0))
	s := r.Tick(ctx, mondayEvening)
	assert.Equal(t, "manual", s.Mode)
	require.NotNil(t, s.Setpoint)
	assert.Equal(t, 19.0, *s.Setpoint)

	// a new manual setpoint replaces the old one
	assert.True(t, r.SetManual(18.0))
	s = r.Tick(ctx, mondayEvening)
	require.NotNil(t, s.Setpoint)
	assert.Equal(t, 18.0, *s.Setpoint)

	assert.True(t, r.SetAuto())
	s = r.Tick(ctx, mondayEvening)
	assert.Equal(t, "auto", s.Mode)
}

func TestRoom_HouseBoost(t *testing.T) {
	ctx := context.Background()
	r, _, _ := makeRoom(t, loungeConfig())
	r.HandleUpdate(ctx, temperatureUpdate("a", 19.5))
	r.HandleUpdate(ctx, temperatureUpdate("b", 19.5))

	// the room holds the temperature captured when the boost started
	assert.True(t, r.BoostAll())
	r.HandleUpdate(ctx, temperatureUpdate("a", 18.0))
	s := r.Tick(ctx, mondayEvening)
	assert.Equal(t, "house-boost", s.Mode)
	require.NotNil(t, s.Setpoint)
	assert.Equal(t, 19.5, *s.Setpoint)

	assert.True(t, r.CancelAll())
	s = r.Tick(ctx, mondayEvening)
	assert.Equal(t, "auto", s.Mode)
}

func TestRoom_Boost(t *testing.T) {
	ctx := context.Background()
	r, _, expired := makeRoom(t, loungeConfig())

	assert.True(t, r.Boost(ctx, 22.0, 50*time.Millisecond))
	s := r.Tick(ctx, mondayEvening)
	assert.Equal(t, "room-boost", s.Mode)
	require.NotNil(t, s.Setpoint)
	assert.Equal(t, 22.0, *s.Setpoint)

	// a second boost request while boosting is ignored
	assert.False(t, r.Boost(ctx, 25.0, time.Hour))

	select {
	case e := <-expired:
		assert.Equal(t, Expiry{Room: "lounge", Kind: RoomBoost}, e)
	case <-time.After(time.Second):
		t.Fatal("boost did not expire")
	}
	assert.True(t, r.ExpireRoomBoost())
	s = r.Tick(ctx, mondayEvening)
	assert.Equal(t, "auto", s.Mode)
}

func TestRoom_Boost_ZeroDuration(t *testing.T) {
	ctx := context.Background()
	r, _, _ := makeRoom(t, loungeConfig())

	// zero duration: straight back to auto, no timer scheduled
	assert.True(t, r.Boost(ctx, 22.0, 0))
	assert.Equal(t, StateAuto, r.state)
	assert.Nil(t, r.roomBoostJob)
}

func TestRoom_ValveBoost(t *testing.T) {
	ctx := context.Background()
	r, f, _ := makeRoom(t, loungeConfig())
	r.HandleUpdate(ctx, temperatureUpdate("a", 18.0))
	r.HandleUpdate(ctx, temperatureUpdate("b", 18.0))

	// the user turns valve "a" up well past the boost threshold
	r.HandleUpdate(ctx, telemetry.Update{
		ValveID: "a",
		Attributes: telemetry.Attributes{
			OccupiedHeatingSetpoint: varP(22.0),
			Boost:                   varP(boostUp),
		},
	})
	s := r.Tick(ctx, mondayEvening)
	assert.Equal(t, "valve-boost", s.Mode)
	assert.True(t, s.Boost)
	require.NotNil(t, s.Setpoint)
	assert.Equal(t, 20.0, *s.Setpoint) // room temp 18 + 2

	// during a valve boost the controller does not fight the valve
	assert.Empty(t, f.setpoints())

	// a latched boost is not re-triggered
	r.HandleUpdate(ctx, telemetry.Update{
		ValveID: "a",
		Attributes: telemetry.Attributes{
			OccupiedHeatingSetpoint: varP(26.0),
			Boost:                   varP(boostUp),
		},
	})
	s = r.Tick(ctx, mondayEvening)
	require.NotNil(t, s.Setpoint)
	assert.Equal(t, 20.0, *s.Setpoint)

	assert.True(t, r.ExpireValveBoost())
	s = r.Tick(ctx, mondayEvening)
	assert.Equal(t, "auto", s.Mode)
	assert.False(t, s.Boost)
}

func TestRoom_ValveBoost_IgnoredWhileAway(t *testing.T) {
	ctx := context.Background()
	r, _, _ := makeRoom(t, loungeConfig())
	require.True(t, r.AwayOn(16.0))

	r.HandleUpdate(ctx, telemetry.Update{
		ValveID: "a",
		Attributes: telemetry.Attributes{
			OccupiedHeatingSetpoint: varP(25.0),
			Boost:                   varP(boostUp),
		},
	})
	assert.Equal(t, StateAway, r.state)
	// the detector was reset, so the boost did not latch
	assert.False(t, r.detector.active)
}

func TestRoom_UnknownValve(t *testing.T) {
	ctx := context.Background()
	r, _, _ := makeRoom(t, loungeConfig())

	r.HandleUpdate(ctx, temperatureUpdate("intruder", 25.0))
	assert.Equal(t, initialRoomTemp, r.temps.temperature())
}

type setpoint struct {
	valveID     string
	temperature float64
}

func TestRoom_ExpiryAfterShutdown(t *testing.T) {
	// nobody reads the expiry channel anymore
	expired := make(chan Expiry)
	r, err := New(loungeConfig(), DefaultConfig(), &fakeSetter{}, expired, slog.Default())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	job := r.scheduleExpiry(ctx, RoomBoost, time.Millisecond)

	// let the timer fire and the send block, then shut down
	time.Sleep(50 * time.Millisecond)
	cancel()

	assert.Eventually(t, func() bool {
		done, _ := job.Done()
		return done
	}, time.Second, 10*time.Millisecond)
}

type fakeSetter struct {
	sent []setpoint
	lock sync.Mutex
}

func (f *fakeSetter) SetValveTemperature(_ context.Context, valveID string, temperature float64) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.sent = append(f.sent, setpoint{valveID: valveID, temperature: temperature})
	return nil
}

func (f *fakeSetter) setpoints() []setpoint {
	f.lock.Lock()
	defer f.lock.Unlock()
	sent := make([]setpoint, len(f.sent))
	copy(sent, f.sent)
	sort.Slice(sent, func(i, j int) bool { return sent[i].valveID < sent[j].valveID })
	return sent
}

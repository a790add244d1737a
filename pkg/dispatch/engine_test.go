package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aerocoord/fleetcoord/pkg/logger"
	"github.com/aerocoord/fleetcoord/pkg/models"
	"github.com/aerocoord/fleetcoord/pkg/registry"
)

var errChannelDown = errors.New("channel down")

// stubChannel fails for the drone ids listed in failFor.
type stubChannel struct {
	name    string
	failFor map[string]bool

	mu    sync.Mutex
	sends []string
}

func (c *stubChannel) Name() string { return c.name }

func (c *stubChannel) Send(_ context.Context, target *models.DroneRecord, _ *models.MissionPayload) error {
	c.mu.Lock()
	c.sends = append(c.sends, target.ID)
	c.mu.Unlock()

	if c.failFor[target.ID] {
		return errChannelDown
	}

	return nil
}

type fakeMissionRegistry struct {
	mu       sync.Mutex
	drones   map[string]*models.DroneRecord
	statuses map[string]models.MissionStatus
}

func newFakeMissionRegistry(ids ...string) *fakeMissionRegistry {
	f := &fakeMissionRegistry{
		drones:   make(map[string]*models.DroneRecord),
		statuses: make(map[string]models.MissionStatus),
	}

	for _, id := range ids {
		f.drones[id] = &models.DroneRecord{ID: id, Endpoint: "http://" + id}
	}

	return f
}

func (f *fakeMissionRegistry) GetDrone(id string) (*models.DroneRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rec, ok := f.drones[id]
	if !ok {
		return nil, registry.ErrDroneNotFound
	}

	return rec.Clone(), nil
}

func (f *fakeMissionRegistry) SetMissionStatus(_ context.Context, id, missionID string, status models.MissionStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.drones[id]; !ok {
		return registry.ErrDroneNotFound
	}

	f.statuses[id+"/"+missionID] = status

	if f.drones[id].Missions == nil {
		f.drones[id].Missions = make(map[string]*models.MissionState)
	}

	f.drones[id].Missions[missionID] = &models.MissionState{Status: status, UpdatedAt: time.Now()}

	return nil
}

func newTestEngine(direct, broadcast CommandChannel, reg MissionRegistry, controller FlightController) *Engine {
	return NewEngine(direct, broadcast, reg, controller, nil, logger.NewTestLogger())
}

func TestDispatchReconciliation(t *testing.T) {
	tests := []struct {
		name          string
		directFail    bool
		broadcastFail bool
		want          models.MissionStatus
	}{
		{name: "direct ok is authoritative", broadcastFail: true, want: models.MissionAccepted},
		{name: "broadcast only is unconfirmed", directFail: true, want: models.MissionSent},
		{name: "both ok prefers direct", want: models.MissionAccepted},
		{name: "both failed", directFail: true, broadcastFail: true, want: models.MissionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := newFakeMissionRegistry("d1")
			direct := &stubChannel{name: ChannelDirect, failFor: map[string]bool{"d1": tt.directFail}}
			broadcast := &stubChannel{name: ChannelBroadcast, failFor: map[string]bool{"d1": tt.broadcastFail}}

			engine := newTestEngine(direct, broadcast, reg, nil)
			outcomes := engine.Dispatch(context.Background(), "m1", []string{"d1"}, &models.MissionPayload{MissionID: "m1"})

			require.Len(t, outcomes, 1)
			outcome := outcomes["d1"]
			require.NotNil(t, outcome)

			assert.Equal(t, tt.want, outcome.Status)
			assert.Equal(t, !tt.directFail, outcome.Channels[ChannelDirect].OK)
			assert.Equal(t, !tt.broadcastFail, outcome.Channels[ChannelBroadcast].OK)
			assert.Equal(t, tt.want, reg.statuses["d1/m1"])

			if tt.directFail && tt.broadcastFail {
				assert.Contains(t, outcome.Channels[ChannelDirect].Detail, "channel down")
				assert.Contains(t, outcome.Channels[ChannelBroadcast].Detail, "channel down")
			}
		})
	}
}

func TestDispatchOutcomesAreIndependent(t *testing.T) {
	reg := newFakeMissionRegistry("a", "b", "c")

	// Drone a fails on both channels; b and c must be unaffected.
	direct := &stubChannel{name: ChannelDirect, failFor: map[string]bool{"a": true}}
	broadcast := &stubChannel{name: ChannelBroadcast, failFor: map[string]bool{"a": true}}

	engine := newTestEngine(direct, broadcast, reg, nil)
	outcomes := engine.Dispatch(context.Background(), "m1", []string{"a", "b", "c"}, &models.MissionPayload{MissionID: "m1"})

	require.Len(t, outcomes, 3, "outcome map is always complete")
	assert.Equal(t, models.MissionFailed, outcomes["a"].Status)
	assert.Equal(t, models.MissionAccepted, outcomes["b"].Status)
	assert.Equal(t, models.MissionAccepted, outcomes["c"].Status)
}

func TestDispatchToUnknownDroneStillBroadcasts(t *testing.T) {
	reg := newFakeMissionRegistry() // empty
	direct := &stubChannel{name: ChannelDirect, failFor: map[string]bool{"ghost": true}}
	broadcast := &stubChannel{name: ChannelBroadcast}

	engine := newTestEngine(direct, broadcast, reg, nil)
	outcomes := engine.Dispatch(context.Background(), "m1", []string{"ghost"}, &models.MissionPayload{MissionID: "m1"})

	require.Len(t, outcomes, 1)
	assert.Equal(t, models.MissionSent, outcomes["ghost"].Status)
	assert.Equal(t, []string{"ghost"}, broadcast.sends)
}

func TestNullChannelAlwaysFails(t *testing.T) {
	null := NewNullChannel(ChannelBroadcast)

	err := null.Send(context.Background(), &models.DroneRecord{ID: "d1"}, &models.MissionPayload{})
	assert.ErrorIs(t, err, ErrChannelUnavailable)
	assert.Equal(t, ChannelBroadcast, null.Name())
}

func TestGetMissionStatus(t *testing.T) {
	reg := newFakeMissionRegistry("d1")
	engine := newTestEngine(&stubChannel{name: ChannelDirect}, &stubChannel{name: ChannelBroadcast}, reg, nil)

	assert.Nil(t, engine.GetMissionStatus("d1"), "no mission history yet")
	assert.Nil(t, engine.GetMissionStatus("ghost"))

	engine.Dispatch(context.Background(), "m1", []string{"d1"}, &models.MissionPayload{MissionID: "m1"})

	status := engine.GetMissionStatus("d1")
	require.NotNil(t, status)
	assert.Equal(t, models.MissionAccepted, *status)
}

type fakeController struct {
	mu   sync.Mutex
	cmds []models.EmergencyCommand
	err  error
}

func (f *fakeController) Execute(_ context.Context, _ string, cmd models.EmergencyCommand) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.cmds = append(f.cmds, cmd)

	return f.err
}

func TestSendEmergencyCommand(t *testing.T) {
	reg := newFakeMissionRegistry("d1")

	t.Run("capability absent reports false", func(t *testing.T) {
		engine := newTestEngine(&stubChannel{name: ChannelDirect}, &stubChannel{name: ChannelBroadcast}, reg, nil)
		assert.False(t, engine.SendEmergencyCommand(context.Background(), "d1", models.CommandLand))
	})

	t.Run("unknown drone reports false", func(t *testing.T) {
		engine := newTestEngine(&stubChannel{name: ChannelDirect}, &stubChannel{name: ChannelBroadcast}, reg, &fakeController{})
		assert.False(t, engine.SendEmergencyCommand(context.Background(), "ghost", models.CommandLand))
	})

	t.Run("controller failure reports false", func(t *testing.T) {
		controller := &fakeController{err: errChannelDown}
		engine := newTestEngine(&stubChannel{name: ChannelDirect}, &stubChannel{name: ChannelBroadcast}, reg, controller)
		assert.False(t, engine.SendEmergencyCommand(context.Background(), "d1", models.CommandDisarm))
	})

	t.Run("success", func(t *testing.T) {
		controller := &fakeController{}
		engine := newTestEngine(&stubChannel{name: ChannelDirect}, &stubChannel{name: ChannelBroadcast}, reg, controller)

		assert.True(t, engine.SendEmergencyCommand(context.Background(), "d1", models.CommandReturnToLaunch))
		assert.Equal(t, []models.EmergencyCommand{models.CommandReturnToLaunch}, controller.cmds)
	})
}

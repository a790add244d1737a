/*
 * Copyright 2025 Aerocoord Systems.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package dispatch delivers mission payloads to drones over two
// independent channels and reconciles the outcomes.
package dispatch

import (
	"context"
	"sync"

	"github.com/aerocoord/fleetcoord/pkg/logger"
	"github.com/aerocoord/fleetcoord/pkg/models"
)

// MissionRegistry is the slice of the registry the engine needs.
type MissionRegistry interface {
	GetDrone(id string) (*models.DroneRecord, error)
	SetMissionStatus(ctx context.Context, id, missionID string, status models.MissionStatus) error
}

// FlightController is the optional hardware-control capability behind the
// emergency path. A nil controller means the capability is absent.
type FlightController interface {
	Execute(ctx context.Context, endpoint string, cmd models.EmergencyCommand) error
}

// EventSink mirrors the hub's publish surface for mission status events.
type EventSink interface {
	PublishEvent(eventType string, payload interface{})
}

// Engine fans a mission out to a set of drones. Per drone, the direct and
// broadcast attempts run concurrently; both complete before that drone's
// outcome is reconciled.
type Engine struct {
	direct     CommandChannel
	broadcast  CommandChannel
	registry   MissionRegistry
	controller FlightController
	events     EventSink
	logger     logger.Logger
}

// NewEngine wires the two channels. Pass NullChannel for any transport
// that could not be constructed; controller and events may be nil.
func NewEngine(direct, broadcast CommandChannel, reg MissionRegistry,
	controller FlightController, events EventSink, log logger.Logger) *Engine {
	return &Engine{
		direct:     direct,
		broadcast:  broadcast,
		registry:   reg,
		controller: controller,
		events:     events,
		logger:     log.WithComponent("dispatch"),
	}
}

// Dispatch sends the mission to every drone in droneIDs and returns a
// complete outcome map. Failure for one drone never aborts or delays
// delivery to the others.
func (e *Engine) Dispatch(ctx context.Context, missionID string, droneIDs []string, mission *models.MissionPayload) map[string]*models.DispatchOutcome {
	outcomes := make(map[string]*models.DispatchOutcome, len(droneIDs))

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)

	for _, droneID := range droneIDs {
		wg.Add(1)

		go func(id string) {
			defer wg.Done()

			outcome := e.dispatchOne(ctx, missionID, id, mission)

			mu.Lock()
			outcomes[id] = outcome
			mu.Unlock()
		}(droneID)
	}

	wg.Wait()

	if e.events != nil {
		e.events.PublishEvent(models.TopicMissions, map[string]interface{}{
			"mission_id": missionID,
			"outcomes":   outcomes,
		})
	}

	return outcomes
}

// dispatchOne runs both channel attempts for a single drone and
// reconciles them into one outcome.
func (e *Engine) dispatchOne(ctx context.Context, missionID, droneID string, mission *models.MissionPayload) *models.DispatchOutcome {
	target, err := e.registry.GetDrone(droneID)
	if err != nil {
		// Unknown to the registry: the broadcast channel can still reach
		// it, the direct channel cannot.
		target = &models.DroneRecord{ID: droneID}
	}

	var (
		wg                      sync.WaitGroup
		directErr, broadcastErr error
	)

	wg.Add(2)

	go func() {
		defer wg.Done()

		directErr = e.direct.Send(ctx, target, mission)
	}()

	go func() {
		defer wg.Done()

		broadcastErr = e.broadcast.Send(ctx, target, mission)
	}()

	wg.Wait()

	outcome := reconcile(droneID, directErr, broadcastErr)

	if err := e.registry.SetMissionStatus(ctx, droneID, missionID, outcome.Status); err != nil {
		e.logger.Debug().Err(err).Str("drone_id", droneID).Msg("Could not record mission status")
	}

	e.logger.Info().
		Str("mission_id", missionID).
		Str("drone_id", droneID).
		Str("status", string(outcome.Status)).
		Msg("Dispatch attempt reconciled")

	return outcome
}

// reconcile folds the two channel results into one status. The direct
// result is authoritative when it succeeds (the drone confirmed receipt);
// a lone broadcast success is optimistic and stays unconfirmed.
func reconcile(droneID string, directErr, broadcastErr error) *models.DispatchOutcome {
	outcome := &models.DispatchOutcome{
		DroneID: droneID,
		Channels: map[string]models.ChannelResult{
			ChannelDirect:    channelResult(directErr),
			ChannelBroadcast: channelResult(broadcastErr),
		},
	}

	switch {
	case directErr == nil:
		outcome.Status = models.MissionAccepted
	case broadcastErr == nil:
		outcome.Status = models.MissionSent
	default:
		outcome.Status = models.MissionFailed
	}

	return outcome
}

func channelResult(err error) models.ChannelResult {
	if err != nil {
		return models.ChannelResult{OK: false, Detail: err.Error()}
	}

	return models.ChannelResult{OK: true}
}

// GetMissionStatus returns the status of the drone's most recently
// updated mission, or nil when the drone has no mission history.
func (e *Engine) GetMissionStatus(droneID string) *models.MissionStatus {
	rec, err := e.registry.GetDrone(droneID)
	if err != nil {
		return nil
	}

	var (
		latest     *models.MissionState
		latestSeen bool
	)

	for _, mission := range rec.Missions {
		if !latestSeen || mission.UpdatedAt.After(latest.UpdatedAt) {
			latest = mission
			latestSeen = true
		}
	}

	if !latestSeen {
		return nil
	}

	status := latest.Status

	return &status
}

// SendEmergencyCommand bypasses the normal dispatch channels and talks
// directly to flight-control hardware. Absence of the capability is a
// reported false, never a raised error: emergency paths degrade
// gracefully rather than crash the coordinator.
func (e *Engine) SendEmergencyCommand(ctx context.Context, droneID string, cmd models.EmergencyCommand) bool {
	if e.controller == nil {
		e.logger.Warn().Str("drone_id", droneID).Msg("Flight-control capability unavailable")
		return false
	}

	rec, err := e.registry.GetDrone(droneID)
	if err != nil {
		e.logger.Warn().Err(err).Str("drone_id", droneID).Msg("Emergency command for unknown drone")
		return false
	}

	if err := e.controller.Execute(ctx, rec.Endpoint, cmd); err != nil {
		e.logger.Error().Err(err).
			Str("drone_id", droneID).
			Str("command", string(cmd)).
			Msg("Emergency command failed")

		return false
	}

	e.logger.Info().Str("drone_id", droneID).Str("command", string(cmd)).Msg("Emergency command executed")

	return true
}

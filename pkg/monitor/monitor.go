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

// Package monitor derives operational decisions from fleet state on a
// fixed period.
package monitor

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/aerocoord/fleetcoord/pkg/logger"
	"github.com/aerocoord/fleetcoord/pkg/models"
)

// Config holds scan cadence and policy thresholds.
type Config struct {
	ScanInterval      time.Duration
	BatteryThreshold  float64
	HeartbeatTimeout  time.Duration
	RouteRadiusMeters float64
	MissionStaleAfter time.Duration
	OfflineAfter      time.Duration
}

// Monitor scans the registry and telemetry cache on a timer and emits
// decisions for policy violations. Recurrence across scans is expected;
// consumers debounce if they care.
type Monitor struct {
	config    Config
	fleet     FleetSource
	telemetry TelemetrySource
	commander EmergencyCommander
	sink      DecisionSink
	clock     Clock
	logger    logger.Logger
	scanning  atomic.Bool
}

// New builds a monitor. Commander and sink may be nil; scans then only
// log their findings.
func New(config Config, fleet FleetSource, telemetry TelemetrySource,
	commander EmergencyCommander, sink DecisionSink, log logger.Logger) *Monitor {
	return &Monitor{
		config:    config,
		fleet:     fleet,
		telemetry: telemetry,
		commander: commander,
		sink:      sink,
		clock:     realClock{},
		logger:    log.WithComponent("monitor"),
	}
}

// SetClock overrides the time source. Used by tests.
func (m *Monitor) SetClock(clock Clock) { m.clock = clock }

// Run drives timer-triggered scans until the context is canceled. There
// are no manual transitions: the monitor is either idle or scanning.
func (m *Monitor) Run(ctx context.Context) {
	ticker := m.clock.Ticker(m.config.ScanInterval)
	defer ticker.Stop()

	m.logger.Info().Dur("interval", m.config.ScanInterval).Msg("Monitor started")

	for {
		select {
		case <-ctx.Done():
			m.logger.Info().Msg("Monitor stopped")
			return
		case <-ticker.Chan():
			m.Scan(ctx)
		}
	}
}

// Scan runs one evaluation cycle: staleness sweeps first, then policy
// checks over a point-in-time snapshot. Overlapping scans are skipped
// rather than queued.
func (m *Monitor) Scan(ctx context.Context) []models.Decision {
	if !m.scanning.CompareAndSwap(false, true) {
		return nil
	}
	defer m.scanning.Store(false)

	m.fleet.MarkOfflineIfStale(ctx, m.config.OfflineAfter)
	m.fleet.MarkMissionsStale(ctx, m.config.MissionStaleAfter)

	drones := m.fleet.ListDrones()
	telemetry := m.telemetry.Snapshot()
	now := m.clock.Now()

	var decisions []models.Decision

	for id, rec := range drones {
		decisions = append(decisions, m.evaluateDrone(now, id, rec, telemetry[id])...)
	}

	for i := range decisions {
		m.emit(&decisions[i])
	}

	m.logger.Debug().
		Int("drones", len(drones)).
		Int("decisions", len(decisions)).
		Msg("Scan complete")

	return decisions
}

func (m *Monitor) evaluateDrone(now time.Time, id string, rec *models.DroneRecord,
	telemetry map[string]interface{}) []models.Decision {
	var out []models.Decision

	if battery, ok := batteryLevel(rec, telemetry); ok && battery < m.config.BatteryThreshold {
		out = append(out, m.newDecision(models.DecisionLowBattery, id, "",
			fmt.Sprintf("battery at %.0f%%, below threshold %.0f%%", battery, m.config.BatteryThreshold),
			0.9, batterySeverity(battery)))
	}

	if staleness := now.Sub(rec.LastSeen); staleness > m.config.HeartbeatTimeout {
		out = append(out, m.newDecision(models.DecisionStaleHeartbeat, id, "",
			fmt.Sprintf("no signal for %s, timeout is %s", staleness.Round(time.Second), m.config.HeartbeatTimeout),
			heartbeatConfidence(staleness, m.config.HeartbeatTimeout),
			heartbeatSeverity(staleness, m.config.HeartbeatTimeout)))
	}

	if decision, ok := m.checkRoute(id, rec); ok {
		out = append(out, decision)
	}

	return out
}

// checkRoute flags drones with an active mission that have strayed beyond
// the configured radius from their planned search center.
func (m *Monitor) checkRoute(id string, rec *models.DroneRecord) (models.Decision, bool) {
	if rec.Position == nil {
		return models.Decision{}, false
	}

	missionID, active := activeMission(rec)
	if !active {
		return models.Decision{}, false
	}

	center, ok := plannedCenter(rec.Attributes)
	if !ok {
		return models.Decision{}, false
	}

	distance := haversineMeters(rec.Position.Lat, rec.Position.Lon, center.Lat, center.Lon)
	if distance <= m.config.RouteRadiusMeters {
		return models.Decision{}, false
	}

	return m.newDecision(models.DecisionOffRoute, id, missionID,
		fmt.Sprintf("%.0fm from planned center, allowed radius %.0fm", distance, m.config.RouteRadiusMeters),
		0.8, models.SeverityWarning), true
}

func (m *Monitor) newDecision(dtype models.DecisionType, droneID, missionID, reasoning string,
	confidence float64, severity models.Severity) models.Decision {
	return models.Decision{
		ID:         uuid.New().String(),
		Type:       dtype,
		DroneID:    droneID,
		MissionID:  missionID,
		Reasoning:  reasoning,
		Confidence: confidence,
		Severity:   severity,
		CreatedAt:  m.clock.Now(),
	}
}

func (m *Monitor) emit(decision *models.Decision) {
	m.logger.Info().
		Str("decision_id", decision.ID).
		Str("type", string(decision.Type)).
		Str("drone_id", decision.DroneID).
		Str("severity", string(decision.Severity)).
		Msg(decision.Reasoning)

	if m.sink != nil {
		m.sink.PublishEvent(models.TopicDecisions, *decision)
	}
}

// ApplyDecision translates an operator-approved decision into a concrete
// action. Only emergency_rtl acts today; other types are accepted as
// no-ops until policy catches up. Never raises outward.
func (m *Monitor) ApplyDecision(ctx context.Context, decision *models.Decision) bool {
	switch decision.Type {
	case models.DecisionEmergencyRTL:
		if m.commander == nil {
			m.logger.Warn().Str("decision_id", decision.ID).Msg("No emergency commander wired")
			return false
		}

		return m.commander.SendEmergencyCommand(ctx, decision.DroneID, models.CommandReturnToLaunch)
	default:
		m.logger.Info().
			Str("decision_id", decision.ID).
			Str("type", string(decision.Type)).
			Msg("Decision acknowledged, no automated action")

		return true
	}
}

func batteryLevel(rec *models.DroneRecord, telemetry map[string]interface{}) (float64, bool) {
	if v, ok := numericField(rec.Attributes, models.AttrBatteryLevel); ok {
		return v, true
	}

	for _, key := range []string{models.AttrBatteryLevel, "battery"} {
		if v, ok := numericField(telemetry, key); ok {
			return v, true
		}
	}

	return 0, false
}

func numericField(fields map[string]interface{}, key string) (float64, bool) {
	if fields == nil {
		return 0, false
	}

	switch v := fields[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

// activeMission returns the drone's most recently updated mission still
// in flight.
func activeMission(rec *models.DroneRecord) (string, bool) {
	var (
		latestID string
		latestAt time.Time
	)

	for id, mission := range rec.Missions {
		inFlight := mission.Status == models.MissionSent || mission.Status == models.MissionAccepted
		if inFlight && (latestID == "" || mission.UpdatedAt.After(latestAt)) {
			latestID = id
			latestAt = mission.UpdatedAt
		}
	}

	return latestID, latestID != ""
}

// plannedCenter reads the planned_center attribute, tolerating either a
// typed Position or the raw {lat, lon} map JSON round-trips produce.
func plannedCenter(attributes map[string]interface{}) (models.Position, bool) {
	switch v := attributes[models.AttrPlannedCenter].(type) {
	case models.Position:
		return v, true
	case *models.Position:
		if v != nil {
			return *v, true
		}

		return models.Position{}, false
	case map[string]interface{}:
		lat, latOK := numericField(v, "lat")
		lon, lonOK := numericField(v, "lon")

		if latOK && lonOK {
			return models.Position{Lat: lat, Lon: lon}, true
		}

		return models.Position{}, false
	default:
		return models.Position{}, false
	}
}

func batterySeverity(battery float64) models.Severity {
	if battery < 10 {
		return models.SeverityCritical
	}

	return models.SeverityWarning
}

// heartbeatSeverity escalates with how far past the timeout the silence
// has run.
func heartbeatSeverity(staleness, timeout time.Duration) models.Severity {
	if staleness > 3*timeout {
		return models.SeverityCritical
	}

	return models.SeverityWarning
}

func heartbeatConfidence(staleness, timeout time.Duration) float64 {
	confidence := 0.6 + 0.1*float64(staleness/timeout)
	if confidence > 0.95 {
		confidence = 0.95
	}

	return confidence
}

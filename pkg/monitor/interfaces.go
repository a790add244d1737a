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

package monitor

import (
	"context"
	"time"

	"github.com/aerocoord/fleetcoord/pkg/models"
)

// Clock abstracts time-related operations so scans run deterministically
// in tests.
type Clock interface {
	Now() time.Time
	Ticker(d time.Duration) Ticker
}

// Ticker abstracts the ticker behavior.
type Ticker interface {
	Chan() <-chan time.Time
	Stop()
}

// FleetSource is the registry surface a scan reads, plus the staleness
// sweeps the monitor drives on each cycle.
type FleetSource interface {
	ListDrones() map[string]*models.DroneRecord
	MarkOfflineIfStale(ctx context.Context, threshold time.Duration)
	MarkMissionsStale(ctx context.Context, threshold time.Duration)
}

// TelemetrySource is the cache surface a scan reads.
type TelemetrySource interface {
	Snapshot() map[string]map[string]interface{}
}

// EmergencyCommander triggers the abstract emergency-command capability.
// The dispatch engine implements it.
type EmergencyCommander interface {
	SendEmergencyCommand(ctx context.Context, droneID string, cmd models.EmergencyCommand) bool
}

// DecisionSink receives every emitted decision. The hub implements it.
type DecisionSink interface {
	PublishEvent(eventType string, payload interface{})
}

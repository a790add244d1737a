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

package hub

import (
	"context"
	"time"

	"github.com/aerocoord/fleetcoord/pkg/models"
)

// FleetReader is the registry surface the state pusher composes from.
type FleetReader interface {
	ListDrones() map[string]*models.DroneRecord
}

// TelemetryReader is the cache surface the state pusher composes from.
type TelemetryReader interface {
	Snapshot() map[string]map[string]interface{}
}

// StatePusher periodically composes the telemetry cache and registry
// status into one message per broadcast cycle on the telemetry topic.
type StatePusher struct {
	hub       *Hub
	fleet     FleetReader
	telemetry TelemetryReader
	interval  time.Duration
}

// NewStatePusher wires the periodic full-state push.
func NewStatePusher(h *Hub, fleet FleetReader, telemetry TelemetryReader, interval time.Duration) *StatePusher {
	return &StatePusher{hub: h, fleet: fleet, telemetry: telemetry, interval: interval}
}

// Run pushes until the context is canceled.
func (p *StatePusher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.PushOnce()
		}
	}
}

// PushOnce broadcasts one composed fleet-state message.
func (p *StatePusher) PushOnce() {
	state := models.FleetState{
		Drones:    p.fleet.ListDrones(),
		Telemetry: p.telemetry.Snapshot(),
		Timestamp: time.Now(),
	}

	p.hub.BroadcastToTopic(models.TopicTelemetry, state)
}

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

package models

import (
	"time"
)

// DroneStatus captures registry liveness for a drone. It is derived from
// observed signals, never set directly by callers outside the staleness sweep.
type DroneStatus string

const (
	DroneOnline  DroneStatus = "online"
	DroneOffline DroneStatus = "offline"
)

// MissionStatus tracks per-drone delivery state of a dispatched mission.
type MissionStatus string

const (
	MissionQueued   MissionStatus = "queued"
	MissionSent     MissionStatus = "sent"
	MissionAccepted MissionStatus = "accepted"
	MissionStale    MissionStatus = "stale"
	MissionFailed   MissionStatus = "failed"
)

// Well-known extension attribute keys. The attribute map is open-ended, but
// these keys form a stable sub-schema consumed by the monitor.
const (
	AttrBatteryLevel   = "battery_level"
	AttrHeading        = "heading"
	AttrSpeed          = "speed"
	AttrSignalStrength = "signal_strength"
	AttrPlannedCenter  = "planned_center"
)

// Position is a last-known fix. Altitude is meters above mean sea level.
type Position struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
	Alt float64 `json:"alt,omitempty"`
}

// MissionState is one entry in a drone's mission map.
type MissionState struct {
	Status    MissionStatus `json:"status"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// DroneRecord is the registry's authoritative view of a single drone.
type DroneRecord struct {
	ID         string                   `json:"id"`
	Endpoint   string                   `json:"endpoint,omitempty"`
	Status     DroneStatus              `json:"status"`
	LastSeen   time.Time                `json:"last_seen"`
	Position   *Position                `json:"position,omitempty"`
	Attributes map[string]interface{}   `json:"attributes,omitempty"`
	Missions   map[string]*MissionState `json:"missions,omitempty"`
}

// Clone returns a deep copy so registry snapshots can be handed to readers
// without exposing internal state.
func (d *DroneRecord) Clone() *DroneRecord {
	out := &DroneRecord{
		ID:       d.ID,
		Endpoint: d.Endpoint,
		Status:   d.Status,
		LastSeen: d.LastSeen,
	}

	if d.Position != nil {
		pos := *d.Position
		out.Position = &pos
	}

	if d.Attributes != nil {
		out.Attributes = make(map[string]interface{}, len(d.Attributes))
		for k, v := range d.Attributes {
			out.Attributes[k] = v
		}
	}

	if d.Missions != nil {
		out.Missions = make(map[string]*MissionState, len(d.Missions))

		for id, m := range d.Missions {
			ms := *m
			out.Missions[id] = &ms
		}
	}

	return out
}

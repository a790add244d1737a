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

// ChannelResult records the outcome of one delivery attempt on one channel.
type ChannelResult struct {
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

// DispatchOutcome is the reconciled per-drone result of a dispatch call.
// Channels maps channel name (direct, broadcast) to its attempt result.
type DispatchOutcome struct {
	DroneID  string                   `json:"drone_id"`
	Status   MissionStatus            `json:"status"`
	Channels map[string]ChannelResult `json:"channels"`
}

// MissionPayload is the finished mission handed to the dispatch engine.
// The coordinator treats the body as opaque beyond the planned center,
// which the monitor reads for route-deviation checks.
type MissionPayload struct {
	MissionID     string                 `json:"mission_id"`
	PlannedCenter *Position              `json:"planned_center,omitempty"`
	SearchRadiusM float64                `json:"search_radius_m,omitempty"`
	Body          map[string]interface{} `json:"body,omitempty"`
}

// BroadcastMission is the wire shape published on the mission subject.
type BroadcastMission struct {
	DroneID string          `json:"drone_id"`
	Mission *MissionPayload `json:"mission"`
}

// EmergencyCommand enumerates the abstract flight-control actions the
// coordinator may trigger outside the normal dispatch channels.
type EmergencyCommand string

const (
	CommandArm            EmergencyCommand = "arm"
	CommandDisarm         EmergencyCommand = "disarm"
	CommandReturnToLaunch EmergencyCommand = "return_to_launch"
	CommandLand           EmergencyCommand = "land"
)

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

import "time"

// DecisionType identifies the policy violation a monitor scan detected.
type DecisionType string

const (
	DecisionLowBattery     DecisionType = "low_battery"
	DecisionStaleHeartbeat DecisionType = "stale_heartbeat"
	DecisionOffRoute       DecisionType = "off_route"
	DecisionEmergencyRTL   DecisionType = "emergency_rtl"
)

// Severity tags a decision for operator triage.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Decision is an immutable judgment derived from fleet state. Decisions are
// advisory until an operator approves them; recurrence across scans is
// expected and left to consumers to debounce.
type Decision struct {
	ID         string       `json:"decision_id"`
	Type       DecisionType `json:"type"`
	DroneID    string       `json:"drone_id,omitempty"`
	MissionID  string       `json:"mission_id,omitempty"`
	Reasoning  string       `json:"reasoning"`
	Confidence float64      `json:"confidence_score"`
	Severity   Severity     `json:"severity"`
	CreatedAt  time.Time    `json:"created_at"`
}

package models

import "time"

// Fan-out topics. Subscribers register interest per topic; the hub never
// invents topics beyond these plus any caller-defined ones.
const (
	TopicTelemetry = "telemetry"
	TopicDecisions = "ai_decisions"
	TopicDiscovery = "discovery_update"
	TopicMissions  = "mission_update"
)

// StreamMessage is the envelope pushed to fan-out subscribers.
type StreamMessage struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// DiscoveryUpdate announces a registry liveness change to subscribers.
type DiscoveryUpdate struct {
	DroneID  string      `json:"drone_id"`
	Status   DroneStatus `json:"status"`
	LastSeen time.Time   `json:"last_seen"`
}

// FleetState is the periodic full-state push composed from the registry
// and the telemetry cache.
type FleetState struct {
	Drones    map[string]*DroneRecord           `json:"drones"`
	Telemetry map[string]map[string]interface{} `json:"telemetry"`
	Timestamp time.Time                         `json:"timestamp"`
}

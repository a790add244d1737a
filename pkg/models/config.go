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
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var errInvalidDuration = errors.New("invalid duration")

// Duration wraps time.Duration for JSON configs, accepting either
// nanosecond integers or strings like "30s".
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%w: %s", errInvalidDuration, value)
		}

		*d = Duration(parsed)

		return nil
	default:
		return fmt.Errorf("%w: %v", errInvalidDuration, v)
	}
}

// NATSConfig covers the broker connection plus the fixed stream subjects.
type NATSConfig struct {
	URL              string `json:"url"`
	TelemetrySubject string `json:"telemetry_subject"`
	MissionSubject   string `json:"mission_subject"`
	StreamName       string `json:"stream_name"`
	ConsumerName     string `json:"consumer_name"`
	RegistryBucket   string `json:"registry_bucket"`
}

// Database is the optional relational mirror. A nil Database section
// disables sync entirely.
type Database struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"database"`
	Username string `json:"username"`
	Password string `json:"password"`
	SSLMode  string `json:"ssl_mode"`
	MaxConns int32  `json:"max_conns"`
}

// DiscoveryConfig selects the discovery workers the coordinator runs.
// An empty beacon device disables the serial beacon worker.
type DiscoveryConfig struct {
	AnnounceAddr string `json:"announce_addr"`
	BeaconDevice string `json:"beacon_device,omitempty"`
}

// MonitorConfig holds the scan cadence and policy thresholds.
type MonitorConfig struct {
	ScanInterval      Duration `json:"scan_interval"`
	BatteryThreshold  float64  `json:"battery_threshold"`
	HeartbeatTimeout  Duration `json:"heartbeat_timeout"`
	RouteRadiusMeters float64  `json:"route_radius_meters"`
	MissionStaleAfter Duration `json:"mission_stale_after"`
	OfflineAfter      Duration `json:"offline_after"`
}

// CoordinatorConfig is the top-level config for the fleetcoord binary.
type CoordinatorConfig struct {
	ListenAddr      string          `json:"listen_addr"`
	NATS            NATSConfig      `json:"nats"`
	Database        *Database       `json:"database,omitempty"`
	Discovery       DiscoveryConfig `json:"discovery"`
	Monitor         MonitorConfig   `json:"monitor"`
	DispatchTimeout Duration        `json:"dispatch_timeout"`
	StatePushEvery  Duration        `json:"state_push_interval"`
	Logging         LogConfig       `json:"logging"`
}

// LogConfig mirrors pkg/logger.Config so the logger package stays free of
// model imports.
type LogConfig struct {
	Level  string `json:"level"`
	Debug  bool   `json:"debug"`
	Output string `json:"output"`
}

const (
	defaultListenAddr       = ":8090"
	defaultNATSURL          = "nats://127.0.0.1:4222"
	defaultTelemetrySubject = "fleet.telemetry"
	defaultMissionSubject   = "fleet.missions"
	defaultStreamName       = "FLEET"
	defaultConsumerName     = "fleetcoord-telemetry"
	defaultRegistryBucket   = "fleet-registry"
	defaultAnnounceAddr     = ":8890"
	defaultScanInterval     = 30 * time.Second
	defaultBatteryThreshold = 20.0
	defaultHeartbeatTimeout = 60 * time.Second
	defaultRouteRadius      = 500.0
	defaultMissionStale     = 5 * time.Minute
	defaultOfflineAfter     = 2 * time.Minute
	defaultDispatchTimeout  = 10 * time.Second
	defaultStatePush        = 5 * time.Second
)

// Validate applies defaults for any unset field. It never rejects a config
// outright; only structurally broken JSON fails earlier in the loader.
func (c *CoordinatorConfig) Validate() error {
	if c.ListenAddr == "" {
		c.ListenAddr = defaultListenAddr
	}

	if c.NATS.URL == "" {
		c.NATS.URL = defaultNATSURL
	}

	if c.NATS.TelemetrySubject == "" {
		c.NATS.TelemetrySubject = defaultTelemetrySubject
	}

	if c.NATS.MissionSubject == "" {
		c.NATS.MissionSubject = defaultMissionSubject
	}

	if c.NATS.StreamName == "" {
		c.NATS.StreamName = defaultStreamName
	}

	if c.NATS.ConsumerName == "" {
		c.NATS.ConsumerName = defaultConsumerName
	}

	if c.NATS.RegistryBucket == "" {
		c.NATS.RegistryBucket = defaultRegistryBucket
	}

	if c.Discovery.AnnounceAddr == "" {
		c.Discovery.AnnounceAddr = defaultAnnounceAddr
	}

	if c.Monitor.ScanInterval == 0 {
		c.Monitor.ScanInterval = Duration(defaultScanInterval)
	}

	if c.Monitor.BatteryThreshold == 0 {
		c.Monitor.BatteryThreshold = defaultBatteryThreshold
	}

	if c.Monitor.HeartbeatTimeout == 0 {
		c.Monitor.HeartbeatTimeout = Duration(defaultHeartbeatTimeout)
	}

	if c.Monitor.RouteRadiusMeters == 0 {
		c.Monitor.RouteRadiusMeters = defaultRouteRadius
	}

	if c.Monitor.MissionStaleAfter == 0 {
		c.Monitor.MissionStaleAfter = Duration(defaultMissionStale)
	}

	if c.Monitor.OfflineAfter == 0 {
		c.Monitor.OfflineAfter = Duration(defaultOfflineAfter)
	}

	if c.DispatchTimeout == 0 {
		c.DispatchTimeout = Duration(defaultDispatchTimeout)
	}

	if c.StatePushEvery == 0 {
		c.StatePushEvery = Duration(defaultStatePush)
	}

	return nil
}

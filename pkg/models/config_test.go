package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDurationUnmarshal(t *testing.T) {
	var d Duration

	require.NoError(t, json.Unmarshal([]byte(`"45s"`), &d))
	assert.Equal(t, 45*time.Second, time.Duration(d))

	require.NoError(t, json.Unmarshal([]byte(`1000000000`), &d))
	assert.Equal(t, time.Second, time.Duration(d))

	assert.Error(t, json.Unmarshal([]byte(`"bogus"`), &d))
	assert.Error(t, json.Unmarshal([]byte(`true`), &d))
}

func TestDurationMarshalRoundTrip(t *testing.T) {
	raw, err := json.Marshal(Duration(90 * time.Second))
	require.NoError(t, err)
	assert.Equal(t, `"1m30s"`, string(raw))
}

func TestCoordinatorConfigDefaults(t *testing.T) {
	var cfg CoordinatorConfig

	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":8090", cfg.ListenAddr)
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.NATS.URL)
	assert.Equal(t, "fleet.telemetry", cfg.NATS.TelemetrySubject)
	assert.Equal(t, "fleet.missions", cfg.NATS.MissionSubject)
	assert.Equal(t, 20.0, cfg.Monitor.BatteryThreshold)
	assert.Equal(t, 30*time.Second, time.Duration(cfg.Monitor.ScanInterval))
	assert.Equal(t, time.Minute, time.Duration(cfg.Monitor.HeartbeatTimeout))
	assert.Equal(t, ":8890", cfg.Discovery.AnnounceAddr)
	assert.Empty(t, cfg.Discovery.BeaconDevice, "beacon worker stays disabled by default")
	assert.Nil(t, cfg.Database, "relational mirror stays disabled by default")
}

func TestCoordinatorConfigKeepsExplicitValues(t *testing.T) {
	raw := `{
		"listen_addr": ":9999",
		"nats": {"url": "nats://broker:4222"},
		"discovery": {"announce_addr": ":7001", "beacon_device": "/dev/ttyUSB0"},
		"monitor": {"battery_threshold": 35, "scan_interval": "10s"}
	}`

	var cfg CoordinatorConfig
	require.NoError(t, json.Unmarshal([]byte(raw), &cfg))
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":9999", cfg.ListenAddr)
	assert.Equal(t, "nats://broker:4222", cfg.NATS.URL)
	assert.Equal(t, 35.0, cfg.Monitor.BatteryThreshold)
	assert.Equal(t, 10*time.Second, time.Duration(cfg.Monitor.ScanInterval))
	assert.Equal(t, ":7001", cfg.Discovery.AnnounceAddr)
	assert.Equal(t, "/dev/ttyUSB0", cfg.Discovery.BeaconDevice)
	assert.Equal(t, "fleet.telemetry", cfg.NATS.TelemetrySubject, "unset fields still defaulted")
}

func TestDroneRecordClone(t *testing.T) {
	rec := &DroneRecord{
		ID:         "d1",
		Endpoint:   "http://pi",
		Status:     DroneOnline,
		Position:   &Position{Lat: 37, Lon: -122},
		Attributes: map[string]interface{}{AttrBatteryLevel: 50.0},
		Missions: map[string]*MissionState{
			"m1": {Status: MissionSent, UpdatedAt: time.Now()},
		},
	}

	clone := rec.Clone()
	clone.Attributes[AttrBatteryLevel] = 1.0
	clone.Missions["m1"].Status = MissionFailed
	clone.Position.Lat = 0

	assert.Equal(t, 50.0, rec.Attributes[AttrBatteryLevel])
	assert.Equal(t, MissionSent, rec.Missions["m1"].Status)
	assert.Equal(t, 37.0, rec.Position.Lat)
}

package discovery

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aerocoord/fleetcoord/pkg/logger"
	"github.com/aerocoord/fleetcoord/pkg/models"
)

func TestParseBeacon(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    Result
		matched bool
	}{
		{
			name:    "valid frame",
			line:    "DRONE:drone-001:-72",
			want:    Result{DroneID: "drone-001", Attributes: map[string]interface{}{models.AttrSignalStrength: -72}},
			matched: true,
		},
		{
			name:    "positive signal",
			line:    "DRONE:d2:40",
			want:    Result{DroneID: "d2", Attributes: map[string]interface{}{models.AttrSignalStrength: 40}},
			matched: true,
		},
		{name: "wrong prefix", line: "ROVER:d1:-50"},
		{name: "missing signal", line: "DRONE:d1"},
		{name: "garbage", line: "tuning..."},
		{name: "empty", line: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, matched := parseBeacon(tt.line)
			assert.Equal(t, tt.matched, matched)

			if tt.matched {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestBeaconWorkerEmitsFrames(t *testing.T) {
	stream := strings.NewReader("DRONE:d1:-60\nnoise\nDRONE:d2:-80\n")

	worker, err := NewBeaconWorker(stream, logger.NewTestLogger())
	require.NoError(t, err)

	var (
		mu      sync.Mutex
		results []Result
	)

	err = worker.Start(context.Background(), func(r Result) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()

	require.Len(t, results, 2)
	assert.Equal(t, "d1", results[0].DroneID)
	assert.Equal(t, "d2", results[1].DroneID)
}

func TestBeaconWorkerStopsOnCancel(t *testing.T) {
	// A pipe that never delivers data keeps the scanner blocked.
	pr, pw := io.Pipe()
	defer pw.Close()

	worker, err := NewBeaconWorker(pr, logger.NewTestLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)

	go func() {
		done <- worker.Start(ctx, func(Result) {})
	}()

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancellation")
	}
}

func TestNewBeaconWorkerRejectsNilSource(t *testing.T) {
	_, err := NewBeaconWorker(nil, logger.NewTestLogger())
	assert.ErrorIs(t, err, ErrNilBeaconSource)
}

func TestParseAnnouncement(t *testing.T) {
	result, err := parseAnnouncement("FLEET-ANNOUNCE drone-007 192.168.1.20:9000\n")
	require.NoError(t, err)
	assert.Equal(t, "drone-007", result.DroneID)
	assert.Equal(t, "http://192.168.1.20:9000", result.Endpoint)

	for _, raw := range []string{
		"",
		"FLEET-ANNOUNCE",
		"FLEET-ANNOUNCE drone-007",
		"FLEET-ANNOUNCE drone-007 noport",
		"OTHER drone-007 1.2.3.4:9000",
	} {
		_, err := parseAnnouncement(raw)
		assert.ErrorIs(t, err, ErrInvalidDroneAddr, "raw=%q", raw)
	}
}

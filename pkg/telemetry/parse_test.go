package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMessage(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		wantID      string
		wantPayload map[string]interface{}
		wantErr     error
	}{
		{
			name:        "nested telemetry",
			raw:         `{"drone_id":"drone-001","telemetry":{"battery":95}}`,
			wantID:      "drone-001",
			wantPayload: map[string]interface{}{"battery": 95.0},
		},
		{
			name:        "nested payload with id key",
			raw:         `{"id":"d2","payload":{"altitude":120.5}}`,
			wantID:      "d2",
			wantPayload: map[string]interface{}{"altitude": 120.5},
		},
		{
			name:        "top-level fields",
			raw:         `{"drone_id":"d3","battery":40,"speed":12}`,
			wantID:      "d3",
			wantPayload: map[string]interface{}{"battery": 40.0, "speed": 12.0},
		},
		{
			name:    "missing id",
			raw:     `{"telemetry":{"battery":95}}`,
			wantErr: ErrMissingDroneID,
		},
		{
			name:    "id only",
			raw:     `{"drone_id":"d4"}`,
			wantErr: ErrEmptyPayload,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, payload, err := ParseMessage([]byte(tt.raw))

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantID, id)
			assert.Equal(t, tt.wantPayload, payload)
		})
	}
}

func TestParseMessageRejectsInvalidJSON(t *testing.T) {
	_, _, err := ParseMessage([]byte("not json"))
	assert.Error(t, err)
}

package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aerocoord/fleetcoord/pkg/models"
)

func TestDirectChannelSend(t *testing.T) {
	var got models.MissionPayload

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/mission", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	channel := NewDirectChannel(time.Second)
	target := &models.DroneRecord{ID: "d1", Endpoint: server.URL}

	err := channel.Send(context.Background(), target, &models.MissionPayload{MissionID: "m1"})
	require.NoError(t, err)
	assert.Equal(t, "m1", got.MissionID)
}

func TestDirectChannelNonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	channel := NewDirectChannel(time.Second)
	target := &models.DroneRecord{ID: "d1", Endpoint: server.URL}

	err := channel.Send(context.Background(), target, &models.MissionPayload{MissionID: "m1"})
	assert.ErrorIs(t, err, ErrNonSuccessStatus)
}

func TestDirectChannelRequiresEndpoint(t *testing.T) {
	channel := NewDirectChannel(time.Second)

	err := channel.Send(context.Background(), &models.DroneRecord{ID: "d1"}, &models.MissionPayload{})
	assert.ErrorIs(t, err, ErrNoEndpoint)
}

func TestDirectChannelTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	channel := NewDirectChannel(20 * time.Millisecond)
	target := &models.DroneRecord{ID: "d1", Endpoint: server.URL}

	err := channel.Send(context.Background(), target, &models.MissionPayload{})
	assert.Error(t, err, "timeout is a failure, not an indefinite wait")
}

func TestHTTPFlightControllerExecute(t *testing.T) {
	var got map[string]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/command", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	controller := NewHTTPFlightController(time.Second)

	require.NoError(t, controller.Execute(context.Background(), server.URL, models.CommandLand))
	assert.Equal(t, "land", got["command"])

	assert.ErrorIs(t, controller.Execute(context.Background(), "", models.CommandArm), ErrNoEndpoint)
}

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

package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/aerocoord/fleetcoord/pkg/models"
)

// HTTPFlightController drives a drone's flight-control sidecar over HTTP.
// It is the default FlightController when the fleet carries the
// hardware-control sidecar; deployments without it wire a nil controller
// instead.
type HTTPFlightController struct {
	client *http.Client
}

// NewHTTPFlightController builds the controller with a bounded timeout.
func NewHTTPFlightController(timeout time.Duration) *HTTPFlightController {
	return &HTTPFlightController{client: &http.Client{Timeout: timeout}}
}

func (c *HTTPFlightController) Execute(ctx context.Context, endpoint string, cmd models.EmergencyCommand) error {
	if endpoint == "" {
		return ErrNoEndpoint
	}

	body, err := json.Marshal(map[string]string{"command": string(cmd)})
	if err != nil {
		return fmt.Errorf("failed to marshal command: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"/command", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build command request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("command %s failed: %w", cmd, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%w: command %s returned %d", ErrNonSuccessStatus, cmd, resp.StatusCode)
	}

	return nil
}

var _ FlightController = (*HTTPFlightController)(nil)

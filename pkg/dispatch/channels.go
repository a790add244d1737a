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

	"github.com/nats-io/nats.go/jetstream"

	"github.com/aerocoord/fleetcoord/pkg/models"
)

// Channel names used as keys in DispatchOutcome.Channels.
const (
	ChannelDirect    = "direct"
	ChannelBroadcast = "broadcast"
)

// CommandChannel delivers a mission payload to one drone over one
// transport. Implementations must bound their own timeouts; a Send error
// means that attempt failed, nothing more.
type CommandChannel interface {
	Name() string
	Send(ctx context.Context, target *models.DroneRecord, mission *models.MissionPayload) error
}

// DirectChannel posts the mission straight to the drone's registered
// endpoint.
type DirectChannel struct {
	client *http.Client
}

// NewDirectChannel builds the direct transport with a bounded per-request
// timeout.
func NewDirectChannel(timeout time.Duration) *DirectChannel {
	return &DirectChannel{
		client: &http.Client{Timeout: timeout},
	}
}

func (*DirectChannel) Name() string { return ChannelDirect }

func (c *DirectChannel) Send(ctx context.Context, target *models.DroneRecord, mission *models.MissionPayload) error {
	if target.Endpoint == "" {
		return fmt.Errorf("%w: %s", ErrNoEndpoint, target.ID)
	}

	body, err := json.Marshal(mission)
	if err != nil {
		return fmt.Errorf("failed to marshal mission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.Endpoint+"/mission", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build mission request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("direct dispatch to %s failed: %w", target.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%w: %s returned %d", ErrNonSuccessStatus, target.ID, resp.StatusCode)
	}

	return nil
}

// BroadcastChannel publishes {drone_id, mission} on the shared mission
// subject. Delivery is optimistic: a successful publish does not confirm
// the drone received anything.
type BroadcastChannel struct {
	js      jetstream.JetStream
	subject string
}

// NewBroadcastChannel publishes on the given mission subject.
func NewBroadcastChannel(js jetstream.JetStream, subject string) *BroadcastChannel {
	return &BroadcastChannel{js: js, subject: subject}
}

func (*BroadcastChannel) Name() string { return ChannelBroadcast }

func (c *BroadcastChannel) Send(ctx context.Context, target *models.DroneRecord, mission *models.MissionPayload) error {
	body, err := json.Marshal(models.BroadcastMission{
		DroneID: target.ID,
		Mission: mission,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal broadcast mission: %w", err)
	}

	if _, err := c.js.Publish(ctx, c.subject, body); err != nil {
		return fmt.Errorf("broadcast publish for %s failed: %w", target.ID, err)
	}

	return nil
}

// NullChannel stands in when a transport cannot be constructed. It always
// fails and never panics, so call sites need no conditional wiring.
type NullChannel struct {
	name string
}

// NewNullChannel keeps the name of the transport it replaces so outcome
// maps stay shaped the same.
func NewNullChannel(name string) *NullChannel {
	return &NullChannel{name: name}
}

func (c *NullChannel) Name() string { return c.name }

func (c *NullChannel) Send(_ context.Context, target *models.DroneRecord, _ *models.MissionPayload) error {
	return fmt.Errorf("%w: %s channel for %s", ErrChannelUnavailable, c.name, target.ID)
}

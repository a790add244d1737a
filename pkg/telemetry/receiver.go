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

package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/aerocoord/fleetcoord/pkg/logger"
	"github.com/aerocoord/fleetcoord/pkg/registry"
)

const (
	defaultMaxPullMessages = 10
	defaultPullExpiry      = 5 * time.Second
	fetchRetryDelay        = time.Second
)

// Liveness receives heartbeat signals extracted from telemetry arrival.
// The registry implements it.
type Liveness interface {
	SetLastSeen(ctx context.Context, id string, ts time.Time) error
}

// Receiver pulls telemetry messages off the stream and forwards them to
// the cache. Each successfully parsed message is also a liveness signal
// for its drone.
type Receiver struct {
	consumer jetstream.Consumer
	cache    *Cache
	liveness Liveness
	logger   logger.Logger
}

// NewReceiver creates (or reuses) the durable pull consumer on the
// telemetry subject and wires it to the cache.
func NewReceiver(ctx context.Context, js jetstream.JetStream, streamName, consumerName, subject string,
	cache *Cache, liveness Liveness, log logger.Logger) (*Receiver, error) {
	consumer, err := js.Consumer(ctx, streamName, consumerName)
	if err != nil {
		cfg := jetstream.ConsumerConfig{
			Durable:       consumerName,
			AckPolicy:     jetstream.AckExplicitPolicy,
			AckWait:       30 * time.Second,
			MaxDeliver:    3,
			FilterSubject: subject,
		}

		consumer, err = js.CreateConsumer(ctx, streamName, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create telemetry consumer: %w", err)
		}
	}

	return &Receiver{
		consumer: consumer,
		cache:    cache,
		liveness: liveness,
		logger:   log.WithComponent("telemetry"),
	}, nil
}

// Run loops pulling messages with a bounded wait until the context is
// canceled. Malformed messages are dropped and logged; the loop never
// terminates on transient errors.
func (r *Receiver) Run(ctx context.Context) {
	r.logger.Info().Msg("Telemetry receiver started")

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("Telemetry receiver stopped")
			return
		default:
		}

		msgs, err := r.consumer.Fetch(defaultMaxPullMessages, jetstream.FetchMaxWait(defaultPullExpiry))
		if err != nil {
			if ctx.Err() != nil {
				continue
			}

			r.logger.Warn().Err(err).Msg("Failed to fetch telemetry messages")
			time.Sleep(fetchRetryDelay)

			continue
		}

		for msg := range msgs.Messages() {
			r.handleMessage(ctx, msg)
		}

		if fetchErr := msgs.Error(); fetchErr != nil && !errors.Is(fetchErr, context.DeadlineExceeded) {
			r.logger.Debug().Err(fetchErr).Msg("Telemetry fetch error")
		}
	}
}

func (r *Receiver) handleMessage(ctx context.Context, msg jetstream.Msg) {
	droneID, payload, err := ParseMessage(msg.Data())
	if err != nil {
		r.logger.Warn().Err(err).Str("subject", msg.Subject()).Msg("Dropping malformed telemetry message")
		_ = msg.Ack()

		return
	}

	r.Ingest(ctx, droneID, payload)

	_ = msg.Ack()
}

// Ingest applies one parsed telemetry report: cache update plus liveness
// signal. Also used by the HTTP fallback path. Telemetry from drones the
// registry has never seen is still cached; the two stores reconcile only
// by drone id.
func (r *Receiver) Ingest(ctx context.Context, droneID string, payload map[string]interface{}) {
	r.cache.Update(droneID, payload)

	if err := r.liveness.SetLastSeen(ctx, droneID, time.Time{}); err != nil {
		if errors.Is(err, registry.ErrDroneNotFound) {
			r.logger.Debug().Str("drone_id", droneID).Msg("Telemetry from unregistered drone")
		} else {
			r.logger.Warn().Err(err).Str("drone_id", droneID).Msg("Failed to record liveness")
		}
	}
}

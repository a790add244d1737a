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

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/aerocoord/fleetcoord/pkg/api"
	"github.com/aerocoord/fleetcoord/pkg/config"
	"github.com/aerocoord/fleetcoord/pkg/db"
	"github.com/aerocoord/fleetcoord/pkg/discovery"
	"github.com/aerocoord/fleetcoord/pkg/dispatch"
	"github.com/aerocoord/fleetcoord/pkg/hub"
	"github.com/aerocoord/fleetcoord/pkg/kv"
	"github.com/aerocoord/fleetcoord/pkg/logger"
	"github.com/aerocoord/fleetcoord/pkg/models"
	"github.com/aerocoord/fleetcoord/pkg/monitor"
	"github.com/aerocoord/fleetcoord/pkg/registry"
	"github.com/aerocoord/fleetcoord/pkg/telemetry"
)

const shutdownGrace = 10 * time.Second

func run(ctx context.Context, configPath string) error {
	var cfg models.CoordinatorConfig

	loader := &config.FileLoader{}
	if err := loader.Load(ctx, configPath, &cfg); err != nil {
		return err
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Logging.Level,
		Debug:  cfg.Logging.Debug,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	nc, err := nats.Connect(cfg.NATS.URL, nats.Name("fleetcoord"))
	if err != nil {
		return fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATS.URL, err)
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	if err := ensureStream(ctx, js, &cfg.NATS); err != nil {
		return err
	}

	store, err := kv.NewNatsStore(ctx, nc, cfg.NATS.RegistryBucket)
	if err != nil {
		return fmt.Errorf("failed to open registry side-store: %w", err)
	}
	defer store.Close()

	// The relational mirror is optional; a nil pool disables sync.
	pool, err := db.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Warn().Err(err).Msg("Relational mirror unavailable, continuing without it")
	}

	if pool != nil {
		defer pool.Close()
	}

	fanout := hub.New(log)

	reg := registry.New(store, log,
		registry.WithEventSink(fanout),
		registry.WithMirror(db.NewDroneStore(pool)),
	)

	if err := reg.Load(ctx); err != nil {
		return fmt.Errorf("failed to rehydrate registry: %w", err)
	}

	if err := reg.LoadFromDB(ctx); err != nil {
		log.Warn().Err(err).Msg("Could not merge records from relational mirror")
	}

	cache := telemetry.NewCache()

	receiver, err := telemetry.NewReceiver(ctx, js,
		cfg.NATS.StreamName, cfg.NATS.ConsumerName, cfg.NATS.TelemetrySubject,
		cache, reg, log)
	if err != nil {
		return err
	}

	dispatchTimeout := time.Duration(cfg.DispatchTimeout)
	engine := dispatch.NewEngine(
		dispatch.NewDirectChannel(dispatchTimeout),
		dispatch.NewBroadcastChannel(js, cfg.NATS.MissionSubject),
		reg,
		dispatch.NewHTTPFlightController(dispatchTimeout),
		fanout,
		log,
	)

	mon := monitor.New(monitor.Config{
		ScanInterval:      time.Duration(cfg.Monitor.ScanInterval),
		BatteryThreshold:  cfg.Monitor.BatteryThreshold,
		HeartbeatTimeout:  time.Duration(cfg.Monitor.HeartbeatTimeout),
		RouteRadiusMeters: cfg.Monitor.RouteRadiusMeters,
		MissionStaleAfter: time.Duration(cfg.Monitor.MissionStaleAfter),
		OfflineAfter:      time.Duration(cfg.Monitor.OfflineAfter),
	}, reg, cache, engine, fanout, log)

	workers := []discovery.Worker{
		discovery.NewAnnounceListener(cfg.Discovery.AnnounceAddr, log),
	}

	// The serial beacon worker only runs when a device is configured.
	if cfg.Discovery.BeaconDevice != "" {
		device, err := os.Open(cfg.Discovery.BeaconDevice)
		if err != nil {
			log.Warn().Err(err).Str("device", cfg.Discovery.BeaconDevice).Msg("Beacon device unavailable, skipping worker")
		} else if beacon, err := discovery.NewBeaconWorker(device, log); err != nil {
			log.Warn().Err(err).Msg("Beacon worker disabled")
			_ = device.Close()
		} else {
			workers = append(workers, beacon)
		}
	}

	disco := registry.NewDiscoveryManager(reg, workers...)

	if err := disco.Start(ctx); err != nil {
		return fmt.Errorf("failed to start discovery: %w", err)
	}

	pusher := hub.NewStatePusher(fanout, reg, cache, time.Duration(cfg.StatePushEvery))

	server := api.NewServer(cfg.ListenAddr, receiver, reg, engine, disco, fanout.Handler(), log)

	go receiver.Run(ctx)
	go mon.Run(ctx)
	go pusher.Run(ctx)

	errCh := make(chan error, 1)

	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := disco.Stop(); err != nil && !errors.Is(err, registry.ErrDiscoveryNotRunning) {
		log.Warn().Err(err).Msg("Discovery stop failed")
	}

	if err := reg.SyncToDB(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Final mirror sync failed")
	}

	return server.Shutdown(shutdownCtx)
}

// ensureStream creates the shared fleet stream covering the telemetry and
// mission subjects when it does not exist yet.
func ensureStream(ctx context.Context, js jetstream.JetStream, cfg *models.NATSConfig) error {
	_, err := js.Stream(ctx, cfg.StreamName)
	if err == nil {
		return nil
	}

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:     cfg.StreamName,
		Subjects: []string{cfg.TelemetrySubject, cfg.MissionSubject},
		Storage:  jetstream.FileStorage,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream %s: %w", cfg.StreamName, err)
	}

	return nil
}

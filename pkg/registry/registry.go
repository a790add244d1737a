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

// Package registry is the authoritative in-process store of drone identity,
// liveness, and per-mission delivery state. It is the single writer of that
// state; other components read snapshots.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/aerocoord/fleetcoord/pkg/db"
	"github.com/aerocoord/fleetcoord/pkg/kv"
	"github.com/aerocoord/fleetcoord/pkg/logger"
	"github.com/aerocoord/fleetcoord/pkg/models"
)

// EventSink receives registry state-change events for fan-out. The hub
// implements it; a nil sink disables event publication.
type EventSink interface {
	PublishEvent(eventType string, payload interface{})
}

// Registry owns the drone record table. All mutations write through to the
// durable side-store and, when enabled, the relational mirror.
type Registry struct {
	mu     sync.RWMutex
	drones map[string]*models.DroneRecord

	// storeMu orders side-store operations with table mutations: writers
	// acquire it before releasing mu, so a Put can never land after the
	// Delete of a later Unregister and resurrect the record on reload.
	storeMu sync.Mutex

	store  kv.Store       // durable side-store, may be nil in tests
	mirror *db.DroneStore // relational mirror, nil when disabled
	events EventSink
	logger logger.Logger
	now    func() time.Time
}

// Option tweaks registry construction.
type Option func(*Registry)

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithEventSink wires state-change events into the fan-out hub.
func WithEventSink(sink EventSink) Option {
	return func(r *Registry) { r.events = sink }
}

// WithMirror enables best-effort sync against the relational store.
func WithMirror(mirror *db.DroneStore) Option {
	return func(r *Registry) { r.mirror = mirror }
}

// New builds an empty registry. The side-store may be nil, which disables
// durability (tests only).
func New(store kv.Store, log logger.Logger, opts ...Option) *Registry {
	r := &Registry{
		drones: make(map[string]*models.DroneRecord),
		store:  store,
		logger: log.WithComponent("registry"),
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Load rehydrates the registry from the side-store. Call once at startup,
// before any mutations.
func (r *Registry) Load(ctx context.Context) error {
	if r.store == nil {
		return nil
	}

	keys, err := r.store.Keys(ctx)
	if err != nil {
		return fmt.Errorf("failed to list persisted drones: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, key := range keys {
		raw, found, err := r.store.Get(ctx, key)
		if err != nil {
			return fmt.Errorf("failed to load drone %s: %w", key, err)
		}

		if !found {
			continue
		}

		var rec models.DroneRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			r.logger.Warn().Err(err).Str("drone_id", key).Msg("Skipping corrupt persisted record")
			continue
		}

		r.drones[rec.ID] = &rec
	}

	r.logger.Info().Int("drones", len(r.drones)).Msg("Registry rehydrated from side-store")

	return nil
}

// Register upserts a drone. Re-registration never fails: the endpoint is
// refreshed, attributes are unioned, and the drone comes back online.
func (r *Registry) Register(ctx context.Context, id, endpoint string, attributes map[string]interface{}) {
	r.mu.Lock()

	rec, ok := r.drones[id]
	if !ok {
		rec = &models.DroneRecord{
			ID:       id,
			Missions: make(map[string]*models.MissionState),
		}
		r.drones[id] = rec
	}

	if endpoint != "" {
		rec.Endpoint = endpoint
	}

	if len(attributes) > 0 {
		if rec.Attributes == nil {
			rec.Attributes = make(map[string]interface{}, len(attributes))
		}

		for k, v := range attributes {
			rec.Attributes[k] = v
		}
	}

	rec.Status = models.DroneOnline
	rec.LastSeen = r.now()

	snapshot := rec.Clone()
	r.storeMu.Lock()
	r.mu.Unlock()

	r.persist(ctx, snapshot)
	r.storeMu.Unlock()

	r.publishDiscoveryUpdate(snapshot)

	if !ok {
		r.logger.Info().Str("drone_id", id).Str("endpoint", endpoint).Msg("Registered drone")
	}
}

// Unregister removes the drone and every derived index atomically.
// Returns false when the id was never registered.
func (r *Registry) Unregister(ctx context.Context, id string) bool {
	r.mu.Lock()

	if _, ok := r.drones[id]; !ok {
		r.mu.Unlock()
		return false
	}

	delete(r.drones, id)
	r.storeMu.Lock()
	r.mu.Unlock()

	if r.store != nil {
		if err := r.store.Delete(ctx, id); err != nil {
			r.logger.Error().Err(err).Str("drone_id", id).Msg("Failed to remove persisted record")
		}
	}

	if r.mirror != nil {
		if err := r.mirror.DeleteDrone(ctx, id); err != nil {
			r.logger.Error().Err(err).Str("drone_id", id).Msg("Failed to remove mirrored record")
		}
	}

	r.storeMu.Unlock()

	r.logger.Info().Str("drone_id", id).Msg("Unregistered drone")

	return true
}

// SetLastSeen records a liveness signal. A zero timestamp means "now".
func (r *Registry) SetLastSeen(ctx context.Context, id string, ts time.Time) error {
	r.mu.Lock()

	rec, ok := r.drones[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDroneNotFound, id)
	}

	if ts.IsZero() {
		ts = r.now()
	}

	rec.LastSeen = ts
	rec.Status = models.DroneOnline

	snapshot := rec.Clone()
	r.storeMu.Lock()
	r.mu.Unlock()

	r.persist(ctx, snapshot)
	r.storeMu.Unlock()

	r.publishDiscoveryUpdate(snapshot)

	return nil
}

// SetStatus forces a liveness state. Normal operation derives status from
// signals; this exists for the staleness sweep and operator overrides.
func (r *Registry) SetStatus(ctx context.Context, id string, status models.DroneStatus) error {
	r.mu.Lock()

	rec, ok := r.drones[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDroneNotFound, id)
	}

	rec.Status = status

	snapshot := rec.Clone()
	r.storeMu.Lock()
	r.mu.Unlock()

	r.persist(ctx, snapshot)
	r.storeMu.Unlock()

	return nil
}

// SetPosition stores the latest known fix for a drone.
func (r *Registry) SetPosition(ctx context.Context, id string, pos models.Position) error {
	r.mu.Lock()

	rec, ok := r.drones[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDroneNotFound, id)
	}

	rec.Position = &pos

	snapshot := rec.Clone()
	r.storeMu.Lock()
	r.mu.Unlock()

	r.persist(ctx, snapshot)
	r.storeMu.Unlock()

	return nil
}

// SetAttributes unions the given fields into the drone's attribute map.
func (r *Registry) SetAttributes(ctx context.Context, id string, attributes map[string]interface{}) error {
	r.mu.Lock()

	rec, ok := r.drones[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDroneNotFound, id)
	}

	if rec.Attributes == nil {
		rec.Attributes = make(map[string]interface{}, len(attributes))
	}

	for k, v := range attributes {
		rec.Attributes[k] = v
	}

	snapshot := rec.Clone()
	r.storeMu.Lock()
	r.mu.Unlock()

	r.persist(ctx, snapshot)
	r.storeMu.Unlock()

	return nil
}

// SetMissionStatus upserts one mission entry for a drone.
func (r *Registry) SetMissionStatus(ctx context.Context, id, missionID string, status models.MissionStatus) error {
	r.mu.Lock()

	rec, ok := r.drones[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDroneNotFound, id)
	}

	if rec.Missions == nil {
		rec.Missions = make(map[string]*models.MissionState)
	}

	rec.Missions[missionID] = &models.MissionState{
		Status:    status,
		UpdatedAt: r.now(),
	}

	snapshot := rec.Clone()
	r.storeMu.Lock()
	r.mu.Unlock()

	r.persist(ctx, snapshot)
	r.storeMu.Unlock()

	return nil
}

// MarkMissionsStale transitions every sent/accepted mission entry older
// than the threshold to stale. Idempotent: already-stale entries are left
// untouched, so repeated sweeps are no-ops.
func (r *Registry) MarkMissionsStale(ctx context.Context, threshold time.Duration) {
	cutoff := r.now().Add(-threshold)

	var changed []*models.DroneRecord

	r.mu.Lock()

	for _, rec := range r.drones {
		dirty := false

		for _, mission := range rec.Missions {
			inFlight := mission.Status == models.MissionSent || mission.Status == models.MissionAccepted
			if inFlight && !mission.UpdatedAt.After(cutoff) {
				mission.Status = models.MissionStale
				dirty = true
			}
		}

		if dirty {
			changed = append(changed, rec.Clone())
		}
	}

	r.storeMu.Lock()
	r.mu.Unlock()

	for _, rec := range changed {
		r.persist(ctx, rec)
		r.logger.Debug().Str("drone_id", rec.ID).Msg("Marked stale missions")
	}

	r.storeMu.Unlock()
}

// MarkOfflineIfStale flips drones whose last signal predates the threshold
// to offline. Silence past the grace period is the only disconnect signal.
func (r *Registry) MarkOfflineIfStale(ctx context.Context, threshold time.Duration) {
	cutoff := r.now().Add(-threshold)

	var changed []*models.DroneRecord

	r.mu.Lock()

	for _, rec := range r.drones {
		if rec.Status == models.DroneOnline && rec.LastSeen.Before(cutoff) {
			rec.Status = models.DroneOffline
			changed = append(changed, rec.Clone())
		}
	}

	r.storeMu.Lock()
	r.mu.Unlock()

	for _, rec := range changed {
		r.persist(ctx, rec)
	}

	r.storeMu.Unlock()

	for _, rec := range changed {
		r.publishDiscoveryUpdate(rec)
		r.logger.Info().Str("drone_id", rec.ID).Time("last_seen", rec.LastSeen).Msg("Drone went offline")
	}
}

// GetDrone returns a copy of one record.
func (r *Registry) GetDrone(id string) (*models.DroneRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.drones[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDroneNotFound, id)
	}

	return rec.Clone(), nil
}

// GetLastSeen returns the most recent liveness timestamp for a drone.
func (r *Registry) GetLastSeen(id string) (time.Time, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.drones[id]
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %s", ErrDroneNotFound, id)
	}

	return rec.LastSeen, nil
}

// ListDrones returns a point-in-time copy of the whole table. The copy is
// safe to read while the registry keeps mutating.
func (r *Registry) ListDrones() map[string]*models.DroneRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]*models.DroneRecord, len(r.drones))
	for id, rec := range r.drones {
		out[id] = rec.Clone()
	}

	return out
}

// SyncToDB mirrors every record to the relational store. No-op when the
// mirror is disabled.
func (r *Registry) SyncToDB(ctx context.Context) error {
	if r.mirror == nil {
		return nil
	}

	drones := r.ListDrones()

	r.storeMu.Lock()
	defer r.storeMu.Unlock()

	for _, rec := range drones {
		if err := r.mirror.UpsertDrone(ctx, rec); err != nil {
			return fmt.Errorf("failed to sync drone %s: %w", rec.ID, err)
		}
	}

	return nil
}

// LoadFromDB merges mirrored records into the in-memory table. Records
// already present in memory win; the mirror only fills gaps. No-op when
// the mirror is disabled.
func (r *Registry) LoadFromDB(ctx context.Context) error {
	if r.mirror == nil {
		return nil
	}

	records, err := r.mirror.ListDrones(ctx)
	if err != nil {
		return fmt.Errorf("failed to load mirrored drones: %w", err)
	}

	var added []*models.DroneRecord

	r.mu.Lock()

	for _, rec := range records {
		if _, ok := r.drones[rec.ID]; ok {
			continue
		}

		r.drones[rec.ID] = rec
		added = append(added, rec.Clone())
	}

	r.storeMu.Lock()
	r.mu.Unlock()

	for _, rec := range added {
		r.persist(ctx, rec)
	}

	r.storeMu.Unlock()

	r.logger.Info().Int("added", len(added)).Msg("Merged records from relational mirror")

	return nil
}

// persist writes one record through to the side-store. Callers hold
// storeMu, acquired before releasing the table lock, so writes land in
// mutation order. Persistence failures are logged, not propagated:
// in-memory state is authoritative and the next successful flush heals
// the store.
func (r *Registry) persist(ctx context.Context, rec *models.DroneRecord) {
	if r.store == nil {
		return
	}

	raw, err := json.Marshal(rec)
	if err != nil {
		r.logger.Error().Err(err).Str("drone_id", rec.ID).Msg("Failed to marshal record")
		return
	}

	if err := r.store.Put(ctx, rec.ID, raw); err != nil {
		r.logger.Error().Err(err).Str("drone_id", rec.ID).Msg("Failed to persist record")
	}
}

func (r *Registry) publishDiscoveryUpdate(rec *models.DroneRecord) {
	if r.events == nil {
		return
	}

	r.events.PublishEvent(models.TopicDiscovery, models.DiscoveryUpdate{
		DroneID:  rec.ID,
		Status:   rec.Status,
		LastSeen: rec.LastSeen,
	})
}

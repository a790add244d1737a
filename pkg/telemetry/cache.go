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

// Package telemetry ingests the drone telemetry stream and caches the
// latest snapshot per drone.
package telemetry

import (
	"sync"
	"time"
)

type entry struct {
	payload    map[string]interface{}
	capturedAt time.Time
}

// Cache holds the latest telemetry snapshot per drone id. Updates replace
// the whole record; snapshots are never merged across updates.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

// NewCache builds an empty cache.
func NewCache() *Cache {
	return &Cache{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Update replaces the snapshot for a drone and records capture time.
// Unknown drone ids create a new entry.
func (c *Cache) Update(droneID string, payload map[string]interface{}) {
	copied := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		copied[k] = v
	}

	c.mu.Lock()
	c.entries[droneID] = entry{payload: copied, capturedAt: c.now()}
	c.mu.Unlock()
}

// Get returns the latest snapshot for one drone together with its capture
// time. The bool reports whether the drone has ever reported.
func (c *Cache) Get(droneID string) (map[string]interface{}, time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[droneID]
	if !ok {
		return nil, time.Time{}, false
	}

	return copyPayload(e.payload), e.capturedAt, true
}

// Snapshot returns a copy of the whole cache keyed by drone id. Safe to
// call concurrently with updates; readers never observe a partial record.
func (c *Cache) Snapshot() map[string]map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]map[string]interface{}, len(c.entries))
	for id, e := range c.entries {
		out[id] = copyPayload(e.payload)
	}

	return out
}

func copyPayload(payload map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		out[k] = v
	}

	return out
}

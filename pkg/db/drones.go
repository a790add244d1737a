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

package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aerocoord/fleetcoord/pkg/models"
)

const (
	upsertDroneSQL = `
INSERT INTO drones (
	drone_id,
	endpoint,
	status,
	last_seen,
	attributes,
	missions,
	updated_at
) VALUES (
	$1,$2,$3,$4,$5,$6,now()
)
ON CONFLICT (drone_id) DO UPDATE SET
	endpoint = EXCLUDED.endpoint,
	status = EXCLUDED.status,
	last_seen = EXCLUDED.last_seen,
	attributes = EXCLUDED.attributes,
	missions = EXCLUDED.missions,
	updated_at = now()`

	selectDronesSQL = `
SELECT drone_id, endpoint, status, last_seen, attributes, missions
FROM drones`

	deleteDroneSQL = `DELETE FROM drones WHERE drone_id = $1`
)

// DroneStore reads and writes drone records against the relational mirror.
type DroneStore struct {
	pool *pgxpool.Pool
}

// NewDroneStore wraps an existing pool. A nil pool yields a nil store,
// which the registry treats as "mirror disabled".
func NewDroneStore(pool *pgxpool.Pool) *DroneStore {
	if pool == nil {
		return nil
	}

	return &DroneStore{pool: pool}
}

// UpsertDrone writes one record, replacing any previous row for the id.
func (s *DroneStore) UpsertDrone(ctx context.Context, rec *models.DroneRecord) error {
	attrs, err := json.Marshal(rec.Attributes)
	if err != nil {
		return fmt.Errorf("failed to marshal attributes for %s: %w", rec.ID, err)
	}

	missions, err := json.Marshal(rec.Missions)
	if err != nil {
		return fmt.Errorf("failed to marshal missions for %s: %w", rec.ID, err)
	}

	_, err = s.pool.Exec(ctx, upsertDroneSQL,
		rec.ID, rec.Endpoint, string(rec.Status), rec.LastSeen, attrs, missions)
	if err != nil {
		return fmt.Errorf("failed to upsert drone %s: %w", rec.ID, err)
	}

	return nil
}

// DeleteDrone removes the row for an unregistered drone.
func (s *DroneStore) DeleteDrone(ctx context.Context, droneID string) error {
	if _, err := s.pool.Exec(ctx, deleteDroneSQL, droneID); err != nil {
		return fmt.Errorf("failed to delete drone %s: %w", droneID, err)
	}

	return nil
}

// ListDrones returns every mirrored record.
func (s *DroneStore) ListDrones(ctx context.Context) ([]*models.DroneRecord, error) {
	rows, err := s.pool.Query(ctx, selectDronesSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to query drones: %w", err)
	}
	defer rows.Close()

	var records []*models.DroneRecord

	for rows.Next() {
		rec, err := scanDrone(rows)
		if err != nil {
			return nil, err
		}

		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed reading drone rows: %w", err)
	}

	return records, nil
}

func scanDrone(row pgx.Row) (*models.DroneRecord, error) {
	var (
		rec      models.DroneRecord
		status   string
		attrs    []byte
		missions []byte
	)

	if err := row.Scan(&rec.ID, &rec.Endpoint, &status, &rec.LastSeen, &attrs, &missions); err != nil {
		return nil, fmt.Errorf("failed to scan drone row: %w", err)
	}

	rec.Status = models.DroneStatus(status)

	if len(attrs) > 0 {
		if err := json.Unmarshal(attrs, &rec.Attributes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal attributes for %s: %w", rec.ID, err)
		}
	}

	if len(missions) > 0 {
		if err := json.Unmarshal(missions, &rec.Missions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal missions for %s: %w", rec.ID, err)
		}
	}

	return &rec, nil
}

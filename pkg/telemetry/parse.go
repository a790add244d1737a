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
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrMissingDroneID = errors.New("message missing drone id")
	ErrEmptyPayload   = errors.New("message has no telemetry payload")
)

// ParseMessage extracts a drone id and telemetry payload from a serialized
// message. The body is flexible: the id lives in "drone_id" or "id", the
// payload in "telemetry", "payload", or the remaining top-level fields.
func ParseMessage(raw []byte) (droneID string, payload map[string]interface{}, err error) {
	var body map[string]interface{}
	if err := json.Unmarshal(raw, &body); err != nil {
		return "", nil, fmt.Errorf("failed to unmarshal telemetry message: %w", err)
	}

	return ParseBody(body)
}

// ParseBody applies the same extraction to an already-decoded body.
func ParseBody(body map[string]interface{}) (droneID string, payload map[string]interface{}, err error) {
	for _, key := range []string{"drone_id", "id"} {
		if v, ok := body[key].(string); ok && v != "" {
			droneID = v
			break
		}
	}

	if droneID == "" {
		return "", nil, ErrMissingDroneID
	}

	for _, key := range []string{"telemetry", "payload"} {
		if v, ok := body[key].(map[string]interface{}); ok {
			return droneID, v, nil
		}
	}

	// No nested payload: treat the remaining top-level fields as telemetry.
	payload = make(map[string]interface{}, len(body))

	for k, v := range body {
		if k == "drone_id" || k == "id" {
			continue
		}

		payload[k] = v
	}

	if len(payload) == 0 {
		return "", nil, ErrEmptyPayload
	}

	return droneID, payload, nil
}

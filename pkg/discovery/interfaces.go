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

// Package discovery provides pluggable probes that feed newly seen drones
// into the registry.
package discovery

import "context"

// Result is one sighting of a drone by a probe.
type Result struct {
	DroneID    string
	Endpoint   string
	Attributes map[string]interface{}
}

// ResultFunc receives each sighting. Implementations must be safe for
// concurrent calls from multiple workers.
type ResultFunc func(result Result)

// Worker is a cancellable discovery probe. Start blocks until the context
// is canceled; it must return within one polling interval of cancellation.
type Worker interface {
	Name() string
	Start(ctx context.Context, emit ResultFunc) error
	Stop()
}

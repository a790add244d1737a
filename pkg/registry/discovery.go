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

package registry

import (
	"context"
	"sync"

	"github.com/aerocoord/fleetcoord/pkg/discovery"
)

// DiscoveryManager runs the registry's discovery workers as cancellable
// tasks and feeds their sightings into the registry.
type DiscoveryManager struct {
	mu      sync.Mutex
	reg     *Registry
	workers []discovery.Worker
	active  bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewDiscoveryManager wires a worker set to the registry.
func NewDiscoveryManager(reg *Registry, workers ...discovery.Worker) *DiscoveryManager {
	return &DiscoveryManager{reg: reg, workers: workers}
}

// AddWorker registers another probe. Only valid while discovery is stopped.
func (m *DiscoveryManager) AddWorker(w discovery.Worker) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active {
		return ErrDiscoveryRunning
	}

	m.workers = append(m.workers, w)

	return nil
}

// Active reports whether the worker set is running.
func (m *DiscoveryManager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.active
}

// Start launches every worker under a shared cancellable context.
func (m *DiscoveryManager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active {
		return ErrDiscoveryRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.active = true

	for _, worker := range m.workers {
		m.wg.Add(1)

		go func(w discovery.Worker) {
			defer m.wg.Done()

			if err := w.Start(runCtx, m.handleResult(runCtx)); err != nil {
				m.reg.logger.Error().Err(err).Str("worker", w.Name()).Msg("Discovery worker exited with error")
			}
		}(worker)
	}

	m.reg.logger.Info().Int("workers", len(m.workers)).Msg("Discovery started")

	return nil
}

// Stop cancels all workers and blocks until every worker task has
// returned.
func (m *DiscoveryManager) Stop() error {
	m.mu.Lock()

	if !m.active {
		m.mu.Unlock()
		return ErrDiscoveryNotRunning
	}

	cancel := m.cancel
	m.active = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()

	for _, worker := range m.workers {
		worker.Stop()
	}

	m.wg.Wait()

	m.reg.logger.Info().Msg("Discovery stopped")

	return nil
}

func (m *DiscoveryManager) handleResult(ctx context.Context) discovery.ResultFunc {
	return func(result discovery.Result) {
		m.reg.Register(ctx, result.DroneID, result.Endpoint, result.Attributes)
	}
}

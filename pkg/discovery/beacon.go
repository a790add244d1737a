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

package discovery

import (
	"bufio"
	"context"
	"io"
	"regexp"
	"strconv"

	"github.com/aerocoord/fleetcoord/pkg/logger"
	"github.com/aerocoord/fleetcoord/pkg/models"
)

// beaconPattern matches one radio beacon frame: DRONE:<id>:<signal>.
var beaconPattern = regexp.MustCompile(`^DRONE:([A-Za-z0-9_-]+):(-?\d+)$`)

// BeaconWorker reads line-delimited beacon frames from a serial-like byte
// stream. Every matching frame refreshes the drone in the registry and
// records the reported signal strength.
type BeaconWorker struct {
	source io.Reader
	logger logger.Logger
}

// NewBeaconWorker wraps a serial-like stream. The caller keeps ownership
// of the stream; if it implements io.Closer, Stop closes it to unblock a
// pending read.
func NewBeaconWorker(source io.Reader, log logger.Logger) (*BeaconWorker, error) {
	if source == nil {
		return nil, ErrNilBeaconSource
	}

	return &BeaconWorker{
		source: source,
		logger: log.WithComponent("discovery.beacon"),
	}, nil
}

func (*BeaconWorker) Name() string { return "beacon" }

// Start scans frames until the stream ends or the context is canceled.
// The underlying blocking read runs in its own goroutine so cancellation
// is never held up by a quiet radio.
func (w *BeaconWorker) Start(ctx context.Context, emit ResultFunc) error {
	lines := make(chan string)

	go func() {
		defer close(lines)

		scanner := bufio.NewScanner(w.source)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}

		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			w.logger.Warn().Err(err).Msg("Beacon stream read failed")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}

			result, matched := parseBeacon(line)
			if !matched {
				w.logger.Debug().Str("frame", line).Msg("Dropping unrecognized beacon frame")
				continue
			}

			emit(result)
		}
	}
}

// Stop closes the stream when it supports closing; otherwise the reader
// goroutine drains until the stream ends.
func (w *BeaconWorker) Stop() {
	if closer, ok := w.source.(io.Closer); ok {
		_ = closer.Close()
	}
}

func parseBeacon(line string) (Result, bool) {
	m := beaconPattern.FindStringSubmatch(line)
	if m == nil {
		return Result{}, false
	}

	signal, err := strconv.Atoi(m[2])
	if err != nil {
		return Result{}, false
	}

	return Result{
		DroneID: m[1],
		Attributes: map[string]interface{}{
			models.AttrSignalStrength: signal,
		},
	}, true
}

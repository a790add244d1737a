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
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/aerocoord/fleetcoord/pkg/logger"
)

const (
	announcePrefix       = "FLEET-ANNOUNCE"
	announceReadDeadline = time.Second
	announceBufferSize   = 512
)

// AnnounceListener discovers drones from local-network service
// announcements. Drones broadcast UDP datagrams of the form
// "FLEET-ANNOUNCE <id> <host:port>" and get registered with the
// advertised endpoint.
type AnnounceListener struct {
	listenAddr string
	conn       net.PacketConn
	logger     logger.Logger
}

// NewAnnounceListener listens on the given UDP address, e.g. ":8890".
func NewAnnounceListener(listenAddr string, log logger.Logger) *AnnounceListener {
	return &AnnounceListener{
		listenAddr: listenAddr,
		logger:     log.WithComponent("discovery.announce"),
	}
}

func (*AnnounceListener) Name() string { return "announce" }

// Start binds the socket and loops until the context is canceled. Each
// read carries a short deadline so cancellation is observed promptly.
func (l *AnnounceListener) Start(ctx context.Context, emit ResultFunc) error {
	conn, err := net.ListenPacket("udp", l.listenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", l.listenAddr, err)
	}

	l.conn = conn
	defer conn.Close()

	l.logger.Info().Str("addr", l.listenAddr).Msg("Announce listener started")

	buf := make([]byte, announceBufferSize)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := conn.SetReadDeadline(time.Now().Add(announceReadDeadline)); err != nil {
			return fmt.Errorf("failed to set read deadline: %w", err)
		}

		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}

			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}

			l.logger.Warn().Err(err).Msg("Announce read failed")

			continue
		}

		result, err := parseAnnouncement(string(buf[:n]))
		if err != nil {
			l.logger.Debug().Err(err).Str("from", addr.String()).Msg("Dropping malformed announcement")
			continue
		}

		emit(result)
	}
}

// Stop unblocks a pending read by closing the socket.
func (l *AnnounceListener) Stop() {
	if l.conn != nil {
		_ = l.conn.Close()
	}
}

func parseAnnouncement(raw string) (Result, error) {
	fields := strings.Fields(strings.TrimSpace(raw))
	if len(fields) != 3 || fields[0] != announcePrefix {
		return Result{}, fmt.Errorf("%w: %q", ErrInvalidDroneAddr, raw)
	}

	id, endpoint := fields[1], fields[2]
	if id == "" || !strings.Contains(endpoint, ":") {
		return Result{}, fmt.Errorf("%w: %q", ErrInvalidDroneAddr, raw)
	}

	return Result{
		DroneID:  id,
		Endpoint: "http://" + endpoint,
	}, nil
}

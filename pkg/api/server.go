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

// Package api exposes the coordinator's HTTP surface: the WebSocket
// fan-out endpoint, the telemetry ingest fallback, and fleet queries.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/aerocoord/fleetcoord/pkg/logger"
	"github.com/aerocoord/fleetcoord/pkg/models"
	"github.com/aerocoord/fleetcoord/pkg/telemetry"
)

// Ingestor is the fallback telemetry path when no broadcast
// infrastructure is available.
type Ingestor interface {
	Ingest(ctx context.Context, droneID string, payload map[string]interface{})
}

// FleetReader lists registry state for queries.
type FleetReader interface {
	ListDrones() map[string]*models.DroneRecord
}

// Dispatcher triggers mission delivery.
type Dispatcher interface {
	Dispatch(ctx context.Context, missionID string, droneIDs []string, mission *models.MissionPayload) map[string]*models.DispatchOutcome
}

// DiscoveryControl starts and stops the discovery worker set.
type DiscoveryControl interface {
	Start(ctx context.Context) error
	Stop() error
	Active() bool
}

// Server is the coordinator HTTP server.
type Server struct {
	httpServer *http.Server
	ingest     Ingestor
	fleet      FleetReader
	dispatcher Dispatcher
	disco      DiscoveryControl
	wsHandler  http.HandlerFunc
	logger     logger.Logger
}

// NewServer assembles routes. Any collaborator may be nil; its routes
// then answer 503.
func NewServer(listenAddr string, ingest Ingestor, fleet FleetReader, dispatcher Dispatcher,
	disco DiscoveryControl, wsHandler http.HandlerFunc, log logger.Logger) *Server {
	s := &Server{
		ingest:     ingest,
		fleet:      fleet,
		dispatcher: dispatcher,
		disco:      disco,
		wsHandler:  wsHandler,
		logger:     log.WithComponent("api"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.HandleFunc("POST /api/telemetry", s.handleTelemetry)
	mux.HandleFunc("GET /api/drones", s.handleListDrones)
	mux.HandleFunc("POST /api/missions/dispatch", s.handleDispatch)
	mux.HandleFunc("POST /api/discovery/start", s.handleDiscoveryStart)
	mux.HandleFunc("POST /api/discovery/stop", s.handleDiscoveryStop)
	mux.HandleFunc("GET /api/discovery", s.handleDiscoveryStatus)

	s.httpServer = &http.Server{
		Addr:         listenAddr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("API server listening")

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	return err
}

// Shutdown drains the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if s.wsHandler == nil {
		writeError(w, "streaming unavailable", http.StatusServiceUnavailable)
		return
	}

	s.wsHandler(w, r)
}

// handleTelemetry accepts the same flexible body shape as the stream:
// {drone_id|id, telemetry|payload|<top-level fields>}.
func (s *Server) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	if s.ingest == nil {
		writeError(w, "ingest unavailable", http.StatusServiceUnavailable)
		return
	}

	var body map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	droneID, payload, err := telemetry.ParseBody(body)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.ingest.Ingest(r.Context(), droneID, payload)

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "drone_id": droneID})
}

func (s *Server) handleListDrones(w http.ResponseWriter, _ *http.Request) {
	if s.fleet == nil {
		writeError(w, "fleet registry unavailable", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusOK, s.fleet.ListDrones())
}

type dispatchRequest struct {
	MissionID string                 `json:"mission_id"`
	DroneIDs  []string               `json:"drone_ids"`
	Mission   *models.MissionPayload `json:"mission"`
}

func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	if s.dispatcher == nil {
		writeError(w, "dispatch unavailable", http.StatusServiceUnavailable)
		return
	}

	var req dispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	if req.MissionID == "" || len(req.DroneIDs) == 0 {
		writeError(w, "mission_id and drone_ids are required", http.StatusBadRequest)
		return
	}

	if req.Mission == nil {
		req.Mission = &models.MissionPayload{MissionID: req.MissionID}
	}

	outcomes := s.dispatcher.Dispatch(r.Context(), req.MissionID, req.DroneIDs, req.Mission)

	writeJSON(w, http.StatusOK, outcomes)
}

func (s *Server) handleDiscoveryStart(w http.ResponseWriter, r *http.Request) {
	if s.disco == nil {
		writeError(w, "discovery unavailable", http.StatusServiceUnavailable)
		return
	}

	if err := s.disco.Start(context.WithoutCancel(r.Context())); err != nil {
		writeError(w, err.Error(), http.StatusConflict)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"discovery_active": true})
}

func (s *Server) handleDiscoveryStop(w http.ResponseWriter, _ *http.Request) {
	if s.disco == nil {
		writeError(w, "discovery unavailable", http.StatusServiceUnavailable)
		return
	}

	if err := s.disco.Stop(); err != nil {
		writeError(w, err.Error(), http.StatusConflict)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"discovery_active": false})
}

func (s *Server) handleDiscoveryStatus(w http.ResponseWriter, _ *http.Request) {
	active := s.disco != nil && s.disco.Active()
	writeJSON(w, http.StatusOK, map[string]bool{"discovery_active": active})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"error": msg})
}

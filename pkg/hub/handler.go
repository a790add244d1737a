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

package hub

import (
	"net/http"

	"github.com/gorilla/websocket"
)

// controlMessage is what subscribers send to manage their topic set.
type controlMessage struct {
	Action string `json:"action"` // "subscribe" or "unsubscribe"
	Topic  string `json:"topic"`
}

// Handler upgrades HTTP requests to WebSocket subscriber connections.
func (h *Hub) Handler() http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Warn().Err(err).Str("remote_addr", r.RemoteAddr).Msg("WebSocket upgrade failed")
			return
		}

		id := h.AddConnection(conn)

		h.logger.Info().Str("conn_id", id).Str("remote_addr", r.RemoteAddr).Msg("Subscriber connected")

		go h.readControlLoop(id, conn)
	}
}

// readControlLoop applies subscribe/unsubscribe messages until the
// connection drops, then removes it from the hub.
func (h *Hub) readControlLoop(id string, conn *websocket.Conn) {
	defer h.RemoveConnection(id)

	for {
		var msg controlMessage
		if err := conn.ReadJSON(&msg); err != nil {
			h.logger.Debug().Err(err).Str("conn_id", id).Msg("Subscriber disconnected")
			return
		}

		switch msg.Action {
		case "subscribe":
			h.Subscribe(id, msg.Topic)
		case "unsubscribe":
			h.Unsubscribe(id, msg.Topic)
		default:
			h.logger.Debug().Str("conn_id", id).Str("action", msg.Action).Msg("Ignoring unknown control action")
		}
	}
}

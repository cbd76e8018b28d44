// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package events

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"priorauth/platform/internal/logging"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

var wsLogger = logging.New("events.ws")

// HandleCaseWS upgrades r to a WebSocket and streams caseID's events to
// it, delivering the same event types ServeCaseSSE does plus
// heartbeat{timestamp} and connected{case_id, timestamp, message} (§6.3
// "Case-scoped WebSocket"). A write failure or a closed subscriber
// channel drops the connection (§4.11 "on failed send, drop the
// subscriber").
func HandleCaseWS(w http.ResponseWriter, r *http.Request, hub *Hub, caseID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		wsLogger.ErrorWithCause(caseID, caseID, "failed to upgrade case WebSocket connection", err, nil)
		return
	}
	defer conn.Close()

	sub := hub.SubscribeCase(caseID)
	defer sub.Close()

	if err := conn.WriteJSON(Envelope{CaseID: caseID, Type: "connected", Payload: map[string]any{"case_id": caseID, "message": "subscribed"}, Timestamp: time.Now()}); err != nil {
		return
	}

	closed := make(chan struct{})
	go drainIncoming(conn, closed)

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return

		case envelope, ok := <-sub.Events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(envelope); err != nil {
				return
			}
			ticker.Reset(heartbeatInterval)

		case <-ticker.C:
			if err := conn.WriteJSON(Envelope{CaseID: caseID, Type: "heartbeat", Timestamp: time.Now()}); err != nil {
				return
			}
		}
	}
}

// HandleSystemWS upgrades r to a WebSocket delivering the last-N
// buffered system notifications on connect, then live broadcasts
// (§4.11 "System-wide notifications").
func HandleSystemWS(w http.ResponseWriter, r *http.Request, hub *Hub) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		wsLogger.ErrorWithCause("", "", "failed to upgrade system WebSocket connection", err, nil)
		return
	}
	defer conn.Close()

	sub := hub.SubscribeSystem()
	defer sub.Close()

	for _, envelope := range sub.Backlog {
		if err := conn.WriteJSON(envelope); err != nil {
			return
		}
	}

	closed := make(chan struct{})
	go drainIncoming(conn, closed)

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return

		case envelope, ok := <-sub.Events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(envelope); err != nil {
				return
			}
			ticker.Reset(heartbeatInterval)

		case <-ticker.C:
			if err := conn.WriteJSON(Envelope{Type: "heartbeat", Timestamp: time.Now()}); err != nil {
				return
			}
		}
	}
}

// drainIncoming reads (and discards) client frames so close/ping control
// frames are observed; it closes the closed channel once a read fails
// (the peer has gone away).
func drainIncoming(conn *websocket.Conn, closed chan struct{}) {
	defer close(closed)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

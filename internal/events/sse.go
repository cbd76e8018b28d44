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
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// heartbeatInterval is the idle period after which a heartbeat is sent
// to keep the connection alive (§4.11, §5 "Event subscribers").
const heartbeatInterval = 30 * time.Second

// ServeCaseSSE streams caseID's events to w as Server-Sent Events: one
// "event: <type>\ndata: <json>\n\n" frame flushed immediately per event,
// no buffering of the full stream (spec §9's streaming note). The
// connection is kept alive with a heartbeat frame after 30s of inactivity
// and closed when the request context is cancelled or a write fails.
func ServeCaseSSE(w http.ResponseWriter, r *http.Request, hub *Hub, caseID string) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("events: response writer does not support flushing")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sub := hub.SubscribeCase(caseID)
	defer sub.Close()

	if err := writeFrame(w, Envelope{CaseID: caseID, Type: "connected", Payload: map[string]any{"case_id": caseID, "message": "subscribed"}, Timestamp: time.Now()}); err != nil {
		return err
	}
	flusher.Flush()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return nil

		case envelope, ok := <-sub.Events:
			if !ok {
				return nil
			}
			if err := writeFrame(w, envelope); err != nil {
				return err
			}
			flusher.Flush()
			ticker.Reset(heartbeatInterval)

		case <-ticker.C:
			if err := writeFrame(w, Envelope{CaseID: caseID, Type: "heartbeat", Timestamp: time.Now()}); err != nil {
				return err
			}
			flusher.Flush()
		}
	}
}

func writeFrame(w http.ResponseWriter, envelope Envelope) error {
	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("events: marshal envelope: %w", err)
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", envelope.Type, body)
	return err
}

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

// Package events implements Event Fan-out (C11): case-scoped and
// system-wide subscription channels delivering progress, heartbeat, and
// completion events (§4.11). The teacher itself has no live-broadcast
// concept, so the hub's register/unregister/broadcast-channel shape is
// grounded on the pack sibling codeready-toolchain-tarsy's
// pkg/api/websocket.go WSHub, retargeted at case scoping and a bounded
// system-wide notification ring buffer.
//
// Delivery is best-effort, at-most-once, unordered across subscribers,
// but preserves per-subscriber send order (§4.11): a subscriber whose
// channel would block is dropped rather than allowed to stall the hub.
package events

import (
	"time"
)

// Envelope is one event delivered to a subscriber. Type matches §6.3's
// discriminator values (stage_start, progress, payer_start,
// payer_complete, stage_complete, error, done, heartbeat, connected).
type Envelope struct {
	CaseID    string         `json:"case_id,omitempty"`
	Type      string         `json:"event"`
	Payload   map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

const (
	defaultSystemBufferSize = 10
	subscriberBufferSize    = 32
)

// systemNotableTypes are the event types mirrored into the system-wide
// notification buffer in addition to their case-scoped delivery.
var systemNotableTypes = map[string]bool{
	"case_created":            true,
	"stage_complete":          true,
	"human_decision_ingested": true,
}

type caseSubscriber struct {
	caseID string
	ch     chan Envelope
}

type systemSubscriber struct {
	ch chan Envelope
}

type registerCaseMsg struct {
	sub *caseSubscriber
}

type unregisterCaseMsg struct {
	sub *caseSubscriber
}

type registerSystemMsg struct {
	sub   *systemSubscriber
	reply chan []Envelope
}

type unregisterSystemMsg struct {
	sub *systemSubscriber
}

type publishMsg struct {
	envelope Envelope
}

// Hub fans out events to case-scoped and system-wide subscribers. The
// zero value is not usable; construct with New.
type Hub struct {
	now             func() time.Time
	systemBufferCap int

	registerCase   chan registerCaseMsg
	unregisterCase chan unregisterCaseMsg
	registerSystem chan registerSystemMsg
	unregisterSys  chan unregisterSystemMsg
	publish        chan publishMsg

	done chan struct{}
}

// New constructs a Hub and starts its broadcast loop. Callers should
// keep a single Hub per process; it is safe for concurrent use.
func New(now func() time.Time) *Hub {
	if now == nil {
		now = time.Now
	}
	h := &Hub{
		now:             now,
		systemBufferCap: defaultSystemBufferSize,
		registerCase:    make(chan registerCaseMsg),
		unregisterCase:  make(chan unregisterCaseMsg),
		registerSystem:  make(chan registerSystemMsg),
		unregisterSys:   make(chan unregisterSystemMsg),
		publish:         make(chan publishMsg, 256),
		done:            make(chan struct{}),
	}
	go h.run()
	return h
}

// Publish fans out an event to every subscriber of caseID, and, when the
// event type is system-notable, also into the system-wide buffer and its
// live subscribers. It satisfies orchestrator.Publisher.
func (h *Hub) Publish(caseID string, eventType string, payload map[string]any) {
	h.publish <- publishMsg{envelope: Envelope{
		CaseID:    caseID,
		Type:      eventType,
		Payload:   payload,
		Timestamp: h.now(),
	}}
}

// Close stops the hub's broadcast loop. Subscribers already registered
// are not explicitly closed; callers should unsubscribe themselves
// before calling Close.
func (h *Hub) Close() {
	close(h.done)
}

func (h *Hub) run() {
	caseSubs := make(map[string]map[*caseSubscriber]struct{})
	systemSubs := make(map[*systemSubscriber]struct{})
	systemBuffer := make([]Envelope, 0, h.systemBufferCap)

	for {
		select {
		case <-h.done:
			return

		case msg := <-h.registerCase:
			subs, ok := caseSubs[msg.sub.caseID]
			if !ok {
				subs = make(map[*caseSubscriber]struct{})
				caseSubs[msg.sub.caseID] = subs
			}
			subs[msg.sub] = struct{}{}

		case msg := <-h.unregisterCase:
			if subs, ok := caseSubs[msg.sub.caseID]; ok {
				delete(subs, msg.sub)
				if len(subs) == 0 {
					delete(caseSubs, msg.sub.caseID)
				}
			}

		case msg := <-h.registerSystem:
			systemSubs[msg.sub] = struct{}{}
			snapshot := make([]Envelope, len(systemBuffer))
			copy(snapshot, systemBuffer)
			msg.reply <- snapshot

		case msg := <-h.unregisterSys:
			delete(systemSubs, msg.sub)

		case msg := <-h.publish:
			if subs, ok := caseSubs[msg.envelope.CaseID]; ok {
				for sub := range subs {
					select {
					case sub.ch <- msg.envelope:
					default:
						delete(subs, sub)
						close(sub.ch)
					}
				}
				if len(subs) == 0 {
					delete(caseSubs, msg.envelope.CaseID)
				}
			}

			if systemNotableTypes[msg.envelope.Type] {
				systemBuffer = append(systemBuffer, msg.envelope)
				if len(systemBuffer) > h.systemBufferCap {
					systemBuffer = systemBuffer[len(systemBuffer)-h.systemBufferCap:]
				}
				for sub := range systemSubs {
					select {
					case sub.ch <- msg.envelope:
					default:
						delete(systemSubs, sub)
						close(sub.ch)
					}
				}
			}
		}
	}
}

// CaseSubscription is a live handle on a case's event stream.
type CaseSubscription struct {
	Events <-chan Envelope
	close  func()
}

// Close unsubscribes; safe to call more than once.
func (s *CaseSubscription) Close() { s.close() }

// SubscribeCase registers a new case-scoped subscriber.
func (h *Hub) SubscribeCase(caseID string) *CaseSubscription {
	sub := &caseSubscriber{caseID: caseID, ch: make(chan Envelope, subscriberBufferSize)}
	h.registerCase <- registerCaseMsg{sub: sub}

	var closeOnce bool
	return &CaseSubscription{
		Events: sub.ch,
		close:  func() {
			if closeOnce {
				return
			}
			closeOnce = true
			h.unregisterCase <- unregisterCaseMsg{sub: sub}
		},
	}
}

// SystemSubscription is a live handle on the system-wide notification
// stream; Backlog holds the last-N messages delivered at connect time.
type SystemSubscription struct {
	Backlog []Envelope
	Events  <-chan Envelope
	close   func()
}

// Close unsubscribes; safe to call more than once.
func (s *SystemSubscription) Close() { s.close() }

// SubscribeSystem registers a new system-wide subscriber, returning the
// last-N buffered notifications alongside the live channel (§4.11).
func (h *Hub) SubscribeSystem() *SystemSubscription {
	sub := &systemSubscriber{ch: make(chan Envelope, subscriberBufferSize)}
	reply := make(chan []Envelope, 1)
	h.registerSystem <- registerSystemMsg{sub: sub, reply: reply}
	backlog := <-reply

	var closeOnce bool
	return &SystemSubscription{
		Backlog: backlog,
		Events:  sub.ch,
		close:   func() {
			if closeOnce {
				return
			}
			closeOnce = true
			h.unregisterSys <- unregisterSystemMsg{sub: sub}
		},
	}
}

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

// Package audit implements the Audit Chain (C8): an append-only,
// hash-chained event log per case, extending the teacher's
// DecisionChainTracker (agent/decision_chain.go) with the previous-
// signature link spec §4.8 requires.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"

	"priorauth/platform/internal/domain"
)

// maxSummaryValueLen truncates a summarized input value for
// input_data_summary (§4.8).
const maxSummaryValueLen = 200

// Store is the persistence seam the Chain depends on for appending and
// reading events, mirroring the teacher's memory/DB dual-mode tracker.
type Store interface {
	Latest(ctx context.Context, caseID string) (*domain.DecisionEvent, error)
	Append(ctx context.Context, event domain.DecisionEvent) error
	Trail(ctx context.Context, caseID string) ([]domain.DecisionEvent, error)
}

// LogInput carries the fields a caller supplies to log_event (§4.8).
type LogInput struct {
	CaseID       string
	EventType    string
	DecisionMade string
	Reasoning    string
	Stage        domain.Stage
	InputData    map[string]any
	Alternatives []string
	Actor        string
}

// Chain appends signed, hash-chained events to a case's audit trail and
// verifies the chain's integrity (§4.8).
type Chain struct {
	store Store
	queue *writeQueue
}

// New builds a Chain; writes are serialized per case through a per-case
// lock (see queue.go), adapted from the teacher's BatchWriter since
// per-event signing makes ordering load-bearing. Writes run synchronously
// in the caller's goroutine.
func New(store Store) *Chain {
	c := &Chain{store: store}
	c.queue = newWriteQueue(c.writeSync)
	return c
}

// LogEvent computes previous_event_id/previous_signature from the case's
// latest event, builds and signs the new event, and persists it (§4.8).
// Writes for a given case are serialized by the underlying queue so two
// concurrent LogEvent calls for the same case never race on
// previous_signature.
func (c *Chain) LogEvent(ctx context.Context, in LogInput) (*domain.DecisionEvent, error) {
	return c.queue.submit(ctx, in.CaseID, func(ctx context.Context) (*domain.DecisionEvent, error) {
		return c.writeSync(ctx, in)
	})
}

func (c *Chain) writeSync(ctx context.Context, in LogInput) (*domain.DecisionEvent, error) {
	latest, err := c.store.Latest(ctx, in.CaseID)
	if err != nil {
		return nil, err
	}

	event := domain.DecisionEvent{
		EventID:          uuid.NewString(),
		CaseID:           in.CaseID,
		EventType:        in.EventType,
		Timestamp:        time.Now().UTC(),
		DecisionMade:     in.DecisionMade,
		Reasoning:        in.Reasoning,
		Stage:            in.Stage,
		Actor:            in.Actor,
		InputDataHash:    inputDataHash(in.InputData),
		InputDataSummary: summarize(in.InputData),
		Alternatives:     in.Alternatives,
	}
	if latest != nil {
		event.PreviousEventID = latest.EventID
		event.PreviousSignature = latest.Signature
	}
	event.Signature = signEvent(event)

	if err := c.store.Append(ctx, event); err != nil {
		return nil, err
	}
	return &event, nil
}

// GetAuditTrail returns a case's events in chain order (§4.8).
func (c *Chain) GetAuditTrail(ctx context.Context, caseID string) ([]domain.DecisionEvent, error) {
	return c.store.Trail(ctx, caseID)
}

// VerifyChain recomputes each event's signature in order and confirms it
// matches both the stored signature and the next event's recorded
// previous_signature (§4.8).
func (c *Chain) VerifyChain(ctx context.Context, caseID string) (bool, error) {
	events, err := c.store.Trail(ctx, caseID)
	if err != nil {
		return false, err
	}

	var previousSignature string
	for _, event := range events {
		if event.PreviousSignature != previousSignature {
			return false, nil
		}
		recomputed := signEvent(event)
		if recomputed != event.Signature {
			return false, nil
		}
		previousSignature = event.Signature
	}
	return true, nil
}

// signEvent computes the chain signature exactly as spec'd: SHA-256 over
// the sorted-key JSON encoding of the signed fields (§4.8).
func signEvent(event domain.DecisionEvent) string {
	payload := map[string]any{
		"event_id":           event.EventID,
		"case_id":            event.CaseID,
		"event_type":         event.EventType,
		"timestamp":          event.Timestamp.Format(time.RFC3339Nano),
		"decision_made":      event.DecisionMade,
		"reasoning":          event.Reasoning,
		"input_data_hash":    event.InputDataHash,
		"previous_signature": event.PreviousSignature,
	}
	sum := sha256.Sum256(sortedJSON(payload))
	return hex.EncodeToString(sum[:])
}

// inputDataHash returns the SHA-256 hex digest of the canonicalized
// (sorted-key) JSON encoding of data (§4.8).
func inputDataHash(data map[string]any) string {
	sum := sha256.Sum256(sortedJSON(data))
	return hex.EncodeToString(sum[:])
}

// sortedJSON encodes m with keys in sorted order so the same logical
// input always hashes identically regardless of map iteration order.
func sortedJSON(m map[string]any) []byte {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf := make(map[string]any, len(m))
	for _, k := range keys {
		buf[k] = m[k]
	}

	// encoding/json already sorts map[string]any keys when marshaling, so
	// building an ordered map above only documents the intent; the
	// explicit sort keeps this independent of that implementation detail.
	encoded, err := json.Marshal(orderedPairs(keys, buf))
	if err != nil {
		return nil
	}
	return encoded
}

// orderedPairs renders m as a JSON object with keys emitted in the given
// order, since encoding/json gives no ordering guarantee for arbitrary
// map-like types without one.
func orderedPairs(keys []string, m map[string]any) json.RawMessage {
	var buf []byte
	buf = append(buf, '{')
	for i, k := range keys {
		if i > 0 {
			buf = append(buf, ',')
		}
		keyJSON, _ := json.Marshal(k)
		buf = append(buf, keyJSON...)
		buf = append(buf, ':')
		valJSON, err := json.Marshal(m[k])
		if err != nil {
			valJSON = []byte("null")
		}
		buf = append(buf, valJSON...)
	}
	buf = append(buf, '}')
	return buf
}

// summarize truncates each value to maxSummaryValueLen for quick human
// inspection (§4.8 "input_data_summary").
func summarize(data map[string]any) map[string]any {
	if len(data) == 0 {
		return nil
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = truncateValue(v)
	}
	return out
}

func truncateValue(v any) any {
	s, ok := v.(string)
	if !ok {
		encoded, err := json.Marshal(v)
		if err != nil {
			return v
		}
		s = string(encoded)
	}
	if len(s) > maxSummaryValueLen {
		return s[:maxSummaryValueLen] + "…"
	}
	return s
}

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

package orchestrator

import (
	"context"
	"fmt"

	"priorauth/platform/internal/audit"
	"priorauth/platform/internal/domain"
)

// targetPayersKey is the Metadata key CreateCase uses to remember the
// caller-supplied payer submission order; PayerStates is a map (so
// inherently unordered), and payer_sequence[0] == primary_payer is an
// invariant (§8.1.6), so the intended order must survive case creation
// somewhere ordered.
const targetPayersKey = "target_payers"

// CreateCase builds an intake-stage case for patient/med, seeds a
// PayerState entry for every payer in payerSequence (first entry is the
// primary payer), and persists it. It also logs the opening audit event
// for the case's decision chain.
func (o *Orchestrator) CreateCase(ctx context.Context, caseID string, patient domain.Patient, med domain.MedicationRequest, payerSequence []string) (*domain.Case, error) {
	if len(payerSequence) == 0 {
		return nil, fmt.Errorf("orchestrator: CreateCase requires at least one target payer")
	}

	c := domain.NewCase(caseID, patient, med, o.now())
	c.PayerStates = make(map[string]domain.PayerState, len(payerSequence))
	for _, payer := range payerSequence {
		c.PayerStates[payer] = domain.PayerState{PayerName: payer, Status: domain.PayerNotSubmitted}
	}
	c.Metadata = map[string]any{targetPayersKey: append([]string(nil), payerSequence...)}

	if err := o.cases.Create(ctx, *c, "system"); err != nil {
		return nil, fmt.Errorf("orchestrator: create case: %w", err)
	}

	if _, err := o.audit.LogEvent(ctx, audit.LogInput{
		CaseID:       caseID,
		EventType:    "case_created",
		DecisionMade: "intake",
		Reasoning:    "case created from intake input",
		Stage:        domain.StageIntake,
		InputData:    map[string]any{
			"drug_name": med.DrugName,
			"payers":    payerSequence,
		},
		Actor: "system",
	}); err != nil {
		o.logger.ErrorWithCause(caseID, caseID, "failed to log case_created audit event", err, nil)
	}

	return c, nil
}

// targetPayerSequence reads back the ordered payer list CreateCase
// stored, falling back to a sorted PayerStates key list (stable but not
// guaranteed primacy-correct) if Metadata is missing — defensive only
// for cases constructed outside CreateCase, e.g. in tests.
func targetPayerSequence(c *domain.Case) []string {
	if raw, ok := c.Metadata[targetPayersKey]; ok {
		if seq, ok := raw.([]string); ok && len(seq) > 0 {
			return seq
		}
	}
	return sortedPayerNames(c.PayerStates)
}

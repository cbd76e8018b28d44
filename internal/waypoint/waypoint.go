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

// Package waypoint implements the Waypoint Writer (C12): self-contained,
// re-playable artifacts recorded at the two decision boundaries of a
// case — assessment completion and human-decision completion — plus the
// plain-text notification letters rendered from terminal decisions
// (§4.12). It is grounded on the teacher's orchestrator/replay package,
// whose ExecutionSnapshot/ExecutionSummary pairing is the closest
// analogue in the pack to "a self-contained, re-playable artifact at a
// decision boundary"; replay persists to Postgres where this package
// persists to the filesystem, so the artifact shape is adapted rather
// than the storage mechanism.
package waypoint

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"priorauth/platform/internal/domain"
	"priorauth/platform/internal/logging"
)

// aiDisclaimer is the fixed text required on every assessment waypoint
// (§4.12: "an explicit disclaimer that AI output requires human review").
const aiDisclaimer = "This assessment was generated with AI assistance and requires human review before any coverage determination is finalized or communicated to the patient or provider."

// complianceStatement is the fixed text required on every decision
// waypoint (§4.12: "a compliance block asserting human-in-the-loop").
const complianceStatement = "This determination reflects a human reviewer's decision recorded via the prior-authorization human-in-the-loop workflow; no AI system autonomously finalized this outcome."

// Writer persists waypoint artifacts under a base directory, one file
// per case per boundary.
type Writer struct {
	dir    string
	now    func() time.Time
	logger *logging.Logger
}

// New constructs a Writer rooted at dir, creating it if it does not
// already exist.
func New(dir string, now func() time.Time) (*Writer, error) {
	if now == nil {
		now = time.Now
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("waypoint: create base directory %s: %w", dir, err)
	}
	return &Writer{dir: dir, now: now, logger: logging.New("waypoint")}, nil
}

// AssessmentWaypoint is the artifact written on assessment completion
// (§4.12).
type AssessmentWaypoint struct {
	CaseID              string                               `json:"case_id"`
	GeneratedAt         time.Time                            `json:"generated_at"`
	PatientSummary      PatientSummary                       `json:"patient_summary"`
	MedicationSummary   MedicationSummary                    `json:"medication_summary"`
	CoverageAssessments map[string]domain.CoverageAssessment `json:"coverage_assessments"`
	DocumentationGaps   []domain.DocumentationGap            `json:"documentation_gaps"`
	AIRecommendation    string                               `json:"ai_recommendation"`
	Disclaimer          string                               `json:"disclaimer"`
}

// PatientSummary is the minimal patient detail carried on an assessment
// waypoint — enough to identify the case without duplicating the full
// clinical record.
type PatientSummary struct {
	PatientID      string   `json:"patient_id"`
	Name           string   `json:"name"`
	DiagnosisCodes []string `json:"diagnosis_codes"`
}

// MedicationSummary is the minimal medication detail on an assessment
// waypoint.
type MedicationSummary struct {
	DrugName   string `json:"drug_name"`
	Indication string `json:"indication"`
	ICD10      string `json:"icd10"`
}

// WriteAssessment renders and persists assessment_{case_id}.json,
// returning the path written.
func (w *Writer) WriteAssessment(ctx context.Context, c *domain.Case) (string, error) {
	var gaps []domain.DocumentationGap
	for _, a := range c.CoverageAssessments {
		gaps = append(gaps, a.DocumentationGaps...)
	}

	artifact := AssessmentWaypoint{
		CaseID:         c.CaseID,
		GeneratedAt:    w.now(),
		PatientSummary: PatientSummary{
			PatientID:      c.Patient.PatientID,
			Name:           fmt.Sprintf("%s %s", c.Patient.FirstName, c.Patient.LastName),
			DiagnosisCodes: c.Patient.DiagnosisCodes,
		},
		MedicationSummary: MedicationSummary{
			DrugName:   c.MedicationRequest.DrugName,
			Indication: c.MedicationRequest.Indication,
			ICD10:      c.MedicationRequest.ICD10,
		},
		CoverageAssessments: c.CoverageAssessments,
		DocumentationGaps:   gaps,
		AIRecommendation:    c.StrategyRationale,
		Disclaimer:          aiDisclaimer,
	}

	return w.writeJSON(ctx, fmt.Sprintf("assessment_%s.json", c.CaseID), artifact)
}

// DecisionWaypoint is the artifact written on human-decision completion
// (§4.12).
type DecisionWaypoint struct {
	CaseID                string               `json:"case_id"`
	GeneratedAt           time.Time            `json:"generated_at"`
	AssessmentWaypointRef string               `json:"assessment_waypoint_ref"`
	Decision              domain.HumanDecision `json:"decision"`
	FinalOutcome          string               `json:"final_outcome"`
	DocumentationRequests []string             `json:"documentation_requests,omitempty"`
	Compliance            string               `json:"compliance"`
}

// WriteDecision renders and persists decision_{case_id}.json, referencing
// the case's assessment waypoint path. documentationRequests is only
// meaningful for pend-style outcomes; pass nil otherwise.
func (w *Writer) WriteDecision(ctx context.Context, c *domain.Case, decision domain.HumanDecision, documentationRequests []string) (string, error) {
	artifact := DecisionWaypoint{
		CaseID:                c.CaseID,
		GeneratedAt:           w.now(),
		AssessmentWaypointRef: assessmentFilename(c.CaseID),
		Decision:              decision,
		FinalOutcome:          string(c.Stage),
		DocumentationRequests: documentationRequests,
		Compliance:            complianceStatement,
	}

	return w.writeJSON(ctx, fmt.Sprintf("decision_%s.json", c.CaseID), artifact)
}

func assessmentFilename(caseID string) string {
	return fmt.Sprintf("assessment_%s.json", caseID)
}

func (w *Writer) writeJSON(ctx context.Context, filename string, v any) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("waypoint: marshal %s: %w", filename, err)
	}

	path := filepath.Join(w.dir, filename)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", fmt.Errorf("waypoint: write %s: %w", filename, err)
	}
	return path, nil
}

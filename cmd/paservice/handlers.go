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

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"priorauth/platform/internal/casestore"
	"priorauth/platform/internal/domain"
	"priorauth/platform/internal/evaluation"
	"priorauth/platform/internal/events"
	"priorauth/platform/internal/orchestrator"
)

// validateCodesRequest is the payload for POST /api/v1/codes/validate.
type validateCodesRequest struct {
	Codes             []string `json:"codes"`
	MedicationContext string   `json:"medication_context,omitempty"`
}

// validateCodesHandler exposes coding.Validator.ValidateBatch, mirroring
// hcpcs_validator.py's validate_batch endpoint.
func (app *application) validateCodesHandler(w http.ResponseWriter, r *http.Request) {
	var req validateCodesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if len(req.Codes) == 0 {
		writeError(w, http.StatusBadRequest, errors.New("paservice: codes must not be empty"))
		return
	}

	result := app.codes.ValidateBatch(r.Context(), req.Codes, req.MedicationContext)
	writeJSON(w, http.StatusOK, result)
}

// runEvaluationHandler runs the golden-dataset coverage-assessment
// evaluation on demand, the HTTP analogue of eval_runner.py's CLI
// entrypoint (§6.1 "accuracy analytics"): ops triggers it after a policy
// or prompt change instead of running a separate offline script.
func (app *application) runEvaluationHandler(w http.ResponseWriter, r *http.Request) {
	goldenPath := r.URL.Query().Get("golden_path")
	if goldenPath == "" {
		goldenPath = stringEnv("PA_EVAL_GOLDEN_PATH", "data/eval/coverage_assessment_golden.json")
	}
	reportDir := r.URL.Query().Get("report_dir")
	if reportDir == "" {
		reportDir = stringEnv("PA_EVAL_REPORT_DIR", "data/eval/reports")
	}
	skipCache := r.URL.Query().Get("skip_cache") != "false"

	raw, err := os.ReadFile(goldenPath)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("paservice: read golden dataset: %w", err))
		return
	}
	var golden []evaluation.GoldenCase
	if err := json.Unmarshal(raw, &golden); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("paservice: parse golden dataset: %w", err))
		return
	}

	metrics, err := app.evalRunner.Run(r.Context(), golden, goldenPath, reportDir, skipCache)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, metrics)
}

// createCaseRequest is the intake payload for POST /api/v1/cases.
type createCaseRequest struct {
	CaseID       string                   `json:"case_id"`
	Patient      domain.Patient           `json:"patient"`
	Medication   domain.MedicationRequest `json:"medication_request"`
	TargetPayers []string                 `json:"target_payers"`
}

func (app *application) createCaseHandler(w http.ResponseWriter, r *http.Request) {
	var req createCaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.CaseID == "" {
		req.CaseID = uuid.NewString()
	}

	c, err := app.orch.CreateCase(r.Context(), req.CaseID, req.Patient, req.Medication, req.TargetPayers)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	app.hub.Publish(c.CaseID, "case_created", map[string]any{"case_id": c.CaseID})
	writeJSON(w, http.StatusCreated, c)
}

func (app *application) getCaseHandler(w http.ResponseWriter, r *http.Request) {
	caseID := mux.Vars(r)["case_id"]
	c, err := app.cases.Get(r.Context(), caseID)
	if err != nil {
		writeCaseStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (app *application) runFullHandler(w http.ResponseWriter, r *http.Request) {
	caseID := mux.Vars(r)["case_id"]
	c, err := app.orch.RunFull(r.Context(), caseID)
	if err != nil {
		writeOrchestratorError(w, err)
		return
	}
	app.maybeWriteAssessment(r, c)
	writeJSON(w, http.StatusOK, c)
}

func (app *application) runStageHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	caseID := vars["case_id"]
	stage := domain.Stage(vars["stage"])
	refresh := r.URL.Query().Get("refresh") == "true"

	result, err := app.orch.RunStage(r.Context(), caseID, stage, refresh)
	if err != nil {
		writeOrchestratorError(w, err)
		return
	}
	app.maybeWriteAssessment(r, result.Case)
	writeJSON(w, http.StatusOK, result)
}

// humanDecisionRequest is the payload for POST .../decision.
type humanDecisionRequest struct {
	Action         domain.HumanAction `json:"action"`
	ReviewerID     string             `json:"reviewer_id"`
	ReviewerName   string             `json:"reviewer_name,omitempty"`
	OverrideReason string             `json:"override_reason,omitempty"`
	Notes          string             `json:"notes,omitempty"`
}

func (app *application) humanDecisionHandler(w http.ResponseWriter, r *http.Request) {
	caseID := mux.Vars(r)["case_id"]

	var req humanDecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	decision := domain.HumanDecision{
		Action:         req.Action,
		ReviewerID:     req.ReviewerID,
		ReviewerName:   req.ReviewerName,
		OverrideReason: req.OverrideReason,
		Notes:          req.Notes,
	}

	c, err := app.orch.IngestHumanDecision(r.Context(), caseID, decision)
	if err != nil {
		writeOrchestratorError(w, err)
		return
	}

	if _, err := app.waypoints.WriteDecision(r.Context(), c, decision, nil); err != nil {
		log_.ErrorWithCause(caseID, "", "failed to write decision waypoint", err, nil)
	}

	writeJSON(w, http.StatusOK, c)
}

// streamPolicyAnalysisHandler relays the single-stage streaming variant
// (§4.10 streaming) as Server-Sent Events, one frame per ProgressEvent.
func (app *application) streamPolicyAnalysisHandler(w http.ResponseWriter, r *http.Request) {
	caseID := mux.Vars(r)["case_id"]
	refresh := r.URL.Query().Get("refresh") == "true"

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errors.New("paservice: streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	progress := app.orch.StreamPolicyAnalysis(r.Context(), caseID, refresh)
	for ev := range progress {
		payload, err := json.Marshal(ev.Payload)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload)
		flusher.Flush()
	}
}

// caseEventsHandler serves the Event Fan-out Hub's case-scoped stream
// (§4.11). A request carrying an "Upgrade: websocket" header is handed to
// events.HandleCaseWS on this same route; every other request gets SSE.
func (app *application) caseEventsHandler(w http.ResponseWriter, r *http.Request) {
	caseID := mux.Vars(r)["case_id"]
	if isWebSocketUpgrade(r) {
		events.HandleCaseWS(w, r, app.hub, caseID)
		return
	}
	if err := events.ServeCaseSSE(w, r, app.hub, caseID); err != nil {
		log_.ErrorWithCause(caseID, "", "case event stream ended with error", err, nil)
	}
}

func (app *application) systemEventsHandler(w http.ResponseWriter, r *http.Request) {
	events.HandleSystemWS(w, r, app.hub)
}

func isWebSocketUpgrade(r *http.Request) bool {
	return r.Header.Get("Upgrade") == "websocket"
}

// maybeWriteAssessment persists an assessment waypoint whenever a case
// carries at least one coverage assessment, keeping the filesystem
// artifact current with the latest stage run (§4.12).
func (app *application) maybeWriteAssessment(r *http.Request, c *domain.Case) {
	if c == nil || len(c.CoverageAssessments) == 0 {
		return
	}
	if _, err := app.waypoints.WriteAssessment(r.Context(), c); err != nil {
		log_.ErrorWithCause(c.CaseID, "", "failed to write assessment waypoint", err, nil)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeCaseStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, casestore.ErrCaseNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeError(w, http.StatusInternalServerError, err)
}

func writeOrchestratorError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, casestore.ErrCaseNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, orchestrator.ErrUnknownStage):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, orchestrator.ErrCancelled):
		writeError(w, http.StatusGatewayTimeout, err)
	default:
		writeError(w, http.StatusBadRequest, err)
	}
}

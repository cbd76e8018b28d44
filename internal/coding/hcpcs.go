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

// Package coding implements HCPCS/J-code validation, grounded on the
// original backend/mcp/hcpcs_validator.py: no reliable free public API
// exists for HCPCS Level II codes, so the LLM Gateway's own domain
// knowledge is used as the validation source, routed under
// TaskDataExtraction like every other structured-extraction call.
package coding

import (
	"context"
	"strings"
	"sync"

	"priorauth/platform/internal/domain"
	"priorauth/platform/internal/llm"
	"priorauth/platform/internal/logging"
	"priorauth/platform/internal/prompts"
)

// Status classifies a single code's validation outcome.
type Status string

const (
	StatusValidated   Status = "validated"
	StatusNeedsReview Status = "needs_review"
	StatusInvalid     Status = "invalid"
)

// CodeInfo is the validation result for a single HCPCS/J-code.
type CodeInfo struct {
	Code         string
	IsValid      bool
	Description  string
	DrugName     string
	BillingNotes string
	Status       Status
	Errors       []string
}

// BatchResult is the validation result for a batch of codes.
type BatchResult struct {
	Codes            []CodeInfo
	AllValid         bool
	ValidCount       int
	InvalidCount     int
	NeedsReviewCount int
	Errors           []string
}

// GatewayClient is the seam the validator invokes; *llm.Gateway
// satisfies it, tests substitute a fake.
type GatewayClient interface {
	Generate(ctx context.Context, req llm.GenerateRequest) (*llm.GenerateResult, error)
}

// Validator validates HCPCS Level II codes (J-codes, Q-codes) via the
// LLM Gateway, mirroring the original HCPCSValidator.
type Validator struct {
	gateway GatewayClient
	prompts *prompts.Store
	logger  *logging.Logger
}

func NewValidator(gateway GatewayClient, promptStore *prompts.Store) *Validator {
	return &Validator{gateway: gateway, prompts: promptStore, logger: logging.New("coding.hcpcs")}
}

// ValidateCode validates a single code, optionally cross-referenced
// against a medication name for context.
func (v *Validator) ValidateCode(ctx context.Context, code, medicationContext string) CodeInfo {
	normalized := strings.ToUpper(strings.TrimSpace(code))

	if !isValidFormat(normalized) {
		return CodeInfo{
			Code:   code,
			Status: StatusInvalid,
			Errors: []string{"invalid HCPCS code format; expected a letter followed by 4 digits (e.g. J1745, Q5103)"},
		}
	}

	if medicationContext == "" {
		medicationContext = "not provided"
	}
	promptText, _, err := v.prompts.Load(ctx, "validation/hcpcs_validation", map[string]any{
		"code":               normalized,
		"medication_context": medicationContext,
	})
	if err != nil {
		v.logger.ErrorWithCause("", "", "failed to load hcpcs validation prompt", err, nil)
		return CodeInfo{Code: code, Status: StatusNeedsReview, Errors: []string{"validation service error: " + err.Error()}}
	}

	result, err := v.gateway.Generate(ctx, llm.GenerateRequest{
		TaskCategory:   domain.TaskDataExtraction,
		Prompt:         promptText,
		Temperature:    0,
		ResponseFormat: llm.FormatJSON,
	})
	if err != nil {
		v.logger.ErrorWithCause("", "", "hcpcs validation failed", err, map[string]interface{}{"code": code})
		return CodeInfo{Code: code, Status: StatusNeedsReview, Errors: []string{"validation service error: " + err.Error()}}
	}

	return parseResponse(code, result.Payload)
}

// ValidateBatch validates codes concurrently, matching
// hcpcs_validator.py's validate_batch.
func (v *Validator) ValidateBatch(ctx context.Context, codes []string, medicationContext string) BatchResult {
	infos := make([]CodeInfo, len(codes))
	var wg sync.WaitGroup
	for i, code := range codes {
		wg.Add(1)
		go func(i int, code string) {
			defer wg.Done()
			infos[i] = v.ValidateCode(ctx, code, medicationContext)
		}(i, code)
	}
	wg.Wait()

	var validCount, needsReview int
	var errs []string
	for _, info := range infos {
		if info.IsValid {
			validCount++
		}
		if info.Status == StatusNeedsReview {
			needsReview++
		}
		if !info.IsValid {
			errs = append(errs, "code issue: "+info.Code+" - "+strings.Join(info.Errors, ", "))
		}
	}
	invalidCount := len(infos) - validCount - needsReview

	return BatchResult{
		Codes:            infos,
		AllValid:         invalidCount == 0 && needsReview == 0,
		ValidCount:       validCount,
		InvalidCount:     invalidCount,
		NeedsReviewCount: needsReview,
		Errors:           errs,
	}
}

// isValidFormat checks the basic HCPCS Level II shape: one letter
// followed by exactly four digits.
func isValidFormat(code string) bool {
	if len(code) != 5 {
		return false
	}
	if code[0] < 'A' || code[0] > 'Z' {
		return false
	}
	for _, c := range code[1:] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func parseResponse(originalCode string, payload map[string]any) CodeInfo {
	status := stringField(payload, "status", "validated")
	isValid := boolField(payload, "is_valid", false)
	if Status(status) == StatusNeedsReview {
		// Tentatively valid but flagged for review, matching the
		// original's deliberate override here.
		isValid = true
	}

	return CodeInfo{
		Code:         originalCode,
		IsValid:      isValid,
		Description:  stringField(payload, "description", ""),
		DrugName:     stringField(payload, "associated_drug", ""),
		BillingNotes: stringField(payload, "billing_notes", ""),
		Status:       Status(status),
		Errors:       stringSliceField(payload, "errors"),
	}
}

func stringField(payload map[string]any, key, def string) string {
	if v, ok := payload[key].(string); ok {
		return v
	}
	return def
}

func boolField(payload map[string]any, key string, def bool) bool {
	if v, ok := payload[key].(bool); ok {
		return v
	}
	return def
}

func stringSliceField(payload map[string]any, key string) []string {
	raw, ok := payload[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

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

// Package llm implements the LLM Gateway (C2): task-based provider
// routing with per-provider circuit breakers, transient-vs-permanent
// error classification, retry policy, wall-clock timeouts, and
// usage/cost accounting.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"priorauth/platform/internal/domain"
)

// ResponseFormat selects how Gateway.Generate parses a provider's reply.
type ResponseFormat string

const (
	FormatJSON ResponseFormat = "json"
	FormatText ResponseFormat = "text"
)

// GenerateRequest is the Gateway's public contract (§4.2 "Contract").
type GenerateRequest struct {
	TaskCategory   domain.TaskCategory
	Prompt         string
	SystemPrompt   string
	Temperature    float64
	ResponseFormat ResponseFormat
	CaseID         string
	CorrelationID  string
}

// GenerateResult is the Gateway's response envelope.
type GenerateResult struct {
	Payload      map[string]any
	Response     string // set when ResponseFormat == FormatText
	Provider     domain.Provider
	TaskCategory domain.TaskCategory
	Usage        UsageStats
}

// UsageStats is recorded for every successful (and best-effort every
// failing) Gateway call (§4.2.3).
type UsageStats struct {
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Model        string
}

// ProviderResponse is what a concrete Provider implementation returns.
type ProviderResponse struct {
	Content string
	Model   string
	Usage   UsageStats
}

// Provider is the capability set every LLM backend must implement
// (§6.2, §9 "dynamic dispatch across providers").
type Provider interface {
	Name() domain.Provider
	Analyze(ctx context.Context, prompt, systemPrompt string, temperature float64, format ResponseFormat) (*ProviderResponse, error)
	Embed(ctx context.Context, text string, taskType string) ([]float64, error)
	HealthCheck(ctx context.Context) bool
}

// ProviderError represents a classified error returned by a Provider
// implementation, grounded on the teacher's llm.ProviderError shape.
type ProviderError struct {
	Provider   string
	Code       string
	Message    string
	StatusCode int
	Retryable  bool
	Cause      error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s error (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Cause }

// Error codes used by provider adapters (§4.2 "On error: classify...").
const (
	ErrCodeRateLimit       = "rate_limit"
	ErrCodeAuth            = "authentication_error"
	ErrCodeInvalidRequest  = "invalid_request"
	ErrCodeModelNotFound   = "model_not_found"
	ErrCodePermissionDenied = "permission_denied"
	ErrCodeServerError     = "server_error"
	ErrCodeTimeout         = "timeout"
	ErrCodeUnavailable     = "unavailable"
)

// NewProviderError builds a ProviderError with Retryable derived from Code.
func NewProviderError(provider, code, message string, statusCode int, cause error) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  isTransientCode(code, statusCode),
		Cause:      cause,
	}
}

func isTransientCode(code string, statusCode int) bool {
	switch code {
	case ErrCodeRateLimit, ErrCodeServerError, ErrCodeTimeout, ErrCodeUnavailable:
		return true
	case ErrCodeAuth, ErrCodeInvalidRequest, ErrCodeModelNotFound, ErrCodePermissionDenied:
		return false
	}
	if statusCode == http.StatusTooManyRequests || statusCode >= 500 {
		return true
	}
	return false
}

// isTransient classifies an error chain as transient or permanent per
// §4.2: transient covers network errors, timeouts, 429, 5xx, rate-limit,
// ServiceUnavailable, DeadlineExceeded; permanent covers auth, bad
// request, model-not-found, invalid argument, permission denied; unknown
// types are treated as transient. This walks the Unwrap chain so wrapped
// causes are still classified correctly (spec §9's non-negotiable
// classification rule).
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var perr *ProviderError
	for e := err; e != nil; e = errors.Unwrap(e) {
		if pe, ok := e.(*ProviderError); ok {
			perr = pe
			break
		}
	}
	if perr != nil {
		return isTransientCode(perr.Code, perr.StatusCode)
	}
	// Unknown error types are treated as transient (§4.2).
	return true
}

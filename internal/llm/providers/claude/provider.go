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

// Package claude implements the llm.Provider interface for Anthropic's
// Claude models.
package claude

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"priorauth/platform/internal/domain"
	"priorauth/platform/internal/llm"
)

const (
	DefaultBaseURL   = "https://api.anthropic.com"
	DefaultAPIVersion = "2023-06-01"
	DefaultTimeout   = 120 * time.Second
	DefaultMaxTokens = 4096
)

// HTTPClient is the seam that allows tests to substitute a fake
// transport (grounded on the teacher's anthropic.HTTPClient).
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config configures a Provider.
type Config struct {
	APIKey     string
	BaseURL    string
	APIVersion string
	Model      string
	MaxTokens  int
	Timeout    time.Duration
	Client     HTTPClient
}

// Provider implements llm.Provider for Claude.
type Provider struct {
	apiKey     string
	baseURL    string
	apiVersion string
	model      string
	maxTokens  int
	client     HTTPClient
}

// New constructs a Claude Provider, applying teacher-style defaults for
// anything left unset.
func New(cfg Config) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: DefaultTimeout}
	}
	return &Provider{
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		apiVersion: cfg.APIVersion,
		model:      cfg.Model,
		maxTokens:  cfg.MaxTokens,
		client:     cfg.Client,
	}
}

func (p *Provider) Name() domain.Provider { return domain.ProviderClaude }

type messagesRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature *float64  `json:"temperature,omitempty"`
	System      string    `json:"system,omitempty"`
	Messages    []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Model      string     `json:"model"`
	StopReason string     `json:"stop_reason"`
	Content    []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Analyze sends a single-turn completion request to the Claude Messages
// API (§6.2 provider contract).
func (p *Provider) Analyze(ctx context.Context, prompt, systemPrompt string, temperature float64, format llm.ResponseFormat) (*llm.ProviderResponse, error) {
	start := time.Now()

	apiReq := messagesRequest{
		Model:     p.model,
		MaxTokens: p.maxTokens,
		System:    systemPrompt,
		Messages:  []message{{Role: "user", Content: prompt}},
	}
	if temperature >= 0 {
		apiReq.Temperature = &temperature
	}

	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, llm.NewProviderError(string(p.Name()), llm.ErrCodeInvalidRequest, err.Error(), 0, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, llm.NewProviderError(string(p.Name()), llm.ErrCodeInvalidRequest, err.Error(), 0, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", p.apiVersion)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, llm.NewProviderError(string(p.Name()), llm.ErrCodeUnavailable, err.Error(), 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, classifyHTTPError(string(p.Name()), resp.StatusCode, respBody)
	}

	var apiResp messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, llm.NewProviderError(string(p.Name()), llm.ErrCodeServerError, "failed to decode response: "+err.Error(), resp.StatusCode, err)
	}

	var text strings.Builder
	for _, block := range apiResp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return &llm.ProviderResponse{
		Content: text.String(),
		Model:   apiResp.Model,
		Usage:   llm.UsageStats{
			InputTokens:  apiResp.Usage.InputTokens,
			OutputTokens: apiResp.Usage.OutputTokens,
			LatencyMs:    time.Since(start).Milliseconds(),
			Model:        apiResp.Model,
		},
	}, nil
}

// Embed is not offered by Claude; the Gateway routes all embedding calls
// to Gemini (§4.2 "Auxiliary operations").
func (p *Provider) Embed(ctx context.Context, text string, taskType string) ([]float64, error) {
	return nil, llm.NewProviderError(string(p.Name()), llm.ErrCodeInvalidRequest, "claude provider does not support embeddings", 0, nil)
}

// HealthCheck probes the provider with a trivial prompt.
func (p *Provider) HealthCheck(ctx context.Context) bool {
	_, err := p.Analyze(ctx, "ping", "", 0, llm.FormatText)
	return err == nil
}

func classifyHTTPError(provider string, status int, body []byte) error {
	code := llm.ErrCodeServerError
	switch {
	case status == http.StatusTooManyRequests:
		code = llm.ErrCodeRateLimit
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		code = llm.ErrCodeAuth
	case status == http.StatusBadRequest:
		code = llm.ErrCodeInvalidRequest
	case status == http.StatusNotFound:
		code = llm.ErrCodeModelNotFound
	case status >= 500:
		code = llm.ErrCodeServerError
	}
	return llm.NewProviderError(provider, code, fmt.Sprintf("status %d: %s", status, string(body)), status, nil)
}

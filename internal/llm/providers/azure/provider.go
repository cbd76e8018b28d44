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

// Package azure implements the llm.Provider interface for Azure OpenAI
// Service deployments.
package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"priorauth/platform/internal/domain"
	"priorauth/platform/internal/llm"
)

const (
	DefaultAPIVersion = "2024-06-01"
	DefaultTimeout    = 120 * time.Second
)

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config configures an Azure OpenAI provider. Endpoint + Deployment
// together address the chat-completions route; the teacher's sibling
// providers use the same resource-scoped-URL shape.
type Config struct {
	APIKey     string
	Endpoint   string // e.g. https://<resource>.openai.azure.com
	Deployment string
	APIVersion string
	Timeout    time.Duration
	Client     HTTPClient
}

type Provider struct {
	apiKey     string
	endpoint   string
	deployment string
	apiVersion string
	client     HTTPClient
}

func New(cfg Config) *Provider {
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: DefaultTimeout}
	}
	return &Provider{
		apiKey:     cfg.APIKey,
		endpoint:   cfg.Endpoint,
		deployment: cfg.Deployment,
		apiVersion: cfg.APIVersion,
		client:     cfg.Client,
	}
}

func (p *Provider) Name() domain.Provider { return domain.ProviderAzureOpenAI }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionsRequest struct {
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatCompletionsResponse struct {
	Model   string     `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (p *Provider) Analyze(ctx context.Context, prompt, systemPrompt string, temperature float64, format llm.ResponseFormat) (*llm.ProviderResponse, error) {
	start := time.Now()

	var messages []chatMessage
	if systemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt})

	apiReq := chatCompletionsRequest{Messages: messages, Temperature: temperature}
	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, llm.NewProviderError(string(p.Name()), llm.ErrCodeInvalidRequest, err.Error(), 0, err)
	}

	url := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s", p.endpoint, p.deployment, p.apiVersion)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, llm.NewProviderError(string(p.Name()), llm.ErrCodeInvalidRequest, err.Error(), 0, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("api-key", p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, llm.NewProviderError(string(p.Name()), llm.ErrCodeUnavailable, err.Error(), 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, classifyHTTPError(string(p.Name()), resp.StatusCode, respBody)
	}

	var apiResp chatCompletionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, llm.NewProviderError(string(p.Name()), llm.ErrCodeServerError, "failed to decode response: "+err.Error(), resp.StatusCode, err)
	}

	var text string
	if len(apiResp.Choices) > 0 {
		text = apiResp.Choices[0].Message.Content
	}

	return &llm.ProviderResponse{
		Content: text,
		Model:   apiResp.Model,
		Usage:   llm.UsageStats{
			InputTokens:  apiResp.Usage.PromptTokens,
			OutputTokens: apiResp.Usage.CompletionTokens,
			LatencyMs:    time.Since(start).Milliseconds(),
			Model:        apiResp.Model,
		},
	}, nil
}

// Embed is not offered by the Azure provider; Gateway.Embed always routes
// through Gemini (§4.2).
func (p *Provider) Embed(ctx context.Context, text string, taskType string) ([]float64, error) {
	return nil, llm.NewProviderError(string(p.Name()), llm.ErrCodeInvalidRequest, "azure provider does not support embeddings", 0, nil)
}

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

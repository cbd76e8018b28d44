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

// Package gemini implements the llm.Provider interface for Google's
// Gemini models, including the embedding channel the Gateway routes all
// embed() calls through (§4.2).
package gemini

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
	DefaultBaseURL       = "https://generativelanguage.googleapis.com/v1beta"
	DefaultTimeout       = 120 * time.Second
	DefaultEmbeddingModel = "text-embedding-004"
	EmbedDim             = 768
)

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	EmbeddingModel string
	Timeout        time.Duration
	Client         HTTPClient
}

type Provider struct {
	apiKey         string
	baseURL        string
	model          string
	embeddingModel string
	client         HTTPClient
}

func New(cfg Config) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = DefaultEmbeddingModel
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: DefaultTimeout}
	}
	return &Provider{
		apiKey:         cfg.APIKey,
		baseURL:        cfg.BaseURL,
		model:          cfg.Model,
		embeddingModel: cfg.EmbeddingModel,
		client:         cfg.Client,
	}
}

func (p *Provider) Name() domain.Provider { return domain.ProviderGemini }

type generateContentRequest struct {
	Contents          []content        `json:"contents"`
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature float64 `json:"temperature"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

func (p *Provider) Analyze(ctx context.Context, prompt, systemPrompt string, temperature float64, format llm.ResponseFormat) (*llm.ProviderResponse, error) {
	start := time.Now()

	apiReq := generateContentRequest{
		Contents:         []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{Temperature: temperature},
	}
	if systemPrompt != "" {
		apiReq.SystemInstruction = &content{Parts: []part{{Text: systemPrompt}}}
	}

	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, llm.NewProviderError(string(p.Name()), llm.ErrCodeInvalidRequest, err.Error(), 0, err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", p.baseURL, p.model, p.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, llm.NewProviderError(string(p.Name()), llm.ErrCodeInvalidRequest, err.Error(), 0, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, llm.NewProviderError(string(p.Name()), llm.ErrCodeUnavailable, err.Error(), 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, classifyHTTPError(string(p.Name()), resp.StatusCode, respBody)
	}

	var apiResp generateContentResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, llm.NewProviderError(string(p.Name()), llm.ErrCodeServerError, "failed to decode response: "+err.Error(), resp.StatusCode, err)
	}

	var text string
	if len(apiResp.Candidates) > 0 && len(apiResp.Candidates[0].Content.Parts) > 0 {
		text = apiResp.Candidates[0].Content.Parts[0].Text
	}

	return &llm.ProviderResponse{
		Content: text,
		Model:   p.model,
		Usage:   llm.UsageStats{
			InputTokens:  apiResp.UsageMetadata.PromptTokenCount,
			OutputTokens: apiResp.UsageMetadata.CandidatesTokenCount,
			LatencyMs:    time.Since(start).Milliseconds(),
			Model:        p.model,
		},
	}, nil
}

type embedContentRequest struct {
	Model    string  `json:"model"`
	Content  content `json:"content"`
	TaskType string  `json:"taskType,omitempty"`
}

type embedContentResponse struct {
	Embedding struct {
		Values []float64 `json:"values"`
	} `json:"embedding"`
}

// Embed returns a fixed 768-dim vector per §4.2/§6.4 (embed_dim = 768).
func (p *Provider) Embed(ctx context.Context, text string, taskType string) ([]float64, error) {
	apiReq := embedContentRequest{
		Model:    "models/" + p.embeddingModel,
		Content:  content{Parts: []part{{Text: text}}},
		TaskType: taskType,
	}
	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, llm.NewProviderError(string(p.Name()), llm.ErrCodeInvalidRequest, err.Error(), 0, err)
	}

	url := fmt.Sprintf("%s/models/%s:embedContent?key=%s", p.baseURL, p.embeddingModel, p.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, llm.NewProviderError(string(p.Name()), llm.ErrCodeInvalidRequest, err.Error(), 0, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, llm.NewProviderError(string(p.Name()), llm.ErrCodeUnavailable, err.Error(), 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, classifyHTTPError(string(p.Name()), resp.StatusCode, respBody)
	}

	var apiResp embedContentResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, llm.NewProviderError(string(p.Name()), llm.ErrCodeServerError, "failed to decode embedding response: "+err.Error(), resp.StatusCode, err)
	}

	vec := apiResp.Embedding.Values
	if len(vec) > EmbedDim {
		vec = vec[:EmbedDim]
	}
	return vec, nil
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

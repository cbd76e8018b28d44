package azure

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"priorauth/platform/internal/domain"
	"priorauth/platform/internal/llm"
)

type fakeHTTPClient struct {
	resp *http.Response
	req  *http.Request
}

func (f *fakeHTTPClient) Do(req *http.Request) (*http.Response, error) {
	f.req = req
	return f.resp, nil
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestProvider_Analyze_Success(t *testing.T) {
	client := &fakeHTTPClient{resp: jsonResponse(http.StatusOK, `{
		"model": "gpt-4o",
		"choices": [{"message": {"role": "assistant", "content": "requires prior review"}}],
		"usage": {"prompt_tokens": 12, "completion_tokens": 9}
	}`)}
	p := New(Config{
		APIKey:     "test-key",
		Endpoint:   "https://example.openai.azure.com",
		Deployment: "gpt-4o",
		Client:     client,
	})

	resp, err := p.Analyze(context.Background(), "assess this policy", "you are a reviewer", 0.2, llm.FormatText)
	require.NoError(t, err)
	assert.Equal(t, "requires prior review", resp.Content)
	assert.Equal(t, 12, resp.Usage.InputTokens)
	assert.Contains(t, client.req.URL.String(), "/openai/deployments/gpt-4o/chat/completions")
	assert.Equal(t, "test-key", client.req.Header.Get("api-key"))
}

func TestProvider_Analyze_ServerErrorClassified(t *testing.T) {
	client := &fakeHTTPClient{resp: jsonResponse(http.StatusInternalServerError, `{"error":"boom"}`)}
	p := New(Config{APIKey: "test-key", Endpoint: "https://example.openai.azure.com", Deployment: "gpt-4o", Client: client})

	_, err := p.Analyze(context.Background(), "prompt", "", 0, llm.FormatText)
	require.Error(t, err)
	var perr *llm.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, llm.ErrCodeServerError, perr.Code)
}

func TestProvider_Embed_NotSupported(t *testing.T) {
	p := New(Config{APIKey: "test-key"})
	_, err := p.Embed(context.Background(), "text", "RETRIEVAL_DOCUMENT")
	require.Error(t, err)
}

func TestProvider_Name(t *testing.T) {
	p := New(Config{})
	assert.Equal(t, domain.ProviderAzureOpenAI, p.Name())
}

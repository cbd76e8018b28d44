package claude

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
	err  error
	req  *http.Request
}

func (f *fakeHTTPClient) Do(req *http.Request) (*http.Response, error) {
	f.req = req
	return f.resp, f.err
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestProvider_Analyze_Success(t *testing.T) {
	client := &fakeHTTPClient{resp: jsonResponse(http.StatusOK, `{
		"model": "claude-3-5-sonnet-20241022",
		"content": [{"type": "text", "text": "covered"}],
		"usage": {"input_tokens": 5, "output_tokens": 7}
	}`)}
	p := New(Config{APIKey: "test-key", Model: "claude-3-5-sonnet-20241022", Client: client})

	resp, err := p.Analyze(context.Background(), "assess this policy", "you are a reviewer", 0.2, llm.FormatText)
	require.NoError(t, err)
	assert.Equal(t, "covered", resp.Content)
	assert.Equal(t, 5, resp.Usage.InputTokens)
	assert.Equal(t, "test-key", client.req.Header.Get("x-api-key"))
}

func TestProvider_Analyze_RateLimitClassifiedAsRetryable(t *testing.T) {
	client := &fakeHTTPClient{resp: jsonResponse(http.StatusTooManyRequests, `{"error":"rate limited"}`)}
	p := New(Config{APIKey: "test-key", Client: client})

	_, err := p.Analyze(context.Background(), "prompt", "", 0, llm.FormatText)
	require.Error(t, err)
	var perr *llm.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, llm.ErrCodeRateLimit, perr.Code)
}

func TestProvider_Embed_NotSupported(t *testing.T) {
	p := New(Config{APIKey: "test-key"})
	_, err := p.Embed(context.Background(), "text", "RETRIEVAL_DOCUMENT")
	require.Error(t, err)
}

func TestProvider_Name(t *testing.T) {
	p := New(Config{})
	assert.Equal(t, domain.ProviderClaude, p.Name())
}

package prompts

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"priorauth/platform/internal/domain"
)

type fakeRemote struct {
	texts map[string]string
	calls int
}

func (f *fakeRemote) Fetch(ctx context.Context, path string) (string, error) {
	f.calls++
	return f.texts[path], nil
}

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestStore_LoadRemotePrefersRemoteAndSubstitutesDoubleBrace(t *testing.T) {
	remote := &fakeRemote{texts: map[string]string{
		"policy_analysis/coverage_assessment": "Assess {{medication}} for {{payer}}.",
	}}
	store := New(Config{Remote: remote, Redis: newTestRedis(t)})

	text, provenance, err := store.Load(context.Background(), "policy_analysis/coverage_assessment", map[string]any{
		"medication": "Humira", "payer": "Aetna",
	})
	require.NoError(t, err)
	assert.Equal(t, ProvenanceRemote, provenance)
	assert.Equal(t, "Assess Humira for Aetna.", text)
}

func TestStore_RemoteReadIsCachedWithinTTL(t *testing.T) {
	remote := &fakeRemote{texts: map[string]string{"p": "hello {{x}}"}}
	store := New(Config{Remote: remote, Redis: newTestRedis(t), RemoteTTL: 60_000_000_000})

	_, _, err := store.Load(context.Background(), "p", map[string]any{"x": "1"})
	require.NoError(t, err)
	_, _, err = store.Load(context.Background(), "p", map[string]any{"x": "1"})
	require.NoError(t, err)

	assert.Equal(t, 1, remote.calls, "second read within TTL must be served from cache")
}

func TestStore_FallsBackToLocalWhenRemoteUnset(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "policy_analysis"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "policy_analysis", "coverage_assessment.tmpl"), []byte("Assess {medication}."), 0o644))

	store := New(Config{LocalRoot: root})
	text, provenance, err := store.Load(context.Background(), "policy_analysis/coverage_assessment", map[string]any{"medication": "Humira"})
	require.NoError(t, err)
	assert.Equal(t, ProvenanceLocal, provenance)
	assert.Equal(t, "Assess Humira.", text)
}

func TestStore_PathTraversalFailsWithPromptNotFound(t *testing.T) {
	root := t.TempDir()
	store := New(Config{LocalRoot: root})

	_, _, err := store.Load(context.Background(), "../../etc/passwd", nil)
	require.Error(t, err)
	var notFound *domain.PromptNotFound
	assert.ErrorAs(t, err, &notFound)
}

func TestStore_MissingPromptFailsWithPromptNotFound(t *testing.T) {
	store := New(Config{LocalRoot: t.TempDir()})

	_, _, err := store.Load(context.Background(), "nonexistent/path", nil)
	require.Error(t, err)
	var notFound *domain.PromptNotFound
	assert.ErrorAs(t, err, &notFound)
}

func TestStore_NonScalarVariableIsJSONEncoded(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "p.tmpl"), []byte("codes={codes}"), 0o644))
	store := New(Config{LocalRoot: root})

	text, _, err := store.Load(context.Background(), "p", map[string]any{"codes": []string{"E10", "E11"}})
	require.NoError(t, err)
	assert.Equal(t, `codes=["E10","E11"]`, text)
}

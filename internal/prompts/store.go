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

// Package prompts implements the prompt store: a remote-primary,
// local-fallback template loader with hierarchical path addressing
// (§4.1).
package prompts

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"priorauth/platform/internal/domain"
)

// RemoteFetcher is the seam for the remote prompt service; tests
// substitute a fake.
type RemoteFetcher interface {
	Fetch(ctx context.Context, path string) (string, error)
}

// Provenance records which source satisfied a load() call.
type Provenance string

const (
	ProvenanceRemote Provenance = "remote"
	ProvenanceLocal  Provenance = "local"
)

type cacheEntry struct {
	text      string
	expiresAt time.Time
}

// Store implements C1. Remote reads are TTL-cached in Redis (60s);
// local reads are cached for the process lifetime in an unbounded map,
// mirroring the teacher's redis connector for the cache side and a
// plain in-memory map for the filesystem side.
type Store struct {
	remote    RemoteFetcher
	redis     *redis.Client
	remoteTTL time.Duration
	localRoot string

	localMu    sync.Mutex
	localCache map[string]string
}

// Config configures a Store.
type Config struct {
	Remote    RemoteFetcher
	Redis     *redis.Client
	RemoteTTL time.Duration
	LocalRoot string
}

func New(cfg Config) *Store {
	if cfg.RemoteTTL == 0 {
		cfg.RemoteTTL = 60 * time.Second
	}
	return &Store{
		remote:     cfg.Remote,
		redis:      cfg.Redis,
		remoteTTL:  cfg.RemoteTTL,
		localRoot:  cfg.LocalRoot,
		localCache: make(map[string]string),
	}
}

// Load resolves path to a rendered prompt body, substituting variables,
// and reports which source served it (§4.1).
func (s *Store) Load(ctx context.Context, path string, variables map[string]any) (string, Provenance, error) {
	if text, ok := s.loadRemote(ctx, path); ok {
		return substitute(text, variables, "{{", "}}"), ProvenanceRemote, nil
	}

	text, err := s.loadLocal(path)
	if err != nil {
		return "", "", err
	}
	return substitute(text, variables, "{", "}"), ProvenanceLocal, nil
}

func (s *Store) loadRemote(ctx context.Context, path string) (string, bool) {
	if s.remote == nil {
		return "", false
	}

	cacheKey := "prompt:" + path
	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, cacheKey).Result(); err == nil {
			return cached, true
		}
	}

	text, err := s.remote.Fetch(ctx, path)
	if err != nil || text == "" {
		return "", false
	}

	if s.redis != nil {
		_ = s.redis.Set(ctx, cacheKey, text, s.remoteTTL).Err()
	}
	return text, true
}

// loadLocal reads <path>.tmpl directly under localRoot, rejecting
// any path that escapes the root (§4.1 "path traversal attempt").
func (s *Store) loadLocal(path string) (string, error) {
	s.localMu.Lock()
	if cached, ok := s.localCache[path]; ok {
		s.localMu.Unlock()
		return cached, nil
	}
	s.localMu.Unlock()

	cleaned := filepath.Clean(path)
	if strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return "", &domain.PromptNotFound{Path: path}
	}

	fullPath := filepath.Join(s.localRoot, cleaned+".tmpl")
	rel, err := filepath.Rel(s.localRoot, fullPath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", &domain.PromptNotFound{Path: path}
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		return "", &domain.PromptNotFound{Path: path}
	}

	text := string(data)
	s.localMu.Lock()
	s.localCache[path] = text
	s.localMu.Unlock()
	return text, nil
}

// substitute replaces open+name+close occurrences with variables[name],
// JSON-encoding non-scalar values first (§4.1).
func substitute(text string, variables map[string]any, open, close string) string {
	for name, value := range variables {
		placeholder := open + name + close
		text = strings.ReplaceAll(text, placeholder, renderValue(value))
	}
	return text
}

func renderValue(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case nil:
		return ""
	}
	switch value.(type) {
	case int, int64, float64, bool:
		return fmt.Sprintf("%v", value)
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}
	return string(encoded)
}

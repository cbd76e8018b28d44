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

package intelligence

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"priorauth/platform/internal/domain"
)

// defaultCacheTTL is the lazy-expiry window for cached insights (§4.7
// "Caching"); NewCache uses it when its ttl argument is 0.
const defaultCacheTTL = 24 * time.Hour

// CacheKey computes the SHA-256 hex digest of the normalized lookup key
// (§4.7 "Cache key"): medication_normalized :: icd10_family :: payer_normalized
// :: severity_classification.
func CacheKey(medication, icd10Family, payer, severityClassification string) string {
	parts := []string{
		normalizeKeyPart(medication),
		normalizeKeyPart(icd10Family),
		normalizeKeyPart(payer),
		normalizeKeyPart(severityClassification),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "::")))
	return hex.EncodeToString(sum[:])
}

func normalizeKeyPart(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// cachedInsights is the Redis-stored payload: the insight plus its
// recorded expiry, so a stale read can be distinguished from a miss and
// deleted lazily (§4.7 "expired rows are deleted lazily on read").
type cachedInsights struct {
	Insights  domain.StrategicInsights `json:"insights"`
	ExpiresAt time.Time                `json:"expires_at"`
}

// Cache wraps a Redis client with the TTL-and-lazy-expiry semantics C7
// requires, mirroring the connector pattern the teacher's Redis connector
// establishes and the prompt store's own cache-key convention.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache builds a Cache; ttl of 0 defaults to 24 hours.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl == 0 {
		ttl = defaultCacheTTL
	}
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) redisKey(cacheKey string) string {
	return "strategic_intelligence:" + cacheKey
}

// Get returns the cached insights for cacheKey, or (nil, false) on a miss
// or an expired row (which is deleted before returning).
func (c *Cache) Get(ctx context.Context, cacheKey string) (*domain.StrategicInsights, bool) {
	if c.client == nil {
		return nil, false
	}

	raw, err := c.client.Get(ctx, c.redisKey(cacheKey)).Result()
	if err != nil {
		return nil, false
	}

	var entry cachedInsights
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, false
	}

	if time.Now().After(entry.ExpiresAt) {
		_ = c.client.Del(ctx, c.redisKey(cacheKey)).Err()
		return nil, false
	}

	entry.Insights.Cached = true
	return &entry.Insights, true
}

// Set stores insights under cacheKey with the configured TTL.
func (c *Cache) Set(ctx context.Context, cacheKey string, insights domain.StrategicInsights) error {
	if c.client == nil {
		return nil
	}

	entry := cachedInsights{Insights: insights, ExpiresAt: time.Now().Add(c.ttl)}
	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.redisKey(cacheKey), payload, c.ttl).Err()
}

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

package policyrepo

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadAliases reads a medication_aliases.yaml file of the shape
// `brand_name: generic_name` into an AliasMap, lowercasing and
// underscoring both sides to match normalize()'s key space.
func LoadAliases(path string) (AliasMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	aliases := make(AliasMap, len(raw))
	for brand, generic := range raw {
		aliases[normalizeKey(brand)] = normalizeKey(generic)
	}
	return aliases, nil
}

func normalizeKey(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}

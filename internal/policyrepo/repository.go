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

// Package policyrepo implements the Policy Repository (C3): payer/
// medication-keyed lookup of digitized policies and raw policy text,
// with a Postgres-preferred, filesystem-fallback source split.
package policyrepo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"priorauth/platform/internal/domain"
)

// PDFPlaceholder is returned by LoadRawText when a policy is known to
// exist only as a scanned PDF with no extracted text (§4.3).
const PDFPlaceholder = "[raw policy text unavailable: source document is PDF-only]"

// AliasMap resolves a brand or generic medication name to its canonical
// form, loaded from medication_aliases.yaml.
type AliasMap map[string]string

// Repository implements C3: load() and load_raw_text() over a
// Postgres-preferred, filesystem-fallback pair of sources, mirroring the
// teacher's PostgresStorage + fallback split in orchestrator/llm/storage.go.
type Repository struct {
	db      *sql.DB
	fsRoot  string
	aliases AliasMap
}

func New(db *sql.DB, fsRoot string, aliases AliasMap) *Repository {
	if aliases == nil {
		aliases = AliasMap{}
	}
	return &Repository{db: db, fsRoot: fsRoot, aliases: aliases}
}

// normalize lowercases, trims, and replaces spaces with underscores
// (§4.3 "case-insensitive lookup with space→underscore normalization"),
// then resolves any configured brand/generic alias.
func (r *Repository) normalize(payer, medication string) (string, string) {
	normPayer := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(payer)), " ", "_")
	normMed := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(medication)), " ", "_")
	if canonical, ok := r.aliases[normMed]; ok {
		normMed = canonical
	}
	return normPayer, normMed
}

// Load resolves a digitized (structured criteria) policy (§4.3). It
// returns nil when no digitized policy is on file but raw policy text is,
// and PolicyNotFound when neither source has the policy.
func (r *Repository) Load(ctx context.Context, payer, medication string) (*domain.DigitizedPolicy, error) {
	normPayer, normMed := r.normalize(payer, medication)

	policy, err := r.loadFromDB(ctx, normPayer, normMed)
	if err != nil {
		return nil, err
	}
	if policy != nil {
		return policy, nil
	}

	policy, err = r.loadFromFilesystem(normPayer, normMed)
	if err != nil {
		return nil, err
	}
	if policy != nil {
		return policy, nil
	}

	if _, rawErr := r.loadRawText(ctx, normPayer, normMed); rawErr != nil {
		return nil, &domain.PolicyNotFound{Payer: payer, Medication: medication}
	}
	return nil, nil
}

func (r *Repository) loadFromDB(ctx context.Context, normPayer, normMed string) (*domain.DigitizedPolicy, error) {
	if r.db == nil {
		return nil, nil
	}

	const query = `
		SELECT payload
		FROM digitized_policies
		WHERE payer_key = $1 AND medication_key = $2
		ORDER BY updated_at DESC
		LIMIT 1
	`
	var payload []byte
	err := r.db.QueryRowContext(ctx, query, normPayer, normMed).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var policy domain.DigitizedPolicy
	if err := json.Unmarshal(payload, &policy); err != nil {
		return nil, err
	}
	return &policy, nil
}

func (r *Repository) loadFromFilesystem(normPayer, normMed string) (*domain.DigitizedPolicy, error) {
	if r.fsRoot == "" {
		return nil, nil
	}

	path := filepath.Join(r.fsRoot, normPayer, normMed+".json")
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var policy domain.DigitizedPolicy
	if err := json.Unmarshal(data, &policy); err != nil {
		return nil, err
	}
	return &policy, nil
}

// LoadRawText resolves unstructured policy text, database preferred,
// filesystem fallback, tolerating PDF-only policies with a placeholder
// marker (§4.3).
func (r *Repository) LoadRawText(ctx context.Context, payer, medication string) (string, error) {
	normPayer, normMed := r.normalize(payer, medication)
	return r.loadRawText(ctx, normPayer, normMed)
}

func (r *Repository) loadRawText(ctx context.Context, normPayer, normMed string) (string, error) {
	if r.db != nil {
		const query = `
			SELECT raw_text, is_pdf_only
			FROM policy_documents
			WHERE payer_key = $1 AND medication_key = $2
			ORDER BY updated_at DESC
			LIMIT 1
		`
		var rawText sql.NullString
		var isPDFOnly bool
		err := r.db.QueryRowContext(ctx, query, normPayer, normMed).Scan(&rawText, &isPDFOnly)
		if err == nil {
			if isPDFOnly {
				return PDFPlaceholder, nil
			}
			return rawText.String, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return "", err
		}
	}

	if r.fsRoot != "" {
		path := filepath.Join(r.fsRoot, normPayer, normMed+".txt")
		data, err := os.ReadFile(path)
		if err == nil {
			return string(data), nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}

		pdfPath := filepath.Join(r.fsRoot, normPayer, normMed+".pdf")
		if _, statErr := os.Stat(pdfPath); statErr == nil {
			return PDFPlaceholder, nil
		}
	}

	return "", &domain.PolicyNotFound{Payer: normPayer, Medication: normMed}
}

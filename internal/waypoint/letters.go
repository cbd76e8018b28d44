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

package waypoint

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"

	"priorauth/platform/internal/domain"
)

// LetterKind identifies which of the three fixed notification-letter
// templates to render (§4.12 "approval, pend, or denial variants").
type LetterKind string

const (
	LetterApproval LetterKind = "approval"
	LetterPend     LetterKind = "pend"
	LetterDenial   LetterKind = "denial"
)

var letterTemplates = map[LetterKind]*template.Template{
	LetterApproval: template.Must(template.New("approval").Parse(approvalLetterTemplate)),
	LetterPend:     template.Must(template.New("pend").Parse(pendLetterTemplate)),
	LetterDenial:   template.Must(template.New("denial").Parse(denialLetterTemplate)),
}

const approvalLetterTemplate = `{{.GeneratedAt}}

Re: Prior Authorization Approved — {{.DrugName}}

Dear {{.PatientName}},

Your prior authorization request for {{.DrugName}} has been approved by {{.PayerName}}.

Reference number: {{.ReferenceNumber}}

{{.Notes}}
No further action is required at this time.

Sincerely,
Prior Authorization Services
`

const pendLetterTemplate = `{{.GeneratedAt}}

Re: Prior Authorization Pending Additional Information — {{.DrugName}}

Dear {{.PatientName}},

Your prior authorization request for {{.DrugName}} is under review by {{.PayerName}} pending
additional documentation:
{{range .DocumentationRequests}}  - {{.}}
{{end}}
Please have your prescriber's office submit the above to avoid delay.

Sincerely,
Prior Authorization Services
`

const denialLetterTemplate = `{{.GeneratedAt}}

Re: Prior Authorization Denied — {{.DrugName}}

Dear {{.PatientName}},

Your prior authorization request for {{.DrugName}} was denied by {{.PayerName}}.

Reason: {{.DenialReason}}

{{if .AppealDeadline}}You may appeal this decision by {{.AppealDeadline}}.{{end}}

Sincerely,
Prior Authorization Services
`

// letterData is the shared field set across all three templates; unused
// fields for a given kind are left zero and the template simply omits
// them.
type letterData struct {
	GeneratedAt           string
	DrugName              string
	PatientName           string
	PayerName             string
	ReferenceNumber       string
	Notes                 string
	DocumentationRequests []string
	DenialReason          string
	AppealDeadline        string
}

// RenderNotificationLetter renders the fixed plain-text letter template
// matching kind for the payer named by payerName and the decision
// context (§4.12).
func RenderNotificationLetter(kind LetterKind, c *domain.Case, payerName string, decision domain.HumanDecision, documentationRequests []string, now time.Time) (string, error) {
	tmpl, ok := letterTemplates[kind]
	if !ok {
		return "", fmt.Errorf("waypoint: unknown letter kind %q", kind)
	}

	state := c.PayerStates[payerName]
	data := letterData{
		GeneratedAt:           now.Format("2006-01-02"),
		DrugName:              c.MedicationRequest.DrugName,
		PatientName:           fmt.Sprintf("%s %s", c.Patient.FirstName, c.Patient.LastName),
		PayerName:             payerName,
		ReferenceNumber:       state.ReferenceNumber,
		Notes:                 decision.Notes,
		DocumentationRequests: documentationRequests,
		DenialReason:          state.DenialReason,
	}
	if state.AppealDeadline != nil {
		data.AppealDeadline = state.AppealDeadline.Format("2006-01-02")
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("waypoint: render %s letter: %w", kind, err)
	}
	return strings.TrimRight(buf.String(), "\n") + "\n", nil
}

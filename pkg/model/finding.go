package model

import "time"

// Evidence kinds. The shape of the evidence payload is known for each kind;
// genuinely free-form data goes into Raw.
const (
	EvidenceInjection  = "injection"
	EvidenceReflection = "reflection"
	EvidenceAuthz      = "authz"
	EvidencePort       = "port"
	EvidenceRaw        = "raw"
)

// Evidence is the tagged evidence payload attached to a finding. Kind
// selects which fields are meaningful.
type Evidence struct {
	Kind           string            `json:"kind"`
	StatusCode     int               `json:"status_code,omitempty"`
	Payload        string            `json:"payload,omitempty"`
	ResponseLength int               `json:"response_length,omitempty"`
	Port           int               `json:"port,omitempty"`
	Service        string            `json:"service,omitempty"`
	Raw            map[string]string `json:"raw,omitempty"`
}

// Validation holds the reasoning oracle's verdict for a finding.
type Validation struct {
	Valid      bool    `json:"valid"`
	Confidence float64 `json:"confidence"`
	Response   string  `json:"response,omitempty"`
}

// Finding is a candidate vulnerability produced by the attack stage.
// Each finding belongs to exactly one session. The validation stage may
// update status and confidence; the reporting stage fills in the
// proof-of-concept and remediation text.
type Finding struct {
	ID          string        `json:"id"`
	SessionID   string        `json:"session_id"`
	Type        string        `json:"type"`
	Severity    Severity      `json:"severity"`
	Status      FindingStatus `json:"status"`
	URL         string        `json:"url"`
	Host        string        `json:"host,omitempty"`
	Port        int           `json:"port,omitempty"`
	Parameter   string        `json:"parameter,omitempty"`
	Description string        `json:"description,omitempty"`
	Evidence    Evidence      `json:"evidence"`
	Confidence  float64       `json:"confidence"`
	Validation  *Validation   `json:"validation,omitempty"`
	Proof       string        `json:"proof_of_concept,omitempty"`
	Remediation string        `json:"remediation,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

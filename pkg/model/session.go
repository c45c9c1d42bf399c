package model

import "time"

// Target is an application or host registered for assessment.
type Target struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	BaseURL     string            `json:"base_url"`
	Source      string            `json:"source"` // manual, discovery
	Criticality Criticality       `json:"criticality"`
	TechStack   map[string]string `json:"tech_stack,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Session is one end-to-end assessment run. It is owned exclusively by the
// pipeline orchestrator: created QUEUED, mutated only by the orchestrator,
// and immutable once COMPLETED or FAILED.
type Session struct {
	ID          string        `json:"id"`
	TargetID    string        `json:"target_id"`
	Status      SessionStatus `json:"status"`
	RiskScore   float64       `json:"risk_score"`
	HealthScore float64       `json:"health_score"`
	Summary     string        `json:"summary,omitempty"`
	Error       string        `json:"error,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	StartedAt   *time.Time    `json:"started_at,omitempty"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
}

// AuditEntry records one agent action for traceability. Entries are
// append-only and never read back by the pipeline itself.
type AuditEntry struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id"`
	Agent     string         `json:"agent"`
	Action    string         `json:"action"`
	Reasoning map[string]any `json:"reasoning,omitempty"`
	Input     map[string]any `json:"input,omitempty"`
	Output    map[string]any `json:"output,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// ActionItem is a human work item derived from scoring or inventory drift.
// Items are deduplicated against existing OPEN items for the same condition
// and closed only by external workflow action.
type ActionItem struct {
	ID          string       `json:"id"`
	SessionID   string       `json:"session_id,omitempty"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Priority    Criticality  `json:"priority"`
	Type        string       `json:"type"` // remediation, configuration, patch, alert, new_device
	Status      ActionStatus `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
}

package model

// SessionStatus is the lifecycle state of an assessment session.
type SessionStatus string

const (
	SessionQueued    SessionStatus = "queued"
	SessionRunning   SessionStatus = "running"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
)

// Terminal reports whether the session can no longer change state.
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionFailed
}

// Severity is a total-ordered finding severity.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// Rank returns the ordering value for severity comparison. Higher is worse.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// Score returns the numeric weight used by the scoring engine.
func (s Severity) Score() int {
	switch s {
	case SeverityCritical:
		return 10
	case SeverityHigh:
		return 8
	case SeverityMedium:
		return 5
	case SeverityLow:
		return 2
	default:
		return 0
	}
}

// FindingStatus tracks a finding through validation and remediation.
type FindingStatus string

const (
	FindingOpen          FindingStatus = "open"
	FindingFixed         FindingStatus = "fixed"
	FindingFalsePositive FindingStatus = "false_positive"
	FindingAccepted      FindingStatus = "accepted"
)

// Criticality is the business value tier of a target or inventory asset.
type Criticality string

const (
	CriticalityCritical Criticality = "CRITICAL"
	CriticalityHigh     Criticality = "HIGH"
	CriticalityMedium   Criticality = "MEDIUM"
	CriticalityLow      Criticality = "LOW"
)

// Value returns the asset value weight for risk scoring. Unset tiers
// default to MEDIUM.
func (c Criticality) Value() int {
	switch c {
	case CriticalityCritical:
		return 10
	case CriticalityHigh:
		return 8
	case CriticalityLow:
		return 2
	default:
		return 5
	}
}

// Multiplier returns the session score scaling factor for the tier.
func (c Criticality) Multiplier() float64 {
	switch c {
	case CriticalityCritical:
		return 2.0
	case CriticalityHigh:
		return 1.5
	case CriticalityLow:
		return 0.5
	default:
		return 1.0
	}
}

// AssetStatus is the inventory lifecycle state of a discovered host.
type AssetStatus string

const (
	AssetActive  AssetStatus = "active"
	AssetOffline AssetStatus = "offline"
	AssetRetired AssetStatus = "retired"
)

// ActionStatus tracks an action item through the external workflow.
type ActionStatus string

const (
	ActionOpen ActionStatus = "OPEN"
	ActionDone ActionStatus = "DONE"
)

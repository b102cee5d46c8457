package violation

import (
	"time"

	"github.com/google/uuid"

	"github.com/damocles-platform/gdpr-engine/internal/domain/errors"
	"github.com/damocles-platform/gdpr-engine/internal/domain/values"
)

// Severity orders violations by weight in every downstream score.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// ParseSeverity converts a stored string back into a Severity.
func ParseSeverity(s string) (Severity, error) {
	switch s {
	case "low":
		return SeverityLow, nil
	case "medium":
		return SeverityMedium, nil
	case "high":
		return SeverityHigh, nil
	case "critical":
		return SeverityCritical, nil
	default:
		return 0, errors.NewValidationError("INVALID_SEVERITY", "unknown severity: "+s)
	}
}

// Weight is the severity weight used by the creditor violation score.
func (s Severity) Weight() float64 {
	switch s {
	case SeverityCritical:
		return 4.0
	case SeverityHigh:
		return 3.0
	case SeverityMedium:
		return 2.0
	default:
		return 1.0
	}
}

// Type identifies a class of non-compliance. Each type maps to exactly one
// legal reference and one base severity (see the detection pattern library).
type Type string

const (
	TypeExcessiveRetention  Type = "excessive_retention"
	TypeMissingConsent      Type = "missing_consent"
	TypeUnauthorizedSharing Type = "unauthorized_sharing"
	TypeIncompleteResponse  Type = "incomplete_response"
	TypeExcessiveFees       Type = "excessive_fees"
	TypeDelayedResponse     Type = "delayed_response"
	TypeDataBreach          Type = "data_breach"
	TypeConsentViolation    Type = "consent_violation"
	TypeAutomatedDecision   Type = "automated_decision"
	TypeMissingLegalBasis   Type = "missing_legal_basis"
	TypeUndisclosedTransfer Type = "undisclosed_transfer"
	TypeHiddenCharges       Type = "hidden_charges"
	TypeThreateningLanguage Type = "threatening_language"
)

func (t Type) String() string { return string(t) }

// IsValid reports whether the type is one of the known classifications.
func (t Type) IsValid() bool {
	switch t {
	case TypeExcessiveRetention, TypeMissingConsent, TypeUnauthorizedSharing,
		TypeIncompleteResponse, TypeExcessiveFees, TypeDelayedResponse,
		TypeDataBreach, TypeConsentViolation, TypeAutomatedDecision,
		TypeMissingLegalBasis, TypeUndisclosedTransfer, TypeHiddenCharges,
		TypeThreateningLanguage:
		return true
	}
	return false
}

// Violation is a detected instance of non-compliance. Violations are
// append-only: once created they are never mutated or deleted, only
// referenced in aggregate stats and evidentiary packages.
type Violation struct {
	ID              uuid.UUID    `json:"id"`
	RequestID       *uuid.UUID   `json:"request_id,omitempty"`
	CreditorID      uuid.UUID    `json:"creditor_id"`
	Type            Type         `json:"type"`
	Severity        Severity     `json:"severity"`
	Confidence      float64      `json:"confidence"`
	Evidence        string       `json:"evidence"`
	LegalReference  string       `json:"legal_reference"`
	EstimatedDamage values.Money `json:"estimated_damage"`
	CreatedAt       time.Time    `json:"created_at"`
}

// New validates and creates a Violation. Confidence reflects detector
// certainty, not legal certainty; it must sit in [0,1].
func New(creditorID uuid.UUID, vType Type, severity Severity, confidence float64, evidence, legalReference string, damage values.Money) (*Violation, error) {
	if !vType.IsValid() {
		return nil, errors.NewValidationError("INVALID_VIOLATION_TYPE", "unknown violation type: "+string(vType))
	}
	if confidence < 0 || confidence > 1 {
		return nil, errors.NewValidationError("INVALID_CONFIDENCE", "confidence must be in [0,1]")
	}
	if damage.IsNegative() {
		return nil, errors.NewValidationError("INVALID_DAMAGE", "estimated damage cannot be negative")
	}
	return &Violation{
		ID:              uuid.New(),
		CreditorID:      creditorID,
		Type:            vType,
		Severity:        severity,
		Confidence:      confidence,
		Evidence:        evidence,
		LegalReference:  legalReference,
		EstimatedDamage: damage,
		CreatedAt:       time.Now().UTC(),
	}, nil
}

// Stats aggregates a creditor's violation record.
type Stats struct {
	Total      int              `json:"total"`
	BySeverity map[Severity]int `json:"by_severity"`
}

// Score computes the running creditor violation aggregate consumed by the
// risk scorer's pattern component: mean severity weight times confidence,
// capped at 5.0.
func Score(violations []*Violation) float64 {
	if len(violations) == 0 {
		return 0
	}
	total := 0.0
	for _, v := range violations {
		total += v.Severity.Weight() * v.Confidence
	}
	score := total / float64(len(violations))
	if score > 5.0 {
		return 5.0
	}
	return score
}

// CountBySeverity counts violations at the given severity.
func CountBySeverity(violations []*Violation, severity Severity) int {
	n := 0
	for _, v := range violations {
		if v.Severity == severity {
			n++
		}
	}
	return n
}

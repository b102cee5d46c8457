package creditor

import (
	"github.com/google/uuid"
)

// Type classifies a creditor by regulatory exposure. Debt collectors are
// the most vulnerable to regulatory action; the risk scorer weighs them
// accordingly.
type Type string

const (
	TypeDebtCollector Type = "debt_collector"
	TypeBank          Type = "bank"
	TypeTelecom       Type = "telecom"
	TypeUtility       Type = "utility"
	TypeOther         Type = "other"
)

func (t Type) String() string { return string(t) }

// IsValid reports whether the type is a recognized classification.
func (t Type) IsValid() bool {
	switch t {
	case TypeDebtCollector, TypeBank, TypeTelecom, TypeUtility, TypeOther:
		return true
	}
	return false
}

// Creditor is the counterparty of a data-access request, carrying the
// aggregates the risk scorer reads. TotalViolations and ViolationScore are
// maintained externally per case history; they are inputs here, never
// recomputed.
type Creditor struct {
	ID                 uuid.UUID `json:"id"`
	Name               string    `json:"name"`
	OrganizationNumber string    `json:"organization_number"`
	Type               Type      `json:"type"`
	PrivacyEmail       string    `json:"privacy_email"`
	TotalViolations    int       `json:"total_violations"`
	ViolationScore     float64   `json:"violation_score"`
}

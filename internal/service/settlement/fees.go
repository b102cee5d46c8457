package settlement

import (
	"github.com/shopspring/decimal"

	"github.com/damocles-platform/gdpr-engine/internal/domain/errors"
	"github.com/damocles-platform/gdpr-engine/internal/domain/values"
	"github.com/damocles-platform/gdpr-engine/internal/domain/violation"
	"github.com/damocles-platform/gdpr-engine/internal/infrastructure/config"
)

// feeBracket is one row of the statutory ceiling table with amounts parsed
// into decimals. A nil upperBound marks the unbounded top bracket.
type feeBracket struct {
	label      string
	upperBound *decimal.Decimal
	fee        decimal.Decimal
	vat        decimal.Decimal
}

// FeeAnalysis is the Inkassoloven § 14/§ 17 determination for one debt.
type FeeAnalysis struct {
	OriginalClaim  values.Money `json:"original_claim"`
	CurrentAmount  values.Money `json:"current_amount"`
	ActualFees     values.Money `json:"actual_fees"`
	Bracket        string       `json:"bracket"`
	MaxLegalFee    values.Money `json:"max_legal_fee"`
	MaxLegalVAT    values.Money `json:"max_legal_vat"`
	MaxLegalTotal  values.Money `json:"max_legal_total"`
	IsExcessive    bool         `json:"is_excessive"`
	// ExcessiveAmount is zero when fees are within the ceiling.
	ExcessiveAmount values.Money `json:"excessive_amount"`
	// LegitimateDebt is the original claim plus the maximum legal fees.
	LegitimateDebt values.Money `json:"legitimate_debt"`
	// ViolationSeverity is assigned here, independent of the detector's
	// pattern severities. Nil means fees are within the ceiling.
	ViolationSeverity *violation.Severity `json:"violation_severity,omitempty"`
	LegalReference    string              `json:"legal_reference,omitempty"`
}

// FeeAnalyzer computes statutory maximum collection fees per claim bracket
// and flags the excess. The bracket table is configuration: the amounts are
// statute and will change.
type FeeAnalyzer struct {
	brackets           []feeBracket
	highSeverityExcess decimal.Decimal
}

// NewFeeAnalyzer builds an analyzer from the configured bracket table.
func NewFeeAnalyzer(cfg config.FeesConfig) (*FeeAnalyzer, error) {
	if len(cfg.Brackets) == 0 {
		return nil, errors.NewValidationError("EMPTY_FEE_TABLE", "fee bracket table cannot be empty")
	}
	brackets := make([]feeBracket, 0, len(cfg.Brackets))
	for _, b := range cfg.Brackets {
		fb := feeBracket{
			label: b.Label,
			fee:   decimal.NewFromFloat(b.Fee),
			vat:   decimal.NewFromFloat(b.VAT),
		}
		if b.UpperBound > 0 {
			ub := decimal.NewFromFloat(b.UpperBound)
			fb.upperBound = &ub
		}
		brackets = append(brackets, fb)
	}
	return &FeeAnalyzer{
		brackets:           brackets,
		highSeverityExcess: decimal.NewFromFloat(cfg.HighSeverityExcess),
	}, nil
}

// AnalyzeFees determines whether the fees stacked on top of the original
// claim exceed the statutory ceiling for its bracket.
func (a *FeeAnalyzer) AnalyzeFees(originalClaim, currentAmount values.Money) (*FeeAnalysis, error) {
	if !originalClaim.IsPositive() {
		return nil, errors.NewValidationError("INVALID_CLAIM", "original claim must be positive")
	}
	if !currentAmount.IsPositive() {
		return nil, errors.NewValidationError("INVALID_AMOUNT", "current amount must be positive")
	}
	if originalClaim.Currency() != currentAmount.Currency() {
		return nil, errors.NewValidationError("CURRENCY_MISMATCH", "claim and current amount must share a currency")
	}

	currency := originalClaim.Currency()
	bracket := a.bracketFor(originalClaim.Amount())

	maxLegalTotal := bracket.fee.Add(bracket.vat)
	actualFees := currentAmount.Amount().Sub(originalClaim.Amount())

	isExcessive := actualFees.GreaterThan(maxLegalTotal)
	excess := decimal.Zero
	if isExcessive {
		excess = actualFees.Sub(maxLegalTotal)
	}

	analysis := &FeeAnalysis{
		OriginalClaim:   originalClaim,
		CurrentAmount:   currentAmount,
		ActualFees:      values.MustNewMoney(actualFees, currency),
		Bracket:         bracket.label,
		MaxLegalFee:     values.MustNewMoney(bracket.fee, currency),
		MaxLegalVAT:     values.MustNewMoney(bracket.vat, currency),
		MaxLegalTotal:   values.MustNewMoney(maxLegalTotal, currency),
		IsExcessive:     isExcessive,
		ExcessiveAmount: values.MustNewMoney(excess, currency),
		LegitimateDebt:  values.MustNewMoney(originalClaim.Amount().Add(maxLegalTotal), currency),
	}

	if isExcessive {
		severity := violation.SeverityMedium
		if excess.GreaterThan(a.highSeverityExcess) {
			severity = violation.SeverityHigh
		}
		analysis.ViolationSeverity = &severity
		analysis.LegalReference = "Inkassoloven § 14 og § 17"
	}

	return analysis, nil
}

func (a *FeeAnalyzer) bracketFor(claim decimal.Decimal) feeBracket {
	for _, b := range a.brackets {
		if b.upperBound == nil || claim.LessThan(*b.upperBound) {
			return b
		}
	}
	return a.brackets[len(a.brackets)-1]
}

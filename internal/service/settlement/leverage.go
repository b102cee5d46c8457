package settlement

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/damocles-platform/gdpr-engine/internal/domain/errors"
	"github.com/damocles-platform/gdpr-engine/internal/domain/values"
	"github.com/damocles-platform/gdpr-engine/internal/domain/violation"
	"github.com/damocles-platform/gdpr-engine/internal/infrastructure/config"
)

// LeverageLevel bands the composite leverage score.
type LeverageLevel string

const (
	LeverageVeryHigh LeverageLevel = "VERY_HIGH"
	LeverageHigh     LeverageLevel = "HIGH"
	LeverageMedium   LeverageLevel = "MEDIUM"
	LeverageLow      LeverageLevel = "LOW"
)

// ReductionTarget returns the settlement reduction range historically
// achievable at this leverage level.
func (l LeverageLevel) ReductionTarget() string {
	switch l {
	case LeverageVeryHigh:
		return "90-97%"
	case LeverageHigh:
		return "70-90%"
	case LeverageMedium:
		return "40-70%"
	default:
		return "10-40%"
	}
}

// damageMultipliers scale a violation's estimated damage into a claimable
// GDPR compensation figure by severity.
var damageMultipliers = map[violation.Severity]float64{
	violation.SeverityCritical: 3.0,
	violation.SeverityHigh:     2.0,
	violation.SeverityMedium:   1.5,
	violation.SeverityLow:      1.0,
}

// DamageClaim is one violation's contribution to the total damages figure.
type DamageClaim struct {
	Type           violation.Type     `json:"type"`
	Severity       violation.Severity `json:"severity"`
	Confidence     float64            `json:"confidence"`
	LegalReference string             `json:"legal_reference"`
	ClaimAmount    values.Money       `json:"claim_amount"`
}

// GDPRAnalysis aggregates documented violations into a damages position.
type GDPRAnalysis struct {
	TotalDamages    values.Money            `json:"total_damages"`
	ViolationCount  int                     `json:"violation_count"`
	BySeverity      map[string]values.Money `json:"by_severity"`
	StrongestClaims []DamageClaim           `json:"strongest_claims"`
	LegalReferences []string                `json:"legal_references"`
}

// LeverageResult is the composite negotiating-strength score.
type LeverageResult struct {
	Score             float64       `json:"score"`
	Level             LeverageLevel `json:"level"`
	FinancialLeverage values.Money  `json:"financial_leverage"`
	ReductionTarget   string        `json:"reduction_target"`
}

// Offer is one settlement tier. PlatformFee is charged on realized savings
// and reported separately from the settlement amount itself.
type Offer struct {
	Amount      values.Money `json:"amount"`
	Savings     values.Money `json:"savings"`
	PlatformFee values.Money `json:"platform_fee"`
}

// Offers holds the three tiers. The ordering invariant
// aggressive <= recommended <= conservative <= current holds for every
// valid input.
type Offers struct {
	Conservative Offer `json:"conservative"`
	Recommended  Offer `json:"recommended"`
	Aggressive   Offer `json:"aggressive"`
}

// LeverageCalculator folds damages, excess fees and creditor risk into a
// leverage score and derives the settlement offer tiers from it.
type LeverageCalculator struct {
	platformFeeRate decimal.Decimal
}

func NewLeverageCalculator(cfg config.NegotiationConfig) *LeverageCalculator {
	return &LeverageCalculator{
		platformFeeRate: decimal.NewFromFloat(cfg.PlatformFeeRate),
	}
}

// AnalyzeDamages converts detected violations into a claimable GDPR damages
// position: per-violation claim = estimated damage x severity multiplier x
// confidence. Top three claims by amount and the distinct legal references
// back the settlement letter. All damages must share one currency; a mixed
// record is rejected rather than mis-summed.
func (c *LeverageCalculator) AnalyzeDamages(violations []*violation.Violation) (*GDPRAnalysis, error) {
	currency := values.NOK
	if len(violations) > 0 && violations[0].EstimatedDamage.Currency() != "" {
		currency = violations[0].EstimatedDamage.Currency()
	}

	analysis := &GDPRAnalysis{
		TotalDamages:   values.Zero(currency),
		ViolationCount: len(violations),
		BySeverity:     make(map[string]values.Money),
	}

	claims := make([]DamageClaim, 0, len(violations))
	seenRefs := make(map[string]bool)
	total := decimal.Zero

	for _, v := range violations {
		multiplier := damageMultipliers[v.Severity]
		claim := v.EstimatedDamage.
			MulFloat(multiplier).
			MulFloat(v.Confidence)

		if claim.Currency() != currency {
			return nil, errors.NewValidationError("CURRENCY_MISMATCH",
				fmt.Sprintf("violation damages mix currencies %s and %s", currency, claim.Currency()))
		}
		total = total.Add(claim.Amount())

		sevKey := v.Severity.String()
		if existing, ok := analysis.BySeverity[sevKey]; ok {
			sum, err := existing.Add(claim)
			if err != nil {
				return nil, errors.NewValidationError("CURRENCY_MISMATCH", err.Error())
			}
			analysis.BySeverity[sevKey] = sum
		} else {
			analysis.BySeverity[sevKey] = claim
		}

		claims = append(claims, DamageClaim{
			Type:           v.Type,
			Severity:       v.Severity,
			Confidence:     v.Confidence,
			LegalReference: v.LegalReference,
			ClaimAmount:    claim,
		})

		if v.LegalReference != "" && !seenRefs[v.LegalReference] {
			seenRefs[v.LegalReference] = true
			analysis.LegalReferences = append(analysis.LegalReferences, v.LegalReference)
		}
	}

	sort.SliceStable(claims, func(i, j int) bool {
		return claims[i].ClaimAmount.GreaterThan(claims[j].ClaimAmount)
	})
	if len(claims) > 3 {
		claims = claims[:3]
	}
	analysis.StrongestClaims = claims
	analysis.TotalDamages = values.MustNewMoney(total, currency)

	return analysis, nil
}

// Calculate scores negotiating strength: half from the financial position
// (damages plus excess fees, saturating at 500 NOK) and half from creditor
// risk.
func (c *LeverageCalculator) Calculate(gdprDamages, excessiveFees values.Money, riskScore float64) (*LeverageResult, error) {
	if gdprDamages.IsNegative() || excessiveFees.IsNegative() {
		return nil, errors.NewValidationError("NEGATIVE_LEVERAGE_INPUT", "damages and fees cannot be negative")
	}
	if riskScore < 0 || riskScore > 100 {
		return nil, errors.NewValidationError("INVALID_RISK_SCORE", "risk score must be in [0,100]")
	}

	financial, err := gdprDamages.Add(excessiveFees)
	if err != nil {
		return nil, errors.NewValidationError("CURRENCY_MISMATCH", err.Error())
	}

	financialRatio, _ := financial.Amount().Div(decimal.NewFromInt(500)).Float64()
	if financialRatio > 1 {
		financialRatio = 1
	}

	score := 50*financialRatio + 50*(riskScore/100)
	if score > 100 {
		score = 100
	}

	level := leverageLevelFor(score)
	return &LeverageResult{
		Score:             score,
		Level:             level,
		FinancialLeverage: financial,
		ReductionTarget:   level.ReductionTarget(),
	}, nil
}

// GenerateOffers derives the three settlement tiers. Each tier has a floor
// preventing pathological near-zero offers; the floors can invert the raw
// ordering, so tiers are clamped top-down afterwards to restore
// aggressive <= recommended <= conservative <= current.
func (c *LeverageCalculator) GenerateOffers(originalClaim, currentAmount, legitimateDebt, gdprDamages values.Money, leverage *LeverageResult) (*Offers, error) {
	if !originalClaim.IsPositive() || !currentAmount.IsPositive() {
		return nil, errors.NewValidationError("INVALID_DEBT", "claim amounts must be positive")
	}
	if leverage == nil {
		return nil, errors.NewValidationError("MISSING_LEVERAGE", "leverage result is required")
	}

	score := decimal.NewFromFloat(leverage.Score)
	one := decimal.NewFromInt(1)

	conservative := legitimateDebt.MulFloat(0.40).
		Max(originalClaim.MulFloat(0.10))

	// reduction = 0.70 + 0.20 * score/100
	recReduction := decimal.NewFromFloat(0.70).
		Add(decimal.NewFromFloat(0.20).Mul(score.Div(decimal.NewFromInt(100))))
	recommended := currentAmount.Mul(one.Sub(recReduction)).
		Max(originalClaim.MulFloat(0.05))

	// reduction = 0.90 + min(score/200, 0.07)
	aggBonus := score.Div(decimal.NewFromInt(200))
	if aggBonus.GreaterThan(decimal.NewFromFloat(0.07)) {
		aggBonus = decimal.NewFromFloat(0.07)
	}
	aggressive := currentAmount.Mul(one.Sub(decimal.NewFromFloat(0.90).Add(aggBonus))).
		Max(gdprDamages.MulFloat(0.50))

	conservative = conservative.Min(currentAmount)
	recommended = recommended.Min(conservative)
	aggressive = aggressive.Min(recommended)

	return &Offers{
		Conservative: c.buildOffer(conservative, currentAmount),
		Recommended:  c.buildOffer(recommended, currentAmount),
		Aggressive:   c.buildOffer(aggressive, currentAmount),
	}, nil
}

func (c *LeverageCalculator) buildOffer(amount, currentAmount values.Money) Offer {
	savings, err := currentAmount.Sub(amount)
	if err != nil || savings.IsNegative() {
		savings = values.Zero(currentAmount.Currency())
	}
	return Offer{
		Amount:      amount.Round(2),
		Savings:     savings.Round(2),
		PlatformFee: savings.Mul(c.platformFeeRate).Round(2),
	}
}

func leverageLevelFor(score float64) LeverageLevel {
	switch {
	case score >= 75:
		return LeverageVeryHigh
	case score >= 50:
		return LeverageHigh
	case score >= 30:
		return LeverageMedium
	default:
		return LeverageLow
	}
}

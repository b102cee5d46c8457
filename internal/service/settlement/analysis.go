package settlement

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/damocles-platform/gdpr-engine/internal/domain/creditor"
	"github.com/damocles-platform/gdpr-engine/internal/domain/values"
	"github.com/damocles-platform/gdpr-engine/internal/domain/violation"
	"github.com/damocles-platform/gdpr-engine/internal/infrastructure/config"
	"github.com/damocles-platform/gdpr-engine/internal/metrics"
)

// Strategy is the recommended negotiation posture for a leverage level.
// The lookup is deterministic so two analyses of the same case always
// recommend the same posture.
type Strategy struct {
	Name        string `json:"name"`
	OpeningTier string `json:"opening_tier"`
	Description string `json:"description"`
}

var strategies = map[LeverageLevel]Strategy{
	LeverageVeryHigh: {
		Name:        "maximum_pressure",
		OpeningTier: "aggressive",
		Description: "Open at the aggressive tier citing all documented violations. Reference regulator complaint readiness in the first letter.",
	},
	LeverageHigh: {
		Name:        "assertive",
		OpeningTier: "aggressive",
		Description: "Open at the aggressive tier with the strongest claims itemized. Expect to settle near the recommended tier.",
	},
	LeverageMedium: {
		Name:        "standard",
		OpeningTier: "recommended",
		Description: "Open at the recommended tier, citing fee excess and documented violations. Concede toward conservative only against real counter-movement.",
	},
	LeverageLow: {
		Name:        "fee_focused",
		OpeningTier: "conservative",
		Description: "Limited violation leverage. Negotiate on statutory fee compliance; open at the conservative tier.",
	},
}

// Analysis is a point-in-time leverage snapshot for one debt, creditor and
// user triple. Immutable once produced; negotiation rounds reference it by
// value and a fresh one is generated per session.
type Analysis struct {
	ID           uuid.UUID       `json:"id"`
	CreditorID   uuid.UUID       `json:"creditor_id"`
	OriginalDebt values.Money    `json:"original_debt"`
	CurrentDebt  values.Money    `json:"current_debt"`
	GDPR         *GDPRAnalysis   `json:"gdpr_analysis"`
	Fees         *FeeAnalysis    `json:"inkasso_analysis"`
	Risk         *RiskScore      `json:"creditor_risk"`
	Leverage     *LeverageResult `json:"leverage"`
	Offers       *Offers         `json:"offers"`
	Strategy     Strategy        `json:"strategy"`
	GeneratedAt  time.Time       `json:"generated_at"`
}

// Service assembles the full settlement analysis from the three
// calculators. It is pure given its inputs: all repository reads happen
// before calling in.
type Service struct {
	fees     *FeeAnalyzer
	risk     *RiskScorer
	leverage *LeverageCalculator
	metrics  *metrics.Registry
}

func NewService(cfg *config.Config) (*Service, error) {
	fees, err := NewFeeAnalyzer(cfg.Fees)
	if err != nil {
		return nil, err
	}
	return &Service{
		fees:     fees,
		risk:     NewRiskScorer(cfg.Risk),
		leverage: NewLeverageCalculator(cfg.Negotiation),
	}, nil
}

// WithMetrics attaches the metric registry.
func (s *Service) WithMetrics(registry *metrics.Registry) *Service {
	s.metrics = registry
	return s
}

// Analyze produces the settlement position for one debt. violations is the
// current case's documented record; the creditor carries the historical
// aggregates.
func (s *Service) Analyze(ctx context.Context, c *creditor.Creditor, violations []*violation.Violation, originalClaim, currentAmount values.Money) (*Analysis, error) {
	feeAnalysis, err := s.fees.AnalyzeFees(originalClaim, currentAmount)
	if err != nil {
		return nil, err
	}

	riskScore := s.risk.Score(c, violations)
	gdprAnalysis, err := s.leverage.AnalyzeDamages(violations)
	if err != nil {
		return nil, err
	}

	leverage, err := s.leverage.Calculate(gdprAnalysis.TotalDamages, feeAnalysis.ExcessiveAmount, riskScore.Score)
	if err != nil {
		return nil, err
	}

	offers, err := s.leverage.GenerateOffers(originalClaim, currentAmount, feeAnalysis.LegitimateDebt, gdprAnalysis.TotalDamages, leverage)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.AnalysesGenerated.Add(ctx, 1)
		s.metrics.LeverageScore.Record(ctx, leverage.Score)
	}

	return &Analysis{
		ID:           uuid.New(),
		CreditorID:   c.ID,
		OriginalDebt: originalClaim,
		CurrentDebt:  currentAmount,
		GDPR:         gdprAnalysis,
		Fees:         feeAnalysis,
		Risk:         riskScore,
		Leverage:     leverage,
		Offers:       offers,
		Strategy:     strategies[leverage.Level],
		GeneratedAt:  time.Now().UTC(),
	}, nil
}

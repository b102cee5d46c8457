package settlement

import (
	"github.com/damocles-platform/gdpr-engine/internal/domain/creditor"
	"github.com/damocles-platform/gdpr-engine/internal/domain/violation"
	"github.com/damocles-platform/gdpr-engine/internal/infrastructure/config"
)

// RiskLevel bands a 0-100 creditor risk score.
type RiskLevel string

const (
	RiskLevelCritical RiskLevel = "critical"
	RiskLevelHigh     RiskLevel = "high"
	RiskLevelMedium   RiskLevel = "medium"
	RiskLevelLow      RiskLevel = "low"
)

// riskRecommendations are deterministic per band. The text goes verbatim
// into user-facing settlement summaries, so it is fixed, not generated.
var riskRecommendations = map[RiskLevel]string{
	RiskLevelCritical: "Immediate escalation recommended. Creditor shows systematic non-compliance; regulator complaint has strong grounds.",
	RiskLevelHigh:     "Aggressive settlement posture recommended. Documented violations give substantial negotiating leverage.",
	RiskLevelMedium:   "Standard settlement approach. Cite documented violations in the opening offer.",
	RiskLevelLow:      "Conservative approach. Limited violation history; negotiate on fee compliance alone.",
}

// RiskScore is the scored regulatory exposure of one creditor.
type RiskScore struct {
	Score          float64   `json:"score"`
	Level          RiskLevel `json:"level"`
	HistoryRisk    float64   `json:"history_risk"`
	SeverityRisk   float64   `json:"severity_risk"`
	PatternRisk    float64   `json:"pattern_risk"`
	TypeMultiplier float64   `json:"type_multiplier"`
	Recommendation string    `json:"recommendation"`
}

// RiskScorer weighs a creditor's violation history, the severity of the
// current case, and the creditor's regulatory exposure class into a single
// 0-100 score.
type RiskScorer struct {
	typeMultipliers map[string]float64
}

func NewRiskScorer(cfg config.RiskConfig) *RiskScorer {
	return &RiskScorer{typeMultipliers: cfg.TypeMultipliers}
}

// Score combines history, current-case severity and pattern aggregates.
// TotalViolations and ViolationScore on the creditor are externally
// maintained running aggregates; current-case counts come from the
// violations slice.
func (s *RiskScorer) Score(c *creditor.Creditor, current []*violation.Violation) *RiskScore {
	historyRisk := clamp01(float64(c.TotalViolations) / 10.0)

	criticalCount := violation.CountBySeverity(current, violation.SeverityCritical)
	highCount := violation.CountBySeverity(current, violation.SeverityHigh)
	severityRisk := clamp01(0.4*float64(criticalCount) + 0.2*float64(highCount))

	patternRisk := clamp01(c.ViolationScore / 5.0)

	multiplier, ok := s.typeMultipliers[c.Type.String()]
	if !ok {
		multiplier = s.typeMultipliers[creditor.TypeOther.String()]
		if multiplier == 0 {
			multiplier = 1.0
		}
	}

	score := 100 * (0.3*historyRisk + 0.4*severityRisk + 0.3*patternRisk) * multiplier
	if score > 100 {
		score = 100
	}

	level := riskLevelFor(score)
	return &RiskScore{
		Score:          score,
		Level:          level,
		HistoryRisk:    historyRisk,
		SeverityRisk:   severityRisk,
		PatternRisk:    patternRisk,
		TypeMultiplier: multiplier,
		Recommendation: riskRecommendations[level],
	}
}

func riskLevelFor(score float64) RiskLevel {
	switch {
	case score >= 70:
		return RiskLevelCritical
	case score >= 50:
		return RiskLevelHigh
	case score >= 30:
		return RiskLevelMedium
	default:
		return RiskLevelLow
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

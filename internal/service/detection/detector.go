package detection

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/damocles-platform/gdpr-engine/internal/domain/violation"
	"github.com/damocles-platform/gdpr-engine/internal/domain/values"
	"github.com/damocles-platform/gdpr-engine/internal/infrastructure/config"
	"github.com/damocles-platform/gdpr-engine/internal/metrics"
)

// DocumentType selects which targeted checks run after generic pattern
// matching.
type DocumentType string

const (
	DocumentUnknown       DocumentType = "unknown"
	DocumentBankStatement DocumentType = "bank_statement"
	DocumentInkassoLetter DocumentType = "inkasso_letter"
	DocumentGDPRResponse  DocumentType = "gdpr_response"
)

const (
	confidenceFloor   = 0.3
	confidencePerHit  = 0.2
	confidenceCeiling = 0.95
	damageHitCap      = 5
)

// Detector classifies raw creditor response text into violations. It is a
// pure calculator: same text in, same violations out, and it never fails on
// malformed input. An empty result is a legitimate outcome, distinct from a
// detector error.
type Detector struct {
	patterns []Pattern
	damages  map[violation.Severity]values.Money
	scorer   *completenessScorer
	metrics  *metrics.Registry

	clock func() time.Time
}

// NewDetector builds a detector from the configured damage table and the
// default pattern library.
func NewDetector(cfg config.DetectionConfig) *Detector {
	return NewDetectorWithPatterns(cfg, DefaultPatternLibrary())
}

// NewDetectorWithPatterns builds a detector with a caller-supplied pattern
// table.
func NewDetectorWithPatterns(cfg config.DetectionConfig, patterns []Pattern) *Detector {
	damages := make(map[violation.Severity]values.Money, len(cfg.BaseDamages))
	for name, amount := range cfg.BaseDamages {
		sev, err := violation.ParseSeverity(name)
		if err != nil {
			continue
		}
		damages[sev] = values.NOKFromFloat(amount)
	}
	// Any severity missing from config falls back to zero damage rather
	// than failing detection.
	for _, sev := range []violation.Severity{violation.SeverityLow, violation.SeverityMedium, violation.SeverityHigh, violation.SeverityCritical} {
		if _, ok := damages[sev]; !ok {
			damages[sev] = values.Zero(values.NOK)
		}
	}
	return &Detector{
		patterns: patterns,
		damages:  damages,
		scorer:   newCompletenessScorer(cfg),
		clock:    func() time.Time { return time.Now().UTC() },
	}
}

// WithMetrics attaches the metric registry.
func (d *Detector) WithMetrics(registry *metrics.Registry) *Detector {
	d.metrics = registry
	return d
}

// Analyze runs every library pattern over the text, then appends
// document-type specific findings. Duplicates across categories are kept
// as distinct evidence.
func (d *Detector) Analyze(ctx context.Context, creditorID uuid.UUID, text string, docType DocumentType) []*violation.Violation {
	started := time.Now()
	violations := make([]*violation.Violation, 0, 4)

	for _, p := range d.patterns {
		matches := p.Expr.FindAllStringIndex(text, -1)
		if len(matches) == 0 {
			continue
		}
		violations = append(violations, d.newViolation(
			creditorID, p.Type, p.Severity, p.LegalReference,
			len(matches), snippet(text, matches[0]),
		))
	}

	switch docType {
	case DocumentBankStatement:
		violations = append(violations, d.bankStatementChecks(creditorID, text)...)
	case DocumentInkassoLetter:
		violations = append(violations, d.inkassoLetterChecks(creditorID, text)...)
	case DocumentGDPRResponse:
		if v := d.scorer.check(ctx, d, creditorID, text); v != nil {
			violations = append(violations, v)
		}
	}

	if d.metrics != nil {
		d.metrics.ViolationsDetected.Add(ctx, int64(len(violations)))
		d.metrics.DetectionDuration.Record(ctx, float64(time.Since(started).Milliseconds()))
	}
	return violations
}

// newViolation applies the confidence and damage formulas. One violation
// per matched pattern regardless of hit count; the hit count only scales
// confidence and damage.
func (d *Detector) newViolation(creditorID uuid.UUID, vType violation.Type, severity violation.Severity, legalRef string, hits int, evidence string) *violation.Violation {
	confidence := confidenceFloor + confidencePerHit*float64(hits)
	if confidence > confidenceCeiling {
		confidence = confidenceCeiling
	}
	multiplier := hits
	if multiplier > damageHitCap {
		multiplier = damageHitCap
	}
	damage := d.damages[severity].MulFloat(float64(multiplier))

	v, err := violation.New(creditorID, vType, severity, confidence, evidence, legalRef, damage)
	if err != nil {
		// Inputs are produced internally and always valid; keep the
		// contract of never failing by returning a zero-confidence record.
		v, _ = violation.New(creditorID, vType, severity, 0, evidence, legalRef, damage)
	}
	v.CreatedAt = d.clock()
	return v
}

var (
	feeLineExpr    = regexp.MustCompile(`(?i)(gebyr|fee|charge|omkostning\w*|salær)`)
	inkassoFeeExpr = regexp.MustCompile(`(?i)(purregebyr|inkassogebyr|salær|collection\s+fee|late\s+fee)`)
	threatExpr     = regexp.MustCompile(`(?i)(politi\w*|police|criminal|straffbar\w*|fengsel|prison|namsmann\w*\s+umiddelbart)`)
)

// bankStatementChecks flags statements dense with unexplained fee lines.
func (d *Detector) bankStatementChecks(creditorID uuid.UUID, text string) []*violation.Violation {
	matches := feeLineExpr.FindAllStringIndex(text, -1)
	if len(matches) < 3 {
		return nil
	}
	evidence := fmt.Sprintf("%d fee entries on statement, first at: %s", len(matches), snippet(text, matches[0]))
	return []*violation.Violation{
		d.newViolation(creditorID, violation.TypeHiddenCharges, violation.SeverityMedium, "Inkassoloven § 17", len(matches), evidence),
	}
}

// inkassoLetterChecks flags collection letters for fee stacking and
// intimidation tactics.
func (d *Detector) inkassoLetterChecks(creditorID uuid.UUID, text string) []*violation.Violation {
	var out []*violation.Violation
	if matches := inkassoFeeExpr.FindAllStringIndex(text, -1); len(matches) >= 2 {
		out = append(out, d.newViolation(
			creditorID, violation.TypeExcessiveFees, violation.SeverityMedium,
			"Inkassoloven § 14", len(matches), snippet(text, matches[0]),
		))
	}
	if matches := threatExpr.FindAllStringIndex(text, -1); len(matches) >= 1 {
		out = append(out, d.newViolation(
			creditorID, violation.TypeThreateningLanguage, violation.SeverityHigh,
			"Inkassoloven § 8", len(matches), snippet(text, matches[0]),
		))
	}
	return out
}

// snippet extracts the matched text with surrounding context for the
// evidence record.
func snippet(text string, loc []int) string {
	const window = 60
	start := loc[0] - window
	if start < 0 {
		start = 0
	}
	end := loc[1] + window
	if end > len(text) {
		end = len(text)
	}
	return text[start:end]
}

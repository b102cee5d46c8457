package detection

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/damocles-platform/gdpr-engine/internal/domain/violation"
	"github.com/damocles-platform/gdpr-engine/internal/infrastructure/config"
)

// The six content categories an Article 15 response must address.
var requiredCategories = []struct {
	name     string
	keywords []string
}{
	{"data_categories", []string{"personal data", "personopplysninger", "categories of data", "datakategorier", "following data", "opplysninger om deg"}},
	{"processing_purpose", []string{"purpose", "formål", "processed in order to", "behandles for"}},
	{"retention_period", []string{"retention", "retained", "oppbevar", "lagringstid", "stored for", "slettes etter", "deleted after"}},
	{"third_party_sharing", []string{"third party", "third parties", "tredjepart", "shared with", "disclosed to", "utlevert til", "recipients", "mottakere"}},
	{"legal_basis", []string{"legal basis", "lawful basis", "behandlingsgrunnlag", "article 6", "artikkel 6", "legitimate interest", "berettiget interesse"}},
	{"rights_information", []string{"right to", "rett til", "rettigheter", "complaint", "klage", "datatilsynet", "erasure", "sletting", "rectification"}},
}

var noDataDeclarations = []string{
	"no personal data held",
	"we hold no personal data",
	"do not hold any personal data",
	"do not process any personal data",
	"ingen personopplysninger",
	"har ingen opplysninger",
}

var templatePhrases = []string{
	"this is an automated response",
	"automatisk generert",
	"standard response",
	"standardsvar",
	"do not reply to this",
	"[insert",
}

var (
	concreteDateExpr   = regexp.MustCompile(`\d{1,2}[./-]\d{1,2}[./-]\d{2,4}`)
	concreteAmountExpr = regexp.MustCompile(`(?i)\d+([.,]\d+)?\s*(nok|kr|kroner)`)
	concreteEmailExpr  = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
)

const (
	concreteDataBonus       = 0.5
	templateLanguagePenalty = 1.0
)

// completenessScorer grades an Article 15 response against the required
// categories and emits an incomplete_response violation when the answer
// falls short.
type completenessScorer struct {
	incompleteThreshold   float64
	highSeverityThreshold float64
	noDataMaxLength       int
}

func newCompletenessScorer(cfg config.DetectionConfig) *completenessScorer {
	return &completenessScorer{
		incompleteThreshold:   cfg.IncompleteThreshold,
		highSeverityThreshold: cfg.HighSeverityThreshold,
		noDataMaxLength:       cfg.NoDataMaxLength,
	}
}

// score returns completeness in [0,1] and the categories found.
func (c *completenessScorer) score(text string) (float64, []string) {
	lower := strings.ToLower(text)

	var present []string
	for _, cat := range requiredCategories {
		for _, kw := range cat.keywords {
			if strings.Contains(lower, kw) {
				present = append(present, cat.name)
				break
			}
		}
	}

	raw := float64(len(present))
	if c.hasConcreteData(text) {
		raw += concreteDataBonus
	}
	if c.hasTemplateLanguage(lower) {
		raw -= templateLanguagePenalty
	}

	completeness := raw / float64(len(requiredCategories))
	if completeness < 0 {
		completeness = 0
	}
	if completeness > 1 {
		completeness = 1
	}
	return completeness, present
}

// check grades the response and, below the threshold, produces the
// incomplete_response violation. A short legitimate "we hold nothing"
// answer is exempt: brevity with an explicit no-data declaration is a
// complete response, not an evasive one.
func (c *completenessScorer) check(ctx context.Context, d *Detector, creditorID uuid.UUID, text string) *violation.Violation {
	// An empty document is absent input, not an evasive answer. Grading
	// it would manufacture a violation with no evidence behind it.
	if strings.TrimSpace(text) == "" {
		return nil
	}

	completeness, present := c.score(text)
	if d.metrics != nil {
		d.metrics.CompletenessScore.Record(ctx, completeness)
	}
	if completeness >= c.incompleteThreshold {
		return nil
	}
	if c.hasNoDataDeclaration(text) && len(text) < c.noDataMaxLength {
		return nil
	}

	severity := violation.SeverityMedium
	if completeness < c.highSeverityThreshold {
		severity = violation.SeverityHigh
	}
	confidence := 1 - completeness
	if confidence > 0.9 {
		confidence = 0.9
	}

	evidence := fmt.Sprintf(
		"response covers %d of %d required categories (%s); completeness %.2f",
		len(present), len(requiredCategories), strings.Join(present, ", "), completeness,
	)

	v := d.newViolation(creditorID, violation.TypeIncompleteResponse, severity, "GDPR Article 15", 1, evidence)
	v.Confidence = confidence
	return v
}

func (c *completenessScorer) hasNoDataDeclaration(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range noDataDeclarations {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func (c *completenessScorer) hasConcreteData(text string) bool {
	indicators := 0
	if concreteDateExpr.MatchString(text) {
		indicators++
	}
	if concreteAmountExpr.MatchString(text) {
		indicators++
	}
	if concreteEmailExpr.MatchString(text) {
		indicators++
	}
	return indicators >= 2
}

func (c *completenessScorer) hasTemplateLanguage(lower string) bool {
	for _, phrase := range templatePhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

package detection

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/damocles-platform/gdpr-engine/internal/domain/violation"
	"github.com/damocles-platform/gdpr-engine/internal/infrastructure/config"
	"github.com/damocles-platform/gdpr-engine/internal/metrics"
)

func newTestDetector(t *testing.T) *Detector {
	t.Helper()
	return NewDetector(config.Defaults().Detection)
}

func findByType(violations []*violation.Violation, vType violation.Type) *violation.Violation {
	for _, v := range violations {
		if v.Type == vType {
			return v
		}
	}
	return nil
}

func TestDetector_ConfidenceBounds(t *testing.T) {
	d := newTestDetector(t)
	creditorID := uuid.New()

	tests := []struct {
		name               string
		matches            int
		expectedConfidence float64
	}{
		{name: "single match", matches: 1, expectedConfidence: 0.5},
		{name: "three matches", matches: 3, expectedConfidence: 0.9},
		{name: "ten matches capped", matches: 10, expectedConfidence: 0.95},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := strings.Repeat("Data was processed without consent from the subject. ", tt.matches)
			violations := d.Analyze(context.Background(), creditorID, text, DocumentUnknown)

			v := findByType(violations, violation.TypeMissingConsent)
			require.NotNil(t, v, "expected a missing_consent violation")
			assert.InDelta(t, tt.expectedConfidence, v.Confidence, 0.0001)
			assert.Equal(t, violation.SeverityMedium, v.Severity)
			assert.Equal(t, "GDPR Article 6", v.LegalReference)
		})
	}
}

func TestDetector_NoMatchEmitsNothing(t *testing.T) {
	d := newTestDetector(t)

	violations := d.Analyze(context.Background(), uuid.New(), "Thank you for your letter. We will revert shortly.", DocumentUnknown)

	assert.Empty(t, violations, "clean text must yield an empty list, not placeholder violations")
}

func TestDetector_EmptyInput(t *testing.T) {
	d := newTestDetector(t)

	assert.Empty(t, d.Analyze(context.Background(), uuid.New(), "", DocumentUnknown))
	assert.Empty(t, d.Analyze(context.Background(), uuid.New(), "", DocumentGDPRResponse))
	// Whitespace-only is equally absent input; the completeness scorer
	// must not grade it into an incomplete_response violation.
	assert.Empty(t, d.Analyze(context.Background(), uuid.New(), " \n\t  ", DocumentGDPRResponse))
}

func TestDetector_OneViolationPerPattern(t *testing.T) {
	d := newTestDetector(t)
	// Five hits of the same pattern must collapse into one violation.
	text := strings.Repeat("processed without consent. ", 5)

	violations := d.Analyze(context.Background(), uuid.New(), text, DocumentUnknown)

	count := 0
	for _, v := range violations {
		if v.Type == violation.TypeMissingConsent {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestDetector_DamageScalesWithCappedMatchCount(t *testing.T) {
	d := newTestDetector(t)

	// 8 hits, damage multiplier caps at 5: medium base 100 -> 500 NOK.
	text := strings.Repeat("stored without consent. ", 8)
	violations := d.Analyze(context.Background(), uuid.New(), text, DocumentUnknown)

	v := findByType(violations, violation.TypeMissingConsent)
	require.NotNil(t, v)
	assert.Equal(t, "500.00 NOK", v.EstimatedDamage.String())
}

func TestDetector_InkassoLetterChecksAppended(t *testing.T) {
	d := newTestDetector(t)

	text := "Vi krever purregebyr og inkassogebyr. Betal umiddelbart, ellers kontakter vi politiet. " +
		"Data was shared with third parties without consent."
	violations := d.Analyze(context.Background(), uuid.New(), text, DocumentInkassoLetter)

	assert.NotNil(t, findByType(violations, violation.TypeExcessiveFees), "fee stacking check should fire")
	assert.NotNil(t, findByType(violations, violation.TypeThreateningLanguage), "threat check should fire")
	// Generic pattern results are kept alongside, not deduplicated.
	assert.NotNil(t, findByType(violations, violation.TypeUnauthorizedSharing))
	assert.NotNil(t, findByType(violations, violation.TypeMissingConsent))
}

func TestDetector_BankStatementChecks(t *testing.T) {
	d := newTestDetector(t)

	tests := []struct {
		name     string
		text     string
		expected bool
	}{
		{
			name:     "three fee lines flagged",
			text:     "01.02.2024 Gebyr 50,00\n01.03.2024 Gebyr 50,00\n01.04.2024 Omkostninger 120,00",
			expected: true,
		},
		{
			name:     "two fee lines pass",
			text:     "01.02.2024 Gebyr 50,00\n01.03.2024 Gebyr 50,00",
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			violations := d.Analyze(context.Background(), uuid.New(), tt.text, DocumentBankStatement)
			v := findByType(violations, violation.TypeHiddenCharges)
			if tt.expected {
				assert.NotNil(t, v)
			} else {
				assert.Nil(t, v)
			}
		})
	}
}

func TestDetector_WithMetricsRegistry(t *testing.T) {
	registry, err := metrics.NewRegistry("detection-test")
	require.NoError(t, err)
	d := NewDetector(config.Defaults().Detection).WithMetrics(registry)

	violations := d.Analyze(context.Background(), uuid.New(),
		"Data was processed without consent from the subject.", DocumentGDPRResponse)

	require.NotNil(t, findByType(violations, violation.TypeMissingConsent))
}

func TestDetector_EvidenceContainsMatch(t *testing.T) {
	d := newTestDetector(t)

	violations := d.Analyze(context.Background(), uuid.New(), "All records are shared with third parties for marketing.", DocumentUnknown)

	v := findByType(violations, violation.TypeUnauthorizedSharing)
	require.NotNil(t, v)
	assert.Contains(t, v.Evidence, "third parties")
}

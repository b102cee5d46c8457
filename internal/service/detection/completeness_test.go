package detection

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/damocles-platform/gdpr-engine/internal/domain/violation"
)

func TestCompleteness_ShortNoDataResponseSuppressed(t *testing.T) {
	d := newTestDetector(t)

	// Under 300 characters with an explicit declaration: a legitimate
	// "we hold nothing" answer must not be penalized as incomplete.
	text := "Dear customer, following your request we have searched our systems. " +
		"We can confirm that there is no personal data held about you in our records."
	require.Less(t, len(text), 300)

	violations := d.Analyze(context.Background(), uuid.New(), text, DocumentGDPRResponse)
	assert.Nil(t, findByType(violations, violation.TypeIncompleteResponse))
}

func TestCompleteness_ShortEvasiveResponseFlagged(t *testing.T) {
	d := newTestDetector(t)

	text := "Dear customer, thank you for your letter. We consider this matter closed " +
		"and will not be providing further information at this time."
	require.Less(t, len(text), 300)

	violations := d.Analyze(context.Background(), uuid.New(), text, DocumentGDPRResponse)
	v := findByType(violations, violation.TypeIncompleteResponse)
	require.NotNil(t, v, "evasive short response without a no-data declaration must be flagged")
	assert.Equal(t, violation.SeverityHigh, v.Severity, "near-zero completeness is high severity")
	assert.InDelta(t, 0.9, v.Confidence, 0.0001)
}

func TestCompleteness_ThoroughResponsePasses(t *testing.T) {
	d := newTestDetector(t)

	text := `We process the following personal data about you: name, address, payment history.
The purpose of the processing is debt administration. The legal basis is our legitimate interest
under Article 6. Data is retained for 5 years after the case closes and is then deleted.
We have shared data with the following recipients: Experian (credit reference).
You have the right to lodge a complaint with Datatilsynet and the right to erasure.
Contact personvern@creditor.no. Outstanding balance: 4500 NOK as of 01.05.2024.`

	completeness, present := d.scorer.score(text)
	assert.GreaterOrEqual(t, completeness, 0.9)
	assert.Len(t, present, 6)

	violations := d.Analyze(context.Background(), uuid.New(), text, DocumentGDPRResponse)
	assert.Nil(t, findByType(violations, violation.TypeIncompleteResponse))
}

func TestCompleteness_TemplateLanguagePenalized(t *testing.T) {
	d := newTestDetector(t)

	withTemplate := "We process personal data for the purpose of administration. " +
		"This is an automated response, do not reply to this message."
	withoutTemplate := "We process personal data for the purpose of administration."

	scoreWith, _ := d.scorer.score(withTemplate)
	scoreWithout, _ := d.scorer.score(withoutTemplate)
	assert.Less(t, scoreWith, scoreWithout)
}

func TestCompleteness_SeverityBands(t *testing.T) {
	d := newTestDetector(t)

	// Two categories present: completeness 2/6 = 0.33 -> medium severity.
	text := "We process personal data about you. The purpose is debt collection. " +
		strings.Repeat("Nothing further to add. ", 10)

	violations := d.Analyze(context.Background(), uuid.New(), text, DocumentGDPRResponse)
	v := findByType(violations, violation.TypeIncompleteResponse)
	require.NotNil(t, v)
	assert.Equal(t, violation.SeverityMedium, v.Severity)
	assert.InDelta(t, 1-2.0/6.0, v.Confidence, 0.01)
}

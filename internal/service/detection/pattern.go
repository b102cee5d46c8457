package detection

import (
	"regexp"

	"github.com/damocles-platform/gdpr-engine/internal/domain/violation"
)

// Pattern is one violation signature: a case-insensitive expression bound
// to exactly one violation type, one base severity and one legal reference.
type Pattern struct {
	Type           violation.Type
	Severity       violation.Severity
	LegalReference string
	Expr           *regexp.Regexp
}

// DefaultPatternLibrary returns the built-in signature table. Expressions
// cover both English and Norwegian phrasing since creditor responses arrive
// in either language.
func DefaultPatternLibrary() []Pattern {
	return []Pattern{
		{
			Type:           violation.TypeExcessiveRetention,
			Severity:       violation.SeverityHigh,
			LegalReference: "GDPR Article 5(1)(e)",
			Expr:           regexp.MustCompile(`(?i)(retain|store|keep|oppbevar\w*|lagre[st]?)\W+(\w+\W+){0,6}?\d+\s*(years?|år|months?|måned\w*)`),
		},
		{
			Type:           violation.TypeMissingConsent,
			Severity:       violation.SeverityMedium,
			LegalReference: "GDPR Article 6",
			Expr:           regexp.MustCompile(`(?i)(without|no|uten|ingen)\s+(explicit\s+)?(consent|permission|authorization|samtykke)`),
		},
		{
			Type:           violation.TypeUnauthorizedSharing,
			Severity:       violation.SeverityCritical,
			LegalReference: "GDPR Article 44",
			Expr:           regexp.MustCompile(`(?i)(shared?|transfer(red)?|disclosed?|utlevert|delt)\W+(\w+\W+){0,5}?third[\s-]part(y|ies)`),
		},
		{
			Type:           violation.TypeDataBreach,
			Severity:       violation.SeverityCritical,
			LegalReference: "GDPR Article 33",
			Expr:           regexp.MustCompile(`(?i)(data\s+breach|security\s+incident|unauthori[sz]ed\s+access|datainnbrudd)`),
		},
		{
			Type:           violation.TypeConsentViolation,
			Severity:       violation.SeverityHigh,
			LegalReference: "GDPR Article 7",
			Expr:           regexp.MustCompile(`(?i)(consent\s+(was\s+)?(not|never)\s+(obtained|given|collected)|opt(ed)?[\s-]out\W+(\w+\W+){0,5}?(still|continued|fortsatt))`),
		},
		{
			Type:           violation.TypeAutomatedDecision,
			Severity:       violation.SeverityMedium,
			LegalReference: "GDPR Article 22",
			Expr:           regexp.MustCompile(`(?i)(automat(ed|ic|isk)\W+(\w+\W+){0,4}?(decision|avgjørelse|scoring)|profil(ing|ering))`),
		},
		{
			Type:           violation.TypeMissingLegalBasis,
			Severity:       violation.SeverityHigh,
			LegalReference: "GDPR Article 6(1)",
			Expr:           regexp.MustCompile(`(?i)(no|without|missing|uten|mangler)\s+((a\s+)?(valid\s+)?)?(legal\s+basis|lawful\s+basis|behandlingsgrunnlag)`),
		},
		{
			Type:           violation.TypeUndisclosedTransfer,
			Severity:       violation.SeverityHigh,
			LegalReference: "GDPR Article 46",
			Expr:           regexp.MustCompile(`(?i)(transfer(red)?|overført)\W+(\w+\W+){0,6}?(outside|utenfor|abroad|tredjeland|third\s+countr)`),
		},
	}
}

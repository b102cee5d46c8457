package violation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Anchor records an evidence hash with an external immutability service.
// Implementations (blockchain clients and the like) live outside the core;
// the core only computes the hash.
type Anchor interface {
	Anchor(ctx context.Context, evidenceHash string) (referenceID string, err error)
}

// evidenceEnvelope is the canonical serialization used for hashing. Field
// order is fixed; amounts are fixed-point strings and timestamps are UTC
// RFC 3339 so the same violation always hashes to the same digest.
type evidenceEnvelope struct {
	ViolationID    string `json:"violation_id"`
	CreditorID     string `json:"creditor_id"`
	RequestID      string `json:"request_id"`
	Type           string `json:"type"`
	Severity       string `json:"severity"`
	Confidence     string `json:"confidence"`
	Evidence       string `json:"evidence"`
	LegalReference string `json:"legal_reference"`
	Damage         string `json:"damage"`
	CreatedAt      string `json:"created_at"`
}

// EvidenceHash computes the deterministic SHA-256 digest of the
// violation/creditor/request triple.
func EvidenceHash(v *Violation, creditorID uuid.UUID, requestID uuid.UUID) (string, error) {
	env := evidenceEnvelope{
		ViolationID:    v.ID.String(),
		CreditorID:     creditorID.String(),
		RequestID:      requestID.String(),
		Type:           string(v.Type),
		Severity:       v.Severity.String(),
		Confidence:     formatConfidence(v.Confidence),
		Evidence:       v.Evidence,
		LegalReference: v.LegalReference,
		Damage:         v.EstimatedDamage.Amount().StringFixed(2),
		CreatedAt:      v.CreatedAt.UTC().Format(time.RFC3339),
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}

func formatConfidence(c float64) string {
	// Two decimals is enough resolution for the detector's 0.2 steps and
	// keeps the canonical form stable across platforms.
	b, _ := json.Marshal(float64(int(c*100)) / 100)
	return string(b)
}

package violation

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/damocles-platform/gdpr-engine/internal/domain/errors"
	"github.com/damocles-platform/gdpr-engine/internal/domain/values"
)

func TestNew_Validation(t *testing.T) {
	creditorID := uuid.New()
	damage := values.NOKFromFloat(100)

	tests := []struct {
		name       string
		vType      Type
		confidence float64
		damage     values.Money
		wantErr    bool
	}{
		{"valid", TypeMissingConsent, 0.5, damage, false},
		{"unknown type", Type("made_up"), 0.5, damage, true},
		{"confidence above one", TypeMissingConsent, 1.2, damage, true},
		{"negative confidence", TypeMissingConsent, -0.1, damage, true},
		{"negative damage", TypeMissingConsent, 0.5, values.NOKFromFloat(-10), true},
		{"zero confidence allowed", TypeMissingConsent, 0, damage, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := New(creditorID, tt.vType, SeverityMedium, tt.confidence, "evidence", "GDPR Article 6", tt.damage)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
				return
			}
			require.NoError(t, err)
			assert.NotEqual(t, uuid.Nil, v.ID)
			assert.Equal(t, creditorID, v.CreditorID)
			assert.False(t, v.CreatedAt.IsZero())
		})
	}
}

func TestSeverity_Roundtrip(t *testing.T) {
	for _, sev := range []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical} {
		parsed, err := ParseSeverity(sev.String())
		require.NoError(t, err)
		assert.Equal(t, sev, parsed)
	}

	_, err := ParseSeverity("fatal")
	require.Error(t, err)
}

func TestScore(t *testing.T) {
	creditorID := uuid.New()
	mk := func(sev Severity, confidence float64) *Violation {
		v, err := New(creditorID, TypeMissingConsent, sev, confidence, "e", "ref", values.NOKFromFloat(50))
		require.NoError(t, err)
		return v
	}

	tests := []struct {
		name       string
		violations []*Violation
		want       float64
	}{
		{"empty", nil, 0},
		// weight 2 * 0.5
		{"single medium", []*Violation{mk(SeverityMedium, 0.5)}, 1.0},
		// (4*1 + 1*1) / 2
		{"critical and low", []*Violation{mk(SeverityCritical, 1), mk(SeverityLow, 1)}, 2.5},
		// mean of 4*1 = 4, below the cap
		{"all critical full confidence", []*Violation{mk(SeverityCritical, 1), mk(SeverityCritical, 1)}, 4.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Score(tt.violations), 0.0001)
		})
	}
}

func TestEvidenceHash_Deterministic(t *testing.T) {
	creditorID := uuid.New()
	requestID := uuid.New()
	v, err := New(creditorID, TypeDelayedResponse, SeverityHigh, 0.95, "no response after 31 days", "GDPR Article 12(3)", values.NOKFromFloat(150))
	require.NoError(t, err)
	v.CreatedAt = time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)

	h1, err := EvidenceHash(v, creditorID, requestID)
	require.NoError(t, err)
	h2, err := EvidenceHash(v, creditorID, requestID)
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)

	// Any field change produces a different digest.
	v2 := *v
	v2.Evidence = "no response after 32 days"
	h3, err := EvidenceHash(&v2, creditorID, requestID)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)

	h4, err := EvidenceHash(v, creditorID, uuid.New())
	require.NoError(t, err)
	assert.NotEqual(t, h1, h4)
}

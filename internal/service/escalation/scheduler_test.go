package escalation_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/damocles-platform/gdpr-engine/internal/domain/request"
	"github.com/damocles-platform/gdpr-engine/internal/domain/values"
	"github.com/damocles-platform/gdpr-engine/internal/domain/violation"
	"github.com/damocles-platform/gdpr-engine/internal/infrastructure/config"
	"github.com/damocles-platform/gdpr-engine/internal/service/escalation"
	"github.com/damocles-platform/gdpr-engine/internal/testutil"
)

type fixture struct {
	scheduler   *escalation.Scheduler
	requests    *testutil.RequestStore
	violations  *testutil.ViolationStore
	notifier    *testutil.Notifier
	filer       *testutil.CaseFiler
	checkpoints *testutil.CheckpointStore
	now         time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		requests:    testutil.NewRequestStore(),
		violations:  testutil.NewViolationStore(),
		notifier:    testutil.NewNotifier(),
		filer:       testutil.NewCaseFiler(),
		checkpoints: testutil.NewCheckpointStore(),
		now:         time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	cfg := config.Defaults()
	f.scheduler = escalation.NewScheduler(
		cfg.Scheduler,
		cfg.MassTrigger,
		f.requests,
		f.violations,
		f.notifier,
		f.filer,
		f.checkpoints,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		nil,
		escalation.WithClock(func() time.Time { return f.now }),
	)
	return f
}

// sentRequest stores a request whose send date is daysAgo before f.now.
func (f *fixture) sentRequest(t *testing.T, daysAgo int) *request.Request {
	t.Helper()
	sentAt := f.now.AddDate(0, 0, -daysAgo)
	req := request.New(uuid.New(), uuid.New(), sentAt.Add(-time.Hour))
	require.NoError(t, req.MarkSent(sentAt))
	require.NoError(t, f.requests.Create(context.Background(), req))
	return req
}

func TestScheduler_NothingFiresBeforeReminderDay(t *testing.T) {
	f := newFixture(t)
	f.sentRequest(t, 20)

	stats := f.scheduler.Tick(context.Background())

	assert.Equal(t, 1, stats.Processed)
	assert.Zero(t, stats.CheckpointsFired)
	assert.Zero(t, f.notifier.ReminderCount())
	assert.Empty(t, f.violations.All())
}

func TestScheduler_ReminderFiresExactlyOnce(t *testing.T) {
	f := newFixture(t)
	req := f.sentRequest(t, 25)

	stats := f.scheduler.Tick(context.Background())
	assert.Equal(t, 1, stats.CheckpointsFired)
	assert.Equal(t, []uuid.UUID{req.ID}, f.notifier.Reminders)

	// Every subsequent tick is a no-op for this checkpoint.
	for i := 0; i < 3; i++ {
		f.now = f.now.Add(time.Hour)
		stats = f.scheduler.Tick(context.Background())
		assert.Zero(t, stats.CheckpointsFired)
	}
	assert.Equal(t, 1, f.notifier.ReminderCount())
}

func TestScheduler_MissedReminderFiresRetroactively(t *testing.T) {
	f := newFixture(t)

	// Scheduler was down on day 25; first tick happens at day 28.
	f.sentRequest(t, 28)
	stats := f.scheduler.Tick(context.Background())

	assert.Equal(t, 1, stats.CheckpointsFired)
	assert.Equal(t, 1, f.notifier.ReminderCount())
}

func TestScheduler_DeadlineViolationRecordedOnce(t *testing.T) {
	f := newFixture(t)
	req := f.sentRequest(t, 31)

	stats := f.scheduler.Tick(context.Background())
	// Reminder (retroactive) plus deadline violation.
	assert.Equal(t, 2, stats.CheckpointsFired)

	recorded := f.violations.All()
	require.Len(t, recorded, 1)
	v := recorded[0]
	assert.Equal(t, violation.TypeDelayedResponse, v.Type)
	assert.Equal(t, violation.SeverityHigh, v.Severity)
	assert.Equal(t, 1.0, v.Confidence)
	assert.Equal(t, "GDPR Article 12(3)", v.LegalReference)
	assert.Equal(t, "150.00 NOK", v.EstimatedDamage.String())
	require.NotNil(t, v.RequestID)
	assert.Equal(t, req.ID, *v.RequestID)
	assert.Contains(t, v.Evidence, req.ReferenceID)

	// Days keep passing; no duplicate violation.
	f.now = f.now.AddDate(0, 0, 2)
	f.scheduler.Tick(context.Background())
	assert.Len(t, f.violations.All(), 1)
}

func TestScheduler_RegulatorCheckpointEscalatesRequest(t *testing.T) {
	f := newFixture(t)
	req := f.sentRequest(t, 36)

	stats := f.scheduler.Tick(context.Background())

	// Deadline violation + regulator. The reminder window has closed.
	assert.Equal(t, 2, stats.CheckpointsFired)
	assert.Zero(t, f.notifier.ReminderCount())

	require.Len(t, f.filer.Complaints, 1)
	complaint := f.filer.Complaints[0]
	assert.Equal(t, req.ID, complaint.RequestID)
	assert.Equal(t, req.ReferenceID, complaint.ReferenceID)
	assert.Equal(t, 6, complaint.DaysOverdue)
	assert.Equal(t, "GDPR Article 77", complaint.LegalBasis)

	assert.Len(t, f.notifier.FormalNotices, 1)

	stored, err := f.requests.Get(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, request.StatusEscalated, stored.Status)
}

func TestScheduler_LegalCaseOpenedAtDay45(t *testing.T) {
	f := newFixture(t)
	req := f.sentRequest(t, 46)

	f.scheduler.Tick(context.Background())

	claim, ok := f.filer.LegalCases[req.ID]
	require.True(t, ok)
	assert.Equal(t, "25000.00 NOK", claim.String())

	// Idempotent across ticks.
	f.now = f.now.Add(time.Hour)
	f.scheduler.Tick(context.Background())
	assert.Len(t, f.filer.LegalCases, 1)
}

func TestScheduler_MassEnforcementGating(t *testing.T) {
	t.Run("single slow responder does not trigger", func(t *testing.T) {
		f := newFixture(t)
		f.sentRequest(t, 61)

		f.scheduler.Tick(context.Background())
		assert.Empty(t, f.notifier.MassNotifications)
	})

	t.Run("legacy total threshold boundary", func(t *testing.T) {
		f := newFixture(t)
		req := f.sentRequest(t, 61)

		// 96 old low-severity violations; the tick itself adds the
		// deadline violation for a 97th... seed to land on 99 total.
		f.seedLowViolations(t, req.CreditorID, 98)
		f.scheduler.Tick(context.Background())
		// 98 seeded + 1 deadline violation = 99: below threshold.
		assert.Empty(t, f.notifier.MassNotifications)

		// One more historical violation crosses 100.
		f.violations.Seed(newStoredViolation(t, req.CreditorID, assortedTypes[11],
			violation.SeverityLow, f.now.AddDate(0, 0, -400)))
		f.now = f.now.Add(time.Hour)
		f.scheduler.Tick(context.Background())
		assert.Equal(t, []uuid.UUID{req.CreditorID}, f.notifier.MassNotifications)
	})

	t.Run("critical clustering triggers", func(t *testing.T) {
		f := newFixture(t)
		req := f.sentRequest(t, 61)

		for i := 0; i < 5; i++ {
			v := newStoredViolation(t, req.CreditorID, assortedTypes[i],
				violation.SeverityCritical, f.now.AddDate(0, 0, -i))
			f.violations.Seed(v)
		}
		f.scheduler.Tick(context.Background())
		assert.Len(t, f.notifier.MassNotifications, 1)
	})
}

// assortedTypes lets seeded records stay below the same-type recurrence
// threshold.
var assortedTypes = []violation.Type{
	violation.TypeMissingConsent,
	violation.TypeExcessiveRetention,
	violation.TypeUnauthorizedSharing,
	violation.TypeConsentViolation,
	violation.TypeAutomatedDecision,
	violation.TypeMissingLegalBasis,
	violation.TypeUndisclosedTransfer,
	violation.TypeHiddenCharges,
	violation.TypeThreateningLanguage,
	violation.TypeDataBreach,
	violation.TypeExcessiveFees,
	violation.TypeIncompleteResponse,
}

func (f *fixture) seedLowViolations(t *testing.T, creditorID uuid.UUID, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		// Spread far into the past with assorted types so only the
		// legacy total rule can match.
		created := f.now.AddDate(0, 0, -100-8*i)
		vType := assortedTypes[i%len(assortedTypes)]
		f.violations.Seed(newStoredViolation(t, creditorID, vType, violation.SeverityLow, created))
	}
}

func newStoredViolation(t *testing.T, creditorID uuid.UUID, vType violation.Type, sev violation.Severity, createdAt time.Time) *violation.Violation {
	t.Helper()
	v, err := violation.New(creditorID, vType, sev, 0.5,
		"seeded", "GDPR Article 6", values.NOKFromFloat(50))
	require.NoError(t, err)
	v.CreatedAt = createdAt
	return v
}

func TestScheduler_FailureIsolation(t *testing.T) {
	f := newFixture(t)
	reqA := f.sentRequest(t, 31)
	reqB := f.sentRequest(t, 31)

	// First violation write fails; the failing request's checkpoint rolls
	// back while the other request proceeds normally.
	f.violations.FailCreate = true
	stats := f.scheduler.Tick(context.Background())

	assert.Equal(t, 2, stats.Processed)
	assert.Equal(t, 1, stats.Errors)
	assert.Len(t, f.violations.All(), 1)

	// Rolled-back checkpoint retries on the next tick and succeeds.
	f.now = f.now.Add(time.Hour)
	stats = f.scheduler.Tick(context.Background())
	assert.Zero(t, stats.Errors)
	assert.Len(t, f.violations.All(), 2)

	seen := map[uuid.UUID]bool{}
	for _, v := range f.violations.All() {
		seen[*v.RequestID] = true
	}
	assert.True(t, seen[reqA.ID])
	assert.True(t, seen[reqB.ID])
}

func TestScheduler_FailedSideEffectDoesNotCountAsFired(t *testing.T) {
	f := newFixture(t)
	req := f.sentRequest(t, 25)

	f.notifier.FailReminders = true
	stats := f.scheduler.Tick(context.Background())
	assert.Equal(t, 1, stats.Errors)
	assert.Zero(t, f.notifier.ReminderCount())

	fired, err := f.checkpoints.Fired(context.Background(), req.ID, escalation.CheckpointReminder)
	require.NoError(t, err)
	assert.False(t, fired)

	f.notifier.FailReminders = false
	f.now = f.now.Add(time.Hour)
	f.scheduler.Tick(context.Background())
	assert.Equal(t, 1, f.notifier.ReminderCount())
}

func TestScheduler_PauseResume(t *testing.T) {
	f := newFixture(t)
	f.sentRequest(t, 25)

	f.scheduler.Pause()
	stats := f.scheduler.Tick(context.Background())
	assert.True(t, stats.Skipped)
	assert.Zero(t, f.notifier.ReminderCount())

	f.scheduler.Resume()
	stats = f.scheduler.Tick(context.Background())
	assert.False(t, stats.Skipped)
	assert.Equal(t, 1, f.notifier.ReminderCount())
}

func TestScheduler_LateResponsePreservesEvidence(t *testing.T) {
	f := newFixture(t)
	req := f.sentRequest(t, 36)

	f.scheduler.Tick(context.Background())
	require.Len(t, f.violations.All(), 1)

	// Creditor finally answers after escalation.
	stored, err := f.requests.Get(context.Background(), req.ID)
	require.NoError(t, err)
	require.NoError(t, stored.MarkResponded(f.now))
	require.NoError(t, f.requests.Update(context.Background(), stored))

	// The request leaves the escalation track, but nothing is erased.
	f.now = f.now.Add(time.Hour)
	stats := f.scheduler.Tick(context.Background())
	assert.Zero(t, stats.Processed)
	assert.Len(t, f.violations.All(), 1)

	fired, err := f.checkpoints.Fired(context.Background(), req.ID, escalation.CheckpointRegulator)
	require.NoError(t, err)
	assert.True(t, fired)
}

func TestMassTrigger_Rules(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	trigger := escalation.NewMassTrigger(config.Defaults().MassTrigger)
	creditorID := uuid.New()

	many := func(n int, sev violation.Severity, spacingDays, ageDays int, sameType bool) []*violation.Violation {
		out := make([]*violation.Violation, n)
		for i := range out {
			vType := violation.TypeMissingConsent
			if !sameType {
				vType = assortedTypes[i%len(assortedTypes)]
			}
			out[i] = newStoredViolation(t, creditorID, vType, sev, now.AddDate(0, 0, -ageDays-spacingDays*i))
		}
		return out
	}

	tests := []struct {
		name       string
		violations []*violation.Violation
		want       bool
	}{
		{"empty record", nil, false},
		{"five recent critical", many(5, violation.SeverityCritical, 2, 1, false), true},
		{"four recent critical", many(4, violation.SeverityCritical, 2, 1, false), false},
		{"ten critical spread over years", many(10, violation.SeverityCritical, 90, 40, false), true},
		{"fifteen recent high", many(15, violation.SeverityHigh, 1, 1, false), true},
		{"thirty old high", many(30, violation.SeverityHigh, 60, 40, false), true},
		{"twenty clustered in a week", many(20, violation.SeverityLow, 0, 10, false), true},
		{"twenty spread out", many(20, violation.SeverityLow, 10, 10, false), false},
		{"same type recurring ten times", many(10, violation.SeverityLow, 30, 10, true), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason := trigger.Evaluate(tt.violations, now)
			assert.Equal(t, tt.want, got)
			if got {
				assert.NotEmpty(t, reason)
			}
		})
	}
}

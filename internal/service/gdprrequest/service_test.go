package gdprrequest_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/damocles-platform/gdpr-engine/internal/domain/errors"
	"github.com/damocles-platform/gdpr-engine/internal/domain/request"
	"github.com/damocles-platform/gdpr-engine/internal/infrastructure/config"
	"github.com/damocles-platform/gdpr-engine/internal/service/detection"
	"github.com/damocles-platform/gdpr-engine/internal/service/gdprrequest"
	"github.com/damocles-platform/gdpr-engine/internal/testutil"
)

type fixture struct {
	svc        *gdprrequest.Service
	requests   *testutil.RequestStore
	violations *testutil.ViolationStore
	now        time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		requests:   testutil.NewRequestStore(),
		violations: testutil.NewViolationStore(),
		now:        time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	cfg := config.Defaults()
	f.svc = gdprrequest.NewService(
		cfg,
		f.requests,
		f.violations,
		detection.NewDetector(cfg.Detection),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	).WithClock(func() time.Time { return f.now })
	return f
}

func TestService_CreateRequest(t *testing.T) {
	f := newFixture(t)
	params := gdprrequest.CreateParams{UserID: uuid.New(), CreditorID: uuid.New()}

	req, err := f.svc.CreateRequest(context.Background(), params)
	require.NoError(t, err)

	assert.Equal(t, request.StatusPending, req.Status)
	assert.Regexp(t, `^GDPR-\d{12}-[0-9a-f]{8}$`, req.ReferenceID)
	assert.Nil(t, req.SentAt)
}

func TestService_CreateRequestValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateRequest(context.Background(), gdprrequest.CreateParams{UserID: uuid.New()})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestService_CooldownBlocksRepeatRequests(t *testing.T) {
	f := newFixture(t)
	params := gdprrequest.CreateParams{UserID: uuid.New(), CreditorID: uuid.New()}

	_, err := f.svc.CreateRequest(context.Background(), params)
	require.NoError(t, err)

	// A day later: still inside the 168h window.
	f.now = f.now.Add(24 * time.Hour)
	_, err = f.svc.CreateRequest(context.Background(), params)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConflict))

	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Contains(t, appErr.Message, "next request possible in")
	assert.EqualValues(t, 6*24*3600, appErr.Details["retry_after_seconds"])

	remaining, err := f.svc.CooldownRemaining(context.Background(), params.UserID, params.CreditorID)
	require.NoError(t, err)
	assert.Equal(t, 144*time.Hour, remaining)

	// A different creditor is unaffected.
	other := gdprrequest.CreateParams{UserID: params.UserID, CreditorID: uuid.New()}
	_, err = f.svc.CreateRequest(context.Background(), other)
	assert.NoError(t, err)

	// Window expires.
	f.now = f.now.Add(145 * time.Hour)
	_, err = f.svc.CreateRequest(context.Background(), params)
	assert.NoError(t, err)
}

func TestService_MarkSent(t *testing.T) {
	f := newFixture(t)
	params := gdprrequest.CreateParams{UserID: uuid.New(), CreditorID: uuid.New()}
	created, err := f.svc.CreateRequest(context.Background(), params)
	require.NoError(t, err)

	sent, err := f.svc.MarkSent(context.Background(), created.ID)
	require.NoError(t, err)

	assert.Equal(t, request.StatusSent, sent.Status)
	require.NotNil(t, sent.SentAt)
	require.NotNil(t, sent.ResponseDue)
	assert.Equal(t, sent.SentAt.Add(30*24*time.Hour), *sent.ResponseDue)

	// Re-sending is an illegal transition; stored state is unchanged.
	_, err = f.svc.MarkSent(context.Background(), created.ID)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeStateTransition))

	_, err = f.svc.MarkSent(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}

func TestService_ProcessResponse(t *testing.T) {
	f := newFixture(t)
	params := gdprrequest.CreateParams{UserID: uuid.New(), CreditorID: uuid.New()}
	created, err := f.svc.CreateRequest(context.Background(), params)
	require.NoError(t, err)
	_, err = f.svc.MarkSent(context.Background(), created.ID)
	require.NoError(t, err)

	found, err := f.svc.ProcessResponse(context.Background(), gdprrequest.ResponseParams{
		RequestID:    created.ID,
		DocumentText: "Your personal data was shared with third parties without consent from you.",
		DocumentType: detection.DocumentUnknown,
	})
	require.NoError(t, err)
	require.NotEmpty(t, found)

	// Detector output is persisted and linked back to the request.
	stored := f.violations.All()
	require.Len(t, stored, len(found))
	for _, v := range stored {
		require.NotNil(t, v.RequestID)
		assert.Equal(t, created.ID, *v.RequestID)
		assert.Equal(t, created.CreditorID, v.CreditorID)
	}

	updated, err := f.requests.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, request.StatusResponded, updated.Status)
	require.NotNil(t, updated.RespondedAt)
}

func TestService_ProcessResponseCleanDocument(t *testing.T) {
	f := newFixture(t)
	params := gdprrequest.CreateParams{UserID: uuid.New(), CreditorID: uuid.New()}
	created, err := f.svc.CreateRequest(context.Background(), params)
	require.NoError(t, err)
	_, err = f.svc.MarkSent(context.Background(), created.ID)
	require.NoError(t, err)

	found, err := f.svc.ProcessResponse(context.Background(), gdprrequest.ResponseParams{
		RequestID:    created.ID,
		DocumentText: "Betalingsbekreftelse for faktura 1234.",
		DocumentType: detection.DocumentUnknown,
	})
	require.NoError(t, err)

	// A clean document is a legitimate empty result, not an error.
	assert.Empty(t, found)
	assert.Empty(t, f.violations.All())

	updated, err := f.requests.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, request.StatusResponded, updated.Status)
}

func TestService_LateResponseAfterEscalation(t *testing.T) {
	f := newFixture(t)
	params := gdprrequest.CreateParams{UserID: uuid.New(), CreditorID: uuid.New()}
	created, err := f.svc.CreateRequest(context.Background(), params)
	require.NoError(t, err)
	_, err = f.svc.MarkSent(context.Background(), created.ID)
	require.NoError(t, err)

	// The escalation track moved the request on while waiting.
	stored, err := f.requests.Get(context.Background(), created.ID)
	require.NoError(t, err)
	require.NoError(t, stored.MarkEscalated(f.now))
	require.NoError(t, f.requests.Update(context.Background(), stored))

	_, err = f.svc.ProcessResponse(context.Background(), gdprrequest.ResponseParams{
		RequestID:    created.ID,
		DocumentText: "Vedlagt er svar på deres henvendelse.",
	})
	require.NoError(t, err)

	updated, err := f.requests.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, request.StatusResponded, updated.Status)
}

func TestService_ProcessResponseValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ProcessResponse(context.Background(), gdprrequest.ResponseParams{RequestID: uuid.New()})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	_, err = f.svc.ProcessResponse(context.Background(), gdprrequest.ResponseParams{
		RequestID:    uuid.New(),
		DocumentText: "anything",
	})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}

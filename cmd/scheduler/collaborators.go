package main

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/damocles-platform/gdpr-engine/internal/domain/request"
	"github.com/damocles-platform/gdpr-engine/internal/domain/values"
	"github.com/damocles-platform/gdpr-engine/internal/service/escalation"
)

// The outbound mail, regulator and court integrations run as separate
// services. This binary logs the intents it would hand them; the wire
// adapters plug in behind the same interfaces.

type logOnlyNotifier struct {
	logger *slog.Logger
}

func newLogOnlyNotifier(logger *slog.Logger) *logOnlyNotifier {
	return &logOnlyNotifier{logger: logger}
}

func (n *logOnlyNotifier) SendReminder(ctx context.Context, req *request.Request) error {
	n.logger.InfoContext(ctx, "reminder queued",
		"request_id", req.ID, "reference_id", req.ReferenceID)
	return nil
}

func (n *logOnlyNotifier) SendFormalNotice(ctx context.Context, req *request.Request) error {
	n.logger.InfoContext(ctx, "formal notice queued",
		"request_id", req.ID, "reference_id", req.ReferenceID)
	return nil
}

func (n *logOnlyNotifier) SendMassNotification(ctx context.Context, creditorID uuid.UUID, requestIDs []uuid.UUID) error {
	n.logger.InfoContext(ctx, "mass notification queued",
		"creditor_id", creditorID, "requests", len(requestIDs))
	return nil
}

type logOnlyCaseFiler struct {
	logger *slog.Logger
}

func newLogOnlyCaseFiler(logger *slog.Logger) *logOnlyCaseFiler {
	return &logOnlyCaseFiler{logger: logger}
}

func (f *logOnlyCaseFiler) FileRegulatorComplaint(ctx context.Context, payload escalation.ComplaintPayload) error {
	f.logger.InfoContext(ctx, "regulator complaint prepared",
		"request_id", payload.RequestID,
		"creditor_id", payload.CreditorID,
		"days_overdue", payload.DaysOverdue,
		"legal_basis", payload.LegalBasis)
	return nil
}

func (f *logOnlyCaseFiler) OpenLegalCase(ctx context.Context, req *request.Request, claim values.Money) error {
	f.logger.InfoContext(ctx, "legal case prepared",
		"request_id", req.ID,
		"claim", claim.String())
	return nil
}

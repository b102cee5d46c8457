package escalation

import (
	"context"

	"github.com/google/uuid"

	"github.com/damocles-platform/gdpr-engine/internal/domain/request"
	"github.com/damocles-platform/gdpr-engine/internal/domain/values"
	"github.com/damocles-platform/gdpr-engine/internal/domain/violation"
)

// RequestRepository is the scheduler's view of request storage.
type RequestRepository interface {
	// GetUnresponded returns all SENT or ESCALATED requests without a
	// recorded response.
	GetUnresponded(ctx context.Context) ([]*request.Request, error)
	Update(ctx context.Context, req *request.Request) error
}

// ViolationRepository is the scheduler's view of violation storage: it
// records deadline breaches and reads the full per-creditor record for the
// mass-enforcement gate.
type ViolationRepository interface {
	Create(ctx context.Context, v *violation.Violation) error
	GetForCreditor(ctx context.Context, creditorID uuid.UUID) ([]*violation.Violation, error)
}

// NotificationSender delivers escalation messages. Fire-and-forget from
// the scheduler's perspective: delivery retries are the sender's problem,
// but an error return here rolls the checkpoint back.
type NotificationSender interface {
	SendReminder(ctx context.Context, req *request.Request) error
	SendFormalNotice(ctx context.Context, req *request.Request) error
	SendMassNotification(ctx context.Context, creditorID uuid.UUID, requestIDs []uuid.UUID) error
}

// ComplaintPayload is the structured regulator complaint built at the
// day-35 checkpoint.
type ComplaintPayload struct {
	RequestID     uuid.UUID `json:"request_id"`
	CreditorID    uuid.UUID `json:"creditor_id"`
	ReferenceID   string    `json:"reference_id"`
	DaysOverdue   int       `json:"days_overdue"`
	LegalBasis    string    `json:"legal_basis"`
	ViolationRefs []string  `json:"violation_refs"`
}

// CaseFiler opens regulator and court proceedings.
type CaseFiler interface {
	FileRegulatorComplaint(ctx context.Context, payload ComplaintPayload) error
	OpenLegalCase(ctx context.Context, req *request.Request, claim values.Money) error
}

// CheckpointStore tracks which checkpoints have fired per request.
// MarkFired must be atomic per (request, checkpoint) key: the first caller
// gets true, every later caller false. Unmark rolls back a mark whose side
// effect failed, so the checkpoint retries on the next tick.
type CheckpointStore interface {
	MarkFired(ctx context.Context, requestID uuid.UUID, checkpoint string) (bool, error)
	Unmark(ctx context.Context, requestID uuid.UUID, checkpoint string) error
	Fired(ctx context.Context, requestID uuid.UUID, checkpoint string) (bool, error)
}

package request

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/damocles-platform/gdpr-engine/internal/domain/errors"
)

// Status tracks a data-access request through its lifecycle. Transitions
// are monotonic: PENDING -> SENT -> {RESPONDED | ESCALATED | FAILED}, with
// ESCALATED -> RESPONDED allowed for late answers. No regressions.
type Status int

const (
	StatusPending Status = iota
	StatusSent
	StatusResponded
	StatusEscalated
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "PENDING"
	case StatusSent:
		return "SENT"
	case StatusResponded:
		return "RESPONDED"
	case StatusEscalated:
		return "ESCALATED"
	case StatusFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

var allowedTransitions = map[Status][]Status{
	StatusPending:   {StatusSent, StatusFailed},
	StatusSent:      {StatusResponded, StatusEscalated, StatusFailed},
	StatusEscalated: {StatusResponded},
}

// CanTransition reports whether moving from s to next is legal.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ResponseDeadline is the statutory window of GDPR Article 12(3).
const ResponseDeadline = 30 * 24 * time.Hour

// Request is one GDPR Article 15 data-access request to a creditor.
type Request struct {
	ID          uuid.UUID  `json:"id"`
	UserID      uuid.UUID  `json:"user_id"`
	CreditorID  uuid.UUID  `json:"creditor_id"`
	ReferenceID string     `json:"reference_id"`
	Status      Status     `json:"status"`
	SentAt      *time.Time `json:"sent_at,omitempty"`
	ResponseDue *time.Time `json:"response_due,omitempty"`
	RespondedAt *time.Time `json:"responded_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// New creates a request in PENDING state with a generated reference ID.
func New(userID, creditorID uuid.UUID, now time.Time) *Request {
	id := uuid.New()
	return &Request{
		ID:          id,
		UserID:      userID,
		CreditorID:  creditorID,
		ReferenceID: referenceID(id, now),
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func referenceID(id uuid.UUID, now time.Time) string {
	return fmt.Sprintf("GDPR-%s-%s", now.UTC().Format("200601021504"), id.String()[:8])
}

func (r *Request) transition(next Status, now time.Time) error {
	if !r.Status.CanTransition(next) {
		return errors.NewStateTransitionError(r.Status.String(), next.String())
	}
	r.Status = next
	r.UpdatedAt = now
	return nil
}

// MarkSent records the send, sets SentAt exactly once and stamps the
// statutory 30-day response deadline.
func (r *Request) MarkSent(now time.Time) error {
	if err := r.transition(StatusSent, now); err != nil {
		return err
	}
	sent := now
	due := now.Add(ResponseDeadline)
	r.SentAt = &sent
	r.ResponseDue = &due
	return nil
}

// MarkResponded records the creditor's answer. A late response after
// escalation still flips the status but never erases created evidence.
func (r *Request) MarkResponded(now time.Time) error {
	if err := r.transition(StatusResponded, now); err != nil {
		return err
	}
	responded := now
	r.RespondedAt = &responded
	return nil
}

// MarkEscalated moves the request into the escalation track.
func (r *Request) MarkEscalated(now time.Time) error {
	return r.transition(StatusEscalated, now)
}

// MarkFailed records a delivery failure.
func (r *Request) MarkFailed(now time.Time) error {
	return r.transition(StatusFailed, now)
}

// DaysElapsed is the number of whole days since the request was sent.
// Returns 0 for requests that were never sent.
func (r *Request) DaysElapsed(now time.Time) int {
	if r.SentAt == nil {
		return 0
	}
	elapsed := now.Sub(*r.SentAt)
	if elapsed < 0 {
		return 0
	}
	return int(elapsed.Hours() / 24)
}

// Overdue reports whether the statutory deadline has passed unanswered.
func (r *Request) Overdue(now time.Time) bool {
	return r.Status == StatusSent && r.ResponseDue != nil && now.After(*r.ResponseDue)
}

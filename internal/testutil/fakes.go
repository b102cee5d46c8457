// Package testutil provides in-memory collaborator fakes. They implement
// the same interfaces as the production infrastructure with per-key
// atomicity, so idempotency semantics can be tested without Redis or
// Postgres.
package testutil

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/damocles-platform/gdpr-engine/internal/domain/errors"
	"github.com/damocles-platform/gdpr-engine/internal/domain/request"
	"github.com/damocles-platform/gdpr-engine/internal/domain/values"
	"github.com/damocles-platform/gdpr-engine/internal/domain/violation"
	"github.com/damocles-platform/gdpr-engine/internal/service/escalation"
)

// RequestStore is an in-memory request repository.
type RequestStore struct {
	mu       sync.Mutex
	requests map[uuid.UUID]*request.Request

	// FailUpdate forces Update to fail, for failure-isolation tests.
	FailUpdate bool
}

func NewRequestStore() *RequestStore {
	return &RequestStore{requests: make(map[uuid.UUID]*request.Request)}
}

func (s *RequestStore) Create(ctx context.Context, req *request.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.requests[req.ID]; exists {
		return errors.NewConflictError("request already exists")
	}
	cp := *req
	s.requests[req.ID] = &cp
	return nil
}

func (s *RequestStore) Get(ctx context.Context, id uuid.UUID) (*request.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return nil, nil
	}
	cp := *req
	return &cp, nil
}

func (s *RequestStore) Update(ctx context.Context, req *request.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailUpdate {
		return errors.NewUpstreamError("request store", "forced failure")
	}
	if _, ok := s.requests[req.ID]; !ok {
		return errors.NewNotFoundError("request")
	}
	cp := *req
	s.requests[req.ID] = &cp
	return nil
}

func (s *RequestStore) GetUnresponded(ctx context.Context) ([]*request.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*request.Request
	for _, req := range s.requests {
		if (req.Status == request.StatusSent || req.Status == request.StatusEscalated) && req.RespondedAt == nil {
			cp := *req
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *RequestStore) GetLastForCreditorPair(ctx context.Context, userID, creditorID uuid.UUID) (*request.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var last *request.Request
	for _, req := range s.requests {
		if req.UserID != userID || req.CreditorID != creditorID {
			continue
		}
		if last == nil || req.CreatedAt.After(last.CreatedAt) {
			last = req
		}
	}
	if last == nil {
		return nil, nil
	}
	cp := *last
	return &cp, nil
}

// ViolationStore is an in-memory violation repository.
type ViolationStore struct {
	mu         sync.Mutex
	violations []*violation.Violation

	// FailCreate forces Create to fail once, then clears itself.
	FailCreate bool
}

func NewViolationStore() *ViolationStore {
	return &ViolationStore{}
}

func (s *ViolationStore) Create(ctx context.Context, v *violation.Violation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailCreate {
		s.FailCreate = false
		return errors.NewUpstreamError("violation store", "forced failure")
	}
	cp := *v
	s.violations = append(s.violations, &cp)
	return nil
}

func (s *ViolationStore) GetForCreditor(ctx context.Context, creditorID uuid.UUID) ([]*violation.Violation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*violation.Violation
	for _, v := range s.violations {
		if v.CreditorID == creditorID {
			cp := *v
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *ViolationStore) GetStats(ctx context.Context, creditorID uuid.UUID) (*violation.Stats, error) {
	all, err := s.GetForCreditor(ctx, creditorID)
	if err != nil {
		return nil, err
	}
	stats := &violation.Stats{
		Total:      len(all),
		BySeverity: make(map[violation.Severity]int),
	}
	for _, v := range all {
		stats.BySeverity[v.Severity]++
	}
	return stats, nil
}

// All returns every stored violation.
func (s *ViolationStore) All() []*violation.Violation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*violation.Violation, len(s.violations))
	copy(out, s.violations)
	return out
}

// Seed inserts violations directly.
func (s *ViolationStore) Seed(vs ...*violation.Violation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.violations = append(s.violations, vs...)
}

// Notifier records every notification instead of sending it.
type Notifier struct {
	mu                sync.Mutex
	Reminders         []uuid.UUID
	FormalNotices     []uuid.UUID
	MassNotifications []uuid.UUID

	// FailReminders makes SendReminder fail while set.
	FailReminders bool
}

func NewNotifier() *Notifier {
	return &Notifier{}
}

func (n *Notifier) SendReminder(ctx context.Context, req *request.Request) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.FailReminders {
		return errors.NewUpstreamError("mailer", "forced failure")
	}
	n.Reminders = append(n.Reminders, req.ID)
	return nil
}

func (n *Notifier) SendFormalNotice(ctx context.Context, req *request.Request) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.FormalNotices = append(n.FormalNotices, req.ID)
	return nil
}

func (n *Notifier) SendMassNotification(ctx context.Context, creditorID uuid.UUID, requestIDs []uuid.UUID) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.MassNotifications = append(n.MassNotifications, creditorID)
	return nil
}

// ReminderCount returns how many reminders were recorded.
func (n *Notifier) ReminderCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.Reminders)
}

// CaseFiler records complaints and legal cases.
type CaseFiler struct {
	mu         sync.Mutex
	Complaints []escalation.ComplaintPayload
	LegalCases map[uuid.UUID]values.Money
}

func NewCaseFiler() *CaseFiler {
	return &CaseFiler{LegalCases: make(map[uuid.UUID]values.Money)}
}

func (f *CaseFiler) FileRegulatorComplaint(ctx context.Context, payload escalation.ComplaintPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Complaints = append(f.Complaints, payload)
	return nil
}

func (f *CaseFiler) OpenLegalCase(ctx context.Context, req *request.Request, claim values.Money) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LegalCases[req.ID] = claim
	return nil
}

// CheckpointStore is an in-memory checkpoint tracker with the same
// first-caller-wins semantics as the Redis implementation.
type CheckpointStore struct {
	mu    sync.Mutex
	fired map[string]bool
}

func NewCheckpointStore() *CheckpointStore {
	return &CheckpointStore{fired: make(map[string]bool)}
}

func key(requestID uuid.UUID, checkpoint string) string {
	return requestID.String() + ":" + checkpoint
}

func (s *CheckpointStore) MarkFired(ctx context.Context, requestID uuid.UUID, checkpoint string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(requestID, checkpoint)
	if s.fired[k] {
		return false, nil
	}
	s.fired[k] = true
	return true, nil
}

func (s *CheckpointStore) Unmark(ctx context.Context, requestID uuid.UUID, checkpoint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.fired, key(requestID, checkpoint))
	return nil
}

func (s *CheckpointStore) Fired(ctx context.Context, requestID uuid.UUID, checkpoint string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fired[key(requestID, checkpoint)], nil
}

// Package gdprrequest orchestrates the lifecycle of data-access requests:
// creation under the per-creditor cooldown, dispatch, and response intake
// feeding the violation detector.
package gdprrequest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/damocles-platform/gdpr-engine/internal/domain/errors"
	"github.com/damocles-platform/gdpr-engine/internal/domain/request"
	"github.com/damocles-platform/gdpr-engine/internal/domain/violation"
	"github.com/damocles-platform/gdpr-engine/internal/infrastructure/config"
	"github.com/damocles-platform/gdpr-engine/internal/service/detection"
)

// RequestRepository is the service's view of request storage.
type RequestRepository interface {
	Create(ctx context.Context, req *request.Request) error
	Get(ctx context.Context, id uuid.UUID) (*request.Request, error)
	Update(ctx context.Context, req *request.Request) error
	GetLastForCreditorPair(ctx context.Context, userID, creditorID uuid.UUID) (*request.Request, error)
}

// ViolationRepository persists detector output.
type ViolationRepository interface {
	Create(ctx context.Context, v *violation.Violation) error
}

// CreateParams are the externally supplied request-creation inputs.
type CreateParams struct {
	UserID     uuid.UUID `json:"user_id" validate:"required"`
	CreditorID uuid.UUID `json:"creditor_id" validate:"required"`
}

// ResponseParams carry a creditor's response document for intake.
type ResponseParams struct {
	RequestID    uuid.UUID              `json:"request_id" validate:"required"`
	DocumentText string                 `json:"document_text" validate:"required"`
	DocumentType detection.DocumentType `json:"document_type"`
}

// Service drives request state transitions. All statutory timing (the
// 30-day deadline, the resend cooldown) lives here, not in callers.
type Service struct {
	cooldown   time.Duration
	requests   RequestRepository
	violations ViolationRepository
	detector   *detection.Detector
	validate   *validator.Validate
	logger     *slog.Logger
	now        func() time.Time
}

func NewService(
	cfg *config.Config,
	requests RequestRepository,
	violations ViolationRepository,
	detector *detection.Detector,
	logger *slog.Logger,
) *Service {
	return &Service{
		cooldown:   cfg.Cooldown.MinInterval,
		requests:   requests,
		violations: violations,
		detector:   detector,
		validate:   validator.New(),
		logger:     logger,
		now:        time.Now,
	}
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CreateRequest creates a PENDING request, enforcing the per-(user,
// creditor) cooldown. A blocked creation returns a structured reason with
// the remaining wait, never a bare error string.
func (s *Service) CreateRequest(ctx context.Context, params CreateParams) (*request.Request, error) {
	if err := s.validate.Struct(params); err != nil {
		return nil, errors.NewValidationError("INVALID_REQUEST_PARAMS", "user and creditor identifiers are required").WithCause(err)
	}

	remaining, err := s.CooldownRemaining(ctx, params.UserID, params.CreditorID)
	if err != nil {
		return nil, err
	}
	if remaining > 0 {
		return nil, errors.NewConflictError(
			fmt.Sprintf("a request to this creditor was sent recently, next request possible in %s", remaining.Round(time.Minute)),
		).WithDetails(map[string]interface{}{
			"retry_after_seconds": int64(remaining.Seconds()),
			"creditor_id":         params.CreditorID.String(),
		})
	}

	req := request.New(params.UserID, params.CreditorID, s.now().UTC())
	if err := s.requests.Create(ctx, req); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "gdpr request created",
		"request_id", req.ID,
		"reference_id", req.ReferenceID,
		"creditor_id", params.CreditorID)
	return req, nil
}

// CooldownRemaining reports how long until the user may send another
// request to the same creditor. Zero means no restriction.
func (s *Service) CooldownRemaining(ctx context.Context, userID, creditorID uuid.UUID) (time.Duration, error) {
	last, err := s.requests.GetLastForCreditorPair(ctx, userID, creditorID)
	if err != nil {
		return 0, errors.NewUpstreamError("request repository", err.Error())
	}
	if last == nil {
		return 0, nil
	}

	elapsed := s.now().Sub(last.CreatedAt)
	if elapsed >= s.cooldown {
		return 0, nil
	}
	return s.cooldown - elapsed, nil
}

// MarkSent transitions PENDING -> SENT, stamping the statutory deadline.
// Re-sending an already sent request is an illegal transition.
func (s *Service) MarkSent(ctx context.Context, requestID uuid.UUID) (*request.Request, error) {
	req, err := s.requests.Get(ctx, requestID)
	if err != nil {
		return nil, errors.NewUpstreamError("request repository", err.Error())
	}
	if req == nil {
		return nil, errors.NewNotFoundError("request")
	}

	if err := req.MarkSent(s.now().UTC()); err != nil {
		return nil, err
	}
	if err := s.requests.Update(ctx, req); err != nil {
		return nil, errors.NewUpstreamError("request repository", err.Error())
	}

	s.logger.InfoContext(ctx, "gdpr request sent",
		"request_id", req.ID,
		"response_due", req.ResponseDue)
	return req, nil
}

// ProcessResponse runs the detector over a creditor's response document,
// persists what it finds, and marks the request RESPONDED. A late response
// after escalation still flips the status; violations created by the
// escalation timeline are never removed.
func (s *Service) ProcessResponse(ctx context.Context, params ResponseParams) ([]*violation.Violation, error) {
	if err := s.validate.Struct(params); err != nil {
		return nil, errors.NewValidationError("INVALID_RESPONSE_PARAMS", "request id and document text are required").WithCause(err)
	}

	req, err := s.requests.Get(ctx, params.RequestID)
	if err != nil {
		return nil, errors.NewUpstreamError("request repository", err.Error())
	}
	if req == nil {
		return nil, errors.NewNotFoundError("request")
	}

	docType := params.DocumentType
	if docType == "" {
		docType = detection.DocumentGDPRResponse
	}

	found := s.detector.Analyze(ctx, req.CreditorID, params.DocumentText, docType)
	for _, v := range found {
		v.RequestID = &req.ID
		if err := s.violations.Create(ctx, v); err != nil {
			return nil, errors.NewUpstreamError("violation repository", err.Error())
		}
	}

	if err := req.MarkResponded(s.now().UTC()); err != nil {
		return nil, err
	}
	if err := s.requests.Update(ctx, req); err != nil {
		return nil, errors.NewUpstreamError("request repository", err.Error())
	}

	s.logger.InfoContext(ctx, "creditor response processed",
		"request_id", req.ID,
		"violations", len(found),
		"document_type", string(docType))
	return found, nil
}

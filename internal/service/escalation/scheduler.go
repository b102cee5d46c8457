package escalation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/damocles-platform/gdpr-engine/internal/domain/errors"
	"github.com/damocles-platform/gdpr-engine/internal/domain/request"
	"github.com/damocles-platform/gdpr-engine/internal/domain/values"
	"github.com/damocles-platform/gdpr-engine/internal/domain/violation"
	"github.com/damocles-platform/gdpr-engine/internal/infrastructure/config"
	"github.com/damocles-platform/gdpr-engine/internal/metrics"
)

// Checkpoint identifiers. Transitions are one-directional: once a later
// checkpoint has fired for a request, nothing reverts, even if a response
// arrives afterwards.
const (
	CheckpointReminder  = "reminder"
	CheckpointDeadline  = "deadline_violation"
	CheckpointRegulator = "regulator"
	CheckpointLegal     = "legal"
	CheckpointMass      = "mass_enforcement"
)

// TickStats summarizes one scheduler pass. Per-request failures are
// isolated and counted here rather than aborting the tick.
type TickStats struct {
	Processed        int
	CheckpointsFired int
	Errors           int
	Skipped          bool
}

// Scheduler walks unresponded requests through the escalation timeline on
// a fixed tick. One instance runs one cooperative loop; overlapping ticks
// are skipped, never run concurrently.
type Scheduler struct {
	cfg     config.SchedulerConfig
	trigger *MassTrigger

	requests    RequestRepository
	violations  ViolationRepository
	notifier    NotificationSender
	filer       CaseFiler
	checkpoints CheckpointStore

	logger  *slog.Logger
	metrics *metrics.Registry
	limiter *rate.Limiter

	tickMu  sync.Mutex
	pauseMu sync.Mutex
	paused  bool
	now     func() time.Time
}

// Option customizes scheduler construction.
type Option func(*Scheduler)

// WithClock overrides the scheduler's time source.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

func NewScheduler(
	cfg config.SchedulerConfig,
	massCfg config.MassTriggerConfig,
	requests RequestRepository,
	violations ViolationRepository,
	notifier NotificationSender,
	filer CaseFiler,
	checkpoints CheckpointStore,
	logger *slog.Logger,
	registry *metrics.Registry,
	opts ...Option,
) *Scheduler {
	s := &Scheduler{
		cfg:         cfg,
		trigger:     NewMassTrigger(massCfg),
		requests:    requests,
		violations:  violations,
		notifier:    notifier,
		filer:       filer,
		checkpoints: checkpoints,
		logger:      logger,
		metrics:     registry,
		limiter:     rate.NewLimiter(rate.Limit(cfg.NotificationsPerSecond), 1),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run ticks until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	s.logger.InfoContext(ctx, "escalation scheduler started",
		"tick_interval", s.cfg.TickInterval.String())

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "escalation scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			stats := s.Tick(ctx)
			s.logger.InfoContext(ctx, "escalation tick complete",
				"processed", stats.Processed,
				"fired", stats.CheckpointsFired,
				"errors", stats.Errors,
				"skipped", stats.Skipped)
		}
	}
}

// Pause blocks new ticks. It waits for any in-flight tick to complete, so
// mid-flight work is either done or rolled back before Pause returns.
func (s *Scheduler) Pause() {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()
	s.pauseMu.Lock()
	s.paused = true
	s.pauseMu.Unlock()
}

// Resume re-enables ticking.
func (s *Scheduler) Resume() {
	s.pauseMu.Lock()
	s.paused = false
	s.pauseMu.Unlock()
}

// Tick runs one escalation pass. If a previous tick is still running the
// pass is skipped; two ticks never interleave writes to the same request.
func (s *Scheduler) Tick(ctx context.Context) TickStats {
	if !s.tickMu.TryLock() {
		s.logger.WarnContext(ctx, "previous escalation tick still running, skipping")
		return TickStats{Skipped: true}
	}
	defer s.tickMu.Unlock()

	s.pauseMu.Lock()
	paused := s.paused
	s.pauseMu.Unlock()
	if paused {
		return TickStats{Skipped: true}
	}

	started := s.now()
	stats := TickStats{}

	pending, err := s.requests.GetUnresponded(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to fetch unresponded requests", "error", err)
		stats.Errors++
		if s.metrics != nil {
			s.metrics.TickErrors.Add(ctx, 1)
		}
		return stats
	}

	for _, req := range pending {
		reqCtx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
		fired, err := s.processRequest(reqCtx, req)
		cancel()

		stats.Processed++
		stats.CheckpointsFired += fired
		if err != nil {
			stats.Errors++
			s.logger.ErrorContext(ctx, "request escalation failed",
				"request_id", req.ID,
				"reference_id", req.ReferenceID,
				"error", err)
			if s.metrics != nil {
				s.metrics.TickErrors.Add(ctx, 1)
			}
		}
	}

	if s.metrics != nil {
		s.metrics.RequestsProcessed.Add(ctx, int64(stats.Processed))
		s.metrics.TickDuration.Record(ctx, float64(s.now().Sub(started).Milliseconds()))
	}
	return stats
}

// processRequest applies every checkpoint the request's age has reached.
// A tick delayed past a checkpoint still fires it exactly once.
func (s *Scheduler) processRequest(ctx context.Context, req *request.Request) (int, error) {
	days := req.DaysElapsed(s.now())
	fired := 0

	if days >= s.cfg.ReminderDay && days < s.cfg.RegulatorDay {
		ok, err := s.fireOnce(ctx, req, CheckpointReminder, func(ctx context.Context) error {
			if err := s.limiter.Wait(ctx); err != nil {
				return err
			}
			return s.notifier.SendReminder(ctx, req)
		})
		if err != nil {
			return fired, err
		}
		if ok {
			fired++
		}
	}

	if days >= s.cfg.DeadlineDay {
		ok, err := s.fireOnce(ctx, req, CheckpointDeadline, func(ctx context.Context) error {
			return s.recordDeadlineViolation(ctx, req, days)
		})
		if err != nil {
			return fired, err
		}
		if ok {
			fired++
		}
	}

	if days >= s.cfg.RegulatorDay {
		ok, err := s.fireOnce(ctx, req, CheckpointRegulator, func(ctx context.Context) error {
			return s.notifyRegulator(ctx, req, days)
		})
		if err != nil {
			return fired, err
		}
		if ok {
			fired++
		}
	}

	if days >= s.cfg.LegalDay {
		ok, err := s.fireOnce(ctx, req, CheckpointLegal, func(ctx context.Context) error {
			claim := values.NOKFromFloat(s.cfg.LegalClaimAmount)
			return s.filer.OpenLegalCase(ctx, req, claim)
		})
		if err != nil {
			return fired, err
		}
		if ok {
			fired++
		}
	}

	if days >= s.cfg.MassDay {
		ok, err := s.maybeMassEnforce(ctx, req)
		if err != nil {
			return fired, err
		}
		if ok {
			fired++
		}
	}

	return fired, nil
}

// fireOnce marks the checkpoint before running the side effect, so a
// concurrent scheduler instance cannot double-fire. If the side effect
// fails the mark is rolled back and the checkpoint retries next tick.
func (s *Scheduler) fireOnce(ctx context.Context, req *request.Request, checkpoint string, action func(context.Context) error) (bool, error) {
	fresh, err := s.checkpoints.MarkFired(ctx, req.ID, checkpoint)
	if err != nil {
		return false, errors.NewUpstreamError("checkpoint store", err.Error())
	}
	if !fresh {
		return false, nil
	}

	if err := action(ctx); err != nil {
		if unmarkErr := s.checkpoints.Unmark(ctx, req.ID, checkpoint); unmarkErr != nil {
			s.logger.ErrorContext(ctx, "checkpoint rollback failed, manual review needed",
				"request_id", req.ID,
				"checkpoint", checkpoint,
				"error", unmarkErr)
		}
		return false, err
	}

	s.logger.InfoContext(ctx, "escalation checkpoint fired",
		"request_id", req.ID,
		"reference_id", req.ReferenceID,
		"checkpoint", checkpoint)
	if s.metrics != nil {
		s.metrics.RecordCheckpoint(ctx, checkpoint)
	}
	return true, nil
}

// recordDeadlineViolation creates the Article 12(3) breach violation for a
// request past the statutory 30-day window. The breach is a matter of
// record, not inference, so confidence is 1.
func (s *Scheduler) recordDeadlineViolation(ctx context.Context, req *request.Request, days int) error {
	v, err := violation.New(
		req.CreditorID,
		violation.TypeDelayedResponse,
		violation.SeverityHigh,
		1.0,
		"no response "+req.ReferenceID,
		"GDPR Article 12(3)",
		values.NOKFromFloat(s.cfg.DelayedResponseDamage),
	)
	if err != nil {
		return err
	}
	v.RequestID = &req.ID
	v.Evidence = fmt.Sprintf("%s: no response after %d days, statutory limit is %d",
		req.ReferenceID, days, s.cfg.DeadlineDay)

	if err := s.violations.Create(ctx, v); err != nil {
		return errors.NewUpstreamError("violation repository", err.Error())
	}
	return nil
}

// notifyRegulator files the structured complaint, sends the formal notice
// and moves the request into the escalation track.
func (s *Scheduler) notifyRegulator(ctx context.Context, req *request.Request, days int) error {
	refs := []string{"GDPR Article 12(3)", "GDPR Article 15"}
	payload := ComplaintPayload{
		RequestID:     req.ID,
		CreditorID:    req.CreditorID,
		ReferenceID:   req.ReferenceID,
		DaysOverdue:   days - s.cfg.DeadlineDay,
		LegalBasis:    "GDPR Article 77",
		ViolationRefs: refs,
	}
	if err := s.filer.FileRegulatorComplaint(ctx, payload); err != nil {
		return err
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	if err := s.notifier.SendFormalNotice(ctx, req); err != nil {
		return err
	}

	if req.Status == request.StatusSent {
		if err := req.MarkEscalated(s.now()); err != nil {
			return err
		}
		if err := s.requests.Update(ctx, req); err != nil {
			return errors.NewUpstreamError("request repository", err.Error())
		}
	}
	return nil
}

// maybeMassEnforce evaluates the aggregate gate before consuming the
// checkpoint, so a creditor that later crosses a threshold still triggers.
func (s *Scheduler) maybeMassEnforce(ctx context.Context, req *request.Request) (bool, error) {
	record, err := s.violations.GetForCreditor(ctx, req.CreditorID)
	if err != nil {
		return false, errors.NewUpstreamError("violation repository", err.Error())
	}

	triggered, reason := s.trigger.Evaluate(record, s.now())
	if !triggered {
		return false, nil
	}

	return s.fireOnce(ctx, req, CheckpointMass, func(ctx context.Context) error {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
		s.logger.WarnContext(ctx, "mass enforcement triggered",
			"creditor_id", req.CreditorID,
			"reason", reason)
		if s.metrics != nil {
			s.metrics.MassTriggersFired.Add(ctx, 1)
		}
		return s.notifier.SendMassNotification(ctx, req.CreditorID, []uuid.UUID{req.ID})
	})
}

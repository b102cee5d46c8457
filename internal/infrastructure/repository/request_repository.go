package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/damocles-platform/gdpr-engine/internal/domain/request"
)

// RequestRepository persists GDPR requests in PostgreSQL.
type RequestRepository struct {
	pool *pgxpool.Pool
}

func NewRequestRepository(pool *pgxpool.Pool) *RequestRepository {
	return &RequestRepository{pool: pool}
}

const requestColumns = `id, user_id, creditor_id, reference_id, status, sent_at, response_due, responded_at, created_at, updated_at`

// Create inserts a new request.
func (r *RequestRepository) Create(ctx context.Context, req *request.Request) error {
	query := `
		INSERT INTO gdpr_requests (` + requestColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.pool.Exec(ctx, query,
		req.ID, req.UserID, req.CreditorID, req.ReferenceID, req.Status.String(),
		req.SentAt, req.ResponseDue, req.RespondedAt, req.CreatedAt, req.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting request: %w", err)
	}
	return nil
}

// Get fetches one request by id. Absence returns (nil, nil).
func (r *RequestRepository) Get(ctx context.Context, id uuid.UUID) (*request.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM gdpr_requests WHERE id = $1`
	req, err := scanRequest(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching request: %w", err)
	}
	return req, nil
}

// Update writes all mutable fields.
func (r *RequestRepository) Update(ctx context.Context, req *request.Request) error {
	query := `
		UPDATE gdpr_requests
		SET status = $2, sent_at = $3, response_due = $4, responded_at = $5, updated_at = $6
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query,
		req.ID, req.Status.String(), req.SentAt, req.ResponseDue, req.RespondedAt, req.UpdatedAt)
	if err != nil {
		return fmt.Errorf("updating request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("request %s not found", req.ID)
	}
	return nil
}

// GetUnresponded returns SENT or ESCALATED requests with no recorded
// response, the scheduler's working set.
func (r *RequestRepository) GetUnresponded(ctx context.Context) ([]*request.Request, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM gdpr_requests
		WHERE status IN ('SENT', 'ESCALATED') AND responded_at IS NULL
		ORDER BY sent_at
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("fetching unresponded requests: %w", err)
	}
	defer rows.Close()

	var out []*request.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning request: %w", err)
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

// GetLastForCreditorPair returns the newest request between one user and
// one creditor, for cooldown enforcement. Absence returns (nil, nil).
func (r *RequestRepository) GetLastForCreditorPair(ctx context.Context, userID, creditorID uuid.UUID) (*request.Request, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM gdpr_requests
		WHERE user_id = $1 AND creditor_id = $2
		ORDER BY created_at DESC
		LIMIT 1
	`
	req, err := scanRequest(r.pool.QueryRow(ctx, query, userID, creditorID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching last request for pair: %w", err)
	}
	return req, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*request.Request, error) {
	var (
		req       request.Request
		statusStr string
		sentAt    *time.Time
		due       *time.Time
		responded *time.Time
	)
	err := row.Scan(&req.ID, &req.UserID, &req.CreditorID, &req.ReferenceID, &statusStr,
		&sentAt, &due, &responded, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return nil, err
	}
	req.Status = parseStatus(statusStr)
	req.SentAt = sentAt
	req.ResponseDue = due
	req.RespondedAt = responded
	return &req, nil
}

func parseStatus(s string) request.Status {
	switch s {
	case "SENT":
		return request.StatusSent
	case "RESPONDED":
		return request.StatusResponded
	case "ESCALATED":
		return request.StatusEscalated
	case "FAILED":
		return request.StatusFailed
	default:
		return request.StatusPending
	}
}

package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/damocles-platform/gdpr-engine/internal/domain/values"
	"github.com/damocles-platform/gdpr-engine/internal/domain/violation"
)

// ViolationRepository persists violations in PostgreSQL. Violations are
// append-only; there is no update or delete path.
type ViolationRepository struct {
	pool *pgxpool.Pool
}

func NewViolationRepository(pool *pgxpool.Pool) *ViolationRepository {
	return &ViolationRepository{pool: pool}
}

// Create inserts one violation.
func (r *ViolationRepository) Create(ctx context.Context, v *violation.Violation) error {
	query := `
		INSERT INTO violations (
			id, request_id, creditor_id, type, severity, confidence,
			evidence, legal_reference, estimated_damage, damage_currency, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.pool.Exec(ctx, query,
		v.ID, v.RequestID, v.CreditorID, v.Type.String(), v.Severity.String(), v.Confidence,
		v.Evidence, v.LegalReference,
		v.EstimatedDamage.Amount().StringFixed(2), v.EstimatedDamage.Currency(),
		v.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting violation: %w", err)
	}
	return nil
}

// GetForCreditor returns the creditor's full violation record.
func (r *ViolationRepository) GetForCreditor(ctx context.Context, creditorID uuid.UUID) ([]*violation.Violation, error) {
	query := `
		SELECT id, request_id, creditor_id, type, severity, confidence,
		       evidence, legal_reference, estimated_damage, damage_currency, created_at
		FROM violations
		WHERE creditor_id = $1
		ORDER BY created_at
	`
	rows, err := r.pool.Query(ctx, query, creditorID)
	if err != nil {
		return nil, fmt.Errorf("fetching violations: %w", err)
	}
	defer rows.Close()

	var out []*violation.Violation
	for rows.Next() {
		var (
			v           violation.Violation
			typeStr     string
			severityStr string
			amountStr   string
			currency    string
		)
		err := rows.Scan(&v.ID, &v.RequestID, &v.CreditorID, &typeStr, &severityStr, &v.Confidence,
			&v.Evidence, &v.LegalReference, &amountStr, &currency, &v.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning violation: %w", err)
		}
		v.Type = violation.Type(typeStr)
		severity, err := violation.ParseSeverity(severityStr)
		if err != nil {
			return nil, err
		}
		v.Severity = severity
		amount, err := decimal.NewFromString(amountStr)
		if err != nil {
			return nil, fmt.Errorf("parsing damage amount: %w", err)
		}
		damage, err := values.NewMoney(amount, currency)
		if err != nil {
			return nil, err
		}
		v.EstimatedDamage = damage
		out = append(out, &v)
	}
	return out, rows.Err()
}

// GetStats aggregates the creditor's record by severity.
func (r *ViolationRepository) GetStats(ctx context.Context, creditorID uuid.UUID) (*violation.Stats, error) {
	query := `
		SELECT severity, COUNT(*)
		FROM violations
		WHERE creditor_id = $1
		GROUP BY severity
	`
	rows, err := r.pool.Query(ctx, query, creditorID)
	if err != nil {
		return nil, fmt.Errorf("aggregating violations: %w", err)
	}
	defer rows.Close()

	stats := &violation.Stats{BySeverity: make(map[violation.Severity]int)}
	for rows.Next() {
		var severityStr string
		var count int
		if err := rows.Scan(&severityStr, &count); err != nil {
			return nil, fmt.Errorf("scanning violation stats: %w", err)
		}
		severity, err := violation.ParseSeverity(severityStr)
		if err != nil {
			return nil, err
		}
		stats.BySeverity[severity] = count
		stats.Total += count
	}
	return stats, rows.Err()
}

package history

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository handles audit_records PostgreSQL operations.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new history Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert persists a single audit record.
func (r *Repository) Insert(ctx context.Context, rec *AuditRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO audit_records
		   (id, audit_id, requester, subject, tier, analyzer, risk_score,
		    findings, tokens_used, cost_sol, fee_lamports, report_url, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		rec.ID, rec.AuditID, rec.Requester, rec.Subject, rec.Tier, rec.Analyzer,
		rec.RiskScore, rec.Findings, rec.TokensUsed, rec.CostSOL,
		rec.FeeLamports, rec.ReportURL, rec.CompletedAt)
	if err != nil {
		return fmt.Errorf("inserting audit record: %w", err)
	}
	return nil
}

// ListByRequester returns paginated records for one requester, newest first.
func (r *Repository) ListByRequester(ctx context.Context, requester string, params ListParams) ([]AuditRecord, int64, error) {
	return r.list(ctx, "requester", requester, params)
}

// ListBySubject returns paginated records for one audited subject across all
// requesters, newest first.
func (r *Repository) ListBySubject(ctx context.Context, subject string, params ListParams) ([]AuditRecord, int64, error) {
	return r.list(ctx, "subject", subject, params)
}

func (r *Repository) list(ctx context.Context, column, value string, params ListParams) ([]AuditRecord, int64, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 || params.PageSize > 100 {
		params.PageSize = 20
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM audit_records WHERE %s = $1", column)
	var totalCount int64
	if err := r.pool.QueryRow(ctx, countQuery, value).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("counting audit records: %w", err)
	}

	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(
		`SELECT id, audit_id, requester, subject, tier, analyzer, risk_score,
		        findings, tokens_used, cost_sol, fee_lamports, report_url,
		        completed_at, created_at
		 FROM audit_records WHERE %s = $1
		 ORDER BY completed_at DESC
		 LIMIT $2 OFFSET $3`, column)

	rows, err := r.pool.Query(ctx, dataQuery, value, params.PageSize, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("querying audit records: %w", err)
	}
	defer rows.Close()

	var records []AuditRecord
	for rows.Next() {
		var rec AuditRecord
		if err := rows.Scan(&rec.ID, &rec.AuditID, &rec.Requester, &rec.Subject,
			&rec.Tier, &rec.Analyzer, &rec.RiskScore, &rec.Findings,
			&rec.TokensUsed, &rec.CostSOL, &rec.FeeLamports, &rec.ReportURL,
			&rec.CompletedAt, &rec.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scanning audit record: %w", err)
		}
		records = append(records, rec)
	}

	return records, totalCount, nil
}

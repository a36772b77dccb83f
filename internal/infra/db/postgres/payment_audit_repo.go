package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"salesops-console/internal/domain"
	"salesops-console/internal/domain/ports/repository"
)

var _ repository.PaymentAuditRepository = (*paymentAuditRepo)(nil)

// paymentAuditRepo keeps the console-side trail of initiated and settled
// payments. The billing backend owns the transactions themselves.
type paymentAuditRepo struct{ pool *pgxpool.Pool }

func NewPaymentAuditRepo(pool *pgxpool.Pool) *paymentAuditRepo {
	return &paymentAuditRepo{pool: pool}
}

func (r *paymentAuditRepo) Record(ctx context.Context, a *repository.PaymentAudit) error {
	const q = `
INSERT INTO payment_audit (
  session_id, org_id, txn_code, amount, package, status, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (session_id) DO UPDATE SET
  txn_code=$3, amount=$4, package=$5, status=$6, updated_at=$8;`

	now := time.Now()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	_, err := r.pool.Exec(ctx, q, a.SessionID, a.OrgID, a.TxnCode, a.Amount, a.Package, a.Status, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23514" { // check_violation
			return domain.ErrInvalidArgument
		}
		return err
	}
	return nil
}

func (r *paymentAuditRepo) UpdateStatus(ctx context.Context, sessionID string, status repository.AuditStatus) error {
	const q = `UPDATE payment_audit SET status=$2, updated_at=$3 WHERE session_id=$1;`
	tag, err := r.pool.Exec(ctx, q, sessionID, status, time.Now())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *paymentAuditRepo) ListRecent(ctx context.Context, limit int) ([]*repository.PaymentAudit, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
SELECT session_id, org_id, txn_code, amount, package, status, created_at, updated_at
FROM payment_audit ORDER BY created_at DESC LIMIT $1;`
	rows, err := r.pool.Query(ctx, q, limit)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	defer rows.Close()

	var out []*repository.PaymentAudit
	for rows.Next() {
		a := &repository.PaymentAudit{}
		if err := rows.Scan(&a.SessionID, &a.OrgID, &a.TxnCode, &a.Amount, &a.Package, &a.Status, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

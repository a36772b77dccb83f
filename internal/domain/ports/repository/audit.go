package repository

import (
	"context"
	"time"
)

type AuditStatus string

const (
	AuditInitiated AuditStatus = "initiated"
	AuditSettled   AuditStatus = "settled"
	AuditFailed    AuditStatus = "failed"
	AuditPurchased AuditStatus = "purchased" // direct purchase, no QR interval
)

// PaymentAudit is one console-side history row. It is a local trail only;
// the billing backend remains the source of truth for the transaction.
type PaymentAudit struct {
	SessionID string // ulid
	OrgID     string
	TxnCode   string
	Amount    int64
	Package   string
	Status    AuditStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PaymentAuditRepository records initiated and settled payments. Writes are
// best-effort from the caller's perspective.
type PaymentAuditRepository interface {
	Record(ctx context.Context, a *PaymentAudit) error
	UpdateStatus(ctx context.Context, sessionID string, status AuditStatus) error
	ListRecent(ctx context.Context, limit int) ([]*PaymentAudit, error)
}

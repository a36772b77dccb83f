package adapter

import (
	"context"

	"salesops-console/internal/domain/model"
)

// Wallet is the decoded read_wallet payload. Balance() is the reconciled
// authoritative balance.
type Wallet struct {
	WalletID      string `json:"wallet_id"`
	CreditBalance int64  `json:"credit_balance"`
	ExtraCost     int64  `json:"extra_cost"`
	WalletBalance int64  `json:"wallet_balance"`
}

// Balance reconciles the authoritative balance from the wallet detail:
// credit_balance - extra_cost + wallet_balance.
func (w Wallet) Balance() int64 {
	return w.CreditBalance - w.ExtraCost + w.WalletBalance
}

// CreateTxnRequest mirrors the create_txn body; field names are wire
// compatible with the billing backend.
type CreateTxnRequest struct {
	OrgID          string         `json:"org_id"`
	WalletID       string         `json:"wallet_id"`
	Amount         int64          `json:"txn_amount"`
	PaymentMethod  string         `json:"txn_payment_method"`
	IsIssueInvoice bool           `json:"txn_is_issue_invoice"`
	Meta           map[string]any `json:"meta"`
	VoucherCode    string         `json:"voucher_code,omitempty"`
}

// QrCode is the decoded qr_code payload. Receiver is non-nil when the
// backend returned a dynamic receiving account.
type QrCode struct {
	Payload  string
	Receiver *model.BankAccount
}

type VoucherVerification struct {
	IsVerify     bool
	OriginAmount int64
	Amount       int64
}

// PurchaseRequest mirrors the purchase_package body.
type PurchaseRequest struct {
	OrgID       string `json:"org_id"`
	WalletID    string `json:"wallet_id"`
	PackageType string `json:"package_type"`
	Months      int    `json:"months"`
	VoucherCode string `json:"voucher_code,omitempty"`
}

// OrgRecord is the raw read_org record before reconciliation.
type OrgRecord struct {
	ID             string
	OrgID          string
	Name           string
	WalletSubTotal int64 // embedded wallet sub-total, overridden by ReadWallet when it succeeds
	PackageType    string
	TaxCode        string
	Address        string
	CustomerCode   string
	ContractCode   string
	User           *model.Member
	Affiliate      *model.Member
}

// InvoiceInfo carries the invoice metadata fields accepted by update_org.
type InvoiceInfo struct {
	OrgName      string `json:"org_name,omitempty"`
	TaxCode      string `json:"org_tax_code,omitempty"`
	Address      string `json:"org_address,omitempty"`
	CustomerCode string `json:"org_customer_code,omitempty"`
	ContractCode string `json:"org_contract_code,omitempty"`
}

// BillingGateway is the JSON-over-HTTP RPC surface of the billing backend.
// Every call reads the auth token from the injected token store and fails
// with domain.ErrAuthRequired before sending when it is absent.
type BillingGateway interface {
	ReadWallet(ctx context.Context, orgID string) (*Wallet, error)
	CreateTransaction(ctx context.Context, req *CreateTxnRequest) (code string, err error)
	GenerateQrCode(ctx context.Context, txnID, orgID string) (*QrCode, error)
	VerifyVoucher(ctx context.Context, orgID, code string, amount int64, userID string) (*VoucherVerification, error)
	PurchasePackage(ctx context.Context, req *PurchaseRequest) error
	SearchOrganizations(ctx context.Context, query string) ([]*OrgRecord, error)
	ReadMembers(ctx context.Context, orgID string) ([]*model.Member, error)
	ReadCurrentUser(ctx context.Context) (*model.Member, error)
	UpdateOrganization(ctx context.Context, orgID string, info *InvoiceInfo) error
}

// SettlementEvent is one decoded message from the settlement stream.
type SettlementEvent struct {
	Outcome model.SettlementOutcome
	// Merchant transaction details carried in txn_data.meta.merchant_txn;
	// lets a re-opened view rebuild descriptor content.
	QRPayload string
	Receiver  *model.BankAccount
	TxnCode   string
}

// SettlementStream is a live subscription keyed by transaction id. Events
// arrives on Events() until Close; transport-level reconnects happen
// transparently inside the implementation. Close is idempotent.
type SettlementStream interface {
	Events() <-chan SettlementEvent
	Close()
}

// SettlementStreamOpener opens a stream for one transaction id.
type SettlementStreamOpener interface {
	OpenSettlementStream(ctx context.Context, txnID string) (SettlementStream, error)
}

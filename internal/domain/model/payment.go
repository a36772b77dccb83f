package model

import "time"

// BankAccount is the receiver shown to the payer. The static default from
// config is overridden by the dynamic receiver returned with a QR payload,
// for display purposes only.
type BankAccount struct {
	AccountNumber string `yaml:"account_number" json:"account_number"`
	AccountName   string `yaml:"account_name" json:"account_name"`
	BankName      string `yaml:"bank_name" json:"bank_name"`
	Content       string `yaml:"-" json:"transaction_content,omitempty"`
}

// TransactionDescriptor is the result of initiating a payment: everything
// the operator needs to collect a bank transfer. Created once per
// initiation, held by the session controller while Pending, discarded on
// reset or cancel.
type TransactionDescriptor struct {
	Amount      int64
	Code        string // transaction code; the transfer reference content
	QRPayload   string // empty when QR generation was skipped or failed
	PackageName string // set for purchase-driven payments
	Bank        BankAccount
	OrgID       string
	CreatedAt   time.Time
}

// Reference returns the string the payer must include in the transfer so
// the backend can match it. The QR payload, when present, encodes the same.
func (d *TransactionDescriptor) Reference() string {
	if d.QRPayload != "" {
		return d.QRPayload
	}
	return d.Code
}

type SessionPhase string

const (
	PhaseIdle    SessionPhase = "idle"
	PhasePending SessionPhase = "pending"
	PhaseSuccess SessionPhase = "success"
)

// PaymentSessionState is the tagged session variant. Descriptor is nil in
// Idle and non-nil in Pending/Success.
type PaymentSessionState struct {
	ID         string // ulid, assigned per initiation
	Phase      SessionPhase
	Descriptor *TransactionDescriptor
}

type SettlementOutcome string

const (
	SettlementWaiting   SettlementOutcome = "waiting"
	SettlementSucceeded SettlementOutcome = "succeeded"
	SettlementFailed    SettlementOutcome = "failed"
	SettlementNotFound  SettlementOutcome = "not_found"
)

// Terminal reports whether the outcome ends the subscription's useful life.
func (o SettlementOutcome) Terminal() bool { return o != SettlementWaiting }

package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"salesops-console/internal/domain"
	"salesops-console/internal/domain/model"
	"salesops-console/internal/domain/ports/adapter"
	"salesops-console/internal/infra/logging"
	"salesops-console/internal/infra/metrics"
)

// TransferRequest describes one bank-transfer initiation. PackageID,
// PackageName and Months are set on purchase-driven payments and empty for
// plain top-ups.
type TransferRequest struct {
	Org          *model.Organization
	Amount       int64
	PackageID    string
	PackageName  string
	Months       int
	IssueInvoice bool
	VoucherCode  string
}

// TransactionInitiator runs the multi-step initiation sequence against the
// billing backend. Each step may fail independently; a failure aborts the
// remaining steps without retrying earlier side effects.
type TransactionInitiator interface {
	// InitiateTransfer creates a TRANSFER transaction and returns the
	// descriptor the operator collects the payment with. QR generation is
	// best-effort: on failure the descriptor carries the code alone.
	InitiateTransfer(ctx context.Context, req *TransferRequest) (*model.TransactionDescriptor, error)

	// PurchaseDirect settles a package purchase straight from the wallet
	// when the balance already covers it. domain.ErrInsufficientBalance
	// signals the balance changed between computation and call.
	PurchaseDirect(ctx context.Context, org *model.Organization, pkg *model.ServicePackage, months int, voucherCode string) error
}

var _ TransactionInitiator = (*paymentUC)(nil)

type paymentUC struct {
	billing adapter.BillingGateway
	bank    model.BankAccount
	log     *zerolog.Logger
}

func NewTransactionInitiator(billing adapter.BillingGateway, bank model.BankAccount, logger *zerolog.Logger) TransactionInitiator {
	return &paymentUC{billing: billing, bank: bank, log: logger}
}

func (p *paymentUC) InitiateTransfer(ctx context.Context, req *TransferRequest) (*model.TransactionDescriptor, error) {
	if req == nil || req.Org == nil || req.Amount <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	orgID := req.Org.OrgID
	ctx = logging.WithOrgID(ctx, orgID)

	wallet, err := p.billing.ReadWallet(ctx, orgID)
	if err != nil {
		metrics.IncPayment("failed")
		return nil, err
	}

	code, err := p.billing.CreateTransaction(ctx, &adapter.CreateTxnRequest{
		OrgID:          orgID,
		WalletID:       wallet.WalletID,
		Amount:         req.Amount,
		PaymentMethod:  "TRANSFER",
		IsIssueInvoice: req.IssueInvoice,
		Meta:           p.txnMeta(ctx, req),
		VoucherCode:    req.VoucherCode,
	})
	if err != nil {
		metrics.IncPayment("failed")
		return nil, err
	}
	ctx = logging.WithTxnCode(ctx, code)

	desc := &model.TransactionDescriptor{
		Amount:      req.Amount,
		Code:        code,
		PackageName: req.PackageName,
		Bank:        p.bank,
		OrgID:       orgID,
		CreatedAt:   time.Now(),
	}

	qr, err := p.billing.GenerateQrCode(ctx, code, orgID)
	switch {
	case err != nil:
		// Degrades to a code-only reference.
		p.log.Warn().Err(err).Str("txn_code", code).Msg("qr generation failed, continuing with code-only reference")
	default:
		desc.QRPayload = qr.Payload
		if qr.Receiver != nil {
			desc.Bank = *qr.Receiver
		}
	}

	metrics.IncPayment("initiated")
	metrics.AddPaymentAmount(req.Amount)
	logging.With(ctx, p.log).Info().
		Int64("amount", req.Amount).
		Bool("has_qr", desc.QRPayload != "").
		Msg("transfer transaction initiated")
	return desc, nil
}

func (p *paymentUC) PurchaseDirect(ctx context.Context, org *model.Organization, pkg *model.ServicePackage, months int, voucherCode string) error {
	if org == nil || pkg.IsZero() || months <= 0 {
		return domain.ErrInvalidArgument
	}
	ctx = logging.WithOrgID(ctx, org.OrgID)

	wallet, err := p.billing.ReadWallet(ctx, org.OrgID)
	if err != nil {
		metrics.IncPayment("failed")
		return err
	}

	err = p.billing.PurchasePackage(ctx, &adapter.PurchaseRequest{
		OrgID:       org.OrgID,
		WalletID:    wallet.WalletID,
		PackageType: strings.ToUpper(pkg.ID),
		Months:      months,
		VoucherCode: voucherCode,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientBalance) {
			metrics.IncPayment("insufficient")
		} else {
			metrics.IncPayment("failed")
		}
		return err
	}

	metrics.IncPayment("purchased")
	logging.With(ctx, p.log).Info().
		Str("package", pkg.ID).
		Int("months", months).
		Msg("package purchased from wallet balance")
	return nil
}

// txnMeta tags the transaction for back-office attribution: the operator's
// own ref plus the org's representative member. Both lookups are
// best-effort, a missing tag never blocks payment.
func (p *paymentUC) txnMeta(ctx context.Context, req *TransferRequest) map[string]any {
	kind := "TOP_UP_WALLET"
	if req.PackageID != "" {
		kind = "PURCHASE"
	}
	meta := map[string]any{"type": kind}
	if req.PackageID != "" {
		meta["product"] = strings.ToUpper(req.PackageID)
		meta["quantity"] = req.Months
	}

	// The backend expects a ref tag on every transaction; UNKNOWN is its
	// literal fallback value, not ours.
	ref := "UNKNOWN"
	if me, err := p.billing.ReadCurrentUser(ctx); err == nil && me.Ref() != "" {
		ref = me.Ref()
	} else if err != nil {
		p.log.Debug().Err(err).Msg("current user lookup failed, transaction stays unattributed")
	}
	meta["ref"] = ref
	if members, err := p.billing.ReadMembers(ctx, req.Org.OrgID); err == nil {
		if m := model.DefaultMember(members, req.Org.User); m != nil {
			meta["member"] = m.UserID
		}
	}
	return meta
}

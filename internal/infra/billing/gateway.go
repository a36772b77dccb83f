// File: internal/infra/billing/gateway.go
package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"salesops-console/internal/domain"
	"salesops-console/internal/domain/model"
	"salesops-console/internal/domain/ports/adapter"
	"salesops-console/internal/domain/ports/repository"
)

var _ adapter.BillingGateway = (*Gateway)(nil)

// Gateway implements adapter.BillingGateway over the backend's JSON POST
// RPCs. Field names in request and response bodies are wire compatible with
// the billing backend; do not rename them.
type Gateway struct {
	appURL     string
	managerURL string
	client     *http.Client
	tokens     repository.TokenStore
	log        *zerolog.Logger
}

func NewGateway(appURL, managerURL string, timeout time.Duration, tokens repository.TokenStore, logger *zerolog.Logger) *Gateway {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Gateway{
		appURL:     appURL,
		managerURL: managerURL,
		client:     &http.Client{Timeout: timeout},
		tokens:     tokens,
		log:        logger,
	}
}

// envelope is the common response shape: a data payload plus an optional
// error code string.
type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

// post issues one authorized RPC. The token is read per call; its absence
// aborts before any request is built.
func (g *Gateway) post(ctx context.Context, base, path string, body any) (int, *envelope, error) {
	token, err := g.tokens.Token(ctx)
	if err != nil {
		return 0, nil, err
	}
	b, err := json.Marshal(body)
	if err != nil {
		return 0, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+path, bytes.NewReader(b))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", token)

	resp, err := g.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", domain.ErrUpstream, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return resp.StatusCode, nil, fmt.Errorf("%w: decode %s: %v", domain.ErrUpstream, path, err)
	}
	return resp.StatusCode, &env, nil
}

// ReadWallet fetches the wallet detail for an org. Anything other than a
// 200 with a wallet id is ErrWalletUnavailable.
func (g *Gateway) ReadWallet(ctx context.Context, orgID string) (*adapter.Wallet, error) {
	status, env, err := g.post(ctx, g.managerURL, "/manager/wallet/read_wallet", map[string]any{"org_id": orgID})
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK || env.Error != "" {
		return nil, fmt.Errorf("%w: status %d %s", domain.ErrWalletUnavailable, status, env.Error)
	}
	var w adapter.Wallet
	if err := json.Unmarshal(env.Data, &w); err != nil || w.WalletID == "" {
		return nil, domain.ErrWalletUnavailable
	}
	return &w, nil
}

func (g *Gateway) CreateTransaction(ctx context.Context, req *adapter.CreateTxnRequest) (string, error) {
	status, env, err := g.post(ctx, g.appURL, "/app/transaction/create_txn", req)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK || env.Error != "" {
		return "", fmt.Errorf("%w: status %d %s", domain.ErrTransactionCreateFailed, status, env.Error)
	}
	var out struct {
		TxnCode string `json:"txn_code"`
		TxnID   string `json:"txn_id"`
	}
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return "", domain.ErrTransactionCreateFailed
	}
	code := out.TxnCode
	if code == "" {
		code = out.TxnID
	}
	if code == "" {
		return "", domain.ErrTransactionCreateFailed
	}
	return code, nil
}

// GenerateQrCode is best-effort from the caller's point of view: the
// returned error wraps ErrQrGenerationFailed and payment proceeds with the
// transaction code alone as reference content.
func (g *Gateway) GenerateQrCode(ctx context.Context, txnID, orgID string) (*adapter.QrCode, error) {
	body := map[string]any{"txn_id": txnID, "org_id": orgID, "version": "v2"}
	status, env, err := g.post(ctx, g.appURL, "/app/wallet/qr_code", body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrQrGenerationFailed, err)
	}
	if status != http.StatusOK || env.Error != "" {
		return nil, fmt.Errorf("%w: status %d %s", domain.ErrQrGenerationFailed, status, env.Error)
	}
	var out struct {
		QrCode   string `json:"qr_code"`
		Receiver *struct {
			AccountNumber      string `json:"account_number"`
			AccountName        string `json:"account_name"`
			BankName           string `json:"bank_name"`
			TransactionContent string `json:"transaction_content"`
		} `json:"receiver"`
	}
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrQrGenerationFailed, err)
	}
	qr := &adapter.QrCode{Payload: out.QrCode}
	if r := out.Receiver; r != nil && r.AccountNumber != "" {
		qr.Receiver = &model.BankAccount{
			AccountNumber: r.AccountNumber,
			AccountName:   r.AccountName,
			BankName:      r.BankName,
			Content:       r.TransactionContent,
		}
	}
	return qr, nil
}

func (g *Gateway) VerifyVoucher(ctx context.Context, orgID, code string, amount int64, userID string) (*adapter.VoucherVerification, error) {
	body := map[string]any{
		"org_id":       orgID,
		"voucher_code": code,
		"txn_amount":   amount,
		"user_id":      userID,
	}
	status, env, err := g.post(ctx, g.appURL, "/app/voucher/verify_voucher", body)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK || env.Error != "" {
		return nil, fmt.Errorf("%w: status %d %s", domain.ErrVoucherInvalid, status, env.Error)
	}
	var out struct {
		IsVerify        bool  `json:"is_verify"`
		TxnOriginAmount int64 `json:"txn_origin_amount"`
		TxnAmount       int64 `json:"txn_amount"`
	}
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrVoucherInvalid, err)
	}
	return &adapter.VoucherVerification{
		IsVerify:     out.IsVerify,
		OriginAmount: out.TxnOriginAmount,
		Amount:       out.TxnAmount,
	}, nil
}

// PurchasePackage spends the wallet directly; no QR is involved. A
// WALLET.NOT_ENOUGH_MONEY error means the balance changed between the
// amount-due computation and this call.
func (g *Gateway) PurchasePackage(ctx context.Context, req *adapter.PurchaseRequest) error {
	status, env, err := g.post(ctx, g.appURL, "/app/wallet/purchase_package", req)
	if err != nil {
		return err
	}
	if env.Error == "WALLET.NOT_ENOUGH_MONEY" {
		return domain.ErrInsufficientBalance
	}
	if status != http.StatusOK || env.Error != "" {
		return fmt.Errorf("%w: status %d %s", domain.ErrUpstream, status, env.Error)
	}
	return nil
}

// orgRecord mirrors the read_org row shape.
type orgRecord struct {
	ID      string `json:"_id"`
	OrgID   string `json:"org_id"`
	Name    string `json:"name"`
	OrgInfo struct {
		OrgName      string `json:"org_name"`
		TaxCode      string `json:"org_tax_code"`
		Address      string `json:"org_address"`
		CustomerCode string `json:"org_customer_code"`
		ContractCode string `json:"org_contract_code"`
	} `json:"org_info"`
	OrgPackage struct {
		PackageType string `json:"org_package_type"`
	} `json:"org_package"`
	Wallet struct {
		WalletBalance int64 `json:"wallet_balance"`
	} `json:"wallet"`
	User      *model.Member `json:"user"`
	Affiliate *model.Member `json:"affiliate"`
}

func (g *Gateway) SearchOrganizations(ctx context.Context, query string) ([]*adapter.OrgRecord, error) {
	body := map[string]any{
		"skip":       0,
		"limit":      20,
		"search":     query,
		"start_date": nil,
		"end_date":   nil,
	}
	status, env, err := g.post(ctx, g.managerURL, "/manager/organization/read_org", body)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK || env.Error != "" {
		return nil, fmt.Errorf("%w: status %d %s", domain.ErrUpstream, status, env.Error)
	}
	var rows []orgRecord
	if err := json.Unmarshal(env.Data, &rows); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstream, err)
	}
	out := make([]*adapter.OrgRecord, 0, len(rows))
	for _, r := range rows {
		name := r.OrgInfo.OrgName
		if name == "" {
			name = r.Name
		}
		out = append(out, &adapter.OrgRecord{
			ID:             r.ID,
			OrgID:          r.OrgID,
			Name:           name,
			WalletSubTotal: r.Wallet.WalletBalance,
			PackageType:    r.OrgPackage.PackageType,
			TaxCode:        r.OrgInfo.TaxCode,
			Address:        r.OrgInfo.Address,
			CustomerCode:   r.OrgInfo.CustomerCode,
			ContractCode:   r.OrgInfo.ContractCode,
			User:           r.User,
			Affiliate:      r.Affiliate,
		})
	}
	return out, nil
}

func (g *Gateway) ReadMembers(ctx context.Context, orgID string) ([]*model.Member, error) {
	status, env, err := g.post(ctx, g.managerURL, "/manager/member_ship/read_member", map[string]any{"org_id": orgID})
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK || env.Error != "" {
		return nil, fmt.Errorf("%w: status %d %s", domain.ErrUpstream, status, env.Error)
	}
	var rows []struct {
		UserID   string        `json:"user_id"`
		Role     string        `json:"role"`
		IsAdmin  bool          `json:"is_admin"`
		UserInfo *model.Member `json:"user_info"`
	}
	if err := json.Unmarshal(env.Data, &rows); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstream, err)
	}
	out := make([]*model.Member, 0, len(rows))
	for _, r := range rows {
		m := &model.Member{UserID: r.UserID, Role: r.Role, IsAdmin: r.IsAdmin}
		if r.UserInfo != nil {
			m.FullName = r.UserInfo.FullName
			m.Email = r.UserInfo.Email
			m.Phone = r.UserInfo.Phone
			m.AliasCode = r.UserInfo.AliasCode
			m.AffiliateID = r.UserInfo.AffiliateID
			m.FBStaffID = r.UserInfo.FBStaffID
			if m.UserID == "" {
				m.UserID = r.UserInfo.UserID
			}
		}
		out = append(out, m)
	}
	return out, nil
}

func (g *Gateway) ReadCurrentUser(ctx context.Context) (*model.Member, error) {
	status, env, err := g.post(ctx, g.appURL, "/app/chatbot_user/read_me_chatbot_user", map[string]any{})
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK || env.Error != "" {
		return nil, fmt.Errorf("%w: status %d %s", domain.ErrUpstream, status, env.Error)
	}
	var m model.Member
	if err := json.Unmarshal(env.Data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstream, err)
	}
	return &m, nil
}

func (g *Gateway) UpdateOrganization(ctx context.Context, orgID string, info *adapter.InvoiceInfo) error {
	body := map[string]any{"org_id": orgID, "org_info": info}
	status, env, err := g.post(ctx, g.appURL, "/app/organization/update_org", body)
	if err != nil {
		return err
	}
	if status != http.StatusOK || env.Error != "" {
		return fmt.Errorf("%w: status %d %s", domain.ErrUpstream, status, env.Error)
	}
	return nil
}

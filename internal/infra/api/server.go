package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"salesops-console/internal/domain"
	"salesops-console/internal/domain/model"
	"salesops-console/internal/domain/ports/adapter"
	"salesops-console/internal/domain/ports/repository"
	"salesops-console/internal/usecase"
)

// Server is the operator-facing JSON API. Everything under /api/v1 except
// the session mint requires an operator JWT; /health and /metrics are open.
type Server struct {
	lookup   usecase.CustomerLookupController
	voucher  usecase.VoucherValidator
	session  usecase.PaymentSessionController
	billing  adapter.BillingGateway
	audits   repository.PaymentAuditRepository // nil hides the history route's data
	auth     *AuthManager
	log      *zerolog.Logger
	packages map[string]*model.ServicePackage
	opKey    string
}

func NewServer(
	lookup usecase.CustomerLookupController,
	voucher usecase.VoucherValidator,
	session usecase.PaymentSessionController,
	billing adapter.BillingGateway,
	audits repository.PaymentAuditRepository,
	auth *AuthManager,
	packages []*model.ServicePackage,
	operatorKey string,
	logger *zerolog.Logger,
) *Server {
	byID := make(map[string]*model.ServicePackage, len(packages))
	for _, p := range packages {
		byID[p.ID] = p
	}
	return &Server{
		lookup:   lookup,
		voucher:  voucher,
		session:  session,
		billing:  billing,
		audits:   audits,
		auth:     auth,
		log:      logger,
		packages: byID,
		opKey:    operatorKey,
	}
}

// Router builds the chi mux with the middleware chain applied to the
// guarded subtree.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Post("/api/v1/auth/session", s.handleLogin)

	r.Group(func(g chi.Router) {
		g.Use(func(next http.Handler) http.Handler {
			return Chain(next, TraceID(), RequestLog(s.log), Recover(s.log), Guard(s.auth))
		})

		g.Get("/api/v1/orgs", s.handleSearchOrgs)
		g.Post("/api/v1/orgs/invoice", s.handleUpdateInvoice)
		g.Post("/api/v1/vouchers/verify", s.handleVerifyVoucher)
		g.Post("/api/v1/payments/topup", s.handleTopup)
		g.Post("/api/v1/payments/package", s.handlePackage)
		g.Post("/api/v1/payments/purchase", s.handlePurchase)
		g.Get("/api/v1/payments/session", s.handleSessionState)
		g.Get("/api/v1/payments/session/events", s.handleSessionEvents)
		g.Post("/api/v1/payments/session/cancel", s.handleSessionCancel)
		g.Post("/api/v1/payments/session/reset", s.handleSessionReset)
		g.Get("/api/v1/payments/history", s.handleHistory)
	})
	return r
}

// ===== auth =====

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.opKey == "" {
		writeErr(w, http.StatusServiceUnavailable, "operator login not configured")
		return
	}
	var body struct {
		Operator string `json:"operator"`
		Key      string `json:"key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Key != s.opKey {
		writeErr(w, http.StatusUnauthorized, "invalid operator key")
		return
	}
	if body.Operator == "" {
		body.Operator = "operator"
	}
	token, err := s.auth.Mint(w, body.Operator)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "session mint failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// ===== customer lookup =====

func (s *Server) handleSearchOrgs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("search")
	org, err := s.lookup.SearchNow(r.Context(), query)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	if org == nil {
		writeJSON(w, http.StatusOK, map[string]any{"org": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"org": orgView(org)})
}

func (s *Server) handleUpdateInvoice(w http.ResponseWriter, r *http.Request) {
	var body struct {
		OrgID string              `json:"org_id"`
		Info  adapter.InvoiceInfo `json:"info"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.OrgID == "" {
		writeErr(w, http.StatusBadRequest, "org_id and info are required")
		return
	}
	if err := s.billing.UpdateOrganization(r.Context(), body.OrgID, &body.Info); err != nil {
		writeDomainErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// ===== voucher =====

func (s *Server) handleVerifyVoucher(w http.ResponseWriter, r *http.Request) {
	var body struct {
		OrgID  string `json:"org_id"`
		UserID string `json:"user_id"`
		Code   string `json:"code"`
		Amount int64  `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid body")
		return
	}
	state, err := s.voucher.VerifyNow(r.Context(), body.Code, body.Amount, body.OrgID, body.UserID)
	if err != nil && !errors.Is(err, domain.ErrVoucherInvalid) {
		writeDomainErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, voucherView(state))
}

// ===== payments =====

// bindVoucher ties the submitted code to the validator's verified state
// before money moves. A non-empty code that was never verified, or was
// verified as a different code, rejects the submit. A code verified against
// another base amount is re-verified at this one, so the discount can never
// carry over after the total changed. Returns the discounted total bound to
// exactly this code and amount, nil when no voucher applies.
func (s *Server) bindVoucher(w http.ResponseWriter, r *http.Request, code string, total int64, org *model.Organization) (*int64, bool) {
	if code == "" {
		return nil, true
	}
	state := s.voucher.State()
	if state.Code != code || state.Status != model.VoucherValid {
		writeErr(w, http.StatusConflict, "voucher code is not verified")
		return nil, false
	}
	if state.OriginAmount != total {
		userID := ""
		if org.User != nil {
			userID = org.User.UserID
		}
		reState, err := s.voucher.VerifyNow(r.Context(), code, total, org.OrgID, userID)
		if err != nil {
			writeDomainErr(w, err)
			return nil, false
		}
		return reState.Discounted(), true
	}
	return state.Discounted(), true
}

func (s *Server) handleTopup(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Amount       json.Number `json:"amount"`
		IssueInvoice bool        `json:"issue_invoice"`
		VoucherCode  string      `json:"voucher_code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid body")
		return
	}
	amount, err := usecase.ParseAmount(body.Amount.String())
	if err != nil || amount <= 0 {
		writeErr(w, http.StatusBadRequest, "amount must be a positive number")
		return
	}
	org, err := s.requireCustomer(w)
	if err != nil {
		return
	}
	if !s.voucher.CanSubmit() {
		writeErr(w, http.StatusConflict, "voucher code is not verified")
		return
	}
	if _, ok := s.bindVoucher(w, r, body.VoucherCode, amount, org); !ok {
		return
	}

	snap, err := s.session.Initiate(r.Context(), &usecase.TransferRequest{
		Org:          org,
		Amount:       amount,
		IssueInvoice: body.IssueInvoice,
		VoucherCode:  body.VoucherCode,
	})
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionView(snap))
}

// handlePackage prices the chosen package and branches: a positive amount
// due starts the transfer flow, a zero amount due settles straight from
// the wallet.
func (s *Server) handlePackage(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PackageID    string `json:"package_id"`
		Months       int    `json:"months"`
		IssueInvoice bool   `json:"issue_invoice"`
		VoucherCode  string `json:"voucher_code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid body")
		return
	}
	pkg, ok := s.packages[body.PackageID]
	if !ok || body.Months <= 0 {
		writeErr(w, http.StatusBadRequest, "unknown package or invalid months")
		return
	}
	org, err := s.requireCustomer(w)
	if err != nil {
		return
	}
	if !s.voucher.CanSubmit() {
		writeErr(w, http.StatusConflict, "voucher code is not verified")
		return
	}

	total := usecase.TotalPrice(pkg, body.Months)
	discounted, ok := s.bindVoucher(w, r, body.VoucherCode, total, org)
	if !ok {
		return
	}
	due := usecase.AmountDue(total, org.Balance, discounted)

	if due == 0 {
		if err := s.session.PurchaseDirect(r.Context(), org, pkg, body.Months, body.VoucherCode); err != nil {
			writeDomainErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "purchased",
			"total":  total,
		})
		return
	}

	snap, err := s.session.Initiate(r.Context(), &usecase.TransferRequest{
		Org:          org,
		Amount:       due,
		PackageID:    pkg.ID,
		PackageName:  pkg.Name,
		Months:       body.Months,
		IssueInvoice: body.IssueInvoice,
		VoucherCode:  body.VoucherCode,
	})
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionView(snap))
}

func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PackageID   string `json:"package_id"`
		Months      int    `json:"months"`
		VoucherCode string `json:"voucher_code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid body")
		return
	}
	pkg, ok := s.packages[body.PackageID]
	if !ok || body.Months <= 0 {
		writeErr(w, http.StatusBadRequest, "unknown package or invalid months")
		return
	}
	org, err := s.requireCustomer(w)
	if err != nil {
		return
	}
	if !s.voucher.CanSubmit() {
		writeErr(w, http.StatusConflict, "voucher code is not verified")
		return
	}
	if _, ok := s.bindVoucher(w, r, body.VoucherCode, usecase.TotalPrice(pkg, body.Months), org); !ok {
		return
	}
	if err := s.session.PurchaseDirect(r.Context(), org, pkg, body.Months, body.VoucherCode); err != nil {
		writeDomainErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "purchased"})
}

// ===== session =====

func (s *Server) handleSessionState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionView(s.session.State()))
}

func (s *Server) handleSessionEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeErr(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	events, unsubscribe := s.session.Subscribe()
	defer unsubscribe()

	// Initial snapshot so a late subscriber sees the current phase.
	snap := s.session.State()
	writeSSE(w, usecase.SessionEvent{
		SessionID: snap.ID,
		Phase:     snap.Phase,
		Outcome:   snap.Outcome,
		At:        time.Now(),
	})
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, open := <-events:
			if !open {
				return
			}
			writeSSE(w, ev)
			flusher.Flush()
		}
	}
}

func (s *Server) handleSessionCancel(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Confirmed bool `json:"confirmed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := s.session.Cancel(r.Context(), body.Confirmed); err != nil {
		writeDomainErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionView(s.session.State()))
}

func (s *Server) handleSessionReset(w http.ResponseWriter, r *http.Request) {
	s.session.Reset(r.Context())
	// A new order starts from a clean voucher state too.
	s.voucher.Reset()
	writeJSON(w, http.StatusOK, sessionView(s.session.State()))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.audits == nil {
		writeJSON(w, http.StatusOK, map[string]any{"items": []any{}})
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}
	items, err := s.audits.ListRecent(r.Context(), limit)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// ===== helpers =====

func (s *Server) requireCustomer(w http.ResponseWriter) (*model.Organization, error) {
	org, err := s.lookup.Current()
	if err != nil {
		writeDomainErr(w, err)
		return nil, err
	}
	if org == nil {
		writeErr(w, http.StatusConflict, "no customer selected")
		return nil, domain.ErrNotFound
	}
	return org, nil
}

func orgView(o *model.Organization) map[string]any {
	return map[string]any{
		"org_id":          o.OrgID,
		"name":            o.Name,
		"balance":         o.Balance,
		"current_package": o.CurrentPackage,
		"tax_code":        o.TaxCode,
		"address":         o.Address,
		"customer_code":   o.CustomerCode,
		"contract_code":   o.ContractCode,
		"user":            o.User,
		"affiliate":       o.Affiliate,
	}
}

func voucherView(st model.VoucherState) map[string]any {
	return map[string]any{
		"code":              st.Code,
		"status":            st.Status,
		"origin_amount":     st.OriginAmount,
		"discounted_amount": st.DiscountedAmount,
	}
}

func sessionView(snap usecase.SessionSnapshot) map[string]any {
	out := map[string]any{
		"session_id": snap.ID,
		"phase":      snap.Phase,
		"outcome":    snap.Outcome,
	}
	if d := snap.Descriptor; d != nil {
		out["descriptor"] = map[string]any{
			"amount":       d.Amount,
			"code":         d.Code,
			"qr":           d.QRPayload,
			"package_name": d.PackageName,
			"bank":         d.Bank,
			"org_id":       d.OrgID,
			"created_at":   d.CreatedAt,
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func writeSSE(w http.ResponseWriter, ev usecase.SessionEvent) {
	b, err := json.Marshal(ev)
	if err != nil {
		return
	}
	_, _ = w.Write([]byte("data: "))
	_, _ = w.Write(b)
	_, _ = w.Write([]byte("\n\n"))
}

// writeDomainErr maps sentinel errors onto HTTP statuses.
func writeDomainErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		writeErr(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeErr(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrAuthRequired):
		writeErr(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrSessionBusy), errors.Is(err, domain.ErrConfirmationRequired):
		writeErr(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrInsufficientBalance):
		writeErr(w, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, domain.ErrVoucherInvalid):
		writeErr(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrWalletUnavailable),
		errors.Is(err, domain.ErrTransactionCreateFailed),
		errors.Is(err, domain.ErrUpstream):
		writeErr(w, http.StatusBadGateway, err.Error())
	default:
		writeErr(w, http.StatusInternalServerError, err.Error())
	}
}

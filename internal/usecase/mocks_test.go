//go:build !integration

package usecase_test

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"salesops-console/internal/domain"
	"salesops-console/internal/domain/model"
	"salesops-console/internal/domain/ports/adapter"
	"salesops-console/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// MockBillingGateway lets each test plug in just the RPCs it needs.
type MockBillingGateway struct {
	ReadWalletFunc      func(ctx context.Context, orgID string) (*adapter.Wallet, error)
	CreateTxnFunc       func(ctx context.Context, req *adapter.CreateTxnRequest) (string, error)
	GenerateQrFunc      func(ctx context.Context, txnID, orgID string) (*adapter.QrCode, error)
	VerifyVoucherFunc   func(ctx context.Context, orgID, code string, amount int64, userID string) (*adapter.VoucherVerification, error)
	PurchaseFunc        func(ctx context.Context, req *adapter.PurchaseRequest) error
	SearchOrgsFunc      func(ctx context.Context, query string) ([]*adapter.OrgRecord, error)
	ReadMembersFunc     func(ctx context.Context, orgID string) ([]*model.Member, error)
	ReadCurrentUserFunc func(ctx context.Context) (*model.Member, error)
	UpdateOrgFunc       func(ctx context.Context, orgID string, info *adapter.InvoiceInfo) error
}

var _ adapter.BillingGateway = (*MockBillingGateway)(nil)

func (m *MockBillingGateway) ReadWallet(ctx context.Context, orgID string) (*adapter.Wallet, error) {
	if m.ReadWalletFunc != nil {
		return m.ReadWalletFunc(ctx, orgID)
	}
	return &adapter.Wallet{WalletID: "w-1"}, nil
}

func (m *MockBillingGateway) CreateTransaction(ctx context.Context, req *adapter.CreateTxnRequest) (string, error) {
	if m.CreateTxnFunc != nil {
		return m.CreateTxnFunc(ctx, req)
	}
	return "TXN-1", nil
}

func (m *MockBillingGateway) GenerateQrCode(ctx context.Context, txnID, orgID string) (*adapter.QrCode, error) {
	if m.GenerateQrFunc != nil {
		return m.GenerateQrFunc(ctx, txnID, orgID)
	}
	return &adapter.QrCode{Payload: "qr-payload"}, nil
}

func (m *MockBillingGateway) VerifyVoucher(ctx context.Context, orgID, code string, amount int64, userID string) (*adapter.VoucherVerification, error) {
	if m.VerifyVoucherFunc != nil {
		return m.VerifyVoucherFunc(ctx, orgID, code, amount, userID)
	}
	return &adapter.VoucherVerification{IsVerify: false}, nil
}

func (m *MockBillingGateway) PurchasePackage(ctx context.Context, req *adapter.PurchaseRequest) error {
	if m.PurchaseFunc != nil {
		return m.PurchaseFunc(ctx, req)
	}
	return nil
}

func (m *MockBillingGateway) SearchOrganizations(ctx context.Context, query string) ([]*adapter.OrgRecord, error) {
	if m.SearchOrgsFunc != nil {
		return m.SearchOrgsFunc(ctx, query)
	}
	return nil, domain.ErrNotFound
}

func (m *MockBillingGateway) ReadMembers(ctx context.Context, orgID string) ([]*model.Member, error) {
	if m.ReadMembersFunc != nil {
		return m.ReadMembersFunc(ctx, orgID)
	}
	return nil, domain.ErrNotFound
}

func (m *MockBillingGateway) ReadCurrentUser(ctx context.Context) (*model.Member, error) {
	if m.ReadCurrentUserFunc != nil {
		return m.ReadCurrentUserFunc(ctx)
	}
	return nil, domain.ErrNotFound
}

func (m *MockBillingGateway) UpdateOrganization(ctx context.Context, orgID string, info *adapter.InvoiceInfo) error {
	if m.UpdateOrgFunc != nil {
		return m.UpdateOrgFunc(ctx, orgID, info)
	}
	return nil
}

// MockSettlementStream feeds scripted events into a watcher.
type MockSettlementStream struct {
	ch     chan adapter.SettlementEvent
	once   sync.Once
	mu     sync.Mutex
	closed chan struct{}
}

var _ adapter.SettlementStream = (*MockSettlementStream)(nil)

func NewMockSettlementStream() *MockSettlementStream {
	return &MockSettlementStream{
		ch:     make(chan adapter.SettlementEvent, 8),
		closed: make(chan struct{}),
	}
}

func (m *MockSettlementStream) Events() <-chan adapter.SettlementEvent { return m.ch }

func (m *MockSettlementStream) Close() {
	m.once.Do(func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		close(m.closed)
		close(m.ch)
	})
}

func (m *MockSettlementStream) Emit(ev adapter.SettlementEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	select {
	case <-m.closed:
		return
	default:
	}
	m.ch <- ev
}

func (m *MockSettlementStream) IsClosed() bool {
	select {
	case <-m.closed:
		return true
	default:
		return false
	}
}

// MockStreamOpener hands out a fresh stream per open and remembers them.
type MockStreamOpener struct {
	mu      sync.Mutex
	Streams []*MockSettlementStream
	OpenErr error
}

var _ adapter.SettlementStreamOpener = (*MockStreamOpener)(nil)

func (m *MockStreamOpener) OpenSettlementStream(ctx context.Context, txnID string) (adapter.SettlementStream, error) {
	if m.OpenErr != nil {
		return nil, m.OpenErr
	}
	s := NewMockSettlementStream()
	m.mu.Lock()
	m.Streams = append(m.Streams, s)
	m.mu.Unlock()
	return s, nil
}

func (m *MockStreamOpener) Last() *MockSettlementStream {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Streams) == 0 {
		return nil
	}
	return m.Streams[len(m.Streams)-1]
}

// MockNotifier counts settlement notifications.
type MockNotifier struct {
	mu    sync.Mutex
	Calls []bool
}

var _ adapter.Notifier = (*MockNotifier)(nil)

func (m *MockNotifier) NotifySettlement(ctx context.Context, orgName, txnCode string, amount int64, ok bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, ok)
	return nil
}

func (m *MockNotifier) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// MockAuditRepo is an in-memory payment trail.
type MockAuditRepo struct {
	mu   sync.Mutex
	Rows map[string]*repository.PaymentAudit
}

var _ repository.PaymentAuditRepository = (*MockAuditRepo)(nil)

func NewMockAuditRepo() *MockAuditRepo {
	return &MockAuditRepo{Rows: map[string]*repository.PaymentAudit{}}
}

func (m *MockAuditRepo) Record(ctx context.Context, a *repository.PaymentAudit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.Rows[a.SessionID] = &cp
	return nil
}

func (m *MockAuditRepo) UpdateStatus(ctx context.Context, sessionID string, status repository.AuditStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.Rows[sessionID]
	if !ok {
		return domain.ErrNotFound
	}
	row.Status = status
	return nil
}

func (m *MockAuditRepo) ListRecent(ctx context.Context, limit int) ([]*repository.PaymentAudit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*repository.PaymentAudit, 0, len(m.Rows))
	for _, r := range m.Rows {
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MockAuditRepo) Status(sessionID string) repository.AuditStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row, ok := m.Rows[sessionID]; ok {
		return row.Status
	}
	return ""
}

// MockRefresher counts balance refreshes per org.
type MockRefresher struct {
	mu    sync.Mutex
	Calls []string
}

func (m *MockRefresher) Refresh(ctx context.Context, orgID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, orgID)
}

func (m *MockRefresher) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

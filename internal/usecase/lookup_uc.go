package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"salesops-console/internal/domain"
	"salesops-console/internal/domain/model"
	"salesops-console/internal/domain/ports/adapter"
	"salesops-console/internal/infra/metrics"
)

const lookupDebounce = 300 * time.Millisecond

// CustomerLookupController resolves organizations by free-text search.
// Input is debounced; a newer query supersedes the outcome of any older
// in-flight one regardless of completion order.
type CustomerLookupController interface {
	// Search records operator input and arms the debounce timer. Empty
	// query clears the customer and error state without a call.
	Search(query string)

	// SearchNow resolves a query synchronously, still subject to the
	// generation discipline.
	SearchNow(ctx context.Context, query string) (*model.Organization, error)

	// Current returns the resolved customer and the last search error.
	Current() (*model.Organization, error)

	// Refresh re-reads the wallet balance of the current customer. Used
	// after a settlement. No-op when the org is no longer current.
	Refresh(ctx context.Context, orgID string)

	Close()
}

var (
	_ CustomerLookupController = (*lookupUC)(nil)
	_ BalanceRefresher         = (*lookupUC)(nil)
)

type lookupUC struct {
	billing  adapter.BillingGateway
	log      *zerolog.Logger
	debounce time.Duration

	mu      sync.Mutex
	gen     uint64
	timer   *time.Timer
	current *model.Organization
	lastErr error
}

func NewCustomerLookupController(billing adapter.BillingGateway, logger *zerolog.Logger) CustomerLookupController {
	return &lookupUC{
		billing:  billing,
		log:      logger,
		debounce: lookupDebounce,
	}
}

func (l *lookupUC) Search(query string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	gen := l.bumpLocked()
	if query == "" {
		l.current = nil
		l.lastErr = nil
		return
	}
	l.timer = time.AfterFunc(l.debounce, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		org, err := l.resolve(ctx, query)
		l.apply(gen, org, err)
	})
}

func (l *lookupUC) SearchNow(ctx context.Context, query string) (*model.Organization, error) {
	l.mu.Lock()
	gen := l.bumpLocked()
	if query == "" {
		l.current = nil
		l.lastErr = nil
		l.mu.Unlock()
		return nil, nil
	}
	l.mu.Unlock()

	org, err := l.resolve(ctx, query)
	l.apply(gen, org, err)
	return org, err
}

// resolve runs the search plus the best-effort wallet reconciliation. The
// embedded wallet sub-total stays authoritative when the detail call fails.
func (l *lookupUC) resolve(ctx context.Context, query string) (*model.Organization, error) {
	metrics.IncOrgLookup()
	records, err := l.billing.SearchOrganizations(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, domain.ErrNotFound
	}
	rec := records[0]

	org := &model.Organization{
		ID:             rec.ID,
		OrgID:          rec.OrgID,
		Name:           rec.Name,
		Balance:        rec.WalletSubTotal,
		CurrentPackage: rec.PackageType,
		TaxCode:        rec.TaxCode,
		Address:        rec.Address,
		CustomerCode:   rec.CustomerCode,
		ContractCode:   rec.ContractCode,
		User:           rec.User,
		Affiliate:      rec.Affiliate,
	}

	if wallet, werr := l.billing.ReadWallet(ctx, rec.OrgID); werr == nil {
		org.Balance = wallet.Balance()
	} else {
		l.log.Debug().Err(werr).Str("org_id", rec.OrgID).Msg("wallet detail failed, keeping embedded sub-total")
	}
	return org, nil
}

// apply installs a search outcome unless a newer query superseded it.
func (l *lookupUC) apply(gen uint64, org *model.Organization, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if gen != l.gen {
		l.log.Debug().Msg("discarding superseded search result")
		return
	}
	if err != nil {
		l.current = nil
		l.lastErr = err
		return
	}
	l.current = org
	l.lastErr = nil
}

func (l *lookupUC) Current() (*model.Organization, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.current == nil {
		return nil, l.lastErr
	}
	org := *l.current
	return &org, l.lastErr
}

func (l *lookupUC) Refresh(ctx context.Context, orgID string) {
	l.mu.Lock()
	cur := l.current
	l.mu.Unlock()
	if cur == nil || cur.OrgID != orgID {
		return
	}

	wallet, err := l.billing.ReadWallet(ctx, orgID)
	if err != nil {
		l.log.Warn().Err(err).Str("org_id", orgID).Msg("balance refresh failed")
		return
	}

	l.mu.Lock()
	if l.current != nil && l.current.OrgID == orgID {
		l.current.Balance = wallet.Balance()
	}
	l.mu.Unlock()
}

func (l *lookupUC) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.bumpLocked()
}

func (l *lookupUC) bumpLocked() uint64 {
	l.gen++
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	return l.gen
}

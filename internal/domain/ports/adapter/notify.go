package adapter

import "context"

// Notifier pushes settlement results to the sales-ops channel. Failures are
// logged, never propagated into the session flow.
type Notifier interface {
	NotifySettlement(ctx context.Context, orgName, txnCode string, amount int64, ok bool) error
}

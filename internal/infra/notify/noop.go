package notify

import (
	"context"

	"github.com/rs/zerolog"

	"salesops-console/internal/domain/ports/adapter"
)

var _ adapter.Notifier = (*NoopNotifier)(nil)

// NoopNotifier logs settlement results instead of posting to Telegram.
// Used in dev mode and whenever no bot token is configured.
type NoopNotifier struct {
	log *zerolog.Logger
}

func NewNoopNotifier(log *zerolog.Logger) *NoopNotifier {
	return &NoopNotifier{log: log}
}

func (n *NoopNotifier) NotifySettlement(ctx context.Context, orgName, txnCode string, amount int64, ok bool) error {
	n.log.Info().
		Str("org_name", orgName).
		Str("txn_code", txnCode).
		Int64("amount", amount).
		Bool("settled", ok).
		Msg("[noop-notify] settlement result")
	return nil
}

package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"salesops-console/internal/domain"
	"salesops-console/internal/domain/model"
	"salesops-console/internal/domain/ports/adapter"
	"salesops-console/internal/domain/ports/repository"
	"salesops-console/internal/infra/metrics"
)

// SessionSnapshot is the controller state plus the last settlement outcome
// observed for it. Outcome is Waiting for a fresh Pending session.
type SessionSnapshot struct {
	model.PaymentSessionState
	Outcome model.SettlementOutcome
}

// SessionEvent is one transition published to subscribed operator views.
type SessionEvent struct {
	SessionID string                  `json:"session_id"`
	Phase     model.SessionPhase      `json:"phase"`
	Outcome   model.SettlementOutcome `json:"outcome,omitempty"`
	At        time.Time               `json:"at"`
}

// BalanceRefresher re-fetches the active customer after a settlement so
// the displayed balance reflects the payment.
type BalanceRefresher interface {
	Refresh(ctx context.Context, orgID string)
}

// PaymentSessionController owns the idle/pending/success machine and the
// settlement watcher bound to the pending transaction. One controller, one
// active payment at a time.
type PaymentSessionController interface {
	// Initiate runs the transfer sequence and moves Idle to Pending.
	// Rejected with domain.ErrSessionBusy while a session is pending.
	// Initiation failures leave the prior state intact.
	Initiate(ctx context.Context, req *TransferRequest) (SessionSnapshot, error)

	// PurchaseDirect settles from wallet balance without entering Pending.
	PurchaseDirect(ctx context.Context, org *model.Organization, pkg *model.ServicePackage, months int, voucherCode string) error

	// Cancel closes a pending session locally. The remote transaction
	// stays live, so explicit confirmation is required.
	Cancel(ctx context.Context, confirmed bool) error

	// Reset returns to Idle from any state, dropping the descriptor.
	Reset(ctx context.Context)

	State() SessionSnapshot

	// Subscribe returns a feed of session transitions; the returned func
	// unsubscribes.
	Subscribe() (<-chan SessionEvent, func())

	Close()
}

var _ PaymentSessionController = (*sessionUC)(nil)

type sessionUC struct {
	initiator TransactionInitiator
	streams   adapter.SettlementStreamOpener
	audits    repository.PaymentAuditRepository // nil disables the trail
	notify    adapter.Notifier
	refresher BalanceRefresher
	log       *zerolog.Logger

	mu         sync.Mutex
	state      model.PaymentSessionState
	outcome    model.SettlementOutcome
	orgName    string
	initiating bool
	watcher    *settlementWatcher
	subs       map[chan SessionEvent]struct{}
}

func NewPaymentSessionController(
	initiator TransactionInitiator,
	streams adapter.SettlementStreamOpener,
	audits repository.PaymentAuditRepository,
	notify adapter.Notifier,
	refresher BalanceRefresher,
	logger *zerolog.Logger,
) PaymentSessionController {
	return &sessionUC{
		initiator: initiator,
		streams:   streams,
		audits:    audits,
		notify:    notify,
		refresher: refresher,
		log:       logger,
		state:     model.PaymentSessionState{Phase: model.PhaseIdle},
		outcome:   model.SettlementWaiting,
		subs:      map[chan SessionEvent]struct{}{},
	}
}

func (s *sessionUC) Initiate(ctx context.Context, req *TransferRequest) (SessionSnapshot, error) {
	s.mu.Lock()
	if s.state.Phase == model.PhasePending || s.initiating {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, domain.ErrSessionBusy
	}
	s.initiating = true
	s.mu.Unlock()

	// The network sequence runs outside the lock; its failure must not
	// touch the current state.
	desc, err := s.initiator.InitiateTransfer(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.initiating = false
	if err != nil {
		return s.snapshotLocked(), err
	}

	s.stopWatcherLocked()
	s.state = model.PaymentSessionState{
		ID:         ulid.Make().String(),
		Phase:      model.PhasePending,
		Descriptor: desc,
	}
	s.outcome = model.SettlementWaiting
	s.orgName = req.Org.Name

	s.recordAudit(ctx, &repository.PaymentAudit{
		SessionID: s.state.ID,
		OrgID:     desc.OrgID,
		TxnCode:   desc.Code,
		Amount:    desc.Amount,
		Package:   desc.PackageName,
		Status:    repository.AuditInitiated,
	})
	s.startWatcherLocked(desc)
	s.publishLocked()
	return s.snapshotLocked(), nil
}

func (s *sessionUC) PurchaseDirect(ctx context.Context, org *model.Organization, pkg *model.ServicePackage, months int, voucherCode string) error {
	s.mu.Lock()
	if s.state.Phase == model.PhasePending || s.initiating {
		s.mu.Unlock()
		return domain.ErrSessionBusy
	}
	s.mu.Unlock()

	if err := s.initiator.PurchaseDirect(ctx, org, pkg, months, voucherCode); err != nil {
		return err
	}

	s.recordAudit(ctx, &repository.PaymentAudit{
		SessionID: ulid.Make().String(),
		OrgID:     org.OrgID,
		Amount:    0,
		Package:   pkg.ID,
		Status:    repository.AuditPurchased,
	})
	if s.refresher != nil {
		s.refresher.Refresh(ctx, org.OrgID)
	}
	return nil
}

func (s *sessionUC) Cancel(ctx context.Context, confirmed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Phase != model.PhasePending {
		return nil
	}
	if !confirmed {
		return domain.ErrConfirmationRequired
	}

	s.stopWatcherLocked()
	s.log.Info().Str("session_id", s.state.ID).Str("txn_code", s.state.Descriptor.Code).
		Msg("pending payment closed by operator, remote transaction stays live")
	s.state = model.PaymentSessionState{Phase: model.PhaseIdle}
	s.outcome = model.SettlementWaiting
	s.publishLocked()
	return nil
}

func (s *sessionUC) Reset(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopWatcherLocked()
	s.state = model.PaymentSessionState{Phase: model.PhaseIdle}
	s.outcome = model.SettlementWaiting
	s.publishLocked()
}

func (s *sessionUC) State() SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *sessionUC) Subscribe() (<-chan SessionEvent, func()) {
	ch := make(chan SessionEvent, 16)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	return ch, func() {
		s.mu.Lock()
		if _, ok := s.subs[ch]; ok {
			delete(s.subs, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
}

func (s *sessionUC) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopWatcherLocked()
	for ch := range s.subs {
		delete(s.subs, ch)
		close(ch)
	}
}

func (s *sessionUC) snapshotLocked() SessionSnapshot {
	snap := SessionSnapshot{PaymentSessionState: s.state, Outcome: s.outcome}
	if s.state.Descriptor != nil {
		d := *s.state.Descriptor
		snap.Descriptor = &d
	}
	return snap
}

// publishLocked fans the current state out to subscribers. Slow consumers
// drop events rather than block the controller.
func (s *sessionUC) publishLocked() {
	ev := SessionEvent{
		SessionID: s.state.ID,
		Phase:     s.state.Phase,
		Outcome:   s.outcome,
		At:        time.Now(),
	}
	for ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (s *sessionUC) recordAudit(ctx context.Context, a *repository.PaymentAudit) {
	if s.audits == nil {
		return
	}
	if err := s.audits.Record(ctx, a); err != nil {
		s.log.Warn().Err(err).Str("session_id", a.SessionID).Msg("payment audit write failed")
	}
}

// settlementWatcher consumes one stream for one pending transaction. The
// terminal side effect fires at most once per subscription.
type settlementWatcher struct {
	stream adapter.SettlementStream
	once   sync.Once
}

func (w *settlementWatcher) close() {
	w.once.Do(func() { w.stream.Close() })
}

// startWatcherLocked opens the stream for the current descriptor and spawns
// the consumer. Callers hold s.mu and have already stopped any prior
// watcher.
func (s *sessionUC) startWatcherLocked(desc *model.TransactionDescriptor) {
	if s.streams == nil || desc.Code == "" {
		return
	}
	stream, err := s.streams.OpenSettlementStream(context.Background(), desc.Code)
	if err != nil {
		s.log.Error().Err(err).Str("txn_code", desc.Code).Msg("settlement stream open failed")
		return
	}
	w := &settlementWatcher{stream: stream}
	s.watcher = w
	sessionID := s.state.ID
	go s.watch(w, sessionID, desc.Code)
}

func (s *sessionUC) stopWatcherLocked() {
	if s.watcher != nil {
		s.watcher.close()
		s.watcher = nil
	}
}

func (s *sessionUC) watch(w *settlementWatcher, sessionID, txnCode string) {
	for ev := range w.stream.Events() {
		switch ev.Outcome {
		case model.SettlementSucceeded:
			s.observeSuccess(w, sessionID, txnCode)
			return
		case model.SettlementFailed, model.SettlementNotFound:
			s.observeFailure(w, sessionID, txnCode, ev.Outcome)
			return
		default:
			s.absorbMerchantTxn(sessionID, ev)
		}
	}
}

// observeSuccess drives Pending to Success. Guarded by the watcher's Once
// so a duplicate SUCCESS event can never re-trigger the refresh.
func (s *sessionUC) observeSuccess(w *settlementWatcher, sessionID, txnCode string) {
	fired := false
	w.once.Do(func() {
		fired = true
		w.stream.Close()
	})
	if !fired {
		return
	}

	s.mu.Lock()
	if s.state.ID != sessionID || s.state.Phase != model.PhasePending {
		s.mu.Unlock()
		return
	}
	s.state.Phase = model.PhaseSuccess
	s.outcome = model.SettlementSucceeded
	s.watcher = nil
	desc := s.state.Descriptor
	orgName := s.orgName
	s.publishLocked()
	s.mu.Unlock()

	metrics.IncSettlement("succeeded")
	s.log.Info().Str("session_id", sessionID).Str("txn_code", txnCode).Msg("settlement confirmed")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if s.audits != nil {
		if err := s.audits.UpdateStatus(ctx, sessionID, repository.AuditSettled); err != nil {
			s.log.Warn().Err(err).Str("session_id", sessionID).Msg("audit status update failed")
		}
	}
	if s.notify != nil {
		if err := s.notify.NotifySettlement(ctx, orgName, txnCode, desc.Amount, true); err != nil {
			s.log.Warn().Err(err).Msg("settlement notification failed")
		}
	}
	if s.refresher != nil {
		s.refresher.Refresh(ctx, desc.OrgID)
	}
}

func (s *sessionUC) observeFailure(w *settlementWatcher, sessionID, txnCode string, outcome model.SettlementOutcome) {
	w.close()

	s.mu.Lock()
	if s.state.ID != sessionID || s.state.Phase != model.PhasePending {
		s.mu.Unlock()
		return
	}
	s.outcome = outcome
	s.watcher = nil
	desc := s.state.Descriptor
	orgName := s.orgName
	s.publishLocked()
	s.mu.Unlock()

	metrics.IncSettlement(string(outcome))
	s.log.Warn().Str("session_id", sessionID).Str("txn_code", txnCode).
		Str("outcome", string(outcome)).Msg("settlement did not complete")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if s.audits != nil {
		if err := s.audits.UpdateStatus(ctx, sessionID, repository.AuditFailed); err != nil {
			s.log.Warn().Err(err).Str("session_id", sessionID).Msg("audit status update failed")
		}
	}
	if s.notify != nil && outcome == model.SettlementFailed {
		if err := s.notify.NotifySettlement(ctx, orgName, txnCode, desc.Amount, false); err != nil {
			s.log.Warn().Err(err).Msg("settlement notification failed")
		}
	}
}

// absorbMerchantTxn backfills descriptor content from a waiting event.
// Settlement events carry the merchant transaction's QR and receiver, so a
// session whose QR generation failed can still render a full view.
func (s *sessionUC) absorbMerchantTxn(sessionID string, ev adapter.SettlementEvent) {
	if ev.QRPayload == "" && ev.Receiver == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.ID != sessionID || s.state.Phase != model.PhasePending || s.state.Descriptor == nil {
		return
	}
	changed := false
	if ev.QRPayload != "" && s.state.Descriptor.QRPayload == "" {
		s.state.Descriptor.QRPayload = ev.QRPayload
		changed = true
	}
	if ev.Receiver != nil && s.state.Descriptor.Bank.AccountNumber == "" {
		s.state.Descriptor.Bank = *ev.Receiver
		changed = true
	}
	if changed {
		s.publishLocked()
	}
}

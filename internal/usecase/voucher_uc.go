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

const voucherDebounce = 300 * time.Millisecond

// VoucherValidator tracks one promo-code entry. Any input change clears the
// verified state immediately (the fail-safe default is "not discounted")
// and schedules a debounced verify; only the most recent input's response
// may land.
type VoucherValidator interface {
	// Update records a new code/amount pair and arms the debounce timer.
	// Empty code or non-positive amount short-circuits locally.
	Update(code string, amount int64, orgID, userID string)

	// VerifyNow skips the debounce and verifies synchronously. It still
	// participates in the generation discipline, so a concurrent Update
	// supersedes its result.
	VerifyNow(ctx context.Context, code string, amount int64, orgID, userID string) (model.VoucherState, error)

	// State returns the current snapshot.
	State() model.VoucherState

	// CanSubmit is false while a non-empty code is unverified or a verify
	// is still in flight.
	CanSubmit() bool

	// Reset drops the code and any pending verification. Used on tab or
	// customer change.
	Reset()

	Close()
}

var _ VoucherValidator = (*voucherUC)(nil)

type voucherUC struct {
	billing  adapter.BillingGateway
	log      *zerolog.Logger
	debounce time.Duration

	mu      sync.Mutex
	state   model.VoucherState
	gen     uint64
	pending bool
	timer   *time.Timer
}

func NewVoucherValidator(billing adapter.BillingGateway, logger *zerolog.Logger) VoucherValidator {
	return &voucherUC{
		billing:  billing,
		log:      logger,
		debounce: voucherDebounce,
	}
}

func (v *voucherUC) Update(code string, amount int64, orgID, userID string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	gen := v.bumpLocked()
	v.state = model.VoucherState{Code: code, Status: model.VoucherUnverified}
	if code == "" || amount <= 0 {
		return
	}

	v.pending = true
	v.timer = time.AfterFunc(v.debounce, func() {
		v.verify(gen, code, amount, orgID, userID)
	})
}

func (v *voucherUC) VerifyNow(ctx context.Context, code string, amount int64, orgID, userID string) (model.VoucherState, error) {
	v.mu.Lock()
	gen := v.bumpLocked()
	v.state = model.VoucherState{Code: code, Status: model.VoucherUnverified}
	if code == "" || amount <= 0 {
		st := v.state
		v.mu.Unlock()
		return st, nil
	}
	v.pending = true
	v.mu.Unlock()

	res, err := v.billing.VerifyVoucher(ctx, orgID, code, amount, userID)
	st := v.apply(gen, code, res, err)
	if err != nil {
		return st, err
	}
	if st.Status == model.VoucherInvalid {
		return st, domain.ErrVoucherInvalid
	}
	return st, nil
}

func (v *voucherUC) verify(gen uint64, code string, amount int64, orgID, userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	res, err := v.billing.VerifyVoucher(ctx, orgID, code, amount, userID)
	v.apply(gen, code, res, err)
}

// apply folds a verify response into state, unless a newer input
// superseded the request while it was in flight.
func (v *voucherUC) apply(gen uint64, code string, res *adapter.VoucherVerification, err error) model.VoucherState {
	v.mu.Lock()
	defer v.mu.Unlock()

	if gen != v.gen {
		v.log.Debug().Str("voucher_code", code).Msg("discarding superseded voucher verification")
		return v.state
	}
	v.pending = false

	switch {
	case err != nil:
		v.state = model.VoucherState{Code: code, Status: model.VoucherInvalid}
		metrics.IncVoucherCheck("error")
		v.log.Warn().Err(err).Str("voucher_code", code).Msg("voucher verification failed")
	case res.IsVerify:
		v.state = model.VoucherState{
			Code:             code,
			Status:           model.VoucherValid,
			OriginAmount:     res.OriginAmount,
			DiscountedAmount: res.Amount,
		}
		metrics.IncVoucherCheck("valid")
	default:
		v.state = model.VoucherState{Code: code, Status: model.VoucherInvalid}
		metrics.IncVoucherCheck("invalid")
	}
	return v.state
}

func (v *voucherUC) State() model.VoucherState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

func (v *voucherUC) CanSubmit() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return !v.pending && !v.state.BlocksSubmit()
}

func (v *voucherUC) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.bumpLocked()
	v.state = model.VoucherState{}
}

func (v *voucherUC) Close() {
	v.Reset()
}

// bumpLocked invalidates any in-flight request and cancels an armed timer.
// Callers hold v.mu.
func (v *voucherUC) bumpLocked() uint64 {
	v.gen++
	v.pending = false
	if v.timer != nil {
		v.timer.Stop()
		v.timer = nil
	}
	return v.gen
}

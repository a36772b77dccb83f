package model

type VoucherStatus string

const (
	VoucherUnverified VoucherStatus = "unverified"
	VoucherValid      VoucherStatus = "valid"
	VoucherInvalid    VoucherStatus = "invalid"
)

// VoucherState is the snapshot of a promo-code verification. A Valid state
// is bound to exactly the code string and base amount that produced it; any
// change to either resets the state to unverified before a new network
// result can land.
type VoucherState struct {
	Code             string
	Status           VoucherStatus
	OriginAmount     int64
	DiscountedAmount int64
}

// Discounted returns the discounted total when the voucher is valid,
// nil otherwise.
func (v VoucherState) Discounted() *int64 {
	if v.Status != VoucherValid {
		return nil
	}
	d := v.DiscountedAmount
	return &d
}

// BlocksSubmit reports whether the submit action must stay disabled: a
// non-empty code that is not in the verified state gates both top-up and
// package purchase.
func (v VoucherState) BlocksSubmit() bool {
	return v.Code != "" && v.Status != VoucherValid
}

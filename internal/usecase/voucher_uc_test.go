//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"salesops-console/internal/domain"
	"salesops-console/internal/domain/model"
	"salesops-console/internal/domain/ports/adapter"
	"salesops-console/internal/usecase"
)

func TestVoucherValidator_VerifyNow(t *testing.T) {
	ctx := context.Background()

	t.Run("valid code binds the discounted total", func(t *testing.T) {
		gw := &MockBillingGateway{
			VerifyVoucherFunc: func(_ context.Context, _, code string, amount int64, _ string) (*adapter.VoucherVerification, error) {
				return &adapter.VoucherVerification{IsVerify: true, OriginAmount: amount, Amount: 10_000_000}, nil
			},
		}
		v := usecase.NewVoucherValidator(gw, newTestLogger())
		defer v.Close()

		st, err := v.VerifyNow(ctx, "SAVE20", 13_000_000, "org-1", "user-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if st.Status != model.VoucherValid {
			t.Fatalf("want valid, got %s", st.Status)
		}
		if d := st.Discounted(); d == nil || *d != 10_000_000 {
			t.Fatalf("want discounted 10000000, got %v", d)
		}
		if !v.CanSubmit() {
			t.Fatal("verified voucher must not block submit")
		}
	})

	t.Run("rejected code surfaces ErrVoucherInvalid and blocks submit", func(t *testing.T) {
		gw := &MockBillingGateway{
			VerifyVoucherFunc: func(_ context.Context, _, _ string, _ int64, _ string) (*adapter.VoucherVerification, error) {
				return &adapter.VoucherVerification{IsVerify: false}, nil
			},
		}
		v := usecase.NewVoucherValidator(gw, newTestLogger())
		defer v.Close()

		st, err := v.VerifyNow(ctx, "NOPE", 1_000_000, "org-1", "user-1")
		if !errors.Is(err, domain.ErrVoucherInvalid) {
			t.Fatalf("want ErrVoucherInvalid, got %v", err)
		}
		if st.Status != model.VoucherInvalid {
			t.Fatalf("want invalid, got %s", st.Status)
		}
		if v.CanSubmit() {
			t.Fatal("invalid non-empty code must block submit")
		}
		if st.Discounted() != nil {
			t.Fatal("invalid voucher must not carry a discount")
		}
	})

	t.Run("transport failure clears the discount", func(t *testing.T) {
		gw := &MockBillingGateway{
			VerifyVoucherFunc: func(_ context.Context, _, _ string, _ int64, _ string) (*adapter.VoucherVerification, error) {
				return nil, domain.ErrUpstream
			},
		}
		v := usecase.NewVoucherValidator(gw, newTestLogger())
		defer v.Close()

		st, err := v.VerifyNow(ctx, "SAVE20", 1_000_000, "org-1", "user-1")
		if err == nil {
			t.Fatal("want error")
		}
		if st.Status != model.VoucherInvalid {
			t.Fatalf("want invalid, got %s", st.Status)
		}
	})

	t.Run("empty code short-circuits without a call", func(t *testing.T) {
		called := false
		gw := &MockBillingGateway{
			VerifyVoucherFunc: func(_ context.Context, _, _ string, _ int64, _ string) (*adapter.VoucherVerification, error) {
				called = true
				return nil, nil
			},
		}
		v := usecase.NewVoucherValidator(gw, newTestLogger())
		defer v.Close()

		st, err := v.VerifyNow(ctx, "", 1_000_000, "org-1", "user-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if called {
			t.Fatal("backend must not be called for empty code")
		}
		if st.Status != model.VoucherUnverified || !v.CanSubmit() {
			t.Fatal("empty code must be submittable, unverified")
		}
	})
}

func TestVoucherValidator_InputChangeResetsBeforeReverify(t *testing.T) {
	ctx := context.Background()
	gw := &MockBillingGateway{
		VerifyVoucherFunc: func(_ context.Context, _, code string, amount int64, _ string) (*adapter.VoucherVerification, error) {
			return &adapter.VoucherVerification{IsVerify: true, OriginAmount: amount, Amount: amount - 1}, nil
		},
	}
	v := usecase.NewVoucherValidator(gw, newTestLogger())
	defer v.Close()

	if _, err := v.VerifyNow(ctx, "SAVE20", 13_000_000, "org-1", "user-1"); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if v.State().Status != model.VoucherValid {
		t.Fatal("precondition: voucher verified")
	}

	// A new amount clears the verified flag immediately, before any new
	// network result lands.
	v.Update("SAVE20", 9_000_000, "org-1", "user-1")
	if st := v.State(); st.Status != model.VoucherUnverified {
		t.Fatalf("want unverified right after input change, got %s", st.Status)
	}
	if v.CanSubmit() {
		t.Fatal("in-flight verification must block submit")
	}
}

func TestVoucherValidator_DebounceAndSupersede(t *testing.T) {
	var calls int32
	gw := &MockBillingGateway{
		VerifyVoucherFunc: func(_ context.Context, _, code string, amount int64, _ string) (*adapter.VoucherVerification, error) {
			atomic.AddInt32(&calls, 1)
			return &adapter.VoucherVerification{IsVerify: true, OriginAmount: amount, Amount: amount / 2}, nil
		},
	}
	v := usecase.NewVoucherValidator(gw, newTestLogger())
	defer v.Close()

	// Two keystrokes inside the debounce window: only the second issues
	// a verify.
	v.Update("SA", 1_000_000, "org-1", "user-1")
	time.Sleep(50 * time.Millisecond)
	v.Update("SAVE20", 1_000_000, "org-1", "user-1")

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if st := v.State(); st.Status == model.VoucherValid {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	st := v.State()
	if st.Status != model.VoucherValid {
		t.Fatalf("want valid after debounce, got %s", st.Status)
	}
	if st.Code != "SAVE20" {
		t.Fatalf("valid state bound to %q, want SAVE20", st.Code)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("want exactly one verify call, got %d", n)
	}
}

func TestVoucherValidator_StaleResultDiscarded(t *testing.T) {
	release := make(chan struct{})
	gw := &MockBillingGateway{
		VerifyVoucherFunc: func(_ context.Context, _, code string, amount int64, _ string) (*adapter.VoucherVerification, error) {
			if code == "SLOW" {
				<-release
			}
			return &adapter.VoucherVerification{IsVerify: true, OriginAmount: amount, Amount: 111}, nil
		},
	}
	v := usecase.NewVoucherValidator(gw, newTestLogger())
	defer v.Close()

	go func() {
		_, _ = v.VerifyNow(context.Background(), "SLOW", 1_000_000, "org-1", "user-1")
	}()
	time.Sleep(20 * time.Millisecond)

	// The operator cleared the code while SLOW was in flight.
	v.Update("", 1_000_000, "org-1", "user-1")
	close(release)
	time.Sleep(50 * time.Millisecond)

	if st := v.State(); st.Status == model.VoucherValid {
		t.Fatal("superseded verification must not set the valid state")
	}
}

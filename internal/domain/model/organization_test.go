//go:build !integration

package model_test

import (
	"testing"

	"salesops-console/internal/domain/model"
)

func TestMemberRef(t *testing.T) {
	m := &model.Member{UserID: "u-1", AliasCode: "AL-7"}
	if m.Ref() != "AL-7" {
		t.Fatalf("want alias code, got %q", m.Ref())
	}
	m.AliasCode = ""
	if m.Ref() != "u-1" {
		t.Fatalf("want user id fallback, got %q", m.Ref())
	}
	var nilMember *model.Member
	if nilMember.Ref() != "" {
		t.Fatal("nil member ref must be empty")
	}
}

func TestDefaultMember(t *testing.T) {
	admin := &model.Member{UserID: "u-admin", Role: "ADMIN"}
	plain := &model.Member{UserID: "u-plain"}
	orgUser := &model.Member{UserID: "u-owner"}
	owner := &model.Member{UserID: "u-owner"}

	t.Run("org user match wins", func(t *testing.T) {
		got := model.DefaultMember([]*model.Member{plain, admin, owner}, orgUser)
		if got != owner {
			t.Fatalf("want the org's own user, got %+v", got)
		}
	})

	t.Run("first admin when the org user is absent", func(t *testing.T) {
		got := model.DefaultMember([]*model.Member{plain, admin}, orgUser)
		if got != admin {
			t.Fatalf("want the admin, got %+v", got)
		}
	})

	t.Run("first member as the last resort", func(t *testing.T) {
		got := model.DefaultMember([]*model.Member{plain}, nil)
		if got != plain {
			t.Fatalf("want the first member, got %+v", got)
		}
	})

	t.Run("empty list yields nil", func(t *testing.T) {
		if got := model.DefaultMember(nil, orgUser); got != nil {
			t.Fatalf("want nil, got %+v", got)
		}
	})
}

func TestVoucherState(t *testing.T) {
	t.Run("only valid vouchers carry a discount", func(t *testing.T) {
		st := model.VoucherState{Code: "SAVE", Status: model.VoucherValid, DiscountedAmount: 10}
		if d := st.Discounted(); d == nil || *d != 10 {
			t.Fatalf("want discount 10, got %v", d)
		}
		st.Status = model.VoucherInvalid
		if st.Discounted() != nil {
			t.Fatal("invalid voucher must not discount")
		}
	})

	t.Run("non-empty unverified code blocks submit", func(t *testing.T) {
		if (model.VoucherState{}).BlocksSubmit() {
			t.Fatal("empty code must not block")
		}
		if !(model.VoucherState{Code: "SAVE", Status: model.VoucherUnverified}).BlocksSubmit() {
			t.Fatal("unverified non-empty code must block")
		}
		if (model.VoucherState{Code: "SAVE", Status: model.VoucherValid}).BlocksSubmit() {
			t.Fatal("verified code must not block")
		}
	})
}

func TestTransactionDescriptorReference(t *testing.T) {
	d := &model.TransactionDescriptor{Code: "TXN-1"}
	if d.Reference() != "TXN-1" {
		t.Fatalf("want code reference, got %q", d.Reference())
	}
	d.QRPayload = "qr-data"
	if d.Reference() != "qr-data" {
		t.Fatalf("qr payload takes precedence, got %q", d.Reference())
	}
}

//go:build !integration

package usecase_test

import (
	"testing"

	"salesops-console/internal/domain/model"
	"salesops-console/internal/usecase"
)

func pkgWithDuration(price, durationMs int64) *model.ServicePackage {
	return &model.ServicePackage{ID: "pro", Name: "Pro", Price: price, DurationMs: durationMs}
}

func TestNormalizedMonthlyPrice(t *testing.T) {
	t.Run("unlimited duration keeps the listed price", func(t *testing.T) {
		pkg := pkgWithDuration(1_500_000, model.DurationUnlimited)
		if got := usecase.NormalizedMonthlyPrice(pkg); got != 1_500_000 {
			t.Fatalf("want 1500000, got %d", got)
		}
	})

	t.Run("twelve month term divides down", func(t *testing.T) {
		pkg := pkgWithDuration(18_000_000, 12*usecase.MonthMs)
		if got := usecase.NormalizedMonthlyPrice(pkg); got != 1_500_000 {
			t.Fatalf("want 1500000, got %d", got)
		}
	})

	t.Run("duration shorter than a month floors at one", func(t *testing.T) {
		pkg := pkgWithDuration(900_000, usecase.MonthMs/4)
		if got := usecase.NormalizedMonthlyPrice(pkg); got != 900_000 {
			t.Fatalf("want 900000, got %d", got)
		}
	})

	t.Run("division rounds half up", func(t *testing.T) {
		pkg := pkgWithDuration(1_000_003, 2*usecase.MonthMs)
		if got := usecase.NormalizedMonthlyPrice(pkg); got != 500_002 {
			t.Fatalf("want 500002, got %d", got)
		}
	})
}

func TestTotalPrice(t *testing.T) {
	pkg := pkgWithDuration(1_500_000, model.DurationUnlimited)

	t.Run("scales with months", func(t *testing.T) {
		if got := usecase.TotalPrice(pkg, 12); got != 18_000_000 {
			t.Fatalf("want 18000000, got %d", got)
		}
	})

	t.Run("full term of an uneven package matches the catalog price", func(t *testing.T) {
		uneven := pkgWithDuration(1_000_000, 12*usecase.MonthMs)
		if got := usecase.TotalPrice(uneven, 12); got != 1_000_000 {
			t.Fatalf("want 1000000, got %d", got)
		}
	})

	t.Run("partial term rounds once on the final amount", func(t *testing.T) {
		uneven := pkgWithDuration(1_000_000, 12*usecase.MonthMs)
		// 1_000_000 * 7 / 12 = 583_333.33, rounded half up.
		if got := usecase.TotalPrice(uneven, 7); got != 583_333 {
			t.Fatalf("want 583333, got %d", got)
		}
	})

	t.Run("monotonic non-decreasing in months", func(t *testing.T) {
		prev := int64(0)
		for m := 1; m <= 36; m++ {
			cur := usecase.TotalPrice(pkg, m)
			if cur < prev {
				t.Fatalf("total decreased at %d months: %d < %d", m, cur, prev)
			}
			prev = cur
		}
	})
}

func TestAmountDue(t *testing.T) {
	t.Run("balance below total leaves the difference", func(t *testing.T) {
		if got := usecase.AmountDue(18_000_000, 5_000_000, nil); got != 13_000_000 {
			t.Fatalf("want 13000000, got %d", got)
		}
	})

	t.Run("balance at or above total is zero", func(t *testing.T) {
		if got := usecase.AmountDue(18_000_000, 20_000_000, nil); got != 0 {
			t.Fatalf("want 0, got %d", got)
		}
		if got := usecase.AmountDue(18_000_000, 18_000_000, nil); got != 0 {
			t.Fatalf("want 0, got %d", got)
		}
	})

	t.Run("discounted total takes precedence", func(t *testing.T) {
		discounted := int64(10_000_000)
		if got := usecase.AmountDue(13_000_000, 5_000_000, &discounted); got != 5_000_000 {
			t.Fatalf("want 5000000, got %d", got)
		}
	})
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"500.000", 500_000, false},
		{"1,250,000", 1_250_000, false},
		{" 42 ", 42, false},
		{"", 0, true},
		{"...", 0, true},
		{"12x", 0, true},
	}
	for _, c := range cases {
		got, err := usecase.ParseAmount(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("ParseAmount(%q): want error", c.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseAmount(%q): %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("ParseAmount(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

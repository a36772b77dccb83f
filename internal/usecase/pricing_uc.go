package usecase

import (
	"strings"

	"salesops-console/internal/domain"
	"salesops-console/internal/domain/model"
)

// MonthMs is the nominal 30-day month used by the billing catalog. Package
// durations are expressed as multiples of it; calendar months are not.
const MonthMs int64 = 30 * 24 * 60 * 60 * 1000

// NormalizedMonthlyPrice returns the per-month price of a catalog package.
// Packages with a finite duration list the price for the whole term, so it
// is divided down by the number of nominal months (floored at 1). Packages
// at the unlimited sentinel already carry a monthly price.
func NormalizedMonthlyPrice(pkg *model.ServicePackage) int64 {
	if pkg == nil {
		return 0
	}
	if pkg.DurationMs >= model.DurationUnlimited {
		return pkg.Price
	}
	return roundDiv(pkg.Price, termMonths(pkg))
}

// TotalPrice is the price of a package over the chosen number of months.
// Rounding happens once on the final amount, so buying the full term costs
// exactly the catalog price; multiplying a pre-rounded monthly figure
// would drift by a few units on durations that do not divide evenly.
func TotalPrice(pkg *model.ServicePackage, months int) int64 {
	if pkg == nil || months <= 0 {
		return 0
	}
	if pkg.DurationMs >= model.DurationUnlimited {
		return pkg.Price * int64(months)
	}
	return roundDiv(pkg.Price*int64(months), termMonths(pkg))
}

// termMonths is the package term in nominal months, floored at 1.
func termMonths(pkg *model.ServicePackage) int64 {
	months := roundDiv(pkg.DurationMs, MonthMs)
	if months < 1 {
		months = 1
	}
	return months
}

// AmountDue is what must still be collected after the wallet balance is
// applied. A valid voucher's discounted total takes precedence over the
// list total. Zero means the wallet alone covers the purchase.
func AmountDue(total, balance int64, discounted *int64) int64 {
	price := total
	if discounted != nil {
		price = *discounted
	}
	need := price - balance
	if need < 0 {
		return 0
	}
	return need
}

// roundDiv divides with round-half-up semantics. Truncation drifts against
// the amounts the billing backend computes.
func roundDiv(a, b int64) int64 {
	if b == 0 {
		return 0
	}
	return (a + b/2) / b
}

// ParseAmount turns operator free-text into an integer amount. Dots and
// commas are thousands separators here ("500.000" is five hundred
// thousand), never decimal points.
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, domain.ErrInvalidArgument
	}
	var n int64
	seen := false
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			n = n*10 + int64(r-'0')
			seen = true
		case r == '.' || r == ',' || r == ' ':
			// separator
		default:
			return 0, domain.ErrInvalidArgument
		}
	}
	if !seen {
		return 0, domain.ErrInvalidArgument
	}
	return n, nil
}

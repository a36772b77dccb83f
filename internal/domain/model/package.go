package model

import "salesops-console/internal/domain"

// DurationUnlimited is the catalog sentinel for packages without a fixed
// term. Any duration at or above it is treated as "price is already
// per-month".
const DurationUnlimited int64 = 1<<62 - 1

// ServicePackage is an immutable catalog entry loaded once from config.
// Price is the base monthly price in VND; DurationMs, when set below the
// unlimited sentinel, is the nominal term the listed price covers.
type ServicePackage struct {
	ID         string
	Name       string
	Price      int64
	DurationMs int64
}

func (p *ServicePackage) IsZero() bool { return p == nil || p.ID == "" }

// NewServicePackage validates and constructs a catalog entry.
func NewServicePackage(id, name string, price, durationMs int64) (*ServicePackage, error) {
	if id == "" || name == "" || price <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	if durationMs <= 0 {
		durationMs = DurationUnlimited
	}
	return &ServicePackage{ID: id, Name: name, Price: price, DurationMs: durationMs}, nil
}

// DurationOption is a selectable term in months.
type DurationOption struct {
	Months int
	Label  string
}

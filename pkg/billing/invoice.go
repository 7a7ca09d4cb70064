package billing

import (
	"github.com/matrizhq/cobrador/pkg/tenants"
)

// ComputeInvoice prices a responsible tenant's aggregated seat counts.
//
// The regular and admin tiers are priced against independent free allowances:
// the admin allowance is never reduced by regular seats and vice versa. The
// base fee is charged even at zero seats.
func ComputeInvoice(counts tenants.SeatCounts, pricing Pricing) (Invoice, error) {
	if counts.Regular < 0 {
		return Invoice{}, &tenants.ValidationError{Field: "regular", Reason: "seat count must not be negative"}
	}
	if counts.Admin < 0 {
		return Invoice{}, &tenants.ValidationError{Field: "admin", Reason: "seat count must not be negative"}
	}

	regular := tierLine(counts.Regular, pricing.FreeRegularSeats, pricing.RegularSeatCents)
	admin := tierLine(counts.Admin, pricing.FreeAdminSeats, pricing.AdminSeatCents)

	return Invoice{
		BaseFeeCents: pricing.BaseFeeCents,
		Regular:      regular,
		Admin:        admin,
		TotalCents:   pricing.BaseFeeCents + regular.SubtotalCents + admin.SubtotalCents,
	}, nil
}

func tierLine(count, freeAllowance int, unitPriceCents int64) InvoiceLine {
	overage := count - freeAllowance
	if overage < 0 {
		overage = 0
	}
	return InvoiceLine{
		Count:           count,
		FreeAllowance:   freeAllowance,
		BillableOverage: overage,
		UnitPriceCents:  unitPriceCents,
		SubtotalCents:   int64(overage) * unitPriceCents,
	}
}

package leave

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Annual entitlement tiers by employment tenure (Turkish labor law
// schedule inherited from the product requirements).
const (
	entitlementJunior = 14 // 1 <= tenure < 5
	entitlementMid    = 20 // 5 <= tenure < 15
	entitlementSenior = 26 // tenure >= 15
)

// Seeded per-category defaults for a freshly materialized balance year.
const (
	defaultSickLeave      = 5
	defaultPersonalLeave  = 3
	defaultPaternityLeave = 5
	defaultMaternityLeave = 112
	defaultMarriageLeave  = 3
	defaultDeathLeave     = 3
)

// EntitlementForTenure maps whole-year tenure to annual leave days.
// Under one full year there is no entitlement and no balance row.
func EntitlementForTenure(tenureYears int) int {
	switch {
	case tenureYears >= 15:
		return entitlementSenior
	case tenureYears >= 5:
		return entitlementMid
	case tenureYears >= 1:
		return entitlementJunior
	default:
		return 0
	}
}

// TenureYears is the whole-calendar-year difference, not anniversary
// precise: an employee hired in December counts a full year the next
// January. Kept as-is from the product's accrual rules.
func TenureYears(startDate time.Time, now time.Time) int {
	return now.Year() - startDate.Year()
}

func newYearBalance(userID uuid.UUID, year, entitlement int) *LeaveBalance {
	return &LeaveBalance{
		UserID:         userID,
		Year:           year,
		AnnualLeave:    entitlement,
		SickLeave:      defaultSickLeave,
		PersonalLeave:  defaultPersonalLeave,
		PaternityLeave: defaultPaternityLeave,
		MaternityLeave: defaultMaternityLeave,
		MarriageLeave:  defaultMarriageLeave,
		DeathLeave:     defaultDeathLeave,
	}
}

// balanceColumns maps the request's category tag to the balance column a
// deduction lands on. Tags outside this table deduct nothing.
var balanceColumns = map[string]string{
	"annual":    "annual_leave",
	"sick":      "sick_leave",
	"personal":  "personal_leave",
	"paternity": "paternity_leave",
	"maternity": "maternity_leave",
	"marriage":  "marriage_leave",
	"death":     "death_leave",
}

// DeductionDays rounds a fractional day count up to whole days, since
// balance columns are integers: 0.5 requested days cost a full day.
func DeductionDays(days float64) int {
	return int(math.Ceil(days))
}

// fallbackBalance is what a balance read answers when no row exists and
// the accrual check did not create one (e.g. tenure under one year).
func fallbackBalance() BalanceResponse {
	return BalanceResponse{
		Annual:    0,
		Sick:      0,
		Personal:  0,
		Paternity: defaultPaternityLeave,
		Maternity: defaultMaternityLeave,
		Marriage:  defaultMarriageLeave,
		Death:     defaultDeathLeave,
	}
}

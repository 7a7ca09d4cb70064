package billing

import (
	"time"

	"github.com/matrizhq/cobrador/pkg/tenants"
)

const (
	// GraceDays is the window after the due date during which access stays
	// open while the tenant is dunned out of band.
	GraceDays = 10

	// trialEndingDays is the tail of the trial that escalates to TRIAL_ENDING
	trialEndingDays = 3

	// trialAlertDays is how early the trial banner starts showing
	trialAlertDays = 7

	// dueSoonDays is how close to the due date the pre-due warning starts
	dueSoonDays = 3
)

// Evaluate derives the billing status of the responsible tenant at the given
// instant. It is a pure function: it reads the tenant's clock fields and
// writes nothing.
//
// Priority order: manual block, billing disabled (exempt), active trial,
// lapsed trial without any payment, then the subscription cycle.
func Evaluate(t *tenants.Tenant, now time.Time) Status {
	if t.ManualStatus == tenants.ManualStatusBlocked {
		// The suspension banner still shows the next due date, so the block
		// reports the subscription cycle regardless of the trial clock.
		dueAt := anchoredDueDate(t)
		return newStatus(PhaseSubscription, CodeManualBlock, true, &dueAt, 0, false, false)
	}

	if !t.BillingEnabled {
		// Internal and exempt accounts are permanently in good standing.
		return newStatus(PhaseSubscription, CodePaid, false, nil, 0, true, false)
	}

	if t.PaidUntil == nil && t.TrialUntil != nil {
		if !now.After(*t.TrialUntil) {
			return trialStatus(t, now)
		}
		// Trial over and the tenant never paid: no grace applies.
		daysOver := ceilDays(now.Sub(*t.TrialUntil))
		return newStatus(PhaseTrial, CodeBlocked, true, t.TrialUntil, -daysOver, false, false)
	}

	return subscriptionStatus(t, now)
}

func trialStatus(t *tenants.Tenant, now time.Time) Status {
	daysLeft := ceilDays(t.TrialUntil.Sub(now))
	if daysLeft <= trialEndingDays {
		return newStatus(PhaseTrial, CodeTrialEnding, false, t.TrialUntil, daysLeft, false, true)
	}
	return newStatus(PhaseTrial, CodeTrialActive, false, t.TrialUntil, daysLeft, false, daysLeft <= trialAlertDays)
}

func subscriptionStatus(t *tenants.Tenant, now time.Time) Status {
	dueAt := anchoredDueDate(t)
	daysRemaining := floorDays(dueAt.Sub(now))

	if t.PaidUntil != nil && !now.After(*t.PaidUntil) {
		return newStatus(PhaseSubscription, CodePaid, false, &dueAt, daysRemaining, true, false)
	}

	if daysRemaining >= 0 {
		// Coverage lapsed but the next due date has not arrived yet.
		if daysRemaining <= dueSoonDays {
			return newStatus(PhaseSubscription, CodeDueSoon, false, &dueAt, daysRemaining, false, true)
		}
		return newStatus(PhaseSubscription, CodePaid, false, &dueAt, daysRemaining, false, false)
	}

	overdueDays := -daysRemaining
	if overdueDays <= GraceDays {
		return newStatus(PhaseSubscription, CodePastDue, false, &dueAt, daysRemaining, false, true)
	}
	return newStatus(PhaseSubscription, CodeBlocked, true, &dueAt, daysRemaining, false, false)
}

// NextDueDate returns the first occurrence of the tenant's due day on or
// after the anchor instant. The due day is clamped into 1..28 so that every
// month has the date.
func NextDueDate(anchor time.Time, dueDay int) time.Time {
	day := clampDueDay(dueDay)
	year, month, _ := anchor.Date()
	candidate := time.Date(year, month, day, 0, 0, 0, 0, anchor.Location())
	if candidate.Before(truncateToDay(anchor)) {
		candidate = candidate.AddDate(0, 1, 0)
	}
	return candidate
}

func clampDueDay(day int) int {
	if day < 1 || day > 28 {
		return 28
	}
	return day
}

func truncateToDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

// ceilDays rounds a duration up to whole days; any fraction of a day counts
// as a full day so a trial expiring tomorrow morning still reads "1 day left".
func ceilDays(d time.Duration) int {
	days := d / (24 * time.Hour)
	if d%(24*time.Hour) > 0 {
		days++
	}
	return int(days)
}

// floorDays rounds toward negative infinity so that any moment past the due
// day already counts as one day overdue.
func floorDays(d time.Duration) int {
	days := d / (24 * time.Hour)
	if d%(24*time.Hour) < 0 {
		days--
	}
	return int(days)
}

func newStatus(phase Phase, code Code, blocked bool, dueAt *time.Time, daysRemaining int, paidForCycle bool, showAlert bool) Status {
	return Status{
		Phase:               phase,
		Code:                code,
		Blocked:             blocked,
		DueAt:               dueAt,
		DaysRemaining:       daysRemaining,
		PaidForCurrentCycle: paidForCycle,
		Message:             statusMessages[code],
		ShowAlert:           showAlert,
	}
}

// anchoredDueDate picks the cycle anchor (last paid window end, falling back
// to the signup anchor) and projects the next due date from it.
func anchoredDueDate(t *tenants.Tenant) time.Time {
	anchor := t.BillingAnchorAt
	if t.PaidUntil != nil {
		anchor = *t.PaidUntil
	}
	return NextDueDate(anchor, t.DueDay)
}

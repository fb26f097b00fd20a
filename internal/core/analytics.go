package core

import (
	"errors"
	"time"
)

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
)

// Period selects an analytics window anchored to "now".
type Period string

var ErrInvalidPeriod = errors.New("invalid period")

// Summary is the flat aggregate the dashboard renders for one window.
type Summary struct {
	Period        Period
	WindowStart   time.Time
	WindowEnd     time.Time
	TotalInvoices int
	TotalAmount   Money
	PaidAmount    Money
	PendingAmount Money
	OverdueAmount Money
	// StatusBreakdown counts invoices per effective status. All four
	// statuses are always present, zero or not.
	StatusBreakdown map[Status]int
}

// ParsePeriod validates a period selector, defaulting empty to month.
func ParsePeriod(s string) (Period, error) {
	if s == "" {
		return PeriodMonth, nil
	}
	p := Period(s)
	switch p {
	case PeriodDay, PeriodWeek, PeriodMonth, PeriodYear:
		return p, nil
	}
	return "", ErrInvalidPeriod
}

// PeriodStart computes the window start for a period: day = start of
// today, week = now − 7 days, month = first of the current month,
// year = January 1 of the current year. The window end is always now.
func PeriodStart(p Period, now time.Time) time.Time {
	switch p {
	case PeriodDay:
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	case PeriodWeek:
		return now.Add(-7 * 24 * time.Hour)
	case PeriodYear:
		return time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location())
	default: // month
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	}
}

// Summarize aggregates invoices created in [PeriodStart(p, now), now]
// into a Summary. A pending invoice whose due date has passed is
// counted as overdue in the report without the stored record changing:
// the projection exists only on this read path, so a status-filtered
// list can legitimately disagree with the dashboard.
//
// An empty input yields an all-zero summary, not an error.
func Summarize(invoices []Invoice, p Period, now time.Time) Summary {
	start := PeriodStart(p, now)
	s := Summary{
		Period:      p,
		WindowStart: start,
		WindowEnd:   now,
		StatusBreakdown: map[Status]int{
			StatusPending:   0,
			StatusPaid:      0,
			StatusOverdue:   0,
			StatusCancelled: 0,
		},
	}

	for _, inv := range invoices {
		if inv.CreatedAt.Before(start) || inv.CreatedAt.After(now) {
			continue
		}
		s.TotalInvoices++
		s.TotalAmount.Cents += inv.Total.Cents

		switch inv.Status {
		case StatusPaid:
			s.StatusBreakdown[StatusPaid]++
			s.PaidAmount.Cents += inv.Total.Cents
		case StatusPending:
			// Pending past its due date reports as overdue. Invoices
			// already stored as overdue keep their amount out of both
			// buckets; only the derived ones move.
			if !inv.DueDate.IsZero() && inv.DueDate.Before(now) {
				s.StatusBreakdown[StatusOverdue]++
				s.OverdueAmount.Cents += inv.Total.Cents
			} else {
				s.StatusBreakdown[StatusPending]++
				s.PendingAmount.Cents += inv.Total.Cents
			}
		default:
			s.StatusBreakdown[inv.Status]++
		}
	}
	return s
}

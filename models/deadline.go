package models

import (
	"time"
)

// DeadlineKind names the source of a deadline
type DeadlineKind string

const (
	DeadlineOption          DeadlineKind = "option"
	DeadlineInspection      DeadlineKind = "inspection"
	DeadlineFinancing       DeadlineKind = "financing"
	DeadlineOfferExpiration DeadlineKind = "offerExpiration"
)

func (k DeadlineKind) Label() string {
	switch k {
	case DeadlineOption:
		return "Option period"
	case DeadlineInspection:
		return "Inspection"
	case DeadlineFinancing:
		return "Financing contingency"
	case DeadlineOfferExpiration:
		return "Offer expiration"
	default:
		return string(k)
	}
}

// Deadline is a dated obligation on an offer
type Deadline struct {
	Kind    DeadlineKind `json:"kind"`
	Date    time.Time    `json:"date"`
	Overdue bool         `json:"overdue"`
}

// Deadlines derives contingency deadlines from the revision's own creation
// instant. Periods that are not set produce no deadline.
func (r *OfferRevision) Deadlines() []Deadline {
	var out []Deadline
	add := func(kind DeadlineKind, days *int) {
		if days == nil {
			return
		}
		out = append(out, Deadline{Kind: kind, Date: r.CreatedAt.AddDate(0, 0, *days)})
	}
	add(DeadlineOption, r.OptionPeriodDays)
	add(DeadlineInspection, r.InspectionPeriodDays)
	add(DeadlineFinancing, r.FinancingContingencyDays)
	return out
}

// NextDeadline picks the earliest deadline that is not yet past. When every
// deadline is past it returns the earliest overdue one. It returns nil only
// when no deadline exists at all.
func NextDeadline(rev *OfferRevision, expiresAt *time.Time, now time.Time) *Deadline {
	var all []Deadline
	if rev != nil {
		all = rev.Deadlines()
	}
	if expiresAt != nil {
		all = append(all, Deadline{Kind: DeadlineOfferExpiration, Date: *expiresAt})
	}
	if len(all) == 0 {
		return nil
	}

	var upcoming, overdue *Deadline
	for i := range all {
		d := all[i]
		if d.Date.Before(now) {
			d.Overdue = true
			if overdue == nil || d.Date.Before(overdue.Date) {
				overdue = &d
			}
			continue
		}
		if upcoming == nil || d.Date.Before(upcoming.Date) {
			upcoming = &d
		}
	}
	if upcoming != nil {
		return upcoming
	}
	return overdue
}

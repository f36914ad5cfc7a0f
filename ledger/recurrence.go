/*
recurrence.go - Occurrence schedule computation

PURPOSE:
  Pure date math for recurrence templates: given a pattern and a start
  date, enumerate the occurrence dates that are due by some point in time.
  The Recurrence Generator (api/generator.go) turns each due occurrence
  into a materialized clone entry.

MONTH ARITHMETIC:
  Monthly, quarterly and yearly steps are computed from the START anchor,
  not by iterating month-to-month. Iterating would make the clamp sticky:
  Jan 31 -> Feb 28 -> Mar 28. Anchored arithmetic keeps the intended day:
  Jan 31 -> Feb 28 -> Mar 31.

BACKFILL:
  Occurrences enumerates every missed occurrence up to "until", clamped to
  the template's end date. A generator that was down for weeks emits all
  the occurrences it owes, not just the most recent one.
*/
package ledger

// OccurrenceAt returns the i-th occurrence (0-based, i=0 is the start date)
// of the recurrence schedule.
func (r Recurrence) OccurrenceAt(i int) Date {
	switch r.Pattern {
	case RecurDaily:
		return r.StartDate.AddDays(i)
	case RecurWeekly:
		return r.StartDate.AddDays(7 * i)
	case RecurMonthly:
		return r.StartDate.AddMonthsClamped(i)
	case RecurQuarterly:
		return r.StartDate.AddMonthsClamped(3 * i)
	case RecurYearly:
		return r.StartDate.AddYears(i)
	default:
		return r.StartDate
	}
}

// Occurrences enumerates every occurrence date due by "until", in ascending
// order. Dates past the recurrence end date are never emitted, even when
// "until" is later. An end date in the past still yields the occurrences
// it covers: they are owed regardless of when the generator runs.
func (r Recurrence) Occurrences(until Date) []Date {
	var due []Date
	for i := 0; ; i++ {
		occ := r.OccurrenceAt(i)
		if occ.After(until) {
			break
		}
		if r.EndDate != nil && occ.After(*r.EndDate) {
			break
		}
		due = append(due, occ)
	}
	return due
}

// Exhausted reports whether the schedule can produce no occurrence after
// "asOf" (end date reached). Open-ended schedules are never exhausted.
func (r Recurrence) Exhausted(asOf Date) bool {
	return r.EndDate != nil && r.EndDate.Before(asOf)
}

package cron

import "time"

// Recurrence throttles a rule whose cron fires more often than its interval, e.g. "every 3 days".
type Recurrence struct {
	Activated    bool  `json:"activated"`
	Index        int   `json:"index"`
	IntervalSize int   `json:"intervalSize,omitempty"`
	TypeInterval Field `json:"typeInterval,omitempty"`
}

// IntervalToRecurrence returns an activated recurrence for hour/day/week/month intervals above 1.
func IntervalToRecurrence(r Rule, index int) Recurrence {
	size := 0
	switch r.Field {
	case FieldHours:
		size = r.HoursInterval
	case FieldDays:
		size = r.DaysInterval
	case FieldWeeks:
		size = r.WeeksInterval
	case FieldMonths:
		size = r.MonthsInterval
	}
	if size <= 1 {
		return Recurrence{Index: index}
	}
	return Recurrence{Activated: true, Index: index, IntervalSize: size, TypeInterval: r.Field}
}

// RecurrenceCheck reports whether a fire at now should run, recording the fire in lastFires.
// lastFires maps recurrence index to the hour/day-of-year/week/month of the last run.
func RecurrenceCheck(rec Recurrence, lastFires map[int]int, now time.Time) bool {
	if !rec.Activated {
		return true
	}
	last, seen := lastFires[rec.Index]
	var current int
	switch rec.TypeInterval {
	case FieldHours:
		current = now.Hour()
		if !seen || current == (rec.IntervalSize+last)%24 {
			lastFires[rec.Index] = current
			return true
		}
	case FieldDays:
		current = now.YearDay()
		if !seen || current == (rec.IntervalSize+last)%365 {
			lastFires[rec.Index] = current
			return true
		}
	case FieldWeeks:
		_, current = now.ISOWeek()
		if !seen || current == (rec.IntervalSize+last)%52 || current == last {
			lastFires[rec.Index] = current
			return true
		}
	case FieldMonths:
		current = int(now.Month()) - 1
		if !seen || current == (rec.IntervalSize+last)%12 {
			lastFires[rec.Index] = current
			return true
		}
	}
	return false
}

package recurrence

import (
	"sort"
	"time"

	"github.com/teambition/rrule-go"
)

const dateLayout = "2006-01-02"

// Holidays is a set of civil dates excluded from resolution
type Holidays map[string]struct{}

// NewHolidays builds a holiday set from the given dates
func NewHolidays(dates ...time.Time) Holidays {
	h := make(Holidays, len(dates))
	for _, d := range dates {
		h.Add(d)
	}
	return h
}

// ParseHolidays builds a holiday set from YYYY-MM-DD strings
func ParseHolidays(dates []string) (Holidays, error) {
	h := make(Holidays, len(dates))
	for _, s := range dates {
		d, err := time.Parse(dateLayout, s)
		if err != nil {
			return nil, err
		}
		h.Add(d)
	}
	return h, nil
}

// Add inserts a date into the set
func (h Holidays) Add(d time.Time) {
	h[d.Format(dateLayout)] = struct{}{}
}

// Merge adds every date of other into h
func (h Holidays) Merge(other Holidays) {
	for k := range other {
		h[k] = struct{}{}
	}
}

// Contains reports whether the civil date of d is a holiday
func (h Holidays) Contains(d time.Time) bool {
	if h == nil {
		return false
	}
	_, ok := h[d.Format(dateLayout)]
	return ok
}

// CivilDate truncates t to midnight UTC of its calendar day
func CivilDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// IsWeekend reports whether d falls on Saturday or Sunday
func IsWeekend(d time.Time) bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// Resolve expands a pattern into the ordered business dates within
// [start, end] (both inclusive, compared as civil dates). Weekends and
// holidays are never emitted. Unrecognized patterns yield no dates.
func Resolve(p Pattern, start, end time.Time, holidays Holidays) []time.Time {
	start, end = CivilDate(start), CivilDate(end)
	if end.Before(start) {
		return nil
	}

	var candidates []time.Time
	switch p.Kind {
	case KindOrdinal:
		candidates = resolveOrdinal(p.Occurrence, p.Weekday, start, end)
	case KindRawWeekday:
		candidates = resolveRule(rrule.ROption{
			Freq:      rrule.WEEKLY,
			Byweekday: []rrule.Weekday{toRRuleWeekday(p.Weekday)},
		}, start, end)
	case KindFullCalendar:
		for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
			candidates = append(candidates, d)
		}
	case KindRRule:
		if p.rule != nil {
			candidates = resolveRule(*p.rule, start, end)
		}
	default:
		return nil
	}

	dates := make([]time.Time, 0, len(candidates))
	for _, d := range candidates {
		d = CivilDate(d)
		if d.Before(start) || d.After(end) {
			continue
		}
		if IsWeekend(d) || holidays.Contains(d) {
			continue
		}
		dates = append(dates, d)
	}
	return dates
}

// ResolveAll resolves every pattern and returns the sorted union of dates
func ResolveAll(patterns []Pattern, start, end time.Time, holidays Holidays) []time.Time {
	seen := make(map[string]time.Time)
	for _, p := range patterns {
		for _, d := range Resolve(p, start, end, holidays) {
			seen[d.Format(dateLayout)] = d
		}
	}

	dates := make([]time.Time, 0, len(seen))
	for _, d := range seen {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// resolveOrdinal finds the occurrence-th weekday of every month overlapping
// the range. A month where that day would exceed the month length (a fifth
// Monday that does not exist) contributes nothing.
func resolveOrdinal(occurrence int, weekday time.Weekday, start, end time.Time) []time.Time {
	if occurrence < 1 {
		return nil
	}

	var dates []time.Time
	month := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	for !month.After(end) {
		offset := (int(weekday) - int(month.Weekday()) + 7) % 7
		day := 1 + offset + (occurrence-1)*7
		if day <= daysInMonth(month) {
			dates = append(dates, time.Date(month.Year(), month.Month(), day, 0, 0, 0, 0, time.UTC))
		}
		month = month.AddDate(0, 1, 0)
	}
	return dates
}

func resolveRule(opt rrule.ROption, start, end time.Time) []time.Time {
	opt.Dtstart = start
	rule, err := rrule.NewRRule(opt)
	if err != nil {
		return nil
	}
	// end is a midnight; extend to cover the whole final day
	return rule.Between(start, end.AddDate(0, 0, 1).Add(-time.Nanosecond), true)
}

func daysInMonth(firstOfMonth time.Time) int {
	return firstOfMonth.AddDate(0, 1, -1).Day()
}

func toRRuleWeekday(w time.Weekday) rrule.Weekday {
	switch w {
	case time.Monday:
		return rrule.MO
	case time.Tuesday:
		return rrule.TU
	case time.Wednesday:
		return rrule.WE
	case time.Thursday:
		return rrule.TH
	case time.Friday:
		return rrule.FR
	case time.Saturday:
		return rrule.SA
	default:
		return rrule.SU
	}
}

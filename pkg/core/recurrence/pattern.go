package recurrence

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// Kind tags the variant held by a Pattern
type Kind int

const (
	KindUnrecognized Kind = iota
	KindOrdinal
	KindRawWeekday
	KindFullCalendar
	KindRRule
)

func (k Kind) String() string {
	switch k {
	case KindOrdinal:
		return "ordinal"
	case KindRawWeekday:
		return "weekday"
	case KindFullCalendar:
		return "full-calendar"
	case KindRRule:
		return "rrule"
	default:
		return "unrecognized"
	}
}

// Pattern is a parsed day pattern. Only the fields relevant to Kind are set.
type Pattern struct {
	Kind Kind
	// Occurrence is the 1-based week-of-month for ordinal patterns
	Occurrence int
	Weekday    time.Weekday
	// Source is the raw text the pattern was parsed from
	Source string

	rule *rrule.ROption
}

// Ordinal builds an "nth weekday of the month" pattern
func Ordinal(occurrence int, weekday time.Weekday) Pattern {
	return Pattern{
		Kind:       KindOrdinal,
		Occurrence: occurrence,
		Weekday:    weekday,
		Source:     fmt.Sprintf("%d-%d", occurrence, int(weekday)),
	}
}

// RawWeekday builds an "every given weekday" pattern
func RawWeekday(weekday time.Weekday) Pattern {
	return Pattern{Kind: KindRawWeekday, Weekday: weekday, Source: strconv.Itoa(int(weekday))}
}

// FullCalendar builds a pattern matching every business day
func FullCalendar() Pattern {
	return Pattern{Kind: KindFullCalendar, Source: "full-calendar"}
}

// Recognized reports whether the pattern contributes dates
func (p Pattern) Recognized() bool {
	return p.Kind != KindUnrecognized
}

func (p Pattern) String() string {
	switch p.Kind {
	case KindOrdinal:
		return fmt.Sprintf("%s %s of the month", ordinalWord(p.Occurrence), p.Weekday)
	case KindRawWeekday:
		return "every " + p.Weekday.String()
	case KindFullCalendar:
		return "every business day"
	case KindRRule:
		return p.Source
	default:
		return fmt.Sprintf("unrecognized(%q)", p.Source)
	}
}

var (
	numericOrdinalRe = regexp.MustCompile(`^([1-4])\s*[-:/]\s*([0-6])$`)
	wordOrdinalRe    = regexp.MustCompile(`^(1st|first|2nd|second|3rd|third|4th|fourth)\s+([a-z]+)(\s+of\s+(each|every|the)\s+month)?$`)
	rawWeekdayRe     = regexp.MustCompile(`^[0-6]$`)
)

var ordinalWords = map[string]int{
	"1st": 1, "first": 1,
	"2nd": 2, "second": 2,
	"3rd": 3, "third": 3,
	"4th": 4, "fourth": 4,
}

var weekdayNames = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday, "tues": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday, "thurs": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

var fullCalendarWords = map[string]bool{
	"full": true, "full-calendar": true, "full calendar": true, "all": true, "*": true,
}

// Parse turns a raw day-pattern string into a Pattern.
// Ordinal forms ("3-4", "3rd thursday") are tried before raw weekdays ("4",
// "thursday"), so a string is only ever given one interpretation. Anything
// that matches no form is returned as KindUnrecognized, never as an error.
func Parse(raw string) Pattern {
	source := strings.TrimSpace(raw)
	s := strings.ToLower(source)
	unrecognized := Pattern{Kind: KindUnrecognized, Source: source}

	if s == "" {
		return unrecognized
	}

	if m := numericOrdinalRe.FindStringSubmatch(s); m != nil {
		occurrence, _ := strconv.Atoi(m[1])
		weekday, _ := strconv.Atoi(m[2])
		p := Ordinal(occurrence, time.Weekday(weekday))
		p.Source = source
		return p
	}

	if m := wordOrdinalRe.FindStringSubmatch(s); m != nil {
		if weekday, ok := lookupWeekday(m[2]); ok {
			p := Ordinal(ordinalWords[m[1]], weekday)
			p.Source = source
			return p
		}
		return unrecognized
	}

	if rawWeekdayRe.MatchString(s) {
		weekday, _ := strconv.Atoi(s)
		p := RawWeekday(time.Weekday(weekday))
		p.Source = source
		return p
	}

	if weekday, ok := lookupWeekday(strings.TrimPrefix(s, "every ")); ok {
		p := RawWeekday(weekday)
		p.Source = source
		return p
	}

	if fullCalendarWords[s] {
		p := FullCalendar()
		p.Source = source
		return p
	}

	if strings.HasPrefix(s, "rrule:") || strings.HasPrefix(s, "freq=") {
		ruleStr := strings.ToUpper(strings.TrimPrefix(s, "rrule:"))
		opt, err := rrule.StrToROption(ruleStr)
		if err != nil {
			return unrecognized
		}
		return Pattern{Kind: KindRRule, Source: source, rule: opt}
	}

	return unrecognized
}

// ParseAll parses each raw pattern, keeping unrecognized entries so callers
// can report them
func ParseAll(raw []string) []Pattern {
	patterns := make([]Pattern, 0, len(raw))
	for _, r := range raw {
		patterns = append(patterns, Parse(r))
	}
	return patterns
}

func lookupWeekday(name string) (time.Weekday, bool) {
	name = strings.TrimSpace(name)
	if w, ok := weekdayNames[name]; ok {
		return w, true
	}
	// plural forms such as "thursdays"
	w, ok := weekdayNames[strings.TrimSuffix(name, "s")]
	return w, ok
}

func ordinalWord(n int) string {
	switch n {
	case 1:
		return "1st"
	case 2:
		return "2nd"
	case 3:
		return "3rd"
	default:
		return strconv.Itoa(n) + "th"
	}
}

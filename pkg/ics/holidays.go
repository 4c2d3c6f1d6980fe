package ics

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/jakechorley/session-booking/pkg/core/recurrence"
)

const icsDateLayout = "20060102"

// ParseHolidays reads every VEVENT in an ICS payload as a closure.
// Multi-day events close each day from DTSTART up to but excluding DTEND.
func ParseHolidays(r io.Reader) (recurrence.Holidays, error) {
	cal, err := ical.ParseCalendar(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse holiday calendar: %w", err)
	}

	holidays := recurrence.NewHolidays()
	for _, ev := range cal.Events() {
		start, ok := eventDate(ev, ical.ComponentPropertyDtStart)
		if !ok {
			continue
		}
		end, ok := eventDate(ev, ical.ComponentPropertyDtEnd)
		if !ok || !end.After(start) {
			end = start.AddDate(0, 0, 1)
		}
		for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
			holidays.Add(d)
		}
	}
	return holidays, nil
}

// eventDate reads the civil date of a DTSTART or DTEND property. Both
// VALUE=DATE and date-time forms are accepted; the time part is ignored.
func eventDate(ev *ical.VEvent, prop ical.ComponentProperty) (time.Time, bool) {
	p := ev.GetProperty(prop)
	if p == nil || len(p.Value) < len(icsDateLayout) {
		return time.Time{}, false
	}
	d, err := time.Parse(icsDateLayout, p.Value[:len(icsDateLayout)])
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// LoadHolidays reads a holiday feed from an http(s) URL or a local file path
func LoadHolidays(ctx context.Context, client *http.Client, source string) (recurrence.Holidays, error) {
	if !strings.HasPrefix(source, "http://") && !strings.HasPrefix(source, "https://") {
		body, err := os.ReadFile(source)
		if err != nil {
			return nil, fmt.Errorf("failed to read holiday file %s: %w", source, err)
		}
		return ParseHolidays(bytes.NewReader(body))
	}

	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build holiday feed request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch holiday feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("holiday feed returned status %d", resp.StatusCode)
	}
	return ParseHolidays(resp.Body)
}

// LoadAllHolidays merges several feeds. Any failing feed aborts the load so
// a missing closure calendar is never silently ignored.
func LoadAllHolidays(ctx context.Context, client *http.Client, sources []string) (recurrence.Holidays, error) {
	all := recurrence.NewHolidays()
	for _, src := range sources {
		h, err := LoadHolidays(ctx, client, src)
		if err != nil {
			return nil, err
		}
		all.Merge(h)
	}
	return all, nil
}

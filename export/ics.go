// Package export renders materialized series as calendar interchange
// formats: iCalendar feeds, xCal documents and RFC 5545 RRULE values.
package export

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/teambition/rrule-go"

	"seriate/caldate"
	"seriate/series"
	"seriate/storage"
)

const prodID = "-//Seriate//Event Feed//EN"

// Calendar builds the VCALENDAR for one series. When the rule has a
// faithful RRULE form the feed leads with a recurring master event,
// instances on generated dates become RECURRENCE-ID overrides of it, and
// generated dates with no surviving instance are excluded via EXDATE, so
// consumers keep following the pattern past the materialized window.
// Rules without a faithful form fall back to standalone all-day events.
// Instances keep their input order, so a date-sorted listing yields a
// date-sorted feed.
func Calendar(series *storage.SeriesRecord, instances []*storage.InstanceRecord) (*ical.Calendar, error) {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, prodID)
	cal.Props.SetText("X-WR-CALNAME", series.Title)

	masterUID := series.ID + "@seriate"
	var pattern map[string]bool
	if tpl, err := series.Template(); err == nil {
		if value, dates, ok := seriesPattern(tpl, instances); ok {
			pattern = dates
			master := masterEvent(series, tpl.StartDate, value, missingDates(dates, instances))
			cal.Children = append(cal.Children, master.Component)
		}
	}

	for _, inst := range instances {
		date, err := caldate.Parse(inst.InstanceDate)
		if err != nil {
			return nil, fmt.Errorf("instance %s: %w", inst.ID, err)
		}
		event := instanceEvent(inst, date)
		if pattern[inst.InstanceDate] {
			// this instance fills a generated occurrence
			event.Props.SetText(ical.PropUID, masterUID)
			setDateProp(event.Props, "RECURRENCE-ID", date)
		}
		cal.Children = append(cal.Children, event.Component)
	}
	return cal, nil
}

// ICS encodes the feed for serving as text/calendar.
func ICS(series *storage.SeriesRecord, instances []*storage.InstanceRecord) ([]byte, error) {
	cal, err := Calendar(series, instances)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, fmt.Errorf("encode calendar: %w", err)
	}
	return buf.Bytes(), nil
}

// seriesPattern renders the template's rule and expands it across the
// materialized window, keyed by canonical date. ok is false when the
// rule has no faithful RRULE form.
func seriesPattern(tpl series.Template, instances []*storage.InstanceRecord) (string, map[string]bool, bool) {
	value, err := RRule(tpl)
	if err != nil {
		return "", nil, false
	}
	r, err := rrule.StrToRRule(value)
	if err != nil {
		return "", nil, false
	}
	r.DTStart(midnight(tpl.StartDate))

	until := tpl.StartDate
	for _, inst := range instances {
		if d, err := caldate.Parse(inst.InstanceDate); err == nil && until.Before(d) {
			until = d
		}
	}
	dates := make(map[string]bool)
	for _, occ := range r.Between(midnight(tpl.StartDate), midnight(until), true) {
		dates[occ.Format("2006-01-02")] = true
	}
	return value, dates, true
}

// missingDates lists generated dates with no surviving instance, sorted.
// An empty feed has no materialized window, so nothing is excluded.
func missingDates(pattern map[string]bool, instances []*storage.InstanceRecord) []string {
	if len(instances) == 0 {
		return nil
	}
	have := make(map[string]bool, len(instances))
	for _, inst := range instances {
		have[inst.InstanceDate] = true
	}
	var missing []string
	for date := range pattern {
		if !have[date] {
			missing = append(missing, date)
		}
	}
	sort.Strings(missing)
	return missing
}

func masterEvent(series *storage.SeriesRecord, start caldate.Date, rruleValue string, exdates []string) *ical.Event {
	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, series.ID+"@seriate")
	event.Props.SetDateTime(ical.PropDateTimeStamp, recordStamp(series.Modified))
	event.Props.SetText(ical.PropSummary, series.Title)
	if series.Description != "" {
		event.Props.SetText(ical.PropDescription, series.Description)
	}
	if series.Location != "" {
		event.Props.SetText(ical.PropLocation, series.Location)
	}
	setDateProp(event.Props, ical.PropDateTimeStart, start)
	setDateProp(event.Props, ical.PropDateTimeEnd, start.AddDays(1))

	// RRULE and EXDATE are structured values, never text-escaped
	rule := ical.NewProp(ical.PropRecurrenceRule)
	rule.Value = rruleValue
	event.Props.Set(rule)
	if len(exdates) > 0 {
		compact := make([]string, len(exdates))
		for i, d := range exdates {
			compact[i] = strings.ReplaceAll(d, "-", "")
		}
		prop := ical.NewProp(ical.PropExceptionDates)
		prop.SetValueType(ical.ValueDate)
		prop.Value = strings.Join(compact, ",")
		event.Props.Set(prop)
	}
	return event
}

func instanceEvent(inst *storage.InstanceRecord, date caldate.Date) *ical.Event {
	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, inst.ID+"@seriate")
	event.Props.SetDateTime(ical.PropDateTimeStamp, recordStamp(inst.Modified))
	event.Props.SetText(ical.PropSummary, inst.Title)
	if inst.Description != "" {
		event.Props.SetText(ical.PropDescription, inst.Description)
	}
	if inst.Location != "" {
		event.Props.SetText(ical.PropLocation, inst.Location)
	}
	setDateProp(event.Props, ical.PropDateTimeStart, date)
	// all-day events end on the following day, exclusive
	setDateProp(event.Props, ical.PropDateTimeEnd, date.AddDays(1))
	return event
}

// recordStamp keeps DTSTAMP tied to the record so unchanged feeds encode
// identically.
func recordStamp(modified time.Time) time.Time {
	if modified.IsZero() {
		return time.Now()
	}
	return modified
}

func setDateProp(props ical.Props, name string, d caldate.Date) {
	prop := ical.NewProp(name)
	prop.SetValueType(ical.ValueDate)
	prop.Value = compactDate(d)
	props.Set(prop)
}

func compactDate(d caldate.Date) string {
	return fmt.Sprintf("%04d%02d%02d", d.Year, d.Month, d.Day)
}

func midnight(d caldate.Date) time.Time {
	return time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, time.UTC)
}

// Package caldate implements arithmetic over plain calendar dates.
//
// A date here is a (year, month, day) triple with no time-of-day and no
// timezone; its canonical interchange form is the zero-padded "YYYY-MM-DD"
// string. Every date mutation in this module goes through this package.
// The time package is used internally as a fixed-UTC calculation device
// only, and no instant ever leaks out of it.
package caldate

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Layout is the canonical string form of a calendar date.
const Layout = "2006-01-02"

var monthLengths = [13]int{0, 31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

// Date is a plain calendar date. The zero value is not a valid date.
type Date struct {
	Year  int
	Month int // 1..12
	Day   int // 1..31
}

// New validates the triple and returns it as a Date.
func New(year, month, day int) (Date, error) {
	if month < 1 || month > 12 {
		return Date{}, fmt.Errorf("month %d out of range", month)
	}
	if day < 1 || day > DaysInMonth(year, month) {
		return Date{}, fmt.Errorf("day %d out of range for %04d-%02d", day, year, month)
	}
	return Date{Year: year, Month: month, Day: day}, nil
}

// Parse reads a canonical YYYY-MM-DD string.
func Parse(s string) (Date, error) {
	t, err := time.ParseInLocation(Layout, s, time.UTC)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}, nil
}

// MustParse is Parse for literals in tests and wiring code; it panics on
// malformed input.
func MustParse(s string) Date {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// FromTime extracts the calendar date of t in t's own location. This is the
// only bridge from wall-clock time into the date domain; callers decide
// which location's "today" they mean before calling it.
func FromTime(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: int(m), Day: d}
}

// String renders the canonical zero-padded form.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d == Date{}
}

// MarshalJSON encodes the date as its canonical string form.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON decodes and validates a canonical date string.
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("invalid date: %w", err)
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// anchor converts d to a UTC midnight instant for internal arithmetic.
func (d Date) anchor() time.Time {
	return time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, time.UTC)
}

// Weekday returns the day of the week, 0=Sunday through 6=Saturday.
func (d Date) Weekday() int {
	return int(d.anchor().Weekday())
}

// AddDays moves the date forward (or backward, for negative n) by whole days.
func (d Date) AddDays(n int) Date {
	return FromTime(d.anchor().AddDate(0, 0, n))
}

// AddWeeks moves the date by whole weeks.
func (d Date) AddWeeks(n int) Date {
	return d.AddDays(n * 7)
}

// AddMonths moves the date by whole months, clamping the day to the target
// month's length when the source day does not exist there (Jan 31 + 1 month
// is Feb 28, or Feb 29 in a leap year). This differs deliberately from
// time.Time.AddDate, which normalizes the overflow into the following month.
func (d Date) AddMonths(n int) Date {
	months := d.Year*12 + (d.Month - 1) + n
	year := months / 12
	month := months%12 + 1
	if months < 0 && months%12 != 0 {
		year--
		month += 12
	}
	day := d.Day
	if limit := DaysInMonth(year, month); day > limit {
		day = limit
	}
	return Date{Year: year, Month: month, Day: day}
}

// StartOfWeek returns the Sunday on or before d.
func (d Date) StartOfWeek() Date {
	return d.AddDays(-d.Weekday())
}

// DaysUntil returns the number of whole days from d to o, negative when o
// falls before d.
func (d Date) DaysUntil(o Date) int {
	return int(o.anchor().Sub(d.anchor()) / (24 * time.Hour))
}

// Before reports whether d falls earlier than o.
func (d Date) Before(o Date) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}

// After reports whether d falls later than o.
func (d Date) After(o Date) bool {
	return o.Before(d)
}

// Equal reports whether d and o name the same calendar day.
func (d Date) Equal(o Date) bool {
	return d == o
}

// IsLeapYear implements the Gregorian leap-year rule.
func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// DaysInMonth returns the number of days in the given month, accounting for
// leap years.
func DaysInMonth(year, month int) int {
	if month < 1 || month > 12 {
		return 0
	}
	if month == 2 && IsLeapYear(year) {
		return 29
	}
	return monthLengths[month]
}

// Weekday returns the day of the week for the given triple, 0=Sunday
// through 6=Saturday.
func Weekday(year, month, day int) int {
	return Date{Year: year, Month: month, Day: day}.Weekday()
}

// NthWeekday resolves "the n-th <weekday> of the month" to a concrete date.
// n counts from 1; n == -1 means the last such weekday in the month. The
// second return is false when the month has no n-th occurrence (for example
// no fifth Friday); that is an expected condition, not an error.
func NthWeekday(year, month, weekday, n int) (Date, bool) {
	last := DaysInMonth(year, month)
	if last == 0 || weekday < 0 || weekday > 6 {
		return Date{}, false
	}
	if n == -1 {
		lastWeekday := Weekday(year, month, last)
		day := last - (lastWeekday-weekday+7)%7
		return Date{Year: year, Month: month, Day: day}, true
	}
	if n < 1 {
		return Date{}, false
	}
	first := Weekday(year, month, 1)
	day := 1 + (weekday-first+7)%7 + (n-1)*7
	if day > last {
		return Date{}, false
	}
	return Date{Year: year, Month: month, Day: day}, true
}

// Compare orders two canonical date strings, returning -1, 0 or 1. The
// zero-padded form makes plain lexical comparison calendar-correct, so no
// parsing happens here.
func Compare(a, b string) int {
	return strings.Compare(a, b)
}

// Valid reports whether s is a well-formed canonical date string.
func Valid(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// AddDays is the string-form counterpart of Date.AddDays.
func AddDays(s string, n int) (string, error) {
	d, err := Parse(s)
	if err != nil {
		return "", err
	}
	return d.AddDays(n).String(), nil
}

// AddWeeks is the string-form counterpart of Date.AddWeeks.
func AddWeeks(s string, n int) (string, error) {
	d, err := Parse(s)
	if err != nil {
		return "", err
	}
	return d.AddWeeks(n).String(), nil
}

// AddMonths is the string-form counterpart of Date.AddMonths, including the
// day-of-month clamp.
func AddMonths(s string, n int) (string, error) {
	d, err := Parse(s)
	if err != nil {
		return "", err
	}
	return d.AddMonths(n).String(), nil
}

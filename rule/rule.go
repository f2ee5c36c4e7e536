// Package rule models recurrence rules as tagged variants.
//
// A rule is validated once, at construction or deserialization, so that
// everything downstream can switch over the variants exhaustively instead
// of re-checking shapes.
package rule

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/samber/mo"
)

// ErrInvalidRule is wrapped by every construction-time rejection.
var ErrInvalidRule = errors.New("invalid recurrence rule")

// Frequency selects the recurrence cadence.
type Frequency string

const (
	FreqWeekly   Frequency = "weekly"
	FreqBiweekly Frequency = "biweekly"
	FreqMonthly  Frequency = "monthly"
)

// PatternKind discriminates the monthly pattern variants.
type PatternKind string

const (
	PatternDayOfMonth     PatternKind = "dayOfMonth"
	PatternWeekdayOfMonth PatternKind = "weekdayOfMonth"
)

// LastOccurrence selects the final matching weekday of each month.
const LastOccurrence = -1

// MonthlyPattern is one of two variants, selected by Kind: a fixed
// day of the month, or the Nth (or last) occurrence of a weekday.
type MonthlyPattern struct {
	Kind PatternKind

	// DayOfMonth is set for PatternDayOfMonth, 1..31. Months shorter than
	// the value clamp to their final day.
	DayOfMonth int

	// Weekday and Occurrence are set for PatternWeekdayOfMonth. Weekday is
	// 0=Sunday..6=Saturday; Occurrence is 1..5 or LastOccurrence.
	Weekday    int
	Occurrence int
}

// OnDay builds a day-of-month pattern.
func OnDay(day int) MonthlyPattern {
	return MonthlyPattern{Kind: PatternDayOfMonth, DayOfMonth: day}
}

// OnWeekday builds an Nth-weekday pattern; occurrence may be LastOccurrence.
func OnWeekday(weekday, occurrence int) MonthlyPattern {
	return MonthlyPattern{Kind: PatternWeekdayOfMonth, Weekday: weekday, Occurrence: occurrence}
}

func (p MonthlyPattern) validate() error {
	switch p.Kind {
	case PatternDayOfMonth:
		if p.DayOfMonth < 1 || p.DayOfMonth > 31 {
			return fmt.Errorf("%w: dayOfMonth %d out of range", ErrInvalidRule, p.DayOfMonth)
		}
	case PatternWeekdayOfMonth:
		if p.Weekday < 0 || p.Weekday > 6 {
			return fmt.Errorf("%w: weekday %d out of range", ErrInvalidRule, p.Weekday)
		}
		if p.Occurrence != LastOccurrence && (p.Occurrence < 1 || p.Occurrence > 5) {
			return fmt.Errorf("%w: occurrence %d out of range", ErrInvalidRule, p.Occurrence)
		}
	default:
		return fmt.Errorf("%w: unknown monthly pattern kind %q", ErrInvalidRule, p.Kind)
	}
	return nil
}

type monthlyPatternJSON struct {
	Type       PatternKind `json:"type"`
	DayOfMonth *int        `json:"dayOfMonth,omitempty"`
	Weekday    *int        `json:"weekday,omitempty"`
	Occurrence *int        `json:"occurrence,omitempty"`
}

// MarshalJSON emits the tagged wire form, carrying only the fields of the
// active variant.
func (p MonthlyPattern) MarshalJSON() ([]byte, error) {
	out := monthlyPatternJSON{Type: p.Kind}
	switch p.Kind {
	case PatternDayOfMonth:
		day := p.DayOfMonth
		out.DayOfMonth = &day
	case PatternWeekdayOfMonth:
		wd, occ := p.Weekday, p.Occurrence
		out.Weekday = &wd
		out.Occurrence = &occ
	default:
		return nil, fmt.Errorf("%w: unknown monthly pattern kind %q", ErrInvalidRule, p.Kind)
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes and fully validates the tagged wire form; a pattern
// that decodes without error is ready for the generator.
func (p *MonthlyPattern) UnmarshalJSON(data []byte) error {
	var raw monthlyPatternJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	decoded := MonthlyPattern{Kind: raw.Type}
	switch raw.Type {
	case PatternDayOfMonth:
		if raw.DayOfMonth == nil {
			return fmt.Errorf("%w: dayOfMonth variant missing dayOfMonth", ErrInvalidRule)
		}
		decoded.DayOfMonth = *raw.DayOfMonth
	case PatternWeekdayOfMonth:
		if raw.Weekday == nil || raw.Occurrence == nil {
			return fmt.Errorf("%w: weekdayOfMonth variant missing weekday or occurrence", ErrInvalidRule)
		}
		decoded.Weekday = *raw.Weekday
		decoded.Occurrence = *raw.Occurrence
	default:
		return fmt.Errorf("%w: unknown monthly pattern kind %q", ErrInvalidRule, raw.Type)
	}
	if err := decoded.validate(); err != nil {
		return err
	}
	*p = decoded
	return nil
}

// Rule describes how often a series recurs and on which days or position.
//
// DaysOfWeek applies to the weekly frequencies; an empty set means "the
// weekday of the series start date." Monthly applies only to FreqMonthly.
type Rule struct {
	Frequency  Frequency                 `json:"frequency"`
	DaysOfWeek []int                     `json:"daysOfWeek,omitempty"`
	Monthly    mo.Option[MonthlyPattern] `json:"monthlyPattern"`
}

// Weekly builds a weekly rule on the given weekdays (0=Sunday..6=Saturday).
func Weekly(daysOfWeek ...int) Rule {
	return Rule{Frequency: FreqWeekly, DaysOfWeek: daysOfWeek}
}

// Biweekly builds an every-other-week rule on the given weekdays.
func Biweekly(daysOfWeek ...int) Rule {
	return Rule{Frequency: FreqBiweekly, DaysOfWeek: daysOfWeek}
}

// Monthly builds a monthly rule from the given pattern.
func Monthly(p MonthlyPattern) Rule {
	return Rule{Frequency: FreqMonthly, Monthly: mo.Some(p)}
}

// Parse decodes a serialized rule and validates it.
func Parse(data []byte) (Rule, error) {
	var r Rule
	if err := json.Unmarshal(data, &r); err != nil {
		if errors.Is(err, ErrInvalidRule) {
			return Rule{}, err
		}
		return Rule{}, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	if err := r.Validate(); err != nil {
		return Rule{}, err
	}
	return r, nil
}

// Validate checks the cross-field invariant: the day set belongs to the
// weekly frequencies, the monthly pattern to the monthly one, never both.
func (r Rule) Validate() error {
	switch r.Frequency {
	case FreqWeekly, FreqBiweekly:
		if r.Monthly.IsPresent() {
			return fmt.Errorf("%w: monthlyPattern not allowed for %s frequency", ErrInvalidRule, r.Frequency)
		}
		seen := [7]bool{}
		for _, d := range r.DaysOfWeek {
			if d < 0 || d > 6 {
				return fmt.Errorf("%w: weekday %d out of range", ErrInvalidRule, d)
			}
			if seen[d] {
				return fmt.Errorf("%w: duplicate weekday %d", ErrInvalidRule, d)
			}
			seen[d] = true
		}
	case FreqMonthly:
		if len(r.DaysOfWeek) > 0 {
			return fmt.Errorf("%w: daysOfWeek not allowed for monthly frequency", ErrInvalidRule)
		}
		p, ok := r.Monthly.Get()
		if !ok {
			return fmt.Errorf("%w: monthly frequency requires a monthlyPattern", ErrInvalidRule)
		}
		return p.validate()
	default:
		return fmt.Errorf("%w: unknown frequency %q", ErrInvalidRule, r.Frequency)
	}
	return nil
}

// IsWeeklyClass reports whether the rule steps by weeks (weekly or biweekly).
func (r Rule) IsWeeklyClass() bool {
	return r.Frequency == FreqWeekly || r.Frequency == FreqBiweekly
}

// WeekStep returns the stride in weeks for the weekly frequencies, 0 for
// monthly rules.
func (r Rule) WeekStep() int {
	switch r.Frequency {
	case FreqWeekly:
		return 1
	case FreqBiweekly:
		return 2
	}
	return 0
}

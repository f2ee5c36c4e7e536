package export

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	"seriate/rule"
	"seriate/series"
)

// ErrLossyRule marks rules whose semantics have no faithful RFC 5545 form:
// a day-of-month above 28 clamps to the last day of short months here,
// while RRULE consumers skip those months entirely.
var ErrLossyRule = errors.New("rule has no faithful RRULE form")

var rruleWeekdays = [7]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

// RRule renders the template's recurrence as an RRULE value for RFC 5545
// consumers, assuming a DTSTART on the series start date. The generation
// horizon is an operational window, not part of the rule, so only an end
// date becomes UNTIL.
func RRule(tpl series.Template) (string, error) {
	if err := tpl.Rule.Validate(); err != nil {
		return "", err
	}

	opt := rrule.ROption{Wkst: rrule.SU}
	switch tpl.Rule.Frequency {
	case rule.FreqWeekly, rule.FreqBiweekly:
		opt.Freq = rrule.WEEKLY
		if tpl.Rule.Frequency == rule.FreqBiweekly {
			opt.Interval = 2
		}
		days := append([]int(nil), tpl.Rule.DaysOfWeek...)
		sort.Ints(days)
		for _, day := range days {
			opt.Byweekday = append(opt.Byweekday, rruleWeekdays[day])
		}
	case rule.FreqMonthly:
		opt.Freq = rrule.MONTHLY
		p, _ := tpl.Rule.Monthly.Get()
		switch p.Kind {
		case rule.PatternDayOfMonth:
			if p.DayOfMonth > 28 {
				return "", fmt.Errorf("%w: day %d clamps in short months", ErrLossyRule, p.DayOfMonth)
			}
			opt.Bymonthday = []int{p.DayOfMonth}
		case rule.PatternWeekdayOfMonth:
			opt.Byweekday = []rrule.Weekday{rruleWeekdays[p.Weekday].Nth(p.Occurrence)}
		}
	}

	if n, ok := tpl.MaxOccurrences.Get(); ok {
		opt.Count = n
	}
	if end, ok := tpl.EndDate.Get(); ok {
		// UNTIL is inclusive, matching the end-date semantics
		opt.Until = time.Date(end.Year, time.Month(end.Month), end.Day, 0, 0, 0, 0, time.UTC)
	}

	r, err := rrule.NewRRule(opt)
	if err != nil {
		return "", fmt.Errorf("build rrule: %w", err)
	}
	return r.OrigOptions.RRuleString(), nil
}

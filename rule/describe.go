package rule

import (
	"fmt"
	"sort"
	"strings"
)

var weekdayNames = [7]string{
	"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday",
}

// Describe renders the rule as a display string, e.g. "Every Monday,
// Wednesday", "Every other week", "Monthly on the 2nd Tuesday" or "Monthly
// on the Last Friday". Display only; the output is not parseable back into
// a rule. Output for a rule that fails Validate is unspecified.
func Describe(r Rule) string {
	switch r.Frequency {
	case FreqWeekly:
		if len(r.DaysOfWeek) == 0 {
			return "Every week"
		}
		return "Every " + dayList(r.DaysOfWeek)
	case FreqBiweekly:
		if len(r.DaysOfWeek) == 0 {
			return "Every other week"
		}
		return "Every other " + dayList(r.DaysOfWeek)
	case FreqMonthly:
		p, ok := r.Monthly.Get()
		if !ok {
			return "Monthly"
		}
		switch p.Kind {
		case PatternDayOfMonth:
			return fmt.Sprintf("Monthly on the %s", ordinal(p.DayOfMonth))
		case PatternWeekdayOfMonth:
			name := weekdayName(p.Weekday)
			if p.Occurrence == LastOccurrence {
				return fmt.Sprintf("Monthly on the Last %s", name)
			}
			return fmt.Sprintf("Monthly on the %s %s", ordinal(p.Occurrence), name)
		}
		return "Monthly"
	}
	return string(r.Frequency)
}

func weekdayName(d int) string {
	if d < 0 || d > 6 {
		return fmt.Sprintf("weekday %d", d)
	}
	return weekdayNames[d]
}

// dayList names the weekdays in ascending calendar order, matching the
// order the generator emits them in, regardless of input order.
func dayList(days []int) string {
	sorted := make([]int, len(days))
	copy(sorted, days)
	sort.Ints(sorted)
	names := make([]string, 0, len(sorted))
	for _, d := range sorted {
		names = append(names, weekdayName(d))
	}
	return strings.Join(names, ", ")
}

func ordinal(n int) string {
	suffix := "th"
	if n%100 < 11 || n%100 > 13 {
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return fmt.Sprintf("%d%s", n, suffix)
}

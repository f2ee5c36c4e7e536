// Package recurrence materializes recurrence rules into bounded, ordered
// sequences of calendar dates.
//
// The generator is a pure computation: it performs no I/O, reads no clock,
// and is capped by hard iteration ceilings so that no call can run
// unbounded even under a pathological rule.
package recurrence

import (
	"sort"

	"seriate/caldate"
	"seriate/rule"
)

// Hard iteration ceilings, enforced regardless of the stated bounds.
// Reaching one is not an error; generation simply truncates there.
const (
	// MaxWeekSteps caps how many week strides a weekly-class walk takes.
	MaxWeekSteps = 520

	// MaxMonthSteps caps how many months a monthly walk visits.
	MaxMonthSteps = 120
)

// Generator expands rules into date sequences, optionally caching results
// keyed by the full (rule, bounds) input.
type Generator struct {
	cache  *Cache
	config Config
}

// NewGenerator creates a generator with the default configuration.
func NewGenerator() *Generator {
	return NewGeneratorWithConfig(DefaultConfig)
}

// Close releases the cache's background resources, if caching is enabled.
func (g *Generator) Close() {
	if g.cache != nil {
		g.cache.Close()
	}
}

// CacheStats reports cache occupancy; all zero when caching is disabled.
func (g *Generator) CacheStats() CacheStats {
	if g.cache == nil {
		return CacheStats{}
	}
	return g.cache.Stats()
}

// Generate expands the rule between the bounds' start date and the tighter
// of its end condition and horizon. The result is in strictly ascending
// calendar order with no duplicates, in canonical string form. The rule and
// bounds are validated first; nothing malformed reaches the walk.
func (g *Generator) Generate(r rule.Rule, b Bounds) ([]string, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}

	if g.cache != nil {
		if dates, ok := g.cache.Get(r, b); ok {
			return dates, nil
		}
	}

	var dates []string
	if r.IsWeeklyClass() {
		dates = weeklyDates(r, b)
	} else {
		dates = monthlyDates(r, b)
	}

	if g.cache != nil {
		g.cache.Set(r, b, dates)
	}
	return dates, nil
}

// weeklyDates anchors to the Sunday starting the week of the start date and
// strides forward week by week (two for biweekly), emitting the requested
// weekdays of each visited week in ascending order. Candidates before the
// start date are skipped; the first candidate past the ceiling ends the
// walk, because candidates only grow from there.
func weeklyDates(r rule.Rule, b Bounds) []string {
	days := weekdaySet(r.DaysOfWeek, b.Start)
	limit := b.ceiling()
	maxCount, hasMax := b.MaxOccurrences.Get()

	out := []string{}
	week := b.Start.StartOfWeek()
	for i := 0; i < MaxWeekSteps; i++ {
		for _, wd := range days {
			cand := week.AddDays(wd)
			if cand.Before(b.Start) {
				continue
			}
			if cand.After(limit) {
				return out
			}
			out = append(out, cand.String())
			if hasMax && len(out) >= maxCount {
				return out
			}
		}
		week = week.AddWeeks(r.WeekStep())
	}
	return out
}

// weekdaySet returns the rule's weekdays sorted ascending. An empty set
// falls back to the start date's own weekday rather than producing zero
// output.
func weekdaySet(days []int, start caldate.Date) []int {
	if len(days) == 0 {
		return []int{start.Weekday()}
	}
	sorted := make([]int, len(days))
	copy(sorted, days)
	sort.Ints(sorted)
	return sorted
}

// monthlyDates visits successive months from the start date's month and
// resolves the pattern within each. Months without a match are skipped
// without advancing the occurrence count.
func monthlyDates(r rule.Rule, b Bounds) []string {
	p, ok := r.Monthly.Get()
	if !ok {
		return nil
	}
	limit := b.ceiling()
	maxCount, hasMax := b.MaxOccurrences.Get()

	// Anchored to day 1 so month stepping never hits the day clamp.
	first := caldate.Date{Year: b.Start.Year, Month: b.Start.Month, Day: 1}

	out := []string{}
	for i := 0; i < MaxMonthSteps; i++ {
		month := first.AddMonths(i)
		cand, ok := monthCandidate(p, month.Year, month.Month)
		if !ok || cand.Before(b.Start) {
			continue
		}
		if cand.After(limit) {
			return out
		}
		out = append(out, cand.String())
		if hasMax && len(out) >= maxCount {
			return out
		}
	}
	return out
}

// monthCandidate resolves the pattern inside one month. The bool is false
// when the month has no matching date, e.g. no fifth Friday.
func monthCandidate(p rule.MonthlyPattern, year, month int) (caldate.Date, bool) {
	switch p.Kind {
	case rule.PatternDayOfMonth:
		day := p.DayOfMonth
		if last := caldate.DaysInMonth(year, month); day > last {
			day = last
		}
		return caldate.Date{Year: year, Month: month, Day: day}, true
	case rule.PatternWeekdayOfMonth:
		return caldate.NthWeekday(year, month, p.Weekday, p.Occurrence)
	}
	return caldate.Date{}, false
}

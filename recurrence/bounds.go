package recurrence

import (
	"errors"
	"fmt"

	"github.com/samber/mo"

	"seriate/caldate"
)

// ErrInvalidBounds is wrapped by every bounds rejection.
var ErrInvalidBounds = errors.New("invalid generation bounds")

// Bounds caps a generation run. Start is the first admissible date. End and
// MaxOccurrences are the series' own end conditions and are mutually
// exclusive; both may be absent. Until is the caller's horizon, always
// present and independent of the series' end condition: it says how far
// ahead materialization reaches right now, not where the series ends.
type Bounds struct {
	Start          caldate.Date            `json:"startDate"`
	End            mo.Option[caldate.Date] `json:"endDate"`
	MaxOccurrences mo.Option[int]          `json:"maxOccurrences"`
	Until          caldate.Date            `json:"generateUntil"`
}

// Validate rejects shapes the generator must never see.
func (b Bounds) Validate() error {
	if b.Start.IsZero() {
		return fmt.Errorf("%w: startDate is required", ErrInvalidBounds)
	}
	if b.Until.IsZero() {
		return fmt.Errorf("%w: generateUntil is required", ErrInvalidBounds)
	}
	if b.End.IsPresent() && b.MaxOccurrences.IsPresent() {
		return fmt.Errorf("%w: endDate and maxOccurrences are mutually exclusive", ErrInvalidBounds)
	}
	if n, ok := b.MaxOccurrences.Get(); ok && n <= 0 {
		return fmt.Errorf("%w: maxOccurrences must be positive, got %d", ErrInvalidBounds, n)
	}
	return nil
}

// ceiling returns the last admissible date: the horizon, tightened by the
// end date when one is set.
func (b Bounds) ceiling() caldate.Date {
	limit := b.Until
	if end, ok := b.End.Get(); ok && end.Before(limit) {
		limit = end
	}
	return limit
}

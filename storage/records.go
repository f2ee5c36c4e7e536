package storage

import (
	"strings"
	"time"

	"github.com/samber/mo"

	"seriate/caldate"
	"seriate/rule"
	"seriate/series"
)

// SeriesRecord is the persisted form of a series template: the recurrence
// rule with its bounds, the content instances are stamped from, and the
// lifecycle status. Dates are canonical YYYY-MM-DD strings.
type SeriesRecord struct {
	ID             string            `json:"id"`
	Slug           string            `json:"slug"`
	Title          string            `json:"title"`
	Description    string            `json:"description,omitempty"`
	Location       string            `json:"location,omitempty"`
	Rule           rule.Rule         `json:"rule"`
	StartDate      string            `json:"startDate"`
	EndDate        mo.Option[string] `json:"endDate"`
	MaxOccurrences mo.Option[int]    `json:"maxOccurrences"`
	Status         series.Status     `json:"status"`
	Created        time.Time         `json:"created"`
	Modified       time.Time         `json:"modified"`
}

// Validate checks the record before it is written. Reads can then trust
// what they load.
func (r *SeriesRecord) Validate() error {
	if r.ID == "" {
		return &Error{Type: ErrInvalidInput, Message: "series id is required"}
	}
	if r.Slug == "" {
		return &Error{Type: ErrInvalidInput, Message: "series slug is required"}
	}
	if r.Title == "" {
		return &Error{Type: ErrInvalidInput, Message: "series title is required"}
	}
	if err := r.Rule.Validate(); err != nil {
		return &Error{Type: ErrInvalidInput, Message: "series rule", Err: err}
	}
	if !caldate.Valid(r.StartDate) {
		return &Error{Type: ErrInvalidInput, Message: "series start date is not a canonical date"}
	}
	if end, ok := r.EndDate.Get(); ok {
		if !caldate.Valid(end) {
			return &Error{Type: ErrInvalidInput, Message: "series end date is not a canonical date"}
		}
		if r.MaxOccurrences.IsPresent() {
			return &Error{Type: ErrInvalidInput, Message: "end date and max occurrences are mutually exclusive"}
		}
	}
	if n, ok := r.MaxOccurrences.Get(); ok && n <= 0 {
		return &Error{Type: ErrInvalidInput, Message: "max occurrences must be positive"}
	}
	switch r.Status {
	case series.StatusActive, series.StatusPaused, series.StatusEnded:
	default:
		return &Error{Type: ErrInvalidInput, Message: "unknown series status"}
	}
	return nil
}

// Template converts the record into the reconciler's read-only view.
func (r *SeriesRecord) Template() (series.Template, error) {
	start, err := caldate.Parse(r.StartDate)
	if err != nil {
		return series.Template{}, &Error{Type: ErrInvalidInput, Message: "series start date", Err: err}
	}
	var end mo.Option[caldate.Date]
	if s, ok := r.EndDate.Get(); ok {
		d, err := caldate.Parse(s)
		if err != nil {
			return series.Template{}, &Error{Type: ErrInvalidInput, Message: "series end date", Err: err}
		}
		end = mo.Some(d)
	}
	return series.Template{
		ID:             r.ID,
		Rule:           r.Rule,
		StartDate:      start,
		EndDate:        end,
		MaxOccurrences: r.MaxOccurrences,
		Status:         r.Status,
	}, nil
}

// InstanceRecord is one materialized occurrence. Content starts as a copy
// of the template's and diverges only when a human edits the instance,
// which also sets IsException. Registrations is the count of dependents
// that shield the instance from regeneration.
type InstanceRecord struct {
	ID            string    `json:"id"`
	SeriesID      string    `json:"seriesId"`
	Slug          string    `json:"slug"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	Location      string    `json:"location,omitempty"`
	InstanceDate  string    `json:"instanceDate"`
	IsException   bool      `json:"isException"`
	Registrations int       `json:"registrations"`
	Created       time.Time `json:"created"`
	Modified      time.Time `json:"modified"`
}

// Validate checks the record before it is written.
func (r *InstanceRecord) Validate() error {
	if r.ID == "" {
		return &Error{Type: ErrInvalidInput, Message: "instance id is required"}
	}
	if r.SeriesID == "" {
		return &Error{Type: ErrInvalidInput, Message: "instance series id is required"}
	}
	if r.Slug == "" {
		return &Error{Type: ErrInvalidInput, Message: "instance slug is required"}
	}
	if !caldate.Valid(r.InstanceDate) {
		return &Error{Type: ErrInvalidInput, Message: "instance date is not a canonical date"}
	}
	if r.Registrations < 0 {
		return &Error{Type: ErrInvalidInput, Message: "registrations cannot be negative"}
	}
	return nil
}

// State converts the record into reconciler input.
func (r *InstanceRecord) State() series.InstanceState {
	return series.InstanceState{
		ID:               r.ID,
		Date:             r.InstanceDate,
		HasRegistrations: r.Registrations > 0,
		IsException:      r.IsException,
	}
}

// InstanceStates converts a listing into reconciler input.
func InstanceStates(recs []*InstanceRecord) []series.InstanceState {
	states := make([]series.InstanceState, 0, len(recs))
	for _, rec := range recs {
		states = append(states, rec.State())
	}
	return states
}

// Slugify lowercases s and reduces it to hyphen-separated runs of ASCII
// letters and digits.
func Slugify(s string) string {
	var b strings.Builder
	pending := false
	for _, r := range strings.ToLower(s) {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !isAlnum {
			pending = b.Len() > 0
			continue
		}
		if pending {
			b.WriteByte('-')
			pending = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// InstanceSlug composes the base identifier for one occurrence: the series
// slug plus the date. Collisions across series are resolved by the Applier
// with a numeric suffix.
func InstanceSlug(seriesSlug, date string) string {
	return seriesSlug + "-" + date
}

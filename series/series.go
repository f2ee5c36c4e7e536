// Package series reconciles materialized event instances against an
// evolving recurrence template.
//
// The reconciler never touches a store. Every operation takes the current
// state as input, including "now", and returns commands describing what
// should change; the caller applies them. Re-running an operation against
// the state its own commands produced yields no further commands, which is
// what makes at-least-once invocation safe.
package series

import (
	"github.com/samber/mo"

	"seriate/caldate"
	"seriate/rule"
)

// Status is a template's lifecycle state.
type Status string

const (
	StatusActive Status = "active"
	StatusPaused Status = "paused"
	StatusEnded  Status = "ended"
)

// Template is the reconciler's read-only view of a series template: the
// rule, its bounds and the lifecycle state. EndDate and MaxOccurrences are
// mutually exclusive.
type Template struct {
	ID             string
	Rule           rule.Rule
	StartDate      caldate.Date
	EndDate        mo.Option[caldate.Date]
	MaxOccurrences mo.Option[int]
	Status         Status
}

// InstanceState is the caller-supplied snapshot of one materialized
// instance: its identifier, its date in canonical form, and the two facts
// that shield it from deletion.
type InstanceState struct {
	ID               string
	Date             string
	HasRegistrations bool
	IsException      bool
}

// CreateCommand asks the caller to materialize one instance.
type CreateCommand struct {
	SeriesID string
	Date     string
}

// RegenerateResult carries both halves of a regeneration: instance ids to
// delete, and dates to create afterwards. Deletes are meant to be applied
// before creates.
type RegenerateResult struct {
	DeleteIDs   []string
	CreateDates []string
}

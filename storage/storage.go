// Package storage defines the persistence contract for series templates and
// their materialized event instances.
//
// The reconciliation engine never touches a Store; it emits commands, and
// the Applier in this package turns them into store writes. Backends live
// in the memory, sqlite and postgres subpackages. Please use the error
// types provided.
package storage

import (
	"context"
	"errors"
	"fmt"

	"seriate/series"
)

// Error types
type ErrorType string

const (
	ErrNotFound      ErrorType = "not_found"
	ErrAlreadyExists ErrorType = "already_exists"
	ErrInvalidInput  ErrorType = "invalid_input"
	ErrUnavailable   ErrorType = "unavailable"
)

// Error represents a storage-related error.
type Error struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Collision sentinels. Backends wrap these inside an ErrAlreadyExists Error
// so callers can tell the two apart: a duplicate date means the instance is
// already materialized and the write should be skipped, while a taken slug
// means the identifier needs disambiguation and the write retried.
var (
	ErrDuplicateDate = errors.New("instance date already materialized")
	ErrSlugTaken     = errors.New("slug already in use")
)

// IsNotFound reports whether err is a storage not-found error.
func IsNotFound(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Type == ErrNotFound
}

// ListSeriesOptions filters a series listing.
type ListSeriesOptions struct {
	// Status keeps only templates in the given lifecycle state.
	Status *series.Status
}

// ListInstancesOptions filters an instance listing. Bounds are canonical
// date strings, both inclusive.
type ListInstancesOptions struct {
	From *string
	To   *string
}

// Store is the interface that must be implemented by storage backends.
//
// Backends enforce three uniqueness guarantees: series slugs are unique,
// instance slugs are unique, and a series holds at most one instance per
// calendar date. Violations surface as ErrAlreadyExists Errors wrapping
// ErrSlugTaken or ErrDuplicateDate.
type Store interface {
	// Series operations
	GetSeries(ctx context.Context, id string) (*SeriesRecord, error)
	GetSeriesBySlug(ctx context.Context, slug string) (*SeriesRecord, error)
	ListSeries(ctx context.Context, opts *ListSeriesOptions) ([]*SeriesRecord, error)
	CreateSeries(ctx context.Context, rec *SeriesRecord) error
	UpdateSeries(ctx context.Context, rec *SeriesRecord) error
	// DeleteSeries removes a template and all of its instances.
	DeleteSeries(ctx context.Context, id string) error

	// Instance operations
	GetInstance(ctx context.Context, id string) (*InstanceRecord, error)
	GetInstanceBySlug(ctx context.Context, slug string) (*InstanceRecord, error)
	ListInstances(ctx context.Context, seriesID string, opts *ListInstancesOptions) ([]*InstanceRecord, error)
	// ListInstanceDates returns the series' materialized dates in ascending
	// order; the cheap form of ListInstances for reconciliation input.
	ListInstanceDates(ctx context.Context, seriesID string) ([]string, error)
	CreateInstance(ctx context.Context, rec *InstanceRecord) error
	UpdateInstance(ctx context.Context, rec *InstanceRecord) error
	DeleteInstance(ctx context.Context, id string) error

	// Registration operations
	//
	// Registration bookkeeping itself lives elsewhere; the store only
	// carries the per-instance count the reconciler needs to know which
	// instances are shielded from deletion.
	AdjustRegistrations(ctx context.Context, instanceID string, delta int) (int, error)

	Close() error
}

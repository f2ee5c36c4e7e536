package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"seriate/rule"
	"seriate/series"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func applyTemplate() *SeriesRecord {
	return &SeriesRecord{
		ID:          "s1",
		Slug:        "morning-yoga",
		Title:       "Morning Yoga",
		Description: "Start the day slow",
		Location:    "Studio A",
		Rule:        rule.Weekly(2, 4),
		StartDate:   "2026-01-06",
		Status:      series.StatusActive,
	}
}

func slugIs(slug string) func(*InstanceRecord) bool {
	return func(rec *InstanceRecord) bool { return rec.Slug == slug }
}

func slugTakenErr() *Error {
	return &Error{
		Type:    ErrAlreadyExists,
		Message: "instance slug already in use",
		Err:     ErrSlugTaken,
	}
}

func duplicateDateErr() *Error {
	return &Error{
		Type:    ErrAlreadyExists,
		Message: "series already holds this date",
		Err:     ErrDuplicateDate,
	}
}

func TestApplyCreatesStampsTemplateContent(t *testing.T) {
	ctx := context.Background()
	store := &MockStore{}
	tpl := applyTemplate()

	var got *InstanceRecord
	store.On("CreateInstance", mock.Anything, mock.AnythingOfType("*storage.InstanceRecord")).
		Run(func(args mock.Arguments) { got = args.Get(1).(*InstanceRecord) }).
		Return(nil).Once()

	applier := NewApplier(store, testLogger())
	stats, err := applier.ApplyCreates(ctx, tpl, []series.CreateCommand{
		{SeriesID: "s1", Date: "2026-01-06"},
	})
	require.NoError(t, err)
	assert.Equal(t, ApplyStats{Created: 1}, stats)

	require.NotNil(t, got)
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, "s1", got.SeriesID)
	assert.Equal(t, "morning-yoga-2026-01-06", got.Slug)
	assert.Equal(t, "Morning Yoga", got.Title)
	assert.Equal(t, "Start the day slow", got.Description)
	assert.Equal(t, "Studio A", got.Location)
	assert.Equal(t, "2026-01-06", got.InstanceDate)
	assert.False(t, got.IsException)
	assert.Zero(t, got.Registrations)
	store.AssertExpectations(t)
}

func TestApplyCreatesSkipsMaterializedDates(t *testing.T) {
	ctx := context.Background()
	store := &MockStore{}
	tpl := applyTemplate()

	store.On("CreateInstance", mock.Anything, mock.MatchedBy(slugIs("morning-yoga-2026-01-06"))).
		Return(duplicateDateErr()).Once()
	store.On("CreateInstance", mock.Anything, mock.MatchedBy(slugIs("morning-yoga-2026-01-08"))).
		Return(nil).Once()

	applier := NewApplier(store, testLogger())
	stats, err := applier.ApplyCreates(ctx, tpl, []series.CreateCommand{
		{SeriesID: "s1", Date: "2026-01-06"},
		{SeriesID: "s1", Date: "2026-01-08"},
	})
	require.NoError(t, err)
	assert.Equal(t, ApplyStats{Created: 1, Skipped: 1}, stats)
	store.AssertExpectations(t)
}

func TestApplyCreatesDisambiguatesSlugs(t *testing.T) {
	ctx := context.Background()
	store := &MockStore{}
	tpl := applyTemplate()

	store.On("CreateInstance", mock.Anything, mock.MatchedBy(slugIs("morning-yoga-2026-01-06"))).
		Return(slugTakenErr()).Once()
	store.On("CreateInstance", mock.Anything, mock.MatchedBy(slugIs("morning-yoga-2026-01-06-2"))).
		Return(slugTakenErr()).Once()
	store.On("CreateInstance", mock.Anything, mock.MatchedBy(slugIs("morning-yoga-2026-01-06-3"))).
		Return(nil).Once()

	applier := NewApplier(store, testLogger())
	stats, err := applier.ApplyCreates(ctx, tpl, []series.CreateCommand{
		{SeriesID: "s1", Date: "2026-01-06"},
	})
	require.NoError(t, err)
	assert.Equal(t, ApplyStats{Created: 1}, stats)
	store.AssertExpectations(t)
}

func TestApplyCreatesGivesUpAfterSuffixLimit(t *testing.T) {
	ctx := context.Background()
	store := &MockStore{}
	tpl := applyTemplate()

	store.On("CreateInstance", mock.Anything, mock.Anything).Return(slugTakenErr())

	applier := NewApplier(store, testLogger())
	_, err := applier.ApplyCreates(ctx, tpl, []series.CreateCommand{
		{SeriesID: "s1", Date: "2026-01-06"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSlugTaken))
	store.AssertNumberOfCalls(t, "CreateInstance", maxSlugSuffix)
}

func TestApplyCreatesRejectsForeignCommands(t *testing.T) {
	ctx := context.Background()
	store := &MockStore{}
	tpl := applyTemplate()

	applier := NewApplier(store, testLogger())
	_, err := applier.ApplyCreates(ctx, tpl, []series.CreateCommand{
		{SeriesID: "other", Date: "2026-01-06"},
	})
	require.Error(t, err)

	var storeErr *Error
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, ErrInvalidInput, storeErr.Type)
	store.AssertNotCalled(t, "CreateInstance", mock.Anything, mock.Anything)
}

func TestApplyCreatesAbortsOnStoreFailure(t *testing.T) {
	ctx := context.Background()
	store := &MockStore{}
	tpl := applyTemplate()

	store.On("CreateInstance", mock.Anything, mock.MatchedBy(slugIs("morning-yoga-2026-01-06"))).
		Return(nil).Once()
	store.On("CreateInstance", mock.Anything, mock.MatchedBy(slugIs("morning-yoga-2026-01-08"))).
		Return(&Error{Type: ErrUnavailable, Message: "database is locked"}).Once()

	applier := NewApplier(store, testLogger())
	stats, err := applier.ApplyCreates(ctx, tpl, []series.CreateCommand{
		{SeriesID: "s1", Date: "2026-01-06"},
		{SeriesID: "s1", Date: "2026-01-08"},
		{SeriesID: "s1", Date: "2026-01-13"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2026-01-08")
	assert.Equal(t, ApplyStats{Created: 1}, stats)
	store.AssertNumberOfCalls(t, "CreateInstance", 2)
}

func TestApplyRegenerateDeletesBeforeCreating(t *testing.T) {
	ctx := context.Background()
	store := &MockStore{}
	tpl := applyTemplate()

	var calls []string
	store.On("DeleteInstance", mock.Anything, "i1").
		Run(func(mock.Arguments) { calls = append(calls, "delete i1") }).
		Return(nil).Once()
	store.On("DeleteInstance", mock.Anything, "i2").
		Run(func(mock.Arguments) { calls = append(calls, "delete i2") }).
		Return(&Error{Type: ErrNotFound, Message: "instance not found"}).Once()
	store.On("CreateInstance", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			rec := args.Get(1).(*InstanceRecord)
			calls = append(calls, "create "+rec.InstanceDate)
		}).
		Return(nil).Twice()

	applier := NewApplier(store, testLogger())
	stats, err := applier.ApplyRegenerate(ctx, tpl, series.RegenerateResult{
		DeleteIDs:   []string{"i1", "i2"},
		CreateDates: []string{"2026-02-03", "2026-02-05"},
	})
	require.NoError(t, err)
	assert.Equal(t, ApplyStats{Created: 2, Deleted: 2}, stats)
	assert.Equal(t, []string{"delete i1", "delete i2", "create 2026-02-03", "create 2026-02-05"}, calls)
	store.AssertExpectations(t)
}

func TestApplyRegenerateAbortsOnDeleteFailure(t *testing.T) {
	ctx := context.Background()
	store := &MockStore{}
	tpl := applyTemplate()

	store.On("DeleteInstance", mock.Anything, "i1").
		Return(fmt.Errorf("connection reset")).Once()

	applier := NewApplier(store, testLogger())
	stats, err := applier.ApplyRegenerate(ctx, tpl, series.RegenerateResult{
		DeleteIDs:   []string{"i1"},
		CreateDates: []string{"2026-02-03"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "i1")
	assert.Zero(t, stats.Deleted)
	store.AssertNotCalled(t, "CreateInstance", mock.Anything, mock.Anything)
}

func TestSyncContent(t *testing.T) {
	ctx := context.Background()
	store := &MockStore{}
	tpl := applyTemplate()
	tpl.Title = "Sunrise Yoga"
	tpl.Location = "Studio B"

	plain := &InstanceRecord{
		ID:           "i1",
		SeriesID:     "s1",
		Slug:         "morning-yoga-2026-01-06",
		Title:        "Morning Yoga",
		InstanceDate: "2026-01-06",
	}
	exception := &InstanceRecord{
		ID:           "i2",
		SeriesID:     "s1",
		Slug:         "morning-yoga-2026-01-08",
		Title:        "Guest Teacher Special",
		InstanceDate: "2026-01-08",
		IsException:  true,
	}

	store.On("GetInstance", mock.Anything, "i1").Return(plain, nil).Once()
	store.On("GetInstance", mock.Anything, "i2").Return(exception, nil).Once()
	store.On("GetInstance", mock.Anything, "gone").
		Return(nil, &Error{Type: ErrNotFound, Message: "instance not found"}).Once()

	var updated *InstanceRecord
	store.On("UpdateInstance", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { updated = args.Get(1).(*InstanceRecord) }).
		Return(nil).Once()

	applier := NewApplier(store, testLogger())
	n, err := applier.SyncContent(ctx, tpl, []string{"i1", "i2", "gone"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NotNil(t, updated)
	assert.Equal(t, "i1", updated.ID)
	assert.Equal(t, "Sunrise Yoga", updated.Title)
	assert.Equal(t, "Studio B", updated.Location)
	store.AssertExpectations(t)
	store.AssertNumberOfCalls(t, "UpdateInstance", 1)
}

func TestSyncContentAbortsOnUpdateFailure(t *testing.T) {
	ctx := context.Background()
	store := &MockStore{}
	tpl := applyTemplate()

	inst := &InstanceRecord{
		ID:           "i1",
		SeriesID:     "s1",
		Slug:         "morning-yoga-2026-01-06",
		Title:        "Morning Yoga",
		InstanceDate: "2026-01-06",
	}
	store.On("GetInstance", mock.Anything, "i1").Return(inst, nil).Once()
	store.On("UpdateInstance", mock.Anything, mock.Anything).
		Return(&Error{Type: ErrUnavailable, Message: "database is locked"}).Once()

	applier := NewApplier(store, testLogger())
	n, err := applier.SyncContent(ctx, tpl, []string{"i1"})
	require.Error(t, err)
	assert.Zero(t, n)
}

package storage

import (
	"testing"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seriate/caldate"
	"seriate/rule"
	"seriate/series"
)

func validSeriesRecord() *SeriesRecord {
	return &SeriesRecord{
		ID:        "s1",
		Slug:      "morning-yoga",
		Title:     "Morning Yoga",
		Rule:      rule.Weekly(2, 4),
		StartDate: "2026-01-06",
		Status:    series.StatusActive,
	}
}

func TestSeriesRecordValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*SeriesRecord)
		wantErr string
	}{
		{
			name:   "valid weekly",
			mutate: func(*SeriesRecord) {},
		},
		{
			name: "valid with end date",
			mutate: func(r *SeriesRecord) {
				r.EndDate = mo.Some("2026-06-30")
			},
		},
		{
			name: "valid with max occurrences",
			mutate: func(r *SeriesRecord) {
				r.MaxOccurrences = mo.Some(10)
			},
		},
		{
			name:    "missing id",
			mutate:  func(r *SeriesRecord) { r.ID = "" },
			wantErr: "id is required",
		},
		{
			name:    "missing slug",
			mutate:  func(r *SeriesRecord) { r.Slug = "" },
			wantErr: "slug is required",
		},
		{
			name:    "missing title",
			mutate:  func(r *SeriesRecord) { r.Title = "" },
			wantErr: "title is required",
		},
		{
			name: "invalid rule",
			mutate: func(r *SeriesRecord) {
				r.Rule = rule.Weekly(7)
			},
			wantErr: "rule",
		},
		{
			name:    "malformed start date",
			mutate:  func(r *SeriesRecord) { r.StartDate = "Jan 6, 2026" },
			wantErr: "start date",
		},
		{
			name: "malformed end date",
			mutate: func(r *SeriesRecord) {
				r.EndDate = mo.Some("2026-13-01")
			},
			wantErr: "end date",
		},
		{
			name: "end date with max occurrences",
			mutate: func(r *SeriesRecord) {
				r.EndDate = mo.Some("2026-06-30")
				r.MaxOccurrences = mo.Some(10)
			},
			wantErr: "mutually exclusive",
		},
		{
			name: "zero max occurrences",
			mutate: func(r *SeriesRecord) {
				r.MaxOccurrences = mo.Some(0)
			},
			wantErr: "must be positive",
		},
		{
			name:    "unknown status",
			mutate:  func(r *SeriesRecord) { r.Status = "archived" },
			wantErr: "unknown series status",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := validSeriesRecord()
			tt.mutate(rec)
			err := rec.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)

			var storeErr *Error
			require.ErrorAs(t, err, &storeErr)
			assert.Equal(t, ErrInvalidInput, storeErr.Type)
		})
	}
}

func TestSeriesRecordTemplate(t *testing.T) {
	rec := validSeriesRecord()
	rec.EndDate = mo.Some("2026-06-30")

	tpl, err := rec.Template()
	require.NoError(t, err)
	assert.Equal(t, "s1", tpl.ID)
	assert.Equal(t, caldate.MustParse("2026-01-06"), tpl.StartDate)
	end, ok := tpl.EndDate.Get()
	require.True(t, ok)
	assert.Equal(t, caldate.MustParse("2026-06-30"), end)
	assert.Equal(t, series.StatusActive, tpl.Status)
	assert.False(t, tpl.MaxOccurrences.IsPresent())

	rec.StartDate = "garbage"
	_, err = rec.Template()
	require.Error(t, err)
}

func TestInstanceRecordValidate(t *testing.T) {
	valid := InstanceRecord{
		ID:           "i1",
		SeriesID:     "s1",
		Slug:         "morning-yoga-2026-01-06",
		Title:        "Morning Yoga",
		InstanceDate: "2026-01-06",
	}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*InstanceRecord)
	}{
		{"missing id", func(r *InstanceRecord) { r.ID = "" }},
		{"missing series id", func(r *InstanceRecord) { r.SeriesID = "" }},
		{"missing slug", func(r *InstanceRecord) { r.Slug = "" }},
		{"malformed date", func(r *InstanceRecord) { r.InstanceDate = "01/06/2026" }},
		{"negative registrations", func(r *InstanceRecord) { r.Registrations = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := valid
			tt.mutate(&rec)
			err := rec.Validate()
			require.Error(t, err)

			var storeErr *Error
			require.ErrorAs(t, err, &storeErr)
			assert.Equal(t, ErrInvalidInput, storeErr.Type)
		})
	}
}

func TestInstanceStates(t *testing.T) {
	recs := []*InstanceRecord{
		{ID: "i1", InstanceDate: "2026-01-06", Registrations: 2},
		{ID: "i2", InstanceDate: "2026-01-08", IsException: true},
		{ID: "i3", InstanceDate: "2026-01-13"},
	}

	states := InstanceStates(recs)
	require.Len(t, states, 3)
	assert.Equal(t, series.InstanceState{ID: "i1", Date: "2026-01-06", HasRegistrations: true}, states[0])
	assert.Equal(t, series.InstanceState{ID: "i2", Date: "2026-01-08", IsException: true}, states[1])
	assert.Equal(t, series.InstanceState{ID: "i3", Date: "2026-01-13"}, states[2])

	assert.Empty(t, InstanceStates(nil))
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Morning Yoga", "morning-yoga"},
		{"  Trail --- Run 5K ", "trail-run-5k"},
		{"Book Club (Fiction)", "book-club-fiction"},
		{"Ünïcode Café", "n-code-caf"},
		{"---", ""},
		{"", ""},
		{"already-slugged", "already-slugged"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Slugify(tt.in), "Slugify(%q)", tt.in)
	}
}

func TestInstanceSlug(t *testing.T) {
	assert.Equal(t, "morning-yoga-2026-01-06", InstanceSlug("morning-yoga", "2026-01-06"))
}

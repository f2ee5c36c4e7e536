package caldate

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAndString(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Date
		wantErr bool
	}{
		{
			name:  "plain date",
			input: "2026-01-06",
			want:  Date{Year: 2026, Month: 1, Day: 6},
		},
		{
			name:  "leap day",
			input: "2024-02-29",
			want:  Date{Year: 2024, Month: 2, Day: 29},
		},
		{
			name:    "leap day in common year",
			input:   "2025-02-29",
			wantErr: true,
		},
		{
			name:    "month out of range",
			input:   "2026-13-01",
			wantErr: true,
		},
		{
			name:    "missing padding",
			input:   "2026-1-6",
			wantErr: true,
		},
		{
			name:    "not a date",
			input:   "tuesday",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.input, got.String())
		})
	}
}

func TestNewValidation(t *testing.T) {
	_, err := New(2026, 2, 29)
	assert.Error(t, err)

	d, err := New(2024, 2, 29)
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29", d.String())

	_, err = New(2026, 0, 10)
	assert.Error(t, err)
}

func TestWeekday(t *testing.T) {
	tests := []struct {
		date string
		want int
	}{
		{"2026-01-01", 4}, // Thursday
		{"2026-01-04", 0}, // Sunday
		{"2026-01-06", 2}, // Tuesday
		{"2026-01-10", 6}, // Saturday
		{"2024-02-29", 4}, // Thursday
	}

	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			assert.Equal(t, tt.want, MustParse(tt.date).Weekday())
		})
	}
}

func TestAddDaysAndWeeks(t *testing.T) {
	d := MustParse("2026-01-29")
	assert.Equal(t, "2026-02-03", d.AddDays(5).String())
	assert.Equal(t, "2026-01-24", d.AddDays(-5).String())
	assert.Equal(t, "2026-02-12", d.AddWeeks(2).String())

	// Week arithmetic never changes the weekday.
	assert.Equal(t, d.Weekday(), d.AddWeeks(7).Weekday())

	// Year boundary.
	assert.Equal(t, "2026-01-01", MustParse("2025-12-31").AddDays(1).String())
}

func TestAddMonthsClampsDay(t *testing.T) {
	tests := []struct {
		name   string
		start  string
		months int
		want   string
	}{
		{
			name:   "jan 31 clamps to feb 28",
			start:  "2025-01-31",
			months: 1,
			want:   "2025-02-28",
		},
		{
			name:   "jan 31 clamps to leap feb 29",
			start:  "2024-01-31",
			months: 1,
			want:   "2024-02-29",
		},
		{
			name:   "clamp does not stick",
			start:  "2025-01-31",
			months: 2,
			want:   "2025-03-31",
		},
		{
			name:   "day 30 into february",
			start:  "2026-04-30",
			months: 10,
			want:   "2027-02-28",
		},
		{
			name:   "plain month step",
			start:  "2026-01-15",
			months: 1,
			want:   "2026-02-15",
		},
		{
			name:   "across year end",
			start:  "2025-11-20",
			months: 3,
			want:   "2026-02-20",
		},
		{
			name:   "backwards with clamp",
			start:  "2026-03-31",
			months: -1,
			want:   "2026-02-28",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MustParse(tt.start).AddMonths(tt.months).String())
		})
	}
}

func TestDaysUntil(t *testing.T) {
	a := MustParse("2026-01-06")
	assert.Equal(t, 9, a.DaysUntil(MustParse("2026-01-15")))
	assert.Equal(t, -6, a.DaysUntil(MustParse("2025-12-31")))
	assert.Equal(t, 0, a.DaysUntil(a))
	assert.Equal(t, 366, MustParse("2024-01-01").DaysUntil(MustParse("2025-01-01")))
}

func TestStartOfWeek(t *testing.T) {
	// 2026-01-04 is a Sunday; the whole week maps back to it.
	for i := 0; i < 7; i++ {
		d := MustParse("2026-01-04").AddDays(i)
		assert.Equal(t, "2026-01-04", d.StartOfWeek().String(), "offset %d", i)
	}
}

func TestDaysInMonth(t *testing.T) {
	assert.Equal(t, 31, DaysInMonth(2026, 1))
	assert.Equal(t, 28, DaysInMonth(2026, 2))
	assert.Equal(t, 29, DaysInMonth(2024, 2))
	assert.Equal(t, 28, DaysInMonth(1900, 2)) // century, not leap
	assert.Equal(t, 29, DaysInMonth(2000, 2)) // 400-year rule
	assert.Equal(t, 30, DaysInMonth(2026, 4))
	assert.Equal(t, 0, DaysInMonth(2026, 13))
}

func TestNthWeekday(t *testing.T) {
	tests := []struct {
		name    string
		year    int
		month   int
		weekday int
		n       int
		want    string
		ok      bool
	}{
		{
			name: "first tuesday of jan 2026",
			year: 2026, month: 1, weekday: 2, n: 1,
			want: "2026-01-06", ok: true,
		},
		{
			name: "second tuesday of jan 2026",
			year: 2026, month: 1, weekday: 2, n: 2,
			want: "2026-01-13", ok: true,
		},
		{
			name: "fifth friday of jan 2026 exists",
			year: 2026, month: 1, weekday: 5, n: 5,
			want: "2026-01-30", ok: true,
		},
		{
			name: "fifth friday of march 2026 does not exist",
			year: 2026, month: 3, weekday: 5, n: 5,
			ok: false,
		},
		{
			name: "last friday of january 2026",
			year: 2026, month: 1, weekday: 5, n: -1,
			want: "2026-01-30", ok: true,
		},
		{
			name: "last friday of february 2026",
			year: 2026, month: 2, weekday: 5, n: -1,
			want: "2026-02-27", ok: true,
		},
		{
			name: "last day is the weekday itself",
			year: 2026, month: 1, weekday: 6, n: -1,
			want: "2026-01-31", ok: true,
		},
		{
			name: "zero occurrence rejected",
			year: 2026, month: 1, weekday: 2, n: 0,
			ok: false,
		},
		{
			name: "weekday out of range",
			year: 2026, month: 1, weekday: 7, n: 1,
			ok: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NthWeekday(tt.year, tt.month, tt.weekday, tt.n)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got.String())
			}
		})
	}
}

func TestCompareAndOrdering(t *testing.T) {
	assert.Equal(t, -1, Compare("2026-01-09", "2026-01-10"))
	assert.Equal(t, 0, Compare("2026-01-10", "2026-01-10"))
	assert.Equal(t, 1, Compare("2026-02-01", "2026-01-31"))

	a := MustParse("2026-01-09")
	b := MustParse("2026-01-10")
	assert.True(t, a.Before(b))
	assert.True(t, b.After(a))
	assert.False(t, a.Equal(b))
	assert.True(t, a.Equal(a))
}

func TestStringFormWrappers(t *testing.T) {
	got, err := AddMonths("2025-01-31", 1)
	require.NoError(t, err)
	assert.Equal(t, "2025-02-28", got)

	got, err = AddDays("2026-01-31", 1)
	require.NoError(t, err)
	assert.Equal(t, "2026-02-01", got)

	got, err = AddWeeks("2026-01-06", 2)
	require.NoError(t, err)
	assert.Equal(t, "2026-01-20", got)

	_, err = AddDays("garbage", 1)
	assert.Error(t, err)
}

func TestFromTime(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 2026-01-07 03:30 UTC is still Jan 6 in New York; FromTime follows the
	// instant's own location.
	utc := time.Date(2026, 1, 7, 3, 30, 0, 0, time.UTC)
	assert.Equal(t, "2026-01-07", FromTime(utc).String())
	assert.Equal(t, "2026-01-06", FromTime(utc.In(loc)).String())
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("2026-12-31"))
	assert.False(t, Valid("2026-12-32"))
	assert.False(t, Valid(""))
}

func TestJSON(t *testing.T) {
	var payload struct {
		Date Date `json:"date"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"date":"2026-01-06"}`), &payload))
	assert.Equal(t, MustParse("2026-01-06"), payload.Date)

	out, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"date":"2026-01-06"}`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"date":"2026-02-30"}`), &payload))
	assert.Error(t, json.Unmarshal([]byte(`{"date":42}`), &payload))
}

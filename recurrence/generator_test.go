package recurrence

import (
	"encoding/json"
	"testing"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seriate/caldate"
	"seriate/rule"
)

func bounds(start, until string) Bounds {
	return Bounds{
		Start: caldate.MustParse(start),
		Until: caldate.MustParse(until),
	}
}

func boundsWithEnd(start, end, until string) Bounds {
	b := bounds(start, until)
	b.End = mo.Some(caldate.MustParse(end))
	return b
}

func boundsWithMax(start string, max int, until string) Bounds {
	b := bounds(start, until)
	b.MaxOccurrences = mo.Some(max)
	return b
}

func TestGenerateWeekly(t *testing.T) {
	gen := NewGeneratorWithConfig(UncachedConfig)

	tests := []struct {
		name   string
		rule   rule.Rule
		bounds Bounds
		want   []string
	}{
		{
			name:   "tuesday thursday capped at four",
			rule:   rule.Weekly(2, 4),
			bounds: boundsWithMax("2026-01-06", 4, "2026-12-31"),
			want:   []string{"2026-01-06", "2026-01-08", "2026-01-13", "2026-01-15"},
		},
		{
			name:   "day order in the rule does not matter",
			rule:   rule.Weekly(4, 2),
			bounds: boundsWithMax("2026-01-06", 4, "2026-12-31"),
			want:   []string{"2026-01-06", "2026-01-08", "2026-01-13", "2026-01-15"},
		},
		{
			name:   "days before the start date are skipped",
			rule:   rule.Weekly(1, 3),
			bounds: boundsWithMax("2026-01-06", 3, "2026-12-31"),
			want:   []string{"2026-01-07", "2026-01-12", "2026-01-14"},
		},
		{
			name:   "empty day set falls back to the start weekday",
			rule:   rule.Weekly(),
			bounds: bounds("2026-01-06", "2026-01-27"),
			want:   []string{"2026-01-06", "2026-01-13", "2026-01-20", "2026-01-27"},
		},
		{
			name:   "end date is inclusive",
			rule:   rule.Weekly(2),
			bounds: boundsWithEnd("2026-01-06", "2026-01-20", "2026-12-31"),
			want:   []string{"2026-01-06", "2026-01-13", "2026-01-20"},
		},
		{
			name:   "date past the end is never included",
			rule:   rule.Weekly(2),
			bounds: boundsWithEnd("2026-01-06", "2026-01-19", "2026-12-31"),
			want:   []string{"2026-01-06", "2026-01-13"},
		},
		{
			name:   "horizon is inclusive and caps an unbounded series",
			rule:   rule.Weekly(2),
			bounds: bounds("2026-01-06", "2026-01-13"),
			want:   []string{"2026-01-06", "2026-01-13"},
		},
		{
			name:   "horizon tighter than max occurrences wins",
			rule:   rule.Weekly(2, 4),
			bounds: boundsWithMax("2026-01-06", 4, "2026-01-10"),
			want:   []string{"2026-01-06", "2026-01-08"},
		},
		{
			name:   "horizon before start yields nothing",
			rule:   rule.Weekly(2),
			bounds: bounds("2026-01-06", "2026-01-05"),
			want:   []string{},
		},
		{
			name:   "end equal to start yields the start alone",
			rule:   rule.Weekly(2),
			bounds: boundsWithEnd("2026-01-06", "2026-01-06", "2026-12-31"),
			want:   []string{"2026-01-06"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := gen.Generate(tt.rule, tt.bounds)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGenerateBiweekly(t *testing.T) {
	gen := NewGeneratorWithConfig(UncachedConfig)

	tests := []struct {
		name   string
		rule   rule.Rule
		bounds Bounds
		want   []string
	}{
		{
			name:   "alternating weeks keep the start week's parity",
			rule:   rule.Biweekly(2, 4),
			bounds: bounds("2026-01-06", "2026-02-28"),
			want: []string{
				"2026-01-06", "2026-01-08",
				"2026-01-20", "2026-01-22",
				"2026-02-03", "2026-02-05",
				"2026-02-17", "2026-02-19",
			},
		},
		{
			name:   "requested day earlier in the start week waits a full stride",
			rule:   rule.Biweekly(1),
			bounds: bounds("2026-01-06", "2026-02-28"),
			want:   []string{"2026-01-19", "2026-02-02", "2026-02-16"},
		},
		{
			name:   "empty day set steps from the start date itself",
			rule:   rule.Biweekly(),
			bounds: bounds("2026-01-06", "2026-02-28"),
			want:   []string{"2026-01-06", "2026-01-20", "2026-02-03", "2026-02-17"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := gen.Generate(tt.rule, tt.bounds)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGenerateMonthly(t *testing.T) {
	gen := NewGeneratorWithConfig(UncachedConfig)

	tests := []struct {
		name   string
		rule   rule.Rule
		bounds Bounds
		want   []string
	}{
		{
			name:   "last friday of each month",
			rule:   rule.Monthly(rule.OnWeekday(5, rule.LastOccurrence)),
			bounds: bounds("2026-01-01", "2026-04-30"),
			want:   []string{"2026-01-30", "2026-02-27", "2026-03-27", "2026-04-24"},
		},
		{
			name:   "day 31 clamps to short months",
			rule:   rule.Monthly(rule.OnDay(31)),
			bounds: bounds("2026-01-01", "2026-04-30"),
			want:   []string{"2026-01-31", "2026-02-28", "2026-03-31", "2026-04-30"},
		},
		{
			name:   "day 31 hits leap february",
			rule:   rule.Monthly(rule.OnDay(31)),
			bounds: bounds("2024-01-01", "2024-03-31"),
			want:   []string{"2024-01-31", "2024-02-29", "2024-03-31"},
		},
		{
			name:   "start mid month skips the first candidate",
			rule:   rule.Monthly(rule.OnDay(15)),
			bounds: bounds("2026-01-20", "2026-03-31"),
			want:   []string{"2026-02-15", "2026-03-15"},
		},
		{
			name:   "second tuesday",
			rule:   rule.Monthly(rule.OnWeekday(2, 2)),
			bounds: bounds("2026-01-01", "2026-03-31"),
			want:   []string{"2026-01-13", "2026-02-10", "2026-03-10"},
		},
		{
			name:   "max occurrences caps the walk",
			rule:   rule.Monthly(rule.OnDay(15)),
			bounds: boundsWithMax("2026-01-01", 2, "2026-12-31"),
			want:   []string{"2026-01-15", "2026-02-15"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := gen.Generate(tt.rule, tt.bounds)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGenerateMonthSkip(t *testing.T) {
	// A fifth Friday does not exist in most months; those months contribute
	// nothing rather than an error or a shifted date.
	gen := NewGeneratorWithConfig(UncachedConfig)

	got, err := gen.Generate(
		rule.Monthly(rule.OnWeekday(5, 5)),
		bounds("2026-01-01", "2026-12-31"),
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-01-30", "2026-05-29", "2026-07-31", "2026-10-30"}, got)
	assert.Less(t, len(got), 12)
}

func TestGenerateOrdering(t *testing.T) {
	// Regardless of rule shape, output is strictly ascending with no
	// duplicates.
	gen := NewGeneratorWithConfig(UncachedConfig)

	cases := []struct {
		name   string
		rule   rule.Rule
		bounds Bounds
	}{
		{"weekly many days", rule.Weekly(6, 0, 3), bounds("2026-01-06", "2026-06-30")},
		{"biweekly", rule.Biweekly(5, 1), bounds("2026-01-06", "2026-06-30")},
		{"monthly day", rule.Monthly(rule.OnDay(29)), bounds("2026-01-06", "2027-06-30")},
		{"monthly last sunday", rule.Monthly(rule.OnWeekday(0, rule.LastOccurrence)), bounds("2026-01-06", "2027-06-30")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := gen.Generate(tc.rule, tc.bounds)
			require.NoError(t, err)
			require.NotEmpty(t, got)
			for i := 1; i < len(got); i++ {
				assert.Equal(t, -1, caldate.Compare(got[i-1], got[i]),
					"%s is not strictly before %s", got[i-1], got[i])
			}
			for _, d := range got {
				assert.GreaterOrEqual(t, caldate.Compare(d, tc.bounds.Start.String()), 0)
				assert.LessOrEqual(t, caldate.Compare(d, tc.bounds.Until.String()), 0)
			}
		})
	}
}

func TestGenerateIterationCeilings(t *testing.T) {
	gen := NewGeneratorWithConfig(UncachedConfig)

	t.Run("weekly truncates at the step ceiling", func(t *testing.T) {
		got, err := gen.Generate(rule.Weekly(2), bounds("2026-01-06", "2126-01-01"))
		require.NoError(t, err)
		assert.Len(t, got, MaxWeekSteps)
	})

	t.Run("biweekly counts strides not calendar span", func(t *testing.T) {
		got, err := gen.Generate(rule.Biweekly(2), bounds("2026-01-06", "2126-01-01"))
		require.NoError(t, err)
		assert.Len(t, got, MaxWeekSteps)
	})

	t.Run("monthly truncates at ten years", func(t *testing.T) {
		got, err := gen.Generate(rule.Monthly(rule.OnDay(15)), bounds("2026-01-15", "2126-01-01"))
		require.NoError(t, err)
		assert.Len(t, got, MaxMonthSteps)
		assert.Equal(t, "2026-01-15", got[0])
		assert.Equal(t, "2035-12-15", got[len(got)-1])
	})
}

func TestGenerateRejectsMalformedInput(t *testing.T) {
	gen := NewGeneratorWithConfig(UncachedConfig)

	tests := []struct {
		name    string
		rule    rule.Rule
		bounds  Bounds
		wantErr error
	}{
		{
			name:    "invalid rule",
			rule:    rule.Weekly(9),
			bounds:  bounds("2026-01-06", "2026-12-31"),
			wantErr: rule.ErrInvalidRule,
		},
		{
			name:    "missing start",
			rule:    rule.Weekly(2),
			bounds:  Bounds{Until: caldate.MustParse("2026-12-31")},
			wantErr: ErrInvalidBounds,
		},
		{
			name:    "missing horizon",
			rule:    rule.Weekly(2),
			bounds:  Bounds{Start: caldate.MustParse("2026-01-06")},
			wantErr: ErrInvalidBounds,
		},
		{
			name: "end date and max occurrences together",
			rule: rule.Weekly(2),
			bounds: Bounds{
				Start:          caldate.MustParse("2026-01-06"),
				End:            mo.Some(caldate.MustParse("2026-06-30")),
				MaxOccurrences: mo.Some(4),
				Until:          caldate.MustParse("2026-12-31"),
			},
			wantErr: ErrInvalidBounds,
		},
		{
			name:    "non positive max occurrences",
			rule:    rule.Weekly(2),
			bounds:  boundsWithMax("2026-01-06", 0, "2026-12-31"),
			wantErr: ErrInvalidBounds,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := gen.Generate(tt.rule, tt.bounds)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestGeneratorCaching(t *testing.T) {
	gen := NewGenerator()
	defer gen.Close()

	r := rule.Weekly(2, 4)
	b := boundsWithMax("2026-01-06", 4, "2026-12-31")

	first, err := gen.Generate(r, b)
	require.NoError(t, err)

	// Mutating a returned slice must not poison later calls.
	first[0] = "mangled"

	second, err := gen.Generate(r, b)
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-01-06", "2026-01-08", "2026-01-13", "2026-01-15"}, second)
}

func TestBoundsJSON(t *testing.T) {
	b := boundsWithMax("2026-01-06", 4, "2026-12-31")

	var decoded Bounds
	data := []byte(`{"startDate":"2026-01-06","endDate":null,"maxOccurrences":4,"generateUntil":"2026-12-31"}`)
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, b, decoded)

	out, err := json.Marshal(b)
	require.NoError(t, err)
	assert.JSONEq(t, string(data), string(out))
}

package series

import (
	"fmt"
	"log/slog"

	"seriate/caldate"
	"seriate/recurrence"
)

// Reconciler plans create and delete commands that bring a series'
// materialized instances in line with its template.
type Reconciler struct {
	gen    *recurrence.Generator
	config Config
	logger *slog.Logger
}

// NewReconciler creates a reconciler with the default horizon policy.
func NewReconciler(gen *recurrence.Generator, logger *slog.Logger) *Reconciler {
	return NewReconcilerWithConfig(gen, DefaultConfig, logger)
}

// NewReconcilerWithConfig creates a reconciler with a custom horizon policy.
func NewReconcilerWithConfig(gen *recurrence.Generator, config Config, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		gen:    gen,
		config: config,
		logger: logger,
	}
}

// Initial plans a fresh template's first batch: every occurrence from the
// series start through the initial horizon. The template has no instances
// yet, so every generated date becomes a create.
func (r *Reconciler) Initial(tpl Template, now caldate.Date) ([]CreateCommand, error) {
	horizon := now.AddMonths(r.config.InitialHorizonMonths)
	dates, err := r.generate(tpl, tpl.StartDate, horizon)
	if err != nil {
		return nil, err
	}

	cmds := make([]CreateCommand, 0, len(dates))
	for _, d := range dates {
		cmds = append(cmds, CreateCommand{SeriesID: tpl.ID, Date: d})
	}

	r.logger.Debug("planned initial materialization",
		"series", tpl.ID,
		"creates", len(cmds),
		"horizon", horizon.String())
	return cmds, nil
}

// Extend plans further occurrences through a farther horizon, creating
// only dates not already present in existingDates. Safe to call repeatedly:
// once its creates are applied, a second call plans nothing. Only active
// templates extend; paused and ended ones produce no commands.
func (r *Reconciler) Extend(tpl Template, existingDates []string, now caldate.Date) ([]CreateCommand, error) {
	if tpl.Status != StatusActive {
		r.logger.Debug("skipped extension of inactive series",
			"series", tpl.ID,
			"status", string(tpl.Status))
		return nil, nil
	}

	from, err := r.extendFrom(tpl, existingDates)
	if err != nil {
		return nil, err
	}
	horizon := now.AddMonths(r.config.ExtendHorizonMonths)
	dates, err := r.generate(tpl, from, horizon)
	if err != nil {
		return nil, err
	}

	existing := make(map[string]struct{}, len(existingDates))
	for _, d := range existingDates {
		existing[d] = struct{}{}
	}

	cmds := make([]CreateCommand, 0, len(dates))
	for _, d := range dates {
		if _, ok := existing[d]; ok {
			continue
		}
		cmds = append(cmds, CreateCommand{SeriesID: tpl.ID, Date: d})
	}

	r.logger.Debug("planned horizon extension",
		"series", tpl.ID,
		"from", from.String(),
		"creates", len(cmds),
		"horizon", horizon.String())
	return cmds, nil
}

// extendFrom picks where generation resumes. With a count budget the walk
// must restart at the series start so that already-materialized occurrences
// consume the budget. Otherwise it resumes at the latest known date, pulled
// back for weekly-class rules to a week sharing the series start's stride
// parity, so an off-pattern date in the store cannot shift the pattern.
func (r *Reconciler) extendFrom(tpl Template, existingDates []string) (caldate.Date, error) {
	if tpl.MaxOccurrences.IsPresent() || len(existingDates) == 0 {
		return tpl.StartDate, nil
	}

	latestStr := existingDates[0]
	for _, d := range existingDates[1:] {
		if caldate.Compare(d, latestStr) > 0 {
			latestStr = d
		}
	}
	latest, err := caldate.Parse(latestStr)
	if err != nil {
		return caldate.Date{}, fmt.Errorf("series %s: existing instance date: %w", tpl.ID, err)
	}

	if latest.Before(tpl.StartDate) {
		return tpl.StartDate, nil
	}
	if !tpl.Rule.IsWeeklyClass() {
		return latest, nil
	}

	weeks := tpl.StartDate.StartOfWeek().DaysUntil(latest.StartOfWeek()) / 7
	aligned := latest.StartOfWeek().AddWeeks(-(weeks % tpl.Rule.WeekStep()))
	if aligned.Before(tpl.StartDate) {
		return tpl.StartDate, nil
	}
	return aligned, nil
}

// Regenerate rebuilds a series' future from the current template. Future
// instances lose their spot only when nothing shields them: an instance
// with registrations, or flagged as an exception, survives no matter what
// the new rule says, and its date is not recreated under a second identity.
// Past instances are never deleted and never recreated.
func (r *Reconciler) Regenerate(tpl Template, existing []InstanceState, now caldate.Date) (RegenerateResult, error) {
	today := now.String()

	deleteIDs := []string{}
	survivors := make(map[string]struct{}, len(existing))
	latest := ""
	for _, inst := range existing {
		if caldate.Compare(inst.Date, latest) > 0 {
			latest = inst.Date
		}
		if caldate.Compare(inst.Date, today) >= 0 && !inst.HasRegistrations && !inst.IsException {
			deleteIDs = append(deleteIDs, inst.ID)
			continue
		}
		survivors[inst.Date] = struct{}{}
	}

	// Rebuild at least as far out as the series already reached, so a rule
	// edit does not silently shrink a previously extended window.
	horizon := now.AddMonths(r.config.InitialHorizonMonths)
	if latest != "" && caldate.Compare(latest, horizon.String()) > 0 {
		parsed, err := caldate.Parse(latest)
		if err != nil {
			return RegenerateResult{}, fmt.Errorf("series %s: existing instance date: %w", tpl.ID, err)
		}
		horizon = parsed
	}

	dates, err := r.generate(tpl, tpl.StartDate, horizon)
	if err != nil {
		return RegenerateResult{}, err
	}

	createDates := make([]string, 0, len(dates))
	for _, d := range dates {
		if caldate.Compare(d, today) < 0 {
			continue
		}
		if _, ok := survivors[d]; ok {
			continue
		}
		createDates = append(createDates, d)
	}

	r.logger.Debug("planned regeneration",
		"series", tpl.ID,
		"deletes", len(deleteIDs),
		"creates", len(createDates),
		"horizon", horizon.String())
	return RegenerateResult{DeleteIDs: deleteIDs, CreateDates: createDates}, nil
}

// ContentTargets lists the instances a template content edit propagates to:
// future, non-exception ones. Exceptions keep their diverged content, and
// past instances keep whatever was true when they happened.
func (r *Reconciler) ContentTargets(existing []InstanceState, now caldate.Date) []string {
	today := now.String()
	ids := []string{}
	for _, inst := range existing {
		if inst.IsException {
			continue
		}
		if caldate.Compare(inst.Date, today) >= 0 {
			ids = append(ids, inst.ID)
		}
	}
	return ids
}

// generate runs the occurrence generator with the template's own end
// condition and the given window.
func (r *Reconciler) generate(tpl Template, from, until caldate.Date) ([]string, error) {
	dates, err := r.gen.Generate(tpl.Rule, recurrence.Bounds{
		Start:          from,
		End:            tpl.EndDate,
		MaxOccurrences: tpl.MaxOccurrences,
		Until:          until,
	})
	if err != nil {
		return nil, fmt.Errorf("series %s: %w", tpl.ID, err)
	}
	return dates, nil
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"seriate/series"
)

// maxSlugSuffix bounds disambiguation retries per instance. Running past it
// means something other than ordinary cross-series collisions is going on.
const maxSlugSuffix = 50

// Applier turns reconciler commands into store writes.
//
// Creates are idempotent: a date the series already holds is skipped, not
// an error, so re-applying a batch after a partial failure converges. A
// taken slug is disambiguated with a numeric suffix and never aborts the
// rest of the batch.
type Applier struct {
	store  Store
	logger *slog.Logger
}

// NewApplier creates an applier writing to the given store.
func NewApplier(store Store, logger *slog.Logger) *Applier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Applier{store: store, logger: logger}
}

// ApplyStats summarizes one apply pass.
type ApplyStats struct {
	Created int
	Skipped int
	Deleted int
}

// ApplyCreates materializes the planned instances, stamping each with the
// template's content.
func (a *Applier) ApplyCreates(ctx context.Context, tpl *SeriesRecord, cmds []series.CreateCommand) (ApplyStats, error) {
	var stats ApplyStats
	for _, cmd := range cmds {
		if cmd.SeriesID != tpl.ID {
			return stats, &Error{
				Type:    ErrInvalidInput,
				Message: fmt.Sprintf("create command for series %s applied to series %s", cmd.SeriesID, tpl.ID),
			}
		}
		created, err := a.createInstance(ctx, tpl, cmd.Date)
		if err != nil {
			return stats, err
		}
		if created {
			stats.Created++
		} else {
			stats.Skipped++
		}
	}
	return stats, nil
}

// createInstance writes one occurrence. Returns false when the date was
// already materialized.
func (a *Applier) createInstance(ctx context.Context, tpl *SeriesRecord, date string) (bool, error) {
	base := InstanceSlug(tpl.Slug, date)
	rec := &InstanceRecord{
		ID:           uuid.NewString(),
		SeriesID:     tpl.ID,
		Slug:         base,
		Title:        tpl.Title,
		Description:  tpl.Description,
		Location:     tpl.Location,
		InstanceDate: date,
	}

	for suffix := 1; suffix <= maxSlugSuffix; suffix++ {
		if suffix > 1 {
			rec.Slug = fmt.Sprintf("%s-%d", base, suffix)
		}
		err := a.store.CreateInstance(ctx, rec)
		switch {
		case err == nil:
			if suffix > 1 {
				a.logger.Debug("disambiguated instance slug",
					"series", tpl.ID,
					"date", date,
					"slug", rec.Slug)
			}
			return true, nil
		case errors.Is(err, ErrDuplicateDate):
			a.logger.Debug("instance date already materialized",
				"series", tpl.ID,
				"date", date)
			return false, nil
		case errors.Is(err, ErrSlugTaken):
			continue
		default:
			return false, fmt.Errorf("series %s: create instance on %s: %w", tpl.ID, date, err)
		}
	}
	return false, &Error{
		Type:    ErrAlreadyExists,
		Message: fmt.Sprintf("no free slug for %s after %d attempts", base, maxSlugSuffix),
		Err:     ErrSlugTaken,
	}
}

// ApplyRegenerate deletes the vacated instances, then materializes the
// replacement dates. Instances already gone are counted as deleted; the
// operation is safe to re-apply.
func (a *Applier) ApplyRegenerate(ctx context.Context, tpl *SeriesRecord, res series.RegenerateResult) (ApplyStats, error) {
	var stats ApplyStats
	for _, id := range res.DeleteIDs {
		err := a.store.DeleteInstance(ctx, id)
		switch {
		case err == nil:
			stats.Deleted++
		case IsNotFound(err):
			stats.Deleted++
		default:
			return stats, fmt.Errorf("series %s: delete instance %s: %w", tpl.ID, id, err)
		}
	}

	cmds := make([]series.CreateCommand, 0, len(res.CreateDates))
	for _, d := range res.CreateDates {
		cmds = append(cmds, series.CreateCommand{SeriesID: tpl.ID, Date: d})
	}
	createStats, err := a.ApplyCreates(ctx, tpl, cmds)
	stats.Created = createStats.Created
	stats.Skipped = createStats.Skipped
	return stats, err
}

// SyncContent stamps the template's current content onto the given
// instances. Exceptions are left alone even if listed; instances deleted
// since the plan was made are skipped.
func (a *Applier) SyncContent(ctx context.Context, tpl *SeriesRecord, ids []string) (int, error) {
	updated := 0
	for _, id := range ids {
		inst, err := a.store.GetInstance(ctx, id)
		if IsNotFound(err) {
			continue
		}
		if err != nil {
			return updated, fmt.Errorf("series %s: load instance %s: %w", tpl.ID, id, err)
		}
		if inst.IsException {
			continue
		}
		inst.Title = tpl.Title
		inst.Description = tpl.Description
		inst.Location = tpl.Location
		if err := a.store.UpdateInstance(ctx, inst); err != nil {
			return updated, fmt.Errorf("series %s: update instance %s: %w", tpl.ID, id, err)
		}
		updated++
	}
	return updated, nil
}

// Package sweep runs the scheduled horizon maintenance over active series.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"seriate/caldate"
	"seriate/export"
	"seriate/internal/metrics"
	"seriate/publish"
	"seriate/series"
	"seriate/storage"
)

// Sweeper extends every active series through the horizon and republishes
// the feeds that changed.
type Sweeper struct {
	store      storage.Store
	reconciler *series.Reconciler
	applier    *storage.Applier
	publisher  publish.Publisher
	logger     *slog.Logger

	// now is the reconciliation clock, swappable in tests.
	now func() caldate.Date
}

// New creates a sweeper. publisher may be nil, which disables publishing.
func New(store storage.Store, reconciler *series.Reconciler, publisher publish.Publisher, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		store:      store,
		reconciler: reconciler,
		applier:    storage.NewApplier(store, logger),
		publisher:  publisher,
		logger:     logger,
		now:        func() caldate.Date { return caldate.FromTime(time.Now()) },
	}
}

// Result summarizes one maintenance run.
type Result struct {
	Series   int // active series visited
	Extended int // series that grew
	Created  int // instances written
	Failed   int // series whose extension errored
}

// Run walks the active series once. A failure on one series is logged and
// counted but does not stop the rest; the joined errors come back with the
// result. Run converges: a second pass right after a successful one
// creates nothing.
func (s *Sweeper) Run(ctx context.Context) (Result, error) {
	status := series.StatusActive
	recs, err := s.store.ListSeries(ctx, &storage.ListSeriesOptions{Status: &status})
	if err != nil {
		return Result{}, fmt.Errorf("list active series: %w", err)
	}

	var res Result
	var errs []error
	res.Series = len(recs)
	for _, rec := range recs {
		created, err := s.extend(ctx, rec)
		if err != nil {
			res.Failed++
			errs = append(errs, err)
			s.logger.Error("series extension failed", "series", rec.ID, "error", err)
			continue
		}
		if created > 0 {
			res.Extended++
			res.Created += created
			s.republish(ctx, rec)
		}
	}

	s.logger.Info("maintenance sweep finished",
		"series", res.Series,
		"extended", res.Extended,
		"created", res.Created,
		"failed", res.Failed)
	return res, errors.Join(errs...)
}

func (s *Sweeper) extend(ctx context.Context, rec *storage.SeriesRecord) (int, error) {
	tpl, err := rec.Template()
	if err != nil {
		return 0, err
	}
	dates, err := s.store.ListInstanceDates(ctx, rec.ID)
	if err != nil {
		return 0, err
	}
	start := time.Now()
	cmds, err := s.reconciler.Extend(tpl, dates, s.now())
	var stats storage.ApplyStats
	if err == nil {
		stats, err = s.applier.ApplyCreates(ctx, rec, cmds)
	}
	metrics.RecordReconcile("extend", stats, time.Since(start), err)
	return stats.Created, err
}

func (s *Sweeper) republish(ctx context.Context, rec *storage.SeriesRecord) {
	if s.publisher == nil {
		return
	}
	instances, err := s.store.ListInstances(ctx, rec.ID, nil)
	if err != nil {
		s.logger.Warn("feed publish skipped", "series", rec.ID, "error", err)
		return
	}
	docs, err := export.Documents(rec, instances)
	if err != nil {
		s.logger.Warn("feed render failed", "series", rec.ID, "error", err)
		return
	}
	for _, doc := range docs {
		if err := s.publisher.Put(ctx, doc.Key, doc.Data, doc.ContentType); err != nil {
			s.logger.Warn("feed publish failed", "series", rec.ID, "key", doc.Key, "error", err)
		}
	}
}

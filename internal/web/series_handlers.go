package web

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"

	"seriate/internal/metrics"
	"seriate/rule"
	"seriate/series"
	"seriate/storage"
)

// reconcileResponse reports a mutation together with what it did to the
// materialized window.
type reconcileResponse struct {
	Series  *storage.SeriesRecord `json:"series"`
	Created int                   `json:"created"`
	Skipped int                   `json:"skipped"`
	Deleted int                   `json:"deleted"`
}

func (s *Server) handleListSeries(w http.ResponseWriter, r *http.Request) {
	var opts *storage.ListSeriesOptions
	if v := r.URL.Query().Get("status"); v != "" {
		status := series.Status(v)
		switch status {
		case series.StatusActive, series.StatusPaused, series.StatusEnded:
		default:
			s.writeError(w, r, &storage.Error{Type: storage.ErrInvalidInput, Message: "unknown status filter"})
			return
		}
		opts = &storage.ListSeriesOptions{Status: &status}
	}
	recs, err := s.store.ListSeries(r.Context(), opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleGetSeries(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.GetSeries(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleCreateSeries persists the template and materializes its initial
// horizon in one request.
func (s *Server) handleCreateSeries(w http.ResponseWriter, r *http.Request) {
	var rec storage.SeriesRecord
	if err := decodeJSON(r, &rec); err != nil {
		s.writeError(w, r, err)
		return
	}
	rec.ID = uuid.NewString()
	if rec.Slug == "" {
		rec.Slug = storage.Slugify(rec.Title)
	}
	if rec.Status == "" {
		rec.Status = series.StatusActive
	}
	if err := rec.Validate(); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.store.CreateSeries(r.Context(), &rec); err != nil {
		s.writeError(w, r, err)
		return
	}

	tpl, err := rec.Template()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	start := time.Now()
	cmds, err := s.reconciler.Initial(tpl, s.now())
	var stats storage.ApplyStats
	if err == nil {
		stats, err = s.applier.ApplyCreates(r.Context(), &rec, cmds)
	}
	metrics.RecordReconcile("initial", stats, time.Since(start), err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.republish(r, &rec)
	writeJSON(w, http.StatusCreated, reconcileResponse{
		Series:  &rec,
		Created: stats.Created,
		Skipped: stats.Skipped,
	})
}

// optionPatch distinguishes an absent field from an explicit null.
// encoding/json collapses null straight into a nil pointer, so a pointer
// to mo.Option never sees the null; a non-pointer wrapper does.
type optionPatch[T any] struct {
	set   bool
	value mo.Option[T]
}

func (p *optionPatch[T]) UnmarshalJSON(data []byte) error {
	p.set = true
	return p.value.UnmarshalJSON(data)
}

// seriesPatch is the PATCH body. Pointer fields distinguish "absent" from
// an explicit value; the bound fields additionally accept null to clear,
// so swapping endDate for maxOccurrences is one request.
type seriesPatch struct {
	Slug           *string             `json:"slug"`
	Title          *string             `json:"title"`
	Description    *string             `json:"description"`
	Location       *string             `json:"location"`
	Rule           *rule.Rule          `json:"rule"`
	StartDate      *string             `json:"startDate"`
	EndDate        optionPatch[string] `json:"endDate"`
	MaxOccurrences optionPatch[int]    `json:"maxOccurrences"`
	Status         *series.Status      `json:"status"`
}

func (p *seriesPatch) touchesRule() bool {
	return p.Rule != nil || p.StartDate != nil || p.EndDate.set || p.MaxOccurrences.set
}

func (p *seriesPatch) touchesContent() bool {
	return p.Title != nil || p.Description != nil || p.Location != nil
}

// handleUpdateSeries applies a partial update. A patch carrying recurrence
// fields regenerates the window; one carrying only content fields syncs
// the content onto non-exception instances. Status flips on their own
// change nothing materialized; the maintenance sweep picks the series up
// again once it is active.
func (s *Server) handleUpdateSeries(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.GetSeries(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var patch seriesPatch
	if err := decodeJSON(r, &patch); err != nil {
		s.writeError(w, r, err)
		return
	}

	if patch.Slug != nil {
		rec.Slug = *patch.Slug
	}
	if patch.Title != nil {
		rec.Title = *patch.Title
	}
	if patch.Description != nil {
		rec.Description = *patch.Description
	}
	if patch.Location != nil {
		rec.Location = *patch.Location
	}
	if patch.Rule != nil {
		rec.Rule = *patch.Rule
	}
	if patch.StartDate != nil {
		rec.StartDate = *patch.StartDate
	}
	if patch.EndDate.set {
		rec.EndDate = patch.EndDate.value
	}
	if patch.MaxOccurrences.set {
		rec.MaxOccurrences = patch.MaxOccurrences.value
	}
	if patch.Status != nil {
		rec.Status = *patch.Status
	}

	if err := rec.Validate(); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.store.UpdateSeries(r.Context(), rec); err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := reconcileResponse{Series: rec}
	switch {
	case patch.touchesRule():
		tpl, err := rec.Template()
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		instances, err := s.store.ListInstances(r.Context(), rec.ID, nil)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		start := time.Now()
		res, err := s.reconciler.Regenerate(tpl, storage.InstanceStates(instances), s.now())
		var stats storage.ApplyStats
		if err == nil {
			stats, err = s.applier.ApplyRegenerate(r.Context(), rec, res)
		}
		metrics.RecordReconcile("regenerate", stats, time.Since(start), err)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		resp.Created = stats.Created
		resp.Skipped = stats.Skipped
		resp.Deleted = stats.Deleted
	case patch.touchesContent():
		instances, err := s.store.ListInstances(r.Context(), rec.ID, nil)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		start := time.Now()
		ids := s.reconciler.ContentTargets(storage.InstanceStates(instances), s.now())
		n, err := s.applier.SyncContent(r.Context(), rec, ids)
		metrics.RecordReconcile("content", storage.ApplyStats{}, time.Since(start), err)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.logger.Info("synced instance content", "series", rec.ID, "updated", n)
	}

	s.republish(r, rec)
	writeJSON(w, http.StatusOK, resp)
}

// handleDeleteSeries drops the template and every instance. Published
// feed documents are not retracted; the publisher only replaces.
func (s *Server) handleDeleteSeries(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteSeries(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListInstances(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.store.GetSeries(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	var opts *storage.ListInstancesOptions
	q := r.URL.Query()
	if from, to := q.Get("from"), q.Get("to"); from != "" || to != "" {
		opts = &storage.ListInstancesOptions{}
		if from != "" {
			opts.From = &from
		}
		if to != "" {
			opts.To = &to
		}
	}
	instances, err := s.store.ListInstances(r.Context(), id, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, instances)
}

// handleExtend pushes the series' materialized window forward.
func (s *Server) handleExtend(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.GetSeries(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	tpl, err := rec.Template()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	dates, err := s.store.ListInstanceDates(r.Context(), rec.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	start := time.Now()
	cmds, err := s.reconciler.Extend(tpl, dates, s.now())
	var stats storage.ApplyStats
	if err == nil {
		stats, err = s.applier.ApplyCreates(r.Context(), rec, cmds)
	}
	metrics.RecordReconcile("extend", stats, time.Since(start), err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.republish(r, rec)
	writeJSON(w, http.StatusOK, reconcileResponse{
		Series:  rec,
		Created: stats.Created,
		Skipped: stats.Skipped,
	})
}

// handleRegenerate rebuilds the window against the current rule, keeping
// instances that are shielded or exceptional.
func (s *Server) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.GetSeries(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	tpl, err := rec.Template()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	instances, err := s.store.ListInstances(r.Context(), rec.ID, nil)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	start := time.Now()
	res, err := s.reconciler.Regenerate(tpl, storage.InstanceStates(instances), s.now())
	var stats storage.ApplyStats
	if err == nil {
		stats, err = s.applier.ApplyRegenerate(r.Context(), rec, res)
	}
	metrics.RecordReconcile("regenerate", stats, time.Since(start), err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.republish(r, rec)
	writeJSON(w, http.StatusOK, reconcileResponse{
		Series:  rec,
		Created: stats.Created,
		Skipped: stats.Skipped,
		Deleted: stats.Deleted,
	})
}

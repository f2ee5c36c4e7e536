package web

import "net/http"

func (s *Server) handleGetInstance(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.GetInstance(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// instancePatch is the PATCH body for one occurrence. Editing any field
// marks the instance as an exception, taking it out of content sync and
// shielding its date from regeneration.
type instancePatch struct {
	Slug         *string `json:"slug"`
	Title        *string `json:"title"`
	Description  *string `json:"description"`
	Location     *string `json:"location"`
	InstanceDate *string `json:"instanceDate"`
}

func (p *instancePatch) empty() bool {
	return p.Slug == nil && p.Title == nil && p.Description == nil &&
		p.Location == nil && p.InstanceDate == nil
}

func (s *Server) handleUpdateInstance(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.GetInstance(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var patch instancePatch
	if err := decodeJSON(r, &patch); err != nil {
		s.writeError(w, r, err)
		return
	}
	if patch.empty() {
		writeJSON(w, http.StatusOK, rec)
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
	if patch.InstanceDate != nil {
		rec.InstanceDate = *patch.InstanceDate
	}
	rec.IsException = true

	if err := rec.Validate(); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.store.UpdateInstance(r.Context(), rec); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.republishSeries(r, rec.SeriesID)
	writeJSON(w, http.StatusOK, rec)
}

// handleDeleteInstance removes one occurrence. The date stays vacant until
// the next regeneration fills it again, unless the rule no longer produces
// it.
func (s *Server) handleDeleteInstance(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.GetInstance(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.store.DeleteInstance(r.Context(), rec.ID); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.republishSeries(r, rec.SeriesID)
	w.WriteHeader(http.StatusNoContent)
}

type registrationRequest struct {
	Delta int `json:"delta"`
}

type registrationResponse struct {
	Registrations int `json:"registrations"`
}

// handleAdjustRegistrations moves the instance's registration count by a
// signed delta. A non-zero count shields the instance from regeneration.
func (s *Server) handleAdjustRegistrations(w http.ResponseWriter, r *http.Request) {
	var req registrationRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	count, err := s.store.AdjustRegistrations(r.Context(), r.PathValue("id"), req.Delta)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, registrationResponse{Registrations: count})
}

// republishSeries refreshes the feeds for the instance's parent series.
func (s *Server) republishSeries(r *http.Request, seriesID string) {
	if s.publisher == nil {
		return
	}
	rec, err := s.store.GetSeries(r.Context(), seriesID)
	if err != nil {
		s.logger.Warn("feed publish skipped", "series", seriesID, "error", err)
		return
	}
	s.republish(r, rec)
}

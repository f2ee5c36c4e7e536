package web

import (
	"net/http"
	"strings"

	"seriate/export"
	"seriate/storage"
)

// handleFeed serves a series' calendar document. The path carries the
// series slug plus a format extension: /feeds/<slug>.ics or
// /feeds/<slug>.xcal.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	file := r.PathValue("file")
	dot := strings.LastIndex(file, ".")
	if dot <= 0 {
		http.NotFound(w, r)
		return
	}
	slug, format := file[:dot], file[dot+1:]

	var render func(*storage.SeriesRecord, []*storage.InstanceRecord) ([]byte, error)
	var mime string
	switch format {
	case "ics":
		render, mime = export.ICS, mimeCalendar
	case "xcal":
		render, mime = export.XCal, mimeXCal
	default:
		http.NotFound(w, r)
		return
	}

	rec, err := s.store.GetSeriesBySlug(r.Context(), slug)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	instances, err := s.store.ListInstances(r.Context(), rec.ID, nil)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	data, err := render(rec, instances)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set(headerContentType, mime)
	_, _ = w.Write(data)
}

// memory based implementation for tests and single-process deployments
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"seriate/storage"
)

// Store implements storage.Store using in-memory maps.
type Store struct {
	mu            sync.RWMutex
	series        map[string]*storage.SeriesRecord
	instances     map[string]*storage.InstanceRecord
	seriesSlugs   map[string]string            // slug -> series ID
	instanceSlugs map[string]string            // slug -> instance ID
	dates         map[string]map[string]string // series ID -> date -> instance ID
}

var _ storage.Store = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		series:        make(map[string]*storage.SeriesRecord),
		instances:     make(map[string]*storage.InstanceRecord),
		seriesSlugs:   make(map[string]string),
		instanceSlugs: make(map[string]string),
		dates:         make(map[string]map[string]string),
	}
}

func cloneSeries(rec *storage.SeriesRecord) *storage.SeriesRecord {
	c := *rec
	if rec.Rule.DaysOfWeek != nil {
		c.Rule.DaysOfWeek = append([]int(nil), rec.Rule.DaysOfWeek...)
	}
	return &c
}

func cloneInstance(rec *storage.InstanceRecord) *storage.InstanceRecord {
	c := *rec
	return &c
}

// Series operations

func (s *Store) GetSeries(_ context.Context, id string) (*storage.SeriesRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.series[id]
	if !ok {
		return nil, &storage.Error{
			Type:    storage.ErrNotFound,
			Message: "series not found",
		}
	}
	return cloneSeries(rec), nil
}

func (s *Store) GetSeriesBySlug(_ context.Context, slug string) (*storage.SeriesRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.seriesSlugs[slug]
	if !ok {
		return nil, &storage.Error{
			Type:    storage.ErrNotFound,
			Message: "series not found",
		}
	}
	return cloneSeries(s.series[id]), nil
}

func (s *Store) ListSeries(_ context.Context, opts *storage.ListSeriesOptions) ([]*storage.SeriesRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*storage.SeriesRecord{}
	for _, rec := range s.series {
		if opts != nil && opts.Status != nil && rec.Status != *opts.Status {
			continue
		}
		out = append(out, cloneSeries(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, nil
}

func (s *Store) CreateSeries(_ context.Context, rec *storage.SeriesRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.series[rec.ID]; exists {
		return &storage.Error{
			Type:    storage.ErrAlreadyExists,
			Message: "series already exists",
		}
	}
	if _, taken := s.seriesSlugs[rec.Slug]; taken {
		return &storage.Error{
			Type:    storage.ErrAlreadyExists,
			Message: "series slug already in use",
			Err:     storage.ErrSlugTaken,
		}
	}

	now := time.Now()
	rec.Created = now
	rec.Modified = now
	s.series[rec.ID] = cloneSeries(rec)
	s.seriesSlugs[rec.Slug] = rec.ID
	s.dates[rec.ID] = make(map[string]string)
	return nil
}

func (s *Store) UpdateSeries(_ context.Context, rec *storage.SeriesRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.series[rec.ID]
	if !ok {
		return &storage.Error{
			Type:    storage.ErrNotFound,
			Message: "series not found",
		}
	}
	if rec.Slug != prev.Slug {
		if _, taken := s.seriesSlugs[rec.Slug]; taken {
			return &storage.Error{
				Type:    storage.ErrAlreadyExists,
				Message: "series slug already in use",
				Err:     storage.ErrSlugTaken,
			}
		}
		delete(s.seriesSlugs, prev.Slug)
		s.seriesSlugs[rec.Slug] = rec.ID
	}

	rec.Created = prev.Created
	rec.Modified = time.Now()
	s.series[rec.ID] = cloneSeries(rec)
	return nil
}

func (s *Store) DeleteSeries(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.series[id]
	if !ok {
		return &storage.Error{
			Type:    storage.ErrNotFound,
			Message: "series not found",
		}
	}

	for instID, inst := range s.instances {
		if inst.SeriesID == id {
			delete(s.instanceSlugs, inst.Slug)
			delete(s.instances, instID)
		}
	}
	delete(s.dates, id)
	delete(s.seriesSlugs, rec.Slug)
	delete(s.series, id)
	return nil
}

// Instance operations

func (s *Store) GetInstance(_ context.Context, id string) (*storage.InstanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.instances[id]
	if !ok {
		return nil, &storage.Error{
			Type:    storage.ErrNotFound,
			Message: "instance not found",
		}
	}
	return cloneInstance(rec), nil
}

func (s *Store) GetInstanceBySlug(_ context.Context, slug string) (*storage.InstanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.instanceSlugs[slug]
	if !ok {
		return nil, &storage.Error{
			Type:    storage.ErrNotFound,
			Message: "instance not found",
		}
	}
	return cloneInstance(s.instances[id]), nil
}

func (s *Store) ListInstances(_ context.Context, seriesID string, opts *storage.ListInstancesOptions) ([]*storage.InstanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*storage.InstanceRecord{}
	for _, rec := range s.instances {
		if rec.SeriesID != seriesID {
			continue
		}
		if opts != nil && opts.From != nil && rec.InstanceDate < *opts.From {
			continue
		}
		if opts != nil && opts.To != nil && rec.InstanceDate > *opts.To {
			continue
		}
		out = append(out, cloneInstance(rec))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].InstanceDate != out[j].InstanceDate {
			return out[i].InstanceDate < out[j].InstanceDate
		}
		return out[i].Slug < out[j].Slug
	})
	return out, nil
}

func (s *Store) ListInstanceDates(_ context.Context, seriesID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dates := []string{}
	for date := range s.dates[seriesID] {
		dates = append(dates, date)
	}
	sort.Strings(dates)
	return dates, nil
}

func (s *Store) CreateInstance(_ context.Context, rec *storage.InstanceRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.instances[rec.ID]; exists {
		return &storage.Error{
			Type:    storage.ErrAlreadyExists,
			Message: "instance already exists",
		}
	}
	byDate, ok := s.dates[rec.SeriesID]
	if !ok {
		return &storage.Error{
			Type:    storage.ErrNotFound,
			Message: "series not found",
		}
	}
	if _, taken := byDate[rec.InstanceDate]; taken {
		return &storage.Error{
			Type:    storage.ErrAlreadyExists,
			Message: "series already holds this date",
			Err:     storage.ErrDuplicateDate,
		}
	}
	if _, taken := s.instanceSlugs[rec.Slug]; taken {
		return &storage.Error{
			Type:    storage.ErrAlreadyExists,
			Message: "instance slug already in use",
			Err:     storage.ErrSlugTaken,
		}
	}

	now := time.Now()
	rec.Created = now
	rec.Modified = now
	s.instances[rec.ID] = cloneInstance(rec)
	s.instanceSlugs[rec.Slug] = rec.ID
	byDate[rec.InstanceDate] = rec.ID
	return nil
}

func (s *Store) UpdateInstance(_ context.Context, rec *storage.InstanceRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.instances[rec.ID]
	if !ok {
		return &storage.Error{
			Type:    storage.ErrNotFound,
			Message: "instance not found",
		}
	}
	if rec.SeriesID != prev.SeriesID {
		return &storage.Error{
			Type:    storage.ErrInvalidInput,
			Message: "instance cannot move between series",
		}
	}
	// Check both collisions before touching either index, so a rejected
	// update leaves the store untouched.
	if rec.InstanceDate != prev.InstanceDate {
		if _, taken := s.dates[rec.SeriesID][rec.InstanceDate]; taken {
			return &storage.Error{
				Type:    storage.ErrAlreadyExists,
				Message: "series already holds this date",
				Err:     storage.ErrDuplicateDate,
			}
		}
	}
	if rec.Slug != prev.Slug {
		if _, taken := s.instanceSlugs[rec.Slug]; taken {
			return &storage.Error{
				Type:    storage.ErrAlreadyExists,
				Message: "instance slug already in use",
				Err:     storage.ErrSlugTaken,
			}
		}
	}
	if rec.InstanceDate != prev.InstanceDate {
		byDate := s.dates[rec.SeriesID]
		delete(byDate, prev.InstanceDate)
		byDate[rec.InstanceDate] = rec.ID
	}
	if rec.Slug != prev.Slug {
		delete(s.instanceSlugs, prev.Slug)
		s.instanceSlugs[rec.Slug] = rec.ID
	}

	rec.Created = prev.Created
	rec.Modified = time.Now()
	s.instances[rec.ID] = cloneInstance(rec)
	return nil
}

func (s *Store) DeleteInstance(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.instances[id]
	if !ok {
		return &storage.Error{
			Type:    storage.ErrNotFound,
			Message: "instance not found",
		}
	}

	delete(s.instanceSlugs, rec.Slug)
	if byDate, ok := s.dates[rec.SeriesID]; ok {
		delete(byDate, rec.InstanceDate)
	}
	delete(s.instances, id)
	return nil
}

// Registration operations

func (s *Store) AdjustRegistrations(_ context.Context, instanceID string, delta int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.instances[instanceID]
	if !ok {
		return 0, &storage.Error{
			Type:    storage.ErrNotFound,
			Message: "instance not found",
		}
	}
	next := rec.Registrations + delta
	if next < 0 {
		return rec.Registrations, &storage.Error{
			Type:    storage.ErrInvalidInput,
			Message: "registrations cannot go negative",
		}
	}
	rec.Registrations = next
	rec.Modified = time.Now()
	return next, nil
}

func (s *Store) Close() error {
	return nil
}

package storage

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockStore implements the Store interface for testing.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) GetSeries(ctx context.Context, id string) (*SeriesRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*SeriesRecord), args.Error(1)
}

func (m *MockStore) GetSeriesBySlug(ctx context.Context, slug string) (*SeriesRecord, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*SeriesRecord), args.Error(1)
}

func (m *MockStore) ListSeries(ctx context.Context, opts *ListSeriesOptions) ([]*SeriesRecord, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*SeriesRecord), args.Error(1)
}

func (m *MockStore) CreateSeries(ctx context.Context, rec *SeriesRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockStore) UpdateSeries(ctx context.Context, rec *SeriesRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockStore) DeleteSeries(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockStore) GetInstance(ctx context.Context, id string) (*InstanceRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*InstanceRecord), args.Error(1)
}

func (m *MockStore) GetInstanceBySlug(ctx context.Context, slug string) (*InstanceRecord, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*InstanceRecord), args.Error(1)
}

func (m *MockStore) ListInstances(ctx context.Context, seriesID string, opts *ListInstancesOptions) ([]*InstanceRecord, error) {
	args := m.Called(ctx, seriesID, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*InstanceRecord), args.Error(1)
}

func (m *MockStore) ListInstanceDates(ctx context.Context, seriesID string) ([]string, error) {
	args := m.Called(ctx, seriesID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockStore) CreateInstance(ctx context.Context, rec *InstanceRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockStore) UpdateInstance(ctx context.Context, rec *InstanceRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockStore) DeleteInstance(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockStore) AdjustRegistrations(ctx context.Context, instanceID string, delta int) (int, error) {
	args := m.Called(ctx, instanceID, delta)
	return args.Int(0), args.Error(1)
}

func (m *MockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

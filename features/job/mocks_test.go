package job_test

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"kontext/apps/processor/features/job"
)

// MockRepo implements job.Repository
type MockRepo struct {
	mock.Mock
}

func (m *MockRepo) Save(ctx context.Context, j *job.Job) error {
	args := m.Called(ctx, j)
	return args.Error(0)
}

func (m *MockRepo) List(ctx context.Context) ([]job.Job, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]job.Job), args.Error(1)
}

func (m *MockRepo) Get(ctx context.Context, id string) (*job.Job, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*job.Job), args.Error(1)
}

func (m *MockRepo) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockRequeuer implements job.Requeuer
type MockRequeuer struct {
	mock.Mock
	sleep time.Duration
}

func (m *MockRequeuer) Send(ctx context.Context, body []byte) (string, error) {
	time.Sleep(m.sleep)
	args := m.Called(ctx, body)
	return args.String(0), args.Error(1)
}

package worker_test

import (
	"context"

	"github.com/stretchr/testify/mock"
	"rateright/backend/features/discovery"
	"rateright/backend/features/servicetype"
)

type MockCascadeRunner struct {
	mock.Mock
}

func (m *MockCascadeRunner) Run(ctx context.Context, task *discovery.Task) error {
	args := m.Called(ctx, task)
	return args.Error(0)
}

type MockCondenser struct {
	mock.Mock
}

func (m *MockCondenser) CondenseQuery(ctx context.Context, query string) string {
	args := m.Called(ctx, query)
	return args.String(0)
}

type MockRegistrar struct {
	mock.Mock
}

func (m *MockRegistrar) EnsureExists(ctx context.Context, name, category, description string) (*servicetype.ServiceType, error) {
	args := m.Called(ctx, name, category, description)
	if st := args.Get(0); st != nil {
		return st.(*servicetype.ServiceType), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockReplyChecker struct {
	mock.Mock
}

func (m *MockReplyChecker) CheckReplies(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

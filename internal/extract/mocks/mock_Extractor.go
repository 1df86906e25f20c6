// Package mocks provides test doubles for the extractor.
package mocks

import (
	"context"

	extract "github.com/sells-group/careaudit-cli/internal/extract"
	model "github.com/sells-group/careaudit-cli/internal/model"
	mock "github.com/stretchr/testify/mock"
)

// MockExtractor is a mock type for the Extractor interface.
type MockExtractor struct {
	mock.Mock
}

// Extract provides a mock function with given fields: ctx, req
func (_m *MockExtractor) Extract(ctx context.Context, req extract.Request) (*model.Candidate, error) {
	ret := _m.Called(ctx, req)

	if len(ret) == 0 {
		panic("no return value specified for Extract")
	}

	var r0 *model.Candidate
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, extract.Request) (*model.Candidate, error)); ok {
		return rf(ctx, req)
	}
	if rf, ok := ret.Get(0).(func(context.Context, extract.Request) *model.Candidate); ok {
		r0 = rf(ctx, req)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*model.Candidate)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, extract.Request) error); ok {
		r1 = rf(ctx, req)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockExtractor creates a new instance of MockExtractor.
func NewMockExtractor(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockExtractor {
	mock := &MockExtractor{}
	mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}

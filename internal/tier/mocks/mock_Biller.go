// Package mocks provides test doubles for tier.
package mocks

import (
	"context"

	model "github.com/sells-group/careaudit-cli/internal/model"
	mock "github.com/stretchr/testify/mock"
)

// MockBiller is a mock type for the Biller interface.
type MockBiller struct {
	mock.Mock
}

// ScheduleTierChange provides a mock function with given fields: ctx, f, to
func (_m *MockBiller) ScheduleTierChange(ctx context.Context, f *model.Facility, to model.Tier) error {
	ret := _m.Called(ctx, f, to)

	if len(ret) == 0 {
		panic("no return value specified for ScheduleTierChange")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, *model.Facility, model.Tier) error); ok {
		r0 = rf(ctx, f, to)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// NewMockBiller creates a new instance of MockBiller. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
// The first argument is typically a *testing.T value.
func NewMockBiller(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockBiller {
	m := &MockBiller{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

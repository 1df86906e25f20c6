// Package mocks provides test doubles for notify.
package mocks

import (
	"context"

	notify "github.com/sells-group/careaudit-cli/internal/notify"
	mock "github.com/stretchr/testify/mock"
)

// MockNotifier is a mock type for the Notifier interface.
type MockNotifier struct {
	mock.Mock
}

// Notify provides a mock function with given fields: ctx, to, kind, p
func (_m *MockNotifier) Notify(ctx context.Context, to string, kind notify.Kind, p notify.Params) error {
	ret := _m.Called(ctx, to, kind, p)

	if len(ret) == 0 {
		panic("no return value specified for Notify")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, string, notify.Kind, notify.Params) error); ok {
		r0 = rf(ctx, to, kind, p)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// NewMockNotifier creates a new instance of MockNotifier. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
// The first argument is typically a *testing.T value.
func NewMockNotifier(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockNotifier {
	m := &MockNotifier{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

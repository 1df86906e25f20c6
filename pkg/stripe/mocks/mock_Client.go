// Package mocks provides test doubles for the stripe client.
package mocks

import (
	"context"

	stripe "github.com/sells-group/careaudit-cli/pkg/stripe"
	mock "github.com/stretchr/testify/mock"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// CreateCheckoutSession provides a mock function with given fields: ctx, p
func (_m *MockClient) CreateCheckoutSession(ctx context.Context, p stripe.CheckoutParams) (*stripe.CheckoutSession, error) {
	ret := _m.Called(ctx, p)

	if len(ret) == 0 {
		panic("no return value specified for CreateCheckoutSession")
	}

	var r0 *stripe.CheckoutSession
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, stripe.CheckoutParams) (*stripe.CheckoutSession, error)); ok {
		return rf(ctx, p)
	}
	if rf, ok := ret.Get(0).(func(context.Context, stripe.CheckoutParams) *stripe.CheckoutSession); ok {
		r0 = rf(ctx, p)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*stripe.CheckoutSession)
	}

	if rf, ok := ret.Get(1).(func(context.Context, stripe.CheckoutParams) error); ok {
		r1 = rf(ctx, p)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// GetSubscription provides a mock function with given fields: ctx, id
func (_m *MockClient) GetSubscription(ctx context.Context, id string) (*stripe.Subscription, error) {
	ret := _m.Called(ctx, id)

	if len(ret) == 0 {
		panic("no return value specified for GetSubscription")
	}

	var r0 *stripe.Subscription
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (*stripe.Subscription, error)); ok {
		return rf(ctx, id)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) *stripe.Subscription); ok {
		r0 = rf(ctx, id)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*stripe.Subscription)
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, id)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// ListActiveSubscriptions provides a mock function with given fields: ctx
func (_m *MockClient) ListActiveSubscriptions(ctx context.Context) ([]stripe.Subscription, error) {
	ret := _m.Called(ctx)

	if len(ret) == 0 {
		panic("no return value specified for ListActiveSubscriptions")
	}

	var r0 []stripe.Subscription
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context) ([]stripe.Subscription, error)); ok {
		return rf(ctx)
	}
	if rf, ok := ret.Get(0).(func(context.Context) []stripe.Subscription); ok {
		r0 = rf(ctx)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).([]stripe.Subscription)
	}

	if rf, ok := ret.Get(1).(func(context.Context) error); ok {
		r1 = rf(ctx)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// UpdateSubscriptionPrice provides a mock function with given fields: ctx, subscriptionID, itemID, priceID
func (_m *MockClient) UpdateSubscriptionPrice(ctx context.Context, subscriptionID string, itemID string, priceID string) (*stripe.Subscription, error) {
	ret := _m.Called(ctx, subscriptionID, itemID, priceID)

	if len(ret) == 0 {
		panic("no return value specified for UpdateSubscriptionPrice")
	}

	var r0 *stripe.Subscription
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string, string, string) (*stripe.Subscription, error)); ok {
		return rf(ctx, subscriptionID, itemID, priceID)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string, string, string) *stripe.Subscription); ok {
		r0 = rf(ctx, subscriptionID, itemID, priceID)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*stripe.Subscription)
	}

	if rf, ok := ret.Get(1).(func(context.Context, string, string, string) error); ok {
		r1 = rf(ctx, subscriptionID, itemID, priceID)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// GetPrice provides a mock function with given fields: ctx, id
func (_m *MockClient) GetPrice(ctx context.Context, id string) (*stripe.Price, error) {
	ret := _m.Called(ctx, id)

	if len(ret) == 0 {
		panic("no return value specified for GetPrice")
	}

	var r0 *stripe.Price
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (*stripe.Price, error)); ok {
		return rf(ctx, id)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) *stripe.Price); ok {
		r0 = rf(ctx, id)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*stripe.Price)
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, id)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockClient creates a new instance of MockClient. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
// The first argument is typically a *testing.T value.
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClient {
	m := &MockClient{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

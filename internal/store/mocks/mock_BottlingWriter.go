package mocks

import (
	"context"

	model "github.com/sells-group/h2-custody/internal/model"
	mock "github.com/stretchr/testify/mock"
)

// MockBottlingWriter is a mock type for the BottlingWriter interface.
type MockBottlingWriter struct {
	mock.Mock
}

// ApplyBottling provides a mock function with given fields: ctx, plan
func (_m *MockBottlingWriter) ApplyBottling(ctx context.Context, plan model.BottlingPlan) error {
	ret := _m.Called(ctx, plan)

	if len(ret) == 0 {
		panic("no return value specified for ApplyBottling")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, model.BottlingPlan) error); ok {
		r0 = rf(ctx, plan)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// NewMockBottlingWriter creates a new instance of MockBottlingWriter.
func NewMockBottlingWriter(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockBottlingWriter {
	mock := &MockBottlingWriter{}
	mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}

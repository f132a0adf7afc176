package mocks

import (
	"context"

	model "github.com/sells-group/h2-custody/internal/model"
	mock "github.com/stretchr/testify/mock"
)

// MockInventoryReader is a mock type for the InventoryReader interface.
type MockInventoryReader struct {
	mock.Mock
}

// ListAvailableHydrogenSteps provides a mock function with given fields: ctx, storageUnitID
func (_m *MockInventoryReader) ListAvailableHydrogenSteps(ctx context.Context, storageUnitID string) ([]model.ProcessStep, error) {
	ret := _m.Called(ctx, storageUnitID)

	if len(ret) == 0 {
		panic("no return value specified for ListAvailableHydrogenSteps")
	}

	var r0 []model.ProcessStep
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) ([]model.ProcessStep, error)); ok {
		return rf(ctx, storageUnitID)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) []model.ProcessStep); ok {
		r0 = rf(ctx, storageUnitID)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([]model.ProcessStep)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, storageUnitID)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockInventoryReader creates a new instance of MockInventoryReader.
func NewMockInventoryReader(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockInventoryReader {
	mock := &MockInventoryReader{}
	mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}

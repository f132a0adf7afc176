// Package mocks provides test doubles for the store interfaces.
package mocks

import (
	"context"

	model "github.com/sells-group/h2-custody/internal/model"
	mock "github.com/stretchr/testify/mock"
)

// MockProductionUnitReader is a mock type for the ProductionUnitReader interface.
type MockProductionUnitReader struct {
	mock.Mock
}

// ReadPowerUnitsByIDs provides a mock function with given fields: ctx, ids
func (_m *MockProductionUnitReader) ReadPowerUnitsByIDs(ctx context.Context, ids []string) ([]model.PowerProductionUnit, error) {
	ret := _m.Called(ctx, ids)

	if len(ret) == 0 {
		panic("no return value specified for ReadPowerUnitsByIDs")
	}

	var r0 []model.PowerProductionUnit
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, []string) ([]model.PowerProductionUnit, error)); ok {
		return rf(ctx, ids)
	}
	if rf, ok := ret.Get(0).(func(context.Context, []string) []model.PowerProductionUnit); ok {
		r0 = rf(ctx, ids)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([]model.PowerProductionUnit)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, []string) error); ok {
		r1 = rf(ctx, ids)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// ReadHydrogenUnitsByIDs provides a mock function with given fields: ctx, ids
func (_m *MockProductionUnitReader) ReadHydrogenUnitsByIDs(ctx context.Context, ids []string) ([]model.HydrogenProductionUnit, error) {
	ret := _m.Called(ctx, ids)

	if len(ret) == 0 {
		panic("no return value specified for ReadHydrogenUnitsByIDs")
	}

	var r0 []model.HydrogenProductionUnit
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, []string) ([]model.HydrogenProductionUnit, error)); ok {
		return rf(ctx, ids)
	}
	if rf, ok := ret.Get(0).(func(context.Context, []string) []model.HydrogenProductionUnit); ok {
		r0 = rf(ctx, ids)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([]model.HydrogenProductionUnit)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, []string) error); ok {
		r1 = rf(ctx, ids)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockProductionUnitReader creates a new instance of MockProductionUnitReader.
func NewMockProductionUnitReader(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockProductionUnitReader {
	mock := &MockProductionUnitReader{}
	mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}

package store

import (
	"context"

	"github.com/sells-group/h2-custody/internal/model"
)

// ProcessStepReader reads persisted process steps together with their batch
// and its predecessor/successor links.
type ProcessStepReader interface {
	// ReadUnique returns the step or an error wrapping model.ErrMissingInput
	// when no step has that id.
	ReadUnique(ctx context.Context, id string) (*model.ProcessStep, error)
	// ReadMany returns the steps that exist among ids, in the order of ids.
	// Unknown ids are skipped.
	ReadMany(ctx context.Context, ids []string) ([]model.ProcessStep, error)
}

// ProductionUnitReader reads unit metadata used by the RED correlation checks.
type ProductionUnitReader interface {
	ReadPowerUnitsByIDs(ctx context.Context, ids []string) ([]model.PowerProductionUnit, error)
	ReadHydrogenUnitsByIDs(ctx context.Context, ids []string) ([]model.HydrogenProductionUnit, error)
}

// InventoryReader lists hydrogen available for bottling.
type InventoryReader interface {
	// ListAvailableHydrogenSteps returns the steps owning active hydrogen
	// batches held in the storage unit, oldest first.
	ListAvailableHydrogenSteps(ctx context.Context, storageUnitID string) ([]model.ProcessStep, error)
}

// BottlingWriter persists the outcome of a bottling in one transaction.
type BottlingWriter interface {
	ApplyBottling(ctx context.Context, plan model.BottlingPlan) error
}

// Seeder records lineage and unit metadata directly. It backs fixture
// loading; production steps arrive through ApplyBottling only.
type Seeder interface {
	// InsertStep records a step and its batch. Predecessor links are read
	// by BatchID and must reference batches that already exist.
	InsertStep(ctx context.Context, step model.ProcessStep) error
	InsertPowerUnit(ctx context.Context, u model.PowerProductionUnit) error
	InsertHydrogenUnit(ctx context.Context, u model.HydrogenProductionUnit) error
}

// Store is the full persistence surface of the custody service.
type Store interface {
	ProcessStepReader
	ProductionUnitReader
	InventoryReader
	BottlingWriter
	Seeder

	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

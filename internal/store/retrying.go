package store

import (
	"context"

	"github.com/sells-group/h2-custody/internal/model"
	"github.com/sells-group/h2-custody/internal/resilience"
)

// RetryingStore retries transient failures of the wrapped Store. Client
// errors such as ErrMissingInput pass through on the first attempt.
type RetryingStore struct {
	Store
	driver string
	cfg    resilience.RetryConfig
}

var _ Store = (*RetryingStore)(nil)

// NewRetryingStore wraps s. driver labels retry log lines.
func NewRetryingStore(s Store, driver string, cfg resilience.RetryConfig) *RetryingStore {
	return &RetryingStore{Store: s, driver: driver, cfg: cfg}
}

func (r *RetryingStore) config(op string) resilience.RetryConfig {
	cfg := r.cfg
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger(r.driver, op)
	}
	return cfg
}

// ReadUnique implements ProcessStepReader.
func (r *RetryingStore) ReadUnique(ctx context.Context, id string) (*model.ProcessStep, error) {
	return resilience.DoVal(ctx, r.config("read_unique"), func(ctx context.Context) (*model.ProcessStep, error) {
		return r.Store.ReadUnique(ctx, id)
	})
}

// ReadMany implements ProcessStepReader.
func (r *RetryingStore) ReadMany(ctx context.Context, ids []string) ([]model.ProcessStep, error) {
	return resilience.DoVal(ctx, r.config("read_many"), func(ctx context.Context) ([]model.ProcessStep, error) {
		return r.Store.ReadMany(ctx, ids)
	})
}

// ReadPowerUnitsByIDs implements ProductionUnitReader.
func (r *RetryingStore) ReadPowerUnitsByIDs(ctx context.Context, ids []string) ([]model.PowerProductionUnit, error) {
	return resilience.DoVal(ctx, r.config("read_power_units"), func(ctx context.Context) ([]model.PowerProductionUnit, error) {
		return r.Store.ReadPowerUnitsByIDs(ctx, ids)
	})
}

// ReadHydrogenUnitsByIDs implements ProductionUnitReader.
func (r *RetryingStore) ReadHydrogenUnitsByIDs(ctx context.Context, ids []string) ([]model.HydrogenProductionUnit, error) {
	return resilience.DoVal(ctx, r.config("read_hydrogen_units"), func(ctx context.Context) ([]model.HydrogenProductionUnit, error) {
		return r.Store.ReadHydrogenUnitsByIDs(ctx, ids)
	})
}

// ListAvailableHydrogenSteps implements InventoryReader.
func (r *RetryingStore) ListAvailableHydrogenSteps(ctx context.Context, storageUnitID string) ([]model.ProcessStep, error) {
	return resilience.DoVal(ctx, r.config("list_inventory"), func(ctx context.Context) ([]model.ProcessStep, error) {
		return r.Store.ListAvailableHydrogenSteps(ctx, storageUnitID)
	})
}

// ApplyBottling implements BottlingWriter. The write is transactional, so a
// failed attempt leaves nothing behind to conflict with the next one.
func (r *RetryingStore) ApplyBottling(ctx context.Context, plan model.BottlingPlan) error {
	return resilience.Do(ctx, r.config("apply_bottling"), func(ctx context.Context) error {
		return r.Store.ApplyBottling(ctx, plan)
	})
}

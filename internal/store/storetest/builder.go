// Package storetest builds lineage fixtures on top of store.MemStore for tests.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/h2-custody/internal/model"
	"github.com/sells-group/h2-custody/internal/store"
)

// BaseTime is the default StartedAt of fixture steps.
var BaseTime = time.Date(2024, time.March, 14, 9, 0, 0, 0, time.UTC)

// Builder adds process steps to a MemStore. Batch ids are "b-" + step id.
type Builder struct {
	t     testing.TB
	Store *store.MemStore
}

// New returns a Builder over an empty MemStore.
func New(t testing.TB) *Builder {
	t.Helper()
	return &Builder{t: t, Store: store.NewMemStore()}
}

// Option customises a fixture step.
type Option func(*model.ProcessStep)

// Color sets the hydrogen color and RFNBO type of the batch.
func Color(c model.HydrogenColor, rfnbo model.RFNBOType) Option {
	return func(s *model.ProcessStep) {
		s.Batch.QualityDetails = &model.QualityDetails{Color: c, RFNBOType: rfnbo}
	}
}

// At sets StartedAt, with EndedAt one hour later.
func At(ts time.Time) Option {
	return func(s *model.ProcessStep) {
		s.StartedAt = ts
		s.EndedAt = ts.Add(time.Hour)
	}
}

// ExecutedBy sets the executing unit id.
func ExecutedBy(unitID string) Option {
	return func(s *model.ProcessStep) { s.ExecutedByID = unitID }
}

// InStorage places the batch in a hydrogen storage unit.
func InStorage(storageUnitID string) Option {
	return func(s *model.ProcessStep) { s.Batch.HydrogenStorageUnitID = storageUnitID }
}

// Inactive marks the batch as consumed.
func Inactive() Option {
	return func(s *model.ProcessStep) { s.Batch.Active = false }
}

// BatchType overrides the batch type derived from the step type.
func BatchType(bt model.BatchType) Option {
	return func(s *model.ProcessStep) { s.Batch.Type = bt }
}

// Add records a step whose batch has the given amount and whose predecessor
// batches are those of the steps named in preds.
func (b *Builder) Add(id string, typ model.ProcessStepType, amount string, preds []string, opts ...Option) {
	b.t.Helper()

	step := model.ProcessStep{
		ID:           id,
		Type:         typ,
		ExecutedByID: "unit-" + id,
		Batch: &model.Batch{
			ID:     BatchID(id),
			Amount: decimal.RequireFromString(amount),
			Type:   batchTypeFor(typ),
			Active: true,
		},
	}
	At(BaseTime)(&step)
	for _, p := range preds {
		step.Batch.Predecessors = append(step.Batch.Predecessors, model.BatchLink{BatchID: BatchID(p)})
	}
	for _, o := range opts {
		o(&step)
	}
	require.NoError(b.t, b.Store.AddStep(step))
}

// Step reads a step back with its links resolved.
func (b *Builder) Step(id string) model.ProcessStep {
	b.t.Helper()
	s, err := b.Store.ReadUnique(context.Background(), id)
	require.NoError(b.t, err)
	return *s
}

// Steps reads several steps back.
func (b *Builder) Steps(ids ...string) []model.ProcessStep {
	b.t.Helper()
	out := make([]model.ProcessStep, 0, len(ids))
	for _, id := range ids {
		out = append(out, b.Step(id))
	}
	return out
}

// BatchID returns the fixture batch id of a step.
func BatchID(stepID string) string {
	return "b-" + stepID
}

// IDs returns the ids of steps in order.
func IDs(steps []model.ProcessStep) []string {
	ids := make([]string, len(steps))
	for i, s := range steps {
		ids[i] = s.ID
	}
	return ids
}

func batchTypeFor(t model.ProcessStepType) model.BatchType {
	switch t {
	case model.ProcessStepPowerProduction:
		return model.BatchTypePower
	case model.ProcessStepWaterConsumption:
		return model.BatchTypeWater
	default:
		return model.BatchTypeHydrogen
	}
}

// Package bottling fills hydrogen from a storage unit into a new bottle
// batch and records the resulting lineage.
package bottling

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sells-group/h2-custody/internal/allocation"
	"github.com/sells-group/h2-custody/internal/composition"
	"github.com/sells-group/h2-custody/internal/model"
	"github.com/sells-group/h2-custody/internal/store"
)

// Filling is the requested amount of one hydrogen color.
type Filling struct {
	Color  model.HydrogenColor `json:"color"`
	Amount decimal.Decimal     `json:"amount"`
}

// Request describes one bottling.
type Request struct {
	StorageUnitID string    `json:"storage_unit_id"`
	ExecutedByID  string    `json:"executed_by_id"`
	RecordedByID  string    `json:"recorded_by_id"`
	OwnerID       string    `json:"owner_id"`
	StartedAt     time.Time `json:"started_at"`
	EndedAt       time.Time `json:"ended_at"`
	Filling       []Filling `json:"filling"`
}

// Service runs bottlings against a store.
type Service struct {
	inventory store.InventoryReader
	writer    store.BottlingWriter
	selector  *allocation.Selector
	newID     func() string
	now       func() time.Time
}

// NewService creates a Service. A nil selector defaults to one using
// allocation.NewSplitAssembler.
func NewService(inventory store.InventoryReader, writer store.BottlingWriter, selector *allocation.Selector) *Service {
	if selector == nil {
		selector = allocation.NewSelector(nil)
	}
	return &Service{
		inventory: inventory,
		writer:    writer,
		selector:  selector,
		newID:     uuid.NewString,
		now:       time.Now,
	}
}

// Bottle allocates the requested filling from the storage unit's active
// batches, oldest first, and persists the bottling in one go. The bottle
// batch keeps a single color as is; several colors make a non-certifiable
// MIX.
func (s *Service) Bottle(ctx context.Context, req Request) (*model.BottlingPlan, error) {
	required, total, err := normalize(req)
	if err != nil {
		return nil, err
	}

	available, err := s.inventory.ListAvailableHydrogenSteps(ctx, req.StorageUnitID)
	if err != nil {
		return nil, eris.Wrapf(err, "bottling: list inventory of %s", req.StorageUnitID)
	}

	selection, err := s.selector.SelectForAllColors(available, required, req.StorageUnitID)
	if err != nil {
		return nil, err
	}

	owners := make(map[string]string, len(available))
	for _, st := range available {
		if st.Batch != nil {
			owners[st.Batch.ID] = st.ID
		}
	}

	var links []model.BatchLink
	var filled []model.Batch
	for _, b := range selection.BatchesForBottle {
		links = append(links, model.BatchLink{BatchID: b.ID, ProcessStepID: owners[b.ID], Amount: b.Amount})
		filled = append(filled, b)
	}
	for _, st := range selection.ConsumedSplitProcessSteps {
		links = append(links, model.BatchLink{BatchID: st.Batch.ID, ProcessStepID: st.ID, Amount: st.Batch.Amount})
		filled = append(filled, *st.Batch)
	}

	components, err := composition.Aggregate(filled)
	if err != nil {
		return nil, eris.Wrap(err, "bottling: compose bottle")
	}

	startedAt, endedAt := req.StartedAt, req.EndedAt
	if startedAt.IsZero() {
		startedAt = s.now().UTC()
	}
	if endedAt.IsZero() {
		endedAt = startedAt
	}

	plan := &model.BottlingPlan{
		Bottling: model.ProcessStep{
			ID:           s.newID(),
			Type:         model.ProcessStepHydrogenBottling,
			StartedAt:    startedAt,
			EndedAt:      endedAt,
			ExecutedByID: req.ExecutedByID,
			RecordedByID: req.RecordedByID,
			Batch: &model.Batch{
				ID:             s.newID(),
				Amount:         total,
				Type:           model.BatchTypeHydrogen,
				QualityDetails: composition.Quality(components),
				Active:         true,
				OwnerID:        req.OwnerID,
				Predecessors:   links,
			},
		},
		Selection: selection,
	}

	if err := s.writer.ApplyBottling(ctx, *plan); err != nil {
		return nil, eris.Wrapf(err, "bottling: persist bottling %s", plan.Bottling.ID)
	}

	zap.L().Info("bottling: recorded",
		zap.String("process_step_id", plan.Bottling.ID),
		zap.String("storage_unit_id", req.StorageUnitID),
		zap.String("amount", total.String()),
		zap.String("color", string(plan.Bottling.Batch.Color())),
		zap.Int("whole_batches", len(selection.BatchesForBottle)),
		zap.Int("split_batches", len(selection.ProcessStepsToBeSplit)),
	)
	return plan, nil
}

// normalize validates the request and merges repeated colors so that no
// batch is allocated twice.
func normalize(req Request) ([]model.HydrogenComponent, decimal.Decimal, error) {
	if req.StorageUnitID == "" {
		return nil, decimal.Zero, eris.Wrap(model.ErrMissingInput, "bottling: storage unit is required")
	}
	if len(req.Filling) == 0 {
		return nil, decimal.Zero, eris.Wrap(model.ErrMissingInput, "bottling: filling is empty")
	}

	var out []model.HydrogenComponent
	index := make(map[model.HydrogenColor]int)
	total := decimal.Zero
	for _, f := range req.Filling {
		if f.Color == "" {
			return nil, decimal.Zero, eris.Wrap(model.ErrMissingInput, "bottling: filling color is required")
		}
		if !f.Amount.IsPositive() {
			return nil, decimal.Zero, eris.Wrapf(model.ErrMissingInput, "bottling: amount of %s must be positive, got %s", f.Color, f.Amount)
		}
		total = total.Add(f.Amount)
		if i, ok := index[f.Color]; ok {
			out[i].Amount = out[i].Amount.Add(f.Amount)
			continue
		}
		index[f.Color] = len(out)
		out = append(out, model.HydrogenComponent{Color: f.Color, Amount: f.Amount})
	}
	return out, total, nil
}

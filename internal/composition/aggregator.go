// Package composition breaks a bottled or transported hydrogen batch down
// into its per-color components.
package composition

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sells-group/h2-custody/internal/model"
	"github.com/sells-group/h2-custody/internal/store"
)

// Aggregator resolves the predecessor batches of a step and aggregates them.
type Aggregator struct {
	steps store.ProcessStepReader
}

// NewAggregator creates an Aggregator.
func NewAggregator(steps store.ProcessStepReader) *Aggregator {
	return &Aggregator{steps: steps}
}

// Assemble returns one component per distinct color among the predecessor
// batches of step, in first-seen order. Only bottling and transportation
// steps have a hydrogen composition.
func (a *Aggregator) Assemble(ctx context.Context, step *model.ProcessStep) ([]model.HydrogenComponent, error) {
	if step == nil {
		return nil, eris.Wrap(model.ErrMissingInput, "composition: process step is required")
	}
	switch step.Type {
	case model.ProcessStepHydrogenBottling, model.ProcessStepHydrogenTransportation:
	default:
		return nil, eris.Wrapf(model.ErrTypeMismatch, "composition: process step %s has type %s, expected %s or %s",
			step.ID, step.Type, model.ProcessStepHydrogenBottling, model.ProcessStepHydrogenTransportation)
	}
	if !step.HasPredecessors() {
		return nil, eris.Wrapf(model.ErrNoPredecessors, "composition: process step %s has no predecessor batches", step.ID)
	}

	preds, err := a.steps.ReadMany(ctx, step.PredecessorStepIDs())
	if err != nil {
		return nil, eris.Wrapf(err, "composition: read predecessors of %s", step.ID)
	}
	batches := make([]model.Batch, 0, len(preds))
	for _, p := range preds {
		if p.Batch != nil {
			batches = append(batches, *p.Batch)
		}
	}

	components, err := Aggregate(batches)
	if err != nil {
		return nil, eris.Wrapf(err, "composition: process step %s", step.ID)
	}
	return components, nil
}

// AssembleByID reads the step first.
func (a *Aggregator) AssembleByID(ctx context.Context, id string) ([]model.HydrogenComponent, error) {
	step, err := a.steps.ReadUnique(ctx, id)
	if err != nil {
		return nil, eris.Wrap(err, "composition: invalid process step")
	}
	return a.Assemble(ctx, step)
}

// Aggregate groups hydrogen batches by color and sums their amounts. The
// RFNBO type of a color bucket is the one of the first batch seen with that
// color; later disagreements are logged, not reconciled.
func Aggregate(batches []model.Batch) ([]model.HydrogenComponent, error) {
	var out []model.HydrogenComponent
	index := make(map[model.HydrogenColor]int)

	for _, b := range batches {
		if b.Type != model.BatchTypeHydrogen {
			return nil, eris.Wrapf(model.ErrTypeMismatch, "batch %s has type %s, expected %s", b.ID, b.Type, model.BatchTypeHydrogen)
		}
		color := b.Color()
		i, ok := index[color]
		if !ok {
			index[color] = len(out)
			out = append(out, model.HydrogenComponent{
				Color:     color,
				Amount:    b.Amount,
				RFNBOType: b.RFNBO(),
			})
			continue
		}
		c := &out[i]
		c.Amount = c.Amount.Add(b.Amount)
		if r := b.RFNBO(); r != c.RFNBOType {
			zap.L().Warn("composition: rfnbo type disagreement within color",
				zap.String("color", string(color)),
				zap.String("batch_id", b.ID),
				zap.String("kept", string(c.RFNBOType)),
				zap.String("ignored", string(r)),
			)
		}
	}
	return out, nil
}

// Total sums the component amounts.
func Total(components []model.HydrogenComponent) decimal.Decimal {
	total := decimal.Zero
	for _, c := range components {
		total = total.Add(c.Amount)
	}
	return total
}

// Quality derives the quality details of a batch made of components: a
// single color is kept as is, several colors make a MIX that cannot be
// certified.
func Quality(components []model.HydrogenComponent) *model.QualityDetails {
	switch len(components) {
	case 0:
		return nil
	case 1:
		return &model.QualityDetails{Color: components[0].Color, RFNBOType: components[0].RFNBOType}
	default:
		return &model.QualityDetails{Color: model.HydrogenColorMix, RFNBOType: model.RFNBONonCertifiable}
	}
}

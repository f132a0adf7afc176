// Package lineage walks predecessor links between process steps to find the
// ancestors of a given type.
package lineage

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/h2-custody/internal/model"
	"github.com/sells-group/h2-custody/internal/store"
)

// Traversal resolves ancestor process steps layer by layer.
type Traversal struct {
	steps store.ProcessStepReader
}

// NewTraversal creates a Traversal over the given reader.
func NewTraversal(steps store.ProcessStepReader) *Traversal {
	return &Traversal{steps: steps}
}

// FetchPowerProductionProcessSteps returns the power production steps feeding
// the given hydrogen production steps, following split chains.
func (t *Traversal) FetchPowerProductionProcessSteps(ctx context.Context, hydrogenProductions []model.ProcessStep) ([]model.ProcessStep, error) {
	return t.FetchUpstreamOfType(ctx, hydrogenProductions, model.ProcessStepHydrogenProduction, model.ProcessStepPowerProduction)
}

// FetchWaterConsumptionProcessSteps returns the water consumption steps
// feeding the given hydrogen production steps.
func (t *Traversal) FetchWaterConsumptionProcessSteps(ctx context.Context, hydrogenProductions []model.ProcessStep) ([]model.ProcessStep, error) {
	return t.FetchUpstreamOfType(ctx, hydrogenProductions, model.ProcessStepHydrogenProduction, model.ProcessStepWaterConsumption)
}

// FetchHydrogenProductionProcessSteps returns every hydrogen production step
// upstream of the given bottling steps, across all split layers.
func (t *Traversal) FetchHydrogenProductionProcessSteps(ctx context.Context, bottlings []model.ProcessStep) ([]model.ProcessStep, error) {
	return t.FetchUpstreamOfType(ctx, bottlings, model.ProcessStepHydrogenBottling, model.ProcessStepHydrogenProduction)
}

// FetchUpstreamOfType collects all ancestors of targetType reachable from
// start. Every start step must be of startType. Predecessors are followed out
// of the start steps and out of hydrogen production steps, which may chain
// through several split layers; the walk ends once a layer holds no step to
// expand. Results are deduplicated by id and kept in discovery order.
func (t *Traversal) FetchUpstreamOfType(ctx context.Context, start []model.ProcessStep, startType, targetType model.ProcessStepType) ([]model.ProcessStep, error) {
	if len(start) == 0 {
		return nil, eris.Wrapf(model.ErrMissingInput, "no %s process steps given", startType)
	}
	if err := requireType(start, startType); err != nil {
		return nil, err
	}

	expandable := func(s model.ProcessStep) bool {
		return s.Type == startType || s.Type == model.ProcessStepHydrogenProduction
	}

	var found []model.ProcessStep
	seenFound := make(map[string]struct{})
	fetched := make(map[string]struct{})
	for _, s := range start {
		fetched[s.ID] = struct{}{}
	}

	layer := start
	for depth := 0; len(layer) > 0; depth++ {
		var next []string
		expanded := 0
		for _, s := range layer {
			if s.Type == targetType {
				if _, ok := seenFound[s.ID]; !ok {
					seenFound[s.ID] = struct{}{}
					found = append(found, s)
				}
			}
			if !expandable(s) {
				continue
			}
			expanded++
			if !s.HasPredecessors() {
				return nil, eris.Wrapf(model.ErrNoPredecessors, "process step %s has no predecessor batches", s.ID)
			}
			for _, id := range s.PredecessorStepIDs() {
				if _, ok := fetched[id]; ok {
					continue
				}
				fetched[id] = struct{}{}
				next = append(next, id)
			}
		}

		zap.L().Debug("lineage: layer traversed",
			zap.Int("depth", depth),
			zap.Int("layer_size", len(layer)),
			zap.Int("expanded", expanded),
			zap.String("target_type", string(targetType)),
		)

		if expanded == 0 || len(next) == 0 {
			break
		}
		steps, err := t.steps.ReadMany(ctx, next)
		if err != nil {
			return nil, eris.Wrap(err, "lineage: read predecessor layer")
		}
		layer = steps
	}

	return found, nil
}

// FetchDirectPredecessorOfType returns the steps owning the predecessor
// batches of step. All of them must be of targetType and there must be
// exactly expectedCount of them.
func (t *Traversal) FetchDirectPredecessorOfType(ctx context.Context, step *model.ProcessStep, targetType model.ProcessStepType, expectedCount int) ([]model.ProcessStep, error) {
	if step == nil {
		return nil, eris.Wrap(model.ErrMissingInput, "process step is required")
	}
	if !step.HasPredecessors() {
		return nil, eris.Wrapf(model.ErrCountMismatch, "expected %d predecessor(s) of type %s for process step %s, found 0", expectedCount, targetType, step.ID)
	}

	preds, err := t.steps.ReadMany(ctx, dedupe(step.PredecessorStepIDs()))
	if err != nil {
		return nil, eris.Wrapf(err, "lineage: read predecessors of %s", step.ID)
	}
	if err := requireType(preds, targetType); err != nil {
		return nil, err
	}
	if len(preds) != expectedCount {
		return nil, eris.Wrapf(model.ErrCountMismatch, "expected %d predecessor(s) of type %s for process step %s, found %d", expectedCount, targetType, step.ID, len(preds))
	}
	return preds, nil
}

// requireType fails with ErrTypeMismatch naming every step not of want.
func requireType(steps []model.ProcessStep, want model.ProcessStepType) error {
	var offending []string
	for _, s := range steps {
		if s.Type != want {
			offending = append(offending, s.ID+" ("+string(s.Type)+")")
		}
	}
	if len(offending) > 0 {
		return eris.Wrapf(model.ErrTypeMismatch, "expected %s, got %s", want, strings.Join(offending, ", "))
	}
	return nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Package allocation picks the stored hydrogen batches that fill a bottling
// request, splitting at most one batch per color.
package allocation

import (
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sells-group/h2-custody/internal/model"
)

// Selector allocates stored batches to a requested composition. It performs
// no I/O.
type Selector struct {
	steps StepAssembler
}

// NewSelector creates a Selector. A nil assembler defaults to
// NewSplitAssembler().
func NewSelector(steps StepAssembler) *Selector {
	if steps == nil {
		steps = NewSplitAssembler()
	}
	return &Selector{steps: steps}
}

// SelectForAllColors allocates each required component independently and
// concatenates the results. available must be ordered oldest first for FIFO
// consumption.
func (s *Selector) SelectForAllColors(available []model.ProcessStep, required []model.HydrogenComponent, storageUnitID string) (model.BatchSelectionResult, error) {
	var result model.BatchSelectionResult
	for _, c := range required {
		r, err := s.SelectForColor(available, c, storageUnitID)
		if err != nil {
			return model.BatchSelectionResult{}, err
		}
		result.Merge(r)
	}
	return result, nil
}

// SelectForColor walks the steps of the component's color until their
// amounts cover the request. Every walked batch but the last is consumed
// whole; the last is split when it holds more than what is still needed.
func (s *Selector) SelectForColor(available []model.ProcessStep, c model.HydrogenComponent, storageUnitID string) (model.BatchSelectionResult, error) {
	var result model.BatchSelectionResult
	if c.Amount.IsNegative() {
		return result, eris.Wrapf(model.ErrMissingInput, "allocation: negative amount %s requested for color %s", c.Amount, c.Color)
	}
	if c.Amount.IsZero() {
		return result, nil
	}

	pending := c.Amount
	var walked []model.ProcessStep
	remaining := decimal.Zero
	for _, step := range available {
		if step.Batch == nil || step.Batch.Color() != c.Color {
			continue
		}
		walked = append(walked, step)
		if step.Batch.Amount.GreaterThanOrEqual(pending) {
			remaining = step.Batch.Amount.Sub(pending)
			pending = decimal.Zero
			break
		}
		pending = pending.Sub(step.Batch.Amount)
	}
	if pending.IsPositive() {
		return result, eris.Wrapf(model.ErrInsufficientStock,
			"allocation: storage unit %s cannot provide %s of %s hydrogen", storageUnitID, c.Amount, c.Color)
	}

	last := walked[len(walked)-1]
	for _, step := range walked[:len(walked)-1] {
		result.BatchesForBottle = append(result.BatchesForBottle, *step.Batch)
	}
	if remaining.IsZero() {
		result.BatchesForBottle = append(result.BatchesForBottle, *last.Batch)
	} else {
		consumed := last.Batch.Amount.Sub(remaining)
		result.ProcessStepsToBeSplit = append(result.ProcessStepsToBeSplit, last)
		result.ConsumedSplitProcessSteps = append(result.ConsumedSplitProcessSteps,
			s.steps.AssembleForRemainingAmount(last, consumed, false))
		result.ProcessStepsForRemainingAmount = append(result.ProcessStepsForRemainingAmount,
			s.steps.AssembleForRemainingAmount(last, remaining, true))
	}

	zap.L().Debug("allocation: color allocated",
		zap.String("storage_unit_id", storageUnitID),
		zap.String("color", string(c.Color)),
		zap.String("amount", c.Amount.String()),
		zap.Int("whole_batches", len(result.BatchesForBottle)),
		zap.Bool("split", !remaining.IsZero()),
	)
	return result, nil
}

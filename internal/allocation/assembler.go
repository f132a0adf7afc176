package allocation

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sells-group/h2-custody/internal/model"
)

// StepAssembler materializes the two halves of a split process step.
type StepAssembler interface {
	AssembleForRemainingAmount(original model.ProcessStep, amount decimal.Decimal, isRemaining bool) model.ProcessStep
}

// SplitAssembler derives split steps from the original step. The new step
// gets fresh ids, keeps the original's timing, executor and quality, and has
// the original batch as its only predecessor. The remaining half stays
// active in storage; the consumed half is inactive.
type SplitAssembler struct {
	NewID func() string
}

var _ StepAssembler = SplitAssembler{}

// NewSplitAssembler returns a SplitAssembler generating UUIDs.
func NewSplitAssembler() SplitAssembler {
	return SplitAssembler{NewID: uuid.NewString}
}

// AssembleForRemainingAmount implements StepAssembler.
func (a SplitAssembler) AssembleForRemainingAmount(original model.ProcessStep, amount decimal.Decimal, isRemaining bool) model.ProcessStep {
	newID := a.NewID
	if newID == nil {
		newID = uuid.NewString
	}

	step := model.ProcessStep{
		ID:           newID(),
		Type:         original.Type,
		StartedAt:    original.StartedAt,
		EndedAt:      original.EndedAt,
		ExecutedByID: original.ExecutedByID,
		RecordedByID: original.RecordedByID,
	}

	b := &model.Batch{
		ID:     newID(),
		Amount: amount,
		Type:   model.BatchTypeHydrogen,
		Active: isRemaining,
	}
	if ob := original.Batch; ob != nil {
		b.Type = ob.Type
		b.OwnerID = ob.OwnerID
		b.HydrogenStorageUnitID = ob.HydrogenStorageUnitID
		if ob.QualityDetails != nil {
			qd := *ob.QualityDetails
			b.QualityDetails = &qd
		}
		b.Predecessors = []model.BatchLink{{
			BatchID:       ob.ID,
			ProcessStepID: original.ID,
			Amount:        ob.Amount,
		}}
	}
	step.Batch = b
	return step
}

package store

import (
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/h2-custody/internal/model"
)

type scannable interface {
	Scan(dest ...any) error
}

// scanStep reads one row of the process_steps/batches join. Columns follow
// the order of the stepColumns constants of both SQL stores.
func scanStep(row scannable) (model.ProcessStep, error) {
	var (
		s                    model.ProcessStep
		b                    model.Batch
		stepType, batchType  string
		amount, color, rfnbo string
	)
	if err := row.Scan(
		&s.ID, &stepType, &s.StartedAt, &s.EndedAt, &s.ExecutedByID, &s.RecordedByID,
		&b.ID, &amount, &batchType, &color, &rfnbo, &b.Active, &b.OwnerID, &b.HydrogenStorageUnitID,
	); err != nil {
		return s, err
	}

	amt, err := decimal.NewFromString(amount)
	if err != nil {
		return s, eris.Wrapf(err, "batch %s amount %q", b.ID, amount)
	}
	b.Amount = amt
	b.Type = model.BatchType(batchType)
	if color != "" {
		b.QualityDetails = &model.QualityDetails{
			Color:     model.HydrogenColor(color),
			RFNBOType: model.RFNBOType(rfnbo),
		}
	}
	s.Type = model.ProcessStepType(stepType)
	s.StartedAt = s.StartedAt.UTC()
	s.EndedAt = s.EndedAt.UTC()
	s.Batch = &b
	return s, nil
}

// scanLink reads (anchor batch, linked batch, linked step, linked amount).
func scanLink(row scannable) (string, model.BatchLink, error) {
	var (
		anchor, amount string
		l              model.BatchLink
	)
	if err := row.Scan(&anchor, &l.BatchID, &l.ProcessStepID, &amount); err != nil {
		return "", l, err
	}
	amt, err := decimal.NewFromString(amount)
	if err != nil {
		return "", l, eris.Wrapf(err, "batch %s amount %q", l.BatchID, amount)
	}
	l.Amount = amt
	return anchor, l, nil
}

// batchColor returns the color and RFNBO columns of a batch, empty when
// unclassified.
func batchColor(b *model.Batch) (string, string) {
	if b.QualityDetails == nil {
		return "", ""
	}
	return string(b.QualityDetails.Color), string(b.QualityDetails.RFNBOType)
}

// stepSet collects scanned steps and attaches their links.
type stepSet struct {
	byID    map[string]*model.ProcessStep
	byBatch map[string]*model.Batch
}

func newStepSet() *stepSet {
	return &stepSet{
		byID:    make(map[string]*model.ProcessStep),
		byBatch: make(map[string]*model.Batch),
	}
}

func (ss *stepSet) add(s model.ProcessStep) {
	ss.byID[s.ID] = &s
	ss.byBatch[s.Batch.ID] = s.Batch
}

func (ss *stepSet) batchIDs() []string {
	ids := make([]string, 0, len(ss.byBatch))
	for id := range ss.byBatch {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (ss *stepSet) addPredecessor(anchor string, l model.BatchLink) {
	if b, ok := ss.byBatch[anchor]; ok {
		b.Predecessors = append(b.Predecessors, l)
	}
}

func (ss *stepSet) addSuccessor(anchor string, l model.BatchLink) {
	if b, ok := ss.byBatch[anchor]; ok {
		b.Successors = append(b.Successors, l)
	}
}

// ordered returns the found steps in the order of ids, skipping unknown ids.
func (ss *stepSet) ordered(ids []string) []model.ProcessStep {
	out := make([]model.ProcessStep, 0, len(ids))
	for _, id := range ids {
		if s, ok := ss.byID[id]; ok {
			out = append(out, *s)
		}
	}
	return out
}

// planInserts lists the steps a bottling plan creates, in insertion order,
// and the batch ids it consumes.
func planInserts(plan model.BottlingPlan) ([]model.ProcessStep, []string) {
	sel := plan.Selection
	var consumed []string
	for _, b := range sel.BatchesForBottle {
		consumed = append(consumed, b.ID)
	}
	for _, s := range sel.ProcessStepsToBeSplit {
		if s.Batch != nil {
			consumed = append(consumed, s.Batch.ID)
		}
	}

	inserts := make([]model.ProcessStep, 0, len(sel.ConsumedSplitProcessSteps)+len(sel.ProcessStepsForRemainingAmount)+1)
	inserts = append(inserts, sel.ConsumedSplitProcessSteps...)
	inserts = append(inserts, sel.ProcessStepsForRemainingAmount...)
	inserts = append(inserts, plan.Bottling)
	return inserts, consumed
}

func validateStep(driver string, s model.ProcessStep) error {
	if s.ID == "" {
		return eris.Errorf("%s: step id is required", driver)
	}
	if s.Batch == nil || s.Batch.ID == "" {
		return eris.Errorf("%s: step %s has no batch", driver, s.ID)
	}
	return nil
}

// placeholders returns n comma-separated "?" markers.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func stringArgs(ids []string) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

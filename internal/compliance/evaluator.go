// Package compliance evaluates the RED correlation criteria of hydrogen
// against the power that produced it.
package compliance

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"
	"go.uber.org/zap"

	"github.com/sells-group/h2-custody/internal/model"
	"github.com/sells-group/h2-custody/internal/store"
)

// DefaultAdditionalityMonths is how much older than the electrolyser a power
// plant may be.
const DefaultAdditionalityMonths = 36

// ProvenanceSource yields the provenance record of a process step.
type ProvenanceSource interface {
	Provenance(ctx context.Context, rootID string) (*model.Provenance, error)
}

// Evaluator determines RED compliance for a process step.
type Evaluator struct {
	provenance          ProvenanceSource
	units               store.ProductionUnitReader
	additionalityMonths int
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithAdditionalityMonths overrides DefaultAdditionalityMonths. Non-positive
// values are ignored.
func WithAdditionalityMonths(n int) Option {
	return func(e *Evaluator) {
		if n > 0 {
			e.additionalityMonths = n
		}
	}
}

// NewEvaluator creates an Evaluator.
func NewEvaluator(provenance ProvenanceSource, units store.ProductionUnitReader, opts ...Option) *Evaluator {
	e := &Evaluator{
		provenance:          provenance,
		units:               units,
		additionalityMonths: DefaultAdditionalityMonths,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Determine pairs the power and hydrogen productions upstream of
// processStepID, resolves their units and evaluates every pair.
func (e *Evaluator) Determine(ctx context.Context, processStepID string) (*model.RedCompliance, error) {
	p, err := e.provenance.Provenance(ctx, processStepID)
	if err != nil {
		return nil, err
	}
	if len(p.PowerProductions) == 0 || len(p.HydrogenProductions) == 0 {
		return nil, eris.Wrapf(model.ErrMissingInput,
			"compliance: process step %s needs both power and hydrogen productions upstream (power=%d, hydrogen=%d)",
			processStepID, len(p.PowerProductions), len(p.HydrogenProductions))
	}

	pairs := Pair(p.PowerProductions, p.HydrogenProductions)
	if len(pairs) == 0 {
		return nil, eris.Wrapf(model.ErrNoMatchedPairs, "compliance: no power production feeds a hydrogen production upstream of %s", processStepID)
	}

	if err := e.enrich(ctx, pairs); err != nil {
		return nil, err
	}

	result, err := e.Evaluate(pairs)
	if err != nil {
		return nil, eris.Wrapf(err, "compliance: process step %s", processStepID)
	}

	zap.L().Info("compliance: determined",
		zap.String("process_step_id", processStepID),
		zap.Int("pairs", len(pairs)),
		zap.Bool("geo", result.IsGeoCorrelationValid),
		zap.Bool("time", result.IsTimeCorrelationValid),
		zap.Bool("additionality", result.IsAdditionalityFulfilled),
		zap.Bool("financial_support", result.FinancialSupportReceived),
		zap.Bool("red_compliant", result.IsRedCompliant),
	)
	return result, nil
}

// Pair matches each power production step to the first hydrogen production
// step among its batch successors. Power steps feeding none of them are
// skipped.
func Pair(power, hydrogen []model.ProcessStep) []model.MatchedProductionPair {
	byID := make(map[string]model.ProcessStep, len(hydrogen))
	for _, h := range hydrogen {
		byID[h.ID] = h
	}

	var pairs []model.MatchedProductionPair
	for _, pw := range power {
		if pw.Batch == nil {
			continue
		}
		for _, l := range pw.Batch.Successors {
			h, ok := byID[l.ProcessStepID]
			if !ok {
				continue
			}
			pairs = append(pairs, model.MatchedProductionPair{
				Power:    model.PowerSide{ProcessStep: pw},
				Hydrogen: model.HydrogenSide{ProcessStep: h},
			})
			break
		}
	}
	return pairs
}

// enrich attaches unit metadata to both sides of every pair.
func (e *Evaluator) enrich(ctx context.Context, pairs []model.MatchedProductionPair) error {
	var powerIDs, hydrogenIDs []string
	seenPower := make(map[string]bool)
	seenHydrogen := make(map[string]bool)
	for _, p := range pairs {
		if id := p.Power.ProcessStep.ExecutedByID; !seenPower[id] {
			seenPower[id] = true
			powerIDs = append(powerIDs, id)
		}
		if id := p.Hydrogen.ProcessStep.ExecutedByID; !seenHydrogen[id] {
			seenHydrogen[id] = true
			hydrogenIDs = append(hydrogenIDs, id)
		}
	}

	var powerUnits []model.PowerProductionUnit
	var hydrogenUnits []model.HydrogenProductionUnit
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		units, err := e.units.ReadPowerUnitsByIDs(gctx, powerIDs)
		if err != nil {
			return eris.Wrap(err, "compliance: read power units")
		}
		powerUnits = units
		return nil
	})
	g.Go(func() error {
		units, err := e.units.ReadHydrogenUnitsByIDs(gctx, hydrogenIDs)
		if err != nil {
			return eris.Wrap(err, "compliance: read hydrogen units")
		}
		hydrogenUnits = units
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	powerByID := make(map[string]model.PowerProductionUnit, len(powerUnits))
	for _, u := range powerUnits {
		powerByID[u.ID] = u
	}
	hydrogenByID := make(map[string]model.HydrogenProductionUnit, len(hydrogenUnits))
	for _, u := range hydrogenUnits {
		hydrogenByID[u.ID] = u
	}

	for i := range pairs {
		p := &pairs[i]
		pu, okPower := powerByID[p.Power.ProcessStep.ExecutedByID]
		hu, okHydrogen := hydrogenByID[p.Hydrogen.ProcessStep.ExecutedByID]
		if !okPower || !okHydrogen {
			return eris.Wrapf(model.ErrUnitNotFound,
				"compliance: expected power unit %s and hydrogen unit %s (power found=%t, hydrogen found=%t)",
				p.Power.ProcessStep.ExecutedByID, p.Hydrogen.ProcessStep.ExecutedByID, okPower, okHydrogen)
		}
		p.Power.Unit = &pu
		p.Hydrogen.Unit = &hu
	}
	return nil
}

// Evaluate ANDs the four criteria over all pairs. Pairs must carry their
// units. It stops early once every criterion has failed.
func (e *Evaluator) Evaluate(pairs []model.MatchedProductionPair) (*model.RedCompliance, error) {
	r := &model.RedCompliance{
		IsGeoCorrelationValid:    true,
		IsTimeCorrelationValid:   true,
		IsAdditionalityFulfilled: true,
		FinancialSupportReceived: true,
	}

	for _, p := range pairs {
		if p.Power.Unit == nil || p.Hydrogen.Unit == nil {
			return nil, eris.Wrapf(model.ErrUnitNotFound, "pair %s/%s has no unit metadata",
				p.Power.ProcessStep.ID, p.Hydrogen.ProcessStep.ID)
		}

		geo, err := geoCorrelated(p)
		if err != nil {
			return nil, err
		}
		timed, err := timeCorrelated(p)
		if err != nil {
			return nil, err
		}
		additional, err := additionalityFulfilled(p, e.additionalityMonths)
		if err != nil {
			return nil, err
		}

		r.IsGeoCorrelationValid = r.IsGeoCorrelationValid && geo
		r.IsTimeCorrelationValid = r.IsTimeCorrelationValid && timed
		r.IsAdditionalityFulfilled = r.IsAdditionalityFulfilled && additional
		r.FinancialSupportReceived = r.FinancialSupportReceived && p.Power.Unit.FinancialSupportReceived

		if !r.IsGeoCorrelationValid && !r.IsTimeCorrelationValid && !r.IsAdditionalityFulfilled && !r.FinancialSupportReceived {
			break
		}
	}

	r.IsRedCompliant = r.IsGeoCorrelationValid && r.IsTimeCorrelationValid &&
		r.IsAdditionalityFulfilled && r.FinancialSupportReceived
	return r, nil
}

func geoCorrelated(p model.MatchedProductionPair) (bool, error) {
	pz, hz := p.Power.Unit.BiddingZone, p.Hydrogen.Unit.BiddingZone
	if pz == "" || hz == "" {
		return false, eris.Wrapf(model.ErrMissingBiddingZone, "power unit %s zone %q, hydrogen unit %s zone %q",
			p.Power.Unit.ID, pz, p.Hydrogen.Unit.ID, hz)
	}
	return pz == hz, nil
}

func timeCorrelated(p model.MatchedProductionPair) (bool, error) {
	ps, hs := p.Power.ProcessStep.StartedAt, p.Hydrogen.ProcessStep.StartedAt
	if ps.IsZero() || hs.IsZero() {
		return false, eris.Wrapf(model.ErrInvalidTimestamp, "start of power step %s or hydrogen step %s",
			p.Power.ProcessStep.ID, p.Hydrogen.ProcessStep.ID)
	}
	return floorToHour(ps).Equal(floorToHour(hs)), nil
}

func additionalityFulfilled(p model.MatchedProductionPair, months int) (bool, error) {
	pc, hc := p.Power.Unit.CommissionedOn, p.Hydrogen.Unit.CommissionedOn
	if pc.IsZero() || hc.IsZero() {
		return false, eris.Wrapf(model.ErrInvalidTimestamp, "commissioning date of power unit %s or hydrogen unit %s",
			p.Power.Unit.ID, p.Hydrogen.Unit.ID)
	}
	return !pc.Before(AddMonths(hc, -months)), nil
}

func floorToHour(t time.Time) time.Time {
	return t.UTC().Truncate(time.Hour)
}

// AddMonths shifts t by n calendar months. The day of month is clamped to
// the last day of the target month instead of overflowing into the next.
func AddMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	total := int(m) - 1 + n
	y += total / 12
	total %= 12
	if total < 0 {
		total += 12
		y--
	}
	month := time.Month(total + 1)
	if last := daysIn(y, month, t.Location()); d > last {
		d = last
	}
	return time.Date(y, month, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(y int, m time.Month, loc *time.Location) int {
	return time.Date(y, m+1, 0, 0, 0, 0, 0, loc).Day()
}

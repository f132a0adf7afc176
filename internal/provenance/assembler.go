package provenance

import (
	"context"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/h2-custody/internal/lineage"
	"github.com/sells-group/h2-custody/internal/model"
	"github.com/sells-group/h2-custody/internal/store"
)

// Assembler turns a provenance graph into a typed provenance record.
type Assembler struct {
	steps   store.ProcessStepReader
	lineage *lineage.Traversal
}

// NewAssembler creates an Assembler.
func NewAssembler(steps store.ProcessStepReader) *Assembler {
	return &Assembler{steps: steps, lineage: lineage.NewTraversal(steps)}
}

var (
	powerOrWater = typeSet(model.ProcessStepPowerProduction, model.ProcessStepWaterConsumption)
	hydrogenOnly = typeSet(model.ProcessStepHydrogenProduction)
)

// FromGraph classifies the upstream nodes of rootID in g. The graph must have
// been built with direction UP or BOTH.
func (a *Assembler) FromGraph(ctx context.Context, g *model.ProvenanceGraph, rootID string) (*model.Provenance, error) {
	root, err := a.steps.ReadUnique(ctx, rootID)
	if err != nil {
		return nil, eris.Wrap(err, "provenance: invalid process step")
	}
	if g == nil {
		return nil, eris.Wrap(model.ErrMissingInput, "provenance: graph is required")
	}

	idx := newGraphIndex(g)
	p := &model.Provenance{Root: root}

	switch root.Type {
	case model.ProcessStepPowerProduction:
		p.PowerProductions = []model.ProcessStep{*root}
		return p, nil

	case model.ProcessStepWaterConsumption:
		p.WaterConsumptions = []model.ProcessStep{*root}
		return p, nil

	case model.ProcessStepHydrogenProduction:
		p.HydrogenProductions = []model.ProcessStep{*root}
		upstream := idx.collectUpstream([]string{root.ID}, powerOrWater)
		if err := a.fill(ctx, p, idx, nil, upstream); err != nil {
			return nil, err
		}
		return p, nil

	case model.ProcessStepHydrogenBottling:
		p.HydrogenBottling = root
		if err := a.fromBottling(ctx, p, idx, root.ID); err != nil {
			return nil, err
		}
		return p, nil

	case model.ProcessStepHydrogenTransportation:
		preds, err := a.lineage.FetchDirectPredecessorOfType(ctx, root, model.ProcessStepHydrogenBottling, 1)
		if err != nil {
			return nil, err
		}
		bottlingStep := preds[0]
		p.HydrogenBottling = &bottlingStep
		if err := a.fromBottling(ctx, p, idx, bottlingStep.ID); err != nil {
			return nil, err
		}
		return p, nil
	}

	return nil, eris.Wrapf(model.ErrTypeMismatch, "provenance: unsupported process step type %s for %s", root.Type, root.ID)
}

func (a *Assembler) fromBottling(ctx context.Context, p *model.Provenance, idx *graphIndex, bottlingID string) error {
	hydrogenIDs := idx.collectUpstream([]string{bottlingID}, hydrogenOnly)
	upstream := idx.collectUpstream(hydrogenIDs, powerOrWater)
	return a.fill(ctx, p, idx, hydrogenIDs, upstream)
}

// fill reads the classified steps concurrently and stores them on p.
func (a *Assembler) fill(ctx context.Context, p *model.Provenance, idx *graphIndex, hydrogenIDs, upstreamIDs []string) error {
	var powerIDs, waterIDs []string
	for _, id := range upstreamIDs {
		if idx.types[id] == model.ProcessStepPowerProduction {
			powerIDs = append(powerIDs, id)
		} else {
			waterIDs = append(waterIDs, id)
		}
	}

	var hydrogen, power, water []model.ProcessStep
	g, gctx := errgroup.WithContext(ctx)
	read := func(ids []string, dst *[]model.ProcessStep) {
		if len(ids) == 0 {
			return
		}
		g.Go(func() error {
			steps, err := a.steps.ReadMany(gctx, ids)
			if err != nil {
				return eris.Wrap(err, "provenance: read classified steps")
			}
			*dst = steps
			return nil
		})
	}
	read(hydrogenIDs, &hydrogen)
	read(powerIDs, &power)
	read(waterIDs, &water)
	if err := g.Wait(); err != nil {
		return err
	}

	if len(hydrogenIDs) > 0 {
		p.HydrogenProductions = hydrogen
	}
	p.PowerProductions = power
	p.WaterConsumptions = water
	return nil
}

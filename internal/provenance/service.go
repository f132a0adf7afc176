package provenance

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/h2-custody/internal/model"
	"github.com/sells-group/h2-custody/internal/store"
)

// Service builds upstream graphs and provenance records for process steps.
type Service struct {
	builder   *GraphBuilder
	assembler *Assembler
}

// NewService creates a Service whose graph bounds default to opts.
func NewService(steps store.ProcessStepReader, opts ...Option) *Service {
	return &Service{
		builder:   NewGraphBuilder(steps, opts...),
		assembler: NewAssembler(steps),
	}
}

// Graph builds the lineage graph of rootID in the given direction.
func (s *Service) Graph(ctx context.Context, rootID string, dir model.Direction, opts ...Option) (*model.ProvenanceGraph, error) {
	return s.builder.BuildGraph(ctx, rootID, dir, opts...)
}

// Provenance builds the upstream graph of rootID and classifies it.
func (s *Service) Provenance(ctx context.Context, rootID string) (*model.Provenance, error) {
	g, err := s.builder.BuildGraph(ctx, rootID, model.DirectionUp)
	if err != nil {
		return nil, err
	}
	p, err := s.assembler.FromGraph(ctx, g, rootID)
	if err != nil {
		return nil, err
	}

	zap.L().Info("provenance assembled",
		zap.String("process_step_id", rootID),
		zap.Int("hydrogen_productions", len(p.HydrogenProductions)),
		zap.Int("power_productions", len(p.PowerProductions)),
		zap.Int("water_consumptions", len(p.WaterConsumptions)),
		zap.Bool("truncated", g.Meta.Truncated),
	)
	return p, nil
}

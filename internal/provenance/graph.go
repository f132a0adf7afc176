// Package provenance reconstructs the production ancestry of a process step as
// an explicit graph and classifies it into a provenance record.
package provenance

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sells-group/h2-custody/internal/model"
	"github.com/sells-group/h2-custody/internal/store"
)

const (
	DefaultMaxDepth = 50
	DefaultMaxNodes = 5000
)

// Option tunes a graph build.
type Option func(*buildOptions)

type buildOptions struct {
	maxDepth int
	maxNodes int
}

// WithMaxDepth bounds the number of hops from the root. Non-positive values
// are ignored.
func WithMaxDepth(n int) Option {
	return func(o *buildOptions) {
		if n > 0 {
			o.maxDepth = n
		}
	}
}

// WithMaxNodes bounds the number of visited steps. Non-positive values are
// ignored.
func WithMaxNodes(n int) Option {
	return func(o *buildOptions) {
		if n > 0 {
			o.maxNodes = n
		}
	}
}

// GraphBuilder runs bounded breadth-first traversals over lineage links.
type GraphBuilder struct {
	steps    store.ProcessStepReader
	defaults buildOptions
}

// NewGraphBuilder creates a GraphBuilder. opts set the bounds used when a
// BuildGraph call does not override them.
func NewGraphBuilder(steps store.ProcessStepReader, opts ...Option) *GraphBuilder {
	d := buildOptions{maxDepth: DefaultMaxDepth, maxNodes: DefaultMaxNodes}
	for _, o := range opts {
		o(&d)
	}
	return &GraphBuilder{steps: steps, defaults: d}
}

type queueItem struct {
	id    string
	depth int
}

type edgeKey struct {
	from, to string
}

// BuildGraph walks lineage links from rootID. UP follows predecessor batches,
// DOWN follows successor batches, BOTH follows both. Steps are read one BFS
// layer at a time. Steps at maxDepth are included but not expanded, and the
// walk stops once maxNodes steps were visited, in which case Meta.Truncated
// is set. Truncation is not an error.
func (b *GraphBuilder) BuildGraph(ctx context.Context, rootID string, dir model.Direction, opts ...Option) (*model.ProvenanceGraph, error) {
	if rootID == "" {
		return nil, eris.Wrap(model.ErrMissingInput, "provenance: root process step id is required")
	}
	if !dir.Valid() {
		return nil, eris.Wrapf(model.ErrMissingInput, "provenance: invalid direction %q", dir)
	}
	o := b.defaults
	for _, opt := range opts {
		opt(&o)
	}

	root, err := b.steps.ReadUnique(ctx, rootID)
	if err != nil {
		return nil, eris.Wrapf(err, "provenance: read root %s", rootID)
	}

	up := dir == model.DirectionUp || dir == model.DirectionBoth
	down := dir == model.DirectionDown || dir == model.DirectionBoth

	g := &model.ProvenanceGraph{
		Meta: model.GraphMeta{RootID: rootID, Direction: dir, MaxDepth: o.maxDepth, MaxNodes: o.maxNodes},
	}
	fetched := make(map[string]model.ProcessStep)
	enqueued := map[string]struct{}{rootID: {}}
	edgeSeen := make(map[edgeKey]struct{})

	addEdge := func(from, to string) {
		k := edgeKey{from, to}
		if _, ok := edgeSeen[k]; ok {
			return
		}
		edgeSeen[k] = struct{}{}
		g.Edges = append(g.Edges, model.GraphEdge{FromID: from, ToID: to})
	}

	var queue []queueItem
	enqueue := func(id string, depth int) {
		if _, ok := enqueued[id]; ok {
			return
		}
		enqueued[id] = struct{}{}
		queue = append(queue, queueItem{id: id, depth: depth})
	}

	visit := func(s model.ProcessStep, depth int) {
		fetched[s.ID] = s
		g.Nodes = append(g.Nodes, toNode(s))
		if depth >= o.maxDepth || s.Batch == nil {
			return
		}
		if up {
			for _, l := range s.Batch.Predecessors {
				addEdge(l.ProcessStepID, s.ID)
				enqueue(l.ProcessStepID, depth+1)
			}
		}
		if down {
			for _, l := range s.Batch.Successors {
				addEdge(s.ID, l.ProcessStepID)
				enqueue(l.ProcessStepID, depth+1)
			}
		}
	}

	visit(*root, 0)
	for len(queue) > 0 && len(fetched) < o.maxNodes {
		depth := queue[0].depth
		var ids []string
		n := 0
		for n < len(queue) && queue[n].depth == depth && len(fetched)+len(ids) < o.maxNodes {
			ids = append(ids, queue[n].id)
			n++
		}
		queue = queue[n:]

		steps, err := b.steps.ReadMany(ctx, ids)
		if err != nil {
			return nil, eris.Wrapf(err, "provenance: read layer at depth %d", depth)
		}
		for _, s := range steps {
			visit(s, depth)
		}
	}

	g.Meta.Truncated = len(fetched) >= o.maxNodes
	g.Edges = pruneEdges(g.Edges, fetched)
	assignAllocationRatios(g.Edges, fetched)

	if g.Meta.Truncated {
		zap.L().Warn("provenance: graph truncated",
			zap.String("process_step_id", rootID),
			zap.Int("max_nodes", o.maxNodes),
			zap.Int("pending", len(queue)),
		)
	}
	zap.L().Debug("provenance: graph built",
		zap.String("process_step_id", rootID),
		zap.String("direction", string(dir)),
		zap.Int("nodes", len(g.Nodes)),
		zap.Int("edges", len(g.Edges)),
	)
	return g, nil
}

func toNode(s model.ProcessStep) model.GraphNode {
	return model.GraphNode{
		ID:           s.ID,
		Type:         s.Type,
		ExecutedByID: s.ExecutedByID,
		BatchAmount:  s.Amount(),
		StartedAt:    s.StartedAt,
		EndedAt:      s.EndedAt,
	}
}

// pruneEdges drops edges to steps that were never read, either because the
// walk stopped first or because the link dangles.
func pruneEdges(edges []model.GraphEdge, fetched map[string]model.ProcessStep) []model.GraphEdge {
	out := edges[:0]
	for _, e := range edges {
		_, okFrom := fetched[e.FromID]
		_, okTo := fetched[e.ToID]
		if okFrom && okTo {
			out = append(out, e)
		}
	}
	return out
}

// assignAllocationRatios estimates the share of the origin batch that flowed
// along each edge: the successor's amount over the amounts of all successors
// of the origin. No per-edge allocation is recorded, so this is a
// proportional split. The ratio stays nil when the denominator is zero.
func assignAllocationRatios(edges []model.GraphEdge, fetched map[string]model.ProcessStep) {
	graphSiblings := make(map[string]decimal.Decimal)
	for _, e := range edges {
		graphSiblings[e.FromID] = graphSiblings[e.FromID].Add(fetched[e.ToID].Amount())
	}

	for i := range edges {
		e := &edges[i]
		origin := fetched[e.FromID]
		share := fetched[e.ToID].Amount()

		total := decimal.Zero
		if origin.Batch != nil && len(origin.Batch.Successors) > 0 {
			for _, l := range origin.Batch.Successors {
				total = total.Add(l.Amount)
			}
		} else {
			total = graphSiblings[e.FromID]
		}
		if total.IsZero() {
			continue
		}

		ratio := share.Div(total)
		if ratio.GreaterThan(decimal.NewFromInt(1)) {
			ratio = decimal.NewFromInt(1)
		}
		if ratio.IsNegative() {
			ratio = decimal.Zero
		}
		e.AllocationRatio = &ratio
	}
}

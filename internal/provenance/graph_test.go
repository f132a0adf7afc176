package provenance

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/h2-custody/internal/model"
	"github.com/sells-group/h2-custody/internal/store/storetest"
)

const (
	power          = model.ProcessStepPowerProduction
	water          = model.ProcessStepWaterConsumption
	hydrogen       = model.ProcessStepHydrogenProduction
	bottling       = model.ProcessStepHydrogenBottling
	transportation = model.ProcessStepHydrogenTransportation
)

// buildPlant: pp-1 feeds hp-1 and hp-2, each with its own water; both are
// bottled into hb-1.
func buildPlant(t *testing.T) *storetest.Builder {
	b := storetest.New(t)
	b.Add("pp-1", power, "100", nil)
	b.Add("wc-1", water, "50", nil)
	b.Add("wc-2", water, "40", nil)
	b.Add("hp-1", hydrogen, "10", []string{"pp-1", "wc-1"})
	b.Add("hp-2", hydrogen, "30", []string{"pp-1", "wc-2"})
	b.Add("hb-1", bottling, "40", []string{"hp-1", "hp-2"})
	return b
}

func nodeIDs(g *model.ProvenanceGraph) []string {
	ids := make([]string, len(g.Nodes))
	for i, n := range g.Nodes {
		ids[i] = n.ID
	}
	return ids
}

func findEdge(t *testing.T, g *model.ProvenanceGraph, from, to string) model.GraphEdge {
	t.Helper()
	for _, e := range g.Edges {
		if e.FromID == from && e.ToID == to {
			return e
		}
	}
	t.Fatalf("edge %s -> %s not found", from, to)
	return model.GraphEdge{}
}

func TestBuildGraph_Upstream(t *testing.T) {
	b := buildPlant(t)
	gb := NewGraphBuilder(b.Store)

	g, err := gb.BuildGraph(context.Background(), "hb-1", model.DirectionUp)
	require.NoError(t, err)

	assert.Equal(t, []string{"hb-1", "hp-1", "hp-2", "pp-1", "wc-1", "wc-2"}, nodeIDs(g))
	assert.Len(t, g.Edges, 6)
	assert.False(t, g.Meta.Truncated)
	assert.Equal(t, DefaultMaxDepth, g.Meta.MaxDepth)
	assert.Equal(t, DefaultMaxNodes, g.Meta.MaxNodes)

	root, ok := g.Node("hb-1")
	require.True(t, ok)
	assert.Equal(t, bottling, root.Type)
	assert.Equal(t, "40", root.BatchAmount.String())
	assert.Equal(t, "unit-hb-1", root.ExecutedByID)
}

func TestBuildGraph_AllocationRatios(t *testing.T) {
	b := buildPlant(t)
	gb := NewGraphBuilder(b.Store)

	g, err := gb.BuildGraph(context.Background(), "hb-1", model.DirectionUp)
	require.NoError(t, err)

	e := findEdge(t, g, "pp-1", "hp-1")
	require.NotNil(t, e.AllocationRatio)
	assert.Equal(t, "0.25", e.AllocationRatio.String())

	e = findEdge(t, g, "pp-1", "hp-2")
	require.NotNil(t, e.AllocationRatio)
	assert.Equal(t, "0.75", e.AllocationRatio.String())

	e = findEdge(t, g, "wc-1", "hp-1")
	require.NotNil(t, e.AllocationRatio)
	assert.Equal(t, "1", e.AllocationRatio.String())

	e = findEdge(t, g, "hp-2", "hb-1")
	require.NotNil(t, e.AllocationRatio)
	assert.True(t, e.AllocationRatio.LessThanOrEqual(decimal.NewFromInt(1)))
}

func TestBuildGraph_Downstream(t *testing.T) {
	b := buildPlant(t)
	gb := NewGraphBuilder(b.Store)

	g, err := gb.BuildGraph(context.Background(), "pp-1", model.DirectionDown)
	require.NoError(t, err)

	assert.Equal(t, []string{"pp-1", "hp-1", "hp-2", "hb-1"}, nodeIDs(g))
	assert.Len(t, g.Edges, 4)
	findEdge(t, g, "pp-1", "hp-2")
	findEdge(t, g, "hp-2", "hb-1")
}

func TestBuildGraph_BothDirectionsNoDuplicateEdges(t *testing.T) {
	b := buildPlant(t)
	gb := NewGraphBuilder(b.Store)

	g, err := gb.BuildGraph(context.Background(), "hp-1", model.DirectionBoth)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"hb-1", "hp-1", "hp-2", "pp-1", "wc-1", "wc-2"}, nodeIDs(g))
	assert.Len(t, g.Edges, 6)
}

func TestBuildGraph_MaxNodesTruncates(t *testing.T) {
	b := buildPlant(t)
	gb := NewGraphBuilder(b.Store)

	g, err := gb.BuildGraph(context.Background(), "hb-1", model.DirectionUp, WithMaxNodes(3))
	require.NoError(t, err)

	assert.Equal(t, []string{"hb-1", "hp-1", "hp-2"}, nodeIDs(g))
	assert.True(t, g.Meta.Truncated)
	assert.Len(t, g.Edges, 2)
	for _, e := range g.Edges {
		assert.Equal(t, "hb-1", e.ToID)
	}
}

func TestBuildGraph_TruncatedIffLimitReached(t *testing.T) {
	b := buildPlant(t)
	gb := NewGraphBuilder(b.Store)
	ctx := context.Background()

	for _, tc := range []struct {
		maxNodes  int
		visited   int
		truncated bool
	}{
		{maxNodes: 1, visited: 1, truncated: true},
		{maxNodes: 4, visited: 4, truncated: true},
		{maxNodes: 6, visited: 6, truncated: true},
		{maxNodes: 7, visited: 6, truncated: false},
	} {
		g, err := gb.BuildGraph(ctx, "hb-1", model.DirectionUp, WithMaxNodes(tc.maxNodes))
		require.NoError(t, err)
		assert.Len(t, g.Nodes, tc.visited, "maxNodes=%d", tc.maxNodes)
		assert.LessOrEqual(t, len(g.Nodes), tc.maxNodes)
		assert.Equal(t, tc.truncated, g.Meta.Truncated, "maxNodes=%d", tc.maxNodes)
	}
}

func TestBuildGraph_MaxDepth(t *testing.T) {
	b := buildPlant(t)
	gb := NewGraphBuilder(b.Store, WithMaxDepth(1))

	g, err := gb.BuildGraph(context.Background(), "hb-1", model.DirectionUp)
	require.NoError(t, err)

	assert.Equal(t, []string{"hb-1", "hp-1", "hp-2"}, nodeIDs(g))
	assert.Len(t, g.Edges, 2)
	assert.False(t, g.Meta.Truncated)
	assert.Equal(t, 1, g.Meta.MaxDepth)
}

func TestBuildGraph_InvalidInput(t *testing.T) {
	b := buildPlant(t)
	gb := NewGraphBuilder(b.Store)
	ctx := context.Background()

	_, err := gb.BuildGraph(ctx, "missing", model.DirectionUp)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrMissingInput))

	_, err = gb.BuildGraph(ctx, "hb-1", model.Direction("SIDEWAYS"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrMissingInput))

	_, err = gb.BuildGraph(ctx, "", model.DirectionUp)
	assert.True(t, errors.Is(err, model.ErrMissingInput))
}

func TestAssignAllocationRatios_ZeroDenominator(t *testing.T) {
	fetched := map[string]model.ProcessStep{
		"a": {ID: "a", Batch: &model.Batch{Amount: decimal.NewFromInt(5)}},
		"b": {ID: "b", Batch: &model.Batch{Amount: decimal.Zero}},
	}
	edges := []model.GraphEdge{{FromID: "a", ToID: "b"}}

	assignAllocationRatios(edges, fetched)
	assert.Nil(t, edges[0].AllocationRatio)
}

func TestAssignAllocationRatios_ClampsToOne(t *testing.T) {
	fetched := map[string]model.ProcessStep{
		"a": {ID: "a", Batch: &model.Batch{
			Amount:     decimal.NewFromInt(5),
			Successors: []model.BatchLink{{BatchID: "b-b", ProcessStepID: "b", Amount: decimal.NewFromInt(2)}},
		}},
		"b": {ID: "b", Batch: &model.Batch{Amount: decimal.NewFromInt(4)}},
	}
	edges := []model.GraphEdge{{FromID: "a", ToID: "b"}}

	assignAllocationRatios(edges, fetched)
	require.NotNil(t, edges[0].AllocationRatio)
	assert.Equal(t, "1", edges[0].AllocationRatio.String())
}

// cycleReader serves steps straight from a map, so links may form cycles
// that the stores would reject on insert.
type cycleReader struct {
	steps map[string]model.ProcessStep
	reads int
}

func (r *cycleReader) ReadUnique(_ context.Context, id string) (*model.ProcessStep, error) {
	s, ok := r.steps[id]
	if !ok {
		return nil, model.ErrMissingInput
	}
	return &s, nil
}

func (r *cycleReader) ReadMany(_ context.Context, ids []string) ([]model.ProcessStep, error) {
	r.reads++
	var out []model.ProcessStep
	for _, id := range ids {
		if s, ok := r.steps[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func cycleStep(id, other string) model.ProcessStep {
	link := model.BatchLink{BatchID: "b-" + other, ProcessStepID: other, Amount: decimal.NewFromInt(5)}
	return model.ProcessStep{
		ID:   id,
		Type: hydrogen,
		Batch: &model.Batch{
			ID:           "b-" + id,
			Amount:       decimal.NewFromInt(5),
			Type:         model.BatchTypeHydrogen,
			Predecessors: []model.BatchLink{link},
			Successors:   []model.BatchLink{link},
		},
	}
}

func TestBuildGraph_CycleTerminates(t *testing.T) {
	r := &cycleReader{steps: map[string]model.ProcessStep{
		"hp-a": cycleStep("hp-a", "hp-b"),
		"hp-b": cycleStep("hp-b", "hp-a"),
	}}

	g, err := NewGraphBuilder(r).BuildGraph(context.Background(), "hp-a", model.DirectionBoth)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"hp-a", "hp-b"}, nodeIDs(g))
	assert.Len(t, g.Edges, 2)
	findEdge(t, g, "hp-a", "hp-b")
	findEdge(t, g, "hp-b", "hp-a")
	assert.False(t, g.Meta.Truncated)
	assert.Equal(t, 1, r.reads)
}

package provenance

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/h2-custody/internal/model"
	"github.com/sells-group/h2-custody/internal/store/storetest"
)

func provenanceOf(t *testing.T, b *storetest.Builder, rootID string) (*model.Provenance, error) {
	t.Helper()
	return NewService(b.Store).Provenance(context.Background(), rootID)
}

func TestProvenance_Power(t *testing.T) {
	b := buildPlant(t)

	p, err := provenanceOf(t, b, "pp-1")
	require.NoError(t, err)
	assert.Equal(t, "pp-1", p.Root.ID)
	assert.Equal(t, []string{"pp-1"}, storetest.IDs(p.PowerProductions))
	assert.Empty(t, p.WaterConsumptions)
	assert.Empty(t, p.HydrogenProductions)
	assert.Nil(t, p.HydrogenBottling)
}

func TestProvenance_Water(t *testing.T) {
	b := buildPlant(t)

	p, err := provenanceOf(t, b, "wc-2")
	require.NoError(t, err)
	assert.Equal(t, []string{"wc-2"}, storetest.IDs(p.WaterConsumptions))
	assert.Empty(t, p.PowerProductions)
	assert.Empty(t, p.HydrogenProductions)
}

func TestProvenance_HydrogenProduction(t *testing.T) {
	b := buildPlant(t)

	p, err := provenanceOf(t, b, "hp-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"hp-1"}, storetest.IDs(p.HydrogenProductions))
	assert.Equal(t, []string{"pp-1"}, storetest.IDs(p.PowerProductions))
	assert.Equal(t, []string{"wc-1"}, storetest.IDs(p.WaterConsumptions))
	assert.Nil(t, p.HydrogenBottling)
}

func TestProvenance_BottlingDedupesSharedPower(t *testing.T) {
	b := buildPlant(t)

	p, err := provenanceOf(t, b, "hb-1")
	require.NoError(t, err)
	require.NotNil(t, p.HydrogenBottling)
	assert.Equal(t, "hb-1", p.HydrogenBottling.ID)
	assert.ElementsMatch(t, []string{"hp-1", "hp-2"}, storetest.IDs(p.HydrogenProductions))
	assert.Equal(t, []string{"pp-1"}, storetest.IDs(p.PowerProductions))
	assert.ElementsMatch(t, []string{"wc-1", "wc-2"}, storetest.IDs(p.WaterConsumptions))
}

func TestProvenance_BottlingThroughSplit(t *testing.T) {
	b := storetest.New(t)
	b.Add("pp-1", power, "100", nil)
	b.Add("wc-1", water, "50", nil)
	b.Add("hp-1", hydrogen, "10", []string{"pp-1", "wc-1"})
	b.Add("hp-1-c", hydrogen, "4", []string{"hp-1"})
	b.Add("hb-1", bottling, "4", []string{"hp-1-c"})

	p, err := provenanceOf(t, b, "hb-1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"hp-1-c", "hp-1"}, storetest.IDs(p.HydrogenProductions))
	assert.Equal(t, []string{"pp-1"}, storetest.IDs(p.PowerProductions))
	assert.Equal(t, []string{"wc-1"}, storetest.IDs(p.WaterConsumptions))
}

func TestProvenance_Transportation(t *testing.T) {
	b := buildPlant(t)
	b.Add("ht-1", transportation, "40", []string{"hb-1"})

	p, err := provenanceOf(t, b, "ht-1")
	require.NoError(t, err)
	assert.Equal(t, "ht-1", p.Root.ID)
	require.NotNil(t, p.HydrogenBottling)
	assert.Equal(t, "hb-1", p.HydrogenBottling.ID)
	assert.ElementsMatch(t, []string{"hp-1", "hp-2"}, storetest.IDs(p.HydrogenProductions))
	assert.Equal(t, []string{"pp-1"}, storetest.IDs(p.PowerProductions))
}

func TestProvenance_TransportationWithTwoBottlings(t *testing.T) {
	b := buildPlant(t)
	b.Add("hp-3", hydrogen, "5", []string{"pp-1", "wc-1"})
	b.Add("hb-2", bottling, "5", []string{"hp-3"})
	b.Add("ht-1", transportation, "45", []string{"hb-1", "hb-2"})

	_, err := provenanceOf(t, b, "ht-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrCountMismatch))
}

func TestProvenance_UnknownRoot(t *testing.T) {
	b := buildPlant(t)

	_, err := provenanceOf(t, b, "nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrMissingInput))
}

func TestAssembler_FromGraphRequiresGraph(t *testing.T) {
	b := buildPlant(t)

	_, err := NewAssembler(b.Store).FromGraph(context.Background(), nil, "hb-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrMissingInput))
}

func TestCollectUpstream_VisitsMergedPredecessorOnce(t *testing.T) {
	g := &model.ProvenanceGraph{
		Nodes: []model.GraphNode{
			{ID: "hb", Type: bottling},
			{ID: "h1", Type: hydrogen},
			{ID: "h2", Type: hydrogen},
			{ID: "p", Type: power},
		},
		Edges: []model.GraphEdge{
			{FromID: "h1", ToID: "hb"},
			{FromID: "h2", ToID: "hb"},
			{FromID: "p", ToID: "h1"},
			{FromID: "p", ToID: "h2"},
		},
	}
	idx := newGraphIndex(g)

	assert.Equal(t, []string{"h1", "h2"}, idx.collectUpstream([]string{"hb"}, hydrogenOnly))
	assert.Equal(t, []string{"p"}, idx.collectUpstream([]string{"h1", "h2"}, powerOrWater))
}

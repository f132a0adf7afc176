package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction selects which lineage links a graph traversal follows.
type Direction string

const (
	DirectionUp   Direction = "UP"
	DirectionDown Direction = "DOWN"
	DirectionBoth Direction = "BOTH"
)

// Valid reports whether d is a known traversal direction.
func (d Direction) Valid() bool {
	switch d {
	case DirectionUp, DirectionDown, DirectionBoth:
		return true
	}
	return false
}

// GraphNode is a process step as seen by the provenance graph.
type GraphNode struct {
	ID           string          `json:"id"`
	Type         ProcessStepType `json:"type"`
	ExecutedByID string          `json:"executed_by_id"`
	BatchAmount  decimal.Decimal `json:"batch_amount"`
	StartedAt    time.Time       `json:"started_at"`
	EndedAt      time.Time       `json:"ended_at"`
}

// GraphEdge points from a predecessor step to a successor step. A nil
// AllocationRatio means the ratio could not be derived.
type GraphEdge struct {
	FromID          string           `json:"from_id"`
	ToID            string           `json:"to_id"`
	AllocationRatio *decimal.Decimal `json:"allocation_ratio,omitempty"`
}

// GraphMeta describes how a graph was built.
type GraphMeta struct {
	RootID    string    `json:"root_id"`
	Direction Direction `json:"direction"`
	MaxDepth  int       `json:"max_depth"`
	MaxNodes  int       `json:"max_nodes"`
	Truncated bool      `json:"truncated"`
}

// ProvenanceGraph is a bounded node/edge view of a step's lineage.
type ProvenanceGraph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
	Meta  GraphMeta   `json:"meta"`
}

// Node returns the node with the given id.
func (g *ProvenanceGraph) Node(id string) (GraphNode, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return GraphNode{}, false
}

// Provenance is the classified set of ancestor steps of a root step. Only the
// ancestor kinds relevant to the root's type are populated.
type Provenance struct {
	Root                *ProcessStep  `json:"root"`
	HydrogenBottling    *ProcessStep  `json:"hydrogen_bottling,omitempty"`
	HydrogenProductions []ProcessStep `json:"hydrogen_productions,omitempty"`
	WaterConsumptions   []ProcessStep `json:"water_consumptions,omitempty"`
	PowerProductions    []ProcessStep `json:"power_productions,omitempty"`
}

// HydrogenComponent is the aggregated amount of one hydrogen color among a
// set of predecessor batches.
type HydrogenComponent struct {
	Color     HydrogenColor   `json:"color"`
	Amount    decimal.Decimal `json:"amount"`
	RFNBOType RFNBOType       `json:"rfnbo_type"`
}

// BatchSelectionResult describes one allocation run: batches consumed whole
// and, per color, at most one batch split into a consumed and a remaining part.
type BatchSelectionResult struct {
	BatchesForBottle               []Batch       `json:"batches_for_bottle"`
	ProcessStepsToBeSplit          []ProcessStep `json:"process_steps_to_be_split"`
	ConsumedSplitProcessSteps      []ProcessStep `json:"consumed_split_process_steps"`
	ProcessStepsForRemainingAmount []ProcessStep `json:"process_steps_for_remaining_amount"`
}

// Merge appends the selections of other to r.
func (r *BatchSelectionResult) Merge(other BatchSelectionResult) {
	r.BatchesForBottle = append(r.BatchesForBottle, other.BatchesForBottle...)
	r.ProcessStepsToBeSplit = append(r.ProcessStepsToBeSplit, other.ProcessStepsToBeSplit...)
	r.ConsumedSplitProcessSteps = append(r.ConsumedSplitProcessSteps, other.ConsumedSplitProcessSteps...)
	r.ProcessStepsForRemainingAmount = append(r.ProcessStepsForRemainingAmount, other.ProcessStepsForRemainingAmount...)
}

// BottlingPlan is everything a persistence layer must apply atomically to
// record a bottling.
type BottlingPlan struct {
	Bottling  ProcessStep          `json:"bottling"`
	Selection BatchSelectionResult `json:"selection"`
}

// PowerSide is the power half of a matched production pair.
type PowerSide struct {
	ProcessStep ProcessStep          `json:"process_step"`
	Unit        *PowerProductionUnit `json:"unit,omitempty"`
}

// HydrogenSide is the hydrogen half of a matched production pair.
type HydrogenSide struct {
	ProcessStep ProcessStep             `json:"process_step"`
	Unit        *HydrogenProductionUnit `json:"unit,omitempty"`
}

// MatchedProductionPair couples a power production step with the hydrogen
// production step that consumed its output.
type MatchedProductionPair struct {
	Power    PowerSide    `json:"power"`
	Hydrogen HydrogenSide `json:"hydrogen"`
}

// RedCompliance is the verdict of the RED correlation criteria.
type RedCompliance struct {
	IsGeoCorrelationValid    bool `json:"is_geo_correlation_valid"`
	IsTimeCorrelationValid   bool `json:"is_time_correlation_valid"`
	IsAdditionalityFulfilled bool `json:"is_additionality_fulfilled"`
	FinancialSupportReceived bool `json:"financial_support_received"`
	IsRedCompliant           bool `json:"is_red_compliant"`
}

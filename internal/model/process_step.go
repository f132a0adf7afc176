package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProcessStepType identifies the production stage a process step records.
type ProcessStepType string

const (
	ProcessStepPowerProduction        ProcessStepType = "POWER_PRODUCTION"
	ProcessStepWaterConsumption       ProcessStepType = "WATER_CONSUMPTION"
	ProcessStepHydrogenProduction     ProcessStepType = "HYDROGEN_PRODUCTION"
	ProcessStepHydrogenBottling       ProcessStepType = "HYDROGEN_BOTTLING"
	ProcessStepHydrogenTransportation ProcessStepType = "HYDROGEN_TRANSPORTATION"
)

// Valid reports whether t is one of the known process step types.
func (t ProcessStepType) Valid() bool {
	switch t {
	case ProcessStepPowerProduction,
		ProcessStepWaterConsumption,
		ProcessStepHydrogenProduction,
		ProcessStepHydrogenBottling,
		ProcessStepHydrogenTransportation:
		return true
	}
	return false
}

// BatchType is the commodity carried by a batch.
type BatchType string

const (
	BatchTypeHydrogen BatchType = "HYDROGEN"
	BatchTypePower    BatchType = "POWER"
	BatchTypeWater    BatchType = "WATER"
)

// HydrogenColor classifies hydrogen by production pathway.
type HydrogenColor string

const (
	HydrogenColorGreen  HydrogenColor = "GREEN"
	HydrogenColorYellow HydrogenColor = "YELLOW"
	HydrogenColorOrange HydrogenColor = "ORANGE"
	HydrogenColorMix    HydrogenColor = "MIX"
)

// RFNBOType is the renewable-fuel-of-non-biological-origin certification state.
type RFNBOType string

const (
	RFNBOReady          RFNBOType = "RFNBO_READY"
	RFNBONonCertifiable RFNBOType = "NON_CERTIFIABLE"
	RFNBONotSpecified   RFNBOType = "NOT_SPECIFIED"
)

// QualityDetails carries the hydrogen classification of a batch.
type QualityDetails struct {
	Color     HydrogenColor `json:"color" yaml:"color"`
	RFNBOType RFNBOType     `json:"rfnbo_type,omitempty" yaml:"rfnbo_type"`
}

// BatchLink references a neighbouring batch in the lineage graph together
// with the process step that owns it.
type BatchLink struct {
	BatchID       string          `json:"batch_id" yaml:"batch_id"`
	ProcessStepID string          `json:"process_step_id" yaml:"process_step_id"`
	Amount        decimal.Decimal `json:"amount" yaml:"-"`
}

// Batch is a quantity of hydrogen, power or water moving through one stage.
type Batch struct {
	ID                    string          `json:"id"`
	Amount                decimal.Decimal `json:"amount"`
	Type                  BatchType       `json:"type"`
	QualityDetails        *QualityDetails `json:"quality_details,omitempty"`
	Active                bool            `json:"active"`
	OwnerID               string          `json:"owner_id,omitempty"`
	HydrogenStorageUnitID string          `json:"hydrogen_storage_unit_id,omitempty"`
	Predecessors          []BatchLink     `json:"predecessors,omitempty"`
	Successors            []BatchLink     `json:"successors,omitempty"`
}

// Color returns the hydrogen color of the batch, or "" when unclassified.
func (b Batch) Color() HydrogenColor {
	if b.QualityDetails == nil {
		return ""
	}
	return b.QualityDetails.Color
}

// RFNBO returns the batch's RFNBO type, defaulting to NOT_SPECIFIED.
func (b Batch) RFNBO() RFNBOType {
	if b.QualityDetails == nil || b.QualityDetails.RFNBOType == "" {
		return RFNBONotSpecified
	}
	return b.QualityDetails.RFNBOType
}

// ProcessStep is one recorded production or transformation event. It owns
// exactly one batch.
type ProcessStep struct {
	ID           string          `json:"id"`
	Type         ProcessStepType `json:"type"`
	StartedAt    time.Time       `json:"started_at"`
	EndedAt      time.Time       `json:"ended_at"`
	ExecutedByID string          `json:"executed_by_id"`
	RecordedByID string          `json:"recorded_by_id,omitempty"`
	Batch        *Batch          `json:"batch,omitempty"`
}

// PredecessorStepIDs returns the owning step ids of the step's predecessor
// batches in link order.
func (s ProcessStep) PredecessorStepIDs() []string {
	if s.Batch == nil {
		return nil
	}
	ids := make([]string, 0, len(s.Batch.Predecessors))
	for _, p := range s.Batch.Predecessors {
		ids = append(ids, p.ProcessStepID)
	}
	return ids
}

// SuccessorStepIDs returns the owning step ids of the step's successor batches.
func (s ProcessStep) SuccessorStepIDs() []string {
	if s.Batch == nil {
		return nil
	}
	ids := make([]string, 0, len(s.Batch.Successors))
	for _, l := range s.Batch.Successors {
		ids = append(ids, l.ProcessStepID)
	}
	return ids
}

// HasPredecessors reports whether the step's batch links to at least one
// predecessor.
func (s ProcessStep) HasPredecessors() bool {
	return s.Batch != nil && len(s.Batch.Predecessors) > 0
}

// Amount returns the batch amount, or zero when the step has no batch.
func (s ProcessStep) Amount() decimal.Decimal {
	if s.Batch == nil {
		return decimal.Zero
	}
	return s.Batch.Amount
}

// PowerProductionUnit is the metadata of a power plant relevant to RED
// correlation checks.
type PowerProductionUnit struct {
	ID                       string    `json:"id" yaml:"id"`
	Name                     string    `json:"name,omitempty" yaml:"name"`
	BiddingZone              string    `json:"bidding_zone" yaml:"bidding_zone"`
	CommissionedOn           time.Time `json:"commissioned_on" yaml:"commissioned_on"`
	FinancialSupportReceived bool      `json:"financial_support_received" yaml:"financial_support_received"`
}

// HydrogenProductionUnit is the metadata of an electrolyser relevant to RED
// correlation checks.
type HydrogenProductionUnit struct {
	ID             string    `json:"id" yaml:"id"`
	Name           string    `json:"name,omitempty" yaml:"name"`
	BiddingZone    string    `json:"bidding_zone" yaml:"bidding_zone"`
	CommissionedOn time.Time `json:"commissioned_on" yaml:"commissioned_on"`
}

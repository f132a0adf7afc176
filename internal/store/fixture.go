package store

import (
	"context"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/h2-custody/internal/model"
)

// Fixture is the YAML layout accepted by LoadFixture.
type Fixture struct {
	PowerUnits    []model.PowerProductionUnit    `yaml:"power_units"`
	HydrogenUnits []model.HydrogenProductionUnit `yaml:"hydrogen_units"`
	ProcessSteps  []FixtureStep                  `yaml:"process_steps"`
}

// FixtureStep is a process step as written in a fixture file. Steps must be
// listed after the steps owning their predecessor batches.
type FixtureStep struct {
	ID           string       `yaml:"id"`
	Type         string       `yaml:"type"`
	StartedAt    time.Time    `yaml:"started_at"`
	EndedAt      time.Time    `yaml:"ended_at"`
	ExecutedByID string       `yaml:"executed_by_id"`
	RecordedByID string       `yaml:"recorded_by_id"`
	Batch        FixtureBatch `yaml:"batch"`
}

// FixtureBatch is the batch of a FixtureStep.
type FixtureBatch struct {
	ID                    string   `yaml:"id"`
	Amount                string   `yaml:"amount"`
	Type                  string   `yaml:"type"`
	Color                 string   `yaml:"color"`
	RFNBOType             string   `yaml:"rfnbo_type"`
	Active                *bool    `yaml:"active"`
	OwnerID               string   `yaml:"owner_id"`
	HydrogenStorageUnitID string   `yaml:"hydrogen_storage_unit_id"`
	Predecessors          []string `yaml:"predecessors"`
}

// LoadFixture reads a YAML fixture file into a new MemStore.
func LoadFixture(path string) (*MemStore, error) {
	f, err := ReadFixture(path)
	if err != nil {
		return nil, err
	}
	m := NewMemStore()
	if err := f.Seed(context.Background(), m); err != nil {
		return nil, err
	}
	return m, nil
}

// ParseFixture decodes YAML fixture data into a new MemStore.
func ParseFixture(data []byte) (*MemStore, error) {
	f, err := DecodeFixture(data)
	if err != nil {
		return nil, err
	}
	m := NewMemStore()
	if err := f.Seed(context.Background(), m); err != nil {
		return nil, err
	}
	return m, nil
}

// ReadFixture reads and decodes a YAML fixture file.
func ReadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "fixture: read %s", path)
	}
	return DecodeFixture(data)
}

// DecodeFixture decodes YAML fixture data.
func DecodeFixture(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "fixture: decode")
	}
	return &f, nil
}

// Seed writes the fixture's units and steps to s, in file order.
func (f *Fixture) Seed(ctx context.Context, s Seeder) error {
	for _, u := range f.PowerUnits {
		if err := s.InsertPowerUnit(ctx, u); err != nil {
			return eris.Wrapf(err, "fixture: power unit %s", u.ID)
		}
	}
	for _, u := range f.HydrogenUnits {
		if err := s.InsertHydrogenUnit(ctx, u); err != nil {
			return eris.Wrapf(err, "fixture: hydrogen unit %s", u.ID)
		}
	}
	for _, fs := range f.ProcessSteps {
		step, err := fs.toProcessStep()
		if err != nil {
			return err
		}
		if err := s.InsertStep(ctx, step); err != nil {
			return eris.Wrapf(err, "fixture: step %s", fs.ID)
		}
	}
	return nil
}

func (fs FixtureStep) toProcessStep() (model.ProcessStep, error) {
	typ := model.ProcessStepType(fs.Type)
	if !typ.Valid() {
		return model.ProcessStep{}, eris.Errorf("fixture: step %s has unknown type %q", fs.ID, fs.Type)
	}
	amount, err := decimal.NewFromString(fs.Batch.Amount)
	if err != nil {
		return model.ProcessStep{}, eris.Wrapf(err, "fixture: step %s amount", fs.ID)
	}
	if !amount.IsPositive() {
		return model.ProcessStep{}, eris.Errorf("fixture: step %s amount must be positive", fs.ID)
	}

	active := true
	if fs.Batch.Active != nil {
		active = *fs.Batch.Active
	}
	batchType := model.BatchType(fs.Batch.Type)
	if batchType == "" {
		batchType = defaultBatchType(typ)
	}

	b := &model.Batch{
		ID:                    fs.Batch.ID,
		Amount:                amount,
		Type:                  batchType,
		Active:                active,
		OwnerID:               fs.Batch.OwnerID,
		HydrogenStorageUnitID: fs.Batch.HydrogenStorageUnitID,
	}
	if fs.Batch.Color != "" {
		b.QualityDetails = &model.QualityDetails{
			Color:     model.HydrogenColor(fs.Batch.Color),
			RFNBOType: model.RFNBOType(fs.Batch.RFNBOType),
		}
	}
	for _, p := range fs.Batch.Predecessors {
		b.Predecessors = append(b.Predecessors, model.BatchLink{BatchID: p})
	}

	return model.ProcessStep{
		ID:           fs.ID,
		Type:         typ,
		StartedAt:    fs.StartedAt,
		EndedAt:      fs.EndedAt,
		ExecutedByID: fs.ExecutedByID,
		RecordedByID: fs.RecordedByID,
		Batch:        b,
	}, nil
}

func defaultBatchType(t model.ProcessStepType) model.BatchType {
	switch t {
	case model.ProcessStepPowerProduction:
		return model.BatchTypePower
	case model.ProcessStepWaterConsumption:
		return model.BatchTypeWater
	case model.ProcessStepHydrogenProduction, model.ProcessStepHydrogenBottling, model.ProcessStepHydrogenTransportation:
		return model.BatchTypeHydrogen
	}
	return ""
}

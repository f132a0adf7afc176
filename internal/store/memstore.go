package store

import (
	"context"
	"sort"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/h2-custody/internal/model"
)

// MemStore is an in-memory Store. It backs tests and the --fixture mode of
// the CLI.
type MemStore struct {
	mu            sync.RWMutex
	steps         map[string]model.ProcessStep // batch links hold batch ids only
	stepOrder     []string
	batchOwner    map[string]string // batch id -> process step id
	successors    map[string][]string
	powerUnits    map[string]model.PowerProductionUnit
	hydrogenUnits map[string]model.HydrogenProductionUnit
}

var _ Store = (*MemStore)(nil)

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		steps:         make(map[string]model.ProcessStep),
		batchOwner:    make(map[string]string),
		successors:    make(map[string][]string),
		powerUnits:    make(map[string]model.PowerProductionUnit),
		hydrogenUnits: make(map[string]model.HydrogenProductionUnit),
	}
}

// AddStep records a step and its batch. Only BatchID is read from the batch's
// predecessor links; successor links are derived.
func (m *MemStore) AddStep(step model.ProcessStep) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addStepLocked(step)
}

func (m *MemStore) addStepLocked(step model.ProcessStep) error {
	if step.ID == "" {
		return eris.New("memstore: step id is required")
	}
	if _, ok := m.steps[step.ID]; ok {
		return eris.Errorf("memstore: duplicate step %s", step.ID)
	}
	if step.Batch == nil || step.Batch.ID == "" {
		return eris.Errorf("memstore: step %s has no batch", step.ID)
	}
	if _, ok := m.batchOwner[step.Batch.ID]; ok {
		return eris.Errorf("memstore: duplicate batch %s", step.Batch.ID)
	}

	b := *step.Batch
	preds := make([]model.BatchLink, 0, len(b.Predecessors))
	for _, p := range b.Predecessors {
		if _, ok := m.batchOwner[p.BatchID]; !ok {
			return eris.Errorf("memstore: step %s references unknown batch %s", step.ID, p.BatchID)
		}
		preds = append(preds, model.BatchLink{BatchID: p.BatchID})
		m.successors[p.BatchID] = append(m.successors[p.BatchID], b.ID)
	}
	b.Predecessors = preds
	b.Successors = nil
	step.Batch = &b

	m.steps[step.ID] = step
	m.stepOrder = append(m.stepOrder, step.ID)
	m.batchOwner[b.ID] = step.ID
	return nil
}

// AddPowerUnit records power unit metadata.
func (m *MemStore) AddPowerUnit(u model.PowerProductionUnit) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.powerUnits[u.ID] = u
}

// AddHydrogenUnit records hydrogen unit metadata.
func (m *MemStore) AddHydrogenUnit(u model.HydrogenProductionUnit) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hydrogenUnits[u.ID] = u
}

// ReadUnique implements ProcessStepReader.
func (m *MemStore) ReadUnique(_ context.Context, id string) (*model.ProcessStep, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.steps[id]; !ok {
		return nil, eris.Wrapf(model.ErrStepNotFound, "invalid process step %s", id)
	}
	s := m.resolveLocked(id)
	return &s, nil
}

// ReadMany implements ProcessStepReader.
func (m *MemStore) ReadMany(_ context.Context, ids []string) ([]model.ProcessStep, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.ProcessStep, 0, len(ids))
	for _, id := range ids {
		if _, ok := m.steps[id]; !ok {
			continue
		}
		out = append(out, m.resolveLocked(id))
	}
	return out, nil
}

// resolveLocked returns a deep copy of the step with fully populated links.
func (m *MemStore) resolveLocked(id string) model.ProcessStep {
	s := m.steps[id]
	b := *s.Batch
	if b.QualityDetails != nil {
		qd := *b.QualityDetails
		b.QualityDetails = &qd
	}
	b.Predecessors = m.linksLocked(batchIDs(s.Batch.Predecessors))
	b.Successors = m.linksLocked(m.successors[b.ID])
	s.Batch = &b
	return s
}

func (m *MemStore) linksLocked(ids []string) []model.BatchLink {
	if len(ids) == 0 {
		return nil
	}
	links := make([]model.BatchLink, 0, len(ids))
	for _, bid := range ids {
		owner := m.steps[m.batchOwner[bid]]
		links = append(links, model.BatchLink{
			BatchID:       bid,
			ProcessStepID: owner.ID,
			Amount:        owner.Batch.Amount,
		})
	}
	return links
}

func batchIDs(links []model.BatchLink) []string {
	ids := make([]string, len(links))
	for i, l := range links {
		ids[i] = l.BatchID
	}
	return ids
}

// ReadPowerUnitsByIDs implements ProductionUnitReader.
func (m *MemStore) ReadPowerUnitsByIDs(_ context.Context, ids []string) ([]model.PowerProductionUnit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.PowerProductionUnit
	for _, id := range ids {
		if u, ok := m.powerUnits[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

// ReadHydrogenUnitsByIDs implements ProductionUnitReader.
func (m *MemStore) ReadHydrogenUnitsByIDs(_ context.Context, ids []string) ([]model.HydrogenProductionUnit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.HydrogenProductionUnit
	for _, id := range ids {
		if u, ok := m.hydrogenUnits[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

// ListAvailableHydrogenSteps implements InventoryReader.
func (m *MemStore) ListAvailableHydrogenSteps(_ context.Context, storageUnitID string) ([]model.ProcessStep, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.ProcessStep
	for _, id := range m.stepOrder {
		s := m.steps[id]
		b := s.Batch
		if !b.Active || b.Type != model.BatchTypeHydrogen || b.HydrogenStorageUnitID != storageUnitID {
			continue
		}
		out = append(out, m.resolveLocked(id))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out, nil
}

// ApplyBottling implements BottlingWriter. Either the whole plan is applied
// or nothing is.
func (m *MemStore) ApplyBottling(_ context.Context, plan model.BottlingPlan) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	inserts, deactivate := planInserts(plan)
	for _, bid := range deactivate {
		owner, ok := m.batchOwner[bid]
		if !ok {
			return eris.Errorf("memstore: apply bottling: unknown batch %s", bid)
		}
		if !m.steps[owner].Batch.Active {
			return eris.Wrapf(model.ErrInsufficientStock, "memstore: batch %s was already consumed", bid)
		}
	}

	// Work on a snapshot so a failing insert leaves the store untouched.
	snapshot := m.snapshotLocked()
	for _, s := range inserts {
		if err := m.addStepLocked(s); err != nil {
			m.restoreLocked(snapshot)
			return eris.Wrap(err, "memstore: apply bottling")
		}
	}
	for _, bid := range deactivate {
		owner := m.steps[m.batchOwner[bid]]
		b := *owner.Batch
		b.Active = false
		owner.Batch = &b
		m.steps[owner.ID] = owner
	}
	return nil
}

type memSnapshot struct {
	steps      map[string]model.ProcessStep
	stepOrder  []string
	batchOwner map[string]string
	successors map[string][]string
}

func (m *MemStore) snapshotLocked() memSnapshot {
	s := memSnapshot{
		steps:      make(map[string]model.ProcessStep, len(m.steps)),
		stepOrder:  append([]string(nil), m.stepOrder...),
		batchOwner: make(map[string]string, len(m.batchOwner)),
		successors: make(map[string][]string, len(m.successors)),
	}
	for k, v := range m.steps {
		s.steps[k] = v
	}
	for k, v := range m.batchOwner {
		s.batchOwner[k] = v
	}
	for k, v := range m.successors {
		s.successors[k] = append([]string(nil), v...)
	}
	return s
}

func (m *MemStore) restoreLocked(s memSnapshot) {
	m.steps = s.steps
	m.stepOrder = s.stepOrder
	m.batchOwner = s.batchOwner
	m.successors = s.successors
}

// InsertStep implements Seeder.
func (m *MemStore) InsertStep(_ context.Context, step model.ProcessStep) error {
	return m.AddStep(step)
}

// InsertPowerUnit implements Seeder.
func (m *MemStore) InsertPowerUnit(_ context.Context, u model.PowerProductionUnit) error {
	m.AddPowerUnit(u)
	return nil
}

// InsertHydrogenUnit implements Seeder.
func (m *MemStore) InsertHydrogenUnit(_ context.Context, u model.HydrogenProductionUnit) error {
	m.AddHydrogenUnit(u)
	return nil
}

// Ping is a no-op.
func (m *MemStore) Ping(context.Context) error { return nil }

// Migrate is a no-op.
func (m *MemStore) Migrate(context.Context) error { return nil }

// Close is a no-op.
func (m *MemStore) Close() error { return nil }

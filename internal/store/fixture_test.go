package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/h2-custody/internal/model"
)

func TestLoadFixture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plant.yaml")
	require.NoError(t, os.WriteFile(path, []byte(lineageFixture), 0o600))

	m, err := LoadFixture(path)
	require.NoError(t, err)

	hp, err := m.ReadUnique(context.Background(), "hp-1")
	require.NoError(t, err)
	assert.Equal(t, model.BatchTypeHydrogen, hp.Batch.Type)
	assert.Equal(t, "tank-1", hp.Batch.HydrogenStorageUnitID)
}

func TestLoadFixture_MissingFile(t *testing.T) {
	_, err := LoadFixture(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fixture: read")
}

func TestParseFixture_Errors(t *testing.T) {
	cases := map[string]struct {
		yaml string
		want string
	}{
		"malformed": {
			yaml: "process_steps: [",
			want: "fixture: decode",
		},
		"unknown type": {
			yaml: `
process_steps:
  - id: x-1
    type: FUSION
    batch: {id: b-x-1, amount: "1"}`,
			want: `unknown type "FUSION"`,
		},
		"bad amount": {
			yaml: `
process_steps:
  - id: pp-1
    type: POWER_PRODUCTION
    batch: {id: b-pp-1, amount: "lots"}`,
			want: "fixture: step pp-1 amount",
		},
		"non-positive amount": {
			yaml: `
process_steps:
  - id: pp-1
    type: POWER_PRODUCTION
    batch: {id: b-pp-1, amount: "0"}`,
			want: "amount must be positive",
		},
		"predecessor listed later": {
			yaml: `
process_steps:
  - id: hp-1
    type: HYDROGEN_PRODUCTION
    batch: {id: b-hp-1, amount: "1", predecessors: [b-pp-1]}
  - id: pp-1
    type: POWER_PRODUCTION
    batch: {id: b-pp-1, amount: "1"}`,
			want: "unknown batch b-pp-1",
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseFixture([]byte(tc.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestFixture_DefaultsBatchTypeAndActive(t *testing.T) {
	m, err := ParseFixture([]byte(`
process_steps:
  - id: wc-1
    type: WATER_CONSUMPTION
    batch: {id: b-wc-1, amount: "2", active: false}`))
	require.NoError(t, err)

	wc, err := m.ReadUnique(context.Background(), "wc-1")
	require.NoError(t, err)
	assert.Equal(t, model.BatchTypeWater, wc.Batch.Type)
	assert.False(t, wc.Batch.Active)
}

func TestFixture_SeedsSQLite(t *testing.T) {
	st := newTestSQLiteStore(t)
	seed(t, st)

	units, err := st.ReadHydrogenUnitsByIDs(context.Background(), []string{"unit-hp"})
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, "DE-LU", units[0].BiddingZone)
}

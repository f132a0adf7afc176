package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sells-group/h2-custody/internal/model"
	"github.com/sells-group/h2-custody/internal/resilience"
)

// flakyStore fails the first n reads with a serialization failure.
type flakyStore struct {
	*MemStore
	failures int
	calls    int
}

func (f *flakyStore) ReadMany(ctx context.Context, ids []string) ([]model.ProcessStep, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, &pgconn.PgError{Code: "40001", Message: "could not serialize access"}
	}
	return f.MemStore.ReadMany(ctx, ids)
}

func (f *flakyStore) ReadUnique(ctx context.Context, id string) (*model.ProcessStep, error) {
	f.calls++
	return f.MemStore.ReadUnique(ctx, id)
}

func fastRetryConfig() resilience.RetryConfig {
	return resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
}

func newFlaky(t *testing.T, failures int) *flakyStore {
	t.Helper()
	m := NewMemStore()
	seed(t, m)
	return &flakyStore{MemStore: m, failures: failures}
}

func TestRetryingStore_RetriesTransientErrors(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	defer zap.ReplaceGlobals(zap.New(core))()

	flaky := newFlaky(t, 2)
	r := NewRetryingStore(flaky, "postgres", fastRetryConfig())

	steps, err := r.ReadMany(context.Background(), []string{"hp-1"})
	require.NoError(t, err)
	assert.Len(t, steps, 1)
	assert.Equal(t, 3, flaky.calls)

	retries := logs.FilterMessage("store: retrying operation").All()
	require.Len(t, retries, 2)
	assert.Equal(t, "read_many", retries[0].ContextMap()["operation"])
	assert.Equal(t, "postgres", retries[0].ContextMap()["driver"])
}

func TestRetryingStore_GivesUp(t *testing.T) {
	flaky := newFlaky(t, 5)
	r := NewRetryingStore(flaky, "postgres", fastRetryConfig())

	_, err := r.ReadMany(context.Background(), []string{"hp-1"})
	require.Error(t, err)
	var pgErr *pgconn.PgError
	assert.True(t, errors.As(err, &pgErr))
	assert.Equal(t, 3, flaky.calls)
}

func TestRetryingStore_ClientErrorNotRetried(t *testing.T) {
	flaky := newFlaky(t, 0)
	r := NewRetryingStore(flaky, "memory", fastRetryConfig())

	_, err := r.ReadUnique(context.Background(), "hb-404")
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrMissingInput))
	assert.Equal(t, 1, flaky.calls)
}

func TestRetryingStore_PassesThroughOtherMethods(t *testing.T) {
	r := NewRetryingStore(newFlaky(t, 0), "memory", fastRetryConfig())
	ctx := context.Background()

	inv, err := r.ListAvailableHydrogenSteps(ctx, "tank-2")
	require.NoError(t, err)
	assert.Equal(t, []string{"hp-3"}, stepIDs(inv))

	units, err := r.ReadPowerUnitsByIDs(ctx, []string{"unit-pp"})
	require.NoError(t, err)
	assert.Len(t, units, 1)

	hunits, err := r.ReadHydrogenUnitsByIDs(ctx, []string{"unit-hp"})
	require.NoError(t, err)
	assert.Len(t, hunits, 1)

	require.NoError(t, r.ApplyBottling(ctx, bottlingPlan(t, r, "bottle-1")))
	assert.NoError(t, r.Ping(ctx))
}

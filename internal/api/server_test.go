package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/h2-custody/internal/config"
	"github.com/sells-group/h2-custody/internal/model"
	"github.com/sells-group/h2-custody/internal/store/storetest"
)

var at10 = time.Date(2024, time.May, 2, 10, 0, 0, 0, time.UTC)

func testConfig() *config.Config {
	return &config.Config{
		Server:     config.ServerConfig{CORSOrigins: []string{"*"}},
		Graph:      config.GraphConfig{MaxDepth: 50, MaxNodes: 5000},
		Compliance: config.ComplianceConfig{AdditionalityMonths: 36},
	}
}

// newPlant stores one green bottling fed by pp-1/wc-1 and a yellow batch
// left in tank-1.
func newPlant(t *testing.T) *storetest.Builder {
	t.Helper()
	b := storetest.New(t)
	b.Add("pp-1", model.ProcessStepPowerProduction, "100", nil,
		storetest.ExecutedBy("pu-1"), storetest.At(at10.Add(5*time.Minute)))
	b.Add("wc-1", model.ProcessStepWaterConsumption, "50", nil)
	b.Add("hp-1", model.ProcessStepHydrogenProduction, "10", []string{"pp-1", "wc-1"},
		storetest.ExecutedBy("hu-1"), storetest.At(at10.Add(40*time.Minute)),
		storetest.Color(model.HydrogenColorGreen, model.RFNBOReady), storetest.Inactive())
	b.Add("hp-2", model.ProcessStepHydrogenProduction, "20", nil,
		storetest.Color(model.HydrogenColorYellow, model.RFNBONonCertifiable), storetest.InStorage("tank-1"))
	b.Add("hb-1", model.ProcessStepHydrogenBottling, "10", []string{"hp-1"},
		storetest.Color(model.HydrogenColorGreen, model.RFNBOReady))

	b.Store.AddPowerUnit(model.PowerProductionUnit{ID: "pu-1", BiddingZone: "DE_LU", CommissionedOn: time.Date(2022, time.August, 1, 0, 0, 0, 0, time.UTC)})
	b.Store.AddHydrogenUnit(model.HydrogenProductionUnit{ID: "hu-1", BiddingZone: "DE_LU", CommissionedOn: time.Date(2023, time.June, 1, 0, 0, 0, 0, time.UTC)})
	return b
}

func newTestServer(t *testing.T, cfg *config.Config) (*httptest.Server, *storetest.Builder) {
	t.Helper()
	b := newPlant(t)
	srv := httptest.NewServer(NewServer(NewServices(b.Store, cfg), cfg.Server).Router())
	t.Cleanup(srv.Close)
	return srv, b
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())

	var body map[string]string
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/health", &body))
	assert.Equal(t, "ok", body["status"])
}

func TestHealth_StoreDown(t *testing.T) {
	svc := NewServices(storetest.New(t).Store, testConfig())
	svc.Ping = func(context.Context) error { return errors.New("connection refused") }
	srv := httptest.NewServer(NewServer(svc, config.ServerConfig{}).Router())
	defer srv.Close()

	var body map[string]string
	assert.Equal(t, http.StatusServiceUnavailable, getJSON(t, srv.URL+"/health", &body))
	assert.Equal(t, "unavailable", body["status"])
}

func TestGraph(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())

	var g model.ProvenanceGraph
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/process-steps/hb-1/graph", &g))
	assert.Len(t, g.Nodes, 4)
	assert.Len(t, g.Edges, 3)
	assert.Equal(t, model.DirectionUp, g.Meta.Direction)
	assert.False(t, g.Meta.Truncated)

	var down model.ProvenanceGraph
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/process-steps/pp-1/graph?direction=down&maxNodes=2", &down))
	assert.Equal(t, model.DirectionDown, down.Meta.Direction)
	assert.Equal(t, 2, down.Meta.MaxNodes)
	assert.True(t, down.Meta.Truncated)
}

func TestGraph_BadQuery(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())

	for _, q := range []string{"direction=sideways", "maxDepth=abc", "maxNodes=0"} {
		var body errorBody
		assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/process-steps/hb-1/graph?"+q, &body), q)
		assert.Equal(t, "missing_input", body.Error, q)
	}
}

func TestGraph_UnknownStep(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())

	var body errorBody
	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/process-steps/hb-404/graph", &body))
	assert.Contains(t, body.Message, "invalid process step hb-404")
}

func TestProvenance(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())

	var p model.Provenance
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/process-steps/hb-1/provenance", &p))
	require.NotNil(t, p.Root)
	assert.Equal(t, "hb-1", p.Root.ID)
	assert.Equal(t, []string{"hp-1"}, storetest.IDs(p.HydrogenProductions))
	assert.Equal(t, []string{"pp-1"}, storetest.IDs(p.PowerProductions))
	assert.Equal(t, []string{"wc-1"}, storetest.IDs(p.WaterConsumptions))
}

func TestComposition(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())

	var c CompositionResponse
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/process-steps/hb-1/composition", &c))
	assert.Equal(t, "hb-1", c.ProcessStepID)
	require.Len(t, c.Components, 1)
	assert.Equal(t, model.HydrogenColorGreen, c.Components[0].Color)
	assert.True(t, c.Total.Equal(decimal.NewFromInt(10)))
}

func TestComposition_WrongType(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())

	var body errorBody
	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/process-steps/hp-1/composition", &body))
	assert.Equal(t, "type_mismatch", body.Error)
}

func TestRedCompliance(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())

	var c model.RedCompliance
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/process-steps/hb-1/red-compliance", &c))
	assert.Equal(t, model.RedCompliance{
		IsGeoCorrelationValid:    true,
		IsTimeCorrelationValid:   true,
		IsAdditionalityFulfilled: true,
	}, c)
}

func postJSON(t *testing.T, url, body string, out any) int {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestBottle(t *testing.T) {
	srv, b := newTestServer(t, testConfig())

	var plan model.BottlingPlan
	status := postJSON(t, srv.URL+"/bottlings",
		`{"storage_unit_id":"tank-1","executed_by_id":"filler-1","filling":[{"color":"YELLOW","amount":"5"}]}`, &plan)
	require.Equal(t, http.StatusCreated, status)
	require.NotNil(t, plan.Bottling.Batch)
	assert.True(t, plan.Bottling.Batch.Amount.Equal(decimal.NewFromInt(5)))
	assert.Equal(t, model.HydrogenColorYellow, plan.Bottling.Batch.Color())

	inv, err := b.Store.ListAvailableHydrogenSteps(context.Background(), "tank-1")
	require.NoError(t, err)
	require.Len(t, inv, 1)
	assert.True(t, inv[0].Batch.Amount.Equal(decimal.NewFromInt(15)))
}

func TestBottle_InsufficientStock(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())

	var body errorBody
	status := postJSON(t, srv.URL+"/bottlings",
		`{"storage_unit_id":"tank-1","filling":[{"color":"GREEN","amount":"1"}]}`, &body)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "insufficient_stock", body.Error)
}

func TestBottle_BadBody(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())

	for _, body := range []string{`{`, `{"storage_unit_id":"tank-1","colour":"GREEN"}`, `{"storage_unit_id":"tank-1","filling":[]}`} {
		var resp errorBody
		assert.Equal(t, http.StatusBadRequest, postJSON(t, srv.URL+"/bottlings", body, &resp), body)
		assert.Equal(t, "missing_input", resp.Error, body)
	}
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Server.RateLimit = 1
	cfg.Server.RateBurst = 1
	srv, _ := newTestServer(t, cfg)

	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/health", nil))

	var body errorBody
	assert.Equal(t, http.StatusTooManyRequests, getJSON(t, srv.URL+"/health", &body))
	assert.Equal(t, "rate_limited", body.Error)
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/process-steps/hb-1/graph", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://custody.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{eris.Wrapf(model.ErrStepNotFound, "invalid process step %s", "x"), http.StatusNotFound},
		{eris.Wrap(model.ErrStepNotFound, "composition: lookup"), http.StatusNotFound},
		{eris.Wrapf(model.ErrMissingInput, "invalid process step %s", "x"), http.StatusBadRequest},
		{eris.Wrap(model.ErrMissingInput, "filling is empty"), http.StatusBadRequest},
		{eris.Wrap(model.ErrInsufficientStock, "tank-1"), http.StatusConflict},
		{eris.Wrap(model.ErrTypeMismatch, "x"), http.StatusBadRequest},
		{eris.Wrap(model.ErrNoMatchedPairs, "x"), http.StatusBadRequest},
		{errors.New("conn closed"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, statusFor(tc.err), tc.err.Error())
	}
}

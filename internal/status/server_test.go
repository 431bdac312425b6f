package status

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"quorum-indexer/internal/correlator"
	"quorum-indexer/internal/metrics"
	"quorum-indexer/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type staticSource []correlator.Status

func (s staticSource) Statuses() []correlator.Status { return s }

func serve(t *testing.T, src Source, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	srv := NewServer(":0", src, zap.NewNop())
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestHealthOK(t *testing.T) {
	rec := serve(t, staticSource{{Name: "blocks", State: correlator.StateIdle}}, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHealthReportsFatal(t *testing.T) {
	src := staticSource{
		{Name: "blocks", State: correlator.StateRunning},
		{Name: "epochs", State: correlator.StateFatal, LastError: "parse_payload (fatal): signature is missing or incomplete"},
	}
	rec := serve(t, src, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "epochs", body["correlator"])
}

func TestStatusJSON(t *testing.T) {
	src := staticSource{{
		Name:       "blocks",
		State:      correlator.StateIdle,
		Checkpoint: models.Checkpoint{ID: models.CheckpointBlocks, L1Height: 250, L2Height: 3},
		Enriched:   3,
	}}
	rec := serve(t, src, http.MethodGet, "/status")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got []correlator.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, uint64(250), got[0].Checkpoint.L1Height)
	assert.Equal(t, uint64(3), got[0].Enriched)
}

func TestMetricsExposed(t *testing.T) {
	metrics.RecordsEnriched.WithLabelValues("blocks").Inc()
	rec := serve(t, staticSource{}, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "quorum_indexer_records_enriched_total")
}

func TestMethodNotAllowed(t *testing.T) {
	rec := serve(t, staticSource{}, http.MethodPost, "/status")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

package httpserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mintid/mintid/pkg/flake"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	gen, err := flake.NewBuilder().
		StartTime(time.Now().Add(-time.Hour)).
		MachineID(func() (uint16, error) { return 42, nil }).
		Finalize()
	require.NoError(t, err)
	return New(gen, zap.NewNop(), Options{BatchMax: 10})
}

func do(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(w, req)
	return w
}

func TestMint(t *testing.T) {
	s := newTestServer(t)
	w := do(t, s, "/v1/id")
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	id, err := strconv.ParseUint(resp["id"], 10, 64)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), flake.Decompose(id).MachineID)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestMintUpdatesLastTick(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusOK, do(t, s, "/v1/id").Code)
	assert.NotZero(t, s.LastTick())
}

func TestBatch(t *testing.T) {
	s := newTestServer(t)
	w := do(t, s, "/v1/id/batch?n=5")
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string][]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp["ids"], 5)

	seen := map[string]struct{}{}
	for _, raw := range resp["ids"] {
		_, err := strconv.ParseUint(raw, 10, 64)
		require.NoError(t, err)
		_, dup := seen[raw]
		require.False(t, dup, "duplicate id %s", raw)
		seen[raw] = struct{}{}
	}
}

func TestBatchValidation(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, http.StatusBadRequest, do(t, s, "/v1/id/batch?n=0").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, s, "/v1/id/batch?n=abc").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, s, "/v1/id/batch?n=11").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, s, "/v1/id/batch").Code)
}

func TestInspect(t *testing.T) {
	s := newTestServer(t)

	mint := do(t, s, "/v1/id")
	require.Equal(t, http.StatusOK, mint.Code)
	var minted map[string]string
	require.NoError(t, json.Unmarshal(mint.Body.Bytes(), &minted))

	w := do(t, s, "/v1/inspect/"+minted["id"])
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		ID        string `json:"id"`
		Time      uint64 `json:"time"`
		Sequence  uint64 `json:"sequence"`
		MachineID uint64 `json:"machine_id"`
		Timestamp string `json:"timestamp"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, minted["id"], resp.ID)
	assert.Equal(t, uint64(42), resp.MachineID)

	ts, err := time.Parse(time.RFC3339Nano, resp.Timestamp)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), ts, time.Minute)
}

func TestInspectRejectsNonNumeric(t *testing.T) {
	s := newTestServer(t)
	// the route pattern only admits digits
	assert.Equal(t, http.StatusNotFound, do(t, s, "/v1/inspect/abc").Code)
}

func TestMinID(t *testing.T) {
	s := newTestServer(t)
	at := time.Now().UTC().Truncate(time.Second)

	w := do(t, s, "/v1/minid?t="+at.Format(time.RFC3339))
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	min, err := strconv.ParseUint(resp["min_id"], 10, 64)
	require.NoError(t, err)

	// Anything minted now must sort at or above the floor.
	mint := do(t, s, "/v1/id")
	var minted map[string]string
	require.NoError(t, json.Unmarshal(mint.Body.Bytes(), &minted))
	id, _ := strconv.ParseUint(minted["id"], 10, 64)
	assert.GreaterOrEqual(t, id, min)
}

func TestMinIDValidation(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, http.StatusBadRequest, do(t, s, "/v1/minid?t=yesterday").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, s, "/v1/minid").Code)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := do(t, s, "/v1/healthz")
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, float64(42), resp["machine_id"])
}

func TestMetricsExposed(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusOK, do(t, s, "/v1/id").Code)

	w := do(t, s, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "mintid_ids_issued_total")
}

func TestMintTimeLimitExceeded(t *testing.T) {
	gen, err := flake.NewBuilder().
		// Epoch far enough back that the 39-bit tick range is already spent.
		StartTime(time.Date(1800, 1, 1, 0, 0, 0, 0, time.UTC)).
		MachineID(func() (uint16, error) { return 1, nil }).
		Finalize()
	require.NoError(t, err)
	s := New(gen, zap.NewNop(), Options{})

	w := do(t, s, "/v1/id")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

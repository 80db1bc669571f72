package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_RecordTransaction(t *testing.T) {
	r := New()

	r.RecordTransaction("deploy", "Rewards", 21_000, 2*time.Second)
	r.RecordTransaction("deploy", "Rewards", 9_000, time.Second)
	r.RecordTransaction("call", "Hub", 50_000, time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.transactions.WithLabelValues("deploy", "Rewards")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.transactions.WithLabelValues("call", "Hub")))
	assert.Equal(t, 30_000.0, testutil.ToFloat64(r.gasUsed.WithLabelValues("Rewards")))
	assert.Equal(t, 2, testutil.CollectAndCount(r.txDuration))
}

func TestRecorder_RecordVerification(t *testing.T) {
	r := New()

	r.RecordVerification("Hub", nil)
	r.RecordVerification("Staking", errors.New("bytecode mismatch"))
	r.RecordVerification("Staking", errors.New("bytecode mismatch"))

	assert.Equal(t, 1.0, testutil.ToFloat64(r.verifications.WithLabelValues("Hub", "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.verifications.WithLabelValues("Staking", "failure")))
}

func TestRecorder_SetStage(t *testing.T) {
	r := New()

	r.SetStage("deploying")
	assert.Equal(t, 1.0, testutil.ToFloat64(r.stage.WithLabelValues("deploying")))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.stage.WithLabelValues("wiring")))
	assert.Zero(t, testutil.ToFloat64(r.finished))

	r.SetStage("done")
	assert.Equal(t, 0.0, testutil.ToFloat64(r.stage.WithLabelValues("deploying")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.stage.WithLabelValues("done")))
	assert.Positive(t, testutil.ToFloat64(r.finished))
}

func TestRecorder_Push(t *testing.T) {
	var path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		path = req.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	r := New()
	r.SetStage("done")

	require.NoError(t, r.Push(context.Background(), server.URL, "crossrealm_deployer", "run-1"))
	assert.Equal(t, "/metrics/job/crossrealm_deployer/run_id/run-1", path)
}

func TestRecorder_PushFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	err := New().Push(context.Background(), server.URL, "job", "run-1")
	assert.ErrorContains(t, err, "failed to push metrics")
}

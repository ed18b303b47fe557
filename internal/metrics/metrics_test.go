package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/peteski22/sitebridge/internal/executor"
	"github.com/peteski22/sitebridge/internal/record"
	"github.com/peteski22/sitebridge/internal/sync"
)

// Compile-time checks that Collector plugs into the executor and the orchestrator.
var (
	_ executor.Observer = (*Collector)(nil)
	_ sync.Recorder     = (*Collector)(nil)
)

func TestCollector_ObserveRequest(t *testing.T) {
	t.Parallel()

	c, err := New()
	require.NoError(t, err)

	c.ObserveRequest("procore", executor.OutcomeSuccess, 300*time.Millisecond)
	c.ObserveRequest("procore", executor.OutcomeSuccess, 100*time.Millisecond)
	c.ObserveRequest("procore", executor.OutcomeTransient, 2*time.Second)

	require.InDelta(t, 2, testutil.ToFloat64(c.requests.WithLabelValues("procore", executor.OutcomeSuccess)), 0)
	require.InDelta(t, 1, testutil.ToFloat64(c.requests.WithLabelValues("procore", executor.OutcomeTransient)), 0)
	require.Equal(t, 1, testutil.CollectAndCount(c.requestDuration))
}

func TestCollector_RecordResult(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		result          *sync.Result
		wantCycles      float64
		wantFailed      float64
		wantImported    float64
		wantLastSuccess bool
		wantSucceeded   float64
	}{
		"success": {
			result: &sync.Result{
				Exported: map[record.Type]sync.ExportCount{record.TypeRFI: {Failed: 1, Succeeded: 3}},
				Imported: map[record.Type]int{record.TypeRFI: 7},
				Provider: "procore",
				Status:   sync.StatusSuccess,
			},
			wantCycles:      1,
			wantFailed:      1,
			wantImported:    7,
			wantLastSuccess: true,
			wantSucceeded:   3,
		},
		"dry run success does not mark last success": {
			result: &sync.Result{
				DryRun:   true,
				Imported: map[record.Type]int{record.TypeRFI: 2},
				Provider: "procore",
				Status:   sync.StatusSuccess,
			},
			wantCycles:   1,
			wantImported: 2,
		},
		"skipped": {
			result: &sync.Result{
				Message:  "missing credentials",
				Provider: "procore",
				Status:   sync.StatusSkipped,
			},
			wantCycles: 1,
		},
		"nil result": {},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			c, err := New()
			require.NoError(t, err)

			c.RecordResult(tc.result)

			if tc.result == nil {
				require.Equal(t, 0, testutil.CollectAndCount(c.cycles))
				return
			}

			status := string(tc.result.Status)
			rt := string(record.TypeRFI)
			require.InDelta(t, tc.wantCycles, testutil.ToFloat64(c.cycles.WithLabelValues("procore", status)), 0)
			require.InDelta(t, tc.wantImported, testutil.ToFloat64(c.imported.WithLabelValues("procore", rt)), 0)
			require.InDelta(t, tc.wantSucceeded, testutil.ToFloat64(c.exported.WithLabelValues("procore", rt, "succeeded")), 0)
			require.InDelta(t, tc.wantFailed, testutil.ToFloat64(c.exported.WithLabelValues("procore", rt, "failed")), 0)

			if tc.wantLastSuccess {
				require.Positive(t, testutil.ToFloat64(c.lastSuccess.WithLabelValues("procore")))
			} else {
				require.Equal(t, 0, testutil.CollectAndCount(c.lastSuccess))
			}
		})
	}
}

func TestCollector_Handler(t *testing.T) {
	t.Parallel()

	c, err := New()
	require.NoError(t, err)
	c.ObserveRequest("sage", executor.OutcomeRateLimited, time.Second)

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), `sitebridge_requests_total{outcome="rate_limited",provider="sage"} 1`)
}

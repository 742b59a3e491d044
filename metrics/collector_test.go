package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isdmx/safebox/result"
)

func TestCollector(t *testing.T) {
	t.Run("NilCollectorIsNoop", func(t *testing.T) {
		var c *Collector
		assert.NotPanics(t, func() {
			c.ObserveSubmission("local", &result.Result{})
			c.ObserveProvision("docker", time.Second, nil)
			c.ObserveTeardown("docker", nil)
		})
	})

	t.Run("Submissions", func(t *testing.T) {
		c := NewCollector(prometheus.NewRegistry())
		c.ObserveSubmission("local", &result.Result{Operations: 12, Duration: time.Millisecond})
		c.ObserveSubmission("local", &result.Result{Err: result.Errorf(result.KindImportDenied, "os")})
		c.ObserveSubmission("docker", &result.Result{})

		assert.InDelta(t, 1, testutil.ToFloat64(c.submissions.WithLabelValues("local", "ok")), 0)
		assert.InDelta(t, 1, testutil.ToFloat64(c.submissions.WithLabelValues("local", "ImportDenied")), 0)
		assert.Equal(t, 3, testutil.CollectAndCount(c.submissions))
		assert.Equal(t, 1, testutil.CollectAndCount(c.operations))
	})

	t.Run("SessionGauge", func(t *testing.T) {
		c := NewCollector(prometheus.NewRegistry())
		c.ObserveProvision("docker", time.Second, nil)
		c.ObserveProvision("docker", time.Second, nil)
		c.ObserveProvision("docker", time.Second, errors.New("boom"))
		c.ObserveTeardown("docker", nil)

		assert.InDelta(t, 1, testutil.ToFloat64(c.sessionsActive.WithLabelValues("docker")), 0)
		assert.InDelta(t, 1, testutil.ToFloat64(c.provisions.WithLabelValues("docker", "error")), 0)
		assert.InDelta(t, 2, testutil.ToFloat64(c.provisions.WithLabelValues("docker", "ok")), 0)
	})
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.ObserveSubmission("local", &result.Result{})

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	t.Run("Healthz", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/healthz")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("Metrics", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/metrics")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		n, err := testutil.GatherAndCount(reg, "safebox_submissions_total")
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})
}

package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounts(t *testing.T) {
	r := New("sampletree")

	r.ObserveResolve("hit", 2*time.Millisecond)
	r.ObserveResolve("hit", time.Millisecond)
	r.ObserveResolve("scraped", time.Second)
	r.ObserveScrape("ok", time.Second)
	r.ObserveScrape("timeout", 15*time.Second)
	r.ObserveRequest("GET", "/api/song/{title}", "200")

	assert.Equal(t, float64(2), testutil.ToFloat64(r.resolves.WithLabelValues("hit")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.resolves.WithLabelValues("scraped")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.scrapes.WithLabelValues("timeout")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.httpRequests.WithLabelValues("GET", "/api/song/{title}", "200")))
}

func TestNilRecorder(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.ObserveResolve("hit", time.Millisecond)
		r.ObserveScrape("ok", time.Millisecond)
		r.ObserveRequest("GET", "/", "200")
	})

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerExposesMetrics(t *testing.T) {
	r := New("sampletree")
	r.ObserveResolve("hit", time.Millisecond)

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `sampletree_resolves_total{outcome="hit"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}

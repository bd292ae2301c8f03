package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveJob(t *testing.T) {
	Init()
	before := testutil.ToFloat64(jobsTotal.WithLabelValues("amazon", "search", "succeeded"))

	ObserveJob("amazon", "search", true, 3*time.Second)
	ObserveJob("amazon", "search", false, time.Second)

	assert.Equal(t, before+1, testutil.ToFloat64(jobsTotal.WithLabelValues("amazon", "search", "succeeded")))
	assert.GreaterOrEqual(t, testutil.ToFloat64(jobsTotal.WithLabelValues("amazon", "search", "failed")), 1.0)
}

func TestObserveItem(t *testing.T) {
	Init()
	before := testutil.ToFloat64(itemsTotal.WithLabelValues("zepto", "dropped"))

	ObserveItem("zepto", false)

	assert.Equal(t, before+1, testutil.ToFloat64(itemsTotal.WithLabelValues("zepto", "dropped")))
}

func TestGauges(t *testing.T) {
	Init()
	before := testutil.ToFloat64(activeJobs)

	IncActiveJobs()
	assert.Equal(t, before+1, testutil.ToFloat64(activeJobs))
	DecActiveJobs()
	assert.Equal(t, before, testutil.ToFloat64(activeJobs))
}

func TestMiddleware(t *testing.T) {
	Init()
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/status/{jobID}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "200"))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status/abc", nil))

	assert.Equal(t, before+1, testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "200")))
	assert.Positive(t, testutil.CollectAndCount(httpRequestDurationSeconds))
}
